package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/ringcall/internal/ledger"
	"github.com/immxrtalbeast/ringcall/internal/repository"
	"github.com/immxrtalbeast/ringcall/internal/service"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testApp struct {
	router *gin.Engine
	calls  *service.CallService
}

func newTestApp(t *testing.T, opts RouterOptions) *testApp {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := ledger.New(ledger.NewMemoryStore(), log)
	events := repository.NewLedgerEventRepository(l)
	sales := repository.NewLedgerSaleRepository(l)

	calls := service.NewCallService(repository.NewLedgerCallRepository(l), events, sales, log)
	activity := service.NewActivityService(calls, events, sales, log)
	auth := service.NewAuthService(
		repository.NewLedgerUserRepository(l),
		repository.NewLedgerSessionRepository(l),
		service.AuthOptions{BcryptCost: bcrypt.MinCost},
		log,
	)
	relay := service.NewRelayService(calls, log)

	opts.Log = log
	router := SetupRouter(
		opts,
		auth,
		NewAuthController(auth, auth.SessionTTL(), false),
		NewCallController(calls),
		NewActivityController(activity),
		NewSignalController(relay, []webrtc.ICEServer{{URLs: []string{"stun:stun.example.org:3478"}}}, log),
	)
	return &testApp{router: router, calls: calls}
}

func (a *testApp) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) register(t *testing.T, username string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/register", map[string]string{"username": username, "password": "secret"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookie {
			return cookie.Value
		}
	}
	t.Fatal("session cookie not set")
	return ""
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAuthFlow(t *testing.T) {
	app := newTestApp(t, RouterOptions{})

	token := app.register(t, "Ana")
	assert.Len(t, token, 48)

	rec := app.do(t, http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ana", decode(t, rec)["username"])

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	cookieRec := httptest.NewRecorder()
	app.router.ServeHTTP(cookieRec, req)
	assert.Equal(t, http.StatusOK, cookieRec.Code)

	rec = app.do(t, http.MethodPost, "/api/auth/register", map[string]string{"username": "ana", "password": "secret"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "ANA", "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/auth/logout", nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRateLimit(t *testing.T) {
	app := newTestApp(t, RouterOptions{AuthRate: 0.001, AuthBurst: 1})

	rec := app.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "x", "password": "y"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "x", "password": "y"}, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCallLifecycle(t *testing.T) {
	app := newTestApp(t, RouterOptions{})

	rec := app.do(t, http.MethodPost, "/api/create-call", map[string]any{"videoUrl": "/uploads/a.mp4"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	owner := app.register(t, "owner")
	other := app.register(t, "other")

	rec = app.do(t, http.MethodPost, "/api/create-call", map[string]any{
		"videoUrl":         "/uploads/a.mp4",
		"title":            "Demo",
		"expectedAmount":   "R$ 50,90",
		"expiresInMinutes": 30,
	}, owner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode(t, rec)
	callID := created["callId"].(string)
	assert.Equal(t, "/call/"+callID, created["url"])
	assert.Equal(t, "/host/"+callID, created["hostUrl"])
	assert.Equal(t, "/ring/"+callID, created["ringUrl"])
	assert.Equal(t, "/video/"+callID, created["videoUrlPage"])
	sale := created["sale"].(map[string]any)
	assert.Equal(t, 50.9, sale["amount"])

	rec = app.do(t, http.MethodGet, "/api/call/"+callID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	public := decode(t, rec)
	assert.Equal(t, "/uploads/a.mp4", public["videoUrl"])
	assert.Equal(t, false, public["hasHost"])
	assert.Equal(t, float64(0), public["guestsCount"])

	rec = app.do(t, http.MethodGet, "/api/history", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ring_open"`)
	assert.Contains(t, rec.Body.String(), `"sale_marked"`)

	rec = app.do(t, http.MethodGet, "/api/calls", nil, other)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["calls"])

	rec = app.do(t, http.MethodPatch, "/api/call/"+callID, map[string]any{"title": "Stolen"}, other)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodPatch, "/api/call/"+callID, map[string]any{"expireNow": true}, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Demo", decode(t, rec)["title"])

	rec = app.do(t, http.MethodGet, "/api/call/"+callID, nil, "")
	assert.Equal(t, http.StatusGone, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/calls", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	calls := decode(t, rec)["calls"].([]any)
	require.Len(t, calls, 1)
	assert.Equal(t, true, calls[0].(map[string]any)["expired"])

	rec = app.do(t, http.MethodDelete, "/api/call/"+callID, nil, other)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = app.do(t, http.MethodDelete, "/api/call/"+callID, nil, owner)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, http.MethodGet, "/api/call/"+callID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/sales", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["sales"])
}

func TestSalesAndTrack(t *testing.T) {
	app := newTestApp(t, RouterOptions{})
	token := app.register(t, "seller")

	rec := app.do(t, http.MethodPost, "/api/create-call", map[string]any{"videoUrl": "v"}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	callID := decode(t, rec)["callId"].(string)

	rec = app.do(t, http.MethodPost, "/api/sales", map[string]any{"callId": callID, "amount": "abc"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = app.do(t, http.MethodPost, "/api/sales", map[string]any{"callId": callID, "amount": 0}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/sales", map[string]any{"callId": callID, "amount": "1.234,56", "note": "deal"}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1234.56, decode(t, rec)["sale"].(map[string]any)["amount"])

	rec = app.do(t, http.MethodGet, "/api/sales", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["sales"], 1)

	rec = app.do(t, http.MethodPost, "/api/track", map[string]any{"callId": callID, "type": "video_open"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, http.MethodPost, "/api/track", map[string]any{"callId": callID, "type": "sale_marked"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = app.do(t, http.MethodPost, "/api/track", map[string]any{"callId": "missing", "type": "call_end"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebRTCConfigAndHealth(t *testing.T) {
	app := newTestApp(t, RouterOptions{})

	rec := app.do(t, http.MethodGet, "/api/webrtc/config", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stun:stun.example.org:3478")

	rec = app.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ringcall_http_requests_total")
}

type wsMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	CallID   string `json:"callId"`
	VideoURL string `json:"videoUrl"`
	GuestID  string `json:"guestId"`
	Message  string `json:"message"`
}

func dialSignal(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return ws
}

func readSignal(t *testing.T, ws *websocket.Conn) wsMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wsMessage
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestSignalingOverWebSocket(t *testing.T) {
	app := newTestApp(t, RouterOptions{})
	token := app.register(t, "host")

	rec := app.do(t, http.MethodPost, "/api/create-call", map[string]any{"videoUrl": "/uploads/v.mp4"}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	callID := decode(t, rec)["callId"].(string)

	srv := httptest.NewServer(app.router)
	defer srv.Close()

	host := dialSignal(t, srv)
	require.NoError(t, host.WriteJSON(map[string]any{"type": "join", "callId": callID, "role": "host", "clientId": "h1"}))
	joined := readSignal(t, host)
	assert.Equal(t, "joined", joined.Type)
	assert.Equal(t, "h1", joined.ClientID)

	guest := dialSignal(t, srv)
	defer guest.Close()
	require.NoError(t, guest.WriteJSON(map[string]any{"type": "join", "callId": callID, "role": "guest"}))
	guestJoined := readSignal(t, guest)
	assert.Equal(t, "joined", guestJoined.Type)
	assert.Equal(t, "/uploads/v.mp4", guestJoined.VideoURL)

	notice := readSignal(t, host)
	assert.Equal(t, "guest-joined", notice.Type)
	assert.Equal(t, guestJoined.ClientID, notice.GuestID)

	require.NoError(t, guest.WriteJSON(map[string]any{"type": "nonsense"}))
	assert.Equal(t, "error", readSignal(t, guest).Type)

	require.NoError(t, host.Close())

	left := readSignal(t, guest)
	assert.Equal(t, "host-left", left.Type)

	require.NoError(t, guest.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := guest.ReadMessage()
	assert.Error(t, err)
}
