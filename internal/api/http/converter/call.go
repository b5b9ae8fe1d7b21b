package converter

import (
	"time"

	"github.com/immxrtalbeast/ringcall/internal/domain"
	"github.com/immxrtalbeast/ringcall/internal/service"
)

type PublicCallResponse struct {
	CallID          string     `json:"callId"`
	Title           *string    `json:"title"`
	VideoURL        string     `json:"videoUrl"`
	CallerName      *string    `json:"callerName"`
	CallerAvatarURL *string    `json:"callerAvatarUrl"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	HasHost         bool       `json:"hasHost"`
	GuestsCount     int        `json:"guestsCount"`
}

type CallResponse struct {
	CallID          string     `json:"callId"`
	Title           *string    `json:"title"`
	VideoURL        string     `json:"videoUrl"`
	CallerName      *string    `json:"callerName"`
	CallerAvatarURL *string    `json:"callerAvatarUrl"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	ExpectedAmount  *float64   `json:"expectedAmount"`
	OwnerUserID     *string    `json:"ownerUserId"`
	CreatedAt       time.Time  `json:"createdAt"`
	Expired         bool       `json:"expired"`
}

type CreatedCallResponse struct {
	CallID       string       `json:"callId"`
	URL          string       `json:"url"`
	HostURL      string       `json:"hostUrl"`
	RingURL      string       `json:"ringUrl"`
	VideoURLPage string       `json:"videoUrlPage"`
	Sale         *domain.Sale `json:"sale"`
}

type UpdatedCallResponse struct {
	OK        bool       `json:"ok"`
	CallID    string     `json:"callId"`
	Title     *string    `json:"title"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

func CallToPublic(v *service.CallView) *PublicCallResponse {
	c := v.Call
	return &PublicCallResponse{
		CallID:          c.ID,
		Title:           c.Title,
		VideoURL:        c.VideoURL,
		CallerName:      c.CallerName,
		CallerAvatarURL: c.CallerAvatarURL,
		ExpiresAt:       c.ExpiresAt,
		HasHost:         v.HasHost,
		GuestsCount:     v.GuestsCount,
	}
}

func CallsToApi(views []service.CallView) []CallResponse {
	out := make([]CallResponse, 0, len(views))
	for _, v := range views {
		c := v.Call
		out = append(out, CallResponse{
			CallID:          c.ID,
			Title:           c.Title,
			VideoURL:        c.VideoURL,
			CallerName:      c.CallerName,
			CallerAvatarURL: c.CallerAvatarURL,
			ExpiresAt:       c.ExpiresAt,
			ExpectedAmount:  c.ExpectedAmount,
			OwnerUserID:     c.OwnerUserID,
			CreatedAt:       c.CreatedAt,
			Expired:         v.Expired,
		})
	}
	return out
}

func CreatedCallToApi(c *domain.Call, sale *domain.Sale) *CreatedCallResponse {
	return &CreatedCallResponse{
		CallID:       c.ID,
		URL:          "/call/" + c.ID,
		HostURL:      "/host/" + c.ID,
		RingURL:      "/ring/" + c.ID,
		VideoURLPage: "/video/" + c.ID,
		Sale:         sale,
	}
}

func UpdatedCallToApi(c *domain.Call) *UpdatedCallResponse {
	return &UpdatedCallResponse{
		OK:        true,
		CallID:    c.ID,
		Title:     c.Title,
		ExpiresAt: c.ExpiresAt,
	}
}
