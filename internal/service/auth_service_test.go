package service

import (
	"context"
	"testing"
	"time"

	"github.com/immxrtalbeast/ringcall/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, session, err := f.auth.Register(ctx, "Maria", "secret")
	require.NoError(t, err)
	assert.Len(t, session.ID, 48)
	assert.Equal(t, user.ID, session.UserID)
	assert.NotEqual(t, "secret", user.PasswordHash)

	got, err := f.auth.Authenticate(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.auth.Register(ctx, "", "secret")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = f.auth.Register(ctx, "bob", "ab")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = f.auth.Register(ctx, "bob", "abc")
	require.NoError(t, err)

	_, _, err = f.auth.Register(ctx, "BOB", "other")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	registered, _, err := f.auth.Register(ctx, "Carla", "pa55")
	require.NoError(t, err)

	user, session, err := f.auth.Login(ctx, "carla", "pa55")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, session.ID)

	_, _, err = f.auth.Login(ctx, "carla", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, _, err = f.auth.Login(ctx, "nobody", "pa55")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, _, err = f.auth.Login(ctx, "carla", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLogoutInvalidatesCachedSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, session, err := f.auth.Register(ctx, "dora", "1234")
	require.NoError(t, err)
	_, err = f.auth.Authenticate(ctx, session.ID)
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, session.ID))

	_, err = f.auth.Authenticate(ctx, session.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.NoError(t, f.auth.Logout(ctx, ""))
}

func TestExpiredSessionIsRejectedAndCompacted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, session, err := f.auth.Register(ctx, "eve", "1234")
	require.NoError(t, err)
	_, err = f.auth.Authenticate(ctx, session.ID)
	require.NoError(t, err)

	later := time.Now().UTC().Add(domain.DefaultSessionTTL + time.Hour)
	f.auth.now = func() time.Time { return later }

	_, err = f.auth.Authenticate(ctx, session.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	removed, err := f.auth.CompactSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = f.sessions.GetByID(ctx, session.ID)
	assert.Error(t, err)
}

func TestAuthenticateUnknownToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = f.auth.Authenticate(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}
