package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieSigner(t *testing.T) {
	s, err := newCookieSigner(testSecret, true, time.Hour)
	require.NoError(t, err)

	id := uuid.NewString()
	got, err := s.decode(s.encode(id))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	other, err := newCookieSigner(testSecret+"-rotated", true, time.Hour)
	require.NoError(t, err)
	_, err = other.decode(s.encode(id))
	assert.ErrorIs(t, err, errBadCookie, "a different secret rejects the cookie")

	for _, bad := range []string{"", id, id + ".", "not-a-uuid." + s.mac("not-a-uuid"), uuid.NewString() + "." + s.mac(id)} {
		_, err := s.decode(bad)
		assert.ErrorIs(t, err, errBadCookie, "value %q", bad)
	}
}

func TestCookieSignerRejectsShortSecret(t *testing.T) {
	_, err := newCookieSigner("short", false, time.Hour)
	assert.Error(t, err)
}

func TestCookieAttributes(t *testing.T) {
	s, err := newCookieSigner(testSecret, true, time.Hour)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	s.write(rr, uuid.NewString())
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)

	c := cookies[0]
	assert.Equal(t, SessionCookie, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 3600, c.MaxAge)
}

func TestSessionGuard(t *testing.T) {
	g := newSessionGuard()

	release, ok := g.tryAcquire("a")
	require.True(t, ok)

	_, ok = g.tryAcquire("a")
	assert.False(t, ok, "second claim on the same session")

	releaseB, ok := g.tryAcquire("b")
	assert.True(t, ok, "other sessions are independent")
	releaseB()

	release()
	release2, ok := g.tryAcquire("a")
	assert.True(t, ok, "released sessions can be claimed again")
	release2()
}
