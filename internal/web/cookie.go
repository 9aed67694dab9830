package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const (
	// SessionCookie names the browser session cookie.
	SessionCookie = "foodapp_session"

	cookieKeyInfo = "foodapp session cookie v1"
	minSecretLen  = 16
)

// cookieSigner signs session IDs so a client cannot pick another session.
type cookieSigner struct {
	key    []byte
	secure bool
	maxAge time.Duration
}

func newCookieSigner(secret string, secure bool, maxAge time.Duration) (*cookieSigner, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("session secret must be at least %d bytes", minSecretLen)
	}
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(cookieKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive cookie key: %w", err)
	}
	return &cookieSigner{key: key, secure: secure, maxAge: maxAge}, nil
}

func (s *cookieSigner) mac(id string) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func (s *cookieSigner) encode(id string) string {
	return id + "." + s.mac(id)
}

var errBadCookie = errors.New("invalid session cookie")

func (s *cookieSigner) decode(value string) (string, error) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok {
		return "", errBadCookie
	}
	if !hmac.Equal([]byte(sig), []byte(s.mac(id))) {
		return "", errBadCookie
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", errBadCookie
	}
	return id, nil
}

// read returns the verified session ID from r, if any.
func (s *cookieSigner) read(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", false
	}
	id, err := s.decode(c.Value)
	if err != nil {
		return "", false
	}
	return id, true
}

func (s *cookieSigner) write(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    s.encode(id),
		Path:     "/",
		MaxAge:   int(s.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
