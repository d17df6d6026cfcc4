package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"clinedit-collab/internal/pkg/retry"

	"github.com/golang-jwt/jwt/v5"
)

// expirySkew is subtracted from the token's exp claim so a token about to
// lapse mid-handshake is refreshed up front.
const expirySkew = 30 * time.Second

// Source yields the bearer credential attached to the connection handshake.
type Source interface {
	Token(ctx context.Context) (string, error)
}

// StaticSource returns a fixed token. Used by the tail client and tests.
type StaticSource string

func (s StaticSource) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

// RefreshingSource exchanges a long-lived refresh token for a fresh bearer
// token when the cached one is expired. The refresh call goes through the
// retry policy; a rejected refresh token is a permanent auth failure.
type RefreshingSource struct {
	RefreshURL   string
	RefreshToken string
	Policy       retry.Policy
	Client       *http.Client

	mu      sync.Mutex
	current string
}

func (s *RefreshingSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != "" && !Expired(s.current) {
		return s.current, nil
	}

	var fresh string
	err := s.Policy.Do(ctx, func(ctx context.Context) error {
		tok, err := s.refresh(ctx)
		if err != nil {
			return err
		}
		fresh = tok
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("token refresh: %w", err)
	}

	s.current = fresh
	return fresh, nil
}

func (s *RefreshingSource) refresh(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]string{"refresh_token": s.RefreshToken})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.RefreshURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if resp.StatusCode == http.StatusForbidden {
			// Provider rejected the refresh token itself.
			return "", &retry.AuthError{Permanent: true, Message: string(msg)}
		}
		return "", &retry.HTTPError{Status: resp.StatusCode, Message: string(msg)}
	}

	var parsed struct {
		Token   string `json:"token"`
		IdToken string `json:"id_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.Token != "" {
		return parsed.Token, nil
	}
	if parsed.IdToken != "" {
		return parsed.IdToken, nil
	}
	return "", fmt.Errorf("refresh response carried no token")
}

// Expired reports whether the JWT's exp claim is in the past (with skew).
// The signature is NOT verified here; validation is the server's job.
func Expired(tokenStr string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		// Opaque (non-JWT) tokens carry no readable expiry; let the server decide.
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < expirySkew
}
