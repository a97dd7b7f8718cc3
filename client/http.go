package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/whispernet/warden/core"
)

// api is the thin wire layer between the session client and the token
// authority. Transport failures, including timeouts, map to core.ErrNetwork;
// HTTP statuses map to the domain taxonomy.
type api struct {
	baseURL string
	http    *http.Client
}

type wireUser struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	IsVIP       bool     `json:"isVIP"`
	IsPremium   bool     `json:"isPremium"`
}

type authPayload struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresAt    int64    `json:"expires_at"`
	User         wireUser `json:"user"`
}

func (u wireUser) identity() core.Identity {
	return core.Identity{
		Subject:     u.ID,
		Email:       u.Email,
		Role:        u.Role,
		Permissions: u.Permissions,
		VIP:         u.IsVIP,
		Premium:     u.IsPremium,
	}
}

func (a *api) login(ctx context.Context, email, password string) (*authPayload, error) {
	body := map[string]string{"email": email, "password": password}

	var out authPayload
	status, err := a.postJSON(ctx, "/auth/login", body, &out)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		return &out, nil
	case http.StatusUnauthorized, http.StatusBadRequest:
		return nil, core.ErrInvalidCredentials
	default:
		return nil, fmt.Errorf("login failed with status %d", status)
	}
}

func (a *api) register(ctx context.Context, email, password string) (*authPayload, error) {
	body := map[string]string{"email": email, "password": password}

	var out authPayload
	status, err := a.postJSON(ctx, "/auth/register", body, &out)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusCreated, http.StatusOK:
		return &out, nil
	case http.StatusConflict:
		return nil, core.ErrConflict
	case http.StatusBadRequest:
		return nil, core.ErrValidation
	default:
		return nil, fmt.Errorf("registration failed with status %d", status)
	}
}

func (a *api) refresh(ctx context.Context, refreshToken string) (*authPayload, error) {
	body := map[string]string{"refresh_token": refreshToken}

	var out authPayload
	status, err := a.postJSON(ctx, "/auth/refresh", body, &out)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		return &out, nil
	case http.StatusUnauthorized, http.StatusBadRequest:
		// The authority deliberately keeps expired and forged
		// indistinguishable on the wire.
		return nil, core.ErrInvalidToken
	default:
		return nil, fmt.Errorf("refresh failed with status %d", status)
	}
}

func (a *api) logout(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refresh_token": refreshToken}

	status, err := a.postJSON(ctx, "/auth/logout", body, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("logout failed with status %d", status)
	}
	return nil
}

// postJSON posts body and decodes a 2xx response into out. Non-2xx statuses
// are returned to the caller for taxonomy mapping; only transport failures
// are errors here.
func (a *api) postJSON(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, fmt.Errorf("%w: decoding response: %v", core.ErrNetwork, err)
		}
	}

	return resp.StatusCode, nil
}
