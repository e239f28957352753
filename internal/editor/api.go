package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/choko510/jirotter-sub000/internal/model"
)

// AuthStatus is the identity check the editor gates its initialization on.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	UserID        uint64 `json:"user_id"`
	Username      string `json:"username"`
	AccountStatus string `json:"account_status"`
	IsAdmin       bool   `json:"is_admin"`
}

// APIClient talks to the REST side of the shop-editor backend: bulk shop
// listing, the single-field patch fallback and the change history. All URLs
// derive from one base, the same origin the websocket URL is built from.
type APIClient struct {
	base   *url.URL
	token  string
	client *http.Client
}

func NewAPIClient(baseURL, token string) (*APIClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http(s), got %q", u.Scheme)
	}
	return &APIClient{
		base:   u,
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// AuthStatus calls GET /api/v1/auth/status.
func (a *APIClient) AuthStatus(ctx context.Context) (AuthStatus, error) {
	var st AuthStatus
	err := a.do(ctx, http.MethodGet, "/api/v1/auth/status", nil, &st)
	return st, err
}

// ListShops calls GET /api/v1/admin/shops.
func (a *APIClient) ListShops(ctx context.Context, limit, offset int) ([]model.Shop, error) {
	var out struct {
		Shops []model.Shop `json:"shops"`
	}
	path := fmt.Sprintf("/api/v1/admin/shops?limit=%d&offset=%d", limit, offset)
	if err := a.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Shops, nil
}

// PatchShop calls PATCH /api/v1/admin/shops/{id} with {field: value} and
// returns the server's view of the updated record.
func (a *APIClient) PatchShop(ctx context.Context, id int64, field string, value any) (model.Shop, error) {
	var out model.Shop
	body := map[string]any{field: value}
	err := a.do(ctx, http.MethodPatch, "/api/v1/admin/shops/"+strconv.FormatInt(id, 10), body, &out)
	return out, err
}

// ShopHistory calls GET /api/v1/admin/shops/{id}/history.
func (a *APIClient) ShopHistory(ctx context.Context, id int64, limit int) ([]model.ShopHistory, error) {
	var out struct {
		History []model.ShopHistory `json:"history"`
	}
	path := fmt.Sprintf("/api/v1/admin/shops/%d/history?limit=%d", id, limit)
	if err := a.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

func (a *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base.ResolveReference(ref).String(), rd)
	if err != nil {
		return err
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		// error payloads are {"error": "..."}; keep a short excerpt
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, excerpt)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
