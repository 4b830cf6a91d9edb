package reauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"time"
)

// GatewayClient implements StatusClient over the auth gateway's REST
// surface, authenticating every call with the caller's session cookie.
type GatewayClient struct {
	baseURL string
	cookie  *http.Cookie
	client  *http.Client
}

var _ StatusClient = (*GatewayClient)(nil)

// GatewayOption configures a GatewayClient.
type GatewayOption func(*GatewayClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *GatewayClient) { g.client = c }
}

// NewGatewayClient creates a status client for the gateway at baseURL,
// e.g. http://localhost:3001, using the given session cookie.
func NewGatewayClient(baseURL string, session *http.Cookie, opts ...GatewayOption) *GatewayClient {
	g := &GatewayClient{
		baseURL: baseURL,
		cookie:  session,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Status reads the gateway's re-authentication state. The status endpoint
// does not say who reauthenticated, so when it reports authenticated the
// session endpoint resolves the principal.
func (g *GatewayClient) Status(ctx context.Context) (Status, error) {
	var payload struct {
		Authenticated     bool       `json:"authenticated"`
		ReauthenticatedAt *time.Time `json:"reauthenticatedAt"`
	}
	if err := g.getJSON(ctx, "/auth/reauthentication-status", &payload); err != nil {
		return Status{}, err
	}
	st := Status{Authenticated: payload.Authenticated}
	if payload.ReauthenticatedAt != nil {
		st.ReauthenticatedAt = *payload.ReauthenticatedAt
	}
	if !st.Authenticated {
		return st, nil
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := g.getJSON(ctx, "/api/user", &user); err != nil {
		return Status{}, err
	}
	st.PrincipalID = user.ID
	return st, nil
}

// Reset consumes the gateway's re-authentication markers.
func (g *GatewayClient) Reset(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/auth/reset-reauthentication", nil)
	if err != nil {
		return err
	}
	req.AddCookie(g.cookie)
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("resetting reauthentication status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("resetting reauthentication status: status %d", resp.StatusCode)
	}
	return nil
}

func (g *GatewayClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.AddCookie(g.cookie)
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// BrowserOpener launches the gateway's re-authentication URL in the local
// browser. Close is a no-op: the opened tab is outside our control.
type BrowserOpener struct {
	url string
}

var _ Opener = (*BrowserOpener)(nil)

// NewBrowserOpener creates an opener pointing at the gateway's
// re-authentication endpoint, e.g. http://localhost:3001/auth/google/reauthenticate.
func NewBrowserOpener(reauthURL string) *BrowserOpener {
	return &BrowserOpener{url: reauthURL}
}

func (o *BrowserOpener) Open(ctx context.Context, _ string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", o.url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", o.url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", o.url)
	}
	return cmd.Start()
}

func (o *BrowserOpener) Close() {}
