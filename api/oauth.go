package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	flowLogin  = "login"
	flowReauth = "reauth"

	// stateTTL bounds how long an OAuth redirect may take before the state
	// parameter is refused.
	stateTTL = 10 * time.Minute

	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// OAuthConfig wires the Google login and re-authentication flows.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	// CallbackBase is the externally reachable base URL of this service,
	// e.g. http://localhost:3001.
	CallbackBase string
	// StateSecret signs the OAuth state parameter.
	StateSecret []byte

	// Endpoint and UserInfoURL default to Google's; tests point them at a
	// local stub.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

type oauthFlows struct {
	login       *oauth2.Config
	reauth      *oauth2.Config
	stateSecret []byte
	userInfoURL string
}

func newOAuthFlows(cfg OAuthConfig) *oauthFlows {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultUserInfoURL
	}
	scopes := []string{"profile", "email"}
	return &oauthFlows{
		login: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackBase + "/auth/google/callback",
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		reauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackBase + "/auth/google/reauthenticate/callback",
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		stateSecret: cfg.StateSecret,
		userInfoURL: userInfoURL,
	}
}

type stateClaims struct {
	Flow string `json:"flow"`
	jwt.RegisteredClaims
}

// signState issues the OAuth state parameter: a short-lived signed token
// binding the redirect to a flow kind and, for re-auth, to the principal
// whose identity must be reconfirmed.
func (f *oauthFlows) signState(flow, principalID string) (string, error) {
	now := time.Now()
	claims := stateClaims{
		Flow: flow,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.stateSecret)
}

func (f *oauthFlows) verifyState(state, wantFlow string) (*stateClaims, error) {
	claims := &stateClaims{}
	_, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return f.stateSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("invalid state: %w", err)
	}
	if claims.Flow != wantFlow {
		return nil, fmt.Errorf("state flow mismatch: got %q", claims.Flow)
	}
	return claims, nil
}

// userInfo is the identity returned by the provider's userinfo endpoint.
type userInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// fetchIdentity exchanges the authorization code and reads the principal's
// identity from the userinfo endpoint.
func (f *oauthFlows) fetchIdentity(ctx context.Context, cfg *oauth2.Config, code string) (userInfo, error) {
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return userInfo{}, fmt.Errorf("code exchange: %w", err)
	}

	resp, err := cfg.Client(ctx, token).Get(f.userInfoURL)
	if err != nil {
		return userInfo{}, fmt.Errorf("userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return userInfo{}, fmt.Errorf("userinfo: status %d: %s", resp.StatusCode, body)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return userInfo{}, fmt.Errorf("userinfo decode: %w", err)
	}
	if info.Email == "" {
		return userInfo{}, fmt.Errorf("userinfo: no email in response")
	}
	return info, nil
}
