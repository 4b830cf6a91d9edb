package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testFlows(secret string) *oauthFlows {
	return newOAuthFlows(OAuthConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		CallbackBase: "http://localhost:3001",
		StateSecret:  []byte(secret),
		Endpoint:     oauth2.Endpoint{AuthURL: "http://stub/auth", TokenURL: "http://stub/token"},
	})
}

func TestOAuthState_RoundTrip(t *testing.T) {
	f := testFlows("secret-a")

	state, err := f.signState(flowReauth, "mgr1")
	require.NoError(t, err)

	claims, err := f.verifyState(state, flowReauth)
	require.NoError(t, err)
	assert.Equal(t, "mgr1", claims.Subject)
	assert.Equal(t, flowReauth, claims.Flow)
}

func TestOAuthState_FlowMismatch(t *testing.T) {
	f := testFlows("secret-a")

	state, err := f.signState(flowLogin, "")
	require.NoError(t, err)

	_, err = f.verifyState(state, flowReauth)
	assert.Error(t, err)
}

func TestOAuthState_WrongSecret(t *testing.T) {
	state, err := testFlows("secret-a").signState(flowLogin, "")
	require.NoError(t, err)

	_, err = testFlows("secret-b").verifyState(state, flowLogin)
	assert.Error(t, err)
}

func TestOAuthState_Garbage(t *testing.T) {
	_, err := testFlows("secret-a").verifyState("not-a-token", flowLogin)
	assert.Error(t, err)
}
