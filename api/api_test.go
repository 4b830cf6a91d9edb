package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/picis-sec/picis/analysis"
	"github.com/picis-sec/picis/approval"
	"github.com/picis-sec/picis/roster"
	"github.com/picis-sec/picis/session"
	"github.com/picis-sec/picis/storage"
	"github.com/picis-sec/picis/storage/memory"
)

func testPrincipals() []roster.Principal {
	return []roster.Principal{
		{ID: "mgr1", Name: "Laura", Email: "laura@example.com", Role: roster.RoleHumanAuthManager, Active: true},
		{ID: "nmgr1", Name: "Saul", Email: "saul@example.com", Role: roster.RoleNonHumanAuthManager, Active: true},
		{ID: "sup1", Name: "Felipe", Email: "felipe@example.com", Role: roster.RoleHumanSupervisor, Active: true},
		{ID: "sup2", Name: "Vianney", Email: "vianney@example.com", Role: roster.RoleHumanSupervisor, Active: true},
		{ID: "nsup1", Name: "Jimena", Email: "jimena@example.com", Role: roster.RoleNonHumanSupervisor, Active: true},
		{ID: "resp1", Name: "Olivia", Email: "olivia@example.com", Role: roster.RoleAuthResponsible, Active: true},
		{ID: "ana1", Name: "Mario", Email: "mario@example.com", Role: roster.RoleAnalyst, GroupID: "g1", Active: true},
	}
}

type testAPI struct {
	*API
	repo      storage.Repository
	directory *roster.Roster
	router    chi.Router
}

func newTestAPI(t *testing.T, opts ...Option) *testAPI {
	t.Helper()
	repo := memory.NewRepository()
	directory := roster.New(testPrincipals()...)
	engine := approval.NewEngine(
		approval.NewRepositoryStore(repo),
		directory,
		NewEntityApplier(repo),
	)
	tracker := analysis.NewTracker(
		analysis.WithScheduler(func(time.Duration, func()) func() { return func() {} }),
	)

	a := New(repo, engine, directory, tracker, opts...)
	return &testAPI{
		API:       a,
		repo:      repo,
		directory: directory,
		router:    a.Router(),
	}
}

// login seeds a server-side session for the principal and returns its
// cookie.
func (ta *testAPI) login(t *testing.T, principalID string) *http.Cookie {
	t.Helper()
	p, err := ta.directory.ByID(principalID)
	require.NoError(t, err)

	token := uuid.NewString()
	now := time.Now()
	ta.sessions.Put(context.Background(), token, AuthSession{
		PrincipalID:    p.ID,
		Name:           p.Name,
		Email:          p.Email,
		Role:           p.Role,
		ExpiresAt:      now.Add(time.Hour),
		LastAccessedAt: now,
	})
	return &http.Cookie{Name: sessionCookieName, Value: token}
}

func (ta *testAPI) do(t *testing.T, method, target string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func TestCurrentUser(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodGet, "/api/user", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ta.do(t, http.MethodGet, "/api/user", nil, ta.login(t, "mgr1"))
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeBody[UserResponse](t, rec)
	assert.Equal(t, "mgr1", user.ID)
	assert.Equal(t, roster.RoleHumanAuthManager, user.Rol)
}

func TestEntidadesCRUD(t *testing.T) {
	ta := newTestAPI(t)
	cookie := ta.login(t, "mgr1")

	rec := ta.do(t, http.MethodPost, "/entidades", map[string]any{
		"nombre":      "Nueva Empresa",
		"nivel":       "alto",
		"descripcion": "cliente corporativo",
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	created := decodeBody[OKResponse](t, rec)
	assert.True(t, created.OK)
	assert.Equal(t, "entidad1", created.DetalleID)

	rec = ta.do(t, http.MethodGet, "/entidades/entidad1", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "entidad1", doc["id"])
	assert.Equal(t, "Nueva Empresa", doc["nombre"])
	assert.Equal(t, "activo", doc["estado"])

	// Update merges fields over the stored document.
	rec = ta.do(t, http.MethodPut, "/entidades/entidad1", map[string]any{
		"nivel":  "medio",
		"estado": "inactivo",
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ta.do(t, http.MethodGet, "/entidades?estado=inactivo", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "medio", list[0]["nivel"])
	assert.Equal(t, "Nueva Empresa", list[0]["nombre"])

	rec = ta.do(t, http.MethodGet, "/entidades?estado=activo", nil, cookie)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = ta.do(t, http.MethodDelete, "/entidades/entidad1", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ta.do(t, http.MethodGet, "/entidades/entidad1", nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSolicitudesApprovalFlow(t *testing.T) {
	ta := newTestAPI(t)
	mgr := ta.login(t, "mgr1")

	rec := ta.do(t, http.MethodPost, "/solicitudes", CreateSolicitudRequest{
		Tipo:    string(approval.TypeAddClient),
		Detalle: json.RawMessage(`{"nombre":"Nueva Empresa","nivel":"alto"}`),
	}, mgr)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decodeBody[OKResponse](t, rec)
	require.Equal(t, "solicitud1", created.DetalleID)

	// Both human supervisors must approve before the responsible phase.
	rec = ta.do(t, http.MethodPost, "/solicitudes/solicitud1/approve", nil, ta.login(t, "sup1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sol := decodeBody[SolicitudResponse](t, rec)
	assert.Equal(t, string(approval.StatusAwaitingSupervisor), sol.Estado)

	rec = ta.do(t, http.MethodPost, "/solicitudes/solicitud1/approve", nil, ta.login(t, "sup2"))
	require.Equal(t, http.StatusOK, rec.Code)
	sol = decodeBody[SolicitudResponse](t, rec)
	assert.Equal(t, string(approval.StatusAwaitingResponsible), sol.Estado)

	// The responsible pool's unanimous approval applies the payload.
	rec = ta.do(t, http.MethodPost, "/solicitudes/solicitud1/approve", nil, ta.login(t, "resp1"))
	require.Equal(t, http.StatusOK, rec.Code)
	sol = decodeBody[SolicitudResponse](t, rec)
	assert.Equal(t, string(approval.StatusApproved), sol.Estado)

	entity, err := ta.repo.Get(storage.CollectionEntidades, "entidad1")
	require.NoError(t, err)
	assert.Contains(t, string(entity.Data), "Nueva Empresa")

	// Filtering by estado on the list endpoint.
	rec = ta.do(t, http.MethodGet, "/solicitudes?estado=approved", nil, mgr)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]SolicitudResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"sup1", "sup2"}, list[0].SupervisoresAprobados)
}

func TestSolicitudes_Permissions(t *testing.T) {
	ta := newTestAPI(t)

	// Analysts may not submit.
	rec := ta.do(t, http.MethodPost, "/solicitudes", CreateSolicitudRequest{
		Tipo:    string(approval.TypeAddClient),
		Detalle: json.RawMessage(`{"nombre":"x"}`),
	}, ta.login(t, "ana1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ta.do(t, http.MethodPost, "/solicitudes", CreateSolicitudRequest{
		Tipo:    string(approval.TypeAddClient),
		Detalle: json.RawMessage(`{"nombre":"x"}`),
	}, ta.login(t, "mgr1"))
	require.Equal(t, http.StatusOK, rec.Code)

	// The non-human supervisor cannot vote on a human-category request.
	rec = ta.do(t, http.MethodPost, "/solicitudes/solicitud1/approve", nil, ta.login(t, "nsup1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Unknown request type is a validation error.
	rec = ta.do(t, http.MethodPost, "/solicitudes", CreateSolicitudRequest{
		Tipo:    "paint_the_office",
		Detalle: json.RawMessage(`{}`),
	}, ta.login(t, "mgr1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSolicitudes_UpdateAndDelete(t *testing.T) {
	ta := newTestAPI(t)
	mgr := ta.login(t, "mgr1")

	rec := ta.do(t, http.MethodPost, "/solicitudes", CreateSolicitudRequest{
		Tipo:    string(approval.TypeAddClient),
		Detalle: json.RawMessage(`{"nombre":"x"}`),
	}, mgr)
	require.Equal(t, http.StatusOK, rec.Code)

	// Estado override, the original CRUD surface's edit.
	rec = ta.do(t, http.MethodPut, "/solicitudes/solicitud1", map[string]any{"estado": "rejected"}, mgr)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[OKResponse](t, rec)
	assert.True(t, updated.OK)

	rec = ta.do(t, http.MethodGet, "/solicitudes/solicitud1", nil, mgr)
	require.Equal(t, http.StatusOK, rec.Code)
	sol := decodeBody[SolicitudResponse](t, rec)
	assert.Equal(t, string(approval.StatusRejected), sol.Estado)

	// Only lifecycle statuses are accepted.
	rec = ta.do(t, http.MethodPut, "/solicitudes/solicitud1", map[string]any{"estado": "pendiente"}, mgr)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ta.do(t, http.MethodPut, "/solicitudes/no-such", map[string]any{"estado": "approved"}, mgr)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ta.do(t, http.MethodDelete, "/solicitudes/solicitud1", nil, mgr)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ta.do(t, http.MethodGet, "/solicitudes/solicitud1", nil, mgr)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMutationsGatedBySessionManager(t *testing.T) {
	manager := session.NewManager(session.Config{}, session.NotifierFunc(func(session.Event, time.Duration) {}), nil)
	ta := newTestAPI(t, WithSessionManager(manager))
	cookie := ta.login(t, "mgr1")
	manager.Start("mgr1", false)

	// Read-only mode blocks mutations with a machine-readable code.
	manager.EnterReadOnly()
	rec := ta.do(t, http.MethodPost, "/entidades", map[string]any{"nombre": "x"}, cookie)
	require.Equal(t, http.StatusForbidden, rec.Code)
	errResp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, codeReadOnly, errResp.Code)

	// Reads still pass.
	rec = ta.do(t, http.MethodGet, "/entidades", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)

	manager.ExitReadOnly()
	rec = ta.do(t, http.MethodPost, "/entidades", map[string]any{"nombre": "x"}, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReauthenticationStatus(t *testing.T) {
	ta := newTestAPI(t)
	cookie := ta.login(t, "mgr1")

	rec := ta.do(t, http.MethodGet, "/auth/reauthentication-status", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[ReauthStatusResponse](t, rec)
	assert.False(t, status.Authenticated)

	// A fresh re-authentication is reported while its window is open.
	sess, ok := ta.sessions.Get(context.Background(), cookie.Value)
	require.True(t, ok)
	sess.Reauthenticated = true
	sess.ReauthenticatedAt = time.Now()
	ta.sessions.Put(context.Background(), cookie.Value, sess)

	rec = ta.do(t, http.MethodGet, "/auth/reauthentication-status", nil, cookie)
	status = decodeBody[ReauthStatusResponse](t, rec)
	assert.True(t, status.Authenticated)
	require.NotNil(t, status.ReauthenticatedAt)

	// An old re-authentication no longer counts.
	sess.ReauthenticatedAt = time.Now().Add(-6 * time.Minute)
	ta.sessions.Put(context.Background(), cookie.Value, sess)
	rec = ta.do(t, http.MethodGet, "/auth/reauthentication-status", nil, cookie)
	status = decodeBody[ReauthStatusResponse](t, rec)
	assert.False(t, status.Authenticated)

	// Reset is one-shot consumption.
	sess.ReauthenticatedAt = time.Now()
	ta.sessions.Put(context.Background(), cookie.Value, sess)
	rec = ta.do(t, http.MethodPost, "/auth/reset-reauthentication", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ta.do(t, http.MethodGet, "/auth/reauthentication-status", nil, cookie)
	status = decodeBody[ReauthStatusResponse](t, rec)
	assert.False(t, status.Authenticated)
}

func TestLogoutDestroysSession(t *testing.T) {
	ta := newTestAPI(t)
	cookie := ta.login(t, "mgr1")

	rec := ta.do(t, http.MethodGet, "/logout", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ta.do(t, http.MethodGet, "/api/user", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnalysesEndpoints(t *testing.T) {
	ta := newTestAPI(t)
	cookie := ta.login(t, "ana1")

	rec := ta.do(t, http.MethodPost, "/analyses", CreateAnalysisRequest{URL: "https://example.com"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	an := decodeBody[analysis.Analysis](t, rec)
	assert.Equal(t, analysis.StateInProgress, an.State)
	assert.Equal(t, "g1", an.GroupID)

	// Report is not available until the scan completes.
	rec = ta.do(t, http.MethodGet, "/analyses/"+an.ID+"/report", nil, cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ta.do(t, http.MethodPost, "/analyses/"+an.ID+"/comments", CommentRequest{Contenido: "revisar"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	comment := decodeBody[analysis.Comment](t, rec)
	assert.Equal(t, "ana1", comment.AuthorID)

	rec = ta.do(t, http.MethodGet, "/analyses/"+an.ID+"/comments", nil, cookie)
	comments := decodeBody[[]analysis.Comment](t, rec)
	require.Len(t, comments, 1)

	// Another principal cannot delete someone else's comment.
	rec = ta.do(t, http.MethodDelete, "/analyses/"+an.ID+"/comments/"+comment.ID, nil, ta.login(t, "mgr1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ta.do(t, http.MethodDelete, "/analyses/"+an.ID+"/comments/"+comment.ID, nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// oauthStub fakes the provider's token and userinfo endpoints.
func oauthStub(t *testing.T, identity userInfo) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"stub-token","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(identity)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func oauthTestConfig(srv *httptest.Server) OAuthConfig {
	return OAuthConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		CallbackBase: "http://localhost:3001",
		StateSecret:  []byte("test-state-secret"),
		Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
		UserInfoURL:  srv.URL + "/userinfo",
	}
}

func TestGoogleLoginFlow(t *testing.T) {
	srv := oauthStub(t, userInfo{ID: "g-1", Email: "laura@example.com", Name: "Laura"})
	ta := newTestAPI(t, WithOAuth(oauthTestConfig(srv)))

	rec := ta.do(t, http.MethodGet, "/auth/google", nil, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	rec = ta.do(t, http.MethodGet, "/auth/google/callback?code=stub&state="+url.QueryEscape(state), nil, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasSuffix(rec.Header().Get("Location"), "/oauth-success"))

	// The session cookie authenticates and the role comes from the roster.
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	userRec := ta.do(t, http.MethodGet, "/api/user", nil, cookie)
	require.Equal(t, http.StatusOK, userRec.Code)
	user := decodeBody[UserResponse](t, userRec)
	assert.Equal(t, "mgr1", user.ID)
	assert.Equal(t, roster.RoleHumanAuthManager, user.Rol)
}

func TestGoogleLoginFlow_UnknownEmailBecomesAnalyst(t *testing.T) {
	srv := oauthStub(t, userInfo{ID: "g-2", Email: "nuevo@example.com", Name: "Nuevo"})
	ta := newTestAPI(t, WithOAuth(oauthTestConfig(srv)))

	rec := ta.do(t, http.MethodGet, "/auth/google", nil, nil)
	loc, _ := url.Parse(rec.Header().Get("Location"))
	state := loc.Query().Get("state")

	rec = ta.do(t, http.MethodGet, "/auth/google/callback?code=stub&state="+url.QueryEscape(state), nil, nil)
	require.Equal(t, http.StatusFound, rec.Code)

	p, err := ta.directory.ByEmail("nuevo@example.com")
	require.NoError(t, err)
	assert.Equal(t, roster.RoleAnalyst, p.Role)
}

func TestReauthenticateFlow(t *testing.T) {
	srv := oauthStub(t, userInfo{ID: "g-1", Email: "laura@example.com", Name: "Laura"})
	ta := newTestAPI(t, WithOAuth(oauthTestConfig(srv)))
	cookie := ta.login(t, "mgr1")

	rec := ta.do(t, http.MethodGet, "/auth/google/reauthenticate", nil, cookie)
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	rec = ta.do(t, http.MethodGet, "/auth/google/reauthenticate/callback?code=stub&state="+url.QueryEscape(state), nil, cookie)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasSuffix(rec.Header().Get("Location"), "/reauthentication-success"))

	sess, ok := ta.sessions.Get(context.Background(), cookie.Value)
	require.True(t, ok)
	assert.True(t, sess.Reauthenticated)
	assert.Equal(t, "mgr1", sess.PrincipalID, "primary session principal unchanged")
}

func TestReauthenticateFlow_IdentityMismatch(t *testing.T) {
	// The provider confirms a different account than the logged-in one.
	srv := oauthStub(t, userInfo{ID: "g-9", Email: "otra@example.com", Name: "Otra"})
	ta := newTestAPI(t, WithOAuth(oauthTestConfig(srv)))
	cookie := ta.login(t, "mgr1")

	rec := ta.do(t, http.MethodGet, "/auth/google/reauthenticate", nil, cookie)
	loc, _ := url.Parse(rec.Header().Get("Location"))
	state := loc.Query().Get("state")

	rec = ta.do(t, http.MethodGet, "/auth/google/reauthenticate/callback?code=stub&state="+url.QueryEscape(state), nil, cookie)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasSuffix(rec.Header().Get("Location"), "/reauthentication-failed"))

	sess, ok := ta.sessions.Get(context.Background(), cookie.Value)
	require.True(t, ok)
	assert.False(t, sess.Reauthenticated)
}

func TestReauthenticate_RequiresSession(t *testing.T) {
	srv := oauthStub(t, userInfo{Email: "laura@example.com"})
	ta := newTestAPI(t, WithOAuth(oauthTestConfig(srv)))

	rec := ta.do(t, http.MethodGet, "/auth/google/reauthenticate", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
