package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/padronlabs/padron/importer"
	"github.com/padronlabs/padron/models"
	"github.com/padronlabs/padron/tlmt"
	"github.com/padronlabs/padron/warehouse"
	"github.com/padronlabs/padron/web"
	"github.com/padronlabs/padron/web/auth"
	"github.com/padronlabs/padron/web/memory"
	"github.com/padronlabs/padron/web/middleware"
)

type fakeProvider struct{}

func (fakeProvider) CreateUser(_ context.Context, email, _ string) (string, error) {
	if email == "taken@example.com" {
		return "", auth.ErrInvalidEmail
	}

	return "uid_" + email, nil
}

func (fakeProvider) VerifyToken(token string) (string, error) {
	if token != "good-token" {
		return "", auth.ErrInvalidToken
	}

	return "user_42", nil
}

type noopResolver struct{}

func (noopResolver) ValidateURL(context.Context, string) bool { return false }

func (noopResolver) Ingest(context.Context, string) (string, error) { return "", nil }

type recordingTelemetry struct {
	mu     sync.Mutex
	events []tlmt.Event
}

func (rt *recordingTelemetry) Send(_ context.Context, event tlmt.Event) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.events = append(rt.events, event)

	return nil
}

func (rt *recordingTelemetry) Close() error { return nil }

func (rt *recordingTelemetry) names() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	ans := make([]string, 0, len(rt.events))
	for _, ev := range rt.events {
		ans = append(ans, ev.Name)
	}

	return ans
}

// newTestEnv serves the routes through the same middleware chain apirunner
// mounts in production.
func newTestEnv(t *testing.T) (http.Handler, *recordingTelemetry) {
	t.Helper()

	svc := web.NewService(memory.New(), warehouse.NewMirror(warehouse.NewNoopSink(), nil), nil)
	provider := fakeProvider{}
	telemetry := &recordingTelemetry{}

	deps := Dependencies{
		Service:   svc,
		Importer:  importer.New(svc, noopResolver{}, nil),
		Provider:  provider,
		Auth:      auth.NewMiddleware(provider, nil),
		Telemetry: telemetry,
	}

	router := mux.NewRouter()
	NewHandlerGroup(deps).RegisterRoutes(router)

	logger := zap.NewNop()
	handler := middleware.Chain(router,
		middleware.CORS(nil),
		middleware.SecurityHeaders,
		middleware.RequestLogger(logger),
		middleware.Recover(logger),
	)

	return handler, telemetry
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	handler, _ := newTestEnv(t)

	return handler
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func validUser(id string) map[string]any {
	return map[string]any{
		"nombre":               "María",
		"apellidos":            "García",
		"email":                "maria@example.com",
		"numeroIdentificacion": id,
		"telefono":             "600111222",
		"fecha_nacimiento":     "1990-04-01",
	}
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, newTestRouter(t), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRegister(t *testing.T) {
	router := newTestRouter(t)

	t.Run("success", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/register", "", models.RegisterRequest{Email: "new@example.com", Password: "secret123"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp models.AuthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "uid_new@example.com", resp.UID)
	})

	t.Run("provider rejection", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/register", "", models.RegisterRequest{Email: "taken@example.com", Password: "secret123"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/register", "", models.RegisterRequest{Email: "x@example.com"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLogin(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/login", "", models.LoginRequest{Token: "good-token"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "user_42", resp.UID)

	rec = doJSON(t, router, http.MethodPost, "/login", "", models.LoginRequest{Token: "bad"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUsersEndpointsRequireToken(t *testing.T) {
	router := newTestRouter(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/users"},
		{http.MethodGet, "/users"},
		{http.MethodGet, "/users/search"},
		{http.MethodPost, "/users/bulk_upload"},
	}

	for _, p := range paths {
		rec := doJSON(t, router, p.method, p.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestCreateUser(t *testing.T) {
	router, telemetry := newTestEnv(t)

	rec := doJSON(t, router, http.MethodPost, "/users", "good-token", validUser("X1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Usuario creado exitosamente", resp.Message)
	assert.Contains(t, telemetry.names(), "user_created")

	rec = doJSON(t, router, http.MethodPost, "/users", "good-token", map[string]any{"nombre": "incompleto"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUsers_Pagination(t *testing.T) {
	router := newTestRouter(t)

	for i := 0; i < 25; i++ {
		rec := doJSON(t, router, http.MethodPost, "/users", "good-token", validUser(fmt.Sprintf("ID%04d", i)))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/users?page=3&limit=10", "good-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page models.UserPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 3, page.Pages)
	assert.Len(t, page.Data, 5)

	rec = doJSON(t, router, http.MethodGet, "/users?page=4&limit=10", "good-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Empty(t, page.Data)
	assert.Equal(t, 25, page.Total)

	for _, q := range []string{"?page=0", "?limit=0", "?limit=101", "?page=x"} {
		rec := doJSON(t, router, http.MethodGet, "/users"+q, "good-token", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestSearchUsers(t *testing.T) {
	router, telemetry := newTestEnv(t)

	rec := doJSON(t, router, http.MethodPost, "/users", "good-token", map[string]any{
		"nombre":               "Ramón",
		"apellidos":            "Núñez",
		"email":                "ramon@example.com",
		"numeroIdentificacion": "R1",
		"telefono":             "600777888",
		"fecha_nacimiento":     "1975-07-07",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/users/search?filtro=NUNEZ", "good-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page models.UserPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)

	assert.Contains(t, telemetry.names(), "search")

	// The event carries counters only, never the filter text.
	last := telemetry.events[len(telemetry.events)-1]
	assert.Equal(t, true, last.Properties["filtered"])
	assert.Equal(t, 1, last.Properties["results"])
	assert.NotContains(t, last.Properties, "filtro")
}

func uploadRequest(t *testing.T, token, filename, contentType, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename)}
	hdr["Content-Type"] = []string{contentType}

	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)

	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/users/bulk_upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	return req
}

func TestBulkUpload(t *testing.T) {
	router, telemetry := newTestEnv(t)

	csvBody := "nombre,apellidos,email,numeroIdentificacion,telefono,fecha_nacimiento\n" +
		"María,García,maria@example.com,X1,600111222,1990-04-01\n" +
		"Pedro,Ruiz,pedro@example.com,X2,600333444,1985-12-24\n"

	t.Run("success", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, uploadRequest(t, "good-token", "usuarios.csv", "text/csv", csvBody))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp models.MessageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "2 usuarios importados correctamente.", resp.Message)
		assert.Contains(t, telemetry.names(), "bulk_import")
	})

	t.Run("missing column", func(t *testing.T) {
		bad := strings.Replace(csvBody, "email", "correo", 1)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, uploadRequest(t, "good-token", "usuarios.csv", "text/csv", bad))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "email")
	})

	t.Run("unsupported media type", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, uploadRequest(t, "good-token", "usuarios.pdf", "application/pdf", "%PDF-1.4"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("other", "value"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/users/bulk_upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer good-token")

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
