package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/xferlogic/gateway/internal/auth"
	"github.com/xferlogic/gateway/internal/core"
	"github.com/xferlogic/gateway/internal/store"
)

const testSecret = "api-test-secret"

// recordingStore counts usage records on top of a real SQLite store.
type recordingStore struct {
	store.Store
	mu    sync.Mutex
	usage []store.UsageRecord
}

func (s *recordingStore) CreateUsageRecord(ctx context.Context, rec *store.UsageRecord) error {
	if err := s.Store.CreateUsageRecord(ctx, rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, *rec)
	return nil
}

func (s *recordingStore) records() []store.UsageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.UsageRecord(nil), s.usage...)
}

type stubText struct {
	name string
	err  error
}

func (p *stubText) Name() string { return p.name }

func (p *stubText) GenerateText(_ context.Context, prompt string) (*core.TextResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &core.TextResult{Text: p.name + ":" + prompt, TokenCount: 10, EstimatedCost: 0.001, Provider: p.name}, nil
}

type stubImage struct{ err error }

func (p *stubImage) GenerateImage(_ context.Context, prompt string) (*core.ImageResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &core.ImageResult{URL: "https://img.example.com/" + prompt + ".png", EstimatedCost: core.ImageFlatCost}, nil
}

type testEnv struct {
	router http.Handler
	store  *recordingStore
	tokens *auth.TokenService
	openai *stubText
	gemini *stubText
	images *stubImage
}

type envOption func(*envSettings)

type envSettings struct {
	routerOpts   RouterOptions
	exposeErrors bool
}

func withRouterOptions(o RouterOptions) envOption {
	return func(s *envSettings) { s.routerOpts = o }
}

func withHiddenProviderErrors() envOption {
	return func(s *envSettings) { s.exposeErrors = false }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	settings := envSettings{
		routerOpts:   RouterOptions{MaxBodyBytes: 20 << 20, RateLimitPerMinute: 0},
		exposeErrors: true,
	}
	for _, o := range opts {
		o(&settings)
	}

	sqlite, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	env := &testEnv{
		store:  &recordingStore{Store: sqlite},
		tokens: auth.NewTokenService(testSecret, 7*24*time.Hour),
		openai: &stubText{name: core.ProviderOpenAI},
		gemini: &stubText{name: core.ProviderGemini},
		images: &stubImage{},
	}

	usage := core.NewUsageRecorder(env.store, false, log)
	users := core.NewUserService(env.store, env.tokens, log)
	generation := core.NewGenerationService(env.openai, env.gemini, env.images, usage, log)
	documents := core.NewDocumentService(usage, log)

	h := NewAPIHandler(users, generation, documents, env.tokens, env.store, log, settings.exposeErrors)
	env.router = NewRouter(h, log, settings.routerOpts)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) registerAndLogin(t *testing.T, email string) string {
	t.Helper()
	creds := map[string]string{"email": email, "password": "pw-" + email}

	rec := e.do(t, http.MethodPost, "/api/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out["token"])
	return out["token"]
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRegisterLoginMe(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "ada@example.com")

	rec := env.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ada@example.com", body["email"])
	assert.NotZero(t, body["id"])
	assert.Contains(t, body, "created_at")
	assert.NotContains(t, body, "password_hash")
	assert.NotContains(t, body, "PasswordHash")

	identity, err := env.tokens.Verify(token)
	require.NoError(t, err)
	assert.EqualValues(t, body["id"], identity.UserID)
}

func TestRegister_Responses(t *testing.T) {
	env := newTestEnv(t)
	creds := map[string]string{"email": "dup@example.com", "password": "pw"}

	rec := env.do(t, http.MethodPost, "/api/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])

	rec = env.do(t, http.MethodPost, "/api/register", "", creds)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, core.ErrEmailExists.Error(), decodeBody(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/api/register", "", map[string]string{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/register", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"email":    "long@example.com",
		"password": strings.Repeat("p", 80),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, core.ErrPasswordTooLong.Error(), decodeBody(t, rec)["error"])
}

func TestLogin_UniformFailure(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndLogin(t, "ada@example.com")

	wrong := env.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "ada@example.com", "password": "nope"})
	unknown := env.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "ghost@example.com", "password": "nope"})

	require.Equal(t, http.StatusBadRequest, wrong.Code)
	require.Equal(t, http.StatusBadRequest, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
}

func TestAuthGate(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "ada@example.com")

	expired, err := auth.NewTokenService(testSecret, -time.Hour).Issue(1, "ada@example.com")
	require.NoError(t, err)
	forged, err := auth.NewTokenService("other-secret", time.Hour).Issue(1, "ada@example.com")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"scheme only", "Bearer", http.StatusUnauthorized},
		{"malformed", "Bearer not-a-token", http.StatusForbidden},
		{"expired", "Bearer " + expired, http.StatusForbidden},
		{"wrong signature", "Bearer " + forged, http.StatusForbidden},
		{"valid", "Bearer " + token, http.StatusOK},
		{"valid lowercase scheme", "bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want != http.StatusOK {
				assert.NotEmpty(t, decodeBody(t, rec)["error"])
			}
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/text", "/api/image", "/api/pdf", "/api/docx", "/api/excel", "/api/svg"} {
		rec := env.do(t, http.MethodPost, path, "", map[string]string{})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	assert.Empty(t, env.store.records())
}

func TestText(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "ada@example.com")

	rec := env.do(t, http.MethodPost, "/api/text", token, map[string]string{"prompt": "hi", "model": "openai"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "openai:hi", decodeBody(t, rec)["result"])

	rec = env.do(t, http.MethodPost, "/api/text", token, map[string]string{"prompt": "", "model": "other"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gemini:", decodeBody(t, rec)["result"])

	records := env.store.records()
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, core.EndpointText, r.Endpoint)
		assert.Equal(t, 10, r.TokenCount)
	}
}

func TestText_ProviderError(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "ada@example.com")
	env.openai.err = &core.ProviderError{Provider: core.ProviderOpenAI, Err: io.ErrUnexpectedEOF}

	rec := env.do(t, http.MethodPost, "/api/text", token, map[string]string{"prompt": "hi", "model": "openai"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, io.ErrUnexpectedEOF.Error(), decodeBody(t, rec)["error"])
	assert.Empty(t, env.store.records())
}

func TestText_ProviderErrorHidden(t *testing.T) {
	env := newTestEnv(t, withHiddenProviderErrors())
	token := env.registerAndLogin(t, "ada@example.com")
	env.gemini.err = io.ErrUnexpectedEOF

	rec := env.do(t, http.MethodPost, "/api/text", token, map[string]string{"prompt": "hi"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, providerErrorMessage, decodeBody(t, rec)["error"])
}

func TestImage(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "ada@example.com")

	rec := env.do(t, http.MethodPost, "/api/image", token, map[string]string{"prompt": "cat"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://img.example.com/cat.png", decodeBody(t, rec)["image"])

	records := env.store.records()
	require.Len(t, records, 1)
	assert.Equal(t, core.EndpointImage, records[0].Endpoint)
	assert.InDelta(t, core.ImageFlatCost, records[0].EstimatedCost, 1e-12)
}

func TestDocuments(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "ada@example.com")
	identity, err := env.tokens.Verify(token)
	require.NoError(t, err)

	tests := []struct {
		path        string
		body        any
		contentType string
		endpoint    string
		prefix      string
	}{
		{"/api/pdf", map[string]string{"text": "hello"}, contentTypePDF, core.EndpointPDF, "%PDF-"},
		{"/api/docx", map[string]string{"text": "hello"}, contentTypeDOCX, core.EndpointDOCX, "PK"},
		{"/api/excel", map[string]any{"rows": [][]any{{"a", 1}, {"b", 2}}}, contentTypeXLSX, core.EndpointExcel, "PK"},
		{"/api/svg", map[string]string{"svg": "<svg/>"}, contentTypeSVG, core.EndpointSVG, "<svg/>"},
	}
	for i, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, tt.path, token, tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.True(t, strings.HasPrefix(rec.Body.String(), tt.prefix))

			records := env.store.records()
			require.Len(t, records, i+1)
			last := records[len(records)-1]
			assert.Equal(t, tt.endpoint, last.Endpoint)
			assert.Equal(t, identity.UserID, last.UserID)
		})
	}
}

func TestExcel_RowOrder(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "ada@example.com")

	rec := env.do(t, http.MethodPost, "/api/excel", token, `{"rows": [["a", 1], ["b", 2]]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "document.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "1"}, {"b", "2"}}, rows)
}

func TestExcel_RowTooWide(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "ada@example.com")

	row := "[" + strings.TrimSuffix(strings.Repeat("null,", excelize.MaxColumns+1), ",") + "]"
	rec := env.do(t, http.MethodPost, "/api/excel", token, `{"rows": [`+row+`]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], core.ErrInvalidDocument.Error())
	assert.Empty(t, env.store.records())
}

func TestBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, withRouterOptions(RouterOptions{MaxBodyBytes: 64}))

	body := `{"email": "` + strings.Repeat("a", 200) + `@example.com", "password": "pw"}`
	rec := env.do(t, http.MethodPost, "/api/register", "", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, withRouterOptions(RouterOptions{MaxBodyBytes: 1 << 20, RateLimitPerMinute: 1}))
	token := env.registerAndLogin(t, "ada@example.com")

	rec := env.do(t, http.MethodPost, "/api/text", token, map[string]string{"prompt": "1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/text", token, map[string]string{"prompt": "2"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Documents are not rate limited.
	rec = env.do(t, http.MethodPost, "/api/svg", token, map[string]string{"svg": "<svg/>"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Limits are per user.
	other := env.registerAndLogin(t, "bob@example.com")
	rec = env.do(t, http.MethodPost, "/api/text", other, map[string]string{"prompt": "3"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}
