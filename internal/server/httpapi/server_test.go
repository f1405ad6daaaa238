package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/cryptox"
	"github.com/dmitrijs2005/resumegate/internal/logging"
	"github.com/dmitrijs2005/resumegate/internal/server/auth"
	"github.com/dmitrijs2005/resumegate/internal/server/config"
	"github.com/dmitrijs2005/resumegate/internal/server/identity"
	"github.com/dmitrijs2005/resumegate/internal/server/metrics"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/resumegate/internal/server/services"
	"github.com/dmitrijs2005/resumegate/internal/server/storage"
)

const (
	viewerPassword = "open-sesame"
	adminPassword  = "root-of-trust"
)

var (
	hashOnce           sync.Once
	viewerHash, adHash string
)

func hashes() (string, string) {
	hashOnce.Do(func() {
		var err error
		if viewerHash, err = cryptox.HashPassword([]byte(viewerPassword), bcrypt.MinCost); err != nil {
			panic(err)
		}
		if adHash, err = cryptox.HashPassword([]byte(adminPassword), bcrypt.MinCost); err != nil {
			panic(err)
		}
	})
	return viewerHash, adHash
}

// memStore is a FileStore and TenantStore kept in memory.
type memStore struct {
	mu      sync.Mutex
	seq     int
	objects map[string][]byte
	names   map[string]string
	folder  string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, names: map[string]string{}}
}

func (s *memStore) Upload(_ context.Context, in storage.UploadInput) (*models.StoredObject, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("file-%d", s.seq)
	s.objects[id] = b
	s.names[id] = in.Name
	return &models.StoredObject{ID: id, Name: in.Name, MimeType: in.ContentType, Size: int64(len(b)), CreatedTime: time.Now().UTC()}, nil
}

func (s *memStore) List(context.Context) ([]*models.StoredObject, error) { return nil, nil }

func (s *memStore) Download(_ context.Context, id string) (*models.ObjectStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.ObjectStream{Body: io.NopCloser(bytes.NewReader(b)), ContentType: "application/pdf", Size: int64(len(b))}, nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, id)
	return nil
}

func (s *memStore) EnsureFolder(context.Context, string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.folder != "" {
		return s.folder, false, nil
	}
	s.folder = "folder"
	return s.folder, true, nil
}

type stubExchanger struct{}

func (stubExchanger) Exchange(_ context.Context, code string) (*identity.Identity, error) {
	if code == "bad" {
		return nil, fmt.Errorf("invalid_grant")
	}
	return &identity.Identity{GoogleID: "g-" + code, Email: code + "@example.com", Name: code, RefreshToken: "rt-" + code}, nil
}

func (stubExchanger) Client(context.Context, string) (*http.Client, error) {
	return http.DefaultClient, nil
}

type fixture struct {
	handler http.Handler
	store   *memStore
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.ThrottleRPS = 0
	for _, m := range mutate {
		m(cfg)
	}

	vh, ah := hashes()
	issuer, err := auth.NewSessionIssuer("secret", time.Hour, 24*time.Hour)
	require.NoError(t, err)
	vault, err := cryptox.NewTokenVault("vault-key")
	require.NoError(t, err)

	rm := repomanager.NewMemoryRepositoryManager()
	store := newMemStore()
	mx := metrics.New()
	log := logging.NewNop()

	gate := services.NewGateService(rm, store, auth.NewCredentialVerifier(vh, ah), issuer, cfg, mx, log)
	stores := func(*http.Client, string) services.TenantStore { return store }
	accounts := services.NewAccountService(rm, stubExchanger{}, vault, issuer, stores, cfg, mx, log)

	srv := NewServer(cfg, log, gate, accounts, mx, NewThrottle(cfg.ThrottleRPS, cfg.ThrottleBurst))
	return &fixture{handler: srv.Router(), store: store, metrics: mx}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, ip string, body any) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", ip)
	return req
}

func uploadRequest(t *testing.T, path, ip string, fields map[string]string, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="resume"; filename=%q`, filename))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Forwarded-For", ip)
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *fixture) upload(t *testing.T, content string) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, uploadRequest(t, "/api/upload-resume", "192.0.2.1",
		map[string]string{"adminPassword": adminPassword}, "cv.pdf", "application/pdf", []byte(content)))
}

func TestCheckAttempts_Fresh(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/check-attempts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"remainingAttempts":3,"locked":false}`, rec.Body.String())
}

func TestDownloadResume_LockoutResponses(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.upload(t, "%PDF-1").Code)

	ip := "198.51.100.9"
	for _, want := range []int{2, 1} {
		rec := f.do(t, jsonRequest(http.MethodPost, "/api/download-resume", ip, downloadRequest{Password: "nope"}))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decode[attemptsResponse](t, rec)
		assert.Equal(t, "Incorrect password", body.Error)
		assert.Equal(t, want, body.RemainingAttempts)
		assert.False(t, body.Locked)
	}

	rec := f.do(t, jsonRequest(http.MethodPost, "/api/download-resume", ip, downloadRequest{Password: "nope"}))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	third := decode[attemptsResponse](t, rec)
	assert.Equal(t, 0, third.RemainingAttempts)
	assert.True(t, third.Locked)
	assert.InDelta(t, (24 * time.Hour).Milliseconds(), third.TimeRemaining, 5000)

	rec = f.do(t, jsonRequest(http.MethodPost, "/api/download-resume", ip, downloadRequest{Password: viewerPassword}))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	denied := decode[attemptsResponse](t, rec)
	assert.True(t, denied.Locked)
	assert.Equal(t, 0, denied.RemainingAttempts)
	assert.Positive(t, denied.TimeRemaining)

	req := httptest.NewRequest(http.MethodGet, "/api/check-attempts", nil)
	req.Header.Set("X-Forwarded-For", ip)
	rec = f.do(t, req)
	assert.True(t, decode[attemptsResponse](t, rec).Locked)
}

func TestDownloadResume_Streams(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, jsonRequest(http.MethodPost, "/api/download-resume", "10.1.1.1", downloadRequest{Password: viewerPassword}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No resumes available", decode[errorResponse](t, rec).Error)

	require.Equal(t, http.StatusOK, f.upload(t, "%PDF-first").Code)
	require.Equal(t, http.StatusOK, f.upload(t, "%PDF-second").Code)

	rec = f.do(t, jsonRequest(http.MethodPost, "/api/download-resume", "10.1.1.1", downloadRequest{Password: viewerPassword}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-second", rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), `attachment; filename="Resume_`))
	assert.Equal(t, "11", rec.Header().Get("Content-Length"))

	rec = f.do(t, jsonRequest(http.MethodPost, "/api/download-resume", "10.1.1.1", downloadRequest{Password: viewerPassword, VersionID: "file-1"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-first", rec.Body.String())

	rec = f.do(t, jsonRequest(http.MethodPost, "/api/download-resume", "10.1.1.1", downloadRequest{Password: viewerPassword, VersionID: "file-9"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Version not found", decode[errorResponse](t, rec).Error)

	req := httptest.NewRequest(http.MethodPost, "/api/download-resume", strings.NewReader("{"))
	assert.Equal(t, http.StatusBadRequest, f.do(t, req).Code)
}

func TestUploadResume(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.MaxUploadBytes = 64 })

	t.Run("success", func(t *testing.T) {
		rec := f.upload(t, "%PDF")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[uploadResponse](t, rec)
		assert.True(t, body.Success)
		assert.Equal(t, "Resume uploaded successfully", body.Message)
		assert.Equal(t, "file-1", body.Version.ID)
		assert.Equal(t, "application/pdf", body.Version.MimeType)
	})

	t.Run("no file", func(t *testing.T) {
		rec := f.do(t, uploadRequest(t, "/api/upload-resume", "192.0.2.2", map[string]string{"adminPassword": adminPassword}, "", "", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No file uploaded", decode[errorResponse](t, rec).Error)
	})

	t.Run("wrong admin password", func(t *testing.T) {
		rec := f.do(t, uploadRequest(t, "/api/upload-resume", "192.0.2.3", map[string]string{"adminPassword": "x"}, "cv.pdf", "application/pdf", []byte("%PDF")))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, 2, decode[attemptsResponse](t, rec).RemainingAttempts)
	})

	t.Run("not a pdf", func(t *testing.T) {
		rec := f.do(t, uploadRequest(t, "/api/upload-resume", "192.0.2.4", map[string]string{"adminPassword": adminPassword}, "cv.docx", "application/msword", []byte("doc")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Only PDF files are allowed", decode[errorResponse](t, rec).Error)
	})

	t.Run("too large", func(t *testing.T) {
		rec := f.do(t, uploadRequest(t, "/api/upload-resume", "192.0.2.5", map[string]string{"adminPassword": adminPassword}, "cv.pdf", "application/pdf", bytes.Repeat([]byte("a"), 65)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("list versions", func(t *testing.T) {
		rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/list-versions", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[versionsResponse](t, rec)
		require.Len(t, body.Versions, 1)
		assert.Equal(t, "file-1", body.Versions[0].ID)
	})
}

func TestAdminAuth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, jsonRequest(http.MethodPost, "/api/admin-auth", "10.2.2.2", passwordRequest{Password: adminPassword}))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[adminAuthResponse](t, rec)
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, int64(3600), body.ExpiresIn)

	rec = f.do(t, jsonRequest(http.MethodPost, "/api/admin-auth", "10.2.2.2", passwordRequest{Password: viewerPassword}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid password", decode[attemptsResponse](t, rec).Error)
}

func TestCORSAndHealth(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.CORSAllowOrigin = "https://cv.example" })

	rec := f.do(t, httptest.NewRequest(http.MethodOptions, "/api/download-resume", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://cv.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://cv.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, httptest.NewRequest(http.MethodGet, "/api/check-attempts", nil))

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `resumegate_http_requests_total{method="GET",route="/api/check-attempts",status="200"} 1`)
}

func TestThrottle_RejectsBursts(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.ThrottleRPS = 0.001
		c.ThrottleBurst = 2
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := f.do(t, jsonRequest(http.MethodPost, "/api/admin-auth", "10.3.3.3", passwordRequest{Password: adminPassword}))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// reads are never throttled
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/list-versions", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTenantRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/resumes", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, jsonRequest(http.MethodPost, "/api/auth/google", "10.4.4.4", googleAuthRequest{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, jsonRequest(http.MethodPost, "/api/auth/google", "10.4.4.4", googleAuthRequest{Code: "bad"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, jsonRequest(http.MethodPost, "/api/auth/google", "10.4.4.4", googleAuthRequest{Code: "ada"}))
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[googleAuthResponse](t, rec)
	assert.Equal(t, "ada@example.com", login.User.Email)

	authed := func(req *http.Request) *http.Request {
		req.Header.Set("Authorization", "Bearer "+login.Token)
		return req
	}

	rec = f.do(t, authed(uploadRequest(t, "/api/resumes", "10.4.4.4", nil, "ada.pdf", "application/pdf", []byte("%PDF-ada"))))
	require.Equal(t, http.StatusOK, rec.Code)
	resume := decode[resumeResponse](t, rec).Resume
	assert.Equal(t, "ada.pdf", resume.Name)

	rec = f.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/resumes", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[resumesResponse](t, rec).Resumes, 1)

	rec = f.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/resumes/"+resume.ID+"/download", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-ada", rec.Body.String())
	assert.Equal(t, `attachment; filename="ada.pdf"`, rec.Header().Get("Content-Disposition"))

	rec = f.do(t, authed(httptest.NewRequest(http.MethodDelete, "/api/resumes/"+resume.ID, nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = f.do(t, authed(httptest.NewRequest(http.MethodDelete, "/api/resumes/"+resume.ID, nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTenantRoutes_NotMountedWithoutAccounts(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	vh, ah := hashes()
	issuer, err := auth.NewSessionIssuer("secret", 0, 0)
	require.NoError(t, err)
	gate := services.NewGateService(repomanager.NewMemoryRepositoryManager(), newMemStore(), auth.NewCredentialVerifier(vh, ah), issuer, cfg, nil, logging.NewNop())

	h := NewServer(cfg, logging.NewNop(), gate, nil, nil, nil).Router()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/resumes", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
