package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/cryptox"
	"github.com/dmitrijs2005/resumegate/internal/logging"
	"github.com/dmitrijs2005/resumegate/internal/server/auth"
	"github.com/dmitrijs2005/resumegate/internal/server/config"
	"github.com/dmitrijs2005/resumegate/internal/server/identity"
	"github.com/dmitrijs2005/resumegate/internal/server/metrics"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/attempts"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/users"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/versions"
	"github.com/dmitrijs2005/resumegate/internal/server/storage"
)

const (
	viewerPassword = "open-sesame"
	adminPassword  = "root-of-trust"
)

var (
	hashOnce   sync.Once
	viewerHash string
	adminHash  string
)

func testHashes(t *testing.T) (string, string) {
	t.Helper()
	hashOnce.Do(func() {
		var err error
		if viewerHash, err = cryptox.HashPassword([]byte(viewerPassword), bcrypt.MinCost); err != nil {
			panic(err)
		}
		if adminHash, err = cryptox.HashPassword([]byte(adminPassword), bcrypt.MinCost); err != nil {
			panic(err)
		}
	})
	return viewerHash, adminHash
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return cfg
}

// fakeClock replaces timeNow for the duration of a test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func useFakeClock(t *testing.T, start time.Time) *fakeClock {
	t.Helper()
	c := &fakeClock{now: start}
	orig := timeNow
	timeNow = c.Now
	t.Cleanup(func() { timeNow = orig })
	return c
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingStore is an in-memory FileStore that records every call.
type recordingStore struct {
	mu      sync.Mutex
	seq     int
	objects map[string][]byte
	meta    map[string]models.StoredObject
	deleted []string
	folder  string

	uploadErr   error
	deleteErr   error
	downloadErr error
	listErr     error
	folderErr   error
	folderCalls int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{objects: map[string][]byte{}, meta: map[string]models.StoredObject{}}
}

func (s *recordingStore) Upload(_ context.Context, in storage.UploadInput) (*models.StoredObject, error) {
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	obj := models.StoredObject{
		ID:          fmt.Sprintf("obj-%d", s.seq),
		Name:        in.Name,
		MimeType:    in.ContentType,
		Size:        int64(len(b)),
		CreatedTime: time.Date(2026, 10, 19, 12, s.seq, 0, 0, time.UTC),
	}
	s.objects[obj.ID] = b
	s.meta[obj.ID] = obj
	return &obj, nil
}

func (s *recordingStore) List(context.Context) ([]*models.StoredObject, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.StoredObject, 0, len(s.meta))
	for _, o := range s.meta {
		o := o
		out = append(out, &o)
	}
	slices.SortFunc(out, func(a, b *models.StoredObject) int {
		return b.CreatedTime.Compare(a.CreatedTime)
	})
	return out, nil
}

func (s *recordingStore) Download(_ context.Context, id string) (*models.ObjectStream, error) {
	if s.downloadErr != nil {
		return nil, s.downloadErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.ObjectStream{Body: io.NopCloser(bytes.NewReader(b)), ContentType: s.meta[id].MimeType, Size: int64(len(b))}, nil
}

func (s *recordingStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, id)
	delete(s.meta, id)
	return nil
}

func (s *recordingStore) EnsureFolder(_ context.Context, _ string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folderCalls++
	if s.folderErr != nil {
		return "", false, s.folderErr
	}
	if s.folder != "" {
		return s.folder, false, nil
	}
	s.folder = "folder-1"
	return s.folder, true, nil
}

func (s *recordingStore) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// fakeManager lets a test swap single repositories for failing ones.
type fakeManager struct {
	attempts attempts.Repository
	versions versions.Repository
	users    users.Repository
}

func newFakeManager() *fakeManager {
	m := repomanager.NewMemoryRepositoryManager()
	return &fakeManager{attempts: m.Attempts(), versions: m.Versions(), users: m.Users()}
}

func (m *fakeManager) Attempts() attempts.Repository       { return m.attempts }
func (m *fakeManager) Versions() versions.Repository       { return m.versions }
func (m *fakeManager) Users() users.Repository             { return m.users }
func (m *fakeManager) RunMigrations(context.Context) error { return nil }
func (m *fakeManager) Close() error                        { return nil }

var errBackend = errors.New("backend down")

type failingAttempts struct{ attempts.Repository }

func (failingAttempts) Get(context.Context, string) (*models.AttemptRecord, error) {
	return nil, errBackend
}

type failingVersions struct{ versions.Repository }

func (failingVersions) Update(context.Context, string, versions.MutateFunc) ([]models.VersionEntry, error) {
	return nil, errBackend
}

type fakeExchanger struct {
	identity    *identity.Identity
	exchangeErr error
	clientErr   error
	lastRefresh string
}

func (f *fakeExchanger) Exchange(context.Context, string) (*identity.Identity, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	id := *f.identity
	return &id, nil
}

func (f *fakeExchanger) Client(_ context.Context, refresh string) (*http.Client, error) {
	if f.clientErr != nil {
		return nil, f.clientErr
	}
	f.lastRefresh = refresh
	return http.DefaultClient, nil
}

func newIssuer(t *testing.T) *auth.SessionIssuer {
	t.Helper()
	iss, err := auth.NewSessionIssuer("test-secret", time.Hour, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewSessionIssuer: %v", err)
	}
	return iss
}

func newGate(t *testing.T, m repomanager.RepositoryManager, store storage.FileStore, cfg *config.Config) *GateService {
	t.Helper()
	vh, ah := testHashes(t)
	return NewGateService(m, store, auth.NewCredentialVerifier(vh, ah), newIssuer(t), cfg, metrics.New(), logging.NewNop())
}

func pdf(body string) UploadRequest {
	return UploadRequest{Filename: "cv.pdf", ContentType: "application/pdf", Body: bytes.NewBufferString(body), Size: int64(len(body))}
}
