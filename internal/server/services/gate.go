// Package services contains the gateway business logic. This file implements
// GateService, the single-tenant flow: a shared viewer password guards
// downloads, a shared admin password guards uploads, and failures are
// counted per client until the client is locked out.
package services

import (
	"context"
	"errors"
	"io"
	"mime"
	"slices"
	"time"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/logging"
	"github.com/dmitrijs2005/resumegate/internal/server/auth"
	"github.com/dmitrijs2005/resumegate/internal/server/config"
	"github.com/dmitrijs2005/resumegate/internal/server/lockout"
	"github.com/dmitrijs2005/resumegate/internal/server/metrics"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/attempts"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/repomanager"
	versionsrepo "github.com/dmitrijs2005/resumegate/internal/server/repositories/versions"
	"github.com/dmitrijs2005/resumegate/internal/server/storage"
	"github.com/dmitrijs2005/resumegate/internal/server/versions"
)

// timeNow is swapped in tests to move the clock past a lockout.
var timeNow = time.Now

const adminKeyPrefix = "admin:"

// Upload scopes reported to metrics.
const (
	scopeSingle = "single"
	scopeTenant = "tenant"
)

var ErrMissingFile = errors.New("no file uploaded")

// Verdict is the rate-limit state reported back to a client.
type Verdict struct {
	Allowed           bool
	Locked            bool
	RemainingAttempts int
	TimeRemaining     time.Duration
}

// AuthError reports a refused credential check. Denied is set when the
// client was refused before its password was looked at.
type AuthError struct {
	Verdict Verdict
	Denied  bool
}

func (e *AuthError) Error() string {
	if e.Denied {
		return "too many failed attempts"
	}
	return "incorrect password"
}

func (e *AuthError) Unwrap() error {
	if e.Denied {
		return common.ErrRateLimited
	}
	return common.ErrInvalidCredential
}

// UploadRequest is a file received from a client. Size is -1 when unknown.
type UploadRequest struct {
	Filename    string
	ContentType string
	Body        io.Reader
	Size        int64
}

// Download is an opened version. The caller closes Stream.Body.
type Download struct {
	Version models.VersionEntry
	Stream  *models.ObjectStream
}

type GateService struct {
	attempts attempts.Repository
	versions versionsrepo.Repository
	store    storage.FileStore
	creds    *auth.CredentialVerifier
	issuer   *auth.SessionIssuer
	policy   lockout.Policy
	registry versions.Registry
	config   *config.Config
	metrics  *metrics.Metrics
	log      logging.Logger
}

func NewGateService(
	m repomanager.RepositoryManager,
	store storage.FileStore,
	creds *auth.CredentialVerifier,
	issuer *auth.SessionIssuer,
	cfg *config.Config,
	mx *metrics.Metrics,
	log logging.Logger,
) *GateService {
	return &GateService{
		attempts: m.Attempts(),
		versions: m.Versions(),
		store:    store,
		creds:    creds,
		issuer:   issuer,
		policy:   policyFromConfig(cfg),
		registry: versions.NewRegistry(cfg.RetentionCap),
		config:   cfg,
		metrics:  mx,
		log:      log.With("module", "gate"),
	}
}

func policyFromConfig(cfg *config.Config) lockout.Policy {
	p := lockout.DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.LockoutDuration > 0 {
		p.LockoutDuration = cfg.LockoutDuration
	}
	return p
}

// CheckAttempts reports the viewer rate-limit state of a client without
// counting an attempt.
func (s *GateService) CheckAttempts(ctx context.Context, clientID string) (Verdict, error) {
	_, d, err := s.state(ctx, clientID, timeNow())
	if err != nil {
		return Verdict{}, err
	}
	return verdictOf(d), nil
}

// Download checks the viewer password and opens the requested version, or
// the newest one when versionID is empty.
func (s *GateService) Download(ctx context.Context, clientID, password, versionID string) (*Download, error) {
	if _, err := s.authorize(ctx, clientID, password, auth.RoleViewer); err != nil {
		return nil, err
	}

	list, err := s.versions.Load(ctx, common.VersionsMetadataKey)
	if err != nil {
		s.log.Error(ctx, "failed to load versions", "error", err)
		return nil, common.ErrorInternal
	}

	entry, err := s.registry.Resolve(list, versionID)
	if err != nil {
		return nil, err
	}

	stream, err := openVersion(ctx, s.store, entry)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.log.Error(ctx, "failed to open version", "id", entry.ID, "error", err)
		}
		return nil, err
	}
	return &Download{Version: entry, Stream: stream}, nil
}

// ListVersions returns the retained versions, newest first.
func (s *GateService) ListVersions(ctx context.Context) ([]models.VersionEntry, error) {
	list, err := s.versions.Load(ctx, common.VersionsMetadataKey)
	if err != nil {
		s.log.Error(ctx, "failed to load versions", "error", err)
		return nil, common.ErrorInternal
	}
	kept, _ := s.registry.Truncate(list)
	return kept, nil
}

// ObjectStatus is a stored object and whether the version list still
// points at it.
type ObjectStatus struct {
	models.StoredObject
	Tracked bool
}

// ListObjects lists the file store and marks what the retained versions
// reference. Untracked objects are leftovers of evictions or rolled back
// uploads whose delete did not go through.
func (s *GateService) ListObjects(ctx context.Context) ([]ObjectStatus, error) {
	objs, err := s.store.List(ctx)
	if err != nil {
		s.log.Error(ctx, "failed to list stored objects", "error", err)
		return nil, common.ErrorInternal
	}
	kept, err := s.ListVersions(ctx)
	if err != nil {
		return nil, err
	}

	tracked := make(map[string]bool, len(kept))
	for _, v := range kept {
		tracked[v.ID] = true
	}
	out := make([]ObjectStatus, 0, len(objs))
	for _, o := range objs {
		out = append(out, ObjectStatus{StoredObject: *o, Tracked: tracked[o.ID]})
	}
	return out, nil
}

// Upload checks the admin password, stores the file under a generated name
// and records it as the newest version. Versions pushed past the retention
// cap are deleted from storage on a best-effort basis.
func (s *GateService) Upload(ctx context.Context, clientID, adminPassword string, in UploadRequest) (*models.VersionEntry, error) {
	if in.Body == nil {
		return nil, ErrMissingFile
	}
	if _, err := s.authorize(ctx, adminKeyPrefix+clientID, adminPassword, auth.RoleAdmin); err != nil {
		return nil, err
	}

	contentType, err := checkUpload(in, s.config.AllowedMimeTypes, s.config.MaxUploadBytes)
	if err != nil {
		return nil, err
	}

	now := timeNow()
	obj, err := s.store.Upload(ctx, storage.UploadInput{
		Name:        versions.GenerateName(s.config.VersionNamePrefix, now),
		ContentType: contentType,
		Body:        in.Body,
		Size:        in.Size,
	})
	if err != nil {
		s.log.Error(ctx, "failed to store upload", "error", err)
		return nil, common.ErrorInternal
	}

	entry := versionEntry(obj, contentType, now)
	evicted, err := addVersion(ctx, s.versions, s.registry, common.VersionsMetadataKey, entry)
	if err != nil {
		s.log.Error(ctx, "failed to record version", "id", entry.ID, "error", err)
		if derr := s.store.Delete(ctx, obj.ID); derr != nil {
			s.log.Warn(ctx, "failed to remove orphaned upload", "id", obj.ID, "error", derr)
		}
		return nil, common.ErrorInternal
	}

	deleteEvicted(ctx, s.store, evicted, s.metrics, s.log)
	s.metrics.Upload(scopeSingle)
	s.log.Info(ctx, "version uploaded", "id", entry.ID, "name", entry.Name, "evicted", len(evicted))
	return &entry, nil
}

// AdminLogin checks the admin password and mints an admin role token. Admin
// failures are counted apart from viewer failures of the same client.
func (s *GateService) AdminLogin(ctx context.Context, clientID, password string) (string, time.Duration, error) {
	if _, err := s.authorize(ctx, adminKeyPrefix+clientID, password, auth.RoleAdmin); err != nil {
		return "", 0, err
	}
	token, err := s.issuer.IssueRole(auth.RoleAdmin)
	if err != nil {
		s.log.Error(ctx, "failed to issue admin token", "error", err)
		return "", 0, common.ErrorInternal
	}
	return token, s.issuer.RoleValidity(), nil
}

// Attempts returns the stored record of a client key, or an empty record.
func (s *GateService) Attempts(ctx context.Context, clientID string) (*models.AttemptRecord, error) {
	rec, err := s.attempts.Get(ctx, clientID)
	if errors.Is(err, common.ErrorNotFound) {
		r := lockout.Reset(clientID)
		return &r, nil
	}
	if err != nil {
		s.log.Error(ctx, "failed to read attempts", "client", clientID, "error", err)
		return nil, common.ErrorInternal
	}
	return rec, nil
}

// ResetAttempts clears the record of a client key.
func (s *GateService) ResetAttempts(ctx context.Context, clientID string) error {
	if _, err := attempts.Reset(ctx, s.attempts, clientID); err != nil {
		s.log.Error(ctx, "failed to reset attempts", "client", clientID, "error", err)
		return common.ErrorInternal
	}
	s.log.Info(ctx, "attempts reset", "client", clientID)
	return nil
}

func (s *GateService) ListLocked(ctx context.Context) ([]*models.AttemptRecord, error) {
	list, err := s.attempts.ListLocked(ctx)
	if err != nil {
		s.log.Error(ctx, "failed to list locked clients", "error", err)
		return nil, common.ErrorInternal
	}
	return list, nil
}

// SweepExpired drops lock records that expired before the cutoff.
func (s *GateService) SweepExpired(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.attempts.SweepExpired(ctx, before)
	if err != nil {
		s.log.Error(ctx, "failed to sweep expired locks", "error", err)
		return 0, common.ErrorInternal
	}
	s.metrics.Swept(n)
	if n > 0 {
		s.log.Info(ctx, "expired locks swept", "count", n)
	}
	return n, nil
}

// state loads the record of key and decides on it. An expired lock or an
// exhausted counter is written back first, so the stored record always
// matches the decision.
func (s *GateService) state(ctx context.Context, key string, now time.Time) (*models.AttemptRecord, lockout.Decision, error) {
	rec, err := s.attempts.Get(ctx, key)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		rec = nil
	case err != nil:
		s.log.Error(ctx, "failed to read attempts", "client", key, "error", err)
		return nil, lockout.Decision{}, common.ErrorInternal
	}

	d := s.policy.Decide(rec, now)
	if !d.Expired && !d.ShouldLock {
		return rec, d, nil
	}

	rec, err = s.attempts.Update(ctx, key, func(cur *models.AttemptRecord) models.AttemptRecord {
		return s.policy.ApplyDecision(key, cur, s.policy.Decide(cur, now))
	})
	if err != nil {
		s.log.Error(ctx, "failed to normalise attempts", "client", key, "error", err)
		return nil, lockout.Decision{}, common.ErrorInternal
	}
	if d.ShouldLock {
		s.metrics.Lockout()
	}
	return rec, s.policy.Decide(rec, now), nil
}

// authorize runs the attempt-gated password check for role.
func (s *GateService) authorize(ctx context.Context, key, password string, role auth.Role) (Verdict, error) {
	now := timeNow()
	rec, d, err := s.state(ctx, key, now)
	if err != nil {
		return Verdict{}, err
	}

	if !d.Allowed {
		s.metrics.Verification(role.String(), metrics.OutcomeLocked)
		s.log.Info(ctx, "request denied while locked", "client", key, "role", role)
		return Verdict{}, &AuthError{Verdict: verdictOf(d), Denied: true}
	}

	if s.creds.Verify(password, role) {
		s.metrics.Verification(role.String(), metrics.OutcomeSuccess)
		if rec != nil && (rec.Attempts > 0 || rec.LastAttempt != nil) {
			if _, err := attempts.Reset(ctx, s.attempts, key); err != nil {
				s.log.Error(ctx, "failed to reset attempts", "client", key, "error", err)
				return Verdict{}, common.ErrorInternal
			}
		}
		return Verdict{Allowed: true, RemainingAttempts: s.policy.MaxAttempts}, nil
	}

	next, err := s.attempts.Update(ctx, key, func(cur *models.AttemptRecord) models.AttemptRecord {
		dd := s.policy.Decide(cur, now)
		n := s.policy.ApplyDecision(key, cur, dd)
		if !dd.Allowed {
			return n
		}
		return s.policy.RecordFailure(n, now)
	})
	if err != nil {
		s.log.Error(ctx, "failed to record failed attempt", "client", key, "error", err)
		return Verdict{}, common.ErrorInternal
	}

	v := Verdict{RemainingAttempts: s.policy.Remaining(next)}
	if next.Locked {
		s.metrics.Verification(role.String(), metrics.OutcomeLocked)
		s.metrics.Lockout()
		v.Locked = true
		if next.LockExpiry != nil {
			v.TimeRemaining = next.LockExpiry.Sub(now)
		}
		s.log.Warn(ctx, "client locked out", "client", key, "role", role, "attempts", next.Attempts)
	} else {
		s.metrics.Verification(role.String(), metrics.OutcomeFailure)
		s.log.Info(ctx, "incorrect password", "client", key, "role", role, "remaining", v.RemainingAttempts)
	}
	return Verdict{}, &AuthError{Verdict: v}
}

func verdictOf(d lockout.Decision) Verdict {
	return Verdict{
		Allowed:           d.Allowed,
		Locked:            d.Locked,
		RemainingAttempts: d.RemainingAttempts,
		TimeRemaining:     d.TimeRemaining,
	}
}

// checkUpload gates an upload on media type and declared size and returns
// the bare media type.
func checkUpload(in UploadRequest, allowed []string, maxBytes int64) (string, error) {
	mt, _, err := mime.ParseMediaType(in.ContentType)
	if err != nil || !slices.Contains(allowed, mt) {
		return "", common.ErrUnsupportedMediaType
	}
	if maxBytes > 0 && in.Size > maxBytes {
		return "", common.ErrPayloadTooLarge
	}
	return mt, nil
}

func versionEntry(obj *models.StoredObject, contentType string, now time.Time) models.VersionEntry {
	e := models.VersionEntry{
		ID:          obj.ID,
		Name:        obj.Name,
		CreatedTime: obj.CreatedTime,
		Date:        now.UTC(),
		MimeType:    obj.MimeType,
		Size:        obj.Size,
	}
	if e.CreatedTime.IsZero() {
		e.CreatedTime = e.Date
	}
	if e.MimeType == "" {
		e.MimeType = contentType
	}
	return e
}

// addVersion pushes entry onto the list stored under key and returns what
// fell off the end.
func addVersion(ctx context.Context, repo versionsrepo.Repository, reg versions.Registry, key string, entry models.VersionEntry) ([]models.VersionEntry, error) {
	var evicted []models.VersionEntry
	_, err := repo.Update(ctx, key, func(cur []models.VersionEntry) ([]models.VersionEntry, error) {
		next, ev := reg.Add(cur, entry)
		evicted = ev
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return evicted, nil
}

// deleteEvicted removes evicted files from storage. Failures are logged and
// otherwise ignored: the list no longer references them.
func deleteEvicted(ctx context.Context, store storage.FileStore, evicted []models.VersionEntry, mx *metrics.Metrics, log logging.Logger) {
	failed := 0
	for _, e := range evicted {
		if err := store.Delete(ctx, e.ID); err != nil {
			failed++
			log.Warn(ctx, "failed to delete evicted version", "id", e.ID, "error", err)
		}
	}
	mx.Evicted(len(evicted), failed)
}

func openVersion(ctx context.Context, store storage.FileStore, entry models.VersionEntry) (*models.ObjectStream, error) {
	stream, err := store.Download(ctx, entry.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	if stream.ContentType == "" || stream.ContentType == "application/octet-stream" {
		if entry.MimeType != "" {
			stream.ContentType = entry.MimeType
		}
	}
	return stream, nil
}
