package services

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/cryptox"
	"github.com/dmitrijs2005/resumegate/internal/logging"
	"github.com/dmitrijs2005/resumegate/internal/server/auth"
	"github.com/dmitrijs2005/resumegate/internal/server/config"
	"github.com/dmitrijs2005/resumegate/internal/server/identity"
	"github.com/dmitrijs2005/resumegate/internal/server/metrics"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/repomanager"
	usersrepo "github.com/dmitrijs2005/resumegate/internal/server/repositories/users"
	versionsrepo "github.com/dmitrijs2005/resumegate/internal/server/repositories/versions"
	"github.com/dmitrijs2005/resumegate/internal/server/storage"
	"github.com/dmitrijs2005/resumegate/internal/server/versions"
)

// Exchanger turns an authorization code into an identity and a refresh
// token into an authorised HTTP client.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*identity.Identity, error)
	Client(ctx context.Context, refreshToken string) (*http.Client, error)
}

// TenantStore is a per-user file store that keeps its files in a folder it
// creates on first use.
type TenantStore interface {
	storage.FileStore
	EnsureFolder(ctx context.Context, name string) (id string, created bool, err error)
}

// TenantStoreFactory binds a store to one user's client and folder.
type TenantStoreFactory func(client *http.Client, folderID string) TenantStore

// DriveStores builds Drive-backed tenant stores against baseURL.
func DriveStores(baseURL string) TenantStoreFactory {
	return func(client *http.Client, folderID string) TenantStore {
		return storage.NewDriveStore(client, baseURL, folderID)
	}
}

// LoginResult is returned by a successful Google sign-in.
type LoginResult struct {
	Token string
	User  models.Profile
}

// AccountService runs the multi-tenant flow: Google sign-in, session
// tokens, and a bounded list of résumés per user kept in the user's Drive.
type AccountService struct {
	users     usersrepo.Repository
	versions  versionsrepo.Repository
	exchanger Exchanger
	vault     *cryptox.TokenVault
	issuer    *auth.SessionIssuer
	stores    TenantStoreFactory
	registry  versions.Registry
	config    *config.Config
	metrics   *metrics.Metrics
	log       logging.Logger
}

func NewAccountService(
	m repomanager.RepositoryManager,
	exchanger Exchanger,
	vault *cryptox.TokenVault,
	issuer *auth.SessionIssuer,
	stores TenantStoreFactory,
	cfg *config.Config,
	mx *metrics.Metrics,
	log logging.Logger,
) *AccountService {
	return &AccountService{
		users:     m.Users(),
		versions:  m.Versions(),
		exchanger: exchanger,
		vault:     vault,
		issuer:    issuer,
		stores:    stores,
		registry:  versions.NewRegistry(cfg.TenantRetentionCap),
		config:    cfg,
		metrics:   mx,
		log:       log.With("module", "account"),
	}
}

// GoogleLogin exchanges code, stores or refreshes the account and returns a
// session token. Google only issues a refresh token on first consent; later
// logins keep the stored one. With neither, ErrReconsentRequired is returned.
func (s *AccountService) GoogleLogin(ctx context.Context, code string) (*LoginResult, error) {
	id, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		s.log.Warn(ctx, "google exchange failed", "error", err)
		return nil, common.ErrorUnauthorized
	}

	existing, err := s.users.GetByGoogleID(ctx, id.GoogleID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.log.Error(ctx, "failed to look up user", "error", err)
		return nil, common.ErrorInternal
	}

	var sealed string
	switch {
	case id.RefreshToken != "":
		sealed, err = s.vault.Encrypt(id.RefreshToken)
		if err != nil {
			s.log.Error(ctx, "failed to seal refresh token", "error", err)
			return nil, common.ErrorInternal
		}
	case existing != nil && existing.RefreshToken != "":
		sealed = existing.RefreshToken
	default:
		return nil, common.ErrReconsentRequired
	}

	user, err := s.users.Upsert(ctx, &models.User{
		GoogleID:     id.GoogleID,
		Email:        id.Email,
		Name:         id.Name,
		Picture:      id.Picture,
		RefreshToken: sealed,
	})
	if err != nil {
		s.log.Error(ctx, "failed to store user", "error", err)
		return nil, common.ErrorInternal
	}

	token, err := s.issuer.IssueIdentity(user.ID, user.Email)
	if err != nil {
		s.log.Error(ctx, "failed to issue session", "error", err)
		return nil, common.ErrorInternal
	}

	s.log.Info(ctx, "user signed in", "user", user.ID)
	return &LoginResult{Token: token, User: user.Profile()}, nil
}

// Authenticate resolves a session token to its user.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil || claims.UserID == "" {
		return nil, common.ErrorUnauthorized
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		s.log.Error(ctx, "failed to load user", "user", claims.UserID, "error", err)
		return nil, common.ErrorInternal
	}
	return user, nil
}

func (s *AccountService) ListResumes(ctx context.Context, user *models.User) ([]models.VersionEntry, error) {
	list, err := s.versions.Load(ctx, common.TenantVersionsKey(user.ID))
	if err != nil {
		s.log.Error(ctx, "failed to load resumes", "user", user.ID, "error", err)
		return nil, common.ErrorInternal
	}
	return list, nil
}

// UploadResume stores a PDF in the user's folder, creating the folder on
// first use, and records it at the front of the user's list.
func (s *AccountService) UploadResume(ctx context.Context, user *models.User, in UploadRequest) (*models.VersionEntry, error) {
	if in.Body == nil {
		return nil, ErrMissingFile
	}
	contentType, err := checkUpload(in, s.config.AllowedMimeTypes, s.config.MaxUploadBytes)
	if err != nil {
		return nil, err
	}

	store, err := s.storeFor(ctx, user)
	if err != nil {
		return nil, err
	}

	folderID, created, err := store.EnsureFolder(ctx, s.config.DriveFolderName)
	if err != nil {
		s.log.Error(ctx, "failed to prepare drive folder", "user", user.ID, "error", err)
		return nil, common.ErrorInternal
	}
	if created {
		if err := s.users.SetDriveFolder(ctx, user.ID, folderID); err != nil {
			s.log.Error(ctx, "failed to save drive folder", "user", user.ID, "error", err)
			return nil, common.ErrorInternal
		}
		user.DriveFolderID = folderID
	}

	now := timeNow()
	obj, err := store.Upload(ctx, storage.UploadInput{
		Name:        uploadName(in.Filename, s.config.VersionNamePrefix, now),
		ContentType: contentType,
		Body:        in.Body,
		Size:        in.Size,
	})
	if err != nil {
		s.log.Error(ctx, "failed to store upload", "user", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	entry := versionEntry(obj, contentType, now)
	evicted, err := addVersion(ctx, s.versions, s.registry, common.TenantVersionsKey(user.ID), entry)
	if err != nil {
		s.log.Error(ctx, "failed to record resume", "user", user.ID, "error", err)
		if derr := store.Delete(ctx, obj.ID); derr != nil {
			s.log.Warn(ctx, "failed to remove orphaned upload", "id", obj.ID, "error", derr)
		}
		return nil, common.ErrorInternal
	}

	deleteEvicted(ctx, store, evicted, s.metrics, s.log)
	s.metrics.Upload(scopeTenant)
	return &entry, nil
}

// DownloadResume opens one of the user's résumés. Ids outside the user's
// list are reported as not found.
func (s *AccountService) DownloadResume(ctx context.Context, user *models.User, id string) (*Download, error) {
	if id == "" {
		return nil, common.ErrorNotFound
	}
	list, err := s.ListResumes(ctx, user)
	if err != nil {
		return nil, err
	}
	entry, err := s.registry.Resolve(list, id)
	if err != nil {
		return nil, err
	}

	store, err := s.storeFor(ctx, user)
	if err != nil {
		return nil, err
	}
	stream, err := openVersion(ctx, store, entry)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.log.Error(ctx, "failed to open resume", "user", user.ID, "id", id, "error", err)
		}
		return nil, err
	}
	return &Download{Version: entry, Stream: stream}, nil
}

// DeleteResume removes the file from storage, then from the user's list.
func (s *AccountService) DeleteResume(ctx context.Context, user *models.User, id string) error {
	list, err := s.ListResumes(ctx, user)
	if err != nil {
		return err
	}
	if _, err := s.registry.Resolve(list, id); err != nil || id == "" {
		return common.ErrorNotFound
	}

	store, err := s.storeFor(ctx, user)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, id); err != nil {
		s.log.Error(ctx, "failed to delete resume", "user", user.ID, "id", id, "error", err)
		return common.ErrorInternal
	}

	_, err = s.versions.Update(ctx, common.TenantVersionsKey(user.ID), func(cur []models.VersionEntry) ([]models.VersionEntry, error) {
		next, _, rerr := s.registry.Remove(cur, id)
		if errors.Is(rerr, common.ErrorNotFound) {
			return cur, nil
		}
		return next, rerr
	})
	if err != nil {
		s.log.Error(ctx, "failed to update resume list", "user", user.ID, "error", err)
		return common.ErrorInternal
	}
	return nil
}

// storeFor opens the user's refresh token and binds a store to it.
func (s *AccountService) storeFor(ctx context.Context, user *models.User) (TenantStore, error) {
	refresh, err := s.vault.Decrypt(user.RefreshToken)
	if err != nil {
		s.log.Warn(ctx, "stored refresh token unusable", "user", user.ID, "error", err)
		return nil, common.ErrorUnauthorized
	}
	client, err := s.exchanger.Client(ctx, refresh)
	if err != nil {
		if errors.Is(err, common.ErrReconsentRequired) {
			return nil, common.ErrReconsentRequired
		}
		s.log.Error(ctx, "failed to build drive client", "user", user.ID, "error", err)
		return nil, common.ErrorInternal
	}
	return s.stores(client, user.DriveFolderID), nil
}

// uploadName keeps the client's filename when it has one.
func uploadName(filename, prefix string, now time.Time) string {
	base := strings.TrimSpace(filepath.Base(filename))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return versions.GenerateName(prefix, now)
	}
	return base
}
