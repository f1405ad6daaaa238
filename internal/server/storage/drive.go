package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

const (
	DefaultDriveBaseURL   = "https://www.googleapis.com"
	DefaultDriveFolder    = "Resume Versions"
	driveFolderMimeType   = "application/vnd.google-apps.folder"
	driveFileFields       = "id,name,mimeType,size,createdTime"
	driveListFields       = "files(" + driveFileFields + ")"
	driveMaxErrorBodySize = 4 << 10
)

// DriveStore talks to the Drive v3 REST API through an HTTP client that
// already carries the user's OAuth credentials (see identity). Objects are
// kept in one folder; an empty folder id means "not created yet".
type DriveStore struct {
	client   *http.Client
	baseURL  string
	folderID string
}

func NewDriveStore(client *http.Client, baseURL, folderID string) *DriveStore {
	if baseURL == "" {
		baseURL = DefaultDriveBaseURL
	}
	return &DriveStore{client: client, baseURL: strings.TrimRight(baseURL, "/"), folderID: folderID}
}

func (s *DriveStore) FolderID() string { return s.folderID }

type driveFile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType"`
	Size        string `json:"size"`
	CreatedTime string `json:"createdTime"`
}

func (f driveFile) object() *models.StoredObject {
	obj := &models.StoredObject{ID: f.ID, Name: f.Name, MimeType: f.MimeType}
	if n, err := strconv.ParseInt(f.Size, 10, 64); err == nil {
		obj.Size = n
	}
	if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		obj.CreatedTime = t.UTC()
	}
	return obj
}

// EnsureFolder creates the folder on first use and returns its id. created
// reports whether a new folder was made, so the caller can persist it.
func (s *DriveStore) EnsureFolder(ctx context.Context, name string) (id string, created bool, err error) {
	if s.folderID != "" {
		return s.folderID, false, nil
	}
	if name == "" {
		name = DefaultDriveFolder
	}

	body, err := json.Marshal(map[string]string{"name": name, "mimeType": driveFolderMimeType})
	if err != nil {
		return "", false, err
	}

	var f driveFile
	u := s.baseURL + "/drive/v3/files?fields=id"
	if err := s.doJSON(ctx, http.MethodPost, u, "application/json", bytes.NewReader(body), &f); err != nil {
		return "", false, err
	}
	if f.ID == "" {
		return "", false, fmt.Errorf("%w: drive: folder create returned no id", common.ErrStorage)
	}

	s.folderID = f.ID
	return f.ID, true, nil
}

func (s *DriveStore) Upload(ctx context.Context, in UploadInput) (*models.StoredObject, error) {
	if s.folderID == "" {
		return nil, fmt.Errorf("%w: drive: no folder", common.ErrStorage)
	}

	meta, err := json.Marshal(map[string]any{
		"name":     in.Name,
		"parents":  []string{s.folderID},
		"mimeType": in.ContentType,
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	mh := textproto.MIMEHeader{}
	mh.Set("Content-Type", "application/json; charset=UTF-8")
	part, err := mw.CreatePart(mh)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(meta); err != nil {
		return nil, err
	}

	fh := textproto.MIMEHeader{}
	fh.Set("Content-Type", in.ContentType)
	part, err = mw.CreatePart(fh)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, in.Body); err != nil {
		return nil, fmt.Errorf("%w: drive: read body: %v", common.ErrStorage, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	u := s.baseURL + "/upload/drive/v3/files?uploadType=multipart&fields=" + url.QueryEscape(driveFileFields)
	var f driveFile
	if err := s.doJSON(ctx, http.MethodPost, u, "multipart/related; boundary="+mw.Boundary(), &buf, &f); err != nil {
		return nil, err
	}
	return f.object(), nil
}

func (s *DriveStore) List(ctx context.Context) ([]*models.StoredObject, error) {
	if s.folderID == "" {
		return []*models.StoredObject{}, nil
	}

	q := url.Values{}
	q.Set("q", fmt.Sprintf("'%s' in parents and trashed=false", strings.ReplaceAll(s.folderID, "'", `\'`)))
	q.Set("fields", driveListFields)
	q.Set("orderBy", "createdTime desc")

	var resp struct {
		Files []driveFile `json:"files"`
	}
	if err := s.doJSON(ctx, http.MethodGet, s.baseURL+"/drive/v3/files?"+q.Encode(), "", nil, &resp); err != nil {
		return nil, err
	}

	out := make([]*models.StoredObject, 0, len(resp.Files))
	for _, f := range resp.Files {
		out = append(out, f.object())
	}
	return out, nil
}

func (s *DriveStore) Download(ctx context.Context, id string) (*models.ObjectStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.fileURL(id)+"?alt=media", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: drive: %v", common.ErrStorage, err)
	}
	if err := checkStatus(resp); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return &models.ObjectStream{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}, nil
}

func (s *DriveStore) Delete(ctx context.Context, id string) error {
	err := s.doJSON(ctx, http.MethodDelete, s.fileURL(id), "", nil, nil)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	return err
}

func (s *DriveStore) fileURL(id string) string {
	return s.baseURL + "/drive/v3/files/" + url.PathEscape(id)
}

func (s *DriveStore) doJSON(ctx context.Context, method, u, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: drive: %v", common.ErrStorage, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: drive: decode: %v", common.ErrStorage, err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return common.ErrorNotFound
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, driveMaxErrorBodySize))
	return fmt.Errorf("%w: drive: %s: %s", common.ErrStorage, resp.Status, strings.TrimSpace(string(b)))
}
