package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/filex"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

const metaSuffix = ".meta.json"

type localMeta struct {
	Name        string    `json:"name"`
	MimeType    string    `json:"mimeType"`
	Size        int64     `json:"size"`
	CreatedTime time.Time `json:"createdTime"`
}

// LocalStore keeps each object as <dir>/<id> with a JSON sidecar
// <dir>/<id>.meta.json.
type LocalStore struct {
	dir    string
	now    func() time.Time
	newKey func() string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return &LocalStore{dir: abs, now: time.Now, newKey: uuid.NewString}, nil
}

func (s *LocalStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", common.ErrorNotFound
	}
	return filepath.Join(s.dir, id), nil
}

func (s *LocalStore) Upload(_ context.Context, in UploadInput) (*models.StoredObject, error) {
	id := s.newKey()
	p, _ := s.path(id)

	var size int64
	err := filex.WriteFileAtomic(p, func(f *os.File) error {
		n, err := io.Copy(f, in.Body)
		size = n
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: write: %v", common.ErrStorage, err)
	}

	meta := localMeta{Name: in.Name, MimeType: in.ContentType, Size: size, CreatedTime: s.now().UTC()}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("%w: meta: %v", common.ErrStorage, err)
	}
	err = filex.WriteFileAtomic(p+metaSuffix, func(f *os.File) error {
		_, err := f.Write(b)
		return err
	})
	if err != nil {
		_ = os.Remove(p)
		return nil, fmt.Errorf("%w: meta: %v", common.ErrStorage, err)
	}

	return meta.object(id), nil
}

func (s *LocalStore) List(_ context.Context) ([]*models.StoredObject, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: readdir: %v", common.ErrStorage, err)
	}

	var out []*models.StoredObject
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, metaSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, metaSuffix)
		meta, err := s.readMeta(id)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, meta.object(id))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedTime.After(out[j].CreatedTime) })
	return out, nil
}

func (s *LocalStore) Download(_ context.Context, id string) (*models.ObjectStream, error) {
	meta, err := s.readMeta(id)
	if err != nil {
		return nil, err
	}
	p, _ := s.path(id)

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: open: %v", common.ErrStorage, err)
	}
	return &models.ObjectStream{Body: f, ContentType: meta.MimeType, Size: meta.Size}, nil
}

func (s *LocalStore) Delete(_ context.Context, id string) error {
	p, err := s.path(id)
	if err != nil {
		return nil
	}
	for _, name := range []string{p, p + metaSuffix} {
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: remove: %v", common.ErrStorage, err)
		}
	}
	return nil
}

func (s *LocalStore) readMeta(id string) (*localMeta, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p + metaSuffix)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: meta: %v", common.ErrStorage, err)
	}
	var m localMeta
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: meta: %v", common.ErrStorage, err)
	}
	return &m, nil
}

func (m *localMeta) object(id string) *models.StoredObject {
	return &models.StoredObject{ID: id, Name: m.Name, MimeType: m.MimeType, Size: m.Size, CreatedTime: m.CreatedTime}
}
