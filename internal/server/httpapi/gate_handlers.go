package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
	"github.com/dmitrijs2005/resumegate/internal/server/services"
)

// multipartOverhead is allowed on top of MaxUploadBytes for form fields
// and part headers.
const multipartOverhead = 1 << 20

type downloadRequest struct {
	Password  string `json:"password"`
	VersionID string `json:"versionId"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type versionsResponse struct {
	Versions []models.VersionEntry `json:"versions"`
}

type uploadResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Version models.VersionEntry `json:"version"`
}

type adminAuthResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

func (s *Server) checkAttempts(w http.ResponseWriter, r *http.Request) {
	v, err := s.gate.CheckAttempts(r.Context(), s.clientID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check attempts")
		return
	}
	writeJSON(w, http.StatusOK, attemptsBody("", v))
}

func (s *Server) listVersions(w http.ResponseWriter, r *http.Request) {
	list, err := s.gate.ListVersions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list versions")
		return
	}
	writeJSON(w, http.StatusOK, versionsResponse{Versions: list})
}

func (s *Server) downloadResume(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	dl, err := s.gate.Download(r.Context(), s.clientID(r), req.Password, req.VersionID)
	if err != nil {
		switch {
		case writeAuthError(w, err, "Incorrect password"):
		case errors.Is(err, common.ErrorNotFound) && req.VersionID == "":
			writeError(w, http.StatusNotFound, "No resumes available")
		case errors.Is(err, common.ErrorNotFound):
			writeError(w, http.StatusNotFound, "Version not found")
		default:
			writeError(w, http.StatusInternalServerError, "Download failed")
		}
		return
	}
	s.stream(w, r, dl)
}

func (s *Server) uploadResume(w http.ResponseWriter, r *http.Request) {
	in, cleanup, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	entry, err := s.gate.Upload(r.Context(), s.clientID(r), r.FormValue("adminPassword"), in)
	if err != nil {
		if !writeAuthError(w, err, "Invalid admin password") {
			writeUploadError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{Success: true, Message: "Resume uploaded successfully", Version: *entry})
}

func (s *Server) adminAuth(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, ttl, err := s.gate.AdminLogin(r.Context(), s.clientID(r), req.Password)
	if err != nil {
		if !writeAuthError(w, err, "Invalid password") {
			writeError(w, http.StatusInternalServerError, "Authentication failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, adminAuthResponse{Success: true, Token: token, ExpiresIn: int64(ttl.Seconds())})
}

// writeAuthError writes the 429 or 401 body for a refused credential and
// reports whether err was one.
func writeAuthError(w http.ResponseWriter, err error, wrongPassword string) bool {
	var ae *services.AuthError
	if !errors.As(err, &ae) {
		return false
	}
	if ae.Denied {
		body := attemptsBody("Too many failed attempts. Account locked.", ae.Verdict)
		body.Locked = true
		body.RemainingAttempts = 0
		writeJSON(w, http.StatusTooManyRequests, body)
		return true
	}
	writeJSON(w, http.StatusUnauthorized, attemptsBody(wrongPassword, ae.Verdict))
	return true
}

func writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrMissingFile):
		writeError(w, http.StatusBadRequest, "No file uploaded")
	case errors.Is(err, common.ErrUnsupportedMediaType):
		writeError(w, http.StatusBadRequest, "Only PDF files are allowed")
	case errors.Is(err, common.ErrPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
	case errors.Is(err, common.ErrReconsentRequired), errors.Is(err, common.ErrorUnauthorized):
		writeError(w, http.StatusUnauthorized, "Google access expired, sign in again")
	default:
		writeError(w, http.StatusInternalServerError, "Upload failed")
	}
}

// readUpload parses the multipart body and opens the "resume" part. A
// missing part yields an UploadRequest with a nil Body so the service
// reports it. On false the response has been written; otherwise the caller
// runs cleanup when done.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (services.UploadRequest, func(), bool) {
	limit := s.config.MaxUploadBytes
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		} else {
			writeError(w, http.StatusBadRequest, "Invalid multipart body")
		}
		return services.UploadRequest{}, nil, false
	}
	form := r.MultipartForm

	file, header, err := r.FormFile("resume")
	if err != nil {
		return services.UploadRequest{Size: -1}, func() { _ = form.RemoveAll() }, true
	}

	cleanup := func() {
		_ = file.Close()
		_ = form.RemoveAll()
	}
	return services.UploadRequest{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
		Size:        header.Size,
	}, cleanup, true
}

// stream copies a download to the client. A failure mid-copy can only be
// logged since the headers are already out.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, dl *services.Download) {
	defer dl.Stream.Body.Close()

	ct := dl.Stream.ContentType
	if ct == "" {
		ct = "application/pdf"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sanitizeFilename(dl.Version.Name)))
	if dl.Stream.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Stream.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, dl.Stream.Body); err != nil {
		s.logger.Warn(r.Context(), "download truncated", "id", dl.Version.ID, "error", err)
	}
}

func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '"' || r == '\\' {
			return -1
		}
		return r
	}, name)
	if name == "" {
		return "resume.pdf"
	}
	return name
}
