package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

type googleAuthRequest struct {
	Code string `json:"code"`
}

type googleAuthResponse struct {
	Token string         `json:"token"`
	User  models.Profile `json:"user"`
}

type resumesResponse struct {
	Resumes []models.VersionEntry `json:"resumes"`
}

type resumeResponse struct {
	Resume models.VersionEntry `json:"resume"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (s *Server) googleAuth(w http.ResponseWriter, r *http.Request) {
	var req googleAuthRequest
	if err := decodeJSON(r, &req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	res, err := s.accounts.GoogleLogin(r.Context(), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrReconsentRequired):
			writeError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, common.ErrorUnauthorized):
			writeError(w, http.StatusUnauthorized, "Google authentication failed")
		default:
			writeError(w, http.StatusInternalServerError, "Authentication failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, googleAuthResponse{Token: res.Token, User: res.User})
}

func (s *Server) listResumes(w http.ResponseWriter, r *http.Request) {
	list, err := s.accounts.ListResumes(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list resumes")
		return
	}
	writeJSON(w, http.StatusOK, resumesResponse{Resumes: list})
}

func (s *Server) uploadTenantResume(w http.ResponseWriter, r *http.Request) {
	in, cleanup, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	entry, err := s.accounts.UploadResume(r.Context(), userFrom(r.Context()), in)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resumeResponse{Resume: *entry})
}

func (s *Server) downloadTenantResume(w http.ResponseWriter, r *http.Request) {
	dl, err := s.accounts.DownloadResume(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeTenantError(w, err, "Failed to download resume")
		return
	}
	s.stream(w, r, dl)
}

func (s *Server) deleteTenantResume(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.DeleteResume(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeTenantError(w, err, "Failed to delete resume")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func writeTenantError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, "Resume not found")
	case errors.Is(err, common.ErrReconsentRequired), errors.Is(err, common.ErrorUnauthorized):
		writeError(w, http.StatusUnauthorized, "Google access expired, sign in again")
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
