package server

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"secure-file-share/internal/access"
)

type fileResponse struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	ContentType string      `json:"content_type"`
	Size        int64       `json:"size"`
	Checksum    string      `json:"checksum"`
	OwnerID     uuid.UUID   `json:"owner_id"`
	CreatedAt   time.Time   `json:"created_at"`
	SharedWith  []uuid.UUID `json:"shared_with"`
	HasLink     bool        `json:"has_link"`
	ShareToken  string      `json:"share_token,omitempty"`
	LinkExpiry  *time.Time  `json:"link_expiry,omitempty"`
}

// ownerView renders a file for its owner, including grants and link state.
func ownerView(f *access.File) fileResponse {
	return fileResponse{
		ID:          f.ID,
		Name:        f.Name,
		ContentType: f.ContentType,
		Size:        f.Size,
		Checksum:    f.Checksum,
		OwnerID:     f.OwnerID,
		CreatedAt:   f.CreatedAt,
		SharedWith:  f.SharedWith.Slice(),
		HasLink:     f.HasLink(),
		ShareToken:  f.ShareToken,
		LinkExpiry:  f.LinkExpiry,
	}
}

type ownerSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// fileSummary is what non-owners see of a file.
type fileSummary struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	ContentType string        `json:"content_type"`
	Size        int64         `json:"size"`
	CreatedAt   time.Time     `json:"created_at"`
	Owner       *ownerSummary `json:"owner,omitempty"`
}

func summaryOf(f *access.File) fileSummary {
	return fileSummary{
		ID:          f.ID,
		Name:        f.Name,
		ContentType: f.ContentType,
		Size:        f.Size,
		CreatedAt:   f.CreatedAt,
	}
}

func (s *Server) handleOwnedFiles(w http.ResponseWriter, r *http.Request, actor access.Identity) {
	files, err := s.svc.OwnedFiles(r.Context(), actor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]fileResponse, len(files))
	for i := range files {
		out[i] = ownerView(&files[i])
	}
	writeData(w, http.StatusOK, out, "")
}

func (s *Server) handleSharedFiles(w http.ResponseWriter, r *http.Request, actor access.Identity) {
	files, err := s.svc.SharedFiles(r.Context(), actor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]fileSummary, len(files))
	for i := range files {
		out[i] = summaryOf(&files[i].File)
		out[i].Owner = &ownerSummary{ID: files[i].OwnerID, Name: files[i].OwnerName, Email: files[i].OwnerEmail}
	}
	writeData(w, http.StatusOK, out, "")
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, actor access.Identity) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f, rc, err := s.svc.OpenFile(r.Context(), actor, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	w.WriteHeader(http.StatusOK)
	n, err := io.Copy(w, rc)
	if err != nil {
		s.logger.WarnContext(r.Context(), "download interrupted", "file", f.ID, "err", err)
		return
	}
	s.metrics.RecordDownload(n)
}

type deleteResponse struct {
	ID          uuid.UUID `json:"id"`
	BlobRemoved bool      `json:"blob_removed"`
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, actor access.Identity) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.svc.DeleteFile(r.Context(), actor, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.RecordDelete()
	writeData(w, http.StatusOK, deleteResponse{ID: res.File.ID, BlobRemoved: res.BlobRemoved}, "File deleted successfully")
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request, actor access.Identity) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
	}
	entries, err := s.svc.FileAudit(r.Context(), actor, id, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, entries, "")
}
