// upload.go - Multipart upload handlers.
//
// Single and batch uploads with type allow-listing, name sanitising and a
// request size cap.
package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"secure-file-share/internal/access"
)

const (
	// maxBatchFiles is the most parts accepted by the batch endpoint.
	maxBatchFiles = 30
	// multipartOverhead covers boundaries and part headers.
	multipartOverhead = 1 << 20
	// multipartMemory is held in memory before parts spill to disk.
	multipartMemory = 32 << 20
)

// parseUpload reads a multipart body bounded by limit. The caller must
// call RemoveAll on the returned form.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request, limit int64) (*multipart.Form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file too large (limit %d bytes)", s.maxUpload))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, false
	}
	return r.MultipartForm, true
}

// openUpload validates one part and opens it for storage.
func (s *Server) openUpload(fh *multipart.FileHeader) (access.Upload, multipart.File, int, error) {
	if fh.Size > s.maxUpload {
		return access.Upload{}, nil, http.StatusRequestEntityTooLarge,
			fmt.Errorf("file too large: %s (limit %d bytes)", fh.Filename, s.maxUpload)
	}
	name := SanitizeFilename(fh.Filename)
	ct, err := resolveUploadType(name, fh.Header.Get("Content-Type"))
	if err != nil {
		return access.Upload{}, nil, http.StatusBadRequest, err
	}
	f, err := fh.Open()
	if err != nil {
		return access.Upload{}, nil, http.StatusBadRequest, err
	}
	return access.Upload{Name: name, ContentType: ct, Size: fh.Size, Body: f}, f, 0, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, actor access.Identity) {
	form, ok := s.parseUpload(w, r, s.maxUpload+multipartOverhead)
	if !ok {
		return
	}
	defer func() { _ = form.RemoveAll() }()

	parts := form.File["file"]
	if len(parts) != 1 {
		writeError(w, http.StatusBadRequest, "exactly one file part named \"file\" is required")
		return
	}
	up, body, status, err := s.openUpload(parts[0])
	if err != nil {
		writeError(w, status, publicMessage(err))
		return
	}
	defer body.Close()

	f, err := s.svc.CreateFile(r.Context(), actor, up)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.RecordUpload(f.Size)
	writeData(w, http.StatusCreated, ownerView(f), "File uploaded successfully")
}

func (s *Server) handleBatchUpload(w http.ResponseWriter, r *http.Request, actor access.Identity) {
	form, ok := s.parseUpload(w, r, maxBatchFiles*s.maxUpload+multipartOverhead)
	if !ok {
		return
	}
	defer func() { _ = form.RemoveAll() }()

	parts := form.File["files"]
	switch {
	case len(parts) == 0:
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	case len(parts) > maxBatchFiles:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d files per batch", maxBatchFiles))
		return
	}

	ups := make([]access.Upload, 0, len(parts))
	for _, fh := range parts {
		up, body, status, err := s.openUpload(fh)
		if err != nil {
			writeError(w, status, publicMessage(err))
			return
		}
		defer body.Close()
		ups = append(ups, up)
	}

	files, err := s.svc.CreateFiles(r.Context(), actor, ups)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]fileResponse, len(files))
	for i := range files {
		s.metrics.RecordUpload(files[i].Size)
		out[i] = ownerView(&files[i])
	}
	writeData(w, http.StatusCreated, out, fmt.Sprintf("%d files uploaded successfully", len(files)))
}
