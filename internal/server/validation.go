package server

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"secure-file-share/internal/access"
)

// allowedMimeTypes are the upload media types: documents, images, plain
// text and spreadsheets.
var allowedMimeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"text/plain": true,
	"text/csv":   true,
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// dangerousExtensions are rejected whatever media type is claimed.
var dangerousExtensions = map[string]bool{
	".exe": true, ".bat": true, ".cmd": true, ".com": true, ".pif": true,
	".scr": true, ".vbs": true, ".jar": true, ".msi": true, ".dll": true,
	".so": true, ".dylib": true, ".app": true, ".deb": true, ".rpm": true,
}

// mediaType strips parameters and lower-cases a Content-Type value.
func mediaType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// resolveUploadType decides the stored media type of an upload. A missing
// or generic client type falls back to the extension's type.
func resolveUploadType(filename, clientContentType string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if dangerousExtensions[ext] {
		return "", fmt.Errorf("%w: file type not allowed: %s", access.ErrInvalidInput, ext)
	}

	ct := mediaType(clientContentType)
	if ct == "" || ct == "application/octet-stream" {
		ct = mediaType(mime.TypeByExtension(ext))
	}
	if ct == "" {
		return "", fmt.Errorf("%w: file must have an extension or content type", access.ErrInvalidInput)
	}
	if !allowedMimeTypes[ct] {
		return "", fmt.Errorf("%w: invalid file type: %s", access.ErrInvalidInput, ct)
	}
	return ct, nil
}

// SanitizeFilename removes potentially dangerous characters from filenames.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "\x00", "")
	filename = strings.Trim(filename, " .")

	if len(filename) > 255 {
		ext := filepath.Ext(filename)
		if len(ext) > 16 {
			ext = ""
		}
		filename = truncateUTF8(filename, 255-len(ext)) + ext
	}

	if filename == "" {
		filename = "unnamed"
	}
	return filename
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
