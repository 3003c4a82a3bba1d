package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"secure-file-share/internal/access"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{"a\\b.txt", "a_b.txt"},
		{"nul\x00byte.txt", "nulbyte.txt"},
		{"  .hidden. ", "hidden"},
		{"...", "unnamed"},
		{"", "unnamed"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := SanitizeFilename(strings.Repeat("a", 300) + ".txt")
	if len(long) != 255 || !strings.HasSuffix(long, ".txt") {
		t.Errorf("long name: len %d suffix %q", len(long), long[len(long)-4:])
	}

	wide := SanitizeFilename(strings.Repeat("é", 200) + ".txt")
	if !utf8.ValidString(wide) || len(wide) > 255 || !strings.HasSuffix(wide, ".txt") {
		t.Errorf("multi-byte name: len %d valid %v", len(wide), utf8.ValidString(wide))
	}
	if want := strings.Repeat("é", 125) + ".txt"; wide != want {
		t.Errorf("multi-byte name = %q, want %d runes kept", wide, 125)
	}
}

func TestResolveUploadType(t *testing.T) {
	tests := []struct {
		filename, clientType string
		want                 string
		wantErr              bool
	}{
		{"a.txt", "text/plain", "text/plain", false},
		{"a.txt", "TEXT/PLAIN; charset=utf-8", "text/plain", false},
		{"photo.jpg", "", "image/jpeg", false},
		{"photo.gif", "application/octet-stream", "image/gif", false},
		{"sheet.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", false},
		{"run.EXE", "application/pdf", "", true},
		{"lib.so", "text/plain", "", true},
		{"page.html", "text/html", "", true},
		{"noext", "", "", true},
	}
	for _, tt := range tests {
		got, err := resolveUploadType(tt.filename, tt.clientType)
		if tt.wantErr {
			if !errors.Is(err, access.ErrInvalidInput) {
				t.Errorf("resolveUploadType(%q, %q) err = %v, want ErrInvalidInput", tt.filename, tt.clientType, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("resolveUploadType(%q, %q) = (%q, %v), want %q", tt.filename, tt.clientType, got, err, tt.want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantMsg    string
	}{
		{access.ErrMissingCredential, http.StatusUnauthorized, "authentication required"},
		{access.ErrExpiredCredential, http.StatusUnauthorized, "authentication required"},
		{access.ErrUnknownSubject, http.StatusUnauthorized, "authentication required"},
		{access.ErrAuthenticationRequired, http.StatusUnauthorized, "authentication required"},
		{access.ErrForbidden, http.StatusForbidden, "access denied"},
		{access.ErrTokenExpired, http.StatusGone, "share link has expired"},
		{access.ErrTokenNotFound, http.StatusNotFound, "share link not found"},
		{access.ErrFileNotFound, http.StatusNotFound, "file not found"},
		{access.ErrUserNotFound, http.StatusNotFound, "user not found"},
		{fmt.Errorf("%w: 1234", access.ErrUnknownGrantee), http.StatusBadRequest, "unknown grantee: 1234"},
		{fmt.Errorf("%w: bad", access.ErrInvalidInput), http.StatusBadRequest, "invalid input: bad"},
		{access.ErrDuplicateEmail, http.StatusConflict, "email already registered"},
		{access.ErrInvalidLogin, http.StatusUnauthorized, "invalid email or password"},
		{fmt.Errorf("%w: put: disk full", access.ErrStorage), http.StatusBadGateway, "storage unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		status, msg := statusFor(tt.err)
		if status != tt.wantStatus || msg != tt.wantMsg {
			t.Errorf("statusFor(%v) = (%d, %q), want (%d, %q)", tt.err, status, msg, tt.wantStatus, tt.wantMsg)
		}
	}
}
