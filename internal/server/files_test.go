package server

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"secure-file-share/internal/access"
)

func TestUploadThenDownload(t *testing.T) {
	ts := newTestServer(t)
	ann := ts.register("Ann")

	f := ts.uploadOK(ann, "hello world")
	if f.Name != "notes.txt" || f.ContentType != "text/plain" || f.Size != 11 || f.OwnerID != ann.ident.ID {
		t.Fatalf("upload response = %+v", f)
	}
	if len(f.Checksum) != 64 || f.HasLink || len(f.SharedWith) != 0 {
		t.Fatalf("upload response = %+v", f)
	}

	rr := ts.do(http.MethodGet, "/api/files/"+f.ID.String()+"/download", ann.token, nil, "")
	expectStatus(t, rr, http.StatusOK)
	body, _ := io.ReadAll(rr.Body)
	if string(body) != "hello world" {
		t.Fatalf("body = %q", body)
	}
	h := rr.Header()
	if h.Get("Content-Type") != "text/plain" || h.Get("Content-Length") != "11" {
		t.Errorf("headers = %v", h)
	}
	if got := h.Get("Content-Disposition"); got != "attachment; filename=notes.txt" {
		t.Errorf("Content-Disposition = %q", got)
	}
}

func TestDownloadHandler_AccessControl(t *testing.T) {
	ts := newTestServer(t)
	ann, bob, eve := ts.register("Ann"), ts.register("Bob"), ts.register("Eve")
	f := ts.uploadOK(ann, "secret")
	rr := ts.doJSON(http.MethodPost, "/api/files/"+f.ID.String()+"/grants", ann.token,
		grantRequest{UserIDs: []string{bob.ident.ID.String()}})
	expectStatus(t, rr, http.StatusOK)

	tests := []struct {
		name string
		who  user
		id   string
		want int
	}{
		{"owner", ann, f.ID.String(), http.StatusOK},
		{"grantee", bob, f.ID.String(), http.StatusOK},
		{"stranger", eve, f.ID.String(), http.StatusForbidden},
		{"missing", ann, uuid.NewString(), http.StatusNotFound},
		{"bad id", ann, "not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(http.MethodGet, "/api/files/"+tt.id+"/download", tt.who.token, nil, "")
			expectStatus(t, rr, tt.want)
		})
	}
}

func TestDeleteHandler(t *testing.T) {
	ts := newTestServer(t)
	ann, bob := ts.register("Ann"), ts.register("Bob")
	f := ts.uploadOK(ann, "bye")
	path := "/api/files/" + f.ID.String()

	expectStatus(t, ts.do(http.MethodDelete, path, bob.token, nil, ""), http.StatusForbidden)

	rr := ts.do(http.MethodDelete, path, ann.token, nil, "")
	expectStatus(t, rr, http.StatusOK)
	var resp deleteResponse
	decode(t, rr, &resp)
	if resp.ID != f.ID || !resp.BlobRemoved {
		t.Fatalf("delete response = %+v", resp)
	}

	expectStatus(t, ts.do(http.MethodGet, path+"/download", ann.token, nil, ""), http.StatusNotFound)
	expectStatus(t, ts.do(http.MethodDelete, path, ann.token, nil, ""), http.StatusNotFound)
}

func TestListingHandlers(t *testing.T) {
	ts := newTestServer(t)
	ann, bob := ts.register("Ann"), ts.register("Bob")
	first := ts.uploadOK(ann, "one")
	ts.clock.Advance(time.Second)
	second := ts.uploadOK(ann, "two")
	expectStatus(t, ts.doJSON(http.MethodPost, "/api/files/"+first.ID.String()+"/grants", ann.token,
		grantRequest{UserIDs: []string{bob.ident.ID.String()}}), http.StatusOK)

	rr := ts.do(http.MethodGet, "/api/files", ann.token, nil, "")
	expectStatus(t, rr, http.StatusOK)
	var owned []fileResponse
	decode(t, rr, &owned)
	if len(owned) != 2 || owned[0].ID != second.ID || owned[1].ID != first.ID {
		t.Fatalf("owned = %+v", owned)
	}
	if len(owned[1].SharedWith) != 1 || owned[1].SharedWith[0] != bob.ident.ID {
		t.Errorf("shared_with = %v", owned[1].SharedWith)
	}

	rr = ts.do(http.MethodGet, "/api/files/shared", bob.token, nil, "")
	expectStatus(t, rr, http.StatusOK)
	var shared []fileSummary
	decode(t, rr, &shared)
	if len(shared) != 1 || shared[0].ID != first.ID || shared[0].Owner == nil || shared[0].Owner.Email != "ann@example.com" {
		t.Fatalf("shared = %+v", shared)
	}

	rr = ts.do(http.MethodGet, "/api/files", bob.token, nil, "")
	expectStatus(t, rr, http.StatusOK)
	var none []fileResponse
	decode(t, rr, &none)
	if len(none) != 0 {
		t.Fatalf("bob owns %d files", len(none))
	}
}

func TestAuditHandler(t *testing.T) {
	ts := newTestServer(t)
	ann, bob := ts.register("Ann"), ts.register("Bob")
	f := ts.uploadOK(ann, "tracked")
	path := "/api/files/" + f.ID.String()
	expectStatus(t, ts.doJSON(http.MethodPost, path+"/grants", ann.token,
		grantRequest{UserIDs: []string{bob.ident.ID.String()}}), http.StatusOK)
	expectStatus(t, ts.doJSON(http.MethodPost, path+"/link", ann.token, linkRequest{Expiry: "1h"}), http.StatusCreated)

	rr := ts.do(http.MethodGet, path+"/audit", ann.token, nil, "")
	expectStatus(t, rr, http.StatusOK)
	var entries []access.AuditEntry
	decode(t, rr, &entries)
	if len(entries) != 3 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Action != access.AuditLinkMint || entries[2].Action != access.AuditFileCreate {
		t.Errorf("order = %s ... %s", entries[0].Action, entries[2].Action)
	}

	rr = ts.do(http.MethodGet, path+"/audit?limit=1", ann.token, nil, "")
	expectStatus(t, rr, http.StatusOK)
	decode(t, rr, &entries)
	if len(entries) != 1 {
		t.Errorf("limit=1 returned %d entries", len(entries))
	}

	expectStatus(t, ts.do(http.MethodGet, path+"/audit", bob.token, nil, ""), http.StatusForbidden)
	expectStatus(t, ts.do(http.MethodGet, path+"/audit?limit=abc", ann.token, nil, ""), http.StatusBadRequest)
	expectStatus(t, ts.do(http.MethodGet, path+"/audit?limit=0", ann.token, nil, ""), http.StatusBadRequest)
}
