// links.go - Share link and grant handlers.
//
// Minting, revoking and redeeming share links, plus explicit grant merges.
package server

import (
	"errors"
	"net/http"
	"time"

	"secure-file-share/internal/access"
)

type grantRequest struct {
	UserIDs []string `json:"user_ids"`
}

func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request, actor access.Identity) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body grantRequest
	if err := decodeJSON(w, r, &body, false); err != nil {
		s.fail(w, r, err)
		return
	}
	req, err := access.NewMergeRequest(body.UserIDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := s.svc.Share(r.Context(), actor, id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.RecordGrantMerge()
	writeData(w, http.StatusOK, ownerView(f), "File shared successfully")
}

type linkRequest struct {
	Expiry string `json:"expiry"`
}

type linkResponse struct {
	Token     string     `json:"token"`
	Expiry    string     `json:"expiry"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (s *Server) handleMintLink(w http.ResponseWriter, r *http.Request, actor access.Identity) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body linkRequest
	if err := decodeJSON(w, r, &body, true); err != nil {
		s.fail(w, r, err)
		return
	}
	policy, err := access.ParseTTLPolicy(body.Expiry)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	link, err := s.svc.MintLink(r.Context(), actor, id, policy)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.RecordLinkEvent(linkMinted)
	writeData(w, http.StatusCreated, linkResponse{
		Token:     link.Token,
		Expiry:    string(link.Policy),
		ExpiresAt: link.ExpiresAt,
	}, "Share link created")
}

func (s *Server) handleRevokeLink(w http.ResponseWriter, r *http.Request, actor access.Identity) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.RevokeLink(r.Context(), actor, id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.RecordLinkEvent(linkRevoked)
	writeData(w, http.StatusOK, nil, "Share link removed")
}

type resolutionResponse struct {
	File             fileSummary `json:"file"`
	ExpiresAt        *time.Time  `json:"expires_at"`
	RemainingSeconds *int64      `json:"remaining_seconds"`
	Upgraded         bool        `json:"upgraded"`
}

// handleResolveLink redeems a share token for the caller, who becomes a
// grantee of the file if not already one.
func (s *Server) handleResolveLink(w http.ResponseWriter, r *http.Request, actor access.Identity) {
	res, err := s.svc.ResolveLink(r.Context(), actor, r.PathValue("token"))
	switch {
	case errors.Is(err, access.ErrTokenExpired):
		s.metrics.RecordLinkEvent(linkExpired)
	case errors.Is(err, access.ErrTokenNotFound):
		s.metrics.RecordLinkEvent(linkNotFound)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.RecordLinkEvent(linkResolved)
	if res.Upgraded {
		s.metrics.RecordLinkEvent(linkUpgraded)
	}
	writeData(w, http.StatusOK, resolutionResponse{
		File:             summaryOf(res.File),
		ExpiresAt:        res.ExpiresAt,
		RemainingSeconds: res.RemainingSeconds(),
		Upgraded:         res.Upgraded,
	}, "")
}
