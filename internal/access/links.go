package access

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// shareTokenBytes is the entropy of a share token (256 bits).
const shareTokenBytes = 32

// TTLPolicy is the expiry class chosen when minting a share link.
type TTLPolicy string

const (
	TTL30Seconds TTLPolicy = "30s"
	TTL1Hour     TTLPolicy = "1h"
	TTL3Hours    TTLPolicy = "3h"
	TTL24Hours   TTLPolicy = "24h"
	TTLNever     TTLPolicy = "never"
)

// ParseTTLPolicy accepts the known policy names. The empty string means
// TTLNever.
func ParseTTLPolicy(s string) (TTLPolicy, error) {
	switch p := TTLPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return TTLNever, nil
	case TTL30Seconds, TTL1Hour, TTL3Hours, TTL24Hours, TTLNever:
		return p, nil
	default:
		return "", invalidInput(fmt.Sprintf("unknown link expiry %q", s))
	}
}

// Duration returns the lifetime of the policy; ok is false for TTLNever.
func (p TTLPolicy) Duration() (d time.Duration, ok bool) {
	switch p {
	case TTL30Seconds:
		return 30 * time.Second, true
	case TTL1Hour:
		return time.Hour, true
	case TTL3Hours:
		return 3 * time.Hour, true
	case TTL24Hours:
		return 24 * time.Hour, true
	default:
		return 0, false
	}
}

// Link is a freshly minted share link.
type Link struct {
	Token     string
	Policy    TTLPolicy
	ExpiresAt *time.Time
}

// Resolution is the outcome of redeeming a share token.
type Resolution struct {
	File      *File
	ExpiresAt *time.Time
	// Remaining is zero when the link never expires.
	Remaining time.Duration
	// Upgraded is set when the redeemer was added to the grant set.
	Upgraded bool
}

// RemainingSeconds returns nil for links without expiry.
func (r *Resolution) RemainingSeconds() *int64 {
	if r.ExpiresAt == nil {
		return nil
	}
	secs := int64(r.Remaining / time.Second)
	return &secs
}

func (s *Service) newShareToken() (string, error) {
	b := make([]byte, shareTokenBytes)
	if _, err := io.ReadFull(s.random, b); err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// MintLink attaches a new share token to a file the actor owns. Any
// previous token stops resolving.
func (s *Service) MintLink(ctx context.Context, actor Identity, fileID uuid.UUID, policy TTLPolicy) (Link, error) {
	if _, err := ParseTTLPolicy(string(policy)); err != nil {
		return Link{}, err
	}
	if policy == "" {
		policy = TTLNever
	}
	f, err := s.authorize(ctx, ActionManageLink, actor, fileID)
	if err != nil {
		return Link{}, err
	}

	token, err := s.newShareToken()
	if err != nil {
		return Link{}, err
	}
	link := Link{Token: token, Policy: policy}
	if d, ok := policy.Duration(); ok {
		exp := s.clock.Now().Add(d)
		link.ExpiresAt = &exp
	}

	if err := s.files.SetLink(ctx, f.ID, token, link.ExpiresAt); err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return Link{}, err
		}
		return Link{}, storageError("set link", err)
	}
	s.record(ctx, AuditEntry{
		Action: AuditLinkMint, ActorID: actor.ID, FileID: f.ID, Success: true,
		Details: map[string]any{"expiry": string(policy), "replaced": f.HasLink()},
	})
	return link, nil
}

// RevokeLink clears the share token and expiry of a file the actor owns.
// Revoking an absent link succeeds. Grants accumulated through the link
// are kept.
func (s *Service) RevokeLink(ctx context.Context, actor Identity, fileID uuid.UUID) error {
	f, err := s.authorize(ctx, ActionManageLink, actor, fileID)
	if err != nil {
		return err
	}
	if !f.HasLink() && f.LinkExpiry == nil {
		return nil
	}
	if err := s.files.SetLink(ctx, f.ID, "", nil); err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return err
		}
		return storageError("clear link", err)
	}
	s.record(ctx, AuditEntry{Action: AuditLinkRevoke, ActorID: actor.ID, FileID: f.ID, Success: true})
	return nil
}

// ResolveLink redeems a share token for an authenticated actor. A valid
// token upgrades an actor without access into a standing grantee;
// redeeming again changes nothing.
func (s *Service) ResolveLink(ctx context.Context, actor Identity, token string) (*Resolution, error) {
	if actor.ID == uuid.Nil {
		return nil, ErrAuthenticationRequired
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenNotFound
	}

	f, err := s.files.FileByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, err
		}
		return nil, storageError("resolve token", err)
	}

	now := s.clock.Now()
	res := &Resolution{File: f, ExpiresAt: f.LinkExpiry}
	if f.LinkExpiry != nil {
		if now.After(*f.LinkExpiry) {
			return nil, ErrTokenExpired
		}
		res.Remaining = f.LinkExpiry.Sub(now)
	}

	if !HasAccess(f, actor.ID) {
		// The token may have been revoked or replaced since the lookup;
		// the store re-checks it under the same write.
		set, err := s.files.RedeemToken(ctx, token, actor.ID, now)
		if err != nil {
			if errors.Is(err, ErrTokenNotFound) || errors.Is(err, ErrTokenExpired) {
				return nil, err
			}
			return nil, storageError("upgrade grant", err)
		}
		f.SharedWith = set
		res.Upgraded = true
		s.record(ctx, AuditEntry{Action: AuditLinkRedeem, ActorID: actor.ID, FileID: f.ID, Success: true})
	}
	return res, nil
}
