package access

import (
	"fmt"

	"github.com/google/uuid"
)

// Action is an operation an actor attempts on a file.
type Action int

const (
	ActionDownload Action = iota + 1
	ActionShare
	ActionManageLink
	ActionDelete
	ActionViewAudit
)

func (a Action) String() string {
	switch a {
	case ActionDownload:
		return "download"
	case ActionShare:
		return "share"
	case ActionManageLink:
		return "manage_link"
	case ActionDelete:
		return "delete"
	case ActionViewAudit:
		return "view_audit"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision is the verdict of Decide. Reason is empty when Allowed.
type Decision struct {
	Allowed bool
	Reason  string
}

// Err returns nil for an allow and an ErrForbidden wrap otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
}

// Decide answers whether actor may perform action on f. The owner may do
// everything; grantees may only download. The nil identity never passes.
//
// For ActionShare this only covers the actor; grantee existence is
// checked by the merge itself.
func Decide(action Action, actor uuid.UUID, f *File) Decision {
	if actor == uuid.Nil {
		return Decision{Reason: "unauthenticated actor"}
	}
	if f == nil {
		return Decision{Reason: "no such file"}
	}
	owner := actor == f.OwnerID
	switch action {
	case ActionDownload:
		if owner || f.SharedWith.Has(actor) {
			return Decision{Allowed: true}
		}
		return Decision{Reason: "not the owner or a grantee"}
	case ActionShare, ActionManageLink, ActionDelete, ActionViewAudit:
		if owner {
			return Decision{Allowed: true}
		}
		return Decision{Reason: "only the owner may " + action.String()}
	default:
		return Decision{Reason: "unknown action " + action.String()}
	}
}

// HasAccess reports whether id is the owner or a grantee of f.
func HasAccess(f *File, id uuid.UUID) bool {
	return id != uuid.Nil && (f.OwnerID == id || f.SharedWith.Has(id))
}
