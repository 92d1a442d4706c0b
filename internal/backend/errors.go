package backend

import "errors"

// Reserved user identities seeded at schema bootstrap.
//
// SystemUserID authors automated join/leave/creation notifications and
// bypasses membership checks for that purpose only. DeletedUserID is the
// sentinel that inherits messages authored by deleted accounts.
const (
	SystemUserID  int64 = 1
	DeletedUserID int64 = 2
)

// Error taxonomy shared by every layer. Services return these (possibly
// wrapped); the API layer is the only place they are translated to HTTP
// statuses. PermissionDenied and ObjectNotFound are deliberately distinct:
// a member-only resource yields PermissionDenied to non-members and
// ObjectNotFound only when it truly does not exist.
var (
	ErrNotInitialised   = errors.New("store not initialised")
	ErrAuthentication   = errors.New("authentication failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrObjectNotFound   = errors.New("object not found")
	ErrInvalidRange     = errors.New("invalid message range")
	ErrNickTaken        = errors.New("nick already taken")
	ErrEmailTaken       = errors.New("email already taken")
)
