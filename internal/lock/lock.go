// Package lock derives a journey's lock state and the viewer's role, and decides
// which operations are legal for each combination. Nothing here is persisted:
// every answer is recomputed from stored fields, the clock and the viewer id.
package lock

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/journeyvault/internal/errs"
	"github.com/and161185/journeyvault/internal/model"
)

// State is the derived lock state of a journey.
type State int

const (
	Locked State = iota
	Unlocked
)

func (s State) String() string {
	if s == Unlocked {
		return "unlocked"
	}
	return "locked"
}

// Role is the derived relation of a viewer to a journey.
type Role int

const (
	RoleNone Role = iota
	RoleCollaborator
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleCollaborator:
		return "collaborator"
	default:
		return "none"
	}
}

// Op is an operation subject to authorization.
type Op int

const (
	OpAddMemory Op = iota
	OpViewMemories
	OpEdit // rename, reschedule, force-unlock, emoji, cover
	OpManageCollaborators
	OpDelete
	OpDeleteMemory
	OpViewJourney // metadata and memory count, never memory content
)

var opNames = map[Op]string{
	OpAddMemory:           "add memory",
	OpViewMemories:        "view memories",
	OpEdit:                "edit journey",
	OpManageCollaborators: "manage collaborators",
	OpDelete:              "delete journey",
	OpDeleteMemory:        "delete memory",
	OpViewJourney:         "view journey",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// StateAt returns Locked iff the journey is active and now is before UnlockAt.
func StateAt(j *model.Journey, now time.Time) State {
	if j.Status == model.StatusActive && now.Before(j.UnlockAt) {
		return Locked
	}
	return Unlocked
}

// RoleOf returns the viewer's role for the journey.
func RoleOf(j *model.Journey, viewer uuid.UUID) Role {
	switch {
	case viewer == uuid.Nil:
		return RoleNone
	case viewer == j.OwnerID:
		return RoleOwner
	case j.IsCollaborator(viewer):
		return RoleCollaborator
	default:
		return RoleNone
	}
}

// rule is one row of the authorization table: which roles may perform
// the operation while locked and while unlocked.
type rule struct {
	locked   []Role
	unlocked []Role
}

var (
	owner   = []Role{RoleOwner}
	members = []Role{RoleOwner, RoleCollaborator}
)

var rules = map[Op]rule{
	OpAddMemory:           {locked: members},
	OpViewMemories:        {unlocked: members},
	OpEdit:                {locked: owner},
	OpManageCollaborators: {locked: owner, unlocked: owner},
	OpDelete:              {locked: owner, unlocked: owner},
	OpDeleteMemory:        {locked: members, unlocked: members},
	OpViewJourney:         {locked: members, unlocked: members},
}

// Authorize returns nil if viewer may perform op on j at now.
// Rejections wrap errs.ErrAccessDenied; sealed reads also wrap errs.ErrSealed
// and writes after unlock also wrap errs.ErrUnlocked.
func Authorize(j *model.Journey, viewer uuid.UUID, op Op, now time.Time) error {
	r, ok := rules[op]
	if !ok {
		return fmt.Errorf("%w: unknown operation %s", errs.ErrAccessDenied, op)
	}
	role := RoleOf(j, viewer)
	if role == RoleNone {
		return fmt.Errorf("%w: %s: not a member of journey %s", errs.ErrAccessDenied, op, j.ID)
	}

	state := StateAt(j, now)
	allowed := r.locked
	if state == Unlocked {
		allowed = r.unlocked
	}
	for _, a := range allowed {
		if a == role {
			return nil
		}
	}

	switch {
	case op == OpViewMemories && state == Locked:
		return fmt.Errorf("%w: %w: opens %s", errs.ErrAccessDenied, errs.ErrSealed, j.UnlockAt.UTC().Format(time.RFC3339))
	case state == Unlocked && len(r.locked) > 0 && len(r.unlocked) == 0:
		return fmt.Errorf("%w: %w: %s is not allowed after unlock", errs.ErrAccessDenied, errs.ErrUnlocked, op)
	default:
		return fmt.Errorf("%w: %s requires %s, viewer is %s", errs.ErrAccessDenied, op, RoleOwner, role)
	}
}

// ValidateUnlockAt enforces that an unlock time is strictly in the future.
func ValidateUnlockAt(t, now time.Time) error {
	if t.IsZero() || !t.After(now) {
		return errs.Validationf("unlock time must be in the future")
	}
	return nil
}

// ForceUnlock opens a locked journey immediately by moving UnlockAt to now.
// The caller persists the change.
func ForceUnlock(j *model.Journey, now time.Time) error {
	if StateAt(j, now) == Unlocked {
		return fmt.Errorf("%w: %w: already open", errs.ErrAccessDenied, errs.ErrUnlocked)
	}
	j.UnlockAt = now
	return nil
}

// Remaining returns the time left until unlock, or zero once unlocked.
func Remaining(j *model.Journey, now time.Time) time.Duration {
	if StateAt(j, now) == Unlocked {
		return 0
	}
	return j.UnlockAt.Sub(now)
}
