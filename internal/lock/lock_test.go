package lock

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/journeyvault/internal/errs"
	"github.com/and161185/journeyvault/internal/model"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type party struct {
	owner, collab, outsider uuid.UUID
}

func newParty() party {
	return party{
		owner:    uuid.Must(uuid.NewV4()),
		collab:   uuid.Must(uuid.NewV4()),
		outsider: uuid.Must(uuid.NewV4()),
	}
}

func journey(p party, unlockAt time.Time, status model.JourneyStatus) *model.Journey {
	return &model.Journey{
		ID:         uuid.Must(uuid.NewV4()),
		OwnerID:    p.owner,
		Name:       "Kyoto",
		UnlockAt:   unlockAt,
		Status:     status,
		SharedWith: []uuid.UUID{p.collab},
	}
}

func TestStateAt(t *testing.T) {
	p := newParty()
	tests := []struct {
		name     string
		unlockAt time.Time
		status   model.JourneyStatus
		want     State
	}{
		{"active future", now.Add(time.Hour), model.StatusActive, Locked},
		{"active exactly now", now, model.StatusActive, Unlocked},
		{"active past", now.Add(-time.Second), model.StatusActive, Unlocked},
		{"completed future", now.Add(72 * time.Hour), model.StatusCompleted, Unlocked},
		{"completed past", now.Add(-time.Hour), model.StatusCompleted, Unlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := journey(p, tt.unlockAt, tt.status)
			got := StateAt(j, now)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, StateAt(j, now), "same inputs give the same state")
		})
	}
}

func TestRoleOf(t *testing.T) {
	p := newParty()
	j := journey(p, now.Add(time.Hour), model.StatusActive)

	assert.Equal(t, RoleOwner, RoleOf(j, p.owner))
	assert.Equal(t, RoleCollaborator, RoleOf(j, p.collab))
	assert.Equal(t, RoleNone, RoleOf(j, p.outsider))
	assert.Equal(t, RoleNone, RoleOf(j, uuid.Nil))
}

func TestAuthorize_Matrix(t *testing.T) {
	p := newParty()
	locked := journey(p, now.Add(72*time.Hour), model.StatusActive)
	unlocked := journey(p, now.Add(-time.Hour), model.StatusActive)

	type cell struct {
		op       Op
		j        *model.Journey
		viewer   uuid.UUID
		allowed  bool
		sentinel error
	}
	cells := []cell{
		{OpAddMemory, locked, p.owner, true, nil},
		{OpAddMemory, locked, p.collab, true, nil},
		{OpAddMemory, unlocked, p.owner, false, errs.ErrUnlocked},
		{OpAddMemory, unlocked, p.collab, false, errs.ErrUnlocked},

		{OpViewMemories, locked, p.owner, false, errs.ErrSealed},
		{OpViewMemories, locked, p.collab, false, errs.ErrSealed},
		{OpViewMemories, unlocked, p.owner, true, nil},
		{OpViewMemories, unlocked, p.collab, true, nil},

		{OpEdit, locked, p.owner, true, nil},
		{OpEdit, locked, p.collab, false, nil},
		{OpEdit, unlocked, p.owner, false, errs.ErrUnlocked},
		{OpEdit, unlocked, p.collab, false, nil},

		{OpManageCollaborators, locked, p.owner, true, nil},
		{OpManageCollaborators, locked, p.collab, false, nil},
		{OpManageCollaborators, unlocked, p.owner, true, nil},
		{OpManageCollaborators, unlocked, p.collab, false, nil},

		{OpDelete, locked, p.owner, true, nil},
		{OpDelete, locked, p.collab, false, nil},
		{OpDelete, unlocked, p.owner, true, nil},
		{OpDelete, unlocked, p.collab, false, nil},

		{OpDeleteMemory, unlocked, p.collab, true, nil},
		{OpViewJourney, locked, p.collab, true, nil},
	}
	for _, c := range cells {
		name := c.op.String() + "/" + StateAt(c.j, now).String() + "/" + RoleOf(c.j, c.viewer).String()
		t.Run(name, func(t *testing.T) {
			err := Authorize(c.j, c.viewer, c.op, now)
			if c.allowed {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, errs.ErrAccessDenied)
			if c.sentinel != nil {
				require.ErrorIs(t, err, c.sentinel)
			}
		})
	}
}

func TestAuthorize_OutsiderAlwaysDenied(t *testing.T) {
	p := newParty()
	ops := []Op{OpAddMemory, OpViewMemories, OpEdit, OpManageCollaborators, OpDelete, OpDeleteMemory, OpViewJourney}
	for _, j := range []*model.Journey{
		journey(p, now.Add(time.Hour), model.StatusActive),
		journey(p, now.Add(-time.Hour), model.StatusActive),
		journey(p, now.Add(time.Hour), model.StatusCompleted),
	} {
		for _, op := range ops {
			err := Authorize(j, p.outsider, op, now)
			require.ErrorIs(t, err, errs.ErrAccessDenied, "op %s state %s", op, StateAt(j, now))
		}
	}
}

func TestAuthorize_UnknownOp(t *testing.T) {
	p := newParty()
	j := journey(p, now.Add(time.Hour), model.StatusActive)
	require.ErrorIs(t, Authorize(j, p.owner, Op(99), now), errs.ErrAccessDenied)
}

func TestForceUnlock_ThenWritesRejected(t *testing.T) {
	p := newParty()
	j := journey(p, now.Add(72*time.Hour), model.StatusActive)
	require.NoError(t, Authorize(j, p.owner, OpAddMemory, now))

	require.NoError(t, ForceUnlock(j, now))
	assert.Equal(t, now, j.UnlockAt)
	assert.Equal(t, Unlocked, StateAt(j, now))

	err := Authorize(j, p.owner, OpAddMemory, now)
	require.ErrorIs(t, err, errs.ErrUnlocked)
	require.NoError(t, Authorize(j, p.owner, OpViewMemories, now))

	require.ErrorIs(t, ForceUnlock(j, now), errs.ErrUnlocked, "open journeys never re-lock or re-open")
}

func TestValidateUnlockAt(t *testing.T) {
	require.NoError(t, ValidateUnlockAt(now.Add(time.Millisecond), now))
	require.ErrorIs(t, ValidateUnlockAt(now, now), errs.ErrValidation)
	require.ErrorIs(t, ValidateUnlockAt(now.Add(-time.Hour), now), errs.ErrValidation)
	require.ErrorIs(t, ValidateUnlockAt(time.Time{}, now), errs.ErrValidation)
}

func TestRemaining(t *testing.T) {
	p := newParty()
	j := journey(p, now.Add(90*time.Minute), model.StatusActive)
	assert.Equal(t, 90*time.Minute, Remaining(j, now))
	assert.Zero(t, Remaining(j, now.Add(2*time.Hour)))
}
