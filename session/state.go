// Package session is the per-user session: state machine, throttles,
// event-queue long-poll, and self-pointer bookkeeping for long-running
// operations that may outlive the session. Grounded on AIStore's
// cluster.Smap-owner pattern (one struct as the single owner of a set of
// long-lived mutable slots, torn down explicitly rather than garbage
// collected away) generalized here from a cluster map to a user session.
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/rezsim/rez/apc"
	"github.com/rezsim/rez/world"
)

// State is the session's position in the Expected -> Child -> Full ->
// Leaving lifecycle.
type State int

const (
	StateExpected State = iota
	StateChild
	StateFull
	StateLeaving
)

func (s State) String() string {
	switch s {
	case StateExpected:
		return "expected"
	case StateChild:
		return "child"
	case StateFull:
		return "full"
	case StateLeaving:
		return "leaving"
	default:
		return "unknown"
	}
}

// Wearable is one of the 15 fixed wearable slots.
type Wearable struct {
	ItemID  uuid.UUID
	AssetID uuid.UUID
}

const NumWearableSlots = 15

// AnimEntry is one active animation with its sequence number, used to
// order add/remove notifications to the viewer.
type AnimEntry struct {
	AnimID uuid.UUID
	Seq    uint32
}

// Session is one user's live state on this region.
type Session struct {
	AgentID   uuid.UUID
	SessionID uuid.UUID
	CircuitCode uint32

	State State
	Flags apc.SessionFlag

	AvatarID uuid.UUID // valid once State >= StateFull

	StartPos world.Vector3

	Wearables [NumWearableSlots]Wearable
	Anims     []AnimEntry
	nextAnimSeq uint32

	Throttles Throttles

	Queue *EventQueue

	CircuitDedup *CircuitDedup

	dirty map[uuid.UUID]apc.DirtyBit
	deleted map[uint32]bool

	selfPtrs map[string]*SelfPtr

	lastActivity time.Time
	paused       bool

	slowRemovalUntil time.Time
}

// NewSession creates a session in StateExpected, as grid glue's
// "expect_user" call does: wearables, visual params, texture entry, and
// start position are prefilled by the caller after construction.
func NewSession(agentID, sessionID uuid.UUID, circuitCode uint32, startPos world.Vector3) *Session {
	return &Session{
		AgentID:      agentID,
		SessionID:    sessionID,
		CircuitCode:  circuitCode,
		State:        StateExpected,
		StartPos:     startPos,
		Throttles:    NewThrottles(),
		Queue:        NewEventQueue(),
		CircuitDedup: NewCircuitDedup(),
		dirty:        make(map[uuid.UUID]apc.DirtyBit),
		deleted:      make(map[uint32]bool),
		selfPtrs:     make(map[string]*SelfPtr),
		lastActivity: time.Now(),
	}
}

// CompleteMovement transitions Child -> Full once the viewer's "complete
// movement" message has passed the incoming-flag and circuit-code check;
// callers (the region's main loop) are responsible for allocating the
// avatar body and registering it in the octree before marking the
// session full.
func (s *Session) CompleteMovement(avatarID uuid.UUID) error {
	if s.State != StateChild {
		return errBadTransition(s.State, StateFull)
	}
	if s.Flags&apc.FlagIncoming == 0 {
		return errNotIncoming
	}
	s.AvatarID = avatarID
	s.State = StateFull
	s.Flags |= apc.FlagFull
	s.Flags &^= apc.FlagChild
	s.Touch()
	return nil
}

// EnterChild transitions Expected -> Child.
func (s *Session) EnterChild() error {
	if s.State != StateExpected {
		return errBadTransition(s.State, StateChild)
	}
	s.State = StateChild
	s.Flags |= apc.FlagChild
	s.Touch()
	return nil
}

// BeginLeaving transitions Full (or Child) -> Leaving. slowRemoval
// requests the 2-3 second teleport-drain grace window instead of
// immediate removal.
func (s *Session) BeginLeaving(slowRemoval bool, grace time.Duration) {
	s.State = StateLeaving
	s.Flags |= apc.FlagLogout
	if slowRemoval {
		s.Flags |= apc.FlagSlowRemoval
		s.slowRemovalUntil = time.Now().Add(grace)
	}
}

// ReadyToRemove reports whether a Leaving session has cleared its
// slow-removal grace window (or never had one).
func (s *Session) ReadyToRemove() bool {
	if s.State != StateLeaving {
		return false
	}
	if s.Flags&apc.FlagSlowRemoval == 0 {
		return true
	}
	return !time.Now().Before(s.slowRemovalUntil)
}

// Touch records activity for liveness timeout purposes.
func (s *Session) Touch() { s.lastActivity = time.Now() }

// SetPaused toggles the paused liveness budget (90s instead of 15s).
func (s *Session) SetPaused(paused bool) {
	s.paused = paused
	if paused {
		s.Flags |= apc.FlagPaused
	} else {
		s.Flags &^= apc.FlagPaused
	}
}

// LivenessExpired reports whether the session has exceeded its liveness
// timeout (15s normal, 90s paused).
func (s *Session) LivenessExpired(now time.Time) bool {
	timeout := apc.LivenessTimeoutNormal
	if s.paused {
		timeout = apc.LivenessTimeoutPaused
	}
	return now.Sub(s.lastActivity) > time.Duration(timeout)*time.Second
}

// NextAnimSeq hands out monotonically increasing animation sequence
// numbers for ordering add/remove notifications to the viewer.
func (s *Session) NextAnimSeq() uint32 {
	s.nextAnimSeq++
	return s.nextAnimSeq
}
