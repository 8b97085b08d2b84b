// Package fed is the grid federation glue: the contract this region
// talks to its grid services through, and the teleport flow built on
// top of it. Grounded on AIStore's target-client abstraction
// (cluster.TargetClient-style pluggable backend), generalized from
// object-storage peers to sibling regions and grid services.
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package fed

import (
	"context"

	"github.com/google/uuid"

	"github.com/rezsim/rez/grid/meta"
)

// Presence is what the grid's presence service knows about a user.
type Presence struct {
	AgentID   uuid.UUID
	Online    bool
	RegionHandle meta.Handle
}

// ChildAgentRequest is the POST body creating a child agent on a
// destination region ahead of a teleport.
type ChildAgentRequest struct {
	AgentID       uuid.UUID
	SessionID     uuid.UUID
	CircuitCode   uint32
	FirstName     string
	LastName      string
	Appearance    []byte
	Wearables     [15]WearableRef
	ChildSeedCap  string
	DestPos       [3]float64
	StartPos      [3]float64
}

// WearableRef mirrors session.Wearable without importing package
// session, which would create a fed<->session cycle.
type WearableRef struct {
	ItemID, AssetID uuid.UUID
}

// UpgradeAgentRequest is the PUT body upgrading a child agent to a full
// agent once the avatar is actually teleporting in.
type UpgradeAgentRequest struct {
	Throttles     [7]float64
	VisualParams  []byte
	TextureEntry  []byte
	Wearables     [15]WearableRef
	AlwaysRun     bool
	CallbackURL   string // destination DELETEs this to release the origin avatar
}

// Glue is the contract a concrete grid backend implements: expect/logoff
// user, instant-message forwarding, presence/name lookup, and the
// destination-side child/full agent handshake. All methods are called
// from the main thread; implementations must not block it — use ctx for
// cancellation and keep calls async where the concrete transport allows.
type Glue interface {
	ExpectUser(ctx context.Context, req ChildAgentRequest) error
	LogoffUser(ctx context.Context, agentID uuid.UUID) error
	GridInstantMessage(ctx context.Context, fromID, toID uuid.UUID, message string) error

	// LookupUser and UUIDToName are supplemental presence/identity
	// lookups carried over from the grid glue's original vtable.
	LookupUser(ctx context.Context, agentID uuid.UUID) (Presence, error)
	UUIDToName(ctx context.Context, agentID uuid.UUID) (first, last string, err error)

	// ResolveDestination turns a region handle into a RegionInfo,
	// retrying up to cmn.MaxGridRetries times with
	// destination rediscovery on a transient failure.
	ResolveDestination(ctx context.Context, handle meta.Handle) (meta.RegionInfo, error)

	// CreateChildAgent and UpgradeAgent drive the destination side of a
	// teleport (steps 4 and 5 of the teleport flow).
	CreateChildAgent(ctx context.Context, dest meta.RegionInfo, req ChildAgentRequest) (seedCapURL string, err error)
	UpgradeAgent(ctx context.Context, dest meta.RegionInfo, agentID uuid.UUID, req UpgradeAgentRequest) error
}
