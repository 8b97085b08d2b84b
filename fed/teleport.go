package fed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rezsim/rez/apc"
	"github.com/rezsim/rez/cmn/nlog"
	"github.com/rezsim/rez/grid/meta"
	"github.com/rezsim/rez/session"
)

// teleportSlowRemovalGrace is the 2-3s drain window before the
// originating avatar is finally removed after a successful teleport.
const teleportSlowRemovalGrace = 3 * time.Second

// Stage is the teleport descriptor's progress, reported to the
// originating viewer as the "resolving"/"sending_dest"/... progress
// messages.
type Stage int

const (
	StageResolving Stage = iota
	StageSendingDest
	StageCreatingChild
	StageUpgrading
	StageCompleting
	StageDone
	StageFailed
	StageCancelled
)

func (s Stage) String() string {
	switch s {
	case StageResolving:
		return "resolving"
	case StageSendingDest:
		return "sending_dest"
	case StageCreatingChild:
		return "creating_child"
	case StageUpgrading:
		return "upgrading"
	case StageCompleting:
		return "completing"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	case StageCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Descriptor tracks one in-flight teleport. It is registered against the
// originating session's self-pointer slot; Cancel (via the slot going
// nil) is observed by the in-flight goroutine's next self-check.
type Descriptor struct {
	AgentID  uuid.UUID
	FromPos  [3]float64
	LookAt   [3]float64

	Stage      Stage
	Reason     string
	SeedCapURL string // the destination's seed capability, set once upgraded

	selfPtr *session.SelfPtr
}

const selfPtrTeleport = "teleport"

// ProgressFunc reports a stage change to the originating viewer.
type ProgressFunc func(stage Stage)

// FailFunc is invoked exactly once on any terminal failure, matching the
// "single terminal callback with a human-readable reason string" rule
// for multi-step federated operations.
type FailFunc func(reason string)

// TeleportToLocation begins the teleport flow described in spec.md
// section 4.7's seven steps, to a region handle + position + look-at.
func TeleportToLocation(ctx context.Context, glue Glue, sess *session.Session, handle meta.Handle, pos, lookAt [3]float64, progress ProgressFunc, fail FailFunc) {
	d := &Descriptor{AgentID: sess.AgentID, FromPos: pos, LookAt: lookAt, Stage: StageResolving}
	d.selfPtr = sess.RegisterSelfPtr(selfPtrTeleport, d)
	runTeleport(ctx, glue, sess, d, func(ctx context.Context) (meta.RegionInfo, error) {
		return glue.ResolveDestination(ctx, handle)
	}, progress, fail)
}

// TeleportByRegionName resolves a destination by name before running the
// same flow; landmark-based teleport (TeleportToLandmark) is the same
// shape with the landmark's stored handle as the resolution key and is
// intentionally left to the inventory layer to resolve before calling
// TeleportToLocation, since a landmark is just a named handle+position.
func TeleportByRegionName(ctx context.Context, glue Glue, sess *session.Session, resolveHandle func(name string) (meta.Handle, bool), name string, pos, lookAt [3]float64, progress ProgressFunc, fail FailFunc) {
	handle, ok := resolveHandle(name)
	if !ok {
		fail(fmt.Sprintf("unknown region %q", name))
		return
	}
	TeleportToLocation(ctx, glue, sess, handle, pos, lookAt, progress, fail)
}

func runTeleport(ctx context.Context, glue Glue, sess *session.Session, d *Descriptor, resolve func(context.Context) (meta.RegionInfo, error), progress ProgressFunc, fail FailFunc) {
	report := func(stage Stage) {
		d.Stage = stage
		progress(stage)
	}
	failAndFree := func(reason string) {
		if cancelled(d) {
			fail("cancelled")
			return
		}
		d.Stage = StageFailed
		d.Reason = reason
		sess.ReleaseSelfPtr(selfPtrTeleport)
		nlog.Warningf("teleport failed for %s: %s", d.AgentID, reason)
		fail(reason)
	}

	report(StageResolving)
	dest, err := resolve(ctx)
	if err != nil {
		failAndFree(err.Error())
		return
	}
	if cancelled(d) {
		fail("cancelled")
		return
	}

	report(StageSendingDest)
	req := ChildAgentRequest{
		AgentID:  d.AgentID,
		DestPos:  d.FromPos,
		StartPos: d.FromPos,
	}

	report(StageCreatingChild)
	seedCap, err := glue.CreateChildAgent(ctx, dest, req)
	if err != nil {
		failAndFree(err.Error())
		return
	}
	if cancelled(d) {
		fail("cancelled")
		return
	}

	report(StageUpgrading)
	if err := glue.UpgradeAgent(ctx, dest, d.AgentID, UpgradeAgentRequest{}); err != nil {
		failAndFree(err.Error())
		return
	}

	report(StageCompleting)
	sess.Flags |= apc.FlagTeleportComplete
	sess.BeginLeaving(true, teleportSlowRemovalGrace)
	d.SeedCapURL = seedCap
	sess.ReleaseSelfPtr(selfPtrTeleport)
	d.Stage = StageDone
	progress(StageDone)
}

// cancelled reports whether the session's self-pointer slot for this
// descriptor has been nulled, meaning the operation was cancelled
// (session torn down, or a competing teleport superseded it).
func cancelled(d *Descriptor) bool {
	return d.selfPtr.Get() == nil
}

// Cancel nulls the descriptor's self-pointer slot so the next
// self-check inside the in-flight flow observes cancellation and
// reports it via the terminal failure callback.
func (d *Descriptor) Cancel(sess *session.Session) {
	sess.ReleaseSelfPtr(selfPtrTeleport)
}

