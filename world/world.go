package world

import (
	"sync"

	"github.com/google/uuid"

	"github.com/rezsim/rez/apc"
	"github.com/rezsim/rez/cmn/cos"
	"github.com/rezsim/rez/cmn/debug"
	"github.com/rezsim/rez/cmn/nlog"
)

// UpdateSink receives per-object dirty notifications; package session
// implements this once per user session, folding the bits into one entry
// per dirty object plus a set of deleted local ids (Session.DrainDirty
// returns both as unordered maps; no deletions-then-creates-then-updates
// delivery order is applied there). World itself never knows about
// sessions — only this contract.
type UpdateSink interface {
	MarkDirty(objID uuid.UUID, bits apc.DirtyBit)
	MarkDeleted(localID uint32)
}

// ChatMessage is what BroadcastChat delivers.
type ChatMessage struct {
	SourceID uuid.UUID
	Channel  int32
	Type     apc.ChatType
	Text     string
	Pos      Vector3
}

// World is the entity store and spatial octree, scoped to one simulator
// (region). The octree, entity maps, and asset cache are main-thread-only:
// World carries no internal mutex and callers must only touch it from the
// simulator's single event-loop goroutine.
type World struct {
	Prims   map[uuid.UUID]*Prim
	Avatars map[uuid.UUID]*Avatar
	LocalOf map[uint32]uuid.UUID
	Octree  *Octree

	sinksMu sync.Mutex // sink registration can race with session teardown
	sinks   map[uuid.UUID]UpdateSink

	// ownerSession maps a prim owner to the session id for OWNER_SAY
	// routing: owner-directed chat is routed to the prim owner's session
	// only.
	ownerSession map[uuid.UUID]uuid.UUID

	// chatDeliver is the default chat transport, set once at startup by
	// whatever owns the session table. Internal callers (e.g. debug-channel
	// error reports from set_primitive_params) use this instead of
	// threading a deliver callback through every call site.
	chatDeliver func(*Listener, ChatMessage)
}

// SetChatDeliverer installs the process-wide chat transport used by
// internal diagnostics that need to reach a listener without a caller
// supplying their own deliver callback.
func (w *World) SetChatDeliverer(deliver func(*Listener, ChatMessage)) {
	w.chatDeliver = deliver
}

func New() *World {
	return &World{
		Prims:        make(map[uuid.UUID]*Prim),
		Avatars:      make(map[uuid.UUID]*Avatar),
		LocalOf:      make(map[uint32]uuid.UUID),
		Octree:       NewOctree(),
		sinks:        make(map[uuid.UUID]UpdateSink),
		ownerSession: make(map[uuid.UUID]uuid.UUID),
	}
}

func (w *World) Subscribe(sessionID uuid.UUID, sink UpdateSink) {
	w.sinksMu.Lock()
	defer w.sinksMu.Unlock()
	w.sinks[sessionID] = sink
}

func (w *World) Unsubscribe(sessionID uuid.UUID) {
	w.sinksMu.Lock()
	defer w.sinksMu.Unlock()
	delete(w.sinks, sessionID)
}

// BindOwnerSession records which session id to route OWNER_SAY chat to for
// a given owner uuid.
func (w *World) BindOwnerSession(ownerID, sessionID uuid.UUID) {
	w.ownerSession[ownerID] = sessionID
}

func (w *World) notifyDirty(id uuid.UUID, bits apc.DirtyBit) {
	w.sinksMu.Lock()
	defer w.sinksMu.Unlock()
	for _, s := range w.sinks {
		s.MarkDirty(id, bits)
	}
}

func (w *World) notifyDeleted(localID uint32) {
	w.sinksMu.Lock()
	defer w.sinksMu.Unlock()
	for _, s := range w.sinks {
		s.MarkDeleted(localID)
	}
}

// regenLocalID assigns a fresh, currently-unused local id.
func (w *World) regenLocalID() uint32 {
	for {
		id := cos.NewLocalID()
		if _, taken := w.LocalOf[id]; !taken {
			return id
		}
	}
}

// InsertPrim adds a root prim to the world. Local-id is always
// regenerated; callers must tolerate a fresh value on every insert.
func (w *World) InsertPrim(p *Prim) {
	p.LocalID = w.regenLocalID()
	w.Prims[p.ID] = p
	w.LocalOf[p.LocalID] = p.ID
	w.Octree.Insert(p.ID, p.WorldPos)
	w.notifyDirty(p.ID, apc.DirtyCreated)
}

func (w *World) InsertAvatar(a *Avatar) {
	a.LocalID = w.regenLocalID()
	w.Avatars[a.ID] = a
	w.LocalOf[a.LocalID] = a.ID
	w.Octree.Insert(a.ID, a.WorldPos)
	w.notifyDirty(a.ID, apc.DirtyCreated)
}

// LookupByID finds either variant by stable id.
func (w *World) LookupByID(id uuid.UUID) (prim *Prim, avatar *Avatar, ok bool) {
	if p, found := w.Prims[id]; found {
		return p, nil, true
	}
	if a, found := w.Avatars[id]; found {
		return nil, a, true
	}
	return nil, nil, false
}

func (w *World) LookupByLocalID(localID uint32) (id uuid.UUID, ok bool) {
	id, ok = w.LocalOf[localID]
	return
}

// RemoveObject removes either a prim or an avatar's bookkeeping from the
// octree/local-id table (does not unlink/unsit; callers needing the
// recursive prim semantics should use DeletePrim).
func (w *World) RemoveObject(id uuid.UUID) {
	if p, ok := w.Prims[id]; ok {
		delete(w.LocalOf, p.LocalID)
		w.Octree.Remove(id)
		w.Octree.RemoveListener(id)
		delete(w.Prims, id)
		w.notifyDeleted(p.LocalID)
		return
	}
	if a, ok := w.Avatars[id]; ok {
		delete(w.LocalOf, a.LocalID)
		w.Octree.Remove(id)
		w.Octree.RemoveListener(id)
		delete(w.Avatars, id)
		w.notifyDeleted(a.LocalID)
	}
}

// MoveRoot relocates a root object and relocates its octree placement and
// any installed chat listener.
func (w *World) MoveRoot(id uuid.UUID, newPos Vector3) error {
	p, a, ok := w.LookupByID(id)
	if !ok {
		return errNotFound
	}
	if p != nil {
		p.WorldPos = newPos
		p.LocalPos = newPos
	} else {
		a.WorldPos = newPos
		a.LocalPos = newPos
	}
	w.Octree.Move(id, newPos)
	w.Octree.RelocateListener(id, newPos)
	w.updateChildrenPos(id)
	w.notifyDirty(id, apc.DirtyPosRot)
	return nil
}

// UpdateGlobalPos re-derives world_pos from the parent chain for a single
// object.
func (w *World) UpdateGlobalPos(id uuid.UUID) error {
	p, a, ok := w.LookupByID(id)
	switch {
	case !ok:
		return errNotFound
	case p != nil:
		return w.deriveOne(&p.Base)
	default:
		return w.deriveOne(&a.Base)
	}
}

func (w *World) deriveOne(b *Base) error {
	if !b.HasParent {
		b.WorldPos = b.LocalPos
		return nil
	}
	parentPrim, parentAvatar, ok := w.LookupByID(b.ParentID)
	if !ok {
		return errNotFound
	}
	if parentPrim != nil {
		b.DeriveWorldPos(parentPrim.WorldPos, parentPrim.Rot)
	} else {
		b.DeriveWorldPos(parentAvatar.WorldPos, parentAvatar.Rot)
	}
	return nil
}

// updateChildrenPos recursively re-derives world_pos for every child of a
// root prim that just moved.
func (w *World) updateChildrenPos(rootID uuid.UUID) {
	p, ok := w.Prims[rootID]
	if !ok {
		return
	}
	for _, cid := range p.ChildIDs {
		if err := w.UpdateGlobalPos(cid); err == nil {
			w.Octree.Move(cid, w.mustPos(cid))
			w.updateChildrenPos(cid)
		}
	}
	for _, aid := range p.SittingAvatars {
		if err := w.UpdateGlobalPos(aid); err == nil {
			w.Octree.Move(aid, w.mustPos(aid))
		}
	}
}

func (w *World) mustPos(id uuid.UUID) Vector3 {
	p, a, _ := w.LookupByID(id)
	if p != nil {
		return p.WorldPos
	}
	return a.WorldPos
}

// LinkPrim makes child a member of root's linkset: rejects a linkset that
// would exceed the child-count limit, rejects re-parenting an
// already-parented object, and translates the child's local_pos into the
// new parent's frame. Marking the CHILDREN dirty bit is part of this
// single call, not a separate step callers could reorder or skip.
func (w *World) LinkPrim(root, child *Prim) error {
	if child.HasParent {
		return errAlreadyParented
	}
	if !root.CanLinkMore(1) {
		return errLinksetFull
	}
	debug.Assert(root.IsRoot())

	// translate child.WorldPos into root's local frame
	rel := child.WorldPos.Sub(root.WorldPos)
	invRot := Quat{-root.Rot.X, -root.Rot.Y, -root.Rot.Z, root.Rot.W}
	child.LocalPos = invRot.RotateVector(rel)
	child.HasParent = true
	child.ParentKind = ParentPrim
	child.ParentID = root.ID
	child.RootID = root.RootID

	root.ChildIDs = append(root.ChildIDs, child.ID)
	nlog.Infof("world: linked %s under root %s (%d children)", child.ID, root.ID, len(root.ChildIDs))
	w.notifyDirty(root.ID, apc.DirtyChildren)
	return w.UpdateGlobalPos(child.ID)
}

// DeletePrim recursively deletes a prim and its linkset: unsits every
// sitting avatar first, recurses children in reverse order, then detaches
// from the parent's child array. O(n) parent array compaction is
// accepted: linksets are small.
func (w *World) DeletePrim(id uuid.UUID) error {
	p, ok := w.Prims[id]
	if !ok {
		return errNotFound
	}
	for _, avID := range append([]uuid.UUID(nil), p.SittingAvatars...) {
		_ = w.Unsit(avID)
	}
	for i := len(p.ChildIDs) - 1; i >= 0; i-- {
		_ = w.DeletePrim(p.ChildIDs[i])
	}
	if p.HasParent && p.ParentKind == ParentPrim {
		if parent, ok := w.Prims[p.ParentID]; ok {
			parent.ChildIDs = removeID(parent.ChildIDs, id)
			w.notifyDirty(parent.ID, apc.DirtyChildren)
		}
	}
	w.RemoveObject(id)
	return nil
}

func removeID(ids []uuid.UUID, target uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// SitBegin seats an avatar on a prim's linkset root: an avatar sitting on
// a prim always has that prim's linkset root as its parent, never an
// interior child.
func (w *World) SitBegin(avatarID, primID uuid.UUID, offset Vector3, rot Quat) error {
	a, ok := w.Avatars[avatarID]
	if !ok {
		return errNotAnAvatar
	}
	target, ok := w.Prims[primID]
	if !ok {
		return errNotAPrim
	}
	root := target
	if rootPrim, ok := w.Prims[target.RootID]; ok {
		root = rootPrim
	}
	a.HasParent = true
	a.ParentKind = ParentPrim
	a.ParentID = root.ID
	a.LocalPos = offset
	a.Rot = rot
	root.SittingAvatars = append(root.SittingAvatars, avatarID)
	if root.PrimarySeat == nil {
		seat := avatarID
		root.PrimarySeat = &seat
	}
	w.notifyDirty(root.ID, apc.DirtyAvOnSeat)
	w.notifyDirty(avatarID, apc.DirtyParent)
	return w.UpdateGlobalPos(avatarID)
}

// SitComplete finalizes the seat after physics/animation has converged the
// avatar pose; kept as a distinct step because the original protocol acks
// sit completion separately from the request.
func (w *World) SitComplete(avatarID uuid.UUID) error {
	a, ok := w.Avatars[avatarID]
	if !ok {
		return errNotAnAvatar
	}
	w.notifyDirty(a.ID, apc.DirtyAvatars)
	return nil
}

// Unsit stands an avatar back up, clearing the seat back-reference.
func (w *World) Unsit(avatarID uuid.UUID) error {
	a, ok := w.Avatars[avatarID]
	if !ok {
		return errNotAnAvatar
	}
	if !a.HasParent || a.ParentKind != ParentPrim {
		return nil
	}
	root, ok := w.Prims[a.ParentID]
	if ok {
		root.SittingAvatars = removeID(root.SittingAvatars, avatarID)
		if root.PrimarySeat != nil && *root.PrimarySeat == avatarID {
			root.PrimarySeat = nil
			if len(root.SittingAvatars) > 0 {
				seat := root.SittingAvatars[0]
				root.PrimarySeat = &seat
			}
		}
		w.notifyDirty(root.ID, apc.DirtyAvOnSeat)
	}
	a.HasParent = false
	a.ParentKind = ParentNone
	a.LocalPos = a.WorldPos
	w.notifyDirty(a.ID, apc.DirtyParent)
	return nil
}

// BroadcastChat computes range by chat type, descends the octree pruning
// channel-less subtrees, and delivers to every in-range listener.
// OWNER_SAY bypasses the octree entirely and is routed to the prim owner's
// session only.
func (w *World) BroadcastChat(msg ChatMessage, deliver func(*Listener, ChatMessage)) {
	if msg.Type == apc.ChatOwnerSay {
		p, ok := w.Prims[msg.SourceID]
		if !ok {
			return
		}
		sessionID, ok := w.ownerSession[p.Owner]
		if !ok {
			return
		}
		deliver(&Listener{ID: sessionID, Channels: map[int32]struct{}{msg.Channel: {}}}, msg)
		return
	}
	radius := msg.Type.Range()
	w.Octree.Broadcast(msg.Pos, radius, msg.Channel, func(l *Listener) {
		deliver(l, msg)
	})
}
