package world

import (
	"github.com/google/uuid"
)

// Octree is the region's spatial index: fixed depth 6, leaves cover 4x4
// metres horizontally and 64 metres vertically, covering a 256x256x4096
// region volume (256/2^6=4, 4096/2^6=64). Each leaf stores an object set
// and a channel->listener multimap; each interior node carries the
// set-union of channels present in its subtree to prune chat broadcast
// early.
const (
	OctreeDepth    = 6
	RegionSize     = 256.0
	RegionHeight   = 4096.0
	leafXY         = RegionSize / (1 << OctreeDepth) // 4m
	leafZ          = RegionHeight / (1 << OctreeDepth) // 64m
)

// Listener is a chat recipient: a polymorphic target (object root or
// script) with a channel whitelist.
type Listener struct {
	ID       uuid.UUID // object root id, or a synthetic id for a script listener
	IsScript bool
	ScriptID uuid.UUID
	Channels map[int32]struct{}
	pos      Vector3 // tracked so relocation can find/patch the right leaf
}

func NewObjectListener(objID uuid.UUID, channels ...int32) *Listener {
	l := &Listener{ID: objID, Channels: make(map[int32]struct{}, len(channels))}
	for _, c := range channels {
		l.Channels[c] = struct{}{}
	}
	return l
}

func (l *Listener) Accepts(ch int32) bool {
	_, ok := l.Channels[ch]
	return ok
}

type octNode struct {
	// bounding box, inclusive-min/exclusive-max
	minX, minY, minZ float64
	maxX, maxY, maxZ float64
	depth            int

	children [8]*octNode // nil at leaves
	objects  map[uuid.UUID]struct{}
	listeners map[uuid.UUID]*Listener
	chanMask map[int32]int // refcounted union of channels in this subtree
}

func newNode(minX, minY, minZ, maxX, maxY, maxZ float64, depth int) *octNode {
	return &octNode{
		minX: minX, minY: minY, minZ: minZ,
		maxX: maxX, maxY: maxY, maxZ: maxZ,
		depth:    depth,
		objects:  make(map[uuid.UUID]struct{}),
		listeners: make(map[uuid.UUID]*Listener),
		chanMask: make(map[int32]int),
	}
}

func (n *octNode) isLeaf() bool { return n.depth == OctreeDepth }

func (n *octNode) contains(p Vector3) bool {
	return p.X >= n.minX && p.X < n.maxX &&
		p.Y >= n.minY && p.Y < n.maxY &&
		p.Z >= n.minZ && p.Z < n.maxZ
}

// childIndex picks which of the 8 octants p falls into.
func (n *octNode) childIndex(p Vector3) int {
	midX := (n.minX + n.maxX) / 2
	midY := (n.minY + n.maxY) / 2
	midZ := (n.minZ + n.maxZ) / 2
	idx := 0
	if p.X >= midX {
		idx |= 1
	}
	if p.Y >= midY {
		idx |= 2
	}
	if p.Z >= midZ {
		idx |= 4
	}
	return idx
}

func (n *octNode) child(i int) *octNode {
	if n.children[i] != nil {
		return n.children[i]
	}
	midX := (n.minX + n.maxX) / 2
	midY := (n.minY + n.maxY) / 2
	midZ := (n.minZ + n.maxZ) / 2
	minX, maxX := n.minX, midX
	if i&1 != 0 {
		minX, maxX = midX, n.maxX
	}
	minY, maxY := n.minY, midY
	if i&2 != 0 {
		minY, maxY = midY, n.maxY
	}
	minZ, maxZ := n.minZ, midZ
	if i&4 != 0 {
		minZ, maxZ = midZ, n.maxZ
	}
	n.children[i] = newNode(minX, minY, minZ, maxX, maxY, maxZ, n.depth+1)
	return n.children[i]
}

func (n *octNode) descend(p Vector3) *octNode {
	node := n
	for !node.isLeaf() {
		node = node.child(node.childIndex(clampInto(p, node)))
	}
	return node
}

// clampInto keeps positions outside the region's nominal bounds (prims can
// briefly sit at out-of-range coordinates mid-physics-step) from panicking
// the octant math; it's purely a defensive clamp, not a gameplay rule.
func clampInto(p Vector3, n *octNode) Vector3 {
	clampF := func(v, lo, hi float64) float64 {
		if v < lo {
			return lo
		}
		if v >= hi {
			// nextafter-style: stay just inside [lo,hi)
			return hi - 1e-6
		}
		return v
	}
	return Vector3{
		X: clampF(p.X, n.minX, n.maxX),
		Y: clampF(p.Y, n.minY, n.maxY),
		Z: clampF(p.Z, n.minZ, n.maxZ),
	}
}

type Octree struct {
	root     *octNode
	leafOf   map[uuid.UUID]*octNode // object id -> containing leaf
	listenOf map[uuid.UUID]*octNode // listener id -> containing leaf
}

func NewOctree() *Octree {
	return &Octree{
		root:     newNode(0, 0, 0, RegionSize, RegionSize, RegionHeight, 0),
		leafOf:   make(map[uuid.UUID]*octNode),
		listenOf: make(map[uuid.UUID]*octNode),
	}
}

// LeafIndex reports the (ix, iy, iz) grid coordinate of the leaf
// containing p, on the 4x4x64 metre grid — used to check that after any
// world mutation the octree leaf containing each object matches
// floor(world_pos) under the defined leaf scaling.
func LeafIndex(p Vector3) (ix, iy, iz int) {
	ix = int(clampF(p.X, 0, RegionSize-1e-6) / leafXY)
	iy = int(clampF(p.Y, 0, RegionSize-1e-6) / leafXY)
	iz = int(clampF(p.Z, 0, RegionHeight-1e-6) / leafZ)
	return
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (o *Octree) Insert(id uuid.UUID, pos Vector3) {
	leaf := o.root.descend(pos)
	leaf.objects[id] = struct{}{}
	o.leafOf[id] = leaf
}

func (o *Octree) Remove(id uuid.UUID) {
	leaf, ok := o.leafOf[id]
	if !ok {
		return
	}
	delete(leaf.objects, id)
	delete(o.leafOf, id)
}

func (o *Octree) Move(id uuid.UUID, newPos Vector3) {
	cur, ok := o.leafOf[id]
	if ok && cur.contains(clampInto(newPos, o.root)) {
		return // still in the same leaf, nothing to relocate
	}
	o.Remove(id)
	o.Insert(id, newPos)
}

// pathTo returns the chain of nodes from root to the leaf containing pos,
// root first.
func (o *Octree) pathTo(pos Vector3) []*octNode {
	path := make([]*octNode, 0, OctreeDepth+1)
	node := o.root
	path = append(path, node)
	for !node.isLeaf() {
		node = node.child(node.childIndex(clampInto(pos, node)))
		path = append(path, node)
	}
	return path
}

// InstallListener installs a chat listener into the leaf containing its
// object and stamps the channel union up the path to the root. Listeners
// are automatically relocated as their object moves.
func (o *Octree) InstallListener(l *Listener, pos Vector3) {
	l.pos = pos
	path := o.pathTo(pos)
	leaf := path[len(path)-1]
	leaf.listeners[l.ID] = l
	o.listenOf[l.ID] = leaf
	for _, n := range path {
		for ch := range l.Channels {
			n.chanMask[ch]++
		}
	}
}

// RemoveListener deletes a listener and, on every node of its path,
// decrements the channel refcounts InstallListener added, dropping a
// channel from a node's mask once its count reaches zero. Each mask thus
// stays the exact union of the channels of the listeners below it,
// without re-walking the subtree.
func (o *Octree) RemoveListener(id uuid.UUID) {
	leaf, ok := o.listenOf[id]
	if !ok {
		return
	}
	l := leaf.listeners[id]
	if l == nil {
		delete(o.listenOf, id)
		return
	}
	delete(leaf.listeners, id)
	delete(o.listenOf, id)
	path := o.pathTo(l.pos)
	for _, n := range path {
		for ch := range l.Channels {
			n.chanMask[ch]--
			if n.chanMask[ch] <= 0 {
				delete(n.chanMask, ch)
			}
		}
	}
}

// RelocateListener moves a listener to track its object's motion.
func (o *Octree) RelocateListener(id uuid.UUID, newPos Vector3) {
	leaf, ok := o.listenOf[id]
	if ok && leaf.contains(clampInto(newPos, o.root)) {
		leaf.listeners[id].pos = newPos
		return
	}
	var l *Listener
	if ok {
		l = leaf.listeners[id]
	}
	o.RemoveListener(id)
	if l != nil {
		o.InstallListener(l, newPos)
	}
}

// Broadcast delivers msg to every in-range listener accepting channel,
// pruning any subtree whose channel mask does not contain it.
func (o *Octree) Broadcast(origin Vector3, radius float64, channel int32, deliver func(*Listener)) {
	o.broadcast(o.root, origin, radius, channel, deliver)
}

func (o *Octree) broadcast(n *octNode, origin Vector3, radius float64, channel int32, deliver func(*Listener)) {
	if _, ok := n.chanMask[channel]; !ok {
		return
	}
	if !aabbNearSphere(n, origin, radius) {
		return
	}
	if n.isLeaf() {
		for _, l := range n.listeners {
			if l.Accepts(channel) && l.pos.Dist(origin) <= radius {
				deliver(l)
			}
		}
		return
	}
	for i := 0; i < 8; i++ {
		if n.children[i] != nil {
			o.broadcast(n.children[i], origin, radius, channel, deliver)
		}
	}
}

// aabbNearSphere is a coarse early-out: does the node's bounding box come
// within radius of origin at all.
func aabbNearSphere(n *octNode, origin Vector3, radius float64) bool {
	clamp := func(v, lo, hi float64) float64 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	closest := Vector3{
		X: clamp(origin.X, n.minX, n.maxX),
		Y: clamp(origin.Y, n.minY, n.maxY),
		Z: clamp(origin.Z, n.minZ, n.maxZ),
	}
	return closest.Dist(origin) <= radius
}
