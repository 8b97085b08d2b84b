package world

import (
	"testing"

	"github.com/google/uuid"

	"github.com/rezsim/rez/apc"
)

func TestExtraParamsRoundTrip(t *testing.T) {
	p := NewPrim(uuid.New())

	if _, ok := p.GetExtraParam(apc.ExtraParamFlexible); ok {
		t.Fatal("expected absent extra param before any Set")
	}

	if err := p.SetExtraParam(apc.ExtraParamFlexible, []byte{1, 2, 3}); err != nil {
		t.Fatalf("SetExtraParam: %v", err)
	}
	data, ok := p.GetExtraParam(apc.ExtraParamFlexible)
	if !ok || string(data) != "\x01\x02\x03" {
		t.Fatalf("got %v, %v", data, ok)
	}

	if err := p.SetExtraParam(apc.ExtraParamLight, []byte{9}); err != nil {
		t.Fatalf("SetExtraParam light: %v", err)
	}
	if err := p.DeleteExtraParam(apc.ExtraParamFlexible); err != nil {
		t.Fatalf("DeleteExtraParam: %v", err)
	}
	if _, ok := p.GetExtraParam(apc.ExtraParamFlexible); ok {
		t.Fatal("expected flexible param removed")
	}
	if data, ok := p.GetExtraParam(apc.ExtraParamLight); !ok || len(data) != 1 {
		t.Fatalf("expected light param to survive delete of flexible, got %v %v", data, ok)
	}
}

func TestExtraParamsTooManyEntriesFailsWithoutCorruption(t *testing.T) {
	p := NewPrim(uuid.New())
	for i := 0; i < apc.MaxExtraParams; i++ {
		if err := p.SetExtraParam(uint16(i), []byte{byte(i)}); err != nil {
			t.Fatalf("unexpected failure at entry %d: %v", i, err)
		}
	}
	before := append([]byte(nil), p.ExtraParams...)

	if err := p.SetExtraParam(uint16(apc.MaxExtraParams), []byte{0xff}); err == nil {
		t.Fatal("expected the 256th entry to be rejected")
	}
	if string(p.ExtraParams) != string(before) {
		t.Fatal("rejected insert corrupted prior state")
	}
	if data, ok := p.GetExtraParam(0); !ok || data[0] != 0 {
		t.Fatal("prior entries must still be readable after a rejected insert")
	}
}

func TestChatRangeByType(t *testing.T) {
	cases := []struct {
		typ  apc.ChatType
		want float64
	}{
		{apc.ChatWhisper, 10},
		{apc.ChatNormal, 20},
		{apc.ChatShout, 40},
		{apc.ChatSystem, 40},
		{apc.ChatDebug, 40},
	}
	for _, c := range cases {
		if got := c.typ.Range(); got != c.want {
			t.Errorf("ChatType(%d).Range() = %v, want %v", c.typ, got, c.want)
		}
	}
}

func TestBroadcastChatRespectsRangeAndChannel(t *testing.T) {
	w := New()
	speaker := NewPrim(uuid.New())
	speaker.WorldPos = Vector3{X: 128, Y: 128, Z: 30}
	w.InsertPrim(speaker)

	near := NewObjectListener(uuid.New(), 0)
	w.Octree.InstallListener(near, Vector3{X: 130, Y: 128, Z: 30}) // 2m away

	far := NewObjectListener(uuid.New(), 0)
	w.Octree.InstallListener(far, Vector3{X: 128, Y: 200, Z: 30}) // 72m away, out of whisper/normal/shout range

	wrongChannel := NewObjectListener(uuid.New(), 5)
	w.Octree.InstallListener(wrongChannel, Vector3{X: 129, Y: 128, Z: 30})

	var delivered []uuid.UUID
	w.BroadcastChat(ChatMessage{
		SourceID: speaker.ID,
		Channel:  0,
		Type:     apc.ChatNormal,
		Text:     "hello",
		Pos:      speaker.WorldPos,
	}, func(l *Listener, msg ChatMessage) {
		delivered = append(delivered, l.ID)
	})

	if len(delivered) != 1 || delivered[0] != near.ID {
		t.Fatalf("expected only the near, channel-0 listener to receive chat, got %v", delivered)
	}
}

func TestOwnerSayBypassesOctree(t *testing.T) {
	w := New()
	owner := uuid.New()
	p := NewPrim(owner)
	w.InsertPrim(p)

	sessionID := uuid.New()
	w.BindOwnerSession(owner, sessionID)

	var got uuid.UUID
	w.BroadcastChat(ChatMessage{
		SourceID: p.ID,
		Channel:  apc.DebugChannel,
		Type:     apc.ChatOwnerSay,
		Text:     "private",
	}, func(l *Listener, msg ChatMessage) {
		got = l.ID
	})
	if got != sessionID {
		t.Fatalf("expected OWNER_SAY routed to session %s, got %s", sessionID, got)
	}
}

func TestLinkPrimRejectsBeyondLinksetLimit(t *testing.T) {
	w := New()
	root := NewPrim(uuid.New())
	root.ChildIDs = make([]uuid.UUID, apc.MaxLinksetChildren)
	w.InsertPrim(root)

	child := NewPrim(uuid.New())
	w.InsertPrim(child)

	if err := w.LinkPrim(root, child); err == nil {
		t.Fatal("expected LinkPrim to reject a 256th child")
	}
}

func TestLinkPrimTranslatesLocalFrame(t *testing.T) {
	w := New()
	root := NewPrim(uuid.New())
	root.WorldPos = Vector3{X: 100, Y: 100, Z: 20}
	w.InsertPrim(root)

	child := NewPrim(uuid.New())
	child.WorldPos = Vector3{X: 101, Y: 100, Z: 20}
	w.InsertPrim(child)

	if err := w.LinkPrim(root, child); err != nil {
		t.Fatalf("LinkPrim: %v", err)
	}
	if !child.HasParent || child.ParentID != root.ID {
		t.Fatal("child not reparented to root")
	}
	if child.LocalPos.Dist(Vector3{X: 1, Y: 0, Z: 0}) > 1e-9 {
		t.Fatalf("expected local offset (1,0,0), got %+v", child.LocalPos)
	}
}

func TestSitBeginUnsitRoundTrip(t *testing.T) {
	w := New()
	root := NewPrim(uuid.New())
	w.InsertPrim(root)
	av := NewAvatar()
	w.InsertAvatar(av)

	if err := w.SitBegin(av.ID, root.ID, Vector3{X: 0, Y: 0, Z: 0.2}, IdentityQuat()); err != nil {
		t.Fatalf("SitBegin: %v", err)
	}
	if root.PrimarySeat == nil || *root.PrimarySeat != av.ID {
		t.Fatal("expected primary seat set to sitting avatar")
	}
	if !av.HasParent || av.ParentID != root.ID {
		t.Fatal("expected avatar parented to seat root")
	}

	if err := w.Unsit(av.ID); err != nil {
		t.Fatalf("Unsit: %v", err)
	}
	if root.PrimarySeat != nil {
		t.Fatal("expected primary seat cleared after unsit")
	}
	if av.HasParent {
		t.Fatal("expected avatar unparented after unsit")
	}
}

func TestDeletePrimUnsitsAndRecursesChildren(t *testing.T) {
	w := New()
	root := NewPrim(uuid.New())
	w.InsertPrim(root)
	child := NewPrim(uuid.New())
	w.InsertPrim(child)
	if err := w.LinkPrim(root, child); err != nil {
		t.Fatalf("LinkPrim: %v", err)
	}
	av := NewAvatar()
	w.InsertAvatar(av)
	if err := w.SitBegin(av.ID, root.ID, Vector3{}, IdentityQuat()); err != nil {
		t.Fatalf("SitBegin: %v", err)
	}

	if err := w.DeletePrim(root.ID); err != nil {
		t.Fatalf("DeletePrim: %v", err)
	}
	if _, _, ok := w.LookupByID(root.ID); ok {
		t.Fatal("root should be gone")
	}
	if _, _, ok := w.LookupByID(child.ID); ok {
		t.Fatal("child should be gone")
	}
	if av.HasParent {
		t.Fatal("avatar should have been unsat before root deletion")
	}
}

func TestMoveRootUpdatesChildWorldPos(t *testing.T) {
	w := New()
	root := NewPrim(uuid.New())
	root.WorldPos = Vector3{X: 10, Y: 10, Z: 10}
	w.InsertPrim(root)
	child := NewPrim(uuid.New())
	child.WorldPos = Vector3{X: 11, Y: 10, Z: 10}
	w.InsertPrim(child)
	if err := w.LinkPrim(root, child); err != nil {
		t.Fatalf("LinkPrim: %v", err)
	}

	if err := w.MoveRoot(root.ID, Vector3{X: 50, Y: 50, Z: 10}); err != nil {
		t.Fatalf("MoveRoot: %v", err)
	}
	if child.WorldPos.Dist(Vector3{X: 51, Y: 50, Z: 10}) > 1e-9 {
		t.Fatalf("expected child to follow root translation, got %+v", child.WorldPos)
	}
}
