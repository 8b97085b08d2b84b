package script

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeVM struct {
	dispatched []Event
	slices     int
	yieldAfter int
	saveBlob   []byte
	saveErr    error
}

func (v *fakeVM) RunSlice(n int) bool {
	v.slices++
	return v.slices >= v.yieldAfter
}

func (v *fakeVM) Dispatch(ev Event) { v.dispatched = append(v.dispatched, ev) }

func (v *fakeVM) Save() ([]byte, error) { return v.saveBlob, v.saveErr }

func fakeCompile(bytecode []byte) (VM, error) { return &fakeVM{}, nil }

func fakeRestore(saveBlob []byte) (VM, error) { return &fakeVM{}, nil }

func newTestHost() *Host { return NewHost(fakeCompile, fakeRestore) }

func TestPushEventDropsOldestAtCapacity(t *testing.T) {
	s := &Script{}
	for i := 0; i < maxQueuedEvents+5; i++ {
		s.PushEvent(Event{Kind: EventLinkMessage, Args: []any{i}})
	}
	if len(s.EventQueue) != maxQueuedEvents {
		t.Fatalf("expected queue capped at %d, got %d", maxQueuedEvents, len(s.EventQueue))
	}
	if s.EventQueue[0].Args[0] != 5 {
		t.Fatalf("expected oldest 5 entries dropped, first remaining is %v", s.EventQueue[0].Args[0])
	}
}

func TestPopNextEventPriorityOrder(t *testing.T) {
	s := &Script{}
	s.PushEvent(Event{Kind: EventLinkMessage})
	s.PushEvent(Event{Kind: EventTimer})
	s.PushEvent(Event{Kind: EventChanged})
	s.PushEvent(Event{Kind: EventStateEntry})

	ev, ok := s.popNextEvent()
	if !ok || ev.Kind != EventStateEntry {
		t.Fatalf("expected state_entry first, got %+v", ev)
	}
	ev, ok = s.popNextEvent()
	if !ok || ev.Kind != EventChanged {
		t.Fatalf("expected changed second, got %+v", ev)
	}
	ev, ok = s.popNextEvent()
	if !ok || ev.Kind != EventTimer {
		t.Fatalf("expected timer third, got %+v", ev)
	}
	ev, ok = s.popNextEvent()
	if !ok || ev.Kind != EventLinkMessage {
		t.Fatalf("expected remaining FIFO entry last, got %+v", ev)
	}
	if _, ok := s.popNextEvent(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestPopNextEventPrefersPendingDetected(t *testing.T) {
	s := &Script{}
	s.PushEvent(Event{Kind: EventStateEntry})
	det := Event{Kind: EventTouch}
	s.PendingDetected = &det

	ev, ok := s.popNextEvent()
	if !ok || ev.Kind != EventTouch {
		t.Fatalf("expected detected event first, got %+v", ev)
	}
	if s.PendingDetected != nil {
		t.Fatalf("expected PendingDetected cleared after pop")
	}
	ev, ok = s.popNextEvent()
	if !ok || ev.Kind != EventStateEntry {
		t.Fatalf("expected state_entry next, got %+v", ev)
	}
}

func TestHandleIncomingAddAndKillDiscipline(t *testing.T) {
	h := newTestHost()
	id := uuid.New()
	h.handleIncoming(Message{Kind: MsgAddScript, ScriptID: id})

	h.mu.Lock()
	_, ok := h.scripts[id]
	h.mu.Unlock()
	if !ok {
		t.Fatalf("expected script registered after ADD_SCRIPT")
	}

	exit := h.handleIncoming(Message{Kind: MsgKillScript, ScriptID: id})
	if exit {
		t.Fatalf("KILL_SCRIPT must not terminate the worker")
	}

	select {
	case m := <-h.toMain:
		if m.Kind != MsgScriptKilled || m.ScriptID != id {
			t.Fatalf("expected SCRIPT_KILLED for %s, got %+v", id, m)
		}
	default:
		t.Fatalf("expected SCRIPT_KILLED posted to ToMain")
	}

	h.mu.Lock()
	_, ok = h.scripts[id]
	h.mu.Unlock()
	if ok {
		t.Fatalf("expected script removed from table after kill")
	}
}

func TestHandleIncomingRestoreQueuesRegionStartChanged(t *testing.T) {
	h := newTestHost()
	id := uuid.New()
	h.handleIncoming(Message{Kind: MsgRestoreScript, ScriptID: id, SaveBlob: []byte("x")})

	h.mu.Lock()
	s := h.scripts[id]
	h.mu.Unlock()
	if s == nil {
		t.Fatalf("expected restored script registered")
	}
	if len(s.EventQueue) != 1 || s.EventQueue[0].Kind != EventChanged {
		t.Fatalf("expected implicit changed(REGION_START) event queued, got %+v", s.EventQueue)
	}
}

func TestHandleIncomingShutdownSignalsExit(t *testing.T) {
	h := newTestHost()
	if !h.handleIncoming(Message{Kind: MsgShutdown}) {
		t.Fatalf("expected SHUTDOWN to request worker exit")
	}
}

func TestTickDispatchesRunnableScriptsUpToLimit(t *testing.T) {
	h := newTestHost()
	for i := 0; i < maxRunnablePerRound+3; i++ {
		id := uuid.New()
		h.scripts[id] = &Script{ID: id, Main: MainRunning, Run: Runnable, VM: &fakeVM{yieldAfter: 2}}
	}
	h.tick()

	dispatched := 0
	for _, s := range h.scripts {
		vm := s.VM.(*fakeVM)
		if vm.slices > 0 {
			dispatched++
		}
	}
	if dispatched > maxRunnablePerRound {
		t.Fatalf("expected at most %d scripts dispatched per round, got %d", maxRunnablePerRound, dispatched)
	}
}

func TestTickSkipsScriptsInRPC(t *testing.T) {
	h := newTestHost()
	id := uuid.New()
	vm := &fakeVM{yieldAfter: 1}
	h.scripts[id] = &Script{ID: id, Main: MainRunning, Run: Runnable, InRPC: true, VM: vm}
	h.tick()
	if vm.slices != 0 {
		t.Fatalf("expected a script awaiting RPC to be descheduled, ran %d slices", vm.slices)
	}
}

func TestRPCReturnClearsInRPCAndMakesRunnable(t *testing.T) {
	h := newTestHost()
	id := uuid.New()
	vm := &fakeVM{yieldAfter: 1}
	h.scripts[id] = &Script{ID: id, Main: MainRunning, Run: Idle, InRPC: true, VM: vm}
	h.handleIncoming(Message{Kind: MsgRPCReturn, ScriptID: id, RPCCall: &RPCCall{Result: 42}})

	h.mu.Lock()
	s := h.scripts[id]
	h.mu.Unlock()
	if s.InRPC {
		t.Fatalf("expected InRPC cleared after RPC_RETURN")
	}
	if s.Run != Runnable {
		t.Fatalf("expected script runnable after RPC_RETURN, got %v", s.Run)
	}
	if len(vm.dispatched) != 1 || vm.dispatched[0].Kind != EventChanged {
		t.Fatalf("expected RPC result delivered as a changed event, got %+v", vm.dispatched)
	}
}

func TestNextWakeClampsToMaxWaitChunk(t *testing.T) {
	h := newTestHost()
	now := time.Now()
	if got := h.nextWake(now); got != maxWaitChunk {
		t.Fatalf("expected idle host to wait the max chunk, got %v", got)
	}

	id := uuid.New()
	h.scripts[id] = &Script{NextFire: now.Add(2 * time.Hour), TimerInterval: time.Hour}
	if got := h.nextWake(now); got <= 0 || got > 2*time.Hour+time.Second {
		t.Fatalf("expected wake near the timer deadline, got %v", got)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	id, primID, itemID := uuid.New(), uuid.New(), uuid.New()
	blob := []byte("vm-state-bytes")

	raw, err := EncodeEnvelope(id, primID, itemID, blob)
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}
	env, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if env.ID != id || env.PrimID != primID || env.ItemID != itemID {
		t.Fatalf("expected ids preserved, got %+v", env)
	}
	if string(env.Blob) != string(blob) {
		t.Fatalf("expected blob preserved, got %q", env.Blob)
	}
}
