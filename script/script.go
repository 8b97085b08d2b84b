package script

import (
	"time"

	"github.com/google/uuid"
)

// MainState is the main-thread's view of a script's lifecycle.
type MainState int

const (
	MainCompiling MainState = iota
	MainCompileError
	MainRunning
	MainPaused
	MainKilling
)

// RunState is the script-thread's view of a script's schedulability.
type RunState int

const (
	Runnable RunState = iota
	WaitingRPC
	WaitingDelay
	WaitingTimer
	WaitingEvent
	Idle
)

// maxQueuedEvents bounds a script's event queue; the oldest event is
// dropped once it overflows.
const maxQueuedEvents = 32

// instructionSlice is how many VM instructions run per dispatch turn.
const instructionSlice = 100

// maxRunnablePerRound bounds how many scripts the scheduler dispatches in
// one pass of the scheduling loop.
const maxRunnablePerRound = 20

// VM is the compiled-script execution surface; bytecode format and actual
// instruction semantics are an external concern. The host only needs to
// slice execution and deliver events.
type VM interface {
	// RunSlice executes up to n VM instructions, returning early if the
	// script yields (sleep, RPC call, end of handler).
	RunSlice(n int) (yielded bool)
	// Dispatch delivers ev to the running event handler.
	Dispatch(ev Event)
	// Save serializes VM state for persistence.
	Save() ([]byte, error)
}

// Script is one loaded script instance: main-thread state, script-thread
// scheduling state, and its event/timer/delay bookkeeping.
type Script struct {
	ID      uuid.UUID
	PrimID  uuid.UUID
	ItemID  uuid.UUID

	Main MainState
	Run  RunState

	VM VM

	EventQueue []Event

	TimerInterval time.Duration
	NextFire      time.Time // zero means disabled

	DelayUntil time.Time // zero means not delayed

	PendingDetected *Event // touch/collision params awaiting dispatch

	InRPC     bool
	EVMask    uint32
	CompileErr string
}

// PushEvent enqueues ev, dropping the oldest queued event once the queue
// is at capacity.
func (s *Script) PushEvent(ev Event) {
	if len(s.EventQueue) >= maxQueuedEvents {
		s.EventQueue = s.EventQueue[1:]
	}
	s.EventQueue = append(s.EventQueue, ev)
}

// popNextEvent selects the next event per priority: state_entry > changed
// > timer > queued events in FIFO order. A PendingDetected
// (touch/collision) event is checked before all of these and, when set,
// is returned first and cleared.
func (s *Script) popNextEvent() (Event, bool) {
	if s.PendingDetected != nil {
		ev := *s.PendingDetected
		s.PendingDetected = nil
		return ev, true
	}
	for i, ev := range s.EventQueue {
		if ev.Kind == EventStateEntry {
			s.EventQueue = append(s.EventQueue[:i], s.EventQueue[i+1:]...)
			return ev, true
		}
	}
	for i, ev := range s.EventQueue {
		if ev.Kind == EventChanged {
			s.EventQueue = append(s.EventQueue[:i], s.EventQueue[i+1:]...)
			return ev, true
		}
	}
	for i, ev := range s.EventQueue {
		if ev.Kind == EventTimer {
			s.EventQueue = append(s.EventQueue[:i], s.EventQueue[i+1:]...)
			return ev, true
		}
	}
	if len(s.EventQueue) > 0 {
		ev := s.EventQueue[0]
		s.EventQueue = s.EventQueue[1:]
		return ev, true
	}
	return Event{}, false
}
