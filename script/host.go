package script

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rezsim/rez/cmn/debug"
	"github.com/rezsim/rez/cmn/mono"
	"github.com/rezsim/rez/cmn/nlog"
)

// maxWaitChunk bounds a single blocking wait on the incoming queue to
// avoid 32-bit overflow in any downstream duration arithmetic.
const maxWaitChunk = 600 * time.Second

// queueDepth bounds each inter-thread FIFO.
const queueDepth = 256

// CompileFunc turns a script asset's compiled bytecode into a fresh VM,
// for ADD_SCRIPT. The bytecode format itself is the VM's concern.
type CompileFunc func(bytecode []byte) (VM, error)

// RestoreFunc turns a previously saved VM blob back into a running VM,
// for RESTORE_SCRIPT.
type RestoreFunc func(saveBlob []byte) (VM, error)

// Host owns the script worker goroutine and the shared VM table. Two
// bounded channels are the only communication with the main goroutine;
// one mutex guards the VM table itself. VM construction is an injected
// collaborator: Host never assumes anything about bytecode or save-blob
// format beyond handing it to compile/restore.
type Host struct {
	mu      sync.Mutex
	scripts map[uuid.UUID]*Script

	compile CompileFunc
	restore RestoreFunc

	toScript chan Message // main -> script
	toMain   chan Message // script -> main

	done chan struct{}
}

// NewHost builds a Host that compiles ADD_SCRIPT bytecode via compile and
// rehydrates RESTORE_SCRIPT save blobs via restore.
func NewHost(compile CompileFunc, restore RestoreFunc) *Host {
	return &Host{
		scripts:  make(map[uuid.UUID]*Script),
		compile:  compile,
		restore:  restore,
		toScript: make(chan Message, queueDepth),
		toMain:   make(chan Message, queueDepth),
		done:     make(chan struct{}),
	}
}

// Run is the script worker goroutine's entry point; callers start it with
// `go host.Run()`.
func (h *Host) Run() {
	for {
		select {
		case <-h.done:
			return
		default:
		}
		wake := h.tick()
		wait := wake
		if wait <= 0 || wait > maxWaitChunk {
			wait = maxWaitChunk
		}
		select {
		case msg, ok := <-h.toScript:
			if !ok {
				return
			}
			if h.handleIncoming(msg) {
				return
			}
		case <-time.After(wait):
		case <-h.done:
			return
		}
	}
}

// Shutdown stops the worker goroutine after its current tick.
func (h *Host) Shutdown() {
	h.toScript <- Message{Kind: MsgShutdown}
}

// ToMain is the read side the main goroutine drains each event-loop
// iteration to process RPC/EVMASK/LLSAY/SCRIPT_KILLED messages.
func (h *Host) ToMain() <-chan Message { return h.toMain }

// Send delivers a main->script message (ADD_SCRIPT, RESTORE_SCRIPT,
// KILL_SCRIPT, RPC_RETURN, EVENT).
func (h *Host) Send(m Message) { h.toScript <- m }

// handleIncoming applies one main->script control message; returns true
// if the worker should exit.
func (h *Host) handleIncoming(m Message) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch m.Kind {
	case MsgShutdown:
		return true
	case MsgAddScript:
		s := &Script{ID: m.ScriptID, Main: MainRunning, Run: Idle}
		vm, err := h.compile(m.Bytecode)
		if err != nil {
			s.Main = MainCompileError
			s.CompileErr = err.Error()
		} else {
			s.VM = vm
			s.PushEvent(Event{Kind: EventStateEntry})
		}
		h.scripts[m.ScriptID] = s
	case MsgRestoreScript:
		s := &Script{ID: m.ScriptID, Main: MainRunning, Run: Idle}
		vm, err := h.restore(m.SaveBlob)
		if err != nil {
			s.Main = MainCompileError
			s.CompileErr = err.Error()
		} else {
			s.VM = vm
			s.PushEvent(Event{Kind: EventChanged}) // implicit changed(REGION_START)
		}
		h.scripts[m.ScriptID] = s
	case MsgKillScript:
		s, ok := h.scripts[m.ScriptID]
		if !ok {
			return false
		}
		// Per the kill discipline: once KILL_SCRIPT is sent, the main
		// thread sends nothing further for this script until
		// SCRIPT_KILLED, and the script thread must reply exactly once.
		s.Main = MainKilling
		delete(h.scripts, m.ScriptID)
		h.toMain <- Message{Kind: MsgScriptKilled, ScriptID: m.ScriptID}
	case MsgRPCReturn:
		s, ok := h.scripts[m.ScriptID]
		if !ok {
			return false
		}
		s.InRPC = false
		if m.RPCCall != nil && s.VM != nil {
			s.VM.Dispatch(Event{Kind: EventChanged, Args: []any{m.RPCCall.Result, m.RPCCall.Err}})
		}
		s.Run = Runnable
	case MsgEvent:
		s, ok := h.scripts[m.ScriptID]
		if !ok {
			return false
		}
		switch m.Event.Kind {
		case EventTouch, EventCollision:
			s.PendingDetected = &m.Event
		default:
			s.PushEvent(m.Event)
		}
		if s.Run == Idle {
			s.Run = Runnable
		}
	}
	return false
}

// tick runs one pass of the scheduling loop: advance timers/delays, wake
// deadline-passed scripts, dispatch up to maxRunnablePerRound runnable
// scripts, and compute the next wake deadline.
func (h *Host) tick() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	for _, s := range h.scripts {
		if !s.NextFire.IsZero() && !now.Before(s.NextFire) {
			s.PushEvent(Event{Kind: EventTimer})
			s.NextFire = s.NextFire.Add(s.TimerInterval)
			if s.Run == WaitingTimer || s.Run == Idle {
				s.Run = Runnable
			}
		}
		if !s.DelayUntil.IsZero() && !now.Before(s.DelayUntil) {
			s.DelayUntil = time.Time{}
			if s.Run == WaitingDelay {
				s.Run = Runnable
			}
		}
	}

	dispatched := 0
	for _, s := range h.scripts {
		if dispatched >= maxRunnablePerRound {
			break
		}
		if s.Main == MainKilling || s.Main == MainCompileError {
			continue
		}
		switch {
		case s.InRPC:
			// descheduled until RPC_RETURN arrives
		case !s.DelayUntil.IsZero():
			s.Run = WaitingDelay
		case s.Run == Idle:
			if ev, ok := s.popNextEvent(); ok {
				start := mono.NanoTime()
				s.VM.Dispatch(ev)
				debug.Assert(mono.Since(start) >= 0)
				dispatched++
			}
		case s.Run == Runnable:
			yielded := s.VM.RunSlice(instructionSlice)
			if yielded {
				s.Run = Idle
			}
			dispatched++
		}
	}

	return h.nextWake(now)
}

func (h *Host) nextWake(now time.Time) time.Duration {
	var next time.Time
	for _, s := range h.scripts {
		candidates := []time.Time{s.NextFire, s.DelayUntil}
		for _, t := range candidates {
			if t.IsZero() {
				continue
			}
			if next.IsZero() || t.Before(next) {
				next = t
			}
		}
	}
	if next.IsZero() {
		return maxWaitChunk
	}
	d := next.Sub(now)
	if d < 0 {
		d = 0
	}
	return d
}

// AddScript loads compiled bytecode for a new script instance.
func (h *Host) AddScript(id uuid.UUID, bytecode []byte) {
	h.Send(Message{Kind: MsgAddScript, ScriptID: id, Bytecode: bytecode})
}

// RestoreScript primes a script with previously saved VM state; on region
// restart every script is restored this way, each getting an implicit
// changed(REGION_START) event.
func (h *Host) RestoreScript(id uuid.UUID, blob []byte) {
	h.Send(Message{Kind: MsgRestoreScript, ScriptID: id, SaveBlob: blob})
}

// KillScript requests termination; callers must wait for SCRIPT_KILLED on
// ToMain() before freeing any main-thread record for this script.
func (h *Host) KillScript(id uuid.UUID) {
	h.Send(Message{Kind: MsgKillScript, ScriptID: id})
}

// SaveScript serializes a loaded script's VM in place, under the host
// mutex, for the persist package to frame into a simstate record.
func (h *Host) SaveScript(id uuid.UUID) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.scripts[id]
	if !ok || s.VM == nil {
		return nil, nil
	}
	blob, err := s.VM.Save()
	if err != nil {
		nlog.Warningf("script %s: save failed: %v", id, err)
	}
	return blob, err
}

// ScriptCount reports the number of scripts currently loaded, for the
// metrics package's VM-count gauge.
func (h *Host) ScriptCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.scripts)
}
