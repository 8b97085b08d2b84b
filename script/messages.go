// Package script is the concurrent script host: a worker goroutine
// communicating with the main goroutine over two bounded FIFO channels,
// modeled after AIStore's xact worker-thread pattern (a single
// long-running goroutine driven by Start/Run, torn down via Abort/Finish)
// generalized here to a message-passing VM scheduler instead of a data
// mover.
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package script

import (
	"github.com/google/uuid"
)

// MsgKind tags the payload carried on the two inter-thread queues.
type MsgKind int

const (
	MsgShutdown MsgKind = iota
	MsgAddScript
	MsgRestoreScript
	MsgKillScript
	MsgRPC
	MsgRPCReturn
	MsgEVMask
	MsgEvent
	MsgLLSay
	MsgScriptKilled
)

func (k MsgKind) String() string {
	switch k {
	case MsgShutdown:
		return "SHUTDOWN"
	case MsgAddScript:
		return "ADD_SCRIPT"
	case MsgRestoreScript:
		return "RESTORE_SCRIPT"
	case MsgKillScript:
		return "KILL_SCRIPT"
	case MsgRPC:
		return "RPC"
	case MsgRPCReturn:
		return "RPC_RETURN"
	case MsgEVMask:
		return "EVMASK"
	case MsgEvent:
		return "EVENT"
	case MsgLLSay:
		return "LLSAY"
	case MsgScriptKilled:
		return "SCRIPT_KILLED"
	default:
		return "UNKNOWN"
	}
}

// Message is the envelope exchanged on both inter-thread queues.
type Message struct {
	Kind     MsgKind
	ScriptID uuid.UUID

	Bytecode []byte   // ADD_SCRIPT
	SaveBlob []byte   // RESTORE_SCRIPT
	Event    Event    // EVENT
	EVMask   uint32   // EVMASK
	RPCCall  *RPCCall // RPC / RPC_RETURN
	ChatText string   // LLSAY
	ChatChan int32    // LLSAY
}

// RPCCall carries a native-function invocation across the RPC/RPC_RETURN
// handshake: the script thread hands temporary VM ownership to the main
// thread, which performs the call and returns the result.
type RPCCall struct {
	Name   string
	Args   []any
	Result any
	Err    error
}

// EventKind is the detected-event discriminator used for scheduling
// priority: state_entry > changed > timer > queued events in FIFO order.
type EventKind int

const (
	EventStateEntry EventKind = iota
	EventChanged
	EventTimer
	EventTouch
	EventCollision
	EventLinkMessage
)

type Event struct {
	Kind EventKind
	Args []any
}
