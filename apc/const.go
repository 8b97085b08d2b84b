// Package apc ("action/protocol constants") collects the wire-level enums
// rez's core depends on, mirroring AIStore's api/apc package.
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package apc

// ChatType is the UDP chat-from-viewer/chat-from-simulator type tag.
type ChatType int

const (
	ChatWhisper ChatType = iota
	ChatNormal
	ChatShout
	ChatOwnerSay
	ChatDebug
	ChatSystem
)

// Range returns the broadcast radius in meters for a chat type: whisper
// 10m, normal 20m, shout/system/debug 40m.
func (c ChatType) Range() float64 {
	switch c {
	case ChatWhisper:
		return 10
	case ChatNormal:
		return 20
	case ChatShout, ChatSystem, ChatDebug:
		return 40
	default:
		return 20
	}
}

// DebugChannel is the reserved channel scripts/owners receive
// diagnostics on, alongside channel 0.
const DebugChannel int32 = 2147483647

// Dirty bits for per-session composite object updates.
type DirtyBit uint32

const (
	DirtyCreated DirtyBit = 1 << iota
	DirtyPosRot
	DirtyScale
	DirtyShape
	DirtyTexture
	DirtyFlags
	DirtyMaterial
	DirtyText
	DirtyParent
	DirtyChildren
	DirtyExtraParams
	DirtyAvOnSeat
	DirtyAvatars
)

// Attach points: 1..38, with 31..38 being HUD slots.
const (
	AttachPointMin     = 1
	AttachPointMax     = 38
	AttachPointHUDMin  = 31
	AttachPointHUDMax  = 38
	MaxLinksetChildren = 255
)

// Session bit-flags, carried on the per-user session context.
type SessionFlag uint32

const (
	FlagChild SessionFlag = 1 << iota
	FlagFull
	FlagIncoming
	FlagPurge
	FlagLogout
	FlagAppearanceDirty
	FlagAnimUpdate
	FlagTeleportComplete
	FlagSlowRemoval
	FlagPaused
	FlagAlwaysRun
)

// Throttle buckets, one leaky bucket per outbound traffic class.
type ThrottleClass int

const (
	ThrottleResend ThrottleClass = iota
	ThrottleLand
	ThrottleWind
	ThrottleCloud
	ThrottleTask
	ThrottleTexture
	ThrottleAsset
	NumThrottles
)

var ThrottleNames = [NumThrottles]string{
	ThrottleResend:  "resend",
	ThrottleLand:    "land",
	ThrottleWind:    "wind",
	ThrottleCloud:   "cloud",
	ThrottleTask:    "task",
	ThrottleTexture: "texture",
	ThrottleAsset:   "asset",
}

const InitialThrottleRate = 64000 // bytes/sec, starting rate for every bucket

// Liveness timeouts.
const (
	LivenessTimeoutNormal = 15 // seconds
	LivenessTimeoutPaused = 90
)

// Asset/texture cache status.
type AssetStatus int

const (
	AssetPending AssetStatus = iota
	AssetReady
	AssetMissing
)

// Federation methods exchanged between grid services.
const (
	MethodExpectUser         = "expect_user"
	MethodLogoffUser         = "logoff_user"
	MethodGridInstantMessage = "grid_instant_message"
	MethodLoginToSimulator   = "login_to_simulator"
)

// Well-known capability names.
const (
	CapEventQueueGet      = "EventQueueGet"
	CapServerReleaseNotes = "ServerReleaseNotes"
	CapUpdateScriptTask   = "UpdateScriptTask"
	CapUpdateScriptAgent  = "UpdateScriptAgent"
	CapNewFileAgentInv    = "NewFileAgentInventory"
)

// Inventory limits.
const MaxFolderEntries = 65535

// Extra-params TLV limits.
const (
	MaxExtraParams     = 255
	MaxExtraParamsSize = 4096
)

// Known extra-param types, grounded on the original's prim extra-params
// table.
const (
	ExtraParamFlexible = 0x10
	ExtraParamLight    = 0x23
	ExtraParamSculpt   = 0x30
)
