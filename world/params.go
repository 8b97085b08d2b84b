package world

import (
	"github.com/rezsim/rez/apc"
	"github.com/rezsim/rez/cmn"
	"github.com/rezsim/rez/cmn/nlog"
)

// PrimParamsBuilder is a single-entry, builder-style batching context: a
// caller issues a sequence of typed rules against one prim, each rule is
// validated and quantized immediately, and exactly one SHAPE or
// EXTRA_PARAMS dirty notification is emitted when the builder is applied.
// A malformed rule aborts the batch at the offending rule: later rules
// are skipped and Apply reports the error instead of a dirty
// notification, but fields written by earlier rules in the same batch
// stay written.
type PrimParamsBuilder struct {
	w    *World
	p    *Prim
	want apc.DirtyBit
	err  error
}

// SetPrimitiveParams opens a batch against p.
func (w *World) SetPrimitiveParams(p *Prim) *PrimParamsBuilder {
	return &PrimParamsBuilder{w: w, p: p}
}

func (b *PrimParamsBuilder) fail(msg string) *PrimParamsBuilder {
	if b.err == nil {
		b.err = cmn.NewValidation(msg)
	}
	return b
}

// quantizeUnit100 maps a float in [-1,1] to an int8 via ×100.
func quantizeUnit100(v float64) int8 {
	v = cmn.Clamp(v, -1, 1)
	return int8(v * 100)
}

// quantizeFrac50000 maps a float in [0,1] to an int16 via ×50000.
func quantizeFrac50000(v float64) int16 {
	v = cmn.Clamp(v, 0, 1)
	return int16(v * 50000)
}

// Twist sets path twist begin/end, quantized ±1.0 -> int8 via ×100.
func (b *PrimParamsBuilder) Twist(begin, end float64) *PrimParamsBuilder {
	if b.err != nil {
		return b
	}
	if begin < -1 || begin > 1 || end < -1 || end > 1 {
		return b.fail("twist out of range [-1,1]")
	}
	b.p.Shape.TwistBegin = quantizeUnit100(begin)
	b.p.Shape.TwistEnd = quantizeUnit100(end)
	b.want |= apc.DirtyShape
	return b
}

// Taper sets path taper x/y.
func (b *PrimParamsBuilder) Taper(x, y float64) *PrimParamsBuilder {
	if b.err != nil {
		return b
	}
	if x < -1 || x > 1 || y < -1 || y > 1 {
		return b.fail("taper out of range [-1,1]")
	}
	b.p.Shape.TaperX = quantizeUnit100(x)
	b.p.Shape.TaperY = quantizeUnit100(y)
	b.want |= apc.DirtyShape
	return b
}

// Shear sets path shear x/y.
func (b *PrimParamsBuilder) Shear(x, y float64) *PrimParamsBuilder {
	if b.err != nil {
		return b
	}
	if x < -1 || x > 1 || y < -1 || y > 1 {
		return b.fail("shear out of range [-1,1]")
	}
	b.p.Shape.ShearX = quantizeUnit100(x)
	b.p.Shape.ShearY = quantizeUnit100(y)
	b.want |= apc.DirtyShape
	return b
}

// Hollow sets the profile hollow fraction, quantized via ×50000.
func (b *PrimParamsBuilder) Hollow(frac float64) *PrimParamsBuilder {
	if b.err != nil {
		return b
	}
	if frac < 0 || frac > 1 {
		return b.fail("hollow out of range [0,1]")
	}
	b.p.Shape.Hollow = quantizeFrac50000(frac)
	b.want |= apc.DirtyShape
	return b
}

// ProfileRange sets profile begin/end fractions.
func (b *PrimParamsBuilder) ProfileRange(begin, end float64) *PrimParamsBuilder {
	if b.err != nil {
		return b
	}
	if begin < 0 || begin > 1 || end < 0 || end > 1 || begin > end {
		return b.fail("profile range invalid")
	}
	b.p.Shape.ProfileBegin = quantizeFrac50000(begin)
	b.p.Shape.ProfileEnd = quantizeFrac50000(end)
	b.want |= apc.DirtyShape
	return b
}

// PathRange sets path begin/end fractions.
func (b *PrimParamsBuilder) PathRange(begin, end float64) *PrimParamsBuilder {
	if b.err != nil {
		return b
	}
	if begin < 0 || begin > 1 || end < 0 || end > 1 || begin > end {
		return b.fail("path range invalid")
	}
	b.p.Shape.PathBegin = quantizeFrac50000(begin)
	b.p.Shape.PathEnd = quantizeFrac50000(end)
	b.want |= apc.DirtyShape
	return b
}

// Curves sets the profile/path curve type bytes.
func (b *PrimParamsBuilder) Curves(profileCurve, pathCurve uint8) *PrimParamsBuilder {
	if b.err != nil {
		return b
	}
	b.p.Shape.ProfileCurve = profileCurve
	b.p.Shape.PathCurve = pathCurve
	b.want |= apc.DirtyShape
	return b
}

// ExtraParam stages a single extra-params TLV entry write, merged into the
// same single EXTRA_PARAMS notification as any other ExtraParam call in
// this batch.
func (b *PrimParamsBuilder) ExtraParam(typ uint16, data []byte) *PrimParamsBuilder {
	if b.err != nil {
		return b
	}
	if err := b.p.SetExtraParam(typ, data); err != nil {
		b.err = err
		return b
	}
	b.want |= apc.DirtyExtraParams
	return b
}

// Apply finalizes the batch: on success it emits exactly one dirty
// notification covering every rule applied; on failure it reports to the
// prim owner's session alone, on the debug channel, and leaves the prim
// exactly as it was before the offending rule (earlier-in-batch quantized
// fields are NOT rolled back — batches should order destructive writes
// last if they depend on validation of later rules).
func (b *PrimParamsBuilder) Apply() error {
	if b.err != nil {
		nlog.Warningf("set_primitive_params: %s on prim %s", b.err, b.p.ID)
		if b.w.chatDeliver != nil {
			b.w.BroadcastChat(ChatMessage{
				SourceID: b.p.ID,
				Channel:  apc.DebugChannel,
				Type:     apc.ChatOwnerSay,
				Text:     b.err.Error(),
				Pos:      b.p.WorldPos,
			}, b.w.chatDeliver)
		}
		return b.err
	}
	if b.want != 0 {
		b.w.notifyDirty(b.p.ID, b.want)
	}
	return nil
}
