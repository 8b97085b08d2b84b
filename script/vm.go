package script

// passthroughVM is the default VM: it never executes anything, but it
// is a real, non-nil collaborator that round-trips whatever bytes it
// was built from. It lets a Host run end-to-end (dispatch, scheduling,
// save/restore) before a real script-language binding is wired in as
// the compile/restore factory.
type passthroughVM struct {
	state []byte
}

func (v *passthroughVM) RunSlice(n int) bool { return true }

func (v *passthroughVM) Dispatch(ev Event) {}

func (v *passthroughVM) Save() ([]byte, error) { return v.state, nil }

// DefaultCompile builds a passthroughVM from ADD_SCRIPT bytecode.
func DefaultCompile(bytecode []byte) (VM, error) {
	return &passthroughVM{state: bytecode}, nil
}

// DefaultRestore builds a passthroughVM from a RESTORE_SCRIPT save blob.
func DefaultRestore(saveBlob []byte) (VM, error) {
	return &passthroughVM{state: saveBlob}, nil
}
