package session

import (
	"fmt"

	"github.com/rezsim/rez/cmn"
)

var errNotIncoming = cmn.NewValidation("complete movement without incoming flag set")

func errBadTransition(from, to State) error {
	return cmn.NewValidation(fmt.Sprintf("invalid session transition %s -> %s", from, to))
}
