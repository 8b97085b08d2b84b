package world

import "errors"

var (
	errInvalidAttachPoint = errors.New("world: invalid attach point")
	errNotFound           = errors.New("world: object not found")
	errLinksetFull        = errors.New("world: linkset would exceed 255 children")
	errAlreadyParented    = errors.New("world: object already parented")
	errNotAPrim           = errors.New("world: object is not a prim")
	errNotAnAvatar        = errors.New("world: object is not an avatar")
)
