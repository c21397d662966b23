package gossip

import "errors"

// Sentinel errors mirroring the reference implementation's negative error
// codes.
var (
	ErrInitFailed       = errors.New("gossip: init failed")
	ErrAllocationFailed = errors.New("gossip: allocation failed")
	ErrBadState         = errors.New("gossip: operation invalid in current state")
	ErrInvalidMessage   = errors.New("gossip: invalid message")
	ErrBufferNotEnough  = errors.New("gossip: buffer not enough")
	ErrNotFound         = errors.New("gossip: not found")
)
