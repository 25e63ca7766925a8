package rldecoder

import (
	"github.com/anjor/runelace/internal/constants"
)

type InstanceConstants struct {
	_ constants.Incomparabe

	// Largest byte count the instance will ever withhold between pushes
	MaxCarry int
}

type Initializer func(
	decoderCLISubArgs []string,
) (
	instance Decoder,
	constants InstanceConstants,
	initErrorStrings []error,
)

// Decoder turns an ordered sequence of byte chunks into an ordered
// sequence of text fragments. One instance serves exactly one stream:
// implementations carry partial state between pushes and perform no
// internal locking.
type Decoder interface {
	// Push hands the decoder the next chunk. An empty fragment means
	// every byte is either consumed into earlier fragments or withheld
	// as the beginning of a sequence the next chunk must finish.
	Push(chunk []byte) (fragment string, err error)

	// Finish must be called exactly once after the final Push, to
	// surface input that ended inside a partial sequence.
	Finish() error

	// Buffered reports the byte count currently withheld.
	Buffered() int
}
