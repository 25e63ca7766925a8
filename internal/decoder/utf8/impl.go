package utf8

import (
	"errors"
	"fmt"
	"log"

	"github.com/anjor/runelace/internal/constants"
)

// ErrTruncatedStream is returned by Finish when the stream ended while a
// well-formed but unfinished multi-byte sequence was still buffered. The
// withheld bytes were consistent with valid text, they simply never got
// completed: an early close upstream, not corruption.
var ErrTruncatedStream = errors.New("truncated stream: input ended inside a multi-byte character")

// InvalidEncodingError marks a byte sequence that can never become valid
// UTF-8 no matter what follows. Offset is the absolute position of the
// offending sequence within the bytes pushed into this instance.
type InvalidEncodingError struct {
	Offset int64
}

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("invalid UTF-8 encoding at stream byte %d", e.Offset)
}

// Chunker reassembles a byte stream delivered in arbitrarily sized pieces
// into complete, valid UTF-8 fragments. When a chunk ends partway through
// a multi-byte character, the trailing 1 to 3 bytes are withheld and
// prepended to the next chunk, so no character is ever split or replaced.
//
// The zero value is ready to use. One stream, one instance: a Chunker
// holds partial state between pushes and must not be shared across
// concurrently decoded streams.
type Chunker struct {
	carry    [constants.MaxCarryLen]byte
	carryLen int
	consumed int64
}

func New() *Chunker {
	return &Chunker{}
}

// Push consumes the next chunk and returns all text decodable so far.
//
// An empty fragment with a nil error means nothing is ready yet: either
// the chunk was empty, or all of its bytes continue a sequence the next
// chunk must finish. A returned fragment is always non-empty, valid, and
// never ends mid-character.
//
// A non-nil error is terminal for the instance; Reset before reuse.
func (c *Chunker) Push(chunk []byte) (string, error) {

	if len(chunk) == 0 {
		return "", nil
	}

	base := c.consumed - int64(c.carryLen)
	c.consumed += int64(len(chunk))

	// Fast path: nothing carried means the chunk itself is the candidate,
	// and a fully-valid one converts straight to a fragment
	var candidate []byte
	if c.carryLen == 0 {
		candidate = chunk
	} else {
		candidate = make([]byte, 0, c.carryLen+len(chunk))
		candidate = append(candidate, c.carry[:c.carryLen]...)
		candidate = append(candidate, chunk...)
	}

	validUpTo, incomplete := validate(candidate)

	if validUpTo == len(candidate) {
		c.carryLen = 0
		return string(candidate), nil
	}

	if !incomplete {
		// the stream is desynchronized beyond this point: drop the carry
		// so the instance stays in a bounded state
		c.carryLen = 0
		return "", &InvalidEncodingError{Offset: base + int64(validUpTo)}
	}

	if constants.PerformSanityChecks && len(candidate)-validUpTo > constants.MaxCarryLen {
		log.Panicf(
			"impossible %d-byte incomplete sequence withheld at offset %d",
			len(candidate)-validUpTo,
			base+int64(validUpTo),
		)
	}

	c.carryLen = copy(c.carry[:], candidate[validUpTo:])

	if validUpTo == 0 {
		return "", nil
	}
	return string(candidate[:validUpTo]), nil
}

// Finish must be called exactly once after the final Push. A non-nil
// result is always ErrTruncatedStream: the withheld bytes are not part of
// any fragment, and every fragment already returned remains valid.
func (c *Chunker) Finish() error {
	if c.carryLen == 0 {
		return nil
	}
	return ErrTruncatedStream
}

// Buffered reports how many bytes of an unfinished sequence are withheld
// between pushes, always within [0, constants.MaxCarryLen].
func (c *Chunker) Buffered() int {
	return c.carryLen
}

// Reset returns the instance to its initial state, for reuse after an
// InvalidEncodingError or on a brand new stream.
func (c *Chunker) Reset() {
	c.carryLen = 0
	c.consumed = 0
}

// validate scans s and returns the length of its longest valid UTF-8
// prefix. incomplete is true when everything past that prefix is the
// consistent beginning of a single multi-byte sequence that ran out of
// input, as opposed to bytes that can never form valid text.
func validate(s []byte) (validUpTo int, incomplete bool) {

	i := 0
	for i < len(s) {

		if s[i] < 0x80 {
			i++
			continue
		}

		size, lo, hi := seqBounds(s[i])
		if size == 0 {
			return i, false
		}

		if i+size > len(s) {
			// shorter than the lead byte declares: incomplete only when
			// every byte actually present sits in its positional range
			for j, b := range s[i+1:] {
				if j == 0 {
					if b < lo || b > hi {
						return i, false
					}
				} else if b < 0x80 || b > 0xBF {
					return i, false
				}
			}
			return i, true
		}

		if s[i+1] < lo || s[i+1] > hi {
			return i, false
		}
		for j := 2; j < size; j++ {
			if s[i+j] < 0x80 || s[i+j] > 0xBF {
				return i, false
			}
		}

		i += size
	}

	return i, false
}

// seqBounds gives the declared sequence length for a lead byte, plus the
// acceptance range of the byte that follows it. The narrowed E0/ED/F0/F4
// rows reject overlong encodings, UTF-16 surrogates and anything past
// U+10FFFF right at the second byte, per RFC 3629. A zero size marks a
// byte that cannot begin a sequence (bare continuations, C0/C1, F5..FF).
func seqBounds(lead byte) (size int, lo, hi byte) {
	switch {
	case lead < 0xC2:
		return 0, 0, 0
	case lead < 0xE0:
		return 2, 0x80, 0xBF
	case lead == 0xE0:
		return 3, 0xA0, 0xBF
	case lead == 0xED:
		return 3, 0x80, 0x9F
	case lead < 0xF0:
		return 3, 0x80, 0xBF
	case lead == 0xF0:
		return 4, 0x90, 0xBF
	case lead < 0xF4:
		return 4, 0x80, 0xBF
	case lead == 0xF4:
		return 4, 0x80, 0x8F
	default:
		return 0, 0, 0
	}
}
