// Package framedec adapts a runelace decoder to the incremental
// frame-decoder shape used by buffer-draining stream frameworks: the
// framework appends whatever bytes arrived to a buffer it owns, asks the
// decoder to consume what it can, and drops the consumed prefix.
package framedec

import (
	"github.com/anjor/runelace/internal/decoder"
)

type FrameDecoder interface {
	// Decode consumes as much of buf as possible and returns the decoded
	// frames, in order. The caller drops the first `consumed` bytes from
	// its buffer before the next call.
	Decode(buf []byte) (frames []string, consumed int, err error)

	// DecodeEOF is called instead of Decode for the final buffer state,
	// once the byte source is exhausted.
	DecodeEOF(buf []byte) (frames []string, consumed int, err error)
}

// TextFrameDecoder forwards each buffer into a single decoder instance
// and passes its fragments and errors through untouched. It always drains
// the caller's buffer in full: partial trailing sequences live inside the
// decoder, never in the framework's buffer.
type TextFrameDecoder struct {
	dec rldecoder.Decoder
}

func NewTextFrameDecoder(dec rldecoder.Decoder) *TextFrameDecoder {
	return &TextFrameDecoder{dec: dec}
}

func (t *TextFrameDecoder) Decode(buf []byte) ([]string, int, error) {

	if len(buf) == 0 {
		return nil, 0, nil
	}

	fragment, err := t.dec.Push(buf)
	if err != nil {
		// terminal: the stream must be abandoned, buffer state no longer matters
		return nil, 0, err
	}

	if fragment == "" {
		return nil, len(buf), nil
	}
	return []string{fragment}, len(buf), nil
}

func (t *TextFrameDecoder) DecodeEOF(buf []byte) ([]string, int, error) {

	frames, consumed, err := t.Decode(buf)
	if err != nil {
		return nil, consumed, err
	}

	if err := t.dec.Finish(); err != nil {
		return frames, consumed, err
	}
	return frames, consumed, nil
}
