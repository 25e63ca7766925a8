package runelace

import (
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// A decompressor wraps the raw input with a decoding io.Reader, plus an
// optional teardown invoked after the stream is fully drained.
type decompressorInitializer func(io.Reader) (io.Reader, func(), error)

var availableDecompressors = map[string]decompressorInitializer{
	"none": nil,
	"gzip": func(r io.Reader) (io.Reader, func(), error) {
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gzr, nil, nil
	},
	"zstd": func(r io.Reader) (io.Reader, func(), error) {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	},
	"xz": func(r io.Reader) (io.Reader, func(), error) {
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xr, nil, nil
	},
}
