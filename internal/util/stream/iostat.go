package stream

import (
	"os"

	"github.com/mattn/go-isatty"
)

// Optimization is an advisory kernel hint applied to a stream file handle.
// Actions return os.ErrInvalid when the handle is of an inapplicable type,
// which callers are expected to silently skip.
type Optimization struct {
	Name   string
	Action func(fh *os.File, stat os.FileInfo) error
}

var ReadOptimizations []Optimization
var WriteOptimizations []Optimization

// IsTTY reports whether the given reader/writer is an interactive terminal.
func IsTTY(fh interface{}) bool {
	f, isFile := fh.(*os.File)
	if !isFile {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
