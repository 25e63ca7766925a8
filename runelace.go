package runelace

import (
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/anjor/runelace/internal/constants"
	"github.com/anjor/runelace/internal/decoder"
	utf8dec "github.com/anjor/runelace/internal/decoder/utf8"
	"github.com/anjor/runelace/internal/util/argparser"
	"github.com/ipfs/go-qringbuf"
	"github.com/pborman/getopt/v2"
)

var availableDecoders = map[string]rldecoder.Initializer{
	"utf8": utf8dec.NewDecoder,
}

type decoderUnit struct {
	_         constants.Incomparabe
	initArgs  []string
	init      rldecoder.Initializer
	constants rldecoder.InstanceConstants
}

// per-substream counters, folded into statSummary when a stream is sealed
type streamTally struct {
	_            constants.Incomparabe
	bytes        int64
	fragments    int64
	runes        int64
	splitsHealed int64
}

type Runelace struct {
	// speederization shortcut flags for internal logic
	generateStreamJsonl bool

	curStreamOffset  int64
	cfg              config
	statSummary      statSummary
	decoder          decoderUnit
	tally            streamTally
	formattedDigest  func(digest []byte) string
	newHasher        func() hash.Hash
	externalEventBus chan<- IngestionEvent
	qrb              *qringbuf.QuantizedRingBuffer
	fpQueue          chan fingerprintUnit
	fpDone           chan struct{}
	mu               sync.Mutex
	seenStreams      seenStreams
}

func NewRunelace() *Runelace {
	return &Runelace{
		cfg:         defaultConfig(),
		statSummary: setStatSummary(),
	}
}

// NewRunelaceFromArgv parses a complete argv, wiring decoders, emitters
// and fingerprinting. Any argument problem is printed together with usage
// and terminates the process.
func NewRunelaceFromArgv(argv []string) (rl *Runelace) {

	rl, argParseErrs := newFromArgv(argv, os.Stderr, os.Stdout)
	logArgParseErrors(argParseErrs, &rl.cfg)
	return
}

// NewRunelaceWithWriters behaves like NewRunelaceFromArgv over an empty
// argument list, but binds the stdERR/stdOUT emitter slots to the given
// writers and reports problems instead of terminating. Used by tests.
func NewRunelaceWithWriters(stderrWriter, stdoutWriter io.Writer) (*Runelace, []error) {
	return newFromArgv([]string{"runelace"}, stderrWriter, stdoutWriter)
}

func newFromArgv(argv []string, stderrWriter, stdoutWriter io.Writer) (rl *Runelace, argParseErrs []error) {

	rl = NewRunelace()
	rl.statSummary.SysStats.ArgvInitial = getInitialArgs(argv)

	cfg := &rl.cfg
	cfg.stdErrWriter = stderrWriter
	cfg.stdOutWriter = stdoutWriter
	cfg.initArgvParser()

	// accumulator for multiple errors, to present to the user all at once
	argParseErrs = argparser.Parse(argv, cfg.optSet)

	if cfg.Help || cfg.HelpAll {
		cfg.printUsage()
		os.Exit(0)
	}

	if cfg.RingBufferSize < 2*constants.MaxRegionPayloadSize {
		argParseErrs = append(argParseErrs, fmt.Errorf(
			"the value of --ring-buffer-size must be at least %d",
			2*constants.MaxRegionPayloadSize,
		))
	}

	argParseErrs = append(argParseErrs, rl.setupDecoder()...)
	argParseErrs = append(argParseErrs, rl.setupDecompression()...)
	argParseErrs = append(argParseErrs, rl.setupFingerprinting()...)
	argParseErrs = append(argParseErrs, rl.setupEmitters()...)

	// Opts check out - prep the text output channel
	if len(argParseErrs) == 0 && rl.cfg.emitters[emTextStream] != nil {
		argParseErrs = append(argParseErrs, rl.setupTextWriting()...)
	}

	if len(argParseErrs) > 0 {
		return
	}

	// Opts *still* check out - take a snapshot of what we ended up with

	// All digest-determining opts come last in a predefined order
	digestOpts := []string{
		"decompress",
		"decoder",
		"fingerprint",
		"fingerprint-multibase",
	}
	digestOptsIdx := map[string]struct{}{}
	for _, n := range digestOpts {
		digestOptsIdx[n] = struct{}{}
	}

	// first do the generic options
	cfg.optSet.VisitAll(func(o getopt.Option) {
		switch o.LongName() {
		case "help", "help-all":
			// do nothing for these
		default:
			// skip these keys too, they come next
			if _, exists := digestOptsIdx[o.LongName()]; !exists {
				rl.statSummary.SysStats.ArgvExpanded = append(
					rl.statSummary.SysStats.ArgvExpanded, fmt.Sprintf(`--%s=%s`,
						o.LongName(),
						o.Value().String(),
					),
				)
			}
		}
	})
	sort.Strings(rl.statSummary.SysStats.ArgvExpanded)

	// now do the remaining digest-determining options
	for _, n := range digestOpts {
		rl.statSummary.SysStats.ArgvExpanded = append(
			rl.statSummary.SysStats.ArgvExpanded, fmt.Sprintf(`--%s=%s`,
				n,
				cfg.optSet.GetValue(n),
			),
		)
	}

	return
}

func getInitialArgs(argv []string) []string {
	init := make([]string, len(argv))
	copy(init, argv)
	return init
}

// freshDecoder instantiates the already-validated decoder selection: one
// instance per substream, partial state never leaks across streams.
func (rl *Runelace) freshDecoder() rldecoder.Decoder {
	instance, _, initErrs := rl.decoder.init(rl.decoder.initArgs)
	if len(initErrs) > 0 {
		// the same args passed setupDecoder already
		panic(fmt.Sprintf("decoder re-initialization failed: %s", initErrs[0]))
	}
	return instance
}

func (rl *Runelace) Destroy() {
	rl.mu.Lock()
	rl.qrb = nil
	rl.mu.Unlock()
}
