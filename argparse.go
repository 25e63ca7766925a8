package runelace

import (
	"encoding/base32"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/anjor/runelace/internal/constants"
	"github.com/anjor/runelace/internal/hasher"
	"github.com/anjor/runelace/internal/util/stream"
	"github.com/anjor/runelace/internal/util/text"
	"github.com/multiformats/go-base36"

	"github.com/pborman/getopt/v2"
	"github.com/pborman/options"
)

const (
	statsStreams = 1 << iota
	statsRingbuf
)

type emissionTargets map[string]io.Writer

const (
	emNone           = "none"
	emTextStream     = "text-stream"
	emFragmentsJsonl = "fragments-jsonl"
	emStatsText      = "stats-text"
	emStatsJsonl     = "stats-jsonl"
)

// where the CLI initial error messages go
var argParseErrOut = os.Stderr

func (cfg *config) printUsage() {
	cfg.optSet.PrintUsage(argParseErrOut)
	if cfg.HelpAll || len(cfg.erroredDecoders) > 0 {
		printPluginUsage(
			argParseErrOut,
			cfg.erroredDecoders,
		)
	} else {
		fmt.Fprint(argParseErrOut, "\nTry --help-all for more info\n\n")
	}
}

func printPluginUsage(
	out io.Writer,
	listDecoders []string,
) {

	// if nothing was requested explicitly - list everything
	if len(listDecoders) == 0 {
		for name, initializer := range availableDecoders {
			if initializer != nil {
				listDecoders = append(listDecoders, name)
			}
		}
	}

	if len(listDecoders) != 0 {
		fmt.Fprint(out, "\n")
		sort.Strings(listDecoders)
		for _, name := range listDecoders {
			fmt.Fprintf(
				out,
				"[D]ecoder '%s'\n",
				name,
			)
			_, _, h := availableDecoders[name](nil)
			if len(h) == 0 {
				fmt.Fprint(out, "  -- no helptext available --\n\n")
			} else {
				for _, e := range h {
					fmt.Fprintln(out, e)
				}
			}
		}
	}

	fmt.Fprint(out, "\n")
}

func (cfg *config) initArgvParser() {
	// The default documented way of using pborman/options is to muck with globals
	// Operate over objects instead, allowing us to re-parse argv multiple times
	o := getopt.New()
	if err := options.RegisterSet("", cfg, o); err != nil {
		log.Fatalf("option set registration failed: %s", err)
	}
	cfg.optSet = o

	// program does not take freeform args
	// need to override this for sensible help render
	o.SetParameters("")

	// Several options have the help-text assembled programmatically
	o.FlagLong(&cfg.requestedDecoder, "decoder", 0,
		"Stream decoder to apply. One of: "+text.AvailableMapKeys(availableDecoders)+". Default:",
		"decname_opt1_opt2_..._optN",
	)
	o.FlagLong(&cfg.requestedDecompressor, "decompress", 0,
		"Decompress the input before decoding, one of: "+text.AvailableMapKeys(availableDecompressors)+". Default:",
		"algname",
	)
	o.FlagLong(&cfg.fingerprintFunc, "fingerprint", 0,
		"Hash function fingerprinting the decoded output, one of: "+text.AvailableMapKeys(hasher.AvailableHashers)+". Default:",
		"algname",
	)
	o.FlagLong(&cfg.emittersStdErr, "emit-stderr", 0, fmt.Sprintf(
		"One or more emitters to activate on stdERR. Available emitters are %s. Default: %s",
		text.AvailableMapKeys(cfg.emitters),
		emStatsText,
	), "comma,sep,emitters")
	o.FlagLong(&cfg.emittersStdOut, "emit-stdout", 0,
		"One or more emitters to activate on stdOUT. Available emitters same as above. Default: "+emTextStream,
		"comma,sep,emitters",
	)
}

func (rl *Runelace) setupEmitters() (argErrs []error) {

	cfg := &rl.cfg

	// when the user picked nothing at all, emit decoded text on stdOUT
	// and a human summary on stdERR
	if len(cfg.emittersStdErr) == 0 && len(cfg.emittersStdOut) == 0 {
		cfg.emittersStdOut = []string{emTextStream}
		cfg.emittersStdErr = []string{emStatsText}
	}

	activeStderr := make(map[string]bool, len(cfg.emittersStdErr))
	for _, s := range cfg.emittersStdErr {
		activeStderr[s] = true
		if val, exists := cfg.emitters[s]; !exists {
			argErrs = append(argErrs, fmt.Errorf("invalid emitter '%s' specified for --emit-stderr. Available emitters are: %s",
				s,
				text.AvailableMapKeys(cfg.emitters),
			))
		} else if s == emNone {
			continue
		} else if val != nil {
			argErrs = append(argErrs, fmt.Errorf("Emitter '%s' specified more than once", s))
		} else {
			cfg.emitters[s] = cfg.stdErrWriter
		}
	}
	activeStdout := make(map[string]bool, len(cfg.emittersStdOut))
	for _, s := range cfg.emittersStdOut {
		activeStdout[s] = true
		if val, exists := cfg.emitters[s]; !exists {
			argErrs = append(argErrs, fmt.Errorf("invalid emitter '%s' specified for --emit-stdout. Available emitters are: %s",
				s,
				text.AvailableMapKeys(cfg.emitters),
			))
		} else if s == emNone {
			continue
		} else if val != nil {
			argErrs = append(argErrs, fmt.Errorf("Emitter '%s' specified more than once", s))
		} else {
			cfg.emitters[s] = cfg.stdOutWriter
		}
	}

	for _, exclusiveEmitter := range []string{
		emNone,
		emTextStream,
		emStatsText,
	} {
		if activeStderr[exclusiveEmitter] && len(activeStderr) > 1 {
			argErrs = append(argErrs, fmt.Errorf(
				"When specified, emitter '%s' must be the sole argument to --emit-stderr",
				exclusiveEmitter,
			))
		}
		if activeStdout[exclusiveEmitter] && len(activeStdout) > 1 {
			argErrs = append(argErrs, fmt.Errorf(
				"When specified, emitter '%s' must be the sole argument to --emit-stdout",
				exclusiveEmitter,
			))
		}
	}

	// set shortcuts based on emitter config
	rl.generateStreamJsonl = rl.cfg.emitters[emFragmentsJsonl] != nil || rl.cfg.emitters[emStatsJsonl] != nil

	return
}

func (rl *Runelace) setupDecoder() (argErrs []error) {

	if rl.cfg.requestedDecoder == "" {
		return []error{fmt.Errorf(
			"You must specify a stream decoder via '--decoder=algname1_opt1_opt2...'. Available decoder names are: %s",
			text.AvailableMapKeys(availableDecoders),
		)}
	}

	decoderArgs := strings.Split(rl.cfg.requestedDecoder, "_")
	init, exists := availableDecoders[decoderArgs[0]]
	if !exists {
		return []error{fmt.Errorf(
			"Decoder '%s' not found. Available decoder names are: %s",
			decoderArgs[0],
			text.AvailableMapKeys(availableDecoders),
		)}
	}

	for n := range decoderArgs {
		if n > 0 {
			decoderArgs[n] = "--" + decoderArgs[n]
		}
	}

	_, decoderConstants, initErrors := init(decoderArgs)

	if len(initErrors) == 0 {
		if decoderConstants.MaxCarry < 0 || decoderConstants.MaxCarry > constants.MaxRegionPayloadSize {
			initErrors = append(initErrors, fmt.Errorf(
				"returned MaxCarry constant '%d' out of range [0:%d]",
				decoderConstants.MaxCarry,
				constants.MaxRegionPayloadSize,
			))
		}
	}

	if len(initErrors) > 0 {
		rl.cfg.erroredDecoders = append(rl.cfg.erroredDecoders, decoderArgs[0])
		for _, e := range initErrors {
			argErrs = append(argErrs, fmt.Errorf(
				"Initialization of decoder '%s' failed: %s",
				decoderArgs[0],
				e,
			))
		}
		return
	}

	rl.decoder = decoderUnit{
		initArgs:  decoderArgs,
		init:      init,
		constants: decoderConstants,
	}

	return
}

func (rl *Runelace) setupDecompression() (argErrs []error) {

	if _, exists := availableDecompressors[rl.cfg.requestedDecompressor]; !exists {
		argErrs = append(argErrs, fmt.Errorf(
			"Decompressor '%s' requested via '--decompress=algname' is not valid. Available decompressor names are: %s",
			rl.cfg.requestedDecompressor,
			text.AvailableMapKeys(availableDecompressors),
		))
	}

	return
}

func (rl *Runelace) setupFingerprinting() (argErrs []error) {

	cfg := &rl.cfg

	hasherInit, exists := hasher.AvailableHashers[cfg.fingerprintFunc]
	if !exists {
		argErrs = append(argErrs, fmt.Errorf(
			"Hash function '%s' requested via '--fingerprint=algname' is not valid. Available hash names are %s",
			cfg.fingerprintFunc,
			text.AvailableMapKeys(hasher.AvailableHashers),
		))
		return
	}
	rl.newHasher = hasherInit

	// setup the formatter
	var b32Encoder *base32.Encoding
	if cfg.FingerprintMultibase == "base32" {
		b32Encoder = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)
	} else if cfg.FingerprintMultibase != "base36" {
		argErrs = append(argErrs, fmt.Errorf("unsupported fingerprint multibase '%s'", cfg.FingerprintMultibase))
		return
	}

	rl.formattedDigest = func(digest []byte) (ds string) {

		if digest == nil {
			return "N/A"
		}

		if b32Encoder != nil {
			ds = "b" + b32Encoder.EncodeToString(digest)
		} else {
			ds = "k" + base36.EncodeToStringLc(digest)
		}

		return
	}

	return
}

func (rl *Runelace) setupTextWriting() (argErrs []error) {

	if f, isFh := rl.cfg.emitters[emTextStream].(*os.File); isFh && !stream.IsTTY(f) {
		if s, err := f.Stat(); err != nil {
			log.Printf("Failed to stat() the text stream output: %s", err)
		} else {
			for _, opt := range stream.WriteOptimizations {
				if err := opt.Action(f, s); err != nil && err != os.ErrInvalid {
					log.Printf("Failed to apply write optimization hint '%s' to text stream output: %s\n", opt.Name, err)
				}
			}
		}
	}

	return
}

func logArgParseErrors(argParseErrs []error, cfg *config) {

	if len(argParseErrs) == 0 {
		return
	}

	for _, e := range argParseErrs {
		fmt.Fprintf(argParseErrOut, "%s\n", e)
	}
	fmt.Fprint(argParseErrOut, "\n")
	cfg.printUsage()
	os.Exit(2)
}
