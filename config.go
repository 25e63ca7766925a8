package runelace

import (
	"io"

	"github.com/pborman/getopt/v2"
)

type config struct {
	optSet *getopt.Set

	// where to output
	emitters emissionTargets

	// destinations backing the stdERR/stdOUT emitter slots, overridable
	// for tests via NewRunelaceWithWriters
	stdErrWriter io.Writer
	stdOutWriter io.Writer

	//
	// Bulk of CLI options definition starts here, the rest further down in initArgvParser()
	//

	Help            bool `getopt:"-h --help         Display basic help"`
	HelpAll         bool `getopt:"--help-all        Display full help including options for every currently supported decoder"`
	MultipartStream bool `getopt:"--multipart       Expect multiple SInt64BE-size-prefixed streams on stdIN"`
	SkipNulInputs   bool `getopt:"--skip-nul-inputs Skip zero-length substreams entirely instead of recording them in the summary"`

	emittersStdErr []string // Emitter spec: option/helptext in initArgvParser()
	emittersStdOut []string // Emitter spec: option/helptext in initArgvParser()

	// no-option-attached, these are instantiation error accumulators
	erroredDecoders []string

	RingBufferSize     int `getopt:"--ring-buffer-size=bytes        The size of the quantized ring buffer used for ingestion. Default:"`
	RingBufferSectSize int `getopt:"--ring-buffer-sync-size=bytes   (EXPERT SETTING) The size of each buffer synchronization sector. Default:"` // option vaguely named 'sync' to not confuse users
	RingBufferMinRead  int `getopt:"--ring-buffer-min-sysread=bytes (EXPERT SETTING) Perform next read(2) only when the specified amount of free space is available in the buffer. Default:"`

	StatsActive uint `getopt:"--stats-active=uint   A bitfield representing activated stat aggregations: bit0:SubstreamDigests, bit1:RingbufferTiming. Default:"`

	FingerprintMultibase string `getopt:"--fingerprint-multibase=string Use this multibase when encoding fingerprint digests for output. One of 'base32', 'base36'. Default:"`

	fingerprintFunc       string // fingerprint hash function: option/helptext in initArgvParser()
	requestedDecoder      string // Decoder: option/helptext in initArgvParser()
	requestedDecompressor string // Decompressor: option/helptext in initArgvParser()
}

func defaultConfig() config {
	return config{
		RingBufferSize:     8 * 1024 * 1024,
		RingBufferSectSize: 65536,
		RingBufferMinRead:  8192,

		StatsActive: statsStreams,

		FingerprintMultibase:  "base36",
		fingerprintFunc:       "sha2-256",
		requestedDecoder:      "utf8",
		requestedDecompressor: "none",

		emitters: emissionTargets{
			emNone:           nil,
			emTextStream:     nil,
			emFragmentsJsonl: nil,
			emStatsText:      nil,
			emStatsJsonl:     nil,
		},
	}
}
