package runelace

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"time"
	"unicode/utf8"

	"github.com/anjor/runelace/internal/constants"
	"github.com/anjor/runelace/internal/decoder"
	"github.com/anjor/runelace/internal/util/text"

	"github.com/ipfs/go-qringbuf"
)

// SANCHECK: not sure if any of these make sense, nor have I measured the cost
const (
	fingerprintQueueSize = 2048
)

const (
	ErrorString = IngestionEventType(iota)
	NewFragmentJsonl
	NewStreamJsonl
)

const seenHashSize = 16

type seenStreams map[[seenHashSize]byte]seenStream
type seenStream struct {
	order int
}

type IngestionEvent struct {
	_    constants.Incomparabe
	Type IngestionEventType
	Body string
}
type IngestionEventType int

type fingerprintUnit struct {
	_           constants.Incomparabe
	fragment    string
	digestReply chan []byte
}

// SANCHECK - we probably want some sort of timeout or somesuch here...
func (rl *Runelace) maybeSendEvent(t IngestionEventType, s string) {
	if rl.externalEventBus != nil {
		rl.externalEventBus <- IngestionEvent{Type: t, Body: s}
	}
}

var preProcessTasks, postProcessTasks func(rl *Runelace)

// ProcessReader decodes one stream (or, with --multipart, a series of
// size-prefixed substreams) arriving on inputReader, forwarding decoded
// fragments to the configured emitters in arrival order. The first decode
// or write error terminates processing and is returned; fragments emitted
// before it remain valid.
func (rl *Runelace) ProcessReader(inputReader io.Reader, optionalEventChan chan<- IngestionEvent) (err error) {

	var t0 time.Time

	defer func() {

		// we need to wait for the fingerprinter to drain before the
		// summary reads any digests
		if rl.fpQueue != nil {
			close(rl.fpQueue) // signal hashing stop
			<-rl.fpDone       // wait for hashing stop
			rl.fpQueue = nil
		}

		if postProcessTasks != nil {
			postProcessTasks(rl)
		}

		rl.qrb = nil
		if rl.externalEventBus != nil {
			close(rl.externalEventBus)
		}

		rl.statSummary.SysStats.ElapsedNsecs = time.Since(t0).Nanoseconds()
	}()

	rl.externalEventBus = optionalEventChan
	defer func() {
		if err != nil {

			var buffered int
			if rl.qrb != nil {
				rl.qrb.Lock()
				buffered = rl.qrb.Buffered()
				rl.qrb.Unlock()
			}

			err = fmt.Errorf(
				"failure at byte offset %s of sub-stream #%d with %s bytes buffered/unprocessed: %w",
				text.Commify64(rl.curStreamOffset),
				rl.statSummary.Streams,
				text.Commify(buffered),
				err,
			)

			rl.maybeSendEvent(ErrorString, err.Error())
		}
	}()

	if preProcessTasks != nil {
		preProcessTasks(rl)
	}
	t0 = time.Now()

	if init := availableDecompressors[rl.cfg.requestedDecompressor]; init != nil {
		wrapped, done, decompErr := init(inputReader)
		if decompErr != nil {
			return fmt.Errorf(
				"initializing '%s' decompression failed: %s",
				rl.cfg.requestedDecompressor,
				decompErr,
			)
		}
		if done != nil {
			defer done()
		}
		inputReader = wrapped
	}

	rl.qrb, err = qringbuf.NewFromReader(inputReader, qringbuf.Config{
		// MinRegion must be at least twice the carry bound, otherwise a
		// region could end before a withheld sequence can complete
		MinRegion:   2 * constants.MaxRegionPayloadSize,
		MinRead:     rl.cfg.RingBufferMinRead,
		MaxCopy:     2 * constants.MaxRegionPayloadSize, // SANCHECK having it equal to the MinRegion may be daft...
		BufferSize:  rl.cfg.RingBufferSize,
		SectorSize:  rl.cfg.RingBufferSectSize,
		Stats:       &rl.statSummary.SysStats.Stats,
		TrackTiming: ((rl.cfg.StatsActive & statsRingbuf) == statsRingbuf),
	})
	if err != nil {
		return
	}

	if rl.newHasher != nil {
		rl.fpQueue = make(chan fingerprintUnit, fingerprintQueueSize)
		rl.fpDone = make(chan struct{})
		go rl.backgroundFingerprinter()

		if (rl.cfg.StatsActive & statsStreams) == statsStreams {
			rl.seenStreams = make(seenStreams, 32) // SANCHECK: somewhat arbitrary, but eh...
		}
	}

	// use 64bits everywhere
	var substreamSize int64

	// outer stream loop: read() syscalls happen only here and in the qrb.collector()
	for {
		if rl.cfg.MultipartStream {

			err := binary.Read(
				inputReader,
				binary.BigEndian,
				&substreamSize,
			)
			rl.statSummary.SysStats.ReadCalls++

			if err == io.EOF {
				// no new multipart coming - bail
				break
			} else if err != nil {
				return fmt.Errorf(
					"error reading next 8-byte multipart substream size: %s",
					err,
				)
			}

			if substreamSize == 0 && rl.cfg.SkipNulInputs {
				continue
			}

			rl.curStreamOffset = 0
		}

		decoderInstance := rl.freshDecoder()

		if rl.cfg.MultipartStream && substreamSize == 0 {
			// If we got here: cfg.SkipNulInputs is false
			// Record the empty substream so counts stay truthful
			rl.recordStream()
		} else {
			err := rl.processStream(decoderInstance, substreamSize)
			if err == io.ErrUnexpectedEOF {
				return fmt.Errorf(
					"unexpected end of substream #%s after %s bytes (stream expected to be %s bytes long)",
					text.Commify64(rl.statSummary.Streams+1),
					text.Commify64(rl.curStreamOffset+int64(rl.qrb.Buffered())),
					text.Commify64(substreamSize),
				)
			} else if err != nil && err != io.EOF {
				return err
			}

			// the source is done with this substream: anything still
			// withheld can never complete
			if finErr := decoderInstance.Finish(); finErr != nil {
				return fmt.Errorf(
					"%w: %d byte(s) of an unfinished sequence left when the input ended",
					finErr,
					decoderInstance.Buffered(),
				)
			}
			rl.recordStream()
		}

		// we are in EOF-state: if we are not expecting multiparts - we are done
		if !rl.cfg.MultipartStream {
			break
		}
	}

	return
}

func (rl *Runelace) backgroundFingerprinter() {
	defer close(rl.fpDone)

	h := rl.newHasher()

	for unit := range rl.fpQueue {
		if unit.digestReply != nil {
			unit.digestReply <- h.Sum(nil)
			h.Reset()
			continue
		}
		io.WriteString(h, unit.fragment) //nolint:errcheck
	}
}

func (rl *Runelace) processStream(decoderInstance rldecoder.Decoder, streamLimit int64) error {

	// begin reading and filling buffer
	if err := rl.qrb.StartFill(streamLimit); err != nil {
		return err
	}

	for {

		// every region is drained in full: whatever tail the decoder
		// withholds lives inside the decoder, not the ring buffer
		workRegion, readErr := rl.qrb.NextRegion(0)

		if workRegion == nil || (readErr != nil && readErr != io.EOF) {
			return readErr
		}

		carriedOver := decoderInstance.Buffered()

		fragment, pushErr := decoderInstance.Push(workRegion.Bytes())
		if pushErr != nil {
			return pushErr
		}

		if constants.PerformSanityChecks &&
			decoderInstance.Buffered() > rl.decoder.constants.MaxCarry {
			log.Panicf(
				"decoder withheld %d bytes, past its declared bound of %d",
				decoderInstance.Buffered(),
				rl.decoder.constants.MaxCarry,
			)
		}

		rl.curStreamOffset += int64(workRegion.Size())
		rl.tally.bytes += int64(workRegion.Size())

		if fragment != "" {
			if carriedOver > 0 {
				rl.tally.splitsHealed++
			}
			if err := rl.emitFragment(fragment); err != nil {
				return err
			}
		}
	}
}

func (rl *Runelace) emitFragment(fragment string) error {

	rl.tally.fragments++
	rl.tally.runes += int64(utf8.RuneCountInString(fragment))

	if rl.fpQueue != nil {
		rl.fpQueue <- fingerprintUnit{fragment: fragment}
	}

	if w := rl.cfg.emitters[emTextStream]; w != nil {
		if _, err := io.WriteString(w, fragment); err != nil {
			return fmt.Errorf("emitting '%s' failed: %s", emTextStream, err)
		}
	}

	if rl.generateStreamJsonl || rl.externalEventBus != nil {
		jsonl := fmt.Sprintf(
			"{\"event\":\"fragment\", \"stream\":%7d, \"offset\":%12d, \"bytes\":%9d, \"runes\":%9d }\n",
			rl.statSummary.Streams+1,
			rl.curStreamOffset,
			len(fragment),
			utf8.RuneCountInString(fragment),
		)
		rl.maybeSendEvent(NewFragmentJsonl, jsonl)
		if w := rl.cfg.emitters[emFragmentsJsonl]; w != nil {
			if _, err := io.WriteString(w, jsonl); err != nil {
				return fmt.Errorf("emitting '%s' failed: %s", emFragmentsJsonl, err)
			}
		}
	}

	return nil
}

// recordStream seals the current substream: fetches its digest from the
// fingerprinter, folds the per-stream tally into the totals, and emits
// the substream jsonl record.
func (rl *Runelace) recordStream() {

	var digest []byte
	if rl.fpQueue != nil {
		reply := make(chan []byte, 1)
		rl.fpQueue <- fingerprintUnit{digestReply: reply}
		digest = <-reply
	}

	var streamSeen bool
	if rl.seenStreams != nil && digest != nil {
		var sk [seenHashSize]byte
		copy(sk[:], digest)

		rl.mu.Lock()
		if _, streamSeen = rl.seenStreams[sk]; !streamSeen {
			rl.seenStreams[sk] = seenStream{order: len(rl.seenStreams)}
		}
		rl.mu.Unlock()
	}

	t := rl.tally
	rl.statSummary.Streams++
	rl.statSummary.Bytes += t.bytes
	rl.statSummary.Fragments += t.fragments
	rl.statSummary.Runes += t.runes
	rl.statSummary.SplitsHealed += t.splitsHealed

	rl.statSummary.SubStreams = append(rl.statSummary.SubStreams, streamStats{
		Digest:    rl.formattedDigest(digest),
		Bytes:     t.bytes,
		Fragments: t.fragments,
		Runes:     t.runes,
		Dup:       streamSeen,
	})

	if rl.generateStreamJsonl || rl.externalEventBus != nil {
		jsonl := fmt.Sprintf(
			"{\"event\":   \"stream\", \"bytes\":%12d, \"stream\":%7d, %-67s, \"fragments\":%9d }\n",
			t.bytes,
			rl.statSummary.Streams,
			fmt.Sprintf(`"digest":"%s"`, rl.formattedDigest(digest)),
			t.fragments,
		)
		rl.maybeSendEvent(NewStreamJsonl, jsonl)
		if w := rl.cfg.emitters[emFragmentsJsonl]; w != nil {
			if _, err := io.WriteString(w, jsonl); err != nil {
				rl.maybeSendEvent(ErrorString, fmt.Sprintf("emitting '%s' failed: %s", emFragmentsJsonl, err))
			}
		}
	}

	rl.tally = streamTally{}
}
