package runelace

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/anjor/runelace/internal/constants"
	"github.com/anjor/runelace/internal/util/text"
	"github.com/google/uuid"
	"github.com/ipfs/go-qringbuf"
	"github.com/klauspost/cpuid/v2"
)

type statSummary struct {
	_            constants.Incomparabe
	Streams      int64         `json:"substreams"`
	Bytes        int64         `json:"payloadBytes"`
	Fragments    int64         `json:"fragments"`
	Runes        int64         `json:"runes"`
	SplitsHealed int64         `json:"boundarySplitsHealed"`
	SubStreams   []streamStats `json:"substreamDetails,omitempty"`
	SysStats     sysStats      `json:"sys"`
}

type streamStats struct {
	Digest    string `json:"digest"`
	Bytes     int64  `json:"payloadBytes"`
	Fragments int64  `json:"fragments"`
	Runes     int64  `json:"runes"`
	Dup       bool   `json:"duplicate,omitempty"`
}

type sysStats struct {
	qringbuf.Stats
	ElapsedNsecs int64 `json:"elapsedNanoseconds"`
	ReadCalls    int64 `json:"readCalls"`

	// getrusage() section, populated on unix builds
	CpuUserNsecs int64 `json:"cpuUserNanoseconds"`
	CpuSysNsecs  int64 `json:"cpuSystemNanoseconds"`
	MaxRssBytes  int64 `json:"maxMemoryUsed"`
	MinFlt       int64 `json:"cacheMinorFaults"`
	MajFlt       int64 `json:"cacheMajorFaults"`
	BioRead      int64 `json:"blockIoReads,omitempty"`
	BioWrite     int64 `json:"blockIoWrites,omitempty"`
	Sigs         int64 `json:"signalsReceived,omitempty"`
	CtxSwYield   int64 `json:"contextSwitchYields"`
	CtxSwForced  int64 `json:"contextSwitchForced"`

	PageSize     int      `json:"pageSize"`
	CpuName      string   `json:"cpuName"`
	GoMaxProcs   int      `json:"goMaxProcs"`
	GoVersion    string   `json:"goVersion"`
	RunID        string   `json:"runID"`
	ArgvExpanded []string `json:"argvExpanded"`
	ArgvInitial  []string `json:"argvInitial"`
}

func setStatSummary() statSummary {
	return statSummary{
		SysStats: sysStats{
			PageSize:   os.Getpagesize(),
			CpuName:    cpuid.CPU.BrandName,
			GoMaxProcs: runtime.GOMAXPROCS(-1),
			GoVersion:  runtime.Version(),
			RunID:      uuid.New().String(),
		},
	}
}

// OutputSummary renders the run stats on whichever stats emitters are
// active. Emitter write failures at this point can only be logged.
func (rl *Runelace) OutputSummary() {

	if w := rl.cfg.emitters[emStatsJsonl]; w != nil {
		jsonl, err := json.Marshal(&rl.statSummary)
		if err != nil {
			log.Printf("Failed to marshal stat summary: %s", err)
		} else if _, err := fmt.Fprintf(w, "%s\n", jsonl); err != nil {
			log.Printf("Emitting '%s' failed: %s", emStatsJsonl, err)
		}
	}

	w := rl.cfg.emitters[emStatsText]
	if w == nil {
		return
	}

	s := &rl.statSummary

	writeTextSummaryLine(w, fmt.Sprintf(
		"Decoded %s bytes into %s fragment(s) (%s rune(s)) across %s substream(s)",
		text.Commify64(s.Bytes),
		text.Commify64(s.Fragments),
		text.Commify64(s.Runes),
		text.Commify64(s.Streams),
	))
	writeTextSummaryLine(w, fmt.Sprintf(
		" Characters reassembled across chunk boundaries: %s",
		text.Commify64(s.SplitsHealed),
	))

	for i, ss := range s.SubStreams {
		dupNote := ""
		if ss.Dup {
			dupNote = "  (duplicate)"
		}
		writeTextSummaryLine(w, fmt.Sprintf(
			" Substream %d: %s bytes, %s fragment(s), digest %s%s",
			i+1,
			text.Commify64(ss.Bytes),
			text.Commify64(ss.Fragments),
			ss.Digest,
			dupNote,
		))
	}

	writeTextSummaryLine(w, fmt.Sprintf(
		"Wall: %0.2fs  User: %0.2fs  Sys: %0.2fs  MaxRSS: %s bytes  Reads: %s",
		float64(s.SysStats.ElapsedNsecs)/1e9,
		float64(s.SysStats.CpuUserNsecs)/1e9,
		float64(s.SysStats.CpuSysNsecs)/1e9,
		text.Commify64(s.SysStats.MaxRssBytes),
		text.Commify64(s.SysStats.ReadCalls),
	))
}

func writeTextSummaryLine(w io.Writer, line string) {
	if _, err := io.WriteString(w, line+"\n"); err != nil {
		log.Printf("Emitting '%s' failed: %s", emStatsText, err)
	}
}
