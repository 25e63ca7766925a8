package runelace

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	utf8dec "github.com/anjor/runelace/internal/decoder/utf8"
)

// large enough to span several ring buffer regions, so that region
// boundaries land inside multi-byte characters
func mixedPayload(targetSize int) []byte {
	unit := "plain ascii, 日本語テキスト, кириллица, emoji 🦀🌍 -- "
	b := make([]byte, 0, targetSize+len(unit))
	for len(b) < targetSize {
		b = append(b, unit...)
	}
	return b
}

func TestRoundTripSingleStream(t *testing.T) {

	payload := mixedPayload(3 * 1024 * 1024)

	mockStderr, mockStdout := new(bytes.Buffer), new(bytes.Buffer)
	rl, errs := NewRunelaceWithWriters(mockStderr, mockStdout)
	if len(errs) > 0 {
		for _, err := range errs {
			t.Fatal(err)
		}
	}

	processErr := rl.ProcessReader(
		bytes.NewReader(payload),
		nil,
	)
	rl.Destroy()
	if processErr != nil {
		t.Fatalf("Unexpected error processing stream: %s", processErr)
	}

	if !bytes.Equal(mockStdout.Bytes(), payload) {
		t.Errorf(
			"decoded output does not match input: got %d bytes, expected %d",
			mockStdout.Len(),
			len(payload),
		)
	}

	if rl.statSummary.Streams != 1 {
		t.Errorf("expected 1 substream, recorded %d", rl.statSummary.Streams)
	}
	if rl.statSummary.Bytes != int64(len(payload)) {
		t.Errorf("expected %d payload bytes, recorded %d", len(payload), rl.statSummary.Bytes)
	}
}

func TestDeterministicOutput(t *testing.T) {

	payload := mixedPayload(2 * 1024 * 1024)

	const TEST_ITERATIONS = 5

	var first [32]byte
	for iter := 0; iter < TEST_ITERATIONS; iter++ {
		mockStderr, mockStdout := new(bytes.Buffer), new(bytes.Buffer)
		rl, errs := NewRunelaceWithWriters(mockStderr, mockStdout)
		if len(errs) > 0 {
			for _, err := range errs {
				t.Fatal(err)
			}
		}

		processErr := rl.ProcessReader(
			bytes.NewReader(payload),
			nil,
		)
		rl.Destroy()
		if processErr != nil {
			t.Fatalf("Unexpected error processing stream: %s", processErr)
		}

		// check to see if the sums match
		if iter == 0 {
			first = sha256.Sum256(mockStdout.Bytes())
		} else {
			current := sha256.Sum256(mockStdout.Bytes())
			if current != first {
				t.Errorf("iteration %d: content sum does not match first content sum on iteration [ %s, %s ]", iter, hex.EncodeToString(first[:]), hex.EncodeToString(current[:]))
			}
		}
	}
}

func TestMultipartStreams(t *testing.T) {

	substreams := [][]byte{
		[]byte("first part, ascii only"),
		[]byte("второй кусок"),
		{}, // deliberately empty
		[]byte("🦀🦀🦀"),
	}

	input := new(bytes.Buffer)
	for _, ss := range substreams {
		if err := binary.Write(input, binary.BigEndian, int64(len(ss))); err != nil {
			t.Fatal(err)
		}
		input.Write(ss)
	}

	mockStderr, mockStdout := new(bytes.Buffer), new(bytes.Buffer)
	rl, errs := newFromArgv(
		[]string{"runelace", "--multipart"},
		mockStderr, mockStdout,
	)
	if len(errs) > 0 {
		for _, err := range errs {
			t.Fatal(err)
		}
	}

	processErr := rl.ProcessReader(input, nil)
	rl.Destroy()
	if processErr != nil {
		t.Fatalf("Unexpected error processing multipart input: %s", processErr)
	}

	if rl.statSummary.Streams != int64(len(substreams)) {
		t.Fatalf("expected %d substreams, recorded %d", len(substreams), rl.statSummary.Streams)
	}

	var expected []byte
	for i, ss := range substreams {
		expected = append(expected, ss...)
		if rl.statSummary.SubStreams[i].Bytes != int64(len(ss)) {
			t.Errorf("substream %d: expected %d bytes, recorded %d", i, len(ss), rl.statSummary.SubStreams[i].Bytes)
		}
	}
	if !bytes.Equal(mockStdout.Bytes(), expected) {
		t.Errorf("concatenated decoded output does not match concatenated substream payloads")
	}
}

func TestMultipartSkipNulInputs(t *testing.T) {

	input := new(bytes.Buffer)
	for _, ss := range [][]byte{[]byte("abc"), {}, []byte("def")} {
		binary.Write(input, binary.BigEndian, int64(len(ss))) //nolint:errcheck
		input.Write(ss)
	}

	mockStderr, mockStdout := new(bytes.Buffer), new(bytes.Buffer)
	rl, errs := newFromArgv(
		[]string{"runelace", "--multipart", "--skip-nul-inputs"},
		mockStderr, mockStdout,
	)
	if len(errs) > 0 {
		for _, err := range errs {
			t.Fatal(err)
		}
	}

	if err := rl.ProcessReader(input, nil); err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}
	rl.Destroy()

	if rl.statSummary.Streams != 2 {
		t.Errorf("expected the empty substream to be skipped, recorded %d substreams", rl.statSummary.Streams)
	}
}

func TestTruncatedStreamSurfaces(t *testing.T) {

	// valid prefix plus the first 2 bytes of '가' (EA B0 80)
	payload := append([]byte("intact text "), 0xEA, 0xB0)

	mockStderr, mockStdout := new(bytes.Buffer), new(bytes.Buffer)
	rl, errs := NewRunelaceWithWriters(mockStderr, mockStdout)
	if len(errs) > 0 {
		for _, err := range errs {
			t.Fatal(err)
		}
	}

	processErr := rl.ProcessReader(bytes.NewReader(payload), nil)
	rl.Destroy()

	if !errors.Is(processErr, utf8dec.ErrTruncatedStream) {
		t.Fatalf("expected a truncated stream error, got: %v", processErr)
	}

	// everything decoded before the cut must have been emitted
	if got := mockStdout.String(); got != "intact text " {
		t.Errorf("expected the intact prefix on stdout, got %q", got)
	}
}

func TestInvalidEncodingSurfaces(t *testing.T) {

	payload := append([]byte("ok так far "), 0xFF)
	payload = append(payload, []byte("never decoded")...)

	mockStderr, mockStdout := new(bytes.Buffer), new(bytes.Buffer)
	rl, errs := NewRunelaceWithWriters(mockStderr, mockStdout)
	if len(errs) > 0 {
		for _, err := range errs {
			t.Fatal(err)
		}
	}

	processErr := rl.ProcessReader(bytes.NewReader(payload), nil)
	rl.Destroy()

	var encErr *utf8dec.InvalidEncodingError
	if !errors.As(processErr, &encErr) {
		t.Fatalf("expected an invalid encoding error, got: %v", processErr)
	}
	if expected := int64(len("ok так far ")); encErr.Offset != expected {
		t.Errorf("expected offending offset %d, got %d", expected, encErr.Offset)
	}
}

func TestStatsJsonlEmitter(t *testing.T) {

	payload := mixedPayload(64 * 1024)

	mockStderr, mockStdout := new(bytes.Buffer), new(bytes.Buffer)
	rl, errs := newFromArgv(
		[]string{"runelace", "--emit-stdout=none", "--emit-stderr=stats-jsonl"},
		mockStderr, mockStdout,
	)
	if len(errs) > 0 {
		for _, err := range errs {
			t.Fatal(err)
		}
	}

	if err := rl.ProcessReader(bytes.NewReader(payload), nil); err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}
	rl.Destroy()
	rl.OutputSummary()

	if mockStdout.Len() != 0 {
		t.Errorf("nothing should have been emitted on stdout, got %d bytes", mockStdout.Len())
	}

	var parsed struct {
		Streams int64 `json:"substreams"`
		Bytes   int64 `json:"payloadBytes"`
		Sys     struct {
			RunID string
		} `json:"sys"`
	}
	if err := json.Unmarshal(mockStderr.Bytes(), &parsed); err != nil {
		t.Fatalf("stats-jsonl output is not valid json: %s\n%s", err, mockStderr.String())
	}
	if parsed.Streams != 1 || parsed.Bytes != int64(len(payload)) {
		t.Errorf("unexpected summary counts: %+v", parsed)
	}
	if parsed.Sys.RunID == "" {
		t.Error("summary is missing a run ID")
	}
}

func TestEventBusDelivery(t *testing.T) {

	payload := []byte("short event-bus payload, 与えられた")

	bus := make(chan IngestionEvent, 128)
	collected := make(map[IngestionEventType]int)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range bus {
			collected[ev.Type]++
		}
	}()

	mockStderr, mockStdout := new(bytes.Buffer), new(bytes.Buffer)
	rl, errs := newFromArgv(
		[]string{"runelace", "--emit-stdout=none", "--emit-stderr=none"},
		mockStderr, mockStdout,
	)
	if len(errs) > 0 {
		for _, err := range errs {
			t.Fatal(err)
		}
	}

	if err := rl.ProcessReader(bytes.NewReader(payload), bus); err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}
	rl.Destroy()
	<-done

	if collected[NewFragmentJsonl] == 0 {
		t.Error("expected at least one fragment event on the bus")
	}
	if collected[NewStreamJsonl] != 1 {
		t.Errorf("expected exactly one stream event on the bus, got %d", collected[NewStreamJsonl])
	}
}

func TestArgvValidation(t *testing.T) {

	badArgvs := [][]string{
		{"runelace", "--decoder=nope"},
		{"runelace", "--decompress=nope"},
		{"runelace", "--fingerprint=nope"},
		{"runelace", "--fingerprint-multibase=base58"},
		{"runelace", "--emit-stdout=nope"},
		{"runelace", "--emit-stdout=text-stream,stats-text"},
		{"runelace", "--ring-buffer-size=1024"},
	}

	for _, argv := range badArgvs {
		_, errs := newFromArgv(argv, new(bytes.Buffer), new(bytes.Buffer))
		if len(errs) == 0 {
			t.Errorf("expected argv %q to fail validation", strings.Join(argv[1:], " "))
		}
	}
}
