package session

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

const statsPrefix = "[CLOVER_STATS|"

// StopReason tells why the generation loop ended.
type StopReason string

const (
	StopEOS         StopReason = "eos"
	StopCancelled   StopReason = "cancelled"
	StopLimit       StopReason = "limit"
	StopDecodeError StopReason = "decode_error"
)

// Stats carries the throughput figures of one call.
type Stats struct {
	PromptTokens     int           `json:"prompt_tokens"`
	GeneratedTokens  int           `json:"generated_tokens"`
	Chunks           int           `json:"chunks"`
	IngestTPS        float64       `json:"ingest_tokens_per_second"`
	GenerateTPS      float64       `json:"generate_tokens_per_second"`
	IngestDuration   time.Duration `json:"ingest_duration_ns"`
	GenerateDuration time.Duration `json:"generate_duration_ns"`
}

// Result is the structured outcome of Generate.
type Result struct {
	Text       string
	StopReason StopReason
	Window     Window
	Stats      Stats
	// DecodeErr is set when StopReason is StopDecodeError.
	DecodeErr error
}

// Bytes renders the legacy wire form: text followed by the stats marker.
func (r Result) Bytes() []byte {
	out := make([]byte, 0, len(r.Text)+32)
	out = append(out, r.Text...)
	return append(out, FormatStats(r.Stats.IngestTPS, r.Stats.GenerateTPS)...)
}

// FormatStats renders "[CLOVER_STATS|<ingest>|<generate>]" with two decimals.
func FormatStats(ingestTPS, generateTPS float64) string {
	return fmt.Sprintf("[CLOVER_STATS|%.2f|%.2f]", ingestTPS, generateTPS)
}

// SplitStats strips a trailing stats marker from buf. ok is false when buf
// does not end with a well-formed marker; text is then buf unchanged.
func SplitStats(buf []byte) (text string, ingestTPS, generateTPS float64, ok bool) {
	i := bytes.LastIndex(buf, []byte(statsPrefix))
	if i < 0 || len(buf) == 0 || buf[len(buf)-1] != ']' {
		return string(buf), 0, 0, false
	}
	body := buf[i+len(statsPrefix) : len(buf)-1]
	sep := bytes.IndexByte(body, '|')
	if sep < 0 {
		return string(buf), 0, 0, false
	}
	in, err := strconv.ParseFloat(string(body[:sep]), 64)
	if err != nil {
		return string(buf), 0, 0, false
	}
	gen, err := strconv.ParseFloat(string(body[sep+1:]), 64)
	if err != nil {
		return string(buf), 0, 0, false
	}
	return string(buf[:i]), in, gen, true
}
