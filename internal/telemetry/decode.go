package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Marker prefixes every live telemetry line.
const Marker = "log: "

// FailureNotice is shown or written wherever a line could not be decoded.
const FailureNotice = "failed to decode line"

// Kind classifies a decoded line.
type Kind int

const (
	KindPassthrough Kind = iota
	KindData
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindPassthrough:
		return "passthrough"
	case KindFailure:
		return "decode_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Line is the result of decoding one raw line. Exactly one of Record
// (KindData), Text (KindPassthrough) or Err (KindFailure) is meaningful.
type Line struct {
	Kind   Kind
	Record *Record
	Text   string
	Err    error
}

var (
	ErrInvalidText = errors.New("line is not valid UTF-8")
	ErrFieldCount  = errors.New("wrong number of fields")
)

// Decoder turns raw channel lines into Lines.
type Decoder struct {
	// MarkerOptional accepts unmarked lines that hold exactly FieldCount
	// numbers as data. The flash dump prints rows this way. An unmarked line
	// shaped like a dump row that does not parse is a failure, not text.
	MarkerOptional bool
}

// Decode classifies and parses a single raw line. It never panics and
// never returns a partially filled record.
func (d Decoder) Decode(raw []byte) Line {
	if !utf8.Valid(raw) {
		return Line{Kind: KindFailure, Err: ErrInvalidText}
	}
	text := strings.TrimRight(string(raw), "\r\n")

	idx := strings.Index(text, Marker)
	if idx < 0 {
		if d.MarkerOptional {
			rec, err := ParseRecord(text)
			if err == nil {
				return Line{Kind: KindData, Record: rec}
			}
			if looksLikeRow(text) {
				return Line{Kind: KindFailure, Text: text, Err: err}
			}
		}
		return Line{Kind: KindPassthrough, Text: text}
	}

	rec, err := ParseRecord(text[idx+len(Marker):])
	if err != nil {
		return Line{Kind: KindFailure, Text: text, Err: err}
	}
	return Line{Kind: KindData, Record: rec}
}

// Decode uses a marker-required Decoder.
func Decode(raw []byte) Line {
	return Decoder{}.Decode(raw)
}

// looksLikeRow reports whether an unmarked line is a comma separated row
// with at least half of a record's fields numeric. Corrupted or truncated
// dump rows match; diagnostic text does not.
func looksLikeRow(text string) bool {
	if !strings.Contains(text, ",") {
		return false
	}
	numeric := 0
	for _, tok := range Tokenize(text) {
		if _, err := strconv.ParseFloat(tok, 64); err == nil {
			numeric++
		}
	}
	return numeric >= FieldCount/2
}

// Tokenize splits a payload on whitespace and commas.
func Tokenize(payload string) []string {
	return strings.FieldsFunc(payload, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\r' || r == '\n'
	})
}

// ParseRecord parses a marker-free payload of FieldCount numbers.
func ParseRecord(payload string) (*Record, error) {
	tokens := Tokenize(payload)
	if len(tokens) != FieldCount {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(tokens), FieldCount)
	}

	var rec Record
	for i, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("field %d (%s): %w", i, Columns[i], err)
		}
		rec.Values[i] = v
		rec.Tokens[i] = tok
	}
	return &rec, nil
}
