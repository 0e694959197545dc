// Package validate checks controller invariants over a recorded flight log,
// either a flash extraction (leading time column) or a tether export.
package validate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/large-farva/vtol-groundstation/internal/telemetry"
)

const (
	minStick  = -100.0
	deadStick = 5.0

	// Rows at the start of a log where loop overruns are expected while
	// the controller boots.
	timingGrace = 3
)

// Row is one parsed data row.
type Row struct {
	Line   int // 1-based line in the source file
	Values [telemetry.FieldCount]float64
}

func (r Row) flags() telemetry.Flags {
	return telemetry.Flags(r.Values[telemetry.FlagsField])
}

// Log is a parsed flight log.
type Log struct {
	Rows    []Row
	Skipped int // decode-failure placeholders
	Timed   bool
}

// Read parses a log. The first line must be the header; a first column
// named "time" is dropped.
func Read(r io.Reader) (*Log, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	log := &Log{}
	offset := 0
	if len(header) > 0 && strings.TrimSpace(header[0]) == "time" {
		log.Timed = true
		offset = 1
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)

		if len(rec) == 1 && strings.TrimSpace(rec[0]) == telemetry.FailureNotice {
			log.Skipped++
			continue
		}
		if len(rec) != telemetry.FieldCount+offset {
			return nil, fmt.Errorf("line %d: %d fields, want %d", line, len(rec), telemetry.FieldCount+offset)
		}

		row := Row{Line: line}
		for i, f := range rec[offset:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d field %q: %w", line, telemetry.Columns[i], err)
			}
			row.Values[i] = v
		}
		log.Rows = append(log.Rows, row)
	}
	return log, nil
}

// Check is one named invariant.
type Check struct {
	Name string
	Run  func(l *Log) error
}

// Checks are the invariants Run evaluates, in order.
var Checks = []Check{
	{Name: "motor_safety", Run: MotorSafety},
	{Name: "loop_timing", Run: LoopTiming},
}

// MotorSafety requires both motors at minimum whenever the controller is
// waiting, has lost the receiver, or the throttle is inside the dead band.
func MotorSafety(l *Log) error {
	for _, r := range l.Rows {
		f := r.flags()
		if !f.Has(telemetry.FlagWaiting) && !f.Has(telemetry.FlagRXFailed) &&
			r.Values[telemetry.InputThrottle] >= minStick+deadStick {
			continue
		}
		for _, i := range []int{telemetry.OutRightMotor, telemetry.OutLeftMotor} {
			if math.Abs(r.Values[i]-minStick) >= 0.001 {
				return fmt.Errorf("line %d: %s is %g with flags %s and throttle %g",
					r.Line, telemetry.Columns[i], r.Values[i], f, r.Values[telemetry.InputThrottle])
			}
		}
	}
	return nil
}

// LoopTiming requires no loop overruns once the controller is past boot.
func LoopTiming(l *Log) error {
	for i, r := range l.Rows {
		if i < timingGrace {
			continue
		}
		if r.flags().Has(telemetry.FlagLoopOverrun) {
			return fmt.Errorf("line %d: loop overrun", r.Line)
		}
	}
	return nil
}

// Result is the outcome of one check.
type Result struct {
	Name string
	Err  error
}

// Passed reports whether the check held.
func (r Result) Passed() bool { return r.Err == nil }

// Report is the outcome of Run.
type Report struct {
	Log     *Log
	Results []Result
}

// Passed counts passing checks.
func (r Report) Passed() int {
	n := 0
	for _, res := range r.Results {
		if res.Passed() {
			n++
		}
	}
	return n
}

// Run parses r and evaluates every check.
func Run(r io.Reader) (Report, error) {
	l, err := Read(r)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Log: l}
	for _, c := range Checks {
		rep.Results = append(rep.Results, Result{Name: c.Name, Err: c.Run(l)})
	}
	return rep, nil
}
