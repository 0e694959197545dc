// Package telemetry defines the flight controller's telemetry record, the
// line decoder for its serial output, and the event types a tether relays to
// remote viewers.
package telemetry

import (
	"math"
	"strings"
)

// FieldCount is the number of fields in one telemetry record.
const FieldCount = 24

// Field indexes, in wire order.
const (
	InputThrottle = iota
	InputAileron
	InputElevator
	InputRudder
	InputGear
	InputAux1
	CurrentRoll
	CurrentPitch
	CurrentYaw
	TargetRoll
	TargetPitch
	TargetYaw
	PIDRoll
	PIDPitch
	PIDYaw
	OutRightElevon
	OutLeftElevon
	OutRightMotor
	OutLeftMotor
	OutGear
	ControlMode
	FlightMode
	TransitionState
	FlagsField
)

// Columns are the tabular header names, one per field.
var Columns = [FieldCount]string{
	"input thro", "input aile", "input elev", "input rudd", "input gear", "input aux1",
	"current roll", "current pitch", "current yaw",
	"target roll", "target pitch", "target yaw",
	"pid roll", "pid pitch", "pid yaw",
	"output r elevon", "output l elevon", "output r motor", "output l motor", "output gear",
	"control mode", "flight mode", "transition state", "flags",
}

// Flags is the controller status bitfield.
type Flags int

const (
	FlagRXFailed       Flags = 1
	FlagIMUFailed      Flags = 2
	FlagBMPFailed      Flags = 4
	FlagWatchdogReboot Flags = 8
	FlagLoopOverrun    Flags = 16
	FlagWaiting        Flags = 32
)

// Has reports whether every bit in f2 is set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagRXFailed, "RX_FAILED"},
	{FlagIMUFailed, "IMU_FAILED"},
	{FlagBMPFailed, "BMP_FAILED"},
	{FlagWatchdogReboot, "WATCHDOG_REBOOT"},
	{FlagLoopOverrun, "LOOP_OVERRUN"},
	{FlagWaiting, "WAITING"},
}

// String lists the set bits, e.g. "RX_FAILED|WAITING".
func (f Flags) String() string {
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Record is one decoded telemetry line. Values holds every field as a
// number in wire order; Tokens keeps the text each value was parsed from,
// which is what tabular output reproduces.
type Record struct {
	Values [FieldCount]float64
	Tokens [FieldCount]string
}

// Value returns field i.
func (r *Record) Value(i int) float64 { return r.Values[i] }

// Throttle returns the raw throttle input channel.
func (r *Record) Throttle() float64 { return r.Values[InputThrottle] }

// Motors returns the right and left motor commands.
func (r *Record) Motors() (right, left float64) {
	return r.Values[OutRightMotor], r.Values[OutLeftMotor]
}

// Attitude returns the estimated roll, pitch and yaw in degrees.
func (r *Record) Attitude() (roll, pitch, yaw float64) {
	return r.Values[CurrentRoll], r.Values[CurrentPitch], r.Values[CurrentYaw]
}

// ControlMode returns the discrete controller mode.
func (r *Record) ControlMode() int { return int(r.Values[ControlMode]) }

// FlightMode returns the discrete flight mode.
func (r *Record) FlightMode() int { return int(r.Values[FlightMode]) }

// TransitionState returns the hover/forward transition state.
func (r *Record) TransitionState() int { return int(r.Values[TransitionState]) }

// Flags returns the status bitfield.
func (r *Record) Flags() Flags { return Flags(r.Values[FlagsField]) }

// IsFloatToken reports whether field i was sent with a decimal point.
func (r *Record) IsFloatToken(i int) bool {
	return strings.Contains(r.Tokens[i], ".")
}

// Row returns the fields as text joined by ", ".
func (r *Record) Row() string {
	return strings.Join(r.Tokens[:], ", ")
}

// IsSentinel reports whether r is the end-of-log marker the device emits
// for erased flash: channel fields -1, angle/PID/elevon fields -inf and mode
// fields 255. NaN is accepted in place of -inf since an erased float word
// is a NaN bit pattern.
func (r *Record) IsSentinel() bool {
	for _, i := range []int{InputThrottle, InputAileron, InputElevator, InputRudder, InputGear, InputAux1, OutGear} {
		if r.Values[i] != -1 {
			return false
		}
	}
	for i := CurrentRoll; i <= OutLeftElevon; i++ {
		v := r.Values[i]
		if !math.IsInf(v, -1) && !math.IsNaN(v) {
			return false
		}
	}
	for _, i := range []int{ControlMode, FlightMode, TransitionState} {
		if r.Values[i] != 255 {
			return false
		}
	}
	return true
}
