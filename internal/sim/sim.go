// Package sim simulates the flight controller's USB serial port so the
// tether, the log dump, and the relay can be exercised end-to-end without
// hardware. The simulated flight arms after a short wait, spools up the
// throttle, and rocks gently in roll and pitch, so the stream looks like a
// hover test on the bench.
package sim

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/large-farva/vtol-groundstation/internal/serialport"
	"github.com/large-farva/vtol-groundstation/internal/telemetry"
)

// PortName selects the simulator instead of a hardware port.
const PortName = "sim"

var (
	// ErrDetached is returned once the simulated device has left the bus
	// after a bootsel or reboot command.
	ErrDetached = errors.New("sim: device detached")
	errClosed   = errors.New("sim: port closed")
)

// Options tunes the simulated device.
type Options struct {
	LoopPeriod time.Duration // live line interval, default 20ms
	Stored     int           // records returned by a dump, default 500
	// LiveEvery prints one live line per this many control loops, like the
	// firmware's USB logging divider. Default 5.
	LiveEvery int
}

// Device is a simulated flight controller port.
type Device struct {
	mu      sync.Mutex
	opts    Options
	queue   [][]byte
	timeout time.Duration
	next    time.Time
	loop    int
	closed  bool
	gone    bool
}

// New creates a powered-up device. Its first lines are the boot banner.
func New(opts Options) *Device {
	if opts.LoopPeriod <= 0 {
		opts.LoopPeriod = 20 * time.Millisecond
	}
	if opts.Stored <= 0 {
		opts.Stored = 500
	}
	if opts.LiveEvery <= 0 {
		opts.LiveEvery = 5
	}
	d := &Device{opts: opts, next: time.Now()}
	d.enqueue("vtol-2 flight controller")
	d.enqueue("imu: calibrating")
	d.enqueue("imu: ok")
	return d
}

// Opener returns a serialport.OpenFunc that hands out a fresh device.
func Opener(opts Options) serialport.OpenFunc {
	return func(name string, baud int) (serialport.Port, error) {
		return New(opts), nil
	}
}

func (d *Device) enqueue(line string) {
	d.queue = append(d.queue, []byte(line+"\n"))
}

// Read returns queued output, or the next live line when it is due within
// the read timeout. It returns nothing when the line is not due yet.
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, errClosed
	}
	if len(d.queue) > 0 {
		n := copy(p, d.queue[0])
		if n < len(d.queue[0]) {
			d.queue[0] = d.queue[0][n:]
		} else {
			d.queue = d.queue[1:]
		}
		d.mu.Unlock()
		return n, nil
	}
	if d.gone {
		d.mu.Unlock()
		return 0, ErrDetached
	}

	wait := time.Until(d.next)
	if d.timeout >= 0 && wait > d.timeout {
		timeout := d.timeout
		d.mu.Unlock()
		time.Sleep(timeout)
		return 0, nil
	}
	d.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.next = d.next.Add(time.Duration(d.opts.LiveEvery) * d.opts.LoopPeriod)
	d.loop += d.opts.LiveEvery
	d.enqueue(telemetry.Marker + liveLine(sample(d.loop, d.opts.LoopPeriod)))
	if (d.loop/d.opts.LiveEvery)%250 == 0 {
		d.enqueue("radio: frame lost")
	}
	return 0, nil
}

// Write interprets command bytes.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, errClosed
	}
	if d.gone {
		return 0, ErrDetached
	}
	for _, b := range p {
		switch b {
		case 'd':
			for i := 0; i < d.opts.Stored; i++ {
				d.enqueue(dumpLine(sample(i, d.opts.LoopPeriod)))
			}
			d.enqueue(dumpLine(erased()))
		case 'b', 'r':
			d.gone = true
		}
	}
	return len(p), nil
}

func (d *Device) SetReadTimeout(t time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeout = t
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// state is one control loop's worth of flight state.
type state [telemetry.FieldCount]float64

// sample computes the simulated state at control loop i.
func sample(i int, period time.Duration) state {
	t := float64(i) * period.Seconds()
	var s state

	waiting := t < 2
	thro := -100.0
	if !waiting {
		thro = math.Min(-100+(t-2)*20, 60)
	}
	aile := math.Round(20 * math.Sin(t))
	elev := math.Round(10 * math.Cos(0.7*t))

	s[telemetry.InputThrottle] = thro
	s[telemetry.InputAileron] = aile
	s[telemetry.InputElevator] = elev
	s[telemetry.InputGear] = 100
	s[telemetry.InputAux1] = -100

	s[telemetry.CurrentRoll] = 15 * math.Sin(t)
	s[telemetry.CurrentPitch] = 5 * math.Cos(0.7*t)
	s[telemetry.CurrentYaw] = math.Mod(10*t, 360)
	s[telemetry.TargetRoll] = 0.75 * aile
	s[telemetry.TargetPitch] = 0.5 * elev
	s[telemetry.PIDRoll] = 0.05 * (s[telemetry.TargetRoll] - s[telemetry.CurrentRoll])
	s[telemetry.PIDPitch] = 0.05 * (s[telemetry.TargetPitch] - s[telemetry.CurrentPitch])
	s[telemetry.PIDYaw] = 0

	s[telemetry.OutRightElevon] = clamp(50*(s[telemetry.PIDPitch]-s[telemetry.PIDRoll]), -100, 100)
	s[telemetry.OutLeftElevon] = clamp(50*(s[telemetry.PIDPitch]+s[telemetry.PIDRoll]), -100, 100)
	if waiting || thro < -95 {
		s[telemetry.OutRightMotor] = -100
		s[telemetry.OutLeftMotor] = -100
	} else {
		s[telemetry.OutRightMotor] = thro
		s[telemetry.OutLeftMotor] = thro
	}
	s[telemetry.OutGear] = 100
	s[telemetry.ControlMode] = 1

	if waiting {
		s[telemetry.FlagsField] = float64(telemetry.FlagWaiting)
	}
	return s
}

// erased is the record an erased flash page reads back as.
func erased() state {
	var s state
	for i := range s {
		s[i] = math.Inf(-1)
	}
	for _, i := range []int{telemetry.InputThrottle, telemetry.InputAileron, telemetry.InputElevator,
		telemetry.InputRudder, telemetry.InputGear, telemetry.InputAux1, telemetry.OutGear} {
		s[i] = -1
	}
	for _, i := range []int{telemetry.ControlMode, telemetry.FlightMode, telemetry.TransitionState, telemetry.FlagsField} {
		s[i] = 255
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// isIntField reports whether the flash record stores field i as an integer.
func isIntField(i int) bool {
	return i <= telemetry.InputAux1 || i >= telemetry.OutGear
}

// liveLine prints like the firmware's USB logger: space separated, floats
// for every analogue value.
func liveLine(s state) string {
	parts := make([]string, len(s))
	for i, v := range s {
		if i >= telemetry.ControlMode {
			parts[i] = fmt.Sprintf("%d", int(v))
		} else {
			parts[i] = fmt.Sprintf("%f", v)
		}
	}
	return strings.Join(parts, " ")
}

// dumpLine prints like the firmware's flash dump: comma separated, with the
// int8/uint8 fields as integers.
func dumpLine(s state) string {
	parts := make([]string, len(s))
	for i, v := range s {
		switch {
		case math.IsInf(v, -1):
			parts[i] = "-inf"
		case isIntField(i):
			parts[i] = fmt.Sprintf("%d", int(v))
		default:
			parts[i] = fmt.Sprintf("%f", v)
		}
	}
	return strings.Join(parts, ", ")
}
