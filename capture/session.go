// Package capture records one bounded utterance from a live input stream.
//
// A Session runs four goroutines' worth of work:
//
//   - the backend's driver callback converts PCM to a Frame and hands it to a
//     bounded queue without blocking; when the queue is full the frame is
//     counted as dropped,
//   - the pump drains the queue, appends to the Buffer and feeds the
//     Endpointer (it is the only writer of both),
//   - the poll loop ticks at a fixed interval, reads the pump's atomics and
//     decides when to stop; it is the only goroutine that stops the device,
//   - in manual mode a listener waits on the StopSource and raises the
//     StopSignal.
//
// Late driver callbacks after stop are discarded and the Buffer is sealed
// before it is returned.
package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"utter/audio"
	"utter/log"
)

const (
	DefaultTickInterval = 100 * time.Millisecond
	defaultFrameQueue   = 256
)

var ErrSessionUsed = errors.New("capture: session already used")

// CaptureError reports a failure to acquire the input stream. It is the only
// error that ends a capture attempt without a Buffer.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	return "capture " + e.Op + ": " + e.Err.Error()
}

func (e *CaptureError) Unwrap() error { return e.Err }

type Mode int

const (
	ModeAuto Mode = iota
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeManual:
		return "manual"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "auto", "":
		return ModeAuto, nil
	case "manual":
		return ModeManual, nil
	default:
		return 0, fmt.Errorf("unknown recording mode %q (use auto or manual)", s)
	}
}

type Reason int

const (
	ReasonSilence Reason = iota
	ReasonDeadline
	ReasonStopRequested
	ReasonCanceled
)

func (r Reason) String() string {
	switch r {
	case ReasonSilence:
		return "silence"
	case ReasonDeadline:
		return "deadline"
	case ReasonStopRequested:
		return "stop_requested"
	case ReasonCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

type Config struct {
	MaxDuration time.Duration
	Endpoint    EndpointConfig // only SampleRate is used in manual mode

	TickInterval time.Duration // default 100ms
	FrameQueue   int           // frames buffered between driver and pump, default 256

	// OnTick is called from the poll loop after every tick.
	OnTick func(Progress)
}

func DefaultConfig() Config {
	return Config{
		MaxDuration: 10 * time.Second,
		Endpoint: EndpointConfig{
			SilenceThreshold:  0.003,
			MaxSilenceSeconds: 6.0,
			SampleRate:        audio.SampleRate,
		},
		TickInterval: DefaultTickInterval,
		FrameQueue:   defaultFrameQueue,
	}
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.FrameQueue <= 0 {
		c.FrameQueue = defaultFrameQueue
	}
	if c.Endpoint.SampleRate <= 0 {
		c.Endpoint.SampleRate = audio.SampleRate
	}
	return c
}

func (c Config) Validate(mode Mode) error {
	if c.MaxDuration <= 0 {
		return fmt.Errorf("max duration must be positive, got %v", c.MaxDuration)
	}
	if mode == ModeAuto {
		return c.Endpoint.Validate()
	}
	return nil
}

// deadlineTicks is MaxDuration rounded up to whole ticks.
func (c Config) deadlineTicks() int {
	return int((c.MaxDuration + c.TickInterval - 1) / c.TickInterval)
}

// Progress is a snapshot handed to Config.OnTick.
type Progress struct {
	Mode     Mode
	Ticks    int
	Elapsed  time.Duration // tick time, not wall time
	Captured time.Duration // audio delivered so far
	Volume   float64       // last frame

	// Auto mode only.
	State      State
	Silence    time.Duration
	MaxSilence time.Duration
}

type Result struct {
	Buffer    *Buffer
	Mode      Mode
	Reason    Reason
	Ticks     int
	HasSpeech bool
	Dropped   int64
}

// Session is one capture attempt. It is single use.
type Session struct {
	device audio.CaptureDevice
	cfg    Config

	stop   *StopSignal
	frames chan Frame
	used   atomic.Bool

	// Set up by record before the device starts.
	buf *Buffer
	ep  *Endpointer

	// Driver callback writes.
	closed  atomic.Bool
	dropped atomic.Int64

	// Pump writes.
	delivered  atomic.Int64
	lastVolume atomic.Uint64
}

func NewSession(device audio.CaptureDevice, cfg Config) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		device: device,
		cfg:    cfg,
		stop:   NewStopSignal(),
		frames: make(chan Frame, cfg.FrameQueue),
	}
}

// RequestStop asks the poll loop to finish. It is safe to call from any
// goroutine and any number of times.
func (s *Session) RequestStop() bool {
	return s.stop.Set()
}

// RecordAuto captures until the endpointer detects the end of speech or
// the deadline passes.
func (s *Session) RecordAuto(ctx context.Context) (Result, error) {
	return s.Record(ctx, ModeAuto, nil)
}

// RecordManual captures until stop fires or the deadline passes. A nil stop
// source records until the deadline.
func (s *Session) RecordManual(ctx context.Context, stop StopSource) (Result, error) {
	return s.Record(ctx, ModeManual, stop)
}

// Record runs the capture attempt. The only errors are configuration errors,
// ErrSessionUsed, a *CaptureError when the stream cannot be started, and
// ctx.Err() when the context is canceled; in the last case the Result still
// holds what was captured.
func (s *Session) Record(ctx context.Context, mode Mode, stop StopSource) (Result, error) {
	if !s.used.CompareAndSwap(false, true) {
		return Result{}, ErrSessionUsed
	}
	if err := s.cfg.Validate(mode); err != nil {
		return Result{}, fmt.Errorf("capture: %w", err)
	}

	s.buf = NewBuffer(s.cfg.Endpoint.SampleRate)
	if mode == ModeAuto {
		s.ep = NewEndpointer(s.cfg.Endpoint)
	}

	done := make(chan struct{})
	pumpDone := make(chan struct{})
	go s.pump(done, pumpDone)

	var once sync.Once
	release := func(stopDevice bool) {
		once.Do(func() {
			if stopDevice {
				s.device.Stop()
			}
			s.device.ClearCallback()
			s.closed.Store(true)
			close(done)
			<-pumpDone
			s.buf.Seal()
		})
	}

	s.device.SetCallback(s.onData)
	if err := s.device.Start(); err != nil {
		release(false)
		log.Errorf("capture start failed on %s: %v", s.device.DeviceName(), err)
		return Result{}, &CaptureError{Op: "start", Err: err}
	}
	defer release(true)

	lctx, cancelListener := context.WithCancel(ctx)
	defer cancelListener()
	if mode == ModeManual && stop != nil {
		go func() {
			if err := stop.WaitStop(lctx); err == nil {
				s.stop.Set()
			}
		}()
	}

	reason, ticks := s.poll(ctx, mode)
	// The listener must not take input meant for the next prompt while the
	// device drains.
	cancelListener()
	release(true)

	res := Result{
		Buffer:  s.buf,
		Mode:    mode,
		Reason:  reason,
		Ticks:   ticks,
		Dropped: s.dropped.Load(),
	}
	if s.ep != nil {
		res.HasSpeech = s.ep.HasSpeech()
	}
	if res.Dropped > 0 {
		log.Warnf("capture dropped %d frames (queue %d)", res.Dropped, s.cfg.FrameQueue)
	}
	if reason == ReasonCanceled {
		return res, ctx.Err()
	}
	return res, nil
}

func (s *Session) poll(ctx context.Context, mode Mode) (Reason, int) {
	deadline := s.cfg.deadlineTicks()
	maxSamples := int64(math.Round(s.cfg.MaxDuration.Seconds() * float64(s.cfg.Endpoint.SampleRate)))

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return ReasonCanceled, ticks
		case <-s.stop.Done():
			return ReasonStopRequested, ticks
		case <-ticker.C:
		}
		ticks++

		if s.cfg.OnTick != nil {
			s.cfg.OnTick(s.progress(mode, ticks))
		}

		if mode == ModeAuto {
			if s.ep.State() == Stopped {
				return ReasonSilence, ticks
			}
			if s.delivered.Load() >= maxSamples {
				return ReasonDeadline, ticks
			}
		}
		if ticks >= deadline {
			return ReasonDeadline, ticks
		}
	}
}

func (s *Session) progress(mode Mode, ticks int) Progress {
	rate := time.Duration(s.cfg.Endpoint.SampleRate)
	p := Progress{
		Mode:     mode,
		Ticks:    ticks,
		Elapsed:  time.Duration(ticks) * s.cfg.TickInterval,
		Captured: time.Duration(s.delivered.Load()) * time.Second / rate,
		Volume:   math.Float64frombits(s.lastVolume.Load()),
	}
	if s.ep != nil {
		p.State = s.ep.State()
		p.Silence = time.Duration(s.ep.SilenceSamples()) * time.Second / rate
		p.MaxSilence = time.Duration(s.ep.MaxSilenceSamples()) * time.Second / rate
	}
	return p
}

// onData is the driver callback. It must never block.
func (s *Session) onData(data []byte, _ uint32) {
	if s.closed.Load() {
		return
	}
	f := Frame(audio.DecodePCM16(data))
	if len(f) == 0 {
		return
	}
	select {
	case s.frames <- f:
	default:
		s.dropped.Add(1)
	}
}

func (s *Session) pump(done <-chan struct{}, pumpDone chan<- struct{}) {
	defer close(pumpDone)
	for {
		select {
		case f := <-s.frames:
			s.consume(f)
		case <-done:
			// Frames queued before the device stopped still belong to the utterance.
			for {
				select {
				case f := <-s.frames:
					s.consume(f)
				default:
					return
				}
			}
		}
	}
}

func (s *Session) consume(f Frame) {
	if !s.buf.Append(f) {
		return
	}
	s.delivered.Add(int64(len(f)))
	vol := Volume(f)
	s.lastVolume.Store(math.Float64bits(vol))
	if s.ep != nil {
		s.ep.Observe(vol, len(f))
	}
}
