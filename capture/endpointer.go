package capture

import (
	"fmt"
	"sync/atomic"
)

type State int32

const (
	WaitingForSpeech State = iota
	Speaking
	Stopped
)

func (s State) String() string {
	switch s {
	case WaitingForSpeech:
		return "waiting"
	case Speaking:
		return "speaking"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

const (
	speechFactor  = 3.0
	midBandFactor = 1.5
)

type EndpointConfig struct {
	SilenceThreshold  float64 // mean absolute amplitude below which a frame is silence
	MaxSilenceSeconds float64
	SampleRate        int
}

func (c EndpointConfig) Validate() error {
	if c.SilenceThreshold <= 0 {
		return fmt.Errorf("silence threshold must be positive, got %v", c.SilenceThreshold)
	}
	if c.MaxSilenceSeconds <= 0 {
		return fmt.Errorf("max silence must be positive, got %v", c.MaxSilenceSeconds)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	return nil
}

// Endpointer decides from per-frame volumes when an utterance has ended.
//
// Observe must only be called from one goroutine. The accessors may be
// called from any goroutine; all state is held in atomics.
//
// Volumes above 3x the silence threshold are speech and reset the silence
// count. Volumes below the threshold add the frame's samples to it once
// speech has been heard. Volumes in between decay the count by half a frame
// if they are above 1.5x the threshold and are ignored otherwise.
type Endpointer struct {
	silenceThreshold float64
	speechThreshold  float64
	midBandThreshold float64
	maxSilence       int64 // samples

	hasSpeech atomic.Bool
	silence   atomic.Int64
	state     atomic.Int32
}

func NewEndpointer(cfg EndpointConfig) *Endpointer {
	return &Endpointer{
		silenceThreshold: cfg.SilenceThreshold,
		speechThreshold:  cfg.SilenceThreshold * speechFactor,
		midBandThreshold: cfg.SilenceThreshold * midBandFactor,
		maxSilence:       int64(cfg.MaxSilenceSeconds * float64(cfg.SampleRate)),
	}
}

// Observe feeds one frame's volume and sample count and returns the new state.
func (e *Endpointer) Observe(volume float64, frameCount int) State {
	if State(e.state.Load()) == Stopped {
		return Stopped
	}

	n := int64(frameCount)
	speech := e.hasSpeech.Load()
	acc := e.silence.Load()

	switch {
	case volume > e.speechThreshold:
		speech = true
		acc = 0
	case volume < e.silenceThreshold:
		if speech {
			acc += n
		}
	default:
		if speech && volume > e.midBandThreshold {
			acc = max(0, acc-n/2)
		}
	}

	e.silence.Store(acc)
	if speech {
		e.hasSpeech.Store(true)
	}

	next := WaitingForSpeech
	if speech {
		next = Speaking
		if acc > e.maxSilence {
			next = Stopped
		}
	}
	e.state.Store(int32(next))
	return next
}

func (e *Endpointer) State() State { return State(e.state.Load()) }

func (e *Endpointer) HasSpeech() bool { return e.hasSpeech.Load() }

// SilenceSamples is the current silence accumulator.
func (e *Endpointer) SilenceSamples() int64 { return e.silence.Load() }

// MaxSilenceSamples is the accumulator value that must be exceeded to stop.
func (e *Endpointer) MaxSilenceSamples() int64 { return e.maxSilence }
