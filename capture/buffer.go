package capture

import (
	"math"
	"sync"
	"time"

	"utter/audio"
)

// Frame is one driver delivery of normalized mono samples.
type Frame []float32

// Volume is the mean absolute amplitude of the frame.
func Volume(f Frame) float64 {
	if len(f) == 0 {
		return 0
	}
	var sum float64
	for _, s := range f {
		sum += math.Abs(float64(s))
	}
	return sum / float64(len(f))
}

// Buffer is the ordered, append-only record of one capture attempt.
// Once sealed it is immutable and Append becomes a no-op.
type Buffer struct {
	sampleRate int

	mu      sync.Mutex
	frames  []Frame
	samples int
	sealed  bool
}

func NewBuffer(sampleRate int) *Buffer {
	return &Buffer{sampleRate: sampleRate}
}

// Append adds f and reports whether it was accepted.
func (b *Buffer) Append(f Frame) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return false
	}
	b.frames = append(b.frames, f)
	b.samples += len(f)
	return true
}

func (b *Buffer) Seal() {
	b.mu.Lock()
	b.sealed = true
	b.mu.Unlock()
}

func (b *Buffer) Sealed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sealed
}

func (b *Buffer) SampleRate() int { return b.sampleRate }

// Len is the number of frames.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

func (b *Buffer) SampleCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.samples
}

func (b *Buffer) Duration() time.Duration {
	if b.sampleRate <= 0 {
		return 0
	}
	return time.Duration(b.SampleCount()) * time.Second / time.Duration(b.sampleRate)
}

// Frames returns the captured frames in arrival order. The frames themselves
// are shared and must not be modified.
func (b *Buffer) Frames() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Frame, len(b.frames))
	copy(out, b.frames)
	return out
}

// Samples flattens the frames into one slice.
func (b *Buffer) Samples() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]float32, 0, b.samples)
	for _, f := range b.frames {
		out = append(out, f...)
	}
	return out
}

func (b *Buffer) PCM16() []int16 {
	return audio.ToInt16(b.Samples())
}

// MeanVolume is the mean absolute amplitude over all samples.
func (b *Buffer) MeanVolume() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.samples == 0 {
		return 0
	}
	var sum float64
	for _, f := range b.frames {
		for _, s := range f {
			sum += math.Abs(float64(s))
		}
	}
	return sum / float64(b.samples)
}
