package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"utter/audio"
	"utter/capture"
	"utter/transcriber"
)

const DefaultDuration = 5 * time.Second

type Level int

const (
	Silent Level = iota
	Low
	Good
	Loud
)

func (l Level) String() string {
	switch l {
	case Loud:
		return "LOUD"
	case Good:
		return "GOOD"
	case Low:
		return "LOW"
	default:
		return "SILENT"
	}
}

// Classify buckets a mean absolute amplitude.
func Classify(volume float64) Level {
	switch {
	case volume > 0.01:
		return Loud
	case volume > 0.005:
		return Good
	case volume > 0.002:
		return Low
	default:
		return Silent
	}
}

// Meter draws volume as a bar of up to 50 cells, one per 0.001.
func Meter(volume float64) string {
	n := min(max(int(volume*1000), 0), 50)
	return strings.Repeat("█", n) + strings.Repeat(" ", 50-n)
}

type Options struct {
	Audio       audio.Context
	Device      *audio.DeviceInfo // nil = system default
	Capture     capture.Config
	Duration    time.Duration
	Transcriber transcriber.Transcriber // nil skips the transcription check
	Out         io.Writer
}

// Run executes the diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(ctx context.Context, opts Options) int {
	out := opts.Out
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}

	fmt.Fprintln(out, "utter doctor - microphone diagnostics")
	fmt.Fprintln(out, "=====================================")

	buf, ok := checkMicrophone(ctx, out, opts)
	if ok {
		ok = checkTranscription(ctx, out, opts.Transcriber, buf)
	}

	fmt.Fprintln(out)
	if ok {
		fmt.Fprintln(out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(out, "Some checks failed. See details above.")
	return 1
}

func checkMicrophone(ctx context.Context, out io.Writer, opts Options) (*capture.Buffer, bool) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[1/2] Microphone level")

	cfg := opts.Capture
	cfg.MaxDuration = opts.Duration
	cfg.OnTick = func(p capture.Progress) {
		fmt.Fprintf(out, "\r  %s %.5f - %-6s", Meter(p.Volume), p.Volume, Classify(p.Volume))
	}

	dev, err := opts.Audio.NewCapture(opts.Device, audio.DefaultCaptureConfig())
	if err != nil {
		fmt.Fprintf(out, "  FAIL: cannot open capture device: %v\n", err)
		return nil, false
	}
	defer dev.Close()

	fmt.Fprintf(out, "Speak normally for %.0f seconds (%s)...\n", opts.Duration.Seconds(), dev.DeviceName())
	res, err := capture.NewSession(dev, cfg).RecordManual(ctx, nil)
	fmt.Fprintln(out)
	if err != nil {
		var ce *capture.CaptureError
		if errors.As(err, &ce) {
			fmt.Fprintf(out, "  FAIL: %v\n", err)
		} else {
			fmt.Fprintf(out, "  FAIL: interrupted: %v\n", err)
		}
		return nil, false
	}
	if res.Buffer.SampleCount() == 0 {
		fmt.Fprintln(out, "  FAIL: no audio captured")
		return nil, false
	}

	avg := res.Buffer.MeanVolume()
	threshold := cfg.Endpoint.SilenceThreshold
	fmt.Fprintf(out, "  Captured %.1fs, average volume %.5f (%s)\n", res.Buffer.Duration().Seconds(), avg, Classify(avg))
	fmt.Fprintf(out, "  Silence threshold %.4f, speech starts above %.4f\n", threshold, threshold*3)

	switch {
	case avg > threshold*3:
		fmt.Fprintln(out, "  PASS: speech will be detected")
		return res.Buffer, true
	case avg > threshold:
		fmt.Fprintln(out, "  PASS: volume is a bit low, but should work")
		return res.Buffer, true
	default:
		fmt.Fprintln(out, "  FAIL: volume is too low")
		fmt.Fprintln(out, "  Try speaking louder, moving closer to the microphone,")
		fmt.Fprintln(out, "  raising the input volume or lowering audio.silence_threshold.")
		return res.Buffer, false
	}
}

func checkTranscription(ctx context.Context, out io.Writer, t transcriber.Transcriber, buf *capture.Buffer) bool {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[2/2] Transcription")
	if t == nil {
		fmt.Fprintln(out, "  SKIP: no transcriber configured")
		return true
	}

	res, err := t.Transcribe(ctx, transcriber.Audio{Samples: buf.Samples(), SampleRate: buf.SampleRate()})
	if err != nil {
		fmt.Fprintf(out, "  FAIL: %s: %v\n", t.Name(), err)
		return false
	}
	if res.NoSpeech {
		fmt.Fprintf(out, "  FAIL: %s heard no speech\n", t.Name())
		return false
	}
	fmt.Fprintf(out, "  PASS: %s heard %q\n", t.Name(), res.Text)
	return true
}
