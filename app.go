package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"utter/audio"
	"utter/capture"
	"utter/config"
	"utter/log"
	"utter/transcriber"
)

// Captures shorter than this are not worth a transcription request.
const minUtterance = 100 * time.Millisecond

type warmer interface {
	Warm(ctx context.Context)
}

type app struct {
	cfg     *config.Config
	mode    capture.Mode
	audio   audio.Context
	device  *audio.DeviceInfo
	stt     transcriber.Transcriber // nil captures without transcribing
	lines   *lineReader
	con     *console
	once    bool
	verbose bool

	// capture tuning for replayed input
	frameQueue int

	utterances int
	audioS     float64
	texts      int
}

// run is the conversation loop. It returns nil when the user ends the
// session, input runs out or ctx is canceled.
func (a *app) run(ctx context.Context) error {
	a.welcome()
	for {
		if a.mode == capture.ModeAuto {
			a.con.prompt("Press Enter to speak")
			line, err := a.lines.Wait(ctx)
			if err != nil {
				return ignoreDone(err)
			}
			if isExit(line) {
				a.con.ok("Goodbye!")
				return nil
			}
		} else if a.lines.Exhausted() {
			// Without input Enter can never stop a manual capture.
			return nil
		}

		text, err := a.turn(ctx)
		if err != nil {
			return ignoreDone(err)
		}

		switch {
		case text == "":
		case isExit(text):
			a.con.ok("Goodbye!")
			return nil
		case strings.EqualFold(strings.Trim(text, ".!? "), "summary"):
			a.summary()
		}

		if a.once {
			return nil
		}
	}
}

func ignoreDone(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) welcome() {
	provider := "none (capture only)"
	if a.stt != nil {
		provider = a.stt.Name()
		if lang := a.stt.GetLanguage(); lang != "" {
			provider += " (" + lang + ")"
		}
	}
	a.con.help("utter %s | mode: %s | stt: %s", version, a.mode, provider)
	if a.mode == capture.ModeManual {
		a.con.help("Recording starts right away; press Enter to stop. Say \"exit\" to quit, Ctrl+C to stop.")
	} else {
		a.con.help("Press Enter, speak, then pause. Say \"exit\" to quit, Ctrl+C to stop.")
	}
}

// turn captures one utterance and transcribes it. It returns the
// transcribed text, or "" when there was nothing usable. Only
// cancellation and device failures are returned as errors.
func (a *app) turn(ctx context.Context) (string, error) {
	dev, err := a.audio.NewCapture(a.device, audio.DefaultCaptureConfig())
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		return "", &capture.CaptureError{Op: "open", Err: err}
	}
	defer dev.Close()

	ccfg := a.cfg.Audio.Capture()
	ccfg.OnTick = a.con.progress
	if a.frameQueue > 0 {
		ccfg.FrameQueue = a.frameQueue
	}

	if w, ok := a.stt.(warmer); ok {
		go w.Warm(ctx)
	}

	var stop capture.StopSource
	if a.mode == capture.ModeManual {
		stop = a.lines
	}

	a.con.listening(a.mode, a.cfg.Audio.MaxSilence)
	res, err := capture.NewSession(dev, ccfg).Record(ctx, a.mode, stop)
	a.con.endProgress()
	if err != nil {
		if res.Buffer != nil {
			a.logCapture(res)
		}
		return "", err
	}
	a.logCapture(res)

	buf := res.Buffer
	a.utterances++
	a.audioS += buf.Duration().Seconds()

	switch {
	case res.Reason == capture.ReasonDeadline && a.mode == capture.ModeAuto && !res.HasSpeech:
		a.con.warn("No speech detected within %.0fs", a.cfg.Audio.MaxRecordingTime)
	case res.Reason == capture.ReasonDeadline:
		a.con.warn("Reached the %.0fs recording limit", a.cfg.Audio.MaxRecordingTime)
	}

	if a.cfg.Audio.SaveDir != "" {
		if path, err := a.save(buf); err != nil {
			a.con.warn("Could not save recording: %v", err)
			log.Warnf("save recording: %v", err)
		} else if a.verbose {
			a.con.help("saved %s", path)
		}
	}

	if buf.Duration() < minUtterance {
		a.con.warn("I didn't catch that. Please try again.")
		return "", nil
	}

	if a.stt == nil {
		a.con.ok("Captured %.1fs of audio (%s)", buf.Duration().Seconds(), res.Reason)
		return "", nil
	}

	result, err := a.stt.Transcribe(ctx, transcriber.Audio{Samples: buf.Samples(), SampleRate: buf.SampleRate()})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Errorf("transcription error: %v", err)
		a.con.warn("Transcription failed: %v", err)
		return "", nil
	}
	a.logTranscription(result, buf.Duration().Seconds())

	text := strings.TrimSpace(result.Text)
	if len(text) < 3 {
		a.con.warn("I didn't catch that. Please try again.")
		return "", nil
	}

	a.texts++
	a.con.you(text)
	if a.verbose {
		a.con.metrics(result.Metrics)
	}
	return text, nil
}

func (a *app) logCapture(res capture.Result) {
	log.CaptureDone(log.Capture{
		Mode:       res.Mode.String(),
		Reason:     res.Reason.String(),
		AudioS:     res.Buffer.Duration().Seconds(),
		Frames:     res.Buffer.Len(),
		Ticks:      res.Ticks,
		Dropped:    res.Dropped,
		HasSpeech:  res.HasSpeech,
		MeanVolume: res.Buffer.MeanVolume(),
	})
}

func (a *app) logTranscription(r transcriber.Result, audioS float64) {
	if r.RateLimit != "" && r.RateLimit != "?/?" {
		log.Info("rate_limit: " + r.RateLimit)
	}
	if r.NoSpeech {
		log.NoSpeech(a.stt.Name(), audioS)
		return
	}
	if bs := r.Batch; bs != nil {
		log.TranscriptionMetrics(log.Metrics{
			AudioLengthS:     bs.AudioLengthS,
			RawSizeKB:        bs.RawSizeKB,
			CompressedSizeKB: bs.CompressedSizeKB,
			CompressionPct:   bs.CompressionPct,
			EncodeTimeMs:     bs.EncodeTimeMs,
			DNSTimeMs:        bs.DNSTimeMs,
			TLSTimeMs:        bs.TLSTimeMs,
			TTFBMs:           bs.TTFBMs,
			TotalTimeMs:      bs.TotalTimeMs,
		}, "flac", a.stt.Name(), bs.ConnReused, bs.TLSProtocol)
	}
	log.TranscriptionText(strings.TrimSpace(r.Text))
}

func (a *app) save(buf *capture.Buffer) (string, error) {
	if err := os.MkdirAll(a.cfg.Audio.SaveDir, 0755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("utterance_%s_%03d.wav", time.Now().Format("20060102_150405"), a.utterances)
	path := filepath.Join(a.cfg.Audio.SaveDir, name)
	return path, audio.WriteWAV(path, buf.PCM16(), buf.SampleRate())
}

func (a *app) summary() {
	a.con.ok("Session: %d utterances, %.1fs of audio, %d transcribed", a.utterances, a.audioS, a.texts)
}
