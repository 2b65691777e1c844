//go:build whisper

package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"utter/log"
)

// Whisper transcribes locally with whisper.cpp. The model is loaded once;
// each call gets its own context.
type Whisper struct {
	model whisperlib.Model
	lang  string

	// ggml inference is not safe to run concurrently on one model.
	mu sync.Mutex
}

func NewWhisper(modelPath string) (*Whisper, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: stt.model must point to a ggml model file")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	return &Whisper{model: model}, nil
}

func (w *Whisper) Name() string { return "whisper" }

func (w *Whisper) SetLanguage(lang string) { w.lang = lang }

func (w *Whisper) GetLanguage() string { return w.lang }

func (w *Whisper) Close() error { return w.model.Close() }

func (w *Whisper) Transcribe(ctx context.Context, a Audio) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if a.SampleRate != whisperlib.SampleRate {
		return Result{}, fmt.Errorf("whisper: sample rate %d, want %d", a.SampleRate, whisperlib.SampleRate)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if w.lang != "" {
		if err := wctx.SetLanguage(w.lang); err != nil {
			log.Warnf("whisper: language %q not supported, using auto: %v", w.lang, err)
		}
	}

	if err := wctx.Process(a.Samples, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	var segments []Segment
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		segments = append(segments, Segment{Text: text, Start: seg.Start.Seconds(), End: seg.End.Seconds()})
	}

	text := strings.Join(parts, " ")
	return Result{
		Text:     text,
		NoSpeech: text == "",
		Segments: segments,
		Metrics:  []string{fmt.Sprintf("audio:      %.1fs (local)", a.Seconds())},
	}, nil
}
