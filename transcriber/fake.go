package transcriber

import (
	"context"
	"fmt"
	"sync"
)

// FakeTranscriber returns canned text and remembers what it was given.
type FakeTranscriber struct {
	text string
	err  error
	lang string

	mu    sync.Mutex
	calls []Audio
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{text: text, err: err}
}

func (f *FakeTranscriber) Name() string           { return "fake" }
func (f *FakeTranscriber) SetLanguage(lang string) { f.lang = lang }
func (f *FakeTranscriber) GetLanguage() string     { return f.lang }

func (f *FakeTranscriber) Transcribe(ctx context.Context, a Audio) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, a)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if f.err != nil {
		return Result{}, fmt.Errorf("fake transcriber error: %w", f.err)
	}
	return Result{
		Text:     f.text,
		NoSpeech: f.text == "",
		Metrics:  []string{"total: 0ms (fake)"},
	}, nil
}

// Calls returns the audio passed to Transcribe so far.
func (f *FakeTranscriber) Calls() []Audio {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Audio(nil), f.calls...)
}
