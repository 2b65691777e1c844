//go:build !whisper

package transcriber

import (
	"context"
	"errors"
)

var errWhisperDisabled = errors.New("whisper: built without local transcription (rebuild with -tags whisper)")

type Whisper struct{}

func NewWhisper(string) (*Whisper, error) { return nil, errWhisperDisabled }

func (w *Whisper) Name() string          { return "whisper" }
func (w *Whisper) SetLanguage(string)    {}
func (w *Whisper) GetLanguage() string   { return "" }
func (w *Whisper) Close() error          { return nil }

func (w *Whisper) Transcribe(context.Context, Audio) (Result, error) {
	return Result{}, errWhisperDisabled
}
