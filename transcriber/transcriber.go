package transcriber

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Segment struct {
	Text         string
	NoSpeechProb float64
	AvgLogProb   float64
	Start        float64
	End          float64
}

// apiResult is what a provider call returns before batch stats are added.
type apiResult struct {
	Text         string
	Metrics      *NetworkMetrics
	RateLimit    string
	NoSpeechProb float64
	AvgLogProb   float64
	Duration     float64
	Segments     []Segment
}

// Audio is one captured utterance as normalized mono samples.
type Audio struct {
	Samples    []float32
	SampleRate int
}

func (a Audio) Seconds() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(len(a.Samples)) / float64(a.SampleRate)
}

type BatchStats struct {
	AudioLengthS     float64
	RawSizeKB        float64
	CompressedSizeKB float64
	CompressionPct   float64
	EncodeTimeMs     float64
	DNSTimeMs        float64
	TLSTimeMs        float64
	TTFBMs           float64
	TotalTimeMs      float64
	ConnReused       bool
	TLSProtocol      string
}

type Result struct {
	Text      string
	NoSpeech  bool
	RateLimit string      // "remaining/limit" or empty
	Batch     *BatchStats // nil for local providers
	Segments  []Segment
	Metrics   []string // pre-formatted lines for -v output
}

type Transcriber interface {
	Name() string
	SetLanguage(lang string)
	GetLanguage() string
	Transcribe(ctx context.Context, a Audio) (Result, error)
}

type baseTranscriber struct {
	client *TracedClient
	apiURL string
	model  string
	lang   string
}

func (b *baseTranscriber) SetLanguage(lang string) { b.lang = lang }

func (b *baseTranscriber) GetLanguage() string { return b.lang }

type Options struct {
	Provider string // groq | openai | whisper | none
	APIKey   string
	Model    string // model name, or model file for whisper
	Language string
	URL      string // overrides the provider endpoint
}

// New returns the transcriber for opts.Provider. Provider "none" yields a
// nil Transcriber and no error.
func New(opts Options) (Transcriber, error) {
	var t Transcriber
	switch opts.Provider {
	case "none":
		return nil, nil
	case "groq", "":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("groq: set GROQ_API_KEY or stt.api_key")
		}
		t = NewGroq(opts.APIKey, opts.Model, opts.URL)
	case "openai":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai: set OPENAI_API_KEY or stt.api_key")
		}
		t = NewOpenAI(opts.APIKey, opts.Model, opts.URL)
	case "whisper":
		w, err := NewWhisper(opts.Model)
		if err != nil {
			return nil, err
		}
		t = w
	default:
		return nil, fmt.Errorf("unknown stt provider %q", opts.Provider)
	}
	t.SetLanguage(opts.Language)
	return t, nil
}
