package transcriber

import (
	"context"
	"fmt"
	"strings"

	"utter/audio"
	"utter/encoder"
)

type uploadFunc func(ctx context.Context, data []byte, format string) (*apiResult, error)

// transcribeBatch FLAC-encodes a, hands it to upload and folds the encode
// and network timings into the result.
func transcribeBatch(ctx context.Context, a Audio, upload uploadFunc) (Result, error) {
	enc, err := encoder.NewFlac(a.SampleRate)
	if err != nil {
		return Result{}, err
	}
	if err := encoder.EncodeAll(enc, audio.ToInt16(a.Samples)); err != nil {
		return Result{}, fmt.Errorf("encoding audio: %w", err)
	}

	result, err := upload(ctx, enc.Bytes(), enc.Format())
	if err != nil {
		return Result{}, err
	}

	text := strings.TrimSpace(result.Text)

	rawSize := enc.TotalFrames() * 2
	encodedSize := uint64(len(enc.Bytes()))
	compressionPct := 0.0
	if rawSize > 0 {
		compressionPct = (1.0 - float64(encodedSize)/float64(rawSize)) * 100
	}
	audioDuration := float64(enc.TotalFrames()) / float64(a.SampleRate)
	netMetrics := result.Metrics
	if netMetrics == nil {
		netMetrics = &NetworkMetrics{}
	}

	return Result{
		Text:      text,
		NoSpeech:  text == "",
		RateLimit: result.RateLimit,
		Segments:  result.Segments,
		Batch: &BatchStats{
			AudioLengthS:     audioDuration,
			RawSizeKB:        float64(rawSize) / 1024,
			CompressedSizeKB: float64(encodedSize) / 1024,
			CompressionPct:   compressionPct,
			EncodeTimeMs:     float64(enc.EncodeTime().Milliseconds()),
			DNSTimeMs:        float64(netMetrics.DNS.Milliseconds()),
			TLSTimeMs:        float64(netMetrics.TLS.Milliseconds()),
			TTFBMs:           float64(netMetrics.TTFB.Milliseconds()),
			TotalTimeMs:      float64(netMetrics.Sum().Milliseconds()),
			ConnReused:       netMetrics.ConnReused,
			TLSProtocol:      netMetrics.TLSProtocol,
		},
		Metrics: formatMetrics(enc, rawSize, encodedSize, compressionPct, audioDuration, netMetrics, result),
	}, nil
}

func formatMetrics(enc encoder.Encoder, rawSize, encodedSize uint64, compressionPct, audioDuration float64, metrics *NetworkMetrics, result *apiResult) []string {
	reusedStatus := ""
	if metrics.ConnReused {
		reusedStatus = " (reused)"
	}

	lines := []string{
		fmt.Sprintf("audio:      %.1fs | %.1f KB → %.1f KB (%.0f%% smaller)",
			audioDuration, float64(rawSize)/1024, float64(encodedSize)/1024, compressionPct),
		fmt.Sprintf("format:     %s", enc.Format()),
		fmt.Sprintf("encode:     %dms", enc.EncodeTime().Milliseconds()),
		fmt.Sprintf("conn_wait:  %dms%s", metrics.ConnWait.Milliseconds(), reusedStatus),
		fmt.Sprintf("dns:        %dms", metrics.DNS.Milliseconds()),
		fmt.Sprintf("tls:        %dms", metrics.TLS.Milliseconds()),
		fmt.Sprintf("ttfb:       %dms", metrics.TTFB.Milliseconds()),
		fmt.Sprintf("total:      %dms", metrics.Sum().Milliseconds()),
	}
	if result.Duration > 0 {
		lines = append(lines, fmt.Sprintf("api_dur:    %.2fs", result.Duration))
	}
	if result.NoSpeechProb > 0 {
		lines = append(lines, fmt.Sprintf("no_speech:  %.3f", result.NoSpeechProb))
	}
	return lines
}
