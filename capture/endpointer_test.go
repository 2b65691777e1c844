package capture

import "testing"

func testEndpointer() *Endpointer {
	return NewEndpointer(EndpointConfig{
		SilenceThreshold:  0.003,
		MaxSilenceSeconds: 6.0,
		SampleRate:        16000,
	})
}

func TestEndpointerNoSpeechNeverStops(t *testing.T) {
	e := testEndpointer()
	for range 1000 {
		if st := e.Observe(0.002, 1024); st != WaitingForSpeech {
			t.Fatalf("state = %v, want waiting", st)
		}
	}
	if e.HasSpeech() {
		t.Error("silence alone must not count as speech")
	}
	if e.SilenceSamples() != 0 {
		t.Errorf("silence accumulated before speech: %d", e.SilenceSamples())
	}
}

func TestEndpointerStopsAfterMaxSilence(t *testing.T) {
	e := testEndpointer()
	if st := e.Observe(0.02, 1024); st != Speaking {
		t.Fatalf("state = %v, want speaking", st)
	}

	// 96000 samples must be exceeded: 93 frames reach 95232, 94 reach 96256.
	for i := 1; i <= 93; i++ {
		if st := e.Observe(0.0, 1024); st != Speaking {
			t.Fatalf("frame %d: state = %v, want speaking", i, st)
		}
	}
	if st := e.Observe(0.0, 1024); st != Stopped {
		t.Fatalf("state = %v, want stopped at frame 94", st)
	}
	if got := e.SilenceSamples(); got != 94*1024 {
		t.Errorf("silence = %d, want %d", got, 94*1024)
	}
}

func TestEndpointerExactThresholdDoesNotStop(t *testing.T) {
	e := NewEndpointer(EndpointConfig{SilenceThreshold: 0.003, MaxSilenceSeconds: 1, SampleRate: 1000})
	e.Observe(1, 10)
	for range 100 {
		e.Observe(0, 10)
	}
	if e.SilenceSamples() != 1000 {
		t.Fatalf("silence = %d, want 1000", e.SilenceSamples())
	}
	if e.State() != Speaking {
		t.Errorf("accumulator equal to the limit must not stop, state = %v", e.State())
	}
	if e.Observe(0, 1) != Stopped {
		t.Error("one more silent sample should stop")
	}
}

func TestEndpointerSpeechResets(t *testing.T) {
	e := testEndpointer()
	e.Observe(0.02, 1024)
	for range 50 {
		e.Observe(0.001, 1024)
	}
	if e.SilenceSamples() != 50*1024 {
		t.Fatalf("silence = %d", e.SilenceSamples())
	}
	e.Observe(0.0091, 1024)
	if e.SilenceSamples() != 0 {
		t.Errorf("speech frame should reset silence, got %d", e.SilenceSamples())
	}
}

func TestEndpointerMidBand(t *testing.T) {
	for _, tt := range []struct {
		name   string
		volume float64
		want   int64
	}{
		// between 1.5x and 3x: decay by half a frame
		{"upper band decays", 0.006, 10*1024 - 512},
		// between 1x and 1.5x: unchanged
		{"lower band holds", 0.004, 10 * 1024},
		// exactly 3x is not speech
		{"speech boundary", 0.009, 10*1024 - 512},
		// exactly 1x is not silence
		{"silence boundary", 0.003, 10 * 1024},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e := testEndpointer()
			e.Observe(0.5, 1024)
			for range 10 {
				e.Observe(0, 1024)
			}
			e.Observe(tt.volume, 1024)
			if got := e.SilenceSamples(); got != tt.want {
				t.Errorf("silence = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEndpointerDecayClampsAtZero(t *testing.T) {
	e := testEndpointer()
	e.Observe(0.5, 1024)
	e.Observe(0, 100)
	e.Observe(0.006, 1024)
	if got := e.SilenceSamples(); got != 0 {
		t.Errorf("silence = %d, want 0", got)
	}
	// Odd frame counts halve with truncation.
	e.Observe(0, 10)
	e.Observe(0.006, 7)
	if got := e.SilenceSamples(); got != 7 {
		t.Errorf("silence = %d, want 7", got)
	}
}

func TestEndpointerMidBandBeforeSpeech(t *testing.T) {
	e := testEndpointer()
	for range 100 {
		e.Observe(0.006, 1024)
	}
	if e.HasSpeech() || e.State() != WaitingForSpeech {
		t.Errorf("mid-band frames alone must not start speech")
	}
}

func TestEndpointerStoppedIsTerminal(t *testing.T) {
	e := NewEndpointer(EndpointConfig{SilenceThreshold: 0.003, MaxSilenceSeconds: 0.001, SampleRate: 16000})
	e.Observe(0.5, 10)
	if e.Observe(0, 100) != Stopped {
		t.Fatal("expected stop")
	}
	if st := e.Observe(0.5, 1024); st != Stopped {
		t.Errorf("state after stop = %v", st)
	}
	if e.SilenceSamples() != 100 {
		t.Errorf("observations after stop must be ignored, silence = %d", e.SilenceSamples())
	}
}

func TestEndpointConfigValidate(t *testing.T) {
	good := EndpointConfig{SilenceThreshold: 0.003, MaxSilenceSeconds: 6, SampleRate: 16000}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for _, bad := range []EndpointConfig{
		{SilenceThreshold: 0, MaxSilenceSeconds: 6, SampleRate: 16000},
		{SilenceThreshold: 0.003, MaxSilenceSeconds: -1, SampleRate: 16000},
		{SilenceThreshold: 0.003, MaxSilenceSeconds: 6, SampleRate: 0},
	} {
		if err := bad.Validate(); err == nil {
			t.Errorf("expected error for %+v", bad)
		}
	}
}

func TestStateString(t *testing.T) {
	if WaitingForSpeech.String() != "waiting" || Speaking.String() != "speaking" || Stopped.String() != "stopped" {
		t.Error("unexpected state names")
	}
}
