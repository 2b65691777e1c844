//go:build integration

package test_test

import (
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"utter/audio"
)

var (
	testBinary string
	speechPath string
)

func TestMain(m *testing.M) {
	testBinary = os.Getenv("UTTER_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "UTTER_TEST_BIN not set; build the binary and point UTTER_TEST_BIN at it")
		os.Exit(1)
	}

	dir, err := os.MkdirTemp("", "utter-integration")
	if err != nil {
		fmt.Fprintf(os.Stderr, "tempdir: %v\n", err)
		os.Exit(1)
	}
	speechPath = filepath.Join(dir, "tone.wav")
	if err := audio.WriteWAV(speechPath, tone(1.5, 440, 0.2), audio.SampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate tone.wav: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// tone is a sine of the given amplitude; the binary appends silence after it.
func tone(seconds, freq, amp float64) []int16 {
	n := int(seconds * audio.SampleRate)
	pcm := make([]int16, n)
	for i := range pcm {
		pcm[i] = int16(amp * 32767 * math.Sin(2*math.Pi*freq*float64(i)/audio.SampleRate))
	}
	return pcm
}

func runUtter(t *testing.T, stdin string, args ...string) (logDir, out string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{"-logpath", logDir}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = os.Environ()

	b, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("utter exited with error: %v\noutput: %s", err, b)
	}
	return logDir, string(b)
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func TestAutoStopsOnSilence(t *testing.T) {
	logDir, _ := runUtter(t, "\n", "-stt", "none", "-wav", speechPath, "-once", "-mode", "auto")
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "capture_done") {
		t.Fatalf("expected capture_done in diagnostics:\n%s", diag)
	}
	if !strings.Contains(diag, "reason=silence") {
		t.Errorf("expected reason=silence in diagnostics:\n%s", diag)
	}
	if !strings.Contains(diag, "has_speech=true") {
		t.Errorf("expected has_speech=true in diagnostics:\n%s", diag)
	}
}

func TestManualStopsOnEnter(t *testing.T) {
	logDir, _ := runUtter(t, "\n", "-stt", "none", "-wav", speechPath, "-once", "-mode", "manual")
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "reason=stop_requested") {
		t.Errorf("expected reason=stop_requested in diagnostics:\n%s", diag)
	}
}

func TestSaveDirKeepsRecording(t *testing.T) {
	saveDir := t.TempDir()
	_, _ = runUtter(t, "\n", "-stt", "none", "-wav", speechPath, "-once", "-save", saveDir)
	matches, _ := filepath.Glob(filepath.Join(saveDir, "utterance_*.wav"))
	if len(matches) != 1 {
		t.Fatalf("saved %d recordings, want 1", len(matches))
	}
}

func TestSessionLogged(t *testing.T) {
	logDir, _ := runUtter(t, "exit\n", "-stt", "none", "-wav", speechPath)
	diag := readLog(t, logDir, "diagnostics_log.txt")
	for _, want := range []string{"session_start", "session_end"} {
		if !strings.Contains(diag, want) {
			t.Errorf("expected %s in diagnostics", want)
		}
	}
}

func TestGroqTranscription(t *testing.T) {
	if os.Getenv("GROQ_API_KEY") == "" {
		t.Skip("GROQ_API_KEY not set")
	}
	logDir, _ := runUtter(t, "\n", "-stt", "groq", "-wav", speechPath, "-once")
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "transcription") && !strings.Contains(diag, "no_speech") {
		t.Errorf("expected a transcription or no_speech entry:\n%s", diag)
	}
}
