package main

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// lineReader owns stdin. One goroutine scans lines so that the prompt loop
// and the manual-mode stop listener never compete for the same reader.
type lineReader struct {
	lines chan string
	eof   chan struct{}
}

func newLineReader(r io.Reader) *lineReader {
	lr := &lineReader{lines: make(chan string), eof: make(chan struct{})}
	go func() {
		defer close(lr.eof)
		defer close(lr.lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lr.lines <- scanner.Text()
		}
	}()
	return lr
}

// Wait returns the next line, io.EOF once input is exhausted, or ctx.Err().
func (lr *lineReader) Wait(ctx context.Context) (string, error) {
	select {
	case line, ok := <-lr.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Exhausted reports whether input has ended and every line was consumed.
func (lr *lineReader) Exhausted() bool {
	select {
	case <-lr.eof:
		return true
	default:
		return false
	}
}

// WaitStop makes Enter a capture.StopSource.
func (lr *lineReader) WaitStop(ctx context.Context) error {
	_, err := lr.Wait(ctx)
	return err
}

var exitWords = map[string]bool{
	"exit":    true,
	"quit":    true,
	"bye":     true,
	"goodbye": true,
}

// isExit reports whether text asks to end the session, ignoring case and
// trailing punctuation ("Goodbye." counts).
func isExit(text string) bool {
	w := strings.ToLower(strings.TrimSpace(text))
	w = strings.TrimRight(w, ".!?, ")
	return exitWords[w]
}
