package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

var ErrSelectionCanceled = errors.New("device selection canceled")

// SelectDevice presents an interactive picker on the terminal and returns
// the chosen device. With a single device it returns it without prompting.
func SelectDevice(ctx Context, in *os.File, out io.Writer) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}

	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(in.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	render := func() {
		fmt.Fprint(out, "\r\x1b[J")
		fmt.Fprint(out, "Select input device (↑/↓, Enter to confirm):\r\n\r\n")
		for i, d := range devices {
			tag := ""
			if IsBluetooth(d.Name) {
				tag = " \x1b[33m[⚠ Lower audio quality]\x1b[0m"
			}
			if i == cursor {
				fmt.Fprintf(out, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, tag)
			} else {
				fmt.Fprintf(out, "    %s%s\r\n", d.Name, tag)
			}
		}
	}

	render()

	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}

		cursor = moveCursor(cursor, len(devices), buf[:n])
		switch {
		case n == 1 && buf[0] == 13: // Enter
			fmt.Fprint(out, "\r\n")
			return &devices[cursor], nil
		case n == 1 && (buf[0] == 3 || buf[0] == 'q'): // Ctrl+C
			fmt.Fprint(out, "\r\n")
			return nil, ErrSelectionCanceled
		}

		fmt.Fprintf(out, "\x1b[%dA", len(devices)+2)
		render()
	}
}

// moveCursor applies one key press (arrow keys or j/k) to the cursor.
func moveCursor(cursor, count int, key []byte) int {
	up, down := false, false
	switch {
	case len(key) == 1 && key[0] == 'k':
		up = true
	case len(key) == 1 && key[0] == 'j':
		down = true
	case len(key) == 3 && key[0] == 0x1b && key[1] == '[':
		up = key[2] == 'A'
		down = key[2] == 'B'
	}
	if up && cursor > 0 {
		cursor--
	}
	if down && cursor < count-1 {
		cursor++
	}
	return cursor
}
