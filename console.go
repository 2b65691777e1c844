package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"utter/capture"
	"utter/doctor"
)

var (
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	listenStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	metricsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
)

// console writes user-facing lines. When out is a terminal the capture
// progress is redrawn in place; otherwise only the countdown milestones
// are printed, one per line.
type console struct {
	out  io.Writer
	live bool

	mu          sync.Mutex
	statusShown bool
	lastSecond  int
}

func newConsole(out io.Writer) *console {
	c := &console{out: out}
	if f, ok := out.(*os.File); ok {
		c.live = term.IsTerminal(int(f.Fd()))
	}
	return c
}

func (c *console) println(style lipgloss.Style, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearStatusLocked()
	fmt.Fprintln(c.out, style.Render(fmt.Sprintf(format, args...)))
}

func (c *console) prompt(format string, args ...any) { c.println(promptStyle, format, args...) }
func (c *console) warn(format string, args ...any)   { c.println(warnStyle, format, args...) }
func (c *console) ok(format string, args ...any)     { c.println(okStyle, format, args...) }
func (c *console) help(format string, args ...any)   { c.println(helpStyle, format, args...) }

func (c *console) listening(mode capture.Mode, maxSilence float64) {
	c.mu.Lock()
	c.lastSecond = 0
	c.mu.Unlock()
	switch mode {
	case capture.ModeManual:
		c.println(listenStyle, "● Listening... press Enter to stop")
	default:
		c.println(listenStyle, "● Listening... (stops after %.0fs of silence)", maxSilence)
	}
}

func (c *console) you(text string) {
	c.println(textStyle, "You: %s", text)
}

func (c *console) metrics(lines []string) {
	for _, l := range lines {
		c.println(metricsStyle, "  %s", l)
	}
}

// progress is the capture OnTick hook.
func (c *console) progress(p capture.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	milestone := ""
	if p.Mode == capture.ModeAuto && p.State == capture.Speaking {
		if s := int(p.Silence.Seconds()); s > 0 && s != c.lastSecond {
			c.lastSecond = s
			milestone = fmt.Sprintf("silent for %ds (stops at %.0fs)", s, p.MaxSilence.Seconds())
		}
	}

	if !c.live {
		if milestone != "" {
			fmt.Fprintln(c.out, statusStyle.Render("  "+milestone))
		}
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  %4.1fs %s %-6s", p.Elapsed.Seconds(), meterShort(p.Volume), doctor.Classify(p.Volume))
	switch {
	case p.Mode == capture.ModeManual:
	case p.State == capture.WaitingForSpeech:
		b.WriteString("  waiting for speech")
	case p.Silence > 0:
		fmt.Fprintf(&b, "  silent %.1fs / %.0fs", p.Silence.Seconds(), p.MaxSilence.Seconds())
	}
	fmt.Fprint(c.out, "\r\x1b[K"+statusStyle.Render(b.String()))
	c.statusShown = true
}

// endProgress finishes the in-place status line.
func (c *console) endProgress() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearStatusLocked()
}

func (c *console) clearStatusLocked() {
	if c.statusShown {
		fmt.Fprint(c.out, "\r\x1b[K")
		c.statusShown = false
	}
}

// meterShort is a 20 cell level bar.
func meterShort(volume float64) string {
	n := min(max(int(volume*1000/2.5), 0), 20)
	return strings.Repeat("█", n) + strings.Repeat("·", 20-n)
}
