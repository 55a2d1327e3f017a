// Package output provides formatted terminal output for pppctl.
// Messages go to stderr; data meant for pipes (tables, credential strings) goes to stdout.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/ppp/pppctl/internal/constants"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	gray   = color.New(color.FgHiBlack)
	bold   = color.New(color.Bold)

	// Stdout is the output writer for data (can be overridden for testing).
	Stdout io.Writer = os.Stdout
	// Stderr is the output writer for messages (can be overridden for testing).
	Stderr io.Writer = os.Stderr
	// Stdin is read by the prompts (can be overridden for testing).
	Stdin io.Reader = os.Stdin

	// Disable colors if not TTY or NO_COLOR is set
	noColor = func() bool {
		disable := os.Getenv("NO_COLOR") != "" || !isTerminal(os.Stdout)
		if disable {
			color.NoColor = true
		}
		return disable
	}()
	ansiRegexp = regexp.MustCompile(`\x1b\[[0-9;]*m`)

	stdinSource io.Reader
	stdinReader *bufio.Reader
)

func visibleWidth(s string) int {
	return utf8.RuneCountInString(ansiRegexp.ReplaceAllString(s, ""))
}

// Successf prints a success message with a checkmark.
// Example: ✓ Service saved
func Successf(format string, a ...any) {
	_, _ = fmt.Fprintf(Stderr, green.Sprint("✓")+" "+format+"\n", a...)
}

// Infof prints an informational message with an arrow.
// Example: → Resolving the cloud project...
func Infof(format string, a ...any) {
	_, _ = fmt.Fprintf(Stderr, cyan.Sprint("→")+" "+format+"\n", a...)
}

// Warningf prints a warning message.
func Warningf(format string, a ...any) {
	_, _ = fmt.Fprintf(Stderr, yellow.Sprint("⚠")+" "+format+"\n", a...)
}

// Errorf prints an error message with an X symbol.
// Example: ✗ interval: must be between 1 and 1000
func Errorf(format string, a ...any) {
	_, _ = fmt.Fprintf(Stderr, red.Sprint("✗")+" "+format+"\n", a...)
}

// Fatalf prints an error message and exits with code 1
func Fatalf(format string, a ...any) {
	Errorf(format, a...)
	os.Exit(1)
}

// Header prints a section header with a separator line
func Header(text string) {
	_, _ = fmt.Fprintln(Stderr)
	_, _ = fmt.Fprintln(Stderr, bold.Sprint(text))
	_, _ = fmt.Fprintln(Stderr, gray.Sprint(strings.Repeat("━", constants.HeaderSeparatorLength)))
}

// KeyValue prints a key-value pair with indentation
func KeyValue(key, value string) {
	_, _ = fmt.Fprintf(Stderr, "  %s: %s\n", gray.Sprint(key), value)
}

// Blank prints a blank line
func Blank() {
	_, _ = fmt.Fprintln(Stderr)
}

// Println prints a plain line to stdout.
func Println(a ...any) {
	_, _ = fmt.Fprintln(Stdout, a...)
}

// Bold returns text in bold
func Bold(text string) string {
	return bold.Sprint(text)
}

// Cyan returns text in cyan
func Cyan(text string) string {
	return cyan.Sprint(text)
}

// Gray returns text in gray
func Gray(text string) string {
	return gray.Sprint(text)
}

// Table prints a simple table with headers
// Example:
// Name        State     Version
// ────        ─────     ───────
// halts-us    active    4
func Table(headers []string, rows [][]string) {
	if len(headers) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = visibleWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], visibleWidth(cell))
			}
		}
	}

	for i, h := range headers {
		_, _ = fmt.Fprint(Stdout, bold.Sprint(h)+strings.Repeat(" ", widths[i]-visibleWidth(h))+"  ")
	}
	_, _ = fmt.Fprintln(Stdout)

	for i := range headers {
		_, _ = fmt.Fprintf(Stdout, "%s  ", gray.Sprint(strings.Repeat("─", widths[i])))
	}
	_, _ = fmt.Fprintln(Stdout)

	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				continue
			}
			_, _ = fmt.Fprint(Stdout, cell+strings.Repeat(" ", max(widths[i]-visibleWidth(cell), 0))+"  ")
		}
		_, _ = fmt.Fprintln(Stdout)
	}
}

// StatusBadge returns a colored service state badge
func StatusBadge(state string) string {
	switch strings.ToLower(state) {
	case string(constants.ServiceStateActive):
		return green.Sprint("● " + state)
	case string(constants.ServiceStateStopped):
		return gray.Sprint("● " + state)
	case string(constants.ServiceStateFailed):
		return red.Sprint("● " + state)
	default:
		return yellow.Sprint("● " + state)
	}
}

// ProgressBar renders a 0-100 percentage with an optional label.
type ProgressBar struct {
	width   int
	percent int
	label   string
	mu      sync.Mutex
}

// NewProgressBar creates a progress bar
func NewProgressBar(label string) *ProgressBar {
	return &ProgressBar{width: constants.ProgressBarWidth, label: label}
}

// Update redraws the bar at percent. An empty label keeps the previous one.
func (p *ProgressBar) Update(percent int, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	percent = min(max(percent, 0), 100)
	changedLabel := label != "" && label != p.label
	if label != "" {
		p.label = label
	}

	if noColor || !isTerminal(os.Stderr) {
		// Non-TTY: one line per label change or checkpoint
		if changedLabel || percent == 100 || percent/10 != p.percent/10 {
			_, _ = fmt.Fprintf(Stderr, "%s... %d%%\n", p.label, percent)
		}
		p.percent = percent
		return
	}

	p.percent = percent
	filled := percent * p.width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)
	_, _ = fmt.Fprintf(Stderr, "\r\033[K%s %s %3d%%", cyan.Sprint(bar), p.label, percent)
}

// Finish ends the bar's line.
func (p *ProgressBar) Finish() {
	if noColor || !isTerminal(os.Stderr) {
		return
	}
	_, _ = fmt.Fprintln(Stderr)
}

// OperationSink renders an operation's lifecycle on the terminal.
type OperationSink struct {
	title string
	bar   *ProgressBar
}

// NewOperationSink creates a sink printing title when the operation begins.
func NewOperationSink(title string) *OperationSink {
	return &OperationSink{title: title}
}

// Begin starts the progress bar.
func (s *OperationSink) Begin() {
	Infof("%s", s.title)
	s.bar = NewProgressBar(s.title)
}

// Report redraws the progress bar.
func (s *OperationSink) Report(percent int, label string) {
	if s.bar == nil {
		s.bar = NewProgressBar(s.title)
	}
	s.bar.Update(percent, label)
}

// Succeed prints the success message.
func (s *OperationSink) Succeed(message string) {
	s.finishBar()
	Successf("%s", message)
}

// Fail prints the error.
func (s *OperationSink) Fail(err error) {
	s.finishBar()
	Errorf("%v", err)
}

// End is a no-op; output is complete after Succeed or Fail.
func (s *OperationSink) End() {}

func (s *OperationSink) finishBar() {
	if s.bar != nil {
		s.bar.Finish()
		s.bar = nil
	}
}

// Prompt prompts the user for input
func Prompt(prompt string) string {
	_, _ = fmt.Fprintf(Stderr, "%s: ", cyan.Sprint("?")+" "+prompt)
	return readLine()
}

// PromptSecret prompts for sensitive input without echoing it when stdin is a terminal.
func PromptSecret(prompt string) string {
	_, _ = fmt.Fprintf(Stderr, "%s: ", cyan.Sprint("?")+" "+prompt)
	if f, ok := Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(Stderr)
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	return readLine()
}

func readLine() string {
	if stdinReader == nil || stdinSource != Stdin {
		stdinSource = Stdin
		stdinReader = bufio.NewReader(Stdin)
	}
	line, _ := stdinReader.ReadString('\n')
	return strings.TrimSpace(line)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
