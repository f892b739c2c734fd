// Package spinner shows a one-line progress indicator while a command works.
// The line carries a title and the latest log line written to the spinner,
// redrawn in place so the terminal scrollback stays clean.
package spinner

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const defaultWidth = 80

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	statusStyle = lipgloss.NewStyle().Faint(true)
)

// Spinner renders a spinner with the latest line written to Writer.
type Spinner struct {
	program *tea.Program
	reader  *io.PipeReader
	writer  *io.PipeWriter
	lines   chan string
	wg      sync.WaitGroup
}

// New creates a Spinner rendering to out. width bounds the rendered line;
// values <= 0 use 80 columns.
func New(out io.Writer, title string, width int) *Spinner {
	if width <= 0 {
		width = defaultWidth
	}

	reader, writer := io.Pipe()
	s := &Spinner{
		reader: reader,
		writer: writer,
		lines:  make(chan string, 16),
	}
	s.program = tea.NewProgram(newModel(title, s.lines, width),
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	return s
}

// Writer returns the writer whose lines appear next to the spinner.
func (s *Spinner) Writer() io.Writer {
	return s.writer
}

// Start renders the spinner until Stop is called.
func (s *Spinner) Start() error {
	s.wg.Add(1)
	go s.readLines()

	_, err := s.program.Run()
	s.wg.Wait()
	return err
}

// Stop clears the spinner line and makes Start return.
func (s *Spinner) Stop() {
	_ = s.writer.Close()
	s.program.Quit()
}

// readLines forwards the latest non-empty lines to the model. Lines arriving
// faster than the model consumes them are dropped.
func (s *Spinner) readLines() {
	defer s.wg.Done()
	defer close(s.lines)
	defer s.reader.Close() //nolint:errcheck

	scanner := bufio.NewScanner(s.reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case s.lines <- line:
		default:
		}
	}
}

// Run calls fn while a spinner titled title is shown on out. fn receives the
// writer its progress output should go to. When out is not a terminal no
// spinner is drawn and fn writes to out directly.
func Run(out *os.File, title string, fn func(w io.Writer) error) error {
	fd := int(out.Fd())
	if !term.IsTerminal(fd) {
		return fn(out)
	}

	width := defaultWidth
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		width = w
	}

	s := New(out, title, width)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start() //nolint:errcheck
	}()

	err := fn(s.Writer())
	s.Stop()
	<-done
	return err
}

type model struct {
	spinner  spinner.Model
	title    string
	status   string
	width    int
	lines    <-chan string
	quitting bool
}

type lineMsg string

func newModel(title string, lines <-chan string, width int) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		spinner: s,
		title:   title,
		width:   width,
		lines:   lines,
	}
}

// Init implements tea.Model.
//
//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForLine(m.lines))
}

// Update implements tea.Model.
//
//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case lineMsg:
		m.status = string(msg)
		return m, waitForLine(m.lines)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.QuitMsg:
		m.quitting = true
	}

	return m, nil
}

// View implements tea.Model.
//
//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) View() string {
	if m.quitting {
		return ""
	}

	line := m.spinner.View() + " " + titleStyle.Render(m.title)
	room := m.width - lipgloss.Width(line) - 1
	if status := truncate(m.status, room); status != "" {
		line += " " + statusStyle.Render(status)
	}
	return line
}

// waitForLine waits for the next status line. A closed channel ends the
// wait without a message.
func waitForLine(lines <-chan string) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-lines
		if !ok {
			return nil
		}
		return lineMsg(line)
	}
}

// truncate shortens s to maxWidth runes, ending in "..." when cut.
func truncate(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxWidth {
		return s
	}
	return string(r[:maxWidth-3]) + "..."
}
