package checkexec

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// tailLines is the amount of log context shown when the operator first
// toggles into streaming mode, per spec §4.E.3.
const tailLines = 20

var (
	elapsedStyle = lipgloss.NewStyle().Faint(true)
	hintStyle    = lipgloss.NewStyle().Faint(true)
	logStyle     = lipgloss.NewStyle()
)

type tickMsg time.Time

type checkDoneMsg waitResult

// progressModel drives the interactive check-execution progress
// surface: a spinner with elapsed time, toggled by pressing 'v' into
// live streaming of the run log's tail. bubbletea owns terminal raw
// mode for the lifetime of p.Run, restoring it on every exit path
// (including SIGINT) without a hand-rolled RAII guard.
type progressModel struct {
	logPath   string
	start     time.Time
	spinner   spinner.Model
	streaming bool
	doneCh    chan waitResult
	result    *waitResult
	lastSize  int64
}

func newProgressModel(logPath string, startVerbose bool, start time.Time, doneCh chan waitResult) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return progressModel{
		logPath:   logPath,
		start:     start,
		spinner:   s,
		streaming: startVerbose,
		doneCh:    doneCh,
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForDone(m.doneCh), tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	}))
}

func waitForDone(ch chan waitResult) tea.Cmd {
	return func() tea.Msg {
		return checkDoneMsg(<-ch)
	}
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "v":
			m.streaming = !m.streaming
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	case checkDoneMsg:
		r := waitResult(msg)
		m.result = &r
		return m, tea.Quit
	case tickMsg:
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	elapsed := int(time.Since(m.start).Seconds())
	if !m.streaming {
		return fmt.Sprintf("%s running check... %s\n%s",
			m.spinner.View(),
			elapsedStyle.Render(fmt.Sprintf("(elapsed: %ds)", elapsed)),
			hintStyle.Render("press 'v' to view live output"))
	}

	lines := tailFile(m.logPath, tailLines)
	var b strings.Builder
	fmt.Fprintf(&b, "%s running check... %s %s\n", m.spinner.View(),
		elapsedStyle.Render(fmt.Sprintf("(elapsed: %ds)", elapsed)),
		hintStyle.Render("press 'v' to hide output"))
	b.WriteString(logStyle.Render(strings.Join(lines, "\n")))
	return b.String()
}

// tailFile returns the last n non-sentinel lines of path, or nil if it
// cannot be read yet (the check may not have produced output).
func tailFile(path string, n int) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if IsSentinel(line) {
			continue
		}
		lines = append(lines, line)
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines
}
