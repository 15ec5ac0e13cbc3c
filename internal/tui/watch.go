package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// watchInterval is how often the watcher rescans the log tree.
const watchInterval = 2 * time.Second

var (
	watchHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205")).
				Padding(0, 1)

	watchInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(0, 1)
)

type watchTickMsg time.Time

// watchModel tails the newest run log, refreshing as new runs land.
type watchModel struct {
	logRoot  string
	folder   string // optional filter to one group
	viewport viewport.Model
	current  string // path of the displayed log
	ready    bool
	err      error
}

// WatchRuns opens the interactive run-log watcher over logRoot. When
// folder is non-empty only that group's runs are shown.
func WatchRuns(logRoot, folder string) error {
	m := watchModel{logRoot: logRoot, folder: folder}
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func watchTick() tea.Cmd {
	return tea.Tick(watchInterval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) Init() tea.Cmd {
	return watchTick()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			m.reload()
			return m, nil
		}

	case tea.WindowSizeMsg:
		headerHeight := 2
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight)
			m.ready = true
			m.reload()
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight
		}
		return m, nil

	case watchTickMsg:
		m.reload()
		return m, watchTick()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m watchModel) View() string {
	if !m.ready {
		return "loading..."
	}

	title := "warden runs"
	if m.folder != "" {
		title += " — " + m.folder
	}
	header := watchHeaderStyle.Render(title)
	info := watchInfoStyle.Render(m.statusLine())
	return header + "\n" + info + "\n" + m.viewport.View()
}

func (m watchModel) statusLine() string {
	if m.err != nil {
		return fmt.Sprintf("error: %v", m.err)
	}
	if m.current == "" {
		return "waiting for the first run... (q to quit)"
	}
	rel, err := filepath.Rel(m.logRoot, m.current)
	if err != nil {
		rel = m.current
	}
	return rel + "  (q quit, r refresh, ↑/↓ scroll)"
}

// reload points the viewport at the newest run log.
func (m *watchModel) reload() {
	path, err := m.latestLog()
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		m.err = err
		return
	}

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(string(data))
	if path != m.current || atBottom {
		m.viewport.GotoBottom()
	}
	m.current = path
}

// latestLog returns the newest run log under logRoot, or empty when
// none exist yet.
func (m *watchModel) latestLog() (string, error) {
	pattern := filepath.Join(m.logRoot, "*", "run-*.log")
	if m.folder != "" {
		pattern = filepath.Join(m.logRoot, m.folder, "run-*.log")
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}

	// Run files are timestamp-named, so the lexicographically largest
	// basename is the newest within a group; across groups compare
	// modification times.
	sort.Slice(matches, func(i, j int) bool {
		return modTime(matches[i]).Before(modTime(matches[j]))
	})
	return matches[len(matches)-1], nil
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// GroupFoldersWithLogs lists the group folders that have run logs, for
// the watch command's folder argument.
func GroupFoldersWithLogs(logRoot string) []string {
	entries, err := os.ReadDir(logRoot)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}
