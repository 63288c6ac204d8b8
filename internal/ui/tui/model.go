package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/event"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/stats"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/ui"
)

type viewMode int

const (
	viewFeed viewMode = iota
	viewRate
)

// Bubble Tea messages.
type engineEventMsg event.Event
type channelDoneMsg struct{}
type tickMsg time.Time
type saveResultMsg struct{ err error }

// readNextEvent returns a tea.Cmd that blocks on the event channel.
func readNextEvent(ch <-chan event.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return channelDoneMsg{}
		}
		return engineEventMsg(ev)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// saveModal manages the text input overlay for saving the event feed.
type saveModal struct {
	active bool
	input  string
	cursor int
}

func (s *saveModal) insertRune(r rune) {
	s.input = s.input[:s.cursor] + string(r) + s.input[s.cursor:]
	s.cursor++
}

func (s *saveModal) backspace() {
	if s.cursor > 0 {
		s.input = s.input[:s.cursor-1] + s.input[s.cursor:]
		s.cursor--
	}
}

func (s *saveModal) deleteChar() {
	if s.cursor < len(s.input) {
		s.input = s.input[:s.cursor] + s.input[s.cursor+1:]
	}
}

func (s *saveModal) moveLeft() {
	if s.cursor > 0 {
		s.cursor--
	}
}

func (s *saveModal) moveRight() {
	if s.cursor < len(s.input) {
		s.cursor++
	}
}

func (s *saveModal) render() string {
	prompt := styleSavePrompt.Render("Save to: ")
	before := s.input[:s.cursor]
	after := s.input[s.cursor:]
	cursor := styleSaveInput.Render("█")
	return "  " + prompt + styleSaveInput.Render(before) + cursor + styleSaveInput.Render(after)
}

// Model is the root Bubble Tea model.
type Model struct {
	events    <-chan event.Event
	stats     stats.ReadTicker
	source    string
	outputDir string
	cancel    context.CancelFunc // aborts the acquisition; nil disables

	mode      viewMode
	feed      feedView
	rate      rateView
	width     int
	height    int
	statusMsg string // transient notification
	done      bool   // event channel closed
	aborting  bool
	quitting  bool

	lastSnap  stats.Snapshot
	lastSpeed float64
	lastETA   time.Duration

	save saveModal
}

// NewModel creates a new TUI model.
func NewModel(events <-chan event.Event, collector stats.ReadTicker, source, outputDir string, cancel context.CancelFunc) Model {
	return Model{
		events:    events,
		stats:     collector,
		source:    source,
		outputDir: outputDir,
		cancel:    cancel,
		feed:      newFeedView(outputDir),
		rate:      newRateView(),
		width:     80,
		height:    24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		readNextEvent(m.events),
		tickCmd(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case engineEventMsg:
		m.feed.handleEvent(event.Event(msg))
		return m, readNextEvent(m.events)

	case channelDoneMsg:
		m.done = true
		m.lastSnap = m.stats.Snapshot()
		m.lastSpeed = m.stats.RollingSpeed(10)
		m.lastETA = 0
		return m, nil

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.stats.Tick()
		m.lastSnap = m.stats.Snapshot()
		m.lastSpeed = m.stats.RollingSpeed(10)
		m.lastETA = m.stats.ETA()
		return m, tickCmd()

	case saveResultMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("save failed: %v", msg.err)
		} else {
			m.statusMsg = fmt.Sprintf("saved to %s", m.save.input)
		}
		m.save.active = false
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// When save modal is active, capture all input.
	if m.save.active {
		return m.handleSaveKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		// The first press while imaging requests an abort; the screen stays
		// up so the operator sees the partial image being discarded.
		if !m.done && !m.aborting && m.cancel != nil {
			m.aborting = true
			m.cancel()
			m.statusMsg = "aborting acquisition... press q again to leave"
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case "r":
		m.mode = viewRate
		m.statusMsg = ""
		return m, nil

	case "f":
		m.mode = viewFeed
		m.statusMsg = ""
		return m, nil

	// Scroll keys for feed view.
	case "j", "down":
		if m.mode == viewFeed {
			m.feed.scrollDown()
		}
		return m, nil

	case "k", "up":
		if m.mode == viewFeed {
			m.feed.scrollUp()
		}
		return m, nil

	case "G":
		if m.mode == viewFeed {
			m.feed.scrollToBottom()
		}
		return m, nil

	case "g":
		if m.mode == viewFeed {
			m.feed.scrollToTop()
		}
		return m, nil

	case "s":
		if m.done {
			m.save.active = true
			m.save.input = filepath.Join(m.outputDir,
				fmt.Sprintf("eff-%s.log", time.Now().Format("2006-01-02-150405")))
			m.save.cursor = len(m.save.input)
			m.statusMsg = ""
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleSaveKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		m.save.active = false
		m.statusMsg = ""
		return m, nil

	case tea.KeyEnter:
		return m, m.writeFeed(m.save.input)

	case tea.KeyBackspace:
		m.save.backspace()
		return m, nil

	case tea.KeyDelete:
		m.save.deleteChar()
		return m, nil

	case tea.KeyLeft:
		m.save.moveLeft()
		return m, nil

	case tea.KeyRight:
		m.save.moveRight()
		return m, nil

	case tea.KeyRunes:
		for _, r := range msg.Runes {
			m.save.insertRune(r)
		}
		return m, nil
	}

	return m, nil
}

// writeFeed saves the session's event feed and bad-sector list as text.
func (m Model) writeFeed(path string) tea.Cmd {
	// Capture data needed by the goroutine.
	snap := m.lastSnap
	source := m.source
	entries := make([]logEntry, len(m.feed.entries))
	copy(entries, m.feed.entries)
	bad := make([]badSectorEntry, len(m.feed.badSectors))
	copy(bad, m.feed.badSectors)

	return func() tea.Msg {
		var b strings.Builder

		b.WriteString("eff acquisition session\n")
		b.WriteString("=======================\n")
		fmt.Fprintf(&b, "source:      %s\n", source)
		fmt.Fprintf(&b, "saved:       %s\n", time.Now().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "duration:    %s\n", ui.FormatDuration(snap.Elapsed))
		fmt.Fprintf(&b, "size:        %s\n", ui.FormatBytes(snap.BytesProcessed))
		fmt.Fprintf(&b, "bad sectors: %d\n", snap.BadSectors)
		b.WriteString("\n--- events ---\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "%s  %s%s\n", e.time.Format("15:04:05"), e.text, e.path)
		}
		if len(bad) > 0 {
			b.WriteString("\n--- bad sectors ---\n")
			for _, e := range bad {
				fmt.Fprintf(&b, "%d  %d  %s\n", e.offset, e.length, e.err)
			}
		}

		err := os.WriteFile(path, []byte(b.String()), 0o644) //nolint:gosec // user-chosen path for session output
		return saveResultMsg{err: err}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	// Header (1 line).
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')

	// Content area.
	contentHeight := max(m.height-3, 3) // header (1) + footer (1) + save/status (1)

	switch m.mode {
	case viewFeed:
		b.WriteString(m.feed.view(m.width, contentHeight))
	case viewRate:
		b.WriteString(m.rate.view(m.width, m.lastSnap, m.stats))
	}

	// Save modal or status message.
	switch {
	case m.save.active:
		b.WriteString(m.save.render())
	case m.statusMsg != "":
		b.WriteString(styleStatus.Render("  " + m.statusMsg))
	}
	b.WriteByte('\n')

	// Footer.
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m Model) renderHeader() string {
	snap := m.lastSnap

	var pct float64
	if snap.BytesTotal > 0 {
		pct = float64(snap.BytesProcessed) / float64(snap.BytesTotal)
	}

	bar := ui.ProgressBar(pct, 10)

	header := fmt.Sprintf("  %s  %6.2f%%  %s  %s / %s  bad sectors %s  eta %s",
		styleHeaderLabel.Render("eff"),
		pct*100,
		styleProgressFilled.Render(bar),
		ui.FormatBytes(snap.BytesProcessed),
		ui.FormatBytes(snap.BytesTotal),
		ui.FormatCount(snap.BadSectors),
		ui.FormatETA(m.lastETA),
	)

	if m.done {
		state := styleIconDone.Render("done")
		if m.aborting || (snap.BytesTotal > 0 && snap.BytesProcessed < snap.BytesTotal) {
			state = styleIconFailed.Render("aborted")
		}
		header = fmt.Sprintf("  %s  %s  %s  bad sectors %s  %s",
			styleHeaderLabel.Render("eff"),
			state,
			ui.FormatBytes(snap.BytesProcessed),
			ui.FormatCount(snap.BadSectors),
			ui.FormatDuration(snap.Elapsed),
		)
	}

	return styleHeader.Render(header)
}

func (m Model) renderFooter() string {
	type keybind struct {
		key   string
		label string
	}

	var binds []keybind
	if m.done {
		binds = []keybind{
			{"s", "save"},
			{"j/k", "scroll"},
			{"r", "rate"},
			{"f", "feed"},
			{"q", "quit"},
		}
	} else {
		binds = []keybind{
			{"q", "abort"},
			{"r", "rate"},
			{"f", "feed"},
			{"j/k", "scroll"},
		}
	}

	var parts []string
	for _, kb := range binds {
		parts = append(parts,
			styleKeybindKey.Render(kb.key)+" "+styleKeybindLabel.Render(kb.label))
	}

	return "  " + strings.Join(parts, "   ")
}
