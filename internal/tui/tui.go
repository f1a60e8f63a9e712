// Package tui provides a Bubble Tea dashboard for chapter downloads.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/handiism/manhua-downloader/internal/events"
	"github.com/handiism/manhua-downloader/internal/model"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F8B500"))
)

// Controller is the part of the download manager the dashboard drives.
type Controller interface {
	Pause(chapterID int64) error
	Resume(chapterID int64) error
	Cancel(chapterID int64) error
	Dismiss(chapterID int64) error
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	title    string
	ctrl     Controller
	sub      *events.Subscription
	spinner  spinner.Model
	progress progress.Model

	tasks  map[int64]model.TaskSnapshot
	order  []int64
	cursor int
	speed  string
	notice string
	// cooldown is the remaining chapter interval, 0 when none is running.
	cooldown int
	closed bool

	width  int
	height int
}

// NewModel creates a dashboard for comicTitle fed by sub.
func NewModel(comicTitle string, ctrl Controller, sub *events.Subscription) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	prog.Width = 30

	return Model{
		title:    comicTitle,
		ctrl:     ctrl,
		sub:      sub,
		spinner:  sp,
		progress: prog,
		tasks:    make(map[int64]model.TaskSnapshot),
		speed:    "0.00 MB/s",
	}
}

// Message types
type (
	// EventMsg carries one event from the bus.
	EventMsg struct {
		Event events.Event
	}

	// busClosedMsg is sent when the subscription ends.
	busClosedMsg struct{}
)

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

func (m Model) waitForEvent() tea.Cmd {
	if m.sub == nil {
		return nil
	}
	sub := m.sub
	return func() tea.Msg {
		e, ok := <-sub.C()
		if !ok {
			return busClosedMsg{}
		}
		return EventMsg{Event: e}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-60, 10), 40)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case EventMsg:
		m.apply(msg.Event)
		return m, m.waitForEvent()

	case busClosedMsg:
		m.closed = true
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.order)-1 {
			m.cursor++
		}
	case "p":
		m.control("pause", m.ctrl.Pause)
	case "r":
		m.control("resume", m.ctrl.Resume)
	case "c":
		m.control("cancel", m.ctrl.Cancel)
	case "x":
		if id, ok := m.selected(); ok && m.control("dismiss", m.ctrl.Dismiss) {
			m.remove(id)
		}
	}
	return m, nil
}

// control applies op to the selected task and reports whether it succeeded.
func (m *Model) control(name string, op func(int64) error) bool {
	id, ok := m.selected()
	if !ok {
		return false
	}
	if err := op(id); err != nil {
		m.notice = fmt.Sprintf("%s %s: %v", name, m.tasks[id].Chapter.Title, err)
		return false
	}
	m.notice = ""
	return true
}

func (m Model) selected() (int64, bool) {
	if m.cursor < 0 || m.cursor >= len(m.order) {
		return 0, false
	}
	return m.order[m.cursor], true
}

// apply stores a task snapshot unless a newer one is already shown.
func (m *Model) apply(e events.Event) {
	switch e.Type {
	case events.Speed:
		m.speed = e.Speed
		if m.cooldown <= 1 {
			m.cooldown = 0
		}
		return
	case events.Cooldown:
		m.cooldown = e.RemainingSec
		return
	}
	if e.Task == nil {
		return
	}
	if prev, ok := m.tasks[e.ChapterID]; ok && !e.Task.Newer(prev) {
		return
	}
	if _, ok := m.tasks[e.ChapterID]; !ok {
		m.order = append(m.order, e.ChapterID)
	}
	m.tasks[e.ChapterID] = *e.Task
	m.sortOrder()
}

func (m *Model) remove(id int64) {
	delete(m.tasks, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.cursor >= len(m.order) && m.cursor > 0 {
		m.cursor--
	}
}

func (m *Model) sortOrder() {
	sort.SliceStable(m.order, func(i, j int) bool {
		a, b := m.tasks[m.order[i]].Chapter, m.tasks[m.order[j]].Chapter
		if a.GroupName != b.GroupName {
			return a.GroupName < b.GroupName
		}
		return a.Order < b.Order
	})
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("漫画 Manhua Downloader"))
	b.WriteString("\n")
	if m.title != "" {
		b.WriteString(subtitleStyle.Render(m.title))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(m.order) == 0 {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(dimStyle.Render("Waiting for tasks..."))
		b.WriteString("\n")
	}
	for i, id := range m.order {
		b.WriteString(m.renderTask(m.tasks[id], i == m.cursor))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(infoStyle.Render(m.summary()))
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(warningStyle.Render("! " + m.notice))
		b.WriteString("\n")
	}
	if m.closed {
		b.WriteString(dimStyle.Render("event stream closed"))
		b.WriteString("\n")
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("↑/↓: select • p: pause • r: resume • c: cancel • x: dismiss • q: quit"))

	return b.String()
}

func (m Model) renderTask(s model.TaskSnapshot, selected bool) string {
	cursor := "  "
	name := s.Chapter.PrefixedTitle()
	if selected {
		cursor = "› "
		name = selectedStyle.Render(name)
	}

	detail := fmt.Sprintf("%d/%d", s.DownloadedImgCount, s.TotalImgCount)
	switch s.State {
	case model.StateSleeping:
		detail += fmt.Sprintf(" retry in %ds", s.RetryAfter)
	case model.StateFailed:
		detail += " " + s.ErrMsg
	}

	return fmt.Sprintf("%s%-24s %s %s %s",
		cursor,
		name,
		stateStyle(s.State).Render(fmt.Sprintf("%-11s", s.State)),
		m.progress.ViewAs(s.Percent()),
		dimStyle.Render(detail),
	)
}

func stateStyle(s model.TaskState) lipgloss.Style {
	switch s {
	case model.StateCompleted:
		return successStyle
	case model.StateFailed:
		return errorStyle
	case model.StateSleeping, model.StatePaused:
		return warningStyle
	case model.StateDownloading:
		return infoStyle
	}
	return dimStyle
}

func (m Model) summary() string {
	var active, done int
	for _, s := range m.tasks {
		switch {
		case s.State.IsActive():
			active++
		case s.State == model.StateCompleted:
			done++
		}
	}
	line := fmt.Sprintf("Speed: %s | Active: %d | Completed: %d/%d", m.speed, active, done, len(m.tasks))
	if m.cooldown > 0 {
		line += fmt.Sprintf(" | Next chapter in %ds", m.cooldown)
	}
	return line
}

// Run starts the TUI application and blocks until the user quits.
func Run(comicTitle string, ctrl Controller, bus *events.Bus) error {
	sub := bus.Subscribe()
	defer sub.Close()

	p := tea.NewProgram(NewModel(comicTitle, ctrl, sub), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
