package tui

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/treilik/bubbleboxer"

	"github.com/chauveaul/jukebox-terminal/monitor"
	"github.com/chauveaul/jukebox-terminal/shell"
	"github.com/chauveaul/jukebox-terminal/transcript"
)

// Leaf addresses
const (
	headerLeaf       = "header"
	transcriptLeaf   = "transcript"
	promptLeaf       = "prompt"
	instructionsLeaf = "instructions"
)

type keyMap struct {
	Run      key.Binding
	Prev     key.Binding
	Next     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Run:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "run")),
	Prev:     key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "previous")),
	Next:     key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "next")),
	PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
	Quit:     key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
}

// stateMsg carries a push-channel transition from the monitor.
type stateMsg monitor.State

func waitForState(states <-chan monitor.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-states
		if !ok {
			return nil
		}
		return stateMsg(s)
	}
}

type headerModel struct {
	width  int
	apiURL string
	live   bool
	state  monitor.State
}

func (m headerModel) Init() tea.Cmd { return nil }
func (m headerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}
func (m headerModel) View() string {
	if m.width <= 0 {
		return ""
	}

	parts := []string{titleStyle.Render("🎧 Nerdy Jukebox")}
	if m.live {
		parts = append(parts, liveStyle.Render("🔴 LIVE MODE"))
	}
	if m.state == monitor.Connected {
		parts = append(parts, connectedStyle.Render("● push connected"))
	} else {
		parts = append(parts, mutedStyle.Render("○ push disconnected"))
	}

	// The URL gets whatever room the fixed parts leave.
	used := 0
	for _, p := range parts {
		used += lipgloss.Width(p) + 2
	}
	if room := m.width - used; room > 3 {
		url := runewidth.Truncate(m.apiURL, room, "...")
		parts = slices.Insert(parts, 1, mutedStyle.Render(url))
	}

	line := strings.Join(parts, "  ")
	if lipgloss.Width(line) > m.width {
		return runewidth.Truncate("🎧 Nerdy Jukebox", m.width, "")
	}
	return line
}

type transcriptModel struct {
	width, height int
	lines         []transcript.Line
	viewport      viewport.Model
}

func (m transcriptModel) Init() tea.Cmd { return nil }
func (m transcriptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width, m.viewport.Height = m.inner()
		m.refresh()
	default:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// inner is the viewport size inside the border and padding.
func (m transcriptModel) inner() (int, int) {
	w := m.width - transcriptBoxStyle.GetHorizontalFrameSize()
	h := m.height - transcriptBoxStyle.GetVerticalFrameSize()
	return max(w, 0), max(h, 0)
}

// refresh re-renders every line and follows the bottom of the transcript.
func (m *transcriptModel) refresh() {
	width, _ := m.inner()
	rendered := make([]string, len(m.lines))
	for i, l := range m.lines {
		style := severityStyle(l.Severity)
		if width > 0 {
			style = style.Width(width)
		}
		rendered[i] = style.Render(l.Text)
	}
	m.viewport.SetContent(strings.Join(rendered, "\n"))
	m.viewport.GotoBottom()
}

func (m transcriptModel) View() string {
	if m.height <= 0 || m.width <= 0 {
		return ""
	}
	return transcriptBoxStyle.Render(m.viewport.View())
}

type promptModel struct {
	width     int
	textInput textinput.Model
}

func (m promptModel) Init() tea.Cmd { return textinput.Blink }
func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.textInput.Width = max(msg.Width-lipgloss.Width(m.textInput.Prompt)-1, 1)
	default:
		m.textInput, cmd = m.textInput.Update(msg)
	}
	return m, cmd
}
func (m promptModel) View() string {
	return m.textInput.View()
}

type instructionsModel struct {
	width int
	live  bool
}

func (m instructionsModel) Init() tea.Cmd { return nil }
func (m instructionsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}
func (m instructionsModel) View() string {
	mode := "live off"
	if m.live {
		mode = "live on"
	}
	bindings := []key.Binding{keys.Run, keys.Prev, keys.Next, keys.PageUp, keys.PageDown, keys.Quit}
	help := make([]string, 0, len(bindings))
	for _, b := range bindings {
		help = append(help, b.Help().Key+" "+b.Help().Desc)
	}
	text := mode + " | " + strings.Join(help, " • ")
	if m.width > 0 && runewidth.StringWidth(text) > m.width {
		text = runewidth.Truncate(text, m.width, "...")
	}
	return mutedStyle.Render(text)
}

// Model is the terminal: a header, the transcript, the prompt and a key
// help line laid out with bubbleboxer. Commands and their results go
// through the shell session.
type Model struct {
	boxer   bubbleboxer.Boxer
	session *shell.Session

	states       <-chan monitor.State
	cancelStates func()

	historyPos int
	draft      string
	shown      int
}

// NewModel creates the terminal model around session. Header state follows
// mon until the program quits.
func NewModel(session *shell.Session, mon *monitor.Monitor) Model {
	boxer := bubbleboxer.Boxer{
		ModelMap: make(map[string]tea.Model),
	}

	ti := textinput.New()
	ti.Prompt = promptStyle.Render("$ ")
	ti.Placeholder = "Type a command... (try 'help')"
	ti.CharLimit = 256
	ti.Focus()

	tm := transcriptModel{viewport: viewport.New(0, 0), lines: session.Transcript().Lines()}

	// Create leaf nodes
	header, _ := boxer.CreateLeaf(headerLeaf, headerModel{apiURL: session.APIURL(), state: mon.State()})
	body, _ := boxer.CreateLeaf(transcriptLeaf, tm)
	prompt, _ := boxer.CreateLeaf(promptLeaf, promptModel{textInput: ti})
	instructions, _ := boxer.CreateLeaf(instructionsLeaf, instructionsModel{})

	boxer.LayoutTree = bubbleboxer.Node{
		Children:        []bubbleboxer.Node{header, body, prompt, instructions},
		VerticalStacked: true,
		SizeFunc: func(node bubbleboxer.Node, widthOrHeight int) []int {
			// One line each for header, prompt and help, the rest for the transcript.
			return []int{1, max(widthOrHeight-3, 0), 1, 1}
		},
	}

	states, cancel := mon.Subscribe()
	return Model{
		boxer:        boxer,
		session:      session,
		states:       states,
		cancelStates: cancel,
		shown:        session.Transcript().Len(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.session.Init(), textinput.Blink, waitForState(m.states))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Update the boxer first
	var cmds []tea.Cmd
	updatedBoxer, boxerCmd := m.boxer.Update(msg)
	m.boxer = updatedBoxer.(bubbleboxer.Boxer)
	cmds = append(cmds, boxerCmd)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.cancelStates()
			return m, tea.Quit
		case key.Matches(msg, keys.Run):
			cmds = append(cmds, m.run())
		case key.Matches(msg, keys.Prev):
			m.recall(-1)
		case key.Matches(msg, keys.Next):
			m.recall(1)
		case key.Matches(msg, keys.PageUp, keys.PageDown):
			cmds = append(cmds, m.editLeaf(transcriptLeaf, msg))
		default:
			cmds = append(cmds, m.editLeaf(promptLeaf, msg))
		}
	case stateMsg:
		m.boxer.EditLeaf(headerLeaf, func(model tea.Model) (tea.Model, error) {
			h := model.(headerModel)
			h.state = monitor.State(msg)
			return h, nil
		})
		cmds = append(cmds, waitForState(m.states))
	case tea.WindowSizeMsg:
	default:
		cmds = append(cmds, m.session.Update(msg), m.editLeaf(promptLeaf, msg))
	}

	m.sync()
	return m, tea.Batch(cmds...)
}

// run executes the prompt's content and clears it.
func (m *Model) run() tea.Cmd {
	var line string
	m.boxer.EditLeaf(promptLeaf, func(model tea.Model) (tea.Model, error) {
		p := model.(promptModel)
		line = p.textInput.Value()
		p.textInput.Reset()
		return p, nil
	})
	cmd := m.session.Execute(line)
	m.historyPos = len(m.session.History())
	m.draft = ""
	return cmd
}

// recall moves through previously run inputs; stepping past the newest
// entry restores what was being typed.
func (m *Model) recall(step int) {
	history := m.session.History()
	if len(history) == 0 {
		return
	}
	pos := m.historyPos + step
	if pos < 0 || pos > len(history) {
		return
	}

	m.boxer.EditLeaf(promptLeaf, func(model tea.Model) (tea.Model, error) {
		p := model.(promptModel)
		if m.historyPos == len(history) {
			m.draft = p.textInput.Value()
		}
		if pos == len(history) {
			p.textInput.SetValue(m.draft)
		} else {
			p.textInput.SetValue(history[pos])
		}
		p.textInput.CursorEnd()
		return p, nil
	})
	m.historyPos = pos
}

func (m *Model) editLeaf(address string, msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.boxer.EditLeaf(address, func(model tea.Model) (tea.Model, error) {
		var updated tea.Model
		updated, cmd = model.Update(msg)
		return updated, nil
	})
	return cmd
}

// sync pushes session state that changed during this update into the leaves.
func (m *Model) sync() {
	t := m.session.Transcript()
	if t.Len() != m.shown {
		m.shown = t.Len()
		lines := t.Lines()
		m.boxer.EditLeaf(transcriptLeaf, func(model tea.Model) (tea.Model, error) {
			tm := model.(transcriptModel)
			tm.lines = lines
			tm.refresh()
			return tm, nil
		})
	}

	live := m.session.Live()
	m.boxer.EditLeaf(headerLeaf, func(model tea.Model) (tea.Model, error) {
		h := model.(headerModel)
		h.live = live
		return h, nil
	})
	m.boxer.EditLeaf(instructionsLeaf, func(model tea.Model) (tea.Model, error) {
		in := model.(instructionsModel)
		in.live = live
		return in, nil
	})
}

func (m Model) View() string {
	return m.boxer.View()
}

// Run starts the terminal and blocks until the user quits or ctx is done.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
