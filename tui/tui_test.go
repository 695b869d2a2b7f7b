package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/chauveaul/jukebox-terminal/daemon/mocks"
	"github.com/chauveaul/jukebox-terminal/monitor"
	"github.com/chauveaul/jukebox-terminal/shell"
	"github.com/chauveaul/jukebox-terminal/transcript"
)

func newModel(t *testing.T) (Model, *monitor.Monitor) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mon := monitor.New(zap.NewNop())
	svc := mocks.NewMockService(gomock.NewController(t))
	session := shell.New(ctx, svc, mon, shell.WithEndpoints("http://jukebox.local/graphql", "ws://jukebox.local/graphql"))

	m := NewModel(session, mon)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model), mon
}

func typeLine(t *testing.T, m Model, line string) Model {
	t.Helper()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(line)})
	updated, _ = updated.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return updated.(Model)
}

func leaf[T tea.Model](m Model, address string) T {
	return m.boxer.ModelMap[address].(T)
}

func TestHeaderView(t *testing.T) {
	tests := []struct {
		name     string
		header   headerModel
		want     []string
		dontWant []string
	}{
		{
			name:     "idle",
			header:   headerModel{width: 100, apiURL: "http://jukebox.local/graphql"},
			want:     []string{"Nerdy Jukebox", "http://jukebox.local/graphql", "push disconnected"},
			dontWant: []string{"LIVE MODE"},
		},
		{
			name:   "live and connected",
			header: headerModel{width: 100, apiURL: "http://jukebox.local/graphql", live: true, state: monitor.Connected},
			want:   []string{"🔴 LIVE MODE", "push connected"},
		},
		{
			name:     "narrow drops the url",
			header:   headerModel{width: 40, apiURL: "http://a-very-long-host-name.example.com/graphql"},
			dontWant: []string{"example.com"},
		},
		{
			name:   "zero width",
			header: headerModel{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := tt.header.View()
			for _, w := range tt.want {
				if !strings.Contains(view, w) {
					t.Errorf("View() = %q, want %q", view, w)
				}
			}
			for _, w := range tt.dontWant {
				if strings.Contains(view, w) {
					t.Errorf("View() = %q, did not want %q", view, w)
				}
			}
		})
	}
}

func TestSeverityStyle(t *testing.T) {
	if severityStyle(transcript.Error).GetForeground() != errorColor {
		t.Error("errors are not rendered in the error color")
	}
	if severityStyle(transcript.Success).GetForeground() != accentColor {
		t.Error("success lines are not rendered in the accent color")
	}
	if severityStyle(transcript.Plain).GetForeground() == severityStyle(transcript.Info).GetForeground() {
		t.Error("info lines look like plain lines")
	}
}

func TestModel_RunsCommands(t *testing.T) {
	m, _ := newModel(t)
	m = typeLine(t, m, "whoami")

	tm := leaf[transcriptModel](m, transcriptLeaf)
	var texts []string
	for _, l := range tm.lines {
		texts = append(texts, l.Text)
	}
	joined := strings.Join(texts, "\n")
	if !strings.Contains(joined, "$ whoami") || !strings.Contains(joined, "👤 User: anonymous nerd") {
		t.Errorf("transcript leaf = %q", texts)
	}
	if got := leaf[promptModel](m, promptLeaf).textInput.Value(); got != "" {
		t.Errorf("prompt not cleared: %q", got)
	}
	if !strings.Contains(m.View(), "anonymous nerd") {
		t.Error("View() does not show the transcript")
	}
}

func TestModel_LiveModeShowsInHeader(t *testing.T) {
	m, _ := newModel(t)
	m = typeLine(t, m, "live on")
	if !leaf[headerModel](m, headerLeaf).live || !leaf[instructionsModel](m, instructionsLeaf).live {
		t.Error("live mode not reflected in header and help line")
	}
	m = typeLine(t, m, "live off")
	if leaf[headerModel](m, headerLeaf).live {
		t.Error("header still live after live off")
	}
}

func TestModel_HistoryRecall(t *testing.T) {
	m, _ := newModel(t)
	m = typeLine(t, m, "help")
	m = typeLine(t, m, "whoami")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("draft")})
	m = updated.(Model)

	steps := []struct {
		key  tea.KeyType
		want string
	}{
		{tea.KeyUp, "whoami"},
		{tea.KeyUp, "help"},
		{tea.KeyUp, "help"},
		{tea.KeyDown, "whoami"},
		{tea.KeyDown, "draft"},
		{tea.KeyDown, "draft"},
	}
	for i, s := range steps {
		updated, _ := m.Update(tea.KeyMsg{Type: s.key})
		m = updated.(Model)
		if got := leaf[promptModel](m, promptLeaf).textInput.Value(); got != s.want {
			t.Errorf("step %d: prompt = %q, want %q", i, got, s.want)
		}
	}
}

func TestModel_MonitorStateReachesHeader(t *testing.T) {
	m, _ := newModel(t)
	updated, cmd := m.Update(stateMsg(monitor.Connected))
	m = updated.(Model)
	if leaf[headerModel](m, headerLeaf).state != monitor.Connected {
		t.Error("header did not pick up the connected state")
	}
	if cmd == nil {
		t.Error("state listener was not re-armed")
	}
}

func TestModel_Quit(t *testing.T) {
	m, mon := newModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("esc returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("esc did not quit")
	}

	// The header subscription is gone: transitions no longer reach it.
	mon.Opened()
	select {
	case s, ok := <-m.states:
		if ok {
			t.Errorf("received %v after quit", s)
		}
	default:
		t.Error("state channel still open after quit")
	}
}
