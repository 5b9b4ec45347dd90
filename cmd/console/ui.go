package main

import (
	"cmp"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/quest-engine/internal/handlers"
	"github.com/jwebster45206/quest-engine/pkg/quest"
)

const PlaceHolderText = "Type a number, an action id, or start <quest>..."

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config          *ConsoleConfig
	client          *http.Client
	sessionID       uuid.UUID
	current         *TurnView
	history         []entry
	historyViewport viewport.Model
	metaViewport    viewport.Model
	textarea        textarea.Model
	ready           bool
	width           int
	height          int
	loading         bool

	showQuitModal bool

	progressTick int
}

type entryKind int

const (
	entryNarrative entryKind = iota
	entryPlayer
	entryRejection
	entryError
	entryInfo
)

type entry struct {
	kind entryKind
	text string
}

type turnResultMsg struct {
	result *TurnView
	err    error
}

type logMsg struct {
	events []quest.GameEvent
	err    error
}

type progressTickMsg struct{}

var (
	historyPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	rejectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client, session *sessionView) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 200
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	historyVp := viewport.New(50, 20)
	historyVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	ui := ConsoleUI{
		config:          cfg,
		client:          client,
		sessionID:       session.ID,
		current:         session.Result,
		textarea:        ta,
		historyViewport: historyVp,
		metaViewport:    metaVp,
	}
	if session.Result != nil {
		ui.history = append(ui.history, entry{entryNarrative, session.Result.Narrative})
	}
	return ui
}

// parseCommand turns player input into a turn request. A number picks from the
// offers first and then the choices, as the side panel lists them.
func parseCommand(input string, res *TurnView) (handlers.TurnRequest, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return handlers.TurnRequest{}, fmt.Errorf("nothing to do")
	}

	if n, err := strconv.Atoi(input); err == nil {
		if res == nil {
			return handlers.TurnRequest{}, fmt.Errorf("no choices yet")
		}
		switch {
		case n >= 1 && n <= len(res.Offers):
			return handlers.TurnRequest{QuestID: res.Offers[n-1].ID}, nil
		case n > len(res.Offers) && n <= len(res.Offers)+len(res.Choices):
			return handlers.TurnRequest{ActionID: res.Choices[n-1-len(res.Offers)].ID}, nil
		default:
			return handlers.TurnRequest{}, fmt.Errorf("no choice numbered %d", n)
		}
	}

	fields := strings.Fields(input)
	if strings.EqualFold(fields[0], "start") {
		if len(fields) != 2 {
			return handlers.TurnRequest{}, fmt.Errorf("usage: start <quest_id>")
		}
		return handlers.TurnRequest{QuestID: fields[1]}, nil
	}
	if len(fields) != 1 {
		return handlers.TurnRequest{}, fmt.Errorf("unknown command %q", input)
	}
	return handlers.TurnRequest{ActionID: fields[0]}, nil
}

func writeMetadata(sessionID uuid.UUID, res *TurnView) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("CHARACTER") + "\n\n")

	content.WriteString("Session:\n")
	content.WriteString(sessionID.String()[:8] + "...\n\n")

	if res == nil || res.Sheet == nil {
		content.WriteString("No sheet yet\n")
		return content.String()
	}
	s := res.Sheet

	fmt.Fprintf(&content, "%s\n", cmp.Or(s.Name, s.ID))
	fmt.Fprintf(&content, "Level %d (%s)\n", s.Level, s.Tier)
	fmt.Fprintf(&content, "XP %d\n", s.Experience)
	fmt.Fprintf(&content, "Turn %d\n\n", res.Turn)

	fmt.Fprintf(&content, "HP %d/%d  AC %d\n", s.HP, s.MaxHP, s.AC)
	fmt.Fprintf(&content, "Mana %d/%d\n", s.Vitals.Mana.Current, s.Vitals.Mana.Max)
	fmt.Fprintf(&content, "Stamina %d/%d\n", s.Vitals.Stamina.Current, s.Vitals.Stamina.Max)
	fmt.Fprintf(&content, "Sanity %d/%d\n", s.Vitals.Sanity.Current, s.Vitals.Sanity.Max)
	fmt.Fprintf(&content, "Karma %d\n\n", s.Karma)

	if len(s.Reputation) > 0 {
		content.WriteString("Reputation:\n")
		for _, faction := range slices.Sorted(maps.Keys(s.Reputation)) {
			fmt.Fprintf(&content, "• %s: %d\n", faction, s.Reputation[faction])
		}
		content.WriteString("\n")
	}
	if len(s.Conditions) > 0 {
		content.WriteString("Conditions:\n")
		for _, name := range slices.Sorted(maps.Keys(s.Conditions)) {
			fmt.Fprintf(&content, "• %s (%d)\n", name, s.Conditions[name])
		}
		content.WriteString("\n")
	}

	content.WriteString("Active quest:\n")
	content.WriteString(cmp.Or(s.ActiveQuest, "none") + "\n")
	fmt.Fprintf(&content, "Completed: %d  Pending: %d\n\n", len(s.Completed), s.Pending)

	n := 1
	if len(res.Offers) > 0 {
		content.WriteString(titleStyle.Render("QUESTS") + "\n")
		for _, o := range res.Offers {
			fmt.Fprintf(&content, "%d. %s [%s, %s]\n", n, o.Name, o.Tier, o.Risk)
			n++
		}
		content.WriteString("\n")
	}
	content.WriteString(titleStyle.Render("ACTIONS") + "\n")
	for _, c := range res.Choices {
		fmt.Fprintf(&content, "%d. %s\n", n, c.Description)
		n++
	}

	content.WriteString("\nCommands:\n")
	content.WriteString("• Enter: Play\n")
	content.WriteString("• /log: Audit log\n")
	content.WriteString("• /help: Help\n")
	content.WriteString("• Ctrl+C: Quit\n")

	return content.String()
}

// writeHistory rebuilds the history for the current viewport width
func (m *ConsoleUI) writeHistory() {
	historyWidth := max(m.historyViewport.Width-6, 20) // left(3) + right(3) padding

	var content strings.Builder
	content.WriteString(titleStyle.Render("QUEST ENGINE") + "\n\n")
	content.WriteString("Pick a quest or an action from the panel on the right.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(historyWidth-6, 1))) + "\n\n")

	for _, e := range m.history {
		text := wordwrap.String(e.text, historyWidth)
		switch e.kind {
		case entryNarrative:
			content.WriteString(narratorStyle.Render(text))
		case entryPlayer:
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(e.text, historyWidth-5))
		case entryRejection:
			content.WriteString(rejectionStyle.Render(text))
		case entryError:
			content.WriteString(errorStyle.Render("Error: " + text))
		default:
			content.WriteString(text)
		}
		content.WriteString("\n\n")
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.historyViewport.SetContent(content.String())
	m.historyViewport.GotoBottom()
}

func (m ConsoleUI) Init() tea.Cmd {
	return textarea.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.historyViewport, vpCmd = m.historyViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		historyWidth := int(float64(m.width)*0.7) - 4
		metaWidth := m.width - historyWidth - 6

		m.historyViewport.Width = historyWidth - 2
		m.historyViewport.Height = m.height - 6
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(historyWidth - 4)

		m.ready = true
		m.writeHistory()
		m.metaViewport.SetContent(writeMetadata(m.sessionID, m.current))

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}

			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			req, err := parseCommand(input, m.current)
			if err != nil {
				m.history = append(m.history, entry{entryError, err.Error()})
				m.writeHistory()
				return m, nil
			}

			m.history = append(m.history, entry{entryPlayer, input})
			m.loading = true
			m.progressTick = 0
			m.writeHistory()
			return m, tea.Batch(m.sendTurn(req), progressTick())
		}

	case turnResultMsg:
		m.loading = false
		switch {
		case msg.err != nil:
			m.history = append(m.history, entry{entryError, msg.err.Error()})
		case msg.result.Rejection != nil:
			m.history = append(m.history, entry{entryRejection, cmp.Or(msg.result.Narrative, msg.result.Rejection.Message)})
		default:
			m.current = msg.result
			m.history = append(m.history, entry{entryNarrative, msg.result.Narrative})
			m.metaViewport.SetContent(writeMetadata(m.sessionID, m.current))
		}
		m.writeHistory()

	case logMsg:
		if msg.err != nil {
			m.history = append(m.history, entry{entryError, msg.err.Error()})
		} else {
			m.history = append(m.history, entry{entryInfo, formatLog(msg.events)})
		}
		m.writeHistory()

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeHistory()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.historyViewport, vpCmd = m.historyViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func formatLog(events []quest.GameEvent) string {
	if len(events) == 0 {
		return "The log is empty."
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Log:") + "\n")
	for _, ev := range events {
		subject := cmp.Or(ev.QuestID, cmp.Or(ev.Action, ev.EventID))
		if ev.Kind == quest.EventLevelUp {
			subject = fmt.Sprintf("level %d", ev.Level)
		}
		fmt.Fprintf(&b, "• turn %d: %s %s\n", ev.Turn, ev.Kind, subject)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	switch strings.ToLower(input) {
	case "/help":
		helpText := `Commands:
• /help - Show this help
• /log - Show the session's audit log
• Ctrl+C - Quit

How to play:
• Type the number of a quest or action from the side panel
• Or type an action id, or start <quest_id>`
		m.history = append(m.history, entry{entryInfo, helpText})
		m.writeHistory()
		return m, nil

	case "/log":
		return m, m.fetchLog()
	}

	m.history = append(m.history, entry{entryError, "unknown command " + input})
	m.writeHistory()
	return m, nil
}

func (m ConsoleUI) sendTurn(req handlers.TurnRequest) tea.Cmd {
	return func() tea.Msg {
		res, err := playTurn(m.client, m.config.APIBaseURL, m.sessionID, req)
		return turnResultMsg{res, err}
	}
}

func (m ConsoleUI) fetchLog() tea.Cmd {
	return func() tea.Msg {
		events, err := getLog(m.client, m.config.APIBaseURL, m.sessionID)
		return logMsg{events, err}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Your session is saved. You can pick it up with SESSION_ID.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	historyWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - historyWidth - 6

	historyPanel := historyPanelStyle.Width(historyWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.historyViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(historyWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, historyPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := min(max(m.historyViewport.Width-6, 10), 80)

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := range usable {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && frame%4 < 2:
			bar.WriteString("▓")
		default:
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
