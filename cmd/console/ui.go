package main

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/stealth-engine/pkg/dialogue"
	"github.com/jwebster45206/stealth-engine/pkg/encounter"
	"github.com/jwebster45206/stealth-engine/pkg/geom"
	"github.com/jwebster45206/stealth-engine/pkg/guard"
	"github.com/jwebster45206/stealth-engine/pkg/trust"
	"github.com/jwebster45206/stealth-engine/pkg/vision"
	"github.com/jwebster45206/stealth-engine/pkg/world"
	"github.com/muesli/reflow/wordwrap"
)

const (
	mapRows = 14
	// holdTicks is how long one arrow press keeps the player moving.
	holdTicks = 6
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config *ConsoleConfig
	log    *slog.Logger

	enc        *encounter.Encounter
	transcript *transcript
	bounds     [2]geom.Vec2

	chatViewport viewport.Model
	metaViewport viewport.Model
	ready        bool
	width        int
	height       int
	err          error
	status       string

	moveTicks int

	// Scenario selection state
	showScenarioModal bool
	scenarios         []string
	selectedScenario  int

	// Quit confirmation state
	showQuitModal bool
}

type tickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingLeft(2)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	cueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")). // green
			Italic(true)

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	playerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")). // teal
			Bold(true)

	npcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212"))

	wallStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

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

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func guardStyle(state string) lipgloss.Style {
	switch state {
	case guard.StateChase.String(), guard.StateCaught.String():
		return errorStyle.Bold(true)
	case guard.StateFollow.String(), guard.StateDialogue.String():
		return alertStyle.Bold(true)
	default:
		return lipgloss.NewStyle().Bold(true)
	}
}

func NewConsoleUI(cfg *ConsoleConfig, scenarios []string, log *slog.Logger) ConsoleUI {
	chatVp := viewport.New(50, 10)
	chatVp.MouseWheelEnabled = true

	return ConsoleUI{
		config:            cfg,
		log:               log,
		chatViewport:      chatVp,
		metaViewport:      viewport.New(30, 20),
		scenarios:         scenarios,
		showScenarioModal: len(scenarios) > 1,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	if !m.showScenarioModal {
		return m.startEncounter(m.scenarios[0])
	}
	return nil
}

type encounterStartedMsg struct {
	enc        *encounter.Encounter
	transcript *transcript
	err        error
}

func (m ConsoleUI) startEncounter(path string) tea.Cmd {
	return func() tea.Msg {
		tr := &transcript{}
		enc, err := encounter.Load(path, tr, transcriptHooks(tr), world.WithLogger(m.log))
		if err != nil {
			return encounterStartedMsg{err: err}
		}
		for id, errs := range enc.World.Disabled() {
			for _, e := range errs {
				tr.note(fmt.Sprintf("%s disabled: %v", id, e))
			}
		}
		return encounterStartedMsg{enc: enc, transcript: tr}
	}
}

// transcriptHooks narrate encounter outcomes into the transcript.
func transcriptHooks(tr *transcript) world.Hooks {
	return world.Hooks{
		EndingSelected: func(npcID string, tier trust.Tier) {
			tr.note(fmt.Sprintf("%s ending: %s", npcID, titleCaser.String(tier.String())))
		},
		SessionEnded: func(npcID string, reason dialogue.EndReason) {
			tr.note(fmt.Sprintf("conversation with %s ended (%s)", npcID, reason))
		},
		GuardStateChanged: func(guardID string, state guard.State) {
			tr.note(fmt.Sprintf("%s is now %s", guardID, state))
		},
		PlayerDetected: func(guardID string) {
			tr.note(guardID + " spotted you")
		},
		PlayerCaught: func(guardID string) {
			tr.note(guardID + " caught you")
		},
		Escalated: func(npcID, guardID string) {
			tr.note(fmt.Sprintf("%s called %s over", npcID, guardID))
		},
		AlarmChanged: func(alarmed bool) {
			if alarmed {
				tr.note("the alarm is raised")
			} else {
				tr.note("things have calmed down")
			}
		},
	}
}

func (m ConsoleUI) tick() tea.Cmd {
	return tea.Tick(m.config.TickInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = size.Width
		m.height = size.Height
		m.layout()
		m.refresh()
		return m, nil
	}

	if m.showQuitModal {
		switch msg.(type) {
		case tea.KeyMsg:
			return m.updateQuitModal(msg)
		case tickMsg:
			// Paused while the modal is open; keep the tick loop alive.
			return m, m.tick()
		}
	}
	if m.showScenarioModal {
		return m.updateScenarioModal(msg)
	}

	switch msg := msg.(type) {
	case encounterStartedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.enc = msg.enc
		m.transcript = msg.transcript
		m.bounds = mapBounds(m.enc)
		m.ready = true
		m.refresh()
		return m, m.tick()

	case tickMsg:
		if m.enc == nil {
			return m, nil
		}
		if m.moveTicks > 0 {
			m.moveTicks--
			if m.moveTicks == 0 {
				m.enc.Player.SetInput(geom.Vec2{})
			}
		}
		m.enc.World.Tick(m.config.TickInterval)
		m.refresh()
		return m, m.tick()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.chatViewport, cmd = m.chatViewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m ConsoleUI) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc || msg.String() == "q" {
		m.showQuitModal = true
		return m, nil
	}
	if m.enc == nil {
		return m, nil
	}

	m.status = ""
	switch msg.Type {
	case tea.KeyUp:
		m.move(geom.Vec2{Y: 1})
	case tea.KeyDown:
		m.move(geom.Vec2{Y: -1})
	case tea.KeyLeft:
		m.move(geom.Vec2{X: -1})
	case tea.KeyRight:
		m.move(geom.Vec2{X: 1})
	case tea.KeySpace:
		m.moveTicks = 0
		m.enc.Player.SetInput(geom.Vec2{})
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.chatViewport, cmd = m.chatViewport.Update(msg)
		return m, cmd
	case tea.KeyRunes:
		m.handleRune(msg.String())
	}
	m.refresh()
	return m, nil
}

func (m *ConsoleUI) move(dir geom.Vec2) {
	m.moveTicks = holdTicks
	m.enc.Player.SetInput(dir)
}

func (m *ConsoleUI) handleRune(key string) {
	switch key {
	case "e":
		if _, err := m.enc.World.Interact(); err != nil {
			m.status = err.Error()
		}
	case "x":
		s, ok := m.enc.World.ActiveSession()
		if !ok {
			m.status = "not in a conversation"
			return
		}
		m.enc.World.EndSession(s.NPCID)
	case "c":
		if err := clipboard.WriteAll(m.transcript.plain()); err != nil {
			m.status = "copy failed: " + err.Error()
			return
		}
		m.status = "transcript copied"
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		s, ok := m.enc.World.ActiveSession()
		if !ok {
			m.status = "not in a conversation"
			return
		}
		if err := m.enc.World.Choose(s.NPCID, int(key[0]-'1')); err != nil {
			m.status = err.Error()
		}
	}
}

func (m ConsoleUI) updateScenarioModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.showQuitModal = true
	case tea.KeyUp:
		if m.selectedScenario > 0 {
			m.selectedScenario--
		}
	case tea.KeyDown:
		if m.selectedScenario < len(m.scenarios)-1 {
			m.selectedScenario++
		}
	case tea.KeyEnter:
		m.showScenarioModal = false
		return m, m.startEncounter(m.scenarios[m.selectedScenario])
	}
	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEnter:
		return m, tea.Quit
	}
	switch key.String() {
	case "y", "Y":
		return m, tea.Quit
	case "n", "N", "esc":
		m.showQuitModal = false
	}
	return m, nil
}

func (m *ConsoleUI) layout() {
	chatWidth := int(float64(m.width)*0.68) - 2
	metaWidth := m.width - chatWidth - 4
	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = max(m.height-mapRows-5, 3)
	m.metaViewport.Width = metaWidth
	m.metaViewport.Height = max(m.height-2, 3)
}

func (m *ConsoleUI) refresh() {
	if m.enc == nil {
		return
	}
	m.chatViewport.SetContent(m.renderTranscript(m.chatViewport.Width))
	m.chatViewport.GotoBottom()
	m.metaViewport.SetContent(m.renderMeta())
}

func (m ConsoleUI) renderTranscript(width int) string {
	if width < 10 {
		width = 10
	}
	var b strings.Builder
	for _, e := range m.transcript.entries {
		switch e.kind {
		case entryLine:
			b.WriteString(speakerStyle.Render(e.speaker+":") + " " + wordwrap.String(e.text, width-len(e.speaker)-2) + "\n")
		case entryCue:
			b.WriteString(cueStyle.Render("("+e.text+")") + "\n")
		case entryNote:
			b.WriteString(noteStyle.Render(wordwrap.String("-- "+e.text, width)) + "\n")
		}
	}
	if len(m.transcript.choices) > 0 {
		b.WriteString("\n")
		for i, c := range m.transcript.choices {
			b.WriteString(fmt.Sprintf("  %s %s\n", titleStyle.Render(fmt.Sprintf("%d.", i+1)), wordwrap.String(c, width-5)))
		}
		if m.transcript.max > 0 {
			b.WriteString(renderTimer(m.transcript.remaining, m.transcript.max, min(width, 40)) + "\n")
		}
	}
	return b.String()
}

func renderTimer(remaining, total time.Duration, width int) string {
	filled := int(math.Round(float64(width) * remaining.Seconds() / total.Seconds()))
	filled = max(0, min(width, filled))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	if remaining < total/4 {
		return errorStyle.Render(bar)
	}
	return separatorStyle.Render(bar)
}

func (m ConsoleUI) renderMeta() string {
	snap := m.enc.World.Snapshot()
	var b strings.Builder
	b.WriteString(titleStyle.Render(strings.ToUpper(snap.Scenario)) + "\n\n")
	b.WriteString(fmt.Sprintf("Tick %d  %.1fs\n", snap.Tick, snap.Now.Seconds()))
	if snap.Alarmed {
		b.WriteString(errorStyle.Render("ALARM") + "\n")
	}
	if snap.GateOpen {
		b.WriteString(cueStyle.Render("Trust gate open") + "\n")
	}
	b.WriteString("\n")

	b.WriteString("NPCs:\n")
	for _, n := range snap.NPCs {
		marker := " "
		if n.InRange {
			marker = "›"
		}
		b.WriteString(fmt.Sprintf("%s %s %d/%d %s\n", marker, n.Name, n.Trust.Current, n.Trust.Max, titleCaser.String(n.Tier)))
	}
	b.WriteString("\nGuards:\n")
	for _, g := range snap.Guards {
		b.WriteString(fmt.Sprintf("  %s %s\n", g.Name, guardStyle(g.State).Render(g.State)))
	}
	if len(snap.Disabled) > 0 {
		b.WriteString("\nDisabled: " + strings.Join(snap.Disabled, ", ") + "\n")
	}

	b.WriteString("\n")
	b.WriteString(promptStyle.Render("arrows move  space stop\ne talk  1-9 choose  x leave\nc copy  q quit"))
	return b.String()
}

// mapBounds is the scenario's extent padded by one unit.
func mapBounds(enc *encounter.Encounter) [2]geom.Vec2 {
	scn := enc.World.Scenario()
	lo := scn.Player.Start
	hi := scn.Player.Start
	grow := func(p geom.Vec2) {
		lo = geom.Vec2{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y)}
		hi = geom.Vec2{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y)}
	}
	for _, o := range scn.Obstacles {
		grow(o.Min)
		grow(o.Max)
	}
	for _, n := range scn.NPCs {
		grow(n.Position)
	}
	for _, g := range scn.Guards {
		for _, wp := range g.Route {
			grow(wp.Pos)
		}
	}
	return [2]geom.Vec2{{X: lo.X - 1, Y: lo.Y - 1}, {X: hi.X + 1, Y: hi.Y + 1}}
}

func (m ConsoleUI) renderMap(cols int) string {
	if cols < 10 {
		cols = 10
	}
	lo, hi := m.bounds[0], m.bounds[1]
	cellW := (hi.X - lo.X) / float64(cols)
	cellH := (hi.Y - lo.Y) / float64(mapRows)
	cell := func(p geom.Vec2) (int, int, bool) {
		c := int((p.X - lo.X) / cellW)
		r := mapRows - 1 - int((p.Y-lo.Y)/cellH)
		return r, c, r >= 0 && r < mapRows && c >= 0 && c < cols
	}

	grid := make([][]string, mapRows)
	for r := range grid {
		grid[r] = make([]string, cols)
		for c := range grid[r] {
			grid[r][c] = " "
		}
	}
	for _, o := range m.enc.World.Scenario().Obstacles {
		glyph := wallStyle.Render("#")
		if slices.Contains(o.Tags, vision.TagTransparent) {
			glyph = wallStyle.Render(":")
		}
		for r := range grid {
			for c := range grid[r] {
				p := geom.Vec2{X: lo.X + (float64(c)+0.5)*cellW, Y: lo.Y + (float64(mapRows-1-r)+0.5)*cellH}
				if p.X >= o.Min.X && p.X <= o.Max.X && p.Y >= o.Min.Y && p.Y <= o.Max.Y {
					grid[r][c] = glyph
				}
			}
		}
	}

	snap := m.enc.World.Snapshot()
	for _, n := range snap.NPCs {
		if r, c, ok := cell(n.Position); ok {
			grid[r][c] = npcStyle.Render(initial(n.Name, n.ID))
		}
	}
	for _, g := range snap.Guards {
		if r, c, ok := cell(g.Position); ok {
			grid[r][c] = guardStyle(g.State).Render("G")
		}
	}
	if r, c, ok := cell(snap.Player.Position); ok {
		grid[r][c] = playerStyle.Render("@")
	}

	var b strings.Builder
	for _, row := range grid {
		b.WriteString(strings.Join(row, "") + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func initial(name, id string) string {
	if name == "" {
		name = id
	}
	if name == "" {
		return "?"
	}
	return strings.ToUpper(name[:1])
}

func (m ConsoleUI) renderQuitModal() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Leave the encounter?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue"))

	modal := modalStyle.Width(40).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderScenarioModal() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Select a Scenario"))
	content.WriteString("\n\n")
	for i, s := range m.scenarios {
		name := filepath.Base(s)
		if i == m.selectedScenario {
			content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", name)))
		} else {
			content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", name)))
		}
		content.WriteString("\n")
	}
	content.WriteString("\n")
	content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Esc to exit"))

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderCaught(by string) string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("CAUGHT"))
	content.WriteString("\n\n")
	content.WriteString(fmt.Sprintf("%s has you. The encounter is over.", by))
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("c to copy the transcript, q to quit"))
	return modalStyle.Width(44).Render(content.String())
}

func (m ConsoleUI) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showScenarioModal {
		return m.renderScenarioModal()
	}
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("\n  Failed to start encounter: %v\n\n  Press q to exit.", m.err))
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := m.chatViewport.Width + 2
	status := m.status
	if status != "" {
		status = alertStyle.Render(status)
	}

	left := chatPanelStyle.Width(chatWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.renderMap(chatWidth-2),
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-2, 1))),
			m.chatViewport.View(),
			status,
		),
	)
	right := metaPanelStyle.Width(m.metaViewport.Width).Render(m.metaViewport.View())
	screen := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	if caught, by := m.enc.World.Caught(); caught && m.transcript.caught {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.renderCaught(by), lipgloss.WithWhitespaceChars(" "))
	}
	return screen
}
