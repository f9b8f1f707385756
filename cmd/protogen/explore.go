package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/maruel/subcommands"
	"golang.org/x/term"

	"github.com/wippyai/protogen"
	"github.com/wippyai/protogen/errors"
)

var cmdExplore = &subcommands.Command{
	UsageLine: "explore [flags] <source>",
	ShortDesc: "browses the channels and messages of a protocol",
	LongDesc: `Opens an interactive browser over the compiled protocol when stdout is a
terminal: filter messages, inspect their fields and size formulas, and
decode hex input with a message's plan. Otherwise prints the size report.`,
	CommandRun: func() subcommands.CommandRun {
		c := &exploreRun{}
		c.Init()
		c.Flags.IntVar(&c.minor, "minor", 0, "minor protocol version used to decode input")
		return c
	},
}

type exploreRun struct {
	commonFlags
	minor int
}

func (c *exploreRun) Parse(args []string) error {
	if err := c.commonFlags.Parse(); err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.InvalidInput(errors.PhaseConfig, "expected exactly one protocol file")
	}
	return nil
}

func (c *exploreRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if err := c.Parse(args); err != nil {
		return report(a, err)
	}
	defer c.close()
	res, err := c.compile(args[0])
	if err != nil {
		return report(a, err)
	}
	msgs, err := catalogue(res)
	if err != nil {
		return report(a, err)
	}
	if !isTerminal(a.GetOut()) {
		writeReport(a.GetOut(), res, msgs)
		return 0
	}
	p := tea.NewProgram(newExploreModel(args[0], res, msgs, c.minor), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return report(a, err)
	}
	return 0
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelect modelState = iota
	stateFilter
	stateDetail
	stateDecode
	stateResult
)

type exploreModel struct {
	err      error
	res      *protogen.Result
	filename string
	result   string
	msgs     []messageInfo
	visible  []int
	filter   textinput.Model
	input    textinput.Model
	minor    int
	selected int
	state    modelState
}

func newExploreModel(filename string, res *protogen.Result, msgs []messageInfo, minor int) *exploreModel {
	filter := textinput.New()
	filter.Prompt = "/"
	filter.Placeholder = "message or channel name"
	filter.Width = 40

	input := textinput.New()
	input.Prompt = "hex: "
	input.Placeholder = "01 00 ff ff"
	input.Width = 60

	m := &exploreModel{
		res:      res,
		filename: filename,
		msgs:     msgs,
		filter:   filter,
		input:    input,
		minor:    minor,
		state:    stateSelect,
	}
	m.applyFilter()
	return m
}

func (m *exploreModel) Init() tea.Cmd { return nil }

// applyFilter keeps the messages whose name or channel contains the filter
// text.
func (m *exploreModel) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = m.visible[:0]
	for i, msg := range m.msgs {
		if q == "" || strings.Contains(strings.ToLower(msg.Name), q) || strings.Contains(strings.ToLower(msg.Channel), q) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(0, len(m.visible)-1)
	}
}

func (m *exploreModel) current() (messageInfo, bool) {
	if len(m.visible) == 0 {
		return messageInfo{}, false
	}
	return m.msgs[m.visible[m.selected]], true
}

func (m *exploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch m.state {
	case stateFilter:
		switch key.String() {
		case "enter", "esc":
			m.filter.Blur()
			m.state = stateSelect
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, cmd

	case stateDecode:
		switch key.String() {
		case "enter":
			m.decode()
			m.input.Blur()
			m.state = stateResult
			return m, nil
		case "esc":
			m.input.Blur()
			m.state = stateDetail
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.state == stateSelect && m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.state == stateSelect && m.selected < len(m.visible)-1 {
			m.selected++
		}

	case "/":
		if m.state == stateSelect {
			m.state = stateFilter
			return m, m.filter.Focus()
		}

	case "enter":
		switch m.state {
		case stateSelect:
			if _, ok := m.current(); ok {
				m.state = stateDetail
			}
		case stateDetail:
			m.input.SetValue("")
			m.state = stateDecode
			return m, m.input.Focus()
		case stateResult:
			m.state = stateDetail
			m.result = ""
			m.err = nil
		}

	case "esc":
		switch m.state {
		case stateDetail:
			m.state = stateSelect
		case stateResult:
			m.state = stateDetail
			m.result = ""
			m.err = nil
		}
	}
	return m, nil
}

// decode parses the hex input with the selected message's plan.
func (m *exploreModel) decode() {
	m.result, m.err = "", nil
	info, ok := m.current()
	if !ok {
		return
	}
	data, err := hex.DecodeString(strings.Join(strings.Fields(m.input.Value()), ""))
	if err != nil {
		m.err = fmt.Errorf("hex input: %w", err)
		return
	}
	dm, err := info.plan.Decode(data, m.minor)
	if err != nil {
		m.err = err
		return
	}
	m.result = fmt.Sprintf("%v", dm.Value())
}

func (m *exploreModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("protogen " + m.res.Protocol.Name))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelect, stateFilter:
		if m.state == stateFilter || m.filter.Value() != "" {
			b.WriteString(m.filter.View())
			b.WriteString("\n\n")
		}
		for i, idx := range m.visible {
			line := m.formatMessage(m.msgs[idx])
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		if len(m.visible) == 0 {
			b.WriteString("no matching messages\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • / filter • enter inspect • q quit"))

	case stateDetail, stateDecode:
		info, _ := m.current()
		m.writeDetail(&b, info)
		if m.state == stateDecode {
			b.WriteString("\n")
			b.WriteString(m.input.View())
			b.WriteString("\n\n")
			b.WriteString(helpStyle.Render("enter decode • esc back"))
		} else {
			b.WriteString("\n")
			b.WriteString(helpStyle.Render("enter decode input • esc back • q quit"))
		}

	case stateResult:
		info, _ := m.current()
		b.WriteString(fmt.Sprintf("Decoded %s:\n\n", nameStyle.Render(info.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *exploreModel) formatMessage(info messageInfo) string {
	return fmt.Sprintf("%-8s %s %5d  %s  %s",
		info.Channel, info.Side, info.ID, nameStyle.Render(info.Name), typeStyle.Render(info.Fixed))
}

func (m *exploreModel) writeDetail(b *strings.Builder, info messageInfo) {
	fmt.Fprintf(b, "%s, %s message %d of channel %s = %d\n\n",
		nameStyle.Render(info.Name), info.Side, info.ID, info.Channel, info.ChannelID)
	for _, f := range info.Fields {
		fmt.Fprintf(b, "  %-20s %s", f.Name, typeStyle.Render(f.Type))
		if f.Note != "" {
			b.WriteString("  " + helpStyle.Render(f.Note))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "\n  wire:   %s\n  memory: %s\n  extra:  %s\n", info.Wire, info.Mem, info.Extra)
}
