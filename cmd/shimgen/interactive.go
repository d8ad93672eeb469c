package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	hostshim "github.com/wippyai/hostshim"
	"github.com/wippyai/hostshim/dispatch"
	"github.com/wippyai/hostshim/guest"
	"github.com/wippyai/hostshim/schema"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

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

const regionSize = 64 * 1024

type interactiveModel struct {
	err      error
	table    *dispatch.Table
	mem      *guest.Region
	funcs    []*schema.Func
	inputs   []textinput.Model
	result   string
	selected int
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel() (*interactiveModel, error) {
	tbl, err := newSampleTable()
	if err != nil {
		return nil, err
	}

	funcs := sampleFuncs()
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].Name < funcs[j].Name })

	return &interactiveModel{
		table: tbl,
		mem:   guest.NewRegion(regionSize),
		funcs: funcs,
		state: stateSelectFunc,
	}, nil
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state != stateInputArgs || msg.String() == "ctrl+c" {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.Params))
	for i, p := range f.Params {
		ti := textinput.New()
		ti.Placeholder = inputHint(p.Shape)
		ti.Prompt = p.Name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

// inputHint tells the user what to type for one parameter.
func inputHint(s *schema.Shape) string {
	switch s.Kind {
	case schema.KindString:
		return "text"
	case schema.KindArray:
		return "bytes, e.g. 1,2,3"
	case schema.KindPointer, schema.KindConstPointer:
		return "offset (blank to allocate)"
	case schema.KindF32, schema.KindF64:
		return s.String()
	default:
		return s.String()
	}
}

func (m *interactiveModel) callFunction() tea.Msg {
	f := m.funcs[m.selected]

	values := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		values[i] = input.Value()
	}

	st := newStager(m.mem)
	words, err := st.stage(f, values)
	if err != nil {
		return callResultMsg{err: err}
	}
	outs := st.outs

	ret, ok, trap := m.table.Invoke(f.Name, m.mem, words...)
	if trap != nil {
		return callResultMsg{err: trap}
	}

	var b strings.Builder
	if ok {
		fmt.Fprintf(&b, "%s = %d", f.Results[0].Name, uint64(ret))
	} else {
		b.WriteString("ok")
	}
	for i, r := range f.Extras() {
		v, err := guest.NewPtr(m.mem, r.Shape, outs[i]).Read()
		if err != nil {
			return callResultMsg{err: err}
		}
		fmt.Fprintf(&b, "  %s = %v", r.Name, v)
	}
	return callResultMsg{result: b.String()}
}

// stager places string, array, and output values into the scratch region
// and produces the flat argument words in declaration order.
type stager struct {
	mem  *guest.Region
	next uint32
	outs []uint32
}

func newStager(mem *guest.Region) *stager {
	// The low region stays free for caller-chosen offsets.
	return &stager{mem: mem, next: regionSize / 2}
}

func (st *stager) alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	off := (st.next + align - 1) &^ (align - 1)
	if uint64(off)+uint64(size) > regionSize {
		return 0, fmt.Errorf("scratch region exhausted")
	}
	st.next = off + size
	return off, nil
}

func (st *stager) stage(f *schema.Func, values []string) ([]hostshim.Raw, error) {
	var words []hostshim.Raw
	for i, p := range f.Params {
		w, err := st.stageParam(p.Shape, values[i])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
		words = append(words, w...)
	}
	for _, r := range f.Extras() {
		size, align := r.Shape.Layout()
		off, err := st.alloc(size, align)
		if err != nil {
			return nil, err
		}
		st.outs = append(st.outs, off)
		words = append(words, hostshim.Raw(off))
	}
	return words, nil
}

func (st *stager) stageParam(s *schema.Shape, value string) ([]hostshim.Raw, error) {
	switch s.Kind {
	case schema.KindString:
		off, err := st.alloc(uint32(len(value)), 1)
		if err != nil {
			return nil, err
		}
		if err := st.mem.Write(off, []byte(value)); err != nil {
			return nil, err
		}
		return []hostshim.Raw{hostshim.Raw(off), hostshim.Raw(len(value))}, nil

	case schema.KindArray:
		data, err := parseBytes(value)
		if err != nil {
			return nil, err
		}
		size, align := s.Elem.Layout()
		off, err := st.alloc(size*uint32(len(data)), align)
		if err != nil {
			return nil, err
		}
		if err := st.mem.Write(off, data); err != nil {
			return nil, err
		}
		return []hostshim.Raw{hostshim.Raw(off), hostshim.Raw(len(data))}, nil

	case schema.KindPointer, schema.KindConstPointer:
		if value == "" {
			size, align := s.Elem.Layout()
			off, err := st.alloc(size, align)
			if err != nil {
				return nil, err
			}
			return []hostshim.Raw{hostshim.Raw(off)}, nil
		}
		off, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return nil, err
		}
		return []hostshim.Raw{hostshim.Raw(off)}, nil

	case schema.KindS8, schema.KindS16, schema.KindS32, schema.KindS64:
		v, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return nil, err
		}
		return []hostshim.Raw{hostshim.RawI64(v)}, nil

	case schema.KindF32:
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return nil, err
		}
		return []hostshim.Raw{hostshim.RawF32(float32(v))}, nil

	case schema.KindF64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, err
		}
		return []hostshim.Raw{hostshim.RawF64(v)}, nil

	case schema.KindInt:
		v, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return nil, err
		}
		return []hostshim.Raw{hostshim.RawI64(v)}, nil

	default:
		v, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return nil, err
		}
		return []hostshim.Raw{hostshim.Raw(v)}, nil
	}
}

// parseBytes reads a comma-separated byte list like "1,2,255".
func parseBytes(value string) ([]byte, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	data := make([]byte, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 0, 8)
		if err != nil {
			return nil, err
		}
		data[i] = byte(v)
	}
	return data, nil
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Shim Explorer"))
	b.WriteString(" kvstore\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.funcs {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + m.formatFunc(f)))
			} else {
				b.WriteString(cursor + m.formatFunc(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		fmt.Fprintf(&b, "Calling %s\n\n", funcStyle.Render(f.Name))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(f.Params[i].Shape.String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		fmt.Fprintf(&b, "Result of %s:\n\n", funcStyle.Render(f.Name))
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

func (m *interactiveModel) formatFunc(f *schema.Func) string {
	return funcStyle.Render(f.Name) + typeStyle.Render(strings.TrimPrefix(f.Signature(), f.Name))
}

func runInteractive() error {
	model, err := newInteractiveModel()
	if err != nil {
		return err
	}
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
