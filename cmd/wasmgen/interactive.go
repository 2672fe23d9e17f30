package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/tim-harding/wasm-bin/wasm"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	sizeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	offsetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

var sectionNames = map[byte]string{
	wasm.SectionCustom:    "custom",
	wasm.SectionType:      "type",
	wasm.SectionImport:    "import",
	wasm.SectionFunction:  "function",
	wasm.SectionTable:     "table",
	wasm.SectionMemory:    "memory",
	wasm.SectionGlobal:    "global",
	wasm.SectionExport:    "export",
	wasm.SectionStart:     "start",
	wasm.SectionElement:   "element",
	wasm.SectionCode:      "code",
	wasm.SectionData:      "data",
	wasm.SectionDataCount: "data count",
}

type sectionFrame struct {
	name    string
	id      byte
	offset  int
	payload []byte
}

// splitFrames walks the section framing of an encoded module: after the
// 8-byte preamble, each section is an identifier byte, an unsigned LEB128
// payload length, and the payload.
func splitFrames(bin []byte) ([]sectionFrame, error) {
	if len(bin) < 8 {
		return nil, fmt.Errorf("truncated preamble: %d bytes", len(bin))
	}

	var frames []sectionFrame
	pos := 8
	for pos < len(bin) {
		start := pos
		id := bin[pos]
		pos++

		var size uint32
		var shift uint
		for {
			if pos >= len(bin) {
				return nil, fmt.Errorf("truncated section length at offset %d", start)
			}
			b := bin[pos]
			pos++
			size |= uint32(b&0x7F) << shift
			if b&0x80 == 0 {
				break
			}
			shift += 7
		}

		if pos+int(size) > len(bin) {
			return nil, fmt.Errorf("section %d payload overruns module at offset %d", id, start)
		}

		name, ok := sectionNames[id]
		if !ok {
			name = fmt.Sprintf("unknown (%d)", id)
		}
		frames = append(frames, sectionFrame{
			name:    name,
			id:      id,
			offset:  start,
			payload: bin[pos : pos+int(size)],
		})
		pos += int(size)
	}
	return frames, nil
}

type inspectorState int

const (
	stateSelectSection inspectorState = iota
	stateViewHex
)

type inspectorModel struct {
	err      error
	filename string
	frames   []sectionFrame
	total    int
	selected int
	state    inspectorState
	hex      viewport.Model
	ready    bool
}

func newInspectorModel(filename string, bin []byte) *inspectorModel {
	m := &inspectorModel{filename: filename, total: len(bin)}
	m.frames, m.err = splitFrames(bin)
	return m
}

func (m *inspectorModel) Init() tea.Cmd {
	return nil
}

func (m *inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.hex = viewport.New(msg.Width, msg.Height-6)
		m.ready = true
		if m.state == stateViewHex {
			m.hex.SetContent(hexDump(m.frames[m.selected].payload, m.frames[m.selected].offset))
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectSection && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectSection && m.selected < len(m.frames)-1 {
				m.selected++
			}

		case "enter":
			if m.state == stateSelectSection && len(m.frames) > 0 && m.ready {
				m.hex.SetContent(hexDump(m.frames[m.selected].payload, m.frames[m.selected].offset))
				m.hex.GotoTop()
				m.state = stateViewHex
			}

		case "esc":
			if m.state == stateViewHex {
				m.state = stateSelectSection
			}
		}
	}

	if m.state == stateViewHex {
		var cmd tea.Cmd
		m.hex, cmd = m.hex.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *inspectorModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Module Inspector"))
	b.WriteString(fmt.Sprintf(" %s (%d bytes)\n\n", m.filename, m.total))

	switch m.state {
	case stateSelectSection:
		if len(m.frames) == 0 {
			b.WriteString("No sections; module is preamble only.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			return b.String()
		}
		for i, f := range m.frames {
			line := fmt.Sprintf("%s %s at 0x%04X",
				sectionStyle.Render(fmt.Sprintf("%-10s", f.name)),
				sizeStyle.Render(fmt.Sprintf("%5d bytes", len(f.payload))),
				f.offset)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter inspect • q quit"))

	case stateViewHex:
		f := m.frames[m.selected]
		b.WriteString(sectionStyle.Render(f.name))
		b.WriteString(fmt.Sprintf(" section, %d byte payload\n\n", len(f.payload)))
		b.WriteString(m.hex.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • esc back • q quit"))
	}

	return b.String()
}

// hexDump renders bytes in 16-wide rows with module-relative offsets and
// an ASCII gutter.
func hexDump(data []byte, base int) string {
	var b strings.Builder
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		row := data[i:end]

		b.WriteString(offsetStyle.Render(fmt.Sprintf("%08X", base+i)))
		b.WriteString("  ")
		for j := 0; j < 16; j++ {
			if j < len(row) {
				b.WriteString(fmt.Sprintf("%02X ", row[j]))
			} else {
				b.WriteString("   ")
			}
			if j == 7 {
				b.WriteString(" ")
			}
		}
		b.WriteString(" ")
		for _, c := range row {
			if c >= 0x20 && c < 0x7F {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func runInteractive(filename string, bin []byte) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode requires a terminal")
	}
	p := tea.NewProgram(newInspectorModel(filename, bin), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
