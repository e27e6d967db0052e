package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// SnapshotPickerModel - Interactive selection of two snapshots
// =============================================================================

// SnapshotPickerModel is the bubbletea model behind `diff -i`. The user
// marks one snapshot, then a second; the model quits once both are chosen.
type SnapshotPickerModel struct {
	Snapshots []bom.SnapshotSummary
	Cursor    int
	Height    int
	Offset    int
	// Marked is the index of the first chosen snapshot, or -1.
	Marked int
	// Second is the index of the second chosen snapshot, or -1.
	Second int
}

// NewSnapshotPickerModel creates a picker over snapshots listed oldest
// first. The cursor starts on the newest entry.
func NewSnapshotPickerModel(snapshots []bom.SnapshotSummary) SnapshotPickerModel {
	m := SnapshotPickerModel{
		Snapshots: snapshots,
		Height:    15,
		Marked:    -1,
		Second:    -1,
	}
	if n := len(snapshots); n > 0 {
		m.Cursor = n - 1
		m.Offset = max(0, n-m.Height)
	}
	return m
}

// Selection returns the chosen ids, older first. ok is false until two
// distinct snapshots have been chosen.
func (m SnapshotPickerModel) Selection() (a, b string, ok bool) {
	if m.Marked < 0 || m.Second < 0 {
		return "", "", false
	}
	i, j := min(m.Marked, m.Second), max(m.Marked, m.Second)
	return m.Snapshots[i].ID, m.Snapshots[j].ID, true
}

func (m SnapshotPickerModel) Init() tea.Cmd {
	return nil
}

func (m SnapshotPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Second = -1
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Snapshots)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter", " ":
			switch {
			case m.Marked < 0:
				m.Marked = m.Cursor
			case m.Marked == m.Cursor:
				m.Marked = -1
			default:
				m.Second = m.Cursor
				return m, tea.Quit
			}
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m SnapshotPickerModel) View() string {
	var b strings.Builder

	title := "Select first snapshot"
	if m.Marked >= 0 {
		title = "Select snapshot to compare with " + m.Snapshots[m.Marked].ID
	}
	b.WriteString(StyleTitle.Render(title))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ mark  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Snapshots))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		s := m.Snapshots[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		mark := ""
		if i == m.Marked {
			mark = iconSuccess
		}
		label := s.Label
		if label == "" {
			label = "-"
		}
		rows = append(rows, []string{cursor, mark, s.ID, s.RootPartNumber, label, formatRelativeTime(s.CreatedAt), fmt.Sprint(s.PartCount)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "", "Snapshot", "Root", "Label", "Created", "Parts").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			idx := m.Offset + row
			base := lipgloss.NewStyle()
			if col == 5 {
				base = base.Foreground(colorDim)
			}
			switch idx {
			case m.Marked:
				return base.Foreground(colorGreen).Bold(idx == m.Cursor)
			case m.Cursor:
				return base.Foreground(colorCyan).Bold(true)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Snapshots))))

	return b.String()
}
