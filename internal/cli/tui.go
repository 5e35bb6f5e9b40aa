package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/crateindex/pkg/crates"
	cio "github.com/matzehuels/crateindex/pkg/io"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// IndexModel - Interactive index browser
// =============================================================================

// IndexModel is the bubbletea model for paging through a decoded index.
// Records are decoded only when they scroll into view.
type IndexModel struct {
	Index  *cio.Index
	Cursor int
	Offset int
	Height int

	// Detail shows the record under the cursor instead of the list.
	Detail bool

	records *recordCache
}

// recordCache is shared by the model copies bubbletea passes around.
type recordCache struct {
	items map[int]crates.Package
	err   error
}

// NewIndexModel creates a browser over idx.
func NewIndexModel(idx *cio.Index) IndexModel {
	return IndexModel{
		Index:   idx,
		Height:  15,
		records: &recordCache{items: make(map[int]crates.Package)},
	}
}

// Err returns the first decode error seen while rendering.
func (m IndexModel) Err() error {
	return m.records.err
}

func (m IndexModel) Init() tea.Cmd {
	return nil
}

func (m IndexModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	n := m.Index.Packages.Len()
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if !m.Detail {
				return m, tea.Quit
			}
			m.Detail = false
		case "enter":
			if n > 0 {
				m.Detail = !m.Detail
			}
		case "up", "k":
			m.move(-1)
		case "down", "j":
			m.move(1)
		case "pgup":
			m.move(-m.Height)
		case "pgdown", " ":
			m.move(m.Height)
		case "home", "g":
			m.move(-n)
		case "end", "G":
			m.move(n)
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 8
		if m.Height < 5 {
			m.Height = 5
		}
		m.move(0)
	}
	return m, nil
}

// move shifts the cursor by delta and scrolls the window to keep it visible.
func (m *IndexModel) move(delta int) {
	n := m.Index.Packages.Len()
	m.Cursor = max(0, min(m.Cursor+delta, n-1))
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
}

func (m IndexModel) record(i int) (crates.Package, bool) {
	if p, ok := m.records.items[i]; ok {
		return p, true
	}
	p, err := m.Index.Packages.Package(i)
	if err != nil {
		if m.records.err == nil {
			m.records.err = err
		}
		return crates.Package{}, false
	}
	m.records.items[i] = p
	return p, true
}

func (m IndexModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("crates.io libraries by dependents"))
	b.WriteString("\n")
	if m.Detail {
		b.WriteString(listDimStyle.Render("⏎/esc back  q quit"))
	} else {
		b.WriteString(listDimStyle.Render("↑/↓ navigate  pgup/pgdn page  ⏎ details  q quit"))
	}
	b.WriteString("\n\n")

	n := m.Index.Packages.Len()
	if n == 0 {
		b.WriteString(listDimStyle.Render("  index is empty"))
		return b.String()
	}

	if m.Detail {
		p, ok := m.record(m.Cursor)
		if !ok {
			b.WriteString(StyleWarning.Render(fmt.Sprintf("  cannot decode record %d: %v", m.Cursor, m.Err())))
			return b.String()
		}
		b.WriteString(m.detail(m.Cursor+1, p))
		return b.String()
	}

	end := min(m.Offset+m.Height, n)
	rows := make([]rankedPackage, 0, end-m.Offset)
	for i := m.Offset; i < end; i++ {
		p, ok := m.record(i)
		if !ok {
			p = crates.Package{Name: "<corrupt record>"}
		}
		rows = append(rows, rankedPackage{Rank: i + 1, Package: p})
	}

	b.WriteString(packageTable(m.Index, rows, m.Cursor-m.Offset).Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, n)))
	return b.String()
}

func (m IndexModel) detail(rank int, p crates.Package) string {
	key := lipgloss.NewStyle().Foreground(colorGray).Width(14)
	line := func(k, v string) string {
		return key.Render(k) + " " + StyleValue.Render(orDash(v)) + "\n"
	}

	var b strings.Builder
	b.WriteString(StyleHighlight.Render(p.Name) + "  " + listDimStyle.Render(fmt.Sprintf("#%d", rank)) + "\n\n")
	b.WriteString(line("Description", p.Description))
	b.WriteString(line("Dependents", fmt.Sprint(p.Order)))
	b.WriteString(line("Versions", fmt.Sprint(p.NumVersions)))
	b.WriteString(line("Stable", crates.Deref(p.LatestStableVersion)))
	b.WriteString(line("Latest", crates.Deref(p.LatestVersion)))
	b.WriteString(line("Repository", crates.Deref(p.Repository)))
	b.WriteString(line("Homepage", crates.Deref(p.Homepage)))
	b.WriteString(line("Documentation", crates.Deref(p.Documentation)))
	b.WriteString(line("Keywords", strings.Join(m.Index.KeywordNames(p.Keywords), ", ")))
	b.WriteString(line("Categories", strings.Join(m.Index.CategoryNames(p.Categories), ", ")))
	return b.String()
}
