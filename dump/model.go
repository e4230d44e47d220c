package dump

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/corejit/pyjit/analysis"
	"github.com/corejit/pyjit/depgraph"
	"github.com/corejit/pyjit/ilgen/reftest"
)

const (
	// Prompt is shown on each line of listing input.
	Prompt = "> "
	// EndMarker is the empty-line convention that closes a listing and
	// triggers a run, mirroring the REPL's bracket-balance convention but
	// suited to a line-oriented listing rather than an expression.
	EndMarker = ""
)

// Options holds the interactive stepper's settings. The model stores them
// but reads neither field, so output is the same whatever they are set to.
type Options struct {
	NoColor bool
	Debug   bool
}

// Start runs the interactive stepper until the user quits.
func Start(options Options) {
	p := tea.NewProgram(initialModel(options))
	if _, err := p.Run(); err != nil {
		fmt.Println("Error running program:", err)
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	paneHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#04B575"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Bold(true)

	historyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676"))

	escapeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAF00"))
)

// stepResult is the rendered outcome of one compile attempt, laid out as
// three panes per pyjitdump's purpose: what analysis inferred, what the
// dependency graph decided about escapes and boxing, and what IL the
// driver actually emitted.
type stepResult struct {
	err      error
	analysis string
	graph    string
	il       string
	elapsed  time.Duration
}

type stepDoneMsg stepResult

type model struct {
	textInput   textinput.Model
	spinner     spinner.Model
	running     bool
	listing     []string // lines accumulated for the current listing
	lastResult  *stepResult
	lastListing string
	options     Options
}

func initialModel(options Options) model {
	ti := textinput.New()
	ti.Placeholder = "LOAD_FAST 0   (blank line runs the listing)"
	ti.Focus()
	ti.Width = 80
	ti.Prompt = promptStyle.Render(Prompt)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return model{textInput: ti, spinner: s, options: options}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// stepCmd runs Step asynchronously, wrapping the result in a tea.Msg.
func stepCmd(src string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		panes, err := Step(src)
		return stepDoneMsg{
			err:      err,
			analysis: panes.Analysis,
			graph:    panes.Graph,
			il:       panes.IL,
			elapsed:  time.Since(start),
		}
	}
}

func renderAnalysis(g *depgraph.Graph, result *analysis.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "return kind: %s\n", result.ReturnKind)
	for _, in := range g.Instructions {
		s, ok := result.GetStackInfo(in.Index)
		depth := "?"
		if ok {
			depth = fmt.Sprintf("%d", len(s.Stack))
		}
		escape := ""
		if g.Escapes(in.Index) {
			escape = "  (escapes)"
		}
		fmt.Fprintf(&b, "pc=%-4d %-22s depth=%s%s\n", in.Index, in.Op, depth, escape)
	}
	return b.String()
}

func renderGraph(g *depgraph.Graph) string {
	var b strings.Builder
	if len(g.Edges) == 0 {
		return "(no tracked edges)\n"
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&b, "%d -> %d @%d  kind=%s  transition=%s\n", e.From, e.To, e.Position, e.Kind, e.Transition)
	}
	return b.String()
}

func renderTrace(e *reftest.Emitter) string {
	var b strings.Builder
	for _, op := range e.Trace {
		b.WriteString(op.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.running {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case stepDoneMsg:
		m.running = false
		r := stepResult(msg)
		m.lastResult = &r
		m.lastListing = strings.Join(m.listing, "\n")
		m.listing = nil
		return m, nil

	case tea.KeyMsg:
		if m.running && msg.Type != tea.KeyCtrlC {
			return m, nil
		}
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := m.textInput.Value()
			m.textInput.SetValue("")
			if line == EndMarker && len(m.listing) > 0 {
				src := strings.Join(m.listing, "\n")
				m.running = true
				return m, stepCmd(src)
			}
			m.listing = append(m.listing, line)
			return m, nil
		}
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("pyjitdump"))
	b.WriteString("\n\n")

	if m.lastResult != nil {
		r := m.lastResult
		b.WriteString(historyStyle.Render(m.lastListing))
		b.WriteString("\n\n")
		if r.err != nil {
			b.WriteString(errorStyle.Render(r.err.Error()))
			b.WriteString("\n\n")
		}
		if r.analysis != "" {
			b.WriteString(paneHeaderStyle.Render("Analysis"))
			b.WriteString("\n")
			b.WriteString(r.analysis)
			b.WriteString("\n")
		}
		if r.graph != "" {
			b.WriteString(paneHeaderStyle.Render("Graph"))
			b.WriteString("\n")
			b.WriteString(escapeStyle.Render(r.graph))
			b.WriteString("\n")
		}
		if r.il != "" {
			b.WriteString(paneHeaderStyle.Render("IL"))
			b.WriteString("\n")
			b.WriteString(r.il)
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "(%s)\n\n", r.elapsed)
	}

	for _, l := range m.listing {
		b.WriteString(historyStyle.Render(Prompt + l))
		b.WriteString("\n")
	}

	if m.running {
		b.WriteString(m.spinner.View())
		b.WriteString(" compiling...\n")
	} else {
		b.WriteString(m.textInput.View())
		b.WriteString("\n")
	}

	b.WriteString("\nctrl+c or esc to quit. blank line runs the listing.\n")
	return b.String()
}
