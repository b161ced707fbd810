package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/midbel/cli"
	"github.com/midbel/xq/xpath"
)

var exploreCmd = cli.Command{
	Name:    "explore",
	Summary: "browse the tree, the tokens and the errors of a query",
	Handler: &ExploreCmd{},
}

type ExploreCmd struct {
	CompilerOptions
}

func (c *ExploreCmd) Run(args []string) error {
	set := flag.NewFlagSet("explore", flag.ContinueOnError)
	c.Attach(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() != 1 {
		return fmt.Errorf("explore: exactly one module should be given")
	}
	src, err := readSource(set.Arg(0))
	if err != nil {
		return err
	}
	options, err := c.Options()
	if err != nil {
		return err
	}
	m := newExplorer(src)
	query, err := c.Compile(context.Background(), src, options)
	m.load(query, err, c.XPath)

	_, err = tea.NewProgram(m).Run()
	return err
}

const (
	paneTree = iota
	paneTokens
	paneErrors
	paneCount
)

var paneNames = []string{"tree", "tokens", "errors"}

var (
	tabStyle    = lipgloss.NewStyle().PaddingLeft(1).Faint(true)
	activeStyle = lipgloss.NewStyle().PaddingLeft(1).Bold(true).Underline(true)
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

type explorer struct {
	src   Source
	panes [paneCount]string
	curr  int

	view  viewport.Model
	ready bool
}

func newExplorer(src Source) *explorer {
	return &explorer{
		src: src,
	}
}

func (m *explorer) load(query *xpath.Query, err error, isXPath bool) {
	lang := xpath.LangXQuery
	if isXPath {
		lang = xpath.LangXPath
	}
	var tokens strings.Builder
	for _, tok := range xpath.Scan(m.src.Text, xpath.ForLanguage(lang)).Tokens() {
		fmt.Fprintf(&tokens, "%-8s %s", tok.Position, tok)
		tokens.WriteString("\n")
	}
	m.panes[paneTokens] = tokens.String()

	if err != nil {
		var buf bytes.Buffer
		renderError(&buf, m.src, err)
		m.panes[paneErrors] = buf.String()
		m.panes[paneTree] = "no tree: module has errors"
		m.curr = paneErrors
		return
	}
	var buf bytes.Buffer
	xpath.DebugTree(&buf, query.Body)
	m.panes[paneTree] = buf.String()
	m.panes[paneErrors] = okStyle.Render("no error")
}

func (m *explorer) Init() tea.Cmd {
	return nil
}

func (m *explorer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "tab", "right", "l":
			m.switchPane(1)
			return m, nil
		case "shift+tab", "left", "h":
			m.switchPane(-1)
			return m, nil
		}
	case tea.WindowSizeMsg:
		height := msg.Height - 2
		if !m.ready {
			m.view = viewport.New(viewport.WithWidth(msg.Width), viewport.WithHeight(height))
			m.view.SetContent(m.panes[m.curr])
			m.ready = true
		} else {
			m.view.SetWidth(msg.Width)
			m.view.SetHeight(height)
		}
	}
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m *explorer) switchPane(dir int) {
	m.curr = (m.curr + dir + paneCount) % paneCount
	if !m.ready {
		return
	}
	m.view.SetContent(m.panes[m.curr])
	m.view.GotoTop()
}

func (m *explorer) View() tea.View {
	if !m.ready {
		return tea.NewView("loading...")
	}
	var tabs []string
	for i, n := range paneNames {
		if i == m.curr {
			tabs = append(tabs, activeStyle.Render(n))
		} else {
			tabs = append(tabs, tabStyle.Render(n))
		}
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, append([]string{titleStyle.Render(m.src.File)}, tabs...)...)
	footer := locStyle.Render(fmt.Sprintf("%3.f%% - tab: switch pane, q: quit", m.view.ScrollPercent()*100))

	v := tea.NewView(lipgloss.JoinVertical(lipgloss.Left, header, m.view.View(), footer))
	v.AltScreen = true
	return v
}
