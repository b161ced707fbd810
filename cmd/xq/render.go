package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/midbel/xq/xpath"
)

var (
	codeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	locStyle   = lipgloss.NewStyle().Faint(true)
	caretStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	spinStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	lineStyle  = lipgloss.NewStyle().PaddingLeft(2)
)

func renderSuccess(w io.Writer, file string, elapsed time.Duration) {
	lipgloss.Fprintln(w, okStyle.Render("ok"), file, locStyle.Render(elapsed.String()))
}

// renderError prints every static error of a failed compilation followed
// by the line of the module it was raised on.
func renderError(w io.Writer, src Source, err error) {
	var (
		ce *xpath.CompileError
		se *xpath.StaticError
	)
	switch {
	case errors.As(err, &ce):
		for _, e := range ce.Errors {
			renderStatic(w, src, e)
		}
	case errors.As(err, &se):
		renderStatic(w, src, se)
	default:
		lipgloss.Fprintln(w, codeStyle.Render("error"), fmt.Sprintf("%s: %s", src.File, err))
	}
}

func renderStatic(w io.Writer, src Source, err *xpath.StaticError) {
	var (
		code = codeStyle.Render(err.Code)
		loc  = locStyle.Render(fmt.Sprintf("%s:%s", src.File, err.Location))
	)
	if err.Location != nil && err.Location.Module != "" {
		loc = locStyle.Render(err.Location.String())
	}
	lipgloss.Fprintln(w, code, loc, err.Message)
	if err.Location == nil || (err.Location.Module != "" && err.Location.Module != src.File) {
		return
	}
	line, caret, ok := snippet(src.Text, err.Location.Line, err.Location.Column)
	if !ok {
		return
	}
	lipgloss.Fprintln(w, lineStyle.Render(line))
	lipgloss.Fprintln(w, lineStyle.Render(caret[:len(caret)-1]+caretStyle.Render("^")))
}

// snippet returns the given line of the text and a line of the same width
// ending with a caret under the given column. Tabs are kept so the caret
// lines up with the source.
func snippet(text string, line, column int) (string, string, bool) {
	lines := strings.Split(text, "\n")
	if line < 1 || line > len(lines) || column < 1 {
		return "", "", false
	}
	var (
		str   = strings.TrimRight(lines[line-1], "\r")
		runes = []rune(str)
		caret strings.Builder
	)
	if column > len(runes)+1 {
		column = len(runes) + 1
	}
	for _, r := range runes[:column-1] {
		if r == '\t' {
			caret.WriteRune(r)
		} else {
			caret.WriteRune(' ')
		}
	}
	caret.WriteRune('^')
	return str, caret.String(), true
}
