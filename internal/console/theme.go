package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const ruleWidth = 46

// theme holds the styles used by the terminal screens. Styles are bound to
// the session renderer so color output follows the destination writer.
type theme struct {
	banner   lipgloss.Style
	heading  lipgloss.Style
	success  lipgloss.Style
	failure  lipgloss.Style
	notice   lipgloss.Style
	muted    lipgloss.Style
	emphasis lipgloss.Style
}

func newTheme(renderer *lipgloss.Renderer) theme {
	return theme{
		banner:   renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		heading:  renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		success:  renderer.NewStyle().Foreground(lipgloss.Color("10")),
		failure:  renderer.NewStyle().Foreground(lipgloss.Color("9")),
		notice:   renderer.NewStyle().Foreground(lipgloss.Color("11")),
		muted:    renderer.NewStyle().Foreground(lipgloss.Color("8")),
		emphasis: renderer.NewStyle().Bold(true),
	}
}

func (session *Session) println(text string) {
	fmt.Fprintln(session.output, text)
}

func (session *Session) printf(format string, args ...any) {
	fmt.Fprintf(session.output, format, args...)
}

func (session *Session) banner(title string) {
	rule := strings.Repeat("=", ruleWidth)
	session.println("")
	session.println(session.theme.muted.Render(rule))
	session.println(session.theme.banner.Render(title))
	session.println(session.theme.muted.Render(rule))
}

func (session *Session) heading(title string) {
	session.println("")
	session.println(session.theme.heading.Render("## " + title + " ##"))
}

func (session *Session) succeed(format string, args ...any) {
	session.println(session.theme.success.Render("[ok] " + fmt.Sprintf(format, args...)))
}

func (session *Session) fail(format string, args ...any) {
	session.println(session.theme.failure.Render("[error] " + fmt.Sprintf(format, args...)))
}

func (session *Session) notify(format string, args ...any) {
	session.println(session.theme.notice.Render(fmt.Sprintf(format, args...)))
}

func (session *Session) rule(width int) {
	session.println(session.theme.muted.Render(strings.Repeat("-", width)))
}
