package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"karolbroda.com/lyricmotion/internal/colors"
	"karolbroda.com/lyricmotion/internal/events"
	"karolbroda.com/lyricmotion/internal/export"
)

func (m Model) View() string {
	width := m.width
	if width == 0 {
		width = 80
	}

	var lines []string
	lines = append(lines, "")
	lines = append(lines, m.renderBanner(width)...)
	lines = append(lines, "")

	if m.title != "" {
		title := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Secondary.Hex())).Bold(true)
		lines = append(lines, centerText(title.Render(m.title), lipgloss.Width(m.title), width))
		lines = append(lines, "")
	}

	for _, art := range m.art {
		lines = append(lines, centerText(art, lipgloss.Width(art), width))
	}
	if len(m.art) > 0 {
		lines = append(lines, "")
	}

	lines = append(lines, m.renderProgress(width))
	lines = append(lines, m.renderStatus(width))
	lines = append(lines, "")
	lines = append(lines, m.renderEvents()...)

	if m.done == nil {
		hint := "q to cancel"
		if m.cancelling {
			hint = "cancelling..."
		}
		dim := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Dim.Hex())).Italic(true)
		lines = append(lines, "", "  "+dim.Render(hint))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m Model) renderBanner(width int) []string {
	grad := m.theme.Gradient
	out := make([]string, 0, len(m.banner))
	for _, row := range m.banner {
		var b strings.Builder
		runes := []rune(row)
		for i, r := range runes {
			if r == ' ' {
				b.WriteRune(r)
				continue
			}
			pos := float64(i)/float64(max(len(runes)-1, 1)) + m.animState.ShimmerPhase
			c := grad[int(pos*float64(len(grad)))%len(grad)]
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(c.Hex())).Render(string(r)))
		}
		out = append(out, centerText(b.String(), len(runes), width))
	}
	return out
}

func (m Model) renderProgress(width int) string {
	barWidth := width - 20
	if barWidth < 20 {
		barWidth = 20
	}

	progress := clamp(m.animState.Displayed/100, 0, 1)
	filledWidth := int(float64(barWidth) * progress)

	pulse := colors.Mix(m.theme.Primary, colors.White, m.animState.Pulse*0.3)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Dim.Hex())).Faint(true)

	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		switch {
		case i < filledWidth:
			c := m.theme.Gradient[i*len(m.theme.Gradient)/barWidth]
			bar.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(c.Hex())).Render("━"))
		case i == filledWidth && progress < 1:
			bar.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(pulse.Hex())).Render("●"))
		default:
			bar.WriteString(emptyStyle.Render("─"))
		}
	}

	pct := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Accent.Hex())).Render(fmt.Sprintf("%3.0f%%", m.animState.Displayed))
	return fmt.Sprintf("  %s  %s", bar.String(), pct)
}

func (m Model) renderStatus(width int) string {
	p := m.progress
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Dim.Hex()))

	var text string
	switch {
	case m.done != nil && m.done.Err != nil:
		text = lipgloss.NewStyle().Foreground(lipgloss.Color("#E86B6B")).Render(m.done.Err.Error())
	case m.done != nil && m.done.Result != nil:
		saved := m.done.Path
		if saved == "" {
			saved = m.done.Result.Filename
		}
		text = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Primary.Hex())).Render("saved " + saved)
	case p.State == export.StateRendering && p.Total > 0:
		text = dim.Render(fmt.Sprintf("frame %d / %d  ·  %s / %s", p.Frame, p.Total,
			colors.FormatTime(float64(p.Frame)/float64(m.fps)), colors.FormatTime(float64(p.Total)/float64(m.fps))))
	default:
		text = dim.Render(p.State.String())
	}
	return "  " + text
}

func (m Model) renderEvents() []string {
	out := make([]string, 0, len(m.events))
	for i, e := range m.events {
		c := severityColor(e.Severity, m.theme.Dim.Hex())
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(c))
		if i > 0 {
			style = style.Faint(true)
		}
		out = append(out, fmt.Sprintf("  %s %s", style.Render(severityMark(e.Severity)), style.Render(e.Message)))
	}
	return out
}

func severityColor(sev events.Severity, fallback string) string {
	switch sev {
	case events.SeveritySuccess:
		return "#7BD88F"
	case events.SeverityWarning:
		return "#E8C36B"
	case events.SeverityError:
		return "#E86B6B"
	default:
		return fallback
	}
}

func severityMark(sev events.Severity) string {
	switch sev {
	case events.SeveritySuccess:
		return "✓"
	case events.SeverityWarning:
		return "!"
	case events.SeverityError:
		return "✗"
	default:
		return "·"
	}
}

func centerText(text string, visualWidth int, screenWidth int) string {
	padding := (screenWidth - visualWidth) / 2
	if padding < 0 {
		padding = 0
	}
	return strings.Repeat(" ", padding) + text
}
