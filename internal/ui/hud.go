package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/litescript/ls-drive/internal/export"
	"github.com/litescript/ls-drive/internal/playback"
	"github.com/litescript/ls-drive/internal/session"
	"github.com/litescript/ls-drive/internal/state"
)

const (
	hudWidth     = 36
	hudMaxEvents = 5
)

var (
	hudTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("135")) // violet
	hudLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("60"))             // muted purple
	hudValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	hudAccentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorVehicle))
	hudNoticeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E84A27"))
	hudBoxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1)
)

// renderHUD renders the session panel with the given recent events.
func renderHUD(v session.View, events []state.Event, height int) string {
	inner := hudWidth - 4 // border + padding
	var b strings.Builder

	b.WriteString(hudTitleStyle.Render("Drive"))
	b.WriteString(" ")
	b.WriteString(stateBadge(v))
	b.WriteString("\n\n")

	pos := "-"
	if v.HUD.Position != nil {
		pos = v.HUD.Position.String()
	}
	writeField(&b, "Position", pos, inner)
	writeField(&b, "From", orDash(v.HUD.StartAddress), inner)
	writeField(&b, "To", orDash(v.HUD.EndAddress), inner)
	writeField(&b, "Now", orDash(v.HUD.CurrentAddress), inner)
	b.WriteString("\n")

	total := "-"
	if v.HUD.TotalMeters != nil {
		total = export.FormatDistance(*v.HUD.TotalMeters)
	}
	writeField(&b, "Distance", total, inner)
	remaining := "-"
	if v.HasRoute {
		remaining = export.FormatDistance(v.RemainingMeters)
	}
	writeField(&b, "Remaining", remaining, inner)
	b.WriteString(renderProgressBar(v.Progress, inner-2))
	b.WriteString("\n")
	writeField(&b, "ETA", orDash(v.HUD.ETA), inner)
	b.WriteString("\n")

	follow := "off"
	if v.Follow {
		follow = "on"
	}
	writeField(&b, "Speed", fmt.Sprintf("%.0f km/h", v.SpeedKmh), inner)
	writeField(&b, "Follow", follow, inner)

	if v.HUD.Notice != "" {
		b.WriteString("\n")
		b.WriteString(hudNoticeStyle.Render(truncate(v.HUD.Notice, inner)))
		b.WriteString("\n")
	}

	if len(events) > 0 {
		b.WriteString("\n")
		b.WriteString(hudLabelStyle.Render("Events"))
		b.WriteString("\n")
		for _, e := range events {
			line := fmt.Sprintf("%s %s", e.Timestamp.Format("15:04:05"), e.Type)
			b.WriteString(hudLabelStyle.Render(truncate(line, inner)))
			b.WriteString("\n")
		}
	}

	box := hudBoxStyle.Width(hudWidth - 2)
	if height > 2 {
		box = box.Height(height - 2)
	}
	return box.Render(strings.TrimRight(b.String(), "\n"))
}

func stateBadge(v session.View) string {
	switch {
	case v.Busy:
		return hudAccentStyle.Render("routing...")
	case v.Running:
		return hudAccentStyle.Render("▶ driving")
	case v.State == playback.StateFinished:
		return hudValueStyle.Render("■ arrived")
	case v.ShowStart:
		return hudValueStyle.Render("‖ stopped")
	case len(v.Points) == 1:
		return hudLabelStyle.Render("pick destination")
	default:
		return hudLabelStyle.Render("pick start")
	}
}

func writeField(b *strings.Builder, label, value string, width int) {
	b.WriteString(hudLabelStyle.Render(fmt.Sprintf("%-10s", label)))
	b.WriteString(hudValueStyle.Render(truncate(value, width-10)))
	b.WriteString("\n")
}

// renderProgressBar renders a bar like [████░░░░].
func renderProgressBar(progress float64, width int) string {
	if width < 1 {
		return ""
	}
	filled := int(progress * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	filledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(colorRoute))
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("238"))

	return "[" + filledStyle.Render(strings.Repeat("█", filled)) +
		emptyStyle.Render(strings.Repeat("░", width-filled)) + "]"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens s to width display cells, ending with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
