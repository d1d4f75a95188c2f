package report

import (
	"fmt"
	"strings"

	"trader/internal/perf"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF")).
			Width(16)

	gainStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	lossStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

func pct(v float64) string {
	s := fmt.Sprintf("%.2f%%", v)
	if v < 0 {
		return lossStyle.Render(s)
	}
	return gainStyle.Render(s)
}

// RenderSummary draws the operator summary of a run.
func RenderSummary(title string, s perf.Summary) string {
	rows := [][2]string{
		{"days", fmt.Sprintf("%d", s.Days)},
		{"benefit", pct(s.FinalBenefitPct)},
		{"baseline", pct(s.BaselinePct)},
		{"std dev", fmt.Sprintf("%.4f", s.StdDev)},
		{"sharpe", fmt.Sprintf("%.4f", s.Sharpe)},
		{"max drawdown", fmt.Sprintf("%.2f%%", s.MaxDrawdownPct)},
		{"max loss", fmt.Sprintf("%.2f%%", s.MaxLossPct)},
		{"wins / losses", fmt.Sprintf("%d / %d", s.Wins, s.Losses)},
		{"win ratio", fmt.Sprintf("%.2f", s.WinRatio)},
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, titleStyle.Render(title))
	for _, r := range rows {
		lines = append(lines, labelStyle.Render(r[0])+r[1])
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
