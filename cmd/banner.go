package cmd

import (
	"fmt"
	"net"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/peerlink/peerlink/pkg/environment"
	"github.com/peerlink/peerlink/pkg/version"
)

// Define styles using lipgloss.
var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(10)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
)

// banner renders the startup summary printed by serve.
func banner(addr string, s *environment.Environment) string {
	base := "http://" + displayAddr(addr)

	limit := humanize.IBytes(uint64(max(s.MaxRequestSize.Int64(), 0)))
	if s.MaxFileSize > 0 {
		limit += fmt.Sprintf(" (%s per file)", humanize.IBytes(uint64(s.MaxFileSize.Int64())))
	}

	rows := [][2]string{
		{"upload", "POST " + base + "/upload"},
		{"download", "GET  " + base + "/download/<code>"},
		{"ttl", fmt.Sprintf("%s, swept every %s", s.FileTTL, s.SweepInterval)},
		{"limit", limit},
		{"storage", s.UploadDir},
	}

	lines := []string{titleStyle.Render("peerlink " + version.String()), ""}
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(r[0]), r[1]))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// displayAddr swaps an unspecified host for localhost.
func displayAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
