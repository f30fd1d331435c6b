package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerTrackStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	bannerPulseStyle   = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	bannerTitleStyle   = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	bannerTaglineStyle = lipgloss.NewStyle().Foreground(colorPrimaryDark).Italic(true)
	bannerVersionStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

// renderBanner draws a heart-rate trace around the product name.
func renderBanner() string {
	track := func(s string) string { return bannerTrackStyle.Render(s) }
	pulse := func(s string) string { return bannerPulseStyle.Render(s) }

	lines := []string{
		"            " + pulse("╱╲"),
		"  " + track("────────") + pulse("╱  ╲  ╱") + track("────────"),
		"                " + pulse("╲╱"),
		"        " + bannerTitleStyle.Render("S T R I D E"),
	}
	return strings.Join(lines, "\n")
}

func renderBannerWithTagline() string {
	tagline := bannerTaglineStyle.Render("      patterns into progress")
	ver := bannerVersionStyle.Render("             " + version)
	return strings.Join([]string{renderBanner(), tagline, ver}, "\n")
}
