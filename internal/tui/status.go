package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hkuds/warden/internal/config"
	"github.com/hkuds/warden/internal/group"
)

// Status display styles.
var (
	statusTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205")).
				MarginBottom(1).
				Padding(0, 1)

	statusBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Width(60)

	statusSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				MarginTop(1)

	statusLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Width(20)

	statusValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("255"))

	statusEnabledStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("82")).
				Bold(true)

	statusDisabledStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	statusWarningStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214"))

	statusRootStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)
)

// ShowStatus displays the current configuration and registered groups.
func ShowStatus(cfg *config.Config, groups []group.Group) error {
	var sb strings.Builder

	sb.WriteString(statusTitleStyle.Render("warden status"))
	sb.WriteString("\n\n")

	sb.WriteString(statusSectionStyle.Render("Sandbox"))
	sb.WriteString("\n")
	sb.WriteString(renderSandboxStatus(cfg))
	sb.WriteString("\n")

	sb.WriteString(statusSectionStyle.Render("Channels"))
	sb.WriteString("\n")
	sb.WriteString(renderChannelsStatus(cfg))
	sb.WriteString("\n")

	sb.WriteString(statusSectionStyle.Render("Groups"))
	sb.WriteString("\n")
	sb.WriteString(renderGroupsStatus(groups))

	fmt.Println(statusBoxStyle.Render(sb.String()))
	return nil
}

// renderSandboxStatus renders the runner configuration.
func renderSandboxStatus(cfg *config.Config) string {
	var sb strings.Builder

	sb.WriteString(renderStatusRow("Image", statusValueStyle.Render(cfg.Sandbox.Image)))
	sb.WriteString(renderStatusRow("Data dir", statusValueStyle.Render(cfg.DataDirPath())))
	if cfg.Sandbox.ProjectRoot != "" {
		sb.WriteString(renderStatusRow("Project root", statusValueStyle.Render(cfg.Sandbox.ProjectRoot)))
	}
	sb.WriteString(renderStatusRow("Timeout", statusValueStyle.Render(fmt.Sprintf("%ds", cfg.Sandbox.TimeoutSec))))
	sb.WriteString(renderStatusRow("Memory", statusValueStyle.Render(fmt.Sprintf("%d MB", cfg.Sandbox.MemoryMB))))
	if cfg.Sandbox.Network {
		sb.WriteString(renderStatusRow("Network", statusEnabledStyle.Render("enabled")))
	} else {
		sb.WriteString(renderStatusRow("Network", statusDisabledStyle.Render("disabled")))
	}
	sb.WriteString(renderStatusRow("Timezone", statusValueStyle.Render(cfg.ResolvedTimezone())))

	return sb.String()
}

// renderChannelsStatus renders the channels configuration status.
func renderChannelsStatus(cfg *config.Config) string {
	var sb strings.Builder

	if cfg.Channels.Telegram.Enabled {
		sb.WriteString(renderStatusRow("Telegram", statusEnabledStyle.Render("enabled")))
		if len(cfg.Channels.Telegram.AllowFrom) > 0 {
			users := strings.Join(cfg.Channels.Telegram.AllowFrom, ", ")
			if len(users) > 30 {
				users = users[:27] + "..."
			}
			sb.WriteString(renderStatusRow("  Allowed", statusValueStyle.Render(users)))
		} else {
			sb.WriteString(renderStatusRow("  Allowed", statusWarningStyle.Render("nobody (allow list empty)")))
		}
	} else {
		sb.WriteString(renderStatusRow("Telegram", statusDisabledStyle.Render("disabled")))
	}

	if cfg.Voice.APIKey != "" {
		backend := cfg.Voice.Backend
		if backend == "" {
			backend = "groq"
		}
		sb.WriteString(renderStatusRow("Voice", statusEnabledStyle.Render(backend)))
	} else {
		sb.WriteString(renderStatusRow("Voice", statusDisabledStyle.Render("disabled")))
	}

	return sb.String()
}

// renderGroupsStatus renders the registered groups.
func renderGroupsStatus(groups []group.Group) string {
	if len(groups) == 0 {
		return renderStatusRow("", statusWarningStyle.Render("No groups registered. Run 'warden pair --root <name>'."))
	}

	var sb strings.Builder
	for _, g := range groups {
		name := g.Name
		if g.Root {
			name = statusRootStyle.Render(name + " (root)")
		} else {
			name = statusValueStyle.Render(name)
		}
		detail := fmt.Sprintf("%s  %s:%s", name, g.Channel, g.ChatID)
		sb.WriteString(renderStatusRow(g.Folder, detail))
	}
	return sb.String()
}

// renderStatusRow renders a label-value row.
func renderStatusRow(label, value string) string {
	if label == "" {
		return fmt.Sprintf("  %s\n", value)
	}
	return fmt.Sprintf("  %s %s\n",
		statusLabelStyle.Render(label+":"),
		value,
	)
}

// maskSecret masks a secret for display.
func maskSecret(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// ShowQuickStatus shows a minimal one-line status.
func ShowQuickStatus(cfg *config.Config, groups []group.Group) {
	var channel string
	if cfg.Channels.Telegram.Enabled {
		channel = statusEnabledStyle.Render("telegram")
	} else {
		channel = statusDisabledStyle.Render("no channels")
	}

	groupCount := statusDisabledStyle.Render("no groups")
	if len(groups) > 0 {
		groupCount = statusEnabledStyle.Render(fmt.Sprintf("%d group(s)", len(groups)))
	}

	fmt.Printf("warden: %s | %s | %s\n",
		statusValueStyle.Render(cfg.Sandbox.Image), channel, groupCount)
}
