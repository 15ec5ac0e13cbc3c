// Package tui provides the interactive terminal surfaces for warden:
// the setup wizard, the status view and the run-log watcher.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/hkuds/warden/internal/config"
)

// Styles for the setup wizard.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)
)

// SetupState holds the state of the setup wizard.
type SetupState struct {
	Image          string
	DataDir        string
	ProjectRoot    string
	TimeoutSec     string
	Network        bool
	ConfigTelegram bool
	TelegramToken  string
	TelegramUsers  string
	ConfigVoice    bool
	VoiceBackend   string
	VoiceAPIKey    string
	Timezone       string
	Confirmed      bool
}

// RunSetup runs the interactive setup wizard and saves the resulting
// configuration. Returns the configured Config or an error.
func RunSetup() (*config.Config, error) {
	defaults := config.DefaultConfig()
	state := &SetupState{
		Image:        defaults.Sandbox.Image,
		DataDir:      defaults.Sandbox.DataDir,
		TimeoutSec:   strconv.Itoa(defaults.Sandbox.TimeoutSec),
		Network:      defaults.Sandbox.Network,
		VoiceBackend: "groq",
		Timezone:     defaults.Timezone,
	}

	printWelcome()

	if err := runSandboxStep(state); err != nil {
		return nil, fmt.Errorf("sandbox step failed: %w", err)
	}
	if err := runChannelsStep(state); err != nil {
		return nil, fmt.Errorf("channels step failed: %w", err)
	}
	if err := runVoiceStep(state); err != nil {
		return nil, fmt.Errorf("voice step failed: %w", err)
	}
	if err := runConfirmationStep(state); err != nil {
		return nil, fmt.Errorf("confirmation step failed: %w", err)
	}

	if !state.Confirmed {
		return nil, fmt.Errorf("setup cancelled by user")
	}

	cfg := buildConfigFromState(state)
	if err := config.SaveConfig(cfg, ""); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println(successStyle.Render("\n✓ Configuration saved successfully!"))
	fmt.Println(subtitleStyle.Render("Config file: " + config.GetConfigPath()))
	fmt.Println(subtitleStyle.Render("Secrets file: " + cfg.SecretsFilePath() + " (NAME=VALUE lines, create it yourself)"))
	fmt.Println()
	fmt.Println(subtitleStyle.Render("Next: run 'warden pair --root <name>' to create the root group,"))
	fmt.Println(subtitleStyle.Render("then send the code from the chat that should control warden."))
	fmt.Println()

	return cfg, nil
}

func printWelcome() {
	banner := `
 _      __              __
| | /| / /___ _________/ /__ ___
| |/ |/ // _ ` + "`" + `// __/ _  // -_) _ \
|__/|__/ \_,_//_/  \_,_/ \__/_//_/
`
	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Render(banner))
	welcome := boxStyle.Render(
		titleStyle.Render("Welcome to warden setup") + "\n\n" +
			"Each chat group gets its own isolated sandbox with its own\n" +
			"files, session and schedule. This wizard configures the host.\n" +
			"You can always edit the configuration later at:\n" +
			subtitleStyle.Render(config.GetConfigPath()),
	)
	fmt.Println(welcome)
	fmt.Println()
}

// runSandboxStep configures the container runner.
func runSandboxStep(state *SetupState) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Sandbox image").
				Description("The container image holding the agent workload").
				Placeholder("warden-agent:latest").
				Value(&state.Image),
			huh.NewInput().
				Title("Data directory").
				Description("Where group folders, sessions and logs live").
				Placeholder("~/.warden/data").
				Value(&state.DataDir),
			huh.NewInput().
				Title("Project root (optional)").
				Description("Mounted read-write for the root group only; leave empty to disable").
				Value(&state.ProjectRoot),
			huh.NewInput().
				Title("Run timeout (seconds)").
				Placeholder("600").
				Value(&state.TimeoutSec).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					if n, err := strconv.Atoi(strings.TrimSpace(s)); err != nil || n <= 0 {
						return fmt.Errorf("timeout must be a positive number of seconds")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Allow network access from sandboxes?").
				Description("The agent needs this to reach its model API").
				Value(&state.Network),
		),
	)

	return form.Run()
}

// runChannelsStep configures communication channels.
func runChannelsStep(state *SetupState) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Configure Telegram?").
				Description("Set up a Telegram bot for messaging").
				Value(&state.ConfigTelegram),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	if !state.ConfigTelegram {
		return nil
	}

	telegramForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram Bot Token").
				Description("Get this from @BotFather on Telegram").
				Placeholder("123456789:ABCdefGHIjklMNOpqrsTUVwxyz").
				EchoMode(huh.EchoModePassword).
				Value(&state.TelegramToken).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("bot token is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Allowed User IDs").
				Description("Comma-separated Telegram user IDs or usernames; nobody gets in when empty").
				Placeholder("123456789, 987654321").
				Value(&state.TelegramUsers),
		),
	)

	return telegramForm.Run()
}

// runVoiceStep configures voice note transcription.
func runVoiceStep(state *SetupState) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable voice transcription?").
				Description("Voice notes are transcribed and handled like text").
				Value(&state.ConfigVoice),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	if !state.ConfigVoice {
		return nil
	}

	voiceForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Transcription backend").
				Options(
					huh.NewOption("Groq (whisper-large-v3)", "groq"),
					huh.NewOption("OpenAI (whisper-1)", "openai"),
				).
				Value(&state.VoiceBackend),
			huh.NewInput().
				Title("API key").
				EchoMode(huh.EchoModePassword).
				Value(&state.VoiceAPIKey).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("API key is required for voice transcription")
					}
					return nil
				}),
		),
	)

	return voiceForm.Run()
}

// runConfirmationStep shows a summary and confirms the configuration.
func runConfirmationStep(state *SetupState) error {
	fmt.Println(boxStyle.Render(buildSummary(state)))
	fmt.Println()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this configuration?").
				Affirmative("Yes, save").
				Negative("No, cancel").
				Value(&state.Confirmed),
		),
	)

	return form.Run()
}

// buildSummary creates a text summary of the configuration.
func buildSummary(state *SetupState) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Configuration Summary"))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Image: %s\n", successStyle.Render(state.Image)))
	sb.WriteString(fmt.Sprintf("Data dir: %s\n", state.DataDir))
	if state.ProjectRoot != "" {
		sb.WriteString(fmt.Sprintf("Project root: %s\n", state.ProjectRoot))
	}
	sb.WriteString(fmt.Sprintf("Timeout: %ss\n", state.TimeoutSec))
	if state.Network {
		sb.WriteString("Network: enabled\n")
	} else {
		sb.WriteString(warningStyle.Render("Network: disabled (the agent cannot reach its model API)") + "\n")
	}

	sb.WriteString("\n")
	if state.ConfigTelegram {
		sb.WriteString(fmt.Sprintf("Telegram: %s\n", successStyle.Render("enabled")))
	} else {
		sb.WriteString(fmt.Sprintf("Telegram: %s\n", subtitleStyle.Render("disabled")))
	}
	if state.ConfigVoice {
		sb.WriteString(fmt.Sprintf("Voice: %s (%s)\n", successStyle.Render("enabled"), state.VoiceBackend))
	} else {
		sb.WriteString(fmt.Sprintf("Voice: %s\n", subtitleStyle.Render("disabled")))
	}

	return sb.String()
}

// buildConfigFromState creates a Config from the setup state.
func buildConfigFromState(state *SetupState) *config.Config {
	cfg := config.DefaultConfig()

	if state.Image != "" {
		cfg.Sandbox.Image = state.Image
	}
	if state.DataDir != "" {
		cfg.Sandbox.DataDir = state.DataDir
	}
	cfg.Sandbox.ProjectRoot = strings.TrimSpace(state.ProjectRoot)
	if n, err := strconv.Atoi(strings.TrimSpace(state.TimeoutSec)); err == nil && n > 0 {
		cfg.Sandbox.TimeoutSec = n
	}
	cfg.Sandbox.Network = state.Network
	if state.Timezone != "" {
		cfg.Timezone = state.Timezone
	}

	if state.ConfigTelegram {
		cfg.Channels.Telegram.Enabled = true
		cfg.Channels.Telegram.Token = state.TelegramToken
		if state.TelegramUsers != "" {
			users := strings.Split(state.TelegramUsers, ",")
			for i, u := range users {
				users[i] = strings.TrimSpace(u)
			}
			cfg.Channels.Telegram.AllowFrom = users
		}
	}

	if state.ConfigVoice {
		cfg.Voice.Backend = state.VoiceBackend
		cfg.Voice.APIKey = state.VoiceAPIKey
	}

	return cfg
}
