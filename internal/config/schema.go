package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hkuds/warden/internal/sandbox"
)

// Config represents the root configuration structure for warden.
type Config struct {
	Sandbox  SandboxConfig  `json:"sandbox"`
	Channels ChannelsConfig `json:"channels"`
	Secrets  SecretsConfig  `json:"secrets"`
	Voice    VoiceConfig    `json:"voice"`
	Gateway  GatewayConfig  `json:"gateway"`

	// Timezone overrides the zone exported to every sandbox as TZ.
	// Empty means the host's own zone, detected once at startup.
	Timezone string `json:"timezone,omitempty"`
}

// SandboxConfig holds the container runner settings.
type SandboxConfig struct {
	Image         string  `json:"image"`
	DataDir       string  `json:"dataDir"`
	ProjectRoot   string  `json:"projectRoot,omitempty"`
	GlobalDir     string  `json:"globalDir,omitempty"`
	AllowlistFile string  `json:"allowlistFile,omitempty"`
	TimeoutSec    int     `json:"timeoutSec"`
	MaxOutputKB   int     `json:"maxOutputKb"`
	MemoryMB      int64   `json:"memoryMb"`
	CPUPercent    float64 `json:"cpuPercent"`
	MaxProcesses  int64   `json:"maxProcesses"`
	Network       bool    `json:"network"`
	User          string  `json:"user,omitempty"`
}

// ChannelsConfig holds all communication channel configurations.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig represents Telegram bot configuration.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
}

// SecretsConfig controls which host secrets reach the sandboxes.
// File is an env-style file of NAME=VALUE lines; only names listed in
// Allowed are projected.
type SecretsConfig struct {
	File    string   `json:"file"`
	Allowed []string `json:"allowed"`
}

// VoiceConfig holds voice transcription configuration.
type VoiceConfig struct {
	// Backend selects the transcription service: "groq" or "openai".
	Backend string `json:"backend,omitempty"`
	// Model overrides the default model for the chosen backend.
	Model string `json:"model,omitempty"`
	// APIKey for the transcription backend. Voice is disabled when empty.
	APIKey string `json:"apiKey,omitempty"`
}

// GatewayConfig holds gateway loop settings.
type GatewayConfig struct {
	// PairingTTLMin is how long issued pairing codes stay valid, in minutes.
	PairingTTLMin int `json:"pairingTtlMin"`
	// ScanIntervalSec is how often the ipc tree is polled, in seconds.
	ScanIntervalSec int `json:"scanIntervalSec"`
}

// DefaultConfig returns a new Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Sandbox: SandboxConfig{
			Image:        "warden-agent:latest",
			DataDir:      "~/.warden/data",
			GlobalDir:    "~/.warden/global",
			TimeoutSec:   600,
			MaxOutputKB:  1024,
			MemoryMB:     2048,
			CPUPercent:   1.0,
			MaxProcesses: 256,
			Network:      true,
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				Token:     "",
				AllowFrom: []string{},
			},
		},
		Secrets: SecretsConfig{
			File:    "~/.warden/secrets.env",
			Allowed: append([]string(nil), sandbox.DefaultAllowedSecrets...),
		},
		Gateway: GatewayConfig{
			PairingTTLMin:   10,
			ScanIntervalSec: 2,
		},
	}
}

// RunnerConfig resolves the sandbox settings into the runner's config,
// expanding paths and converting units. It is called once at startup;
// nothing downstream re-reads the file or the environment.
func (c *Config) RunnerConfig(verbose bool) sandbox.RunnerConfig {
	rc := sandbox.DefaultRunnerConfig()
	if c.Sandbox.Image != "" {
		rc.Image = c.Sandbox.Image
	}
	rc.DataDir = c.DataDirPath()
	if c.Sandbox.ProjectRoot != "" {
		rc.ProjectRoot = expandPath(c.Sandbox.ProjectRoot)
	}
	if c.Sandbox.GlobalDir != "" {
		rc.GlobalDir = expandPath(c.Sandbox.GlobalDir)
	}
	if c.Sandbox.TimeoutSec > 0 {
		rc.Timeout = time.Duration(c.Sandbox.TimeoutSec) * time.Second
	}
	if c.Sandbox.MaxOutputKB > 0 {
		rc.MaxOutputBytes = c.Sandbox.MaxOutputKB * 1024
	}
	if c.Sandbox.MemoryMB > 0 {
		rc.MemoryMB = c.Sandbox.MemoryMB
	}
	if c.Sandbox.CPUPercent > 0 {
		rc.CPUPercent = c.Sandbox.CPUPercent
	}
	if c.Sandbox.MaxProcesses > 0 {
		rc.MaxProcesses = c.Sandbox.MaxProcesses
	}
	rc.NetworkEnabled = c.Sandbox.Network
	rc.User = c.Sandbox.User
	rc.Verbose = verbose
	rc.Timezone = c.ResolvedTimezone()
	rc.Validate()
	return rc
}

// ResolvedTimezone returns the configured timezone override, or the
// host's own zone when none is set.
func (c *Config) ResolvedTimezone() string {
	if c.Timezone != "" {
		return c.Timezone
	}
	return hostTimezone()
}

// hostTimezone detects the zone the host runs in: the TZ variable when
// set, else the zone /etc/localtime points at, else whatever name the
// runtime reports, with UTC as the terminal fallback.
func hostTimezone() string {
	if tz := strings.TrimSpace(os.Getenv("TZ")); tz != "" {
		return tz
	}
	if target, err := os.Readlink("/etc/localtime"); err == nil {
		if name := zoneFromPath(target); name != "" {
			return name
		}
	}
	if name := time.Now().Location().String(); name != "" && name != "Local" {
		return name
	}
	return "UTC"
}

// zoneFromPath extracts the IANA zone name from a zoneinfo path like
// /usr/share/zoneinfo/Europe/Berlin.
func zoneFromPath(path string) string {
	const marker = "zoneinfo/"
	if i := strings.Index(path, marker); i >= 0 {
		return path[i+len(marker):]
	}
	return ""
}

// DataDirPath returns the absolute path to the data directory,
// expanding ~ to the user's home directory.
func (c *Config) DataDirPath() string {
	dir := c.Sandbox.DataDir
	if dir == "" {
		dir = "~/.warden/data"
	}
	return expandPath(dir)
}

// SecretsFilePath returns the absolute path to the secrets file.
func (c *Config) SecretsFilePath() string {
	return expandPath(c.Secrets.File)
}

// AllowlistFilePath returns the absolute path of the mount allowlist,
// or the default location under the config dir when unset.
func (c *Config) AllowlistFilePath() string {
	if c.Sandbox.AllowlistFile == "" {
		return filepath.Join(GetConfigDir(), "mounts.json")
	}
	return expandPath(c.Sandbox.AllowlistFile)
}

// PairingTTL returns the pairing code lifetime.
func (c *Config) PairingTTL() time.Duration {
	if c.Gateway.PairingTTLMin <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.Gateway.PairingTTLMin) * time.Minute
}

// ScanInterval returns the ipc poll interval.
func (c *Config) ScanInterval() time.Duration {
	if c.Gateway.ScanIntervalSec <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Gateway.ScanIntervalSec) * time.Second
}

// expandPath expands ~ to the user's home directory and resolves the path.
func expandPath(path string) string {
	if path == "" {
		return path
	}

	// Expand ~ to home directory
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if len(path) == 1 {
			return home
		}
		if path[1] == '/' || path[1] == filepath.Separator {
			path = filepath.Join(home, path[2:])
		} else {
			path = filepath.Join(home, path[1:])
		}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}
