package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/c360studio/contentmesh/gateway"
	"github.com/joho/godotenv"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "contentmesh.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/contentmesh"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
	// EnvFile is the dotenv file read from the working directory
	EnvFile = ".env"
	// EnvProviderEndpoint overrides provider.endpoint
	EnvProviderEndpoint = "PROVIDER_ENDPOINT"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger  *slog.Logger
	getenv  func(string) string
	workDir string
	homeDir string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithGetenv replaces os.Getenv. Values from the .env file are still
// consulted when getenv returns "".
func WithGetenv(getenv func(string) string) LoaderOption {
	return func(l *Loader) { l.getenv = getenv }
}

// WithWorkDir sets the directory searched for the project config and .env.
func WithWorkDir(dir string) LoaderOption {
	return func(l *Loader) { l.workDir = dir }
}

// WithHomeDir sets the directory holding the user config.
func WithHomeDir(dir string) LoaderOption {
	return func(l *Loader) { l.homeDir = dir }
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{logger: logger, getenv: os.Getenv}
	for _, opt := range opts {
		opt(l)
	}
	if l.workDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			l.workDir = cwd
		}
	}
	if l.homeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			l.homeDir = home
		}
	}
	return l
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/contentmesh/config.yaml)
// 3. Project config (contentmesh.yaml in current or parent directories)
// 4. Explicit config file (when path is non-empty)
// 5. Environment variables, with .env filling in unset names
//
// The profile must be final before step 5, since it names the host and
// port variables.
func (l *Loader) Load(path string, overrides *Config) (*Config, error) {
	config := DefaultConfig()

	userConfigPath := l.userConfigPath()
	if userConfigPath != "" {
		if userConfig, err := LoadFromFile(userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
			config.Merge(userConfig)
		} else if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	if projectConfigPath := l.findProjectConfig(); projectConfigPath != "" {
		if projectConfig, err := LoadFromFile(projectConfigPath); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
			config.Merge(projectConfig)
		} else {
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	if path != "" {
		explicit, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config file", slog.String("path", path))
		config.Merge(explicit)
	}

	// Command-line profile selection decides which env names apply.
	if overrides != nil && overrides.Service.Profile != "" {
		config.Service.Profile = overrides.Service.Profile
	}

	if err := l.applyEnv(config); err != nil {
		return nil, err
	}

	// Flags win over everything.
	config.Merge(overrides)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv overlays environment variables. Values already present in the
// process environment are never replaced by the .env file.
func (l *Loader) applyEnv(config *Config) error {
	dotenv := l.readDotEnv()
	lookup := func(name string) string {
		if v := l.getenv(name); v != "" {
			return v
		}
		return dotenv[name]
	}

	if v := lookup(EnvProviderEndpoint); v != "" {
		config.Provider.Endpoint = v
	}
	config.SetCredential(strings.TrimSpace(lookup(config.Provider.CredentialEnv)))

	profile, ok := gateway.LookupProfile(config.Service.Profile)
	if !ok {
		// Validate reports the unknown profile.
		return nil
	}
	if v := lookup(profile.EnvPrefix + "_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := lookup(profile.EnvPrefix + "_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s_PORT %q: %w", profile.EnvPrefix, v, err)
		}
		config.Server.Port = port
	}
	return nil
}

// readDotEnv reads .env from the working directory. A missing file is empty.
func (l *Loader) readDotEnv() map[string]string {
	if l.workDir == "" {
		return nil
	}
	envPath := filepath.Join(l.workDir, EnvFile)
	values, err := godotenv.Read(envPath)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("Failed to read env file", slog.String("path", envPath), slog.String("error", err.Error()))
		}
		return nil
	}
	l.logger.Debug("Loaded env file", slog.String("path", envPath))
	return values
}

// EnsureUserConfig creates the user config file with defaults if it doesn't
// exist and returns its path.
func (l *Loader) EnsureUserConfig() (string, error) {
	userConfigPath := l.userConfigPath()
	if userConfigPath == "" {
		return "", errors.New("no home directory")
	}

	if _, err := os.Stat(userConfigPath); err == nil {
		return userConfigPath, nil // Already exists
	}

	config := DefaultConfig()
	if err := config.SaveToFile(userConfigPath); err != nil {
		return "", err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return userConfigPath, nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	if l.homeDir == "" {
		return ""
	}
	return filepath.Join(l.homeDir, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for contentmesh.yaml in the work directory and its parents
func (l *Loader) findProjectConfig() string {
	if l.workDir == "" {
		return ""
	}

	dir := l.workDir
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
