package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wesm/github-issue-archive/internal/apperrors"
)

const (
	// EnvGithubToken is the environment variable name for the GitHub API token
	EnvGithubToken = "ISSUE_ARCHIVE_GITHUB_TOKEN"
	// EnvGithubTokenFallback is used when EnvGithubToken is unset and the
	// file token is empty or the placeholder
	EnvGithubTokenFallback = "GITHUB_TOKEN"

	// placeholderToken is the value written by CreateDefaultConfig
	placeholderToken = "ghp_your_token_here"

	DefaultDatabasePath = "data/issues.db"
	DefaultTemplateDir  = "templates"
	DefaultOutputPath   = "archive/index.html"
)

// Config represents the application configuration
type Config struct {
	// GitHub API token (can also be set via ISSUE_ARCHIVE_GITHUB_TOKEN)
	GitHubToken string `yaml:"github_token" validate:"required"`

	// Path to the SQLite database file
	DatabasePath string `yaml:"database_path" validate:"required"`

	// Repositories to sync, in order, as "owner/name"
	Repositories []string `yaml:"repositories" validate:"required,min=1,dive,ownerrepo"`

	// Directory holding index.html, style.css and script.js
	TemplateDir string `yaml:"template_dir" validate:"required"`

	// Where the rendered archive page is written
	OutputPath string `yaml:"output_path" validate:"required"`

	// REST API root, for GitHub Enterprise. Empty means api.github.com.
	APIBaseURL string `yaml:"api_base_url,omitempty" validate:"omitempty,url"`

	// GraphQL endpoint used by the status command. Empty means api.github.com.
	GraphQLURL string `yaml:"graphql_url,omitempty" validate:"omitempty,url"`

	LogLevel  string `yaml:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn warning error"`
	LogFormat string `yaml:"log_format,omitempty" validate:"omitempty,oneof=text json"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("ownerrepo", func(fl validator.FieldLevel) bool {
		return IsRepositoryString(fl.Field().String())
	})
	return v
}

// IsRepositoryString reports whether s is "owner/name" with exactly one
// separator and both parts non-empty
func IsRepositoryString(s string) bool {
	owner, name, ok := strings.Cut(s, "/")
	return ok && strings.TrimSpace(owner) != "" && strings.TrimSpace(name) != "" && !strings.Contains(name, "/")
}

// LoadConfig loads the configuration from a YAML file, applies the
// environment token override and defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, apperrors.NewConfigurationError("failed to parse config file", err)
	}

	if envToken := os.Getenv(EnvGithubToken); envToken != "" {
		config.GitHubToken = envToken
	} else if envToken := os.Getenv(EnvGithubTokenFallback); envToken != "" && (config.GitHubToken == "" || config.GitHubToken == placeholderToken) {
		config.GitHubToken = envToken
	}

	config.applyDefaults()

	// Relative paths are taken from the config file's directory
	configDir := filepath.Dir(path)
	config.DatabasePath = resolvePath(configDir, config.DatabasePath)
	config.TemplateDir = resolvePath(configDir, config.TemplateDir)
	config.OutputPath = resolvePath(configDir, config.OutputPath)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.DatabasePath == "" {
		c.DatabasePath = DefaultDatabasePath
	}
	if c.TemplateDir == "" {
		c.TemplateDir = DefaultTemplateDir
	}
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutputPath
	}
}

func resolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// Validate checks the configuration and returns a ConfigurationError
// naming the first offending field
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperrors.NewConfigurationError(
				fmt.Sprintf("invalid %s: failed %q check (value %q)", fe.Namespace(), fe.Tag(), fmt.Sprint(fe.Value())), nil)
		}
		return apperrors.NewConfigurationError("invalid configuration", err)
	}

	if c.GitHubToken == placeholderToken {
		return apperrors.NewConfigurationError(
			fmt.Sprintf("github_token is still the placeholder; set it in the config file or %s", EnvGithubToken), nil)
	}

	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateDefaultConfig creates a default configuration file if it doesn't
// exist. It reports whether a file was written.
func CreateDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	config := &Config{
		GitHubToken:  placeholderToken,
		DatabasePath: DefaultDatabasePath,
		Repositories: []string{"example/repo"},
		TemplateDir:  DefaultTemplateDir,
		OutputPath:   DefaultOutputPath,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := SaveConfig(config, path); err != nil {
		return false, err
	}
	return true, nil
}

// AddRepository appends repo to the config file at path unless it is
// already listed. It reports whether the file changed.
func AddRepository(path, repo string) (bool, error) {
	if !IsRepositoryString(repo) {
		return false, apperrors.NewConfigurationError(
			fmt.Sprintf("invalid repository format, expected 'owner/name', got '%s'", repo), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, apperrors.NewConfigurationError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return false, apperrors.NewConfigurationError("failed to parse config file", err)
	}

	for _, existing := range config.Repositories {
		if existing == repo {
			return false, nil
		}
	}

	config.Repositories = append(config.Repositories, repo)
	if err := SaveConfig(&config, path); err != nil {
		return false, err
	}
	return true, nil
}

// TemplateDirFor returns the template directory named by the config file at
// path without validating the rest of it
func TemplateDirFor(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperrors.NewConfigurationError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return "", apperrors.NewConfigurationError("failed to parse config file", err)
	}
	config.applyDefaults()
	return resolvePath(filepath.Dir(path), config.TemplateDir), nil
}
