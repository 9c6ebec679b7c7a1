// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultGitHubDomain is used when GITHUB_DOMAIN is not set.
const DefaultGitHubDomain = "github.com"

// DefaultJiraIssueType is the issue type used when creating JIRA issues.
const DefaultJiraIssueType = "Task"

// Config holds all configuration parameters for the application.
type Config struct {
	GitHub   GitHubConfig
	Jira     JiraConfig
	LogLevel string
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token  string
	Domain string
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	URL       string
	Username  string
	Token     string
	IssueType string
}

// LoadConfig loads configuration from environment variables only.
func LoadConfig() (*Config, error) {
	return Load(nil)
}

// Load initializes configuration from environment variables. When flags is
// not nil, flags that were set on the command line take precedence.
func Load(flags *pflag.FlagSet) (*Config, error) {
	// Initialize Viper for environment variables
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("github.domain", DefaultGitHubDomain)
	v.SetDefault("jira.issue_type", DefaultJiraIssueType)
	v.SetDefault("log.level", "info")

	// Map specific environment variables
	bindings := map[string]string{
		"github.token":    "GITHUB_TOKEN",
		"github.domain":   "GITHUB_DOMAIN",
		"jira.url":        "JIRA_URL",
		"jira.username":   "JIRA_USERNAME",
		"jira.token":      "JIRA_TOKEN",
		"jira.issue_type": "JIRA_ISSUE_TYPE",
		"log.level":       "LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if flags != nil {
		if flag := flags.Lookup("github-token"); flag != nil {
			if err := v.BindPFlag("github.token", flag); err != nil {
				return nil, fmt.Errorf("failed to bind --github-token: %w", err)
			}
		}
	}

	// Create config structure
	config := &Config{
		GitHub: GitHubConfig{
			Token:  v.GetString("github.token"),
			Domain: v.GetString("github.domain"),
		},
		Jira: JiraConfig{
			URL:       strings.TrimRight(v.GetString("jira.url"), "/"),
			Username:  v.GetString("jira.username"),
			Token:     v.GetString("jira.token"),
			IssueType: v.GetString("jira.issue_type"),
		},
		LogLevel: v.GetString("log.level"),
	}

	if config.GitHub.Domain == "" {
		config.GitHub.Domain = DefaultGitHubDomain
	}
	if config.Jira.IssueType == "" {
		config.Jira.IssueType = DefaultJiraIssueType
	}

	return config, nil
}

// ValidateGitHubConfig validates GitHub-specific configuration.
func ValidateGitHubConfig(config *Config) error {
	if config.GitHub.Token == "" {
		return fmt.Errorf("missing required environment variables: [GITHUB_TOKEN] (or use --github-token)")
	}
	return nil
}

// ValidateJiraConfig validates JIRA-specific configuration.
func ValidateJiraConfig(config *Config) error {
	var missingVars []string

	// JIRA validation
	if config.Jira.URL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if config.Jira.Username == "" {
		missingVars = append(missingVars, "JIRA_USERNAME")
	}
	if config.Jira.Token == "" {
		missingVars = append(missingVars, "JIRA_TOKEN")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}
