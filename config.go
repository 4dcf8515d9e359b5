package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	TrelloKey   string `yaml:"trello_key"`
	TrelloToken string `yaml:"trello_token"`

	GitHubToken  string   `yaml:"github_token"`
	GitHubOrg    string   `yaml:"github_org"`
	GitHubRepos  []string `yaml:"github_repos"` // optional name filter for org mode
	GitHubOwner  string   `yaml:"github_owner"` // single-repo mode
	GitHubRepo   string   `yaml:"github_repo"`
	GitHubBranch string   `yaml:"github_branch"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	LLMModel        string `yaml:"llm_model"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	BoardName       string   `yaml:"board_name"`
	NotesListName   string   `yaml:"notes_list_name"`
	DigestListID    string   `yaml:"digest_list_id"`
	DigestMemberIDs []string `yaml:"digest_member_ids"`
	DigestLabelIDs  []string `yaml:"digest_label_ids"`
	InProgressList  string   `yaml:"in_progress_list"`
	CompletedList   string   `yaml:"completed_list"`

	Timezone   string `yaml:"timezone"`
	AnchorHour int    `yaml:"anchor_hour"`
	DueHour    int    `yaml:"due_hour"`

	DigestSchedule  string `yaml:"digest_schedule"`
	ReportOutputDir string `yaml:"report_output_dir"`

	ListenAddr     string `yaml:"listen_addr"`
	AllowedOrigins string `yaml:"allowed_origins"`

	Location *time.Location `yaml:"-"`
}

// ConfigError reports required settings that were absent before any
// network call was attempted.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required config: %s", strings.Join(e.Missing, ", "))
}

func LoadConfig() Config {
	// Local .env file never overwrites variables already set in the
	// process environment.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}

	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.TrelloKey, "TRELLO_KEY")
	envOverride(&cfg.TrelloToken, "TRELLO_TOKEN")
	envOverride(&cfg.GitHubToken, "GITHUB_TOKEN")
	envOverride(&cfg.GitHubOrg, "GITHUB_ORG")
	envOverride(&cfg.GitHubOwner, "GITHUB_OWNER")
	envOverride(&cfg.GitHubRepo, "GITHUB_REPO")
	envOverride(&cfg.GitHubBranch, "GITHUB_BRANCH")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.BoardName, "BOARD_NAME")
	envOverride(&cfg.NotesListName, "NOTES_LIST_NAME")
	envOverride(&cfg.DigestListID, "DIGEST_LIST_ID")
	envOverride(&cfg.InProgressList, "IN_PROGRESS_LIST")
	envOverride(&cfg.CompletedList, "COMPLETED_LIST")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverrideInt(&cfg.AnchorHour, "ANCHOR_HOUR")
	envOverrideInt(&cfg.DueHour, "DUE_HOUR")
	envOverride(&cfg.DigestSchedule, "DIGEST_SCHEDULE")
	envOverride(&cfg.ReportOutputDir, "REPORT_OUTPUT_DIR")
	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.AllowedOrigins, "ALLOWED_ORIGINS")
	envOverrideList(&cfg.GitHubRepos, "GITHUB_REPOS")
	envOverrideList(&cfg.DigestMemberIDs, "DIGEST_MEMBER_IDS")
	envOverrideList(&cfg.DigestLabelIDs, "DIGEST_LABEL_IDS")

	// Defaults
	if cfg.GitHubBranch == "" {
		cfg.GitHubBranch = "main"
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = defaultAnthropicModel
	}
	if cfg.NotesListName == "" {
		cfg.NotesListName = "Meeting Notes"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.AnchorHour == 0 {
		cfg.AnchorHour = 9
	}
	if cfg.DueHour == 0 {
		cfg.DueHour = 13
	}
	if cfg.ReportOutputDir == "" {
		cfg.ReportOutputDir = "./reports"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8001"
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
	}
	cfg.Location = loc

	if cfg.AnchorHour < 0 || cfg.AnchorHour > 23 {
		log.Fatalf("invalid anchor_hour '%d': must be 0-23", cfg.AnchorHour)
	}
	if cfg.DueHour < 0 || cfg.DueHour > 23 {
		log.Fatalf("invalid due_hour '%d': must be 0-23", cfg.DueHour)
	}

	return cfg
}

// Validate checks the credentials the digest run needs. It runs before
// any network call so a misconfigured deployment fails immediately.
func (c Config) Validate() error {
	var missing []string
	if c.TrelloKey == "" {
		missing = append(missing, "trello_key")
	}
	if c.TrelloToken == "" {
		missing = append(missing, "trello_token")
	}
	if c.BoardName == "" {
		missing = append(missing, "board_name")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

func (c Config) GitHubConfigured() bool {
	return c.GitHubOrg != "" || (c.GitHubOwner != "" && c.GitHubRepo != "")
}

func (c Config) LLMConfigured() bool {
	return c.AnthropicAPIKey != ""
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideList(field *[]string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = nil
		for _, part := range strings.Split(val, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				*field = append(*field, part)
			}
		}
	}
}
