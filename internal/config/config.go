package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/evanschultz/funnel/internal/domain"
)

type DatabaseDriver string

const (
	DriverSQLite   DatabaseDriver = "sqlite"
	DriverPostgres DatabaseDriver = "postgres"
)

type PreferencesBackend string

const (
	PreferencesFile     PreferencesBackend = "file"
	PreferencesDatabase PreferencesBackend = "database"
)

type Config struct {
	Database    DatabaseConfig    `toml:"database"`
	Identity    IdentityConfig    `toml:"identity"`
	Board       BoardConfig       `toml:"board"`
	Card        CardConfig        `toml:"card"`
	Preferences PreferencesConfig `toml:"preferences"`
	Pipelines   PipelinesConfig   `toml:"pipelines"`
	Logging     LoggingConfig     `toml:"logging"`
	Server      ServerConfig      `toml:"server"`
}

type DatabaseConfig struct {
	Driver DatabaseDriver `toml:"driver"`
	Path   string         `toml:"path"`
	DSN    string         `toml:"dsn"`
}

type IdentityConfig struct {
	User string `toml:"user"`
}

type BoardConfig struct {
	DefaultPipeline    string `toml:"default_pipeline"`
	DragThreshold      int    `toml:"drag_threshold"`
	ActivationWindowMS int    `toml:"activation_window_ms"`
	ToastSeconds       int    `toml:"toast_seconds"`
}

type CardConfig struct {
	DefaultFields  []string `toml:"default_fields"`
	CurrencyPrefix string   `toml:"currency_prefix"`
}

type PreferencesConfig struct {
	Backend PreferencesBackend `toml:"backend"`
	Path    string             `toml:"path"`
	Watch   bool               `toml:"watch"`
}

type PipelinesConfig struct {
	Leads         PipelineConfig `toml:"leads"`
	Opportunities PipelineConfig `toml:"opportunities"`
}

type PipelineConfig struct {
	Stages []StageConfig `toml:"stages"`
}

type StageConfig struct {
	ID    string `toml:"id"`
	Title string `toml:"title"`
	Color string `toml:"color"`
}

type LoggingConfig struct {
	Level string        `toml:"level"`
	File  LogFileConfig `toml:"file"`
}

// LogFileConfig controls the rotating file sink.
type LogFileConfig struct {
	Enabled    bool   `toml:"enabled"`
	Dir        string `toml:"dir"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type ServerConfig struct {
	Bind        string `toml:"bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

func stageConfigs(p domain.Pipeline) []StageConfig {
	templates := domain.DefaultStageTemplates(p)
	out := make([]StageConfig, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, StageConfig{ID: tpl.ID, Title: tpl.Title, Color: tpl.Color})
	}
	return out
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   dbPath,
		},
		Identity: IdentityConfig{
			User: "local",
		},
		Board: BoardConfig{
			DefaultPipeline:    string(domain.PipelineLeads),
			DragThreshold:      2,
			ActivationWindowMS: 400,
			ToastSeconds:       4,
		},
		Card: CardConfig{
			DefaultFields:  domain.FieldStrings(domain.DefaultCardFields()),
			CurrencyPrefix: "R$",
		},
		Preferences: PreferencesConfig{
			Backend: PreferencesFile,
			Watch:   true,
		},
		Pipelines: PipelinesConfig{
			Leads:         PipelineConfig{Stages: stageConfigs(domain.PipelineLeads)},
			Opportunities: PipelineConfig{Stages: stageConfigs(domain.PipelineOpportunities)},
		},
		Logging: LoggingConfig{
			Level: "info",
			File: LogFileConfig{
				Enabled:    true,
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
		},
		Server: ServerConfig{
			Bind:        "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	// Stage tables from the file replace the seeded lists instead of extending them.
	cfg.Pipelines = PipelinesConfig{}
	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}
	if len(cfg.Pipelines.Leads.Stages) == 0 {
		cfg.Pipelines.Leads = defaults.Pipelines.Leads
	}
	if len(cfg.Pipelines.Opportunities.Stages) == 0 {
		cfg.Pipelines.Opportunities = defaults.Pipelines.Opportunities
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is fine.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays FUNNEL_* environment variables onto cfg.
func (c Config) ApplyEnv(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	if v := env("FUNNEL_DATABASE_DRIVER"); v != "" {
		c.Database.Driver = DatabaseDriver(strings.ToLower(v))
	}
	if v := env("FUNNEL_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
		if env("FUNNEL_DATABASE_DRIVER") == "" {
			c.Database.Driver = DriverPostgres
		}
	}
	if v := env("FUNNEL_USER"); v != "" {
		c.Identity.User = v
	}
	if v := env("FUNNEL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := env("FUNNEL_SERVER_BIND"); v != "" {
		c.Server.Bind = v
	}
	if v := env("FUNNEL_DRAG_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse FUNNEL_DRAG_THRESHOLD: %w", err)
		}
		c.Board.DragThreshold = n
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, "":
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database path is required")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database.driver: %q", c.Database.Driver)
	}

	if strings.TrimSpace(c.Identity.User) == "" {
		return errors.New("identity.user is required")
	}

	if _, err := domain.ParsePipeline(c.Board.DefaultPipeline); err != nil {
		return fmt.Errorf("invalid board.default_pipeline: %q", c.Board.DefaultPipeline)
	}
	if c.Board.DragThreshold < 1 {
		return errors.New("board.drag_threshold must be >= 1")
	}
	if c.Board.ActivationWindowMS < 1 {
		return errors.New("board.activation_window_ms must be >= 1")
	}
	if c.Board.ToastSeconds < 0 {
		return errors.New("board.toast_seconds must be >= 0")
	}

	if len(c.Card.DefaultFields) > domain.MaxVisibleCardFields {
		return fmt.Errorf("card.default_fields allows at most %d entries", domain.MaxVisibleCardFields)
	}
	for i, field := range c.Card.DefaultFields {
		if !domain.IsKnownField(domain.FieldID(strings.TrimSpace(field))) {
			return fmt.Errorf("card.default_fields[%d] references unknown field %q", i, field)
		}
	}

	switch c.Preferences.Backend {
	case PreferencesFile, PreferencesDatabase, "":
	default:
		return fmt.Errorf("invalid preferences.backend: %q", c.Preferences.Backend)
	}

	for _, p := range domain.Pipelines() {
		if err := validateStages(p, c.Pipelines.stages(p)); err != nil {
			return err
		}
	}

	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Logging.File.MaxSizeMB < 0 || c.Logging.File.MaxBackups < 0 || c.Logging.File.MaxAgeDays < 0 {
		return errors.New("logging.file rotation limits must be >= 0")
	}
	return nil
}

func validateStages(p domain.Pipeline, stages []StageConfig) error {
	seen := map[string]struct{}{}
	for idx, stage := range stages {
		id := strings.TrimSpace(strings.ToLower(stage.ID))
		if id == "" {
			return fmt.Errorf("pipelines.%s.stages[%d].id is required", p, idx)
		}
		if strings.TrimSpace(stage.Title) == "" {
			return fmt.Errorf("pipelines.%s.stages[%d].title is required", p, idx)
		}
		if _, err := domain.NormalizeColor(stage.Color); err != nil {
			return fmt.Errorf("pipelines.%s.stages[%d].color: %w", p, idx, err)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("pipelines.%s.stages[%d].id is duplicated: %s", p, idx, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (p PipelinesConfig) stages(pipeline domain.Pipeline) []StageConfig {
	switch pipeline {
	case domain.PipelineLeads:
		return p.Leads.Stages
	case domain.PipelineOpportunities:
		return p.Opportunities.Stages
	default:
		return nil
	}
}

// StageTemplates converts the configured stage seeds into domain templates.
func (c Config) StageTemplates() map[domain.Pipeline][]domain.StageTemplate {
	out := make(map[domain.Pipeline][]domain.StageTemplate, len(domain.Pipelines()))
	for _, p := range domain.Pipelines() {
		stages := c.Pipelines.stages(p)
		if len(stages) == 0 {
			continue
		}
		templates := make([]domain.StageTemplate, 0, len(stages))
		for _, stage := range stages {
			templates = append(templates, domain.StageTemplate{ID: stage.ID, Title: stage.Title, Color: stage.Color})
		}
		out[p] = templates
	}
	return out
}

// CardFields returns the configured default card field order.
func (c Config) CardFields() []domain.FieldID {
	if len(c.Card.DefaultFields) == 0 {
		return domain.DefaultCardFields()
	}
	return domain.ParseFieldIDs(c.Card.DefaultFields)
}

func (c Config) DefaultPipeline() domain.Pipeline {
	p, err := domain.ParsePipeline(c.Board.DefaultPipeline)
	if err != nil {
		return domain.PipelineLeads
	}
	return p
}

func (c Config) ActivationWindow() time.Duration {
	return time.Duration(c.Board.ActivationWindowMS) * time.Millisecond
}

func (c Config) ToastDuration() time.Duration {
	return time.Duration(c.Board.ToastSeconds) * time.Second
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
