package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Workflow WorkflowConfig `toml:"workflow"`
	Cache    CacheConfig    `toml:"cache"`
	Backup   BackupConfig   `toml:"backup"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type ServerConfig struct {
	Bind           string   `toml:"bind"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// WorkflowConfig fixes the ordered department sequence every activity
// passes through. Changing it on a database with live activities is not
// supported.
type WorkflowConfig struct {
	Departments []string `toml:"departments"`
}

// CacheConfig holds per-read-path TTLs in milliseconds.
type CacheConfig struct {
	DepartmentListMS    int `toml:"department_list_ms"`
	DepartmentHistoryMS int `toml:"department_history_ms"`
	NotificationsMS     int `toml:"notifications_ms"`
	StatsMS             int `toml:"stats_ms"`
}

type BackupConfig struct {
	Enabled         bool   `toml:"enabled"`
	IntervalMinutes int    `toml:"interval_minutes"`
	Dir             string `toml:"dir"`
}

func defaultDepartments() []string {
	return []string{"gabarito", "impressao", "batida", "costura", "embalagem"}
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Server: ServerConfig{
			Bind:           "127.0.0.1:8080",
			AllowedOrigins: []string{"*"},
		},
		Workflow: WorkflowConfig{
			Departments: defaultDepartments(),
		},
		Cache: CacheConfig{
			DepartmentListMS:    5000,
			DepartmentHistoryMS: 10000,
			NotificationsMS:     2000,
			StatsMS:             5000,
		},
		Backup: BackupConfig{
			Enabled:         false,
			IntervalMinutes: 60,
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

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if len(c.Workflow.Departments) == 0 {
		return errors.New("workflow.departments must include at least one department")
	}
	seen := map[string]struct{}{}
	for idx, dept := range c.Workflow.Departments {
		name := strings.TrimSpace(strings.ToLower(dept))
		if name == "" {
			return fmt.Errorf("workflow.departments[%d] is empty", idx)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("workflow.departments[%d] is duplicated: %s", idx, name)
		}
		seen[name] = struct{}{}
	}

	for field, ms := range map[string]int{
		"cache.department_list_ms":    c.Cache.DepartmentListMS,
		"cache.department_history_ms": c.Cache.DepartmentHistoryMS,
		"cache.notifications_ms":      c.Cache.NotificationsMS,
		"cache.stats_ms":              c.Cache.StatsMS,
	} {
		if ms < 0 {
			return fmt.Errorf("%s must be >= 0", field)
		}
	}

	if c.Backup.Enabled {
		if c.Backup.IntervalMinutes <= 0 {
			return errors.New("backup.interval_minutes must be > 0 when backups are enabled")
		}
		if strings.TrimSpace(c.Backup.Dir) == "" {
			return errors.New("backup.dir is required when backups are enabled")
		}
	}

	return nil
}

// TTL converts one millisecond field into a duration.
func (c CacheConfig) TTL(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
