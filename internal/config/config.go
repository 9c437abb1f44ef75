package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/G1P0/vkomment/internal/schedule"
)

const (
	DefaultGroup       = "stawclub"
	DefaultComment     = "+"
	DefaultAttempts    = 300
	DefaultWindow      = 13
	DefaultFreshness   = 666 * time.Second
	DefaultInterval    = time.Second
	DefaultTimeout     = 3 * time.Second
	DefaultAPIVersion  = "5.131"
	DefaultTokenEnv    = "VK_TOKEN"
	DefaultBotKeyEnv   = "VK_BOT_KEY"
	DefaultTGTokenEnv  = "TG_BOT_TOKEN"
	DefaultHistoryFile = "history.db"
)

// Duration: time.Duration из строк вида "666s" / "1m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	VK      VKConfig      `yaml:"vk"`
	Wait    WaitConfig    `yaml:"wait"`
	Storage StorageConfig `yaml:"storage"`
	Notify  NotifyConfig  `yaml:"notify"`
}

type VKConfig struct {
	APIVersion string   `yaml:"api_version"`
	BaseURL    string   `yaml:"base_url"`
	Timeout    Duration `yaml:"timeout"`
	TokenEnv   string   `yaml:"token_env"`
}

type WaitConfig struct {
	Group     string   `yaml:"group"`
	PostedAt  string   `yaml:"posted_at"`
	LocalTime bool     `yaml:"local_time"`
	Comment   string   `yaml:"comment"`
	Attempts  *int     `yaml:"attempts"` // 0 тоже допустим, поэтому указатель
	Window    int      `yaml:"window"`
	Freshness Duration `yaml:"freshness"`
	Interval  Duration `yaml:"interval"`
}

// MaxAttempts: сколько повторов после первого запроса.
func (w WaitConfig) MaxAttempts() int {
	if w.Attempts == nil {
		return DefaultAttempts
	}
	return *w.Attempts
}

type StorageConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

type NotifyConfig struct {
	OnFinish    bool           `yaml:"on_finish"`
	VKUserID    string         `yaml:"vk_user_id"`
	VKBotKeyEnv string         `yaml:"vk_bot_key_env"`
	Telegram    TelegramConfig `yaml:"telegram"`

	// из env при загрузке
	VKBotKey string `yaml:"-"`
}

type TelegramConfig struct {
	TokenEnv string `yaml:"token_env"`
	ChatID   int64  `yaml:"chat_id"`

	Token string `yaml:"-"`
}

func (n NotifyConfig) HasVK() bool { return n.VKUserID != "" && n.VKBotKey != "" }

func (n NotifyConfig) HasTelegram() bool { return n.Telegram.Token != "" && n.Telegram.ChatID != 0 }

// DefaultPath: $XDG_CONFIG_HOME/vkomment/config.yaml
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "vkomment", "config.yaml"), nil
}

// DefaultDataDir: $XDG_DATA_HOME/vkomment
func DefaultDataDir() (string, error) {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "vkomment"), nil
}

// LoadDotenv подхватывает .env; уже выставленные переменные не перетираются.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load читает yaml (нет файла, значит дефолты), подставляет env и проверяет.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// без файла живём на дефолтах
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	resolveEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) error {
	if cfg.VK.APIVersion == "" {
		cfg.VK.APIVersion = DefaultAPIVersion
	}
	if cfg.VK.Timeout.Duration == 0 {
		cfg.VK.Timeout.Duration = DefaultTimeout
	}
	if cfg.VK.TokenEnv == "" {
		cfg.VK.TokenEnv = DefaultTokenEnv
	}
	if cfg.Wait.Group == "" {
		cfg.Wait.Group = DefaultGroup
	}
	if cfg.Wait.PostedAt == "" {
		cfg.Wait.PostedAt = schedule.DefaultClock
	}
	if cfg.Wait.Comment == "" {
		cfg.Wait.Comment = DefaultComment
	}
	if cfg.Wait.Window == 0 {
		cfg.Wait.Window = DefaultWindow
	}
	if cfg.Wait.Freshness.Duration == 0 {
		cfg.Wait.Freshness.Duration = DefaultFreshness
	}
	if cfg.Wait.Interval.Duration == 0 {
		cfg.Wait.Interval.Duration = DefaultInterval
	}
	if cfg.Storage.Path == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return err
		}
		cfg.Storage.Path = filepath.Join(dir, DefaultHistoryFile)
	}
	if cfg.Notify.VKBotKeyEnv == "" {
		cfg.Notify.VKBotKeyEnv = DefaultBotKeyEnv
	}
	if cfg.Notify.Telegram.TokenEnv == "" {
		cfg.Notify.Telegram.TokenEnv = DefaultTGTokenEnv
	}
	return nil
}

func resolveEnv(cfg *Config) {
	cfg.Notify.VKBotKey = getenv(cfg.Notify.VKBotKeyEnv, "")
	cfg.Notify.Telegram.Token = getenv(cfg.Notify.Telegram.TokenEnv, "")
}

func Validate(cfg *Config) error {
	if _, _, err := schedule.ParseClock(cfg.Wait.PostedAt); err != nil {
		return fmt.Errorf("wait.posted_at: %w", err)
	}
	if cfg.Wait.MaxAttempts() < 0 {
		return fmt.Errorf("wait.attempts: must be >= 0, got %d", cfg.Wait.MaxAttempts())
	}
	if cfg.Wait.Window < 1 || cfg.Wait.Window > 100 {
		return fmt.Errorf("wait.window: must be in 1..100, got %d", cfg.Wait.Window)
	}
	if cfg.Wait.Freshness.Duration <= 0 {
		return errors.New("wait.freshness: must be positive")
	}
	if cfg.Wait.Interval.Duration <= 0 {
		return errors.New("wait.interval: must be positive")
	}
	if cfg.VK.Timeout.Duration <= 0 {
		return errors.New("vk.timeout: must be positive")
	}
	return nil
}

func getenv(k, def string) string {
	if k == "" {
		return def
	}
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
