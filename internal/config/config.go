package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DefaultAppleVerifyURL  = "https://buy.itunes.apple.com/verifyReceipt"
	DefaultAppleSandboxURL = "https://sandbox.itunes.apple.com/verifyReceipt"

	defaultAddress            = ":4001"
	defaultDriver             = "mysql"
	defaultTable              = "iap_subscriptions"
	defaultUsersTable         = "users"
	defaultRedisChannel       = "iap:subscriptions"
	defaultServiceAccountPath = "storage/app/private/google-service-account.json"
	defaultAppleTimeout       = 30 * time.Second
	defaultAppleConnect       = 10 * time.Second
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Config struct {
	Server struct {
		Address      string        `yaml:"address"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`
	App struct {
		Debug bool `yaml:"debug"`
	} `yaml:"app"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Database struct {
		Driver string `yaml:"driver"`
		URL    string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`
	IAP IAPConfig `yaml:"iap"`
}

// IAPConfig is handed to the verifiers and the store at startup.
type IAPConfig struct {
	Table      string       `yaml:"table"`
	UsersTable string       `yaml:"users_table"`
	Apple      AppleConfig  `yaml:"apple"`
	Google     GoogleConfig `yaml:"google"`
}

type AppleConfig struct {
	SharedSecret     string        `yaml:"shared_secret"`
	VerifyReceiptURL string        `yaml:"verify_receipt_url"`
	SandboxURL       string        `yaml:"sandbox_url"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	Timeout          time.Duration `yaml:"timeout"`
}

type GoogleConfig struct {
	ServiceAccountPath string `yaml:"service_account_path"`
	PackageName        string `yaml:"package_name"`
	// Zero means no client-side deadline.
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns a config with every documented fallback applied.
func Default() Config {
	var cfg Config
	cfg.Server.Address = defaultAddress
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 40 * time.Second
	cfg.Log.Level = "info"
	cfg.Database.Driver = defaultDriver
	cfg.Redis.Channel = defaultRedisChannel
	cfg.IAP.Table = defaultTable
	cfg.IAP.UsersTable = defaultUsersTable
	cfg.IAP.Apple.VerifyReceiptURL = DefaultAppleVerifyURL
	cfg.IAP.Apple.SandboxURL = DefaultAppleSandboxURL
	cfg.IAP.Apple.ConnectTimeout = defaultAppleConnect
	cfg.IAP.Apple.Timeout = defaultAppleTimeout
	cfg.IAP.Google.ServiceAccountPath = defaultServiceAccountPath
	return cfg
}

// LoadConfig reads path on top of the defaults and then applies environment
// overrides. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("unmarshal config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Address = ":" + v
	}
	setString(&cfg.Server.Address, "IAP_SERVER_ADDRESS")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.IAP.Table, "IAP_TABLE_NAME")
	setString(&cfg.IAP.UsersTable, "IAP_USERS_TABLE")
	setString(&cfg.IAP.Apple.SharedSecret, "IAP_APPLE_SHARED_SECRET")
	setString(&cfg.IAP.Apple.VerifyReceiptURL, "IAP_APPLE_VERIFY_URL")
	setString(&cfg.IAP.Apple.SandboxURL, "IAP_APPLE_SANDBOX_URL")
	setString(&cfg.IAP.Google.ServiceAccountPath, "IAP_GOOGLE_SERVICE_ACCOUNT_PATH")
	setString(&cfg.IAP.Google.PackageName, "IAP_GOOGLE_PACKAGE_NAME")

	if v := os.Getenv("APP_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse APP_DEBUG: %w", err)
		}
		cfg.App.Debug = debug
	}
	return nil
}

func setString(dst *string, name string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return errors.New("database.url (DATABASE_URL) is required")
	}
	switch c.Database.Driver {
	case "mysql", "pgx", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if !identRe.MatchString(c.IAP.Table) {
		return fmt.Errorf("invalid iap.table: %q", c.IAP.Table)
	}
	if !identRe.MatchString(c.IAP.UsersTable) {
		return fmt.Errorf("invalid iap.users_table: %q", c.IAP.UsersTable)
	}
	return nil
}
