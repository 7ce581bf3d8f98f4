package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/idna"
	"gopkg.in/yaml.v3"
)

const (
	defaultInterval       = 120 * time.Second
	defaultTTL            = 120
	defaultMetricsAddr    = ":9090"
	defaultLogLevel       = "info"
	defaultLogEnv         = "prod"
	defaultRetryAttempts  = 3
	defaultInitialBackoff = 2 * time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// defaultEndpoints are the IP echo services tried in order when none are
// configured. Both answer with IPv4 only, so a fallback never flips the
// address family.
var defaultEndpoints = []string{
	"https://api.ipify.org",
	"https://ipv4.icanhazip.com",
}

type Config struct {
	Interval    time.Duration `yaml:"interval"`
	MetricsAddr string        `yaml:"metricsAddr"`
	Log         Log           `yaml:"log"`
	Resolver    Resolver      `yaml:"resolver"`
	Retry       Retry         `yaml:"retry"`
	Targets     []Target      `yaml:"targets"`
}

type Log struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
	File  string `yaml:"file"`
}

type Resolver struct {
	Endpoints []string `yaml:"endpoints"`
}

// Retry bounds the in-cycle retry of IP resolution. A cycle that exhausts
// MaxAttempts is skipped entirely; no target is touched.
type Retry struct {
	MaxAttempts    int           `yaml:"maxAttempts"`
	InitialBackoff time.Duration `yaml:"initialBackoff"`
	MaxBackoff     time.Duration `yaml:"maxBackoff"`
}

// Target describes one DNS address record to keep pointed at the current
// public IP. Proxied is a pointer so an unset value can default to true.
type Target struct {
	Token      string `yaml:"token"`
	ZoneID     string `yaml:"zoneId"`
	RecordName string `yaml:"recordName"`
	Proxied    *bool  `yaml:"proxied"`
	TTL        int    `yaml:"ttl"`
}

func (t Target) ProxiedOrDefault() bool {
	if t.Proxied == nil {
		return true
	}
	return *t.Proxied
}

func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			slog.Default().Warn("fail load .env file", "error", err)
		}
	}

	configFile := true
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Default().Debug("no config file, using environment only", "path", path)
		configFile = false
	}

	var cfg Config
	if configFile {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			f.Close()
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			slog.Default().Warn("fail close config file", "path", path, "error", err)
		}
	}

	cfg.applyEnv()

	envTargets, err := targetsFromEnv()
	if err != nil {
		return nil, err
	}
	cfg.Targets = append(cfg.Targets, envTargets...)

	cfg.applyDefaults()

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyEnv() {
	if interval := os.Getenv("CLOUDFLARE_DDNS_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Interval = d
		} else {
			slog.Default().Warn("fail parse interval to duration from string", "interval", interval, "error", err)
		}
	}
	if addr := os.Getenv("CLOUDFLARE_DDNS_METRICS_ADDR"); addr != "" {
		cfg.MetricsAddr = addr
	}
	if level := os.Getenv("CLOUDFLARE_DDNS_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if env := os.Getenv("CLOUDFLARE_DDNS_LOG_ENV"); env != "" {
		cfg.Log.Env = env
	}
	if file := os.Getenv("CLOUDFLARE_DDNS_LOG_FILE"); file != "" {
		cfg.Log.File = file
	}
	if endpoints := os.Getenv("CLOUDFLARE_DDNS_RESOLVER_ENDPOINTS"); endpoints != "" {
		cfg.Resolver.Endpoints = strings.Split(endpoints, ",")
	}
	if attempts := os.Getenv("CLOUDFLARE_DDNS_RETRY_MAX_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil {
			cfg.Retry.MaxAttempts = n
		} else {
			slog.Default().Warn("fail parse retry attempts to int from string", "attempts", attempts, "error", err)
		}
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.Interval == 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = defaultMetricsAddr
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Env == "" {
		cfg.Log.Env = defaultLogEnv
	}
	if len(cfg.Resolver.Endpoints) == 0 {
		cfg.Resolver.Endpoints = defaultEndpoints
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = defaultRetryAttempts
	}
	if cfg.Retry.InitialBackoff == 0 {
		cfg.Retry.InitialBackoff = defaultInitialBackoff
	}
	if cfg.Retry.MaxBackoff == 0 {
		cfg.Retry.MaxBackoff = defaultMaxBackoff
	}
	for i := range cfg.Targets {
		if cfg.Targets[i].TTL == 0 {
			cfg.Targets[i].TTL = defaultTTL
		}
	}
}

// normalize validates every target and converts record names to their ASCII
// form so internationalized names compare equal to what the provider returns.
func (cfg *Config) normalize() error {
	if len(cfg.Targets) == 0 {
		return errors.New("no record targets configured: set API_TOKEN, ZONE_ID and RECORD_NAME or list targets in the config file")
	}
	for i := range cfg.Targets {
		t := &cfg.Targets[i]
		var missing []string
		if t.Token == "" {
			missing = append(missing, "token")
		}
		if t.ZoneID == "" {
			missing = append(missing, "zone id")
		}
		if t.RecordName == "" {
			missing = append(missing, "record name")
		}
		if len(missing) > 0 {
			return fmt.Errorf("target %d: missing %s", i+1, strings.Join(missing, ", "))
		}

		name, err := idna.ToASCII(t.RecordName)
		if err != nil {
			return fmt.Errorf("target %d: invalid record name %q: %w", i+1, t.RecordName, err)
		}
		t.RecordName = name
	}
	return nil
}

// targetsFromEnv reads the numbered form (API_TOKEN_1, ZONE_ID_1,
// RECORD_NAME_1, PROXIED_1, _2, ...) first, scanning until the first index
// where none of the three required variables is set. If no numbered target
// exists, the singular form (API_TOKEN, ZONE_ID, RECORD_NAME, PROXIED) is
// tried. A partially defined target is an error rather than a silent skip.
func targetsFromEnv() ([]Target, error) {
	var targets []Target
	for i := 1; ; i++ {
		suffix := "_" + strconv.Itoa(i)
		t, ok, err := targetFromEnv(suffix)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		targets = append(targets, t)
	}
	if len(targets) > 0 {
		return targets, nil
	}

	t, ok, err := targetFromEnv("")
	if err != nil {
		return nil, err
	}
	if ok {
		targets = append(targets, t)
	}
	return targets, nil
}

func targetFromEnv(suffix string) (Target, bool, error) {
	token := os.Getenv("API_TOKEN" + suffix)
	zoneID := os.Getenv("ZONE_ID" + suffix)
	recordName := os.Getenv("RECORD_NAME" + suffix)

	if token == "" && zoneID == "" && recordName == "" {
		return Target{}, false, nil
	}

	var missing []string
	if token == "" {
		missing = append(missing, "API_TOKEN"+suffix)
	}
	if zoneID == "" {
		missing = append(missing, "ZONE_ID"+suffix)
	}
	if recordName == "" {
		missing = append(missing, "RECORD_NAME"+suffix)
	}
	if len(missing) > 0 {
		return Target{}, false, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	t := Target{
		Token:      token,
		ZoneID:     zoneID,
		RecordName: recordName,
	}
	if proxied := os.Getenv("PROXIED" + suffix); proxied != "" {
		b, err := strconv.ParseBool(strings.ToLower(proxied))
		if err != nil {
			slog.Default().Warn("fail parse proxied to bool from string", "proxied", proxied)
		} else {
			t.Proxied = &b
		}
	}
	if ttl := os.Getenv("TTL" + suffix); ttl != "" {
		n, err := strconv.Atoi(ttl)
		if err != nil {
			slog.Default().Warn("fail parse ttl to int from string", "ttl", ttl, "error", err)
		} else {
			t.TTL = n
		}
	}
	return t, true, nil
}
