// Package config centralizes loader configuration. Every tunable is a
// command-line flag whose default is seeded from an environment variable,
// which in turn falls back to an optional YAML file and then to a built-in
// default:
//
//	flag > environment > YAML file (-config / CONFIG_FILE) > built-in
//
// Typical usage:
//
//	cfg, err := config.Load(os.Args[1:])
//
// For tests, prefer LoadFromArgs to keep them hermetic:
//
//	fs := flag.NewFlagSet("test", flag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg, err := config.LoadFromArgs(fs, getenv, []string{"-table=companies_2024"})
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Config holds the process configuration. YAML keys match flag names.
type Config struct {
	ConfigFile string `yaml:"-"`

	// IO
	CSVPath    string `yaml:"csv"`
	SkippedDir string `yaml:"skipped_dir"`

	// Store. For Postgres the DSN may be built from the discrete parts;
	// every other driver needs a full DSN.
	DBDriver   string `yaml:"db_driver"`
	DSN        string `yaml:"dsn"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBName     string `yaml:"db_name"`

	Table       string `yaml:"table"`
	CreateTable bool   `yaml:"create_table"`

	// Parsing
	MaxRecords int    `yaml:"max_records"`
	Comma      string `yaml:"comma"`
	LazyQuotes bool   `yaml:"lazy_quotes"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Metrics
	MetricsBackend  string        `yaml:"metrics_backend"`
	PushgatewayURL  string        `yaml:"pushgateway_url"`
	DatadogAddr     string        `yaml:"datadog_addr"`
	MetricsInterval time.Duration `yaml:"metrics_interval"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		CSVPath:        "BasicCompanyData.csv",
		SkippedDir:     "./skipped",
		DBDriver:       "postgres",
		DBUser:         "postgres",
		DBHost:         "localhost",
		DBPort:         "5432",
		DBName:         "companies",
		Table:          "companies",
		Comma:          ",",
		LogLevel:       "info",
		LogFormat:      "console",
		MetricsBackend: "none",
		PushgatewayURL: "http://localhost:9091",
		DatadogAddr:    "127.0.0.1:8125",
	}
}

// LoadFromArgs defines every flag on fs, seeds each default from getenv
// (and the YAML file named by -config or CONFIG_FILE), then parses args.
// flag.ErrHelp is returned unchanged when -h was requested.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	base := Defaults()
	path := configPath(args, getenv)
	if path != "" {
		if err := mergeFile(&base, path); err != nil {
			return nil, err
		}
	}

	env := envSeeder{getenv: getenv}
	cfg := &Config{}

	fs.StringVar(&cfg.ConfigFile, "config", path, "YAML file seeding defaults beneath env and flags (env CONFIG_FILE).")

	fs.StringVar(&cfg.CSVPath, "csv", env.str("CSV_PATH", base.CSVPath), "Path to the company register CSV (.csv, .gz, .zst or .zip).")
	fs.StringVar(&cfg.SkippedDir, "skipped_dir", env.str("SKIPPED_DIR", base.SkippedDir), "Directory for skipped-row CSV logs; empty disables them.")

	fs.StringVar(&cfg.DBDriver, "db_driver", env.str("DB_DRIVER", base.DBDriver), "Store backend: postgres, mssql, mysql or sqlite.")
	fs.StringVar(&cfg.DSN, "dsn", env.str("DB_DSN", base.DSN), "Full DSN (required for every driver but postgres).")
	fs.StringVar(&cfg.DBUser, "db_user", env.str("PGUSER", base.DBUser), "Postgres user")
	fs.StringVar(&cfg.DBPassword, "db_password", env.str("PGPASSWORD", base.DBPassword), "Postgres password")
	fs.StringVar(&cfg.DBHost, "db_host", env.str("PGHOST", base.DBHost), "Postgres host")
	fs.StringVar(&cfg.DBPort, "db_port", env.str("PGPORT", base.DBPort), "Postgres port")
	fs.StringVar(&cfg.DBName, "db_name", env.str("PGDATABASE", base.DBName), "Postgres database")
	fs.StringVar(&cfg.Table, "table", env.str("TABLE", base.Table), "Destination table, optionally schema-qualified.")
	fs.BoolVar(&cfg.CreateTable, "create_table", env.boolean("CREATE_TABLE", base.CreateTable), "Create the destination table when it does not exist.")

	fs.IntVar(&cfg.MaxRecords, "max_records", env.integer("MAX_RECORDS", base.MaxRecords), "Stop after this many data rows; 0 reads everything.")
	fs.StringVar(&cfg.Comma, "comma", env.str("CSV_COMMA", base.Comma), "Field delimiter (single character).")
	fs.BoolVar(&cfg.LazyQuotes, "lazy_quotes", env.boolean("CSV_LAZY_QUOTES", base.LazyQuotes), "Tolerate stray quotes in unquoted fields.")

	fs.StringVar(&cfg.LogLevel, "log_level", env.str("LOG_LEVEL", base.LogLevel), "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log_format", env.str("LOG_FORMAT", base.LogFormat), "console or json")

	fs.StringVar(&cfg.MetricsBackend, "metrics_backend", env.str("METRICS_BACKEND", base.MetricsBackend), "none, pushgateway or datadog")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway_url", env.str("PUSHGATEWAY_URL", base.PushgatewayURL), "Prometheus Pushgateway base URL")
	fs.StringVar(&cfg.DatadogAddr, "datadog_addr", env.str("DD_AGENT_ADDR", base.DatadogAddr), "DogStatsD address")
	fs.DurationVar(&cfg.MetricsInterval, "metrics_interval", env.duration("METRICS_INTERVAL", base.MetricsInterval), "Push metrics periodically; 0 pushes once at the end.")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the process environment and parses args on a fresh flag set.
func Load(args []string) (*Config, error) {
	return LoadFromArgs(flag.NewFlagSet("companies", flag.ContinueOnError), os.Getenv, args)
}

// configPath finds the YAML file before flags are parsed, so the file can
// seed flag defaults.
func configPath(args []string, getenv func(string) string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			break
		}
		name, val, hasVal := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasVal {
			return val
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return getenv("CONFIG_FILE")
}

// mergeFile overlays the keys present in the YAML file at path onto cfg.
// Unknown keys are rejected so typos do not pass silently.
func mergeFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

// StoreDSN returns the connection string for DBDriver. For Postgres without
// an explicit DSN it is assembled from the discrete connection parts.
func (c *Config) StoreDSN() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	if strings.ToLower(c.DBDriver) != "postgres" {
		return "", fmt.Errorf("-dsn is required for driver %q", c.DBDriver)
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	switch {
	case c.DBPassword != "":
		u.User = url.UserPassword(c.DBUser, c.DBPassword)
	case c.DBUser != "":
		u.User = url.User(c.DBUser)
	}
	return u.String(), nil
}

// CommaRune returns the delimiter as a rune; ',' when unset.
func (c *Config) CommaRune() rune {
	if c.Comma == "" {
		return ','
	}
	if c.Comma == `\t` {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(c.Comma)
	return r
}

// envSeeder reads typed fallbacks through an injected getenv.
type envSeeder struct{ getenv func(string) string }

func (e envSeeder) str(k, d string) string {
	if v := e.getenv(k); v != "" {
		return v
	}
	return d
}

func (e envSeeder) integer(k string, d int) int {
	if v := e.getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return d
}

// boolean accepts 1/0, true/false, yes/no and on/off, case-insensitively.
func (e envSeeder) boolean(k string, d bool) bool {
	switch strings.ToLower(e.getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func (e envSeeder) duration(k string, d time.Duration) time.Duration {
	if v := e.getenv(k); v != "" {
		if p, err := time.ParseDuration(v); err == nil {
			return p
		}
	}
	return d
}
