package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap/zapcore"

	"companyload/internal/storage"
)

// IssueSeverity is the severity of a configuration finding.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path names the flag.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Drivers lists the supported store backends.
var Drivers = []string{"postgres", "mssql", "mysql", "sqlite"}

// Validate lints c without mutating it.
func Validate(c *Config) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.CSVPath) == "" {
		add(SeverityError, "csv", "input path must not be empty")
	}

	driver := strings.ToLower(c.DBDriver)
	if !slices.Contains(Drivers, driver) {
		add(SeverityError, "db_driver", "unsupported driver %q (want one of %s)", c.DBDriver, strings.Join(Drivers, ", "))
	} else if driver != "postgres" && c.DSN == "" {
		add(SeverityError, "dsn", "a DSN is required for driver %q", driver)
	}
	if err := storage.ValidateTable(c.Table); err != nil {
		add(SeverityError, "table", "%v", err)
	}

	if c.MaxRecords < 0 {
		add(SeverityError, "max_records", "must be >= 0, got %d", c.MaxRecords)
	} else if c.MaxRecords > 0 {
		add(SeverityWarning, "max_records", "only the first %d rows will be loaded", c.MaxRecords)
	}
	if c.Comma != `\t` && utf8.RuneCountInString(c.Comma) != 1 {
		add(SeverityError, "comma", "delimiter must be a single character, got %q", c.Comma)
	} else if r := c.CommaRune(); r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		add(SeverityError, "comma", "invalid delimiter %q", c.Comma)
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		add(SeverityError, "log_level", "%v", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		add(SeverityError, "log_format", "want console or json, got %q", c.LogFormat)
	}

	switch strings.ToLower(c.MetricsBackend) {
	case "", "none":
		if c.MetricsInterval > 0 {
			add(SeverityWarning, "metrics_interval", "ignored without a metrics backend")
		}
	case "pushgateway":
		if u, err := url.Parse(c.PushgatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
			add(SeverityError, "pushgateway_url", "invalid URL %q", c.PushgatewayURL)
		}
	case "datadog":
		if c.DatadogAddr == "" {
			add(SeverityError, "datadog_addr", "address must not be empty")
		}
	default:
		add(SeverityError, "metrics_backend", "want none, pushgateway or datadog, got %q", c.MetricsBackend)
	}
	if c.MetricsInterval < 0 {
		add(SeverityError, "metrics_interval", "must be >= 0, got %s", c.MetricsInterval)
	}

	return issues
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

