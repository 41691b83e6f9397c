package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config captures environment driven configuration values for the routines service.
type Config struct {
	HTTPPort        int
	SQLiteDSN       string
	IdentityBaseURL string
	HolidayFile     string
	HolidayLocale   string
	// FairnessLookbackDays bounds the fairness history window; zero means
	// all-time.
	FairnessLookbackDays int
	SweepCronSpec        string
	RequestsPerSecond    float64
	RequestBurst         int
	AuditBuffer          int
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to sensible defaults; invalid values are
// accumulated and reported together.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:          8080,
		SQLiteDSN:         "file:routines.db?_foreign_keys=on",
		HolidayLocale:     "sv-SE",
		SweepCronSpec:     "15 0 * * *",
		RequestsPerSecond: 25,
		RequestBurst:      50,
		AuditBuffer:       64,
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("ROUTINES_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "ROUTINES_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("ROUTINES_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	cfg.IdentityBaseURL = strings.TrimSpace(os.Getenv("ROUTINES_IDENTITY_BASE_URL"))
	cfg.HolidayFile = strings.TrimSpace(os.Getenv("ROUTINES_HOLIDAY_FILE"))

	if locale := strings.TrimSpace(os.Getenv("ROUTINES_HOLIDAY_LOCALE")); locale != "" {
		cfg.HolidayLocale = locale
	}

	if lookback := strings.TrimSpace(os.Getenv("ROUTINES_FAIRNESS_LOOKBACK_DAYS")); lookback != "" {
		days, err := strconv.Atoi(lookback)
		if err != nil || days < 0 {
			invalid = append(invalid, "ROUTINES_FAIRNESS_LOOKBACK_DAYS")
		} else {
			cfg.FairnessLookbackDays = days
		}
	}

	if spec := strings.TrimSpace(os.Getenv("ROUTINES_SWEEP_CRON")); spec != "" {
		cfg.SweepCronSpec = spec
	}

	if rps := strings.TrimSpace(os.Getenv("ROUTINES_RATE_LIMIT_RPS")); rps != "" {
		limit, err := strconv.ParseFloat(rps, 64)
		if err != nil || limit <= 0 {
			invalid = append(invalid, "ROUTINES_RATE_LIMIT_RPS")
		} else {
			cfg.RequestsPerSecond = limit
		}
	}

	if burst := strings.TrimSpace(os.Getenv("ROUTINES_RATE_LIMIT_BURST")); burst != "" {
		n, err := strconv.Atoi(burst)
		if err != nil || n <= 0 {
			invalid = append(invalid, "ROUTINES_RATE_LIMIT_BURST")
		} else {
			cfg.RequestBurst = n
		}
	}

	if buffer := strings.TrimSpace(os.Getenv("ROUTINES_AUDIT_BUFFER")); buffer != "" {
		n, err := strconv.Atoi(buffer)
		if err != nil || n <= 0 {
			invalid = append(invalid, "ROUTINES_AUDIT_BUFFER")
		} else {
			cfg.AuditBuffer = n
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
