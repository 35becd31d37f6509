package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the settings required by a command mode ("serve", "ask",
// "snapshot"). All problems are reported together.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve", "ask", "snapshot":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode == "serve" && c.Server.Port <= 0 {
		problems = append(problems, "server.port must be > 0")
	}

	switch c.Store.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for driver postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q must be memory, sqlite or postgres", c.Store.Driver))
	}

	if mode != "snapshot" {
		switch c.QA.Backend {
		case "", "none":
		case "anthropic":
			if c.Anthropic.Key == "" {
				problems = append(problems, "anthropic.key is required for qa.backend anthropic")
			}
		case "gemini":
			if c.Gemini.Key == "" {
				problems = append(problems, "gemini.key is required for qa.backend gemini")
			}
		default:
			problems = append(problems, fmt.Sprintf("qa.backend %q must be none, anthropic or gemini", c.QA.Backend))
		}
	}

	if c.History.MaxTurns < 1 {
		problems = append(problems, "history.max_turns must be >= 1")
	}
	if c.Aggregate.AdapterTimeoutSecs < 1 {
		problems = append(problems, "aggregate.adapter_timeout_secs must be >= 1")
	}
	if c.Insight.TrendTolerancePct < 0 || c.Insight.TrendTolerancePct > 100 {
		problems = append(problems, "insight.trend_tolerance_pct must be between 0 and 100")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
