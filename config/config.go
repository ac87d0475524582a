package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gymchess/bots"

	// loads .env into the environment before LoadConfig runs
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Logs     LogConfig
	HTTPAddr string
	Bot      BotConfig
}

type LogConfig struct {
	Style string
	Level string
}

type BotConfig struct {
	ThinkDelay  time.Duration
	DepthMedium int
	DepthHard   int
	DepthGM     int
}

// LoadConfig reads the environment. Unset values fall back to defaults; set but
// malformed numbers are an error.
func LoadConfig() (*Config, error) {
	delayMS, err := intEnv("BOT_THINK_DELAY_MS", 300)
	if err != nil {
		return nil, err
	}
	medium, err := intEnv("BOT_DEPTH_MEDIUM", 2)
	if err != nil {
		return nil, err
	}
	hard, err := intEnv("BOT_DEPTH_HARD", 3)
	if err != nil {
		return nil, err
	}
	gm, err := intEnv("BOT_DEPTH_GM", 3)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr: stringEnv("HTTP_ADDR", "0.0.0.0:8080"),
		Logs: LogConfig{
			Style: stringEnv("LOG_STYLE", "json"),
			Level: stringEnv("LOG_LEVEL", "info"),
		},
		Bot: BotConfig{
			ThinkDelay:  time.Duration(delayMS) * time.Millisecond,
			DepthMedium: medium,
			DepthHard:   hard,
			DepthGM:     gm,
		},
	}
	return cfg, nil
}

// Tiers returns the default difficulty table with the configured depths.
func (c *Config) Tiers() []bots.Tier {
	tiers := bots.DefaultTiers()
	for i := range tiers {
		switch tiers[i].ID {
		case "medium":
			tiers[i].Depth = c.Bot.DepthMedium
		case "hard":
			tiers[i].Depth = c.Bot.DepthHard
		case "gm":
			tiers[i].Depth = c.Bot.DepthGM
		}
	}
	return tiers
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("converting %s to int: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", key, n)
	}
	return n, nil
}
