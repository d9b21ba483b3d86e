package config

import (
	"os"
	"strconv"

	"potroom/internal/game"
)

type Config struct {
	Port        int
	ResetTarget game.ResetTarget
}

// Load reads configuration from the environment. Call godotenv.Load first if
// a .env file should contribute.
func Load() Config {
	return Config{
		Port:        getInt("PORT", 3000),
		ResetTarget: resetTarget(getString("RESET_TARGET", string(game.ResetZero))),
	}
}

func resetTarget(s string) game.ResetTarget {
	switch game.ResetTarget(s) {
	case game.ResetOriginal:
		return game.ResetOriginal
	default:
		return game.ResetZero
	}
}

func getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
