package config_test

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/playperu/cluequiz/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", cfg.LogLevel)
	}
	if cfg.MinPlayers != 2 || cfg.MaxPlayers != 8 {
		t.Errorf("players = %d..%d, want 2..8", cfg.MinPlayers, cfg.MaxPlayers)
	}
	if cfg.CluesPerProfile != 20 {
		t.Errorf("CluesPerProfile = %d, want 20", cfg.CluesPerProfile)
	}
	if cfg.SaveDebounce != 300*time.Millisecond {
		t.Errorf("SaveDebounce = %s, want 300ms", cfg.SaveDebounce)
	}
	if cfg.DataURL != "" {
		t.Errorf("DataURL = %q, want empty", cfg.DataURL)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("MAX_PLAYERS", "4")
	t.Setenv("SAVE_DEBOUNCE", "1s")
	t.Setenv("DATA_URL", "http://localhost:8080/data")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want DEBUG", cfg.LogLevel)
	}
	if cfg.MaxPlayers != 4 {
		t.Errorf("MaxPlayers = %d, want 4", cfg.MaxPlayers)
	}
	if cfg.SaveDebounce != time.Second {
		t.Errorf("SaveDebounce = %s, want 1s", cfg.SaveDebounce)
	}
	if cfg.DataURL != "http://localhost:8080/data" {
		t.Errorf("DataURL = %q", cfg.DataURL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"min below one", map[string]string{"MIN_PLAYERS": "0"}, "MIN_PLAYERS"},
		{"max below min", map[string]string{"MIN_PLAYERS": "5", "MAX_PLAYERS": "3"}, "MAX_PLAYERS"},
		{"no clues", map[string]string{"CLUES_PER_PROFILE": "0"}, "CLUES_PER_PROFILE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want it to mention %s", err, tt.want)
			}
		})
	}
}
