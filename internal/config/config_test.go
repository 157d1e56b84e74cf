package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Token:    "123:abc",
			AdminIDs: []int64{111, 222},
		},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run_mode = %q, want longpoll", cfg.Telegram.RunMode)
	}
	if got := cfg.Wallet.Slots; len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 8 {
		t.Fatalf("default slots = %v", got)
	}
	if cfg.Wallet.MaxNoteLen != 200 {
		t.Fatalf("max_note_len = %d, want 200", cfg.Wallet.MaxNoteLen)
	}
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }, "token"},
		{"no admins", func(c *Config) { c.Telegram.AdminIDs = nil }, "admin_ids"},
		{"zero admin", func(c *Config) { c.Telegram.AdminIDs = []int64{0} }, "admin_ids"},
		{"bad run mode", func(c *Config) { c.Telegram.RunMode = "carrier-pigeon" }, "run_mode"},
		{"webhook without url", func(c *Config) { c.Telegram.RunMode = "webhook" }, "webhook.url"},
		{"negative slot", func(c *Config) { c.Wallet.Slots = []int{-2} }, "slots"},
		{"duplicate slot", func(c *Config) { c.Wallet.Slots = []int{3, 3} }, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Normalize(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %q, want substring %q", err, tt.want)
			}
		})
	}
}

func TestNormalizeAcceptsPollingAlias(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "polling"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run_mode = %q, want longpoll", cfg.Telegram.RunMode)
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := validConfig()
	if !cfg.IsAdmin(111) || !cfg.IsAdmin(222) {
		t.Fatal("configured admins not recognized")
	}
	if cfg.IsAdmin(333) {
		t.Fatal("unknown id recognized as admin")
	}
}
