package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Bind != "0.0.0.0:8080" {
		t.Errorf("Bind = %q", cfg.Server.Bind)
	}
	if cfg.Server.RequestTimeout != 30 {
		t.Errorf("RequestTimeout = %d", cfg.Server.RequestTimeout)
	}
	if cfg.Store.Path == "" {
		t.Error("store path default not filled")
	}
}

func TestLoad_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  bind: "127.0.0.1:9999"
notify:
  sink: log
  icon: /static/icon.png
suggest:
  enabled: true
  model: llama3
digest:
  enabled: true
  schedule: "0 8 * * *"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Bind != "127.0.0.1:9999" {
		t.Errorf("Bind = %q", cfg.Server.Bind)
	}
	if cfg.Notify.Sink != "log" {
		t.Errorf("Sink = %q", cfg.Notify.Sink)
	}
	if cfg.Suggest.BaseURL != "http://localhost:11434" {
		t.Errorf("suggest base url default not filled: %q", cfg.Suggest.BaseURL)
	}
	if cfg.Suggest.TimeoutSec != 60 {
		t.Errorf("suggest timeout default not filled: %d", cfg.Suggest.TimeoutSec)
	}

	got, err := Get()
	if err != nil || got.Server.Bind != "127.0.0.1:9999" {
		t.Errorf("Get after Load: (%+v, %v)", got, err)
	}
}

func TestNotifyConfig_Sinks(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"log", []string{"log"}},
		{" Telegram , log ", []string{"telegram", "log"}},
		{"telegram,,", []string{"telegram"}},
	}
	for _, tc := range cases {
		got := (NotifyConfig{Sink: tc.in}).Sinks()
		if len(got) != len(tc.want) {
			t.Errorf("Sinks(%q) = %v, want %v", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("Sinks(%q) = %v, want %v", tc.in, got, tc.want)
				break
			}
		}
	}
}

func TestValidate_SinkList(t *testing.T) {
	cfg := &Config{}
	cfg.Notify.Sink = "telegram,log"
	cfg.Notify.Telegram.Token = "t"
	cfg.Notify.Telegram.ChatID = "42"
	if err := cfg.Validate(); err != nil {
		t.Errorf("telegram,log with credentials should validate: %v", err)
	}

	cfg = &Config{}
	cfg.Notify.Sink = "log,telegram"
	if err := cfg.Validate(); err == nil {
		t.Error("telegram in the list still requires credentials")
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"telegram without token", func(c *Config) {
			c.Notify.Sink = "telegram"
			c.Notify.Telegram.ChatID = "42"
		}},
		{"telegram without chat id", func(c *Config) {
			c.Notify.Sink = "telegram"
			c.Notify.Telegram.Token = "t"
		}},
		{"unknown sink", func(c *Config) { c.Notify.Sink = "carrier-pigeon" }},
		{"suggest without model", func(c *Config) { c.Suggest.Enabled = true }},
		{"digest without schedule", func(c *Config) { c.Digest.Enabled = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{}
			tc.mut(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}
