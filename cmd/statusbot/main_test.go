package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hazz-dev/statusbot/internal/config"
	"github.com/hazz-dev/statusbot/internal/notify"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "service", "api")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected info to be filtered, got:\n%s", out)
	}
	if !strings.Contains(out, `"service":"api"`) {
		t.Errorf("expected JSON output, got:\n%s", out)
	}
}

func TestNewLogger_Invalid(t *testing.T) {
	if _, err := newLogger(&bytes.Buffer{}, "loud", "text"); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := newLogger(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestBuildNotifier(t *testing.T) {
	tests := []struct {
		name     string
		notifier config.NotifierConfig
		check    func(notify.Notifier) bool
	}{
		{"log", config.NotifierConfig{Type: "log"}, func(n notify.Notifier) bool { _, ok := n.(*notify.Log); return ok }},
		{"webhook", config.NotifierConfig{Type: "webhook", WebhookURL: "http://hooks.example.com"}, func(n notify.Notifier) bool { _, ok := n.(*notify.Webhook); return ok }},
		{"discord", config.NotifierConfig{Type: "discord"}, func(n notify.Notifier) bool { _, ok := n.(*notify.Discord); return ok }},
		{"discord with mirror", config.NotifierConfig{Type: "discord", WebhookURL: "http://hooks.example.com"}, func(n notify.Notifier) bool { m, ok := n.(notify.Multi); return ok && len(m) == 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := buildNotifier(&config.Config{Notifier: tt.notifier, Token: "t"}, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.check(n) {
				t.Errorf("unexpected notifier type %T", n)
			}
		})
	}

	if _, err := buildNotifier(&config.Config{Notifier: config.NotifierConfig{Type: "smoke-signal"}}, nil); err == nil {
		t.Error("expected error for unknown notifier")
	}
}

func TestVersionCmd(t *testing.T) {
	root := rootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "statusbot ") {
		t.Errorf("unexpected version output %q", buf.String())
	}
}
