package cmd

import (
	"strings"
	"testing"

	"novacontent/internal/queue"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate kept = %q", got)
	}
	if got := truncate("render failed: exit status 1", 10); got != "render fa…" {
		t.Errorf("truncate = %q", got)
	}
}

func TestValidState(t *testing.T) {
	for _, s := range queue.States {
		if !validState(s) {
			t.Errorf("validState(%q) = false", s)
		}
	}
	if validState("paused") {
		t.Error("validState(paused) = true")
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"State", "Jobs"}, [][]string{{"waiting", "2"}, {"failed"}}, 2)
	for _, want := range []string{"STATE", "WAITING", "FAILED"} {
		if !strings.Contains(strings.ToUpper(out), want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
