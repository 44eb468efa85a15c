package slog

import (
	"bytes"
	"encoding/json"
	stdslog "log/slog"
	"testing"

	"github.com/unkn0wn-root/caslist"
)

func TestGroupedFields(t *testing.T) {
	var buf bytes.Buffer
	h := stdslog.NewJSONHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo})
	l := New(stdslog.New(h), "caslist")

	l.Debug("dropped by level", caslist.Fields{"page": 1})
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered, got %s", buf.String())
	}

	l.Warn("stale response", caslist.Fields{"page": 1, "list": "users"})
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if rec["msg"] != "stale response" || rec["level"] != "WARN" {
		t.Fatalf("record = %v", rec)
	}
	group, ok := rec["caslist"].(map[string]any)
	if !ok || group["list"] != "users" || group["page"] != float64(1) {
		t.Fatalf("grouped fields = %v", rec["caslist"])
	}
}
