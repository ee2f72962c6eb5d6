package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verte-zerg/ruletype/internal/config"
	"github.com/verte-zerg/ruletype/internal/model"
	"github.com/verte-zerg/ruletype/internal/segment"
	"github.com/verte-zerg/ruletype/internal/tuning"
)

func TestWriteSegmentsListsBatches(t *testing.T) {
	segs := segment.Split([]model.Rule{
		{Num: 1, Primary: "一、二。"},
		{Num: 2, Primary: "三、四。"},
	})
	var buf bytes.Buffer
	if err := writeSegments(&buf, segs); err != nil {
		t.Fatalf("write segments: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"batch 1: segments 0-2, rules #1-#2, 6 chars",
		"batch 2: segments 3-3, rules #2-#2, 2 chars",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "batch 3") {
		t.Fatalf("unexpected extra batch:\n%s", out)
	}
}

func TestDefaultConfigTemplateLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("template must load: %v", err)
	}
	if cfg.Reveal.Rules != nil || len(cfg.Tuning) != 0 {
		t.Fatalf("template values must be commented out, got %+v", cfg)
	}
}

func TestParseSince(t *testing.T) {
	if got, err := parseSince(""); err != nil || got != nil {
		t.Fatalf("expected no filter, got %v %v", got, err)
	}
	got, err := parseSince("2026-03-01")
	if err != nil || got == nil || got.Day() != 1 {
		t.Fatalf("unexpected since %v %v", got, err)
	}
	if _, err := parseSince("03/01/2026"); err == nil {
		t.Fatalf("expected error for bad date")
	}
}

func TestWriteTuningTableMarksChanges(t *testing.T) {
	p := tuning.New()
	if err := p.Set(tuning.Speed, 42); err != nil {
		t.Fatalf("set: %v", err)
	}
	var buf bytes.Buffer
	if err := writeTuningTable(&buf, p.Values()); err != nil {
		t.Fatalf("write table: %v", err)
	}
	for _, line := range strings.Split(buf.String(), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		changed := strings.HasSuffix(line, "*")
		if fields[0] == "speed" && !changed {
			t.Fatalf("expected speed marked as changed: %q", line)
		}
		if fields[0] != "speed" && changed {
			t.Fatalf("unexpected change marker: %q", line)
		}
	}
}

func TestEngineClampsSpeed(t *testing.T) {
	params := tuning.New()
	e := &engine{params: params}
	if got := e.AdjustSpeed(1000); got != 100 {
		t.Fatalf("expected speed clamped to 100, got %v", got)
	}
}
