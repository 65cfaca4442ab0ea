package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/idscan/internal/outcome"
)

func passthrough(b []byte) outcome.Result[[]byte] { return outcome.Ok(b) }

func TestPageMarker(t *testing.T) {
	if got := PageMarker(3); got != "\n--- TEXT FROM PAGE/IMAGE 3 ---\n" {
		t.Errorf("PageMarker(3) = %q", got)
	}
}

func TestConfident(t *testing.T) {
	lines := []Line{
		{"keep", 0.95}, {"edge", 0.80}, {"drop", 0.5}, {"just above", 0.8001},
	}
	got := Confident(lines, ConfidenceThreshold)
	if strings.Join(got, "|") != "keep|just above" {
		t.Errorf("Confident = %v", got)
	}
}

func TestExtract_MarkersAndFiltering(t *testing.T) {
	engine := &MockEngine{Func: func(img []byte) ([]Line, error) {
		switch string(img) {
		case "p1":
			return []Line{{"PASSPORT", 0.99}, {"smudge", 0.42}, {"Date of Birth 15/03/1990", 0.91}}, nil
		case "p2":
			return nil, errors.New("engine crashed")
		default:
			return []Line{{"low", 0.80}}, nil
		}
	}}
	e := NewExtractor(engine, WithEnhancer(passthrough), WithLogger(zap.NewNop()))

	text := e.Extract(context.Background(), [][]byte{[]byte("p1"), []byte("p2"), []byte("p3")})

	want := PageMarker(1) + "PASSPORT\nDate of Birth 15/03/1990" + PageMarker(2) + PageMarker(3)
	if text != want {
		t.Errorf("Extract =\n%q\nwant\n%q", text, want)
	}
	if strings.Count(text, "--- TEXT FROM PAGE/IMAGE") != 3 {
		t.Error("marker count must equal image count")
	}
	if strings.Contains(text, "smudge") || strings.Contains(text, "low") {
		t.Error("low-confidence lines leaked into raw text")
	}
}

func TestExtract_NoEngine(t *testing.T) {
	e := NewExtractor(nil)
	text := e.Extract(context.Background(), [][]byte{[]byte("a"), []byte("b")})
	if text != PageMarker(1)+PageMarker(2) {
		t.Errorf("got %q", text)
	}
	if res := e.Page(context.Background(), []byte("a")); !errors.Is(res.Reason, ErrUnavailable) {
		t.Errorf("reason = %v", res.Reason)
	}
}

func TestExtract_EnhancedBytesReachEngine(t *testing.T) {
	var seen string
	engine := &MockEngine{Func: func(img []byte) ([]Line, error) {
		seen = string(img)
		return nil, nil
	}}
	enhance := func(b []byte) outcome.Result[[]byte] { return outcome.Ok(append([]byte("enhanced:"), b...)) }
	NewExtractor(engine, WithEnhancer(enhance)).Extract(context.Background(), [][]byte{[]byte("x")})
	if seen != "enhanced:x" {
		t.Errorf("engine saw %q", seen)
	}
}

func TestExtract_Cache(t *testing.T) {
	engine := &MockEngine{Func: func(img []byte) ([]Line, error) {
		return []Line{{string(img), 0.9}}, nil
	}}
	e := NewExtractor(engine, WithEnhancer(passthrough), WithCache(NewLineCache(4)))
	images := [][]byte{[]byte("same"), []byte("same"), []byte("other")}
	text := e.Extract(context.Background(), images)
	if engine.Calls() != 2 {
		t.Errorf("engine calls = %d, want 2", engine.Calls())
	}
	if strings.Count(text, "same") != 2 {
		t.Errorf("cached page text missing: %q", text)
	}
}

func TestLineCache_Eviction(t *testing.T) {
	c := NewLineCache(2)
	c.Set("a", []Line{{"a", 1}})
	c.Set("b", []Line{{"b", 1}})
	c.Get("a")
	c.Set("c", []Line{{"c", 1}})
	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry should be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d", c.Len())
	}
	NewLineCache(0).Set("x", nil)
}
