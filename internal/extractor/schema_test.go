package extractor

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestParseModelOutputFound(t *testing.T) {
	raw := []byte(`{
		"found": true,
		"title": "Lemon Drizzle Cake",
		"ingredients": [{"name": "flour", "quantity": "225", "unit": "g"}],
		"steps": ["Mix", "Bake"],
		"servings": "8",
		"total_time": "1h"
	}`)

	ext, err := parseModelOutput(raw)
	if err != nil {
		t.Fatalf("parseModelOutput() error = %v", err)
	}
	if !ext.Found {
		t.Fatal("expected Found=true")
	}
	if ext.Recipe == nil {
		t.Fatal("expected recipe data")
	}
	if ext.Recipe.Title != "Lemon Drizzle Cake" {
		t.Errorf("title = %q, want %q", ext.Recipe.Title, "Lemon Drizzle Cake")
	}
	if len(ext.Recipe.Raw) == 0 {
		t.Error("expected raw payload to be carried through")
	}
}

func TestParseModelOutputNotFound(t *testing.T) {
	ext, err := parseModelOutput([]byte(`{"found": false, "title": ""}`))
	if err != nil {
		t.Fatalf("parseModelOutput() error = %v", err)
	}
	if ext.Found {
		t.Error("expected Found=false")
	}
	if ext.Recipe != nil {
		t.Error("expected no recipe data")
	}
}

func TestParseModelOutputBlankTitleTreatedAsNotFound(t *testing.T) {
	ext, err := parseModelOutput([]byte(`{"found": true, "title": "   "}`))
	if err != nil {
		t.Fatalf("parseModelOutput() error = %v", err)
	}
	if ext.Found {
		t.Error("found=true with a blank title should downgrade to not found")
	}
}

func TestParseModelOutputInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `the page shows a cake`},
		{"missing required fields", `{"title": "Cake"}`},
		{"wrong type", `{"found": "yes", "title": "Cake"}`},
		{"unknown field", `{"found": true, "title": "Cake", "rating": 5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseModelOutput([]byte(tt.raw)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMockExtractor(t *testing.T) {
	m := NewMockExtractor()
	m.Latency = 0

	ext, err := m.ExtractFromImage(context.Background(), []byte("img"), Hints{})
	if err != nil {
		t.Fatalf("ExtractFromImage() error = %v", err)
	}
	if !ext.Found || ext.Recipe == nil || ext.Recipe.Title != "Mock Recipe" {
		t.Errorf("unexpected extraction: %+v", ext)
	}
	if m.RequestCount() != 1 {
		t.Errorf("request count = %d, want 1", m.RequestCount())
	}
}

func TestMockExtractorFailAfter(t *testing.T) {
	m := NewMockExtractor()
	m.Latency = 0
	m.FailAfter = 1

	if _, err := m.ExtractFromImage(context.Background(), []byte("img"), Hints{}); err != nil {
		t.Fatalf("first request should succeed, got %v", err)
	}
	_, err := m.ExtractFromImage(context.Background(), []byte("img"), Hints{})
	if err == nil || !strings.Contains(err.Error(), "simulated failure") {
		t.Errorf("expected simulated failure, got %v", err)
	}
}

func TestMockExtractorRespectsContext(t *testing.T) {
	m := NewMockExtractor()
	m.Latency = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := m.ExtractFromImage(ctx, []byte("img"), Hints{}); err == nil {
		t.Error("expected context error")
	}
}
