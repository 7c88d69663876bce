package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hueai/medassist-backend/internal/assistant"
	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/platform/tavily"
)

type fakeSearch struct {
	resp    *tavily.SearchResponse
	err     error
	queries []string
}

func (f *fakeSearch) Search(ctx context.Context, query, searchDepth, topic string) (*tavily.SearchResponse, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func newTestExecutor(t *testing.T, search tavily.Client) *ToolExecutor {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewToolExecutor(search, log)
}

func TestExecuteWebSearch(t *testing.T) {
	search := &fakeSearch{resp: &tavily.SearchResponse{
		Query:  "symptoms of anemia",
		Answer: "Common symptoms include fatigue.",
		Results: []tavily.SearchResult{
			{Title: "Anemia", URL: "https://example.org/anemia", Content: "Fatigue and pallor", Score: 0.9},
		},
	}}
	exec := newTestExecutor(t, search)

	payload, ok := exec.Execute(context.Background(), assistant.ToolWebSearch, `{"query":"symptoms of anemia"}`)
	if !ok {
		t.Fatalf("execute failed: %s", payload)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if out["results_count"].(float64) != 1 {
		t.Fatalf("results_count = %v", out["results_count"])
	}
	if out["answer"] != "Common symptoms include fatigue." {
		t.Fatalf("answer = %v", out["answer"])
	}
	if len(search.queries) != 1 || search.queries[0] != "symptoms of anemia" {
		t.Fatalf("queries = %v", search.queries)
	}
}

func TestExecuteWebSearchFailure(t *testing.T) {
	exec := newTestExecutor(t, &fakeSearch{err: errors.New("upstream down")})

	payload, ok := exec.Execute(context.Background(), assistant.ToolWebSearch, `{"query":"anything"}`)
	if ok {
		t.Fatal("expected failure")
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		t.Fatalf("error payload not JSON: %v", err)
	}
	if out["error"] == "" || out["timestamp"] == "" {
		t.Fatalf("error payload = %v", out)
	}
}

func TestExecuteBadArguments(t *testing.T) {
	exec := newTestExecutor(t, &fakeSearch{})

	cases := []struct {
		name string
		tool string
		args string
	}{
		{"malformed json", assistant.ToolWebSearch, `{"query":`},
		{"missing query", assistant.ToolWebSearch, `{}`},
		{"missing lab results", assistant.ToolLabExplanation, `{"test_type":"CBC"}`},
		{"missing findings", assistant.ToolImagingExplanation, `{"imaging_type":"X-Ray"}`},
		{"missing topic", assistant.ToolMedicalSummary, `{}`},
		{"unknown tool", "launch_rocket", `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, ok := exec.Execute(context.Background(), tc.tool, tc.args)
			if ok {
				t.Fatalf("expected failure, got %s", payload)
			}
			var out map[string]string
			if err := json.Unmarshal([]byte(payload), &out); err != nil {
				t.Fatalf("error payload not JSON: %v", err)
			}
			if out["error"] == "" {
				t.Fatal("missing error field")
			}
		})
	}
}

func TestExecuteLabExplanationArtifact(t *testing.T) {
	exec := newTestExecutor(t, &fakeSearch{})

	payload, ok := exec.Execute(context.Background(), assistant.ToolLabExplanation,
		`{"test_type":"CBC","test_results":{"wbc":"5.4","hgb":"14.2"},"patient_context":"adult male"}`)
	if !ok {
		t.Fatalf("execute failed: %s", payload)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["type"] != assistant.ArtifactLabExplanation {
		t.Fatalf("type = %v", out["type"])
	}
	if out["test_type"] != "CBC" {
		t.Fatalf("test_type = %v", out["test_type"])
	}
	if out["instruction"] == "" {
		t.Fatal("missing instruction")
	}
}

func TestExecuteMedicalSummaryFocusAreas(t *testing.T) {
	exec := newTestExecutor(t, &fakeSearch{})

	payload, ok := exec.Execute(context.Background(), assistant.ToolMedicalSummary,
		`{"topic":"type 2 diabetes","focus_areas":["diet","medication"]}`)
	if !ok {
		t.Fatalf("execute failed: %s", payload)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["type"] != assistant.ArtifactMedicalSummary {
		t.Fatalf("type = %v", out["type"])
	}
	areas, ok := out["focus_areas"].([]any)
	if !ok || len(areas) != 2 {
		t.Fatalf("focus_areas = %v", out["focus_areas"])
	}
}
