package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hueai/medassist-backend/internal/assistant"
	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/platform/tavily"
)

// ToolExecutor routes tool invocations requested by the model. It implements
// assistant.ToolRunner and never fails past its boundary: every failure is
// serialized into the returned payload.
type ToolExecutor struct {
	search tavily.Client
	log    *logger.Logger
}

func NewToolExecutor(search tavily.Client, log *logger.Logger) *ToolExecutor {
	return &ToolExecutor{
		search: search,
		log:    log.With("service", "ToolExecutor"),
	}
}

func (e *ToolExecutor) Execute(ctx context.Context, name, rawArgs string) (string, bool) {
	e.log.Info("Executing tool", "tool", name)

	payload, err := e.dispatch(ctx, name, rawArgs)
	if err != nil {
		e.log.Error("Tool execution failed", "tool", name, "error", err.Error())
		return errorPayload(err), false
	}
	return payload, true
}

func (e *ToolExecutor) dispatch(ctx context.Context, name, rawArgs string) (string, error) {
	switch name {
	case assistant.ToolWebSearch:
		return e.webSearch(ctx, rawArgs)
	case assistant.ToolLabExplanation:
		return e.labExplanation(rawArgs)
	case assistant.ToolImagingExplanation:
		return e.imagingExplanation(rawArgs)
	case assistant.ToolMedicalSummary:
		return e.medicalSummary(rawArgs)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func errorPayload(err error) string {
	raw, mErr := json.Marshal(map[string]string{
		"error":     err.Error(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if mErr != nil {
		return `{"error":"tool execution failed"}`
	}
	return string(raw)
}

type webSearchArgs struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	Topic       string `json:"topic"`
}

func (e *ToolExecutor) webSearch(ctx context.Context, rawArgs string) (string, error) {
	var args webSearchArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("parse web search arguments: %w", err)
	}
	if args.Query == "" {
		return "", fmt.Errorf("web search requires a query")
	}

	resp, err := e.search.Search(ctx, args.Query, args.SearchDepth, args.Topic)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}

	out := map[string]any{
		"query":         resp.Query,
		"results_count": len(resp.Results),
		"results":       resp.Results,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
	if resp.Answer != "" {
		out["answer"] = resp.Answer
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

type labExplanationArgs struct {
	TestType       string         `json:"test_type"`
	TestResults    map[string]any `json:"test_results"`
	PatientContext string         `json:"patient_context"`
}

func (e *ToolExecutor) labExplanation(rawArgs string) (string, error) {
	var args labExplanationArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("parse lab explanation arguments: %w", err)
	}
	if args.TestType == "" || len(args.TestResults) == 0 {
		return "", fmt.Errorf("lab explanation requires test_type and test_results")
	}

	artifact := map[string]any{
		"type":            assistant.ArtifactLabExplanation,
		"test_type":       args.TestType,
		"test_results":    args.TestResults,
		"patient_context": args.PatientContext,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"instruction": "Please analyze these lab results and provide a comprehensive explanation including: " +
			"1) Overview of what each test measures, " +
			"2) Whether values are normal/abnormal and by how much, " +
			"3) Clinical significance and what it might indicate, " +
			"4) Recommendations for next steps or follow-up, " +
			"5) Important disclaimers about consulting healthcare providers.",
	}
	raw, err := json.Marshal(artifact)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

type imagingExplanationArgs struct {
	ImagingType        string `json:"imaging_type"`
	Findings           string `json:"findings"`
	ClinicalIndication string `json:"clinical_indication"`
	PatientContext     string `json:"patient_context"`
}

func (e *ToolExecutor) imagingExplanation(rawArgs string) (string, error) {
	var args imagingExplanationArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("parse imaging explanation arguments: %w", err)
	}
	if args.ImagingType == "" || args.Findings == "" {
		return "", fmt.Errorf("imaging explanation requires imaging_type and findings")
	}

	artifact := map[string]any{
		"type":                assistant.ArtifactImagingAnalysis,
		"imaging_type":        args.ImagingType,
		"findings":            args.Findings,
		"clinical_indication": args.ClinicalIndication,
		"patient_context":     args.PatientContext,
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
		"instruction": "Please analyze these imaging findings and provide a comprehensive explanation including: " +
			"1) What the imaging study is and what it's used for, " +
			"2) Explanation of the findings in simple terms, " +
			"3) What these findings might indicate clinically, " +
			"4) Typical next steps or follow-up recommendations, " +
			"5) Important disclaimers about the need for professional interpretation.",
	}
	raw, err := json.Marshal(artifact)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

type medicalSummaryArgs struct {
	Topic          string   `json:"topic"`
	FocusAreas     []string `json:"focus_areas"`
	PatientContext string   `json:"patient_context"`
}

func (e *ToolExecutor) medicalSummary(rawArgs string) (string, error) {
	var args medicalSummaryArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("parse medical summary arguments: %w", err)
	}
	if args.Topic == "" {
		return "", fmt.Errorf("medical summary requires a topic")
	}

	focus := "comprehensive overview"
	if len(args.FocusAreas) > 0 {
		focus = strings.Join(args.FocusAreas, ", ")
	}

	artifact := map[string]any{
		"type":            assistant.ArtifactMedicalSummary,
		"topic":           args.Topic,
		"focus_areas":     args.FocusAreas,
		"patient_context": args.PatientContext,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"instruction": "Please create a comprehensive medical summary covering the requested topic. " +
			"Focus areas: " + focus + ". " +
			"Include: relevant medical information, evidence-based recommendations, " +
			"lifestyle considerations, and appropriate medical disclaimers.",
	}
	raw, err := json.Marshal(artifact)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
