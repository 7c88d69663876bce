package services

import (
	"context"
	"testing"

	"github.com/hueai/medassist-backend/internal/domain"
	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/platform/apierr"
	"github.com/hueai/medassist-backend/internal/platform/tavily"
	"github.com/hueai/medassist-backend/internal/repos"
)

func newTestAuthenticityService(t *testing.T, search tavily.Client) AuthenticityService {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	gdb := newTestDB(t)
	return NewAuthenticityService(nil, search, repos.NewDrugVerificationRepo(gdb, log), log)
}

func TestVerifyAuthenticDrug(t *testing.T) {
	search := &fakeSearch{resp: &tavily.SearchResponse{
		Results: []tavily.SearchResult{
			{Title: "FDA approved medication", URL: "https://example.org/a", Content: "This genuine product is licensed and certified."},
			{Title: "Official product page", URL: "https://example.org/b", Content: "Manufactured by an authorized pharmaceutical company."},
		},
	}}
	svc := newTestAuthenticityService(t, search)

	result, err := svc.Verify(context.Background(), "Paracetamol", "B123")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Status != domain.DrugStatusAuthentic {
		t.Fatalf("status = %q, want AUTHENTIC", result.Status)
	}
	if result.ConfidenceScore <= 0.6 || result.ConfidenceScore > 0.95 {
		t.Fatalf("confidence = %v", result.ConfidenceScore)
	}
	if result.Cached {
		t.Fatal("first lookup must not be cached")
	}
	if len(result.Sources) != 2 {
		t.Fatalf("sources = %v", result.Sources)
	}
}

func TestVerifySuspiciousDrug(t *testing.T) {
	search := &fakeSearch{resp: &tavily.SearchResponse{
		Results: []tavily.SearchResult{
			{Title: "Counterfeit alert", URL: "https://example.org/warn", Content: "Recalled batches of fake, unauthorized product on the black market."},
		},
	}}
	svc := newTestAuthenticityService(t, search)

	result, err := svc.Verify(context.Background(), "SlimQuick", "")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Status != domain.DrugStatusSuspicious {
		t.Fatalf("status = %q, want SUSPICIOUS", result.Status)
	}
	if len(result.Warnings) == 0 || result.Warnings[0] == "" {
		t.Fatalf("warnings = %v", result.Warnings)
	}
}

func TestVerifyUnknownWithoutResults(t *testing.T) {
	search := &fakeSearch{resp: &tavily.SearchResponse{}}
	svc := newTestAuthenticityService(t, search)

	result, err := svc.Verify(context.Background(), "Obscurol", "")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Status != domain.DrugStatusUnknown {
		t.Fatalf("status = %q, want UNKNOWN", result.Status)
	}
	if result.ConfidenceScore != 0 {
		t.Fatalf("confidence = %v, want 0", result.ConfidenceScore)
	}
}

func TestVerifyServedFromLogOnRepeat(t *testing.T) {
	search := &fakeSearch{resp: &tavily.SearchResponse{
		Results: []tavily.SearchResult{
			{Title: "FDA approval", URL: "https://example.org/a", Content: "legitimate certified product"},
		},
	}}
	svc := newTestAuthenticityService(t, search)
	ctx := context.Background()

	first, err := svc.Verify(ctx, "Amoxicillin", "LOT9")
	if err != nil {
		t.Fatalf("first Verify: %v", err)
	}
	second, err := svc.Verify(ctx, "Amoxicillin", "LOT9")
	if err != nil {
		t.Fatalf("second Verify: %v", err)
	}
	if len(search.queries) != 1 {
		t.Fatalf("search calls = %d, want 1", len(search.queries))
	}
	if !second.Cached {
		t.Fatal("repeat lookup should be served from the verification log")
	}
	if second.Status != first.Status {
		t.Fatalf("status changed: %q vs %q", second.Status, first.Status)
	}
}

func TestVerifyRequiresDrugName(t *testing.T) {
	svc := newTestAuthenticityService(t, &fakeSearch{})

	_, err := svc.Verify(context.Background(), "   ", "B1")
	if err == nil {
		t.Fatal("expected error for missing drug name")
	}
	if ae := apierr.AsError(err); ae.Status != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
}
