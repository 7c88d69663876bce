package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hueai/medassist-backend/internal/domain"
	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/platform/apierr"
	"github.com/hueai/medassist-backend/internal/platform/dbctx"
	"github.com/hueai/medassist-backend/internal/platform/tavily"
	"github.com/hueai/medassist-backend/internal/repos"
	"github.com/hueai/medassist-backend/internal/utils"
)

const (
	authenticityCachePrefix = "drugcheck:"
	sourceCache             = "cache"
	sourceSearch            = "tavily"
)

var authenticKeywords = []string{
	"fda approved", "fda approval", "legitimate", "authentic", "approved by",
	"licensed", "certified", "official", "genuine", "authorized",
	"regulatory approval", "pharmaceutical company",
}

var suspiciousKeywords = []string{
	"counterfeit", "fake", "fraudulent", "unauthorized", "illegal",
	"recalled", "warning", "alert", "suspicious", "black market",
	"not approved", "unapproved",
}

// VerificationResult is the outcome of a drug-authenticity lookup.
type VerificationResult struct {
	DrugName        string    `json:"drug_name"`
	BatchNumber     string    `json:"batch_number,omitempty"`
	Status          string    `json:"status"`
	ConfidenceScore float64   `json:"confidence_score"`
	Warnings        []string  `json:"warnings"`
	Sources         []string  `json:"sources,omitempty"`
	Cached          bool      `json:"cached"`
	CheckedAt       time.Time `json:"checked_at"`
}

// AuthenticityService verifies a drug name against public search results,
// with a redis cache in front of the persisted verification log.
type AuthenticityService interface {
	Verify(ctx context.Context, drugName, batchNumber string) (*VerificationResult, error)
}

type authenticityService struct {
	rdb           *goredis.Client
	search        tavily.Client
	verifications repos.DrugVerificationRepo
	log           *logger.Logger
	cacheTTL      time.Duration
}

func NewAuthenticityService(
	rdb *goredis.Client,
	search tavily.Client,
	verifications repos.DrugVerificationRepo,
	log *logger.Logger,
) AuthenticityService {
	ttlDays := utils.GetEnvAsInt("DRUG_CACHE_TTL_DAYS", 30, log)
	return &authenticityService{
		rdb:           rdb,
		search:        search,
		verifications: verifications,
		log:           log.With("service", "AuthenticityService"),
		cacheTTL:      time.Duration(ttlDays) * 24 * time.Hour,
	}
}

func (s *authenticityService) Verify(ctx context.Context, drugName, batchNumber string) (*VerificationResult, error) {
	drugName = strings.TrimSpace(drugName)
	batchNumber = strings.TrimSpace(batchNumber)
	if drugName == "" {
		return nil, apierr.InvalidArgument(errors.New("drug_name is required"))
	}

	key := s.cacheKey(drugName, batchNumber)
	if cached := s.fromCache(ctx, key); cached != nil {
		return cached, nil
	}

	if row := s.fromLog(ctx, drugName, batchNumber); row != nil {
		result := &VerificationResult{
			DrugName:    row.DrugName,
			BatchNumber: row.BatchNumber,
			Status:      row.Status,
			Warnings:    statusWarnings(row.Status),
			Cached:      true,
			CheckedAt:   row.CheckedAt,
		}
		s.toCache(ctx, key, result)
		return result, nil
	}

	query := fmt.Sprintf("drug authenticity verification %s manufacturer counterfeit FDA approval", drugName)
	resp, err := s.search.Search(ctx, query, "advanced", "general")
	if err != nil {
		return nil, err
	}

	result := classifyVerification(drugName, batchNumber, resp.Results)
	result.CheckedAt = time.Now().UTC()

	row := &domain.DrugVerification{
		ID:          uuid.New(),
		DrugName:    drugName,
		BatchNumber: batchNumber,
		Status:      result.Status,
		Source:      sourceSearch,
		CheckedAt:   result.CheckedAt,
	}
	if _, err := s.verifications.Create(dbctx.New(ctx), row); err != nil {
		// A failed log write does not invalidate the lookup itself.
		s.log.Warn("Failed to persist drug verification", "drug", drugName, "error", err.Error())
	}
	s.toCache(ctx, key, result)
	return result, nil
}

func (s *authenticityService) cacheKey(drugName, batchNumber string) string {
	return authenticityCachePrefix + strings.ToLower(drugName) + ":" + strings.ToLower(batchNumber)
}

func (s *authenticityService) fromCache(ctx context.Context, key string) *VerificationResult {
	if s.rdb == nil {
		return nil
	}
	raw, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != goredis.Nil {
			s.log.Warn("Redis get failed", "key", key, "error", err.Error())
		}
		return nil
	}
	var out VerificationResult
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	out.Cached = true
	return &out
}

func (s *authenticityService) toCache(ctx context.Context, key string, result *VerificationResult) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		s.log.Warn("Redis set failed", "key", key, "error", err.Error())
	}
}

// fromLog consults the persisted verification log; entries older than the
// cache TTL are treated as stale and re-verified.
func (s *authenticityService) fromLog(ctx context.Context, drugName, batchNumber string) *domain.DrugVerification {
	row, err := s.verifications.FindLatest(dbctx.New(ctx), drugName, batchNumber)
	if err != nil {
		s.log.Warn("Verification log lookup failed", "drug", drugName, "error", err.Error())
		return nil
	}
	if row == nil || time.Since(row.CheckedAt) > s.cacheTTL {
		return nil
	}
	return row
}

// classifyVerification scores search results by counting authenticity and
// counterfeit indicators across titles and content.
func classifyVerification(drugName, batchNumber string, results []tavily.SearchResult) *VerificationResult {
	out := &VerificationResult{
		DrugName:    drugName,
		BatchNumber: batchNumber,
		Status:      domain.DrugStatusUnknown,
	}
	if len(results) == 0 {
		out.ConfidenceScore = 0
		out.Warnings = statusWarnings(out.Status)
		return out
	}

	var b strings.Builder
	for _, r := range results {
		b.WriteString(strings.ToLower(r.Content))
		b.WriteString(" ")
		b.WriteString(strings.ToLower(r.Title))
		b.WriteString(" ")
	}
	combined := b.String()

	authenticCount := 0
	for _, kw := range authenticKeywords {
		if strings.Contains(combined, kw) {
			authenticCount++
		}
	}
	suspiciousCount := 0
	for _, kw := range suspiciousKeywords {
		if strings.Contains(combined, kw) {
			suspiciousCount++
		}
	}

	total := authenticCount + suspiciousCount
	switch {
	case total == 0:
		out.Status = domain.DrugStatusUnknown
		out.ConfidenceScore = 0.3
	case suspiciousCount > authenticCount:
		out.Status = domain.DrugStatusSuspicious
		out.ConfidenceScore = min(0.7+float64(suspiciousCount)/float64(total)*0.3, 0.95)
	default:
		out.Status = domain.DrugStatusAuthentic
		out.ConfidenceScore = min(0.6+float64(authenticCount)/float64(total)*0.4, 0.95)
	}

	for i, r := range results {
		if i >= 5 {
			break
		}
		if r.URL != "" {
			out.Sources = append(out.Sources, r.URL)
		}
	}
	out.Warnings = statusWarnings(out.Status)
	return out
}

func statusWarnings(status string) []string {
	switch status {
	case domain.DrugStatusSuspicious:
		return []string{
			"⚠️ CRITICAL: Potential counterfeit drug detected. Do not use.",
			"Purchase only from licensed pharmacies and authorized distributors.",
		}
	case domain.DrugStatusUnknown:
		return []string{
			"Unable to verify authenticity. Exercise caution.",
			"Always consult a healthcare professional before use.",
		}
	default:
		return []string{
			"Always consult a healthcare professional before use.",
		}
	}
}
