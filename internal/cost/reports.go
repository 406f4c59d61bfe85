package cost

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantumflow/callengine/internal/models"
)

const (
	suggestionWindow  = 7 * 24 * time.Hour
	minCacheHitRate   = 0.60
	maxFailureRate    = 0.10
	maxSynthesisShare = 0.50
)

// DailyReport aggregates the cost of all calls started on one UTC day
type DailyReport struct {
	Date            string          `json:"date"`
	Calls           int             `json:"calls"`
	CostedCalls     int             `json:"costedCalls"`
	Total           decimal.Decimal `json:"total"`
	Average         decimal.Decimal `json:"average"`
	Max             decimal.Decimal `json:"max"`
	SynthesisCost   decimal.Decimal `json:"synthesisCost"`
	RecognitionCost decimal.Decimal `json:"recognitionCost"`
	ModelCost       decimal.Decimal `json:"modelCost"`
	PlatformCost    decimal.Decimal `json:"platformCost"`
	OverThreshold   int             `json:"overThreshold"`
	Currency        string          `json:"currency"`
}

// Suggestion is a heuristic cost optimization hint
type Suggestion struct {
	Type    string  `json:"type"`
	Message string  `json:"message"`
	Metric  float64 `json:"metric"`
}

// DailyCostReport aggregates the conversations created on the UTC day of date
func (s *Service) DailyCostReport(ctx context.Context, date time.Time) (*DailyReport, error) {
	day := date.UTC().Truncate(24 * time.Hour)

	conversations, err := s.store.ListConversations(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	report := &DailyReport{
		Date:     day.Format("2006-01-02"),
		Calls:    len(conversations),
		Currency: s.config.Currency,
	}
	for _, conv := range conversations {
		if conv.Cost == nil {
			continue
		}
		c := conv.Cost
		report.CostedCalls++
		report.Total = report.Total.Add(c.Total)
		report.SynthesisCost = report.SynthesisCost.Add(c.SynthesisCost)
		report.RecognitionCost = report.RecognitionCost.Add(c.RecognitionCost)
		report.ModelCost = report.ModelCost.Add(c.ModelCost)
		report.PlatformCost = report.PlatformCost.Add(c.PlatformCost)
		if c.Total.GreaterThan(report.Max) {
			report.Max = c.Total
		}
		if c.Total.GreaterThan(s.config.AlertThreshold) {
			report.OverThreshold++
		}
	}
	if report.CostedCalls > 0 {
		report.Average = report.Total.Div(decimal.NewFromInt(int64(report.CostedCalls))).Round(6)
	}

	return report, nil
}

// OptimizationSuggestions inspects the last seven days and returns heuristic hints
func (s *Service) OptimizationSuggestions(ctx context.Context) ([]Suggestion, error) {
	now := s.now()
	since := now.Add(-suggestionWindow)

	counts, err := s.store.CountEvents(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	suggestions := []Suggestion{}

	hits := counts[models.EventFunctionCacheHit]
	failures := counts[models.EventFunctionFailure]
	executions := hits + counts[models.EventFunctionSuccess] + failures
	if executions > 0 {
		hitRate := float64(hits) / float64(executions)
		if hitRate < minCacheHitRate {
			suggestions = append(suggestions, Suggestion{
				Type:    "cache_hit_rate",
				Message: fmt.Sprintf("Cache hit rate is %.0f%%, below 60%%; consider longer TTLs or warming more answers", hitRate*100),
				Metric:  hitRate,
			})
		}
		failureRate := float64(failures) / float64(executions)
		if failureRate > maxFailureRate {
			suggestions = append(suggestions, Suggestion{
				Type:    "function_failures",
				Message: fmt.Sprintf("%d of %d function calls failed and returned a fallback", failures, executions),
				Metric:  failureRate,
			})
		}
	}

	if alerts := counts[models.EventCostAlert]; alerts > 0 {
		suggestions = append(suggestions, Suggestion{
			Type:    "cost_threshold",
			Message: fmt.Sprintf("%d calls exceeded the cost threshold of %s %s", alerts, s.config.AlertThreshold.String(), s.config.Currency),
			Metric:  float64(alerts),
		})
	}

	conversations, err := s.store.ListConversations(ctx, since, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	total, synthesis := decimal.Zero, decimal.Zero
	for _, conv := range conversations {
		if conv.Cost != nil {
			total = total.Add(conv.Cost.Total)
			synthesis = synthesis.Add(conv.Cost.SynthesisCost)
		}
	}
	if total.IsPositive() {
		share, _ := synthesis.Div(total).Float64()
		if share > maxSynthesisShare {
			suggestions = append(suggestions, Suggestion{
				Type:    "synthesis_share",
				Message: fmt.Sprintf("Speech synthesis is %.0f%% of call cost; shorten spoken responses", share*100),
				Metric:  share,
			})
		}
	}

	return suggestions, nil
}
