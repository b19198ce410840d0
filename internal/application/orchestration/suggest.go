package orchestration

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/healthharmony/assistant/internal/application/flows"
	"github.com/healthharmony/assistant/internal/domain/assessment"
	"github.com/healthharmony/assistant/internal/infrastructure/monitoring"
	"github.com/healthharmony/assistant/internal/ports/inbound"
	"go.uber.org/zap"
)

// Suggester debounces autocomplete requests per owner and category
type Suggester struct {
	flows     inbound.FlowService
	debouncer *Debouncer
	metrics   *monitoring.MetricsCollector
	logger    *zap.Logger
}

// NewSuggester creates a suggester
func NewSuggester(flows inbound.FlowService, debouncer *Debouncer, metrics *monitoring.MetricsCollector, logger *zap.Logger) *Suggester {
	return &Suggester{
		flows:     flows,
		debouncer: debouncer,
		metrics:   metrics,
		logger:    logger.Named("suggester"),
	}
}

// Suggest returns suggestions for the owner's latest query. Earlier pending
// queries for the same category return ErrSuperseded.
func (s *Suggester) Suggest(ctx context.Context, owner inbound.Owner, query inbound.SuggestionsQuery) (*assessment.SuggestionsResult, error) {
	// short queries skip the debounce wait, matching the flow's short-circuit
	if utf8.RuneCountInString(query.Query) < flows.MinInputLength {
		return &assessment.SuggestionsResult{Suggestions: []string{}}, nil
	}

	var result *assessment.SuggestionsResult
	err := s.debouncer.Do(ctx, owner.Key()+":"+string(query.Category), func(ctx context.Context) error {
		var err error
		result, err = s.flows.GetSuggestions(ctx, query)
		return err
	})
	if errors.Is(err, ErrSuperseded) {
		s.metrics.SuggestionSuperseded()
		s.logger.Debug("Suggestion request superseded",
			zap.String("owner", owner.Key()),
			zap.String("category", string(query.Category)))
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
