// Package flows implements the model backed request/response operations:
// each flow renders a prompt, makes exactly one model call and returns the
// output only after it has been validated against the flow's shape.
package flows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/healthharmony/assistant/internal/domain/assessment"
	"github.com/healthharmony/assistant/internal/domain/profile"
	"github.com/healthharmony/assistant/internal/infrastructure/monitoring"
	"github.com/healthharmony/assistant/internal/ports/inbound"
	"github.com/healthharmony/assistant/internal/ports/outbound"
	apperrors "github.com/healthharmony/assistant/pkg/errors"
	"go.uber.org/zap"
)

// Flow names used in logs, metrics and cache keys
const (
	FlowValidate      = "validateProfileItem"
	FlowSuggestions   = "getSuggestions"
	FlowCompatibility = "checkItemCompatibility"
	FlowAlternatives  = "suggestAlternatives"
	FlowAdvice        = "getPostIngestionAdvice"
	FlowTips          = "getLifestyleTips"
)

// MinInputLength is the shortest item name or query sent to the model
const MinInputLength = 2

// Options tunes model calls
type Options struct {
	Timeout       time.Duration
	CacheTTL      time.Duration
	MaxPhotoBytes int
	Temperature   float64
	MaxTokens     int
}

// Service implements inbound.FlowService
type Service struct {
	provider outbound.ModelProvider
	cache    outbound.CacheRepository
	validate *validator.Validate
	metrics  *monitoring.MetricsCollector
	tracing  *monitoring.TracingProvider
	logger   *zap.Logger
	opts     Options
}

// NewService creates the flow service. cache, metrics and tracing may be nil.
func NewService(
	provider outbound.ModelProvider,
	cache outbound.CacheRepository,
	metrics *monitoring.MetricsCollector,
	tracing *monitoring.TracingProvider,
	logger *zap.Logger,
	opts Options,
) *Service {
	return &Service{
		provider: provider,
		cache:    cache,
		validate: validator.New(),
		metrics:  metrics,
		tracing:  tracing,
		logger:   logger.Named("flow-service"),
		opts:     opts,
	}
}

var _ inbound.FlowService = (*Service)(nil)

// Wire shapes. Pointers and required tags distinguish a missing field from
// a zero value.
type validationOutput struct {
	IsValid *bool `json:"isValid" validate:"required"`
}

type suggestionsOutput struct {
	Suggestions []string `json:"suggestions" validate:"required"`
}

type compatibilityOutput struct {
	IsValidItem *bool   `json:"isValidItem" validate:"required"`
	RiskLevel   *string `json:"riskLevel"`
	Analysis    *string `json:"analysis"`
}

type alternativesOutput struct {
	Alternatives []assessment.Alternative `json:"alternatives" validate:"required"`
}

type adviceOutput struct {
	Advice *string `json:"advice" validate:"required"`
}

type tipsOutput struct {
	Tips []assessment.LifestyleTip `json:"tips" validate:"required"`
}

// ValidateProfileItem asks the model whether an entry is a real term for
// its category. Entries shorter than two characters are rejected locally.
func (s *Service) ValidateProfileItem(ctx context.Context, cmd inbound.ValidateItemCommand) (*assessment.ValidationResult, error) {
	if !cmd.Category.IsValid() {
		return nil, apperrors.NewValidationError(profile.ErrUnknownCategory.Error())
	}
	item := strings.TrimSpace(cmd.ItemName)
	if utf8.RuneCountInString(item) < MinInputLength {
		s.metrics.FlowShortCircuit(FlowValidate, "too_short")
		return &assessment.ValidationResult{IsValid: false}, nil
	}

	key := cacheKey(FlowValidate, cmd.Category, item)
	var cached assessment.ValidationResult
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	req, err := validatePrompt.request(categoryData{Category: cmd.Category, Item: item})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build prompt")
	}

	out, err := generate[validationOutput](ctx, s, FlowValidate, req, s.structValidator)
	if err != nil {
		return nil, err
	}

	result := &assessment.ValidationResult{IsValid: *out.IsValid}
	s.cacheSet(ctx, key, result)
	return result, nil
}

// GetSuggestions returns up to five autocomplete candidates. Queries
// shorter than two characters return an empty list without a model call.
func (s *Service) GetSuggestions(ctx context.Context, query inbound.SuggestionsQuery) (*assessment.SuggestionsResult, error) {
	if !query.Category.IsValid() {
		return nil, apperrors.NewValidationError(profile.ErrUnknownCategory.Error())
	}
	if utf8.RuneCountInString(query.Query) < MinInputLength {
		s.metrics.FlowShortCircuit(FlowSuggestions, "too_short")
		return &assessment.SuggestionsResult{Suggestions: []string{}}, nil
	}

	key := cacheKey(FlowSuggestions, query.Category, query.Query)
	var cached assessment.SuggestionsResult
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	req, err := suggestionsPrompt.request(categoryData{Category: query.Category, Item: query.Query})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build prompt")
	}

	out, err := generate[suggestionsOutput](ctx, s, FlowSuggestions, req, s.structValidator)
	if err != nil {
		return nil, err
	}

	result := &assessment.SuggestionsResult{Suggestions: out.Suggestions}
	result.Normalize()
	s.cacheSet(ctx, key, result)
	return result, nil
}

// CheckItemCompatibility assesses an item, described by name, photos or
// both, against a profile.
func (s *Service) CheckItemCompatibility(ctx context.Context, cmd inbound.CompatibilityCommand) (*assessment.CompatibilityResult, error) {
	item := strings.TrimSpace(cmd.ItemName)
	if item == "" && len(cmd.Photos) == 0 {
		return nil, apperrors.NewValidationError(assessment.ErrNothingToCheck.Error())
	}
	photos, err := assessment.ParsePhotos(cmd.Photos, s.opts.MaxPhotoBytes)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	req, err := compatibilityPrompt.request(profileData{Profile: cmd.Profile, ItemName: item, Photos: len(photos)})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build prompt")
	}

	req.Images = photos
	req.SafetySettings = compatibilitySafety
	out, err := generate[compatibilityOutput](ctx, s, FlowCompatibility, req, s.structValidator)
	if err != nil {
		return nil, err
	}

	result := &assessment.CompatibilityResult{IsValidItem: *out.IsValidItem}
	if out.RiskLevel != nil {
		result.RiskLevel = assessment.RiskLevel(strings.TrimSpace(*out.RiskLevel))
	}
	if out.Analysis != nil {
		result.Analysis = *out.Analysis
	}
	if err := result.Finalize(); err != nil {
		return nil, s.contractError(ctx, FlowCompatibility, err)
	}

	s.logger.Debug("Compatibility assessed",
		zap.Bool("valid_item", result.IsValidItem),
		zap.String("risk_level", result.RiskLevel.String()),
		zap.Int("photos", len(photos)))
	return result, nil
}

// SuggestAlternatives proposes safer options for a risky item
func (s *Service) SuggestAlternatives(ctx context.Context, cmd inbound.ItemCommand) (*assessment.AlternativesResult, error) {
	item, err := requireItem(cmd.ItemName)
	if err != nil {
		return nil, err
	}

	req, err := alternativesPrompt.request(profileData{Profile: cmd.Profile, ItemName: item})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build prompt")
	}

	out, err := generate[alternativesOutput](ctx, s, FlowAlternatives, req, s.structValidator)
	if err != nil {
		return nil, err
	}

	result := &assessment.AlternativesResult{Alternatives: out.Alternatives}
	if err := result.Finalize(); err != nil {
		return nil, s.contractError(ctx, FlowAlternatives, err)
	}
	return result, nil
}

// GetPostIngestionAdvice returns symptom-monitoring guidance for an item
// that was already taken.
func (s *Service) GetPostIngestionAdvice(ctx context.Context, cmd inbound.ItemCommand) (*assessment.AdviceResult, error) {
	item, err := requireItem(cmd.ItemName)
	if err != nil {
		return nil, err
	}

	req, err := advicePrompt.request(profileData{Profile: cmd.Profile, ItemName: item})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build prompt")
	}

	out, err := generate[adviceOutput](ctx, s, FlowAdvice, req, s.structValidator)
	if err != nil {
		return nil, err
	}

	result := &assessment.AdviceResult{Advice: *out.Advice}
	if err := result.Finalize(); err != nil {
		return nil, s.contractError(ctx, FlowAdvice, err)
	}
	return result, nil
}

// GetLifestyleTips returns general tips for the profile, or general
// wellness tips when the profile is empty.
func (s *Service) GetLifestyleTips(ctx context.Context, query inbound.TipsQuery) (*assessment.LifestyleTipsResult, error) {
	req, err := tipsPrompt.request(profileData{Profile: query.Profile})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build prompt")
	}

	out, err := generate[tipsOutput](ctx, s, FlowTips, req, s.structValidator)
	if err != nil {
		return nil, err
	}

	result := &assessment.LifestyleTipsResult{Tips: out.Tips}
	if err := result.Finalize(); err != nil {
		return nil, s.contractError(ctx, FlowTips, err)
	}
	return result, nil
}

// generate performs the single model call of a flow and decodes its output
func generate[T any](ctx context.Context, s *Service, flow string, req outbound.ModelRequest, validate func(any) error) (*T, error) {
	ctx, span := s.tracing.StartFlowSpan(ctx, flow)
	defer span.End()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	req.Flow = flow
	req.Temperature = s.opts.Temperature
	req.MaxTokens = s.opts.MaxTokens

	start := time.Now()
	resp, err := s.provider.Generate(ctx, req)
	if err != nil {
		s.metrics.FlowRequest(flow, "provider_error", time.Since(start))
		monitoring.RecordError(ctx, err)
		s.logger.Warn("Model call failed",
			zap.String("flow", flow),
			zap.String("provider", s.provider.Name()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, s.providerError(ctx, err)
	}
	s.metrics.ModelTokens(resp.Provider, resp.PromptTokens, resp.CompletionTokens)

	out, err := decodeOutput[T](resp.Text, func(v T) error { return validate(v) })
	if err != nil {
		s.metrics.FlowRequest(flow, "contract_error", time.Since(start))
		return nil, s.contractError(ctx, flow, err, zap.String("raw", truncate(resp.Text, 512)))
	}

	s.metrics.FlowRequest(flow, "ok", time.Since(start))
	s.logger.Debug("Flow completed",
		zap.String("flow", flow),
		zap.String("provider", resp.Provider),
		zap.String("model", resp.Model),
		zap.Duration("duration", time.Since(start)))
	return &out, nil
}

func (s *Service) structValidator(v any) error {
	return s.validate.Struct(v)
}

func (s *Service) contractError(ctx context.Context, flow string, err error, fields ...zap.Field) error {
	monitoring.RecordError(ctx, err)
	s.logger.Warn("Model output rejected",
		append([]zap.Field{zap.String("flow", flow), zap.Error(err)}, fields...)...)
	return apperrors.NewModelContractError(flow, err)
}

// providerError keeps caller cancellation visible and classifies every
// other failure as a provider outage.
func (s *Service) providerError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if apperrors.GetCode(err) == apperrors.CodeProviderUnavailable {
		return err
	}
	return apperrors.NewProviderUnavailableError(s.provider.Name(), err)
}

func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.cache == nil || s.opts.CacheTTL <= 0 {
		return false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, outbound.ErrCacheMiss) {
			s.metrics.CacheOperation("get", "error")
			s.logger.Warn("Flow cache read failed", zap.String("key", key), zap.Error(err))
		} else {
			s.metrics.CacheOperation("get", "miss")
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warn("Discarding corrupt cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	s.metrics.CacheOperation("get", "hit")
	return true
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil || s.opts.CacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.opts.CacheTTL); err != nil {
		s.metrics.CacheOperation("set", "error")
		s.logger.Warn("Flow cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.metrics.CacheOperation("set", "ok")
}

func cacheKey(flow string, category profile.Category, input string) string {
	return fmt.Sprintf("flow:%s:%s:%s", flow, category, strings.ToLower(strings.TrimSpace(input)))
}

func requireItem(name string) (string, error) {
	item := strings.TrimSpace(name)
	if item == "" {
		return "", apperrors.NewValidationError("itemName is required")
	}
	return item, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
