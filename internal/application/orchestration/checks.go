// Package orchestration coordinates the interactive parts of the assistant:
// the compatibility check state per owner and debounced autocomplete.
package orchestration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/healthharmony/assistant/internal/domain/assessment"
	"github.com/healthharmony/assistant/internal/infrastructure/monitoring"
	"github.com/healthharmony/assistant/internal/ports/inbound"
	apperrors "github.com/healthharmony/assistant/pkg/errors"
	"go.uber.org/zap"
)

// CheckStatus is the state of an owner's current compatibility check
type CheckStatus string

const (
	CheckIdle    CheckStatus = "idle"
	CheckLoading CheckStatus = "loading"
	CheckSuccess CheckStatus = "success"
	CheckFailed  CheckStatus = "failed"
)

// CheckState is what the result panel shows
type CheckState struct {
	Status     CheckStatus                     `json:"status"`
	Seq        uint64                          `json:"seq"`
	ItemName   string                          `json:"itemName,omitempty"`
	PhotoCount int                             `json:"photoCount"`
	Result     *assessment.CompatibilityResult `json:"result,omitempty"`
	Error      string                          `json:"error,omitempty"`
	ErrorCode  apperrors.ErrorCode             `json:"errorCode,omitempty"`
	FollowUp   bool                            `json:"followUp"`
	StartedAt  *time.Time                      `json:"startedAt,omitempty"`
	FinishedAt *time.Time                      `json:"finishedAt,omitempty"`
}

const subscriberBuffer = 8

type checkSlot struct {
	state    CheckState
	cancel   context.CancelFunc
	subs     map[uint64]chan CheckState
	nextID   uint64
	lastSeen time.Time
}

// CheckTracker runs compatibility checks with last-write-wins semantics:
// starting a check cancels the one in flight, and a completion that is not
// the latest is dropped.
type CheckTracker struct {
	flows   inbound.FlowService
	metrics *monitoring.MetricsCollector
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	slots map[string]*checkSlot
}

// NewCheckTracker creates a tracker
func NewCheckTracker(flows inbound.FlowService, metrics *monitoring.MetricsCollector, logger *zap.Logger) *CheckTracker {
	return &CheckTracker{
		flows:   flows,
		metrics: metrics,
		logger:  logger.Named("check-tracker"),
		now:     time.Now,
		slots:   make(map[string]*checkSlot),
	}
}

// Run starts a check for the owner and waits for it. The returned state is
// the owner's current state, which belongs to a newer check if this one was
// superseded; in that case the error is ErrSuperseded.
func (t *CheckTracker) Run(ctx context.Context, owner inbound.Owner, cmd inbound.CompatibilityCommand) (CheckState, error) {
	if strings.TrimSpace(cmd.ItemName) == "" && len(cmd.Photos) == 0 {
		return CheckState{}, apperrors.NewValidationError(assessment.ErrNothingToCheck.Error())
	}

	runCtx, seq := t.Begin(ctx, owner, strings.TrimSpace(cmd.ItemName), len(cmd.Photos))

	result, err := t.flows.CheckItemCompatibility(runCtx, cmd)
	if !t.Complete(owner, seq, result, err) {
		return t.Current(owner), ErrSuperseded
	}
	return t.Current(owner), err
}

// Begin moves the owner to Loading with a new sequence number, cancelling
// any check still in flight. The returned context is cancelled when a newer
// check begins.
func (t *CheckTracker) Begin(ctx context.Context, owner inbound.Owner, itemName string, photoCount int) (context.Context, uint64) {
	runCtx, cancel := context.WithCancel(ctx)
	started := t.now()

	t.mu.Lock()
	slot := t.slot(owner.Key())
	if slot.cancel != nil {
		slot.cancel()
	}
	slot.cancel = cancel
	slot.state = CheckState{
		Status:     CheckLoading,
		Seq:        slot.state.Seq + 1,
		ItemName:   itemName,
		PhotoCount: photoCount,
		StartedAt:  &started,
	}
	state := slot.state
	t.publish(slot, state)
	t.mu.Unlock()

	return runCtx, state.Seq
}

// Complete records the outcome of check seq. It reports false, leaving the
// state untouched, when a newer check has begun since.
func (t *CheckTracker) Complete(owner inbound.Owner, seq uint64, result *assessment.CompatibilityResult, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot := t.slot(owner.Key())
	if seq != slot.state.Seq || slot.state.Status != CheckLoading {
		t.metrics.StaleCheckDiscarded()
		t.logger.Debug("Discarding stale check result",
			zap.String("owner", owner.Key()),
			zap.Uint64("seq", seq),
			zap.Uint64("current_seq", slot.state.Seq))
		return false
	}

	if slot.cancel != nil {
		slot.cancel()
		slot.cancel = nil
	}

	finished := t.now()
	state := slot.state
	state.FinishedAt = &finished
	switch {
	case err != nil:
		state.Status = CheckFailed
		state.Error, state.ErrorCode = publicError(err)
	case result == nil:
		state.Status = CheckFailed
		state.Error, state.ErrorCode = apperrors.MessageGenericFailure, apperrors.CodeModelContract
	default:
		state.Status = CheckSuccess
		state.Result = result
		state.FollowUp = result.OffersFollowUp()
	}
	slot.state = state
	t.publish(slot, state)
	return true
}

// Current returns the owner's state, Idle if no check was ever started
func (t *CheckTracker) Current(owner inbound.Owner) CheckState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if slot, ok := t.slots[owner.Key()]; ok {
		return slot.state
	}
	return CheckState{Status: CheckIdle}
}

// Reset cancels any running check and returns the owner to Idle
func (t *CheckTracker) Reset(owner inbound.Owner) {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot := t.slot(owner.Key())
	if slot.cancel != nil {
		slot.cancel()
		slot.cancel = nil
	}
	slot.state = CheckState{Status: CheckIdle, Seq: slot.state.Seq}
	t.publish(slot, slot.state)
}

// Subscribe delivers every state transition for the owner, starting with
// the current state. Slow subscribers lose intermediate states, never the
// latest one. The returned func unsubscribes and closes the channel.
func (t *CheckTracker) Subscribe(owner inbound.Owner) (<-chan CheckState, func()) {
	ch := make(chan CheckState, subscriberBuffer)

	t.mu.Lock()
	key := owner.Key()
	slot := t.slot(key)
	id := slot.nextID
	slot.nextID++
	slot.subs[id] = ch
	ch <- slot.state
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if s, ok := t.slots[key]; ok {
				delete(s.subs, id)
			}
			close(ch)
		})
	}
}

func (t *CheckTracker) slot(key string) *checkSlot {
	slot, ok := t.slots[key]
	if !ok {
		slot = &checkSlot{state: CheckState{Status: CheckIdle}, subs: make(map[uint64]chan CheckState)}
		t.slots[key] = slot
	}
	slot.lastSeen = t.now()
	return slot
}

// Sweep drops owners untouched for longer than idle that have neither a
// check in flight nor a subscriber
func (t *CheckTracker) Sweep(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := t.now().Add(-idle)

	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for key, slot := range t.slots {
		if slot.cancel != nil || len(slot.subs) > 0 || !slot.lastSeen.Before(cutoff) {
			continue
		}
		delete(t.slots, key)
		removed++
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done
func (t *CheckTracker) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.Sweep(idle); n > 0 {
				t.logger.Debug("Swept idle check slots", zap.Int("count", n))
			}
		}
	}
}

// publish must be called with t.mu held
func (t *CheckTracker) publish(slot *checkSlot, state CheckState) {
	for _, ch := range slot.subs {
		select {
		case ch <- state:
			continue
		default:
		}
		// buffer full: drop the oldest queued state
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- state:
		default:
		}
	}
}

func publicError(err error) (string, apperrors.ErrorCode) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Code == apperrors.CodeValidationFailed && appErr.Details != "" {
			return appErr.Details, appErr.Code
		}
		return appErr.PublicMessage(), appErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.MessageRetryLater, apperrors.CodeProviderUnavailable
	}
	return apperrors.MessageGenericFailure, apperrors.CodeInternal
}
