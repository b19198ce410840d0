package orchestration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/healthharmony/assistant/internal/domain/assessment"
	"github.com/healthharmony/assistant/internal/domain/profile"
	"github.com/healthharmony/assistant/internal/infrastructure/monitoring"
	"github.com/healthharmony/assistant/internal/ports/inbound"
	"github.com/healthharmony/assistant/test/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDebouncer_SingleCallRuns(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	var calls int32

	err := d.Do(context.Background(), "k", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Zero(t, d.Pending())
}

func TestDebouncer_BurstRunsOnlyLatest(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	var calls int32
	var ran atomic.Value

	results := make([]error, 3)
	var wg sync.WaitGroup
	for i, q := range []string{"as", "asp", "aspi"} {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			results[i] = d.Do(context.Background(), "owner:medications", func(ctx context.Context) error {
				atomic.AddInt32(&calls, 1)
				ran.Store(q)
				return nil
			})
		}(i, q)
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "aspi", ran.Load())
	assert.ErrorIs(t, results[0], ErrSuperseded)
	assert.ErrorIs(t, results[1], ErrSuperseded)
	assert.NoError(t, results[2])
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls int32

	var wg sync.WaitGroup
	for _, key := range []string{"a:allergies", "a:medications"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			assert.NoError(t, d.Do(context.Background(), key, func(ctx context.Context) error {
				atomic.AddInt32(&calls, 1)
				return nil
			}))
		}(key)
	}
	wg.Wait()

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDebouncer_ContextCancelled(t *testing.T) {
	d := NewDebouncer(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Do(ctx, "k", func(ctx context.Context) error {
		t.Fatal("must not run")
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, d.Pending())
}

func TestDebouncer_InFlightCallIsCancelledBySuccessor(t *testing.T) {
	d := NewDebouncer(5 * time.Millisecond)
	running := make(chan struct{})

	first := make(chan error, 1)
	go func() {
		first <- d.Do(context.Background(), "k", func(ctx context.Context) error {
			close(running)
			<-ctx.Done()
			return ctx.Err()
		})
	}()
	<-running

	err := d.Do(context.Background(), "k", func(ctx context.Context) error { return nil })

	require.NoError(t, err)
	assert.ErrorIs(t, <-first, ErrSuperseded)
}

func TestSuggester_ShortQuerySkipsModel(t *testing.T) {
	for _, query := range []string{"", "p", "é", "脂"} {
		t.Run(query, func(t *testing.T) {
			flows := new(testutils.MockFlowService)
			s := NewSuggester(flows, NewDebouncer(time.Second), nil, zaptest.NewLogger(t))

			started := time.Now()
			result, err := s.Suggest(context.Background(), inbound.Owner{SessionID: "s"}, inbound.SuggestionsQuery{
				Category: profile.CategoryAllergies,
				Query:    query,
			})

			require.NoError(t, err)
			assert.Empty(t, result.Suggestions)
			assert.Less(t, time.Since(started), 500*time.Millisecond, "no debounce wait")
			flows.AssertNotCalled(t, "GetSuggestions", mock.Anything, mock.Anything)
		})
	}
}

func TestSuggester_RapidTypingCallsModelOnce(t *testing.T) {
	flows := new(testutils.MockFlowService)
	flows.On("GetSuggestions", mock.Anything, inbound.SuggestionsQuery{Category: profile.CategoryAllergies, Query: "pean"}).
		Return(&assessment.SuggestionsResult{Suggestions: []string{"Peanuts"}}, nil).Once()
	logger := zaptest.NewLogger(t)
	metrics := monitoring.NewMetricsCollector(monitoring.NewRegistry(), logger)
	s := NewSuggester(flows, NewDebouncer(40*time.Millisecond), metrics, logger)
	owner := inbound.Owner{SessionID: "s"}

	var wg sync.WaitGroup
	var superseded int32
	for _, q := range []string{"pe", "pea", "pean"} {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			result, err := s.Suggest(context.Background(), owner, inbound.SuggestionsQuery{Category: profile.CategoryAllergies, Query: q})
			if err != nil {
				assert.ErrorIs(t, err, ErrSuperseded)
				atomic.AddInt32(&superseded, 1)
				return
			}
			assert.Equal(t, []string{"Peanuts"}, result.Suggestions)
		}(q)
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, int32(2), atomic.LoadInt32(&superseded))
	flows.AssertNumberOfCalls(t, "GetSuggestions", 1)
}
