package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/formulation-studio/internal/formulation"
	"github.com/joelkehle/formulation-studio/internal/insights"
	"github.com/joelkehle/formulation-studio/internal/marketanalysis"
)

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seq := 0
	s, err := Open(filepath.Join(t.TempDir(), "studio.db"),
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("sub-%03d", seq)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, &now
}

func sampleResult() (formulation.Formulation, *formulation.QualityAssessment, insights.Insights) {
	f := formulation.Formulation{
		ProductName: "Dew Drop Serum",
		Category:    "skincare",
		Ingredients: []formulation.Ingredient{
			{Name: "Niacinamide", Percent: 5, CostPer100ml: formulation.Cost(40), WhyChosen: "proven efficacy"},
			{Name: "Aqua", Percent: 90},
		},
		LocalMarket: &marketanalysis.LocalMarketObservation{Location: "Pune", MarketSize: 2.5e7},
	}
	a := &formulation.QualityAssessment{OverallScore: 82, Summary: "Stable and marketable"}
	ins := insights.NewDeriver(nil, nil).Derive(f, "", "")
	return f, a, ins
}

func TestCreateAndGet(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	sub, err := s.Create(ctx, NewSubmission{Prompt: "a calming lavender body lotion", Category: " skincare ", City: "Pune"})
	require.NoError(t, err)
	assert.Equal(t, "sub-001", sub.ID)
	assert.Equal(t, StatusPending, sub.Status)
	assert.Equal(t, "skincare", sub.Category)

	got, err := s.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.Prompt, got.Prompt)
	assert.Equal(t, "Pune", got.City)
	assert.True(t, got.CreatedAt.Equal(*now))
	assert.Nil(t, got.Formulation)
	assert.Nil(t, got.Insights)
}

func TestGetMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLifecycleCompleted(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	sub, err := s.Create(ctx, NewSubmission{Prompt: "serum"})
	require.NoError(t, err)
	require.NoError(t, s.MarkGenerating(ctx, sub.ID))

	*now = now.Add(3 * time.Second)
	f, a, ins := sampleResult()
	require.NoError(t, s.Complete(ctx, sub.ID, f, a, ins))

	got, err := s.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.Formulation)
	assert.Equal(t, "Dew Drop Serum", got.Formulation.ProductName)
	require.NotNil(t, got.Formulation.Ingredients[0].CostPer100ml)
	assert.Equal(t, 40.0, *got.Formulation.Ingredients[0].CostPer100ml)
	assert.Nil(t, got.Formulation.Ingredients[1].CostPer100ml)
	require.NotNil(t, got.Assessment)
	assert.Equal(t, 82.0, got.Assessment.OverallScore)
	require.NotNil(t, got.Insights)
	assert.Equal(t, ins.MarketSize, got.Insights.MarketSize)
	assert.Equal(t, ins.Priorities, got.Insights.Priorities)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	// terminal states do not move
	err = s.Fail(ctx, sub.ID, "late failure")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "already completed")
	err = s.MarkGenerating(ctx, sub.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestLifecycleFailed(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	sub, err := s.Create(ctx, NewSubmission{Prompt: "shampoo"})
	require.NoError(t, err)
	require.NoError(t, s.Fail(ctx, sub.ID, "generation service returned 502"))

	got, err := s.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "generation service returned 502", got.Error)
	assert.True(t, got.Status.Terminal())

	f, a, ins := sampleResult()
	err = s.Complete(ctx, sub.ID, f, a, ins)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "already failed")
}

func TestCompleteWithoutAssessment(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	sub, err := s.Create(ctx, NewSubmission{Prompt: "dog treats"})
	require.NoError(t, err)
	f, _, ins := sampleResult()
	require.NoError(t, s.Complete(ctx, sub.ID, f, nil, ins))

	got, err := s.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Assessment)
}

func TestTransitionsOnMissingSubmission(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	f, a, ins := sampleResult()

	assert.ErrorIs(t, s.MarkGenerating(ctx, "missing"), ErrNotFound)
	assert.ErrorIs(t, s.Fail(ctx, "missing", "x"), ErrNotFound)
	assert.ErrorIs(t, s.Complete(ctx, "missing", f, a, ins), ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := s.Create(ctx, NewSubmission{Prompt: fmt.Sprintf("prompt %d", i)})
		require.NoError(t, err)
		*now = now.Add(500 * time.Millisecond)
	}

	list, err := s.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"sub-004", "sub-003", "sub-002"}, []string{list[0].ID, list[1].ID, list[2].ID})

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	sub, err := s1.Create(ctx, NewSubmission{Prompt: "kombucha"})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "kombucha", got.Prompt)
	require.NoError(t, s2.Ping(ctx))
}

func TestOpenBadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing-dir", "x.db"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}
