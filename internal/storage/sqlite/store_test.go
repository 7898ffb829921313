package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featureboard/featureboard/internal/storage"
	"github.com/featureboard/featureboard/internal/types"
)

func createFeature(t *testing.T, s *SQLiteStorage, f *types.Feature) *types.Feature {
	t.Helper()
	err := s.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		return tx.CreateFeature(context.Background(), f)
	})
	require.NoError(t, err)
	return f
}

func update(t *testing.T, s *SQLiteStorage, id int64, updates map[string]interface{}) {
	t.Helper()
	err := s.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		return tx.UpdateFeature(context.Background(), id, updates)
	})
	require.NoError(t, err)
}

func TestCreateAndGetFeature(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, WithClock(clock.Now))

	f := createFeature(t, store, &types.Feature{
		Category:    "auth",
		Name:        "Login",
		Description: "User can log in",
		Steps:       []string{"open page", "submit form"},
		Priority:    1,
	})
	require.NotZero(t, f.ID)

	got, err := store.GetFeature(ctx, f.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(f, got); diff != "" {
		t.Errorf("GetFeature mismatch (-created +read):\n%s", diff)
	}
	assert.True(t, got.CreatedAt.Equal(clock.Now()))
	assert.True(t, got.ModifiedAt.Equal(clock.Now()))
}

func TestCreateFeatureWithExplicitID(t *testing.T) {
	store := newTestStore(t)
	f := createFeature(t, store, &types.Feature{ID: 42, Category: "c", Name: "n", Priority: 3})
	assert.Equal(t, int64(42), f.ID)

	err := store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		return tx.CreateFeature(context.Background(), &types.Feature{ID: 42, Category: "c", Name: "dup"})
	})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestCreateFeatureValidates(t *testing.T) {
	store := newTestStore(t)
	err := store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		return tx.CreateFeature(context.Background(), &types.Feature{Category: "c"})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestNilStepsReadBackEmpty(t *testing.T) {
	store := newTestStore(t)
	f := createFeature(t, store, &types.Feature{Category: "c", Name: "n"})
	got, err := store.GetFeature(context.Background(), f.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Steps)
	assert.Empty(t, got.Steps)
}

func TestGetFeatureNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetFeature(context.Background(), 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateFeatureManagesCompletedAt(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, WithClock(clock.Now))
	f := createFeature(t, store, &types.Feature{Category: "c", Name: "n", Priority: 1})

	clock.Advance(time.Hour)
	update(t, store, f.ID, map[string]interface{}{storage.FieldPasses: true})
	got, err := store.GetFeature(ctx, f.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(clock.Now()))
	assert.True(t, got.ModifiedAt.Equal(clock.Now()))
	assert.True(t, got.CreatedAt.Before(got.ModifiedAt))

	update(t, store, f.ID, map[string]interface{}{storage.FieldInProgress: true})
	got, err = store.GetFeature(ctx, f.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.CompletedAt, "in_progress must not touch completed_at")

	update(t, store, f.ID, map[string]interface{}{storage.FieldPasses: false})
	got, err = store.GetFeature(ctx, f.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CompletedAt)
}

func TestUpdateFeatureRejectsUnknownField(t *testing.T) {
	store := newTestStore(t)
	f := createFeature(t, store, &types.Feature{Category: "c", Name: "n"})
	err := store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		return tx.UpdateFeature(context.Background(), f.ID, map[string]interface{}{"completed_at": nil})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid field")

	err = store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		return tx.UpdateFeature(context.Background(), f.ID, map[string]interface{}{storage.FieldPriority: "high"})
	})
	require.Error(t, err)
}

func TestUpdateAndDeleteMissingFeature(t *testing.T) {
	store := newTestStore(t)
	err := store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		return tx.UpdateFeature(context.Background(), 5, map[string]interface{}{storage.FieldName: "x"})
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		return tx.DeleteFeature(context.Background(), 5)
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListFeaturesOrdering(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, WithClock(clock.Now))

	a := createFeature(t, store, &types.Feature{Category: "c", Name: "a", Priority: 3})
	b := createFeature(t, store, &types.Feature{Category: "c", Name: "b", Priority: 1})
	c := createFeature(t, store, &types.Feature{Category: "other", Name: "c", Priority: 2})
	d := createFeature(t, store, &types.Feature{Category: "c", Name: "d", Priority: 1})

	all, err := store.ListFeatures(ctx, types.FeatureFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID, d.ID, c.ID, a.ID}, ids(all), "priority asc, ties by id asc")

	category := "c"
	filtered, err := store.ListFeatures(ctx, types.FeatureFilter{Category: &category})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID, d.ID, a.ID}, ids(filtered))

	// Complete a, then b; leave d done without a timestamp (legacy row).
	clock.Advance(time.Minute)
	update(t, store, a.ID, map[string]interface{}{storage.FieldPasses: true})
	clock.Advance(time.Minute)
	update(t, store, b.ID, map[string]interface{}{storage.FieldPasses: true})
	_, err = store.UnderlyingDB().Exec(`UPDATE features SET passes = 1, completed_at = NULL WHERE id = ?`, d.ID)
	require.NoError(t, err)

	passes := true
	done, err := store.ListFeatures(ctx, types.FeatureFilter{Passes: &passes})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID, a.ID, d.ID}, ids(done), "completed_at desc, nulls last")

	since := clock.Now().Add(-30 * time.Second)
	recent, err := store.ListFeatures(ctx, types.FeatureFilter{Passes: &passes, CompletedAfter: &since})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, ids(recent))
}

func TestListFeaturesPagination(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for i := 1; i <= 5; i++ {
		createFeature(t, store, &types.Feature{Category: "c", Name: "f", Priority: i})
	}

	page, err := store.ListFeatures(ctx, types.FeatureFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 2, page[0].Priority)
	assert.Equal(t, 3, page[1].Priority)

	tail, err := store.ListFeatures(ctx, types.FeatureFilter{Offset: 3})
	require.NoError(t, err)
	assert.Len(t, tail, 2)

	n, err := store.CountFeatures(ctx, types.FeatureFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, n, "count ignores pagination")
}

func TestGetStatistics(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	stats, err := store.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Statistics{}, *stats)

	f1 := createFeature(t, store, &types.Feature{Category: "c", Name: "1"})
	f2 := createFeature(t, store, &types.Feature{Category: "c", Name: "2"})
	createFeature(t, store, &types.Feature{Category: "c", Name: "3"})
	update(t, store, f1.ID, map[string]interface{}{storage.FieldPasses: true})
	update(t, store, f2.ID, map[string]interface{}{storage.FieldInProgress: true})

	stats, err = store.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Statistics{Passing: 1, InProgress: 1, Total: 3, Percentage: 33.3}, *stats)
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	boom := errors.New("boom")

	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.CreateFeature(ctx, &types.Feature{Category: "c", Name: "n"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := store.CountFeatures(ctx, types.FeatureFilter{})
	require.NoError(t, err)
	assert.Zero(t, n, "created row must be rolled back")
}

func TestRunInTransactionRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	assert.Panics(t, func() {
		_ = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			_ = tx.CreateFeature(ctx, &types.Feature{Category: "c", Name: "n"})
			panic("oops")
		})
	})

	n, err := store.CountFeatures(ctx, types.FeatureFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

// TestConcurrentReadModifyWrite checks that read-max-then-insert sequences in
// separate transactions never observe the same maximum.
func TestConcurrentReadModifyWrite(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	const workers = 8
	const perWorker = 5
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
					p, err := tx.MaxPriority(ctx)
					if err != nil {
						return err
					}
					return tx.CreateFeature(ctx, &types.Feature{Category: "c", Name: "n", Priority: p + 1})
				})
				if err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent transaction failed: %v", err)
	}

	all, err := store.ListFeatures(ctx, types.FeatureFilter{})
	require.NoError(t, err)
	require.Len(t, all, workers*perWorker)
	for i, f := range all {
		assert.Equal(t, i+1, f.Priority, "priorities must be 1..N with no duplicates")
	}
}

func TestClosedStore(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())
	assert.True(t, store.IsClosed())
	require.NoError(t, store.Close(), "second Close is a no-op")

	_, err := store.GetFeature(context.Background(), 1)
	assert.ErrorIs(t, err, storage.ErrClosed)
	err = store.RunInTransaction(context.Background(), func(storage.Transaction) error { return nil })
	assert.ErrorIs(t, err, storage.ErrClosed)
}

func TestParseTimeValueLayouts(t *testing.T) {
	want := time.Date(2025, 6, 7, 8, 9, 10, 123456000, time.UTC)
	for _, in := range []interface{}{
		"2025-06-07 08:09:10.123456",
		"2025-06-07T08:09:10.123456",
		"2025-06-07T08:09:10.123456Z",
		[]byte("2025-06-07 08:09:10.123456"),
		want,
	} {
		got := parseTimeValue(in)
		if got == nil || !got.Equal(want) {
			t.Errorf("parseTimeValue(%v) = %v, want %v", in, got, want)
		}
	}
	assert.Nil(t, parseTimeValue(nil))
	assert.Nil(t, parseTimeValue(""))
	assert.Nil(t, parseTimeValue("not a time"))
}

func ids(features []*types.Feature) []int64 {
	out := make([]int64, 0, len(features))
	for _, f := range features {
		out = append(out, f.ID)
	}
	return out
}
