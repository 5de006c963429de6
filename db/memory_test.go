package db_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ststudios/whitelist/db"
	"github.com/ststudios/whitelist/types"
)

func newApp(applicantID, name string) *types.Application {
	return &types.Application{
		ApplicantID:   applicantID,
		ApplicantName: name,
		GameHandle:    name + "RP",
		Age:           20,
		Experience:    "some experience text",
		Status:        types.StatusPending,
	}
}

func TestMemoryInsertAssignsIDAndTimestamps(t *testing.T) {
	store := db.NewMemoryStore()

	app, err := store.Insert(context.Background(), newApp("100", "alice"))
	require.NoError(t, err)
	assert.NotEmpty(t, app.ID)
	assert.False(t, app.CreatedAt.IsZero())
	assert.Equal(t, app.CreatedAt, app.UpdatedAt)

	second, err := store.Insert(context.Background(), newApp("200", "bob"))
	require.NoError(t, err)
	assert.NotEqual(t, app.ID, second.ID)
}

func TestMemoryInsertEnforcesApplicantUniqueness(t *testing.T) {
	store := db.NewMemoryStore()

	_, err := store.Insert(context.Background(), newApp("100", "alice"))
	require.NoError(t, err)
	_, err = store.Insert(context.Background(), newApp("100", "alice"))
	assert.ErrorIs(t, err, db.ErrDuplicateApplicant)
}

// Concurrent submissions by the same applicant must produce exactly one
// record no matter how the goroutines interleave.
func TestMemoryInsertConcurrentSameApplicant(t *testing.T) {
	store := db.NewMemoryStore()

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Insert(context.Background(), newApp("100", "alice"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var created int
	for err := range errs {
		if err == nil {
			created++
		} else {
			assert.ErrorIs(t, err, db.ErrDuplicateApplicant)
		}
	}
	assert.Equal(t, 1, created)
}

func TestMemoryUpdate(t *testing.T) {
	store := db.NewMemoryStore()

	app, err := store.Insert(context.Background(), newApp("100", "alice"))
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	app.Status = types.StatusApproved
	updated, err := store.Update(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, updated.Status)
	assert.Equal(t, app.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(app.UpdatedAt))

	missing := newApp("999", "ghost")
	missing.ID = "999"
	_, err = store.Update(context.Background(), missing)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestMemoryListOrderingAndLimit(t *testing.T) {
	store := db.NewMemoryStore()

	for _, name := range []string{"first", "second", "third"} {
		_, err := store.Insert(context.Background(), newApp(name, name))
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	apps, err := store.ListByStatus(context.Background(), types.StatusPending, 0)
	require.NoError(t, err)
	require.Len(t, apps, 3)
	assert.Equal(t, "third", apps[0].ApplicantName, "most recent first")
	assert.Equal(t, "first", apps[2].ApplicantName)

	capped, err := store.ListByStatus(context.Background(), "", 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)
}

func TestMemoryCountByStatus(t *testing.T) {
	store := db.NewMemoryStore()

	a, err := store.Insert(context.Background(), newApp("100", "alice"))
	require.NoError(t, err)
	_, err = store.Insert(context.Background(), newApp("200", "bob"))
	require.NoError(t, err)

	a.Status = types.StatusRejected
	_, err = store.Update(context.Background(), a)
	require.NoError(t, err)

	counts, err := store.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[types.StatusPending])
	assert.Equal(t, int64(1), counts[types.StatusRejected])
	assert.Equal(t, int64(0), counts[types.StatusApproved])
}
