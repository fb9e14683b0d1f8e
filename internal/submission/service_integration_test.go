//go:build integration

package submission

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tallyboard/internal/models"
	"tallyboard/internal/testutil"
	"tallyboard/internal/testutil/containers"
)

func TestSubmit_PostgresConcurrentStationCreation(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	db := pg.DB
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(16)

	path := testutil.SeedPath(t, db, testutil.DefaultPlace)
	svc := newService(t, db, Options{})

	const agents = 12
	start := make(chan struct{})
	errs := make([]error, agents)
	var wg sync.WaitGroup
	for i := 0; i < agents; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Submit(context.Background(), doc(path,
				station(1, 100, 60, 55, 3, 2, 30, 25),
				station(2, 90, 50, 50, 0, 0, 20, 30),
			))
		}(i)
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), testutil.CountRows(t, db, &models.PollingStation{}))
	assert.Equal(t, int64(2*agents), testutil.CountRows(t, db, &models.BallotRecord{}))
}

func TestSubmit_PostgresInsertFailureCarriesSQLState(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	db := pg.DB
	path := testutil.SeedPath(t, db, testutil.DefaultPlace)
	require.NoError(t, db.Exec("ALTER TABLE ballot_records ADD CONSTRAINT small_centers CHECK (registered_voters < 50)").Error)
	svc := newService(t, db, Options{})

	_, err := svc.Submit(context.Background(), doc(path,
		station(1, 10, 5, 5, 0, 0, 5, 0),
		station(2, 100, 60, 55, 3, 2, 30, 25),
	))

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "23514", storeErr.Code)
	assert.Zero(t, testutil.CountRows(t, db, &models.BallotRecord{}))
	assert.Zero(t, testutil.CountRows(t, db, &models.PollingStation{}))
}
