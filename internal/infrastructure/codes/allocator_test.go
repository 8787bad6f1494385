package codes

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"estate-backend/internal/domain"
	"estate-backend/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedDay = func() time.Time { return time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC) }

// allocateConcurrently runs n callers at once and returns the sorted codes.
func allocateConcurrently(t *testing.T, a Allocator, n int) []string {
	t.Helper()
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes []string
	)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := a.Allocate(context.Background())
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			codes = append(codes, code)
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	sort.Strings(codes)
	return codes
}

func expectedCodes(from, n int) []string {
	out := make([]string, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, fmt.Sprintf("POS-20250101-%03d", i))
	}
	return out
}

func TestGormAllocator_ConcurrentCallersGetSequentialCodes(t *testing.T) {
	a := &GormAllocator{DB: testutil.OpenDB(t), Prefix: "POS", Now: fixedDay}
	codes := allocateConcurrently(t, a, 50)
	assert.Equal(t, expectedCodes(1, 50), codes)
}

func TestGormAllocator_SeedsFromExistingCodes(t *testing.T) {
	db := testutil.OpenDB(t)
	require.NoError(t, db.Create(&domain.Possession{
		PossessionCode: "POS-20250101-007",
		FileID:         "F1",
		PlotID:         "P1",
		Status:         domain.StatusRequested,
		InitDate:       fixedDay(),
		CreatedBy:      "tester",
		UpdatedBy:      "tester",
	}).Error)
	a := &GormAllocator{DB: db, Prefix: "POS", Now: fixedDay}
	first, err := a.Allocate(context.Background())
	require.NoError(t, err)
	second, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "POS-20250101-008", first)
	assert.Equal(t, "POS-20250101-009", second)
}

func TestGormAllocator_NewDayRestartsAtOne(t *testing.T) {
	day := fixedDay()
	a := &GormAllocator{DB: testutil.OpenDB(t), Prefix: "POS", Now: func() time.Time { return day }}
	_, err := a.Allocate(context.Background())
	require.NoError(t, err)

	day = day.AddDate(0, 0, 1)
	code, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "POS-20250102-001", code)
}

func TestRedisAllocator_ConcurrentCallersGetSequentialCodes(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	a := &RedisAllocator{
		Rdb:    rdb,
		Prefix: "POS",
		Now:    fixedDay,
		Seed:   func(ctx context.Context, dayPrefix string) (int, error) { return 3, nil },
	}
	codes := allocateConcurrently(t, a, 50)
	assert.Equal(t, expectedCodes(4, 50), codes)
	assert.True(t, mr.Exists("possession:code_seq:POS-20250101"))
}
