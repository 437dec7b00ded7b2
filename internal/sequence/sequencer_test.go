package sequence_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ZED-Magdy/storefront-checkout/internal/sequence"
)

func startPostgres(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.Run(ctx, "postgres:17.6-alpine3.22",
		postgres.BasicWaitStrategies(),
		postgres.WithInitScripts(
			"../../migrations/000001_init.up.sql"),
	)
	if err != nil {
		return nil, "", fmt.Errorf("postgres.Run: %w", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", fmt.Errorf("pc.ConnectionString: %w", err)
	}

	return postgresContainer, connStr, nil
}

type sequencerSuite struct {
	suite.Suite

	pool *pgxpool.Pool
	seq  *sequence.Sequencer
}

func TestSequencerSuite(t *testing.T) {
	suite.Run(t, new(sequencerSuite))
}

func (s *sequencerSuite) SetupSuite() {
	ctx := s.T().Context()

	_, connStr, err := startPostgres(ctx)
	s.Require().NoError(err)

	s.pool, err = pgxpool.New(ctx, connStr)
	s.Require().NoError(err)

	s.seq = sequence.NewSequencer()
}

func (s *sequencerSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *sequencerSuite) TearDownTest() {
	_, err := s.pool.Exec(context.Background(), `TRUNCATE orders CASCADE`)
	s.Require().NoError(err)
}

// allocate takes the next number and commits an order carrying it, which
// is what makes the number observable.
func (s *sequencerSuite) allocate(ctx context.Context, userID int64) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	n, err := s.seq.Next(ctx, tx, userID)
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, order_number, subtotal_cents, shipping_cents, tax_cents, total_cents, status)
		VALUES ($1, $2, $3, 0, 0, 0, 0, 'pending')`,
		uuid.NewString(), userID, n)
	if err != nil {
		return 0, err
	}

	return n, tx.Commit(ctx)
}

func (s *sequencerSuite) TestNext_StartsAtOnePerUser() {
	t := s.T()
	ctx := t.Context()

	n, err := s.allocate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.allocate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.allocate(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func (s *sequencerSuite) TestNext_AbortedTransactionLeavesNoGap() {
	t := s.T()
	ctx := t.Context()

	_, err := s.allocate(ctx, 1)
	require.NoError(t, err)

	// allocate and roll back: the number was never committed
	tx, err := s.pool.Begin(ctx)
	require.NoError(t, err)
	n, err := s.seq.Next(ctx, tx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, tx.Rollback(ctx))

	n, err = s.allocate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func (s *sequencerSuite) TestNext_ConcurrentAllocationsAreDense() {
	t := s.T()

	const workers = 10
	var wg sync.WaitGroup
	numbers := make(chan int64, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.allocate(context.Background(), 42)
			if err != nil {
				t.Errorf("allocate: %v", err)
				return
			}
			numbers <- n
		}()
	}
	wg.Wait()
	close(numbers)

	seen := map[int64]bool{}
	for n := range numbers {
		assert.False(t, seen[n], "duplicate order number %d", n)
		seen[n] = true
	}
	for want := int64(1); want <= workers; want++ {
		assert.True(t, seen[want], "missing order number %d", want)
	}
}

func (s *sequencerSuite) TestPreview_DoesNotAllocate() {
	t := s.T()
	ctx := t.Context()

	n, err := s.seq.Preview(ctx, s.pool, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// previewing again still returns the same number
	n, err = s.seq.Preview(ctx, s.pool, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
