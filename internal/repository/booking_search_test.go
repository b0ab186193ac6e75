package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/citizen-booking/internal/authscope"
	"github.com/iliyamo/citizen-booking/internal/testutil"
)

// cancellingQueryer cancels every query's context once its rows are open
// and waits until database/sql has closed them.
type cancellingQueryer struct {
	*sql.DB
}

func (q cancellingQueryer) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, cancel := context.WithCancel(ctx)
	rows, err := q.DB.QueryContext(ctx, query, args...)
	if err != nil {
		cancel()
		return nil, err
	}
	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := rows.Columns(); err != nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	return rows, nil
}

func TestFetchReportsIterationErrors(t *testing.T) {
	db := testutil.NewDB(t)
	where, args := BookingFilter{Scope: authscope.Predicate{All: true}}.where()

	ok := &bookingSource{db: db, where: where, args: args}
	items, err := ok.Fetch(context.Background(), 1<<40, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, items)

	broken := &bookingSource{db: cancellingQueryer{db}, where: where, args: args}
	_, err = broken.Fetch(context.Background(), 1<<40, 0, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

}
