package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/internal/entity"
	"tradeedge-alerts/pkg/logger"
)

func testEvent() *entity.FiringEvent {
	return &entity.FiringEvent{
		UserID:        42,
		StockAlertID:  1,
		ThresholdKind: entity.ThresholdTarget1,
		Revision:      1,
		CrossingPrice: dec("120"),
		FiredAt:       time.Now().UTC(),
	}
}

func TestLedgerCommitIsExactlyOnce(t *testing.T) {
	events := newFakeFiringEventsRepo()
	ledger := NewFiringLedger(events, logger.NewNop(), 3, time.Millisecond)

	isNew, err := ledger.Commit(context.Background(), testEvent())
	require.NoError(t, err)
	assert.True(t, isNew)

	// Same key again: the stored event wins and nothing new is recorded.
	replay := testEvent()
	isNew, err = ledger.Commit(context.Background(), replay)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Len(t, events.all(), 1)
}

func TestLedgerCommitDistinguishesRevisions(t *testing.T) {
	events := newFakeFiringEventsRepo()
	ledger := NewFiringLedger(events, logger.NewNop(), 3, time.Millisecond)

	first := testEvent()
	isNew, err := ledger.Commit(context.Background(), first)
	require.NoError(t, err)
	assert.True(t, isNew)

	// A re-armed threshold carries a bumped revision and may fire again.
	second := testEvent()
	second.Revision = 2
	isNew, err = ledger.Commit(context.Background(), second)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Len(t, events.all(), 2)
}

func TestLedgerCommitRetriesTransientFailures(t *testing.T) {
	events := newFakeFiringEventsRepo()
	events.failures = 2
	ledger := NewFiringLedger(events, logger.NewNop(), 3, time.Millisecond)

	isNew, err := ledger.Commit(context.Background(), testEvent())
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, 3, events.createCalls)
}

func TestLedgerCommitReportsExhaustion(t *testing.T) {
	events := newFakeFiringEventsRepo()
	events.failures = 10
	ledger := NewFiringLedger(events, logger.NewNop(), 3, time.Millisecond)

	isNew, err := ledger.Commit(context.Background(), testEvent())
	assert.False(t, isNew)

	var ledgerErr *dto.LedgerWriteError
	require.ErrorAs(t, err, &ledgerErr)
	assert.Empty(t, events.all())
}
