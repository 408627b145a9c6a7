package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhatm/estate-ledger/internal/core/domain"
	"github.com/nhatm/estate-ledger/internal/port"
)

func TestSnapshot_RecordsFirstSample(t *testing.T) {
	store, _ := newFixture()
	now := payoutFixtureNow()
	require.NoError(t, seedHolding(store, 10, time.Unix(0, 0).UTC()))

	svc := NewSnapshotService(store, SnapshotConfig{Now: func() time.Time { return now }})
	ctx := context.Background()

	recorded, err := svc.Run(ctx, testAccountID)
	require.NoError(t, err)
	require.NotNil(t, recorded)
	require.True(t, recorded.Value.Equal(dec("1000.00")), "value = %s", recorded.Value)
	require.True(t, recorded.Timestamp.Equal(now))

	latest, _ := store.LatestSnapshot(ctx, testAccountID)
	require.NotNil(t, latest)
	require.Equal(t, recorded.ID, latest.ID)
}

func TestSnapshot_NoOpInsideWindow(t *testing.T) {
	store, _ := newFixture()
	now := payoutFixtureNow()
	require.NoError(t, seedHolding(store, 10, time.Unix(0, 0).UTC()))

	clock := now
	svc := NewSnapshotService(store, SnapshotConfig{Now: func() time.Time { return clock }})
	ctx := context.Background()

	_, err := svc.Run(ctx, testAccountID)
	require.NoError(t, err)

	clock = now.Add(23 * time.Hour)
	recorded, err := svc.Run(ctx, testAccountID)
	require.NoError(t, err)
	require.Nil(t, recorded, "second sample inside the window")

	snapshots, _ := store.ListSnapshots(ctx, testAccountID)
	require.Len(t, snapshots, 1)
}

func TestSnapshot_RecomputesAfterWindow(t *testing.T) {
	store, _ := newFixture()
	now := payoutFixtureNow()
	require.NoError(t, seedHolding(store, 10, time.Unix(0, 0).UTC()))

	clock := now
	svc := NewSnapshotService(store, SnapshotConfig{Now: func() time.Time { return clock }})
	ctx := context.Background()

	_, err := svc.Run(ctx, testAccountID)
	require.NoError(t, err)

	// Reprice the property so the next sample must be computed fresh.
	property, _ := store.GetProperty(ctx, testPropertyID)
	repriced := *property
	repriced.TokenPrice = dec("110.00")
	store.PutProperty(repriced)

	clock = now.Add(25 * time.Hour)
	recorded, err := svc.Run(ctx, testAccountID)
	require.NoError(t, err)
	require.NotNil(t, recorded)
	require.True(t, recorded.Value.Equal(dec("1100.00")), "value = %s", recorded.Value)

	snapshots, _ := store.ListSnapshots(ctx, testAccountID)
	require.Len(t, snapshots, 2)
	require.True(t, snapshots[0].Timestamp.Before(snapshots[1].Timestamp), "oldest first")
}

func TestSnapshot_EmptyPortfolioRecordsZero(t *testing.T) {
	store, _ := newFixture()
	now := payoutFixtureNow()

	svc := NewSnapshotService(store, SnapshotConfig{Now: func() time.Time { return now }})

	recorded, err := svc.Run(context.Background(), testAccountID)
	require.NoError(t, err)
	require.NotNil(t, recorded)
	require.True(t, recorded.Value.IsZero())
}

func TestSnapshot_SkipsUnknownProperty(t *testing.T) {
	store, _ := newFixture()
	now := payoutFixtureNow()
	require.NoError(t, seedHolding(store, 10, time.Unix(0, 0).UTC()))
	require.NoError(t, store.Apply(context.Background(), port.CreateHolding{Holding: domain.Holding{
		AccountID:    testAccountID,
		PropertyID:   "demolished",
		Quantity:     3,
		LastPayoutAt: time.Unix(0, 0).UTC(),
	}}))

	svc := NewSnapshotService(store, SnapshotConfig{Now: func() time.Time { return now }})

	recorded, err := svc.Run(context.Background(), testAccountID)
	require.NoError(t, err)
	require.NotNil(t, recorded)
	require.True(t, recorded.Value.Equal(dec("1000.00")), "unknown property contributes nothing")
}
