package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
	"github.com/simflux/simflux/internal/infrastructure/persistence/models"
)

func newRemote(iccid string) sim.RemoteSim {
	activated := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return sim.RemoteSim{
		ICCID:       iccid,
		IMSI:        "901405123456789",
		MSISDN:      "882360001234567",
		Status:      valueobjects.StatusActive,
		IPAddress:   "10.64.1.17",
		Operator:    "1NCE",
		ActivatedAt: &activated,
		Label:       "tracker-042",
	}
}

func TestSimRepositorySaveIsUpsertOnICCID(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewSimRepository(gdb, nopLogger())
	ctx := context.Background()

	first, err := sim.NewSimFromRemote(newRemote("8988228066612345678"))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, first))
	assert.NotZero(t, first.ID())

	// Saving a second entity for the same ICCID must update, not duplicate.
	second, err := sim.NewSimFromRemote(newRemote("8988228066612345678"))
	require.NoError(t, err)
	require.NoError(t, second.SetStatus(valueobjects.StatusSuspended))
	require.NoError(t, repo.Save(ctx, second))

	var count int64
	require.NoError(t, gdb.Model(&models.SimModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	found, err := repo.FindByICCID(ctx, "8988228066612345678")
	require.NoError(t, err)
	assert.Equal(t, valueobjects.StatusSuspended, found.Status())
}

func TestSimRepositoryFindByICCIDNotFound(t *testing.T) {
	repo := NewSimRepository(newTestDB(t), nopLogger())

	_, err := repo.FindByICCID(context.Background(), "8988228066600000000")
	assert.ErrorIs(t, err, sim.ErrSimNotFound)
}

func TestSimRepositoryListFilters(t *testing.T) {
	repo := NewSimRepository(newTestDB(t), nopLogger())
	ctx := context.Background()

	for _, iccid := range []string{"8988228066600000001", "8988228066600000002", "8988228066600000003"} {
		s, err := sim.NewSimFromRemote(newRemote(iccid))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, s))
	}
	suspended, err := repo.FindByICCID(ctx, "8988228066600000002")
	require.NoError(t, err)
	require.NoError(t, suspended.SetStatus(valueobjects.StatusSuspended))
	require.NoError(t, repo.Save(ctx, suspended))

	active, total, err := repo.List(ctx, sim.ListFilter{Status: valueobjects.StatusActive}, sim.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, active, 2)

	page, total, err := repo.List(ctx, sim.ListFilter{}, sim.Page{Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 1)
	assert.Equal(t, "8988228066600000002", page[0].ICCID())

	iccids, err := repo.ListICCIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, iccids, 3)
}

func TestSimRepositoryMissedSyncLifecycle(t *testing.T) {
	repo := NewSimRepository(newTestDB(t), nopLogger())
	ctx := context.Background()

	for _, iccid := range []string{"8988228066600000001", "8988228066600000002"} {
		s, err := sim.NewSimFromRemote(newRemote(iccid))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, s))
	}

	// Only the first SIM was seen by the listing.
	for i := 0; i < 3; i++ {
		touched, err := repo.MarkMissedExcept(ctx, []string{"8988228066600000001"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), touched)
	}

	missed, err := repo.FindByICCID(ctx, "8988228066600000002")
	require.NoError(t, err)
	assert.Equal(t, 3, missed.MissedSyncs())

	deactivated, err := repo.DeactivateMissed(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deactivated)

	retired, err := repo.FindByICCID(ctx, "8988228066600000002")
	require.NoError(t, err)
	assert.Equal(t, valueobjects.StatusInactive, retired.Status())

	seen, err := repo.FindByICCID(ctx, "8988228066600000001")
	require.NoError(t, err)
	assert.Equal(t, valueobjects.StatusActive, seen.Status())
}
