package sim

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
	"github.com/simflux/simflux/internal/infrastructure/cache"
	"github.com/simflux/simflux/internal/infrastructure/persistence/models"
	"github.com/simflux/simflux/internal/infrastructure/repository"
	"github.com/simflux/simflux/internal/shared/config"
	"github.com/simflux/simflux/internal/shared/db"
	"github.com/simflux/simflux/internal/shared/logger"
)

func nopLogger() logger.Interface {
	return logger.NewLoggerWithSlog(slog.New(slog.DiscardHandler))
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		ErrorThreshold:      0.1,
		MissedSyncsToRetire: 3,
	}
}

// testEnv wires the full local stack (sqlite, miniredis) the way the daemon
// does, minus the real provider.
type testEnv struct {
	sims       sim.Repository
	usage      sim.UsageRepository
	quotas     sim.QuotaRepository
	cursors    sim.SyncCursorRepository
	idems      sim.IdempotencyRepository
	simCache   cache.SimCache
	quotaCache cache.QuotaCache
	tx         *db.TransactionManager
	reconciler *Reconciler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&models.SimModel{},
		&models.UsageRecordModel{},
		&models.QuotaModel{},
		&models.SyncCursorModel{},
		&models.IdempotencyRecordModel{},
	))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := nopLogger()
	cacheCfg := config.CacheConfig{TTLSeconds: 60, JitterSeconds: 10, NullTTLSeconds: 30}

	env := &testEnv{
		sims:       repository.NewSimRepository(gdb, log),
		usage:      repository.NewUsageRepository(gdb, log),
		quotas:     repository.NewQuotaRepository(gdb, log),
		cursors:    repository.NewSyncCursorRepository(gdb, log),
		idems:      repository.NewIdempotencyRepository(gdb, log),
		simCache:   cache.NewRedisSimCache(client, cacheCfg, log),
		quotaCache: cache.NewRedisQuotaCache(client, cacheCfg, log),
		tx:         db.NewTransactionManager(gdb),
	}
	env.reconciler = NewReconciler(env.sims, env.usage, env.quotas, env.simCache, env.quotaCache, log)
	return env
}

func (e *testEnv) seedSim(t *testing.T, iccid string, status valueobjects.SimStatus) {
	t.Helper()
	_, err := e.reconciler.ReconcileSim(context.Background(), sim.RemoteSim{
		ICCID:    iccid,
		Status:   status,
		Operator: "Deutsche Telekom",
	})
	require.NoError(t, err)
}

func (e *testEnv) seedQuota(t *testing.T, iccid string, quotaType valueobjects.QuotaType, total, used uint64) {
	t.Helper()
	_, err := e.reconciler.ReconcileQuota(context.Background(), iccid, quotaType, total, used)
	require.NoError(t, err)
}

// fakeProvider implements ProviderAPI with per-method overrides and call
// counters. The zero value answers every call with empty success.
type fakeProvider struct {
	listFn   func(pageToken string) ([]sim.RemoteSim, string, error)
	usageFn  func(iccid string, from, to time.Time, pageToken string) ([]sim.UsageRecord, string, error)
	quotaFn  func(iccid string, quotaType valueobjects.QuotaType) (uint64, uint64, error)
	topUpFn  func(iccid string, quotaType valueobjects.QuotaType, volume uint64) error
	smsFn    func(iccid, payload string) error
	resetFn  func(iccid string) error
	statusFn func(iccid string, status valueobjects.SimStatus) error

	listCalls   int
	usageCalls  int
	quotaCalls  int
	topUpCalls  int
	smsCalls    int
	resetCalls  int
	statusCalls int
}

func (f *fakeProvider) ListSims(_ context.Context, pageToken string) ([]sim.RemoteSim, string, error) {
	f.listCalls++
	if f.listFn != nil {
		return f.listFn(pageToken)
	}
	return nil, "", nil
}

func (f *fakeProvider) GetUsage(_ context.Context, iccid string, from, to time.Time, pageToken string) ([]sim.UsageRecord, string, error) {
	f.usageCalls++
	if f.usageFn != nil {
		return f.usageFn(iccid, from, to, pageToken)
	}
	return nil, "", nil
}

func (f *fakeProvider) GetQuota(_ context.Context, iccid string, quotaType valueobjects.QuotaType) (uint64, uint64, error) {
	f.quotaCalls++
	if f.quotaFn != nil {
		return f.quotaFn(iccid, quotaType)
	}
	return 0, 0, nil
}

func (f *fakeProvider) TopUpQuota(_ context.Context, iccid string, quotaType valueobjects.QuotaType, volume uint64) error {
	f.topUpCalls++
	if f.topUpFn != nil {
		return f.topUpFn(iccid, quotaType, volume)
	}
	return nil
}

func (f *fakeProvider) SendSMS(_ context.Context, iccid, payload string) error {
	f.smsCalls++
	if f.smsFn != nil {
		return f.smsFn(iccid, payload)
	}
	return nil
}

func (f *fakeProvider) ResetConnectivity(_ context.Context, iccid string) error {
	f.resetCalls++
	if f.resetFn != nil {
		return f.resetFn(iccid)
	}
	return nil
}

func (f *fakeProvider) SetStatus(_ context.Context, iccid string, status valueobjects.SimStatus) error {
	f.statusCalls++
	if f.statusFn != nil {
		return f.statusFn(iccid, status)
	}
	return nil
}

func (f *fakeProvider) PageSize() int { return 100 }
