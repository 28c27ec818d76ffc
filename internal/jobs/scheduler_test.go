package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediashelf/internal/config"
	"mediashelf/internal/importer"
	"mediashelf/internal/metrics"
	"mediashelf/internal/registry"
	shelftest "mediashelf/internal/testutil"
)

func openLibrary(t *testing.T, m *metrics.Metrics) (*registry.Registry, *registry.Library) {
	t.Helper()
	reg, err := registry.New(registry.Options{Provider: &shelftest.FakeProvider{}, Metrics: m})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	lib, err := reg.Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	return reg, lib
}

func TestNewScheduler(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	reg, _ := openLibrary(t, m)

	s, err := NewScheduler(reg, config.JobsConfig{TrashRetention: time.Hour, PurgeSchedule: "@every 1h"}, m)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Jobs())

	s, err = NewScheduler(reg, config.JobsConfig{PurgeSchedule: "@every 1h"}, m)
	require.NoError(t, err)
	assert.Zero(t, s.Jobs())

	_, err = NewScheduler(reg, config.JobsConfig{TrashRetention: time.Hour, PurgeSchedule: "not a schedule"}, m)
	assert.Error(t, err)
}

func TestPurgeTrash(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	reg, lib := openLibrary(t, m)
	ctx := context.Background()

	src := shelftest.WriteFile(t, t.TempDir(), "old.mp4", 16)
	keep := shelftest.WriteFile(t, t.TempDir(), "keep.mp4", 16)
	out, err := lib.Importer.Import(ctx, []string{src, keep}, importer.Options{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	_, err = lib.Store.TrashMediaFiles(ctx, []int64{out[0].ID})
	require.NoError(t, err)

	// nothing is old enough yet
	s, err := NewScheduler(reg, config.JobsConfig{TrashRetention: time.Hour, PurgeSchedule: "@every 1h"}, m)
	require.NoError(t, err)
	n, err := s.PurgeTrash(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	time.Sleep(5 * time.Millisecond)
	s, err = NewScheduler(reg, config.JobsConfig{TrashRetention: time.Millisecond, PurgeSchedule: "@every 1h"}, m)
	require.NoError(t, err)
	n, err = s.PurgeTrash(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, found := lib.Store.GetMediaFile(out[0].ID)
	assert.False(t, found)
	_, found = lib.Store.GetMediaFile(out[1].ID)
	assert.True(t, found)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TrashPurgedTotal))
}

func TestStartStop(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	reg, _ := openLibrary(t, m)
	s, err := NewScheduler(reg, config.JobsConfig{TrashRetention: time.Hour, PurgeSchedule: "@every 1h"}, m)
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
