package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/energy-pipeline/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteKVRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var missing []string
	assert.False(t, s.Load(ctx, "absent", &missing))

	require.NoError(t, s.Save(ctx, "files", []string{"a.json"}))
	require.NoError(t, s.Save(ctx, "files", []string{"b.json", "a.json"}))

	var got []string
	require.True(t, s.Load(ctx, "files", &got))
	assert.Equal(t, []string{"b.json", "a.json"}, got)
}

func TestSQLiteKVMalformedIsAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.saveRaw(ctx, "last_simulation_start", []byte("not json")))

	var mark int64
	assert.False(t, s.Load(ctx, "last_simulation_start", &mark))

	require.NoError(t, s.Save(ctx, "last_simulation_start", "a string"))
	assert.False(t, s.Load(ctx, "last_simulation_start", &mark), "type mismatch must read as absent")
}

func TestSQLiteKVSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	first, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, "last_simulation_start", int64(1700000000000)))
	require.NoError(t, first.Close())

	second, err := NewSQLite(path)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	var mark int64
	require.True(t, second.Load(ctx, "last_simulation_start", &mark))
	assert.Equal(t, int64(1700000000000), mark)
}

func TestSQLiteRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	records := []domain.EnergyRecord{
		{SiteID: "site_alpha", Timestamp: "2024-01-01T00:00:00Z", EnergyGeneratedKWh: 50, EnergyConsumedKWh: 20, NetEnergyKWh: 30, SourceFile: "energy_data_1.json"},
		{SiteID: "site_alpha", Timestamp: "2024-01-01T00:02:00Z", EnergyGeneratedKWh: -3, EnergyConsumedKWh: 10, NetEnergyKWh: -13, Anomaly: true},
		{SiteID: "site_beta", Timestamp: "2024-01-01T00:00:00Z", EnergyGeneratedKWh: 10, EnergyConsumedKWh: 5, NetEnergyKWh: 5},
	}
	require.NoError(t, s.UpsertRecords(ctx, records))

	alpha, err := s.RecordsBySite(ctx, "site_alpha")
	require.NoError(t, err)
	require.Len(t, alpha, 2)
	assert.Equal(t, "energy_data_1.json", alpha[0].SourceFile)
	assert.Empty(t, alpha[1].SourceFile)

	anomalies, err := s.AnomaliesBySite(ctx, "site_alpha")
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.True(t, anomalies[0].Anomaly)

	// Same key replaces the stored record.
	updated := records[2]
	updated.EnergyGeneratedKWh = 99
	require.NoError(t, s.UpsertRecords(ctx, []domain.EnergyRecord{updated}))

	all, err := s.AllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 99.0, all[2].EnergyGeneratedKWh)

	none, err := s.RecordsBySite(ctx, "site_unknown")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestMemoryStoreMalformed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.SaveRaw("simulatedFiles", []byte("{broken"))

	var files []domain.RunRecord
	assert.False(t, m.Load(ctx, "simulatedFiles", &files))

	require.NoError(t, m.Save(ctx, "simulatedFiles", []domain.RunRecord{{Filename: "a.json"}}))
	require.True(t, m.Load(ctx, "simulatedFiles", &files))
	assert.Equal(t, "a.json", files[0].Filename)
}
