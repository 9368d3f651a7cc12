package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floodloop/internal/alerts"
	"floodloop/internal/types"
)

// stubTx is a fault-injectable RecorderTx that records every call.
type stubTx struct {
	activeAlerts []*types.Alert

	lockErr   error
	insertErr error
	updateErr error
	commitErr error

	inserted   []*types.WeatherSnapshot
	updated    []*types.Alert
	committed  bool
	rolledBack bool
}

func (s *stubTx) LockActiveAlerts(_ context.Context, _ string) ([]*types.Alert, error) {
	if s.lockErr != nil {
		return nil, s.lockErr
	}
	return s.activeAlerts, nil
}

func (s *stubTx) InsertSnapshot(_ context.Context, snap *types.WeatherSnapshot) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, snap)
	return nil
}

func (s *stubTx) UpdateAlertTrigger(_ context.Context, alert *types.Alert) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = append(s.updated, alert)
	return nil
}

func (s *stubTx) Commit(_ context.Context) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.committed = true
	return nil
}

func (s *stubTx) Rollback(_ context.Context) error {
	if !s.committed {
		s.rolledBack = true
	}
	return nil
}

type stubDB struct {
	tx       *stubTx
	beginErr error
}

func (s *stubDB) BeginTx(_ context.Context) (RecorderTx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return s.tx, nil
}

func newTestRecorder(tx *stubTx) (*Recorder, *clockwork.FakeClock) {
	fc := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ev := alerts.NewEvaluator(fc, nil)
	return NewRecorder(&stubDB{tx: tx}, ev, fc, nil), fc
}

// heavyRain scores well above typical thresholds: 40 (rain 1h saturated)
// + 25 (rain 3h saturated) + 20 (humidity 100) = 85.0.
var heavyRain = types.Observation{Rain1h: 30, Rain3h: 50, Humidity: 100}

func TestRecordHappyPath(t *testing.T) {
	alert := &types.Alert{ID: "alert_1", CityID: "city_1", Threshold: 50, IsActive: true}
	tx := &stubTx{activeAlerts: []*types.Alert{alert}}
	rec, fc := newTestRecorder(tx)

	snap, fired, err := rec.Record(context.Background(), "city_1", heavyRain)
	require.NoError(t, err)

	require.Len(t, tx.inserted, 1)
	assert.Equal(t, "city_1", snap.CityID)
	assert.Equal(t, 85.0, snap.FloodScore)
	assert.Equal(t, types.RiskLevelHigh, snap.FloodLevel)
	assert.Equal(t, fc.Now().UTC(), snap.RecordedAt)
	assert.NotEmpty(t, snap.ID)

	require.Len(t, fired, 1)
	assert.Equal(t, 1, alert.TriggerCount)
	require.Len(t, tx.updated, 1)
	assert.Same(t, alert, tx.updated[0])

	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
}

func TestRecordNoAlertsFired(t *testing.T) {
	alert := &types.Alert{ID: "alert_1", Threshold: 99, IsActive: true}
	tx := &stubTx{activeAlerts: []*types.Alert{alert}}
	rec, _ := newTestRecorder(tx)

	snap, fired, err := rec.Record(context.Background(), "city_1", heavyRain)
	require.NoError(t, err)

	assert.Empty(t, fired)
	assert.Empty(t, tx.updated)
	assert.Equal(t, 0, alert.TriggerCount)

	// The snapshot still commits even when nothing fires.
	assert.NotNil(t, snap)
	assert.True(t, tx.committed)
}

func TestRecordBeginFailure(t *testing.T) {
	beginErr := errors.New("pool exhausted")
	ev := alerts.NewEvaluator(clockwork.NewFakeClock(), nil)
	rec := NewRecorder(&stubDB{beginErr: beginErr}, ev, nil, nil)

	_, _, err := rec.Record(context.Background(), "city_1", heavyRain)
	require.Error(t, err)
	assert.ErrorIs(t, err, beginErr)
}

func TestRecordLockFailureRollsBack(t *testing.T) {
	lockErr := errors.New("lock timeout")
	tx := &stubTx{lockErr: lockErr}
	rec, _ := newTestRecorder(tx)

	_, _, err := rec.Record(context.Background(), "city_1", heavyRain)
	require.Error(t, err)
	assert.ErrorIs(t, err, lockErr)

	assert.Empty(t, tx.inserted)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestRecordInsertFailureRollsBack(t *testing.T) {
	alert := &types.Alert{ID: "alert_1", Threshold: 10, IsActive: true}
	insertErr := errors.New("disk full")
	tx := &stubTx{activeAlerts: []*types.Alert{alert}, insertErr: insertErr}
	rec, _ := newTestRecorder(tx)

	_, _, err := rec.Record(context.Background(), "city_1", heavyRain)
	require.Error(t, err)
	assert.ErrorIs(t, err, insertErr)

	// Nothing committed: no snapshot and no trigger writes.
	assert.Empty(t, tx.updated)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

// TestRecordTriggerFailureRollsBack is the atomicity property: when the
// trigger write fails after the snapshot insert, the whole transaction rolls
// back and the snapshot is not persisted either.
func TestRecordTriggerFailureRollsBack(t *testing.T) {
	alert := &types.Alert{ID: "alert_1", Threshold: 10, IsActive: true}
	updateErr := errors.New("constraint violation")
	tx := &stubTx{activeAlerts: []*types.Alert{alert}, updateErr: updateErr}
	rec, _ := newTestRecorder(tx)

	_, _, err := rec.Record(context.Background(), "city_1", heavyRain)
	require.Error(t, err)
	assert.ErrorIs(t, err, updateErr)

	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestRecordCommitFailure(t *testing.T) {
	commitErr := errors.New("connection reset")
	tx := &stubTx{commitErr: commitErr}
	rec, _ := newTestRecorder(tx)

	_, _, err := rec.Record(context.Background(), "city_1", heavyRain)
	require.Error(t, err)
	assert.ErrorIs(t, err, commitErr)
	assert.True(t, tx.rolledBack)
}

// TestRecordRepeatedFiring verifies the no-debounce behavior end to end:
// each Record call above the threshold fires and accumulates.
func TestRecordRepeatedFiring(t *testing.T) {
	alert := &types.Alert{ID: "alert_1", Threshold: 50, IsActive: true}

	for i := 1; i <= 3; i++ {
		tx := &stubTx{activeAlerts: []*types.Alert{alert}}
		rec, _ := newTestRecorder(tx)

		_, fired, err := rec.Record(context.Background(), "city_1", heavyRain)
		require.NoError(t, err)
		require.Len(t, fired, 1)
		assert.Equal(t, i, alert.TriggerCount)
	}
}
