package recording

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/nystagmus.report/internal/calibration"
	"github.com/banshee-data/nystagmus.report/internal/edf"
	"github.com/banshee-data/nystagmus.report/internal/testutil"
	"github.com/banshee-data/nystagmus.report/internal/timeutil"
	"github.com/banshee-data/nystagmus.report/internal/trial"
)

type fakeStore struct {
	mu           sync.Mutex
	recordings   map[string]*Recording
	calibrations []*CalibratedRecording
	failSave     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{recordings: make(map[string]*Recording)}
}

func (s *fakeStore) SaveRecording(r *Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return s.failSave
	}
	s.recordings[r.ID] = r
	return nil
}

func (s *fakeStore) DeleteRecording(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recordings, id)
	return nil
}

func (s *fakeStore) SaveCalibration(c *CalibratedRecording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calibrations = append(s.calibrations, c)
	return nil
}

func twoTrialStreams() *edf.Streams {
	return &edf.Streams{
		Recordings: testutil.Markers(edf.EyeLeft, 10, 14, 20, 24),
		Samples:    testutil.Samples(10, 24, 0, 2, testutil.PositionChannels...),
	}
}

func newTestRegistry(store Store) (*Registry, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return NewRegistry(Config{Clock: clock, Store: store}), clock
}

func TestRegistry_AddGetList(t *testing.T) {
	store := newFakeStore()
	reg, clock := newTestRegistry(store)

	first, err := reg.Add("subject01", twoTrialStreams())
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := reg.Add("subject02", twoTrialStreams())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, first.Trials, 2)
	assert.Equal(t, 4, first.Counts.Recordings)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 1, 0, 0, time.UTC), second.CreatedAt)

	got, err := reg.Get(first.ID)
	require.NoError(t, err)
	assert.Same(t, first, got)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "subject01", list[0].Name)
	assert.Equal(t, "subject02", list[1].Name)

	assert.Len(t, store.recordings, 2)
	assert.NotNil(t, first.Trial(1))
	assert.Nil(t, first.Trial(5))
}

func TestRegistry_AddSurfacesWarningsAndFailures(t *testing.T) {
	reg, _ := newTestRegistry(nil)

	s := &edf.Streams{
		Recordings: append(testutil.Markers(edf.EyeLeft, 10, 14, 30, 34), edf.RecordingRecord{TrackerState: edf.StateStart, OriginIndex: 40}),
		Samples:    testutil.Samples(10, 14, 0, 2, "posXLeft"),
	}
	rec, err := reg.Add("partial", s)
	require.NoError(t, err)
	assert.Len(t, rec.Trials, 1)
	assert.Len(t, rec.Failures, 1)
	require.Len(t, rec.Warnings, 1)
	assert.Equal(t, trial.UnterminatedStart, rec.Warnings[0].Kind)
}

func TestRegistry_AddRejectsEmptyStream(t *testing.T) {
	store := newFakeStore()
	reg, _ := newTestRegistry(store)

	_, err := reg.Add("empty", &edf.Streams{})
	assert.ErrorIs(t, err, trial.ErrEmptyRecordingStream)
	assert.Empty(t, reg.List())
	assert.Empty(t, store.recordings)
}

func TestRegistry_AddStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.failSave = errors.New("disk full")
	reg, _ := newTestRegistry(store)

	_, err := reg.Add("subject01", twoTrialStreams())
	assert.ErrorContains(t, err, "disk full")
	assert.Empty(t, reg.List())
}

func TestRegistry_Remove(t *testing.T) {
	store := newFakeStore()
	reg, _ := newTestRegistry(store)

	rec, err := reg.Add("subject01", twoTrialStreams())
	require.NoError(t, err)
	keep, err := reg.Add("subject02", twoTrialStreams())
	require.NoError(t, err)

	var spec calibration.Spec
	spec.Set(calibration.XLeft, calibration.Reference{Plus10Degs: 30, Minus10Degs: 10})
	cal, err := reg.Calibrate(rec.ID, spec)
	require.NoError(t, err)

	require.NoError(t, reg.Remove(rec.ID))
	_, err = reg.Get(rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []*Recording{keep}, reg.List())
	assert.NotContains(t, store.recordings, rec.ID)

	// calibrations outlive their source
	_, err = reg.Calibrated(cal.ID)
	assert.NoError(t, err)

	assert.ErrorIs(t, reg.Remove(rec.ID), ErrNotFound)
}

func TestRegistry_Calibrate(t *testing.T) {
	store := newFakeStore()
	reg, _ := newTestRegistry(store)

	rec, err := reg.Add("subject01", twoTrialStreams())
	require.NoError(t, err)

	spec := calibration.SpecFromSelections(
		[calibration.NumKeys]bool{true, false, true, false},
		[calibration.NumKeys]float64{30, 0, 30, 0},
		[calibration.NumKeys]float64{10, 0, 10, 0},
	)
	cal, err := reg.Calibrate(rec.ID, spec)
	require.NoError(t, err)

	assert.Equal(t, "subject01 - Calibrated", cal.Name)
	assert.Equal(t, rec.ID, cal.RecordingID)
	assert.Equal(t, spec.Keys(), cal.Spec.Keys())
	require.Len(t, cal.Trials, 2)
	assert.Equal(t, []string{"posXLeft", "posXRight"}, cal.Trials[0].Names())
	assert.Empty(t, cal.Failures)

	got, err := reg.Calibrated(cal.ID)
	require.NoError(t, err)
	assert.Same(t, cal, got)
	assert.Equal(t, []*CalibratedRecording{cal}, reg.ListCalibrated())
	assert.Len(t, store.calibrations, 1)
}

func TestRegistry_CalibrateErrors(t *testing.T) {
	reg, _ := newTestRegistry(nil)

	var spec calibration.Spec
	spec.Set(calibration.YLeft, calibration.Reference{Plus10Degs: 1, Minus10Degs: 2})
	_, err := reg.Calibrate("missing", spec)
	assert.ErrorIs(t, err, ErrNotFound)

	rec, err := reg.Add("subject01", twoTrialStreams())
	require.NoError(t, err)
	_, err = reg.Calibrate(rec.ID, calibration.Spec{})
	assert.Error(t, err)

	_, err = reg.Calibrated("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_ConcurrentAdds(t *testing.T) {
	reg, _ := newTestRegistry(newFakeStore())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Add("subject", twoTrialStreams())
			assert.NoError(t, err)
			reg.List()
		}()
	}
	wg.Wait()
	assert.Len(t, reg.List(), 16)
}
