package telemetry

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/telemetry.report/internal/kinematics"
	"github.com/banshee-data/telemetry.report/internal/protocol"
	"github.com/banshee-data/telemetry.report/internal/sensor"
)

func reading(id int, key string, ts, value float64) Reading {
	return Reading{SensorID: id, Sensor: key, Timestamp: ts, Value: value}
}

func TestGroupBySensor(t *testing.T) {
	catalog := sensor.DefaultCatalog()
	readings := []Reading{
		reading(2, sensor.BRAKE, 0.2, 10),
		reading(0, sensor.ACC1, 0.1, 5),
		reading(2, sensor.BRAKE, 0.1, 20), // out of order on purpose
	}

	groups, err := GroupBySensor(catalog, readings)
	require.NoError(t, err)
	require.Len(t, groups, catalog.Len())
	for i, g := range groups {
		assert.Equal(t, i, g.Sensor.ID)
	}

	brake := groups[2]
	if diff := cmp.Diff([]float64{0.2, 0.1}, brake.Times()); diff != "" {
		t.Errorf("brake times mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []float64{10, 20}, brake.Values())
	assert.False(t, brake.Ordered())
	assert.True(t, groups[0].Ordered())
	assert.Empty(t, groups[14].Readings)

	_, err = GroupBySensor(catalog, []Reading{reading(15, "X", 0, 0)})
	assert.ErrorIs(t, err, protocol.ErrUnknownSensorID)
}

func TestSeriesAt(t *testing.T) {
	s := Series{Readings: []Reading{
		reading(4, sensor.ANGLE, 0.1, 1),
		reading(4, sensor.ANGLE, 0.3, 3),
		reading(4, sensor.ANGLE, 0.3, 4),
	}}

	_, ok := s.At(0.05)
	assert.False(t, ok)

	r, ok := s.At(0.2)
	require.True(t, ok)
	assert.Equal(t, 1.0, r.Value)

	r, ok = s.At(10)
	require.True(t, ok)
	assert.Equal(t, 4.0, r.Value, "ties go to the later reading")

	assert.Equal(t, []kinematics.Sample{{Time: 0.1, Value: 1}, {Time: 0.3, Value: 3}, {Time: 0.3, Value: 4}}, s.Samples())
}

func testGroups(t *testing.T) []Series {
	t.Helper()
	groups, err := GroupBySensor(sensor.DefaultCatalog(), []Reading{
		reading(0, sensor.ACC1, 0.0, 40),
		reading(1, sensor.ACC2, 0.0, 60),
		reading(2, sensor.BRAKE, 0.5, 12),
		reading(4, sensor.ANGLE, 0.0, -15),
		reading(5, sensor.TIRE1, 0.0, 10),
		reading(6, sensor.TIRE2, 0.0, 20),
		reading(5, sensor.TIRE1, 1.0, 30),
		reading(7, sensor.TIRE3, 1.0, 30),
		reading(8, sensor.TIRE4, 2.0, 50),
	})
	require.NoError(t, err)
	return groups
}

func TestSnapshot(t *testing.T) {
	groups := testGroups(t)

	snap := TakeSnapshot(groups, 0.25)
	speed, ok := snap.Speed()
	require.True(t, ok)
	assert.Equal(t, 15.0, speed)

	acc, ok := snap.Accelerator()
	require.True(t, ok)
	assert.Equal(t, 50.0, acc)

	_, ok = snap.Brake()
	assert.False(t, ok, "brake has no reading before 0.5s")

	steer, ok := snap.Steering()
	require.True(t, ok)
	assert.Equal(t, -15.0, steer)

	later := TakeSnapshot(groups, 5)
	speed, _ = later.Speed()
	assert.Equal(t, (30.0+20+30+50)/4, speed)
	brake, ok := later.Brake()
	require.True(t, ok)
	assert.Equal(t, 12.0, brake)

	empty := TakeSnapshot(groups, -1)
	_, ok = empty.Speed()
	assert.False(t, ok)
}

func TestVehicleSpeed(t *testing.T) {
	got := VehicleSpeed(testGroups(t))
	want := []kinematics.Sample{
		{Time: 0.0, Value: 15},
		{Time: 1.0, Value: (30.0 + 20 + 30) / 3},
		{Time: 2.0, Value: (30.0 + 20 + 30 + 50) / 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("VehicleSpeed mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, VehicleSpeed(nil))
}

func TestReport(t *testing.T) {
	groups := testGroups(t)
	groups[9].Readings = []Reading{reading(9, sensor.DAMP1, 0, math.NaN())}

	results := []Result{
		{Index: 0, Reading: groups[0].Readings[0]},
		{Index: 1, Err: &protocol.FieldError{Err: protocol.ErrChecksumMismatch}},
		{Index: 2, Err: &protocol.FieldError{Err: protocol.ErrChecksumMismatch}},
		{Index: 3, Err: &protocol.FieldError{Err: protocol.ErrLengthMismatch}},
	}
	rep := NewReport(SourceFrames, results, groups)

	assert.NotEqual(t, uuid.Nil, rep.RunID)
	assert.Equal(t, 4, rep.Total)
	assert.Equal(t, 1, rep.Decoded)
	assert.Equal(t, map[string]int{KindChecksum: 2, KindLengthMismatch: 1}, rep.Failures)
	require.Len(t, rep.Sensors, len(groups))

	tire1 := rep.Sensors[5]
	assert.Equal(t, sensor.TIRE1, tire1.Key)
	assert.Equal(t, 2, tire1.Count)
	require.NotNil(t, tire1.Mean)
	require.NotNil(t, tire1.StdDev)
	assert.Equal(t, 10.0, *tire1.Min)
	assert.Equal(t, 30.0, *tire1.Max)
	assert.Equal(t, 20.0, *tire1.Mean)
	assert.InDelta(t, math.Sqrt(200), *tire1.StdDev, 1e-9)
	assert.Equal(t, 0.0, tire1.First)
	assert.Equal(t, 1.0, tire1.Last)

	brake := rep.Sensors[2]
	require.NotNil(t, brake.Mean)
	assert.Equal(t, 12.0, *brake.Mean)
	assert.Equal(t, 0.0, *brake.StdDev)

	damp := rep.Sensors[9]
	assert.Equal(t, 1, damp.NonFinite)
	assert.Nil(t, damp.Mean)
	assert.Nil(t, damp.Min)

	assert.Zero(t, rep.Sensors[14].Count)
}

func TestStatsOverflow(t *testing.T) {
	s := Series{
		Sensor: sensor.Sensor{ID: 2, Key: sensor.BRAKE},
		Readings: []Reading{
			{SensorID: 2, Sensor: sensor.BRAKE, Timestamp: 0, Value: 1.7e308},
			{SensorID: 2, Sensor: sensor.BRAKE, Timestamp: 1, Value: 1.7e308},
		},
	}

	st := Stats(s)
	assert.Equal(t, 2, st.Count)
	assert.Zero(t, st.NonFinite)
	require.NotNil(t, st.Min)
	require.NotNil(t, st.Max)
	assert.Equal(t, 1.7e308, *st.Min)
	assert.Equal(t, 1.7e308, *st.Max)
	assert.Nil(t, st.Mean, "sum overflows")
}
