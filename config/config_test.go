package config

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartknob/foc"
	"smartknob/knob"
	"smartknob/pid"
)

func TestDefaultMatchesEmptyDocument(t *testing.T) {
	def := Default()
	empty, err := Load([]byte(`{}`))
	require.NoError(t, err)

	if diff := cmp.Diff(def, empty); diff != "" {
		t.Errorf("default.json and applyDefaults disagree (-file +defaults):\n%s", diff)
	}
}

func TestDefaultKnobConfig(t *testing.T) {
	kc := Default().KnobConfig()

	want := knob.Config{
		PID: pid.Config{
			KP:             8,
			KD:             0.02,
			N:              10,
			ErrorMode:      pid.ErrorAngular,
			DerivativeMode: pid.DerivativeOnErrorFiltered,
		},
		Detent: knob.Detent{
			Min:          0,
			Max:          50,
			SnapIncrease: math.Pi / 16,
			SnapDecrease: -math.Pi / 16,
			TorqueLimit:  2.5,
		},
		Fault: knob.FaultPolicy{MaxStaleCycles: 50, RecoverCycles: 20},
	}
	if diff := cmp.Diff(want, kc); diff != "" {
		t.Errorf("KnobConfig mismatch (-want +got):\n%s", diff)
	}
}

func TestFOCAndDriverConfig(t *testing.T) {
	k := Default()
	assert.Equal(t, foc.Config{
		PolePairs:    7,
		Direction:    foc.CCW,
		VoltageLimit: 5,
		AlignVoltage: 3,
		AlignDelay:   500 * time.Millisecond,
	}, k.FOCConfig())
	assert.Equal(t, foc.Sine, k.Modulation())
	assert.Equal(t, uint32(24000), k.DriverConfig().Frequency)
	assert.Equal(t, 0.05, k.DriverConfig().DeadZone)
	assert.Nil(t, k.Motor.ZeroElectricAngle)
}

func TestLoadOverrides(t *testing.T) {
	k, err := Load([]byte(`{
		"motor": {"direction": "cw", "modulation": "svpwm", "zero_electric_angle": 4.062365},
		"pid": {"kp": 4, "antiwindup": 0.5, "ki": 1},
		"detent": {"min": -10, "max": 10, "start": 3, "snap": 0.1}
	}`))
	require.NoError(t, err)

	assert.Equal(t, foc.CW, k.FOCConfig().Direction)
	assert.Equal(t, foc.SpaceVector, k.Modulation())
	require.NotNil(t, k.Motor.ZeroElectricAngle)
	assert.Equal(t, 4.062365, *k.Motor.ZeroElectricAngle)

	kc := k.KnobConfig()
	assert.True(t, kc.PID.EnableAntiwindup)
	assert.Equal(t, 4.0, kc.PID.KP)
	assert.Equal(t, int32(3), kc.Detent.Position)
	assert.Equal(t, -0.1, kc.Detent.SnapDecrease)
	assert.Equal(t, 2.5, kc.Detent.TorqueLimit, "unset fields still get defaults")
	assert.Equal(t, 7, k.Motor.PolePairs)
}

func TestLoadRejects(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		err  error
	}{
		{"direction", `{"motor": {"direction": "left"}}`, ErrDirection},
		{"modulation", `{"motor": {"modulation": "trapezoid"}}`, ErrModulation},
		{"pole pairs", `{"motor": {"pole_pairs": -1}}`, ErrPolePairs},
		{"supply", `{"motor": {"supply_voltage": -5}}`, ErrSupply},
		{"fault", `{"fault": {"max_stale_cycles": -1}}`, ErrFault},
		{"start outside range", `{"detent": {"min": 0, "max": 5, "start": 9}}`, knob.ErrDetentBounds},
		{"negative snap", `{"detent": {"max": 5, "snap": -0.1}}`, knob.ErrSnap},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Load([]byte(c.doc))
			assert.ErrorIs(t, err, c.err)
		})
	}

	_, err := Load([]byte(`{"motor": `))
	assert.Error(t, err)
}
