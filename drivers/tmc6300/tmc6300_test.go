package tmc6300

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartknob/core"
)

type mockPWM struct {
	wraps        map[core.PWMPin]uint32
	phaseCorrect map[core.PWMPin]bool
	levels       map[core.PWMPin]core.PWMLevel
	enableCalls  [][]core.PWMPin
}

func newMockPWM() *mockPWM {
	return &mockPWM{
		wraps:        map[core.PWMPin]uint32{},
		phaseCorrect: map[core.PWMPin]bool{},
		levels:       map[core.PWMPin]core.PWMLevel{},
	}
}

func (m *mockPWM) ConfigurePWM(pin core.PWMPin, wrap uint32, phaseCorrect bool) error {
	m.wraps[pin] = wrap
	m.phaseCorrect[pin] = phaseCorrect
	return nil
}

func (m *mockPWM) SetLevel(pin core.PWMPin, level core.PWMLevel) error {
	m.levels[pin] = level
	return nil
}

func (m *mockPWM) EnableAll(pins ...core.PWMPin) error {
	m.enableCalls = append(m.enableCalls, append([]core.PWMPin(nil), pins...))
	return nil
}

var testPins = Pins{UH: 16, UL: 17, VH: 14, VL: 15, WH: 12, WL: 13}

func newStarted(t *testing.T, deadZone float64) (*Device, *mockPWM) {
	t.Helper()
	pwm := newMockPWM()
	d := New(pwm, testPins, 5)
	require.NoError(t, d.Configure(Config{Frequency: 25000, DeadZone: deadZone}))
	return d, pwm
}

func TestConfigure(t *testing.T) {
	d, pwm := newStarted(t, 0.02)

	assert.Equal(t, uint32(2499), d.Wrap())
	for _, pin := range testPins.all() {
		assert.Equal(t, uint32(2499), pwm.wraps[pin], "pin %d", pin)
		assert.True(t, pwm.phaseCorrect[pin], "pin %d", pin)
		assert.Zero(t, pwm.levels[pin], "pin %d", pin)
	}
	require.Len(t, pwm.enableCalls, 1, "all slices start with one write")
	assert.ElementsMatch(t, testPins.all(), pwm.enableCalls[0])
	assert.False(t, d.Enabled())
}

func TestConfigureRejects(t *testing.T) {
	d := New(newMockPWM(), testPins, 5)
	assert.ErrorIs(t, d.Configure(Config{}), ErrFrequency)
	assert.ErrorIs(t, d.Configure(Config{Frequency: 100}), ErrFrequency, "wrap exceeds 16 bits")
	assert.ErrorIs(t, d.Configure(Config{Frequency: core.PWMClockHz}), ErrFrequency)
	assert.ErrorIs(t, d.Configure(Config{Frequency: 25000, DeadZone: 1}), ErrDeadZone)
	assert.ErrorIs(t, d.Configure(Config{Frequency: 25000, DeadZone: -0.1}), ErrDeadZone)
	assert.ErrorIs(t, d.SetEnabled(true), ErrNotStarted)
}

func TestDisabledHoldsZero(t *testing.T) {
	d, pwm := newStarted(t, 0.02)

	d.SetVoltages(2.5, 2.5, 2.5)
	assert.Equal(t, Duty{}, d.Duty())
	for _, pin := range testPins.all() {
		assert.Zero(t, pwm.levels[pin])
	}

	require.NoError(t, d.SetEnabled(true))
	d.SetVoltages(2.5, 1, 4)
	assert.NotZero(t, pwm.levels[testPins.UH])

	require.NoError(t, d.SetEnabled(false))
	for _, pin := range testPins.all() {
		assert.Zero(t, pwm.levels[pin], "pin %d", pin)
	}
	d.SetVoltages(5, 5, 5)
	assert.Equal(t, Duty{}, d.Duty())
}

func TestDeadTimePerPhase(t *testing.T) {
	const dz = 0.02
	d, pwm := newStarted(t, dz)
	require.NoError(t, d.SetEnabled(true))

	d.SetVoltages(1, 2.5, 4.99)
	got := d.Duty()
	assert.InDelta(t, 0.2, got.U, 1e-12)
	assert.InDelta(t, 0.5, got.V, 1e-12)
	assert.InDelta(t, 0.998, got.W, 1e-12)

	assert.InDelta(t, 0.22, got.UL, 1e-12)
	assert.InDelta(t, 0.52, got.VL, 1e-12)
	assert.Equal(t, 1.0, got.WL, "low side saturates at full duty")

	assert.Equal(t, core.PWMLevel(500), pwm.levels[testPins.UH])
	assert.Equal(t, core.PWMLevel(1250), pwm.levels[testPins.VH])
	assert.Equal(t, core.PWMLevel(550), pwm.levels[testPins.UL])
	assert.Equal(t, core.PWMLevel(1300), pwm.levels[testPins.VL])
	assert.Equal(t, core.PWMLevel(2500), pwm.levels[testPins.WL])
}

func TestVoltagesClamped(t *testing.T) {
	d, _ := newStarted(t, 0)
	require.NoError(t, d.SetEnabled(true))

	d.SetVoltages(-1, 7, 5)
	assert.Equal(t, Duty{U: 0, V: 1, W: 1, UL: 0, VL: 1, WL: 1}, d.Duty())
}
