package mt6701

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartknob/core"
)

// mockBus is a test implementation of core.SPIBus
type mockBus struct {
	rate       uint32
	mode       core.SPIMode
	rateDuring []uint32
	modeDuring []core.SPIMode
	frames     [][FrameLen]byte
	txErr      error
}

func (b *mockBus) Tx(w, r []byte) error {
	b.rateDuring = append(b.rateDuring, b.rate)
	b.modeDuring = append(b.modeDuring, b.mode)
	if b.txErr != nil {
		return b.txErr
	}
	if len(b.frames) > 0 {
		copy(r, b.frames[0][:])
		b.frames = b.frames[1:]
	}
	return nil
}

func (b *mockBus) Transfer(w byte) (byte, error) { return 0, nil }
func (b *mockBus) GetBaudRate() uint32           { return b.rate }
func (b *mockBus) SetBaudRate(br uint32) error {
	b.rate = br
	return nil
}
func (b *mockBus) GetMode() core.SPIMode { return b.mode }
func (b *mockBus) SetMode(m core.SPIMode) error {
	b.mode = m
	return nil
}

// mockPin counts chip select transitions
type mockPin struct {
	high  bool
	lows  int
	highs int
}

func (p *mockPin) High() { p.high = true; p.highs++ }
func (p *mockPin) Low()  { p.high = false; p.lows++ }

func TestReadKnownFrame(t *testing.T) {
	crc := CRC6(0x400000 >> 6)
	require.Equal(t, uint8(0x35), crc)

	bus := &mockBus{rate: 10000000, frames: [][FrameLen]byte{{0x40, 0x00, crc}}}
	cs := &mockPin{}
	dev := New(bus, cs)
	dev.Configure()

	r, err := dev.Read()
	require.NoError(t, err)
	assert.Equal(t, uint16(4096), r.Raw)
	assert.InDelta(t, math.Pi/2, r.Angle, 1e-12)
	assert.False(t, r.Pressed)

	assert.Equal(t, []uint32{Baudrate}, bus.rateDuring, "transfer must run at 15 MHz")
	assert.Equal(t, uint32(10000000), bus.rate, "previous bus rate must be restored")
	assert.Equal(t, []core.SPIMode{core.SPIMode1}, bus.modeDuring, "transfer must run in mode 1")
	assert.Equal(t, core.SPIMode0, bus.mode, "previous bus mode must be restored")
	assert.Equal(t, 1, cs.lows)
	assert.True(t, cs.high, "chip select must be released")
}

func TestAngleLinearity(t *testing.T) {
	for _, raw := range []uint16{0, 4096, 8192, 12288, 16383} {
		frame := EncodeFrame(raw, 0)
		r, err := Decode(frame)
		require.NoError(t, err, "raw %d", raw)
		assert.InDelta(t, float64(raw)/16384*2*math.Pi, r.Angle, 1e-12, "raw %d", raw)
		assert.Less(t, r.Angle, 2*math.Pi)
	}

	r, _ := Decode(EncodeFrame(8192, 0))
	assert.InDelta(t, math.Pi, r.Angle, 1e-12)
}

func TestEncodeFrameBytes(t *testing.T) {
	assert.Equal(t, [FrameLen]byte{0x40, 0x00, 0x35}, EncodeFrame(4096, 0))
	assert.Equal(t, [FrameLen]byte{0x80, 0x00, 0x29}, EncodeFrame(8192, 0))
	assert.Equal(t, [FrameLen]byte{0xFF, 0xFC, 0x1F}, EncodeFrame(16383, 0))
}

func TestSingleBitFlipDetected(t *testing.T) {
	for raw := uint16(0); raw < Counts; raw += 211 {
		for status := Status(0); status < 16; status++ {
			frame := EncodeFrame(raw, status)
			for bit := 0; bit < 24; bit++ {
				flipped := frame
				flipped[bit/8] ^= 1 << (7 - bit%8)
				_, err := Decode(flipped)
				if !errors.Is(err, ErrFailedCRC) {
					t.Fatalf("raw=%d status=%x bit=%d: got %v, want CRC failure", raw, status, bit, err)
				}
			}
		}
	}
}

func TestStatusDecoding(t *testing.T) {
	cases := []struct {
		name     string
		status   Status
		err      error
		hasAngle bool
	}{
		{"ok", 0, nil, true},
		{"pressed", StatusPressed, nil, true},
		{"loss of track", StatusLossOfTrack, ErrLossOfTrack, true},
		{"loss of track wins over field", StatusLossOfTrack | StatusFieldTooWeak, ErrLossOfTrack, true},
		{"too strong", StatusFieldTooStrong, ErrFieldTooStrong, true},
		{"too weak", StatusFieldTooWeak, ErrFieldTooWeak, true},
		{"reserved field code", StatusFieldTooStrong | StatusFieldTooWeak, ErrFailedOther, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, err := Decode(EncodeFrame(12288, c.status))
			if c.err == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, c.err)
			}
			if c.hasAngle {
				assert.InDelta(t, 1.5*math.Pi, r.Angle, 1e-12)
			} else {
				assert.Zero(t, r.Angle)
			}
			assert.Equal(t, c.status&StatusPressed != 0 && c.hasAngle, r.Pressed)
		})
	}

	assert.True(t, core.IsDegraded(ErrLossOfTrack))
	assert.True(t, core.IsDegraded(ErrFieldTooStrong))
	assert.False(t, core.IsDegraded(ErrFailedCRC))
	assert.False(t, core.IsDegraded(ErrFailedOther))
}

func TestCRCCheckedBeforeStatus(t *testing.T) {
	frame := EncodeFrame(100, StatusLossOfTrack)
	frame[2] ^= 0x01 // corrupt the CRC only
	r, err := Decode(frame)
	assert.ErrorIs(t, err, ErrFailedCRC)
	assert.Zero(t, r)
}

func TestBusFailure(t *testing.T) {
	bus := &mockBus{rate: 1000000, txErr: errors.New("short transfer")}
	dev := New(bus, &mockPin{})

	r, err := dev.Read()
	assert.ErrorIs(t, err, ErrFailedOther)
	assert.Zero(t, r)
	assert.Equal(t, uint32(1000000), bus.rate, "rate restored after a failed transfer")
}
