package protocol

import "smartknob/core"

// Encoder packs events into frames on a ScratchOutput. Events are added to
// the open frame until it would exceed MessageLengthMax; Flush closes it.
// The MCU main loop encodes a drained batch, flushes, writes Result to USB
// and resets the output.
type Encoder struct {
	output *ScratchOutput
	event  ScratchOutput
	seq    uint8
	cursor int
	open   bool
}

// NewEncoder returns an encoder writing to output, starting at sequence 0x10
func NewEncoder(output *ScratchOutput) *Encoder {
	return &Encoder{output: output, seq: MessageDest}
}

// Encode appends e to the current frame. It returns false and writes
// nothing when the output has no room.
func (enc *Encoder) Encode(e core.Event) bool {
	enc.event.Reset()
	encodeEvent(&enc.event, e)
	ev := enc.event.Result()

	if enc.open && len(enc.output.DataSince(enc.cursor))+len(ev)+MessageTrailerSize > MessageLengthMax {
		enc.Flush()
	}
	need := len(ev) + MessageTrailerSize
	if !enc.open {
		need += MessageHeaderSize
	}
	if enc.output.Free() < need {
		return false
	}
	if !enc.open {
		enc.cursor = enc.output.CurPosition()
		enc.output.Output([]byte{0, enc.seq})
		enc.open = true
	}
	enc.output.Output(ev)
	return true
}

// Flush closes the open frame, if any, filling in its length and checksum
func (enc *Encoder) Flush() {
	if !enc.open {
		return
	}
	enc.open = false

	n := len(enc.output.DataSince(enc.cursor))
	enc.output.Update(enc.cursor, uint8(n+MessageTrailerSize))

	crc := CRC16(enc.output.DataSince(enc.cursor))
	enc.output.Output([]byte{
		uint8(crc >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})
	enc.seq = nextSeq(enc.seq)
}

// Sequence returns the sequence byte the next frame will carry
func (enc *Encoder) Sequence() uint8 {
	return enc.seq
}
