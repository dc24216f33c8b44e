// Package protocol frames knob telemetry for the USB link.
//
// A frame is laid out as
//
//	len | seq | payload | crc16 (big endian) | 0x7E
//
// where len counts the whole frame and seq is 0x10 | (n & 0x0F). The payload
// is a run of events, each encoded as six VLQ integers: kind, clock and
// the four event values.
package protocol

import "smartknob/core"

const (
	MessageMax = 512 // Scratch output capacity

	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F

	// eventFields is the number of VLQ integers per event
	eventFields = 6
)

// Message is one decoded frame
type Message struct {
	Sequence uint8
	Events   []core.Event
}

func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}

func encodeEvent(output OutputBuffer, e core.Event) {
	EncodeVLQUint(output, uint32(e.Kind))
	EncodeVLQUint(output, e.Clock)
	EncodeVLQInt(output, e.Value1)
	EncodeVLQInt(output, e.Value2)
	EncodeVLQInt(output, e.Value3)
	EncodeVLQInt(output, e.Value4)
}

func decodeEvent(data *[]byte) (core.Event, error) {
	var f [eventFields]int32
	for i := range f {
		v, err := DecodeVLQInt(data)
		if err != nil {
			return core.Event{}, err
		}
		f[i] = v
	}
	if f[0] < 0 || f[0] > 0xFF {
		return core.Event{}, ErrInvalidVLQ
	}
	return core.Event{
		Kind:   uint8(f[0]),
		Clock:  uint32(f[1]),
		Value1: f[2],
		Value2: f[3],
		Value3: f[4],
		Value4: f[5],
	}, nil
}
