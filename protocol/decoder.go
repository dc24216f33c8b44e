package protocol

// DecoderStats counts what the decoder saw on the link
type DecoderStats struct {
	Frames    uint32 // valid frames delivered
	Lost      uint32 // frames skipped according to the sequence numbers
	Resyncs   uint32 // times synchronization was lost
	Discarded uint32 // bytes dropped while resynchronizing
	Corrupt   uint32 // frames with a valid checksum but a bad payload
}

// Decoder splits a byte stream into telemetry messages. It starts
// synchronized; a bad length, sequence, trailer or checksum drops it
// out of sync until the next sync byte.
type Decoder struct {
	synchronized bool
	started      bool
	expected     uint8
	stats        DecoderStats
}

func NewDecoder() *Decoder {
	return &Decoder{synchronized: true}
}

// Stats returns the counters accumulated so far
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}

// Receive decodes every complete frame in input, calling fn for each, and
// pops the bytes it consumed. A trailing partial frame is left in input.
func (d *Decoder) Receive(input InputBuffer, fn func(Message)) {
	data := input.Data()

	for len(data) > 0 {
		if !d.synchronized {
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				d.stats.Discarded += uint32(len(data))
				data = nil
				break
			}
			d.stats.Discarded += uint32(syncPos)
			data = data[syncPos+1:]
			d.synchronized = true
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			d.desync()
			continue
		}
		seq := data[MessagePositionSeq]
		if seq&^MessageSeqMask != MessageDest {
			d.desync()
			continue
		}
		if len(data) < msgLen {
			break
		}
		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			d.desync()
			continue
		}
		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			d.desync()
			continue
		}

		frame := data[MessageHeaderSize : msgLen-MessageTrailerSize]
		data = data[msgLen:]

		if d.started && seq != d.expected {
			d.stats.Lost += uint32((seq - d.expected) & MessageSeqMask)
		}
		d.started = true
		d.expected = nextSeq(seq)

		msg, ok := d.parseFrame(seq, frame)
		if !ok {
			d.stats.Corrupt++
			continue
		}
		d.stats.Frames++
		if fn != nil {
			fn(msg)
		}
	}

	if consumed := input.Available() - len(data); consumed > 0 {
		input.Pop(consumed)
	}
}

// Reset forgets the sequence history and resynchronizes
func (d *Decoder) Reset() {
	d.synchronized = true
	d.started = false
}

func (d *Decoder) desync() {
	d.synchronized = false
	d.stats.Resyncs++
}

func (d *Decoder) parseFrame(seq uint8, frame []byte) (Message, bool) {
	msg := Message{Sequence: seq}
	for len(frame) > 0 {
		e, err := decodeEvent(&frame)
		if err != nil {
			return Message{}, false
		}
		msg.Events = append(msg.Events, e)
	}
	return msg, true
}

// Decode is a convenience for decoding a complete buffer
func Decode(data []byte) ([]Message, DecoderStats) {
	var msgs []Message
	d := NewDecoder()
	d.Receive(NewSliceInputBuffer(data), func(m Message) { msgs = append(msgs, m) })
	return msgs, d.Stats()
}
