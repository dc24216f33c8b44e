package protocol

import (
	"errors"
	"io"
	"sync"
)

// Stream reads telemetry from a port on a background goroutine and
// delivers decoded messages on a channel. The channel is closed when the
// port returns an error or the stream is closed.
type Stream struct {
	port io.ReadCloser

	mu    sync.Mutex
	input *FifoBuffer
	dec   *Decoder
	err   error

	messages chan Message
	stopChan chan struct{}
	doneChan chan struct{}
	once     sync.Once
}

// NewStream starts reading from port
func NewStream(port io.ReadCloser) *Stream {
	s := &Stream{
		port:     port,
		input:    NewFifoBuffer(1024),
		dec:      NewDecoder(),
		messages: make(chan Message, 64),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// Messages returns the channel of decoded frames
func (s *Stream) Messages() <-chan Message {
	return s.messages
}

// Err returns the error that ended the stream, nil after Close or EOF
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stats returns the decoder counters
func (s *Stream) Stats() DecoderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dec.Stats()
}

// Close stops the reader and closes the port
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stopChan)
		err = s.port.Close()
		<-s.doneChan
	})
	return err
}

func (s *Stream) readLoop() {
	defer close(s.doneChan)
	defer close(s.messages)

	buffer := make([]byte, 256)
	for {
		n, err := s.port.Read(buffer)
		if n > 0 && !s.process(buffer[:n]) {
			return
		}
		if err != nil {
			select {
			case <-s.stopChan:
			default:
				if !errors.Is(err, io.EOF) {
					s.mu.Lock()
					s.err = err
					s.mu.Unlock()
				}
			}
			return
		}
	}
}

// process queues data and delivers the frames it completes. It returns
// false when the stream was closed while delivering.
func (s *Stream) process(data []byte) bool {
	var out []Message
	s.mu.Lock()
	for len(data) > 0 {
		n := s.input.Write(data)
		data = data[n:]
		s.dec.Receive(s.input, func(m Message) { out = append(out, m) })
		if n == 0 {
			// a full buffer that decodes nothing is garbage
			s.dec.stats.Discarded += uint32(s.input.Available())
			s.input.Reset()
		}
	}
	s.mu.Unlock()

	for _, m := range out {
		select {
		case s.messages <- m:
		case <-s.stopChan:
			return false
		}
	}
	return true
}
