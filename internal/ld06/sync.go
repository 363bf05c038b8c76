package ld06

// SynchronizerState describes where the FrameSynchronizer is in the byte
// stream: scanning for a header sentinel or collecting a candidate frame.
type SynchronizerState int

const (
	// Searching means no header has been matched; incoming bytes are
	// discarded until a HEADER_BYTE appears.
	Searching SynchronizerState = iota
	// Accumulating means a header was matched and the synchronizer is
	// collecting the remaining bytes of one 47-byte candidate frame.
	Accumulating
)

// FrameSynchronizer recovers frame boundaries from a continuous serial
// byte stream. It holds exactly one in-flight frame buffer, so memory is
// O(1) regardless of stream length, and each Feed call completes in small
// constant time, so the caller can drain a serial buffer byte by byte
// from a tight polling loop.
//
// A FrameSynchronizer is not safe for concurrent use; each byte stream
// gets its own instance.
type FrameSynchronizer struct {
	state SynchronizerState
	buf   [PACKET_SIZE]byte
	count int
}

// NewFrameSynchronizer returns a synchronizer in the Searching state.
func NewFrameSynchronizer() *FrameSynchronizer {
	return &FrameSynchronizer{}
}

// Feed consumes one byte from the stream. It returns (frame, true) only
// when the byte completes a length-correct 47-byte candidate frame;
// otherwise it returns (nil, false).
//
// Resynchronization relies on the fixed frame length plus the position-1
// VERLEN_BYTE check: a header sentinel value appearing inside payload
// bytes is never reinterpreted as a new frame start while accumulating.
// When the second byte fails the VERLEN_BYTE check, both bytes are
// discarded and scanning resumes from the next byte.
//
// The returned slice aliases the internal buffer and is only valid until
// the next call to Feed; callers that keep the frame must copy it.
func (s *FrameSynchronizer) Feed(b byte) ([]byte, bool) {
	switch s.state {
	case Searching:
		if b == HEADER_BYTE {
			s.buf[0] = b
			s.count = 1
			s.state = Accumulating
		}
		return nil, false

	case Accumulating:
		s.buf[s.count] = b
		s.count++

		if s.count == 2 && b != VERLEN_BYTE {
			// Not a genuine frame start; the mismatched byte is
			// dropped rather than rescanned as a header.
			s.reset()
			return nil, false
		}

		if s.count == PACKET_SIZE {
			s.reset()
			return s.buf[:], true
		}
		return nil, false
	}
	return nil, false
}

// State reports the current synchronizer state.
func (s *FrameSynchronizer) State() SynchronizerState {
	return s.state
}

// Reset abandons any in-flight accumulation and returns to Searching.
func (s *FrameSynchronizer) Reset() {
	s.reset()
}

func (s *FrameSynchronizer) reset() {
	s.state = Searching
	s.count = 0
}
