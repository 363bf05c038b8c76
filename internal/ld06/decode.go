package ld06

import "encoding/binary"

// Decode validates the checksum of a 47-byte candidate frame and extracts
// its measurement samples. The sensor reports the instantaneous angle only
// at the two frame endpoints; per-point angles are linearly interpolated
// on the assumption that the 12 entries are evenly spaced.
//
// On checksum mismatch the whole frame is discarded and Decode returns an
// empty result, indistinguishable from a valid frame whose points all
// failed the output filter. No error is ever returned; the
// worst outcome of malformed input is zero samples.
func Decode(pkt []byte) []Sample {
	samples, _, _ := decode(pkt)
	return samples
}

// decode is the counted form of Decode used by Engine: it additionally
// reports how many points the output filter dropped and whether the
// checksum matched.
func decode(pkt []byte) (samples []Sample, filtered int, crcOK bool) {
	if len(pkt) != PACKET_SIZE {
		return nil, 0, false
	}
	if Checksum(pkt[:CHECKSUM_OFFSET]) != pkt[CHECKSUM_OFFSET] {
		return nil, 0, false
	}

	start := StartAngle(pkt)
	end := EndAngle(pkt)

	// Angular step between consecutive points in 0.01° units. When the
	// scan crossed the 0°/360° boundary the end angle reads lower than
	// the start angle and the span wraps once.
	var step float64
	if end >= start {
		step = float64(end-start) / float64(POINTS_PER_PACKET-1)
	} else {
		step = float64(ROTATION_MAX_UNITS-uint32(start)+uint32(end)) / float64(POINTS_PER_PACKET-1)
	}

	samples = make([]Sample, 0, POINTS_PER_PACKET)
	for i := 0; i < POINTS_PER_PACKET; i++ {
		offset := POINT_DATA_OFFSET + i*BYTES_PER_POINT
		distance := binary.LittleEndian.Uint16(pkt[offset:])
		confidence := pkt[offset+2]

		// step × 11 never exceeds one full revolution, so a single
		// wraparound subtraction is sufficient.
		angle := (float64(start) + step*float64(i)) * ANGLE_RESOLUTION
		if angle >= 360.0 {
			angle -= 360.0
		}

		if distance == 0 || confidence <= MIN_CONFIDENCE {
			filtered++
			continue
		}

		samples = append(samples, Sample{
			Angle:      angle,
			Distance:   distance,
			Confidence: confidence,
		})
	}

	return samples, filtered, true
}

// Engine combines one FrameSynchronizer with the frame decoder and a set
// of diagnostic counters. It is the unit a daemon feeds serial bytes to.
//
// Engine methods other than Stats must be called from a single goroutine;
// Stats snapshots are safe to read concurrently.
type Engine struct {
	sync  FrameSynchronizer
	stats *DecodeStats
}

// NewEngine returns an Engine with fresh state and counters. Multiple
// independent engines are safe: no state is shared between instances.
func NewEngine() *Engine {
	return &Engine{stats: NewDecodeStats()}
}

// Feed consumes one byte from the serial stream and returns the samples
// of the frame it completed, if any. Most calls return nil: either the
// byte did not complete a frame, the completed frame failed its checksum,
// or every point was filtered out.
func (e *Engine) Feed(b byte) []Sample {
	e.stats.AddBytes(1)

	wasAccumulating := e.sync.State() == Accumulating
	pkt, ok := e.sync.Feed(b)
	if !ok {
		if wasAccumulating && e.sync.State() == Searching {
			e.stats.AddResync()
		}
		return nil
	}

	e.stats.AddPacket()
	samples, filtered, crcOK := decode(pkt)
	if !crcOK {
		e.stats.AddChecksumFailure()
		return nil
	}
	e.stats.AddSamples(len(samples), filtered)
	if len(samples) == 0 {
		return nil
	}
	return samples
}

// FeedBytes feeds a chunk of bytes and collects all samples produced.
// Convenience for chunk-oriented transports; semantics are identical to
// calling Feed per byte.
func (e *Engine) FeedBytes(chunk []byte) []Sample {
	var out []Sample
	for _, b := range chunk {
		if samples := e.Feed(b); samples != nil {
			out = append(out, samples...)
		}
	}
	return out
}

// Stats returns the engine's diagnostic counters.
func (e *Engine) Stats() *DecodeStats {
	return e.stats
}
