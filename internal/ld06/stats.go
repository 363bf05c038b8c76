package ld06

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// DecodeStats tracks decode pipeline statistics with thread-safe
// operations. Interval counters reset on GetAndReset (used for the
// periodic rate log line); totals accumulate for the life of the engine
// and back the monitoring API.
//
// The counters are observation only: checksum failures and resyncs are
// counted here but never surfaced through Feed or Decode, which stay
// silent on malformed input.
type DecodeStats struct {
	mu sync.Mutex

	// interval counters, reset by GetAndReset
	byteCount    int64
	packetCount  int64
	crcFailCount int64
	resyncCount  int64
	sampleCount  int64
	filterCount  int64
	droppedCount int64
	lastReset    time.Time

	// lifetime totals
	totals  StatsSnapshot
	started time.Time
}

// StatsSnapshot is a point-in-time copy of the lifetime counters.
type StatsSnapshot struct {
	Bytes            int64     `json:"bytes"`
	Packets          int64     `json:"packets"`
	ChecksumFailures int64     `json:"checksum_failures"`
	Resyncs          int64     `json:"resyncs"`
	Samples          int64     `json:"samples"`
	Filtered         int64     `json:"filtered"`
	ForwardDrops     int64     `json:"forward_drops"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewDecodeStats creates a DecodeStats instance.
func NewDecodeStats() *DecodeStats {
	now := time.Now()
	return &DecodeStats{
		lastReset: now,
		started:   now,
	}
}

// AddBytes records n bytes consumed from the transport.
func (ds *DecodeStats) AddBytes(n int) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.byteCount += int64(n)
	ds.totals.Bytes += int64(n)
}

// AddPacket records one completed candidate frame.
func (ds *DecodeStats) AddPacket() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.packetCount++
	ds.totals.Packets++
}

// AddChecksumFailure records one frame discarded on checksum mismatch.
func (ds *DecodeStats) AddChecksumFailure() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.crcFailCount++
	ds.totals.ChecksumFailures++
}

// AddResync records one abandoned accumulation (wrong second byte).
func (ds *DecodeStats) AddResync() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.resyncCount++
	ds.totals.Resyncs++
}

// AddSamples records the outcome of one valid frame: kept samples and
// points dropped by the distance/confidence filter.
func (ds *DecodeStats) AddSamples(kept, filtered int) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.sampleCount += int64(kept)
	ds.filterCount += int64(filtered)
	ds.totals.Samples += int64(kept)
	ds.totals.Filtered += int64(filtered)
}

// AddDropped records one sample batch dropped by the forwarder because
// its queue was full.
func (ds *DecodeStats) AddDropped() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.droppedCount++
	ds.totals.ForwardDrops++
}

// Snapshot returns the lifetime totals without resetting anything.
func (ds *DecodeStats) Snapshot() StatsSnapshot {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	snap := ds.totals
	snap.Timestamp = time.Now()
	return snap
}

// Uptime returns the time elapsed since the stats were created.
func (ds *DecodeStats) Uptime() time.Duration {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return time.Since(ds.started)
}

// GetAndReset returns the interval counters and resets them.
func (ds *DecodeStats) GetAndReset() (bytes, packets, crcFails, resyncs, samples, filtered, dropped int64, duration time.Duration) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	now := time.Now()
	duration = now.Sub(ds.lastReset)
	bytes = ds.byteCount
	packets = ds.packetCount
	crcFails = ds.crcFailCount
	resyncs = ds.resyncCount
	samples = ds.sampleCount
	filtered = ds.filterCount
	dropped = ds.droppedCount

	ds.byteCount = 0
	ds.packetCount = 0
	ds.crcFailCount = 0
	ds.resyncCount = 0
	ds.sampleCount = 0
	ds.filterCount = 0
	ds.droppedCount = 0
	ds.lastReset = now

	return
}

// LogStats logs a single summary line of per-second rates for the
// interval since the previous call, then resets the interval counters.
// Nothing is logged for an idle interval.
func (ds *DecodeStats) LogStats() {
	bytes, packets, crcFails, resyncs, samples, _, dropped, duration := ds.GetAndReset()
	if bytes == 0 && packets == 0 {
		return
	}

	bytesPerSec := float64(bytes) / duration.Seconds()
	packetsPerSec := float64(packets) / duration.Seconds()
	samplesPerSec := float64(samples) / duration.Seconds()

	logMsg := fmt.Sprintf("LD06 stats (/sec): %.0f bytes, %.1f packets, %.0f samples",
		bytesPerSec, packetsPerSec, samplesPerSec)
	if crcFails > 0 {
		logMsg += fmt.Sprintf(", %d bad checksums", crcFails)
	}
	if resyncs > 0 {
		logMsg += fmt.Sprintf(", %d resyncs", resyncs)
	}
	if dropped > 0 {
		logMsg += fmt.Sprintf(", %d dropped on forward", dropped)
	}

	log.Print(logMsg)
}
