package ld06

import "testing"

func TestDecodeStatsGetAndReset(t *testing.T) {
	ds := NewDecodeStats()
	ds.AddBytes(94)
	ds.AddPacket()
	ds.AddPacket()
	ds.AddChecksumFailure()
	ds.AddResync()
	ds.AddSamples(10, 2)
	ds.AddDropped()

	bytes, packets, crcFails, resyncs, samples, filtered, dropped, duration := ds.GetAndReset()
	if bytes != 94 || packets != 2 || crcFails != 1 || resyncs != 1 || samples != 10 || filtered != 2 || dropped != 1 {
		t.Errorf("unexpected interval counters: bytes=%d packets=%d crc=%d resyncs=%d samples=%d filtered=%d dropped=%d",
			bytes, packets, crcFails, resyncs, samples, filtered, dropped)
	}
	if duration <= 0 {
		t.Errorf("expected positive duration, got %v", duration)
	}

	// Interval counters reset; totals survive.
	bytes, packets, _, _, _, _, _, _ = ds.GetAndReset()
	if bytes != 0 || packets != 0 {
		t.Errorf("counters not reset: bytes=%d packets=%d", bytes, packets)
	}

	snap := ds.Snapshot()
	if snap.Bytes != 94 || snap.Packets != 2 || snap.Samples != 10 {
		t.Errorf("totals wrong after reset: %+v", snap)
	}
}

func TestDecodeStatsConcurrentAccess(t *testing.T) {
	ds := NewDecodeStats()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			ds.AddBytes(1)
			ds.AddPacket()
		}
	}()
	for i := 0; i < 1000; i++ {
		ds.Snapshot()
	}
	<-done

	snap := ds.Snapshot()
	if snap.Bytes != 1000 || snap.Packets != 1000 {
		t.Errorf("lost updates: %+v", snap)
	}
}
