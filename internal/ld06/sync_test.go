package ld06

import (
	"bytes"
	"testing"
)

func TestFeedIgnoresStreamWithoutHeader(t *testing.T) {
	s := NewFrameSynchronizer()

	// A long stream with every byte value except the header sentinel
	// must never emit a packet.
	for i := 0; i < 10000; i++ {
		b := byte(i % 256)
		if b == HEADER_BYTE {
			b++
		}
		if pkt, ok := s.Feed(b); ok {
			t.Fatalf("unexpected packet emitted at byte %d: %v", i, pkt)
		}
	}
	if s.State() != Searching {
		t.Errorf("expected Searching state, got %v", s.State())
	}
}

func TestFeedEmitsCompletePacket(t *testing.T) {
	s := NewFrameSynchronizer()
	want := buildPacket(0, 1100, testPoints(500, 150))

	for i, b := range want[:PACKET_SIZE-1] {
		if _, ok := s.Feed(b); ok {
			t.Fatalf("packet emitted early at byte %d", i)
		}
	}

	pkt, ok := s.Feed(want[PACKET_SIZE-1])
	if !ok {
		t.Fatal("expected packet on final byte")
	}
	if !bytes.Equal(pkt, want) {
		t.Errorf("emitted packet does not match input\ngot:  %x\nwant: %x", pkt, want)
	}
	if s.State() != Searching {
		t.Errorf("expected Searching after completion, got %v", s.State())
	}
}

func TestFeedAbandonsOnWrongFormatByte(t *testing.T) {
	s := NewFrameSynchronizer()

	// Header followed by a wrong format byte: both bytes discarded,
	// scanning resumes on the next byte.
	if _, ok := s.Feed(HEADER_BYTE); ok {
		t.Fatal("packet emitted on header byte")
	}
	if _, ok := s.Feed(0x00); ok {
		t.Fatal("packet emitted on bad format byte")
	}
	if s.State() != Searching {
		t.Fatalf("expected reset to Searching, got %v", s.State())
	}

	// A valid packet immediately following is still recognized.
	want := buildPacket(1000, 2100, testPoints(800, 180))
	var got []byte
	for _, b := range want {
		if pkt, ok := s.Feed(b); ok {
			got = pkt
		}
	}
	if got == nil {
		t.Fatal("valid packet after resync was not recognized")
	}
	if !bytes.Equal(got, want) {
		t.Errorf("recovered packet mismatch\ngot:  %x\nwant: %x", got, want)
	}
}

func TestFeedHeaderInsidePayloadNotReinterpreted(t *testing.T) {
	// A packet whose payload is saturated with header sentinel values
	// must still frame on length alone.
	points := make([]byte, POINTS_PER_PACKET*BYTES_PER_POINT)
	for i := range points {
		points[i] = HEADER_BYTE
	}
	want := buildPacket(0, 0, points)

	s := NewFrameSynchronizer()
	var emitted int
	for _, b := range want {
		if _, ok := s.Feed(b); ok {
			emitted++
		}
	}
	if emitted != 1 {
		t.Errorf("expected exactly 1 packet, got %d", emitted)
	}
}

func TestFeedBackToBackPackets(t *testing.T) {
	first := buildPacket(0, 1100, testPoints(500, 150))
	second := buildPacket(1100, 2200, testPoints(600, 160))

	s := NewFrameSynchronizer()
	var packets [][]byte
	for _, b := range append(append([]byte{}, first...), second...) {
		if pkt, ok := s.Feed(b); ok {
			// Feed reuses its buffer; copy before the next byte.
			packets = append(packets, append([]byte{}, pkt...))
		}
	}

	if len(packets) != 2 {
		t.Fatalf("expected 2 packets, got %d", len(packets))
	}
	if !bytes.Equal(packets[0], first) || !bytes.Equal(packets[1], second) {
		t.Error("back-to-back packets not framed correctly")
	}
}

func TestFeedRecoversFromMidStreamGarbage(t *testing.T) {
	want := buildPacket(5000, 6100, testPoints(700, 170))

	stream := []byte{0x01, 0x02, HEADER_BYTE, 0xFF, 0x99} // false start + noise
	stream = append(stream, want...)

	s := NewFrameSynchronizer()
	var got []byte
	for _, b := range stream {
		if pkt, ok := s.Feed(b); ok {
			got = pkt
		}
	}
	if !bytes.Equal(got, want) {
		t.Errorf("packet not recovered after garbage prefix")
	}
}

func BenchmarkFeed(b *testing.B) {
	pkt := buildPacket(9000, 10100, testPoints(1000, 200))
	s := NewFrameSynchronizer()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Feed(pkt[i%PACKET_SIZE])
	}
}
