package serialmux

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func collectChunks(t *testing.T, ch chan []byte, want int, timeout time.Duration) [][]byte {
	t.Helper()
	var chunks [][]byte
	deadline := time.After(timeout)
	for len(chunks) < want {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return chunks
			}
			chunks = append(chunks, chunk)
		case <-deadline:
			t.Fatalf("timed out waiting for chunks: got %d, want %d", len(chunks), want)
		}
	}
	return chunks
}

func TestSubscribeReceivesChunks(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)

	id, ch := mux.Subscribe()
	defer mux.Unsubscribe(id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	payload := []byte{0x54, 0x2C, 0x01, 0x02, 0x03}
	port.AddReadData(payload)

	chunks := collectChunks(t, ch, 1, 2*time.Second)
	if !bytes.Equal(chunks[0], payload) {
		t.Errorf("chunk = %x, want %x", chunks[0], payload)
	}
}

func TestChunksAreIndependentCopies(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)

	id, ch := mux.Subscribe()
	defer mux.Unsubscribe(id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	port.AddReadData([]byte{0xAA, 0xBB})
	first := collectChunks(t, ch, 1, 2*time.Second)[0]

	port.AddReadData([]byte{0xCC, 0xDD})
	collectChunks(t, ch, 1, 2*time.Second)

	// The first chunk must not have been overwritten by the second read.
	if !bytes.Equal(first, []byte{0xAA, 0xBB}) {
		t.Errorf("earlier chunk mutated by later read: %x", first)
	}
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)

	id1, ch1 := mux.Subscribe()
	id2, ch2 := mux.Subscribe()
	defer mux.Unsubscribe(id1)
	defer mux.Unsubscribe(id2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	payload := []byte{0x01, 0x02}
	port.AddReadData(payload)

	for _, ch := range []chan []byte{ch1, ch2} {
		chunks := collectChunks(t, ch, 1, 2*time.Second)
		if !bytes.Equal(chunks[0], payload) {
			t.Errorf("subscriber chunk = %x, want %x", chunks[0], payload)
		}
	}
}

func TestMonitorReturnsNilOnEOF(t *testing.T) {
	port := NewTestableSerialPort()
	port.EOFWhenEmpty = true
	port.AddReadData([]byte{0x54, 0x2C})
	mux := NewSerialMux(port)

	id, ch := mux.Subscribe()
	defer mux.Unsubscribe(id)

	errCh := make(chan error, 1)
	go func() { errCh <- mux.Monitor(context.Background()) }()

	collectChunks(t, ch, 1, 2*time.Second)

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Monitor returned %v on EOF, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after EOF")
	}
}

func TestMonitorReturnsReadError(t *testing.T) {
	port := NewTestableSerialPort()
	wantErr := errors.New("device unplugged")
	port.ReadError = wantErr
	mux := NewSerialMux(port)

	errCh := make(chan error, 1)
	go func() { errCh <- mux.Monitor(context.Background()) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, wantErr) {
			t.Errorf("Monitor returned %v, want %v", err, wantErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not surface the read error")
	}
}

func TestMonitorStopsOnContextCancel(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- mux.Monitor(ctx) }()

	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not stop on cancellation")
	}
	port.Close()
}

func TestSlowSubscriberDropsWithoutBlocking(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)

	// Subscribe but never drain the channel.
	id, _ := mux.Subscribe()
	defer mux.Unsubscribe(id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	// Push more chunks than the subscriber buffer holds. Each AddReadData
	// is a separate read because the monitor drains the buffer per call.
	for i := 0; i < subscriberBuffer+16; i++ {
		port.AddReadData([]byte{byte(i)})
		time.Sleep(time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, _, dropped := mux.Stats()
		if dropped > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no drops recorded for a stalled subscriber")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())
	id, ch := mux.Subscribe()
	mux.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Error("channel still open after Unsubscribe")
	}
}

func TestCloseClosesPortAndSubscribers(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	if err := mux.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !port.Closed {
		t.Error("underlying port not closed")
	}
	if _, ok := <-ch; ok {
		t.Error("subscriber channel still open after Close")
	}
}
