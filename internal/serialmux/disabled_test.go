package serialmux

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDisabledMuxSubscribeAfterClose(t *testing.T) {
	d := NewDisabledSerialMux()
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, ch := d.Subscribe()
	if _, ok := <-ch; ok {
		t.Error("subscription after Close returned an open channel")
	}
}

func TestDisabledMuxCloseUnblocksSubscribers(t *testing.T) {
	d := NewDisabledSerialMux()
	_, ch := d.Subscribe()

	done := make(chan struct{})
	go func() {
		<-ch
		close(done)
	}()

	d.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber still blocked after Close")
	}
}

func TestDisabledMuxMonitorWaitsForContext(t *testing.T) {
	d := NewDisabledSerialMux()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Monitor(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return on cancellation")
	}
}
