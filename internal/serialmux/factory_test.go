package serialmux

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewReplaySerialMux(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.bin")
	recorded := []byte{0x54, 0x2C, 0xDE, 0xAD, 0xBE, 0xEF}
	if err := os.WriteFile(path, recorded, 0o644); err != nil {
		t.Fatal(err)
	}

	mux, err := NewReplaySerialMux(path)
	if err != nil {
		t.Fatalf("NewReplaySerialMux: %v", err)
	}

	id, ch := mux.Subscribe()
	defer mux.Unsubscribe(id)

	errCh := make(chan error, 1)
	go func() { errCh <- mux.Monitor(context.Background()) }()

	var got []byte
	deadline := time.After(2 * time.Second)
	for len(got) < len(recorded) {
		select {
		case chunk, ok := <-ch:
			if !ok {
				t.Fatal("channel closed before replay finished")
			}
			got = append(got, chunk...)
		case <-deadline:
			t.Fatal("timed out replaying capture")
		}
	}
	if !bytes.Equal(got, recorded) {
		t.Errorf("replayed %x, want %x", got, recorded)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Monitor returned %v at end of capture, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return at end of capture")
	}
}

func TestNewReplaySerialMuxMissingFile(t *testing.T) {
	if _, err := NewReplaySerialMux(filepath.Join(t.TempDir(), "absent.bin")); err == nil {
		t.Error("expected error for missing capture file")
	}
}
