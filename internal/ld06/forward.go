package ld06

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"
)

// ForwardStats is the subset of DecodeStats the forwarder needs.
type ForwardStats interface {
	AddDropped()
}

// SampleForwarder handles asynchronous forwarding of decoded sample
// batches over UDP, one datagram per decoded frame, each payload the CSV
// rendering of the batch. Queueing is non-blocking so a slow or absent
// consumer can never stall the serial drain loop.
type SampleForwarder struct {
	conn        *net.UDPConn
	channel     chan []byte
	stats       ForwardStats
	logInterval time.Duration
	address     string
}

// NewSampleForwarder creates a forwarder that sends sample batches to the
// given host:port address.
func NewSampleForwarder(address string, stats ForwardStats, logInterval time.Duration) (*SampleForwarder, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}

	return &SampleForwarder{
		conn:        conn,
		channel:     make(chan []byte, 1000), // buffer 1000 batches
		stats:       stats,
		logInterval: logInterval,
		address:     address,
	}, nil
}

// Start begins the forwarding goroutine that drains the queue. Write
// errors are counted and logged at the configured interval rather than
// per datagram.
func (f *SampleForwarder) Start(ctx context.Context) {
	go func() {
		droppedCount := 0
		var lastError error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case payload := <-f.channel:
				if _, err := f.conn.Write(payload); err != nil {
					droppedCount++
					lastError = err
				}
			case <-ticker.C:
				if droppedCount > 0 && lastError != nil {
					log.Printf("Dropped %d forwarded sample batches due to errors (latest: %v)", droppedCount, lastError)
					droppedCount = 0
					lastError = nil
				}
			}
		}
	}()

	log.Printf("Forwarding samples to %s", f.address)
}

// ForwardAsync queues one sample batch without blocking. If the queue is
// full the batch is dropped and counted in stats.
func (f *SampleForwarder) ForwardAsync(samples []Sample) {
	select {
	case f.channel <- EncodeCSV(samples):
	default:
		f.stats.AddDropped()
	}
}

// Close closes the UDP connection.
func (f *SampleForwarder) Close() error {
	return f.conn.Close()
}
