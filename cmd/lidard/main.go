// Command lidard reads an LD06 lidar byte stream from a serial port (or a
// recorded capture), decodes it into angle/distance samples, and serves
// decoded output as CSV, UDP datagrams, a SQLite archive of rotations, and
// a monitoring HTTP interface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/arcline-data/lidard/internal/ld06"
	"github.com/arcline-data/lidard/internal/monitor"
	"github.com/arcline-data/lidard/internal/scan"
	"github.com/arcline-data/lidard/internal/scandb"
	"github.com/arcline-data/lidard/internal/serialmux"
	"github.com/arcline-data/lidard/internal/version"
)

var (
	listen        = flag.String("listen", ":8090", "HTTP listen address")
	serialPort    = flag.String("serial-port", "/dev/ttyUSB0", "Serial port device path")
	baudRate      = flag.Int("baud", 230400, "Serial baud rate")
	noSerial      = flag.Bool("no-serial", false, "Run without lidar hardware (monitor UI only)")
	replayPath    = flag.String("replay", "", "Replay a raw capture file instead of reading a serial port")
	recordRawPath = flag.String("record-raw", "", "Record the raw serial byte stream to this file")
	csvPath       = flag.String("csv", "", "Write decoded samples as CSV to this file ('-' for stdout)")
	forwardDest   = flag.String("forward-dest", "", "Forward decoded samples as CSV over UDP to host:port")
	dbFile        = flag.String("db", "lidard.db", "Path to the SQLite scan database (empty to disable persistence)")
	migrationsDir = flag.String("migrations", "internal/scandb/migrations", "Path to the database migrations directory")
	logInterval   = flag.Duration("log-interval", 10*time.Second, "Statistics logging interval")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("lidard %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	log.Printf("lidard %s starting", version.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Pick the byte source: replay file, real port, or nothing.
	var mux serialmux.SerialMuxInterface
	var source string
	switch {
	case *replayPath != "":
		m, err := serialmux.NewReplaySerialMux(*replayPath)
		if err != nil {
			log.Fatalf("Failed to open replay file: %v", err)
		}
		mux = m
		source = "replay:" + *replayPath
		log.Printf("Replaying capture %s", *replayPath)
	case *noSerial:
		mux = serialmux.NewDisabledSerialMux()
		source = "disabled"
		log.Println("Serial input disabled (-no-serial)")
	default:
		m, err := serialmux.NewRealSerialMux(*serialPort, serialmux.PortOptions{BaudRate: *baudRate})
		if err != nil {
			log.Fatalf("Failed to open serial port %s: %v", *serialPort, err)
		}
		mux = m
		source = *serialPort
		log.Printf("Reading %s at %d baud", *serialPort, *baudRate)
	}
	defer mux.Close()

	engine := ld06.NewEngine()
	stats := engine.Stats()

	// Optional persistence.
	var sdb *scandb.ScanDB
	var sessionID int64
	if *dbFile != "" {
		var err error
		sdb, err = scandb.Open(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open scan database: %v", err)
		}
		defer sdb.Close()
		if err := sdb.MigrateUp(*migrationsDir); err != nil {
			log.Fatalf("Failed to migrate scan database: %v", err)
		}
		sessionID, err = sdb.StartSession(ctx, source)
		if err != nil {
			log.Fatalf("Failed to start session: %v", err)
		}
		defer func() {
			if err := sdb.EndSession(context.Background(), sessionID); err != nil {
				log.Printf("Failed to end session %d: %v", sessionID, err)
			}
		}()
		log.Printf("Recording rotations to %s (session %d)", *dbFile, sessionID)
	}

	// Optional UDP forwarding of decoded CSV.
	var forwarder *ld06.SampleForwarder
	if *forwardDest != "" {
		var err error
		forwarder, err = ld06.NewSampleForwarder(*forwardDest, stats, *logInterval)
		if err != nil {
			log.Fatalf("Failed to create forwarder: %v", err)
		}
		defer forwarder.Close()
		forwarder.Start(ctx)
	}

	// Optional CSV output.
	var csvWriter *ld06.CSVWriter
	if *csvPath != "" {
		out := os.Stdout
		if *csvPath != "-" {
			f, err := os.Create(*csvPath)
			if err != nil {
				log.Fatalf("Failed to create CSV file: %v", err)
			}
			defer f.Close()
			out = f
		}
		csvWriter = ld06.NewCSVWriter(out)
	}

	// Monitor server with the rotation hub; the assembler callback fans
	// completed rotations into both the database and the live feed.
	var assembler *scan.Assembler
	var hub *monitor.Hub
	assembler = scan.NewAssembler(scan.Config{
		OnRotation: func(rot *scan.Rotation) {
			if hub != nil {
				hub.BroadcastRotation(rot)
			}
			if sdb != nil {
				writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := sdb.RecordRotation(writeCtx, sessionID, rot); err != nil {
					log.Printf("Failed to record rotation %s: %v", rot.ID, err)
				}
			}
		},
	})
	assembler.Start(ctx)

	admin := []func(*http.ServeMux){mux.AttachAdminRoutes}
	if sdb != nil {
		admin = append(admin, sdb.AttachAdminRoutes)
	}
	server := monitor.NewServer(monitor.Config{
		Address:        *listen,
		Stats:          stats,
		DB:             sdb,
		Assembler:      assembler,
		Source:         source,
		ForwardDest:    *forwardDest,
		AdminAttachers: admin,
	})
	hub = server.Hub()

	var wg sync.WaitGroup

	// Raw capture recording taps the mux alongside the decoder.
	if *recordRawPath != "" {
		rawFile, err := os.Create(*recordRawPath)
		if err != nil {
			log.Fatalf("Failed to create raw capture file: %v", err)
		}
		id, ch := mux.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer rawFile.Close()
			defer mux.Unsubscribe(id)
			for {
				select {
				case <-ctx.Done():
					return
				case chunk, ok := <-ch:
					if !ok {
						return
					}
					if _, err := rawFile.Write(chunk); err != nil {
						log.Printf("Raw capture write failed: %v", err)
						return
					}
				}
			}
		}()
		log.Printf("Recording raw stream to %s", *recordRawPath)
	}

	// Decode pipeline: serial chunks through the engine, then out to CSV,
	// the forwarder, and the rotation assembler.
	decodeID, decodeCh := mux.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer mux.Unsubscribe(decodeID)
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-decodeCh:
				if !ok {
					return
				}
				samples := engine.FeedBytes(chunk)
				if samples == nil {
					continue
				}
				if csvWriter != nil {
					if err := csvWriter.Write(samples); err != nil {
						log.Printf("CSV write failed: %v", err)
					}
				}
				if forwarder != nil {
					forwarder.ForwardAsync(samples)
				}
				assembler.Add(samples)
			}
		}
	}()

	// Serial monitor routine. A nil return means the source is exhausted
	// (replay reached EOF); shut the daemon down cleanly in that case.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mux.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("Serial monitor error: %v", err)
		}
		stop()
	}()

	// Periodic stats logging.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(*logInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats.LogStats()
			}
		}
	}()

	// HTTP server routine.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(ctx); err != nil {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
