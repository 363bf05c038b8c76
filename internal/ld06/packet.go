// Package ld06 implements the wire protocol of LD06-class rotating LiDAR
// sensors: a continuous one-directional serial byte stream carrying
// fixed-length 47-byte frames of 12 ranged points each.
//
// The package is split into three pieces that mirror the protocol:
// FrameSynchronizer recovers frame boundaries from the raw byte stream,
// Decode validates a candidate frame and extracts its samples, and Engine
// ties the two together with diagnostic counters for a live feed.
package ld06

import "encoding/binary"

// LD06 packet structure constants
// These define the fixed format of serial frames sent by LD06-class sensors
const (
	HEADER_BYTE       = 0x54 // Header sentinel marking the start of every frame
	VERLEN_BYTE       = 0x2C // Fixed version/length identifier at frame position 1
	PACKET_SIZE       = 47   // Total frame size in bytes including checksum
	POINTS_PER_PACKET = 12   // Number of 3-byte measurement entries per frame

	// Field offsets within a 47-byte frame
	SPEED_OFFSET       = 2  // Rotation speed, uint16 LE (deg/s), reserved
	START_ANGLE_OFFSET = 4  // Start angle, uint16 LE in 0.01° units
	POINT_DATA_OFFSET  = 6  // First of 12 × 3-byte point entries
	END_ANGLE_OFFSET   = 42 // End angle, uint16 LE in 0.01° units
	TIMESTAMP_OFFSET   = 44 // Timestamp, uint16 LE (ms), reserved
	CHECKSUM_OFFSET    = 46 // CRC-8 over bytes 0..45

	BYTES_PER_POINT = 3 // Point entry: 2 bytes distance + 1 byte confidence

	// Physical measurement conversion constants
	ANGLE_RESOLUTION   = 0.01  // Angle unit: 0.01 degrees per LSB
	ROTATION_MAX_UNITS = 36000 // Raw angle value representing 360.00 degrees

	// Output filter thresholds. A point with no laser return reports
	// distance 0; confidence at or below 100 is treated as noise.
	MIN_CONFIDENCE = 100
)

// Sample is one decoded measurement extracted from a frame.
type Sample struct {
	Angle      float64 `json:"angle"`      // degrees, normalized to [0, 360)
	Distance   uint16  `json:"distance"`   // millimeters, 0 means no return
	Confidence uint8   `json:"confidence"` // sensor-reported signal quality (0-255)
}

// Speed returns the raw rotation speed field (deg/s) of a 47-byte frame.
// The field is reserved by the decode path but useful for diagnostics.
func Speed(pkt []byte) uint16 {
	return binary.LittleEndian.Uint16(pkt[SPEED_OFFSET:])
}

// StartAngle returns the raw start angle field in 0.01° units.
func StartAngle(pkt []byte) uint16 {
	return binary.LittleEndian.Uint16(pkt[START_ANGLE_OFFSET:])
}

// EndAngle returns the raw end angle field in 0.01° units.
func EndAngle(pkt []byte) uint16 {
	return binary.LittleEndian.Uint16(pkt[END_ANGLE_OFFSET:])
}

// Timestamp returns the raw timestamp field (ms). Reserved.
func Timestamp(pkt []byte) uint16 {
	return binary.LittleEndian.Uint16(pkt[TIMESTAMP_OFFSET:])
}
