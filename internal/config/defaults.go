// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the tracker. The frequency bounds span C2..C5, the range the detector
// window is sized for.
const (
	DefaultSampleRate      = 48000  // Hz
	DefaultBlockSize       = 48     // Frames per callback (1 ms at 48 kHz)
	DefaultAttenuation     = 0.5    // Synth output gain, keeps the sine clear of clipping
	DefaultLowestFrequency = 65.41  // C2
	DefaultHighestFreq     = 523.25 // C5
	DefaultDeviceID        = MinDeviceID
	DefaultLowLatency      = true

	DefaultPeriodicity   = 0.85  // Minimum BACF periodicity to report a pitch
	DefaultHysteresis    = 0.1   // Zero-crossing comparator hysteresis (normalised units)
	DefaultGateOnsetDB   = -45.0 // Envelope level that opens the gate
	DefaultGateReleaseDB = -60.0 // Envelope level that closes it again
	DefaultAttack        = 1 * time.Millisecond
	DefaultRelease       = 50 * time.Millisecond

	DefaultQueueCapacity = 1024
	DefaultDropPolicy    = DropOldest
	DefaultPollInterval  = 1 * time.Millisecond
	DefaultTransport     = TransportNone

	DefaultBitDepth       = 16
	DefaultReportInterval = 100 * time.Millisecond
	DefaultUDPInterval    = 33 * time.Millisecond // ~30 Hz
	DefaultUDPTarget      = "127.0.0.1:9090"
	DefaultWSAddress      = ":8080"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents the system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per block
)

// Event queue drop policies.
const (
	DropOldest = "oldest"
	DropNewest = "newest"
)

// Event transport kinds.
const (
	TransportNone   = "none"
	TransportSerial = "serial"
	TransportPort   = "port"
)

// forwardTypes lists the event type names accepted in events.forward.
var forwardTypes = map[string]bool{
	"note_on":          true,
	"note_off":         true,
	"control_change":   true,
	"program_change":   true,
	"pitch_bend":       true,
	"channel_pressure": true,
	"poly_pressure":    true,
}
