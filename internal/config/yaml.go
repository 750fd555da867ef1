// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	applog "pitchosc/internal/log"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // Logging level (debug, info, warn, error).
	Audio     AudioConfig     `yaml:"audio"`     // Audio interface and synthesis settings.
	Tracking  TrackingConfig  `yaml:"tracking"`  // Pre-processor and pitch detector settings.
	Player    PlayerConfig    `yaml:"player"`    // Pass-through WAV source.
	Events    EventsConfig    `yaml:"events"`    // MIDI event transport and queue.
	Recording RecordingConfig `yaml:"recording"` // Output recording.
	Transport TransportConfig `yaml:"transport"` // Monitoring transports (WebSocket, UDP).
}

// AudioConfig holds settings fixed for the lifetime of the audio stream.
type AudioConfig struct {
	InputDevice  int     `yaml:"input_device"`  // PortAudio device index for input (-1 for default).
	OutputDevice int     `yaml:"output_device"` // PortAudio device index for output (-1 for default).
	SampleRate   uint32  `yaml:"sample_rate"`   // Sample rate in Hz.
	BlockSize    int     `yaml:"block_size"`    // Frames per callback invocation.
	LowLatency   bool    `yaml:"low_latency"`   // Request the device's low latency settings.
	Attenuation  float64 `yaml:"attenuation"`   // Synth output gain in (0, 1].
}

// TrackingConfig configures the pre-processor and the BACF pitch detector.
type TrackingConfig struct {
	LowestFrequency  float64       `yaml:"lowest_frequency"`      // f_min in Hz.
	HighestFrequency float64       `yaml:"highest_frequency"`     // f_max in Hz.
	Periodicity      float64       `yaml:"periodicity_threshold"` // Minimum periodicity (0..1) to report.
	Hysteresis       float64       `yaml:"hysteresis"`            // Comparator hysteresis.
	GateOnsetDB      float64       `yaml:"gate_onset_db"`         // Gate opens above this envelope (dBFS).
	GateReleaseDB    float64       `yaml:"gate_release_db"`       // Gate closes below this envelope (dBFS).
	Attack           time.Duration `yaml:"attack"`                // Envelope follower attack.
	Release          time.Duration `yaml:"release"`               // Envelope follower release.
}

// PlayerConfig selects the WAV file streamed on the right channel.
type PlayerConfig struct {
	Enabled   bool   `yaml:"enabled"`   // Stream a WAV file instead of the right input.
	Directory string `yaml:"directory"` // Directory scanned for .wav files.
	Index     int    `yaml:"index"`     // File index in name order.
	Looping   bool   `yaml:"looping"`   // Restart at end of file.
}

// EventsConfig configures the MIDI event transport loop.
type EventsConfig struct {
	Transport     string        `yaml:"transport"`      // none, serial or port.
	Device        string        `yaml:"device"`         // Serial device node for the serial transport.
	Port          string        `yaml:"port"`           // MIDI port name for the port transport.
	QueueCapacity int           `yaml:"queue_capacity"` // Maximum queued events.
	DropPolicy    string        `yaml:"drop_policy"`    // oldest or newest.
	PollInterval  time.Duration `yaml:"poll_interval"`  // Yield between loop iterations.
	Forward       []string      `yaml:"forward"`        // Event types relayed to the transport output.
}

// RecordingConfig holds settings related to recording the synthesized output.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record the output stream to WAV.
	OutputDir string `yaml:"output_dir"` // Directory to save recordings.
	BitDepth  int    `yaml:"bit_depth"`  // 16 or 24.
}

// TransportConfig holds settings related to publishing tracker state.
type TransportConfig struct {
	ReportInterval   time.Duration `yaml:"report_interval"`    // Monitor relay interval.
	WSEnabled        bool          `yaml:"ws_enabled"`         // Serve monitor reports over WebSocket.
	WSAddress        string        `yaml:"ws_address"`         // Listen address, e.g. ":8080".
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send frequency packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target host:port.
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between frequency packets.
	UDPReportAddress string        `yaml:"udp_report_address"` // Monitor reports as MessagePack; empty disables.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:  DefaultDeviceID,
			OutputDevice: DefaultDeviceID,
			SampleRate:   DefaultSampleRate,
			BlockSize:    DefaultBlockSize,
			LowLatency:   DefaultLowLatency,
			Attenuation:  DefaultAttenuation,
		},
		Tracking: TrackingConfig{
			LowestFrequency:  DefaultLowestFrequency,
			HighestFrequency: DefaultHighestFreq,
			Periodicity:      DefaultPeriodicity,
			Hysteresis:       DefaultHysteresis,
			GateOnsetDB:      DefaultGateOnsetDB,
			GateReleaseDB:    DefaultGateReleaseDB,
			Attack:           DefaultAttack,
			Release:          DefaultRelease,
		},
		Player: PlayerConfig{
			Directory: "./samples",
			Looping:   true,
		},
		Events: EventsConfig{
			Transport:     DefaultTransport,
			QueueCapacity: DefaultQueueCapacity,
			DropPolicy:    DefaultDropPolicy,
			PollInterval:  DefaultPollInterval,
			Forward:       []string{"note_on"},
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			ReportInterval:   DefaultReportInterval,
			WSAddress:        DefaultWSAddress,
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  DefaultUDPInterval,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"config.yaml", "pitchosc.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the cross-field constraints the real-time path relies on.
// All violations are reported together.
func (c *Config) Validate() error {
	var errs []error

	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if a.BlockSize < 1 || a.BlockSize > MaxBufferFrames {
		errs = append(errs, fmt.Errorf("audio.block_size %d outside [1, %d]", a.BlockSize, MaxBufferFrames))
	}
	if a.Attenuation <= 0 || a.Attenuation > 1 {
		errs = append(errs, fmt.Errorf("audio.attenuation %.3f outside (0, 1]", a.Attenuation))
	}
	if a.InputDevice < MinDeviceID || a.OutputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio device ids must be >= %d", MinDeviceID))
	}

	tr := c.Tracking
	nyquist := float64(a.SampleRate) / 2
	if tr.LowestFrequency <= 0 {
		errs = append(errs, fmt.Errorf("tracking.lowest_frequency must be positive, got %.2f", tr.LowestFrequency))
	}
	if tr.HighestFrequency <= tr.LowestFrequency {
		errs = append(errs, fmt.Errorf("tracking.highest_frequency %.2f must exceed lowest_frequency %.2f",
			tr.HighestFrequency, tr.LowestFrequency))
	}
	if tr.HighestFrequency >= nyquist {
		errs = append(errs, fmt.Errorf("tracking.highest_frequency %.2f must be below Nyquist %.1f", tr.HighestFrequency, nyquist))
	}
	if tr.Periodicity <= 0 || tr.Periodicity >= 1 {
		errs = append(errs, fmt.Errorf("tracking.periodicity_threshold %.3f outside (0, 1)", tr.Periodicity))
	}
	if tr.Hysteresis < 0 || tr.Hysteresis >= 1 {
		errs = append(errs, fmt.Errorf("tracking.hysteresis %.3f outside [0, 1)", tr.Hysteresis))
	}
	if tr.GateReleaseDB > tr.GateOnsetDB {
		errs = append(errs, fmt.Errorf("tracking.gate_release_db %.1f must not exceed gate_onset_db %.1f",
			tr.GateReleaseDB, tr.GateOnsetDB))
	}
	if tr.Attack <= 0 || tr.Release <= 0 {
		errs = append(errs, errors.New("tracking.attack and tracking.release must be positive"))
	}

	if c.Player.Enabled && c.Player.Index < 0 {
		errs = append(errs, fmt.Errorf("player.index must be >= 0, got %d", c.Player.Index))
	}

	ev := c.Events
	switch ev.Transport {
	case TransportNone, TransportPort:
	case TransportSerial:
		if ev.Device == "" {
			errs = append(errs, errors.New("events.device must be set for the serial transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events.transport %q", ev.Transport))
	}
	if ev.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("events.queue_capacity must be positive, got %d", ev.QueueCapacity))
	}
	if ev.DropPolicy != DropOldest && ev.DropPolicy != DropNewest {
		errs = append(errs, fmt.Errorf("unknown events.drop_policy %q", ev.DropPolicy))
	}
	if ev.PollInterval <= 0 {
		errs = append(errs, errors.New("events.poll_interval must be positive"))
	}
	for _, name := range ev.Forward {
		if !forwardTypes[name] {
			errs = append(errs, fmt.Errorf("unknown event type %q in events.forward", name))
		}
	}

	if c.Recording.BitDepth != 16 && c.Recording.BitDepth != 24 {
		errs = append(errs, fmt.Errorf("recording.bit_depth must be 16 or 24, got %d", c.Recording.BitDepth))
	}

	t := c.Transport
	if t.ReportInterval <= 0 {
		errs = append(errs, errors.New("transport.report_interval must be positive"))
	}
	if t.UDPEnabled {
		if t.UDPTargetAddress == "" {
			errs = append(errs, errors.New("transport.udp_target_address must be set when UDP is enabled"))
		}
		if t.UDPSendInterval <= 0 {
			errs = append(errs, errors.New("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}
	if t.WSEnabled && t.WSAddress == "" {
		errs = append(errs, errors.New("transport.ws_address must be set when WebSocket is enabled"))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides applies ENV_* variables on top of file values. Malformed
// values are ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Debugf("configuration: overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
	}

	// ENV_SAMPLE_RATE, ENV_BLOCK_SIZE
	if val, ok := os.LookupEnv("ENV_SAMPLE_RATE"); ok {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			cfg.Audio.SampleRate = uint32(n)
			applog.Debugf("configuration: overriding audio.sample_rate from env: %d", n)
		}
	}
	if val, ok := os.LookupEnv("ENV_BLOCK_SIZE"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Audio.BlockSize = n
			applog.Debugf("configuration: overriding audio.block_size from env: %d", n)
		}
	}

	// ENV_MIDI_DEVICE selects the serial transport.
	if val, ok := os.LookupEnv("ENV_MIDI_DEVICE"); ok {
		cfg.Events.Transport = TransportSerial
		cfg.Events.Device = val
		applog.Debugf("configuration: overriding events.device from env: %s", val)
	}

	// ENV_UDP_{...}
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			applog.Debugf("configuration: overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		applog.Debugf("configuration: overriding transport.udp_target_address from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			applog.Debugf("configuration: overriding transport.udp_send_interval from env: %s", dur)
		}
	}
}
