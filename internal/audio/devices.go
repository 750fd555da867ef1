package audio

import (
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"

	"pitchosc/internal/config"
)

// Device describes a PortAudio device.
type Device struct {
	ID                int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	LowInputLatency   float64 // milliseconds
	LowOutputLatency  float64 // milliseconds
}

// Kind reports whether the device does input, output or both.
func (d Device) Kind() string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	}
	return "None"
}

// Swappable for tests.
var (
	paDevicesFunc       = portaudio.Devices
	defaultInputDevice  = portaudio.DefaultInputDevice
	defaultOutputDevice = portaudio.DefaultOutputDevice
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// HostDevices returns every device PortAudio reports, indexed by ID.
func HostDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, fmt.Errorf("failed to list audio devices: %w", err)
	}

	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			LowInputLatency:   info.DefaultLowInputLatency.Seconds() * 1000,
			LowOutputLatency:  info.DefaultLowOutputLatency.Seconds() * 1000,
		}
		if info.HostApi != nil {
			devices[i].HostAPI = info.HostApi.Name
		}
	}
	return devices, nil
}

// InputDevice resolves deviceID to an input-capable device. MinDeviceID
// selects the system default.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	return lookupDevice(deviceID, defaultInputDevice, func(d *portaudio.DeviceInfo) bool {
		return d.MaxInputChannels > 0
	}, "input")
}

// OutputDevice resolves deviceID to an output-capable device. MinDeviceID
// selects the system default.
func OutputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	return lookupDevice(deviceID, defaultOutputDevice, func(d *portaudio.DeviceInfo) bool {
		return d.MaxOutputChannels > 0
	}, "output")
}

func lookupDevice(deviceID int, fallback func() (*portaudio.DeviceInfo, error),
	capable func(*portaudio.DeviceInfo) bool, kind string) (*portaudio.DeviceInfo, error) {
	if deviceID == config.MinDeviceID {
		device, err := fallback()
		if err != nil {
			return nil, fmt.Errorf("no default %s device: %w", kind, err)
		}
		return device, nil
	}

	devices, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	if !capable(devices[deviceID]) {
		return nil, fmt.Errorf("device %d (%s) does not support %s", deviceID, devices[deviceID].Name, kind)
	}
	return devices[deviceID], nil
}

// ListDevices writes a description of every device to w.
func ListDevices(w io.Writer) error {
	devices, err := HostDevices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Audio Devices\n\n")
	for _, d := range devices {
		fmt.Fprintf(w, "[%d] %s (%s)\n", d.ID, d.Name, d.Kind())
		if d.HostAPI != "" {
			fmt.Fprintf(w, "    Host API: %s\n", d.HostAPI)
		}
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", d.MaxInputChannels, d.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", d.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: In=%.2fms, Out=%.2fms\n", d.LowInputLatency, d.LowOutputLatency)
		fmt.Fprintln(w)
	}
	return nil
}
