package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"pitchosc/internal/audio"
)

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// fetchDevices runs the configured lister off the update loop.
func (m Model) fetchDevices() tea.Cmd {
	lister := m.opts.Devices
	if lister == nil {
		return nil
	}
	return func() tea.Msg {
		devices, err := lister()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

// renderDevices formats the device list, marking the configured devices.
func (m Model) renderDevices() string {
	var sb strings.Builder

	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	for i, device := range m.devices {
		deviceInfo := fmt.Sprintf("[%d] %s (%s)\n", device.ID, device.Name, device.Kind())
		if device.HostAPI != "" {
			deviceInfo += fmt.Sprintf("    Host API: %s\n", device.HostAPI)
		}
		deviceInfo += fmt.Sprintf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)

		var tags []string
		if device.ID == m.opts.InputDevice {
			tags = append(tags, "input")
		}
		if device.ID == m.opts.OutputDevice {
			tags = append(tags, "output")
		}
		if len(tags) > 0 {
			deviceInfo += dimStyle.Render("    in use: "+strings.Join(tags, ", ")) + "\n"
		}

		if i == m.selectedIndex {
			deviceInfo = highlightStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}

	return sb.String()
}
