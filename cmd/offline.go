package cmd

import (
	"fmt"
	"io"
	"math"

	"pitchosc/internal/analysis"
	"pitchosc/internal/audio"
	"pitchosc/internal/config"
	"pitchosc/internal/midi"
	"pitchosc/internal/pitch"
	"pitchosc/internal/player"
)

// analyzeRange bounds the spectral search of the analyze command.
const (
	analyzeLow  = 20.0
	analyzeHigh = 5000.0
)

func noteLabel(freq float64) string {
	if n, ok := pitch.NearestNote(freq); ok {
		return n.String()
	}
	return "-"
}

// List writes the audio devices and MIDI input ports to w.
func List(w io.Writer) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if err := audio.ListDevices(w); err != nil {
		return err
	}

	fmt.Fprintf(w, "Available MIDI Input Ports\n\n")
	ports := midi.InPorts()
	if len(ports) == 0 {
		fmt.Fprintln(w, "    none")
	}
	for i, name := range ports {
		fmt.Fprintf(w, "[%d] %s\n", i, name)
	}
	return nil
}

// Render tracks the first channel of in and writes the stereo result to
// out. The second channel, if any, is passed through on the right.
func Render(w io.Writer, cfg *config.Config, in, out string) error {
	clip, err := player.LoadWAV(in)
	if err != nil {
		return err
	}
	if clip.Frames() == 0 {
		return fmt.Errorf("%s: no samples", in)
	}

	cfg.Audio.SampleRate = uint32(clip.SampleRate)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	var right []float32
	if len(clip.Channels) > 1 {
		right = clip.Channels[1]
	}
	outL, outR, proc, err := audio.Render(cfg, clip.Channels[0], right)
	if err != nil {
		return err
	}
	if err := audio.WriteWAV(out, clip.SampleRate, cfg.Recording.BitDepth, outL, outR); err != nil {
		return err
	}

	st := proc.State()
	fmt.Fprintf(w, "Rendered %d frames at %d Hz to %s\n", clip.Frames(), clip.SampleRate, out)
	fmt.Fprintf(w, "    Detections: %d\n", st.Detections)
	if st.Detections > 0 {
		fmt.Fprintf(w, "    Final pitch: %.2f Hz (%s)\n", st.Frequency, noteLabel(st.Frequency))
	}
	return nil
}

// Analyze prints the measured fundamental of every channel of path,
// windowing with the named gonum window.
func Analyze(w io.Writer, path, windowName string) error {
	win, err := analysis.ParseWindowFunc(windowName)
	if err != nil {
		return err
	}
	clip, err := player.LoadWAV(path)
	if err != nil {
		return err
	}

	sr := float64(clip.SampleRate)
	fmt.Fprintf(w, "%s: %d Hz, %d channels, %d frames\n", path, clip.SampleRate, len(clip.Channels), clip.Frames())
	for ch, samples := range clip.Channels {
		freq, err := analysis.MeasureWindowed(samples, sr, analyzeLow, math.Min(analyzeHigh, sr/2), win)
		if err != nil {
			fmt.Fprintf(w, "    channel %d: %v\n", ch, err)
			continue
		}
		fmt.Fprintf(w, "    channel %d: %.2f Hz (%s)\n", ch, freq, noteLabel(freq))
	}
	return nil
}
