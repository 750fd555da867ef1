// SPDX-License-Identifier: MIT
/*
Package audio hosts the pitch tracker on a real-time duplex stream:
- PortAudio duplex stream, 2 in / 2 out, non-interleaved float32
- BlockProcessor running the tracker and sine synth per block
- Lock-free snapshot of the tracking state for other goroutines
- WAV recording of the output on a writer goroutine

Real-time Safety:
- The callback never blocks, locks or allocates
- Buffers are sized at startup from the configured block size
- Locks OS thread during audio processing
*/
package audio

import (
	"fmt"
	"runtime"
	"time"

	"github.com/gordonklaus/portaudio"

	"pitchosc/internal/config"
	applog "pitchosc/internal/log"
)

// streamChannels is the channel count requested on each side.
const streamChannels = 2

type Engine struct {
	config    *config.Config
	processor *BlockProcessor

	inputDevice   *portaudio.DeviceInfo
	outputDevice  *portaudio.DeviceInfo
	inputLatency  time.Duration
	outputLatency time.Duration
	inChannels    int

	stream *portaudio.Stream
}

// NewEngine resolves the configured devices. PortAudio must already be
// initialized.
func NewEngine(cfg *config.Config, processor *BlockProcessor) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}
	outputDevice, err := OutputDevice(cfg.Audio.OutputDevice)
	if err != nil {
		return nil, err
	}
	if outputDevice.MaxOutputChannels < streamChannels {
		return nil, fmt.Errorf("output device %s has %d channels, need %d",
			outputDevice.Name, outputDevice.MaxOutputChannels, streamChannels)
	}

	engine := &Engine{
		config:       cfg,
		processor:    processor,
		inputDevice:  inputDevice,
		outputDevice: outputDevice,
		inChannels:   min(inputDevice.MaxInputChannels, streamChannels),
	}

	if cfg.Audio.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
		engine.outputLatency = outputDevice.DefaultLowOutputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
		engine.outputLatency = outputDevice.DefaultHighOutputLatency
	}

	return engine, nil
}

// Start opens and starts the duplex stream.
func (e *Engine) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.inChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: streamChannels,
			Device:   e.outputDevice,
			Latency:  e.outputLatency,
		},
		FramesPerBuffer: e.config.Audio.BlockSize,
		SampleRate:      e.config.SampleRateHz(),
	}

	stream, err := portaudio.OpenStream(params, e.process)
	if err != nil {
		return fmt.Errorf("failed to open duplex stream: %w", err)
	}
	e.stream = stream

	if err := e.stream.Start(); err != nil {
		e.stream.Close()
		e.stream = nil
		return fmt.Errorf("failed to start duplex stream: %w", err)
	}

	info := stream.Info()
	applog.Infow("Audio: stream started",
		"input", e.inputDevice.Name,
		"output", e.outputDevice.Name,
		"sample_rate", info.SampleRate,
		"block_size", e.config.Audio.BlockSize,
		"input_latency", info.InputLatency,
		"output_latency", info.OutputLatency,
	)
	return nil
}

// Stop silences the processor at the next block boundary, then stops and
// closes the stream.
func (e *Engine) Stop() error {
	e.processor.Stop()

	if e.stream == nil {
		return nil
	}
	if err := e.stream.Stop(); err != nil {
		return err
	}
	if err := e.stream.Close(); err != nil {
		return err
	}
	e.stream = nil
	return nil
}

// process is the real-time callback. PortAudio delivers one slice per
// channel.
func (e *Engine) process(in, out [][]float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var inL, inR []float32
	if len(in) > 0 {
		inL = in[0]
	}
	if len(in) > 1 {
		inR = in[1]
	}
	e.processor.ProcessBlock(inL, inR, out[0], out[1])
}

// Close stops the stream if it is running.
func (e *Engine) Close() error {
	return e.Stop()
}
