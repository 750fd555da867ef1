// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"

	"pitchosc/internal/synth"
)

// TrackingState is the tracker's current pitch. It is owned by the block
// processor and only ever mutated from the audio callback.
type TrackingState struct {
	Frequency  float64     // Hz, 0 until the first detection
	Increment  synth.Phase // phase step derived from Frequency
	Detections uint64
}

// Status is a point-in-time copy of the tracker for readers outside the
// audio callback.
type Status struct {
	Frequency   float64
	Periodicity float64
	Detections  uint64
	Blocks      uint64
	GateOpen    bool
}

// Snapshot publishes TrackingState to other goroutines. There is exactly
// one writer, the block processor; any number of readers may call Load.
// Fields are published independently, so a reader can observe a frequency
// one detection newer than the counter.
type Snapshot struct {
	frequency   atomic.Uint64 // float64 bits
	periodicity atomic.Uint64 // float64 bits
	detections  atomic.Uint64
	blocks      atomic.Uint64
	gateOpen    atomic.Bool
}

func (s *Snapshot) publish(st *TrackingState, periodicity float64, gateOpen bool) {
	s.frequency.Store(math.Float64bits(st.Frequency))
	s.periodicity.Store(math.Float64bits(periodicity))
	s.detections.Store(st.Detections)
	s.gateOpen.Store(gateOpen)
	s.blocks.Add(1)
}

// Frequency returns the last published frequency in Hz.
func (s *Snapshot) Frequency() float64 {
	return math.Float64frombits(s.frequency.Load())
}

// Load returns a copy of every published field.
func (s *Snapshot) Load() Status {
	return Status{
		Frequency:   math.Float64frombits(s.frequency.Load()),
		Periodicity: math.Float64frombits(s.periodicity.Load()),
		Detections:  s.detections.Load(),
		Blocks:      s.blocks.Load(),
		GateOpen:    s.gateOpen.Load(),
	}
}
