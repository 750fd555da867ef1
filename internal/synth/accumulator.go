// SPDX-License-Identifier: MIT
package synth

// Accumulator is the single-voice sine generator. Per sample the caller
// takes Sample() first and then Advance(), so the first output after
// construction reflects phase zero. Changing the increment never touches
// the running phase, which keeps the waveform continuous across pitch
// updates.
type Accumulator struct {
	phase       Phase
	increment   Phase
	attenuation float32
}

// NewAccumulator returns an accumulator at phase zero with no increment.
func NewAccumulator(attenuation float32) *Accumulator {
	return &Accumulator{attenuation: attenuation}
}

// Sample returns attenuation * sin(phase).
func (a *Accumulator) Sample() float32 {
	return a.attenuation * float32(a.phase.Sin())
}

// Advance adds the current increment, wrapping modulo one cycle.
func (a *Accumulator) Advance() {
	a.phase += a.increment
}

// SetIncrement replaces the per-sample step.
func (a *Accumulator) SetIncrement(inc Phase) {
	a.increment = inc
}

func (a *Accumulator) Phase() Phase     { return a.phase }
func (a *Accumulator) Increment() Phase { return a.increment }
