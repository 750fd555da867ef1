// SPDX-License-Identifier: MIT
package dsp

import "math"

// Envelope is a peak follower with separate attack and release time
// constants.
type Envelope struct {
	attack  float64
	release float64
	level   float64
}

// NewEnvelope builds a follower; attack and release are in seconds.
func NewEnvelope(attack, release, sampleRate float64) *Envelope {
	return &Envelope{
		attack:  onePole(attack, sampleRate),
		release: onePole(release, sampleRate),
	}
}

// onePole returns the smoothing coefficient for a one-pole filter reaching
// 1-1/e of a step after tau seconds.
func onePole(tau, sampleRate float64) float64 {
	if tau <= 0 {
		return 0
	}
	return math.Exp(-1 / (tau * sampleRate))
}

// Process feeds one sample and returns the updated level.
func (e *Envelope) Process(x float64) float64 {
	x = math.Abs(x)
	coeff := e.release
	if x > e.level {
		coeff = e.attack
	}
	e.level = x + coeff*(e.level-x)
	return e.level
}

func (e *Envelope) Level() float64 { return e.level }

// Gate opens when the envelope rises above the onset threshold and closes
// when it falls below the release threshold. Thresholds are linear
// amplitudes; onset must be >= release.
type Gate struct {
	onset   float64
	release float64
	open    bool
}

// NewGate builds a gate from thresholds in dBFS.
func NewGate(onsetDB, releaseDB float64) *Gate {
	return &Gate{
		onset:   DBToLinear(onsetDB),
		release: DBToLinear(releaseDB),
	}
}

// Update advances the gate state for an envelope level and reports whether
// it is open.
func (g *Gate) Update(level float64) bool {
	switch {
	case !g.open && level >= g.onset:
		g.open = true
	case g.open && level < g.release:
		g.open = false
	}
	return g.open
}

func (g *Gate) Open() bool { return g.open }

// DBToLinear converts dBFS to a linear amplitude.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}
