// SPDX-License-Identifier: MIT
package pitch

import (
	"fmt"
	"math"
	"strconv"
)

// Note is the nearest equal-tempered note to a frequency (A4 = 440 Hz).
type Note struct {
	Name   string
	Octave int
	MIDI   int
	Cents  float64 // deviation from the note, in [-50, 50]
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NearestNote returns the note closest to freq. ok is false for
// non-positive or non-finite input.
func NearestNote(freq float64) (n Note, ok bool) {
	if !(freq > 0) || math.IsInf(freq, 1) {
		return Note{}, false
	}

	semitones := 12 * math.Log2(freq/440)
	rounded := math.Round(semitones)
	midi := 69 + int(rounded)

	index := midi % 12
	if index < 0 {
		index += 12
	}

	return Note{
		Name:   noteNames[index],
		Octave: int(math.Floor(float64(midi)/12)) - 1,
		MIDI:   midi,
		Cents:  100 * (semitones - rounded),
	}, true
}

// NoteFrequency returns the equal-tempered frequency of a MIDI note number.
func NoteFrequency(midi int) float64 {
	return 440 * math.Pow(2, float64(midi-69)/12)
}

// Label returns the note name with its octave, e.g. "A4".
func (n Note) Label() string {
	return n.Name + strconv.Itoa(n.Octave)
}

func (n Note) String() string {
	return fmt.Sprintf("%s%d %+.0fc", n.Name, n.Octave, n.Cents)
}
