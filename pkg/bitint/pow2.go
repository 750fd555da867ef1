/*
Package bitint provides the integer and bit helpers used to size the
real-time buffers of the tracker: ring capacities, FFT lengths and the
word-aligned bitsets of the pitch detector.

All functions are O(1), allocation free and safe to call from the audio
callback, although in practice they are only needed at construction time.

Usage:

	// Ring capacity for the recorder
	capacity := bitint.NextPowerOfTwo(framesPerSecond) // 48000 -> 65536

	// Bitset length for the detector, aligned to two 64-bit words
	bits := bitint.AlignUp(2*maxPeriod, 128)

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two are preserved (8 -> 8, 9 -> 16).
*/
package bitint

import "math/bits"

// WordBits is the number of bits held by one bitset word.
const WordBits = 64

// NextPowerOfTwo returns the next power of 2 >= size.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// AlignUp rounds n up to the next multiple of align. align must be a power
// of two; any other value returns n unchanged. Non-positive n returns align.
func AlignUp(n, align int) int {
	if !IsPowerOfTwo(align) {
		return n
	}
	if n <= 0 {
		return align
	}
	return (n + align - 1) &^ (align - 1)
}

// Words returns the number of 64-bit words needed to hold n bits.
func Words(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + WordBits - 1) / WordBits
}
