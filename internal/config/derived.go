// SPDX-License-Identifier: MIT
package config

import "time"

// BlockDuration is the wall-clock budget of one callback invocation.
func (c *Config) BlockDuration() time.Duration {
	return time.Duration(c.Audio.BlockSize) * time.Second / time.Duration(c.Audio.SampleRate)
}

// SampleRateHz returns the sample rate as a float for DSP coefficient math.
func (c *Config) SampleRateHz() float64 {
	return float64(c.Audio.SampleRate)
}

// Level returns the effective log level name; debug mode wins over log_level.
func (c *Config) Level() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}
