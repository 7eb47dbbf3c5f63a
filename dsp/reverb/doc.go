// Package reverb implements a Freeverb-style reverb: eight damped feedback
// combs in parallel followed by four series allpass diffusers per channel.
//
// Delay lengths are tuned at 44.1 kHz and scaled to the prepared sample rate.
// Wet and dry levels are smoothed so host automation does not click.
package reverb
