// Package lfo provides a low-frequency oscillator driven by a smoothed
// frequency control, with sine, folded-saw and square shapes evaluated either
// by formula or from a one-period lookup table.
//
// The oscillator's value can be read directly for modulation routing, or
// rendered into a per-block gain curve and multiplied into audio channels.
package lfo
