// Package distortion implements a three-model waveshaper with smoothed
// drive, dry/wet mix and output gain.
//
// Models:
//   - ModelHardClip: linear drive into a 0.99 ceiling.
//   - ModelSoftClip: arctangent curve with drive-dependent makeup loss.
//   - ModelSaturation: asymmetric hyperbolic curve (tanh above zero,
//     tanh(sinh(x)) with a sine correction below).
//
// ProcessSample does no allocation and takes no locks. Setters only publish
// targets and may be called while audio is running.
package distortion
