// Package effectchain wires the effects into a host-driven block processor.
//
// A Processor owns one reverb, distortion engine, LFO and stutter delay and
// runs a subset of them in a fixed order chosen by its Layout:
//
//	LayoutModulation: reverb -> distortion -> LFO amplitude modulation
//	LayoutStutter:    distortion -> stutter delay
//
// Lifecycle is Prepare, then any number of ProcessBlock calls from one
// real-time goroutine, then ReleaseResources. Controls are set by ID from
// any goroutine through SetParameter, SetNormalized or ApplyParams; they only
// publish targets, which the audio goroutine picks up on its next read.
package effectchain
