// Package param holds the control-side plumbing shared by every effect:
// linear parameter ramps (Smoothed), lock-free scalar controls (Scalar) and
// descriptors for the named parameters a host may automate (Registry).
//
// Setters on Smoothed and Scalar may be called from any goroutine. Reads that
// advance state (Smoothed.Next, Smoothed.Reset) belong to the audio goroutine.
package param
