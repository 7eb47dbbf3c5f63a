// Package delay provides a circular delay line and the stutter effect built
// on it: a per-channel feedback delay whose input is soft-limited by an
// arctangent stage before it enters the loop.
package delay
