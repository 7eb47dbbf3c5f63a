package param

import (
	"math"
	"sync/atomic"
)

// Scalar is a float64 control value with lock-free load and store. Effects
// that sample a control once per block read it through a Scalar.
type Scalar struct {
	bits atomic.Uint64
}

// NewScalar returns a Scalar holding v.
func NewScalar(v float64) *Scalar {
	s := &Scalar{}
	s.Store(v)
	return s
}

// Store publishes v.
func (s *Scalar) Store(v float64) {
	s.bits.Store(math.Float64bits(v))
}

// Load returns the last published value.
func (s *Scalar) Load() float64 {
	return math.Float64frombits(s.bits.Load())
}
