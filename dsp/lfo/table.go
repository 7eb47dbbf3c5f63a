package lfo

import "fmt"

const (
	defaultTableSize = 2048
	minTableSize     = 16
	maxTableSize     = 1 << 16
)

// Table holds one period of a waveform sampled at Size points, read back
// with linear interpolation between neighbours. Square tables are read with
// the nearest lower point instead, so the output never leaves {-1, +1}.
type Table struct {
	values  []float64
	stepped bool
}

// NewTable samples w over one period. The extra guard point at the end lets
// the reader interpolate across the wrap without a branch.
func NewTable(w Waveform, size int) (*Table, error) {
	if size < minTableSize || size > maxTableSize {
		return nil, fmt.Errorf("lfo table size must be in [%d, %d]: %d", minTableSize, maxTableSize, size)
	}
	if !validWaveform(w) {
		return nil, fmt.Errorf("lfo waveform is invalid: %d", w)
	}

	values := make([]float64, size+1)
	for i := 0; i < size; i++ {
		values[i] = w.Eval(float64(i) / float64(size))
	}
	values[size] = values[0]

	return &Table{values: values, stepped: w == WaveformSquare}, nil
}

// Size returns the number of points per period.
func (t *Table) Size() int { return len(t.values) - 1 }

// Lookup returns the value at phase p in [0, 1).
func (t *Table) Lookup(p float64) float64 {
	pos := p * float64(t.Size())
	i := int(pos)
	if i >= t.Size() {
		i = t.Size() - 1
	}
	a := t.values[i]
	if t.stepped {
		return a
	}

	frac := pos - float64(i)
	return a + (t.values[i+1]-a)*frac
}
