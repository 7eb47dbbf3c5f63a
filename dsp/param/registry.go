package param

import (
	"errors"
	"fmt"
	"math"
)

var (
	errDuplicateParameter = errors.New("duplicate parameter id")
	errEmptyParameterID   = errors.New("empty parameter id")
)

// Descriptor describes one host-automatable parameter in plain units.
// Steps > 1 marks an enumerated parameter with that many discrete values.
type Descriptor struct {
	ID      string
	Name    string
	Unit    string
	Min     float64
	Max     float64
	Default float64
	Steps   int
}

// Clamp limits v to the descriptor range and snaps enumerated values to the
// nearest step. NaN maps to the default.
func (d Descriptor) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return d.Default
	}
	if v < d.Min {
		v = d.Min
	}
	if v > d.Max {
		v = d.Max
	}
	if d.Steps > 1 {
		v = math.Round(v)
	}
	return v
}

// Normalize maps a plain value to [0, 1].
func (d Descriptor) Normalize(v float64) float64 {
	span := d.Max - d.Min
	if span <= 0 {
		return 0
	}
	return (d.Clamp(v) - d.Min) / span
}

// Denormalize maps a host-normalized value in [0, 1] to plain units.
func (d Descriptor) Denormalize(n float64) float64 {
	if math.IsNaN(n) {
		return d.Default
	}
	if n < 0 {
		n = 0
	}
	if n > 1 {
		n = 1
	}
	return d.Clamp(d.Min + n*(d.Max-d.Min))
}

func (d Descriptor) validate() error {
	if d.ID == "" {
		return errEmptyParameterID
	}
	if !(d.Max > d.Min) {
		return fmt.Errorf("parameter %q range is empty: [%g, %g]", d.ID, d.Min, d.Max)
	}
	if d.Default < d.Min || d.Default > d.Max {
		return fmt.Errorf("parameter %q default must be in [%g, %g]: %g", d.ID, d.Min, d.Max, d.Default)
	}
	return nil
}

// Registry keeps parameter descriptors in registration order.
type Registry struct {
	order []string
	byID  map[string]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Descriptor)}
}

// Register adds a descriptor.
func (r *Registry) Register(d Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}
	if _, exists := r.byID[d.ID]; exists {
		return fmt.Errorf("%w: %s", errDuplicateParameter, d.ID)
	}

	r.byID[d.ID] = d
	r.order = append(r.order, d.ID)

	return nil
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// All returns descriptors in registration order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of registered parameters.
func (r *Registry) Len() int { return len(r.order) }
