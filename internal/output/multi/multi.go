package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/politeguard/internal/model"
	"github.com/crimson-sun/politeguard/internal/output"
)

// Multi writes each record to several outputs in order. A failing output
// does not stop delivery to the ones after it.
type Multi struct {
	outputs []output.Output
}

// New returns a Multi over outs.
func New(outs ...output.Output) *Multi {
	return &Multi{outputs: outs}
}

func (m *Multi) Write(ctx context.Context, rec model.Record) error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every output and joins their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
