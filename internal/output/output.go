package output

import (
	"context"

	"github.com/crimson-sun/politeguard/internal/model"
)

// Output defines the interface for analysis result destinations.
type Output interface {
	Write(ctx context.Context, rec model.Record) error
	Close() error
}
