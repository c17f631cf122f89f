// Package matrix produces the travel distance/time matrices the solver
// consumes, either from a remote matrix service or a geometric fallback,
// optionally cached in redis.
package matrix

import (
	"context"

	"medroute/internal/model"
)

// UnreachableKm marks cells the provider could not resolve. A very large
// finite distance keeps the solver's integer arithmetic well-defined where
// a null would not.
const UnreachableKm = 9_999_999

// Provider returns a square distance/time matrix over the given points,
// indexed identically to the input (depot first, then stops).
type Provider interface {
	Matrix(ctx context.Context, points []model.GeoPoint) (model.TravelMatrix, error)
}
