// Package stage defines the contract pipeline stages implement.
package stage

import (
	"context"

	"recap/internal/recording"
)

// Handler describes the contract the pipeline runner needs from each stage.
type Handler interface {
	Prepare(context.Context, *recording.Recording) error
	Execute(context.Context, *recording.Recording) error
	HealthCheck(context.Context) Health
}
