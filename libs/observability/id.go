package observability

import (
	"fmt"

	"github.com/google/uuid"
)

// NewRunID generates a unique identifier for an ingest run.
func NewRunID() string {
	return newID("run")
}

// NewFlowID generates a unique identifier for a full query request flow
// (HTTP request in → catalog or remote resolution → response out).
func NewFlowID() string {
	return newID("flow")
}

func newID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.New().String())
}
