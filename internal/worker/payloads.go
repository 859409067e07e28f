package worker

import (
	"github.com/abdul-hamid-achik/clip.cheap/internal/tracing"
	"github.com/google/uuid"
)

// MediaJobPayload is the queue message for every worker-processed kind. The
// row in media_jobs holds the parameters; the message only points at it.
type MediaJobPayload struct {
	JobID uuid.UUID          `json:"job_id"`
	Trace tracing.JobCarrier `json:"trace,omitempty"`
}
