package application

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultSubmitDelay is the latency of the simulated submission.
const DefaultSubmitDelay = 2000 * time.Millisecond

// Receipt acknowledges a completed submission.
type Receipt struct {
	Reference   string    `json:"reference" msgpack:"reference"`
	SubmittedAt time.Time `json:"submittedAt" msgpack:"submitted_at"`
}

// Submitter hands a validated draft to whatever processes applications.
type Submitter interface {
	Submit(ctx context.Context, d Draft) (Receipt, error)
}

// SubmitterFunc adapts an ordinary function to Submitter.
type SubmitterFunc func(ctx context.Context, d Draft) (Receipt, error)

func (f SubmitterFunc) Submit(ctx context.Context, d Draft) (Receipt, error) {
	return f(ctx, d)
}

// SimulatedSubmitter waits for Delay and accepts every draft.
// No I/O happens; the draft is not retained.
type SimulatedSubmitter struct {
	Delay time.Duration

	// Now overrides the clock used for receipts.
	Now func() time.Time
}

// NewSimulatedSubmitter returns a submitter with the given delay;
// a negative delay is treated as zero.
func NewSimulatedSubmitter(delay time.Duration) *SimulatedSubmitter {
	return &SimulatedSubmitter{Delay: max(delay, 0)}
}

// Submit blocks for the configured delay. It returns early only when ctx
// is done, in which case ctx.Err() is returned.
func (s *SimulatedSubmitter) Submit(ctx context.Context, _ Draft) (Receipt, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		}
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return Receipt{
		Reference:   newReference(),
		SubmittedAt: now().UTC(),
	}, nil
}

// newReference returns a short human-readable application reference.
func newReference() string {
	id := uuid.New()
	return "APP-" + id.String()[:8]
}
