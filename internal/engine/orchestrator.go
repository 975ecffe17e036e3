package engine

import (
	"context"
	"time"

	"github.com/pefman/w40k-odds/internal/form"
	"github.com/pefman/w40k-odds/internal/models"
)

// Simulator is the external simulation service.
type Simulator interface {
	Simulate(ctx context.Context, payload form.Payload) (*models.SimulateResponse, error)
}

// response is the completion of one simulation request.
type response struct {
	gen           uint64
	updateHistory bool
	res           *models.SimulateResponse
	err           error
	took          time.Duration
}

// orchestrator issues simulation requests. Every submission takes a new generation; only
// the response of the newest generation may be applied.
type orchestrator struct {
	sim     Simulator
	timeout time.Duration
	gen     uint64
}

// start sends payload in its own goroutine and hands the completion to post.
func (o *orchestrator) start(ctx context.Context, payload form.Payload, updateHistory bool, post func(response)) uint64 {
	o.gen++
	gen := o.gen
	go func() {
		rctx := ctx
		if o.timeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(ctx, o.timeout)
			defer cancel()
		}
		began := time.Now()
		res, err := o.sim.Simulate(rctx, payload)
		post(response{gen: gen, updateHistory: updateHistory, res: res, err: err, took: time.Since(began)})
	}()
	return gen
}

// invalidate makes every outstanding response stale.
func (o *orchestrator) invalidate() { o.gen++ }

// current reports whether r belongs to the newest generation.
func (o *orchestrator) current(r response) bool { return r.gen == o.gen }
