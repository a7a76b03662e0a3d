package flow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
)

// StageChainResume tags states saved by a suspending chain.
const StageChainResume = "chain:resume"

const (
	keyChainPosition = "chain:position"
	keyChainEntries  = "chain:entries"
)

// ErrSuspendLoop means a stage suspended again when re-entered after a
// resumption. A suspending stage must record enough of its own sub
// state to complete immediately on re-entry; failing that the chain
// would redirect forever.
var ErrSuspendLoop = errors.New("stage suspended repeatedly without progress")

// StageResult is what a FilterStage reports back. A nil result or the
// zero value means the stage completed and the chain advances.
type StageResult struct {
	// Suspend, when set, suspends the whole chain. It receives the id
	// the chain state was saved under and must end the request,
	// typically with a redirect carrying that id.
	Suspend func(w http.ResponseWriter, r *http.Request, resumeID string)
	// SkipRemaining short-circuits the chain, all later stages are
	// skipped and the run completes.
	SkipRemaining bool
}

// FilterStage is one element of a processing chain. Stages run in
// ascending Order and may suspend the chain for an external
// interaction such as a consent page.
type FilterStage interface {
	Order() int
	Process(ctx context.Context, state *State) (*StageResult, error)
}

// Chain runs an ordered list of filter stages against an
// authentication result, suspending and resuming across redirects
// through the engine.
type Chain struct {
	engine *Engine
	stages []FilterStage
}

func NewChain(engine *Engine, stages ...FilterStage) *Chain {
	ordered := append([]FilterStage(nil), stages...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Order() < ordered[j].Order()
	})
	return &Chain{engine: engine, stages: ordered}
}

// Process iterates the stages from the position recorded in state,
// zero for a fresh run. A suspending stage is re-entered on resumption
// at the same position, never restarted from the chain's beginning.
//
// Stage errors are not retried; they funnel into the engine's
// exception path so the caller sees a clean redirect to recovery
// instead of a stack unwind. The returned error is reserved for
// infrastructure failures.
func (c *Chain) Process(ctx context.Context, state *State) (Outcome, error) {
	for pos := state.GetInt(keyChainPosition); pos < len(c.stages); pos++ {
		entries := c.bumpEntry(state, pos)

		result, err := c.stages[pos].Process(ctx, state)
		if err != nil {
			state.Set(keyChainPosition, pos)
			return c.engine.ThrowException(ctx, state, err), nil
		}
		if result == nil {
			continue
		}

		if result.Suspend != nil {
			if entries > 1 {
				// re-entered after a resumption and suspended again
				state.Set(keyChainPosition, pos)
				return c.engine.ThrowException(ctx, state, fmt.Errorf("%w: stage %d entered %d times", ErrSuspendLoop, pos, entries)), nil
			}
			// current position, not yet advanced: resumption re-enters
			// the suspending stage
			state.Set(keyChainPosition, pos)
			id, err := c.engine.Save(ctx, state, StageChainResume)
			if err != nil {
				return Outcome{}, err
			}
			suspend := result.Suspend
			return Suspend(&Suspension{Render: func(w http.ResponseWriter, r *http.Request) {
				suspend(w, r, id)
			}}), nil
		}
		if result.SkipRemaining {
			break
		}
	}
	state.Set(keyChainPosition, len(c.stages))
	return Completed(state), nil
}

// Resume loads a suspended chain state and continues processing from
// the recorded position.
func (c *Chain) Resume(ctx context.Context, id string) (Outcome, error) {
	state, err := c.engine.Load(ctx, id, StageChainResume)
	if err != nil {
		return Outcome{}, err
	}
	return c.Process(ctx, state)
}

// bumpEntry counts how often the stage at pos has been entered over the
// whole, possibly multi-request, lifetime of the run.
func (c *Chain) bumpEntry(state *State, pos int) int {
	entries, _ := state.Payload[keyChainEntries].(map[string]any)
	if entries == nil {
		entries = map[string]any{}
	}
	key := strconv.Itoa(pos)
	count, _ := entries[key].(float64)
	count++
	entries[key] = count
	state.Set(keyChainEntries, entries)
	return int(count)
}
