package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/ssokit/idp/pkg/idp/flow"
)

// Stage tags under which logout runs are suspended.
const (
	StageLogoutTraditional = "logout:traditional"
	StageLogoutIFrame      = "logout:iframe"
)

const keyLogoutRun = "logout:run"

// ErrLostRelayState means a logout response referenced a relay id with
// no live run behind it, a protocol error rather than an
// infrastructure one.
var ErrLostRelayState = errors.New("relay state lost")

// LogoutRun is the bookkeeping for one logout attempt across the
// associations of a session. It only lives inside the saved State
// carrying it between requests.
type LogoutRun struct {
	SessionID   string `json:"session_id"`
	InitiatorID string `json:"initiator_id,omitempty"`

	// Remaining holds the association ids still to be contacted,
	// popped from the end (Traditional only).
	Remaining []string `json:"remaining,omitempty"`
	// AwaitingID is the association whose response is expected next
	// (Traditional only).
	AwaitingID string `json:"awaiting_id,omitempty"`

	// Status and DisplayNames are the iframe handler's per association
	// view: association id to onhold/done, and the label snapshot taken
	// when the run started.
	Status       map[string]string `json:"status,omitempty"`
	DisplayNames map[string]string `json:"display_names,omitempty"`

	// HadFailure is data, not an error: a failed child termination
	// never stops the run from reaching its end.
	HadFailure bool     `json:"had_failure"`
	Failures   []string `json:"failures,omitempty"`
}

func (run *LogoutRun) fail(associationID, detail string) {
	run.HadFailure = true
	run.Failures = append(run.Failures, fmt.Sprintf("%s: %s", associationID, detail))
}

// Err aggregates the recorded per SP failures, nil when none occurred.
func (run *LogoutRun) Err() error {
	var result *multierror.Error
	for _, failure := range run.Failures {
		result = multierror.Append(result, errors.New(failure))
	}
	return result.ErrorOrNil()
}

func runToState(state *flow.State, run *LogoutRun) error {
	return state.SetJSON(keyLogoutRun, run)
}

func runFromState(state *flow.State) (*LogoutRun, error) {
	run := &LogoutRun{}
	if err := state.GetJSON(keyLogoutRun, run); err != nil {
		return nil, fmt.Errorf("state carries no logout run: %w", err)
	}
	return run, nil
}

// RunFromState exposes the logout run carried by a state to callers
// outside the package, such as the completion endpoint.
func RunFromState(state *flow.State) (*LogoutRun, error) {
	return runFromState(state)
}

// LogoutHandler drives one logout strategy. StartLogout and
// HandleResponse both return either a suspended outcome (a response
// was decided, the request must end with it) or a completed one.
type LogoutHandler interface {
	Type() HandlerType
	StartLogout(ctx context.Context, run *LogoutRun) (flow.Outcome, error)
	HandleResponse(ctx context.Context, relayID string, result *LogoutResult) (flow.Outcome, error)
}

// FinishFunc is the facade callback a strategy invokes once its run is
// complete.
type FinishFunc func(ctx context.Context, run *LogoutRun) (flow.Outcome, error)
