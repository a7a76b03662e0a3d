package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/zitadel/logging"

	"github.com/ssokit/idp/pkg/idp/flow"
)

// TraditionalHandler logs associations out one redirect at a time.
// Only one SP can be in flight for a single browser, so the run
// suspends before every hop and resumes when that SP's response comes
// back on the return channel.
type TraditionalHandler struct {
	engine   *flow.Engine
	registry *Registry
	codec    MessageCodec
	finish   FinishFunc
}

func NewTraditionalHandler(engine *flow.Engine, registry *Registry, codec MessageCodec, finish FinishFunc) *TraditionalHandler {
	return &TraditionalHandler{
		engine:   engine,
		registry: registry,
		codec:    codec,
		finish:   finish,
	}
}

func (h *TraditionalHandler) Type() HandlerType {
	return HandlerTraditional
}

func (h *TraditionalHandler) StartLogout(ctx context.Context, run *LogoutRun) (flow.Outcome, error) {
	for _, a := range h.registry.ListAll(run.SessionID) {
		run.Remaining = append(run.Remaining, a.ID)
	}
	return h.logoutNext(ctx, run)
}

// logoutNext pops one association and suspends towards its logout
// endpoint, or finishes the run when none remain. The returned outcome
// is the caller's own termination.
func (h *TraditionalHandler) logoutNext(ctx context.Context, run *LogoutRun) (flow.Outcome, error) {
	for len(run.Remaining) > 0 {
		// most recently associated SP first
		id := run.Remaining[len(run.Remaining)-1]
		run.Remaining = run.Remaining[:len(run.Remaining)-1]

		association, ok := h.registry.Get(run.SessionID, id)
		if !ok {
			// already terminated elsewhere, e.g. administratively
			continue
		}

		run.AwaitingID = id
		state := flow.NewState()
		if err := runToState(state, run); err != nil {
			return flow.Outcome{}, err
		}
		// retryable: the SP's response may be resubmitted by the browser
		relayID, err := h.engine.Save(ctx, state, StageLogoutTraditional, flow.Retryable())
		if err != nil {
			return flow.Outcome{}, err
		}

		message, err := h.codec.BuildLogoutRequest(ctx, association, relayID)
		if err != nil {
			// a single broken SP must never block logout of the others:
			// treat a synchronous build failure like a negative response
			logging.Log("SSO-LgNx1").Warn(fmt.Sprintf("failed to build logout request for %s: %s", association.SPEntityID, err))
			run.fail(id, err.Error())
			h.registry.Remove(run.SessionID, id)
			_ = h.engine.Delete(ctx, relayID)
			continue
		}
		return flow.Suspend(&flow.Suspension{RedirectURL: message.URL}), nil
	}

	run.AwaitingID = ""
	return h.finish(ctx, run)
}

// HandleResponse resumes the run with the relayed state, terminates the
// answering association and drives the next hop. A reported error sets
// hadFailure but never aborts the run.
func (h *TraditionalHandler) HandleResponse(ctx context.Context, relayID string, result *LogoutResult) (flow.Outcome, error) {
	state, err := h.engine.Load(ctx, relayID, StageLogoutTraditional)
	if err != nil {
		if errors.Is(err, flow.ErrStateNotFound) {
			return flow.Outcome{}, fmt.Errorf("%w: %s", ErrLostRelayState, relayID)
		}
		return flow.Outcome{}, err
	}
	run, err := runFromState(state)
	if err != nil {
		return flow.Outcome{}, err
	}

	id := result.AssociationID
	if id == "" && result.SPEntityID != "" {
		if association, ok := h.registry.FindByEntityID(run.SessionID, result.SPEntityID); ok {
			id = association.ID
		}
	}
	if id == "" {
		id = run.AwaitingID
	}

	if !result.Success {
		detail := result.ErrorDetail
		if detail == "" {
			detail = "logout failed"
		}
		logging.Log("SSO-LgRs1").Warn(fmt.Sprintf("association %s reported logout failure: %s", id, detail))
		run.fail(id, detail)
	}
	h.registry.Remove(run.SessionID, id)

	return h.logoutNext(ctx, run)
}
