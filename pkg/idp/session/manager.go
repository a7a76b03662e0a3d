package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/zitadel/logging"

	"github.com/ssokit/idp/pkg/idp/flow"
)

var (
	// ErrMixedHandlerTypes rejects a login that would mix logout
	// strategies within one IdP session; all associations of a session
	// must share one handler type.
	ErrMixedHandlerTypes = errors.New("associations of one session must share a handler type")
	ErrUnknownHandlerType = errors.New("unknown handler type")
)

type ManagerConfig struct {
	// ReturnURL is where the user agent is sent once logout finished,
	// carrying the initiator and whether any termination failed.
	ReturnURL string `yaml:"ReturnURL"`
}

// Manager is the IdP session facade: the thin coordination surface
// between external callers, the association registry and the logout
// strategies. The strategy lookup table is fixed at construction.
type Manager struct {
	registry  *Registry
	engine    *flow.Engine
	handlers  map[HandlerType]LogoutHandler
	iframe    *IFrameHandler
	returnURL string
}

func NewManager(engine *flow.Engine, registry *Registry, codec MessageCodec, metadata MetadataProvider, conf *ManagerConfig) (*Manager, error) {
	manager := &Manager{
		registry:  registry,
		engine:    engine,
		returnURL: conf.ReturnURL,
	}

	iframe, err := NewIFrameHandler(engine, registry, codec, metadata)
	if err != nil {
		return nil, err
	}
	manager.iframe = iframe
	manager.handlers = map[HandlerType]LogoutHandler{
		HandlerTraditional: NewTraditionalHandler(engine, registry, codec, manager.FinishLogout),
		HandlerIFrame:      iframe,
	}
	return manager, nil
}

// FinishLogin registers a new association once an authentication
// completed.
func (m *Manager) FinishLogin(ctx context.Context, a *Association) error {
	if _, ok := m.handlers[a.HandlerType]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownHandlerType, a.HandlerType)
	}
	for _, existing := range m.registry.ListAll(a.IdPSessionID) {
		if existing.HandlerType != a.HandlerType {
			return fmt.Errorf("%w: session %s uses %q, got %q", ErrMixedHandlerTypes, a.IdPSessionID, existing.HandlerType, a.HandlerType)
		}
	}
	return m.registry.Add(a)
}

// StartLogout selects the strategy implied by the session's
// associations and starts its run. With nothing to log out the run
// finishes immediately.
func (m *Manager) StartLogout(ctx context.Context, idpSessionID, initiatorID string) (flow.Outcome, error) {
	run := &LogoutRun{SessionID: idpSessionID, InitiatorID: initiatorID}

	associations := m.registry.ListAll(idpSessionID)
	if len(associations) == 0 {
		return m.FinishLogout(ctx, run)
	}
	handler, ok := m.handlers[associations[0].HandlerType]
	if !ok {
		return flow.Outcome{}, fmt.Errorf("%w: %q", ErrUnknownHandlerType, associations[0].HandlerType)
	}
	return handler.StartLogout(ctx, run)
}

// HandleLogoutResponse feeds one SP's response back into the owning
// strategy. IFrame completion has no barrier, it is observed here by
// taking a fresh registry count after every report.
func (m *Manager) HandleLogoutResponse(ctx context.Context, handlerType HandlerType, relayID string, result *LogoutResult) (flow.Outcome, error) {
	handler, ok := m.handlers[handlerType]
	if !ok {
		return flow.Outcome{}, fmt.Errorf("%w: %q", ErrUnknownHandlerType, handlerType)
	}

	outcome, err := handler.HandleResponse(ctx, relayID, result)
	if err != nil || outcome.Suspended() {
		return outcome, err
	}

	if handlerType == HandlerIFrame {
		run, err := runFromState(outcome.State())
		if err != nil {
			return flow.Outcome{}, err
		}
		if m.registry.Count(run.SessionID) == 0 {
			return m.FinishLogout(ctx, run)
		}
	}
	return outcome, nil
}

// LogoutProgress reports the iframe run's per association view for the
// polling logout page.
func (m *Manager) LogoutProgress(ctx context.Context, relayID string) (*CompletionView, error) {
	return m.iframe.Progress(ctx, relayID)
}

// TerminateAssociation removes a single association without a protocol
// exchange, e.g. administrative revocation.
func (m *Manager) TerminateAssociation(ctx context.Context, idpSessionID, id string) {
	m.registry.Remove(idpSessionID, id)
}

// FinishLogout ends the run and sends the user agent back to whichever
// party initiated logout, carrying whether any termination failed so
// the UI can report partial success.
func (m *Manager) FinishLogout(ctx context.Context, run *LogoutRun) (flow.Outcome, error) {
	if err := run.Err(); err != nil {
		logging.Log("SSO-FnLg1").Warn(fmt.Sprintf("logout of session %s finished with failures: %s", run.SessionID, err))
	} else {
		logging.Info(fmt.Sprintf("logout of session %s finished", run.SessionID))
	}

	query := url.Values{}
	if run.InitiatorID != "" {
		query.Set("initiator", run.InitiatorID)
	}
	if run.HadFailure {
		query.Set("partial", "true")
	}
	returnURL := m.returnURL
	if encoded := query.Encode(); encoded != "" {
		returnURL += "?" + encoded
	}
	return flow.Suspend(&flow.Suspension{RedirectURL: returnURL}), nil
}
