package session

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/zitadel/logging"

	"github.com/ssokit/idp/pkg/idp/flow"
)

// one hidden frame per association, contacted concurrently by the
// browser rather than one redirect after another
const iframeTemplate = `<!DOCTYPE html>
<html>
<head><title>Logout</title></head>
<body>
<p>Logging out of the following services:</p>
<ul>
{{range .Frames}}	<li>{{.Name}}</li>
{{end}}</ul>
{{range .Frames}}<iframe style="display:none" src="{{.URL}}"></iframe>
{{end}}<noscript><p>Close your browser to complete the logout.</p></noscript>
</body>
</html>`

type iframeFrame struct {
	Name string
	URL  string
}

type iframePage struct {
	Frames []iframeFrame
}

// AssociationProgress is one row of the completion view the logout
// page polls while the frames report in.
type AssociationProgress struct {
	AssociationID string `json:"association_id"`
	DisplayName   string `json:"display_name"`
	Status        string `json:"status"`
}

type CompletionView struct {
	Done         bool                  `json:"done"`
	HadFailure   bool                  `json:"had_failure"`
	Associations []AssociationProgress `json:"associations"`
}

// IFrameHandler contacts every association of a session concurrently
// through hidden frames on a single rendered page. There is exactly one
// suspend action, the page render; each frame reports back
// independently and out of order. Completion has no barrier: it is
// observed lazily through the registry count, and a frame that never
// reports leaves its state to expire with the store's TTL.
type IFrameHandler struct {
	engine   *flow.Engine
	registry *Registry
	codec    MessageCodec
	metadata MetadataProvider
	template *template.Template
}

func NewIFrameHandler(engine *flow.Engine, registry *Registry, codec MessageCodec, metadata MetadataProvider) (*IFrameHandler, error) {
	pageTemplate, err := template.New("iframe-logout").Parse(iframeTemplate)
	if err != nil {
		return nil, err
	}
	return &IFrameHandler{
		engine:   engine,
		registry: registry,
		codec:    codec,
		metadata: metadata,
		template: pageTemplate,
	}, nil
}

func (h *IFrameHandler) Type() HandlerType {
	return HandlerIFrame
}

func (h *IFrameHandler) StartLogout(ctx context.Context, run *LogoutRun) (flow.Outcome, error) {
	associations := h.registry.ListAll(run.SessionID)

	run.Status = map[string]string{}
	run.DisplayNames = map[string]string{}
	for _, a := range associations {
		run.Status[a.ID] = StatusOnHold
		run.DisplayNames[a.ID] = h.displayName(ctx, a)
	}

	state := flow.NewState()
	if err := runToState(state, run); err != nil {
		return flow.Outcome{}, err
	}
	// one shared record for the whole fan-out; every frame loads it by
	// the same relay id, so it must survive repeated loads
	relayID, err := h.engine.Save(ctx, state, StageLogoutIFrame, flow.Retryable())
	if err != nil {
		return flow.Outcome{}, err
	}

	frames := make([]iframeFrame, 0, len(associations))
	for _, a := range associations {
		message, err := h.codec.BuildLogoutRequest(ctx, a, relayID)
		if err != nil {
			logging.Log("SSO-IfSt1").Warn(fmt.Sprintf("failed to build logout request for %s: %s", a.SPEntityID, err))
			run.fail(a.ID, err.Error())
			run.Status[a.ID] = StatusDone
			h.registry.Remove(run.SessionID, a.ID)
			continue
		}
		frames = append(frames, iframeFrame{Name: run.DisplayNames[a.ID], URL: message.URL})
	}

	// fold build failures into the shared record before rendering
	if err := runToState(state, run); err != nil {
		return flow.Outcome{}, err
	}
	if _, err := h.engine.Save(ctx, state, StageLogoutIFrame, flow.Retryable()); err != nil {
		return flow.Outcome{}, err
	}

	page := iframePage{Frames: frames}
	return flow.Suspend(&flow.Suspension{Render: func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := h.template.Execute(w, page); err != nil {
			logging.Error(err)
		}
	}}), nil
}

// HandleResponse is invoked by each frame independently. It terminates
// only the answering association and folds the report into the shared
// record; nothing further is driven per association, completion is
// observed by the facade through the registry count.
func (h *IFrameHandler) HandleResponse(ctx context.Context, relayID string, result *LogoutResult) (flow.Outcome, error) {
	state, err := h.engine.Load(ctx, relayID, StageLogoutIFrame)
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
		return flow.Outcome{}, fmt.Errorf("logout response identifies no association")
	}

	if run.Status[id] == StatusDone {
		// duplicate frame report, converges to the same final set
		return flow.Completed(state), nil
	}

	if !result.Success {
		detail := result.ErrorDetail
		if detail == "" {
			detail = "logout failed"
		}
		logging.Log("SSO-IfRs1").Warn(fmt.Sprintf("association %s reported logout failure: %s", id, detail))
		run.fail(id, detail)
	}
	run.Status[id] = StatusDone
	h.registry.Remove(run.SessionID, id)

	if err := runToState(state, run); err != nil {
		return flow.Outcome{}, err
	}
	if _, err := h.engine.Save(ctx, state, StageLogoutIFrame, flow.Retryable()); err != nil {
		return flow.Outcome{}, err
	}
	return flow.Completed(state), nil
}

// Progress reports the per association view for the polling page. The
// load peeks, polling must not consume the run.
func (h *IFrameHandler) Progress(ctx context.Context, relayID string) (*CompletionView, error) {
	state, err := h.engine.Load(ctx, relayID, StageLogoutIFrame, flow.Peek())
	if err != nil {
		return nil, err
	}
	run, err := runFromState(state)
	if err != nil {
		return nil, err
	}

	view := &CompletionView{
		Done:       h.registry.Count(run.SessionID) == 0,
		HadFailure: run.HadFailure,
	}
	for id, status := range run.Status {
		view.Associations = append(view.Associations, AssociationProgress{
			AssociationID: id,
			DisplayName:   run.DisplayNames[id],
			Status:        status,
		})
	}
	return view, nil
}

func (h *IFrameHandler) displayName(ctx context.Context, a *Association) string {
	if h.metadata != nil {
		if resolved, err := h.metadata.ResolveDisplayName(ctx, a.SPEntityID); err == nil && resolved != "" {
			return resolved
		}
	}
	if a.SPDisplayName != "" {
		return a.SPDisplayName
	}
	return a.SPEntityID
}
