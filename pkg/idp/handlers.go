package idp

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zitadel/logging"

	httphelper "github.com/ssokit/idp/pkg/http"
	"github.com/ssokit/idp/pkg/idp/checker"
	"github.com/ssokit/idp/pkg/idp/flow"
	"github.com/ssokit/idp/pkg/idp/session"
)

// payload keys an authentication run carries between the login request
// and the association registration after the chain completed
const (
	keyLoginUserID      = "login:user_id"
	keyLoginSession     = "login:session_id"
	keyLoginSPEntityID  = "login:sp_entity_id"
	keyLoginHandlerType = "login:handler_type"
	keyLoginDisplayName = "login:sp_display_name"
)

func (p *Provider) failLocal(w http.ResponseWriter, r *http.Request, err error) {
	logging.Error(err)
	p.engine.ThrowException(r.Context(), nil, err).Suspension().Execute(w, r)
}

// logoutHandleFunc starts the logout of a whole IdP session. The
// strategy is implied by the session's associations; the response is
// whatever the selected strategy's first suspend action is.
func (p *Provider) logoutHandleFunc(w http.ResponseWriter, r *http.Request) {
	sessionID := ""
	checkerInstance := checker.Checker{}
	checkerInstance.WithLogicStep(
		func() error { return r.ParseForm() },
		func() { http.Error(w, fmt.Errorf("failed to parse form").Error(), http.StatusInternalServerError) },
	)
	checkerInstance.WithValueStep(
		func() { sessionID = r.Form.Get("session") },
	)
	checkerInstance.WithValueNotEmptyCheck("session",
		func() string { return sessionID },
		func() { http.Error(w, fmt.Errorf("no session provided").Error(), http.StatusBadRequest) },
	)
	if checkerInstance.CheckFailed() {
		return
	}

	outcome, err := p.sessions.StartLogout(r.Context(), sessionID, r.Form.Get("initiator"))
	if err != nil {
		p.failLocal(w, r, err)
		return
	}
	outcome.Suspension().Execute(w, r)
}

// logoutCallbackHandleFunc receives the sequential strategy's logout
// responses. Each response resumes the run, either redirecting to the
// next service provider or finishing.
func (p *Provider) logoutCallbackHandleFunc(w http.ResponseWriter, r *http.Request) {
	p.handleLogoutResponse(w, r, session.HandlerTraditional)
}

// logoutFramesHandleFunc receives the per frame reports of the
// concurrent strategy. A report that does not yet complete the run
// answers the frame with 204.
func (p *Provider) logoutFramesHandleFunc(w http.ResponseWriter, r *http.Request) {
	p.handleLogoutResponse(w, r, session.HandlerIFrame)
}

func (p *Provider) handleLogoutResponse(w http.ResponseWriter, r *http.Request, handlerType session.HandlerType) {
	result, err := p.codec.ParseLogoutResponse(r.Context(), r)
	if err != nil {
		logging.Log("SSO-LgCb1").Warn(fmt.Sprintf("failed to parse logout response: %s", err))
		http.Error(w, "invalid logout response", http.StatusBadRequest)
		return
	}

	outcome, err := p.sessions.HandleLogoutResponse(r.Context(), handlerType, result.RelayState, result)
	if err != nil {
		// ErrLostRelayState included: an expired or replayed relay id is
		// surfaced through the recovery endpoint like any other failure
		p.failLocal(w, r, err)
		return
	}
	if outcome.Suspended() {
		outcome.Suspension().Execute(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// logoutStatusHandleFunc serves the polling view of a concurrent
// logout run.
func (p *Provider) logoutStatusHandleFunc(w http.ResponseWriter, r *http.Request) {
	relayID := ""
	checkerInstance := checker.Checker{}
	checkerInstance.WithLogicStep(
		func() error { return r.ParseForm() },
		func() { http.Error(w, fmt.Errorf("failed to parse form").Error(), http.StatusInternalServerError) },
	)
	checkerInstance.WithValueStep(
		func() { relayID = r.Form.Get("state") },
	)
	checkerInstance.WithValueNotEmptyCheck("state",
		func() string { return relayID },
		func() { http.Error(w, fmt.Errorf("no state provided").Error(), http.StatusBadRequest) },
	)
	if checkerInstance.CheckFailed() {
		return
	}

	view, err := p.sessions.LogoutProgress(r.Context(), relayID)
	if err != nil {
		if errors.Is(err, flow.ErrStateNotFound) {
			http.Error(w, "unknown logout run", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	httphelper.MarshalJSON(w, view)
}

// loginHandleFunc authenticates the principal and runs the filter
// chain. A suspending stage ends the request here; the chain resumes
// at the resume endpoint.
func (p *Provider) loginHandleFunc(w http.ResponseWriter, r *http.Request) {
	var username, secret, spEntityID, handlerType string
	checkerInstance := checker.Checker{}
	checkerInstance.WithLogicStep(
		func() error { return r.ParseForm() },
		func() { http.Error(w, fmt.Errorf("failed to parse form").Error(), http.StatusInternalServerError) },
	)
	checkerInstance.WithValueStep(
		func() {
			username = r.Form.Get("username")
			secret = r.Form.Get("password")
			spEntityID = r.Form.Get("sp_entity_id")
			handlerType = r.Form.Get("handler_type")
		},
	)
	checkerInstance.WithValueNotEmptyCheck("username",
		func() string { return username },
		func() { http.Error(w, fmt.Errorf("no username provided").Error(), http.StatusBadRequest) },
	)
	checkerInstance.WithValueNotEmptyCheck("sp_entity_id",
		func() string { return spEntityID },
		func() { http.Error(w, fmt.Errorf("no sp_entity_id provided").Error(), http.StatusBadRequest) },
	)
	checkerInstance.WithValueStep(
		func() {
			if handlerType == "" {
				handlerType = string(session.HandlerTraditional)
			}
		},
	)
	if checkerInstance.CheckFailed() {
		return
	}

	userID, err := p.storage.Verify(r.Context(), username, secret)
	if err != nil {
		logging.Log("SSO-LgIn1").Warn(fmt.Sprintf("authentication of %s failed: %s", username, err))
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	state := flow.NewState()
	state.Set(keyLoginUserID, userID)
	state.Set(keyLoginSession, r.Form.Get("session"))
	state.Set(keyLoginSPEntityID, spEntityID)
	state.Set(keyLoginHandlerType, handlerType)
	state.Set(keyLoginDisplayName, r.Form.Get("sp_display_name"))

	outcome, err := p.chain.Process(r.Context(), state)
	if err != nil {
		p.failLocal(w, r, err)
		return
	}
	if outcome.Suspended() {
		outcome.Suspension().Execute(w, r)
		return
	}
	p.finishLogin(w, r, outcome.State())
}

// loginResumeHandleFunc continues a filter chain that suspended for an
// external interaction. The id must be the one the suspending stage
// embedded into its redirect.
func (p *Provider) loginResumeHandleFunc(w http.ResponseWriter, r *http.Request) {
	resumeID := ""
	checkerInstance := checker.Checker{}
	checkerInstance.WithLogicStep(
		func() error { return r.ParseForm() },
		func() { http.Error(w, fmt.Errorf("failed to parse form").Error(), http.StatusInternalServerError) },
	)
	checkerInstance.WithValueStep(
		func() { resumeID = r.Form.Get("id") },
	)
	checkerInstance.WithValueNotEmptyCheck("id",
		func() string { return resumeID },
		func() { http.Error(w, fmt.Errorf("no id provided").Error(), http.StatusBadRequest) },
	)
	if checkerInstance.CheckFailed() {
		return
	}

	outcome, err := p.chain.Resume(r.Context(), resumeID)
	if err != nil {
		if errors.Is(err, flow.ErrStateNotFound) || errors.Is(err, flow.ErrStateMismatch) {
			p.failLocal(w, r, err)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if outcome.Suspended() {
		outcome.Suspension().Execute(w, r)
		return
	}
	p.finishLogin(w, r, outcome.State())
}

type loginResponse struct {
	AssociationID string `json:"association_id"`
	IdPSessionID  string `json:"idp_session_id"`
	UserID        string `json:"user_id"`
}

// finishLogin turns a completed chain run into a registered
// association.
func (p *Provider) finishLogin(w http.ResponseWriter, r *http.Request, state *flow.State) {
	idpSessionID := state.GetString(keyLoginSession)
	if idpSessionID == "" {
		idpSessionID = flow.NewID()
	}
	association := &session.Association{
		ID:            session.NewAssociationID(state.GetString(keyLoginSPEntityID), state.ID),
		IdPSessionID:  idpSessionID,
		HandlerType:   session.HandlerType(state.GetString(keyLoginHandlerType)),
		SPEntityID:    state.GetString(keyLoginSPEntityID),
		SPDisplayName: state.GetString(keyLoginDisplayName),
		CreatedAt:     time.Now().UTC(),
	}
	if err := p.sessions.FinishLogin(r.Context(), association); err != nil {
		if errors.Is(err, session.ErrMixedHandlerTypes) || errors.Is(err, session.ErrUnknownHandlerType) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	httphelper.MarshalJSON(w, &loginResponse{
		AssociationID: association.ID,
		IdPSessionID:  association.IdPSessionID,
		UserID:        state.GetString(keyLoginUserID),
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// errorHandleFunc is the recovery endpoint every thrown exception
// redirects to. Loading consumes the record, a refresh after the first
// view reports nothing pending.
func (p *Provider) errorHandleFunc(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, fmt.Errorf("failed to parse form").Error(), http.StatusInternalServerError)
		return
	}

	state, err := p.engine.LoadExceptionState(r.Context(), r.Form.Get("state"))
	if err != nil {
		if errors.Is(err, flow.ErrNoState) {
			httphelper.MarshalJSONWithStatus(w, &errorResponse{Error: "no error pending"}, http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	httphelper.MarshalJSONWithStatus(w, &errorResponse{
		Error: flow.ExceptionCause(state),
		Stage: flow.ExceptionOrigin(state),
	}, http.StatusInternalServerError)
}
