package flow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/zitadel/logging"
)

// StageException is the stage every transported failure is re-saved
// under, so an error occurring several redirects deep still surfaces
// through the one recovery endpoint.
const StageException = "exception"

const (
	keyExceptionMessage = "exception:message"
	keyExceptionStage   = "exception:stage"
)

var (
	// ErrStateMismatch means a continuation id was used at a different
	// stage than it was saved for. This is a caller bug or an attack,
	// never downgraded.
	ErrStateMismatch = errors.New("state stage mismatch")
	// ErrStateNotFound means the continuation is absent, expired or was
	// already consumed.
	ErrStateNotFound = errors.New("state not found")
	// ErrNoState is returned by LoadExceptionState when no exception is
	// pending.
	ErrNoState = errors.New("no state pending")
)

func NewID() string {
	return fmt.Sprintf("_%s", uuid.New())
}

// Suspension is a response that has already been decided: the current
// request ends by executing it, a future, unrelated request supplies
// the continuation.
type Suspension struct {
	RedirectURL string
	Render      func(w http.ResponseWriter, r *http.Request)
}

func (s *Suspension) Execute(w http.ResponseWriter, r *http.Request) {
	if s.Render != nil {
		s.Render(w, r)
		return
	}
	http.Redirect(w, r, s.RedirectURL, http.StatusSeeOther)
}

// Outcome is the result of an operation that may suspend instead of
// returning a value. Callers must treat a suspended outcome as their
// own termination and perform no further work on the request.
type Outcome struct {
	state      *State
	suspension *Suspension
}

func Completed(state *State) Outcome {
	return Outcome{state: state}
}

func Suspend(suspension *Suspension) Outcome {
	return Outcome{suspension: suspension}
}

func (o Outcome) Suspended() bool {
	return o.suspension != nil
}

func (o Outcome) State() *State {
	return o.state
}

func (o Outcome) Suspension() *Suspension {
	return o.suspension
}

const DefaultStateTTL = time.Hour

// Engine is the stage checked save/load layer used by everything else
// to cross a redirect boundary.
type Engine struct {
	store       ContinuationStore
	ttl         time.Duration
	recoveryURL string
	newID       func() string
}

type EngineOption func(e *Engine)

func WithTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

func WithIDFunc(newID func() string) EngineOption {
	return func(e *Engine) {
		e.newID = newID
	}
}

// NewEngine builds an engine saving through store and recovering
// exceptions at recoveryURL.
func NewEngine(store ContinuationStore, recoveryURL string, opts ...EngineOption) *Engine {
	engine := &Engine{
		store:       store,
		ttl:         DefaultStateTTL,
		recoveryURL: recoveryURL,
		newID:       NewID,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

type saveOptions struct {
	retryable bool
}

type SaveOption func(*saveOptions)

// Retryable keeps the saved copy alive across loads, for flows whose
// external step may legitimately replay, such as logout responses that
// can arrive more than once.
func Retryable() SaveOption {
	return func(o *saveOptions) {
		o.retryable = true
	}
}

// Save serializes state under stage and returns an opaque id suitable
// for a URL parameter or relay state field. A state that already
// carries an id is re-saved under it, overwriting the in-flight copy.
func (e *Engine) Save(ctx context.Context, state *State, stage string, opts ...SaveOption) (string, error) {
	options := &saveOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if state.ID == "" {
		state.ID = e.newID()
	}
	if state.CreatedAt.IsZero() {
		state.CreatedAt = time.Now().UTC()
	}
	state.Stage = stage
	state.Retryable = options.retryable

	data, err := state.encode()
	if err != nil {
		return "", err
	}
	if err := e.store.Put(ctx, state.ID, data, e.ttl); err != nil {
		return "", fmt.Errorf("failed to save state %s: %w", state.ID, err)
	}
	return state.ID, nil
}

type loadOptions struct {
	allowMissing bool
	peek         bool
}

type LoadOption func(*loadOptions)

// AllowMissing turns an absent state into a nil result instead of an
// error, for endpoints reachable both freshly and as a resumption.
func AllowMissing() LoadOption {
	return func(o *loadOptions) {
		o.allowMissing = true
	}
}

// Peek loads without consuming, even for single use states.
func Peek() LoadOption {
	return func(o *loadOptions) {
		o.peek = true
	}
}

// Load reads the state back. The supplied stage must match the one the
// state was saved with, a mismatch means a continuation crafted for one
// stage was replayed against another and aborts loudly. By default the
// load is destructive unless the state was saved retryable.
func (e *Engine) Load(ctx context.Context, id, stage string, opts ...LoadOption) (*State, error) {
	options := &loadOptions{}
	for _, opt := range opts {
		opt(options)
	}

	data, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if options.allowMissing {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: %s", ErrStateNotFound, id)
		}
		return nil, fmt.Errorf("failed to load state %s: %w", id, err)
	}

	state, err := decodeState(data)
	if err != nil {
		return nil, err
	}
	if state.Stage != stage {
		return nil, fmt.Errorf("%w: state %s was saved for stage %q, loaded for %q", ErrStateMismatch, id, state.Stage, stage)
	}

	if !state.Retryable && !options.peek {
		if err := e.store.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to consume state %s: %w", id, err)
		}
	}
	return state, nil
}

func (e *Engine) Delete(ctx context.Context, id string) error {
	return e.store.Delete(ctx, id)
}

// ThrowException stashes cause into state, re-saves it under the
// exception stage and yields the redirect to the recovery endpoint.
// The returned outcome is always suspended, callers must immediately
// propagate it as their own termination.
func (e *Engine) ThrowException(ctx context.Context, state *State, cause error) Outcome {
	if state == nil {
		state = NewState()
	}
	state.Set(keyExceptionStage, state.Stage)
	state.Set(keyExceptionMessage, cause.Error())
	// a fresh id, the original continuation stays untouched
	state.ID = ""

	id, err := e.Save(ctx, state, StageException)
	if err != nil {
		// the store is the only channel able to carry the cause; with
		// it gone this is a plain infrastructure failure
		logging.Error(err)
		return Suspend(&Suspension{Render: func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}})
	}
	logging.Log("SSO-ThRw1").Warn(fmt.Sprintf("suspending with exception: %s", cause))
	return Suspend(&Suspension{RedirectURL: e.recoveryURL + "?state=" + url.QueryEscape(id)})
}

// LoadExceptionState is the recovery endpoint's counterpart load.
func (e *Engine) LoadExceptionState(ctx context.Context, id string) (*State, error) {
	if id == "" {
		return nil, ErrNoState
	}
	state, err := e.Load(ctx, id, StageException)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil, ErrNoState
		}
		return nil, err
	}
	return state, nil
}

// ExceptionCause returns the transported failure message of a state
// loaded from the exception stage.
func ExceptionCause(state *State) string {
	return state.GetString(keyExceptionMessage)
}

// ExceptionOrigin returns the stage the failure occurred at.
func ExceptionOrigin(state *State) string {
	return state.GetString(keyExceptionStage)
}
