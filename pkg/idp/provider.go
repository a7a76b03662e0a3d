// Package idp wires the continuation engine, the association registry
// and the logout strategies into an HTTP surface. Everything request
// scoped receives its dependencies from the one Provider built at
// startup; there is no ambient session object.
package idp

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/ssokit/idp/pkg/idp/flow"
	"github.com/ssokit/idp/pkg/idp/samlcodec"
	"github.com/ssokit/idp/pkg/idp/session"
)

const (
	healthEndpoint    = "/healthz"
	readinessEndpoint = "/ready"

	DefaultLogoutEndpoint         = "logout"
	DefaultLogoutCallbackEndpoint = "logout/callback"
	DefaultLogoutFramesEndpoint   = "logout/frames"
	DefaultLogoutStatusEndpoint   = "logout/status"
	DefaultLoginEndpoint          = "login"
	DefaultLoginResumeEndpoint    = "login/resume"
	DefaultErrorEndpoint          = "error"
)

// Storage aggregates everything the provider needs from its
// deployment: credential verification, metadata lookups and endpoint
// resolution all stay behind it.
type Storage interface {
	session.CredentialVerifier
	session.MetadataProvider
	samlcodec.EndpointResolver
	Health(context.Context) error
}

type Config struct {
	Issuer             string        `yaml:"Issuer"`
	ReturnURL          string        `yaml:"ReturnURL"`
	TimeFormat         string        `yaml:"TimeFormat"`
	SignatureAlgorithm string        `yaml:"SignatureAlgorithm"`
	StateTTL           time.Duration `yaml:"StateTTL"`

	Endpoints *EndpointConfig `yaml:"Endpoints"`
}

type EndpointConfig struct {
	Logout         *Endpoint `yaml:"Logout"`
	LogoutCallback *Endpoint `yaml:"LogoutCallback"`
	LogoutFrames   *Endpoint `yaml:"LogoutFrames"`
	LogoutStatus   *Endpoint `yaml:"LogoutStatus"`
	Login          *Endpoint `yaml:"Login"`
	LoginResume    *Endpoint `yaml:"LoginResume"`
	Error          *Endpoint `yaml:"Error"`
}

type Endpoints struct {
	LogoutEndpoint         Endpoint
	LogoutCallbackEndpoint Endpoint
	LogoutFramesEndpoint   Endpoint
	LogoutStatusEndpoint   Endpoint
	LoginEndpoint          Endpoint
	LoginResumeEndpoint    Endpoint
	ErrorEndpoint          Endpoint
}

func endpointConfigToEndpoints(conf *EndpointConfig) *Endpoints {
	endpoints := &Endpoints{
		LogoutEndpoint:         NewEndpoint(DefaultLogoutEndpoint),
		LogoutCallbackEndpoint: NewEndpoint(DefaultLogoutCallbackEndpoint),
		LogoutFramesEndpoint:   NewEndpoint(DefaultLogoutFramesEndpoint),
		LogoutStatusEndpoint:   NewEndpoint(DefaultLogoutStatusEndpoint),
		LoginEndpoint:          NewEndpoint(DefaultLoginEndpoint),
		LoginResumeEndpoint:    NewEndpoint(DefaultLoginResumeEndpoint),
		ErrorEndpoint:          NewEndpoint(DefaultErrorEndpoint),
	}

	if conf != nil {
		if conf.Logout != nil {
			endpoints.LogoutEndpoint = *conf.Logout
		}
		if conf.LogoutCallback != nil {
			endpoints.LogoutCallbackEndpoint = *conf.LogoutCallback
		}
		if conf.LogoutFrames != nil {
			endpoints.LogoutFramesEndpoint = *conf.LogoutFrames
		}
		if conf.LogoutStatus != nil {
			endpoints.LogoutStatusEndpoint = *conf.LogoutStatus
		}
		if conf.Login != nil {
			endpoints.LoginEndpoint = *conf.Login
		}
		if conf.LoginResume != nil {
			endpoints.LoginResumeEndpoint = *conf.LoginResume
		}
		if conf.Error != nil {
			endpoints.ErrorEndpoint = *conf.Error
		}
	}
	return endpoints
}

type Provider struct {
	conf         *Config
	storage      Storage
	httpHandler  http.Handler
	interceptors []HttpInterceptor

	store    flow.ContinuationStore
	engine   *flow.Engine
	chain    *flow.Chain
	stages   []flow.FilterStage
	codec    session.MessageCodec
	registry *session.Registry
	sessions *session.Manager

	endpoints *Endpoints
}

type Option func(p *Provider) error

func WithHttpInterceptors(interceptors ...HttpInterceptor) Option {
	return func(p *Provider) error {
		p.interceptors = append(p.interceptors, interceptors...)
		return nil
	}
}

// WithContinuationStore replaces the default in-memory store, e.g.
// with the bbolt backed one for multi-worker deployments.
func WithContinuationStore(store flow.ContinuationStore) Option {
	return func(p *Provider) error {
		p.store = store
		return nil
	}
}

// WithChainStages installs the attribute filter stages run between a
// successful authentication and the association registration.
func WithChainStages(stages ...flow.FilterStage) Option {
	return func(p *Provider) error {
		p.stages = append(p.stages, stages...)
		return nil
	}
}

// WithMessageCodec replaces the built-in redirect binding codec.
func WithMessageCodec(codec session.MessageCodec) Option {
	return func(p *Provider) error {
		p.codec = codec
		return nil
	}
}

func NewProvider(storage Storage, conf *Config, providerOpts ...Option) (*Provider, error) {
	prov := &Provider{
		conf:      conf,
		storage:   storage,
		endpoints: endpointConfigToEndpoints(conf.Endpoints),
	}
	for _, optFunc := range providerOpts {
		if err := optFunc(prov); err != nil {
			return nil, err
		}
	}

	if prov.store == nil {
		prov.store = flow.NewMemoryStore()
	}
	prov.engine = flow.NewEngine(prov.store, prov.endpoints.ErrorEndpoint.Relative(), flow.WithTTL(conf.StateTTL))
	prov.chain = flow.NewChain(prov.engine, prov.stages...)

	if prov.codec == nil {
		codec, err := samlcodec.New(&samlcodec.Config{
			Issuer:             conf.Issuer,
			TimeFormat:         conf.TimeFormat,
			SignatureAlgorithm: conf.SignatureAlgorithm,
		}, storage)
		if err != nil {
			return nil, err
		}
		prov.codec = codec
	}

	prov.registry = session.NewRegistry()
	sessions, err := session.NewManager(prov.engine, prov.registry, prov.codec, storage, &session.ManagerConfig{
		ReturnURL: conf.ReturnURL,
	})
	if err != nil {
		return nil, err
	}
	prov.sessions = sessions

	prov.httpHandler = CreateRouter(prov, prov.interceptors...)
	return prov, nil
}

func (p *Provider) HttpHandler() http.Handler {
	return p.httpHandler
}

func (p *Provider) Storage() Storage {
	return p.storage
}

// Sessions exposes the IdP session facade for non-HTTP callers such as
// administrative tooling.
func (p *Provider) Sessions() *session.Manager {
	return p.sessions
}

func (p *Provider) Health(ctx context.Context) error {
	return p.storage.Health(ctx)
}

func (p *Provider) Probes() []ProbesFn {
	return []ProbesFn{
		ReadyStorage(p.Storage()),
	}
}

type Route struct {
	Endpoint   string
	HandleFunc http.HandlerFunc
}

func (p *Provider) GetRoutes() []*Route {
	return []*Route{
		{p.endpoints.LogoutEndpoint.Relative(), p.logoutHandleFunc},
		{p.endpoints.LogoutCallbackEndpoint.Relative(), p.logoutCallbackHandleFunc},
		{p.endpoints.LogoutFramesEndpoint.Relative(), p.logoutFramesHandleFunc},
		{p.endpoints.LogoutStatusEndpoint.Relative(), p.logoutStatusHandleFunc},
		{p.endpoints.LoginEndpoint.Relative(), p.loginHandleFunc},
		{p.endpoints.LoginResumeEndpoint.Relative(), p.loginResumeHandleFunc},
		{p.endpoints.ErrorEndpoint.Relative(), p.errorHandleFunc},
	}
}

type HttpInterceptor func(http.Handler) http.Handler

func CreateRouter(p *Provider, interceptors ...HttpInterceptor) *mux.Router {
	intercept := buildInterceptor(interceptors...)
	router := mux.NewRouter()
	router.Use(handlers.CORS(
		handlers.AllowCredentials(),
		handlers.AllowedHeaders([]string{"authorization", "content-type"}),
		handlers.AllowedOriginValidator(allowAllOrigins),
	))
	router.HandleFunc(healthEndpoint, healthHandler)
	router.HandleFunc(readinessEndpoint, readyHandler(p.Probes()))

	for _, route := range p.GetRoutes() {
		router.Handle(route.Endpoint, intercept(route.HandleFunc))
	}
	return router
}

var allowAllOrigins = func(_ string) bool {
	return true
}

func buildInterceptor(interceptors ...HttpInterceptor) func(http.HandlerFunc) http.Handler {
	return func(handlerFunc http.HandlerFunc) http.Handler {
		handler := handlerFuncToHandler(handlerFunc)
		for i := len(interceptors) - 1; i >= 0; i-- {
			handler = interceptors[i](handler)
		}
		return handler
	}
}

func handlerFuncToHandler(handlerFunc http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerFunc(w, r)
	})
}
