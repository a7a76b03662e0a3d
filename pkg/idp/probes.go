package idp

import (
	"context"
	"net/http"

	httphelper "github.com/ssokit/idp/pkg/http"
)

type ProbesFn func(context.Context) error

func healthHandler(w http.ResponseWriter, r *http.Request) {
	ok(w)
}

func readyHandler(probes []ProbesFn) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, probe := range probes {
			if err := probe(r.Context()); err != nil {
				http.Error(w, "not ready", http.StatusInternalServerError)
				return
			}
		}
		ok(w)
	}
}

func ReadyStorage(s Storage) ProbesFn {
	return func(ctx context.Context) error {
		return s.Health(ctx)
	}
}

func ok(w http.ResponseWriter) {
	httphelper.MarshalJSON(w, status{"ok"})
}

type status struct {
	Status string `json:"status"`
}
