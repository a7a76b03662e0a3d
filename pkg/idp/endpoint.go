package idp

import "strings"

// Endpoint is a route path, optionally pinned to an absolute URL for
// deployments behind rewriting proxies.
type Endpoint struct {
	path string
	url  string
}

func NewEndpoint(path string) Endpoint {
	return Endpoint{path: path}
}

func NewEndpointWithURL(path, url string) Endpoint {
	return Endpoint{path: path, url: url}
}

func (e Endpoint) Relative() string {
	return relativeEndpoint(e.path)
}

func (e Endpoint) Absolute(host string) string {
	if e.url != "" {
		return e.url
	}
	return absoluteEndpoint(host, e.path)
}

func relativeEndpoint(endpoint string) string {
	return "/" + strings.TrimPrefix(endpoint, "/")
}

func absoluteEndpoint(host, endpoint string) string {
	return strings.TrimSuffix(host, "/") + relativeEndpoint(endpoint)
}
