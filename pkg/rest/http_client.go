package rest

import (
	"context"
	"net/http"
)

// Transport performs a single HTTP exchange. It returns an error only when no
// response was received; any status code is a successful exchange.
type Transport interface {
	Do(ctx context.Context, config HTTPConfig) (*HTTPResponse, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, config HTTPConfig) (*HTTPResponse, error)

// Do calls f(ctx, config).
func (f TransportFunc) Do(ctx context.Context, config HTTPConfig) (*HTTPResponse, error) {
	return f(ctx, config)
}

// HTTPConfig represents the configuration for HTTP requests.
type HTTPConfig struct {
	URL         string
	Method      string
	Headers     map[string]string
	Body        []byte
	Credentials string
	AuthType    string
	AuthConfig  map[string]string
}

// HTTPResponse is the raw outcome of an exchange.
type HTTPResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Credentials policies.
const (
	CredentialsOmit       = "omit"
	CredentialsSameOrigin = "same-origin"
	CredentialsInclude    = "include"
)
