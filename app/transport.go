package app

import (
	"net/http"
)

// NewTransport is the RoundTripper used for outbound feed fetches; injected
// so tests can stub the network.
func NewTransport() http.RoundTripper {
	return http.DefaultTransport
}
