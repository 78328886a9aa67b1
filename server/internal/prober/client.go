package prober

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/clientpulse/clientpulse/server/internal/config"
)

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.ProbeAuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.Header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs the shared http.Client for probe auth and TLS
// settings. Per-request deadlines come from the request context, so the
// client itself carries no overall timeout.
func buildHTTPClient(cfg config.ProbeConfig) *http.Client {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsCfg
	transport.MaxIdleConnsPerHost = max(cfg.PerClientFanout, 2)
	transport.IdleConnTimeout = 90 * time.Second

	return &http.Client{
		Transport: &authRoundTripper{base: transport, auth: cfg.Auth},
	}
}
