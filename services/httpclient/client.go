// Package httpclient builds the *http.Client used for every outbound call.
package httpclient

import (
	"net"
	"net/http"
	"time"

	"github.com/influxdata/rundeckaction/tlsconfig"
	"github.com/pkg/errors"
)

// New returns an HTTP client configured from c.
// Every request made through it carries the configured User-Agent
// unless the request already sets one.
func New(c Config) (*http.Client, error) {
	tlsConfig, err := tlsconfig.Create(c.SSLCA, c.SSLCert, c.SSLKey, c.InsecureSkipVerify)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create TLS config")
	}
	// copy of initialization for http.DefaultTransport, see https://pkg.go.dev/net/http#DefaultTransport
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       tlsConfig,
	}
	return &http.Client{
		Timeout: time.Duration(c.Timeout),
		Transport: userAgentSetter{
			userAgent:    c.UserAgent,
			roundTripper: transport,
		},
	}, nil
}

type userAgentSetter struct {
	userAgent    string
	roundTripper http.RoundTripper
}

func (u userAgentSetter) RoundTrip(request *http.Request) (*http.Response, error) {
	if u.userAgent == "" || request.Header.Get("User-Agent") != "" {
		return u.roundTripper.RoundTrip(request)
	}
	request = request.Clone(request.Context())
	request.Header.Set("User-Agent", u.userAgent)
	return u.roundTripper.RoundTrip(request)
}

var _ http.RoundTripper = userAgentSetter{}
