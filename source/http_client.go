package source

import (
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	UserAgent       = "gau-ingest-pipeline"
	DialTimeout     = 30 * time.Second
	IdleConnTimeout = 90 * time.Second
	KeepAlive       = 30 * time.Second
	MaxIdleConns    = 64
)

// NewHTTPClient builds the client shared by the api and file readers.
// Failed requests are not retried.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetHeader("User-Agent", UserAgent)
	c.SetTimeout(timeout)
	c.SetTransport(createTransport())
	c.SetRetryCount(0)
	return c
}

func createTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   DialTimeout,
		KeepAlive: KeepAlive,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          MaxIdleConns,
		IdleConnTimeout:       IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConnsPerHost:   MaxIdleConns,
	}
}
