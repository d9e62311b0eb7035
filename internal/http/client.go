// Package http builds the HTTP clients shared by the listing, upload and
// webhook wire clients and by the storage SDKs.
package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/indextec/unit-uploader/internal/config"
	"github.com/indextec/unit-uploader/internal/constants"
)

// CreateOptimizedClient returns a proxy-aware client tuned for streaming file bodies.
//
// HTTP/2 is enabled unless a proxy is active or DISABLE_HTTP2=true is set;
// proxies often break multiplexed streams mid-transfer. FORCE_HTTP2=true
// keeps HTTP/2 on even behind a proxy.
//
// If cfg is nil, proxy settings come from HTTP_PROXY, HTTPS_PROXY and NO_PROXY.
func CreateOptimizedClient(cfg *config.Config) (*nethttp.Client, error) {
	var client *nethttp.Client
	if cfg != nil {
		c, err := ConfigureHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
		client = c
	} else {
		tr := newBaseTransport()
		tr.Proxy = nethttp.ProxyFromEnvironment
		client = &nethttp.Client{Transport: tr}
	}

	// NTLM wraps the transport; leave it alone
	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok {
		return client, nil
	}

	tr.IdleConnTimeout = constants.HTTPIdleConnTimeout
	tr.DisableCompression = true // uploaded files are usually compressed already
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" || (proxyActive(cfg) && os.Getenv("FORCE_HTTP2") != "true") {
		disableHTTP2(tr)
	}

	client.Timeout = 0
	return client, nil
}

func disableHTTP2(tr *nethttp.Transport) {
	tr.ForceAttemptHTTP2 = false
	tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
}

func proxyActive(cfg *config.Config) bool {
	mode := ProxyModeSystem
	if cfg != nil {
		mode = cfg.ProxyMode
	}
	switch mode {
	case ProxyModeNone, "":
		return false
	case ProxyModeSystem:
		return envProxySet()
	default:
		return cfg.ProxyHost != ""
	}
}

func envProxySet() bool {
	for _, key := range []string{"HTTP_PROXY", "HTTPS_PROXY", "http_proxy", "https_proxy"} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}
