package http

import (
	nethttp "net/http"
	"net/url"
	"testing"

	ntlmssp "github.com/Azure/go-ntlmssp"

	"github.com/indextec/unit-uploader/internal/config"
)

func TestProxyFuncWithBypass(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")

	tests := []struct {
		name       string
		noProxy    string
		url        string
		wantBypass bool
	}{
		{"empty list always proxies", "", "https://api.example.com/units", false},
		{"wildcard match", "*.example.com", "https://api.example.com/units", true},
		{"domain matches subdomain", "example.com", "https://upload.example.com/files", true},
		{"domain matches root", "example.com", "https://example.com/files", true},
		{"cidr match", "10.0.0.0/8", "http://10.1.2.3:8080/api", true},
		{"multiple patterns", "*.internal.corp, 192.168.0.0/16", "http://192.168.1.100/hook", true},
		{"non-match", "*.internal.corp,10.0.0.0/8", "https://hooks.example.org/done", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proxyFunc := proxyFuncWithBypass(proxyURL, tt.noProxy)
			req, _ := nethttp.NewRequest("GET", tt.url, nil)
			result, err := proxyFunc(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantBypass && result != nil {
				t.Errorf("expected bypass (nil) for %s, got %v", tt.url, result)
			}
			if !tt.wantBypass {
				if result == nil {
					t.Fatalf("expected proxy for %s, got nil (bypass)", tt.url)
				}
				if result.Host != "proxy.corp:8080" {
					t.Errorf("proxy host = %q, want %q", result.Host, "proxy.corp:8080")
				}
			}
		})
	}
}

func TestBuildProxyURL(t *testing.T) {
	cfg := config.Default()
	cfg.ProxyHost = "proxy.corp"

	u := buildProxyURL(cfg)
	if u.Host != "proxy.corp:8080" {
		t.Errorf("Host = %q, want default port 8080", u.Host)
	}
	if u.User != nil {
		t.Error("credentials must not be embedded without a password")
	}

	cfg.ProxyPort = 3128
	cfg.ProxyUser = "alice"
	cfg.ProxyPassword = "pw"
	u = buildProxyURL(cfg)
	if u.Host != "proxy.corp:3128" {
		t.Errorf("Host = %q, want %q", u.Host, "proxy.corp:3128")
	}
	if u.User.Username() != "alice" {
		t.Errorf("Username = %q, want %q", u.User.Username(), "alice")
	}
}

func TestConfigureHTTPClient_Modes(t *testing.T) {
	cfg := config.Default()
	client, err := ConfigureHTTPClient(cfg)
	if err != nil {
		t.Fatalf("no-proxy: %v", err)
	}
	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok || tr.Proxy != nil {
		t.Error("no-proxy mode should use a plain transport without proxy")
	}

	cfg.ProxyMode = ProxyModeNTLM
	cfg.ProxyHost = "proxy.corp"
	client, err = ConfigureHTTPClient(cfg)
	if err != nil {
		t.Fatalf("ntlm: %v", err)
	}
	if _, ok := client.Transport.(ntlmssp.Negotiator); !ok {
		t.Errorf("ntlm mode transport = %T, want ntlmssp.Negotiator", client.Transport)
	}

	cfg.ProxyMode = "socks"
	if _, err := ConfigureHTTPClient(cfg); err == nil {
		t.Error("expected error for unsupported proxy mode")
	}
}

func TestNeedsProxyPassword(t *testing.T) {
	cfg := config.Default()
	cfg.ProxyUser = "alice"
	if NeedsProxyPassword(cfg) {
		t.Error("no-proxy mode never needs a password")
	}
	cfg.ProxyMode = ProxyModeBasic
	if !NeedsProxyPassword(cfg) {
		t.Error("basic mode with user and no password needs a password")
	}
	cfg.ProxyPassword = "pw"
	if NeedsProxyPassword(cfg) {
		t.Error("password already set")
	}
}

func TestCreateOptimizedClient_NoProxyKeepsHTTP2(t *testing.T) {
	t.Setenv("DISABLE_HTTP2", "")
	client, err := CreateOptimizedClient(config.Default())
	if err != nil {
		t.Fatalf("CreateOptimizedClient() error = %v", err)
	}
	tr := client.Transport.(*nethttp.Transport)
	if !tr.ForceAttemptHTTP2 {
		t.Error("HTTP/2 should stay enabled without a proxy")
	}
	if client.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0", client.Timeout)
	}
}
