// Package util provides shared helpers for the parental-controls client
// tooling, currently HTTP client construction with optional proxy support.
package util

import (
	"context"
	"net"
	"net/http"
	"net/url"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"

	"github.com/moonctl/nintendoparental/internal/config"
)

// NewHTTPClient builds the HTTP client used for all outbound requests,
// applying the proxy configuration when one is set. SOCKS5, HTTP and HTTPS
// proxies are supported. No timeout is set here; callers pass a context per
// request.
func NewHTTPClient(cfg *config.Config) *http.Client {
	httpClient := &http.Client{}
	if cfg == nil || cfg.ProxyURL == "" {
		return httpClient
	}

	proxyURL, errParse := url.Parse(cfg.ProxyURL)
	if errParse != nil {
		log.Errorf("invalid proxy-url %q: %v", cfg.ProxyURL, errParse)
		return httpClient
	}

	var transport *http.Transport
	switch proxyURL.Scheme {
	case "socks5":
		var proxyAuth *proxy.Auth
		if proxyURL.User != nil {
			password, _ := proxyURL.User.Password()
			proxyAuth = &proxy.Auth{User: proxyURL.User.Username(), Password: password}
		}
		dialer, errSOCKS5 := proxy.SOCKS5("tcp", proxyURL.Host, proxyAuth, proxy.Direct)
		if errSOCKS5 != nil {
			log.Errorf("create SOCKS5 dialer failed: %v", errSOCKS5)
			return httpClient
		}
		transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}
	case "http", "https":
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	default:
		log.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
	}

	if transport != nil {
		httpClient.Transport = transport
	}
	return httpClient
}
