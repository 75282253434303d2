// Package rotation supplies per-request client identities: user
// agents, optional proxies, and spoofed client-hint headers.
package rotation

import (
	"fmt"
	"math/rand"
	"net/url"
)

// userAgents is the fixed pool rotated across fetch attempts.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36 Edg/121.0.0.0",
}

// viewports is the fixed set of plausible screen sizes used for
// client-hint spoofing.
var viewports = [][2]int{
	{1920, 1080},
	{1366, 768},
	{1440, 900},
	{1536, 864},
}

// ProxyConfig describes one outbound proxy.
type ProxyConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Protocol string // http, https, socks5
}

// URL renders the proxy as a *url.URL suitable for http.Transport.
func (p ProxyConfig) URL() *url.URL {
	u := &url.URL{
		Scheme: p.Protocol,
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
	}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// Addr returns host:port for metrics labeling.
func (p ProxyConfig) Addr() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// Pool hands out identities with uniform randomness. It has no state
// beyond its fixed membership.
type Pool struct {
	proxies []ProxyConfig
}

// NewPool creates a Pool. The proxy list may be empty, in which case
// Proxy always reports no proxy.
func NewPool(proxies []ProxyConfig) *Pool {
	return &Pool{proxies: proxies}
}

// UserAgent returns a random member of the fixed user-agent pool.
func (p *Pool) UserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// Proxy returns a random proxy and true, or false when the pool is
// empty.
func (p *Pool) Proxy() (ProxyConfig, bool) {
	if len(p.proxies) == 0 {
		return ProxyConfig{}, false
	}
	return p.proxies[rand.Intn(len(p.proxies))], true
}

// FingerprintHeaders synthesizes a plausible client-hint header set.
// Platform and brand strings are held constant; the viewport is chosen
// from a small fixed set.
func (p *Pool) FingerprintHeaders() map[string]string {
	vp := viewports[rand.Intn(len(viewports))]
	return map[string]string{
		"Sec-CH-UA":              `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
		"Sec-CH-UA-Mobile":       "?0",
		"Sec-CH-UA-Platform":     `"Windows"`,
		"Sec-CH-Viewport-Width":  fmt.Sprintf("%d", vp[0]),
		"Sec-CH-Viewport-Height": fmt.Sprintf("%d", vp[1]),
		"Viewport-Width":         fmt.Sprintf("%d", vp[0]),
	}
}
