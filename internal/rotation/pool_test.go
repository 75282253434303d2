package rotation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPool_UserAgentNeverEmpty(t *testing.T) {
	t.Parallel()

	p := NewPool(nil)
	for i := 0; i < 100; i++ {
		require.NotEmpty(t, p.UserAgent())
	}
}

func TestPool_ProxyEmptyPool(t *testing.T) {
	t.Parallel()

	p := NewPool(nil)
	_, ok := p.Proxy()
	require.False(t, ok)
}

func TestPool_ProxySelection(t *testing.T) {
	t.Parallel()

	proxies := []ProxyConfig{
		{Host: "proxy1.internal", Port: 8080, Protocol: "http"},
		{Host: "proxy2.internal", Port: 1080, Protocol: "socks5"},
	}
	p := NewPool(proxies)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		proxy, ok := p.Proxy()
		require.True(t, ok)
		seen[proxy.Addr()] = true
	}
	require.Len(t, seen, 2)
}

func TestProxyConfig_URL(t *testing.T) {
	t.Parallel()

	p := ProxyConfig{Host: "proxy.internal", Port: 8080, Protocol: "http", Username: "u", Password: "p"}
	u := p.URL()
	require.Equal(t, "http", u.Scheme)
	require.Equal(t, "proxy.internal:8080", u.Host)
	require.Equal(t, "u", u.User.Username())
}

func TestPool_FingerprintHeaders(t *testing.T) {
	t.Parallel()

	p := NewPool(nil)
	h := p.FingerprintHeaders()
	require.Equal(t, `"Windows"`, h["Sec-CH-UA-Platform"])
	require.NotEmpty(t, h["Sec-CH-UA"])
	require.Equal(t, h["Sec-CH-Viewport-Width"], h["Viewport-Width"])

	widths := map[string]bool{"1920": true, "1366": true, "1440": true, "1536": true}
	require.True(t, widths[h["Sec-CH-Viewport-Width"]])
}
