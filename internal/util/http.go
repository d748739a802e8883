package util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"syscall"
	"time"
)

const (
	DefaultTimeout = 12 * time.Second
	// MaxBodyBytes caps downloaded pages and images.
	MaxBodyBytes = 20 << 20
	maxRedirects = 5
)

// UserAgent is sent with every outbound request.
var UserAgent = "Mozilla/5.0 (compatible; DealerQRCode/1.0)"

// ErrForbiddenAddress is returned when a fetch would reach a loopback,
// private, link-local or unspecified address.
var ErrForbiddenAddress = errors.New("destination address not allowed")

var allowPrivate atomic.Bool

// SetAllowPrivateNetworks toggles the private-address guard for GetBytes.
// It returns the previous setting.
func SetAllowPrivateNetworks(allow bool) bool {
	return allowPrivate.Swap(allow)
}

var (
	guardedTransport = newTransport(true)
	openTransport    = newTransport(false)
)

func newTransport(guarded bool) *http.Transport {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	t := http.DefaultTransport.(*http.Transport).Clone()
	if guarded {
		dialer.Control = rejectPrivate
		// a proxy would hide the real destination from the dial check
		t.Proxy = nil
	}
	t.DialContext = dialer.DialContext
	return t
}

// rejectPrivate runs after name resolution, on every connection attempt,
// so redirects and DNS names pointing inward are caught too.
func rejectPrivate(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || IsPrivateIP(ip) {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, host)
	}
	return nil
}

// IsPrivateIP reports whether ip is not a public unicast address.
func IsPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified()
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("redirect to unsupported scheme %q", req.URL.Scheme)
	}
	return nil
}

// GetBytes fetches url and returns its body. Non-2xx responses are errors.
// Unless private networks are allowed, connections to internal addresses
// fail with ErrForbiddenAddress.
func GetBytes(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := guardedTransport
	if allowPrivate.Load() {
		transport = openTransport
	}
	client := http.Client{
		Timeout:       timeout,
		Transport:     transport,
		CheckRedirect: checkRedirect,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", req.URL.Scheme)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
}
