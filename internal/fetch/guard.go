package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"
)

// BlockedAddressError is returned when a URL resolves to an address that is
// not publicly routable.
type BlockedAddressError struct {
	Host string
	IP   string
}

func (e *BlockedAddressError) Error() string {
	return fmt.Sprintf("address %s of %s is not allowed", e.IP, e.Host)
}

// PublicIP reports whether ip may be contacted on behalf of a client.
// Loopback, private, link-local, multicast and unspecified addresses are not.
func PublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified())
}

// dialControl runs after DNS resolution, so it also covers redirects and
// hostnames that resolve to internal addresses.
func dialControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !PublicIP(ip) {
		return &BlockedAddressError{Host: address, IP: host}
	}
	return nil
}

// guardedClient returns an HTTP client that refuses to connect to non-public addresses.
func guardedClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   dialControl,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Timeout: timeout, Transport: transport}
}

// CheckHost resolves the host of urlStr and fails if any of its addresses is
// not public. It guards navigations that do not go through guardedClient.
func CheckHost(ctx context.Context, urlStr string) error {
	u, err := url.Parse(urlStr)
	if err != nil || u.Hostname() == "" {
		return &Error{URL: urlStr, Message: "invalid URL", Cause: err}
	}
	host := u.Hostname()

	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return &Error{URL: urlStr, Message: "failed to resolve host", Cause: err}
		}
		for _, a := range addrs {
			ips = append(ips, a.IP)
		}
	}

	for _, ip := range ips {
		if !PublicIP(ip) {
			return &Error{URL: urlStr, Message: "address not allowed", Cause: &BlockedAddressError{Host: host, IP: ip.String()}}
		}
	}
	return nil
}
