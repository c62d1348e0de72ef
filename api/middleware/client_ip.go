package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPResolver picks the address rate limits are keyed on. The TCP peer
// is used unless it is a trusted proxy, in which case X-Forwarded-For is read
// right to left and the first hop that is not a trusted proxy wins.
type ClientIPResolver struct {
	trusted []netip.Prefix
}

// NewClientIPResolver parses proxy entries given as IPs or CIDRs. Invalid
// entries are skipped and reported in the returned error.
func NewClientIPResolver(proxies []string) (*ClientIPResolver, error) {
	res := &ClientIPResolver{}
	var bad []string
	for _, raw := range proxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		prefix, err := ParseProxy(raw)
		if err != nil {
			bad = append(bad, raw)
			continue
		}
		res.trusted = append(res.trusted, prefix)
	}
	if len(bad) > 0 {
		return res, fmt.Errorf("invalid trusted proxies: %s", strings.Join(bad, ", "))
	}
	return res, nil
}

// ParseProxy accepts "10.0.0.1" or "10.0.0.0/8".
func ParseProxy(raw string) (netip.Prefix, error) {
	if strings.Contains(raw, "/") {
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (c *ClientIPResolver) isTrusted(addr netip.Addr) bool {
	if c == nil {
		return false
	}
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the caller address as a string, or "" when the peer
// address cannot be parsed.
func (c *ClientIPResolver) ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	peer, ok := peerAddr(r.RemoteAddr)
	if !ok {
		return ""
	}
	if !c.isTrusted(peer) {
		return peer.String()
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			// a malformed hop was written by something untrusted
			break
		}
		hop = hop.Unmap()
		if !c.isTrusted(hop) {
			return hop.String()
		}
	}
	return peer.String()
}

func peerAddr(remote string) (netip.Addr, bool) {
	host := strings.TrimSpace(remote)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
