package urlguard

import (
	"context"
	"net"
	"net/url"
	"strings"
)

// Guard validates outbound listing URLs before any deep fetch touches
// them. Listings come from scraped marketplace pages, so a crafted href
// must never be able to point the fetcher at internal infrastructure.
type Guard struct {
	// domains reachable over https (subdomains included)
	allowedDomains []string
	// domains additionally reachable over plain http
	plaintextDomains []string
	resolver         Resolver
}

// Resolver is the DNS dependency, injectable so tests run offline.
type Resolver interface {
	LookupIP(ctx context.Context, host string) ([]net.IP, error)
}

type netResolver struct{}

func (netResolver) LookupIP(ctx context.Context, host string) ([]net.IP, error) {
	return net.DefaultResolver.LookupIP(ctx, "ip", host)
}

// New builds a guard over the given domains. A nil resolver means the
// system resolver. Craigslist still serves listing pages over plain http,
// every other marketplace is https-only.
func New(allowed []string, plaintext []string, resolver Resolver) Guard {
	if resolver == nil {
		resolver = netResolver{}
	}
	return Guard{
		allowedDomains:   allowed,
		plaintextDomains: plaintext,
		resolver:         resolver,
	}
}

// DefaultMarketplaces returns a guard configured for the four supported
// marketplaces.
func DefaultMarketplaces(resolver Resolver) Guard {
	return New(
		[]string{"craigslist.org", "cargurus.com", "cars.com", "autotrader.com"},
		[]string{"craigslist.org"},
		resolver,
	)
}

func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// reservedNets are ranges net.IP has no predicate for: 240.0.0.0/4 is
// IETF reserved, 198.18.0.0/15 is the benchmarking range.
var reservedNets = func() []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range []string{"240.0.0.0/4", "198.18.0.0/15"} {
		_, parsed, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		nets = append(nets, parsed)
	}
	return nets
}()

func ipBlocked(ip net.IP) bool {
	if ip.IsPrivate() ||
		ip.IsLoopback() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() {
		return true
	}
	for _, reserved := range reservedNets {
		if reserved.Contains(ip) {
			return true
		}
	}
	return false
}

// Allowed reports whether the raw URL may be fetched: well-formed, on an
// allow-listed marketplace domain, https (except the plaintext set), and
// not resolving to a private, loopback or otherwise reserved address.
func (g Guard) Allowed(ctx context.Context, raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		ok := false
		for _, d := range g.plaintextDomains {
			if hostMatches(parsed.Hostname(), d) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	default:
		return false
	}

	host := parsed.Hostname()
	if host == "" {
		return false
	}

	domainOk := false
	for _, d := range g.allowedDomains {
		if hostMatches(host, d) {
			domainOk = true
			break
		}
	}
	if !domainOk {
		return false
	}

	// a raw IP in the allow-listed domains should be impossible, but a
	// literal address is still checked directly instead of resolved
	if ip := net.ParseIP(host); ip != nil {
		return !ipBlocked(ip)
	}

	addrs, err := g.resolver.LookupIP(ctx, host)
	if err != nil || len(addrs) == 0 {
		return false
	}
	for _, addr := range addrs {
		if ipBlocked(addr) {
			return false
		}
	}
	return true
}
