package urlguard

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// resolves allow-listed marketplace hosts to a public address so the
// tests never touch the network
type fakeResolver struct{}

func (fakeResolver) LookupIP(ctx context.Context, host string) ([]net.IP, error) {
	allowed := []string{"craigslist.org", "cargurus.com", "cars.com", "autotrader.com"}
	for _, d := range allowed {
		if host == d || strings.HasSuffix(host, "."+d) {
			return []net.IP{net.ParseIP("93.184.216.34")}, nil
		}
	}
	if host == "rebind.cargurus.com.evil.internal" {
		return []net.IP{net.ParseIP("10.0.0.5")}, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

func TestAllowedMarketplaces(t *testing.T) {
	g := DefaultMarketplaces(fakeResolver{})
	ctx := context.Background()

	require.True(t, g.Allowed(ctx, "https://milwaukee.craigslist.org/cto/12345.html"))
	require.True(t, g.Allowed(ctx, "https://www.cargurus.com/Cars/listing/12345"))
	require.True(t, g.Allowed(ctx, "https://www.cars.com/vehicledetail/12345/"))
	require.True(t, g.Allowed(ctx, "https://www.autotrader.com/cars-for-sale/12345"))
}

func TestPlaintextOnlyForCraigslist(t *testing.T) {
	g := DefaultMarketplaces(fakeResolver{})
	ctx := context.Background()

	require.True(t, g.Allowed(ctx, "http://milwaukee.craigslist.org/cto/12345.html"))
	require.False(t, g.Allowed(ctx, "http://www.cargurus.com/Cars/listing/12345"))
	require.False(t, g.Allowed(ctx, "http://www.cars.com/vehicledetail/12345/"))
}

func TestRejectsForeignAndMalformed(t *testing.T) {
	g := DefaultMarketplaces(fakeResolver{})
	ctx := context.Background()

	require.False(t, g.Allowed(ctx, "https://evil.com/steal-data"))
	require.False(t, g.Allowed(ctx, "http://localhost:8080/admin"))
	require.False(t, g.Allowed(ctx, "http://192.168.1.1/admin"))
	require.False(t, g.Allowed(ctx, "ftp://craigslist.org/file"))
	require.False(t, g.Allowed(ctx, "craigslist.org/listing"))
	require.False(t, g.Allowed(ctx, "https://"))
	require.False(t, g.Allowed(ctx, "://not a url"))
}

func TestRejectsPrivateResolution(t *testing.T) {
	g := New(
		[]string{"cargurus.com.evil.internal"},
		nil,
		fakeResolver{},
	)
	require.False(t, g.Allowed(context.Background(), "https://rebind.cargurus.com.evil.internal/x"))
}

// mappedResolver answers each host with a fixed address
type mappedResolver map[string]string

func (m mappedResolver) LookupIP(ctx context.Context, host string) ([]net.IP, error) {
	if addr, ok := m[host]; ok {
		return []net.IP{net.ParseIP(addr)}, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

func TestRejectsReservedResolution(t *testing.T) {
	// ranges with no net.IP predicate: IETF reserved and benchmarking
	g := DefaultMarketplaces(mappedResolver{
		"reserved.cars.com":  "240.0.0.1",
		"benchmark.cars.com": "198.18.0.5",
		"public.cars.com":    "93.184.216.34",
	})
	ctx := context.Background()

	require.False(t, g.Allowed(ctx, "https://reserved.cars.com/vehicledetail/1/"))
	require.False(t, g.Allowed(ctx, "https://benchmark.cars.com/vehicledetail/1/"))
	require.True(t, g.Allowed(ctx, "https://public.cars.com/vehicledetail/1/"))
}

func TestRejectsLiteralPrivateIPs(t *testing.T) {
	// a guard with an IP allow-listed must still block reserved ranges
	g := New([]string{"127.0.0.1", "169.254.1.1", "240.0.0.1", "198.18.0.5"}, nil, fakeResolver{})
	ctx := context.Background()
	require.False(t, g.Allowed(ctx, "https://127.0.0.1/admin"))
	require.False(t, g.Allowed(ctx, "https://169.254.1.1/metadata"))
	require.False(t, g.Allowed(ctx, "https://240.0.0.1/x"))
	require.False(t, g.Allowed(ctx, "https://198.18.0.5/x"))
}
