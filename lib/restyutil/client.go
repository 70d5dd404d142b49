package restyutil

import (
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	browser "github.com/EDDYCJY/fake-useragent"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/trace"
)

// marketplaces reject Go's default client identifier, so every scraping
// client carries a real browser user-agent
const fallbackUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// NewScrapingClient builds the shared resty client used by all source
// adapters: browser user-agent, cloudflare bypass transport and a bounded
// per-request timeout.
func NewScrapingClient(timeout time.Duration, tracer trace.Tracer, output InstrumentOutput) *resty.Client {
	client := resty.New()
	client.SetTimeout(timeout)

	ua := browser.Chrome()
	if ua == "" {
		ua = fallbackUserAgent
	}
	client.SetHeader("User-Agent", ua)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	InstrumentClient(client, tracer, output)
	return client
}
