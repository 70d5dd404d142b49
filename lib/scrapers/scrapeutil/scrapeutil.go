package scrapeutil

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// FetchDocument issues one GET with query parameters and parses the body
// into a goquery document. Non-200 responses are errors so adapters treat
// blocks and outages the same way as network failures.
func FetchDocument(ctx context.Context, client *resty.Client, link string, params url.Values) (*goquery.Document, error) {
	req := client.R().SetContext(ctx)
	if params != nil {
		req.SetQueryParamsFromValues(params)
	}
	res, err := req.Get(link)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", res.StatusCode(), link)
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
}
