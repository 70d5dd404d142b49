package details

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/vehicle"
)

func parsePage(t *testing.T, rawURL, page string) (*url.URL, *goquery.Document) {
	t.Helper()
	pageURL, err := url.Parse(rawURL)
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return pageURL, doc
}

func TestExtractCraigslist(t *testing.T) {
	page := `<html><body>
		<div class="gallery">
			<div class="swipe">
				<img src="https://images.craigslist.org/00101_abc_600x450.jpg">
			</div>
		</div>
		<div id="thumbs">
			<a href="https://images.craigslist.org/00101_abc_50x50c.jpg"></a>
			<a href="https://images.craigslist.org/00202_def_50x50c.jpg"></a>
		</div>
		<section id="postingbody">
			QR Code Link to This Post
			Clean title, one owner, runs great.
		</section>
		<p class="attrgroup"><span>condition: excellent</span><span>odometer: 45000</span></p>
	</body></html>`

	pageURL, doc := parsePage(t, "https://milwaukee.craigslist.org/cto/d/honda-civic/7700000001.html", page)
	detail := Extract(pageURL, doc)

	require.Equal(t, vehicle.SourceCraigslist, detail.Source)
	require.Equal(t, []string{
		"https://images.craigslist.org/00101_abc_600x450.jpg",
		"https://images.craigslist.org/00202_def_600x450.jpg",
	}, detail.Images)
	require.Equal(t, "Clean title, one owner, runs great.", detail.Description)
	require.Equal(t, "excellent", detail.Attributes["condition"])
	require.Equal(t, "45000", detail.Attributes["odometer"])
}

func TestExtractCarGurusPrefersLargestSrcset(t *testing.T) {
	page := `<html><body>
		<div class="photoGallery_x1">
			<img srcset="https://static.cargurus.com/images/1-small.jpg 480w, https://static.cargurus.com/images/1-large.jpg 1024w">
			<img src="https://static.cargurus.com/images/2.jpg">
		</div>
		<div class="sellerComment_y2">Well maintained, new tires.</div>
		<dl><dt>Transmission</dt><dd>Automatic</dd><dt>Drivetrain</dt><dd>FWD</dd></dl>
	</body></html>`

	pageURL, doc := parsePage(t, "https://www.cargurus.com/Cars/link/12345", page)
	detail := Extract(pageURL, doc)

	require.Equal(t, vehicle.SourceCarGurus, detail.Source)
	require.Equal(t, []string{
		"https://static.cargurus.com/images/1-large.jpg",
		"https://static.cargurus.com/images/2.jpg",
	}, detail.Images)
	require.Equal(t, "Well maintained, new tires.", detail.Description)
	require.Equal(t, "Automatic", detail.Attributes["Transmission"])
}

func TestExtractCarsCom(t *testing.T) {
	page := `<html><body>
		<div class="media-gallery">
			<img src="/images/vehicle-1.jpg">
			<img data-src="https://platform.cars.com/images/vehicle-2.jpg">
		</div>
		<div class="sellers-notes">Certified pre-owned with warranty.</div>
		<dl class="fancy-description-list">
			<dt>Exterior color</dt><dd>Silver</dd>
			<dt>Fuel type</dt><dd>Gasoline</dd>
		</dl>
	</body></html>`

	pageURL, doc := parsePage(t, "https://www.cars.com/vehicledetail/abc123/", page)
	detail := Extract(pageURL, doc)

	require.Equal(t, vehicle.SourceCarsCom, detail.Source)
	require.Equal(t, []string{
		"https://www.cars.com/images/vehicle-1.jpg",
		"https://platform.cars.com/images/vehicle-2.jpg",
	}, detail.Images)
	require.Equal(t, "Certified pre-owned with warranty.", detail.Description)
	require.Equal(t, "Silver", detail.Attributes["Exterior color"])
}

func TestExtractAutoTraderWidensImages(t *testing.T) {
	page := `<html><body>
		<div data-cmp="mediaGallery">
			<img src="https://images.autotrader.com/scaler/atcdn/1.jpg?w=240">
		</div>
		<div data-cmp="sellerComments">One owner, dealer serviced.</div>
		<ul data-cmp="listColumns"><li>Mileage: 32,000</li><li>Engine: 4-Cylinder</li></ul>
	</body></html>`

	pageURL, doc := parsePage(t, "https://www.autotrader.com/cars-for-sale/vehicle/700000001", page)
	detail := Extract(pageURL, doc)

	require.Equal(t, vehicle.SourceAutoTrader, detail.Source)
	require.Equal(t, []string{"https://images.autotrader.com/scaler/atcdn/1.jpg?w=1024"}, detail.Images)
	require.Equal(t, "One owner, dealer serviced.", detail.Description)
	require.Equal(t, "32,000", detail.Attributes["Mileage"])
}

func TestExtractCapsAndDeduplicatesImages(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><body><div class="gallery"><div class="swipe">`)
	for i := 0; i < 30; i++ {
		b.WriteString(`<img src="https://images.craigslist.org/img` + string(rune('a'+i%26)) + string(rune('0'+i/26)) + `_600x450.jpg">`)
	}
	// duplicate of the first
	b.WriteString(`<img src="https://images.craigslist.org/imga0_600x450.jpg">`)
	b.WriteString(`</div></div></body></html>`)

	pageURL, doc := parsePage(t, "https://milwaukee.craigslist.org/cto/d/1.html", b.String())
	detail := Extract(pageURL, doc)
	require.Len(t, detail.Images, maxImages)
}

func TestExtractUnknownHostYieldsEmptyDetail(t *testing.T) {
	pageURL, doc := parsePage(t, "https://example.com/x", `<html><body><img src="/a.jpg"></body></html>`)
	detail := Extract(pageURL, doc)
	require.Empty(t, detail.Source)
	require.Empty(t, detail.Images)
}
