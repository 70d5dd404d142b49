package details

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/htmlutil"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/vehicle"
)

const maxImages = 20

// Detail is everything worth showing from one listing's own page.
type Detail struct {
	URL         string            `json:"url"`
	Source      string            `json:"source"`
	Description string            `json:"description,omitempty"`
	Images      []string          `json:"images"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// imageSet keeps insertion order, drops duplicates and caps the total.
type imageSet struct {
	seen map[string]bool
	urls []string
}

func newImageSet() *imageSet {
	return &imageSet{seen: map[string]bool{}}
}

func (s *imageSet) add(link string) {
	if link == "" || s.seen[link] || len(s.urls) >= maxImages {
		return
	}
	s.seen[link] = true
	s.urls = append(s.urls, link)
}

func (s *imageSet) list() []string {
	if s.urls == nil {
		return []string{}
	}
	return s.urls
}

// Extract pulls the image gallery, seller description and spec attributes
// out of a listing page. The markup differs per marketplace, so dispatch
// is on the page's host.
func Extract(pageURL *url.URL, doc *goquery.Document) Detail {
	host := pageURL.Hostname()
	detail := Detail{URL: pageURL.String(), Images: []string{}}

	switch {
	case strings.HasSuffix(host, "craigslist.org"):
		detail.Source = vehicle.SourceCraigslist
		extractCraigslist(pageURL, doc, &detail)
	case strings.HasSuffix(host, "cargurus.com"):
		detail.Source = vehicle.SourceCarGurus
		extractCarGurus(pageURL, doc, &detail)
	case strings.HasSuffix(host, "cars.com"):
		detail.Source = vehicle.SourceCarsCom
		extractCarsCom(pageURL, doc, &detail)
	case strings.HasSuffix(host, "autotrader.com"):
		detail.Source = vehicle.SourceAutoTrader
		extractAutoTrader(pageURL, doc, &detail)
	}
	return detail
}

// craigslist thumbnails carry a _WxH(c) size suffix; swapping it for
// 600x450 yields the full-size variant the gallery uses.
var craigslistSizeSuffix = regexp.MustCompile(`_\d+x\d+c?\.`)

func fullSizeCraigslist(link string) string {
	return craigslistSizeSuffix.ReplaceAllString(link, "_600x450.")
}

func extractCraigslist(pageURL *url.URL, doc *goquery.Document, detail *Detail) {
	images := newImageSet()
	doc.Find(".gallery img, .swipe img, .slide img").Each(func(_ int, img *goquery.Selection) {
		src := htmlutil.AttrAny(img, "src", "data-src")
		images.add(fullSizeCraigslist(htmlutil.ResolveHref(pageURL, src)))
	})
	doc.Find("#thumbs a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		images.add(fullSizeCraigslist(htmlutil.ResolveHref(pageURL, href)))
	})
	detail.Images = images.list()

	if body := doc.Find("#postingbody"); body.Length() > 0 {
		text := htmlutil.CleanText(body)
		text = strings.TrimSpace(strings.TrimPrefix(text, "QR Code Link to This Post"))
		detail.Description = text
	}

	attrs := map[string]string{}
	doc.Find("p.attrgroup span").Each(func(_ int, span *goquery.Selection) {
		addAttribute(attrs, htmlutil.CleanText(span))
	})
	if len(attrs) > 0 {
		detail.Attributes = attrs
	}
}

func extractCarGurus(pageURL *url.URL, doc *goquery.Document, detail *Detail) {
	images := newImageSet()
	doc.Find(`[class*="photoGallery"] img, [class*="gallery"] img`).Each(func(_ int, img *goquery.Selection) {
		if srcset, ok := img.Attr("srcset"); ok {
			if urls := htmlutil.SrcsetURLs(srcset); len(urls) > 0 {
				// srcset entries ascend in size, last is the largest
				images.add(htmlutil.ResolveHref(pageURL, urls[len(urls)-1]))
				return
			}
		}
		images.add(htmlutil.ResolveHref(pageURL, htmlutil.AttrAny(img, "src", "data-src")))
	})
	detail.Images = images.list()

	if comment := doc.Find(`[class*="sellerComment"]`); comment.Length() > 0 {
		detail.Description = htmlutil.CleanText(comment)
	}

	if attrs := definitionPairs(doc.Find("dl")); len(attrs) > 0 {
		detail.Attributes = attrs
	}
}

// definitionPairs zips dt/dd children of definition lists into a map.
func definitionPairs(lists *goquery.Selection) map[string]string {
	attrs := map[string]string{}
	lists.Each(func(_ int, dl *goquery.Selection) {
		terms := dl.Find("dt")
		values := dl.Find("dd")
		terms.Each(func(i int, dt *goquery.Selection) {
			if i >= values.Length() {
				return
			}
			key := htmlutil.CleanText(dt)
			value := htmlutil.CleanText(values.Eq(i))
			if key != "" && value != "" {
				attrs[key] = value
			}
		})
	})
	return attrs
}

func extractCarsCom(pageURL *url.URL, doc *goquery.Document, detail *Detail) {
	images := newImageSet()
	doc.Find("gallery-slides img, .media-gallery img, .image-carousel img").Each(func(_ int, img *goquery.Selection) {
		images.add(htmlutil.ResolveHref(pageURL, htmlutil.AttrAny(img, "src", "data-src")))
	})
	detail.Images = images.list()

	if notes := doc.Find(".sellers-notes"); notes.Length() > 0 {
		detail.Description = htmlutil.CleanText(notes)
	}

	if attrs := definitionPairs(doc.Find("dl.fancy-description-list")); len(attrs) > 0 {
		detail.Attributes = attrs
	}
}

func extractAutoTrader(pageURL *url.URL, doc *goquery.Document, detail *Detail) {
	images := newImageSet()
	doc.Find(`img[src*="atcdn"], [data-cmp="mediaGallery"] img`).Each(func(_ int, img *goquery.Selection) {
		src := htmlutil.ResolveHref(pageURL, htmlutil.AttrAny(img, "src", "data-src"))
		images.add(widenAutoTrader(src))
	})
	detail.Images = images.list()

	if comments := doc.Find(`[data-cmp="sellerComments"]`); comments.Length() > 0 {
		detail.Description = htmlutil.CleanText(comments)
	}

	attrs := map[string]string{}
	doc.Find(`[data-cmp="listColumns"] li`).Each(func(_ int, li *goquery.Selection) {
		addAttribute(attrs, htmlutil.CleanText(li))
	})
	if len(attrs) > 0 {
		detail.Attributes = attrs
	}
}

// widenAutoTrader bumps the CDN's width parameter so the gallery gets a
// usable resolution instead of the thumbnail the page embeds.
func widenAutoTrader(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return link
	}
	query := parsed.Query()
	if query.Get("width") != "" {
		query.Set("width", "1024")
	}
	if query.Get("w") != "" {
		query.Set("w", "1024")
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// addAttribute splits "condition: excellent" style lines into a pair;
// lines without a separator are kept under their own text.
func addAttribute(attrs map[string]string, text string) {
	if text == "" {
		return
	}
	if key, value, found := strings.Cut(text, ":"); found {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key != "" && value != "" {
			attrs[key] = value
		}
		return
	}
	attrs[text] = ""
}
