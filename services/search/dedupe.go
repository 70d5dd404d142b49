package search

import (
	"github.com/antzucaro/matchr"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/textutil"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/vehicle"
)

const (
	// duplicateTitleSimilarity is how close two normalized titles must be
	// before listings on different marketplaces are treated as the same
	// physical vehicle.
	duplicateTitleSimilarity = 0.93
	// duplicatePriceTolerance allows relisting drift of a few percent.
	duplicatePriceTolerance = 0.03
)

// DedupeListings collapses listings that appear on more than one
// marketplace. Input is assumed price-sorted; the first (cheapest)
// occurrence wins. Listings from the same source are never merged since a
// dealer genuinely listing two similar cars looks identical by title.
func DedupeListings(listings []vehicle.Listing) []vehicle.Listing {
	kept := make([]vehicle.Listing, 0, len(listings))
	titles := make([]string, 0, len(listings))

	for _, candidate := range listings {
		title := textutil.NormalizeTitle(candidate.Title)
		duplicate := false
		for i, existing := range kept {
			if existing.Source == candidate.Source {
				continue
			}
			if !pricesClose(existing.Price, candidate.Price) {
				continue
			}
			if matchr.JaroWinkler(titles[i], title, false) >= duplicateTitleSimilarity {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, candidate)
		titles = append(titles, title)
	}
	return kept
}

func pricesClose(a, b int) bool {
	hi := a
	if b > hi {
		hi = b
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) <= duplicatePriceTolerance*float64(hi)
}
