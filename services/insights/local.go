package insights

import (
	"fmt"
	"sort"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/vehicle"
)

// LocalAnalysis builds a deterministic verdict from the listings alone.
// It is deliberately modest: price distribution, the cheapest and newest
// candidates, and mechanical red flags a script can spot.
func LocalAnalysis(listings []vehicle.Listing) Analysis {
	stats := vehicle.ComputeStats(listings)

	byPrice := make([]vehicle.Listing, len(listings))
	copy(byPrice, listings)
	sort.SliceStable(byPrice, func(i, j int) bool { return byPrice[i].Price < byPrice[j].Price })

	analysis := Analysis{
		Summary: fmt.Sprintf(
			"%d listings found, priced from $%d to $%d with an average of $%.0f.",
			stats.TotalCount, stats.MinPrice, stats.MaxPrice, stats.AvgPrice),
		PriceAssessment: assessPrices(stats),
		TopPicks:        []TopPick{},
		RedFlags:        []string{},
	}

	for i, l := range byPrice {
		if i >= 3 {
			break
		}
		reason := fmt.Sprintf("priced $%d, below the $%.0f average", l.Price, stats.AvgPrice)
		if float64(l.Price) >= stats.AvgPrice {
			reason = fmt.Sprintf("priced $%d", l.Price)
		}
		analysis.TopPicks = append(analysis.TopPicks, TopPick{ID: l.ID, Reason: reason})
	}

	for _, l := range listings {
		if l.Mileage != nil && *l.Mileage > 150000 {
			analysis.RedFlags = append(analysis.RedFlags,
				fmt.Sprintf("%s has high mileage (%d miles)", l.Title, *l.Mileage))
		}
		if stats.AvgPrice > 0 && float64(l.Price) < stats.AvgPrice*0.5 {
			analysis.RedFlags = append(analysis.RedFlags,
				fmt.Sprintf("%s is priced far below market, verify title and condition", l.Title))
		}
	}
	return analysis
}

func assessPrices(stats vehicle.Stats) string {
	switch {
	case stats.TotalCount == 0:
		return "no priced listings to assess"
	case stats.MaxPrice-stats.MinPrice > stats.MinPrice*2:
		return "prices vary widely, compare condition and mileage closely"
	default:
		return "prices sit in a narrow band, condition should drive the choice"
	}
}
