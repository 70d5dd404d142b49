package vehicle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDStable(t *testing.T) {
	a := ID("cl", "https://milwaukee.craigslist.org/cto/123.html")
	b := ID("cl", "https://milwaukee.craigslist.org/cto/123.html")
	require.Equal(t, a, b)
	require.Len(t, a, len("cl_")+10)

	c := ID("cl", "https://milwaukee.craigslist.org/cto/124.html")
	require.NotEqual(t, a, c)

	d := ID("cg", "https://milwaukee.craigslist.org/cto/123.html")
	require.NotEqual(t, a, d)
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats([]Listing{
		{Price: 5000},
		{Price: 15000},
		{Price: 10000},
	})
	require.Equal(t, 3, stats.TotalCount)
	require.Equal(t, 5000, stats.MinPrice)
	require.Equal(t, 15000, stats.MaxPrice)
	require.Equal(t, 10000.0, stats.AvgPrice)
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil)
	require.Equal(t, 0, stats.TotalCount)
	require.Equal(t, 0, stats.MinPrice)
	require.Equal(t, 0, stats.MaxPrice)
	require.Equal(t, 0.0, stats.AvgPrice)
}
