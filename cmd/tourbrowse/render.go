package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	tourbook "github.com/eugener/tourbook/internal"
	"github.com/eugener/tourbook/internal/circuitbreaker"
	"github.com/eugener/tourbook/internal/state"
	"github.com/eugener/tourbook/internal/tourcache"
)

func source(fromCache bool) string {
	if fromCache {
		return "cache"
	}
	return "catalog"
}

func renderTour(w io.Writer, t *tourbook.Tour, fromCache bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", t.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", t.Title)
	fmt.Fprintf(tw, "Location:\t%s\n", t.Location)
	fmt.Fprintf(tw, "Category:\t%s\n", t.Category)
	fmt.Fprintf(tw, "Price:\t%s\n", formatPrice(t.Price))
	fmt.Fprintf(tw, "Duration:\t%d days\n", t.Duration)
	fmt.Fprintf(tw, "Rating:\t%.1f\n", t.Rating)
	fmt.Fprintf(tw, "Slots:\t%d\n", t.AvailableSlots)
	if t.Description != "" {
		fmt.Fprintf(tw, "About:\t%s\n", t.Description)
	}
	fmt.Fprintf(tw, "Source:\t%s\n", source(fromCache))
	tw.Flush()
}

func renderList(w io.Writer, snap state.Snapshot) {
	if len(snap.Tours) == 0 {
		fmt.Fprintln(w, "No tours match the current filters.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tLOCATION\tCATEGORY\tPRICE\tDAYS\tRATING")
		for _, t := range snap.Tours {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%.1f\n",
				t.ID, truncate(t.Title, 40), t.Location, t.Category, formatPrice(t.Price), t.Duration, t.Rating)
		}
		tw.Flush()
	}
	p := snap.Pagination
	fmt.Fprintf(w, "page %d of %d, %d tours (%s)\n", p.Page, max(p.TotalPages, 1), p.Total, source(snap.FromCache))
}

func renderFilters(w io.Writer, f tourbook.Filters) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Location:\t%s\n", orAny(f.Location))
	fmt.Fprintf(tw, "Category:\t%s\n", orAny(f.Category))
	price := "any"
	if f.PriceRange != nil {
		price = priceBound(f.PriceRange[0], "0") + " - " + priceBound(f.PriceRange[1], "any")
	}
	fmt.Fprintf(tw, "Price:\t%s\n", price)
	tw.Flush()
}

func renderStats(w io.Writer, st tourcache.Stats, breakers []circuitbreaker.HostState) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Cached tours:\t%d\n", st.Total)
	fmt.Fprintf(tw, "Expired:\t%d\n", st.Expired)
	fmt.Fprintf(tw, "TTL:\t%s\n", tourcache.TTL)
	for _, b := range breakers {
		fmt.Fprintf(tw, "Breaker %s:\t%s\n", b.Host, b.State)
	}
	tw.Flush()
}

func orAny(s string) string {
	if s == "" {
		return "any"
	}
	return s
}

// priceBound prints an open end as open.
func priceBound(v float64, open string) string {
	if math.IsInf(v, 0) || math.Abs(v) == math.MaxFloat64 {
		return open
	}
	return formatPrice(v)
}

// formatPrice groups thousands: 2500000 -> 2,500,000.
func formatPrice(p float64) string {
	s := strconv.FormatFloat(math.Round(p), 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
