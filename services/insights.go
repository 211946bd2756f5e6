package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"homes-scraper/models"
	"homes-scraper/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarises the sessions and the records they produced. Records
// are expected to be cleaned already.
func (s *InsightService) Generate(sessions []*models.SessionReport, records []*models.ListingRecord) *models.InsightReport {
	report := &models.InsightReport{
		Sessions:       sessions,
		ByPropertyType: make(map[string]int),
		ByRegion:       make(map[string]int),
	}
	for _, sess := range sessions {
		report.TotalTarget += sess.Target
	}

	if len(records) == 0 {
		return report
	}
	report.TotalRecords = len(records)

	var (
		priced     int
		totalPrice float64
		areas      int
		totalArea  int
		fields     int
	)
	for _, r := range records {
		fields += r.KnownFields()
		if !models.IsUnknown(r.PropertyType) {
			report.ByPropertyType[r.PropertyType]++
		}
		if !models.IsUnknown(r.Region) {
			report.ByRegion[r.Region]++
		}
		if a := parseArea(r.LivingArea); a > 0 {
			areas++
			totalArea += a
		}

		price := parsePrice(r.Price)
		if price <= 0 {
			continue
		}
		if priced == 0 || price < report.MinPrice {
			report.MinPrice = price
		}
		if priced == 0 || price > report.MaxPrice {
			report.MaxPrice = price
			report.MostExpensive = r
		}
		priced++
		totalPrice += price
	}

	if priced > 0 {
		report.AveragePrice = round2(totalPrice / float64(priced))
		report.MinPrice = round2(report.MinPrice)
		report.MaxPrice = round2(report.MaxPrice)
	}
	if areas > 0 {
		report.AverageArea = round2(float64(totalArea) / float64(areas))
	}
	report.AverageFields = round2(float64(fields) / float64(len(records)))

	s.logger.Debug("[insights] %d records, %d priced, %d with area", len(records), priced, areas)
	return report
}

// Print writes the report to w as a coloured terminal summary.
func (s *InsightService) Print(w io.Writer, r *models.InsightReport) {
	sep := strings.Repeat("═", 58)
	thin := strings.Repeat("─", 58)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 LISTING SCRAPE INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Sessions\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Sessions) == 0 {
		fmt.Fprintf(w, "  No sessions run\n")
	}
	for _, sess := range r.Sessions {
		colour := "32"
		if sess.Achieved < sess.Target {
			colour = "33"
		}
		if sess.Fatal != "" {
			colour = "31"
		}
		fmt.Fprintf(w, "  %-24s \033[1;%sm%4d/%-4d\033[0m (%5.1f%%)  %s\n",
			truncate(sess.Name, 24), colour, sess.Achieved, sess.Target, sess.SuccessRate(), sess.StopReason)
	}
	fmt.Fprintf(w, "  Total                    \033[1m%4d/%-4d\033[0m\n", r.TotalRecords, r.TotalTarget)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.AveragePrice > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m$%s\033[0m\n", money(r.AveragePrice))
		fmt.Fprintf(w, "  Minimum price : \033[1;32m$%s\033[0m\n", money(r.MinPrice))
		fmt.Fprintf(w, "  Maximum price : \033[1;32m$%s\033[0m\n", money(r.MaxPrice))
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	if r.AverageArea > 0 {
		fmt.Fprintf(w, "  Average area  : %.0f sqft\n", r.AverageArea)
	}
	fmt.Fprintf(w, "  Fields filled : %.1f per record\n", r.AverageFields)
	fmt.Fprintln(w)

	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.MostExpensive.Address, 54))
		fmt.Fprintf(w, "  Type  : %s, %s bd, %s ba\n", r.MostExpensive.PropertyType, r.MostExpensive.Beds, r.MostExpensive.Baths)
		fmt.Fprintf(w, "  Price : \033[1;31m%s\033[0m\n", r.MostExpensive.Price)
		fmt.Fprintln(w)
	}

	printCounts(w, "Listings by Property Type", r.ByPropertyType, thin)
	printCounts(w, "Listings by Region", r.ByRegion, thin)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func printCounts(w io.Writer, title string, counts map[string]int, thin string) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(counts) == 0 {
		fmt.Fprintf(w, "  No data\n\n")
		return
	}
	type kv struct {
		key   string
		count int
	}
	var rows []kv
	for k, c := range counts {
		rows = append(rows, kv{k, c})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].key < rows[j].key
	})
	for _, row := range rows {
		bar := strings.Repeat("█", min(row.count, 40))
		fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(row.key, 28), bar, row.count)
	}
	fmt.Fprintln(w)
}

// money renders 450000 as "450,000".
func money(f float64) string {
	s := fmt.Sprintf("%.0f", f)
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	return string(out)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
