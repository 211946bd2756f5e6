package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"homes-scraper/models"
	"homes-scraper/utils"
)

var (
	// priceRegexp captures the first numeric amount in a price string
	priceRegexp = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)
	// leadingIntRegexp captures the integer part of "3", "1,850", "2.5"
	leadingIntRegexp = regexp.MustCompile(`^\s*([\d,]+)`)
)

// Cleaner tidies records collected across sessions before reporting.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean drops records without a URL, removes URL duplicates (the same home
// can show up under two searches) and normalises whitespace in every text
// field. Blank fields become the Unknown sentinel. Input records are not
// modified.
func (c *Cleaner) Clean(records []*models.ListingRecord) []*models.ListingRecord {
	seen := make(map[string]struct{})
	result := make([]*models.ListingRecord, 0, len(records))

	for _, r := range records {
		if r == nil {
			continue
		}
		url := strings.TrimSpace(r.URL)
		if url == "" {
			c.logger.Warn("[cleaner] Dropping record with empty URL")
			continue
		}
		if _, dup := seen[url]; dup {
			c.logger.Debug("[cleaner] Duplicate URL skipped: %s", url)
			continue
		}
		seen[url] = struct{}{}

		clean := *r
		clean.URL = url
		for _, f := range []*string{
			&clean.Price, &clean.Beds, &clean.Baths, &clean.LivingArea, &clean.LotSize,
			&clean.Address, &clean.PropertyType, &clean.YearBuilt, &clean.PricePerSqft,
			&clean.MonthlyPayment, &clean.Region, &clean.ImageURL,
			&clean.WalkScore, &clean.BikeScore, &clean.TransitScore,
		} {
			*f = orUnknown(normaliseText(*f))
		}
		result = append(result, &clean)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d records (dropped %d)",
		len(records), len(result), len(records)-len(result))
	return result
}

// parsePrice extracts a dollar amount.
// Examples:
//
//	"$450,000"  → 450000
//	"$2,845/mo" → 2845
//	"N/A"       → 0
func parsePrice(raw string) float64 {
	if models.IsUnknown(raw) {
		return 0
	}
	match := priceRegexp.FindString(raw)
	if match == "" {
		return 0
	}
	val, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0
	}
	return val
}

// parseArea reads the integer square footage from "1,850".
func parseArea(raw string) int {
	m := leadingIntRegexp.FindStringSubmatch(raw)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return n
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

func orUnknown(s string) string {
	if s == "" {
		return models.Unknown
	}
	return s
}
