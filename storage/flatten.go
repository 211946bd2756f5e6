package storage

import (
	"strings"
	"time"

	"homes-scraper/models"
)

var utilityKeys = []string{"electric", "sewer", "water", "utilities"}
var parkingKeys = []string{"total_spaces", "garage_spaces", "parking_features", "uncovered_spaces"}

// Columns returns the flattened CSV header. Nested records become
// <field>_<key> columns and lists are joined with "; ".
func Columns() []string {
	cols := []string{
		"url", "scraped_at", "price", "beds", "baths", "living_area", "lot_size",
		"address", "property_type", "year_built", "price_per_sqft", "monthly_payment",
		"region", "image_url", "walk_score", "bike_score", "transit_score",
	}
	for _, s := range []string{"elementary_school", "middle_school", "high_school"} {
		cols = append(cols, s+"_name", s+"_distance")
	}
	for _, r := range []string{"flood_risk", "fire_risk", "wind_risk", "air_risk", "heat_risk"} {
		cols = append(cols, r+"_level", r+"_score")
	}
	cols = append(cols, "interior_features", "other_rooms", "appliances")
	for _, k := range utilityKeys {
		cols = append(cols, "utilities_"+k)
	}
	for _, k := range parkingKeys {
		cols = append(cols, "parking_"+k)
	}
	return append(cols, "price_history", "nearby_cities")
}

// Flatten renders r as one CSV row matching Columns.
func Flatten(r *models.ListingRecord) []string {
	row := []string{
		r.URL, r.ScrapedAt.Format(time.RFC3339), r.Price, r.Beds, r.Baths,
		r.LivingArea, r.LotSize, r.Address, r.PropertyType, r.YearBuilt,
		r.PricePerSqft, r.MonthlyPayment, r.Region, r.ImageURL,
		r.WalkScore, r.BikeScore, r.TransitScore,
	}
	for _, s := range []models.School{r.ElementarySchool, r.MiddleSchool, r.HighSchool} {
		row = append(row, s.Name, s.Distance)
	}
	for _, rk := range []models.Risk{r.FloodRisk, r.FireRisk, r.WindRisk, r.AirRisk, r.HeatRisk} {
		row = append(row, rk.Level, rk.Score)
	}
	row = append(row, joinList(r.InteriorFeatures), joinList(r.OtherRooms), joinList(r.Appliances))
	row = append(row, mapValues(r.Utilities, utilityKeys)...)
	row = append(row, mapValues(r.Parking, parkingKeys)...)

	events := make([]string, 0, len(r.PriceHistory))
	for _, e := range r.PriceHistory {
		events = append(events, e.Date+" "+e.Event+" "+e.Price)
	}
	return append(row, joinList(events), joinList(r.NearbyCities))
}

func joinList(items []string) string {
	if len(items) == 0 {
		return models.Unknown
	}
	return strings.Join(items, "; ")
}

func mapValues(m map[string]string, keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		if v, ok := m[k]; ok && v != "" {
			out[i] = v
		} else {
			out[i] = models.Unknown
		}
	}
	return out
}
