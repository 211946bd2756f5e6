package models

import "time"

// Unknown is the sentinel stored in every field the extractors could not fill.
const Unknown = "N/A"

// School is a nearby school with its distance as shown on the detail page.
type School struct {
	Name     string `json:"name"`
	Distance string `json:"distance"`
}

// Risk is an environmental risk rating (flood, fire, wind, air, heat).
type Risk struct {
	Level string `json:"level"`
	Score string `json:"score"`
}

// PriceEvent is one row of the listing's price history table.
type PriceEvent struct {
	Date  string `json:"date"`
	Event string `json:"event"`
	Price string `json:"price"`
}

// ListingRecord is the fixed-schema record produced for every visited
// detail page. Fields the extractors could not fill hold Unknown.
type ListingRecord struct {
	URL       string    `json:"url"`
	ScrapedAt time.Time `json:"scraped_at"`

	Price          string `json:"price"`
	Beds           string `json:"beds"`
	Baths          string `json:"baths"`
	LivingArea     string `json:"living_area"`
	LotSize        string `json:"lot_size"`
	Address        string `json:"address"`
	PropertyType   string `json:"property_type"`
	YearBuilt      string `json:"year_built"`
	PricePerSqft   string `json:"price_per_sqft"`
	MonthlyPayment string `json:"monthly_payment"`
	Region         string `json:"region"`
	ImageURL       string `json:"image_url"`

	WalkScore    string `json:"walk_score"`
	BikeScore    string `json:"bike_score"`
	TransitScore string `json:"transit_score"`

	ElementarySchool School `json:"elementary_school"`
	MiddleSchool     School `json:"middle_school"`
	HighSchool       School `json:"high_school"`

	FloodRisk Risk `json:"flood_risk"`
	FireRisk  Risk `json:"fire_risk"`
	WindRisk  Risk `json:"wind_risk"`
	AirRisk   Risk `json:"air_risk"`
	HeatRisk  Risk `json:"heat_risk"`

	InteriorFeatures []string          `json:"interior_features"`
	OtherRooms       []string          `json:"other_rooms"`
	Appliances       []string          `json:"appliances"`
	Utilities        map[string]string `json:"utilities"`
	Parking          map[string]string `json:"parking"`
	PriceHistory     []PriceEvent      `json:"price_history"`
	NearbyCities     []string          `json:"nearby_cities"`
}

// NewListingRecord returns a record with every optional field set to Unknown
// and every collection initialised empty.
func NewListingRecord(url string, now time.Time) *ListingRecord {
	unknownSchool := School{Name: Unknown, Distance: Unknown}
	unknownRisk := Risk{Level: Unknown, Score: Unknown}

	return &ListingRecord{
		URL:       url,
		ScrapedAt: now,

		Price:          Unknown,
		Beds:           Unknown,
		Baths:          Unknown,
		LivingArea:     Unknown,
		LotSize:        Unknown,
		Address:        Unknown,
		PropertyType:   Unknown,
		YearBuilt:      Unknown,
		PricePerSqft:   Unknown,
		MonthlyPayment: Unknown,
		Region:         Unknown,
		ImageURL:       Unknown,

		WalkScore:    Unknown,
		BikeScore:    Unknown,
		TransitScore: Unknown,

		ElementarySchool: unknownSchool,
		MiddleSchool:     unknownSchool,
		HighSchool:       unknownSchool,

		FloodRisk: unknownRisk,
		FireRisk:  unknownRisk,
		WindRisk:  unknownRisk,
		AirRisk:   unknownRisk,
		HeatRisk:  unknownRisk,

		InteriorFeatures: []string{},
		OtherRooms:       []string{},
		Appliances:       []string{},
		Utilities:        map[string]string{},
		Parking:          map[string]string{},
		PriceHistory:     []PriceEvent{},
		NearbyCities:     []string{},
	}
}

// IsUnknown reports whether v is empty or the Unknown sentinel.
func IsUnknown(v string) bool {
	return v == "" || v == Unknown
}

// KnownFields counts the scalar, school, risk and collection fields that
// carry a real value. Used for progress logging and insights.
func (r *ListingRecord) KnownFields() int {
	n := 0
	for _, v := range []string{
		r.Price, r.Beds, r.Baths, r.LivingArea, r.LotSize, r.Address,
		r.PropertyType, r.YearBuilt, r.PricePerSqft, r.MonthlyPayment,
		r.Region, r.ImageURL, r.WalkScore, r.BikeScore, r.TransitScore,
	} {
		if !IsUnknown(v) {
			n++
		}
	}
	for _, s := range []School{r.ElementarySchool, r.MiddleSchool, r.HighSchool} {
		if !IsUnknown(s.Name) {
			n++
		}
	}
	for _, rk := range []Risk{r.FloodRisk, r.FireRisk, r.WindRisk, r.AirRisk, r.HeatRisk} {
		if !IsUnknown(rk.Level) {
			n++
		}
	}
	for _, l := range []int{
		len(r.InteriorFeatures), len(r.OtherRooms), len(r.Appliances),
		len(r.Utilities), len(r.Parking), len(r.PriceHistory), len(r.NearbyCities),
	} {
		if l > 0 {
			n++
		}
	}
	return n
}
