package extract

import (
	"regexp"
	"strings"

	"homes-scraper/models"
)

// Selectors for the fact containers, most specific first.
var factContainers = []string{
	`[data-testid="property-facts"]`,
	`[data-testid="facts-container"]`,
	`.summary-container`,
	`section[aria-label*="facts"]`,
}

var scoreContainers = []string{
	`[class*="StyledScoresContainer"]`,
	`[class*="ScoresContainer"]`,
}

var (
	bedsRe        = regexp.MustCompile(`(?i)(\d+)\s*(?:bd|beds?)\b`)
	bathsRe       = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:ba|baths?)\b`)
	sqftRe        = regexp.MustCompile(`(?i)([\d,]+)\s*sqft\b`)
	bedsBlob      = regexp.MustCompile(`(?i)"(?:bedrooms|beds)"\s*:\s*(\d+)`)
	bathsBlob     = regexp.MustCompile(`(?i)"(?:bathrooms|baths)"\s*:\s*(\d+(?:\.\d+)?)`)
	areaBlob      = regexp.MustCompile(`(?i)"(?:livingArea|floorSize)"\s*:\s*(\d+)`)
	priceBlob     = regexp.MustCompile(`"price"\s*:\s*(\d{4,10})\b`)
	addressBlob   = regexp.MustCompile(`"streetAddress"\s*:\s*"([^"]{4,120})"`)
	typeRe        = regexp.MustCompile(`(?i)\b(single[ -]family|condo|townhouse|multi[ -]family)\b`)
	yearBlob      = regexp.MustCompile(`"yearBuilt"\s*:\s*(\d{4})`)
	monthlyRe     = regexp.MustCompile(`(?i)\$[\d,]+(?:/mo\b|/month\b|\s+monthly\b)`)
	regionRe      = regexp.MustCompile(`(?i)Region:\s*([^\n•<]+)`)
	imageSourceRe = regexp.MustCompile(`https://photos\.zillowstatic\.com/[^"'>\s]+`)
)

var yearPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Built in (\d{4})`),
	regexp.MustCompile(`(?i)year built[:\s]+(\d{4})`),
	regexp.MustCompile(`(?i)\bbuilt[:\s]+(\d{4})`),
}

var pricePerSqftPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$([\d,]+)\s*/\s*sqft`),
	regexp.MustCompile(`(?i)\$([\d,]+)\s*price/sqft`),
	regexp.MustCompile(`(?i)price/sqft[:\s]+\$([\d,]+)`),
}

// lotPatterns capture a size and, where present, a unit.
var lotPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)([\d,]+(?:\.\d+)?)\s*(square\s*feet|sq\s*ft|sqft|acres?)\s*lot\b`),
	regexp.MustCompile(`(?i)lot\s*size[:\s]*([\d,]+(?:\.\d+)?)\s*(square\s*feet|sq\s*ft|sqft|acres?)`),
	regexp.MustCompile(`(?i)\blot[:\s]+([\d,]+(?:\.\d+)?)\s*(square\s*feet|sq\s*ft|sqft|acres?)`),
	regexp.MustCompile(`(?i)property\s*size[:\s]*([\d,]+(?:\.\d+)?)\s*(square\s*feet|sq\s*ft|sqft|acres?)`),
	regexp.MustCompile(`(?i)([\d,]+(?:\.\d+)?)\s*(acres)\b`),
}

func formatLot(m []string) string {
	size := m[1]
	if len(m) > 2 && strings.HasPrefix(strings.ToLower(m[2]), "acre") {
		return size + " Acres"
	}
	return size + " sqft"
}

func formatPriceFromBlob(m []string) string {
	return "$" + withCommas(m[1])
}

func formatPerSqft(m []string) string {
	return "$" + strings.ReplaceAll(m[1], ",", "") + "/sqft"
}

func formatArea(m []string) string {
	return withCommas(m[1])
}

func formatBaths(m []string) string {
	return trimZero(m[1])
}

func formatType(m []string) string {
	words := strings.FieldsFunc(strings.ToLower(m[1]), func(r rune) bool { return r == ' ' || r == '-' })
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

func scoreRule(field, label string, set func(r *models.ListingRecord, v string)) Rule {
	format := func(m []string) string { return m[1] + "/100" }
	inContainer := regexp.MustCompile(`(?i)` + label + `\s*Score®?\s*(\d+)|(\d+)\s*/?\s*100\s*` + label)
	containerFormat := func(m []string) string {
		if m[1] != "" {
			return m[1] + "/100"
		}
		return m[2] + "/100"
	}

	var strategies []Strategy
	for _, sel := range scoreContainers {
		sel := sel
		strategies = append(strategies, Strategy{
			Name: "container:" + sel,
			Candidates: func(p *Page) []string {
				var out []string
				for _, t := range p.TextOf(sel) {
					out = append(out, applyAll(inContainer, t, containerFormat)...)
				}
				return out
			},
		})
	}
	strategies = append(strategies,
		Text(regexp.MustCompile(`(?i)`+label+`\s*Score®?[:\s]*(\d+)`), format),
		Source(regexp.MustCompile(`(?i)"`+strings.ToLower(label)+`Score"\s*:\s*(\d+)`), format),
	)
	return Rule{Field: field, Strategies: strategies, Valid: between(0, 100), Set: set}
}

func patternStrategies(res []*regexp.Regexp, format func([]string) string) []Strategy {
	out := make([]Strategy, 0, len(res)*2)
	for _, re := range res {
		out = append(out, Text(re, format))
	}
	for _, re := range res {
		out = append(out, Source(re, format))
	}
	return out
}

func withContainers(re *regexp.Regexp, format func([]string) string) []Strategy {
	out := make([]Strategy, 0, len(factContainers))
	for _, sel := range factContainers {
		sel := sel
		out = append(out, Strategy{
			Name: "container:" + sel,
			Candidates: func(p *Page) []string {
				var cands []string
				for _, t := range p.TextOf(sel) {
					cands = append(cands, applyAll(re, t, format)...)
				}
				return cands
			},
		})
	}
	return out
}

// Rules is the declarative scalar-field table. Strategies are ordered from
// the most structured source to the broadest.
var Rules = []Rule{
	{
		Field: "price",
		Strategies: []Strategy{
			Selector(`span[data-testid="price"]`, nil),
			Selector(`.notranslate`, nil),
			Selector(`h3 span`, nil),
			Source(priceBlob, formatPriceFromBlob),
		},
		Valid: validPrice,
		Set:   func(r *models.ListingRecord, v string) { r.Price = v },
	},
	{
		Field: "beds",
		Strategies: append(append(
			[]Strategy{Selector(`[data-testid="bed-bath-sqft-facts"]`, bedsRe)},
			withContainers(bedsRe, nil)...),
			Source(bedsBlob, nil)),
		Valid: between(1, 10),
		Set:   func(r *models.ListingRecord, v string) { r.Beds = v },
	},
	{
		Field: "baths",
		Strategies: append(append(
			[]Strategy{Selector(`[data-testid="bed-bath-sqft-facts"]`, bathsRe)},
			withContainers(bathsRe, formatBaths)...),
			Source(bathsBlob, formatBaths)),
		Valid: between(0.5, 10),
		Set:   func(r *models.ListingRecord, v string) { r.Baths = trimZero(v) },
	},
	{
		Field: "living_area",
		Strategies: append(append(
			[]Strategy{Selector(`[data-testid="bed-bath-sqft-facts"]`, sqftRe)},
			withContainers(sqftRe, formatArea)...),
			Source(areaBlob, formatArea)),
		Valid: between(300, 20000),
		Set:   func(r *models.ListingRecord, v string) { r.LivingArea = withCommas(v) },
	},
	{
		Field: "address",
		Strategies: []Strategy{
			Selector(`h1[data-testid="street-address"]`, nil),
			Selector(`h1`, nil),
			Source(addressBlob, nil),
		},
		Valid: validAddress,
		Set:   func(r *models.ListingRecord, v string) { r.Address = strings.Join(strings.Fields(v), " ") },
	},
	{
		Field:      "property_type",
		Strategies: []Strategy{Text(typeRe, formatType), Source(typeRe, formatType)},
		Set:        func(r *models.ListingRecord, v string) { r.PropertyType = v },
	},
	{
		Field:      "year_built",
		Strategies: append(patternStrategies(yearPatterns, nil), Source(yearBlob, nil)),
		Valid:      between(1800, 2100),
		Set:        func(r *models.ListingRecord, v string) { r.YearBuilt = v },
	},
	{
		Field:      "price_per_sqft",
		Strategies: patternStrategies(pricePerSqftPatterns, formatPerSqft),
		Valid:      positive,
		Set:        func(r *models.ListingRecord, v string) { r.PricePerSqft = v },
	},
	{
		Field:      "lot_size",
		Strategies: patternStrategies(lotPatterns, formatLot),
		Valid:      positive,
		Set:        func(r *models.ListingRecord, v string) { r.LotSize = v },
	},
	{
		Field:      "monthly_payment",
		Strategies: []Strategy{Text(monthlyRe, nil)},
		Set:        func(r *models.ListingRecord, v string) { r.MonthlyPayment = v },
	},
	{
		Field:      "region",
		Strategies: []Strategy{Text(regionRe, nil)},
		Valid:      validRegion,
		Set:        func(r *models.ListingRecord, v string) { r.Region = strings.TrimSpace(v) },
	},
	{
		Field: "image_url",
		Strategies: []Strategy{
			Attr(`img[data-testid*="property-image"]`, "src"),
			Attr(`img[src*="photos.zillowstatic.com"]`, "src"),
			Attr(`picture img`, "src"),
			Attr(`main img`, "src"),
			Source(imageSourceRe, nil),
		},
		Valid: validImageURL,
		Set:   func(r *models.ListingRecord, v string) { r.ImageURL = v },
	},
	scoreRule("walk_score", "Walk", func(r *models.ListingRecord, v string) { r.WalkScore = v }),
	scoreRule("bike_score", "Bike", func(r *models.ListingRecord, v string) { r.BikeScore = v }),
	scoreRule("transit_score", "Transit", func(r *models.ListingRecord, v string) { r.TransitScore = v }),
}
