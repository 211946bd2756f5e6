package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"homes-scraper/models"
)

// Caps bound the keyword lists so a long description cannot flood a record.
const (
	maxInteriorFeatures = 5
	maxOtherRooms       = 3
	maxAppliances       = 3
	maxPriceHistory     = 5
	maxNearbyCities     = 5
)

type keyword struct {
	label string
	re    *regexp.Regexp
}

func keywords(labels ...string) []keyword {
	out := make([]keyword, len(labels))
	for i, l := range labels {
		pattern := strings.ReplaceAll(regexp.QuoteMeta(l), " ", `\s+`)
		out[i] = keyword{label: l, re: regexp.MustCompile(`(?i)\b` + pattern + `s?\b`)}
	}
	return out
}

var (
	interiorKeywords = keywords(
		"hardwood floor", "granite countertop", "stainless steel", "tile floor",
		"carpet", "laminate", "marble", "walk-in closet", "bay window",
		"skylight", "fireplace", "built-in shelves", "crown molding", "vaulted ceiling",
	)
	roomKeywords = keywords(
		"dining room", "family room", "living room", "bonus room", "office",
		"den", "study", "library", "sunroom", "basement", "attic",
		"laundry room", "mud room", "pantry", "walk-in pantry",
	)
	applianceKeywords = keywords(
		"dishwasher", "refrigerator", "microwave", "oven", "range", "cooktop",
		"disposal", "washer", "dryer", "freezer", "wine cooler", "ice maker",
	)
)

type keyedPattern struct {
	key string
	re  *regexp.Regexp
}

var utilityPatterns = []keyedPattern{
	{"electric", regexp.MustCompile(`(?i)Electric:\s*([^\n<]+)`)},
	{"sewer", regexp.MustCompile(`(?i)Sewer:\s*([^\n<]+)`)},
	{"water", regexp.MustCompile(`(?i)Water:\s*([^\n<]+)`)},
	{"utilities", regexp.MustCompile(`(?i)Utilities for property:\s*([^\n<]+)`)},
}

var parkingPatterns = []keyedPattern{
	{"total_spaces", regexp.MustCompile(`(?i)Total spaces:\s*(\d+)`)},
	{"garage_spaces", regexp.MustCompile(`(?i)Garage spaces:\s*(\d+)`)},
	{"parking_features", regexp.MustCompile(`(?i)Parking features:\s*([^\n<]+)`)},
	{"uncovered_spaces", regexp.MustCompile(`(?i)Has uncovered spaces:\s*([^\n<]+)`)},
}

var (
	schoolBlacklist = []string{
		"check with", "contact", "verify", "call", "please",
		"applicable", "district", "information",
	}
	distanceLabeled = regexp.MustCompile(`(?i)Distance:\s*(\d+(?:\.\d+)?)\s*mi\b`)
	distanceBare    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*mi\b`)
	riskLevelRe     = regexp.MustCompile(`(?i)\b(Minimal|Minor|Moderate|Major|Severe)\b`)
	riskScoreRe     = regexp.MustCompile(`\b(\d{1,2})/10\b`)
	historyRe       = regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})\s+([A-Za-z][A-Za-z ]*[A-Za-z])\s+(\$[\d,]+)`)
	realEstateLink  = regexp.MustCompile(`(?i)^(.+?)\s+real estate$`)
)

const (
	schoolWindow = 400
	riskWindow   = 200
)

// Composite extractors fill grouped fields. Each one runs isolated.
var Composites = []struct {
	Name string
	Fill func(p *Page, r *models.ListingRecord)
}{
	{"features", fillFeatures},
	{"utilities", fillUtilities},
	{"parking", fillParking},
	{"schools", fillSchools},
	{"risks", fillRisks},
	{"price_history", fillPriceHistory},
	{"nearby_cities", fillNearbyCities},
}

func matchKeywords(text string, kws []keyword, limit int) []string {
	out := []string{}
	for _, kw := range kws {
		if len(out) >= limit {
			break
		}
		if kw.re.MatchString(text) {
			out = append(out, kw.label)
		}
	}
	return out
}

func fillFeatures(p *Page, r *models.ListingRecord) {
	text := p.Text()
	r.InteriorFeatures = matchKeywords(text, interiorKeywords, maxInteriorFeatures)
	r.OtherRooms = matchKeywords(text, roomKeywords, maxOtherRooms)
	r.Appliances = matchKeywords(text, applianceKeywords, maxAppliances)
}

func scrapeKeyed(text string, patterns []keyedPattern) map[string]string {
	out := map[string]string{}
	for _, kp := range patterns {
		if m := kp.re.FindStringSubmatch(text); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				out[kp.key] = v
			}
		}
	}
	return out
}

func fillUtilities(p *Page, r *models.ListingRecord) {
	r.Utilities = scrapeKeyed(p.Text(), utilityPatterns)
}

func fillParking(p *Page, r *models.ListingRecord) {
	r.Parking = scrapeKeyed(p.Text(), parkingPatterns)
}

func schoolNameRe(level string) *regexp.Regexp {
	return regexp.MustCompile(`((?:[A-Z][A-Za-z.'\-]* +){1,4})` + level + `(?: +School)?\b`)
}

// foldRe matches any of words case-insensitively. Offsets it reports are
// valid in the original text, unlike those found in a lowercased copy.
func foldRe(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))
}

var schoolLevels = []struct {
	level  string
	nameRe *regexp.Regexp
	anchor *regexp.Regexp
	set    func(r *models.ListingRecord, s models.School)
}{
	{"Elementary", schoolNameRe("Elementary"), foldRe("elementary"),
		func(r *models.ListingRecord, s models.School) { r.ElementarySchool = s }},
	{"Middle", schoolNameRe("Middle"), foldRe("middle", "junior", "k-8"),
		func(r *models.ListingRecord, s models.School) { r.MiddleSchool = s }},
	{"High", schoolNameRe("High"), foldRe("high school"),
		func(r *models.ListingRecord, s models.School) { r.HighSchool = s }},
}

func validSchoolName(name string) bool {
	if len(name) < 4 || len(name) > 40 {
		return false
	}
	lower := strings.ToLower(name)
	for _, bad := range schoolBlacklist {
		if strings.Contains(lower, bad) {
			return false
		}
	}
	return true
}

func schoolDistance(text string, from int) string {
	end := from + schoolWindow
	if end > len(text) {
		end = len(text)
	}
	window := text[from:end]
	valid := between(0.1, 50)
	for _, re := range []*regexp.Regexp{distanceLabeled, distanceBare} {
		for _, m := range re.FindAllStringSubmatch(window, -1) {
			if valid(m[1]) {
				return m[1] + " mi"
			}
		}
	}
	return models.Unknown
}

func fillSchools(p *Page, r *models.ListingRecord) {
	text := p.Text()

	for _, sl := range schoolLevels {
		school := models.School{Name: models.Unknown, Distance: models.Unknown}
		anchor := -1

		for _, loc := range sl.nameRe.FindAllStringSubmatchIndex(text, -1) {
			name := strings.Join(strings.Fields(text[loc[0]:loc[1]]), " ")
			if validSchoolName(name) {
				school.Name = name
				anchor = loc[0]
				break
			}
		}
		if anchor < 0 {
			if loc := sl.anchor.FindStringIndex(text); loc != nil {
				anchor = loc[0]
			}
		}
		if anchor >= 0 {
			school.Distance = schoolDistance(text, anchor)
		}
		sl.set(r, school)
	}
}

var riskKinds = []struct {
	label *regexp.Regexp
	set   func(r *models.ListingRecord, v models.Risk)
}{
	{foldRe("flood factor"), func(r *models.ListingRecord, v models.Risk) { r.FloodRisk = v }},
	{foldRe("fire factor"), func(r *models.ListingRecord, v models.Risk) { r.FireRisk = v }},
	{foldRe("wind factor"), func(r *models.ListingRecord, v models.Risk) { r.WindRisk = v }},
	{foldRe("air factor"), func(r *models.ListingRecord, v models.Risk) { r.AirRisk = v }},
	{foldRe("heat factor"), func(r *models.ListingRecord, v models.Risk) { r.HeatRisk = v }},
}

var (
	factorRe       = foldRe("factor")
	priceHistoryRe = foldRe("price history")
)

func fillRisks(p *Page, r *models.ListingRecord) {
	text := p.Text()
	scoreOK := between(1, 10)

	for _, rk := range riskKinds {
		for _, loc := range rk.label.FindAllStringIndex(text, -1) {
			from := loc[1]
			end := min(from+riskWindow, len(text))
			// stop at the next factor label so neighbouring risks don't bleed in
			if next := factorRe.FindStringIndex(text[from:end]); next != nil {
				end = from + next[0]
			}
			window := text[from:end]
			level := riskLevelRe.FindStringSubmatch(window)
			score := riskScoreRe.FindStringSubmatch(window)
			if level != nil && score != nil && scoreOK(score[1]) {
				lv := titleWord(level[1])
				if riskLevels[lv] {
					rk.set(r, models.Risk{Level: lv, Score: score[1] + "/10"})
					break
				}
			}
		}
	}
}

func fillPriceHistory(p *Page, r *models.ListingRecord) {
	text := p.Text()
	if loc := priceHistoryRe.FindStringIndex(text); loc != nil {
		text = text[loc[0]:]
	}

	history := []models.PriceEvent{}
	seen := map[models.PriceEvent]bool{}
	for _, m := range historyRe.FindAllStringSubmatch(text, -1) {
		ev := models.PriceEvent{Date: m[1], Event: strings.TrimSpace(m[2]), Price: m[3]}
		if seen[ev] {
			continue
		}
		seen[ev] = true
		history = append(history, ev)
		if len(history) >= maxPriceHistory {
			break
		}
	}
	r.PriceHistory = history
}

func fillNearbyCities(p *Page, r *models.ListingRecord) {
	scope := p.Doc.Selection
	if heading := p.Doc.Find(`:containsOwn("Nearby cities")`).First(); heading.Length() > 0 {
		scope = heading.Parent().Parent()
	}

	cities := collectCities(scope)
	if len(cities) == 0 && scope != p.Doc.Selection {
		cities = collectCities(p.Doc.Selection)
	}
	r.NearbyCities = cities
}

func collectCities(scope *goquery.Selection) []string {
	cities := []string{}
	seen := map[string]bool{}
	scope.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		m := realEstateLink.FindStringSubmatch(strings.Join(strings.Fields(a.Text()), " "))
		if m == nil {
			return true
		}
		city := strings.TrimSpace(m[1])
		if len(city) > 2 && !seen[city] {
			seen[city] = true
			cities = append(cities, city)
		}
		return len(cities) < maxNearbyCities
	})
	return cities
}
