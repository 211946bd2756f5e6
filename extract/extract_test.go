package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homes-scraper/models"
)

const detailFixture = `<!DOCTYPE html>
<html><head>
<script type="application/json">{"yearBuilt":1994,"bedrooms":9,"walkScore":12}</script>
</head>
<body>
<main>
  <picture><img src="https://photos.zillowstatic.com/fp/abc123def456-cc_ft_960.jpg"></picture>
  <h1 data-testid="street-address">123 Maple St, Austin, TX 78701</h1>
  <span data-testid="price">$450,000</span>
  <div data-testid="bed-bath-sqft-facts"><span>3</span><span>bd</span> <span>2.5</span><span>ba</span> <span>1,850</span><span>sqft</span></div>
  <p>Est. payment: $2,845/mo</p>
  <div class="facts">
    <p>Single Family Residence</p>
    <p>Built in 1998</p>
    <p>$243/sqft</p>
    <p>0.31 Acres Lot</p>
  </div>
  <section>
    <h2>Interior</h2>
    <ul>
      <li>Hardwood floors throughout</li>
      <li>Granite countertops</li>
      <li>Fireplace in family room</li>
      <li>Formal dining room and a home office</li>
      <li>Appliances included: Dishwasher, Refrigerator, Microwave, Oven</li>
    </ul>
    <h2>Utilities</h2>
    <ul>
      <li>Electric: 200 Amp Service</li>
      <li>Sewer: Public Sewer</li>
      <li>Water: Public</li>
    </ul>
    <h2>Parking</h2>
    <ul>
      <li>Total spaces: 2</li>
      <li>Garage spaces: 2</li>
      <li>Parking features: Attached, Driveway</li>
    </ul>
  </section>
  <div class="StyledScoresContainer-abc">
    <div><span>Walk Score®</span> <span>72</span></div>
    <div><span>Bike Score®</span> <span>55</span></div>
    <div><span>Transit Score®</span> <span>40</span></div>
  </div>
  <section>
    <h2>Schools</h2>
    <ul>
      <li>Please contact the district for information</li>
      <li>Lincoln Elementary School</li><li>Distance: 0.4 mi</li>
      <li>Roosevelt Middle School</li><li>Distance: 1.2 mi</li>
      <li>Jefferson High School</li><li>Distance: 2.8 mi</li>
    </ul>
  </section>
  <section>
    <h2>Climate risks</h2>
    <div><h3>Flood Factor</h3><p>Minimal</p><p>1/10</p></div>
    <div><h3>Fire Factor</h3><p>Moderate</p><p>4/10</p></div>
    <div><h3>Wind Factor</h3><p>Major</p><p>7/10</p></div>
    <div><h3>Air Factor</h3><p>Unrated</p></div>
    <div><h3>Heat Factor</h3><p>Severe</p><p>9/10</p></div>
  </section>
  <section>
    <h2>Price history</h2>
    <table>
      <tr><td>3/15/2024</td><td>Listed for sale</td><td>$450,000</td></tr>
      <tr><td>6/2/2019</td><td>Sold</td><td>$380,500</td></tr>
    </table>
  </section>
  <p>Location Region: Central Austin</p>
  <div>
    <div><h2>Nearby cities</h2></div>
    <ul>
      <li><a href="/round-rock-tx/">Round Rock Real estate</a></li>
      <li><a href="/pflugerville-tx/">Pflugerville Real estate</a></li>
      <li><a href="/round-rock-tx/">Round Rock Real estate</a></li>
    </ul>
  </div>
</main>
</body></html>`

func TestExtractFullFixture(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rec, report := Extract("https://www.example.com/homedetails/1_zpid/", detailFixture, now)

	require.NotNil(t, rec)
	assert.Empty(t, report.Failed)

	assert.Equal(t, "$450,000", rec.Price)
	assert.Equal(t, "3", rec.Beds)
	assert.Equal(t, "2.5", rec.Baths)
	assert.Equal(t, "1,850", rec.LivingArea)
	assert.Equal(t, "123 Maple St, Austin, TX 78701", rec.Address)
	assert.Equal(t, "Single Family", rec.PropertyType)
	assert.Equal(t, "1998", rec.YearBuilt)
	assert.Equal(t, "$243/sqft", rec.PricePerSqft)
	assert.Equal(t, "0.31 Acres", rec.LotSize)
	assert.Equal(t, "$2,845/mo", rec.MonthlyPayment)
	assert.Equal(t, "Central Austin", rec.Region)
	assert.Equal(t, "https://photos.zillowstatic.com/fp/abc123def456-cc_ft_960.jpg", rec.ImageURL)

	assert.Equal(t, "72/100", rec.WalkScore)
	assert.Equal(t, "55/100", rec.BikeScore)
	assert.Equal(t, "40/100", rec.TransitScore)

	assert.Equal(t, models.School{Name: "Lincoln Elementary School", Distance: "0.4 mi"}, rec.ElementarySchool)
	assert.Equal(t, models.School{Name: "Roosevelt Middle School", Distance: "1.2 mi"}, rec.MiddleSchool)
	assert.Equal(t, models.School{Name: "Jefferson High School", Distance: "2.8 mi"}, rec.HighSchool)

	assert.Equal(t, models.Risk{Level: "Minimal", Score: "1/10"}, rec.FloodRisk)
	assert.Equal(t, models.Risk{Level: "Moderate", Score: "4/10"}, rec.FireRisk)
	assert.Equal(t, models.Risk{Level: "Major", Score: "7/10"}, rec.WindRisk)
	assert.Equal(t, models.Risk{Level: models.Unknown, Score: models.Unknown}, rec.AirRisk)
	assert.Equal(t, models.Risk{Level: "Severe", Score: "9/10"}, rec.HeatRisk)

	assert.Equal(t, []string{"hardwood floor", "granite countertop", "fireplace"}, rec.InteriorFeatures)
	assert.Equal(t, []string{"dining room", "family room", "office"}, rec.OtherRooms)
	assert.Equal(t, []string{"dishwasher", "refrigerator", "microwave"}, rec.Appliances)

	assert.Equal(t, map[string]string{
		"electric": "200 Amp Service",
		"sewer":    "Public Sewer",
		"water":    "Public",
	}, rec.Utilities)
	assert.Equal(t, map[string]string{
		"total_spaces":     "2",
		"garage_spaces":    "2",
		"parking_features": "Attached, Driveway",
	}, rec.Parking)

	assert.Equal(t, []models.PriceEvent{
		{Date: "3/15/2024", Event: "Listed for sale", Price: "$450,000"},
		{Date: "6/2/2019", Event: "Sold", Price: "$380,500"},
	}, rec.PriceHistory)
	assert.Equal(t, []string{"Round Rock", "Pflugerville"}, rec.NearbyCities)
}

func TestExtractIsIdempotent(t *testing.T) {
	a, _ := Extract("u", detailFixture, time.Unix(0, 0))
	b, _ := Extract("u", detailFixture, time.Unix(0, 0))
	assert.Equal(t, a, b)
}

func TestExtractEmptyPageYieldsSentinels(t *testing.T) {
	now := time.Now()
	rec, report := Extract("https://www.example.com/homedetails/2_zpid/", "", now)

	want := models.NewListingRecord("https://www.example.com/homedetails/2_zpid/", now)
	assert.Equal(t, want, rec)
	assert.Empty(t, report.Failed)
	assert.Len(t, report.Missed, len(Rules))
}

func TestExtractSanityBoundsRejectNoise(t *testing.T) {
	html := `<html><body>
	<div data-testid="bed-bath-sqft-facts">42 bd 0 ba 120 sqft</div>
	<section aria-label="home facts">4 beds 3 baths 2,400 sqft</section>
	<span data-testid="price">Contact agent</span>
	<h1>Welcome home</h1>
	</body></html>`

	rec, _ := Extract("u", html, time.Now())

	assert.Equal(t, "4", rec.Beds, "42 beds is out of range, container value wins")
	assert.Equal(t, "3", rec.Baths)
	assert.Equal(t, "2,400", rec.LivingArea)
	assert.Equal(t, models.Unknown, rec.Price)
	assert.Equal(t, models.Unknown, rec.Address)
}

func TestExtractFallsBackToEmbeddedData(t *testing.T) {
	html := `<html><body><div id="root"></div>
	<script>window.__DATA__ = {"price":525000,"bedrooms":4,"bathrooms":2.0,"livingArea":2150,"streetAddress":"9 Oak Dr","yearBuilt":2005};</script>
	</body></html>`

	rec, _ := Extract("u", html, time.Now())

	assert.Equal(t, "$525,000", rec.Price)
	assert.Equal(t, "4", rec.Beds)
	assert.Equal(t, "2", rec.Baths)
	assert.Equal(t, "2,150", rec.LivingArea)
	assert.Equal(t, "9 Oak Dr", rec.Address)
	assert.Equal(t, "2005", rec.YearBuilt)
}

func TestSchoolBlacklist(t *testing.T) {
	html := `<html><body><ul>
	<li>Check With District Elementary</li>
	<li>Contact Applicable High School</li>
	</ul></body></html>`

	rec, _ := Extract("u", html, time.Now())
	assert.Equal(t, models.Unknown, rec.ElementarySchool.Name)
	assert.Equal(t, models.Unknown, rec.HighSchool.Name)
}

func TestCompositesWithCaseFoldingText(t *testing.T) {
	// "Ⱥ" grows by a byte when lowercased, so offsets taken from a
	// lowercased copy would not line up with the original text.
	html := `<html><body><p>` + strings.Repeat("Ⱥ", 300) + `</p>
	<div><h3>Flood Factor</h3><p>Moderate</p><p>5/10</p></div>
	<p>Nearby elementary school, 1.2 mi away</p>
	<h2>Price History</h2><p>3/14/2021 Sold $410,000</p>
	</body></html>`

	rec, report := Extract("u", html, time.Now())
	assert.Empty(t, report.Failed)
	assert.Equal(t, models.Risk{Level: "Moderate", Score: "5/10"}, rec.FloodRisk)
	assert.Equal(t, "1.2 mi", rec.ElementarySchool.Distance)
}

func TestFeatureCaps(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body><p>")
	b.WriteString("hardwood floors, granite countertops, stainless steel, tile floors, carpet, laminate, marble, skylight")
	b.WriteString("</p></body></html>")

	rec, _ := Extract("u", b.String(), time.Now())
	assert.Len(t, rec.InteriorFeatures, maxInteriorFeatures)
	assert.Equal(t, "hardwood floor", rec.InteriorFeatures[0])
}

func TestPriceHistoryCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body><h2>Price history</h2><table>")
	for i := 1; i <= 8; i++ {
		b.WriteString("<tr><td>1/")
		b.WriteString(string(rune('0' + i)))
		b.WriteString("/2020</td><td>Price change</td><td>$400,000</td></tr>")
	}
	b.WriteString("</table></body></html>")

	rec, _ := Extract("u", b.String(), time.Now())
	assert.Len(t, rec.PriceHistory, maxPriceHistory)
	assert.Equal(t, "1/1/2020", rec.PriceHistory[0].Date)
}

func TestRulePanicIsIsolated(t *testing.T) {
	rule := Rule{
		Field: "boom",
		Strategies: []Strategy{
			{Name: "panics", Candidates: func(*Page) []string { panic("bad selector") }},
			{Name: "works", Candidates: func(*Page) []string { return []string{"ok"} }},
		},
	}

	v, err := rule.Run(NewPage("<html></html>"))
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestRuleMissListsStrategies(t *testing.T) {
	rule := Rule{
		Field:      "never",
		Strategies: []Strategy{Text(yearPatterns[0], nil), Source(yearBlob, nil)},
		Valid:      between(1800, 2100),
	}

	_, err := rule.Run(NewPage("<html><body>Built in 1492</body></html>"))
	require.Error(t, err)

	miss, ok := err.(*Miss)
	require.True(t, ok)
	assert.Equal(t, "never", miss.Field)
	assert.Len(t, miss.Tried, 2)
}

func TestVisibleText(t *testing.T) {
	p := NewPage(`<html><body><div>Walk<span>Score</span></div><script>var x = 1;</script><p>Line   two</p></body></html>`)
	assert.Equal(t, "Walk Score\nLine two", p.Text())
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name  string
		check func(string) bool
		in    string
		want  bool
	}{
		{"price ok", validPrice, "$1,250,000", true},
		{"price cents", validPrice, "$950.00", true},
		{"price text", validPrice, "Price cut", false},
		{"address street", validAddress, "77 Elm Ave", true},
		{"address zip", validAddress, "Unit 4, Boston, MA 02116", true},
		{"address heading", validAddress, "Overview", false},
		{"image ok", validImageURL, "https://photos.zillowstatic.com/fp/abcdef-p_e.jpg", true},
		{"image logo", validImageURL, "https://photos.zillowstatic.com/static/logo-large.png", false},
		{"image no ext", validImageURL, "https://photos.zillowstatic.com/fp/abcdef-p_e", false},
		{"baths low", between(0.5, 10), "0", false},
		{"area high", between(300, 20000), "48,000", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.in); got != tt.want {
				t.Errorf("check(%q) = %v; want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWithCommas(t *testing.T) {
	tests := map[string]string{"1850": "1,850", "525000": "525,000", "999": "999", "1,234,567": "1,234,567"}
	for in, want := range tests {
		if got := withCommas(in); got != want {
			t.Errorf("withCommas(%q) = %q; want %q", in, got, want)
		}
	}
}
