package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	priceShape  = regexp.MustCompile(`^\$[\d,]+(?:\.\d{2})?$`)
	streetToken = regexp.MustCompile(`(?i)\b(st|street|ave|avenue|rd|road|dr|drive|ln|lane|blvd|boulevard|ct|court|way|pl|place|ter|terrace|cir|circle|pkwy|parkway|hwy|highway|trl|trail|sq|square)\b\.?`)
	zipTail     = regexp.MustCompile(`,\s*[A-Z]{2}\s+\d{5}\b`)
	riskLevels  = map[string]bool{"Minimal": true, "Minor": true, "Moderate": true, "Major": true, "Severe": true}
	badImage    = []string{"icon", "logo", "avatar", "blank", "placeholder"}
	imageExts   = []string{".jpg", ".jpeg", ".webp", ".png"}
)

// number parses the leading numeric part of s, ignoring thousands separators.
func number(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	s = strings.TrimPrefix(s, "$")
	end := 0
	for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	if end == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// between returns a check accepting values whose number lies in [lo, hi].
func between(lo, hi float64) func(string) bool {
	return func(v string) bool {
		f, ok := number(v)
		return ok && f >= lo && f <= hi
	}
}

func positive(v string) bool {
	f, ok := number(v)
	return ok && f > 0
}

func validPrice(v string) bool {
	return priceShape.MatchString(v)
}

func validAddress(v string) bool {
	if len(v) < 6 || len(v) > 200 {
		return false
	}
	return streetToken.MatchString(v) || zipTail.MatchString(v)
}

func validRegion(v string) bool {
	return len(v) > 2 && len(v) < 80
}

func validImageURL(v string) bool {
	if len(v) <= 30 {
		return false
	}
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	lower := strings.ToLower(u.Path)
	for _, bad := range badImage {
		if strings.Contains(lower, bad) {
			return false
		}
	}
	for _, ext := range imageExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// withCommas renders the integer part of s with thousands separators.
func withCommas(s string) string {
	f, ok := number(s)
	if !ok {
		return ""
	}
	digits := strconv.FormatInt(int64(f), 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// trimZero renders "2.0" as "2" and keeps "2.5".
func trimZero(s string) string {
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

func titleWord(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
