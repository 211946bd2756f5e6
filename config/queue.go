package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// SearchEntry is one search URL to crawl, with its own record target.
type SearchEntry struct {
	Name   string `yaml:"name"`
	Target int    `yaml:"target"`
	URL    string `yaml:"url"`
}

type queueFile struct {
	Searches []SearchEntry `yaml:"searches"`
}

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9]+`)

// LoadQueue reads the search queue from a YAML file of the form
//
//	searches:
//	  - name: austin
//	    target: 120
//	    url: https://www.example.com/austin-tx/
//
// Entries without a target inherit defaultTarget.
func LoadQueue(path string, defaultTarget int) ([]SearchEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("queue: read %q: %w", path, err)
	}
	return ParseQueue(data, defaultTarget)
}

// ParseQueue decodes and validates a YAML search queue.
func ParseQueue(data []byte, defaultTarget int) ([]SearchEntry, error) {
	var qf queueFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("queue: decode: %w", err)
	}
	if len(qf.Searches) == 0 {
		return nil, fmt.Errorf("queue: no searches defined")
	}

	seen := make(map[string]struct{}, len(qf.Searches))
	for i := range qf.Searches {
		e := &qf.Searches[i]
		if e.Target <= 0 {
			e.Target = defaultTarget
		}
		if e.Target <= 0 {
			return nil, fmt.Errorf("queue: entry %d: target must be positive", i)
		}
		if err := checkSearchURL(e.URL); err != nil {
			return nil, fmt.Errorf("queue: entry %d: %w", i, err)
		}
		if e.Name == "" {
			e.Name = nameFromURL(e.URL)
		}
		e.Name = SafeName(e.Name)
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("queue: duplicate name %q", e.Name)
		}
		seen[e.Name] = struct{}{}
	}
	return qf.Searches, nil
}

// SingleEntry builds a one-entry queue from SEARCH_URL and TARGET_COUNT.
func (c *Config) SingleEntry() ([]SearchEntry, error) {
	if err := checkSearchURL(c.SearchURL); err != nil {
		return nil, fmt.Errorf("queue: %w", err)
	}
	return []SearchEntry{{
		Name:   SafeName(c.SessionName),
		Target: c.TargetCount,
		URL:    c.SearchURL,
	}}, nil
}

// SafeName lower-cases s and collapses anything that is not a letter or
// digit into underscores, so it can be used in file names.
func SafeName(s string) string {
	s = unsafeNameChars.ReplaceAllString(strings.ToLower(s), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "search"
	}
	return s
}

func checkSearchURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid search url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("search url %q must be absolute http(s)", raw)
	}
	return nil
}

func nameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return u.Host
	}
	return parts[0]
}
