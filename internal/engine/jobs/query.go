package jobs

import (
	"strings"
	"unicode/utf8"

	"github.com/anatolykoptev/go_jobpreview/internal/engine"
)

// Employment types accepted by the job API.
const (
	EmploymentInternship = "INTERNSHIP"
	EmploymentPartTime   = "PART_TIME"
	EmploymentContractor = "CONTRACTOR"
	EmploymentFullTime   = "FULLTIME"
)

// Experience levels derived from the query.
const (
	ExperienceEntry  = "entry_level"
	ExperienceMid    = "mid_level"
	ExperienceSenior = "senior"
)

// DefaultLocation is used when no known location token appears in the query.
const DefaultLocation = "US"

// jobTypeStopwords are dropped when extracting the job title from a query.
var jobTypeStopwords = map[string]bool{
	"internship": true,
	"job":        true,
	"position":   true,
	"role":       true,
	"remote":     true,
	"onsite":     true,
	"hybrid":     true,
}

// knownLocations is matched in order; the first substring hit wins.
var knownLocations = []string{
	"new york", "san francisco", "chicago", "los angeles", "seattle",
	"boston", "austin", "denver", "miami", "remote", "anywhere", "us", "uk",
}

// ParseQuery turns a free-text request into search parameters.
// Pure string matching, no IO; never fails.
func ParseQuery(text string) engine.SearchParameters {
	return engine.SearchParameters{
		JobType:         extractJobType(text),
		Location:        extractLocation(text),
		EmploymentType:  extractEmploymentType(text),
		ExperienceLevel: extractExperienceLevel(text),
	}
}

// extractJobType keeps the first three words that are neither stopwords nor shorter than 3 characters.
func extractJobType(text string) string {
	var words []string
	for _, w := range strings.Fields(text) {
		if jobTypeStopwords[strings.ToLower(w)] || utf8.RuneCountInString(w) <= 2 {
			continue
		}
		words = append(words, w)
		if len(words) == 3 {
			break
		}
	}
	if len(words) == 0 {
		return text
	}
	return strings.Join(words, " ")
}

func extractLocation(text string) string {
	lower := strings.ToLower(text)
	for _, loc := range knownLocations {
		if strings.Contains(lower, loc) {
			return strings.ToUpper(strings.ReplaceAll(loc, " ", "_"))
		}
	}
	return DefaultLocation
}

func extractEmploymentType(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "internship"):
		return EmploymentInternship
	case strings.Contains(lower, "part-time"), strings.Contains(lower, "part.time"):
		return EmploymentPartTime
	case strings.Contains(lower, "contract"):
		// "contractor" contains "contract"
		return EmploymentContractor
	default:
		return EmploymentFullTime
	}
}

func extractExperienceLevel(text string) string {
	lower := strings.ToLower(text)
	if containsAny(lower, "intern", "junior", "entry") {
		return ExperienceEntry
	}
	if containsAny(lower, "senior", "lead", "staff") {
		return ExperienceSenior
	}
	return ExperienceMid
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// BuildSearchQuery renders the parameters as the job API's free-text query.
func BuildSearchQuery(p engine.SearchParameters) string {
	return p.JobType + " jobs in " + p.Location
}
