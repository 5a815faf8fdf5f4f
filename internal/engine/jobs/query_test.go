package jobs

import (
	"strings"
	"testing"
)

func TestParseQuery(t *testing.T) {
	p := ParseQuery("Remote data science internship in New York")

	if p.JobType != "data science New" || p.Location != "NEW_YORK" {
		t.Errorf("job type %q location %q", p.JobType, p.Location)
	}
	if p.EmploymentType != EmploymentInternship || p.ExperienceLevel != ExperienceEntry {
		t.Errorf("employment %q experience %q", p.EmploymentType, p.ExperienceLevel)
	}
	if got, want := BuildSearchQuery(p), "data science New jobs in NEW_YORK"; got != want {
		t.Errorf("BuildSearchQuery() = %q, want %q", got, want)
	}
}

func TestExtractJobType(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"drops stopwords any case", "Senior Golang ROLE Position backend", "Senior Golang backend"},
		{"drops short words", "QA in SF at Go", "QA in SF at Go"},
		{"keeps three", "python django postgres redis kafka", "python django postgres"},
		{"only stopwords falls back", "remote job", "remote job"},
		{"short words counted in runes", "ИТ разработчик", "разработчик"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJobType(tt.in); got != tt.want {
				t.Errorf("extractJobType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractLocation(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Backend engineer in SAN FRANCISCO", "SAN_FRANCISCO"},
		{"data analyst, los angeles", "LOS_ANGELES"},
		{"seattle or new york", "NEW_YORK"}, // list order breaks ties
		{"Remote designer", "REMOTE"},
		{"Go developer in Austin", "AUSTIN"},
		{"frontend developer", DefaultLocation},
		{"barista in the uk", "UK"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := extractLocation(tt.in); got != tt.want {
				t.Errorf("extractLocation(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractLocationEveryKnownToken(t *testing.T) {
	for _, loc := range knownLocations {
		want := strings.ToUpper(strings.ReplaceAll(loc, " ", "_"))
		for _, variant := range []string{loc, strings.ToUpper(loc), strings.ToUpper(loc[:1]) + loc[1:]} {
			if got := extractLocation("job " + variant); got != want {
				t.Errorf("%q: got %q, want %q", variant, got, want)
			}
		}
	}
}

func TestExtractEmploymentType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Summer INTERNSHIP, part-time contract", EmploymentInternship},
		{"part-time barista", EmploymentPartTime},
		{"part.time barista", EmploymentPartTime},
		{"contractor devops", EmploymentContractor},
		{"contract devops", EmploymentContractor},
		{"staff engineer", EmploymentFullTime},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := extractEmploymentType(tt.in); got != tt.want {
				t.Errorf("extractEmploymentType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractExperienceLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Junior developer", ExperienceEntry},
		{"entry level analyst", ExperienceEntry},
		{"senior intern", ExperienceEntry}, // entry keywords checked first
		{"Lead engineer", ExperienceSenior},
		{"staff SRE", ExperienceSenior},
		{"backend developer", ExperienceMid},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := extractExperienceLevel(tt.in); got != tt.want {
				t.Errorf("extractExperienceLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
