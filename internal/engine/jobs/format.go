package jobs

import (
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_jobpreview/internal/engine"
)

// DescriptionLimit is the number of description characters kept for display.
const DescriptionLimit = 200

// Display sentinels for missing listing fields.
const (
	NotAvailable  = "N/A"
	NoApplyLink   = "#"
	NoDescription = "No description"
)

// FormatListing projects a raw listing into its display fields.
// Total: missing or non-string fields degrade to sentinels.
func FormatListing(l engine.Listing) engine.FormattedListing {
	return engine.FormattedListing{
		Title:          orDefault(l, "job_title", NotAvailable),
		Company:        orDefault(l, "employer_name", NotAvailable),
		Location:       orDefault(l, "job_location", NotAvailable),
		EmploymentType: orDefault(l, "job_employment_type", NotAvailable),
		ApplyLink:      orDefault(l, "job_apply_link", NoApplyLink),
		Website:        engine.FirstNonEmpty(l.Str("employer_website"), l.Str("employer_url")),
		Description:    formatDescription(l.Str("job_description")),
	}
}

// FormatListings formats at most limit listings; limit <= 0 formats all.
func FormatListings(listings []engine.Listing, limit int) []engine.FormattedListing {
	if limit > 0 && len(listings) > limit {
		listings = listings[:limit]
	}
	out := make([]engine.FormattedListing, 0, len(listings))
	for _, l := range listings {
		out = append(out, FormatListing(l))
	}
	return out
}

// DigestLine renders one listing for a plain-text reply.
func DigestLine(n int, f engine.FormattedListing) string {
	return fmt.Sprintf("%d. %s — %s — %s (%s)\nApply: %s", n, f.Title, f.Company, f.Location, f.EmploymentType, f.ApplyLink)
}

// Digest renders up to limit listings as numbered entries separated by blank lines.
func Digest(listings []engine.FormattedListing, limit int) string {
	if limit > 0 && len(listings) > limit {
		listings = listings[:limit]
	}
	lines := make([]string, 0, len(listings))
	for i, f := range listings {
		lines = append(lines, DigestLine(i+1, f))
	}
	return strings.Join(lines, "\n\n")
}

// orDefault returns the field when present as a non-empty string.
// The job API sends null for unknown fields, which is treated as absent.
func orDefault(l engine.Listing, key, def string) string {
	if s := l.Str(key); s != "" {
		return s
	}
	return def
}

func formatDescription(desc string) string {
	if desc == "" {
		return NoDescription
	}
	return engine.TruncateRunes(desc, DescriptionLimit, "") + "..."
}
