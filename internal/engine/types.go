package engine

// --- Listing types ---

// Listing is one raw job posting as returned by the job API.
// It is kept as an opaque mapping; only a handful of fields are read.
type Listing map[string]any

// Str returns the string value of key, or "" when absent or not a string.
func (l Listing) Str(key string) string {
	if l == nil {
		return ""
	}
	s, _ := l[key].(string)
	return s
}

// SearchParameters are the structured filters derived from a free-text query.
type SearchParameters struct {
	JobType         string `json:"job_type"`
	Location        string `json:"location"`
	EmploymentType  string `json:"employment_type"`
	ExperienceLevel string `json:"experience_level"`
}

// FormattedListing is the fixed display projection of a Listing.
type FormattedListing struct {
	Title          string `json:"title"`
	Company        string `json:"company"`
	Location       string `json:"location"`
	EmploymentType string `json:"employment_type"`
	ApplyLink      string `json:"apply_link"`
	Website        string `json:"website"`
	Description    string `json:"description"`
}

// --- Tool input/output types ---

// JobPreviewInput is the input for the job_preview tool.
type JobPreviewInput struct {
	Query string `json:"query" jsonschema:"Free-text job search (e.g. Remote data science internship in New York)"`
}

// JobPreviewOutput is the structured output for job_preview.
type JobPreviewOutput struct {
	Query      string `json:"query"`
	PreviewURL string `json:"preview_url,omitempty"`
	SandboxID  string `json:"sandbox_id,omitempty"`
	Reply      string `json:"reply"`
}

// JobListingsInput is the input for the job_listings tool.
type JobListingsInput struct {
	Query string `json:"query" jsonschema:"Free-text job search"`
	Pages int    `json:"pages,omitempty" jsonschema:"Number of result pages to request (default: 1)"`
}

// JobListingsOutput is the structured output for job_listings.
type JobListingsOutput struct {
	Query      string             `json:"query"`
	Parameters SearchParameters   `json:"parameters"`
	Jobs       []FormattedListing `json:"jobs"`
	Summary    string             `json:"summary"`
}
