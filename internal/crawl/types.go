// Package crawl defines core types shared across subsystems.
package crawl

import (
	"time"
)

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store. Transitions are
// monotonic: pending -> processing -> {completed | failed}.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether a status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job represents the metadata persisted for each submitted crawl request.
// Results is set iff Status is completed; Error is set iff Status is
// failed. CompletedAt stays nil on failure so abnormal termination is
// distinguishable.
type Job struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Status      JobStatus  `json:"status"`
	Results     *Result    `json:"results,omitempty"`
	Error       string     `json:"error,omitempty"`
	ScheduleID  string     `json:"schedule_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Frequency enumerates the recurrence options for a schedule.
type Frequency string

// Recognized frequency values. Custom defers to the cron expression.
const (
	FrequencyHourly  Frequency = "hourly"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyCustom  Frequency = "custom"
)

// Valid reports whether the frequency is one of the recognized values.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyCustom:
		return true
	default:
		return false
	}
}

// Schedule describes a recurring crawl over an ordered, non-empty list
// of target URLs. NextRun is recomputed whenever Frequency or
// CronExpression changes and after every automatic trigger.
type Schedule struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	URLs           []string          `json:"urls"`
	Frequency      Frequency         `json:"frequency"`
	CronExpression string            `json:"cron_expression,omitempty"`
	Settings       map[string]string `json:"settings,omitempty"`
	Active         bool              `json:"is_active"`
	LastRun        *time.Time        `json:"last_run,omitempty"`
	NextRun        time.Time         `json:"next_run"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Result is the extraction tree produced by a completed crawl. An
// absent section means it was not discovered or not successfully
// extracted, never that the company has nothing there.
type Result struct {
	Website  WebsiteData  `json:"website"`
	LinkedIn LinkedInData `json:"linkedin"`
	Stats    Stats        `json:"stats"`
}

// WebsiteData holds the per-section extraction for the primary site.
type WebsiteData struct {
	Home        *HomeSection     `json:"home,omitempty"`
	About       *AboutSection    `json:"about,omitempty"`
	Services    *ServicesSection `json:"services,omitempty"`
	Products    *ProductsSection `json:"products,omitempty"`
	Contact     *ContactSection  `json:"contact,omitempty"`
	SocialMedia *SocialLinks     `json:"social_media,omitempty"`
}

// HomeSection captures headline facts from the seed page.
type HomeSection struct {
	PageTitle       string   `json:"page_title,omitempty"`
	MetaDescription string   `json:"meta_description,omitempty"`
	HeroText        string   `json:"hero_text,omitempty"`
	MainHeadings    []string `json:"main_headings,omitempty"`
	Keywords        string   `json:"keywords,omitempty"`
	Summary         string   `json:"summary,omitempty"`
}

// AboutSection captures company identity facts from an about page.
type AboutSection struct {
	CompanyName  string `json:"company_name,omitempty"`
	FoundingYear string `json:"founding_year,omitempty"`
	AboutSummary string `json:"about_summary,omitempty"`
}

// ServicesSection summarizes a services or solutions page.
type ServicesSection struct {
	ServicesSummary string `json:"services_summary,omitempty"`
}

// ProductsSection summarizes a products page.
type ProductsSection struct {
	ProductsSummary string `json:"products_summary,omitempty"`
}

// ContactSection holds contact details scraped from a contact page.
type ContactSection struct {
	EmailAddresses  []string `json:"email_addresses,omitempty"`
	PhoneNumbers    []string `json:"phone_numbers,omitempty"`
	OfficeLocations []string `json:"office_locations,omitempty"`
}

// SocialLinks records the first URL discovered per platform.
type SocialLinks struct {
	LinkedInURL  string `json:"linkedin_url,omitempty"`
	TwitterURL   string `json:"twitter_url,omitempty"`
	FacebookURL  string `json:"facebook_url,omitempty"`
	YouTubeURL   string `json:"youtube_url,omitempty"`
	InstagramURL string `json:"instagram_url,omitempty"`
}

// Count returns the number of platforms with a discovered URL.
func (s SocialLinks) Count() int {
	n := 0
	for _, u := range []string{s.LinkedInURL, s.TwitterURL, s.FacebookURL, s.YouTubeURL, s.InstagramURL} {
		if u != "" {
			n++
		}
	}
	return n
}

// LinkedInData holds the extraction for the company's LinkedIn profile.
type LinkedInData struct {
	Home  *LinkedInHome  `json:"home,omitempty"`
	About *LinkedInAbout `json:"about,omitempty"`
}

// LinkedInHome captures the profile header facts.
type LinkedInHome struct {
	Name          string `json:"linkedin_name,omitempty"`
	Tagline       string `json:"tagline,omitempty"`
	FollowerCount string `json:"follower_count,omitempty"`
	EmployeeCount string `json:"employee_count,omitempty"`
}

// LinkedInAbout captures the profile about-section facts.
type LinkedInAbout struct {
	Description  string `json:"description,omitempty"`
	Industry     string `json:"industry,omitempty"`
	Headquarters string `json:"headquarters,omitempty"`
	CompanySize  string `json:"company_size,omitempty"`
	FoundedYear  string `json:"founded_year,omitempty"`
}

// Stats aggregates what a crawl covered. PagesAnalyzed counts all
// discovered same-origin links, not the capped number actually
// visited.
type Stats struct {
	PagesAnalyzed        int `json:"pagesAnalyzed"`
	SectionsFound        int `json:"sectionsFound"`
	AISummariesGenerated int `json:"aiSummariesGenerated"`
	SocialLinksFound     int `json:"socialLinksFound"`
}

// Response is the payload returned by a Fetcher implementation.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// QueueItem wraps a job ready to run. Settings carries the owning
// schedule's per-crawl tuning (max_pages, session_tag); it is nil for
// ad-hoc submissions.
type QueueItem struct {
	JobID     string
	URL       string
	Submitted int64
	Settings  map[string]string
}
