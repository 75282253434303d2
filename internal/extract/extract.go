package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/leadscope/siteintel/internal/crawl"
)

var (
	nonWordRe      = regexp.MustCompile(`\W+`)
	emailRe        = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRe        = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
	locationRe     = regexp.MustCompile(`[A-Z][a-z]+\s*,\s*(?:[A-Z]{2}\b|[A-Z][a-z]+)`)
	foundingRe     = regexp.MustCompile(`(?i)(?:founded|established|since)\s+(\d{4})`)
	followerRe     = regexp.MustCompile(`(?i)(\d+(?:,\d+)*(?:\.\d+)?[KMB]?)\s+followers`)
	employeeRe     = regexp.MustCompile(`(?i)(\d+(?:,\d+)*(?:-\d+(?:,\d+)*)?)\s+employees`)
	industryRe     = regexp.MustCompile(`(?i)Industry[:\s]+(.+?)(?:\s+(?:Headquarters|HQ|Company size|Founded|Specialties|Website)\b|\n|$)`)
	headquartersRe = regexp.MustCompile(`(?i)(?:Headquarters|HQ)[:\s]+(.+?)(?:\s+(?:Industry|Company size|Founded|Specialties|Website)\b|\n|$)`)
)

const keywordCount = 5

// Keywords returns the five most frequent words longer than four
// characters, case-insensitive, ties broken by first-encountered
// order, joined with ", ".
func Keywords(text string) string {
	words := nonWordRe.Split(strings.ToLower(text), -1)
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, w := range words {
		if len(w) <= 4 {
			continue
		}
		if _, ok := firstSeen[w]; !ok {
			firstSeen[w] = i
		}
		counts[w]++
	}

	ranked := make([]string, 0, len(counts))
	for w := range counts {
		ranked = append(ranked, w)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return firstSeen[ranked[i]] < firstSeen[ranked[j]]
	})
	if len(ranked) > keywordCount {
		ranked = ranked[:keywordCount]
	}
	return strings.Join(ranked, ", ")
}

// Emails returns every email address found in the text.
func Emails(text string) []string {
	return emailRe.FindAllString(text, -1)
}

// PhoneNumbers returns US-style digit groupings found in the text.
func PhoneNumbers(text string) []string {
	return phoneRe.FindAllString(text, -1)
}

// Locations returns "City, ST" and "City, Country" patterns found in
// the text.
func Locations(text string) []string {
	return locationRe.FindAllString(text, -1)
}

// FoundingYear extracts a four-digit year following "founded",
// "established", or "since".
func FoundingYear(text string) string {
	if m := foundingRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// FollowerCount extracts a LinkedIn-style follower figure ("12K
// followers").
func FollowerCount(text string) string {
	if m := followerRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// EmployeeCount extracts an employee figure or range ("51-200
// employees").
func EmployeeCount(text string) string {
	if m := employeeRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// Industry extracts the value of an "Industry:" label. The capture
// stops at the next profile label so whitespace-collapsed page text
// yields the value alone.
func Industry(text string) string {
	if m := industryRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// Headquarters extracts the value of a "Headquarters:"/"HQ:" label.
func Headquarters(text string) string {
	if m := headquartersRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// CompanySize renders the employee figure as "<n> employees".
func CompanySize(text string) string {
	if n := EmployeeCount(text); n != "" {
		return n + " employees"
	}
	return ""
}

// SocialLinks scans hrefs for known platform domains, recording the
// first occurrence per platform.
func SocialLinks(hrefs []string) crawl.SocialLinks {
	var s crawl.SocialLinks
	for _, href := range hrefs {
		switch {
		case strings.Contains(href, "linkedin.com"):
			if s.LinkedInURL == "" {
				s.LinkedInURL = href
			}
		case strings.Contains(href, "twitter.com"), strings.Contains(href, "x.com"):
			if s.TwitterURL == "" {
				s.TwitterURL = href
			}
		case strings.Contains(href, "facebook.com"):
			if s.FacebookURL == "" {
				s.FacebookURL = href
			}
		case strings.Contains(href, "youtube.com"):
			if s.YouTubeURL == "" {
				s.YouTubeURL = href
			}
		case strings.Contains(href, "instagram.com"):
			if s.InstagramURL == "" {
				s.InstagramURL = href
			}
		}
	}
	return s
}

// Excerpt returns at most n runes of s, without splitting a rune.
func Excerpt(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
