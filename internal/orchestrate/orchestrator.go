// Package orchestrate drives one crawl job: seed fetch, link
// discovery, section classification, per-section extraction, and the
// LinkedIn sub-crawl.
package orchestrate

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leadscope/siteintel/internal/crawl"
	"github.com/leadscope/siteintel/internal/extract"
)

// homeExcerptLen bounds the text handed to the summarizer for the seed
// and section pages.
const homeExcerptLen = 3000

// Config controls crawl pacing and breadth. Delay ranges exist to
// break up detectable burst patterns; tests shrink them.
type Config struct {
	// MaxSectionPages caps how many discovered internal links are
	// visited.
	MaxSectionPages int

	RequestDelayMin  time.Duration
	RequestDelayMax  time.Duration
	PageDelayMin     time.Duration
	PageDelayMax     time.Duration
	LinkedInDelayMin time.Duration
	LinkedInDelayMax time.Duration
}

// DefaultConfig returns the production pacing.
func DefaultConfig() Config {
	return Config{
		MaxSectionPages:  10,
		RequestDelayMin:  time.Second,
		RequestDelayMax:  3 * time.Second,
		PageDelayMin:     2 * time.Second,
		PageDelayMax:     5 * time.Second,
		LinkedInDelayMin: 3 * time.Second,
		LinkedInDelayMax: 6 * time.Second,
	}
}

// Orchestrator turns one seed URL into an extraction result. It
// implements crawl.Analyzer.
type Orchestrator struct {
	cfg        Config
	fetcher    crawl.Fetcher
	summarizer crawl.Summarizer
	linkedin   *linkedInCrawler
	logger     *zap.Logger
}

// New constructs an Orchestrator.
func New(cfg Config, fetcher crawl.Fetcher, summarizer crawl.Summarizer, logger *zap.Logger) *Orchestrator {
	if cfg.MaxSectionPages <= 0 {
		cfg.MaxSectionPages = 10
	}
	return &Orchestrator{
		cfg:        cfg,
		fetcher:    fetcher,
		summarizer: summarizer,
		linkedin:   newLinkedInCrawler(cfg, fetcher, summarizer, logger),
		logger:     logger,
	}
}

// Analyze crawls the seed URL and its classified sections. A positive
// maxPages overrides the configured page budget for this call. A
// failure fetching or parsing the seed page propagates; failures on
// individual section links or the LinkedIn sub-crawl only degrade the
// result.
func (o *Orchestrator) Analyze(ctx context.Context, seedURL string, sessionID string, maxPages int) (crawl.Result, error) {
	seed, err := url.Parse(seedURL)
	if err != nil {
		return crawl.Result{}, fmt.Errorf("parse seed url: %w", err)
	}

	resp, err := o.fetcher.Fetch(ctx, seedURL, sessionID)
	if err != nil {
		return crawl.Result{}, fmt.Errorf("fetch seed page: %w", err)
	}
	doc, err := extract.Parse(resp.Body)
	if err != nil {
		return crawl.Result{}, fmt.Errorf("parse seed page: %w", err)
	}

	if err := sleepRange(ctx, o.cfg.RequestDelayMin, o.cfg.RequestDelayMax); err != nil {
		return crawl.Result{}, err
	}

	var result crawl.Result
	text := doc.VisibleText()
	result.Website.Home = &crawl.HomeSection{
		PageTitle:       doc.Title(),
		MetaDescription: doc.MetaDescription(),
		HeroText:        doc.FirstHeading(),
		MainHeadings:    doc.Headings(),
		Keywords:        extract.Keywords(text),
		Summary:         o.summarizer.Summarize(ctx, extract.Excerpt(text, homeExcerptLen), "homepage"),
	}

	links := doc.Links()
	internal := internalLinks(seed, links)

	social := extract.SocialLinks(links)
	if social.Count() > 0 {
		result.Website.SocialMedia = &social
	}

	budget := o.cfg.MaxSectionPages
	if maxPages > 0 {
		budget = maxPages
	}
	visited := 0
	for link := range internal {
		if visited >= budget {
			break
		}
		visited++
		if err := o.visitSection(ctx, link, sessionID, &result); err != nil {
			if ctx.Err() != nil {
				return crawl.Result{}, err
			}
			o.logger.Warn("section crawl failed",
				zap.String("url", link),
				zap.Error(err),
			)
		}
	}

	if social.LinkedInURL != "" {
		if err := o.linkedin.crawlProfile(ctx, social.LinkedInURL, &result); err != nil {
			o.logger.Warn("linkedin crawl failed",
				zap.String("url", social.LinkedInURL),
				zap.Error(err),
			)
		}
	}

	result.Stats = crawl.Stats{
		PagesAnalyzed:        len(internal),
		SectionsFound:        countSections(result.Website),
		AISummariesGenerated: countSummaries(result),
		SocialLinksFound:     social.Count(),
	}
	return result, nil
}

// visitSection fetches one internal link and classifies it by path
// substring. A link matching no known section still consumes crawl
// budget.
func (o *Orchestrator) visitSection(ctx context.Context, link string, sessionID string, result *crawl.Result) error {
	if err := sleepRange(ctx, o.cfg.PageDelayMin, o.cfg.PageDelayMax); err != nil {
		return err
	}

	resp, err := o.fetcher.Fetch(ctx, link, sessionID)
	if err != nil {
		return fmt.Errorf("fetch section: %w", err)
	}
	doc, err := extract.Parse(resp.Body)
	if err != nil {
		return fmt.Errorf("parse section: %w", err)
	}
	text := doc.VisibleText()

	switch {
	case strings.Contains(link, "/about"):
		companyName := doc.FirstHeading()
		if companyName == "" {
			companyName = doc.FirstMatch(`[class*="company"]`)
		}
		result.Website.About = &crawl.AboutSection{
			CompanyName:  companyName,
			FoundingYear: extract.FoundingYear(text),
			AboutSummary: o.summarizer.Summarize(ctx, extract.Excerpt(text, homeExcerptLen), "about page"),
		}
	case strings.Contains(link, "/service"), strings.Contains(link, "/solution"):
		result.Website.Services = &crawl.ServicesSection{
			ServicesSummary: o.summarizer.Summarize(ctx, extract.Excerpt(text, homeExcerptLen), "services page"),
		}
	case strings.Contains(link, "/product"):
		result.Website.Products = &crawl.ProductsSection{
			ProductsSummary: o.summarizer.Summarize(ctx, extract.Excerpt(text, homeExcerptLen), "products page"),
		}
	case strings.Contains(link, "/contact"):
		result.Website.Contact = &crawl.ContactSection{
			EmailAddresses:  extract.Emails(text),
			PhoneNumbers:    extract.PhoneNumbers(text),
			OfficeLocations: extract.Locations(text),
		}
	default:
		o.logger.Debug("unclassified internal page", zap.String("url", link))
	}
	return nil
}

// internalLinks resolves hrefs against the seed and keeps the
// deduplicated set sharing the seed's origin. Iteration order is
// unspecified, which is acceptable: visit order is not guaranteed
// across runs.
func internalLinks(seed *url.URL, hrefs []string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, href := range hrefs {
		resolved, err := seed.Parse(href)
		if err != nil {
			continue
		}
		if resolved.Scheme != seed.Scheme || resolved.Host != seed.Host {
			continue
		}
		out[resolved.String()] = struct{}{}
	}
	return out
}

func countSections(w crawl.WebsiteData) int {
	n := 0
	if w.About != nil {
		n++
	}
	if w.Services != nil {
		n++
	}
	if w.Products != nil {
		n++
	}
	if w.Contact != nil {
		n++
	}
	return n
}

func countSummaries(r crawl.Result) int {
	n := 0
	if r.Website.Home != nil && r.Website.Home.Summary != "" {
		n++
	}
	if r.Website.About != nil && r.Website.About.AboutSummary != "" {
		n++
	}
	if r.Website.Services != nil && r.Website.Services.ServicesSummary != "" {
		n++
	}
	if r.Website.Products != nil && r.Website.Products.ProductsSummary != "" {
		n++
	}
	if r.LinkedIn.About != nil && r.LinkedIn.About.Description != "" {
		n++
	}
	return n
}

// sleepRange suspends the calling task for a random duration in
// [min, max].
func sleepRange(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("crawl delay interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
