package orchestrate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/leadscope/siteintel/internal/crawl"
	"github.com/leadscope/siteintel/internal/extract"
)

// linkedInSession is the shared rate-limit session for all LinkedIn
// requests. LinkedIn throttles per origin, not per job, so every job
// in the process shares one budget.
const linkedInSession = "linkedin-scraper"

// linkedInExcerptLen bounds the about-section text handed to the
// summarizer.
const linkedInExcerptLen = 2000

// linkedInCrawler fetches a company profile page and extracts both the
// header and the about-section facts from it. The profile page renders
// the about fields inline, so one fetch covers both and the shared
// session spends one request per job. The crawler shares the
// orchestrator's fetcher so LinkedIn requests go through the same
// identity rotation and retry ladder.
type linkedInCrawler struct {
	cfg        Config
	fetcher    crawl.Fetcher
	summarizer crawl.Summarizer
	logger     *zap.Logger
}

func newLinkedInCrawler(cfg Config, fetcher crawl.Fetcher, summarizer crawl.Summarizer, logger *zap.Logger) *linkedInCrawler {
	return &linkedInCrawler{
		cfg:        cfg,
		fetcher:    fetcher,
		summarizer: summarizer,
		logger:     logger,
	}
}

// crawlProfile populates result.LinkedIn from the company profile at
// profileURL.
func (c *linkedInCrawler) crawlProfile(ctx context.Context, profileURL string, result *crawl.Result) error {
	if err := sleepRange(ctx, c.cfg.LinkedInDelayMin, c.cfg.LinkedInDelayMax); err != nil {
		return err
	}

	resp, err := c.fetcher.Fetch(ctx, profileURL, linkedInSession)
	if err != nil {
		return fmt.Errorf("fetch linkedin profile: %w", err)
	}
	doc, err := extract.Parse(resp.Body)
	if err != nil {
		return fmt.Errorf("parse linkedin profile: %w", err)
	}
	text := doc.VisibleText()

	name := doc.FirstHeading()
	if name == "" {
		name = doc.FirstMatch(`[data-test-id="company-name"]`)
	}
	result.LinkedIn.Home = &crawl.LinkedInHome{
		Name:          name,
		Tagline:       doc.FirstMatch(`[data-test-id="about-us-description"]`),
		FollowerCount: extract.FollowerCount(text),
		EmployeeCount: extract.EmployeeCount(text),
	}
	result.LinkedIn.About = &crawl.LinkedInAbout{
		Description:  c.summarizer.Summarize(ctx, extract.Excerpt(text, linkedInExcerptLen), "LinkedIn about section"),
		Industry:     extract.Industry(text),
		Headquarters: extract.Headquarters(text),
		CompanySize:  extract.CompanySize(text),
		FoundedYear:  extract.FoundingYear(text),
	}
	return nil
}
