package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeywords_TopFiveByFrequency(t *testing.T) {
	t.Parallel()

	text := "widgets widgets widgets gadgets gadgets sprockets sprockets " +
		"delivery delivery alignment consulting tiny word word word word"
	got := Keywords(text)

	// "word" is four characters and must be excluded despite frequency.
	require.Equal(t, "widgets, gadgets, sprockets, delivery, alignment", got)
}

func TestKeywords_TieBrokenByFirstEncounter(t *testing.T) {
	t.Parallel()

	got := Keywords("zebras apples zebras apples mango")
	require.Equal(t, "zebras, apples, mango", got)
}

func TestKeywords_CaseInsensitive(t *testing.T) {
	t.Parallel()

	got := Keywords("Widgets WIDGETS widgets")
	require.Equal(t, "widgets", got)
}

func TestEmails(t *testing.T) {
	t.Parallel()

	text := "Reach us at sales@acme.example or support@acme.example, not at noreply@"
	require.Equal(t, []string{"sales@acme.example", "support@acme.example"}, Emails(text))
}

func TestPhoneNumbers(t *testing.T) {
	t.Parallel()

	text := "Call (555) 123-4567 or +1 555.987.6543 today"
	got := PhoneNumbers(text)
	require.Len(t, got, 2)
	require.Contains(t, got[0], "555")
}

func TestLocations(t *testing.T) {
	t.Parallel()

	text := "Offices in Austin, TX and Toronto, Canada since forever"
	got := Locations(text)
	require.Contains(t, got, "Austin, TX")
	require.Contains(t, got, "Toronto, Canada")
}

func TestFoundingYear(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"founded", "Founded 1987 in a garage", "1987"},
		{"established", "established 2001", "2001"},
		{"since", "serving customers since 2010", "2010"},
		{"absent", "we make things", ""},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, FoundingYear(tc.text))
		})
	}
}

func TestFollowerAndEmployeeCounts(t *testing.T) {
	t.Parallel()

	text := "Acme Corp 12K followers 51-200 employees Industry: Robotics\nHeadquarters: Austin, TX\n"
	require.Equal(t, "12K", FollowerCount(text))
	require.Equal(t, "51-200", EmployeeCount(text))
	require.Equal(t, "51-200 employees", CompanySize(text))
	require.Equal(t, "Robotics", Industry(text))
	require.Equal(t, "Austin, TX", Headquarters(text))
}

func TestLabelsParseFromCollapsedText(t *testing.T) {
	t.Parallel()

	// VisibleText flattens newlines, so labels arrive on one line.
	text := "Industry: Heavy Manufacturing Headquarters: Austin, TX Company size: 51-200 employees Founded 2009"
	require.Equal(t, "Heavy Manufacturing", Industry(text))
	require.Equal(t, "Austin, TX", Headquarters(text))
	require.Equal(t, "51-200", EmployeeCount(text))
	require.Equal(t, "2009", FoundingYear(text))
}

func TestSocialLinks_FirstOccurrenceWins(t *testing.T) {
	t.Parallel()

	s := SocialLinks([]string{
		"https://linkedin.com/company/acme",
		"https://linkedin.com/company/other",
		"https://x.com/acme",
		"https://www.youtube.com/@acme",
	})
	require.Equal(t, "https://linkedin.com/company/acme", s.LinkedInURL)
	require.Equal(t, "https://x.com/acme", s.TwitterURL)
	require.Equal(t, "https://www.youtube.com/@acme", s.YouTubeURL)
	require.Empty(t, s.FacebookURL)
	require.Equal(t, 3, s.Count())
}

func TestExcerpt(t *testing.T) {
	t.Parallel()

	require.Equal(t, "abc", Excerpt("abc", 10))
	require.Equal(t, "ab", Excerpt("abcdef", 2))
	require.Equal(t, "hél", Excerpt("héllo", 3))
}

func TestDocument_Queries(t *testing.T) {
	t.Parallel()

	html := `<html><head><title> Acme Corp </title>
<meta name="description" content="We make widgets"></head>
<body>
<script>var ignored = true;</script>
<h1>Welcome to Acme</h1>
<h2>Widgets for all</h2>
<a href="/about">About</a>
<a href="https://linkedin.com/company/acme">LinkedIn</a>
<p>Founded 1987. Contact sales@acme.example.</p>
</body></html>`

	doc, err := Parse([]byte(html))
	require.NoError(t, err)

	require.Equal(t, "Acme Corp", doc.Title())
	require.Equal(t, "We make widgets", doc.MetaDescription())
	require.Equal(t, "Welcome to Acme", doc.FirstHeading())
	require.Equal(t, []string{"Welcome to Acme", "Widgets for all"}, doc.Headings())
	require.Equal(t, []string{"/about", "https://linkedin.com/company/acme"}, doc.Links())

	text := doc.VisibleText()
	require.Contains(t, text, "Founded 1987")
	require.NotContains(t, text, "ignored")
}
