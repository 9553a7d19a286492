package damadam

import (
	"damadam-scraper/pkg/htmlutil"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var placeholderValues = map[string]struct{}{
	"no city":       {},
	"not set":       {},
	"no set":        {},
	"[no posts]":    {},
	"n/a":           {},
	"[no post url]": {},
	"[error]":       {},
	"none":          {},
	"null":          {},
	"no age":        {},
}

// CleanValue trims a scraped value and blanks the placeholders the site shows
// for fields that were never filled in.
func CleanValue(value string) string {
	value = strings.TrimSpace(value)
	if _, ok := placeholderValues[strings.ToLower(value)]; ok {
		return ""
	}
	return value
}

var missingUserMarkers = []string{
	"user not found",
	"no user exists",
	"doesn't exist",
	"does not exist",
}

func isMissingUserPage(doc *goquery.Document) bool {
	if doc.Find("h1.cxl.clb.lsp").Length() > 0 {
		return false
	}
	text := strings.ToLower(doc.Find("body").Text())
	for _, marker := range missingUserMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = htmlutil.Text(s)
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

var digits = regexp.MustCompile(`\d+`)

func firstNumber(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.ReplaceAll(htmlutil.Text(s), ",", "")
			found = digits.FindString(text)
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// labelledField finds the value next to a bold label like "<b>City:</b> <span>Lahore</span>".
func labelledField(doc *goquery.Document, label string) string {
	var value string
	doc.Find("b").EachWithBreak(func(_ int, b *goquery.Selection) bool {
		if !strings.Contains(b.Text(), label) {
			return true
		}
		value = htmlutil.Text(b.NextAllFiltered("span").First())
		return value == ""
	})
	return value
}

func verification(doc *goquery.Document, rawHtml string) Verification {
	lower := strings.ToLower(rawHtml)
	if strings.Contains(lower, "account suspended") {
		return Suspended
	}
	if strings.Contains(lower, "background:tomato") || doc.Find("div[style*='tomato']").Length() > 0 {
		return Unverified
	}
	return Verified
}

func friendStatus(rawHtml string) string {
	lower := strings.ToLower(rawHtml)
	if strings.Contains(lower, `action="/follow/remove/"`) || strings.Contains(lower, "unfollow.svg") {
		return "Yes"
	}
	if strings.Contains(lower, "follow.svg") {
		return "No"
	}
	return ""
}

var avatarSelectors = []string{
	"img[src*='avatar-imgs']",
	"img[src*='avatar']",
	"div[style*='whitesmoke'] img[src*='cloudfront.net']",
}

func avatar(doc *goquery.Document, pageUrl *url.URL) string {
	for _, sel := range avatarSelectors {
		src := strings.TrimSpace(doc.Find(sel).First().AttrOr("src", ""))
		if src == "" {
			continue
		}
		src = strings.Replace(src, "/thumbnail/", "/", 1)
		if link := htmlutil.ResolveUrl(pageUrl, src); link != nil {
			return link.String()
		}
	}
	return ""
}

func parseProfile(doc *goquery.Document, pageUrl *url.URL, now time.Time) (Record, error) {
	if doc.Find("h1.cxl.clb.lsp").Length() == 0 {
		return Record{}, fmt.Errorf("could not find profile header h1.cxl.clb.lsp")
	}
	rawHtml, err := doc.Html()
	if err != nil {
		return Record{}, fmt.Errorf("serialize profile page: %w", err)
	}

	record := Record{
		Verification: verification(doc, rawHtml),
		Friend:       friendStatus(rawHtml),
		Intro:        CleanValue(firstText(doc, "span.cl.sp.lsp.nos", ".ow span.nos")),
		City:         CleanValue(labelledField(doc, "City:")),
		Gender:       CleanValue(labelledField(doc, "Gender:")),
		Married:      CleanValue(labelledField(doc, "Married:")),
		Age:          CleanValue(labelledField(doc, "Age:")),
		Joined:       AbsoluteDate(CleanValue(labelledField(doc, "Joined:")), now),
		Followers:    firstNumber(doc, "span.cl.sp.clb"),
		Posts: firstNumber(
			doc,
			"a[href*='/profile/public/'] button div:first-child",
			"a[href*='/profile/public/'] button div",
		),
		Image: avatar(doc, pageUrl),
	}
	return record, nil
}

var (
	textCommentId  = regexp.MustCompile(`/comments/text/(\d+)`)
	imageCommentId = regexp.MustCompile(`/comments/image/(\d+)`)
)

var postTimeSelectors = []string{
	"span[itemprop='datePublished']",
	"time[itemprop='datePublished']",
	"span.cxs.cgy",
	"time",
}

func recentPostUrl(post *goquery.Selection, pageUrl *url.URL) string {
	if href, ok := post.Find("a[href*='/content/']").First().Attr("href"); ok {
		if link := htmlutil.ResolveUrl(pageUrl, href); link != nil {
			return link.String()
		}
	}
	if href, ok := post.Find("a[href*='/comments/text/']").First().Attr("href"); ok {
		if groups := textCommentId.FindStringSubmatch(href); groups != nil {
			return htmlutil.ResolveUrl(pageUrl, "/comments/text/"+groups[1]).String()
		}
		if link := htmlutil.ResolveUrl(pageUrl, href); link != nil {
			return link.String()
		}
	}
	if href, ok := post.Find("a[href*='/comments/image/']").First().Attr("href"); ok {
		if groups := imageCommentId.FindStringSubmatch(href); groups != nil {
			return htmlutil.ResolveUrl(pageUrl, "/content/"+groups[1]+"/g/").String()
		}
		if link := htmlutil.ResolveUrl(pageUrl, href); link != nil {
			return link.String()
		}
	}
	return ""
}

func parseRecentPost(doc *goquery.Document, pageUrl *url.URL, now time.Time) (string, string) {
	post := doc.Find("article.mbl").First()
	if post.Length() == 0 {
		return "", ""
	}

	postUrl := CleanValue(recentPostUrl(post, pageUrl))

	var postTime string
	for _, sel := range postTimeSelectors {
		text := htmlutil.Text(post.Find(sel).First())
		if text != "" {
			postTime = AbsoluteDate(text, now)
			break
		}
	}
	return postUrl, postTime
}
