package htmlutil

import (
	"bytes"
	"damadam-scraper/lib/textutil"
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// Text returns the visible text of the first node in the selection with
// whitespace collapsed, or "" if the selection is empty.
func Text(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	return textutil.CollapseSpaces(removeNonPrintable(GetText(sel.Nodes[0])))
}

type Anchor struct {
	Url  *url.URL
	Name string
}

const normalizeFlags = purell.FlagsSafe | purell.FlagRemoveDotSegments | purell.FlagRemoveDuplicateSlashes

// ResolveUrl resolves href against base and normalizes the result, it returns
// nil if href cannot be parsed.
func ResolveUrl(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil
	}
	link, err := url.Parse(href)
	if err != nil {
		return nil
	}
	if base != nil {
		link = base.ResolveReference(link)
	}
	purell.NormalizeURL(link, normalizeFlags)
	return link
}

func GetAnchors(base *url.URL, sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	sel.Each(func(_ int, s *goquery.Selection) {
		link := ResolveUrl(base, s.AttrOr("href", ""))
		if link == nil {
			return
		}
		anchors = append(anchors, Anchor{
			Url:  link,
			Name: Text(s),
		})
	})
	return anchors
}
