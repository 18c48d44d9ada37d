// Package readability locates and cleans the primary article body in a
// raw HTML page. It is a heuristic scorer: candidate containers are
// ranked by content hints, text mass and link density, then the winner
// is pruned of navigation, boilerplate and tracking markup.
package readability

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/awalters/quill/internal/identity"
)

const (
	hintBonus = 25

	// A node is dropped when it is both short and mostly links.
	shortTextThreshold   = 120
	shortLinkDensity     = 0.35
	listAnchorShare      = 0.70
	listSingleLinkShare  = 0.60
	maxConsecutiveBlanks = 2
)

var positiveHints = []string{
	"article", "body", "content", "entry", "hentry", "main", "page",
	"post", "text", "blog", "story",
}

var negativeHints = []string{
	"hidden", "banner", "combx", "comment", "com-", "contact", "foot",
	"footer", "footnote", "masthead", "media", "meta", "outbrain",
	"promo", "related", "scroll", "shoutbox", "sidebar", "sponsor",
	"shopping", "tags", "tool", "widget", "nav", "menu", "breadcrumb",
	"social", "share", "advert", "popup", "subscribe",
}

const unwantedSelectors = `nav, aside, form, button,
	[class*="sidebar"], [id*="sidebar"],
	[class*="comment"], [id*="comment"],
	[class*="related"], [id*="related"],
	[class*="social"], [class*="share"],
	[class*="advert"], [id*="advert"], [class*="promo"],
	[class*="newsletter"], [class*="subscribe"],
	[class*="breadcrumb"], [id*="breadcrumb"]`

// sanitizer enforces the attribute whitelist on the extracted
// fragment: every attribute except src, href, alt and title is
// stripped.
var sanitizer = newSanitizer()

func newSanitizer() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"a", "abbr", "article", "b", "blockquote", "br", "caption",
		"cite", "code", "dd", "div", "dl", "dt", "em", "figcaption",
		"figure", "h1", "h2", "h3", "h4", "h5", "h6", "hr", "i", "img",
		"li", "main", "mark", "ol", "p", "pre", "q", "section", "small",
		"span", "strong", "sub", "sup", "table", "tbody", "td", "th",
		"thead", "time", "tr", "u", "ul",
	)
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("src", "alt", "title").OnElements("img")
	p.AllowAttrs("title").Globally()
	return p
}

// Extract returns the cleaned primary content fragment of the page, or
// an empty string when the document has no scoreable content at all.
// Any parse-level failure falls back to returning the raw body rather
// than an error, so extraction can never fail a sync.
func Extract(rawHTML, baseURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML, nil
	}

	doc.Find("script, style, noscript, iframe, embed, object, link, meta").Remove()

	winner := pickCandidate(doc)
	if winner == nil || winner.Length() == 0 {
		return "", nil
	}

	clone := winner.Clone()
	cleanFragment(clone, baseURL)

	rendered, err := goquery.OuterHtml(clone)
	if err != nil {
		return rawHTML, nil
	}
	return strings.TrimSpace(sanitizer.Sanitize(rendered)), nil
}

// StripLeadingTitle removes a leading <h1> from the fragment when it
// duplicates the article title, so the rendered body does not repeat
// the headline the UI already shows.
func StripLeadingTitle(fragment, title string) string {
	if title == "" {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	h1 := doc.Find("h1").First()
	if h1.Length() == 0 {
		return fragment
	}
	if identity.NormalizeTitle(h1.Text()) != identity.NormalizeTitle(title) {
		return fragment
	}
	h1.Remove()
	out, err := doc.Find("body").Html()
	if err != nil {
		return fragment
	}
	return strings.TrimSpace(out)
}

// --- candidate ranking ---

func pickCandidate(doc *goquery.Document) *goquery.Selection {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil
	}

	winner := bestOf(doc.Find("article, section, div, main, body"))
	if winner == nil {
		return body
	}

	// A body winner usually means every real candidate was buried in
	// navigation-heavy wrappers; re-rank its direct children before
	// giving up and taking the whole page.
	if goquery.NodeName(winner) == "body" {
		if child := bestOf(winner.ChildrenFiltered("article, section, div, main")); child != nil {
			winner = child
		}
	}
	return winner
}

func bestOf(candidates *goquery.Selection) *goquery.Selection {
	var winner *goquery.Selection
	best := 0.0
	candidates.Each(func(_ int, sel *goquery.Selection) {
		s := score(sel)
		if winner == nil || s > best {
			winner = sel
			best = s
		}
	})
	return winner
}

// score implements the ranking formula: a class/id hint bonus, capped
// text-mass rewards, a comma count, and a link-density penalty.
func score(sel *goquery.Selection) float64 {
	text := normalizeSpace(sel.Text())
	length := float64(len(text))

	s := float64(hintScore(sel)) * hintBonus
	s += min(length/100, 30)
	s += min(length/500, 20)
	s += float64(strings.Count(text, ","))
	s -= linkDensity(sel) * 20
	return s
}

func hintScore(sel *goquery.Selection) int {
	class, _ := sel.Attr("class")
	id, _ := sel.Attr("id")
	hints := strings.ToLower(class + " " + id)
	if hints == " " {
		return 0
	}
	for _, neg := range negativeHints {
		if strings.Contains(hints, neg) {
			return -1
		}
	}
	for _, pos := range positiveHints {
		if strings.Contains(hints, pos) {
			return 1
		}
	}
	return 0
}

func linkDensity(sel *goquery.Selection) float64 {
	total := len(normalizeSpace(sel.Text()))
	if total == 0 {
		return 0
	}
	anchored := 0
	sel.Find("a").Each(func(_ int, a *goquery.Selection) {
		anchored += len(normalizeSpace(a.Text()))
	})
	return float64(anchored) / float64(total)
}

// --- fragment cleaning ---

func cleanFragment(sel *goquery.Selection, baseURL string) {
	removeHidden(sel)
	sel.Find(unwantedSelectors).Remove()
	collapseLoneWrappers(sel)
	dropLinkHeavyBlocks(sel)
	dropEmptyContainers(sel)
	for _, node := range sel.Nodes {
		capBlankRuns(node)
		normalizeTextNodes(node, false)
	}
	dedupeConsecutiveImages(sel)
}

func removeHidden(sel *goquery.Selection) {
	sel.Find("[style], [hidden], [aria-hidden]").Each(func(_ int, el *goquery.Selection) {
		if hidden, ok := el.Attr("hidden"); ok && hidden != "false" {
			el.Remove()
			return
		}
		if aria, ok := el.Attr("aria-hidden"); ok && aria == "true" {
			el.Remove()
			return
		}
		style, _ := el.Attr("style")
		style = strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			el.Remove()
		}
	})
}

// collapseLoneWrappers replaces a div whose only content is a single
// paragraph with that paragraph.
func collapseLoneWrappers(sel *goquery.Selection) {
	for {
		collapsed := false
		sel.Find("div").Each(func(_ int, div *goquery.Selection) {
			children := div.Children()
			if children.Length() != 1 || goquery.NodeName(children) != "p" {
				return
			}
			// Direct text alongside the paragraph keeps the wrapper.
			own := normalizeSpace(ownText(div.Nodes[0]))
			if own != "" {
				return
			}
			div.ReplaceWithSelection(children)
			collapsed = true
		})
		if !collapsed {
			return
		}
	}
}

func dropLinkHeavyBlocks(sel *goquery.Selection) {
	// Short, link-dense containers are navigation in disguise.
	sel.Find("div, section, table, ul, ol, p, dl").Each(func(_ int, el *goquery.Selection) {
		text := normalizeSpace(el.Text())
		if len(text) < shortTextThreshold && linkDensity(el) > shortLinkDensity {
			el.Remove()
		}
	})

	sel.Find("ul, ol").Each(func(_ int, list *goquery.Selection) {
		if linkDensity(list) > listAnchorShare {
			list.Remove()
			return
		}
		items := list.Find("li")
		if items.Length() == 0 {
			return
		}
		singleLink := 0
		items.Each(func(_ int, li *goquery.Selection) {
			anchors := li.Find("a")
			if anchors.Length() == 1 &&
				normalizeSpace(li.Text()) == normalizeSpace(anchors.Text()) {
				singleLink++
			}
		})
		if float64(singleLink)/float64(items.Length()) > listSingleLinkShare {
			list.Remove()
		}
	})
}

func dropEmptyContainers(sel *goquery.Selection) {
	for {
		removed := false
		sel.Find("div, span, p, section, ul, ol, li, table, figure, blockquote").Each(func(_ int, el *goquery.Selection) {
			if normalizeSpace(el.Text()) != "" {
				return
			}
			if el.Find("img").Length() > 0 {
				return
			}
			el.Remove()
			removed = true
		})
		if !removed {
			return
		}
	}
}

// capBlankRuns limits runs of consecutive blank siblings (whitespace
// text, <br>, or textless blocks) to at most two.
func capBlankRuns(node *html.Node) {
	run := 0
	child := node.FirstChild
	for child != nil {
		next := child.NextSibling
		if isBlank(child) {
			run++
			if run > maxConsecutiveBlanks {
				node.RemoveChild(child)
			}
		} else {
			run = 0
			capBlankRuns(child)
		}
		child = next
	}
}

func isBlank(node *html.Node) bool {
	switch node.Type {
	case html.TextNode:
		return strings.TrimSpace(node.Data) == ""
	case html.ElementNode:
		switch node.Data {
		case "br", "hr":
			return true
		case "p", "div":
			return strings.TrimSpace(nodeText(node)) == "" && !containsElement(node, "img")
		}
	}
	return false
}

func normalizeTextNodes(node *html.Node, inPre bool) {
	if node.Type == html.ElementNode && (node.Data == "pre" || node.Data == "code") {
		inPre = true
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode && !inPre {
			collapsed := strings.Join(strings.Fields(child.Data), " ")
			if collapsed != "" {
				// Preserve boundary spacing so inline elements do not fuse.
				if strings.HasPrefix(child.Data, " ") || strings.HasPrefix(child.Data, "\n") || strings.HasPrefix(child.Data, "\t") {
					collapsed = " " + collapsed
				}
				if strings.HasSuffix(child.Data, " ") || strings.HasSuffix(child.Data, "\n") || strings.HasSuffix(child.Data, "\t") {
					collapsed += " "
				}
			}
			child.Data = collapsed
			continue
		}
		normalizeTextNodes(child, inPre)
	}
}

func dedupeConsecutiveImages(sel *goquery.Selection) {
	lastSrc := ""
	sel.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src != "" && src == lastSrc {
			img.Remove()
			return
		}
		lastSrc = src
	})
}

// --- node helpers ---

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func ownText(node *html.Node) string {
	var b strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			b.WriteString(child.Data)
		}
	}
	return b.String()
}

func nodeText(node *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return b.String()
}

func containsElement(node *html.Node, name string) bool {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.Data == name {
			return true
		}
		if containsElement(child, name) {
			return true
		}
	}
	return false
}
