package content

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

var (
	markupPattern = regexp.MustCompile(`<\s*/?\s*[a-zA-Z][a-zA-Z0-9]*(\s[^<>]*)?/?\s*>`)
	entityPattern = regexp.MustCompile(`&(#[0-9]+|#[xX][0-9a-fA-F]+|[a-zA-Z]{2,8});`)
)

var skipTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Form:     true,
	atom.Button:   true,
	atom.Head:     true,
}

var blockTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.Section:    true,
	atom.Article:    true,
	atom.Header:     true,
	atom.Footer:     true,
	atom.Main:       true,
	atom.Aside:      true,
	atom.Nav:        true,
	atom.Ul:         true,
	atom.Ol:         true,
	atom.Li:         true,
	atom.Dl:         true,
	atom.Dt:         true,
	atom.Dd:         true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Blockquote: true,
	atom.Pre:        true,
	atom.Table:      true,
	atom.Tr:         true,
	atom.Figure:     true,
	atom.Figcaption: true,
	atom.Hr:         true,
}

var zeroWidth = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "", "\u00ad", "")

func LooksLikeHTML(s string) bool {
	return markupPattern.MatchString(s)
}

// ToText converts a feed fragment (HTML or plain text) to clean text with
// paragraphs separated by a blank line. Trailing boilerplate is removed.
func ToText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	if !LooksLikeHTML(raw) {
		unescaped := html.UnescapeString(raw)
		if !LooksLikeHTML(unescaped) {
			return StripBoilerplate(Normalize(unescaped))
		}
		raw = unescaped
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return StripBoilerplate(Normalize(markupPattern.ReplaceAllString(raw, " ")))
	}

	root := doc.Find("body")
	StripBoilerplateHTML(root)
	return SelectionText(root)
}

// SelectionText renders the text of a parsed tree, keeping block structure.
func SelectionText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(&b, n)
	}

	text := b.String()
	if entityPattern.MatchString(text) {
		text = html.UnescapeString(text)
	}
	return Normalize(text)
}

func writeText(b *strings.Builder, n *xhtml.Node) {
	switch n.Type {
	case xhtml.TextNode:
		b.WriteString(strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' || r == '\t' {
				return ' '
			}
			return r
		}, n.Data))
		return
	case xhtml.ElementNode:
		if skipTags[n.DataAtom] {
			return
		}
		if n.DataAtom == atom.Br {
			b.WriteString("\n")
			return
		}
	case xhtml.CommentNode:
		return
	}

	block := n.Type == xhtml.ElementNode && blockTags[n.DataAtom]
	if block {
		b.WriteString("\n\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteString("\n\n")
	}
}

// Normalize collapses whitespace inside lines and runs of empty lines into a
// single blank line. Unicode spaces count as whitespace.
func Normalize(text string) string {
	text = zeroWidth.Replace(norm.NFC.String(text))
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// Paragraphs splits normalized text on blank lines.
func Paragraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
