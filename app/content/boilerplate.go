package content

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
)

// Multi-word phrases are unambiguous and may follow any whitespace.
const boilerplatePhrase = `(?:читать\s+далее|читать\s+полностью|читать\s+продолжение|подробнее\s+на\s+сайте|read\s+more|continue\s+reading|more\s+details|(?:источник|source)\s*:[^\n]*)`

// Single words also occur in ordinary sentences, so they must follow
// sentence punctuation or start the text.
const boilerplateWord = `(?:подробнее|далее|details)`

const (
	space       = `[\s\x{00A0}]`
	opening     = space + `*[\[(«]?` + space + `*`
	closing     = space + `*[.…]*` + space + `*(?:→|»|>>|›|\]|\))?` + space + `*$`
	punctuation = `[\n.!?…:;»"”)\]]`
)

var (
	boilerplateTails = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(^|` + punctuation + `|` + space + `)` + opening + boilerplatePhrase + closing),
		regexp.MustCompile(`(?i)(^|` + punctuation + `)` + opening + boilerplateWord + closing),
	}

	// Text that consists of a phrase only.
	boilerplateWhole = regexp.MustCompile(`(?i)^` + opening + `(?:` + boilerplatePhrase + `|` + boilerplateWord + `)` + closing)
)

// StripBoilerplate removes trailing "read more"/"source" phrases from plain
// text. It repeats until nothing changes, so applying it twice is a no-op.
func StripBoilerplate(text string) string {
	text = strings.TrimRightFunc(text, isSpace)
	for {
		stripped := text
		for _, tail := range boilerplateTails {
			stripped = strings.TrimRightFunc(tail.ReplaceAllString(stripped, "$1"), isSpace)
		}
		if stripped == text {
			return text
		}
		text = stripped
	}
}

func IsBoilerplate(text string) bool {
	return boilerplateWhole.MatchString(text)
}

// StripBoilerplateHTML edits the tree under root: trailing elements whose whole
// text is boilerplate are removed, and a boilerplate suffix of the last text
// node is cut off.
func StripBoilerplateHTML(root *goquery.Selection) {
	if root.Length() == 0 {
		return
	}
	top := root.Get(0)

	for {
		last := lastTextNode(top)
		if last == nil {
			return
		}

		if IsBoilerplate(last.Data) {
			target := last
			for p := last.Parent; p != nil && p != top; p = p.Parent {
				if !IsBoilerplate(nodeText(p)) {
					break
				}
				target = p
			}
			target.Parent.RemoveChild(target)
			continue
		}

		stripped := StripBoilerplate(last.Data)
		if stripped == strings.TrimRightFunc(last.Data, isSpace) {
			return
		}
		last.Data = stripped
	}
}

func lastTextNode(n *xhtml.Node) *xhtml.Node {
	for c := n.LastChild; c != nil; c = c.PrevSibling {
		switch c.Type {
		case xhtml.TextNode:
			if strings.TrimFunc(c.Data, isSpace) != "" {
				return c
			}
		case xhtml.ElementNode:
			if skipTags[c.DataAtom] {
				continue
			}
			if found := lastTextNode(c); found != nil {
				return found
			}
		}
	}
	return nil
}

func nodeText(n *xhtml.Node) string {
	var b strings.Builder
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == xhtml.ElementNode && skipTags[n.DataAtom] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r' || r == '\u00a0'
}
