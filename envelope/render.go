package envelope

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// headingTags are searched, in document order, for a result title.
var headingTags = map[string]bool{"h1": true, "h2": true, "h3": true}

// Renderer converts generated HTML for delivery.
type Renderer struct {
	converter *md.Converter
}

// NewRenderer creates a renderer with GitHub-flavored markdown output.
func NewRenderer() *Renderer {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Renderer{converter: converter}
}

// Markdown converts an HTML fragment to markdown.
func (r *Renderer) Markdown(content string) (string, error) {
	markdown, err := r.converter.ConvertString(content)
	if err != nil {
		return "", err
	}
	return cleanMarkdown(markdown), nil
}

// ExtractTitle returns the text of the first h1, h2 or h3 element in an HTML
// fragment, or "" when there is none.
func ExtractTitle(content string) string {
	if !strings.Contains(content, "<h") {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return ""
	}

	var heading *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if heading != nil {
			return
		}
		if n.Type == html.ElementNode && headingTags[n.Data] {
			heading = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)

	if heading == nil {
		return ""
	}
	return strings.Join(strings.Fields(textContent(heading)), " ")
}

// textContent concatenates all text below n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// cleanMarkdown cleans up converted markdown.
func cleanMarkdown(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
