package export

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// Node is one node of the editor's document tree.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Node         `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

// Mark is a text formatting mark.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// RenderHTML converts stored editor JSON to HTML. Malformed input renders
// to an empty string.
func RenderHTML(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var root Node
	if err := json.Unmarshal(raw, &root); err != nil {
		return ""
	}
	return root.render()
}

func (n Node) render() string {
	switch n.Type {
	case "doc":
		return n.renderContent()
	case "paragraph":
		return fmt.Sprintf("<p>%s</p>\n", n.renderContent())
	case "heading":
		level := n.intAttr("level", 1)
		if level < 1 || level > 6 {
			level = 1
		}
		return fmt.Sprintf("<h%d>%s</h%d>\n", level, n.renderContent(), level)
	case "bulletList":
		return fmt.Sprintf("<ul>\n%s</ul>\n", n.renderContent())
	case "orderedList":
		return fmt.Sprintf("<ol>\n%s</ol>\n", n.renderContent())
	case "listItem":
		return fmt.Sprintf("<li>%s</li>\n", n.renderContent())
	case "blockquote":
		return fmt.Sprintf("<blockquote>\n%s</blockquote>\n", n.renderContent())
	case "codeBlock":
		return fmt.Sprintf("<pre><code>%s</code></pre>\n", html.EscapeString(n.plainText()))
	case "text":
		return n.renderText()
	case "hardBreak":
		return "<br>"
	case "table":
		return fmt.Sprintf("<table>\n%s</table>\n", n.renderContent())
	case "tableRow":
		return fmt.Sprintf("<tr>\n%s</tr>\n", n.renderContent())
	case "tableCell":
		return fmt.Sprintf("<td>%s</td>\n", n.renderContent())
	case "tableHeader":
		return fmt.Sprintf("<th>%s</th>\n", n.renderContent())
	case "horizontalRule":
		return "<hr>\n"
	default:
		// Unknown node, render what it contains.
		return n.renderContent()
	}
}

func (n Node) renderContent() string {
	var b strings.Builder
	for _, child := range n.Content {
		b.WriteString(child.render())
	}
	return b.String()
}

func (n Node) plainText() string {
	if n.Type == "text" {
		return n.Text
	}
	var b strings.Builder
	for _, child := range n.Content {
		b.WriteString(child.plainText())
	}
	return b.String()
}

func (n Node) renderText() string {
	if n.Text == "" {
		return ""
	}
	out := html.EscapeString(n.Text)

	// Marks wrap from the inside out, so the first mark ends up outermost.
	for i := len(n.Marks) - 1; i >= 0; i-- {
		mark := n.Marks[i]
		switch mark.Type {
		case "bold", "strong":
			out = "<strong>" + out + "</strong>"
		case "italic", "em":
			out = "<em>" + out + "</em>"
		case "code":
			out = "<code>" + out + "</code>"
		case "link":
			href, _ := mark.Attrs["href"].(string)
			out = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(href), out)
		case "strike":
			out = "<s>" + out + "</s>"
		case "underline":
			out = "<u>" + out + "</u>"
		}
	}
	return out
}

func (n Node) intAttr(key string, fallback int) int {
	v, ok := n.Attrs[key]
	if !ok {
		return fallback
	}
	f, ok := v.(float64)
	if !ok {
		return fallback
	}
	return int(f)
}
