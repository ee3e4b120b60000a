package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var amendmentTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t *time.Time, layout string) string {
			if t == nil {
				return ""
			}
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/amendment.html")
	if err != nil {
		panic("export: missing embedded amendment template: " + err.Error())
	}
	amendmentTemplate = template.Must(template.New("amendment").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for amendment template rendering
type TemplateData struct {
	Title       string
	Code        string
	GroupName   string
	Status      string
	Supporters  int
	Date        *time.Time
	VersionName string
	ContentHTML template.HTML
	Discussions []TemplateDiscussion
	Route       []TemplateHop
}

// TemplateDiscussion holds one suggestion thread for the appendix
type TemplateDiscussion struct {
	Description    string
	ProposedChange string
	Justification  string
	Status         string
	Resolved       bool
	Comments       []TemplateComment
}

// TemplateComment holds a discussion comment
type TemplateComment struct {
	Author string
	Body   string
}

// TemplateHop holds one forwarding route segment
type TemplateHop struct {
	Position   int
	GroupName  string
	EventTitle string
	EventDate  *time.Time
	Status     string
}

// RenderAmendmentHTML renders the amendment template with provided data
func RenderAmendmentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := amendmentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
