package format

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"io"
	"strings"
	"text/template"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

const slackText = `*New Relevant Research Paper*
*Title*: {{.Title}}
*Authors*: {{.Authors}}
*Relevance Score*: {{.RelevanceScore}}/10
*Link*: {{.SourceURL}}
{{with .Summary}}
*Executive Summary*
{{.}}
{{end}}{{with .KeyFindings}}
*Key Findings*
{{.}}
{{end}}{{with .Applications}}
*Potential Applications*
{{.}}
{{end}}`

const plainText = `New Relevant Research Paper

Title: {{.Title}}
Authors: {{.Authors}}
Relevance Score: {{.RelevanceScore}}/10
Link: {{.SourceURL}}
{{with .Summary}}
Executive Summary
{{.}}
{{end}}{{with .KeyFindings}}
Key Findings
{{.}}
{{end}}{{with .Applications}}
Potential Applications
{{.}}
{{end}}`

// telegramHTML only uses tags the Bot API HTML mode accepts.
const telegramHTML = `<b>{{.Title}}</b>
<i>{{.Authors}}</i>
Relevance: {{.RelevanceScore}}/10{{if .AbstractOnly}} (abstract only){{end}}
<a href="{{.SourceURL}}">{{.SourceURL}}</a>
{{with .Summary}}
{{.}}
{{end}}{{with .KeyFindings}}
<b>Key findings</b>
{{.}}
{{end}}{{with .Applications}}
<b>Applications</b>
{{.}}
{{end}}`

const emailHTML = `<html><body>
<h2>{{.Title}}</h2>
<p><em>{{.Authors}}</em></p>
<p>Relevance score: <strong>{{.RelevanceScore}}/10</strong><br><a href="{{.SourceURL}}">{{.SourceURL}}</a></p>
{{with .Summary}}<h3>Executive Summary</h3><p>{{.}}</p>{{end}}
{{with .KeyFindings}}<h3>Key Findings</h3><p>{{.}}</p>{{end}}
{{with .Applications}}<h3>Potential Applications</h3><p>{{.}}</p>{{end}}
</body></html>`

// Formatter renders papers with per-channel templates.
type Formatter struct {
	slack     *template.Template
	plain     *template.Template
	telegram  *htmltemplate.Template
	emailHTML *htmltemplate.Template
}

var _ ports.MessageFormatter = (*Formatter)(nil)

// New parses the built-in templates.
func New() *Formatter {
	return &Formatter{
		slack:     template.Must(template.New("slack").Parse(slackText)),
		plain:     template.Must(template.New("plain").Parse(plainText)),
		telegram:  htmltemplate.Must(htmltemplate.New("telegram").Parse(telegramHTML)),
		emailHTML: htmltemplate.Must(htmltemplate.New("email").Parse(emailHTML)),
	}
}

// Subject is the mail subject line for paper.
func Subject(paper domain.Paper) string {
	return "New Research Paper: " + paper.Title
}

// Format renders paper for the given channel type.
func (f *Formatter) Format(paper domain.Paper, channel domain.ChannelType) (domain.Message, error) {
	msg := domain.Message{Subject: Subject(paper)}

	var err error
	switch channel {
	case domain.ChannelSlack:
		msg.Text, err = render(f.slack, paper)
	case domain.ChannelTelegram:
		if msg.Text, err = render(f.plain, paper); err == nil {
			msg.HTML, err = render(f.telegram, paper)
		}
	case domain.ChannelEmail:
		if msg.Text, err = render(f.plain, paper); err == nil {
			msg.HTML, err = render(f.emailHTML, paper)
		}
	default:
		return domain.Message{}, fmt.Errorf("format: unknown channel type %q", channel)
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("format %s message for %s: %w", channel, paper.ID, err)
	}
	return msg, nil
}

type executor interface {
	Execute(w io.Writer, data any) error
}

func render(t executor, paper domain.Paper) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, paper); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
