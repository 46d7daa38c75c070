package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names
const (
	TemplateContactNotice      = "contact_notice"
	TemplateContactAck         = "contact_ack"
	TemplateNewsletterWelcome  = "newsletter_welcome"
	TemplateNewsletterNotice   = "newsletter_notice"
	TemplateApplicationNotice  = "application_notice"
	TemplateApplicationReceipt = "application_receipt"
	TemplateStatusUpdate       = "status_update"
)

// Content is the output of rendering one template
type Content struct {
	Subject string
	HTML    string
	Text    string
}

// Renderer renders the embedded email templates
type Renderer struct {
	siteName string
	tmpl     *template.Template
}

// NewRenderer parses the embedded templates
func NewRenderer(siteName string) (*Renderer, error) {
	tmpl, err := template.New("mail").Funcs(template.FuncMap{
		"date": func(t time.Time) string {
			return t.UTC().Format("02 Jan 2006 15:04 MST")
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &Renderer{siteName: siteName, tmpl: tmpl}, nil
}

type templateData struct {
	Site string
	Data any
}

// Render executes template name with data. Each template has a matching
// "<name>_subject" definition.
func (r *Renderer) Render(name string, data any) (*Content, error) {
	td := templateData{Site: r.siteName, Data: data}

	var subject bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&subject, name+"_subject", td); err != nil {
		return nil, fmt.Errorf("failed to render %s subject: %w", name, err)
	}

	var body bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&body, name, td); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}

	text, err := PlainText(body.String())
	if err != nil {
		return nil, err
	}

	return &Content{
		Subject: html.UnescapeString(strings.Join(strings.Fields(subject.String()), " ")),
		HTML:    body.String(),
		Text:    text,
	}, nil
}

// Email renders template name into an Email addressed to the given recipients
func (r *Renderer) Email(name string, data any, replyTo string, to ...string) (*Email, error) {
	content, err := r.Render(name, data)
	if err != nil {
		return nil, err
	}

	return &Email{
		To:      to,
		ReplyTo: replyTo,
		Subject: content.Subject,
		HTML:    content.HTML,
		Text:    content.Text,
	}, nil
}

// PlainText derives the text/plain alternative of an HTML email
func PlainText(body string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse email html: %w", err)
	}

	doc.Find("head, style, script").Remove()

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		label := strings.TrimSpace(s.Text())
		if href != "" && href != label && !strings.HasPrefix(href, "mailto:") {
			s.SetText(label + " (" + href + ")")
		}
	})

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, h1, h2, h3, li, tr, div, table").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	doc.Find("td, th").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	var (
		lines []string
		blank bool
	)
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(lines) > 0 {
				lines = append(lines, "")
			}
			blank = true
			continue
		}
		blank = false
		lines = append(lines, line)
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
