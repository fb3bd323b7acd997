package delivery

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/osteele/liquid"
	"github.com/rijksuitgaven/mailengine/internal/domain"
)

const (
	brandName    = "Rijksuitgaven.nl"
	contactEmail = "contact@rijksuitgaven.nl"
	zwj          = "\u200d"
)

var (
	paragraphBreak = regexp.MustCompile(`\n{2,}`)
	brandDomain    = regexp.MustCompile(`(?i)\b(rijksuitgaven\.)(nl)\b`)

	htmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#039;",
	)
)

// Recipient carries the per-recipient personalization.
type Recipient struct {
	FirstName      string
	UnsubscribeURL string
}

// Rendered is the HTML and plain-text form of one message.
type Rendered struct {
	HTML string
	Text string
}

// Renderer turns message content into the branded layout. It is safe for
// concurrent use.
type Renderer struct {
	html    *liquid.Template
	text    *liquid.Template
	siteURL string
}

// NewRenderer parses the layouts. siteURL is the public site root used for
// the logo and brand link.
func NewRenderer(siteURL string) (*Renderer, error) {
	engine := liquid.NewEngine()
	engine.RegisterFilter("escape", EscapeHTML)

	html, err := engine.ParseString(htmlLayout)
	if err != nil {
		return nil, fmt.Errorf("parse html layout: %w", err)
	}
	text, err := engine.ParseString(textLayout)
	if err != nil {
		return nil, fmt.Errorf("parse text layout: %w", err)
	}
	return &Renderer{html: html, text: text, siteURL: strings.TrimRight(siteURL, "/")}, nil
}

// Render produces the HTML and plain-text bodies of c for rcpt.
func (r *Renderer) Render(c domain.Content, rcpt Recipient) (Rendered, error) {
	greeting := Greeting(rcpt.FirstName)
	bindings := map[string]any{
		"subject":         c.Subject,
		"heading":         DefangBrand(c.Heading),
		"preheader":       DefangBrand(c.Preheader),
		"greeting":        greeting,
		"greeting_html":   EscapeHTML(greeting),
		"body":            DefangBrand(normalizeNewlines(c.Body)),
		"body_html":       BodyToHTML(c.Body),
		"cta_text":        c.CTAText,
		"cta_url":         c.CTAURL,
		"site_url":        r.siteURL,
		"logo_url":        r.siteURL + "/logo.png",
		"brand":           DefangBrand(brandName),
		"contact_email":   contactEmail,
		"unsubscribe_url": rcpt.UnsubscribeURL,
		"preferences_url": PreferencesURL(rcpt.UnsubscribeURL),
	}

	html, err := r.html.RenderString(bindings)
	if err != nil {
		return Rendered{}, fmt.Errorf("render html: %w", err)
	}
	text, err := r.text.RenderString(bindings)
	if err != nil {
		return Rendered{}, fmt.Errorf("render text: %w", err)
	}
	return Rendered{HTML: html, Text: text}, nil
}

// Greeting returns the salutation line.
func Greeting(firstName string) string {
	firstName = strings.TrimSpace(firstName)
	if firstName == "" {
		return "Beste lezer,"
	}
	return "Beste " + firstName + ","
}

// BodyToHTML escapes body and converts blank-line separated blocks to
// paragraphs and single newlines to line breaks.
func BodyToHTML(body string) string {
	var b strings.Builder
	for _, para := range paragraphBreak.Split(normalizeNewlines(body), -1) {
		para = strings.ReplaceAll(EscapeHTML(DefangBrand(para)), "\n", "<br />")
		b.WriteString(`<p style="margin: 0 0 16px 0;">`)
		b.WriteString(para)
		b.WriteString("</p>")
	}
	return b.String()
}

// EscapeHTML escapes the five HTML-significant characters.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// DefangBrand inserts a zero-width joiner after the dot of the brand domain
// so mail clients do not auto-link it.
func DefangBrand(s string) string {
	return brandDomain.ReplaceAllString(s, "${1}"+zwj+"${2}")
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
