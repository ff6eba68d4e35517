package digest

import (
	"fmt"

	"github.com/osteele/liquid"

	"github.com/funnellens/funnellens/internal/domain"
	"github.com/funnellens/funnellens/internal/service/recommendation"
)

// Message is one rendered digest.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

const (
	subjectTemplate = `{{ creator_name }}: {% if increase.size > 0 %}post more {{ increase | join: ", " }}{% else %}your {{ period_days }}-day content report{% endif %}`

	textTemplate = `Hi {{ creator_name | default: "there" }},

{% if increase.size > 0 %}Do more: {{ increase | join: ", " }}
{% endif %}{% if decrease.size > 0 %}Do less: {{ decrease | join: ", " }}
{% endif %}{% if test.size > 0 %}Worth testing: {{ test | join: ", " }}
{% endif %}
{{ report_text }}
`

	htmlTemplate = `<html><body>
<p>Hi {{ creator_name | default: "there" | escape }},</p>
{% if increase.size > 0 %}<p><strong>Do more:</strong> {{ increase | join: ", " | escape }}</p>{% endif %}
{% if decrease.size > 0 %}<p><strong>Do less:</strong> {{ decrease | join: ", " | escape }}</p>{% endif %}
{% if test.size > 0 %}<p><strong>Worth testing:</strong> {{ test | join: ", " | escape }}</p>{% endif %}
<pre style="font-family:monospace">{{ report_text | escape }}</pre>
</body></html>`
)

// Renderer compiles the digest templates once and renders them per report.
type Renderer struct {
	subject *liquid.Template
	text    *liquid.Template
	html    *liquid.Template
}

// NewRenderer parses the built-in templates.
func NewRenderer() (*Renderer, error) {
	engine := liquid.NewEngine()

	r := &Renderer{}
	for _, t := range []struct {
		dst **liquid.Template
		src string
	}{
		{&r.subject, subjectTemplate},
		{&r.text, textTemplate},
		{&r.html, htmlTemplate},
	} {
		tpl, err := engine.ParseString(t.src)
		if err != nil {
			return nil, fmt.Errorf("parse digest template: %w", err)
		}
		*t.dst = tpl
	}
	return r, nil
}

func labels(cts []domain.ContentType) []string {
	out := make([]string, 0, len(cts))
	for _, ct := range cts {
		if e, ok := domain.Taxonomy[ct]; ok {
			out = append(out, e.Label)
			continue
		}
		out = append(out, string(ct))
	}
	return out
}

// Render builds the message for one creator. The recipient is the creator's
// notification address.
func (r *Renderer) Render(creator domain.Creator, report *recommendation.Report) (*Message, error) {
	quick := recommendation.Quick(report)
	bindings := map[string]any{
		"creator_name": creator.Name,
		"period_days":  report.PeriodDays,
		"increase":     labels(quick.Actions.Increase),
		"decrease":     labels(quick.Actions.Decrease),
		"test":         labels(quick.Actions.Test),
		"report_text":  recommendation.FormatText(report),
	}

	subject, err := r.subject.RenderString(bindings)
	if err != nil {
		return nil, fmt.Errorf("render subject: %w", err)
	}
	text, err := r.text.RenderString(bindings)
	if err != nil {
		return nil, fmt.Errorf("render text body: %w", err)
	}
	html, err := r.html.RenderString(bindings)
	if err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}
	return &Message{To: creator.NotificationEmail, Subject: subject, Text: text, HTML: html}, nil
}
