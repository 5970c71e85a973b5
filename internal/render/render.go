package render

import (
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

// Delimiters of the localization pass. Structural templates use the
// standard {{ }}.
const (
	LocalizeOpen  = "[["
	LocalizeClose = "]]"
)

// Structure renders an HTML template with the structural delimiters. Values
// are escaped for their HTML context.
func Structure(name, tmpl string, data any) (string, error) {
	t, err := htmltemplate.New(name).Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return b.String(), nil
}

// Text renders a plain text template, e.g. a calendar file. The ical and
// icalText functions format values for iCalendar content lines.
func Text(name, tmpl string, data any) (string, error) {
	t, err := texttemplate.New(name).
		Option("missingkey=zero").
		Funcs(texttemplate.FuncMap{
			"ical":     ICalTime,
			"icalText": ICalText,
		}).
		Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return b.String(), nil
}

// Localize substitutes [[.key]] placeholders in markup from dict. Unknown
// keys render as the empty string. Everything outside the delimiters is
// left untouched, including {{ }}.
func Localize(markup string, dict Dictionary) (string, error) {
	t, err := texttemplate.New("localize").
		Delims(LocalizeOpen, LocalizeClose).
		Option("missingkey=zero").
		Parse(markup)
	if err != nil {
		return "", fmt.Errorf("parse localization: %w", err)
	}
	if dict == nil {
		dict = Dictionary{}
	}
	var b strings.Builder
	if err := t.Execute(&b, map[string]string(dict)); err != nil {
		return "", fmt.Errorf("localize: %w", err)
	}
	return b.String(), nil
}

// ICalTime formats a date as an iCalendar UTC date-time. Zero and non-date
// values render empty.
func ICalTime(v any) string {
	t, ok := v.(time.Time)
	if !ok || t.IsZero() {
		return ""
	}
	return t.UTC().Format("20060102T150405Z")
}

var icalEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
)

// ICalText escapes a value for an iCalendar TEXT property.
func ICalText(v any) string {
	if v == nil {
		return ""
	}
	return icalEscaper.Replace(fmt.Sprint(v))
}
