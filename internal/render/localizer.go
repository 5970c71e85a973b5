package render

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Dictionary maps localization keys to translated strings.
type Dictionary map[string]string

// ParseDictionary decodes a JSON language file. Strings are normalized to
// NFC so that composed and decomposed umlauts compare equal.
func ParseDictionary(b []byte) (Dictionary, error) {
	var raw map[string]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}
	d := make(Dictionary, len(raw))
	for k, v := range raw {
		d[k] = norm.NFC.String(v)
	}
	return d, nil
}

// Resolver yields resource bytes by logical path.
type Resolver interface {
	Resolve(ctx context.Context, path string) ([]byte, error)
}

// Localizer loads the dictionary best matching a language preference.
type Localizer struct {
	resolver  Resolver
	languages []string
	matcher   language.Matcher
}

// NewLocalizer returns a localizer over the available languages. The first
// language is the fallback.
func NewLocalizer(r Resolver, languages []string) (*Localizer, error) {
	if len(languages) == 0 {
		return nil, fmt.Errorf("localizer: no languages")
	}
	tags := make([]language.Tag, len(languages))
	for i, l := range languages {
		tag, err := language.Parse(l)
		if err != nil {
			return nil, fmt.Errorf("localizer: language %q: %w", l, err)
		}
		tags[i] = tag
	}
	return &Localizer{
		resolver:  r,
		languages: append([]string(nil), languages...),
		matcher:   language.NewMatcher(tags),
	}, nil
}

// Match returns the available language for an Accept-Language value.
func (l *Localizer) Match(accept string) string {
	_, i := language.MatchStrings(l.matcher, accept)
	return l.languages[i]
}

// Dictionary loads /lang/<code>.json for the language matching accept.
func (l *Localizer) Dictionary(ctx context.Context, accept string) (Dictionary, error) {
	code := l.Match(accept)
	b, err := l.resolver.Resolve(ctx, DictionaryPath(code))
	if err != nil {
		return nil, fmt.Errorf("load dictionary %s: %w", code, err)
	}
	return ParseDictionary(b)
}

// DictionaryPath is the resource path of a language file.
func DictionaryPath(code string) string {
	return "/lang/" + code + ".json"
}

type languageKey struct{}

// WithLanguage stores a language preference (Accept-Language syntax) in ctx.
func WithLanguage(ctx context.Context, accept string) context.Context {
	return context.WithValue(ctx, languageKey{}, accept)
}

// LanguageFrom returns the preference stored by WithLanguage, or "".
func LanguageFrom(ctx context.Context) string {
	accept, _ := ctx.Value(languageKey{}).(string)
	return accept
}
