// Package tweet turns one clean JSON record into a language code and the set
// of hashtags it mentions.
//
// Expected record shape (extra fields are ignored):
//
//	{"doc":{"lang":"en","text":"hi #Foo","entities":{"hashtags":[{"text":"Foo"}]}}}
//
// A Classifier is immutable after New and safe for concurrent use.
package tweet

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Separator is the wire key separator; keys must never contain it.
const Separator = ","

// DefaultPattern matches a '#' followed by letters, digits or underscore.
const DefaultPattern = `#[\p{L}\p{N}_]+`

var (
	// ErrMissingField is returned when doc, doc.lang or doc.text is absent.
	ErrMissingField = errors.New("tweet: missing field")
	// ErrBadLang is returned for a language code that cannot be put on the wire.
	ErrBadLang = errors.New("tweet: invalid language code")
)

// Result is the classification of one record.
type Result struct {
	Lang     string
	Hashtags []string // distinct, normalized, sorted
}

// Classifier extracts a language and hashtags from a record.
type Classifier struct {
	pattern *regexp.Regexp
}

// New compiles pattern (DefaultPattern when empty) into a Classifier.
func New(pattern string) (*Classifier, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("tweet: compile pattern: %w", err)
	}
	return &Classifier{pattern: re}, nil
}

// MustNew is New for the default pattern; it panics on error.
func MustNew() *Classifier {
	c, err := New("")
	if err != nil {
		panic(err)
	}
	return c
}

type record struct {
	Doc *struct {
		Lang     *string `json:"lang"`
		Text     *string `json:"text"`
		Entities struct {
			Hashtags []struct {
				Text string `json:"text"`
			} `json:"hashtags"`
		} `json:"entities"`
	} `json:"doc"`
}

// Classify parses rec and returns its language and distinct hashtags.
// Hashtags from doc.entities.hashtags count only when "#"+text fully
// matches the pattern.
func (c *Classifier) Classify(rec []byte) (Result, error) {
	var r record
	if err := json.Unmarshal(rec, &r); err != nil {
		return Result{}, fmt.Errorf("tweet: decode: %w", err)
	}
	if r.Doc == nil {
		return Result{}, fmt.Errorf("%w: doc", ErrMissingField)
	}
	if r.Doc.Lang == nil {
		return Result{}, fmt.Errorf("%w: doc.lang", ErrMissingField)
	}
	if r.Doc.Text == nil {
		return Result{}, fmt.Errorf("%w: doc.text", ErrMissingField)
	}
	lang := *r.Doc.Lang
	if strings.Contains(lang, Separator) {
		return Result{}, fmt.Errorf("%w: %q", ErrBadLang, lang)
	}

	seen := make(map[string]struct{})
	// Compose first: the pattern has no \p{M}, so a decomposed accent would
	// cut the match short.
	text := norm.NFC.String(*r.Doc.Text)
	for _, m := range c.pattern.FindAllString(text, -1) {
		seen[Normalize(m)] = struct{}{}
	}
	for _, h := range r.Doc.Entities.Hashtags {
		tag := "#" + norm.NFC.String(h.Text)
		if loc := c.pattern.FindStringIndex(tag); loc != nil && loc[0] == 0 && loc[1] == len(tag) {
			seen[Normalize(tag)] = struct{}{}
		}
	}

	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return Result{Lang: lang, Hashtags: tags}, nil
}

// Normalize returns the counting key for a hashtag: NFC form, lowercase.
func Normalize(tag string) string {
	return strings.ToLower(norm.NFC.String(tag))
}
