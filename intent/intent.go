// Package intent guesses which media a chat message asks for using regular
// expression rules.
//
// A rule matches when all of its expressions match the message. A media kind
// is expected when any of its rules matches. Matching is case-insensitive.
// Rules can be loaded from YAML:
//
//	image:
//	  - all: ['\b(generate|create|make)\b', '\b(image|photo|picture)s?\b']
//	audio:
//	  - all: ['\bread (it |this )?aloud\b']
package intent

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/fwojciec/omni"
	"gopkg.in/yaml.v3"
)

// Interface compliance check.
var _ omni.Classifier = (*Classifier)(nil)

// Rule is a conjunction of regular expressions.
type Rule struct {
	All []string `yaml:"all"`
}

// Patterns holds the rules for each media kind.
type Patterns struct {
	Image []Rule `yaml:"image"`
	Audio []Rule `yaml:"audio"`
	Doc   []Rule `yaml:"doc"`
}

var (
	creationVerbs = `\b(generate|create|make|draw|render|produce)\b`
	audioVerbs    = `\b(generate|create|make|convert|turn|record|narrate)\b`
	docVerbs      = `\b(generate|create|make|write|draft|export|prepare)\b`
)

// DefaultPatterns returns the built-in rules: a creation verb together with
// a media noun, plus direct phrases for speech.
func DefaultPatterns() Patterns {
	return Patterns{
		Image: []Rule{
			{All: []string{creationVerbs, `\b(image|photo|picture|illustration|drawing)s?\b`}},
		},
		Audio: []Rule{
			{All: []string{audioVerbs, `\b(audio|voice|speech|tts|mp3)\b`}},
			{All: []string{`\b(read (it |this |that )?(out )?aloud|text[- ]to[- ]speech|speak)\b`}},
		},
		Doc: []Rule{
			{All: []string{docVerbs, `\b(doc|docs|document|pdf|notes|report)\b`}},
		},
	}
}

// Load decodes patterns from YAML. Unknown keys are rejected.
func Load(data []byte) (Patterns, error) {
	var p Patterns
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Patterns{}, fmt.Errorf("intent: decode patterns: %w", err)
	}
	return p, nil
}

// LoadFile decodes patterns from the YAML file at path.
func LoadFile(path string) (Patterns, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Patterns{}, fmt.Errorf("intent: %w", err)
	}
	return Load(data)
}

type compiledRule []*regexp.Regexp

func (r compiledRule) match(text string) bool {
	if len(r) == 0 {
		return false
	}
	for _, re := range r {
		if !re.MatchString(text) {
			return false
		}
	}
	return true
}

// Classifier implements [omni.Classifier] with compiled rules.
type Classifier struct {
	rules map[omni.MediaKind][]compiledRule
}

// New compiles p into a Classifier.
func New(p Patterns) (*Classifier, error) {
	c := &Classifier{rules: make(map[omni.MediaKind][]compiledRule)}
	for kind, rules := range map[omni.MediaKind][]Rule{
		omni.MediaImage: p.Image,
		omni.MediaAudio: p.Audio,
		omni.MediaDoc:   p.Doc,
	} {
		for i, r := range rules {
			var cr compiledRule
			for _, expr := range r.All {
				re, err := regexp.Compile("(?i)" + expr)
				if err != nil {
					return nil, fmt.Errorf("intent: %s rule %d: %w", kind, i, err)
				}
				cr = append(cr, re)
			}
			c.rules[kind] = append(c.rules[kind], cr)
		}
	}
	return c, nil
}

// Default returns a Classifier using [DefaultPatterns].
func Default() *Classifier {
	c, err := New(DefaultPatterns())
	if err != nil {
		panic(err)
	}
	return c
}

// Classify reports the media kinds text asks for. It never fails.
func (c *Classifier) Classify(_ context.Context, text string) (omni.ExpectedMedia, error) {
	return c.Match(text), nil
}

// Match is Classify without a context.
func (c *Classifier) Match(text string) omni.ExpectedMedia {
	var e omni.ExpectedMedia
	for _, kind := range omni.MediaKinds {
		for _, r := range c.rules[kind] {
			if r.match(text) {
				e = e.With(kind)
				break
			}
		}
	}
	return e
}
