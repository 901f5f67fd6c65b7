// Package catalog holds the fixed content choices offered to users: confession
// tags, persona emoji, gender options and the community rules.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yml
var embedded []byte

// OtherTag is applied by auto-tagging.
const OtherTag = "Other"

type Rule struct {
	Name  string   `yaml:"name" json:"name"`
	Text  string   `yaml:"text" json:"text"`
	Notes []string `yaml:"notes" json:"notes,omitempty"`
}

type Rules struct {
	Title   string `yaml:"title" json:"title"`
	Intro   string `yaml:"intro" json:"intro"`
	Items   []Rule `yaml:"items" json:"items"`
	Closing string `yaml:"closing" json:"closing"`
}

// Catalog is immutable after Load.
type Catalog struct {
	Tags    []string `yaml:"tags" json:"tags"`
	Emoji   []string `yaml:"emoji" json:"emoji"`
	Genders []string `yaml:"genders" json:"genders"`
	Rules   Rules    `yaml:"rules" json:"rules"`

	tagSet    map[string]struct{}
	emojiSet  map[string]struct{}
	genderSet map[string]struct{}
}

// Load parses a catalog document.
func Load(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Tags) == 0 || len(c.Emoji) == 0 || len(c.Genders) == 0 {
		return nil, fmt.Errorf("catalog must list tags, emoji and genders")
	}
	c.tagSet = toSet(c.Tags)
	c.emojiSet = toSet(c.Emoji)
	c.genderSet = toSet(c.Genders)
	if _, ok := c.tagSet[OtherTag]; !ok {
		return nil, fmt.Errorf("catalog is missing the %q tag", OtherTag)
	}
	return &c, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(embedded)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

func (c *Catalog) IsTag(tag string) bool {
	_, ok := c.tagSet[tag]
	return ok
}

func (c *Catalog) IsEmoji(emoji string) bool {
	_, ok := c.emojiSet[emoji]
	return ok
}

func (c *Catalog) IsGender(gender string) bool {
	_, ok := c.genderSet[gender]
	return ok
}

// RulesText renders the rules as a numbered plain-text message.
func (c *Catalog) RulesText() string {
	var b strings.Builder
	b.WriteString(c.Rules.Title)
	b.WriteString("\n\n")
	b.WriteString(c.Rules.Intro)
	b.WriteString("\n\n")
	for i, r := range c.Rules.Items {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, r.Name, r.Text)
		for _, n := range r.Notes {
			fmt.Fprintf(&b, "   - %s\n", n)
		}
		b.WriteString("\n")
	}
	b.WriteString(c.Rules.Closing)
	return b.String()
}
