// Package content prepares blog text for storage and display: slugs,
// HTML sanitizing, markdown rendering and tag lists.
package content

import (
	"bytes"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mozillazg/go-unidecode"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	slugRegex       = regexp.MustCompile(`[^a-z0-9-]+`)
	multipleHyphens = regexp.MustCompile(`-{2,}`)
)

// Slugify transliterates s to ASCII and reduces it to lowercase words joined by hyphens.
func Slugify(s string) string {
	slug := strings.ToLower(unidecode.Unidecode(s))
	slug = strings.Join(strings.Fields(slug), "-")
	slug = slugRegex.ReplaceAllString(slug, "")
	slug = multipleHyphens.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// ParseTags splits a comma separated tag string, trimming blanks and duplicates.
func ParseTags(raw string) []string {
	seen := make(map[string]bool)
	tags := make([]string, 0)
	for _, tag := range strings.Split(raw, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[strings.ToLower(tag)] {
			continue
		}
		seen[strings.ToLower(tag)] = true
		tags = append(tags, tag)
	}
	return tags
}

// Renderer turns stored post content into safe HTML. Content may be HTML from
// the editor or markdown; both pass through goldmark and then the sanitizer.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// Sanitize strips scripts, event handlers and other unsafe markup.
func (r *Renderer) Sanitize(raw string) string {
	return r.policy.Sanitize(raw)
}

func (r *Renderer) Render(raw string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(raw), &buf); err != nil {
		return "", err
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes())), nil
}

// Excerpt returns the first n runes of the visible text of raw.
func (r *Renderer) Excerpt(raw string, n int) string {
	text := strings.Join(strings.Fields(bluemonday.StrictPolicy().Sanitize(raw)), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}
