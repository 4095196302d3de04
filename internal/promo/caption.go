package promo

import "strings"

// CaptionParts are the pieces joined into a platform caption, in order.
type CaptionParts struct {
	Title   string
	Excerpt string
	Tags    string
	URL     string
}

// BuildCaption joins the non-empty parts with blank lines and truncates the
// result to limit runes. Tags are normalized into hashtags first.
func BuildCaption(parts CaptionParts, limit int) string {
	sections := make([]string, 0, 4)
	for _, s := range []string{
		strings.TrimSpace(parts.Title),
		strings.TrimSpace(parts.Excerpt),
		NormalizeHashtags(parts.Tags),
		strings.TrimSpace(parts.URL),
	} {
		if s != "" {
			sections = append(sections, s)
		}
	}

	caption := strings.Join(sections, "\n\n")
	if limit > 0 {
		if runes := []rune(caption); len(runes) > limit {
			caption = string(runes[:limit])
		}
	}
	return caption
}

// NormalizeHashtags turns a comma- or space-separated tag list into hashtag
// tokens: internal punctuation is stripped and each token is prefixed with #.
func NormalizeHashtags(raw string) string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})

	tags := make([]string, 0, len(fields))
	for _, field := range fields {
		var b strings.Builder
		for _, r := range field {
			if r == '#' || r == ' ' {
				continue
			}
			if isPunct(r) {
				continue
			}
			b.WriteRune(r)
		}
		if b.Len() == 0 {
			continue
		}
		tags = append(tags, "#"+b.String())
	}

	return strings.Join(tags, " ")
}

func isPunct(r rune) bool {
	switch r {
	case '.', ',', ';', ':', '!', '?', '\'', '"', '(', ')', '[', ']', '{', '}', '/', '\\', '-', '_', '&', '%', '$', '@', '*', '+', '=', '~', '`', '|', '<', '>':
		return true
	}
	return false
}
