// Package video normalizes third-party video descriptor lists and extracts
// platform video IDs from watch URLs.
package video

import (
	"regexp"

	"github.com/tuanvm/weather-companion/internal/models"
)

// idPattern matches standard and shortened video-platform URL forms and
// captures the 11-character video identifier.
var idPattern = regexp.MustCompile(`(?:https?://)?(?:www\.)?(?:youtube\.com/(?:[^/\n\s]+/\S+/|(?:v|e(?:mbed)?)/|\S*?[?&]v=)|youtu\.be/)([a-zA-Z0-9_-]{11})`)

// ExtractID returns the 11-character video identifier embedded in url, or an
// empty string if the URL does not match any known form.
func ExtractID(url string) string {
	m := idPattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// Normalize filters a raw descriptor list to playable entries: descriptors
// without an ID fall back to the ID extracted from their URL, entries with no
// resolvable ID are dropped, and duplicates are removed keeping first
// occurrence order.
func Normalize(videos []models.Video) []models.Video {
	seen := make(map[string]struct{}, len(videos))
	out := make([]models.Video, 0, len(videos))
	for _, v := range videos {
		if v.ID == "" {
			v.ID = ExtractID(v.URL)
		}
		if v.ID == "" {
			continue
		}
		if _, dup := seen[v.ID]; dup {
			continue
		}
		seen[v.ID] = struct{}{}
		out = append(out, v)
	}
	return out
}
