package resolve

import "strings"

// Hint is structured metadata recovered from an in-band ICY stream title.
// It is never trusted for identification on its own, only used to steer the
// metadata probe.
type Hint struct {
	Artist string
	Title  string
}

var hintSeparators = []string{" - ", " — ", " – "}

// ParseHint splits a StreamTitle of the shape "Artist - Title". Unstructured
// titles return ok=false and the metadata probe is skipped.
func ParseHint(streamTitle string) (Hint, bool) {
	streamTitle = strings.TrimSpace(streamTitle)
	if streamTitle == "" {
		return Hint{}, false
	}
	for _, sep := range hintSeparators {
		if idx := strings.Index(streamTitle, sep); idx > 0 {
			artist := strings.TrimSpace(streamTitle[:idx])
			title := strings.TrimSpace(streamTitle[idx+len(sep):])
			if artist != "" && title != "" {
				return Hint{Artist: artist, Title: title}, true
			}
		}
	}
	return Hint{}, false
}
