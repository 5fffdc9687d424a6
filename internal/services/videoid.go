package services

import (
	"net/url"
	"regexp"
	"strings"
)

// YouTube video IDs are 11 characters from the URL-safe base64 alphabet.
var (
	videoIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	shortsIDPattern = regexp.MustCompile(`shorts/([A-Za-z0-9_-]{11})`)

	// One combined pattern covering watch, embed, /v/, shorts and youtu.be
	// forms. Checked before the structural parse because it is cheap and
	// handles scheme-less input.
	combinedIDPattern = regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.)?(?:youtube|youtu|youtube-nocookie)\.(?:com|be)/(?:watch\?v=|embed/|v/|shorts/|live/|.+\?v=)?([A-Za-z0-9_-]{11})`)
)

// ResolveVideoID extracts the canonical 11-character video identifier from
// any recognized YouTube URL shape. The shorts pattern runs first whenever
// the URL mentions shorts, because the generic pattern can mis-extract on
// shorts URLs.
func ResolveVideoID(rawURL string) (string, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return "", ErrInvalidURL
	}

	if strings.Contains(strings.ToLower(s), "shorts") {
		if m := shortsIDPattern.FindStringSubmatch(s); m != nil {
			return m[1], nil
		}
	}

	if m := combinedIDPattern.FindStringSubmatch(s); m != nil {
		return m[1], nil
	}

	return resolveStructurally(s)
}

// resolveStructurally parses the URL properly and applies per-host extraction
// rules: the v query parameter on youtube.com hosts, the last path segment on
// youtu.be and embed-style paths.
func resolveStructurally(s string) (string, error) {
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", ErrInvalidURL
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	switch host {
	case "youtu.be":
		if id := lastPathSegment(u.Path); videoIDPattern.MatchString(id) {
			return id, nil
		}

	case "youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); videoIDPattern.MatchString(v) {
			return v, nil
		}

		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segments) == 2 {
			switch segments[0] {
			case "embed", "v", "shorts", "live":
				if videoIDPattern.MatchString(segments[1]) {
					return segments[1], nil
				}
			}
		}
	}

	return "", ErrInvalidURL
}

func lastPathSegment(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return ""
	}
	segments := strings.Split(trimmed, "/")
	return segments[len(segments)-1]
}

// IsValidYouTubeURL reports whether a video ID can be isolated from the URL.
func IsValidYouTubeURL(rawURL string) bool {
	_, err := ResolveVideoID(rawURL)
	return err == nil
}
