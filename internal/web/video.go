package web

import (
	"net/url"
	"strings"

	"github.com/kkdai/youtube/v2"
)

var videoPathPrefixes = []string{"/shorts/", "/embed/", "/live/"}

// VideoID extracts the YouTube video id from the common URL shapes:
// watch?v=, youtu.be/, shorts/, embed/ and live/. Other hosts and pages are
// rejected before the id is parsed.
func VideoID(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	switch host {
	case "youtu.be":
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if u.Path != "/watch" && !hasVideoPathPrefix(u.Path) {
			return "", false
		}
	default:
		return "", false
	}

	candidate := u.Path
	if u.RawQuery != "" {
		candidate += "?" + u.RawQuery
	}
	id, err := youtube.ExtractVideoID(candidate)
	if err != nil {
		return "", false
	}
	return id, true
}

// EmbedURL returns the iframe source for raw, or "" when no video id is found.
func EmbedURL(raw string) string {
	id, ok := VideoID(raw)
	if !ok {
		return ""
	}
	return "https://www.youtube.com/embed/" + id
}

func hasVideoPathPrefix(path string) bool {
	for _, prefix := range videoPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
