package normalize

import (
	"net/url"
	"regexp"
	"strings"
)

var bareVideoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ExtractYouTubeID returns the 11-character video id carried by s, or "".
//
// Accepted: a bare id, youtu.be/<id>, youtube.com/watch?v=<id>,
// youtube.com/embed/<id> and youtube.com/shorts/<id> (www. and m. hosts
// included, scheme optional).
func ExtractYouTubeID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if bareVideoIDRe.MatchString(s) {
		return s
	}
	if !strings.Contains(s, "://") && !strings.HasPrefix(s, "//") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string
	switch host {
	case "youtu.be":
		id = segs[0]
	case "youtube.com":
		switch {
		case len(segs) == 1 && segs[0] == "watch":
			id = u.Query().Get("v")
		case len(segs) >= 2 && (segs[0] == "embed" || segs[0] == "shorts"):
			id = segs[1]
		}
	}
	if bareVideoIDRe.MatchString(id) {
		return id
	}
	return ""
}
