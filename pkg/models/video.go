package models

// VideoIndexRow is one line of the resolver output. An empty YouTubeID
// means no allowlisted video was found for Title.
type VideoIndexRow struct {
	Title        string  `json:"title"`
	YouTubeID    string  `json:"youtubeId"`
	MatchTitle   string  `json:"matchTitle"`
	ChannelTitle string  `json:"channelTitle"`
	ChannelID    string  `json:"channelId"`
	Confidence   float64 `json:"confidence"`
}

// Resolved reports whether the row points at a video.
func (r VideoIndexRow) Resolved() bool { return r.YouTubeID != "" }
