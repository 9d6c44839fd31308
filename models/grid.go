package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// GridResponse is the decoded body of one listings grid request.
type GridResponse struct {
	Channels []GridChannel `json:"channels"`
}

// GridChannel is a lineup channel together with the events airing in the
// requested window.
type GridChannel struct {
	ChannelNo Text        `json:"channelNo"`
	ChannelID Text        `json:"channelId"`
	CallSign  Text        `json:"callSign"`
	Thumbnail Text        `json:"thumbnail"`
	Events    []GridEvent `json:"events"`
}

// GridEvent is one airing of a program on a channel.
type GridEvent struct {
	Program   GridProgram `json:"program"`
	StartTime Text        `json:"startTime"` // ISO-8601 with local offset
	EndTime   Text        `json:"endTime"`
	Duration  Text        `json:"duration"` // minutes
	Rating    Text        `json:"rating"`
	Filter    []string    `json:"filter"` // e.g. "filter-movie", "filter-news"
	Flag      []string    `json:"flag"`   // e.g. "New", "live"
	Thumbnail Text        `json:"thumbnail"`
}

// GridProgram holds the program-level fields of an event.
type GridProgram struct {
	Title        Text `json:"title"`
	ShortDesc    Text `json:"shortDesc"`
	EpisodeTitle Text `json:"episodeTitle"`
	ReleaseYear  Text `json:"releaseYear"`
	Season       Text `json:"season"` // 1-based
	Episode      Text `json:"episode"`
}

// Text is a scalar grid field. The upstream API is inconsistent about
// quoting numbers (duration, channelNo, season...), so strings, numbers and
// booleans are all accepted and kept in their textual form. null decodes to
// the empty value.
type Text string

// Present reports whether the field carries a non-empty value. Absent, null
// and "" are all treated as missing.
func (t Text) Present() bool {
	return t != ""
}

func (t Text) String() string {
	return string(t)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '{', '[':
		return fmt.Errorf("grid text field: unexpected JSON value %s", truncate(string(data), 32))
	default:
		// numbers and booleans keep their literal spelling
		*t = Text(strings.TrimSpace(string(data)))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
