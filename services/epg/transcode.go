package epg

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"zap2xml/config"
	"zap2xml/models"
)

const (
	xmltvTimeLayout = "20060102150405 -0700"
	programIconURL  = "https://zap2it.tmsimg.com/assets/%s.jpg"
	filterPrefix    = "filter-"
	lang            = "en"
)

var categoryNames = map[string]string{
	"family": "Children's / Youth programs",
	"movie":  "Movie / Drama",
	"news":   "News / Current affairs",
	"talk":   "Talk show",
}

// Offset-less layouts are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// EpisodeNumberError reports a season or episode that is not a base-10
// integer.
type EpisodeNumberError struct {
	Field string
	Value string
	Err   error
}

func (e *EpisodeNumberError) Error() string {
	return fmt.Sprintf("epg: %s %q is not a number", e.Field, e.Value)
}

func (e *EpisodeNumberError) Unwrap() error { return e.Err }

// TimestampError reports an event time that could not be parsed.
type TimestampError struct {
	Field string
	Value string
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("epg: cannot parse %s %q", e.Field, e.Value)
}

// ChannelID derives the XMLTV channel id for the naming strategy.
func ChannelID(ch models.GridChannel, naming config.ChannelNaming) string {
	if naming == config.ChannelNamingCallsign {
		return ch.CallSign.String()
	}
	return fmt.Sprintf("I%s.%s.zap2it.com", ch.ChannelNo, ch.ChannelID)
}

// TranscodeChannel builds the <channel> block for a grid channel.
func TranscodeChannel(ch models.GridChannel, naming config.ChannelNaming) models.XMLTVChannel {
	return models.XMLTVChannel{
		ID: ChannelID(ch, naming),
		DisplayNames: []string{
			fmt.Sprintf("%s %s", ch.ChannelNo, ch.CallSign),
			ch.ChannelNo.String(),
			ch.CallSign.String(),
		},
		Icon: &models.XMLTVIcon{Src: channelIcon(ch.Thumbnail.String())},
	}
}

// channelIcon drops the query string and defaults the scheme to https.
func channelIcon(thumb string) string {
	u, err := url.Parse(thumb)
	if err != nil {
		return thumb
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.RawQuery = ""
	u.ForceQuery = false
	return u.String()
}

// TranscodeProgramme builds the <programme> block for one event on the
// channel with the given id.
func TranscodeProgramme(channelID string, ev models.GridEvent) (models.XMLTVProgramme, error) {
	start, err := xmltvTime("startTime", ev.StartTime.String())
	if err != nil {
		return models.XMLTVProgramme{}, err
	}
	stop, err := xmltvTime("endTime", ev.EndTime.String())
	if err != nil {
		return models.XMLTVProgramme{}, err
	}

	prog := ev.Program
	out := models.XMLTVProgramme{
		Start:   start,
		Stop:    stop,
		Channel: channelID,
		Length:  &models.XMLTVLength{Units: "minutes", Value: ev.Duration.String()},
	}
	if prog.Title.Present() {
		out.Title = &models.XMLTVText{Lang: lang, Value: prog.Title.String()}
	}
	if prog.ShortDesc.Present() {
		out.Desc = &models.XMLTVText{Lang: lang, Value: prog.ShortDesc.String()}
	}
	if ev.Rating.Present() {
		out.Rating = &models.XMLTVRating{Value: ev.Rating.String()}
	}

	switch {
	case hasFilter(ev.Filter, "movie") && prog.ReleaseYear.Present():
		out.SubTitle = &models.XMLTVText{Lang: lang, Value: "Movie: " + prog.ReleaseYear.String()}
	case prog.EpisodeTitle.Present():
		out.SubTitle = &models.XMLTVText{Lang: lang, Value: prog.EpisodeTitle.String()}
	}

	if prog.Season.Present() && prog.Episode.Present() {
		nums, err := episodeNums(prog.Season.String(), prog.Episode.String())
		if err != nil {
			return models.XMLTVProgramme{}, err
		}
		out.EpisodeNums = nums
	}

	if slices.Contains(ev.Flag, "New") && !slices.Contains(ev.Flag, "live") {
		out.New = &models.XMLTVFlag{}
	}

	for _, f := range ev.Filter {
		out.Categories = append(out.Categories, models.XMLTVText{Lang: lang, Value: category(f)})
	}

	if ev.Thumbnail.Present() {
		out.Icon = &models.XMLTVIcon{Src: fmt.Sprintf(programIconURL, ev.Thumbnail)}
	}
	return out, nil
}

func xmltvTime(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(xmltvTimeLayout), nil
		}
	}
	return "", &TimestampError{Field: field, Value: value}
}

func episodeNums(season, episode string) ([]models.XMLTVEpisodeNum, error) {
	s, err := strconv.Atoi(strings.TrimSpace(season))
	if err != nil {
		return nil, &EpisodeNumberError{Field: "season", Value: season, Err: err}
	}
	e, err := strconv.Atoi(strings.TrimSpace(episode))
	if err != nil {
		return nil, &EpisodeNumberError{Field: "episode", Value: episode, Err: err}
	}
	return []models.XMLTVEpisodeNum{
		{System: "common", Value: fmt.Sprintf("S%02dE%02d", s, e)},
		{System: "xmltv_ns", Value: fmt.Sprintf("%d.%d.", s-1, e-1)},
	}, nil
}

func category(filter string) string {
	tag := filterTag(filter)
	if name, ok := categoryNames[tag]; ok {
		return name
	}
	return capitalize(tag)
}

// capitalize title-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	head := cases.Title(language.Und, cases.NoLower).String(string(r[:1]))
	return head + cases.Lower(language.Und).String(string(r[1:]))
}

func hasFilter(filters []string, tag string) bool {
	for _, f := range filters {
		if filterTag(f) == tag {
			return true
		}
	}
	return false
}

// filterTag drops every "filter-" marker from a grid filter value.
func filterTag(f string) string {
	return strings.ReplaceAll(f, filterPrefix, "")
}
