package models

import (
	"encoding/xml"
)

// XMLTV is the root <tv> element of the generated guide.
type XMLTV struct {
	XMLName           xml.Name         `xml:"tv"`
	SourceInfoURL     string           `xml:"source-info-url,attr"`
	SourceInfoName    string           `xml:"source-info-name,attr"`
	GeneratorInfoName string           `xml:"generator-info-name,attr"`
	Channels          []XMLTVChannel   `xml:"channel"`
	Programmes        []XMLTVProgramme `xml:"programme"`
}

// XMLTVChannel is a <channel> block. Programmes refer to it by ID.
type XMLTVChannel struct {
	ID           string     `xml:"id,attr"`
	DisplayNames []string   `xml:"display-name"`
	Icon         *XMLTVIcon `xml:"icon"`
}

// XMLTVProgramme is a <programme> block. Field order is the element order
// in the output document.
type XMLTVProgramme struct {
	Start       string            `xml:"start,attr"`
	Stop        string            `xml:"stop,attr"`
	Channel     string            `xml:"channel,attr"`
	Title       *XMLTVText        `xml:"title"`
	Desc        *XMLTVText        `xml:"desc"`
	Rating      *XMLTVRating      `xml:"rating"`
	SubTitle    *XMLTVText        `xml:"sub-title"`
	Length      *XMLTVLength      `xml:"length"`
	EpisodeNums []XMLTVEpisodeNum `xml:"episode-num"`
	New         *XMLTVFlag        `xml:"new"`
	Categories  []XMLTVText       `xml:"category"`
	Icon        *XMLTVIcon        `xml:"icon"`
}

// XMLTVText is a text element with an optional language tag.
type XMLTVText struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

// XMLTVIcon is an <icon src="..."/> element.
type XMLTVIcon struct {
	Src string `xml:"src,attr"`
}

// XMLTVRating wraps the rating text in a nested <value>.
type XMLTVRating struct {
	Value string `xml:"value"`
}

// XMLTVLength is <length units="...">.
type XMLTVLength struct {
	Units string `xml:"units,attr"`
	Value string `xml:",chardata"`
}

// XMLTVEpisodeNum is <episode-num system="...">.
type XMLTVEpisodeNum struct {
	System string `xml:"system,attr"`
	Value  string `xml:",chardata"`
}

// XMLTVFlag is an empty marker element such as <new/>.
type XMLTVFlag struct{}
