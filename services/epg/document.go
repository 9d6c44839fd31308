package epg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"zap2xml/config"
	"zap2xml/models"
)

const (
	sourceInfoURL     = "http://tvlistings.gracenote.com/"
	sourceInfoName    = "gracenote.com"
	generatorInfoName = "zap2xml"
)

// Document accumulates the guide for one run. Channels are written once,
// from the first non-empty channel list; programmes are appended as
// windows arrive.
type Document struct {
	naming       config.ChannelNaming
	tv           models.XMLTV
	channelsDone bool
}

func NewDocument(naming config.ChannelNaming) *Document {
	return &Document{
		naming: naming,
		tv: models.XMLTV{
			SourceInfoURL:     sourceInfoURL,
			SourceInfoName:    sourceInfoName,
			GeneratorInfoName: generatorInfoName,
		},
	}
}

// EnsureChannels emits channel blocks for the first non-empty list it is
// given and ignores every later call. Repeated ids within that list are
// written once. It reports whether channels were emitted by this call.
func (d *Document) EnsureChannels(channels []models.GridChannel) bool {
	if d.channelsDone || len(channels) == 0 {
		return false
	}
	d.channelsDone = true

	seen := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		c := TranscodeChannel(ch, d.naming)
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		d.tv.Channels = append(d.tv.Channels, c)
	}
	return true
}

// AppendProgramme adds one programme for ev on ch. Events repeated across
// windows are appended again.
func (d *Document) AppendProgramme(ch models.GridChannel, ev models.GridEvent) error {
	p, err := TranscodeProgramme(ChannelID(ch, d.naming), ev)
	if err != nil {
		return fmt.Errorf("channel %s: %w", ChannelID(ch, d.naming), err)
	}
	d.tv.Programmes = append(d.tv.Programmes, p)
	return nil
}

// Counts returns the number of channel and programme blocks.
func (d *Document) Counts() (channels, programmes int) {
	return len(d.tv.Channels), len(d.tv.Programmes)
}

// WriteTo writes the XML declaration and the compact document.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	if _, err := io.WriteString(cw, xml.Header); err != nil {
		return cw.n, err
	}
	enc := xml.NewEncoder(cw)
	if err := enc.Encode(d.tv); err != nil {
		return cw.n, fmt.Errorf("encode xmltv: %w", err)
	}
	if err := enc.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

func (d *Document) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
