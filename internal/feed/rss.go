// Package feed renders catalog listings as RSS 2.0 podcast feeds.
package feed

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/user/sermon-catalog-go/internal/model"
	"github.com/user/sermon-catalog-go/internal/source"
)

// MaxItems is the number of newest rows included in a feed
const MaxItems = 50

const itunesNS = "http://www.itunes.com/dtds/podcast-1.0.dtd"

// RSS is the document root
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Itunes  string   `xml:"xmlns:itunes,attr"`
	Channel Channel  `xml:"channel"`
}

// Channel is the feed metadata plus its items
type Channel struct {
	Title         string `xml:"title"`
	Link          string `xml:"link"`
	Description   string `xml:"description"`
	Language      string `xml:"language,omitempty"`
	LastBuildDate string `xml:"lastBuildDate,omitempty"`
	Items         []Item `xml:"item"`
}

// Item is one sermon
type Item struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	GUID        GUID      `xml:"guid"`
	PubDate     string    `xml:"pubDate,omitempty"`
	Author      string    `xml:"itunes:author,omitempty"`
	Duration    string    `xml:"itunes:duration,omitempty"`
	Category    string    `xml:"category,omitempty"`
	Enclosure   Enclosure `xml:"enclosure"`
}

// GUID identifies an item independently of its URLs
type GUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// Enclosure points at the media file
type Enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// Options describes the channel and where enclosures point
type Options struct {
	Title       string
	Description string
	Language    string
	// BaseURL is the public origin, e.g. https://sermons.example.org
	BaseURL string
	// APIPrefix is prepended to proxy paths, e.g. /api
	APIPrefix string
	// Kind selects video or audio enclosures
	Kind source.Kind
}

// Build renders up to MaxItems of videos, in the given order
func Build(videos []*model.Video, opts Options) *RSS {
	if opts.Kind == "" {
		opts.Kind = source.KindVideo
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	prefix := "/" + strings.Trim(opts.APIPrefix, "/")
	if prefix == "/" {
		prefix = ""
	}

	if len(videos) > MaxItems {
		videos = videos[:MaxItems]
	}

	ch := Channel{
		Title:       opts.Title,
		Link:        base + "/",
		Description: opts.Description,
		Language:    opts.Language,
		Items:       make([]Item, 0, len(videos)),
	}
	if ch.Title == "" {
		ch.Title = "Sermons"
	}
	if ch.Description == "" {
		ch.Description = ch.Title
	}

	var newest time.Time
	for _, v := range videos {
		ch.Items = append(ch.Items, item(v, base, prefix, opts.Kind))
		if v.Date != nil && v.Date.After(newest) {
			newest = *v.Date
		}
	}
	if !newest.IsZero() {
		ch.LastBuildDate = newest.UTC().Format(time.RFC1123Z)
	}

	return &RSS{Version: "2.0", Itunes: itunesNS, Channel: ch}
}

func item(v *model.Video, base, prefix string, kind source.Kind) Item {
	it := Item{
		Title:       v.DisplayTitle(),
		Link:        fmt.Sprintf("%s/videos/%d", base, v.ID),
		Description: Describe(v),
		GUID:        GUID{Value: fmt.Sprintf("sermon-%d", v.ID)},
		Author:      v.Preacher,
		Category:    v.DisplayCategory(),
		Enclosure: Enclosure{
			URL:  fmt.Sprintf("%s%s/videos/%d/%s", base, prefix, v.ID, kind),
			Type: strings.SplitN(kind.ContentType(), ";", 2)[0],
		},
	}
	if v.Date != nil {
		it.PubDate = v.Date.UTC().Format(time.RFC1123Z)
	}
	if v.RuntimeMinutes != nil && *v.RuntimeMinutes > 0 {
		it.Duration = Duration(*v.RuntimeMinutes)
	}
	return it
}

// Describe summarizes a row for the item description
func Describe(v *model.Video) string {
	if v == nil {
		return ""
	}

	parts := []string{v.DisplayTitle()}
	if v.Preacher != "" {
		parts = append(parts, "Preacher: "+v.Preacher)
	}
	if c := v.DisplayCategory(); c != "" {
		parts = append(parts, "Category: "+c)
	}
	if v.Date != nil {
		parts = append(parts, "Date: "+v.Date.Format("2006-01-02"))
	}
	if v.RuntimeMinutes != nil && *v.RuntimeMinutes > 0 {
		parts = append(parts, "Length: "+Duration(*v.RuntimeMinutes))
	}
	return strings.Join(parts, "\n")
}

// Duration formats minutes as H:MM:SS or M:SS
func Duration(minutes float64) string {
	total := int(minutes*60 + 0.5)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Write encodes feed with the XML header
func Write(w io.Writer, feed *RSS) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(feed); err != nil {
		return fmt.Errorf("failed to encode feed: %w", err)
	}
	return enc.Flush()
}
