package analyzer

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// feedPost is one entry extracted from a parsed feed.
type feedPost struct {
	Title       string
	PublishedAt *time.Time
}

// parsedFeed is the format-independent result of parsing a feed document.
type parsedFeed struct {
	Title string
	Posts []feedPost
}

// rssDoc matches RSS 2.0 and tolerates 0.9x.
type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title   string `xml:"title"`
	PubDate string `xml:"pubDate"`
	DCDate  string `xml:"http://purl.org/dc/elements/1.1/ date"`
}

// rdfDoc matches RSS 1.0, where items sit outside the channel.
type rdfDoc struct {
	XMLName xml.Name   `xml:"RDF"`
	Channel rssChannel `xml:"channel"`
	Items   []rssItem  `xml:"item"`
}

type atomDoc struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string `xml:"title"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
}

// parseFeed decodes an RSS 2.0, RSS 1.0, or Atom document.
func parseFeed(data []byte) (*parsedFeed, error) {
	var rss rssDoc
	if err := decodeXML(data, &rss); err == nil {
		feed := &parsedFeed{Title: rss.Channel.Title}
		for _, item := range rss.Channel.Items {
			feed.Posts = append(feed.Posts, feedPost{
				Title:       strings.TrimSpace(item.Title),
				PublishedAt: parseFeedTime(firstNonEmpty(item.PubDate, item.DCDate)),
			})
		}
		return feed, nil
	}

	var atom atomDoc
	if err := decodeXML(data, &atom); err == nil {
		feed := &parsedFeed{Title: strings.TrimSpace(atom.Title)}
		for _, entry := range atom.Entries {
			feed.Posts = append(feed.Posts, feedPost{
				Title:       strings.TrimSpace(entry.Title),
				PublishedAt: parseFeedTime(firstNonEmpty(entry.Published, entry.Updated)),
			})
		}
		return feed, nil
	}

	var rdf rdfDoc
	if err := decodeXML(data, &rdf); err == nil {
		feed := &parsedFeed{Title: rdf.Channel.Title}
		items := rdf.Items
		if len(items) == 0 {
			items = rdf.Channel.Items
		}
		for _, item := range items {
			feed.Posts = append(feed.Posts, feedPost{
				Title:       strings.TrimSpace(item.Title),
				PublishedAt: parseFeedTime(firstNonEmpty(item.PubDate, item.DCDate)),
			})
		}
		return feed, nil
	}

	return nil, eris.New("analyzer: not a recognized feed format")
}

func decodeXML(data []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.CharsetReader = charsetReader
	return dec.Decode(v)
}

// charsetReader decodes non-UTF-8 feeds using the HTML encoding index.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "analyzer: unsupported feed charset %q", charset)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

// feedTimeFormats covers the date formats seen in real-world feeds.
var feedTimeFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseFeedTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range feedTimeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
