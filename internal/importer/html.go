package importer

import (
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/smartmarks/smartmarks/internal/model"
)

// ParseHTMLBookmarks parses Netscape bookmark HTML into a flat bookmark
// list owned by the given user. Folder structure in the file is ignored;
// TAGS attributes and DD descriptions are carried over.
func ParseHTMLBookmarks(r io.Reader, userID string) ([]model.Bookmark, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var bookmarks []model.Bookmark

	var parse func(*html.Node)
	parse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "a":
				href := getAttr(n, "href")
				if href == "" {
					return
				}

				title := getTextContent(n)
				if title == "" {
					title = href
				}

				createdAt := time.Now()
				if addDate := getAttr(n, "add_date"); addDate != "" {
					if ts, err := strconv.ParseInt(addDate, 10, 64); err == nil {
						createdAt = time.Unix(ts, 0)
					}
				}

				tags := []string{}
				if raw := getAttr(n, "tags"); raw != "" {
					for _, tag := range strings.Split(raw, ",") {
						if tag = strings.TrimSpace(tag); tag != "" {
							tags = append(tags, tag)
						}
					}
				}

				bookmarks = append(bookmarks, model.Bookmark{
					ID:          model.GenerateUUID(),
					URL:         href,
					Title:       title,
					Description: followingDescription(n),
					Tags:        tags,
					CreatedAt:   createdAt,
					UserID:      userID,
				})
				return // Don't recurse into A
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			parse(c)
		}
	}

	parse(doc)
	return bookmarks, nil
}

// followingDescription returns the text of a DD element directly following
// the anchor's DT parent, if any.
func followingDescription(a *html.Node) string {
	dt := a.Parent
	if dt == nil || !strings.EqualFold(dt.Data, "dt") {
		return ""
	}
	for s := dt.NextSibling; s != nil; s = s.NextSibling {
		if s.Type != html.ElementNode {
			continue
		}
		switch strings.ToLower(s.Data) {
		case "dd":
			return getTextContent(s)
		case "dt":
			return ""
		}
	}
	return ""
}

// getTextContent returns the text content of a node.
func getTextContent(n *html.Node) string {
	var text strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(text.String())
}

// getAttr returns the value of an attribute, case-insensitive.
func getAttr(n *html.Node, key string) string {
	key = strings.ToLower(key)
	for _, attr := range n.Attr {
		if strings.ToLower(attr.Key) == key {
			return attr.Val
		}
	}
	return ""
}
