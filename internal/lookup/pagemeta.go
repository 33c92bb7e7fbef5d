package lookup

import (
	"strings"

	"golang.org/x/net/html"
)

// PageMeta is the head-level metadata of a fetched page.
type PageMeta struct {
	Title string
	Meta  map[string]string
}

// ParsePageMeta pulls the title and meta tags out of serialized HTML. Meta
// entries are keyed by name or property, whichever the tag carries.
func ParsePageMeta(src string) (*PageMeta, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, err
	}

	meta := &PageMeta{Meta: make(map[string]string)}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if meta.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					meta.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				var key, content string
				for _, attr := range n.Attr {
					switch attr.Key {
					case "name", "property":
						if key == "" {
							key = attr.Val
						}
					case "content":
						content = attr.Val
					}
				}
				if key != "" {
					meta.Meta[key] = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return meta, nil
}
