package vquest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// Payload is a response body that passed the transport and service checks.
// HTML is set when V-QUEST answered with a page that carried no recognised
// error; callers expecting a zip or text result treat that as a shape error.
type Payload struct {
	ContentType string
	Body        []byte
	HTML        bool
}

// ParseResponse classifies a V-QUEST response. Exactly one of the return
// values is set: a payload for a candidate success, or the list of messages
// to show the user.
func ParseResponse(resp *Response) (*Payload, []string) {
	if resp.StatusCode != http.StatusOK {
		return nil, []string{fmt.Sprintf("Request failed with status code %d", resp.StatusCode)}
	}

	if !strings.Contains(resp.ContentType, "text/html") {
		return &Payload{ContentType: resp.ContentType, Body: resp.Body}, nil
	}

	page := decodeBody(resp.Body, resp.ContentType)
	if errs := extractErrors(page); len(errs) > 0 {
		return nil, errs
	}

	return &Payload{ContentType: resp.ContentType, Body: page, HTML: true}, nil
}

// decodeBody converts body to UTF-8 using the charset named in the content
// type. Unknown or missing charsets are read as UTF-8.
func decodeBody(body []byte, contentType string) []byte {
	label := charsetLabel(contentType)
	if label == "" {
		return body
	}

	enc, name := charset.Lookup(label)
	if enc == nil || name == "utf-8" {
		return body
	}

	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(body), enc.NewDecoder()))
	if err != nil {
		return body
	}
	return decoded
}

func charsetLabel(contentType string) string {
	for _, part := range strings.Split(contentType, ";") {
		if idx := strings.Index(part, "charset="); idx >= 0 {
			return strings.Trim(strings.TrimSpace(part[idx+len("charset="):]), `"'`)
		}
	}
	return ""
}

// extractErrors collects the messages V-QUEST renders into its form page:
// the span items of the first errorMessage list, then every form_error div.
func extractErrors(page []byte) []string {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil
	}

	var errs []string

	if list := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "ul" && hasClass(n, "errorMessage")
	}); list != nil {
		walk(list, func(n *html.Node) {
			if n.Type == html.ElementNode && n.Data == "span" {
				errs = append(errs, collapseSpace(textContent(n)))
			}
		})
	}

	walk(doc, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "form_error") {
			errs = append(errs, collapseSpace(textContent(n)))
		}
	})

	return errs
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
