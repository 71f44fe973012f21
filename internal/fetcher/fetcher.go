package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Page is the metadata used to prefill a new resource
type Page struct {
	URL         string
	Title       string
	Description string
}

var client = &http.Client{Timeout: 30 * time.Second}

// Fetch retrieves a URL and extracts its title and description
func Fetch(ctx context.Context, rawURL string) (*Page, error) {
	// Validate URL
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + strings.TrimSpace(rawURL))
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "learnlog/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	// Read body with size limit (5MB)
	limited := io.LimitReader(resp.Body, 5*1024*1024)
	doc, err := html.Parse(limited)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := extractMeta(doc)
	page.URL = u.String()
	if page.Title == "" {
		return nil, fmt.Errorf("no title found at %s", page.URL)
	}
	return page, nil
}

// IsURL checks if a string looks like a URL
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.")
}

// extractMeta prefers og:title over <title> and og:description over the meta description
func extractMeta(doc *html.Node) *Page {
	var title, ogTitle, desc, ogDesc string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = n.FirstChild.Data
				}
			case "meta":
				key := strings.ToLower(attr(n, "property"))
				if key == "" {
					key = strings.ToLower(attr(n, "name"))
				}
				content := attr(n, "content")
				switch key {
				case "og:title":
					ogTitle = content
				case "og:description":
					ogDesc = content
				case "description":
					desc = content
				}
			case "script", "style", "noscript":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return &Page{
		Title:       clean(firstNonEmpty(ogTitle, title)),
		Description: clean(firstNonEmpty(ogDesc, desc)),
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// clean collapses whitespace
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
