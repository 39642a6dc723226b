// Package htmlq holds the small amount of HTML querying the platform
// clients need: several hosts expose upload ids and processing state only
// through their web pages.
package htmlq

import (
	"io"

	"golang.org/x/net/html"
)

func Parse(r io.Reader) (*html.Node, error) {
	return html.Parse(r)
}

// Find returns the first element (depth-first) with the given tag whose
// attributes include every key/value in attrs. attrs may be nil.
func Find(root *html.Node, tag string, attrs map[string]string) *html.Node {
	if root == nil {
		return nil
	}
	if root.Type == html.ElementNode && root.Data == tag && hasAttrs(root, attrs) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := Find(c, tag, attrs); n != nil {
			return n
		}
	}
	return nil
}

// Attr returns the value of the named attribute, or "" when absent.
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttrs(n *html.Node, attrs map[string]string) bool {
	for k, v := range attrs {
		if Attr(n, k) != v {
			return false
		}
	}
	return true
}
