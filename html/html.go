/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package html finds the module scripts of an HTML page so the page can
// serve as a bundle input.
package html

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Script is one <script type="module"> element. Exactly one of Src and
// Content is set.
type Script struct {
	Src     string
	Content string
	// Index counts module scripts in document order.
	Index int
}

// Inline reports whether the script carries its own source.
func (s Script) Inline() bool { return s.Src == "" }

// ModuleScripts returns the module scripts of the document in order.
// Classic scripts and data blocks are ignored, as are external scripts
// with an absolute URL.
func ModuleScripts(src []byte) ([]Script, error) {
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	var scripts []Script
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode || n.DataAtom != atom.Script {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(attr(n, "type")), "module") {
			continue
		}
		s := Script{Index: len(scripts)}
		if src, ok := lookupAttr(n, "src"); ok {
			if isAbsoluteURL(src) {
				continue
			}
			s.Src = src
		} else {
			s.Content = text(n)
			if strings.TrimSpace(s.Content) == "" {
				continue
			}
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}

func attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func text(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "//")
}
