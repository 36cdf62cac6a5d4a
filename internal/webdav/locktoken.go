package webdav

import (
	"encoding/xml"
	"strings"
)

// davNamespace is the XML namespace of WebDAV elements
const davNamespace = "DAV:"

// lockTokenPath is the element path of a lock token href inside a LOCK response,
// relative to any enclosing prop element.
var lockTokenPath = []string{"lockdiscovery", "activelock", "locktoken", "href"}

// ExtractLockToken returns the opaque lock token granted by a LOCK response body.
// It reads the first lockdiscovery/activelock/locktoken/href whose value uses the
// opaquelocktoken scheme and returns the value without the scheme. An empty string
// is returned when the body is not XML or carries no such token.
func ExtractLockToken(body string) string {
	decoder := xml.NewDecoder(strings.NewReader(body))

	var stack []string
	var href strings.Builder
	for {
		tok, err := decoder.Token()
		if err != nil {
			return ""
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if t.Name.Space != davNamespace {
				name = ""
			}
			stack = append(stack, name)
			href.Reset()
		case xml.CharData:
			if hasSuffixPath(stack, lockTokenPath) {
				href.Write(t)
			}
		case xml.EndElement:
			if hasSuffixPath(stack, lockTokenPath) {
				value := strings.TrimSpace(href.String())
				if token, ok := strings.CutPrefix(value, LockTokenScheme); ok && token != "" {
					return token
				}
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
}

func hasSuffixPath(stack, path []string) bool {
	if len(stack) < len(path) {
		return false
	}
	offset := len(stack) - len(path)
	for i, name := range path {
		if stack[offset+i] != name {
			return false
		}
	}
	return true
}
