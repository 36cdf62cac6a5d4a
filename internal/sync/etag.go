package sync

import (
	"fmt"
	"regexp"
)

// etagPattern captures what lies between the last pair of double quotes of a
// value that ends in a double quote, so W/"abc" and "abc" both yield abc.
var etagPattern = regexp.MustCompile(`^.*"(.*)"$`)

// CleanETag reduces a raw ETag header value to its opaque tag
func CleanETag(raw string) (string, error) {
	m := etagPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrMalformedETag, raw)
	}
	return m[1], nil
}
