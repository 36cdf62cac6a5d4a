package webdav

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractLockToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name: "single line response",
			body: `<?xml version="1.0" encoding="utf-8"?><D:prop xmlns:D="DAV:"><D:lockdiscovery><D:activelock>` +
				`<D:locktoken><D:href>opaquelocktoken:e71d4fae-5dec-22d6-fea5-00a0c91e6be4</D:href></D:locktoken>` +
				`</D:activelock></D:lockdiscovery></D:prop>`,
			expected: "e71d4fae-5dec-22d6-fea5-00a0c91e6be4",
		},
		{
			name: "multi line response with owner href",
			body: `<?xml version="1.0" encoding="utf-8"?>
<D:prop xmlns:D="DAV:">
<D:lockdiscovery>
<D:activelock>
<D:locktype><D:write/></D:locktype>
<D:lockscope><D:exclusive/></D:lockscope>
<D:depth>infinity</D:depth>
<ns0:owner xmlns:ns0="DAV:"><ns0:href>alice</ns0:href></ns0:owner>
<D:timeout>Infinite</D:timeout>
<D:locktoken>
<D:href>
opaquelocktoken:f81de2ad-7f3d-a1b2-4f3c-00a0c91a9d76
</D:href>
</D:locktoken>
</D:activelock>
</D:lockdiscovery>
</D:prop>`,
			expected: "f81de2ad-7f3d-a1b2-4f3c-00a0c91a9d76",
		},
		{
			name: "other prefix for the DAV namespace",
			body: `<a:prop xmlns:a="DAV:"><a:lockdiscovery><a:activelock><a:locktoken>` +
				`<a:href>opaquelocktoken:1234</a:href></a:locktoken></a:activelock></a:lockdiscovery></a:prop>`,
			expected: "1234",
		},
		{
			name: "first opaque token wins",
			body: `<D:prop xmlns:D="DAV:"><D:lockdiscovery>` +
				`<D:activelock><D:locktoken><D:href>urn:uuid:0000</D:href></D:locktoken></D:activelock>` +
				`<D:activelock><D:locktoken><D:href>opaquelocktoken:first</D:href></D:locktoken></D:activelock>` +
				`<D:activelock><D:locktoken><D:href>opaquelocktoken:second</D:href></D:locktoken></D:activelock>` +
				`</D:lockdiscovery></D:prop>`,
			expected: "first",
		},
		{
			name: "token outside the DAV namespace is ignored",
			body: `<prop xmlns="urn:example"><lockdiscovery><activelock><locktoken>` +
				`<href>opaquelocktoken:1234</href></locktoken></activelock></lockdiscovery></prop>`,
			expected: "",
		},
		{
			name: "href outside locktoken is ignored",
			body: `<D:prop xmlns:D="DAV:"><D:lockdiscovery><D:activelock>` +
				`<D:lockroot><D:href>opaquelocktoken:root</D:href></D:lockroot>` +
				`</D:activelock></D:lockdiscovery></D:prop>`,
			expected: "",
		},
		{
			name:     "scheme without token",
			body:     `<D:prop xmlns:D="DAV:"><D:lockdiscovery><D:activelock><D:locktoken><D:href>opaquelocktoken:</D:href></D:locktoken></D:activelock></D:lockdiscovery></D:prop>`,
			expected: "",
		},
		{
			name:     "error response",
			body:     `<?xml version="1.0" encoding="utf-8"?><D:error xmlns:D="DAV:"><D:lock-token-submitted/></D:error>`,
			expected: "",
		},
		{
			name:     "malformed xml",
			body:     `<D:prop xmlns:D="DAV:"><D:lockdiscovery>`,
			expected: "",
		},
		{
			name:     "empty body",
			body:     "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ExtractLockToken(tt.body))
		})
	}
}
