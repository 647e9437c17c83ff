package forwarding

import "testing"

func strp(s string) *string { return &s }

func TestRewritePathCanonical(t *testing.T) {
	cases := []struct {
		name     string
		from     string
		to       *string
		req      string
		expected string
	}{
		{"root-prefix", "/", strp("/"), "/eth/v1/node/syncing", "/eth/v1/node/syncing"},
		{"root-no-path", "/", nil, "", "/"},
		{"root-to-no-slash", "/", strp("/to"), "/", "/to"},
		{"root-to-slash-empty-req", "/", strp("/to/"), "", "/to/"},
		{"sub-root-slash-req", "/sub", strp("/"), "/sub/", "/"},
		{"subsub-exact", "/sub/2", strp("/to"), "/sub/2", "/to"},
		{"subsub-extra", "/sub/2", strp("/to"), "/sub/2/test", "/to/test"},
		{"root-to-resource", "/", strp("/to"), "/resource/", "/to/resource/"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			from := NormalizeFrom(tc.from)
			got := RewritePath(tc.req, from, tc.to)
			if got != tc.expected {
				t.Fatalf("RewritePath(%q, %q, %v) = %q, want %q", tc.req, from, tc.to, got, tc.expected)
			}
		})
	}
}
