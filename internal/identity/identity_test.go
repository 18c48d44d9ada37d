package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLink(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"strips tracking params", "https://a.com/p?utm_source=x&utm_medium=y", "https://a.com/p"},
		{"keeps real params", "https://a.com/p?id=42&utm_source=x", "https://a.com/p?id=42"},
		{"strips fbclid", "https://a.com/p?fbclid=abc", "https://a.com/p"},
		{"strips fragment", "https://a.com/p#section-2", "https://a.com/p"},
		{"lowercases host", "https://Example.COM/Path", "https://example.com/Path"},
		{"strips mobile prefix", "https://m.example.com/story", "https://example.com/story"},
		{"drops trailing slash", "https://a.com/p/", "https://a.com/p"},
		{"keeps root slash", "https://a.com/", "https://a.com/"},
		{"collapses index.html", "https://a.com/dir/index.html", "https://a.com/dir"},
		{"collapses index.php", "https://a.com/dir/index.php", "https://a.com/dir"},
		{"schemeless unchanged", "example.com/p?utm_source=x", "example.com/p?utm_source=x"},
		{"garbage unchanged", "::not a url::", "::not a url::"},
		{"empty unchanged", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeLink(tc.in))
		})
	}
}

func TestNormalizeLinkIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"example.com/p",
		"https://a.com/p?utm_source=x&id=1#frag",
		"https://M.Example.com/dir/index.html",
		"https://a.com/p/",
		"https://a.com/p?utm_source=x",
	}
	for _, in := range inputs {
		once := NormalizeLink(in)
		assert.Equal(t, once, NormalizeLink(once), "input %q", in)
	}
}

func TestTrackingOnlyQueryCollapses(t *testing.T) {
	a := NormalizeLink("https://a.com/p?utm_source=x")
	b := NormalizeLink("https://a.com/p")
	assert.Equal(t, b, a)
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "HELLO WORLD", NormalizeTitle("  hello\t\n world  "))
	assert.Equal(t, "", NormalizeTitle("   "))

	titles := []string{"", "  a  b  ", "Already Normal"}
	for _, in := range titles {
		once := NormalizeTitle(in)
		assert.Equal(t, once, NormalizeTitle(once))
	}
}

func TestSyncHash(t *testing.T) {
	h1 := SyncHash("A Story", "https://a.com/feed")
	h2 := SyncHash("a  story", "https://a.com/feed")
	assert.Equal(t, h1, h2, "hash is stable across title whitespace/case")

	h3 := SyncHash("A Story", "https://b.com/feed")
	assert.NotEqual(t, h1, h3, "feed URL participates in the hash")

	assert.Empty(t, SyncHash("", ""))
	assert.Len(t, h1, 32)
}
