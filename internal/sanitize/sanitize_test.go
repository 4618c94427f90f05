package sanitize

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSanitizer() *Sanitizer {
	return New(zap.NewNop())
}

func TestCleanEmptyInput(t *testing.T) {
	t.Parallel()

	s := newSanitizer()
	require.Equal(t, "", s.Clean(""))
	require.Equal(t, "", s.Clean("   \n\t "))
}

func TestCleanDropsScriptAndUnwrapsDisallowed(t *testing.T) {
	t.Parallel()

	s := newSanitizer()
	got := s.Clean(`<div><h1>Title</h1><script>evil()</script>Body</div>`)
	require.Equal(t, "<h1>Title</h1>Body", got)
}

func TestCleanScriptStyleCaseInsensitiveMultiline(t *testing.T) {
	t.Parallel()

	s := newSanitizer()
	in := "<p>keep</p><SCRIPT type=\"text/javascript\">\nvar a = 1;\nalert(a);\n</SCRIPT><Style>\nbody { color: red }\n</Style>"
	got := s.Clean(in)
	require.Equal(t, "<p>keep</p>", got)
	require.NotContains(t, got, "alert")
	require.NotContains(t, got, "color")
}

func TestCleanStripsAttributes(t *testing.T) {
	t.Parallel()

	s := newSanitizer()
	got := s.Clean(`<p class="lead" id="x" onclick="evil()">hello</p>`)
	require.Equal(t, "<p>hello</p>", got)
}

func TestCleanRemovesEmptyKeptTags(t *testing.T) {
	t.Parallel()

	s := newSanitizer()
	got := s.Clean(`<p>   </p><ul><li> </li></ul><h2>real</h2>`)
	require.Equal(t, "<h2>real</h2>", got)
}

func TestCleanDropsComments(t *testing.T) {
	t.Parallel()

	s := newSanitizer()
	got := s.Clean(`<!-- secret --><p>visible</p>`)
	require.Equal(t, "<p>visible</p>", got)
}

func TestCleanCollapsesWhitespace(t *testing.T) {
	t.Parallel()

	s := newSanitizer()
	got := s.Clean("<p>one\n\n  two</p>\n\n<p>three</p>")
	require.Equal(t, "<p>one two</p> <p>three</p>", got)
}

func TestCleanPreservesNestedStructure(t *testing.T) {
	t.Parallel()

	s := newSanitizer()
	got := s.Clean(`<article><ul><li><a href="/x">link text</a></li><li>plain</li></ul></article>`)
	require.Equal(t, "<ul><li>link text</li><li>plain</li></ul>", got)
}

// Cleaning already-clean input must be a fixed point (modulo whitespace that
// the first pass has already collapsed).
func TestCleanIdempotentOnAllowedInput(t *testing.T) {
	t.Parallel()

	s := newSanitizer()
	inputs := []string{
		"<h1>Title</h1><p>Body text</p>",
		"<ul><li>a</li><li>b</li></ul>",
		"<blockquote>quote</blockquote><pre><code>x := 1</code></pre>",
	}
	for _, in := range inputs {
		once := s.Clean(in)
		require.Equal(t, once, s.Clean(once), "input %q", in)
	}
}
