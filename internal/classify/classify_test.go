package classify

import (
	"path/filepath"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaklabco/unistack/internal/rebuild"
	"pgregory.net/rapid"
)

func newTestClassifier(t testing.TB, src string) *Classifier {
	t.Helper()
	c, err := New(Options{
		Client: filepath.Join(src, "client"),
		Server: filepath.Join(src, "server"),
		Shared: filepath.Join(src, "shared"),
	})
	require.NoError(t, err)
	return c
}

func TestClassify(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src")
	c := newTestClassifier(t, src)

	tests := []struct {
		name    string
		path    string
		want    rebuild.Request
		wantHit bool
	}{
		{"shared", "shared/util.js", rebuild.Request{Node: true, Browser: true}, true},
		{"shared nested", "shared/a/b/c.tsx", rebuild.Request{Node: true, Browser: true}, true},
		{"server", "server/api.ts", rebuild.Request{Node: true, ExplicitNode: true}, true},
		{"client", "client/App.jsx", rebuild.Request{Browser: true}, true},
		{"client test dir", "client/test/App.test.js", rebuild.Request{}, false},
		{"server spec dir", "server/routes/spec/api.js", rebuild.Request{}, false},
		{"jest dir", "shared/__tests__/util.js", rebuild.Request{}, false},
		{"wrong extension", "client/styles.css", rebuild.Request{}, false},
		{"extension prefix", "client/data.json", rebuild.Request{}, false},
		{"outside roots", "scripts/build.js", rebuild.Request{}, false},
		{"sibling prefix", "client-old/App.js", rebuild.Request{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := classify(c, filepath.Join(src, filepath.FromSlash(tt.path)))
			assert.Equal(t, tt.wantHit, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// classify is the request for path and whether any tree claimed it.
func classify(c *Classifier, path string) (rebuild.Request, bool) {
	m := c.Match(path)
	return m.Request(), m != None
}

func TestClassify_SharedInsideServerIsNotExplicit(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src")
	c, err := New(Options{
		Client: filepath.Join(src, "client"),
		Server: filepath.Join(src, "server"),
		Shared: filepath.Join(src, "server", "common"),
	})
	require.NoError(t, err)

	got, ok := classify(c, filepath.Join(src, "server", "common", "db.js"))
	require.True(t, ok)
	assert.True(t, got.Node)
	assert.True(t, got.Browser)
	assert.False(t, got.ExplicitNode)
}

func TestClassify_TestFileNameIsNotExcluded(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src")
	c := newTestClassifier(t, src)

	// Only directory segments exclude a path.
	assert.Equal(t, Client, c.Match(filepath.Join(src, "client", "test.js")))
}

func TestClassify_CustomExtensions(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src")
	c, err := New(Options{
		Client:      filepath.Join(src, "client"),
		Server:      filepath.Join(src, "server"),
		Shared:      filepath.Join(src, "shared"),
		Extensions:  []string{".vue"},
		ExcludeDirs: []string{},
	})
	require.NoError(t, err)

	assert.Equal(t, Client, c.Match(filepath.Join(src, "client", "App.vue")))
	assert.Equal(t, None, c.Match(filepath.Join(src, "client", "App.js")))
	assert.Equal(t, Client, c.Match(filepath.Join(src, "client", "test", "App.vue")))
}

func TestClassify_MetaCharactersInRoot(t *testing.T) {
	src := filepath.Join(t.TempDir(), "proj[1]*")
	c := newTestClassifier(t, src)

	assert.Equal(t, Server, c.Match(filepath.Join(src, "server", "index.js")))
}

func TestNew_MissingRoot(t *testing.T) {
	_, err := New(Options{Client: "c", Server: "s"})
	require.ErrorIs(t, err, ErrNoRoot)
}

func TestMatch_String(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "client", Client.String())
	assert.Equal(t, "server", Server.String())
	assert.Equal(t, "shared", Shared.String())
}

func segmentGen() *rapid.Generator[string] {
	return rapid.StringMatching(`[a-z][a-z0-9_]{0,7}`)
}

func TestClassify_Properties(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src")
	c := newTestClassifier(t, src)

	rapid.Check(t, func(t *rapid.T) {
		tree := rapid.SampledFrom([]string{"client", "server", "shared"}).Draw(t, "tree")
		dirs := rapid.SliceOfN(segmentGen(), 0, 4).Draw(t, "dirs")
		name := segmentGen().Draw(t, "name")
		ext := rapid.SampledFrom(DefaultExtensions).Draw(t, "ext")

		parts := append([]string{src, tree}, dirs...)
		parts = append(parts, name+"."+ext)
		got, ok := classify(c, filepath.Join(parts...))

		if lo.SomeBy(dirs, func(d string) bool { return lo.Contains(DefaultExcludeDirs, d) }) {
			if ok || !got.Empty() {
				t.Fatalf("excluded path classified as %s", got)
			}
			return
		}
		if !ok {
			t.Fatalf("path in %s tree was dropped", tree)
		}

		switch tree {
		case "shared":
			if !got.Node || !got.Browser || got.ExplicitNode {
				t.Fatalf("shared change gave %s", got)
			}
		case "server":
			if !got.Node || got.Browser || !got.ExplicitNode {
				t.Fatalf("server change gave %s", got)
			}
		case "client":
			if got.Node || !got.Browser || got.ExplicitNode {
				t.Fatalf("client change gave %s", got)
			}
		}
	})
}
