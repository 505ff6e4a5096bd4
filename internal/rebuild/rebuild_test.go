package rebuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func drawRequest(t *rapid.T, label string) Request {
	return Request{
		Node:         rapid.Bool().Draw(t, label+".node"),
		Browser:      rapid.Bool().Draw(t, label+".browser"),
		ExplicitNode: rapid.Bool().Draw(t, label+".explicit"),
	}
}

func TestMerge_BrowserThenNode(t *testing.T) {
	got := Merge(Request{Browser: true}, Request{Node: true})
	assert.Equal(t, Request{Node: true, Browser: true}, got)
}

// Merging is monotonic: a flag set by any request in a sequence stays set.
func TestMerge_Monotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(t, "n")
		var merged Request
		var seen Request
		for range n {
			next := drawRequest(t, "req")
			merged = merged.Merge(next)
			seen.Node = seen.Node || next.Node
			seen.Browser = seen.Browser || next.Browser
			seen.ExplicitNode = seen.ExplicitNode || next.ExplicitNode
		}
		if merged != seen {
			t.Fatalf("merged %+v, want %+v", merged, seen)
		}
	})
}

func TestMerge_CommutativeAndIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := drawRequest(t, "a")
		b := drawRequest(t, "b")
		if Merge(a, b) != Merge(b, a) {
			t.Fatalf("merge not commutative for %+v %+v", a, b)
		}
		if Merge(a, a) != a {
			t.Fatalf("merge not idempotent for %+v", a)
		}
	})
}

func TestRequest_Only(t *testing.T) {
	req := Request{Node: true, Browser: true, ExplicitNode: true}
	assert.Equal(t, Request{Browser: true}, req.Only(false, true))
	assert.Equal(t, Request{Node: true, ExplicitNode: true}, req.Only(true, false))
	assert.True(t, req.Only(false, false).Empty())
}

func TestRequest_String(t *testing.T) {
	assert.Equal(t, "none", Request{}.String())
	assert.Equal(t, "node+explicit", Request{Node: true, ExplicitNode: true}.String())
	assert.Equal(t, "node+browser", Request{Node: true, Browser: true}.String())
}

func TestTarget_String(t *testing.T) {
	assert.Equal(t, "node", Node.String())
	assert.Equal(t, "browser", Browser.String())
	assert.Equal(t, "unknown", Target(7).String())
	assert.True(t, Request{Browser: true}.Has(Browser))
	assert.False(t, Request{Browser: true}.Has(Node))
}
