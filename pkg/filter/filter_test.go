package filter

import (
	"errors"
	"fmt"
	"testing"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
)

func boolPtr(b bool) *bool { return &b }

func node(attrs map[string]string, children ...*core.TreeNode) *core.TreeNode {
	return &core.TreeNode{Attributes: attrs, Children: children}
}

func box(x, y, w, h int) string {
	return fmt.Sprintf("[%d,%d][%d,%d]", x, y, x+w, y+h)
}

func texts(nodes []*core.TreeNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Attr(core.AttrText)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func run(t *testing.T, sel *flow.Selector, root *core.TreeNode) []*core.TreeNode {
	t.Helper()
	c, err := Compile(sel, Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return c.Filter(root.Aggregate())
}

func TestCompile_DeepestMatch(t *testing.T) {
	// A container whose accessibility text repeats its child's text.
	leaf := node(map[string]string{core.AttrText: "Login", core.AttrBounds: box(0, 0, 10, 10)})
	container := node(map[string]string{core.AttrAccessibilityText: "Login", core.AttrBounds: box(0, 0, 100, 100)}, leaf)
	root := node(nil, container)

	got := run(t, &flow.Selector{Text: "Login"}, root)
	if len(got) != 1 || got[0] != leaf {
		t.Errorf("got %d nodes, want only the leaf", len(got))
	}
}

func TestCompile_TextMatching(t *testing.T) {
	root := node(nil,
		node(map[string]string{core.AttrText: "Item 1"}),
		node(map[string]string{core.AttrText: "Item 22"}),
		node(map[string]string{core.AttrHintText: "Search"}),
		node(map[string]string{core.AttrText: "Line one\nLine two"}),
		node(map[string]string{core.AttrText: "Price (USD"}),
	)

	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{"regex", "Item [0-9]+", []string{"Item 1", "Item 22"}},
		{"case insensitive", "item 1", []string{"Item 1"}},
		{"full match only", "Item", nil},
		{"hint text", "search", []string{""}},
		{"newline collapsed", "Line one Line two", []string{"Line one\nLine two"}},
		{"invalid regex literal", "Price (USD", []string{"Price (USD"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := texts(run(t, &flow.Selector{Text: tt.pattern}, root))
			if !equalStrings(got, tt.want) {
				t.Errorf("matched %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompile_IDMatching(t *testing.T) {
	full := node(map[string]string{core.AttrResourceID: "com.app:id/submit", core.AttrText: "full"})
	other := node(map[string]string{core.AttrResourceID: "cancel", core.AttrText: "other"})
	root := node(nil, full, other)

	if got := texts(run(t, &flow.Selector{ID: "submit"}, root)); !equalStrings(got, []string{"full"}) {
		t.Errorf("suffix match = %q, want [full]", got)
	}
	if got := texts(run(t, &flow.Selector{ID: "com.app:id/submit"}, root)); !equalStrings(got, []string{"full"}) {
		t.Errorf("full match = %q, want [full]", got)
	}
	if got := run(t, &flow.Selector{ID: "sub"}, root); len(got) != 0 {
		t.Errorf("partial id matched %d nodes", len(got))
	}
}

func TestCompile_Index(t *testing.T) {
	root := node(nil,
		node(map[string]string{core.AttrText: "Row A"}),
		node(map[string]string{core.AttrText: "Row B"}),
		node(map[string]string{core.AttrText: "Row C"}),
	)

	tests := []struct {
		index string
		want  []string
	}{
		{"0", []string{"Row A"}},
		{"2", []string{"Row C"}},
		{"1.9", []string{"Row B"}},
		{"3", nil},
		{"-1", nil},
		{"-0.5", []string{"Row A"}},
	}

	for _, tt := range tests {
		t.Run(tt.index, func(t *testing.T) {
			got := texts(run(t, &flow.Selector{Text: "Row .*", Index: tt.index}, root))
			if !equalStrings(got, tt.want) {
				t.Errorf("index %s = %q, want %q", tt.index, got, tt.want)
			}
		})
	}

	if _, err := Compile(&flow.Selector{Text: "x", Index: "abc"}, Options{}); !errors.Is(err, core.ErrInvalidCommand) {
		t.Errorf("invalid index error = %v, want ErrInvalidCommand", err)
	}
}

func TestCompile_ClickableFirst(t *testing.T) {
	plain := node(map[string]string{core.AttrText: "Go"})
	clickable := &core.TreeNode{Attributes: map[string]string{core.AttrText: "Go"}, Clickable: boolPtr(true)}
	root := node(nil, plain, clickable)

	got := run(t, &flow.Selector{Text: "Go"}, root)
	if len(got) != 2 || got[0] != clickable || got[1] != plain {
		t.Error("clickable node should come first")
	}
}

func TestCompile_Relative(t *testing.T) {
	header := node(map[string]string{core.AttrText: "Header", core.AttrBounds: box(0, 0, 100, 50)})
	near := node(map[string]string{core.AttrText: "Near", core.AttrBounds: box(0, 60, 100, 20)})
	far := node(map[string]string{core.AttrText: "Far", core.AttrBounds: box(0, 300, 100, 20)})
	side := node(map[string]string{core.AttrText: "Side", core.AttrBounds: box(150, 0, 20, 20)})
	// Document order puts Far before Near.
	root := node(map[string]string{core.AttrBounds: box(0, 0, 400, 800)}, header, far, near, side)

	tests := []struct {
		name string
		sel  *flow.Selector
		want []string
	}{
		{"below keeps document order", &flow.Selector{Text: "Near|Far", Below: &flow.Selector{Text: "Header"}}, []string{"Far", "Near"}},
		{"below with index", &flow.Selector{Text: "Near|Far", Below: &flow.Selector{Text: "Header"}, Index: "1"}, []string{"Near"}},
		{"above", &flow.Selector{Text: "Header|Near", Above: &flow.Selector{Text: "Far"}}, []string{"Header", "Near"}},
		{"right of", &flow.Selector{Text: ".*", RightOf: &flow.Selector{Text: "Header"}}, []string{"Side"}},
		{"left of", &flow.Selector{Text: "Header", LeftOf: &flow.Selector{Text: "Side"}}, []string{"Header"}},
		{"missing anchor", &flow.Selector{Text: "Near", Below: &flow.Selector{Text: "Nope"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := texts(run(t, tt.sel, root))
			if !equalStrings(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompile_ContainsChild(t *testing.T) {
	label := node(map[string]string{core.AttrText: "Buy"})
	card := node(map[string]string{core.AttrResourceID: "card"}, label)
	wrapper := node(map[string]string{core.AttrResourceID: "card-wrapper"}, card)
	root := node(nil, wrapper)

	got := run(t, &flow.Selector{ContainsChild: &flow.Selector{Text: "Buy"}}, root)
	if len(got) != 1 || got[0] != card {
		t.Errorf("got %d nodes, want the direct parent only", len(got))
	}
}

func TestCompile_ContainsDescendants(t *testing.T) {
	title := node(map[string]string{core.AttrText: "Title"})
	price := node(map[string]string{core.AttrText: "$5"})
	inner := node(map[string]string{core.AttrResourceID: "inner"}, price)
	full := node(map[string]string{core.AttrResourceID: "product"}, title, inner)
	partial := node(map[string]string{core.AttrResourceID: "other"}, node(map[string]string{core.AttrText: "Title"}))
	root := node(nil, full, partial)

	sel := &flow.Selector{
		ID:                  "product|other",
		ContainsDescendants: []*flow.Selector{{Text: "Title"}, {Text: `\$5`}},
	}
	got := run(t, sel, root)
	if len(got) != 1 || got[0] != full {
		t.Errorf("got %d nodes, want only the product", len(got))
	}
}

func TestCompile_StateAndSize(t *testing.T) {
	on := &core.TreeNode{Attributes: map[string]string{core.AttrText: "on", core.AttrBounds: box(0, 0, 40, 40)}, Checked: boolPtr(true)}
	off := &core.TreeNode{Attributes: map[string]string{core.AttrText: "off", core.AttrBounds: box(0, 50, 80, 40)}, Checked: boolPtr(false)}
	unknown := node(map[string]string{core.AttrText: "unknown", core.AttrBounds: box(0, 100, 42, 40)})
	root := node(nil, on, off, unknown)

	tests := []struct {
		name string
		sel  *flow.Selector
		want []string
	}{
		{"checked", &flow.Selector{Checked: boolPtr(true)}, []string{"on"}},
		{"not checked ignores unreported", &flow.Selector{Checked: boolPtr(false)}, []string{"off"}},
		{"exact size", &flow.Selector{Width: 40, Height: 40}, []string{"on"}},
		{"size with tolerance", &flow.Selector{Width: 40, Height: 40, Tolerance: 2}, []string{"on", "unknown"}},
		{"width only", &flow.Selector{Width: 80}, []string{"off"}},
		{"square trait", &flow.Selector{Traits: "square"}, []string{"on"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := texts(run(t, tt.sel, root))
			if !equalStrings(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompile_CSS(t *testing.T) {
	a := node(map[string]string{core.AttrText: "a"})
	b := node(map[string]string{core.AttrText: "b"})
	root := node(nil, a, b)

	var queried string
	c, err := Compile(&flow.Selector{CSS: "#b"}, Options{CSS: func(css string) []*core.TreeNode {
		queried = css
		return []*core.TreeNode{b}
	}})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	got := c.Filter(root.Aggregate())
	if len(got) != 1 || got[0] != b || queried != "#b" {
		t.Errorf("css filter = %q (query %q)", texts(got), queried)
	}

	if got := run(t, &flow.Selector{CSS: "#b"}, root); len(got) != 0 {
		t.Errorf("css without lookup matched %d nodes", len(got))
	}
}

func TestCompile_Description(t *testing.T) {
	tests := []struct {
		name string
		sel  *flow.Selector
		want string
	}{
		{"text", &flow.Selector{Text: "Login"}, "Text matching regex: Login"},
		{"text and id", &flow.Selector{Text: "A", ID: "b"}, "Text matching regex: A, Id matching regex: b"},
		{"size", &flow.Selector{Width: 10, Height: 20, Tolerance: 3}, "Size: 10x20±3"},
		{"below", &flow.Selector{Text: "Price", Below: &flow.Selector{Text: "Title"}}, `Text matching regex: Price, Below: "Title"`},
		{
			"descendants",
			&flow.Selector{ContainsDescendants: []*flow.Selector{{Text: "A"}, {ID: "b"}}},
			`Contains descendants: "A"; id: b`,
		},
		{"states", &flow.Selector{Enabled: boolPtr(false), Focused: boolPtr(true)}, "Disabled, Focused"},
		{"traits", &flow.Selector{Traits: "text, long-text"}, "Has text, Has long text"},
		{"css", &flow.Selector{CSS: ".btn"}, "CSS: .btn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compile(tt.sel, Options{})
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if c.Description != tt.want {
				t.Errorf("Description = %q, want %q", c.Description, tt.want)
			}
		})
	}
}

func TestCompile_UnknownTrait(t *testing.T) {
	if _, err := Compile(&flow.Selector{Traits: "round"}, Options{}); !errors.Is(err, core.ErrInvalidCommand) {
		t.Errorf("error = %v, want ErrInvalidCommand", err)
	}
}

func TestCompile_Cycle(t *testing.T) {
	a := &flow.Selector{Text: "a"}
	b := &flow.Selector{Text: "b", Below: a}
	a.Above = b

	if _, err := Compile(a, Options{}); !errors.Is(err, core.ErrSelectorCycle) {
		t.Errorf("Compile() error = %v, want ErrSelectorCycle", err)
	}

	c := &flow.Selector{Text: "c"}
	c.ChildOf = c
	if err := CheckCycles(c); !errors.Is(err, core.ErrSelectorCycle) {
		t.Errorf("CheckCycles() error = %v, want ErrSelectorCycle", err)
	}
	if _, err := Compile(c, Options{}); !errors.Is(err, core.ErrSelectorCycle) {
		t.Errorf("Compile() with childOf cycle error = %v, want ErrSelectorCycle", err)
	}

	// Shared, acyclic references are fine.
	shared := &flow.Selector{Text: "x"}
	ok := &flow.Selector{Below: shared, Above: shared}
	if err := CheckCycles(ok); err != nil {
		t.Errorf("CheckCycles() on shared selector = %v", err)
	}
}

func TestCompile_NilSelector(t *testing.T) {
	root := node(nil, node(nil))
	c, err := Compile(nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Filter(root.Aggregate()); len(got) != 2 {
		t.Errorf("nil selector matched %d nodes, want all", len(got))
	}
}
