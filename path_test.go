package statspush

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointer(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		for _, ptr := range []string{
			"/a",
			"/workers/2/cores/1/requests",
			"/a~1b/c~0d",
			"/0/1",
		} {
			t.Run(ptr, func(t *testing.T) {
				p, err := ParsePointer(ptr)
				require.NoError(t, err)
				assert.Equal(t, ptr, p.String())
			})
		}
	})
	t.Run("Escaping", func(t *testing.T) {
		p, err := ParsePointer("/a~1b/c~0d")
		require.NoError(t, err)
		require.Len(t, p, 2)
		assert.Equal(t, "a/b", p[0].Name())
		assert.Equal(t, "c~d", p[1].Name())

		assert.Equal(t, "/x~1y", Path{Key("x/y")}.String())
	})
	t.Run("DigitsBecomeIndexes", func(t *testing.T) {
		p, err := ParsePointer("/workers/12/x1")
		require.NoError(t, err)
		assert.True(t, p.Equal(Path{Key("workers"), Index(12), Key("x1")}))

		p, err = ParsePointer("/workers/0/requests")
		require.NoError(t, err)
		assert.True(t, p.Equal(Path{Key("workers"), Index(0), Key("requests")}))
	})
	t.Run("Errors", func(t *testing.T) {
		for _, ptr := range []string{
			"",
			"/",
			"a/b",
			"/a//b",
			"/a/",
			"/workers/01",
			"/workers/00/requests",
		} {
			t.Run(ptr, func(t *testing.T) {
				_, err := ParsePointer(ptr)
				assert.Error(t, err)
			})
		}
	})
}

func TestPath(t *testing.T) {
	t.Run("AppendDoesNotAlias", func(t *testing.T) {
		base := make(Path, 1, 4)
		base[0] = Key("a")
		one := base.Append(Key("b"))
		two := base.Append(Key("c"))
		assert.Equal(t, "/a/b", one.String())
		assert.Equal(t, "/a/c", two.String())
		assert.Equal(t, "/a", base.String())
	})
	t.Run("Validate", func(t *testing.T) {
		assert.Error(t, Path{}.Validate())
		assert.Error(t, Path{Key("")}.Validate())
		assert.Error(t, Path{Key("a"), Index(-1)}.Validate())
		assert.NoError(t, Path{Key("a"), Index(0)}.Validate())
	})
	t.Run("Equal", func(t *testing.T) {
		assert.True(t, Path{Key("a"), Index(1)}.Equal(Path{Key("a"), Index(1)}))
		assert.False(t, Path{Key("a"), Index(1)}.Equal(Path{Key("a"), Key("1")}))
		assert.False(t, Path{Key("a")}.Equal(Path{Key("a"), Index(0)}))
	})
}

func TestLookup(t *testing.T) {
	doc := mustParse(`{"a": {"b": [1, {"c": "x"}]}, "n": null}`)

	val, ok := doc.Lookup(mustPath("/a/b/1/c"))
	require.True(t, ok)
	s, ok := val.AsString()
	require.True(t, ok)
	assert.Equal(t, "x", s)

	assert.True(t, doc.Exists(mustPath("/n")))
	assert.True(t, doc.Exists(mustPath("/a/b/0")))
	assert.False(t, doc.Exists(mustPath("/a/b/2")))
	assert.False(t, doc.Exists(mustPath("/a/c")))
	assert.False(t, doc.Exists(mustPath("/a/b/c")))
	assert.False(t, doc.Exists(mustPath("/a/b/0/x")))
}

func TestSetPath(t *testing.T) {
	for _, test := range []struct {
		name   string
		input  string
		path   string
		value  *Document
		expect string
	}{
		{
			name:   "NewTopLevelField",
			input:  `{"a": 1}`,
			path:   "/b",
			value:  Int(2),
			expect: `{"a": 1, "b": 2}`,
		},
		{
			name:   "ReplaceKeepsPosition",
			input:  `{"a": 1, "b": 2}`,
			path:   "/a",
			value:  Int(3),
			expect: `{"a": 3, "b": 2}`,
		},
		{
			name:   "IntermediateMappings",
			input:  `{}`,
			path:   "/a/b/c",
			value:  String("x"),
			expect: `{"a": {"b": {"c": "x"}}}`,
		},
		{
			name:   "IntermediateSequence",
			input:  `{}`,
			path:   "/workers/0/requests",
			value:  Int(5),
			expect: `{"workers": [{"requests": 5}]}`,
		},
		{
			name:   "SiblingsKept",
			input:  `{"workers": [{"id": 1, "requests": 10}, {"id": 2}]}`,
			path:   "/workers/1/requests",
			value:  Int(7),
			expect: `{"workers": [{"id": 1, "requests": 10}, {"id": 2, "requests": 7}]}`,
		},
		{
			name:   "AppendAtEnd",
			input:  `{"cores": [1, 2]}`,
			path:   "/cores/2",
			value:  Int(3),
			expect: `{"cores": [1, 2, 3]}`,
		},
		{
			name:   "AppendContainerAtEnd",
			input:  `{"workers": [{"id": 1}]}`,
			path:   "/workers/1/cores/0/requests",
			value:  Int(3),
			expect: `{"workers": [{"id": 1}, {"cores": [{"requests": 3}]}]}`,
		},
		{
			name:   "ReplaceSequenceItem",
			input:  `{"cores": [1, 2]}`,
			path:   "/cores/0",
			value:  Map(Elem("x", Bool(true))),
			expect: `{"cores": [{"x": true}, 2]}`,
		},
		{
			name:   "NilValueIsNull",
			input:  `{"a": 1}`,
			path:   "/a",
			value:  nil,
			expect: `{"a": null}`,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			doc := mustParse(test.input)
			require.NoError(t, doc.SetPath(mustPath(test.path), test.value))
			assert.True(t, mustParse(test.expect).Equal(doc), "got %s", doc)
		})
	}
	t.Run("Errors", func(t *testing.T) {
		for _, test := range []struct {
			name  string
			input string
			path  Path
		}{
			{name: "ThroughScalar", input: `{"a": 1}`, path: mustPath("/a/b")},
			{name: "IndexIntoMapping", input: `{"a": {"b": 1}}`, path: mustPath("/a/0")},
			{name: "KeyIntoSequence", input: `{"a": [1]}`, path: mustPath("/a/b")},
			{name: "PastTheEnd", input: `{"a": [1]}`, path: mustPath("/a/2")},
			{name: "PastTheEndOfNewSequence", input: `{}`, path: mustPath("/workers/3/requests")},
			{name: "PastTheEndDeep", input: `{"a": {"b": 1}}`, path: mustPath("/a/c/1")},
			{name: "Empty", input: `{"a": 1}`, path: Path{}},
			{name: "NegativeIndex", input: `{"a": [1]}`, path: Path{Key("a"), Index(-1)}},
		} {
			t.Run(test.name, func(t *testing.T) {
				doc := mustParse(test.input)
				before := doc.Clone()

				err := doc.SetPath(test.path, Int(42))
				require.Error(t, err)
				assert.True(t, IsPathApplyError(err))
				assert.True(t, before.Equal(doc), "document changed to %s", doc)
			})
		}
	})
	t.Run("NilDocument", func(t *testing.T) {
		var doc *Document
		err := doc.SetPath(mustPath("/a"), Int(1))
		require.Error(t, err)
		assert.True(t, IsPathApplyError(err))
	})
	t.Run("RootIsNotAMapping", func(t *testing.T) {
		doc := Array(Int(1))
		err := doc.SetPath(mustPath("/a"), Int(1))
		require.Error(t, err)
		assert.Equal(t, 1, doc.Len())
	})
}
