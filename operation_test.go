package statspush

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOperations(t *testing.T) {
	t.Run("AddAndReplace", func(t *testing.T) {
		base := mustParse(`{"workers": [{"requests": 10}]}`)
		metrics := Map(
			Elem("worker.1.requests", metric(Int(12))),
			Elem("worker.1.exceptions", metric(Int(2))),
			Elem("worker.0.load", metric(Float(0.5))),
		)

		ops, skipped := BuildOperations(metrics, base)
		require.Empty(t, skipped)
		require.Len(t, ops, 3)

		assert.Equal(t, OpReplace, ops[0].Kind)
		assert.Equal(t, "/workers/0/requests", ops[0].Path.String())
		assert.Equal(t, "worker.1.requests", ops[0].Key)
		assert.True(t, Int(12).Equal(ops[0].Value))

		assert.Equal(t, OpAdd, ops[1].Kind)
		assert.Equal(t, "/workers/0/exceptions", ops[1].Path.String())

		assert.Equal(t, OpAdd, ops[2].Kind)
		assert.Equal(t, "/load", ops[2].Path.String())
	})
	t.Run("BaseIsNotModified", func(t *testing.T) {
		base := mustParse(uwsgiSnapshot)
		before := base.Clone()
		metrics, ok := base.Get("metrics")
		require.True(t, ok)

		ops, _ := BuildOperations(metrics, base)
		assert.NotEmpty(t, ops)
		assert.True(t, before.Equal(base))
	})
	t.Run("SkipsBadKeysAndContinues", func(t *testing.T) {
		metrics := Map()
		for i := 1; i <= 10; i++ {
			key := fmt.Sprintf("worker.%d.requests", i)
			if i == 5 {
				key = "worker..requests"
			}
			metrics.Put(key, metric(Int(int64(i))))
		}

		ops, skipped := BuildOperations(metrics, Map())
		assert.Len(t, ops, 9)
		require.Len(t, skipped, 1)
		assert.True(t, IsTranscodeError(skipped[0]))
	})
	t.Run("MissingValuesAreSilent", func(t *testing.T) {
		metrics := Map(
			Elem("a", Map(Elem("type", String("gauge")))),
			Elem("b", metric(Null())),
			Elem("c", metric(Int(1))),
		)

		ops, skipped := BuildOperations(metrics, Map())
		assert.Empty(t, skipped)
		require.Len(t, ops, 1)
		assert.Equal(t, "/c", ops[0].Path.String())
	})
	t.Run("NonMappingDescriptor", func(t *testing.T) {
		metrics := Map(
			Elem("a", Int(1)),
			Elem("b", metric(String("x"))),
		)

		ops, skipped := BuildOperations(metrics, Map())
		assert.Len(t, skipped, 1)
		require.Len(t, ops, 1)
		assert.Equal(t, "/b", ops[0].Path.String())
	})
	t.Run("SharedPathKeepsOrder", func(t *testing.T) {
		metrics := Map(
			Elem("worker.1.busyness", metric(Int(1))),
			Elem("worker.1.plugin.cheaper_busyness.busyness", metric(Int(2))),
		)

		ops, skipped := BuildOperations(metrics, Map())
		assert.Empty(t, skipped)
		require.Len(t, ops, 2)
		assert.True(t, ops[0].Path.Equal(ops[1].Path))

		doc := Map()
		for _, op := range ops {
			require.NoError(t, op.Apply(doc))
		}
		got, ok := lookupInt(doc, "/workers/0/busyness")
		require.True(t, ok)
		assert.EqualValues(t, 2, got)
	})
	t.Run("NotAMapping", func(t *testing.T) {
		ops, skipped := BuildOperations(Array(), Map())
		assert.Empty(t, ops)
		assert.Len(t, skipped, 1)
	})
	t.Run("OperationKindNames", func(t *testing.T) {
		assert.Equal(t, "add", OpAdd.String())
		assert.Equal(t, "replace", OpReplace.String())
	})
}

func TestOperationApply(t *testing.T) {
	t.Run("ValueIsCopied", func(t *testing.T) {
		value := Map(Elem("x", Int(1)))
		op := Operation{Kind: OpAdd, Path: mustPath("/a"), Value: value, Key: "a"}

		doc := Map()
		require.NoError(t, op.Apply(doc))
		value.Put("x", Int(2))

		got, ok := lookupInt(doc, "/a/x")
		require.True(t, ok)
		assert.EqualValues(t, 1, got)
	})
	t.Run("ErrorNamesMetric", func(t *testing.T) {
		op := Operation{Kind: OpAdd, Path: mustPath("/a/b"), Value: Int(1), Key: "a.b"}
		err := op.Apply(Map(Elem("a", Int(1))))
		require.Error(t, err)
		assert.True(t, IsPathApplyError(err))
		assert.Contains(t, err.Error(), "a.b")
	})
}
