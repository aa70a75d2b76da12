//go:build property

package compiler

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/tanglekit/tangle/internal/registry"
	"github.com/tanglekit/tangle/internal/types"
)

// TestCompilerDeterminismProperties validates that resolution output never
// depends on bucket insertion order or on rerunning against the same index.
func TestCompilerDeterminismProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234) // For reproducible results
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("rerun yields byte-identical output", prop.ForAll(
		func(orders []int) bool {
			index := registry.NewSourceIndex()
			index.Register(srcFileP("entry.md", `{{includeTag "t"}}`))
			for i, order := range orders {
				f := srcFileP(fmt.Sprintf("f%03d.md", i), fmt.Sprintf("body-%d", i))
				f.Compiler.Tags = []string{"t"}
				f.Compiler.Order = order % 10
				index.Register(f)
			}

			c := New(index, nil, nil, Options{Root: t.TempDir(), Entry: "entry.md"})
			first, err := c.Compile(context.Background())
			if err != nil {
				return false
			}
			second, err := c.Compile(context.Background())
			if err != nil {
				return false
			}
			return first.Output == second.Output
		},
		gen.SliceOf(gen.IntRange(0, 9)),
	))

	properties.Property("output independent of registration order", prop.ForAll(
		func(orders []int) bool {
			if len(orders) == 0 {
				return true
			}

			forward := registry.NewSourceIndex()
			reverse := registry.NewSourceIndex()
			forward.Register(srcFileP("entry.md", `{{includeTag "t"}}`))
			reverse.Register(srcFileP("entry.md", `{{includeTag "t"}}`))

			files := make([]*types.SourceFile, len(orders))
			for i, order := range orders {
				f := srcFileP(fmt.Sprintf("f%03d.md", i), fmt.Sprintf("body-%d", i))
				f.Compiler.Tags = []string{"t"}
				f.Compiler.Order = order % 10
				files[i] = f
			}
			for _, f := range files {
				forward.Register(f)
			}
			for i := len(files) - 1; i >= 0; i-- {
				reverse.Register(files[i])
			}

			root := t.TempDir()
			a, err := New(forward, nil, nil, Options{Root: root, Entry: "entry.md"}).Compile(context.Background())
			if err != nil {
				return false
			}
			b, err := New(reverse, nil, nil, Options{Root: root, Entry: "entry.md"}).Compile(context.Background())
			if err != nil {
				return false
			}
			return a.Output == b.Output
		},
		gen.SliceOf(gen.IntRange(0, 9)),
	))

	properties.TestingRun(t)
}

func srcFileP(path, body string) *types.SourceFile {
	return &types.SourceFile{
		Path:     path,
		Body:     body,
		Meta:     types.Metadata{},
		Compiler: types.CompilerMeta{Order: types.DefaultOrder},
	}
}
