package diag

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindFatal_ClassifiesPerPolicy(t *testing.T) {
	require.True(t, KindBrokenReference.Fatal())
	require.True(t, KindCompileFailure.Fatal())
	require.True(t, KindDuplicateID.Fatal())
	require.True(t, KindDuplicateRoute.Fatal())
	require.False(t, KindRenderFailure.Fatal())
	require.False(t, KindMalformedFrontMatter.Fatal())
	require.False(t, KindSchemaError.Fatal())
}

func TestKindStructural_OnlyDuplicates(t *testing.T) {
	require.True(t, KindDuplicateID.Structural())
	require.True(t, KindDuplicateRoute.Structural())
	require.False(t, KindBrokenReference.Structural())
	require.False(t, KindCompileFailure.Structural())
}

func TestReportAll_SortsByLocationThenKind(t *testing.T) {
	r := NewReport()
	r.Addf(KindRenderFailure, Location{File: "b.md", Line: 3}, "late")
	r.Addf(KindBrokenReference, Location{File: "a.md", Line: 9}, "second")
	r.Addf(KindBrokenReference, Location{File: "a.md", Line: 2}, "first")

	all := r.All()
	require.Len(t, all, 3)
	require.Equal(t, "first", all[0].Message)
	require.Equal(t, "second", all[1].Message)
	require.Equal(t, "late", all[2].Message)
}

func TestReportAll_DeterministicUnderConcurrentAdds(t *testing.T) {
	build := func() []Diagnostic {
		r := NewReport()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				loc := Location{File: "page.md", Line: n + 1}
				r.Addf(KindBrokenReference, loc, "broken")
				r.Addf(KindRenderFailure, loc, "render")
			}(i)
		}
		wg.Wait()
		return r.All()
	}

	first := build()
	second := build()
	require.Equal(t, first, second)
}

func TestReportHasFatal_TrueOnlyForFatalKinds(t *testing.T) {
	r := NewReport()
	r.Addf(KindRenderFailure, Location{File: "a.md"}, "soft")
	require.False(t, r.HasFatal())

	r.Addf(KindBrokenReference, Location{File: "a.md"}, "hard")
	require.True(t, r.HasFatal())
}

func TestReportCountByKind_Counts(t *testing.T) {
	r := NewReport()
	r.Addf(KindBrokenReference, Location{File: "a.md"}, "x")
	r.Addf(KindBrokenReference, Location{File: "b.md"}, "y")
	r.Addf(KindSchemaError, Location{File: "m.yaml"}, "z")

	counts := r.CountByKind()
	require.Equal(t, 2, counts[KindBrokenReference])
	require.Equal(t, 1, counts[KindSchemaError])
}

func TestDiagnosticString_IncludesLine(t *testing.T) {
	d := Diagnostic{
		Kind:     KindBrokenReference,
		Location: Location{File: "guides/intro.md", Line: 12},
		Message:  "unresolved reference [foo.bar]",
	}
	require.Equal(t, "broken_reference: guides/intro.md:12: unresolved reference [foo.bar]", d.String())
}
