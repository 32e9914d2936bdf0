package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/quilldocs/internal/diag"
)

func writeMetadata(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const mathModule = `
module: math
title: Math
description: Mathematical functions. See [math.sin].
groups:
  - name: trig
    title: Trigonometry
    symbols: [sin]
functions:
  - name: sin
    title: Sine
    description: Computes the sine of an angle.
    params:
      - name: angle
        type: angle
        required: true
    returns: float
    see: [math.pi]
types:
  - name: vector
    description: A fixed-length numeric vector.
constants:
  - name: pi
    type: float
    description: Ratio of circumference to diameter.
`

func TestLoad_ValidModule_AssignsDeterministicIDs(t *testing.T) {
	dir := t.TempDir()
	writeMetadata(t, dir, "math.yaml", mathModule)

	report := diag.NewReport()
	reg, err := Load(dir, report)
	require.NoError(t, err)
	require.Equal(t, 0, report.Len())

	sin, ok := reg.Symbol("math.sin")
	require.True(t, ok)
	require.Equal(t, KindFunction, sin.Kind)
	require.Equal(t, "math", sin.Module)
	require.Equal(t, "Sine", sin.Title)
	require.Equal(t, []string{"math.pi"}, sin.See)
	require.Len(t, sin.Params, 1)
	require.Equal(t, "angle", sin.Params[0].Name)

	pi, ok := reg.Symbol("math.pi")
	require.True(t, ok)
	require.Equal(t, KindConstant, pi.Kind)

	vec, ok := reg.Symbol("math.vector")
	require.True(t, ok)
	require.Equal(t, KindType, vec.Kind)
}

func TestLoad_IdenticalInput_IdenticalRegistry(t *testing.T) {
	dir := t.TempDir()
	writeMetadata(t, dir, "math.yaml", mathModule)

	first, err := Load(dir, diag.NewReport())
	require.NoError(t, err)
	second, err := Load(dir, diag.NewReport())
	require.NoError(t, err)

	require.Equal(t, first.moduleOrder, second.moduleOrder)
	m1, _ := first.Module("math")
	m2, _ := second.Module("math")
	require.Equal(t, m1.SymbolIDs, m2.SymbolIDs)
}

func TestLoad_DuplicateModule_RecordsDuplicateID(t *testing.T) {
	dir := t.TempDir()
	writeMetadata(t, dir, "a.yaml", "module: math\nfunctions:\n  - name: sin\n")
	writeMetadata(t, dir, "b.yaml", "module: math\nfunctions:\n  - name: cos\n")

	report := diag.NewReport()
	reg, err := Load(dir, report)
	require.NoError(t, err)

	counts := report.CountByKind()
	require.Equal(t, 1, counts[diag.KindDuplicateID])
	require.True(t, report.HasStructural())

	// First declaration wins; the duplicate file is skipped entirely.
	_, ok := reg.Symbol("math.sin")
	require.True(t, ok)
	_, ok = reg.Symbol("math.cos")
	require.False(t, ok)
}

func TestLoad_DuplicateNameWithinFile_RecordsDuplicateID(t *testing.T) {
	dir := t.TempDir()
	writeMetadata(t, dir, "math.yaml", `
module: math
functions:
  - name: sin
constants:
  - name: sin
    type: float
`)

	report := diag.NewReport()
	reg, err := Load(dir, report)
	require.NoError(t, err)

	require.Equal(t, 1, report.CountByKind()[diag.KindDuplicateID])
	require.True(t, report.HasStructural())

	// The whole file is skipped; neither declaration survives.
	_, ok := reg.Symbol("math.sin")
	require.False(t, ok)
	_, ok = reg.Module("math")
	require.False(t, ok)
}

func TestLoad_DuplicateNameSameKind_RecordsDuplicateID(t *testing.T) {
	dir := t.TempDir()
	writeMetadata(t, dir, "math.yaml", "module: math\nfunctions:\n  - name: sin\n  - name: sin\n")

	report := diag.NewReport()
	_, err := Load(dir, report)
	require.NoError(t, err)
	require.Equal(t, 1, report.CountByKind()[diag.KindDuplicateID])
}

func TestLoad_UnknownField_SchemaErrorSkipsFile(t *testing.T) {
	dir := t.TempDir()
	writeMetadata(t, dir, "bad.yaml", "module: bad\nbogus_field: 1\n")
	writeMetadata(t, dir, "good.yaml", "module: good\nconstants:\n  - name: answer\n    type: int\n")

	report := diag.NewReport()
	reg, err := Load(dir, report)
	require.NoError(t, err)

	require.Equal(t, 1, report.CountByKind()[diag.KindSchemaError])
	_, ok := reg.Module("bad")
	require.False(t, ok)
	_, ok = reg.Symbol("good.answer")
	require.True(t, ok)
}

func TestLoad_GroupReferencesUndeclaredSymbol_SchemaError(t *testing.T) {
	dir := t.TempDir()
	writeMetadata(t, dir, "m.yaml", `
module: m
groups:
  - name: g
    symbols: [missing]
`)

	report := diag.NewReport()
	reg, err := Load(dir, report)
	require.NoError(t, err)
	require.Equal(t, 1, report.CountByKind()[diag.KindSchemaError])
	_, ok := reg.Module("m")
	require.False(t, ok)
}

func TestLoad_DottedModuleWithoutParent_Dropped(t *testing.T) {
	dir := t.TempDir()
	writeMetadata(t, dir, "vec.yaml", "module: math.vec\nfunctions:\n  - name: dot\n")

	report := diag.NewReport()
	reg, err := Load(dir, report)
	require.NoError(t, err)
	require.Equal(t, 1, report.CountByKind()[diag.KindSchemaError])
	_, ok := reg.Symbol("math.vec.dot")
	require.False(t, ok)

	// The diagnostic points at the declaring metadata file, not the module id.
	all := report.All()
	require.Len(t, all, 1)
	require.Equal(t, filepath.Join(dir, "vec.yaml"), all[0].Location.File)
}

func TestLoad_DottedModuleWithParent_Kept(t *testing.T) {
	dir := t.TempDir()
	writeMetadata(t, dir, "math.yaml", "module: math\n")
	writeMetadata(t, dir, "vec.yaml", "module: math.vec\nfunctions:\n  - name: dot\n")

	report := diag.NewReport()
	reg, err := Load(dir, report)
	require.NoError(t, err)
	require.Equal(t, 0, report.Len())

	dot, ok := reg.Symbol("math.vec.dot")
	require.True(t, ok)
	require.Equal(t, "math.vec", dot.Module)
}

func TestMatchShort_FindsAcrossModules(t *testing.T) {
	dir := t.TempDir()
	writeMetadata(t, dir, "math.yaml", "module: math\nfunctions:\n  - name: min\n")
	writeMetadata(t, dir, "array.yaml", "module: array\nfunctions:\n  - name: min\n")

	reg, err := Load(dir, diag.NewReport())
	require.NoError(t, err)

	matches := reg.MatchShort("min")
	require.Equal(t, []string{"array.min", "math.min"}, matches)
}

func TestRouteFor_ModulesAndSymbols(t *testing.T) {
	require.Equal(t, "/reference/math/", RouteFor("math"))
	require.Equal(t, "/reference/math/vec/dot/", RouteFor("math.vec.dot"))
}

func TestLoad_EmptyDir_EmptyRegistry(t *testing.T) {
	reg, err := Load(t.TempDir(), diag.NewReport())
	require.NoError(t, err)
	require.Equal(t, 0, reg.Len())
	require.Empty(t, reg.Modules())
}

func TestLoad_NoDirConfigured_EmptyRegistry(t *testing.T) {
	reg, err := Load("", diag.NewReport())
	require.NoError(t, err)
	require.Equal(t, 0, reg.Len())
}
