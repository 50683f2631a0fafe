package pylift_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/2x3systems/golift/pylift"
	"github.com/go-python/gpython/py"
	"github.com/stretchr/testify/require"

	_ "github.com/go-python/gpython/stdlib"
)

func runScript(t *testing.T, script string) error {
	t.Helper()
	pyFile := filepath.Join(t.TempDir(), "script.py")
	require.NoError(t, os.WriteFile(pyFile, []byte(script), 0600))

	ctx := py.NewContext(py.DefaultContextOpts())
	_, err := pylift.RunFile(ctx, pyFile, nil)
	ctx.Close()
	<-ctx.Done()
	return err
}

func TestColourPass(t *testing.T) {
	err := runScript(t, `
import _pylift

g = _pylift.NewGraph()
for name in ["A", "B", "C"]:
    g.AddVar(name)
g.AddFactor("f1", ("A", "B"), (1, 2, 3, 4))
g.AddFactor("f2", ["C", "B"], [1.0, 2.0, 3.0, 4.0])
assert g.NumVars() == 3
assert g.NumFactors() == 2

lift = g.ColourPass(False)
assert lift.NumVarGroups() == 2
assert lift.NumFactorGroups() == 1
v = lift.VarColours()
assert v["A"] == v["C"]
assert v["A"] != v["B"]
f = lift.FactorColours()
assert f["f1"] == f["f2"]
`)
	require.NoError(t, err)
}

func TestParseGraph(t *testing.T) {
	err := runScript(t, `
import _pylift

g = _pylift.ParseGraph("""
var A, B, C
factor f1(A, B) = [1, 2, 3, 4]
factor f2(C, B) = [2, 4, 6, 8]
""")
assert len(g.Fingerprint()) > 0

exact = g.ColourPass(False)
assert exact.NumFactorGroups() == 2

scaled = g.ColourPass(True, _pylift.DEFAULT_SEARCH_DEPTH)
assert scaled.NumFactorGroups() == 1
assert scaled.NumVarGroups() == 2
`)
	require.NoError(t, err)
}

func TestCatalog(t *testing.T) {
	err := runScript(t, `
import _pylift

g = _pylift.ParseGraph("var A, B\nfactor f(A, B) = [1, 2, 2, 3]\n")
lift = g.ColourPass(False)

ws = _pylift.GetWorkspace()
cat = ws.OpenCatalog("", 0)
assert cat.NumEntries() == 0
assert cat.Lookup(g) is None

cat.Store(g, lift)
assert cat.NumEntries() == 1
rec = cat.Lookup(g)
assert rec[0] == lift.NumVarGroups()
assert rec[1] == lift.NumFactorGroups()
assert rec[2] == lift.Passes()
cat.Close()
`)
	require.NoError(t, err)
}

func TestScriptErrors(t *testing.T) {
	err := runScript(t, `
import _pylift

g = _pylift.NewGraph()
g.AddVar("A")
g.AddFactor("f", ("A", "Z"), (1, 2, 3, 4))
`)
	require.Error(t, err)

	err = runScript(t, `
import _pylift

_pylift.ParseGraph("factor f(")
`)
	require.Error(t, err)
}

func TestRunFilePaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0700))
	pyFile := filepath.Join(dir, "sub", "graph.py")
	require.NoError(t, os.WriteFile(pyFile, []byte("import _pylift\nassert _pylift.MAX_FACTOR_ARITY > 1\n"), 0600))

	for _, pathname := range []string{pyFile, filepath.Join("sub", "graph.py")} {
		t.Run(pathname, func(t *testing.T) {
			prevWD, wdErr := os.Getwd()
			require.NoError(t, wdErr)
			require.NoError(t, os.Chdir(dir))
			t.Cleanup(func() { _ = os.Chdir(prevWD) })
			ctx := py.NewContext(py.DefaultContextOpts())
			defer func() {
				ctx.Close()
				<-ctx.Done()
			}()
			_, err := pylift.RunFile(ctx, pathname, nil)
			require.NoError(t, err)
		})
	}

	ctx := py.NewContext(py.DefaultContextOpts())
	_, err := pylift.RunFile(ctx, filepath.Join(dir, "missing.py"), nil)
	ctx.Close()
	<-ctx.Done()
	require.Error(t, err)
}
