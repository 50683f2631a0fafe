package pylift

import (
	"path/filepath"

	"github.com/go-python/gpython/py"
)

// RunFile runs the python file at pathname in ctx (see py.RunCode for inModule).
//
// gpython resolves a run path relative to its search paths, which mangles absolute paths, so the file is
// named relative to its own directory.
func RunFile(ctx py.Context, pathname string, inModule interface{}) (*py.Module, error) {
	abs, err := filepath.Abs(pathname)
	if err != nil {
		return nil, err
	}
	opts := py.CompileOpts{
		CurDir: filepath.Dir(abs),
	}
	return py.RunFile(ctx, filepath.Base(abs), opts, inModule)
}
