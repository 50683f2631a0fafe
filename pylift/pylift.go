package pylift

import (
	"context"
	"os"
	"strings"

	"github.com/2x3systems/golift/golift"
	"github.com/2x3systems/golift/liblift"
	"github.com/2x3systems/golift/liblift/catalog"
	"github.com/2x3systems/golift/libfg"
	"github.com/go-python/gpython/py"
	"github.com/pkg/errors"
)

var (
	LIB_VERSION = "v1.2024.1"
)

var (
	pyGraphType     = py.NewType("Graph", "a factor graph of random variables and factors")
	pyLiftingType   = py.NewType("Lifting", "the colour classes found by colour passing")
	pyCatalogType   = py.NewType("Catalog", "golift.Catalog")
	pyWorkspaceType = py.NewType("Workspace", "collects active session resources and catalogs")
)

type pyGraph struct {
	*libfg.FactorGraph
}

func (fg pyGraph) Type() *py.Type {
	return pyGraphType
}

func (fg pyGraph) M__str__() (py.Object, error) {
	writer := strings.Builder{}
	fg.WriteAsString(&writer)
	return py.String(writer.String()), nil
}

func (fg pyGraph) M__repr__() (py.Object, error) {
	return fg.M__str__()
}

func getGraph(obj py.Object) (pyGraph, error) {
	fg, ok := obj.(pyGraph)
	if !ok {
		return pyGraph{}, py.ExceptionNewf(py.TypeError, "expected Graph object (got %v)", obj.Type().Name)
	}
	return fg, nil
}

func py_NewGraph(module py.Object, args py.Tuple) (py.Object, error) {
	return py.Object(pyGraph{libfg.NewFactorGraph()}), nil
}

// Arg 1 (str): graph text
func py_ParseGraph(module py.Object, args py.Tuple) (py.Object, error) {
	var graphExpr string
	err := py.LoadTuple(args, []interface{}{&graphExpr})
	if err != nil {
		return nil, err
	}
	fg, err := libfg.ParseFactorGraph(graphExpr)
	if err != nil {
		return nil, py.ExceptionNewf(py.ValueError, "%v", err)
	}
	return py.Object(pyGraph{fg}), nil
}

// Arg 1 (str): variable name
// Arg 2 (str, optional): evidence label
func py_Graph_AddVar(self py.Object, args py.Tuple) (py.Object, error) {
	fg := self.(pyGraph)
	if len(args) < 1 || len(args) > 2 {
		return nil, py.ExceptionNewf(py.TypeError, "AddVar() takes 1 or 2 arguments (%d given)", len(args))
	}
	strs, err := loadStrings(args)
	if err != nil {
		return nil, err
	}
	evidence := ""
	if len(strs) > 1 {
		evidence = strs[1]
	}
	if _, err = fg.AddVariable(strs[0], nil, evidence); err != nil {
		return nil, py.ExceptionNewf(py.ValueError, "%v", err)
	}
	return py.None, nil
}

// Arg 1 (str): factor name
// Arg 2 (sequence of str): argument names
// Arg 3 (sequence of numbers): table, first argument most significant
func py_Graph_AddFactor(self py.Object, args py.Tuple) (py.Object, error) {
	fg := self.(pyGraph)
	if len(args) != 3 {
		return nil, py.ExceptionNewf(py.TypeError, "AddFactor() takes 3 arguments (%d given)", len(args))
	}
	name, ok := args[0].(py.String)
	if !ok {
		return nil, py.ExceptionNewf(py.TypeError, "factor name must be a str")
	}
	argNames, err := loadStrings(sequenceItems(args[1]))
	if err != nil {
		return nil, err
	}
	table, err := loadFloats(sequenceItems(args[2]))
	if err != nil {
		return nil, err
	}
	if _, err = fg.AddFactorWithEdges(string(name), argNames, table); err != nil {
		return nil, py.ExceptionNewf(py.ValueError, "%v", err)
	}
	return py.None, nil
}

func py_Graph_NumVars(self py.Object, args py.Tuple) (py.Object, error) {
	fg := self.(pyGraph)
	return py.Object(py.Int(fg.NumVars())), nil
}

func py_Graph_NumFactors(self py.Object, args py.Tuple) (py.Object, error) {
	fg := self.(pyGraph)
	return py.Object(py.Int(fg.NumFactors())), nil
}

func py_Graph_Fingerprint(self py.Object, args py.Tuple) (py.Object, error) {
	fg := self.(pyGraph)
	return py.String(fg.Fingerprint().String()), nil
}

// Arg 1 (bool, optional): use alpha
// Arg 2 (int, optional): search depth
func py_Graph_ColourPass(self py.Object, args py.Tuple) (py.Object, error) {
	fg := self.(pyGraph)
	opts := liblift.ColourPassOpts{}
	if len(args) > 0 {
		useAlpha, ok := args[0].(py.Bool)
		if !ok {
			return nil, py.ExceptionNewf(py.TypeError, "use_alpha must be a bool")
		}
		opts.UseAlpha = bool(useAlpha)
	}
	if len(args) > 1 {
		depth, err := py.GetInt(args[1])
		if err != nil {
			return nil, err
		}
		opts.SearchDepth = int(depth)
	}

	lift, err := liblift.ColourPass(context.Background(), fg.FactorGraph, opts)
	if err != nil {
		return nil, py.ExceptionNewf(py.ValueError, "%v", err)
	}
	return py.Object(pyLifting{lift}), nil
}

type pyLifting struct {
	*liblift.Lifting
}

func (lift pyLifting) Type() *py.Type {
	return pyLiftingType
}

func py_Lifting_VarColours(self py.Object, args py.Tuple) (py.Object, error) {
	lift := self.(pyLifting)
	colours := py.NewStringDictSized(len(lift.VarColours))
	for _, rv := range lift.Graph.Vars() {
		colours[rv.Name()] = py.Int(lift.VarColours[rv.ID()])
	}
	return colours, nil
}

func py_Lifting_FactorColours(self py.Object, args py.Tuple) (py.Object, error) {
	lift := self.(pyLifting)
	colours := py.NewStringDictSized(len(lift.FactorColours))
	for _, f := range lift.Graph.Factors() {
		colours[f.Name()] = py.Int(lift.FactorColours[f.ID()])
	}
	return colours, nil
}

func py_Lifting_NumVarGroups(self py.Object, args py.Tuple) (py.Object, error) {
	lift := self.(pyLifting)
	return py.Int(len(lift.VarGroups())), nil
}

func py_Lifting_NumFactorGroups(self py.Object, args py.Tuple) (py.Object, error) {
	lift := self.(pyLifting)
	return py.Int(len(lift.FactorGroups())), nil
}

func py_Lifting_Passes(self py.Object, args py.Tuple) (py.Object, error) {
	lift := self.(pyLifting)
	return py.Int(lift.Passes), nil
}

const (
	READ_ONLY = 0x01

	kWorkspaceAttr = "_Workspace"
)

type Workspace struct {
	CatalogCtx golift.CatalogContext
}

func (ws *Workspace) Close() {
	ws.CatalogCtx.Close()
	<-ws.CatalogCtx.Done()
}

func (ws *Workspace) Type() *py.Type {
	return pyWorkspaceType
}

func py_GetWorkspace(module py.Object, args py.Tuple) (py.Object, error) {
	wsObj, _ := py.GetAttrString(module, kWorkspaceAttr)
	if wsObj == nil {
		ws := &Workspace{
			CatalogCtx: golift.NewCatalogContext(),
		}
		wsObj = ws
		py.SetAttrString(module, kWorkspaceAttr, wsObj)
	}
	return wsObj, nil
}

func py_Workspace_CatalogExists(self py.Object, args py.Tuple) (py.Object, error) {
	_ = self.(*Workspace)

	var pathname string
	err := py.LoadTuple(args, []interface{}{&pathname})
	if err != nil {
		return nil, err
	}
	_, err = os.Stat(pathname)
	if os.IsNotExist(err) {
		return py.False, nil
	}
	return py.True, nil
}

// Arg 1 (str): catalog pathname ("" for in-memory)
// Arg 2 (int): flags
func py_Workspace_OpenCatalog(self py.Object, args py.Tuple) (py.Object, error) {
	ws := self.(*Workspace)

	var pathname string
	var flags int32
	err := py.LoadTuple(args, []interface{}{&pathname, &flags})
	if err != nil {
		return nil, err
	}

	opts := golift.CatalogOpts{
		ReadOnly:   (flags & READ_ONLY) != 0,
		DbPathName: pathname,
	}

	cat, err := catalog.OpenCatalog(ws.CatalogCtx, opts)
	if err != nil {
		return nil, py.ExceptionNewf(py.RuntimeError, "%v", err)
	}

	return py.Object(pyCatalog{cat}), nil
}

type pyCatalog struct {
	golift.Catalog
}

func (cat pyCatalog) Type() *py.Type {
	return pyCatalogType
}

func py_Catalog_Close(self py.Object, args py.Tuple) (py.Object, error) {
	cat := self.(pyCatalog)
	if cat.Catalog != nil {
		cat.Close()
	}
	return py.None, nil
}

func py_Catalog_NumEntries(self py.Object, args py.Tuple) (py.Object, error) {
	cat := self.(pyCatalog)
	return py.Int(cat.NumEntries()), nil
}

// Arg 1 (Graph)
// Arg 2 (Lifting)
func py_Catalog_Store(self py.Object, args py.Tuple) (py.Object, error) {
	cat := self.(pyCatalog)
	if len(args) != 2 {
		return nil, py.ExceptionNewf(py.TypeError, "Store() takes 2 arguments (%d given)", len(args))
	}
	fg, err := getGraph(args[0])
	if err != nil {
		return nil, err
	}
	lift, ok := args[1].(pyLifting)
	if !ok {
		return nil, py.ExceptionNewf(py.TypeError, "expected Lifting object (got %v)", args[1].Type().Name)
	}
	if cat.IsReadOnly() {
		return nil, py.ExceptionNewf(py.PermissionError, "%v", golift.ErrCatalogReadOnly)
	}
	if err = cat.Store(fg.Fingerprint(), lift.ToRecord()); err != nil {
		return nil, py.ExceptionNewf(py.RuntimeError, "%v", err)
	}
	return py.None, nil
}

// Arg 1 (Graph)
//
// Returns (num var groups, num factor groups, passes) or None if the graph has no entry.
func py_Catalog_Lookup(self py.Object, args py.Tuple) (py.Object, error) {
	cat := self.(pyCatalog)
	if len(args) != 1 {
		return nil, py.ExceptionNewf(py.TypeError, "Lookup() takes 1 argument (%d given)", len(args))
	}
	fg, err := getGraph(args[0])
	if err != nil {
		return nil, err
	}
	rec, err := cat.Lookup(fg.Fingerprint())
	if err != nil {
		if errors.Is(err, golift.ErrNotFound) {
			return py.None, nil
		}
		return nil, py.ExceptionNewf(py.RuntimeError, "%v", err)
	}
	return py.Tuple{
		py.Int(rec.NumVarGroups()),
		py.Int(rec.NumFactorGroups()),
		py.Int(rec.Passes),
	}, nil
}

func sequenceItems(obj py.Object) py.Tuple {
	switch seq := obj.(type) {
	case py.Tuple:
		return seq
	case *py.List:
		return py.Tuple(seq.Items)
	}
	return py.Tuple{obj}
}

func loadStrings(items py.Tuple) ([]string, error) {
	strs := make([]string, len(items))
	for i, item := range items {
		str, ok := item.(py.String)
		if !ok {
			return nil, py.ExceptionNewf(py.TypeError, "item %d: expected str (got %v)", i, item.Type().Name)
		}
		strs[i] = string(str)
	}
	return strs, nil
}

func loadFloats(items py.Tuple) ([]float64, error) {
	vals := make([]float64, len(items))
	for i, item := range items {
		switch val := item.(type) {
		case py.Float:
			vals[i] = float64(val)
		case py.Int:
			vals[i] = float64(val)
		default:
			return nil, py.ExceptionNewf(py.TypeError, "item %d: expected number (got %v)", i, item.Type().Name)
		}
	}
	return vals, nil
}

func init() {

	/////////////////////////////////
	// Graph
	{
		pyGraphType.Dict["AddVar"] = py.MustNewMethod("AddVar", py_Graph_AddVar, 0, "adds a Boolean random variable, with optional evidence")
		pyGraphType.Dict["AddFactor"] = py.MustNewMethod("AddFactor", py_Graph_AddFactor, 0, "adds a factor and its incidence edges")
		pyGraphType.Dict["NumVars"] = py.MustNewMethod("NumVars", py_Graph_NumVars, 0, "")
		pyGraphType.Dict["NumFactors"] = py.MustNewMethod("NumFactors", py_Graph_NumFactors, 0, "")
		pyGraphType.Dict["Fingerprint"] = py.MustNewMethod("Fingerprint", py_Graph_Fingerprint, 0, "")
		pyGraphType.Dict["ColourPass"] = py.MustNewMethod("ColourPass", py_Graph_ColourPass, 0, "colours this graph's variables and factors into classes")
	}

	/////////////////////////////////
	// Lifting
	{
		pyLiftingType.Dict["VarColours"] = py.MustNewMethod("VarColours", py_Lifting_VarColours, 0, "maps each variable name to its colour")
		pyLiftingType.Dict["FactorColours"] = py.MustNewMethod("FactorColours", py_Lifting_FactorColours, 0, "maps each factor name to its colour")
		pyLiftingType.Dict["NumVarGroups"] = py.MustNewMethod("NumVarGroups", py_Lifting_NumVarGroups, 0, "")
		pyLiftingType.Dict["NumFactorGroups"] = py.MustNewMethod("NumFactorGroups", py_Lifting_NumFactorGroups, 0, "")
		pyLiftingType.Dict["Passes"] = py.MustNewMethod("Passes", py_Lifting_Passes, 0, "")
	}

	/////////////////////////////////
	// Catalog
	{
		pyCatalogType.Dict["Store"] = py.MustNewMethod("Store", py_Catalog_Store, 0, "")
		pyCatalogType.Dict["Lookup"] = py.MustNewMethod("Lookup", py_Catalog_Lookup, 0, "")
		pyCatalogType.Dict["NumEntries"] = py.MustNewMethod("NumEntries", py_Catalog_NumEntries, 0, "")
		pyCatalogType.Dict["Close"] = py.MustNewMethod("Close", py_Catalog_Close, 0, "")
	}

	/////////////////////////////////
	// Workspace
	{
		pyWorkspaceType.Dict["OpenCatalog"] = py.MustNewMethod("OpenCatalog", py_Workspace_OpenCatalog, 0, "")
		pyWorkspaceType.Dict["CatalogExists"] = py.MustNewMethod("CatalogExists", py_Workspace_CatalogExists, 0, "")
	}

	{
		methods := []*py.Method{
			py.MustNewMethod("NewGraph", py_NewGraph, 0, ""),
			py.MustNewMethod("ParseGraph", py_ParseGraph, 0, ""),
			py.MustNewMethod("GetWorkspace", py_GetWorkspace, 0, ""),
		}

		globals := py.StringDict{
			"LIB_VERSION":          py.String(LIB_VERSION),
			"READ_ONLY":            py.Int(READ_ONLY),
			"MAX_FACTOR_ARITY":     py.Int(golift.MaxFactorArity),
			"MAX_DOMAIN_SIZE":      py.Int(golift.MaxDomainSize),
			"DEFAULT_SEARCH_DEPTH": py.Int(golift.DefaultSearchDepth),
		}

		py.RegisterModule(&py.ModuleImpl{
			Info: py.ModuleInfo{
				Name: "_pylift",
				Doc:  "factor graph colour passing gpython module",
			},
			Methods: methods,
			Globals: globals,
			OnContextClosed: func(m *py.Module) {
				wsObj, _ := py.GetAttrString(m, kWorkspaceAttr)
				if wsObj != nil {
					wsObj.(*Workspace).Close()
				}
			},
		})
	}
}
