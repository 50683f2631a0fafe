package libfg

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/2x3systems/golift/golift"
	"github.com/alecthomas/participle/v2"
	"github.com/pkg/errors"
)

/*
A factor graph is written as a sequence of statements:

	domain Colour = { red, green, blue }
	var A, B, C              // Boolean variables
	var D = false            // evidence
	var X : Colour
	factor f1(A, B) = [1, 2, 3, 4]                   // dense table, table order
	factor f2(C, B) { TT: 1, TF: 2, FT: 3, FF: 4 }   // Boolean rows
	factor f3(X, A) { (red, true): 1, (red, false): 2, ... }

Every factor argument gets its incidence edge.
*/

type GraphDef struct {
	Stmts []*StmtDef `@@*`
}

type StmtDef struct {
	Domain *DomainDef `  @@`
	Vars   *VarsDef   `| @@`
	Factor *FactorDef `| @@`
}

type DomainDef struct {
	Name   string   `"domain" @Ident "="`
	Labels []string `"{" @Ident ("," @Ident)* "}"`
}

type VarsDef struct {
	Specs []*VarSpec `"var" @@ ("," @@)*`
}

type VarSpec struct {
	Name     string `@Ident`
	Domain   string `(":" @Ident)?`
	Evidence string `("=" @Ident)?`
}

type FactorDef struct {
	Name  string    `"factor" @Ident`
	Args  []string  `"(" @Ident ("," @Ident)* ")"`
	Table *TableDef `@@`
}

type TableDef struct {
	Dense []float64 `  "=" "[" @(Float | Int) ("," @(Float | Int))* "]"`
	Rows  []*RowDef `| "{" @@ ("," @@)* "}"`
}

type RowDef struct {
	Key    *RowKey `@@ ":"`
	Weight float64 `@(Float | Int)`
}

type RowKey struct {
	Letters string   `  @Ident`
	Labels  []string `| "(" @Ident ("," @Ident)* ")"`
}

var parseGraphDef = participle.MustBuild[GraphDef](participle.UseLookahead(2))

// ParseFactorGraph builds a FactorGraph from its text form.
func ParseFactorGraph(graphExpr string) (*FactorGraph, error) {
	def, err := parseGraphDef.ParseString("", graphExpr)
	if err != nil {
		return nil, err
	}

	fg := NewFactorGraph()
	domains := map[string]*Domain{
		BoolDomain.Name: BoolDomain,
	}

	for si, stmt := range def.Stmts {
		switch {
		case stmt.Domain != nil:
			if _, exists := domains[stmt.Domain.Name]; exists {
				return nil, errors.Wrapf(golift.ErrBadDomain, "statement #%d: domain %q redeclared", si+1, stmt.Domain.Name)
			}
			d, err := NewDomain(stmt.Domain.Name, stmt.Domain.Labels...)
			if err != nil {
				return nil, errors.Wrapf(err, "statement #%d: domain %q", si+1, stmt.Domain.Name)
			}
			domains[d.Name] = d

		case stmt.Vars != nil:
			for _, spec := range stmt.Vars.Specs {
				var d *Domain
				if len(spec.Domain) > 0 {
					d = domains[spec.Domain]
					if d == nil {
						return nil, errors.Wrapf(golift.ErrBadDomain, "statement #%d: unknown domain %q", si+1, spec.Domain)
					}
				}
				if _, err := fg.AddVariable(spec.Name, d, spec.Evidence); err != nil {
					return nil, errors.Wrapf(err, "statement #%d", si+1)
				}
			}

		case stmt.Factor != nil:
			if err := fg.addFactorDef(stmt.Factor); err != nil {
				return nil, errors.Wrapf(err, "statement #%d", si+1)
			}
		}
	}

	return fg, nil
}

func (fg *FactorGraph) addFactorDef(def *FactorDef) error {
	f, err := fg.newFactor(def.Name, def.Args)
	if err != nil {
		return err
	}

	if def.Table.Rows == nil {
		if err = f.SetTable(def.Table.Dense); err != nil {
			return err
		}
	} else {
		a := make(Assignment, len(f.args))
		for _, row := range def.Table.Rows {
			if err = f.parseRowKey(row.Key, a); err != nil {
				return err
			}
			if _, err = f.Potential(a); err == nil {
				return errors.Wrapf(golift.ErrBadAssignment, "factor %q row %v given twice", f.name, a)
			}
			if err = f.SetPotential(a, row.Weight); err != nil {
				return err
			}
		}
	}

	if _, err = fg.AttachFactor(f); err != nil {
		return err
	}
	fg.addEdges(f)
	return nil
}

func (f *Factor) parseRowKey(key *RowKey, a Assignment) error {
	if key.Labels == nil {
		if len(key.Letters) != len(f.args) {
			return errors.Wrapf(golift.ErrBadAssignment, "factor %q row %q", f.name, key.Letters)
		}
		for i, r := range key.Letters {
			val, ok := f.args[i].domain.ValueOf(string(r))
			if !ok {
				return errors.Wrapf(golift.ErrBadAssignment, "factor %q row %q", f.name, key.Letters)
			}
			a[i] = val
		}
		return nil
	}

	if len(key.Labels) != len(f.args) {
		return errors.Wrapf(golift.ErrBadAssignment, "factor %q row %v", f.name, key.Labels)
	}
	for i, label := range key.Labels {
		val, ok := f.args[i].domain.ValueOf(label)
		if !ok {
			return errors.Wrapf(golift.ErrBadAssignment, "factor %q row %v", f.name, key.Labels)
		}
		a[i] = val
	}
	return nil
}

// WriteAsString writes this graph in the form read by ParseFactorGraph().
func (fg *FactorGraph) WriteAsString(out io.Writer) {
	declared := map[string]bool{
		BoolDomain.Name: true,
	}
	for _, rv := range fg.vars {
		d := rv.domain
		if !declared[d.Name] {
			declared[d.Name] = true
			fmt.Fprintf(out, "domain %s = { %s }\n", d.Name, strings.Join(d.Labels, ", "))
		}
	}

	for _, rv := range fg.vars {
		fmt.Fprintf(out, "var %s", rv.name)
		if !rv.domain.IsBool() {
			fmt.Fprintf(out, " : %s", rv.domain.Name)
		}
		if rv.hasEvidence {
			fmt.Fprintf(out, " = %s", rv.domain.Label(rv.observed))
		}
		out.Write([]byte{'\n'})
	}

	var buf []byte
	for _, f := range fg.factors {
		buf = append(buf[:0], "factor "...)
		buf = append(buf, f.String()...)
		buf = append(buf, " = ["...)
		for i, w := range f.table {
			if i > 0 {
				buf = append(buf, ", "...)
			}
			buf = strconv.AppendFloat(buf, w, 'g', -1, 64)
		}
		buf = append(buf, "]\n"...)
		out.Write(buf)
	}
}
