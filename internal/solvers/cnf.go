package solvers

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrMalformedCNF is returned for input that is not DIMACS CNF.
var ErrMalformedCNF = errors.New("malformed DIMACS CNF")

// Formula is a CNF formula in DIMACS form. Variable names are read from
// "c <number> <name>" comment lines.
type Formula struct {
	NumVars int
	Clauses [][]int
	Names   map[int]string
}

// ParseFormula parses DIMACS CNF text.
func ParseFormula(text string) (*Formula, error) {
	f := &Formula{Names: make(map[int]string)}
	header := false
	declared := 0
	var clause []int

	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "%" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "c":
			if len(fields) >= 3 {
				if v, err := strconv.Atoi(fields[1]); err == nil && v > 0 {
					f.Names[v] = strings.Join(fields[2:], " ")
				}
			}
			continue
		case "p":
			if header || len(fields) != 4 || fields[1] != "cnf" {
				return nil, fmt.Errorf("%w: line %d: bad problem line %q", ErrMalformedCNF, n+1, line)
			}
			vars, err1 := strconv.Atoi(fields[2])
			clauses, err2 := strconv.Atoi(fields[3])
			if err1 != nil || err2 != nil || vars < 0 || clauses < 0 {
				return nil, fmt.Errorf("%w: line %d: bad problem line %q", ErrMalformedCNF, n+1, line)
			}
			f.NumVars, declared, header = vars, clauses, true
			continue
		}

		if !header {
			return nil, fmt.Errorf("%w: line %d: clause before problem line", ErrMalformedCNF, n+1)
		}
		for _, field := range fields {
			lit, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad literal %q", ErrMalformedCNF, n+1, field)
			}
			if lit == 0 {
				f.Clauses = append(f.Clauses, clause)
				clause = nil
				continue
			}
			if abs(lit) > f.NumVars {
				return nil, fmt.Errorf("%w: line %d: variable %d exceeds declared %d", ErrMalformedCNF, n+1, abs(lit), f.NumVars)
			}
			clause = append(clause, lit)
		}
	}

	if !header {
		return nil, fmt.Errorf("%w: missing problem line", ErrMalformedCNF)
	}
	if len(clause) > 0 {
		f.Clauses = append(f.Clauses, clause)
	}
	if len(f.Clauses) != declared {
		return nil, fmt.Errorf("%w: declared %d clauses, found %d", ErrMalformedCNF, declared, len(f.Clauses))
	}
	return f, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Name returns the name of variable v, or its number.
func (f *Formula) Name(v int) string {
	if name, ok := f.Names[abs(v)]; ok {
		return name
	}
	return strconv.Itoa(abs(v))
}

// WithClause returns a copy with one more clause.
func (f *Formula) WithClause(lits ...int) *Formula {
	out := &Formula{
		NumVars: f.NumVars,
		Clauses: append(slices.Clone(f.Clauses), slices.Clone(lits)),
		Names:   f.Names,
	}
	return out
}

// String renders the formula as DIMACS, names first.
func (f *Formula) String() string {
	var b strings.Builder
	vars := make([]int, 0, len(f.Names))
	for v := range f.Names {
		vars = append(vars, v)
	}
	slices.Sort(vars)
	for _, v := range vars {
		fmt.Fprintf(&b, "c %d %s\n", v, f.Names[v])
	}
	fmt.Fprintf(&b, "p cnf %d %d\n", f.NumVars, len(f.Clauses))
	for _, clause := range f.Clauses {
		for _, lit := range clause {
			b.WriteString(strconv.Itoa(lit))
			b.WriteByte(' ')
		}
		b.WriteString("0\n")
	}
	return b.String()
}

// SatResult is the decoded output of a sat solver.
type SatResult struct {
	Satisfiable bool
	// Model holds one literal per variable, positive when true.
	Model []int
}

// FormatSatResult renders a result in the DIMACS solution format.
func FormatSatResult(r SatResult) string {
	if !r.Satisfiable {
		return "s UNSATISFIABLE\n"
	}
	var b strings.Builder
	b.WriteString("s SATISFIABLE\nv")
	for _, lit := range r.Model {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(lit))
	}
	b.WriteString(" 0\n")
	return b.String()
}

// ParseSatResult decodes FormatSatResult output.
func ParseSatResult(text string) (SatResult, error) {
	var r SatResult
	status := false
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "s":
			if len(fields) != 2 {
				return r, fmt.Errorf("bad status line %q", line)
			}
			switch fields[1] {
			case "SATISFIABLE":
				r.Satisfiable = true
			case "UNSATISFIABLE":
			default:
				return r, fmt.Errorf("unknown status %q", fields[1])
			}
			status = true
		case "v":
			for _, field := range fields[1:] {
				lit, err := strconv.Atoi(field)
				if err != nil {
					return r, fmt.Errorf("bad literal %q", field)
				}
				if lit != 0 {
					r.Model = append(r.Model, lit)
				}
			}
		}
	}
	if !status {
		return r, errors.New("missing status line")
	}
	return r, nil
}

// Describe lists the model with variable names, true variables first.
func (f *Formula) Describe(model []int) string {
	var on, off []string
	for _, lit := range model {
		if lit > 0 {
			on = append(on, f.Name(lit))
		} else {
			off = append(off, f.Name(lit))
		}
	}
	return fmt.Sprintf("selected: %s\ndeselected: %s\n", joinOrNone(on), joinOrNone(off))
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "(none)"
	}
	return strings.Join(s, ", ")
}

func modelFromValues(numVars int, value func(v int) bool) []int {
	model := make([]int, 0, numVars)
	for v := 1; v <= numVars; v++ {
		if value(v) {
			model = append(model, v)
		} else {
			model = append(model, -v)
		}
	}
	return model
}
