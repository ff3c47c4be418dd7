package changes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tordrt/dbascode/internal/tree"
)

// Creator renders the statements creating a node, including the children it
// creates itself.
type Creator interface {
	CreateSQL() []string
}

// Dropper renders the statements dropping a node
type Dropper interface {
	DropSQL() []string
}

// Alterer renders per property alterations. Nodes flagged AlterWithParent
// return clauses that are applied to the parent's alter target.
type Alterer interface {
	AlterSQL(prev tree.Node, changed tree.Deltas) ([]string, error)
}

// FullAlterer renders the replacement of prev by the receiver
type FullAlterer interface {
	FullAlterSQL(prev tree.Node) []string
}

// Commenter renders comment changes; prev is nil for new objects
type Commenter interface {
	CommentSQL(prev tree.Node) []string
}

// Permissioner renders grant and revoke changes; prev is nil for new objects
type Permissioner interface {
	PermissionSQL(prev tree.Node) []string
}

// Replacer reports whether AlterSQL replaces the object instead of altering
// it in place. Comments and grants of a replaced object are rendered by the
// replacement.
type Replacer interface {
	Replaces(prev tree.Node, changed tree.Deltas) bool
}

// AlterTargeter names a node in an ALTER statement, e.g. TABLE "s"."t"
type AlterTargeter interface {
	AlterTarget() string
}

// Op is the kind of an emitted statement
type Op string

const (
	OpCreate     Op = "create"
	OpAlter      Op = "alter"
	OpDrop       Op = "drop"
	OpComment    Op = "comment"
	OpPermission Op = "permission"
)

// Statement is one emitted SQL statement and the object it belongs to
type Statement struct {
	Path string
	Op   Op
	SQL  string
}

// Script is an ordered list of statements
type Script struct {
	Statements []Statement
}

func (s *Script) add(path string, op Op, stmts []string) {
	for _, sql := range stmts {
		if sql = strings.TrimSpace(sql); sql != "" {
			s.Statements = append(s.Statements, Statement{Path: path, Op: op, SQL: sql})
		}
	}
}

// String joins the statements with newlines
func (s *Script) String() string {
	parts := make([]string, len(s.Statements))
	for i, st := range s.Statements {
		parts[i] = st.SQL
	}
	return strings.Join(parts, "\n")
}

// Emit renders the records of b. Creates are ordered by the dependencies of
// the current tree, drops by the reverse order of the previous tree. Records
// inside a replaced object are covered by its replacement and skipped.
func Emit(b *Buckets, prevDeps, curDeps tree.Dependencies) (*Script, error) {
	s := &Script{}
	replaced := replacedSet{}
	for _, r := range b.Alter {
		if replaces(r) {
			replaced.add(r)
		}
	}
	for _, r := range Order(b.Create, curDeps) {
		if replaced.covers(r, false) {
			continue
		}
		if c, ok := r.Cur.(Creator); ok {
			s.add(r.Path, OpCreate, c.CreateSQL())
		}
	}
	for _, r := range b.Alter {
		if replaced.covers(r, false) {
			continue
		}
		stmts, err := alterSQL(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.Path, err)
		}
		s.add(r.Path, OpAlter, stmts)
	}
	for _, r := range DropOrder(b.Drop, prevDeps) {
		if replaced.covers(r, false) {
			continue
		}
		if d, ok := r.Old.(Dropper); ok {
			s.add(r.Path, OpDrop, d.DropSQL())
		}
	}
	for _, r := range b.Comment {
		if replaced.covers(r, true) {
			continue
		}
		if c, ok := r.Cur.(Commenter); ok {
			s.add(r.Path, OpComment, c.CommentSQL(r.Old))
		}
	}
	for _, r := range b.Permission {
		if replaced.covers(r, true) {
			continue
		}
		if p, ok := r.Cur.(Permissioner); ok {
			s.add(r.Path, OpPermission, p.PermissionSQL(r.Old))
		}
	}
	return s, nil
}

// needsFullAlter reports whether the record must be rendered as replacement
func needsFullAlter(r *Record) bool {
	t := r.Cur.Type()
	if t.Has(tree.FullAlter) {
		return true
	}
	for _, name := range r.Changed.Props() {
		if d, ok := t.Prop(name); ok && d.RecreateOnChange {
			return true
		}
	}
	return false
}

func replaces(r *Record) bool {
	if needsFullAlter(r) {
		return true
	}
	if rp, ok := r.Cur.(Replacer); ok {
		return rp.Replaces(r.Old, r.Changed)
	}
	_, ok := r.Cur.(Alterer)
	return !ok
}

// replacedSet holds the step paths of replaced objects. Steps are compared
// instead of path strings since object names may contain dots.
type replacedSet map[string]bool

func stepsKey(steps []tree.Step) string {
	var b strings.Builder
	for _, st := range steps {
		if st.Indexed {
			b.WriteString("i" + strconv.Itoa(st.Index))
		} else {
			b.WriteString("k" + st.Key)
		}
		b.WriteByte(0)
	}
	return b.String()
}

func (rs replacedSet) add(r *Record) { rs[stepsKey(r.Node().Steps())] = true }

// covers reports whether the object of r lies below a replaced object, or is
// one when self is set.
func (rs replacedSet) covers(r *Record, self bool) bool {
	if len(rs) == 0 {
		return false
	}
	steps := r.Node().Steps()
	i := len(steps) - 1
	if self {
		i = len(steps)
	}
	for ; i >= 0; i-- {
		if rs[stepsKey(steps[:i])] {
			return true
		}
	}
	return false
}

func alterSQL(r *Record) ([]string, error) {
	if needsFullAlter(r) {
		return fullAlterSQL(r.Old, r.Cur), nil
	}
	a, ok := r.Cur.(Alterer)
	if !ok {
		return fullAlterSQL(r.Old, r.Cur), nil
	}
	stmts, err := a.AlterSQL(r.Old, r.Changed)
	if err != nil {
		return nil, err
	}
	if !r.Cur.Type().Has(tree.AlterWithParent) {
		return stmts, nil
	}
	target, ok := r.Cur.Parent().(AlterTargeter)
	if !ok {
		return nil, fmt.Errorf("parent of %s has no alter target", r.Cur.Type().Name())
	}
	res := make([]string, 0, len(stmts))
	for _, clause := range stmts {
		res = append(res, "ALTER "+target.AlterTarget()+" "+strings.TrimSuffix(clause, ";")+";")
	}
	return res, nil
}

// fullAlterSQL replaces old by cur. Without a FullAlterer the old object is
// dropped and cur is created together with its separately created children,
// comments and grants.
func fullAlterSQL(old, cur tree.Node) []string {
	if f, ok := cur.(FullAlterer); ok {
		return f.FullAlterSQL(old)
	}
	var res []string
	if d, ok := old.(Dropper); ok {
		res = append(res, d.DropSQL()...)
	}
	res = append(res, recreateSQL(cur, true)...)
	_ = tree.Walk(cur, func(n tree.Node) error {
		if n.Inherited() {
			return nil
		}
		if c, ok := n.(Commenter); ok {
			res = append(res, c.CommentSQL(nil)...)
		}
		if p, ok := n.(Permissioner); ok {
			res = append(res, p.PermissionSQL(nil)...)
		}
		return nil
	})
	return res
}

func recreateSQL(n tree.Node, top bool) []string {
	if n.Inherited() || (!top && n.Type().Has(tree.CreatedByParent)) {
		return nil
	}
	var res []string
	if c, ok := n.(Creator); ok {
		res = append(res, c.CreateSQL()...)
	}
	for _, child := range tree.ChildNodes(n) {
		res = append(res, recreateSQL(child, false)...)
	}
	return res
}
