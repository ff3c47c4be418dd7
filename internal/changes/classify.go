package changes

import (
	"fmt"

	"github.com/tordrt/dbascode/internal/tree"
)

// Record is the object level aggregation of changes
type Record struct {
	Path    string
	Old     tree.Node
	Cur     tree.Node
	Changed tree.Deltas
	Create  bool
	Drop    bool
}

// Node returns the current node, or the previous one for drops
func (r *Record) Node() tree.Node {
	if r.Cur != nil {
		return r.Cur
	}
	return r.Old
}

// Buckets holds the classified records, each list in discovery order
type Buckets struct {
	Create     []*Record
	Alter      []*Record
	Drop       []*Record
	Comment    []*Record
	Permission []*Record
}

// Len returns the number of records in all buckets
func (b *Buckets) Len() int {
	return len(b.Create) + len(b.Alter) + len(b.Drop) + len(b.Comment) + len(b.Permission)
}

type bucketKind int

const (
	bucketGeneric bucketKind = iota
	bucketComment
	bucketPermission
)

// propertyBucket returns the bucket for changes of the top level property name
func propertyBucket(name string) bucketKind {
	switch name {
	case "grant", "revoke":
		return bucketPermission
	case "comment":
		return bucketComment
	}
	return bucketGeneric
}

type recordSet struct {
	list   []*Record
	byPath map[string]*Record
}

func (s *recordSet) get(path string, old, cur tree.Node) *Record {
	if s.byPath == nil {
		s.byPath = make(map[string]*Record)
	}
	r, ok := s.byPath[path]
	if !ok {
		r = &Record{Path: path, Old: old, Cur: cur, Changed: make(tree.Deltas)}
		s.byPath[path] = r
		s.list = append(s.list, r)
	}
	return r
}

type classifier struct {
	sets [3]recordSet
}

// Classify groups the changes of ctx by the object they belong to. The prev
// and cur roots must be the trees that were compared.
func Classify(ctx *Context, prev, cur tree.Node) (*Buckets, error) {
	cl := &classifier{}
	for _, ch := range ctx.Changes() {
		if err := cl.add(ch, prev, cur); err != nil {
			return nil, err
		}
	}
	b := &Buckets{}
	for _, r := range cl.sets[bucketGeneric].list {
		switch {
		case r.Create:
			b.Create = append(b.Create, r)
		case r.Drop:
			b.Drop = append(b.Drop, r)
		case len(r.Changed) > 0:
			b.Alter = append(b.Alter, r)
		}
	}
	b.Comment = cl.sets[bucketComment].list
	b.Permission = cl.sets[bucketPermission].list
	return b, nil
}

func (cl *classifier) add(ch Change, prev, cur tree.Node) error {
	var oldVal, curVal any = nodeValue(prev), nodeValue(cur)
	lastOld, lastCur := prev, cur
	objLen := 0
	for i, s := range ch.Steps {
		var err error
		if oldVal, err = s.Apply(oldVal); err != nil {
			return fmt.Errorf("%s: %w", ch.Path, err)
		}
		if curVal, err = s.Apply(curVal); err != nil {
			return fmt.Errorf("%s: %w", ch.Path, err)
		}
		on, _ := oldVal.(tree.Node)
		cn, _ := curVal.(tree.Node)
		if on != nil || cn != nil {
			lastOld, lastCur = on, cn
			objLen = i + 1
		}
	}
	objPath := tree.FormatPath(ch.Steps[:objLen])
	propPath := tree.FormatPath(ch.Steps[objLen:])
	switch {
	case lastOld != nil && lastCur != nil:
		if propPath == "" {
			return nil
		}
		set := &cl.sets[propertyBucket(tree.HeadKey(propPath))]
		set.get(objPath, lastOld, lastCur).Changed[propPath] = tree.Delta{Old: ch.Old, Cur: ch.Cur}
	case lastCur != nil:
		if objLen == 0 {
			for _, c := range tree.ChildNodes(lastCur) {
				cl.create(c, true)
			}
			return nil
		}
		cl.create(lastCur, true)
	case lastOld != nil:
		if objLen == 0 {
			for _, c := range tree.ChildNodes(lastOld) {
				cl.drop(c, true)
			}
			return nil
		}
		cl.drop(lastOld, true)
	}
	return nil
}

// create marks n and its descendants as created. Objects created by their
// parent get no generic record of their own but keep their comment and
// permission records.
func (cl *classifier) create(n tree.Node, top bool) {
	if n.Inherited() {
		return
	}
	path := n.Path()
	cl.sets[bucketComment].get(path, nil, n).Create = true
	cl.sets[bucketPermission].get(path, nil, n).Create = true
	if top || !n.Type().Has(tree.CreatedByParent) {
		cl.sets[bucketGeneric].get(path, nil, n).Create = true
	}
	for _, c := range tree.ChildNodes(n) {
		cl.create(c, false)
	}
}

// drop marks n and the descendants not dropped implicitly as dropped
func (cl *classifier) drop(n tree.Node, top bool) {
	if n.Inherited() {
		return
	}
	if !top && n.Type().Has(tree.DroppedByParent) {
		return
	}
	cl.sets[bucketGeneric].get(n.Path(), n, nil).Drop = true
	for _, c := range tree.ChildNodes(n) {
		cl.drop(c, false)
	}
}
