package changes

import (
	"errors"
	"fmt"

	"github.com/tordrt/dbascode/internal/tree"
)

// ErrInconsistent is returned when classified records and the emitted script
// disagree about whether anything changed.
var ErrInconsistent = errors.New("inconsistent migration")

// Options configures Plan
type Options struct {
	// OnCompared observes every primitive comparison
	OnCompared CompareFunc
}

// Migration is the result of planning
type Migration struct {
	Changes []Change
	Buckets *Buckets
	Script  *Script
}

// SQL returns the migration script
func (m *Migration) SQL() string { return m.Script.String() }

// Empty reports whether the migration has no statements
func (m *Migration) Empty() bool { return len(m.Script.Statements) == 0 }

// Plan computes the migration from prev to cur. Either root may be nil. Both
// trees must have run their dependency setup pass.
func Plan(prev, cur tree.Node, opts *Options) (*Migration, error) {
	if opts == nil {
		opts = &Options{}
	}
	prevDeps, err := tree.CollectDependencies(prev)
	if err != nil {
		return nil, fmt.Errorf("previous state: %w", err)
	}
	curDeps, err := tree.CollectDependencies(cur)
	if err != nil {
		return nil, fmt.Errorf("current state: %w", err)
	}

	ctx := NewContext()
	ctx.OnCompared = opts.OnCompared
	Compare(cur, prev, ctx)

	b, err := Classify(ctx, prev, cur)
	if err != nil {
		return nil, fmt.Errorf("failed to classify changes: %w", err)
	}
	script, err := Emit(b, prevDeps, curDeps)
	if err != nil {
		return nil, fmt.Errorf("failed to render changes: %w", err)
	}

	m := &Migration{Changes: ctx.Changes(), Buckets: b, Script: script}
	if hasEffect(b) && m.Empty() {
		return nil, fmt.Errorf("%w: %d objects changed but no SQL was generated", ErrInconsistent, b.Len())
	}
	if b.Len() == 0 && !m.Empty() {
		return nil, fmt.Errorf("%w: SQL was generated without changes", ErrInconsistent)
	}
	return m, nil
}

// hasEffect reports whether any record must produce SQL. Comment and grant
// records of new objects without comments or grants legitimately render
// nothing, so only structural records count.
func hasEffect(b *Buckets) bool {
	if len(b.Create)+len(b.Alter)+len(b.Drop) > 0 {
		return true
	}
	for _, list := range [][]*Record{b.Comment, b.Permission} {
		for _, r := range list {
			if len(r.Changed) > 0 {
				return true
			}
		}
	}
	return false
}
