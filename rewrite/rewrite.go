package rewrite

import (
	"fmt"

	"github.com/emirpasic/gods/sets/hashset"
	"github.com/ternlang/tern/graph"
)

// Rewriter transforms a function graph in place. Apply reports whether it
// changed anything; drivers re-run a rewriter until it reaches a fixpoint.
type Rewriter interface {
	Name() string
	Apply(fg *graph.FGraph) (bool, error)
}

// Query selects rewriters from a database by tag. A rewriter is selected
// if it carries at least one of the included tags and none of the excluded
// ones. Queries are values: Including and Excluding return derived
// queries and leave the receiver untouched.
type Query struct {
	include *hashset.Set
	exclude *hashset.Set
}

// NewQuery builds a query over the given include tags.
func NewQuery(include ...string) Query {
	q := Query{include: hashset.New(), exclude: hashset.New()}
	for _, tag := range include {
		q.include.Add(tag)
	}
	return q
}

// Including returns a copy of q with additional include tags.
func (q Query) Including(tags ...string) Query {
	d := q.clone()
	for _, tag := range tags {
		d.include.Add(tag)
	}
	return d
}

// Excluding returns a copy of q with additional exclude tags. Exclusion
// wins over inclusion.
func (q Query) Excluding(tags ...string) Query {
	d := q.clone()
	for _, tag := range tags {
		d.exclude.Add(tag)
	}
	return d
}

func (q Query) clone() Query {
	d := Query{include: hashset.New(), exclude: hashset.New()}
	d.include.Add(q.include.Values()...)
	d.exclude.Add(q.exclude.Values()...)
	return d
}

func (q Query) String() string {
	return fmt.Sprintf("query{include: %v, exclude: %v}", q.include.Values(), q.exclude.Values())
}

type entry struct {
	rw   Rewriter
	tags *hashset.Set
}

// Database holds tagged rewriters in registration order.
type Database struct {
	entries []entry
}

// NewDatabase creates an empty rewriter database.
func NewDatabase() *Database {
	return &Database{}
}

// Register adds a rewriter under the given tags. The rewriter's own name
// is implicitly a tag, so queries can include or exclude it directly.
func (db *Database) Register(rw Rewriter, tags ...string) {
	set := hashset.New(rw.Name())
	for _, tag := range tags {
		set.Add(tag)
	}
	db.entries = append(db.entries, entry{rw: rw, tags: set})
}

// Select returns the rewriters matching q, in registration order.
func (db *Database) Select(q Query) []Rewriter {
	var selected []Rewriter
	for _, e := range db.entries {
		if matches(e.tags, q) {
			selected = append(selected, e.rw)
		}
	}
	return selected
}

func matches(tags *hashset.Set, q Query) bool {
	for _, tag := range tags.Values() {
		if q.exclude.Contains(tag) {
			return false
		}
	}
	for _, tag := range tags.Values() {
		if q.include.Contains(tag) {
			return true
		}
	}
	return false
}

// maxPasses caps fixpoint iteration per rewriter, in case a rewriter
// oscillates.
const maxPasses = 16

// ApplyAll runs each rewriter to a fixpoint, in order.
func ApplyAll(fg *graph.FGraph, rws []Rewriter) error {
	for _, rw := range rws {
		for pass := 0; ; pass++ {
			if pass == maxPasses {
				return fmt.Errorf("rewrite: %s did not converge after %d passes", rw.Name(), maxPasses)
			}
			changed, err := rw.Apply(fg)
			if err != nil {
				return fmt.Errorf("rewrite: %s: %w", rw.Name(), err)
			}
			if !changed {
				break
			}
			tracer().Debugf("%s pass %d changed the graph", rw.Name(), pass)
		}
	}
	return nil
}

// StdDB returns the standard rewriter database.
func StdDB() *Database {
	db := NewDatabase()
	db.Register(&merge{}, "fast_run", "fast_compile")
	db.Register(&constantFold{}, "fast_run", "fast_compile")
	db.Register(&canonicalize{}, "fast_run")
	return db
}
