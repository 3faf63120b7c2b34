// Package refdata loads the ICD-10-CM to HCC reference table used for risk
// scoring. A Table is built once and is read-only afterwards, so it can be
// shared across goroutines without locking.
package refdata

// Entry is a single reference row keyed by its ICD-10-CM code.
type Entry struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// Table maps codes to entries. Iteration follows the order in which each code
// was first seen; a later duplicate replaces the entry in place.
type Table struct {
	entries []Entry
	index   map[string]int
	source  string
	loadErr error
}

func newTable(source string) *Table {
	return &Table{index: make(map[string]int), source: source}
}

// NewTable builds a table from entries, mainly for callers that assemble
// reference data in code.
func NewTable(entries ...Entry) *Table {
	t := newTable("")
	for _, e := range entries {
		t.put(e)
	}
	return t
}

func (t *Table) put(e Entry) {
	if i, ok := t.index[e.Code]; ok {
		t.entries[i] = e
		return
	}
	t.index[e.Code] = len(t.entries)
	t.entries = append(t.entries, e)
}

// Len reports the number of distinct codes.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Empty reports whether the table holds no entries. An empty table means the
// scoring service is unavailable, whether or not the load itself failed.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Lookup returns the entry for code.
func (t *Table) Lookup(code string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	i, ok := t.index[code]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Entries returns a copy of the entries in iteration order.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Source is the path the table was loaded from, if any.
func (t *Table) Source() string {
	if t == nil {
		return ""
	}
	return t.source
}

// LoadErr is the reason the source could not be read. It is informational:
// a table with a load error is simply empty.
func (t *Table) LoadErr() error {
	if t == nil {
		return nil
	}
	return t.loadErr
}
