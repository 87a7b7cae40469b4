// Package intern owns file-name strings referenced by many
// diag.Point/diag.Range records during a single parse, so a deeply
// nested Include tree doesn't allocate a fresh string per token. The
// compiler parses single-threaded and synchronously, so no locking is
// needed.
package intern

// Table hands back one stable string per distinct file name, so every
// diag.Point referencing the same file shares one allocation. It is
// released once the top-level parse completes.
type Table struct {
	names map[string]string
}

// New returns an empty, ready-to-use Table.
func New() *Table {
	return &Table{names: make(map[string]string)}
}

// Intern returns the canonical copy of name, recording it on first use.
func (t *Table) Intern(name string) string {
	if existing, ok := t.names[name]; ok {
		return existing
	}
	t.names[name] = name
	return name
}

// Release drops every interned name. Called once the top-level driver
// (poundcfg.Load) returns, on both success and failure paths.
func (t *Table) Release() {
	t.names = nil
}
