// Package diag implements source-location tracking and the diagnostic
// sink used throughout the configuration compiler: a point or range in
// a source file, formatted compactly for error messages, plus wrappers
// for regex and TLS library failures.
package diag

import "github.com/poundproxy/poundcfg/internal/strbuf"

// Point is a single source-file coordinate. Col == 0 means "unknown".
type Point struct {
	File string
	Line int
	Col  int
}

// Range is a span between two points, possibly across files.
type Range struct {
	Start Point
	End   Point
}

// NewRange returns a zero-width range at pt.
func NewRange(pt Point) Range {
	return Range{Start: pt, End: pt}
}

// Extend grows r so it also covers pt, keeping the original Start.
func (r Range) Extend(pt Point) Range {
	r.End = pt
	return r
}

func formatPoint(buf *strbuf.Buffer, p Point) {
	buf.WriteString(p.File)
	buf.WriteByte(':')
	buf.Printf("%d", p.Line)
	if p.Col > 0 {
		buf.WriteByte('.')
		buf.Printf("%d", p.Col)
	}
}

// String renders the range compactly:
//
//	single file, single line   -> file:L.C-C2
//	single file, multiple lines -> file:L.C-L2.C2
//	different files             -> fileA:...-fileB:...
func (r Range) String() string {
	var buf strbuf.Buffer

	if r.Start == r.End {
		formatPoint(&buf, r.Start)
		return buf.String()
	}

	if r.Start.File != r.End.File {
		formatPoint(&buf, r.Start)
		buf.WriteByte('-')
		formatPoint(&buf, r.End)
		return buf.String()
	}

	if r.Start.Line == r.End.Line {
		formatPoint(&buf, r.Start)
		if r.End.Col > 0 {
			buf.WriteByte('-')
			buf.Printf("%d", r.End.Col)
		}
		return buf.String()
	}

	formatPoint(&buf, r.Start)
	buf.WriteByte('-')
	buf.Printf("%d", r.End.Line)
	if r.End.Col > 0 {
		buf.WriteByte('.')
		buf.Printf("%d", r.End.Col)
	}
	return buf.String()
}
