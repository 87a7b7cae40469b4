package lexer

import (
	"bufio"
	"os"

	"github.com/poundproxy/poundcfg/internal/diag"
)

// frame is one entry on the input stack: an open file, its identity
// for cycle detection, and enough position state to emit accurate
// diag.Points and support one-rune pushback across a newline.
type frame struct {
	path string
	f    *os.File
	r    *bufio.Reader
	dev  uint64
	ino  uint64

	line int
	col  int

	prevCol    int  // column before the last newline, for ungetc restoration
	haveUnread bool // one-rune pushback slot inside the frame
	unreadRune rune
	unreadSize int

	includedFrom *diag.Point // nil for the root frame
}

func openFrame(path string, includedFrom *diag.Point) (*frame, uint64, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	dev, ino, err := fileIdentity(f)
	if err != nil {
		f.Close()
		return nil, 0, 0, err
	}
	return &frame{
		path:         path,
		f:            f,
		r:            bufio.NewReader(f),
		dev:          dev,
		ino:          ino,
		line:         1,
		col:          0,
		includedFrom: includedFrom,
	}, dev, ino, nil
}

func (fr *frame) close() {
	fr.f.Close()
}

func (fr *frame) point() diag.Point {
	return diag.Point{File: fr.path, Line: fr.line, Col: fr.col}
}

// readRune returns the next rune, advancing position bookkeeping: tabs
// advance the column by 8, a newline resets the column to 0 after
// remembering the prior column.
func (fr *frame) readRune() (rune, bool) {
	if fr.haveUnread {
		fr.haveUnread = false
		fr.advance(fr.unreadRune)
		return fr.unreadRune, true
	}
	ch, _, err := fr.r.ReadRune()
	if err != nil {
		return 0, false
	}
	fr.advance(ch)
	return ch, true
}

func (fr *frame) advance(ch rune) {
	switch ch {
	case '\n':
		fr.prevCol = fr.col
		fr.line++
		fr.col = 0
	case '\t':
		fr.col += 8
	default:
		fr.col++
	}
}

// ungetRune pushes ch back onto this frame for a single re-read,
// restoring the prior column if ch was a newline.
func (fr *frame) ungetRune(ch rune) {
	fr.haveUnread = true
	fr.unreadRune = ch
	if ch == '\n' {
		fr.line--
		fr.col = fr.prevCol
	} else if ch == '\t' {
		fr.col -= 8
	} else {
		fr.col--
	}
}
