package lexer

import (
	"path/filepath"
	"unicode"

	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/intern"
	"github.com/poundproxy/poundcfg/internal/strbuf"
)

// UnixPathMax is the maximum length of a UNIX-domain socket path this
// module will accept, matching Linux's sockaddr_un sun_path.
const UnixPathMax = 108

// Lexer is a stream of tokens over a stack of open files.
type Lexer struct {
	stack   []*frame
	interns *intern.Table
	pending *Token
}

// New returns a Lexer that interns file names in interns.
func New(interns *intern.Table) *Lexer {
	return &Lexer{interns: interns}
}

// Open pushes path as a new input. It refuses to push a file whose
// (device, inode) already appears anywhere on the stack.
func (l *Lexer) Open(path string, includeSite *diag.Range) error {
	var includedFrom *diag.Point
	if includeSite != nil {
		pt := includeSite.Start
		includedFrom = &pt
	}

	fr, dev, ino, err := openFrame(l.interns.Intern(path), includedFrom)
	if err != nil {
		return err
	}

	for i, existing := range l.stack {
		if existing.dev == dev && existing.ino == ino {
			fr.close()
			if i == 0 {
				return diag.Errorf(*includeSite, "%s already included (at top level)", path)
			}
			return diag.Errorf(*includeSite, "%s already included, from %s",
				path, existing.includedFrom.File+":"+itoa(existing.includedFrom.Line))
		}
	}

	l.stack = append(l.stack, fr)
	return nil
}

// OpenRoot opens the initial, top-level configuration file.
func (l *Lexer) OpenRoot(path string) error {
	return l.Open(path, nil)
}

// Close pops and closes the most recently opened input.
func (l *Lexer) Close() {
	n := len(l.stack)
	if n == 0 {
		return
	}
	l.stack[n-1].close()
	l.stack = l.stack[:n-1]
}

// Depth reports how many inputs are currently open.
func (l *Lexer) Depth() int { return len(l.stack) }

// ResolveInclude resolves a Include target relative to the directory
// of the file currently on top of the stack, matching shell/Pound
// Include path conventions.
func (l *Lexer) ResolveInclude(target string) string {
	if filepath.IsAbs(target) || len(l.stack) == 0 {
		return target
	}
	dir := filepath.Dir(l.stack[len(l.stack)-1].path)
	return filepath.Join(dir, target)
}

// PushBack restores tok for a single re-read. Calling it twice without
// an intervening Next is a programmer error; the slot is deliberately
// one deep.
func (l *Lexer) PushBack(tok Token) {
	if l.pending != nil {
		panic("lexer: PushBack called with a token already pending")
	}
	cp := tok
	l.pending = &cp
}

// Next returns the next token, popping exhausted frames and continuing
// with the parent input.
func (l *Lexer) Next() (Token, error) {
	if l.pending != nil {
		tok := *l.pending
		l.pending = nil
		return tok, nil
	}

	for {
		if len(l.stack) == 0 {
			return Token{Type: EOF}, nil
		}
		fr := l.stack[len(l.stack)-1]
		tok, ok, err := l.lexOne(fr)
		if err != nil {
			return Token{}, err
		}
		if !ok {
			// This frame is exhausted; pop and continue with the parent.
			l.Close()
			continue
		}
		return tok, nil
	}
}

func itoa(n int) string {
	var b strbuf.Buffer
	b.Printf("%d", n)
	return b.String()
}

// lexOne attempts to produce one token from fr. ok is false exactly
// when fr has reached EOF with nothing left to emit.
func (l *Lexer) lexOne(fr *frame) (Token, bool, error) {
	for {
		ch, has := fr.readRune()
		if !has {
			return Token{}, false, nil
		}

		switch {
		case ch == '\n':
			start := diag.Point{File: fr.path, Line: fr.line - 1, Col: fr.prevCol}
			return Token{Type: NEWLINE, Range: diag.NewRange(start)}, true, nil

		case ch == '#':
			l.skipComment(fr)
			continue

		case unicode.IsSpace(ch):
			continue

		case ch == '"':
			return l.lexString(fr)

		default:
			return l.lexWord(fr, ch)
		}
	}
}

func (l *Lexer) skipComment(fr *frame) {
	for {
		ch, has := fr.readRune()
		if !has || ch == '\n' {
			if has {
				fr.ungetRune(ch)
			}
			return
		}
	}
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentCont(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

func isWordBoundary(ch rune) bool {
	return unicode.IsSpace(ch)
}

// lexWord scans a maximal run of non-whitespace characters and
// classifies it: an identifier-start run that stays entirely within
// the identifier alphabet is IDENT; an all-decimal-digit run is
// NUMBER; anything else is LITERAL (a bare word, path, or other
// punctuation-led token), collapsing to the single-character PUNCT
// kind when the run is exactly one non-word, non-digit character.
func (l *Lexer) lexWord(fr *frame, first rune) (Token, bool, error) {
	start := fr.point()
	start.Col--
	var buf strbuf.Buffer
	buf.WriteRune(first)

	allIdent := isIdentStart(first)
	allDigit := unicode.IsDigit(first)
	runeCount := 1

	for {
		ch, has := fr.readRune()
		if !has {
			break
		}
		if isWordBoundary(ch) {
			fr.ungetRune(ch)
			break
		}
		if !isIdentCont(ch) {
			allIdent = false
		}
		if !unicode.IsDigit(ch) {
			allDigit = false
		}
		buf.WriteRune(ch)
		runeCount++
	}

	typ := LITERAL
	switch {
	case allIdent:
		typ = IDENT
	case allDigit:
		typ = NUMBER
	case runeCount == 1:
		typ = PUNCT
	}

	end := fr.point()
	return Token{Type: typ, Lexeme: buf.String(), Range: diag.Range{Start: start, End: end}}, true, nil
}

// lexString consumes a double-quoted string. Only \" and \\ are
// defined escapes; any other \x is diagnosed but the character is
// kept. Newline or EOF inside the string is an error.
func (l *Lexer) lexString(fr *frame) (Token, bool, error) {
	start := fr.point()
	start.Col--
	var buf strbuf.Buffer

	for {
		ch, has := fr.readRune()
		if !has {
			rng := diag.Range{Start: start, End: fr.point()}
			return Token{Type: ERROR, Lexeme: buf.String(), Range: rng}, true,
				diag.Errorf(rng, "unterminated string (reached end of file)")
		}
		if ch == '\n' {
			rng := diag.Range{Start: start, End: fr.point()}
			return Token{Type: ERROR, Lexeme: buf.String(), Range: rng}, true,
				diag.Errorf(rng, "unterminated string (newline inside quotes)")
		}
		if ch == '"' {
			end := fr.point()
			return Token{Type: STRING, Lexeme: buf.String(), Range: diag.Range{Start: start, End: end}}, true, nil
		}
		if ch == '\\' {
			next, has := fr.readRune()
			if !has {
				rng := diag.Range{Start: start, End: fr.point()}
				return Token{Type: ERROR, Lexeme: buf.String(), Range: rng}, true,
					diag.Errorf(rng, "unterminated string (reached end of file)")
			}
			switch next {
			case '"', '\\':
				buf.WriteRune(next)
			default:
				diag.Warnf(diag.NewRange(fr.point()), "unknown escape sequence \\%c", next)
				buf.WriteRune(next)
			}
			continue
		}
		buf.WriteRune(ch)
	}
}
