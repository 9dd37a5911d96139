package replay

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrSyntax is wrapped by every parse error.
	ErrSyntax = errors.New("replay: syntax error")
	// ErrMainMismatch is returned when e(n,m) names a main frame other than
	// the last processed one.
	ErrMainMismatch = errors.New("replay: last activated main frame mismatch")
)

// Op is one letter of the sequence language.
type Op byte

const (
	OpBeginImpl     Op = 'b' // b(seq)
	OpBeginMain     Op = 'B' // B(prev,seq)
	OpImplNoDamage  Op = 'n' // n(seq)
	OpMainNoDamage  Op = 'N' // N(prev,seq)
	OpSubmit        Op = 's' // s(token) with optional S(main) and C
	OpFrameEnd      Op = 'e' // e(seq,main)
	OpMainProcessed Op = 'E' // E(main)
	OpPresent       Op = 'P' // P(token)
	OpPause         Op = 'R'
)

// Event is one parsed notification.
//
// Seq holds the sequence number, or the frame token for s and P. Aux holds
// the first argument of B and N and the second argument of e.
type Event struct {
	Op             Op
	Seq            uint64
	Aux            uint64
	Main           uint64
	HasMain        bool
	MissingContent bool
}

func (e Event) String() string {
	switch e.Op {
	case OpBeginMain, OpMainNoDamage:
		return fmt.Sprintf("%c(%d,%d)", e.Op, e.Aux, e.Seq)
	case OpFrameEnd:
		return fmt.Sprintf("e(%d,%d)", e.Seq, e.Aux)
	case OpPause:
		return "R"
	case OpSubmit:
		var b strings.Builder
		fmt.Fprintf(&b, "s(%d)", e.Seq)
		if e.HasMain {
			fmt.Fprintf(&b, "S(%d)", e.Main)
		}
		if e.MissingContent {
			b.WriteByte('C')
		}
		return b.String()
	}
	return fmt.Sprintf("%c(%d)", e.Op, e.Seq)
}

// Format renders events back into the sequence language.
func Format(events []Event) string {
	var b strings.Builder
	for _, e := range events {
		b.WriteString(e.String())
	}
	return b.String()
}

type parser struct {
	src string
	pos int
}

// Parse reads a sequence such as "b(1)B(0,1)s(1)S(1)e(1,0)P(1)".
// Whitespace between events is ignored.
func Parse(src string) ([]Event, error) {
	p := &parser{src: src}
	var events []Event
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return events, nil
		}
		e, err := p.event()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
}

func (p *parser) event() (Event, error) {
	at := p.pos
	op := Op(p.src[p.pos])
	p.pos++

	e := Event{Op: op}
	var err error
	switch op {
	case OpBeginImpl, OpImplNoDamage, OpMainProcessed:
		e.Seq, err = p.args1()
	case OpPresent:
		e.Seq, err = p.tokenArg()
	case OpBeginMain, OpMainNoDamage:
		e.Aux, e.Seq, err = p.args2()
	case OpFrameEnd:
		e.Seq, e.Aux, err = p.args2()
	case OpSubmit:
		if e.Seq, err = p.tokenArg(); err != nil {
			break
		}
		p.skipSpace()
		if p.peek('S') {
			p.pos++
			e.HasMain = true
			e.Main, err = p.args1()
		}
		p.skipSpace()
		if err == nil && p.peek('C') {
			p.pos++
			e.MissingContent = true
		}
	case OpPause:
	default:
		return Event{}, p.errorf(at, "unknown event %q", rune(op))
	}
	if err != nil {
		return Event{}, err
	}
	return e, nil
}

func (p *parser) args1() (uint64, error) {
	if err := p.expect('('); err != nil {
		return 0, err
	}
	n, err := p.number()
	if err != nil {
		return 0, err
	}
	return n, p.expect(')')
}

// tokenArg reads a single frame token argument. Tokens are uint32.
func (p *parser) tokenArg() (uint64, error) {
	if err := p.expect('('); err != nil {
		return 0, err
	}
	p.skipSpace()
	at := p.pos
	n, err := p.number()
	if err != nil {
		return 0, err
	}
	if n > math.MaxUint32 {
		return 0, p.errorf(at, "frame token %d out of range", n)
	}
	return n, p.expect(')')
}

func (p *parser) args2() (uint64, uint64, error) {
	if err := p.expect('('); err != nil {
		return 0, 0, err
	}
	a, err := p.number()
	if err != nil {
		return 0, 0, err
	}
	if err := p.expect(','); err != nil {
		return 0, 0, err
	}
	b, err := p.number()
	if err != nil {
		return 0, 0, err
	}
	return a, b, p.expect(')')
}

func (p *parser) number() (uint64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, p.errorf(start, "expected number")
	}
	n, err := strconv.ParseUint(p.src[start:p.pos], 10, 64)
	if err != nil {
		return 0, p.errorf(start, "bad number: %v", err)
	}
	p.skipSpace()
	return n, nil
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if !p.peek(c) {
		return p.errorf(p.pos, "expected %q", c)
	}
	p.pos++
	return nil
}

func (p *parser) peek(c byte) bool {
	return p.pos < len(p.src) && p.src[p.pos] == c
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) errorf(offset int, format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, offset, fmt.Sprintf(format, args...))
}
