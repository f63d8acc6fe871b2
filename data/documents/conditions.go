// Copyright (C) 2019-2026 The Dunitrust Project Developers.
// This file is part of dunitrust
//
// dunitrust is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// dunitrust is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with dunitrust.  If not, see <https://www.gnu.org/licenses/>.

package documents

import (
	"fmt"
	"strings"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
)

// CondOp is the operator of an inner condition node
type CondOp string

// Condition operators
const (
	CondAnd CondOp = "&&"
	CondOr  CondOp = "||"
)

// Condition is one node of an output condition tree. Exactly one of the
// leaf fields or (Op, Left, Right) is set.
//
// The tree is preserved exactly as read: signatures bind the byte sequence,
// so no commutative or associative rewriting is ever applied. Paren records
// whether the node was parenthesized in the source.
type Condition struct {
	// leaves
	Sig  *crypto.PublicKey // SIG(pubkey)
	Xhx  *crypto.Digest    // XHX(hash)
	Csv  *uint64           // CSV(seconds)
	Cltv *uint64           // CLTV(unix time)

	// inner node
	Op    CondOp
	Left  *Condition
	Right *Condition

	// Paren is true when the source wrapped this node in parentheses
	Paren bool
}

// String emits the condition exactly as it was read
func (c *Condition) String() string {
	var body string
	switch {
	case c.Sig != nil:
		body = fmt.Sprintf("SIG(%s)", c.Sig)
	case c.Xhx != nil:
		body = fmt.Sprintf("XHX(%s)", c.Xhx)
	case c.Csv != nil:
		body = fmt.Sprintf("CSV(%d)", *c.Csv)
	case c.Cltv != nil:
		body = fmt.Sprintf("CLTV(%d)", *c.Cltv)
	default:
		body = fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right)
	}
	if c.Paren {
		return "(" + body + ")"
	}
	return body
}

// condParser is a recursive-descent parser over a condition expression
type condParser struct {
	s    string
	pos  int
	base int // byte offset of s within the enclosing document
}

func (p *condParser) err(expected ...string) *ParseError {
	return &ParseError{Position: p.base + p.pos, Expected: expected}
}

func (p *condParser) eof() bool { return p.pos >= len(p.s) }

func (p *condParser) consume(tok string) bool {
	if strings.HasPrefix(p.s[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

// argument consumes up to the closing ')'
func (p *condParser) argument() (string, *ParseError) {
	end := strings.IndexByte(p.s[p.pos:], ')')
	if end < 0 {
		return "", p.err(")")
	}
	arg := p.s[p.pos : p.pos+end]
	p.pos += end + 1
	return arg, nil
}

func (p *condParser) leaf() (*Condition, *ParseError) {
	switch {
	case p.consume("SIG("):
		arg, err := p.argument()
		if err != nil {
			return nil, err
		}
		pk, perr := crypto.PublicKeyFromBase58(arg)
		if perr != nil {
			return nil, p.err("base58 public key")
		}
		return &Condition{Sig: &pk}, nil
	case p.consume("XHX("):
		arg, err := p.argument()
		if err != nil {
			return nil, err
		}
		h, herr := crypto.DigestFromString(arg)
		if herr != nil {
			return nil, p.err("hex digest")
		}
		return &Condition{Xhx: &h}, nil
	case p.consume("CSV("):
		arg, err := p.argument()
		if err != nil {
			return nil, err
		}
		n, nerr := basics.ParseUint64(arg)
		if nerr != nil {
			return nil, p.err("duration")
		}
		return &Condition{Csv: &n}, nil
	case p.consume("CLTV("):
		arg, err := p.argument()
		if err != nil {
			return nil, err
		}
		n, nerr := basics.ParseUint64(arg)
		if nerr != nil {
			return nil, p.err("timestamp")
		}
		return &Condition{Cltv: &n}, nil
	default:
		return nil, p.err("SIG(", "XHX(", "CSV(", "CLTV(")
	}
}

func (p *condParser) operand() (*Condition, *ParseError) {
	if p.consume("(") {
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if !p.consume(")") {
			return nil, p.err(")")
		}
		inner.Paren = true
		return inner, nil
	}
	return p.leaf()
}

// expr folds operands left-associatively; && and || have equal precedence
func (p *condParser) expr() (*Condition, *ParseError) {
	left, err := p.operand()
	if err != nil {
		return nil, err
	}
	for {
		save := p.pos
		var op CondOp
		switch {
		case p.consume(" && "):
			op = CondAnd
		case p.consume(" || "):
			op = CondOr
		default:
			return left, nil
		}
		right, err := p.operand()
		if err != nil {
			p.pos = save
			return nil, err
		}
		left = &Condition{Op: op, Left: left, Right: right}
	}
}

// ParseCondition parses an output condition expression. pos is the byte
// offset of the expression within the enclosing document, used for error
// reporting.
func ParseCondition(s string, pos int) (*Condition, *ParseError) {
	p := &condParser{s: s, base: pos}
	c, err := p.expr()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, p.err("&&", "||", "end of condition")
	}
	return c, nil
}

// UnlockProof is one proof inside an unlock line: SIG(issuer_index) or
// XHX(secret preimage).
type UnlockProof struct {
	// SigIndex is the issuer index for a SIG proof; -1 for XHX
	SigIndex int

	// Secret is the preimage for an XHX proof
	Secret string
}

// IsSig reports whether the proof is a SIG reference
func (u UnlockProof) IsSig() bool { return u.SigIndex >= 0 }

// String emits the proof in document form
func (u UnlockProof) String() string {
	if u.IsSig() {
		return fmt.Sprintf("SIG(%d)", u.SigIndex)
	}
	return fmt.Sprintf("XHX(%s)", u.Secret)
}

// Unlock binds an input index to the proofs that satisfy the spent
// source's condition tree.
type Unlock struct {
	InputIndex uint32
	Proofs     []UnlockProof
}

// String emits the unlock line: INDEX:PROOF( PROOF)*
func (u Unlock) String() string {
	parts := make([]string, len(u.Proofs))
	for i, p := range u.Proofs {
		parts[i] = p.String()
	}
	return fmt.Sprintf("%d:%s", u.InputIndex, strings.Join(parts, " "))
}

// ParseUnlock parses an unlock line
func ParseUnlock(line string, pos int) (Unlock, *ParseError) {
	var u Unlock
	colon := strings.IndexByte(line, ':')
	if colon < 1 {
		return u, &ParseError{Position: pos, Expected: []string{"input index"}}
	}
	idx, err := basics.ParseUint32(line[:colon])
	if err != nil {
		return u, &ParseError{Position: pos, Expected: []string{"input index"}}
	}
	u.InputIndex = idx
	for _, tok := range strings.Split(line[colon+1:], " ") {
		switch {
		case strings.HasPrefix(tok, "SIG(") && strings.HasSuffix(tok, ")"):
			n, err := basics.ParseUint32(tok[4 : len(tok)-1])
			if err != nil {
				return u, &ParseError{Position: pos, Expected: []string{"issuer index"}}
			}
			u.Proofs = append(u.Proofs, UnlockProof{SigIndex: int(n)})
		case strings.HasPrefix(tok, "XHX(") && strings.HasSuffix(tok, ")"):
			u.Proofs = append(u.Proofs, UnlockProof{SigIndex: -1, Secret: tok[4 : len(tok)-1]})
		default:
			return u, &ParseError{Position: pos, Expected: []string{"SIG(", "XHX("}}
		}
	}
	if len(u.Proofs) == 0 {
		return u, &ParseError{Position: pos, Expected: []string{"SIG(", "XHX("}}
	}
	return u, nil
}
