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

// MaxCommentLength bounds the transaction comment
const MaxCommentLength = 255

// InputKind discriminates the two source kinds a transaction can spend
type InputKind byte

// Input kinds, in their document spelling
const (
	// InputUD redeems a Universal Dividend
	InputUD InputKind = 'D'
	// InputTx spends a previous transaction output
	InputTx InputKind = 'T'
)

// Input is one consumed source
type Input struct {
	Amount basics.Amount
	Kind   InputKind

	// UD inputs
	UDIssuer crypto.PublicKey
	UDBlock  basics.BlockNumber

	// Tx inputs
	TxHash      crypto.Digest
	OutputIndex uint32
}

// String emits the input line
func (in Input) String() string {
	if in.Kind == InputUD {
		return fmt.Sprintf("%d:%d:D:%s:%d", in.Amount.Value, in.Amount.Base, in.UDIssuer, in.UDBlock)
	}
	return fmt.Sprintf("%d:%d:T:%s:%d", in.Amount.Value, in.Amount.Base, in.TxHash, in.OutputIndex)
}

// ParseInput parses an input line
func ParseInput(line string, pos int) (Input, *ParseError) {
	var in Input
	parts := splitN(line, ':', 5)
	if parts == nil {
		return in, &ParseError{Position: pos, Expected: []string{"input"}}
	}
	value, err := basics.ParseInt64(parts[0])
	if err != nil {
		return in, &ParseError{Position: pos, Expected: []string{"amount"}}
	}
	base, err2 := basics.ParseUint32(parts[1])
	if err2 != nil || base > 255 {
		return in, &ParseError{Position: pos, Expected: []string{"base"}}
	}
	in.Amount = basics.Amount{Value: value, Base: uint8(base)}
	switch parts[2] {
	case "D":
		in.Kind = InputUD
		pk, perr := crypto.PublicKeyFromBase58(parts[3])
		if perr != nil {
			return in, &ParseError{Position: pos, Expected: []string{"base58 public key"}}
		}
		in.UDIssuer = pk
		num, nerr := basics.ParseUint32(parts[4])
		if nerr != nil {
			return in, &ParseError{Position: pos, Expected: []string{"block number"}}
		}
		in.UDBlock = basics.BlockNumber(num)
	case "T":
		in.Kind = InputTx
		h, herr := crypto.DigestFromString(parts[3])
		if herr != nil {
			return in, &ParseError{Position: pos, Expected: []string{"hex digest"}}
		}
		in.TxHash = h
		idx, ierr := basics.ParseUint32(parts[4])
		if ierr != nil {
			return in, &ParseError{Position: pos, Expected: []string{"output index"}}
		}
		in.OutputIndex = idx
	default:
		return in, &ParseError{Position: pos, Expected: []string{"D", "T"}}
	}
	return in, nil
}

// Output binds an amount to a condition tree
type Output struct {
	Amount     basics.Amount
	Conditions *Condition
}

// String emits the output line
func (o Output) String() string {
	return fmt.Sprintf("%d:%d:%s", o.Amount.Value, o.Amount.Base, o.Conditions)
}

// ParseOutput parses an output line
func ParseOutput(line string, pos int) (Output, *ParseError) {
	var o Output
	parts := splitN(line, ':', 3)
	if parts == nil {
		return o, &ParseError{Position: pos, Expected: []string{"output"}}
	}
	value, err := basics.ParseInt64(parts[0])
	if err != nil {
		return o, &ParseError{Position: pos, Expected: []string{"amount"}}
	}
	base, err2 := basics.ParseUint32(parts[1])
	if err2 != nil || base > 255 {
		return o, &ParseError{Position: pos, Expected: []string{"base"}}
	}
	o.Amount = basics.Amount{Value: value, Base: uint8(base)}
	cond, cerr := ParseCondition(parts[2], pos+len(parts[0])+len(parts[1])+2)
	if cerr != nil {
		return o, cerr
	}
	o.Conditions = cond
	return o, nil
}

// Transaction moves amounts from consumed sources to condition-locked
// outputs. Inputs and outputs must balance after base normalization.
type Transaction struct {
	CurrencyName basics.CurrencyName
	Blockstamp   basics.Blockstamp
	Locktime     uint64
	Issuers      []crypto.PublicKey
	Inputs       []Input
	Unlocks      []Unlock
	Outputs      []Output
	Comment      string
	Signatures   []crypto.Signature
}

// Type implements Document
func (d *Transaction) Type() Type { return TypeTransaction }

// Currency implements Document
func (d *Transaction) Currency() basics.CurrencyName { return d.CurrencyName }

// SignableBytes implements Document
func (d *Transaction) SignableBytes() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Version: 10\nType: Transaction\nCurrency: %s\nBlockstamp: %s\nLocktime: %d\nIssuers:\n",
		d.CurrencyName, d.Blockstamp, d.Locktime)
	for _, iss := range d.Issuers {
		b.WriteString(iss.String())
		b.WriteByte('\n')
	}
	b.WriteString("Inputs:\n")
	for _, in := range d.Inputs {
		b.WriteString(in.String())
		b.WriteByte('\n')
	}
	b.WriteString("Unlocks:\n")
	for _, u := range d.Unlocks {
		b.WriteString(u.String())
		b.WriteByte('\n')
	}
	b.WriteString("Outputs:\n")
	for _, o := range d.Outputs {
		b.WriteString(o.String())
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Comment: %s\n", d.Comment)
	return []byte(b.String())
}

// CanonicalBytes implements Document
func (d *Transaction) CanonicalBytes() []byte {
	out := d.SignableBytes()
	for _, sig := range d.Signatures {
		out = append(out, []byte(sig.String()+"\n")...)
	}
	return out
}

// Verify implements Document. Each issuer signs the same signable bytes;
// signatures appear in issuer order.
func (d *Transaction) Verify() error {
	msg := d.SignableBytes()
	for i, iss := range d.Issuers {
		if i >= len(d.Signatures) || !iss.Verify(msg, d.Signatures[i]) {
			return &SignatureError{IssuerIndex: i}
		}
	}
	return nil
}

// Hash computes the transaction hash over the full canonical bytes
func (d *Transaction) Hash() crypto.Digest {
	return crypto.Hash(d.CanonicalBytes())
}

// ValidComment reports whether a comment satisfies the grammar
func ValidComment(s string) bool {
	if len(s) > MaxCommentLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9':
		case strings.IndexByte(" -_:/;*[]()?!^+=@&~#{}|\\<>%.", c) >= 0:
		default:
			return false
		}
	}
	return true
}

// ParseTransaction parses the textual form of a transaction document
func ParseTransaction(buf []byte) (*Transaction, *ParseError) {
	r := newLineReader(buf)
	if err := r.exact("Version: 10"); err != nil {
		return nil, err
	}
	if err := r.exact("Type: Transaction"); err != nil {
		return nil, err
	}
	return parseTransactionBody(r)
}

func parseTransactionBody(r *lineReader) (*Transaction, *ParseError) {
	var d Transaction
	var err *ParseError

	currency, err := r.field("Currency")
	if err != nil {
		return nil, err
	}
	d.CurrencyName = basics.CurrencyName(currency)
	if d.Blockstamp, err = r.blockstampField("Blockstamp"); err != nil {
		return nil, err
	}
	pos := r.off
	locktime, err := r.field("Locktime")
	if err != nil {
		return nil, err
	}
	lt, lerr := basics.ParseUint64(locktime)
	if lerr != nil {
		return nil, &ParseError{Position: pos, Expected: []string{"locktime"}}
	}
	d.Locktime = lt

	if err = r.exact("Issuers:"); err != nil {
		return nil, err
	}
	for {
		line, ok := r.peekLine()
		if !ok || line == "Inputs:" {
			break
		}
		pos := r.off
		r.line()
		pk, perr := crypto.PublicKeyFromBase58(line)
		if perr != nil {
			return nil, &ParseError{Position: pos, Expected: []string{"base58 public key", "Inputs:"}}
		}
		d.Issuers = append(d.Issuers, pk)
	}
	if len(d.Issuers) == 0 {
		return nil, r.errExpected("issuer")
	}
	if err = r.exact("Inputs:"); err != nil {
		return nil, err
	}
	for {
		line, ok := r.peekLine()
		if !ok || line == "Unlocks:" {
			break
		}
		pos := r.off
		r.line()
		in, ierr := ParseInput(line, pos)
		if ierr != nil {
			return nil, ierr
		}
		d.Inputs = append(d.Inputs, in)
	}
	if len(d.Inputs) == 0 {
		return nil, r.errExpected("input")
	}
	if err = r.exact("Unlocks:"); err != nil {
		return nil, err
	}
	for {
		line, ok := r.peekLine()
		if !ok || line == "Outputs:" {
			break
		}
		pos := r.off
		r.line()
		u, uerr := ParseUnlock(line, pos)
		if uerr != nil {
			return nil, uerr
		}
		d.Unlocks = append(d.Unlocks, u)
	}
	if err = r.exact("Outputs:"); err != nil {
		return nil, err
	}
	for {
		line, ok := r.peekLine()
		if !ok || strings.HasPrefix(line, "Comment: ") {
			break
		}
		pos := r.off
		r.line()
		o, oerr := ParseOutput(line, pos)
		if oerr != nil {
			return nil, oerr
		}
		d.Outputs = append(d.Outputs, o)
	}
	if len(d.Outputs) == 0 {
		return nil, r.errExpected("output")
	}
	pos = r.off
	comment, err := r.field("Comment")
	if err != nil {
		return nil, err
	}
	if !ValidComment(comment) {
		return nil, &ParseError{Position: pos, Expected: []string{"comment"}}
	}
	d.Comment = comment
	for range d.Issuers {
		sig, serr := r.signatureLine()
		if serr != nil {
			return nil, serr
		}
		d.Signatures = append(d.Signatures, sig)
	}
	if err = r.end(); err != nil {
		return nil, err
	}
	return &d, nil
}

// CompactText emits the in-block transaction form:
//
//	TX:10:NB_ISSUERS:NB_INPUTS:NB_UNLOCKS:NB_OUTPUTS:HAS_COMMENT:LOCKTIME
//	followed by blockstamp, issuers, inputs, unlocks, outputs, the comment
//	when present, and one signature per issuer.
func (d *Transaction) CompactText() string {
	var b strings.Builder
	hasComment := 0
	if d.Comment != "" {
		hasComment = 1
	}
	fmt.Fprintf(&b, "TX:10:%d:%d:%d:%d:%d:%d\n", len(d.Issuers), len(d.Inputs),
		len(d.Unlocks), len(d.Outputs), hasComment, d.Locktime)
	fmt.Fprintf(&b, "%s\n", d.Blockstamp)
	for _, iss := range d.Issuers {
		fmt.Fprintf(&b, "%s\n", iss)
	}
	for _, in := range d.Inputs {
		fmt.Fprintf(&b, "%s\n", in)
	}
	for _, u := range d.Unlocks {
		fmt.Fprintf(&b, "%s\n", u)
	}
	for _, o := range d.Outputs {
		fmt.Fprintf(&b, "%s\n", o)
	}
	if hasComment == 1 {
		fmt.Fprintf(&b, "%s\n", d.Comment)
	}
	for i, sig := range d.Signatures {
		b.WriteString(sig.String())
		if i < len(d.Signatures)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// parseCompactTransaction consumes the in-block transaction form from r
func parseCompactTransaction(currency basics.CurrencyName, r *lineReader) (*Transaction, *ParseError) {
	pos := r.off
	head, err := r.line()
	if err != nil {
		return nil, err
	}
	parts := strings.Split(head, ":")
	if len(parts) != 8 || parts[0] != "TX" || parts[1] != "10" {
		return nil, &ParseError{Position: pos, Expected: []string{"TX:10:"}}
	}
	counts := make([]uint32, 4)
	for i := 0; i < 4; i++ {
		n, nerr := basics.ParseUint32(parts[2+i])
		if nerr != nil {
			return nil, &ParseError{Position: pos, Expected: []string{"count"}}
		}
		counts[i] = n
	}
	hasComment := parts[6] == "1"
	if parts[6] != "0" && parts[6] != "1" {
		return nil, &ParseError{Position: pos, Expected: []string{"0", "1"}}
	}
	locktime, lerr := basics.ParseUint64(parts[7])
	if lerr != nil {
		return nil, &ParseError{Position: pos, Expected: []string{"locktime"}}
	}

	d := Transaction{CurrencyName: currency, Locktime: locktime}
	pos = r.off
	stampLine, err := r.line()
	if err != nil {
		return nil, err
	}
	stamp, serr := basics.ParseBlockstamp(stampLine)
	if serr != nil {
		return nil, &ParseError{Position: pos, Expected: []string{"blockstamp"}}
	}
	d.Blockstamp = stamp

	for i := uint32(0); i < counts[0]; i++ {
		pos := r.off
		line, err := r.line()
		if err != nil {
			return nil, err
		}
		pk, perr := crypto.PublicKeyFromBase58(line)
		if perr != nil {
			return nil, &ParseError{Position: pos, Expected: []string{"base58 public key"}}
		}
		d.Issuers = append(d.Issuers, pk)
	}
	for i := uint32(0); i < counts[1]; i++ {
		pos := r.off
		line, err := r.line()
		if err != nil {
			return nil, err
		}
		in, ierr := ParseInput(line, pos)
		if ierr != nil {
			return nil, ierr
		}
		d.Inputs = append(d.Inputs, in)
	}
	for i := uint32(0); i < counts[2]; i++ {
		pos := r.off
		line, err := r.line()
		if err != nil {
			return nil, err
		}
		u, uerr := ParseUnlock(line, pos)
		if uerr != nil {
			return nil, uerr
		}
		d.Unlocks = append(d.Unlocks, u)
	}
	for i := uint32(0); i < counts[3]; i++ {
		pos := r.off
		line, err := r.line()
		if err != nil {
			return nil, err
		}
		o, oerr := ParseOutput(line, pos)
		if oerr != nil {
			return nil, oerr
		}
		d.Outputs = append(d.Outputs, o)
	}
	if hasComment {
		pos := r.off
		comment, err := r.line()
		if err != nil {
			return nil, err
		}
		if !ValidComment(comment) || comment == "" {
			return nil, &ParseError{Position: pos, Expected: []string{"comment"}}
		}
		d.Comment = comment
	}
	for range d.Issuers {
		sig, serr2 := r.signatureLine()
		if serr2 != nil {
			return nil, serr2
		}
		d.Signatures = append(d.Signatures, sig)
	}
	return &d, nil
}
