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
	"bytes"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
)

// lineReader walks a document byte slice one '\n'-terminated line at a
// time, tracking the byte offset for error reporting.
type lineReader struct {
	buf []byte
	off int
}

func newLineReader(buf []byte) *lineReader {
	return &lineReader{buf: buf}
}

func (r *lineReader) errExpected(expected ...string) *ParseError {
	return &ParseError{Position: r.off, Expected: expected}
}

func (r *lineReader) atEOF() bool {
	return r.off >= len(r.buf)
}

// line consumes the next line without its '\n' terminator. The final line
// of a document may omit the terminator.
func (r *lineReader) line() (string, *ParseError) {
	if r.atEOF() {
		return "", r.errExpected("line")
	}
	nl := bytes.IndexByte(r.buf[r.off:], '\n')
	if nl < 0 {
		s := string(r.buf[r.off:])
		r.off = len(r.buf)
		return s, nil
	}
	s := string(r.buf[r.off : r.off+nl])
	r.off += nl + 1
	return s, nil
}

// peekLine returns the next line without consuming it
func (r *lineReader) peekLine() (string, bool) {
	if r.atEOF() {
		return "", false
	}
	rest := r.buf[r.off:]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 {
		return string(rest), true
	}
	return string(rest[:nl]), true
}

// exact consumes a line that must equal want
func (r *lineReader) exact(want string) *ParseError {
	pos := r.off
	got, err := r.line()
	if err != nil {
		return err
	}
	if got != want {
		return &ParseError{Position: pos, Expected: []string{want}}
	}
	return nil
}

// field consumes a "Key: value" line and returns the value
func (r *lineReader) field(key string) (string, *ParseError) {
	pos := r.off
	got, err := r.line()
	if err != nil {
		return "", err
	}
	prefix := key + ": "
	if len(got) < len(prefix) || got[:len(prefix)] != prefix {
		return "", &ParseError{Position: pos, Expected: []string{prefix}}
	}
	return got[len(prefix):], nil
}

func (r *lineReader) pubkeyField(key string) (crypto.PublicKey, *ParseError) {
	pos := r.off
	s, err := r.field(key)
	if err != nil {
		return crypto.PublicKey{}, err
	}
	pk, perr := crypto.PublicKeyFromBase58(s)
	if perr != nil {
		return pk, &ParseError{Position: pos, Expected: []string{"base58 public key"}}
	}
	return pk, nil
}

func (r *lineReader) blockstampField(key string) (basics.Blockstamp, *ParseError) {
	pos := r.off
	s, err := r.field(key)
	if err != nil {
		return basics.Blockstamp{}, err
	}
	b, berr := basics.ParseBlockstamp(s)
	if berr != nil {
		return b, &ParseError{Position: pos, Expected: []string{"blockstamp"}}
	}
	return b, nil
}

func (r *lineReader) uidField(key string) (basics.UID, *ParseError) {
	pos := r.off
	s, err := r.field(key)
	if err != nil {
		return "", err
	}
	uid := basics.UID(s)
	if !uid.Valid() {
		return "", &ParseError{Position: pos, Expected: []string{"user id"}}
	}
	return uid, nil
}

func (r *lineReader) signatureField(key string) (crypto.Signature, *ParseError) {
	pos := r.off
	s, err := r.field(key)
	if err != nil {
		return crypto.Signature{}, err
	}
	sig, serr := crypto.SignatureFromBase64(s)
	if serr != nil {
		return sig, &ParseError{Position: pos, Expected: []string{"base64 signature"}}
	}
	return sig, nil
}

// signatureLine consumes a bare signature line
func (r *lineReader) signatureLine() (crypto.Signature, *ParseError) {
	pos := r.off
	s, err := r.line()
	if err != nil {
		return crypto.Signature{}, err
	}
	sig, serr := crypto.SignatureFromBase64(s)
	if serr != nil {
		return sig, &ParseError{Position: pos, Expected: []string{"base64 signature"}}
	}
	return sig, nil
}

// header consumes the "Version: 10" and "Type: T" lines and returns the type
func (r *lineReader) header() (Type, *ParseError) {
	if err := r.exact("Version: 10"); err != nil {
		return "", err
	}
	pos := r.off
	t, err := r.field("Type")
	if err != nil {
		return "", err
	}
	switch dt := Type(t); dt {
	case TypeIdentity, TypeMembership, TypeCertification, TypeRevocation, TypeTransaction, TypeBlock:
		return dt, nil
	default:
		return "", &ParseError{Position: pos, Expected: []string{"document type"}}
	}
}

// end rejects trailing bytes after the last expected line
func (r *lineReader) end() *ParseError {
	if !r.atEOF() {
		return r.errExpected("end of document")
	}
	return nil
}
