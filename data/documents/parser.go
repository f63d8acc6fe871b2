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

// ParseDocument parses any DUBP user document, selecting the variant from
// the "Type:" line.
func ParseDocument(buf []byte) (Document, *ParseError) {
	r := newLineReader(buf)
	docType, err := r.header()
	if err != nil {
		return nil, err
	}
	switch docType {
	case TypeIdentity:
		return parseIdentityBody(r)
	case TypeMembership:
		return parseMembershipBody(r)
	case TypeCertification:
		return parseCertificationBody(r)
	case TypeRevocation:
		return parseRevocationBody(r)
	case TypeTransaction:
		return parseTransactionBody(r)
	case TypeBlock:
		return parseBlockBody(r)
	}
	// header() only returns known types
	return nil, r.errExpected("document type")
}
