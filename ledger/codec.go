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

package ledger

import (
	"fmt"

	"github.com/algorand/go-codec/codec"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
)

// rowCodecHandle configures canonical encoding for persisted rows: a given
// row always serializes to the same bytes.
var rowCodecHandle *codec.CborHandle

func init() {
	rowCodecHandle = new(codec.CborHandle)
	rowCodecHandle.ErrorIfNoField = true
	rowCodecHandle.ErrorIfNoArrayExpand = true
	rowCodecHandle.Canonical = true
}

// encodeRow serializes a row for the KV store
func encodeRow(obj interface{}) []byte {
	var out []byte
	enc := codec.NewEncoderBytes(&out, rowCodecHandle)
	enc.MustEncode(obj)
	return out
}

// decodeRow deserializes a row read back from the KV store
func decodeRow(data []byte, objptr interface{}) error {
	dec := codec.NewDecoderBytes(data, rowCodecHandle)
	return dec.Decode(objptr)
}

// Key layout. Every index lives under its own prefix; per-pubkey rows embed
// the written_on block number in fixed width so lexicographic KV order is
// written_on order.
//
//	i/<pubkey>/<written_on>/<seq>   IINDEX event
//	m/<pubkey>/<written_on>/<seq>   MINDEX event
//	ci/<issuer>/<written_on>/<seq>  CINDEX event, issuer orientation
//	cr/<receiver>/<written_on>/<seq> CINDEX event, receiver mirror
//	s/<owner>/<written_on>/<seq>    SINDEX event
//	b/<number>                      BINDEX head
const (
	prefixIindex         = "i/"
	prefixMindex         = "m/"
	prefixCindexIssuer   = "ci/"
	prefixCindexReceiver = "cr/"
	prefixSindex         = "s/"
	prefixBindex         = "b/"
)

func rowKey(prefix string, pk crypto.PublicKey, writtenOn basics.BlockNumber, seq int) []byte {
	return []byte(fmt.Sprintf("%s%s/%010d/%06d", prefix, pk, writtenOn, seq))
}

func bindexKey(n basics.BlockNumber) []byte {
	return []byte(fmt.Sprintf("%s%010d", prefixBindex, n))
}

// prefixEnd returns the exclusive upper bound of a key prefix scan
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
