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

package node

import (
	"fmt"
	"io"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
)

// Dbex is the database explorer behind the dbex subcommand: it dumps a
// slice of the indices from a read snapshot, without starting the router.
func (n *Node) Dbex(w io.Writer, what string, key string) error {
	snap := n.ledger.Snapshot()
	switch what {
	case "head":
		head, ok := snap.GetBindexHead()
		if !ok {
			return fmt.Errorf("dbex: empty chain")
		}
		fmt.Fprintf(w, "head %d %s issuer=%s members=%d mass=%d\n",
			head.Number, head.Hash, head.Issuer, head.MembersCount, head.MonetaryMass)
		return nil
	case "idty":
		st, ok := snap.IdentityByUID(basics.UID(key))
		if !ok {
			return fmt.Errorf("dbex: unknown uid %q", key)
		}
		fmt.Fprintf(w, "%s pub=%s member=%v kick=%v written_on=%d\n",
			st.UID, st.Pubkey, st.Member, st.Kick, st.WrittenOn)
		return nil
	case "sources":
		pk, err := crypto.PublicKeyFromBase58(key)
		if err != nil {
			return fmt.Errorf("dbex: bad pubkey %q", key)
		}
		for _, row := range snap.IterSindexByPubkey(pk) {
			fmt.Fprintf(w, "%s amount=%d:%d written_on=%d\n",
				row.Key(), row.Amount.Value, row.Amount.Base, row.WrittenOn)
		}
		return nil
	case "certs":
		pk, err := crypto.PublicKeyFromBase58(key)
		if err != nil {
			return fmt.Errorf("dbex: bad pubkey %q", key)
		}
		for _, row := range snap.IterCindexByIssuer(pk) {
			fmt.Fprintf(w, "%s -> %s created_on=%d expires_on=%d expired_on=%d\n",
				row.Issuer, row.Receiver, row.CreatedOn, row.ExpiresOn, row.ExpiredOn)
		}
		return nil
	default:
		return fmt.Errorf("dbex: unknown table %q", what)
	}
}
