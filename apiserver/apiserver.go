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

// Package apiserver is the read-only HTTP query surface for indexing
// clients: node status, identities and spendable sources, served straight
// from ledger snapshots. The full GraphQL client API is out of scope.
package apiserver

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dunitrust/dunitrust/config"
	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
	"github.com/dunitrust/dunitrust/ledger"
	"github.com/dunitrust/dunitrust/modules"
	"github.com/dunitrust/dunitrust/network"
)

// ModuleName is the router name of the query API module
const ModuleName = "apiserver"

var errBadListenPort = errors.New("apiserver: bad listen port")

// Backend is the read side the API serves from. Snapshots keep the
// handlers consistent: each request reads one fixed snapshot.
type Backend interface {
	Snapshot() *ledger.Snapshot
}

// StatusProvider reports the node status line
type StatusProvider interface {
	Status() interface{}
}

// Module serves the query API over HTTP
type Module struct {
	backend Backend
	status  StatusProvider
}

// MakeModule creates the query API module
func MakeModule(backend Backend, status StatusProvider) *Module {
	return &Module{backend: backend, status: status}
}

// Name implements modules.Module
func (m *Module) Name() string { return ModuleName }

// Priority implements modules.Module
func (m *Module) Priority() modules.Priority { return modules.PriorityOptionalOn }

// RequiredKeys implements modules.Module
func (m *Module) RequiredKeys() modules.KeyReq { return modules.KeysNone }

// HasSubcommand implements modules.Module
func (m *Module) HasSubcommand() bool { return false }

// ExecSubcommand implements modules.Module
func (m *Module) ExecSubcommand(modules.NodeMeta, config.KeyPairs, config.Local, []string) (modules.SubcommandResult, error) {
	return modules.SubcommandResult{}, nil
}

// Endpoints implements modules.Module: the API is gossiped as a BMA-style
// HTTP endpoint.
func (m *Module) Endpoints(conf config.Local) []network.Endpoint {
	host, port, err := splitListenAddress(conf.APIListenAddress)
	if err != nil {
		return nil
	}
	return []network.Endpoint{{
		API:      "DUNITRUST_API",
		Features: network.FeatureHTTP,
		Host:     host,
		Port:     port,
	}}
}

func splitListenAddress(addr string) (string, uint16, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := basics.ParseUint32(portStr)
	if err != nil || port > 65535 {
		return "", 0, errBadListenPort
	}
	if host == "" {
		host = "localhost"
	}
	return host, uint16(port), nil
}

// Start implements modules.Module: serves HTTP until shutdown
func (m *Module) Start(ctx modules.StartContext) error {
	inbox, err := ctx.Client.Register(nil, nil)
	if err != nil {
		return err
	}
	if ctx.Conf.APIListenAddress == "" {
		// nothing to serve; stay registered until shutdown
		for msg := range inbox {
			if msg.Shutdown {
				return nil
			}
		}
		return nil
	}

	router := mux.NewRouter()
	router.HandleFunc("/node/summary", m.handleSummary).Methods(http.MethodGet)
	router.HandleFunc("/blockchain/current", m.handleCurrent).Methods(http.MethodGet)
	router.HandleFunc("/wot/identity/{uid}", m.handleIdentity).Methods(http.MethodGet)
	router.HandleFunc("/tx/sources/{pubkey}", m.handleSources).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         ctx.Conf.APIListenAddress,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	ctx.Log.Infof("query api listening on %s", ctx.Conf.APIListenAddress)

	for {
		select {
		case msg := <-inbox:
			if msg.Shutdown {
				srv.Close()
				<-serveErr
				return nil
			}
		case err := <-serveErr:
			if err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (m *Module) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, m.status.Status())
}

func (m *Module) handleCurrent(w http.ResponseWriter, r *http.Request) {
	head, ok := m.backend.Snapshot().GetBindexHead()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "empty chain"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"number":       head.Number,
		"hash":         head.Hash.String(),
		"issuer":       head.Issuer.String(),
		"time":         head.Time,
		"medianTime":   head.MedianTime,
		"powMin":       head.PoWMin,
		"membersCount": head.MembersCount,
		"dividend":     head.Dividend,
		"monetaryMass": head.MonetaryMass,
		"unitBase":     head.UnitBase,
		"issuersCount": head.IssuersCount,
		"issuersFrame": head.IssuersFrame,
	})
}

func (m *Module) handleIdentity(w http.ResponseWriter, r *http.Request) {
	uid := basics.UID(mux.Vars(r)["uid"])
	st, ok := m.backend.Snapshot().IdentityByUID(uid)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown identity"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pubkey":    st.Pubkey.String(),
		"uid":       st.UID,
		"member":    st.Member,
		"wasMember": st.WasMember,
		"kick":      st.Kick,
		"createdOn": st.CreatedOn.String(),
		"writtenOn": st.WrittenOn,
	})
}

func (m *Module) handleSources(w http.ResponseWriter, r *http.Request) {
	pk, err := crypto.PublicKeyFromBase58(mux.Vars(r)["pubkey"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad pubkey"})
		return
	}
	rows := m.backend.Snapshot().IterSindexByPubkey(pk)
	sources := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		src := map[string]interface{}{
			"amount":     row.Amount.Value,
			"base":       row.Amount.Base,
			"writtenOn":  row.WrittenOn,
			"conditions": row.Conditions,
		}
		if row.Kind == ledger.SourceUD {
			src["type"] = "D"
			src["udBlock"] = row.UDBlock
		} else {
			src["type"] = "T"
			src["txHash"] = row.TxHash.String()
			src["outputIndex"] = row.OutputIndex
		}
		sources = append(sources, src)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pubkey":  mux.Vars(r)["pubkey"],
		"sources": sources,
	})
}
