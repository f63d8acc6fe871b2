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

package apiserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"

	"github.com/dunitrust/dunitrust/config"
	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
	"github.com/dunitrust/dunitrust/ledger"
	"github.com/dunitrust/dunitrust/logging"
	"github.com/stretchr/testify/require"
)

type stubStatus struct{}

func (stubStatus) Status() interface{} {
	return map[string]string{"state": "ok"}
}

func apiPubkey(tag byte) crypto.PublicKey {
	var seed crypto.Seed
	seed[0] = tag
	copy(seed[1:], []byte("apiserver test seed material...."))
	return crypto.GenerateSignatureSecrets(seed).SignatureVerifier
}

func makeAPIFixture(t *testing.T) (*Module, *mux.Router) {
	t.Helper()
	l, err := ledger.Open(logging.TestingLog(t), "pebble", filepath.Join(t.TempDir(), "indexes"), true)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	pk := apiPubkey(1)
	_, err = l.Apply(0, &ledger.Mutations{
		IRows: []ledger.IIndexRow{{
			Pubkey:    pk,
			UID:       "alice",
			Member:    true,
			WasMember: true,
		}},
		SRows: []ledger.SIndexRow{{
			Kind:     ledger.SourceUD,
			UDIssuer: pk,
			Owner:    pk,
			Amount:   basics.Amount{Value: 1000, Base: 0},
		}},
		Head: ledger.BIndexRow{
			Number:       0,
			Hash:         crypto.Hash([]byte("head")),
			Time:         1700000000,
			MedianTime:   1700000000,
			MembersCount: 1,
		},
	})
	require.NoError(t, err)

	m := MakeModule(l, stubStatus{})
	router := mux.NewRouter()
	router.HandleFunc("/node/summary", m.handleSummary).Methods(http.MethodGet)
	router.HandleFunc("/blockchain/current", m.handleCurrent).Methods(http.MethodGet)
	router.HandleFunc("/wot/identity/{uid}", m.handleIdentity).Methods(http.MethodGet)
	router.HandleFunc("/tx/sources/{pubkey}", m.handleSources).Methods(http.MethodGet)
	return m, router
}

func get(t *testing.T, router *mux.Router, path string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestSummaryEndpoint(t *testing.T) {
	_, router := makeAPIFixture(t)
	code, body := get(t, router, "/node/summary")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["state"])
}

func TestCurrentEndpoint(t *testing.T) {
	_, router := makeAPIFixture(t)
	code, body := get(t, router, "/blockchain/current")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(0), body["number"])
	require.Equal(t, float64(1), body["membersCount"])
	require.NotEmpty(t, body["hash"])
}

func TestIdentityEndpoint(t *testing.T) {
	_, router := makeAPIFixture(t)
	code, body := get(t, router, "/wot/identity/alice")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "alice", body["uid"])
	require.Equal(t, true, body["member"])

	code, _ = get(t, router, "/wot/identity/nobody")
	require.Equal(t, http.StatusNotFound, code)
}

func TestSourcesEndpoint(t *testing.T) {
	_, router := makeAPIFixture(t)
	pk := apiPubkey(1)
	code, body := get(t, router, "/tx/sources/"+pk.String())
	require.Equal(t, http.StatusOK, code)
	sources, ok := body["sources"].([]interface{})
	require.True(t, ok)
	require.Len(t, sources, 1)

	code, _ = get(t, router, "/tx/sources/not-a-key")
	require.Equal(t, http.StatusBadRequest, code)
}

func TestEndpointsDescriptor(t *testing.T) {
	m, _ := makeAPIFixture(t)
	conf := config.GetDefaultLocal()
	conf.APIListenAddress = "127.0.0.1:10901"
	eps := m.Endpoints(conf)
	require.Len(t, eps, 1)
	require.Equal(t, "DUNITRUST_API", eps[0].API)
	require.Equal(t, uint16(10901), eps[0].Port)

	conf.APIListenAddress = ""
	require.Empty(t, m.Endpoints(conf))
}
