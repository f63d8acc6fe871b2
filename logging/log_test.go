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

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// Since most of the functions are pure wrappers, we don't test them and trust
// the logrus testing coverage.

func isJSON(s string) bool {
	var js map[string]interface{}
	return json.Unmarshal([]byte(s), &js) == nil
}

func TestFileOutputNewLogger(t *testing.T) {
	a := require.New(t)

	var bufNewLogger bytes.Buffer

	nl := NewLogger()
	nl.SetLevel(Info)
	nl.SetOutput(&bufNewLogger)

	nl.Info("Should show up in New logger but not in BaseLogger")

	a.Contains(bufNewLogger.String(), "Should show up in New logger but not in BaseLogger")
}

func TestSetLevelNewLogger(t *testing.T) {
	a := require.New(t)

	var bufNewLogger bytes.Buffer

	nl := NewLogger()
	nl.SetOutput(&bufNewLogger)
	nl.SetLevel(Error)

	nl.Info("this should be filtered")
	nl.Error("this should pass")

	a.NotContains(bufNewLogger.String(), "this should be filtered")
	a.Contains(bufNewLogger.String(), "this should pass")
	a.True(nl.IsLevelEnabled(Error))
	a.False(nl.IsLevelEnabled(Debug))
}

func TestWithFieldsNewLogger(t *testing.T) {
	a := require.New(t)

	var bufNewLogger bytes.Buffer

	nl := NewLogger()
	nl.SetLevel(Info)
	nl.SetOutput(&bufNewLogger)

	nl.WithFields(Fields{"currency": "g1", "block": 42}).Info("applied")

	out := bufNewLogger.String()
	a.Contains(out, "g1")
	a.Contains(out, "42")
	a.Contains(out, "applied")
}

func TestSetJSONFormatter(t *testing.T) {
	a := require.New(t)

	var bufNewLogger bytes.Buffer

	nl := NewLogger()
	nl.SetLevel(Info)
	nl.SetOutput(&bufNewLogger)
	nl.SetJSONFormatter()

	nl.Info("json line")

	line := bufNewLogger.String()
	a.True(isJSON(line), "expected JSON output, got %s", line)
}
