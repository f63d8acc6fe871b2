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

package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CurrencyParams specifies the protocol constants of one currency. They are
// fixed by the genesis block and never change afterwards; every component
// receives them by value.
type CurrencyParams struct {
	// C is the relative growth of the Universal Dividend per reevaluation
	// period: UD(t+1) = UD(t) * (1 + C).
	C float64

	// Dt is the number of seconds between two Universal Dividends.
	Dt uint64

	// UD0 is the amount of the first Universal Dividend, in base-0 units.
	UD0 int64

	// SigPeriod is the minimum number of seconds between two certifications
	// issued by the same pubkey (chainability cooldown).
	SigPeriod uint64

	// SigStock is the maximum number of live certifications per issuer.
	SigStock uint64

	// SigWindow is the number of seconds a pending certification stays
	// eligible for inclusion in a block.
	SigWindow uint64

	// SigValidity is the lifetime of a written certification, in seconds.
	SigValidity uint64

	// SigQty is the number of live received certifications required to
	// be (or stay) a member.
	SigQty uint64

	// IdtyWindow is the number of seconds a pending identity stays
	// eligible for inclusion in a block.
	IdtyWindow uint64

	// MsWindow is the number of seconds a pending membership stays
	// eligible for inclusion in a block.
	MsWindow uint64

	// XPercent is the fraction of sentries a member must reach within
	// StepMax steps (the distance rule quorum).
	XPercent float64

	// MsValidity is the lifetime of a membership, in seconds.
	MsValidity uint64

	// StepMax is the maximum path length considered by the distance rule.
	StepMax uint32

	// MedianTimeBlocks is the number of recent blocks whose times are
	// aggregated into the median time.
	MedianTimeBlocks uint64

	// AvgGenTime is the targeted average time between two blocks, in seconds.
	AvgGenTime uint64

	// DtDiffEval is the number of blocks between two difficulty
	// reevaluations.
	DtDiffEval uint64

	// PercentRot is the fraction of last block issuers excluded from the
	// personalized difficulty window.
	PercentRot float64

	// UDTime0 is the unix time of the first Universal Dividend.
	UDTime0 uint64

	// UDReevalTime0 is the unix time of the first UD reevaluation.
	UDReevalTime0 uint64

	// DtReeval is the number of seconds between two UD reevaluations.
	DtReeval uint64
}

// ErrBadParams is returned when a genesis Parameters line is malformed
var ErrBadParams = errors.New("config: bad currency parameters")

// currencyParamsFieldCount is the number of colon-separated fields in a
// genesis Parameters line.
const currencyParamsFieldCount = 20

// ParseCurrencyParams parses the colon-separated Parameters line of a
// genesis block:
//
//	c:dt:ud0:sigPeriod:sigStock:sigWindow:sigValidity:sigQty:idtyWindow:
//	msWindow:xpercent:msValidity:stepMax:medianTimeBlocks:avgGenTime:
//	dtDiffEval:percentRot:udTime0:udReevalTime0:dtReeval
func ParseCurrencyParams(line string) (CurrencyParams, error) {
	var p CurrencyParams
	fields := strings.Split(line, ":")
	if len(fields) != currencyParamsFieldCount {
		return p, fmt.Errorf("%w: expected %d fields, got %d", ErrBadParams, currencyParamsFieldCount, len(fields))
	}

	var err error
	parseF := func(s string) float64 {
		var v float64
		if err == nil {
			v, err = strconv.ParseFloat(s, 64)
		}
		return v
	}
	parseU := func(s string) uint64 {
		var v uint64
		if err == nil {
			v, err = strconv.ParseUint(s, 10, 64)
		}
		return v
	}
	parseI := func(s string) int64 {
		var v int64
		if err == nil {
			v, err = strconv.ParseInt(s, 10, 64)
		}
		return v
	}

	p.C = parseF(fields[0])
	p.Dt = parseU(fields[1])
	p.UD0 = parseI(fields[2])
	p.SigPeriod = parseU(fields[3])
	p.SigStock = parseU(fields[4])
	p.SigWindow = parseU(fields[5])
	p.SigValidity = parseU(fields[6])
	p.SigQty = parseU(fields[7])
	p.IdtyWindow = parseU(fields[8])
	p.MsWindow = parseU(fields[9])
	p.XPercent = parseF(fields[10])
	p.MsValidity = parseU(fields[11])
	p.StepMax = uint32(parseU(fields[12]))
	p.MedianTimeBlocks = parseU(fields[13])
	p.AvgGenTime = parseU(fields[14])
	p.DtDiffEval = parseU(fields[15])
	p.PercentRot = parseF(fields[16])
	p.UDTime0 = parseU(fields[17])
	p.UDReevalTime0 = parseU(fields[18])
	p.DtReeval = parseU(fields[19])
	if err != nil {
		return CurrencyParams{}, fmt.Errorf("%w: %v", ErrBadParams, err)
	}
	return p, nil
}

// ParamsLine emits the genesis Parameters line for these parameters
func (p CurrencyParams) ParamsLine() string {
	return fmt.Sprintf("%s:%d:%d:%d:%d:%d:%d:%d:%d:%d:%s:%d:%d:%d:%d:%d:%s:%d:%d:%d",
		formatFloat(p.C), p.Dt, p.UD0, p.SigPeriod, p.SigStock, p.SigWindow,
		p.SigValidity, p.SigQty, p.IdtyWindow, p.MsWindow, formatFloat(p.XPercent),
		p.MsValidity, p.StepMax, p.MedianTimeBlocks, p.AvgGenTime, p.DtDiffEval,
		formatFloat(p.PercentRot), p.UDTime0, p.UDReevalTime0, p.DtReeval)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// MaxTimeDrift is how far a block's local time may run ahead of the
// median time, derived from the targeted generation time.
func (p CurrencyParams) MaxTimeDrift() uint64 {
	return p.AvgGenTime * p.MedianTimeBlocks
}

// G1CurrencyParams returns the parameters of the Ğ1 production currency
func G1CurrencyParams() CurrencyParams {
	return CurrencyParams{
		C:                0.0488,
		Dt:               86400,
		UD0:              1000,
		SigPeriod:        432000,
		SigStock:         100,
		SigWindow:        5259600,
		SigValidity:      63115200,
		SigQty:           5,
		IdtyWindow:       5259600,
		MsWindow:         5259600,
		XPercent:         0.8,
		MsValidity:       31557600,
		StepMax:          5,
		MedianTimeBlocks: 24,
		AvgGenTime:       300,
		DtDiffEval:       12,
		PercentRot:       0.67,
		UDTime0:          1488970800,
		UDReevalTime0:    1490094000,
		DtReeval:         15778800,
	}
}

// G1TestCurrencyParams returns the parameters of the Ğ1-test currency
func G1TestCurrencyParams() CurrencyParams {
	p := G1CurrencyParams()
	p.AvgGenTime = 60
	p.SigPeriod = 43200
	p.MsValidity = 15778800
	return p
}

// DefaultCurrencyParams returns the built-in parameters for a known
// currency name, or false when the currency must supply a genesis
// Parameters line.
func DefaultCurrencyParams(currency string) (CurrencyParams, bool) {
	switch currency {
	case "g1":
		return G1CurrencyParams(), true
	case "g1-test":
		return G1TestCurrencyParams(), true
	default:
		return CurrencyParams{}, false
	}
}
