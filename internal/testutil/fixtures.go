// Package testutil holds fixtures shared by the service and CLI tests.
package testutil

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Abuzaid-01/Float-Chat/internal/compiler"
	"github.com/Abuzaid-01/Float-Chat/internal/datasource"
)

// ThermoclineQuestion resolves to a thermocline analysis over the Bay of
// Bengal.
const ThermoclineQuestion = "Calculate thermocline in the Bay of Bengal"

// FixedNow is the instant fixture clocks start at.
var FixedNow = time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

// ProfileTable returns two floats' worth of profile levels. The
// temperature drops 7 degrees between 30 and 40 dbar.
func ProfileTable() *datasource.Table {
	return &datasource.Table{
		Columns: []string{"float_id", "pressure", "temperature", "salinity"},
		Rows: [][]any{
			{"2902746", 0.0, 28.0, 34.5},
			{"2902746", 10.0, 28.0, 34.6},
			{"2902746", 20.0, 27.5, 34.7},
			{"2902747", 30.0, 25.0, 34.8},
			{"2902747", 40.0, 20.0, 34.9},
			{"2902747", 50.0, 18.0, 35.0},
		},
	}
}

// NewClock returns a fake clock set to FixedNow.
func NewClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(FixedNow)
}

// DraftAlways returns a drafter that answers every request with sql.
func DraftAlways(sql string) compiler.Drafter {
	return compiler.DrafterFunc(func(context.Context, compiler.DraftRequest) (string, error) {
		return sql, nil
	})
}
