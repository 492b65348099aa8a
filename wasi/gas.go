package wasi

import (
	"github.com/govm-net/wasmlib/errors"
	"github.com/govm-net/wasmlib/types"
)

// base cost of each host function, data transfers add one unit per started 32 bytes
var hostCallCost = map[string]int64{
	types.FuncHostGetKeyID:    1,
	types.FuncHostGetObjectID: 1,
	types.FuncHostGetBytes:    2,
	types.FuncHostSetBytes:    5,
}

// gasMeter charges host calls against the budget of one invocation.
// It is only touched while the runner lock is held.
type gasMeter struct {
	limit int64
	used  int64
}

func (g *gasMeter) reset() {
	g.used = 0
}

// charge consumes the cost of host function fn moving size bytes.
// Running out of gas aborts the guest.
func (g *gasMeter) charge(fn string, size int32) {
	cost := hostCallCost[fn]
	if size > 0 {
		cost += (int64(size) + 31) / 32
	}
	g.used += cost
	if g.limit > 0 && g.used > g.limit {
		panic(errors.New(errors.PhaseHost, errors.KindOutOfGas).
			Path(fn).
			Detail("out of gas: limit=%d, used=%d", g.limit, g.used).Build())
	}
}
