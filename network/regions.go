package network

// Default six-region model. Latencies are one-way link delays in virtual
// microseconds between region pairs; the diagonal carries intra-region delay.
var defaultRegions = []string{
	"NORTH_AMERICA",
	"EUROPE",
	"SOUTH_AMERICA",
	"ASIA_PACIFIC",
	"JAPAN",
	"AUSTRALIA",
}

var defaultLatency = [][]int64{
	{32000, 124000, 184000, 198000, 151000, 189000},
	{124000, 11000, 227000, 237000, 252000, 294000},
	{184000, 227000, 88000, 325000, 301000, 322000},
	{198000, 237000, 325000, 85000, 58000, 198000},
	{151000, 252000, 301000, 58000, 12000, 126000},
	{189000, 294000, 322000, 198000, 126000, 16000},
}

// DefaultRegions returns the names of the built-in region model.
func DefaultRegions() []string {
	out := make([]string, len(defaultRegions))
	copy(out, defaultRegions)
	return out
}

// DefaultLatency returns the built-in region latency table.
func DefaultLatency() [][]int64 {
	out := make([][]int64, len(defaultLatency))
	for i, row := range defaultLatency {
		out[i] = make([]int64, len(row))
		copy(out[i], row)
	}
	return out
}
