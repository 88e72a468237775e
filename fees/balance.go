package fees

import "math"

// The balance modifier prices liquidity by where the channel balance
// sits. Owning half the channel is neutral. A channel that is nearly
// all outbound gets cheap fees to attract traffic, a drained one gets
// expensive fees to discourage it. Balances are quantized into bins so
// fee observation cannot leak the exact balance.

// Ratio is the core exponential curve. ourPercentage runs from 0 (none
// of the channel is ours) to 1 (all ours). Ratio(0.5) is 1, Ratio(0)
// is sqrt(50) and Ratio(1) is 1/sqrt(50).
func Ratio(ourPercentage float64) float64 {
	log50 := math.Log(50.0)
	return math.Exp(log50 * (0.5 - ourPercentage))
}

// RatioForBin evaluates the curve at the center of a bin.
func RatioForBin(bin, numBins int) float64 {
	ourPercentage := float64(1+bin*2) / float64(numBins*2)
	return Ratio(ourPercentage)
}

// numBins scales bin granularity with channel size.
func numBins(channelSats, preferredBinSizeSats uint64) int {
	if preferredBinSizeSats == 0 {
		return 4
	}
	raw := int(math.Round(float64(channelSats) / float64(preferredBinSizeSats)))
	if raw < 4 {
		return 4
	}
	if raw > 50 {
		return 50
	}
	return raw
}

// BinnedRatio is the balance multiplier for a channel: ourRatio is
// outbound capacity over channel value, quantized into the channel's
// bin before evaluating the curve.
func BinnedRatio(ourRatio float64, channelSats, preferredBinSizeSats uint64) float64 {
	n := numBins(channelSats, preferredBinSizeSats)
	clamped := math.Max(0.0, math.Min(1.0, ourRatio))
	bin := int(math.Floor(clamped * float64(n)))
	if bin > n-1 {
		bin = n - 1
	}
	return RatioForBin(bin, n)
}
