package media

// probeRates are tried in descending order when a device reports no
// default rate.
var probeRates = []int{48000, 44100, 32000, 16000, 8000}

// DeviceRate determines the best sample rate for one device: its reported
// default if any, else the highest supported probe rate, else the hard
// default. It never fails; a device that cannot actually open at the
// returned rate surfaces that error at open time.
func DeviceRate(p DeviceProvider, device int, input bool) int {
	if rate, ok := p.DefaultRate(device, input); ok && rate > 0 {
		return rate
	}
	for _, rate := range probeRates {
		if p.SupportsRate(device, input, rate) {
			return rate
		}
	}
	return DefaultSampleRate
}

// NegotiateRate picks the single rate used for both capture and playback:
// the minimum of the two devices' best rates. Mismatched hardware then
// runs at the rate both sides can keep up with.
func NegotiateRate(p DeviceProvider, inputDevice, outputDevice int) int {
	in := DeviceRate(p, inputDevice, true)
	out := DeviceRate(p, outputDevice, false)
	if out < in {
		return out
	}
	return in
}
