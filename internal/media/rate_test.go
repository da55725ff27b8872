package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegotiateRatePicksMinimum(t *testing.T) {
	p := NewLoopbackProvider()
	p.SetDefaultRate(1, 48000) // input device
	p.SetDefaultRate(2, 44100) // output device

	assert.Equal(t, 44100, NegotiateRate(p, 1, 2))
}

func TestNegotiateRateEqualRates(t *testing.T) {
	p := NewLoopbackProvider()
	p.SetDefaultRate(1, 48000)
	p.SetDefaultRate(2, 48000)

	assert.Equal(t, 48000, NegotiateRate(p, 1, 2))
}

func TestDeviceRatePrefersReportedDefault(t *testing.T) {
	p := NewLoopbackProvider()
	p.SetDefaultRate(3, 22050)

	assert.Equal(t, 22050, DeviceRate(p, 3, true))
}

func TestDeviceRateProbesDescendingList(t *testing.T) {
	p := NewLoopbackProvider()
	// No default reported, only one of the probe rates opens.
	p.SetSupportedRates(3, 16000)

	assert.Equal(t, 16000, DeviceRate(p, 3, false))
}

func TestDeviceRateFallsBackToHardDefault(t *testing.T) {
	p := NewLoopbackProvider()
	p.SetSupportedRates(3) // nothing opens

	assert.Equal(t, DefaultSampleRate, DeviceRate(p, 3, true))
}

func TestDeviceRateProbePrefersHigherRate(t *testing.T) {
	p := NewLoopbackProvider()
	p.SetSupportedRates(3, 8000, 44100)

	assert.Equal(t, 44100, DeviceRate(p, 3, true))
}
