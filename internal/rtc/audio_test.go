package rtc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResample_Identity(t *testing.T) {
	in := []int16{1, 2, 3}
	assert.Equal(t, in, resample(in, 48000, 48000))
}

func TestResample_Doubles24kTo48k(t *testing.T) {
	in := []int16{0, 100, 200, 300}
	out := resample(in, 24000, 48000)
	require.Len(t, out, 8)
	// Even indexes land on the original samples.
	assert.Equal(t, int16(0), out[0])
	assert.Equal(t, int16(100), out[2])
	assert.Equal(t, int16(200), out[4])
	// Odd indexes interpolate between neighbors.
	assert.Equal(t, int16(50), out[1])
	assert.Equal(t, int16(150), out[3])
}

func TestResample_Empty(t *testing.T) {
	assert.Empty(t, resample(nil, 24000, 48000))
}

func TestSampleByteRoundTrip(t *testing.T) {
	in := []int16{-32768, -1, 0, 1, 32767}
	assert.Equal(t, in, bytesToSamples(samplesToBytes(in)))
}

func TestBytesToSamples_LittleEndian(t *testing.T) {
	assert.Equal(t, []int16{258}, bytesToSamples([]byte{0x02, 0x01}))
}
