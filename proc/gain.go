package proc

import (
	"encoding/binary"
	"math"
)

// scaleS16LE multiplies interleaved signed 16-bit little-endian samples by
// gain in place, saturating at the sample limits.
func scaleS16LE(buf []byte, gain float64) {
	if gain == 1 {
		return
	}
	for i := 0; i+1 < len(buf); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(buf[i:])))
		v := math.Round(s * gain)
		v = math.Max(math.MinInt16, math.Min(math.MaxInt16, v))
		binary.LittleEndian.PutUint16(buf[i:], uint16(int16(v)))
	}
}
