package proc

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func samples(vals ...int16) []byte {
	buf := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(v))
	}
	return buf
}

func decode(buf []byte) []int16 {
	out := make([]int16, len(buf)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
	}
	return out
}

func TestScaleS16LE(t *testing.T) {
	tests := []struct {
		name string
		in   []int16
		gain float64
		want []int16
	}{
		{"unity", []int16{100, -100}, 1, []int16{100, -100}},
		{"half", []int16{100, -100, 3}, 0.5, []int16{50, -50, 2}},
		{"mute", []int16{12345, -12345}, 0, []int16{0, 0}},
		{"clips high", []int16{20000}, 2, []int16{math.MaxInt16}},
		{"clips low", []int16{-20000}, 2, []int16{math.MinInt16}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := samples(tt.in...)
			scaleS16LE(buf, tt.gain)
			assert.Equal(t, tt.want, decode(buf))
		})
	}
}

func TestScaleS16LE_OddLength(t *testing.T) {
	buf := append(samples(100), 0x7f)
	scaleS16LE(buf, 0.5)
	assert.Equal(t, []int16{50}, decode(buf[:2]))
	assert.Equal(t, byte(0x7f), buf[2])
}
