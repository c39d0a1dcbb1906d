package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC)

func fixedParser() *Parser {
	return &Parser{Now: func() time.Time { return fixedNow }}
}

func TestParse_Literals(t *testing.T) {
	p := fixedParser()

	got, err := p.Parse("tomorrow")
	require.NoError(t, err)
	assert.Equal(t, int64(86400), got.Unix()-fixedNow.Unix())

	for _, in := range []string{"week", "+7d", "  WEEK "} {
		got, err := p.Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, 7*24*time.Hour, got.Sub(fixedNow), in)
	}
}

func TestParse_Offsets(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"1mo 15s", 30*24*time.Hour + 15*time.Second},
		{"1mo15s", 30*24*time.Hour + 15*time.Second},
		{"2d", 48 * time.Hour},
		{"1h30m", 90 * time.Minute},
		{"1d 2h 3m 4s", 26*time.Hour + 3*time.Minute + 4*time.Second},
		{"10 minutes", 10 * time.Minute},
		{"3 hours", 3 * time.Hour},
		{"2months", 60 * 24 * time.Hour},
		{"45s", 45 * time.Second},
		{"0d 5m", 5 * time.Minute},
	}
	p := fixedParser()
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := p.Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Sub(fixedNow))
		})
	}
}

func TestParse_1mo15sInSeconds(t *testing.T) {
	got, err := fixedParser().Parse("1mo 15s")
	require.NoError(t, err)
	assert.Equal(t, int64(30*24*3600+15), got.Unix()-fixedNow.Unix())
}

func TestParse_AbsoluteDates(t *testing.T) {
	p := fixedParser()

	got, err := p.Parse("24-12-2024_15:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.December, 24, 14, 30, 0, 0, time.UTC), got.UTC())

	// independent of the current time
	p.Now = func() time.Time { return fixedNow.Add(1000 * time.Hour) }
	again, err := p.Parse("24-12-2024_15:30")
	require.NoError(t, err)
	assert.True(t, got.Equal(again))

	summer, err := p.Parse("01-07-2025")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.July, 1, 7, 0, 0, 0, time.UTC), summer.UTC())
}

func TestParse_Invalid(t *testing.T) {
	p := fixedParser()
	for _, in := range []string{"", "   ", "0s", "0mo 0d", "soon", "32-13-2024", "5x", "99999999999999999999999s", "1000000d"} {
		t.Run(in, func(t *testing.T) {
			_, err := p.Parse(in)
			assert.ErrorIs(t, err, ErrInvalidTimeFormat)
		})
	}
}

func TestParse_ResultInSeasonalZone(t *testing.T) {
	got, err := fixedParser().Parse("1h")
	require.NoError(t, err)
	_, offset := got.Zone()
	assert.Equal(t, 2*3600, offset)

	winter := &Parser{Now: func() time.Time { return time.Date(2024, time.January, 5, 8, 0, 0, 0, time.UTC) }}
	got, err = winter.Parse("1h")
	require.NoError(t, err)
	_, offset = got.Zone()
	assert.Equal(t, 3600, offset)
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "2024-07-10 14:00:00", FormatTime(fixedNow))
	assert.Equal(t, "2024-01-01 01:00:00", FormatTime(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))
}
