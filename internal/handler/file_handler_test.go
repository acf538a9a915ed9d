package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteRange(t *testing.T) {
	const size = 1000

	cases := []struct {
		name   string
		header string
		start  int64
		end    int64
		ok     bool
	}{
		{"full range", "bytes=0-499", 0, 499, true},
		{"open end", "bytes=500-", 500, 999, true},
		{"suffix", "bytes=-200", 800, 999, true},
		{"suffix longer than file", "bytes=-5000", 0, 999, true},
		{"single byte", "bytes=0-0", 0, 0, true},
		{"end past size", "bytes=0-5000", 0, 0, false},
		{"start after end", "bytes=500-100", 0, 0, false},
		{"no prefix", "0-499", 0, 0, false},
		{"multiple ranges", "bytes=0-100,200-300", 0, 0, false},
		{"garbage", "bytes=abc-def", 0, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end, err := parseByteRange(tc.header, size)
			if !tc.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.start, start)
			assert.Equal(t, tc.end, end)
		})
	}
}
