package main

import (
	"strings"
	"testing"

	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCandlesCSV(t *testing.T) {
	in := "time,open,high,low,close,volume\n" +
		"1700000000000,100,101,99,100.5,10\n" +
		"1700000060000, 100.5, 102, 100, 101.5, 12\n"

	candles, err := readCandlesCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, domain.Candle{Time: 1700000060000, Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 12}, candles[1])
}

func TestReadCandlesCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"Short row", "1,2,3\n"},
		{"Bad number", "1700000000000,abc,1,1,1,1\n"},
		{"Out of order", "2,1,1,1,1,1\n1,1,1,1,1,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readCandlesCSV(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}
