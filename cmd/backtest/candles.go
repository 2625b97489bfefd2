package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
)

// readCandlesCSV reads time,open,high,low,close,volume rows. Time is unix
// milliseconds. A header row is skipped.
func readCandlesCSV(r io.Reader) ([]domain.Candle, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var candles []domain.Candle
	for line := 1; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 6 {
			return nil, fmt.Errorf("line %d: want 6 columns, got %d", line, len(rec))
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "time") {
			continue
		}

		ts, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: time: %w", line, err)
		}
		var vals [5]float64
		for i := range vals {
			if vals[i], err = strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64); err != nil {
				return nil, fmt.Errorf("line %d: column %d: %w", line, i+2, err)
			}
		}
		if len(candles) > 0 && ts <= candles[len(candles)-1].Time {
			return nil, fmt.Errorf("line %d: candles must be in ascending time order", line)
		}
		candles = append(candles, domain.Candle{Time: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]})
	}
	return candles, nil
}

func loadCandlesCSV(path string) ([]domain.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readCandlesCSV(f)
}
