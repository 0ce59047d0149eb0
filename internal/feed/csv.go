// Package feed supplies price ticks to the engine driver, either by
// replaying downloaded kline CSVs or by streaming live trades over
// websocket. The engine itself never reads from a feed; it is handed one
// tick at a time.
package feed

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"chart-trigger-bot-go/internal/models"
)

// Candle is one kline row of the replay input.
type Candle struct {
	OpenTime int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// LoadCandles reads a downloaded kline CSV (header row required) into
// memory.
func LoadCandles(path string) ([]Candle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening data file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV records: %w", err)
	}
	if len(records) <= 1 {
		return nil, fmt.Errorf("data file %s is empty or header-only", path)
	}

	candles := make([]Candle, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 6 {
			continue
		}
		openTime, errT := strconv.ParseInt(rec[0], 10, 64)
		open, errO := strconv.ParseFloat(rec[1], 64)
		high, errH := strconv.ParseFloat(rec[2], 64)
		low, errL := strconv.ParseFloat(rec[3], 64)
		closeP, errC := strconv.ParseFloat(rec[4], 64)
		volume, errV := strconv.ParseFloat(rec[5], 64)
		if errT != nil || errO != nil || errH != nil || errL != nil || errC != nil || errV != nil {
			continue // skip unparseable rows
		}
		candles = append(candles, Candle{
			OpenTime: openTime,
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closeP,
			Volume:   volume,
		})
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no parseable rows in %s", path)
	}
	return candles, nil
}

// TicksFromCandles pairs consecutive candle closes into engine ticks. The
// first candle seeds the previous sample, so n candles yield n-1 ticks.
func TicksFromCandles(symbol string, candles []Candle) []models.Tick {
	if len(candles) < 2 {
		return nil
	}
	ticks := make([]models.Tick, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		ticks = append(ticks, models.Tick{
			Symbol:        symbol,
			Timestamp:     candles[i].OpenTime,
			Price:         candles[i].Close,
			PrevTimestamp: candles[i-1].OpenTime,
			PrevPrice:     candles[i-1].Close,
		})
	}
	return ticks
}
