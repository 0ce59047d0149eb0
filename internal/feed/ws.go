package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"chart-trigger-bot-go/internal/logger"
	"chart-trigger-bot-go/internal/models"

	"github.com/gorilla/websocket"
)

// aggTradeEvent is the subset of the aggTrade stream payload the feed
// needs.
type aggTradeEvent struct {
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	TradeTime int64  `json:"T"`
}

// LiveTickStream turns a public aggTrade websocket stream into engine
// ticks. It is a price feed only; no account or order endpoints are ever
// touched.
type LiveTickStream struct {
	symbol    string
	wsBaseURL string
	conn      *websocket.Conn
	ticks     chan models.Tick
	stop      chan struct{}

	lastPrice float64
	lastTS    int64
}

// NewLiveTickStream returns an unstarted stream for the symbol.
func NewLiveTickStream(wsBaseURL, symbol string) *LiveTickStream {
	return &LiveTickStream{
		symbol:    symbol,
		wsBaseURL: wsBaseURL,
		ticks:     make(chan models.Tick, 256),
		stop:      make(chan struct{}),
	}
}

// Start dials the stream and begins emitting ticks.
func (s *LiveTickStream) Start() error {
	wsURL := fmt.Sprintf("%s/ws/%s@aggTrade", s.wsBaseURL, strings.ToLower(s.symbol))
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", wsURL, err)
	}
	s.conn = conn
	logger.S().Infof("websocket connected: %s", wsURL)

	go s.readLoop()
	return nil
}

// Ticks returns the channel of paired price samples. The channel is
// closed when the stream stops.
func (s *LiveTickStream) Ticks() <-chan models.Tick {
	return s.ticks
}

// Stop closes the connection and the tick channel.
func (s *LiveTickStream) Stop() {
	close(s.stop)
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *LiveTickStream) readLoop() {
	defer close(s.ticks)
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		_, message, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stop: // expected on Stop
			default:
				logger.S().Errorf("websocket read failed: %v", err)
			}
			return
		}

		var evt aggTradeEvent
		if err := json.Unmarshal(message, &evt); err != nil {
			logger.S().Warnf("skipping unparseable stream message: %v", err)
			continue
		}
		price, err := strconv.ParseFloat(evt.Price, 64)
		if err != nil || price <= 0 {
			continue
		}

		// The first trade only seeds the previous sample.
		if s.lastTS != 0 {
			s.ticks <- models.Tick{
				Symbol:        s.symbol,
				Timestamp:     evt.TradeTime,
				Price:         price,
				PrevTimestamp: s.lastTS,
				PrevPrice:     s.lastPrice,
			}
		}
		s.lastTS = evt.TradeTime
		s.lastPrice = price
	}
}
