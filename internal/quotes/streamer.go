package quotes

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/execore/internal/money"
)

// reconnectDelay mirrors ws_client.go fixed reconnect sleep.
const reconnectDelay = 5 * time.Second

// wireMessage is the feed's JSON quote message shape.
type wireMessage struct {
	Type     string  `json:"type"`
	Symbol   string  `json:"symbol"`
	Bid      string  `json:"bid"`
	Ask      string  `json:"ask"`
	BidSize  string  `json:"bid_size"`
	AskSize  string  `json:"ask_size"`
	IsOption bool    `json:"is_option"`
	TS       float64 `json:"ts"`
}

// Streamer is a gorilla/websocket QuoteProvider, generalized from
// internal/polymarket/ws_client.go's connect, subscribe by symbol,
// reconnect-with-a-fixed-delay idiom.
type Streamer struct {
	url string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	stocks    map[money.Symbol]bool
	options   map[money.Symbol]bool
	updates   chan QuoteUpdate
}

// NewStreamer constructs a disconnected Streamer for the given feed URL.
func NewStreamer(url string) *Streamer {
	return &Streamer{
		url:     url,
		stocks:  make(map[money.Symbol]bool),
		options: make(map[money.Symbol]bool),
		updates: make(chan QuoteUpdate, 256),
	}
}

func (s *Streamer) QuoteUpdates() <-chan QuoteUpdate { return s.updates }

func (s *Streamer) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Run dials the feed and reconnects on disconnect until ctx is cancelled,
// mirroring handleDisconnect loop.
func (s *Streamer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.connect(ctx); err != nil {
			log.Warn().Err(err).Str("url", s.url).Msg("quote stream connect failed, retrying")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *Streamer) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	log.Info().Str("url", s.url).Msg("quote stream connected")

	s.resubscribeAll()
	s.readMessages(ctx)

	s.mu.Lock()
	s.connected = false
	s.conn = nil
	s.mu.Unlock()
	log.Warn().Str("url", s.url).Msg("quote stream disconnected")
	return nil
}

func (s *Streamer) resubscribeAll() {
	s.mu.Lock()
	stocks := keysOf(s.stocks)
	options := keysOf(s.options)
	s.mu.Unlock()
	if len(stocks) > 0 {
		_ = s.sendSubscribe(stocks, false)
	}
	if len(options) > 0 {
		_ = s.sendSubscribe(options, true)
	}
}

func keysOf(m map[money.Symbol]bool) []money.Symbol {
	out := make([]money.Symbol, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func (s *Streamer) readMessages(ctx context.Context) {
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(raw)
	}
}

func (s *Streamer) handleMessage(raw []byte) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn().Err(err).Msg("quote stream: malformed message")
		return
	}
	if msg.Type != "quote" {
		return
	}

	bid, _ := decimal.NewFromString(msg.Bid)
	ask, _ := decimal.NewFromString(msg.Ask)
	bidSize, _ := decimal.NewFromString(msg.BidSize)
	askSize, _ := decimal.NewFromString(msg.AskSize)

	update := QuoteUpdate{
		Symbol:    money.Symbol(msg.Symbol),
		Bid:       bid,
		Ask:       ask,
		BidSize:   bidSize,
		AskSize:   askSize,
		IsOption:  msg.IsOption,
		Timestamp: time.UnixMilli(int64(msg.TS)),
	}

	select {
	case s.updates <- update:
	default:
		log.Warn().Str("symbol", msg.Symbol).Msg("quote stream: update dropped, channel full")
	}
}

type subscribeFrame struct {
	Action   string   `json:"action"`
	Symbols  []string `json:"symbols"`
	IsOption bool     `json:"is_option"`
}

func (s *Streamer) sendSubscribe(symbols []money.Symbol, isOption bool) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	frame := subscribeFrame{Action: "subscribe", IsOption: isOption}
	for _, sym := range symbols {
		frame.Symbols = append(frame.Symbols, string(sym))
	}
	return conn.WriteJSON(frame)
}

func (s *Streamer) SubscribeStockQuotes(symbols []money.Symbol) error {
	s.mu.Lock()
	for _, sym := range symbols {
		s.stocks[sym] = true
	}
	s.mu.Unlock()
	return s.sendSubscribe(symbols, false)
}

func (s *Streamer) UnsubscribeStockQuotes(symbols []money.Symbol) error {
	s.mu.Lock()
	for _, sym := range symbols {
		delete(s.stocks, sym)
	}
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	frame := subscribeFrame{Action: "unsubscribe"}
	for _, sym := range symbols {
		frame.Symbols = append(frame.Symbols, string(sym))
	}
	return conn.WriteJSON(frame)
}

func (s *Streamer) SubscribeOptionsQuotes(symbols []money.Symbol) error {
	s.mu.Lock()
	for _, sym := range symbols {
		s.options[sym] = true
	}
	s.mu.Unlock()
	return s.sendSubscribe(symbols, true)
}

func (s *Streamer) UnsubscribeOptionsQuotes(symbols []money.Symbol) error {
	s.mu.Lock()
	for _, sym := range symbols {
		delete(s.options, sym)
	}
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	frame := subscribeFrame{Action: "unsubscribe", IsOption: true}
	for _, sym := range symbols {
		frame.Symbols = append(frame.Symbols, string(sym))
	}
	return conn.WriteJSON(frame)
}

// Close tears down the current connection, if any.
func (s *Streamer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		s.connected = false
		return err
	}
	return nil
}
