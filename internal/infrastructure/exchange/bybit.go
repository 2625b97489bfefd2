package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	BybitBaseURL = "https://api.bybit.com"
	BybitWSURL   = "wss://stream.bybit.com/v5/public/linear"

	maxKlineLimit    = 1000
	maxBookDepth     = 500
	maxTradeLimit    = 1000
	topicsPerRequest = 10
	pingInterval     = 20 * time.Second
	bookEmitInterval = time.Second
	bookStreamDepth  = 50
)

var errNotConnected = errors.New("websocket not connected")

// BybitAdapter reads public V5 linear market data over REST and WebSocket.
type BybitAdapter struct {
	baseURL string
	wsURL   string
	client  *http.Client
	dialer  *websocket.Dialer
	logger  *zap.Logger

	wsConn  *websocket.Conn
	wsDone  chan struct{}
	writeMu sync.Mutex

	klineCallbacks []func(symbol string, candle domain.Candle, confirmed bool)
	tradeCallbacks []func(symbol string, side string, size float64, price float64)
	bookCallbacks  []func(book *domain.OrderBook)

	books    map[string]*localBook
	lastEmit map[string]time.Time
	timeNow  func() time.Time
	mu       sync.Mutex
}

var (
	_ domain.MarketData = (*BybitAdapter)(nil)
	_ domain.Stream     = (*BybitAdapter)(nil)
)

func NewBybitAdapter(baseURL, wsURL string, logger *zap.Logger) *BybitAdapter {
	if baseURL == "" {
		baseURL = BybitBaseURL
	}
	if wsURL == "" {
		wsURL = BybitWSURL
	}
	return &BybitAdapter{
		baseURL:  strings.TrimRight(baseURL, "/"),
		wsURL:    wsURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		dialer:   websocket.DefaultDialer,
		logger:   logger,
		books:    make(map[string]*localBook),
		lastEmit: make(map[string]time.Time),
		timeNow:  time.Now,
	}
}

// --- REST API ---

type apiResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

func (b *BybitAdapter) getPublic(ctx context.Context, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return err
	}
	if envelope.RetCode != 0 {
		return fmt.Errorf("bybit api error %d: %s", envelope.RetCode, envelope.RetMsg)
	}
	return json.Unmarshal(envelope.Result, out)
}

// GetCandles returns up to limit candles, oldest first.
func (b *BybitAdapter) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	return b.getCandlesBefore(ctx, symbol, interval, limit, 0)
}

func (b *BybitAdapter) getCandlesBefore(ctx context.Context, symbol, interval string, limit int, end int64) ([]domain.Candle, error) {
	if limit <= 0 || limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))
	if end > 0 {
		params.Set("end", strconv.FormatInt(end, 10))
	}

	var result struct {
		List [][]string `json:"list"`
	}
	if err := b.getPublic(ctx, "/v5/market/kline", params, &result); err != nil {
		return nil, fmt.Errorf("kline %s: %w", symbol, err)
	}

	candles := make([]domain.Candle, 0, len(result.List))
	for _, raw := range result.List {
		c, ok := parseKlineRow(raw)
		if !ok {
			continue
		}
		candles = append(candles, c)
	}

	// Bybit returns newest first
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// GetCandleHistory pages backwards until total candles are collected or the
// exchange runs out of history. The result is oldest first.
func (b *BybitAdapter) GetCandleHistory(ctx context.Context, symbol, interval string, total int) ([]domain.Candle, error) {
	var history []domain.Candle
	var end int64
	for len(history) < total {
		page, err := b.getCandlesBefore(ctx, symbol, interval, min(total-len(history), maxKlineLimit), end)
		if err != nil {
			return nil, err
		}
		if len(history) > 0 {
			// drop overlap with what we already have
			oldest := history[0].Time
			trimmed := page[:0]
			for _, c := range page {
				if c.Time < oldest {
					trimmed = append(trimmed, c)
				}
			}
			page = trimmed
		}
		if len(page) == 0 {
			break
		}
		history = append(page, history...)
		end = history[0].Time - 1
	}
	return history, nil
}

// parseKlineRow reads [startTime, open, high, low, close, volume, turnover].
func parseKlineRow(raw []string) (domain.Candle, bool) {
	if len(raw) < 6 {
		return domain.Candle{}, false
	}
	ts, err := strconv.ParseInt(raw[0], 10, 64)
	if err != nil {
		return domain.Candle{}, false
	}
	vals := make([]float64, 5)
	for i := range vals {
		v, err := strconv.ParseFloat(raw[i+1], 64)
		if err != nil {
			return domain.Candle{}, false
		}
		vals[i] = v
	}
	return domain.Candle{Time: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}, true
}

func (b *BybitAdapter) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]domain.PublicTrade, error) {
	if limit <= 0 || limit > maxTradeLimit {
		limit = maxTradeLimit
	}
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))

	var result struct {
		List []struct {
			Symbol string `json:"symbol"`
			Side   string `json:"side"`
			Size   string `json:"size"`
			Price  string `json:"price"`
			Time   string `json:"time"`
		} `json:"list"`
	}
	if err := b.getPublic(ctx, "/v5/market/recent-trade", params, &result); err != nil {
		return nil, fmt.Errorf("recent trades %s: %w", symbol, err)
	}

	trades := make([]domain.PublicTrade, 0, len(result.List))
	for _, t := range result.List {
		price, _ := strconv.ParseFloat(t.Price, 64)
		size, _ := strconv.ParseFloat(t.Size, 64)
		timeMs, _ := strconv.ParseInt(t.Time, 10, 64)

		trades = append(trades, domain.PublicTrade{
			Symbol: t.Symbol,
			Side:   t.Side,
			Size:   size,
			Price:  price,
			Time:   timeMs,
		})
	}
	return trades, nil
}

func (b *BybitAdapter) GetOrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
	if depth <= 0 || depth > maxBookDepth {
		depth = maxBookDepth
	}
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(depth))

	var result struct {
		S  string     `json:"s"`
		B  [][]string `json:"b"`
		A  [][]string `json:"a"`
		Ts int64      `json:"ts"`
	}
	if err := b.getPublic(ctx, "/v5/market/orderbook", params, &result); err != nil {
		return nil, fmt.Errorf("orderbook %s: %w", symbol, err)
	}

	return &domain.OrderBook{
		Symbol: result.S,
		Bids:   parseLevels(result.B),
		Asks:   parseLevels(result.A),
		Time:   result.Ts,
	}, nil
}

func parseLevels(raw [][]string) []domain.OrderBookEntry {
	out := make([]domain.OrderBookEntry, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			continue
		}
		price, err := strconv.ParseFloat(lvl[0], 64)
		if err != nil {
			continue
		}
		size, err := strconv.ParseFloat(lvl[1], 64)
		if err != nil {
			continue
		}
		out = append(out, domain.OrderBookEntry{Price: price, Size: size})
	}
	return out
}

// --- WebSocket ---

func (b *BybitAdapter) OnKline(callback func(symbol string, candle domain.Candle, confirmed bool)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.klineCallbacks = append(b.klineCallbacks, callback)
}

func (b *BybitAdapter) OnTradeUpdate(callback func(symbol string, side string, size float64, price float64)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tradeCallbacks = append(b.tradeCallbacks, callback)
}

func (b *BybitAdapter) OnOrderBook(callback func(book *domain.OrderBook)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bookCallbacks = append(b.bookCallbacks, callback)
}

// Subscribe connects on first use and subscribes to kline, trade and depth
// topics for every symbol.
func (b *BybitAdapter) Subscribe(symbols []string, interval string) error {
	if len(symbols) == 0 {
		return nil
	}
	if err := b.connect(); err != nil {
		return err
	}

	var topics []string
	for _, s := range symbols {
		topics = append(topics,
			"kline."+interval+"."+s,
			"publicTrade."+s,
			fmt.Sprintf("orderbook.%d.%s", bookStreamDepth, s),
		)
	}
	for start := 0; start < len(topics); start += topicsPerRequest {
		end := min(start+topicsPerRequest, len(topics))
		if err := b.writeJSON(map[string]interface{}{"op": "subscribe", "args": topics[start:end]}); err != nil {
			return err
		}
	}
	b.logger.Info("Subscribed to market streams", zap.Strings("symbols", symbols), zap.String("interval", interval))
	return nil
}

func (b *BybitAdapter) connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.wsConn != nil {
		return nil
	}

	c, _, err := b.dialer.Dial(b.wsURL, nil)
	if err != nil {
		return err
	}
	b.wsConn = c
	b.wsDone = make(chan struct{})

	go b.readLoop(c, b.wsDone)
	go b.pingLoop(b.wsDone)
	return nil
}

func (b *BybitAdapter) writeJSON(v interface{}) error {
	b.mu.Lock()
	conn := b.wsConn
	b.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// Close shuts the stream down. Callbacks stay registered.
func (b *BybitAdapter) Close() error {
	b.mu.Lock()
	conn := b.wsConn
	b.wsConn = nil
	b.mu.Unlock()
	if conn == nil {
		return nil
	}

	b.writeMu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	b.writeMu.Unlock()
	return conn.Close()
}

func (b *BybitAdapter) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			err := b.writeJSON(map[string]string{"op": "ping"})
			if errors.Is(err, errNotConnected) {
				return
			}
			if err != nil {
				b.logger.Warn("WS ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (b *BybitAdapter) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		close(done)
		conn.Close()
		b.mu.Lock()
		if b.wsConn == conn {
			b.wsConn = nil
		}
		b.mu.Unlock()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				b.logger.Warn("WS read error", zap.Error(err))
			}
			return
		}
		b.handleMessage(message)
	}
}

type wsEvent struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Ts    int64           `json:"ts"`
	Data  json.RawMessage `json:"data"`
	Op    string          `json:"op"`
	RetOK *bool           `json:"success"`
	Msg   string          `json:"ret_msg"`
}

type wsKline struct {
	Start   int64  `json:"start"`
	Open    string `json:"open"`
	High    string `json:"high"`
	Low     string `json:"low"`
	Close   string `json:"close"`
	Volume  string `json:"volume"`
	Confirm bool   `json:"confirm"`
}

type wsTrade struct {
	Time   int64  `json:"T"`
	Symbol string `json:"s"`
	Side   string `json:"S"`
	Size   string `json:"v"`
	Price  string `json:"p"`
}

type wsBook struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
}

func (b *BybitAdapter) handleMessage(message []byte) {
	var event wsEvent
	if err := json.Unmarshal(message, &event); err != nil {
		b.logger.Warn("WS unmarshal error", zap.Error(err))
		return
	}

	if event.Topic == "" {
		if event.Op == "subscribe" && event.RetOK != nil && !*event.RetOK {
			b.logger.Error("WS subscribe rejected", zap.String("msg", event.Msg))
		}
		return
	}

	switch {
	case strings.HasPrefix(event.Topic, "kline."):
		b.handleKline(event)
	case strings.HasPrefix(event.Topic, "publicTrade."):
		b.handleTrades(event)
	case strings.HasPrefix(event.Topic, "orderbook."):
		b.handleBook(event)
	}
}

func (b *BybitAdapter) handleKline(event wsEvent) {
	// kline.<interval>.<symbol>
	parts := strings.SplitN(event.Topic, ".", 3)
	if len(parts) != 3 {
		return
	}
	symbol := parts[2]

	var klines []wsKline
	if err := json.Unmarshal(event.Data, &klines); err != nil {
		b.logger.Warn("WS kline decode error", zap.Error(err))
		return
	}

	b.mu.Lock()
	callbacks := make([]func(string, domain.Candle, bool), len(b.klineCallbacks))
	copy(callbacks, b.klineCallbacks)
	b.mu.Unlock()

	for _, k := range klines {
		c, ok := parseKlineRow([]string{strconv.FormatInt(k.Start, 10), k.Open, k.High, k.Low, k.Close, k.Volume})
		if !ok {
			continue
		}
		for _, cb := range callbacks {
			cb(symbol, c, k.Confirm)
		}
	}
}

func (b *BybitAdapter) handleTrades(event wsEvent) {
	symbol := strings.TrimPrefix(event.Topic, "publicTrade.")

	var trades []wsTrade
	if err := json.Unmarshal(event.Data, &trades); err != nil {
		b.logger.Warn("WS trade decode error", zap.Error(err))
		return
	}

	b.mu.Lock()
	callbacks := make([]func(string, string, float64, float64), len(b.tradeCallbacks))
	copy(callbacks, b.tradeCallbacks)
	b.mu.Unlock()

	for _, t := range trades {
		size, _ := strconv.ParseFloat(t.Size, 64)
		price, _ := strconv.ParseFloat(t.Price, 64)
		for _, cb := range callbacks {
			cb(symbol, t.Side, size, price)
		}
	}
}

func (b *BybitAdapter) handleBook(event wsEvent) {
	var data wsBook
	if err := json.Unmarshal(event.Data, &data); err != nil {
		b.logger.Warn("WS orderbook decode error", zap.Error(err))
		return
	}

	b.mu.Lock()
	book, ok := b.books[data.Symbol]
	if event.Type == "snapshot" || !ok {
		book = newLocalBook()
		b.books[data.Symbol] = book
	}
	book.apply(parseLevels(data.Bids), parseLevels(data.Asks))

	now := b.timeNow()
	if now.Sub(b.lastEmit[data.Symbol]) < bookEmitInterval {
		b.mu.Unlock()
		return
	}
	b.lastEmit[data.Symbol] = now
	snapshot := book.snapshot(data.Symbol, event.Ts)
	callbacks := make([]func(*domain.OrderBook), len(b.bookCallbacks))
	copy(callbacks, b.bookCallbacks)
	b.mu.Unlock()

	for _, cb := range callbacks {
		cb(snapshot)
	}
}

// localBook applies snapshot and delta levels. A zero size removes the level.
type localBook struct {
	bids map[float64]float64
	asks map[float64]float64
}

func newLocalBook() *localBook {
	return &localBook{bids: make(map[float64]float64), asks: make(map[float64]float64)}
}

func (l *localBook) apply(bids, asks []domain.OrderBookEntry) {
	for _, e := range bids {
		setLevel(l.bids, e)
	}
	for _, e := range asks {
		setLevel(l.asks, e)
	}
}

func setLevel(side map[float64]float64, e domain.OrderBookEntry) {
	if e.Size == 0 {
		delete(side, e.Price)
		return
	}
	side[e.Price] = e.Size
}

// snapshot returns bids best-first (descending) and asks best-first (ascending).
func (l *localBook) snapshot(symbol string, ts int64) *domain.OrderBook {
	ob := &domain.OrderBook{
		Symbol: symbol,
		Bids:   make([]domain.OrderBookEntry, 0, len(l.bids)),
		Asks:   make([]domain.OrderBookEntry, 0, len(l.asks)),
		Time:   ts,
	}
	for p, s := range l.bids {
		ob.Bids = append(ob.Bids, domain.OrderBookEntry{Price: p, Size: s})
	}
	for p, s := range l.asks {
		ob.Asks = append(ob.Asks, domain.OrderBookEntry{Price: p, Size: s})
	}
	sort.Slice(ob.Bids, func(i, j int) bool { return ob.Bids[i].Price > ob.Bids[j].Price })
	sort.Slice(ob.Asks, func(i, j int) bool { return ob.Asks[i].Price < ob.Asks[j].Price })
	return ob
}
