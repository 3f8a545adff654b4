package binance

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/recws-org/recws"
)

const (
	SpotStreamEndpoint    = "wss://stream.binance.com:9443/stream"
	FuturesStreamEndpoint = "wss://fstream.binance.com/stream"

	pingDelay          = time.Minute * 9
	handshakeTimeout   = 5 * time.Second
	notConnectedPause  = 100 * time.Millisecond
	connectPollPeriod  = 50 * time.Millisecond
	messageBufferSize  = 1024
	reconnectMinPeriod = 2 * time.Second
	reconnectMaxPeriod = 30 * time.Second
)

type Message[T any] struct {
	Stream string `json:"stream"`
	Data   T      `json:"data"`
}

type WebSocketRequestModel struct {
	ReqId  int      `json:"id"`
	Params []string `json:"params"`
	Method string   `json:"method"`
}

// BinanceStreamClient is one combined-stream connection. It reconnects on its
// own and re-sends SUBSCRIBE for every registered stream after each dial.
type BinanceStreamClient struct {
	endpoint string
	conn     *recws.RecConn
	streams  []string
	out      chan []byte
	mu       sync.Mutex
	writeMu  sync.Mutex
}

func NewBinanceStreamClient(endpoint string) *BinanceStreamClient {
	c := &BinanceStreamClient{
		endpoint: endpoint,
		out:      make(chan []byte, messageBufferSize),
	}

	c.conn = &recws.RecConn{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		KeepAliveTimeout: pingDelay,
		RecIntvlMin:      reconnectMinPeriod,
		RecIntvlMax:      reconnectMaxPeriod,
		NonVerbose:       true,
		SubscribeHandler: c.resubscribe,
	}

	return c
}

// Connect dials the endpoint and waits until the first connection is up.
func (c *BinanceStreamClient) Connect(ctx context.Context) error {
	logger.WithField("endpoint", c.endpoint).Info("connecting to stream")
	c.conn.Dial(c.endpoint, nil)

	ticker := time.NewTicker(connectPollPeriod)
	defer ticker.Stop()

	for !c.conn.IsConnected() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return nil
}

// Subscribe registers streams such as "btcusdt@depth". They are kept across
// reconnects.
func (c *BinanceStreamClient) Subscribe(streams ...string) error {
	c.mu.Lock()
	c.streams = append(c.streams, streams...)
	c.mu.Unlock()

	if !c.conn.IsConnected() {
		return nil
	}

	logger.WithField("streams", streams).Info("subscribing")
	return c.writeRequest("SUBSCRIBE", streams)
}

func (c *BinanceStreamClient) Unsubscribe(streams ...string) error {
	c.mu.Lock()
	kept := c.streams[:0]
	for _, s := range c.streams {
		if !contains(streams, s) {
			kept = append(kept, s)
		}
	}
	c.streams = kept
	c.mu.Unlock()

	logger.WithField("streams", streams).Info("unsubscribing")
	if !c.conn.IsConnected() {
		return nil
	}

	return c.writeRequest("UNSUBSCRIBE", streams)
}

func (c *BinanceStreamClient) Streams() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.streams...)
}

// Messages carries raw frames until Run returns.
func (c *BinanceStreamClient) Messages() <-chan []byte {
	return c.out
}

// Run reads frames until ctx is cancelled.
func (c *BinanceStreamClient) Run(ctx context.Context) error {
	defer close(c.out)

	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, recws.ErrNotConnected) {
				time.Sleep(notConnectedPause)
				continue
			}
			logger.WithError(err).Warn("error while reading from connection")
			continue
		}

		select {
		case c.out <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *BinanceStreamClient) Close() {
	c.conn.Close()
}

func (c *BinanceStreamClient) resubscribe() error {
	streams := c.Streams()
	if len(streams) == 0 {
		return nil
	}

	logger.WithField("streams", streams).Info("connected, sending subscribe")
	if err := c.writeRequest("SUBSCRIBE", streams); err != nil {
		// recws aborts the process when this handler fails; the read loop
		// sees the broken connection and reconnects instead.
		logger.WithError(err).Error("failed to send subscribe")
	}

	return nil
}

// gorilla connections allow a single concurrent writer.
func (c *BinanceStreamClient) writeRequest(method string, streams []string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.conn.WriteJSON(WebSocketRequestModel{
		Method: method,
		ReqId:  getRandomReqID(),
		Params: streams,
	})
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}

	return false
}

func getRandomReqID() int {
	min := 10000
	max := 9999999
	return min + rand.Intn(max-min)
}
