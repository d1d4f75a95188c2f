package bitmex

import (
	"context"

	"trader/internal/market"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

const (
	RealtimeURL        = "wss://ws.bitmex.com/realtime"
	TestnetRealtimeURL = "wss://ws.testnet.bitmex.com/realtime"
)

// QuoteFeed streams the top of book of one symbol.
type QuoteFeed struct {
	wss    *ws.WebSocket
	symbol string
}

func NewQuoteFeed(ctx context.Context, url, symbol string) *QuoteFeed {
	if url == "" {
		url = RealtimeURL
	}
	return &QuoteFeed{
		wss:    ws.New(ctx, url),
		symbol: symbol,
	}
}

func (f *QuoteFeed) Start(ctx context.Context) error {
	if err := f.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}
	return nil
}

func (f *QuoteFeed) Close() {
	f.wss.Close()
}

type subscribeRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

type subscribeResponse struct {
	Success   bool   `json:"success"`
	Subscribe string `json:"subscribe"`
	Error     string `json:"error"`
}

type tableMessage[T any] struct {
	Table  string `json:"table"`
	Action string `json:"action"`
	Data   []T    `json:"data"`
}

func (f *QuoteFeed) topic() string { return "quote:" + f.symbol }

// Subscribe asks for the quote table and waits for the acknowledgement.
func (f *QuoteFeed) Subscribe(ctx context.Context) error {
	topic := f.topic()
	if err := f.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			payload := subscribeRequest{Op: "subscribe", Args: []string{topic}}
			if err := client.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp subscribeResponse
			if err := m.Unmarshal(&resp); err != nil {
				return false, nil
			}
			if resp.Error != "" {
				return false, errors.Errorf("subscribe %s, err: %s", topic, resp.Error)
			}
			return resp.Success && resp.Subscribe == topic, nil
		},
	}, true); err != nil {
		return errors.Wrap(err, "send and wait")
	}
	return nil
}

// ObserveQuotes calls handler with every quote row of the symbol until ctx is
// done, the process shuts down or the returned function is called.
func (f *QuoteFeed) ObserveQuotes(ctx context.Context, handler func(q Quote)) (unsubscribe func()) {
	ch, cancel := f.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					logs.Info("quote feed closed")
					return
				}

				msg, ok := ws.ReadMessage[tableMessage[Quote]](m)
				if !ok || msg.Table != "quote" {
					continue
				}
				for _, q := range msg.Data {
					if q.Symbol == f.symbol {
						handler(q)
					}
				}
			}
		}
	}()

	return cancel
}

// ObserveTicks is ObserveQuotes converted to record ticks. prevClose is
// queried for every quote so the caller can roll it at the day boundary.
func (f *QuoteFeed) ObserveTicks(ctx context.Context, prevClose func() float64, handler func(market.Tick)) (unsubscribe func()) {
	return f.ObserveQuotes(ctx, func(q Quote) {
		handler(q.Tick(prevClose()))
	})
}
