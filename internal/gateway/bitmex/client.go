package bitmex

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trader/internal/gateway"
	"trader/internal/market"
	"trader/internal/order"
	"trader/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const (
	BaseURL        = "https://www.bitmex.com/api/v1"
	TestnetBaseURL = "https://testnet.bitmex.com/api/v1"

	defaultTimeout  = 7 * time.Second
	signatureExpiry = 5 * time.Second
)

// Config holds the connection settings of one symbol.
type Config struct {
	BaseURL       string
	APIKey        string
	APISecret     string
	Symbol        string
	OrderIDPrefix string
	PostOnly      bool
	Timeout       time.Duration
}

// Client is a REST gateway for one BitMEX symbol.
type Client struct {
	cfg      Config
	http     *resty.Client
	basePath string
	tickLog  int32
	now      func() time.Time
}

var _ gateway.Gateway = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Symbol == "" {
		return nil, errors.Wrap(exception.ErrConfigInvalid, "bitmex: symbol is empty")
	}
	if len(cfg.OrderIDPrefix) > 13 {
		return nil, errors.Wrap(exception.ErrConfigInvalid, "bitmex: order id prefix must be at most 13 characters")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrapf(exception.ErrConfigInvalid, "bitmex: base url %q", cfg.BaseURL)
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetTimeout(cfg.Timeout)

	return &Client{
		cfg:      cfg,
		http:     client,
		basePath: strings.TrimRight(u.Path, "/"),
		now:      time.Now,
	}, nil
}

// Authenticated reports whether API credentials are configured.
func (c *Client) Authenticated() bool {
	return c.cfg.APIKey != "" && c.cfg.APISecret != ""
}

// Signature is hex(HMAC-SHA256(secret, verb + path + expires + body)).
func Signature(secret, verb, path string, expires int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(verb))
	mac.Write([]byte(path))
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// do sends one request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any, out any) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var body []byte
	if payload != nil {
		b, err := sonic.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = b
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	if c.Authenticated() {
		expires := c.now().Add(signatureExpiry).Unix()
		headers["api-expires"] = strconv.FormatInt(expires, 10)
		headers["api-key"] = c.cfg.APIKey
		headers["api-signature"] = Signature(c.cfg.APISecret, method, c.basePath+path, expires, body)
	}

	req := c.http.R().SetContext(ctx).SetHeaders(headers)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(exception.ErrOverloaded, err.Error()).With("path", path)
	}

	if err := classify(resp.StatusCode(), resp.Body()); err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(resp.Body(), out); err != nil {
		return errors.Wrap(err, "decode response").With("path", path)
	}
	return nil
}

// classify maps an HTTP status and error body to the gateway errors.
func classify(status int, body []byte) error {
	if status < http.StatusBadRequest {
		return nil
	}

	var apiErr apiError
	_ = sonic.Unmarshal(body, &apiErr)
	msg := apiErr.Error.Message
	if msg == "" {
		msg = strconv.Itoa(status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Wrap(exception.ErrUnauthorized, msg)
	case status == http.StatusTooManyRequests:
		return errors.Wrap(exception.ErrRateLimited, msg)
	case status == http.StatusServiceUnavailable:
		return errors.Wrap(exception.ErrOverloaded, msg)
	case status == http.StatusBadRequest && strings.Contains(msg, "Invalid ordStatus"):
		return errors.Wrap(exception.ErrOrderClosed, msg)
	case status == http.StatusNotFound && strings.Contains(msg, "Not Found"):
		return errors.Wrap(exception.ErrOrderNotFound, msg)
	default:
		return errors.Wrap(exception.ErrUnknown, msg).With("status", status)
	}
}

func (c *Client) Instrument(ctx context.Context) (gateway.Instrument, error) {
	var rows []Instrument
	if err := c.do(ctx, http.MethodGet, "/instrument", url.Values{"symbol": {c.cfg.Symbol}}, nil, &rows); err != nil {
		return gateway.Instrument{}, err
	}
	if len(rows) == 0 {
		return gateway.Instrument{}, errors.Wrapf(exception.ErrMarketClosed, "instrument %s not listed", c.cfg.Symbol)
	}
	inst := rows[0].toGateway()
	c.tickLog = inst.TickLog
	return inst, nil
}

func (c *Client) Position(ctx context.Context) (gateway.Position, error) {
	filter, _ := sonic.MarshalString(map[string]string{"symbol": c.cfg.Symbol})
	var rows []Position
	if err := c.do(ctx, http.MethodGet, "/position", url.Values{"filter": {filter}}, nil, &rows); err != nil {
		return gateway.Position{}, err
	}
	for _, p := range rows {
		if p.Symbol == c.cfg.Symbol {
			return gateway.Position{CurrentQty: p.CurrentQty, AvgEntryPrice: num(p.AvgEntryPrice)}, nil
		}
	}
	return gateway.Position{}, nil
}

func (c *Client) Margin(ctx context.Context) (gateway.Margin, error) {
	var m Margin
	if err := c.do(ctx, http.MethodGet, "/user/margin", nil, nil, &m); err != nil {
		return gateway.Margin{}, err
	}
	return gateway.Margin{MarginBalance: float64(m.MarginBalance) / satoshi}, nil
}

func (c *Client) OpenOrders(ctx context.Context) ([]order.Order, error) {
	filter, _ := sonic.MarshalString(map[string]any{"open": true})
	query := url.Values{
		"symbol":  {c.cfg.Symbol},
		"filter":  {filter},
		"count":   {"500"},
		"reverse": {"false"},
	}
	var rows []Order
	if err := c.do(ctx, http.MethodGet, "/order", query, nil, &rows); err != nil {
		return nil, err
	}

	out := make([]order.Order, 0, len(rows))
	for _, o := range rows {
		// only orders placed by this bot
		if c.cfg.OrderIDPrefix != "" && !strings.HasPrefix(o.ClOrdID, c.cfg.OrderIDPrefix) {
			continue
		}
		out = append(out, o.toOrder())
	}
	return out, nil
}

func (c *Client) CreateOrders(ctx context.Context, orders []order.Order) ([]order.Order, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	reqs := make([]orderRequest, 0, len(orders))
	for _, o := range orders {
		r := orderRequest{
			ClOrdID:  o.ClOrdID,
			Symbol:   c.cfg.Symbol,
			Side:     o.Side.String(),
			OrdType:  o.Type.String(),
			OrderQty: o.Quantity,
		}
		if r.ClOrdID == "" {
			r.ClOrdID = c.clOrdID()
		}
		if o.Type != order.TypeMarket {
			r.OrdType = order.TypeLimit.String()
			r.Price = market.Round(o.Price, c.tickLog)
			if c.cfg.PostOnly {
				r.ExecInst = "ParticipateDoNotInitiate"
			}
		}
		reqs = append(reqs, r)
	}
	return c.bulk(ctx, http.MethodPost, reqs)
}

func (c *Client) AmendOrders(ctx context.Context, amends []order.Amend) ([]order.Order, error) {
	if len(amends) == 0 {
		return nil, nil
	}
	reqs := make([]orderRequest, 0, len(amends))
	for _, a := range amends {
		reqs = append(reqs, orderRequest{
			OrderID:   a.ID,
			Price:     market.Round(a.Price, c.tickLog),
			LeavesQty: a.LeavesQty,
		})
	}
	return c.bulk(ctx, http.MethodPut, reqs)
}

func (c *Client) bulk(ctx context.Context, method string, reqs []orderRequest) ([]order.Order, error) {
	var rows []Order
	if err := c.do(ctx, method, "/order/bulk", nil, map[string]any{"orders": reqs}, &rows); err != nil {
		return nil, err
	}
	out := make([]order.Order, 0, len(rows))
	for _, o := range rows {
		if o.OrdStatus == "Rejected" {
			return out, errors.Wrap(exception.ErrUnknown, "order rejected").With("clOrdID", o.ClOrdID).With("reason", o.Error)
		}
		out = append(out, o.toOrder())
	}
	return out, nil
}

func (c *Client) CancelOrders(ctx context.Context, orders []order.Order) ([]order.Order, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	var rows []Order
	if err := c.do(ctx, http.MethodDelete, "/order", nil, map[string]any{"orderID": ids}, &rows); err != nil {
		return nil, err
	}
	out := make([]order.Order, 0, len(rows))
	for _, o := range rows {
		if o.Error != "" {
			logs.Infof("cancel %s: %s", o.OrderID, o.Error)
		}
		out = append(out, o.toOrder())
	}
	return out, nil
}

func (c *Client) CancelAll(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/order/all", nil, map[string]string{"symbol": c.cfg.Symbol}, nil)
}

// clOrdID returns prefix + unpadded base64 of a random uuid.
func (c *Client) clOrdID() string {
	id := uuid.New()
	return c.cfg.OrderIDPrefix + base64.RawStdEncoding.EncodeToString(id[:])
}
