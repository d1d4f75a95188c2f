package market

import (
	"strconv"
	"strings"
	"time"

	"trader/pkg/exception"

	"github.com/yanun0323/errors"
)

// MissingToken marks an absent quote value in a historical record.
const MissingToken = "None"

const recordTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Tick is one quote observation. A missing value is stored as -1.
type Tick struct {
	Time      time.Time
	BidSize   int64
	BidPrice  float64
	AskPrice  float64
	AskSize   int64
	PrevClose float64
}

// Date returns the UTC trading day of the tick, formatted as YYYY-MM-DD.
func (t Tick) Date() string {
	return t.Time.UTC().Format(time.DateOnly)
}

// Mid returns the mid price, or 0 when a side is missing.
func (t Tick) Mid() float64 {
	if !t.HasQuote() {
		return 0
	}
	return (t.BidPrice + t.AskPrice) / 2
}

// HasQuote reports whether both sides carry a positive price.
func (t Tick) HasQuote() bool {
	return t.BidPrice > 0 && t.AskPrice > 0
}

// Complete reports whether no size or previous close is missing.
func (t Tick) Complete() bool {
	return t.BidSize >= 0 && t.AskSize >= 0 && t.PrevClose >= 0
}

// ParseRecord parses one historical line:
//
//	timestamp bidSize bidPrice askPrice askSize previousClose
//
// A MissingToken value is stored as -1 instead of failing the parse, so
// State.Accept can reject the tick.
func ParseRecord(line string) (Tick, error) {
	fields := strings.Fields(line)
	if len(fields) != 6 {
		return Tick{}, errors.Wrapf(exception.ErrTickMalformed, "expected 6 fields, got %d", len(fields))
	}

	ts, err := time.Parse(time.RFC3339Nano, fields[0])
	if err != nil {
		return Tick{}, errors.Wrap(exception.ErrTickMalformed, err.Error()).With("timestamp", fields[0])
	}

	tick := Tick{Time: ts.UTC()}
	if tick.BidSize, err = parseSize(fields[1]); err != nil {
		return Tick{}, errors.Wrap(err, "bid size")
	}
	if tick.BidPrice, err = parsePrice(fields[2]); err != nil {
		return Tick{}, errors.Wrap(err, "bid price")
	}
	if tick.AskPrice, err = parsePrice(fields[3]); err != nil {
		return Tick{}, errors.Wrap(err, "ask price")
	}
	if tick.AskSize, err = parseSize(fields[4]); err != nil {
		return Tick{}, errors.Wrap(err, "ask size")
	}
	if tick.PrevClose, err = parsePrice(fields[5]); err != nil {
		return Tick{}, errors.Wrap(err, "previous close")
	}
	return tick, nil
}

// FormatRecord renders the tick in the historical line format, without newline.
func FormatRecord(t Tick) string {
	var sb strings.Builder
	sb.Grow(64)
	sb.WriteString(t.Time.UTC().Format(recordTimeLayout))
	sb.WriteByte(' ')
	sb.WriteString(formatSize(t.BidSize))
	sb.WriteByte(' ')
	sb.WriteString(formatPrice(t.BidPrice))
	sb.WriteByte(' ')
	sb.WriteString(formatPrice(t.AskPrice))
	sb.WriteByte(' ')
	sb.WriteString(formatSize(t.AskSize))
	sb.WriteByte(' ')
	sb.WriteString(formatPrice(t.PrevClose))
	return sb.String()
}

func parsePrice(s string) (float64, error) {
	if s == MissingToken {
		return -1, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrap(exception.ErrTickMalformed, err.Error())
	}
	return v, nil
}

func parseSize(s string) (int64, error) {
	if s == MissingToken {
		return -1, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrap(exception.ErrTickMalformed, err.Error())
	}
	return int64(v), nil
}

func formatSize(v int64) string {
	if v < 0 {
		return MissingToken
	}
	return strconv.FormatInt(v, 10)
}

func formatPrice(v float64) string {
	if v < 0 {
		return MissingToken
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
