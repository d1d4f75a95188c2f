package recorder

import (
	"bufio"
	"io"
	"strings"

	"trader/internal/market"

	"github.com/yanun0323/errors"
)

const maxLineSize = 1 << 20

// Reader decodes record lines sequentially. Blank lines and lines starting
// with '#' are skipped.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	return &Reader{sc: sc}
}

// Next returns the next tick, or io.EOF when the input is exhausted.
func (r *Reader) Next() (market.Tick, error) {
	for r.sc.Scan() {
		r.line++
		text := strings.TrimSpace(r.sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		t, err := market.ParseRecord(text)
		if err != nil {
			return market.Tick{}, errors.Wrapf(err, "line %d", r.line)
		}
		return t, nil
	}
	if err := r.sc.Err(); err != nil {
		return market.Tick{}, errors.Wrapf(err, "line %d", r.line)
	}
	return market.Tick{}, io.EOF
}
