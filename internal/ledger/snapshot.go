package ledger

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

// Snapshot captures the ledger so a live run can resume after a restart.
type Snapshot struct {
	Timestamp   int64   `json:"timestamp"`
	Quantity    int64   `json:"quantity"`
	AvgEntry    float64 `json:"avgEntry"`
	Realized    float64 `json:"realized"`
	InitPrice   float64 `json:"initPrice"`
	LastPrice   float64 `json:"lastPrice"`
	RealizedPct float64 `json:"realizedPct"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
}

// Snapshot builds a snapshot of the current ledger.
func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:   time.Now().UTC().UnixNano(),
		Quantity:    l.pos.Quantity,
		AvgEntry:    l.pos.AvgEntry,
		Realized:    l.pos.Realized,
		InitPrice:   l.initPrice,
		LastPrice:   l.lastPrice,
		RealizedPct: l.realizedPct,
		Wins:        l.wins,
		Losses:      l.losses,
	}
}

// Restore replaces the ledger state with snap.
func (l *Ledger) Restore(snap Snapshot) {
	l.pos = Position{
		Quantity: snap.Quantity,
		AvgEntry: snap.AvgEntry,
		Realized: snap.Realized,
	}
	l.initPrice = snap.InitPrice
	l.lastPrice = snap.LastPrice
	l.realizedPct = snap.RealizedPct
	l.wins = snap.Wins
	l.losses = snap.Losses
	l.revalue()
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := sonic.Marshal(snapshot)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, errors.Wrapf(err, "decode ledger snapshot %s", path)
	}
	return snap, nil
}
