package journal

import (
	"context"
	"time"

	"trader/internal/backtest"
	"trader/internal/ledger"
	"trader/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"
)

// EquityRow is one persisted equity curve point.
type EquityRow struct {
	ID              uint   `gorm:"primaryKey"`
	RunID           string `gorm:"index;size:64"`
	Date            string `gorm:"size:10"`
	ClosePrice      float64
	TotalBenefitPct float64
	Position        int64
	MovingAverage   float64
	BaselinePct     float64
	CreatedAt       time.Time
}

func (EquityRow) TableName() string { return "equity_points" }

// FillRow is one persisted execution.
type FillRow struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     string `gorm:"index;size:64"`
	Time      time.Time
	Kind      string `gorm:"size:16"`
	Quantity  int64
	Price     float64
	CreatedAt time.Time
}

func (FillRow) TableName() string { return "fills" }

// Store appends equity points and fills of one run.
type Store struct {
	db    *gorm.DB
	runID string
}

func NewStore(db *gorm.DB, runID string) (*Store, error) {
	if db == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "journal db")
	}
	if runID == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "journal run id is empty")
	}
	return &Store{db: db, runID: runID}, nil
}

// Migrate creates or updates the journal tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&EquityRow{}, &FillRow{}); err != nil {
		return errors.Wrap(err, "migrate journal")
	}
	return nil
}

func equityRow(runID string, p ledger.Point) EquityRow {
	return EquityRow{
		RunID:           runID,
		Date:            p.Date,
		ClosePrice:      p.ClosePrice,
		TotalBenefitPct: p.TotalBenefitPct,
		Position:        p.Position,
		MovingAverage:   p.MovingAverage,
		BaselinePct:     p.BaselinePct,
	}
}

func (r EquityRow) point() ledger.Point {
	return ledger.Point{
		Date:            r.Date,
		ClosePrice:      r.ClosePrice,
		TotalBenefitPct: r.TotalBenefitPct,
		Position:        r.Position,
		MovingAverage:   r.MovingAverage,
		BaselinePct:     r.BaselinePct,
	}
}

func (s *Store) SaveEquity(ctx context.Context, points ...ledger.Point) error {
	if len(points) == 0 {
		return nil
	}
	rows := make([]EquityRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, equityRow(s.runID, p))
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return errors.Wrap(err, "save equity").With("run", s.runID)
	}
	return nil
}

func (s *Store) SaveFills(ctx context.Context, fills ...backtest.Fill) error {
	if len(fills) == 0 {
		return nil
	}
	rows := make([]FillRow, 0, len(fills))
	for _, f := range fills {
		rows = append(rows, FillRow{
			RunID:    s.runID,
			Time:     f.Time,
			Kind:     f.Kind.String(),
			Quantity: f.Quantity,
			Price:    f.Price,
		})
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return errors.Wrap(err, "save fills").With("run", s.runID)
	}
	return nil
}

// Equity returns the stored curve of the run, oldest first.
func (s *Store) Equity(ctx context.Context) ([]ledger.Point, error) {
	var rows []EquityRow
	if err := s.db.WithContext(ctx).Where("run_id = ?", s.runID).Order("id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load equity").With("run", s.runID)
	}
	points := make([]ledger.Point, 0, len(rows))
	for _, r := range rows {
		points = append(points, r.point())
	}
	return points, nil
}

// Sink returns a bus handler persisting every point. Failures are logged and
// never stop the consumer.
func (s *Store) Sink(ctx context.Context) func(ledger.Point) {
	return func(p ledger.Point) {
		if err := s.SaveEquity(ctx, p); err != nil {
			logs.Errorf("journal: %+v", err)
		}
	}
}
