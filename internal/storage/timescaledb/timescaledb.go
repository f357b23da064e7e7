// Package timescaledb stores pixel results in Postgres/TimescaleDB: one row
// per pixel and run in season_pixels and one row per pixel and hydrological
// year in the season_annual hypertable.
package timescaledb

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgtype"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chrissnell/rainseason/internal/database"
	"github.com/chrissnell/rainseason/internal/log"
	"github.com/chrissnell/rainseason/internal/season"
	"github.com/chrissnell/rainseason/internal/storage"
	"github.com/chrissnell/rainseason/internal/types"
)

// Storage holds the configuration for a TimescaleDB storage backend
type Storage struct {
	TimescaleDBConn *gorm.DB
}

// PixelRecord is the long-term result of one pixel in one run. The complete
// result, annual rows included, is kept in Data.
type PixelRecord struct {
	RunID            string  `gorm:"primaryKey;type:text"`
	Pixel            string  `gorm:"primaryKey;type:text"`
	Row              int     `gorm:"not null"`
	Col              int     `gorm:"not null"`
	Lon              float64 `gorm:"not null"`
	Lat              float64 `gorm:"not null"`
	Status           string  `gorm:"type:text;index;not null"`
	InStudyArea      bool    `gorm:"not null"`
	Masked           bool    `gorm:"not null"`
	Regime           int     `gorm:"not null"`
	SeasonalityRatio *float64
	HYearStart       *int
	Onset1           *int `gorm:"column:onset1"`
	Cessation1       *int `gorm:"column:cessation1"`
	Onset2           *int `gorm:"column:onset2"`
	Cessation2       *int `gorm:"column:cessation2"`
	MeanLength       *float64
	LengthSD         *float64 `gorm:"column:length_sd"`
	ValidYears       int
	TotalYears       int
	MAP              *float64     `gorm:"column:map"`
	ComputedAt       time.Time    `gorm:"index"`
	Data             pgtype.JSONB `gorm:"type:jsonb;not null"`
}

func (PixelRecord) TableName() string {
	return "season_pixels"
}

// AnnualRecord is one hydrological year of one pixel
type AnnualRecord struct {
	Time       time.Time `gorm:"primaryKey;type:timestamptz"`
	RunID      string    `gorm:"primaryKey;type:text"`
	Pixel      string    `gorm:"primaryKey;type:text"`
	Year       int       `gorm:"not null"`
	Onset1     *int      `gorm:"column:onset_hday1"`
	Cessation1 *int      `gorm:"column:cessation_hday1"`
	Onset2     *int      `gorm:"column:onset_hday2"`
	Cessation2 *int      `gorm:"column:cessation_hday2"`
	Length     *int
	Valid      bool `gorm:"not null"`
	Total      *float64
}

func (AnnualRecord) TableName() string {
	return "season_annual"
}

// StartStorageEngine creates a goroutine loop to receive results and send
// them off to TimescaleDB
func (t *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.PixelResult {
	log.Info("starting TimescaleDB storage engine...")
	resultChan := make(chan types.PixelResult, 10)
	wg.Add(1)
	go storage.ProcessResults(ctx, wg, resultChan, t.StoreResult, nil, "timescaledb")
	return resultChan
}

// StoreResult upserts the pixel and its annual rows in one transaction
func (t *Storage) StoreResult(r types.PixelResult) error {
	pixel, err := pixelRecord(r)
	if err != nil {
		return err
	}
	annual := annualRecords(r)

	return t.TimescaleDBConn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&pixel).Error; err != nil {
			return fmt.Errorf("could not store pixel: %w", err)
		}
		if len(annual) == 0 {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(annual, 100).Error; err != nil {
			return fmt.Errorf("could not store annual rows: %w", err)
		}
		return nil
	})
}

func pixelRecord(r types.PixelResult) (PixelRecord, error) {
	rec := PixelRecord{
		RunID:       r.RunID,
		Pixel:       r.Label,
		Row:         r.Row,
		Col:         r.Col,
		Lon:         r.Lon,
		Lat:         r.Lat,
		Status:      string(r.Status),
		InStudyArea: r.InStudyArea,
		Masked:      r.Masked,
		Regime:      r.Regime,
		ValidYears:  r.ValidYears,
		TotalYears:  r.TotalYears,
		ComputedAt:  r.ComputedAt,
	}
	if rec.ComputedAt.IsZero() {
		rec.ComputedAt = time.Now().UTC()
	}

	if r.Regime > 0 {
		rec.SeasonalityRatio = floatPtr(r.SeasonalityRatio)
	}
	if r.HYearStart > 0 {
		rec.HYearStart = intPtr(r.HYearStart)
	}
	if len(r.Seasons) > 0 {
		rec.Onset1, rec.Cessation1 = intPtr(r.Seasons[0].Onset), intPtr(r.Seasons[0].Cessation)
	}
	if len(r.Seasons) > 1 {
		rec.Onset2, rec.Cessation2 = intPtr(r.Seasons[1].Onset), intPtr(r.Seasons[1].Cessation)
	}
	if r.Usable() {
		rec.MeanLength = floatPtr(r.MeanLength)
		rec.LengthSD = floatPtr(r.LengthSD)
	}
	if r.Covariates != nil {
		rec.MAP = floatPtr(r.Covariates.MAP)
	}

	b, err := json.Marshal(r)
	if err != nil {
		return PixelRecord{}, fmt.Errorf("could not encode pixel %s: %w", r.Label, err)
	}
	if err := rec.Data.Set(b); err != nil {
		return PixelRecord{}, err
	}
	return rec, nil
}

// annualRecords returns the season years of a detected pixel, with the
// calendar-year totals attached. Masked pixels keep their rows but none of
// their years is marked valid.
func annualRecords(r types.PixelResult) []AnnualRecord {
	if r.HYearStart <= 0 || len(r.Annual) == 0 {
		return nil
	}

	totals := make(map[int]types.Float, len(r.CovariateYears))
	for _, c := range r.CovariateYears {
		totals[c.Year] = c.MAP
	}

	out := make([]AnnualRecord, 0, len(r.Annual))
	for _, a := range r.Annual {
		rec := AnnualRecord{
			Time:  season.HydroYearStartDate(a.Year, r.HYearStart),
			RunID: r.RunID,
			Pixel: r.Label,
			Year:  a.Year,
			Valid: a.Valid && !r.Masked,
		}
		for k, s := range a.Seasons {
			if !s.Valid {
				continue
			}
			switch k {
			case 0:
				rec.Onset1, rec.Cessation1 = intPtr(s.Onset), intPtr(s.Cessation)
			case 1:
				rec.Onset2, rec.Cessation2 = intPtr(s.Onset), intPtr(s.Cessation)
			}
		}
		if rec.Valid {
			rec.Length = intPtr(a.Length)
		}
		if total, ok := totals[a.Year]; ok {
			rec.Total = floatPtr(total)
		}
		out = append(out, rec)
	}
	return out
}

func floatPtr(f types.Float) *float64 {
	if f.IsMissing() {
		return nil
	}
	v := float64(f)
	return &v
}

func intPtr(v int) *int {
	return &v
}

// New sets up a new TimescaleDB storage backend
func New(ctx context.Context, connectionString string) (*Storage, error) {
	var err error
	t := Storage{}

	t.TimescaleDBConn, err = database.CreateConnection(ctx, connectionString)
	if err != nil {
		return &Storage{}, err
	}
	db := t.TimescaleDBConn.WithContext(ctx)

	// Create the TimescaleDB extension
	log.Info("creating TimescaleDB extension...")
	if err := db.Exec(createExtensionSQL).Error; err != nil {
		log.Warn("warning: could not create TimescaleDB extension")
		return &Storage{}, err
	}

	log.Info("creating database tables...")
	if err := db.AutoMigrate(&PixelRecord{}, &AnnualRecord{}); err != nil {
		log.Warn("warning: could not create tables in database")
		return &Storage{}, err
	}

	// Create the hypertable
	log.Info("creating hypertable...")
	if err := db.Exec(createHypertableSQL).Error; err != nil {
		log.Warn("warning: could not create hypertable")
		return &Storage{}, err
	}

	for _, stmt := range []string{dropRunSummaryViewSQL, createRunSummaryViewSQL, createValidYearsViewSQL} {
		if err := db.Exec(stmt).Error; err != nil {
			log.Warn("warning: could not create views")
			return &Storage{}, err
		}
	}

	return &t, nil
}

// Close releases the connection pool
func (t *Storage) Close() error {
	if t.TimescaleDBConn == nil {
		return nil
	}
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
