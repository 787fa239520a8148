package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"PriceSentinel/internal/model"
)

// alertRow maps the CRUD service's alerts table. The schema is owned there,
// so this store never migrates it.
type alertRow struct {
	ID            int64           `gorm:"column:id;primaryKey"`
	UserID        int64           `gorm:"column:user_id"`
	Symbol        string          `gorm:"column:symbol"`
	Threshold     decimal.Decimal `gorm:"column:threshold;type:numeric"`
	Direction     string          `gorm:"column:direction"`
	Channel       string          `gorm:"column:channel"`
	ChannelConfig datatypes.JSON  `gorm:"column:channel_config"`
	IsActive      bool            `gorm:"column:is_active"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
}

func (alertRow) TableName() string { return "alerts" }

type gormLogWriter struct {
	log zerolog.Logger
}

func (w gormLogWriter) Printf(format string, args ...interface{}) {
	w.log.Info().Msgf(format, args...)
}

// PostgresStore reads alerts through gorm.
type PostgresStore struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewPostgresStore opens a pooled connection. The pool is shared by every task.
func NewPostgresStore(dsn string, log zerolog.Logger) (*PostgresStore, error) {
	log = log.With().Str("comp", "store").Logger()
	gormLogger := logger.New(
		gormLogWriter{log: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Info().Msg("postgres alert store opened")
	return &PostgresStore{db: db, log: log}, nil
}

// NewPostgresStoreFromDB wraps an existing gorm handle.
func NewPostgresStoreFromDB(db *gorm.DB, log zerolog.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: log.With().Str("comp", "store").Logger()}
}

func (s *PostgresStore) ListActiveAlerts(ctx context.Context, symbol string) ([]model.Alert, error) {
	var rows []alertRow
	if err := s.db.WithContext(ctx).
		Where("symbol = ? AND is_active = ?", model.NormalizeSymbol(symbol), true).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query active alerts: %w", err)
	}
	alerts := make([]model.Alert, 0, len(rows))
	for _, r := range rows {
		a, err := r.toModel()
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("skipping malformed alert row")
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func (s *PostgresStore) ListDistinctActiveSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	if err := s.db.WithContext(ctx).
		Model(&alertRow{}).
		Where("is_active = ?", true).
		Distinct().
		Order("symbol").
		Pluck("symbol", &symbols).Error; err != nil {
		return nil, fmt.Errorf("query active symbols: %w", err)
	}
	return symbols, nil
}

func (s *PostgresStore) GetAlert(ctx context.Context, id int64) (*model.Alert, error) {
	var row alertRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert %d: %w", id, err)
	}
	a, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.log.Info().Msg("closing postgres alert store")
	return sqlDB.Close()
}

func (r alertRow) toModel() (model.Alert, error) {
	cfg, err := model.ParseChannelConfig(r.ChannelConfig)
	if err != nil {
		return model.Alert{}, fmt.Errorf("alert %d: %w", r.ID, err)
	}
	return model.Alert{
		ID:            r.ID,
		UserID:        r.UserID,
		Symbol:        r.Symbol,
		Threshold:     r.Threshold,
		Direction:     model.Direction(strings.ToLower(r.Direction)),
		Channel:       model.Channel(strings.ToLower(r.Channel)),
		ChannelConfig: cfg,
		IsActive:      r.IsActive,
		CreatedAt:     r.CreatedAt,
	}, nil
}
