package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"PriceSentinel/internal/model"
)

// SQLiteStore reads alerts from a local SQLite database. It creates the
// alerts table when missing so a fresh deployment can be seeded.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
	mu  sync.Mutex
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets pollers read while the CRUD side writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, log: log.With().Str("comp", "store").Logger()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.log.Info().Str("path", dbPath).Msg("sqlite alert store opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id        INTEGER NOT NULL,
			symbol         TEXT    NOT NULL,
			threshold      TEXT    NOT NULL,
			direction      TEXT    NOT NULL,
			channel        TEXT    NOT NULL,
			channel_config TEXT    NOT NULL DEFAULT '{}',
			is_active      INTEGER NOT NULL DEFAULT 1,
			created_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_symbol_active ON alerts(symbol, is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_id)`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return fmt.Errorf("exec %q: %w", st[:40], err)
		}
	}
	return nil
}

const alertColumns = `id, user_id, symbol, threshold, direction, channel, channel_config, is_active, created_at`

func (s *SQLiteStore) ListActiveAlerts(ctx context.Context, symbol string) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE symbol = ? AND is_active = 1 ORDER BY id`,
		model.NormalizeSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("query active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			// One malformed record must not hide the symbol's other alerts.
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("skipping malformed alert row")
			continue
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active alerts: %w", err)
	}
	return alerts, nil
}

func (s *SQLiteStore) ListDistinctActiveSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT symbol FROM alerts WHERE is_active = 1 ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query active symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *SQLiteStore) GetAlert(ctx context.Context, id int64) (*model.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert %d: %w", id, err)
	}
	return a, nil
}

// CreateAlert inserts an alert and fills in its id. The CRUD service normally
// owns writes; this is used for seeding and tests.
func (s *SQLiteStore) CreateAlert(ctx context.Context, a *model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := json.Marshal(a.ChannelConfig)
	if err != nil {
		return fmt.Errorf("encode channel config: %w", err)
	}
	if a.ChannelConfig == nil {
		cfg = []byte("{}")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Symbol = model.NormalizeSymbol(a.Symbol)

	res, err := s.db.ExecContext(ctx, `INSERT INTO alerts
		(user_id, symbol, threshold, direction, channel, channel_config, is_active, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		a.UserID, a.Symbol, a.Threshold.String(), string(a.Direction), string(a.Channel),
		string(cfg), a.IsActive, a.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert alert id: %w", err)
	}
	a.ID = id
	return nil
}

// SetActive toggles an alert's active flag.
func (s *SQLiteStore) SetActive(ctx context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("update alert %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.log.Info().Msg("closing sqlite alert store")
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(r rowScanner) (*model.Alert, error) {
	var (
		a                  model.Alert
		threshold, dir, ch string
		cfg                string
		active             bool
		createdAt          int64
	)
	if err := r.Scan(&a.ID, &a.UserID, &a.Symbol, &threshold, &dir, &ch, &cfg, &active, &createdAt); err != nil {
		return nil, err
	}
	th, err := decimal.NewFromString(threshold)
	if err != nil {
		return nil, fmt.Errorf("alert %d threshold %q: %w", a.ID, threshold, err)
	}
	channelCfg, err := model.ParseChannelConfig([]byte(cfg))
	if err != nil {
		return nil, fmt.Errorf("alert %d: %w", a.ID, err)
	}
	a.Threshold = th
	a.Direction = model.Direction(strings.ToLower(dir))
	a.Channel = model.Channel(strings.ToLower(ch))
	a.ChannelConfig = channelCfg
	a.IsActive = active
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &a, nil
}
