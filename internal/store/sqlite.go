// Package store persists device configuration in SQLite: Wi-Fi credentials,
// device identity and the configured insights.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"deskhogd/internal/wifi"
)

const (
	MaxSSIDLength      = 32
	MaxPasswordLength  = 64
	MaxInsightIDLength = 64
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid value")
)

const (
	keySSID     = "wifi.ssid"
	keyPassword = "wifi.password"
	keyTeamID   = "device.team_id"
	keyAPIKey   = "device.api_key"
	keyRegion   = "device.region"
)

// DeviceConfig identifies the account the device reports against.
type DeviceConfig struct {
	TeamID string
	APIKey string
	Region string
}

// Insight is a configured dashboard entry.
type Insight struct {
	ID        string
	Title     string
	CreatedAt time.Time
}

// Store wraps a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and creates the schema.
// ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// one writer; modernc serialises anyway and this keeps :memory: shared
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS insights (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveWiFiCredentials validates and stores the network credentials.
func (s *Store) SaveWiFiCredentials(ctx context.Context, ssid, password string) error {
	if ssid == "" || len(ssid) > MaxSSIDLength {
		return fmt.Errorf("%w: ssid must be 1-%d bytes", ErrInvalid, MaxSSIDLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalid, MaxPasswordLength)
	}
	return s.putSettings(ctx, map[string]string{keySSID: ssid, keyPassword: password})
}

// WiFiCredentials implements wifi.CredentialSource.
func (s *Store) WiFiCredentials(ctx context.Context) (string, string, error) {
	vals, err := s.getSettings(ctx, keySSID, keyPassword)
	if err != nil {
		return "", "", err
	}
	ssid, ok := vals[keySSID]
	if !ok || ssid == "" {
		return "", "", wifi.ErrNoCredentials
	}
	return ssid, vals[keyPassword], nil
}

// HasWiFiCredentials reports whether an SSID is stored.
func (s *Store) HasWiFiCredentials(ctx context.Context) bool {
	ssid, _, err := s.WiFiCredentials(ctx)
	return err == nil && ssid != ""
}

func (s *Store) ClearWiFiCredentials(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key IN (?, ?)", keySSID, keyPassword)
	if err != nil {
		return fmt.Errorf("clear wifi credentials: %w", err)
	}
	return nil
}

// SaveDeviceConfig stores the device identity. An empty APIKey keeps the
// stored key so clients can update other fields without resending it.
func (s *Store) SaveDeviceConfig(ctx context.Context, c DeviceConfig) error {
	c.TeamID = strings.TrimSpace(c.TeamID)
	c.Region = strings.ToLower(strings.TrimSpace(c.Region))
	if c.TeamID == "" {
		return fmt.Errorf("%w: team id is required", ErrInvalid)
	}
	switch c.Region {
	case "", "us", "eu":
	default:
		return fmt.Errorf("%w: region must be us or eu", ErrInvalid)
	}
	vals := map[string]string{keyTeamID: c.TeamID, keyRegion: c.Region}
	if c.APIKey != "" {
		vals[keyAPIKey] = c.APIKey
	}
	return s.putSettings(ctx, vals)
}

// DeviceConfig returns the stored identity or ErrNotFound.
func (s *Store) DeviceConfig(ctx context.Context) (DeviceConfig, error) {
	vals, err := s.getSettings(ctx, keyTeamID, keyAPIKey, keyRegion)
	if err != nil {
		return DeviceConfig{}, err
	}
	if len(vals) == 0 {
		return DeviceConfig{}, ErrNotFound
	}
	return DeviceConfig{TeamID: vals[keyTeamID], APIKey: vals[keyAPIKey], Region: vals[keyRegion]}, nil
}

// SaveInsight inserts or retitles an insight.
func (s *Store) SaveInsight(ctx context.Context, id, title string) error {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > MaxInsightIDLength {
		return fmt.Errorf("%w: insight id must be 1-%d bytes", ErrInvalid, MaxInsightIDLength)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO insights (id, title, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title`,
		id, title, time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save insight %s: %w", id, err)
	}
	return nil
}

// DeleteInsight removes an insight; ErrNotFound when it does not exist.
func (s *Store) DeleteInsight(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM insights WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete insight %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete insight %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("insight %s: %w", id, ErrNotFound)
	}
	return nil
}

// Insights lists insights oldest first.
func (s *Store) Insights(ctx context.Context) ([]Insight, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, title, created_at FROM insights ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()
	var out []Insight
	for rows.Next() {
		var in Insight
		var created int64
		if err := rows.Scan(&in.ID, &in.Title, &created); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		in.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *Store) putSettings(ctx context.Context, vals map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	now := time.Now().UTC().Unix()
	for k, v := range vals {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v, now,
		); err != nil {
			return fmt.Errorf("put %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) getSettings(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		var v string
		err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", k).Scan(&v)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			continue
		case err != nil:
			return nil, fmt.Errorf("get %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
