package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/awaistahir/ecocharge/internal/engine"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid profile")
)

// timestamps are stored as fixed-width UTC text so they sort lexically
const timeLayout = "2006-01-02 15:04:05.000000"

// ProfileRepository is what the planner-facing code needs from persistence
type ProfileRepository interface {
	GetProfile(ctx context.Context, username string) (*engine.Profile, error)
	UpsertProfile(ctx context.Context, p *engine.Profile) error
	AddPoints(ctx context.Context, username string, delta int) (int, error)
}

// Action is one recorded eco action
type Action struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Label      string    `json:"label"`
	Points     int       `json:"points"`
	RecordedAt time.Time `json:"recorded_at"`
}

// LeaderboardEntry is one row of the points leaderboard
type LeaderboardEntry struct {
	Username    string             `json:"username"`
	VehicleType engine.VehicleType `json:"vehicle_type"`
	Points      int                `json:"points"`
}

// Store handles persistent storage using SQLite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new store and initializes the database
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	store := &Store{db: db, now: time.Now}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// initialize creates the database schema
func (s *Store) initialize() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS profiles (
		username TEXT PRIMARY KEY,
		vehicle_type TEXT NOT NULL DEFAULT 'EV',
		points INTEGER NOT NULL DEFAULT 0,
		latitude REAL NOT NULL DEFAULT 19.07,
		longitude REAL NOT NULL DEFAULT 72.87,
		battery_capacity_kwh REAL NOT NULL DEFAULT 60,
		charger_power_kw REAL NOT NULL DEFAULT 7,
		current_soc INTEGER NOT NULL DEFAULT 40,
		target_soc INTEGER NOT NULL DEFAULT 80,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS actions (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		label TEXT NOT NULL,
		points INTEGER NOT NULL,
		recorded_at TEXT NOT NULL,
		FOREIGN KEY (username) REFERENCES profiles(username) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_actions_user_time ON actions(username, recorded_at);
	CREATE INDEX IF NOT EXISTS idx_profiles_points ON profiles(points DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.ParseInLocation(timeLayout, s, time.UTC)
	return t
}

func validateProfile(p *engine.Profile) error {
	p.Username = strings.TrimSpace(p.Username)
	if p.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	switch p.VehicleType {
	case "":
		p.VehicleType = engine.VehicleEV
	case engine.VehicleEV, engine.VehicleNonEV:
	default:
		return fmt.Errorf("%w: vehicle type must be %q or %q", ErrInvalidInput, engine.VehicleEV, engine.VehicleNonEV)
	}
	if p.CurrentSoC < 0 || p.CurrentSoC > 100 || p.TargetSoC < 0 || p.TargetSoC > 100 {
		return fmt.Errorf("%w: state of charge must be between 0 and 100", ErrInvalidInput)
	}
	if p.BatteryCapacityKWh <= 0 || p.ChargerPowerKW <= 0 {
		return fmt.Errorf("%w: battery capacity and charger power must be positive", ErrInvalidInput)
	}
	return nil
}

// UpsertProfile creates a profile or updates its vehicle and location settings.
// Points are never changed here.
func (s *Store) UpsertProfile(ctx context.Context, p *engine.Profile) error {
	if err := validateProfile(p); err != nil {
		return err
	}

	now := formatTime(s.now())
	query := `INSERT INTO profiles
		(username, vehicle_type, latitude, longitude, battery_capacity_kwh, charger_power_kw,
		 current_soc, target_soc, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			vehicle_type = excluded.vehicle_type,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			battery_capacity_kwh = excluded.battery_capacity_kwh,
			charger_power_kw = excluded.charger_power_kw,
			current_soc = excluded.current_soc,
			target_soc = excluded.target_soc,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query, p.Username, string(p.VehicleType), p.Latitude, p.Longitude,
		p.BatteryCapacityKWh, p.ChargerPowerKW, p.CurrentSoC, p.TargetSoC, now, now)
	if err != nil {
		return fmt.Errorf("saving profile %s: %w", p.Username, err)
	}
	return nil
}

// GetProfile retrieves a profile by username
func (s *Store) GetProfile(ctx context.Context, username string) (*engine.Profile, error) {
	query := `SELECT username, vehicle_type, points, latitude, longitude, battery_capacity_kwh,
		charger_power_kw, current_soc, target_soc, created_at, updated_at
		FROM profiles WHERE username = ?`

	var p engine.Profile
	var vehicleType, createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, username).Scan(&p.Username, &vehicleType, &p.Points,
		&p.Latitude, &p.Longitude, &p.BatteryCapacityKWh, &p.ChargerPowerKW, &p.CurrentSoC, &p.TargetSoC,
		&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", username, err)
	}

	p.VehicleType = engine.VehicleType(vehicleType)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)

	return &p, nil
}

// AddPoints adjusts a user's points and returns the new total
func (s *Store) AddPoints(ctx context.Context, username string, delta int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	total, err := addPointsTx(ctx, tx, username, delta, s.now())
	if err != nil {
		return 0, err
	}
	return total, tx.Commit()
}

func addPointsTx(ctx context.Context, tx *sql.Tx, username string, delta int, now time.Time) (int, error) {
	res, err := tx.ExecContext(ctx, `UPDATE profiles SET points = points + ?, updated_at = ? WHERE username = ?`,
		delta, formatTime(now), username)
	if err != nil {
		return 0, fmt.Errorf("updating points for %s: %w", username, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("profile %s: %w", username, ErrNotFound)
	}

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT points FROM profiles WHERE username = ?`, username).Scan(&total); err != nil {
		return 0, fmt.Errorf("reading points for %s: %w", username, err)
	}
	return total, nil
}

// RecordAction logs an eco action and credits its points in one transaction.
// Returns the action and the user's new points total.
func (s *Store) RecordAction(ctx context.Context, username, label string, points int) (*Action, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback()

	now := s.now().UTC()
	total, err := addPointsTx(ctx, tx, username, points, now)
	if err != nil {
		return nil, 0, err
	}

	action := &Action{
		ID:         uuid.NewString(),
		Username:   username,
		Label:      label,
		Points:     points,
		RecordedAt: now,
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO actions (id, username, label, points, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		action.ID, action.Username, action.Label, action.Points, formatTime(now))
	if err != nil {
		return nil, 0, fmt.Errorf("recording action: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	return action, total, nil
}

// ListActions returns a user's actions in time order. Zero from/to leave that end open;
// to is exclusive.
func (s *Store) ListActions(ctx context.Context, username string, from, to time.Time) ([]Action, error) {
	query := `SELECT id, username, label, points, recorded_at FROM actions WHERE username = ?`
	args := []interface{}{username}
	if !from.IsZero() {
		query += ` AND recorded_at >= ?`
		args = append(args, formatTime(from))
	}
	if !to.IsZero() {
		query += ` AND recorded_at < ?`
		args = append(args, formatTime(to))
	}
	query += ` ORDER BY recorded_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing actions for %s: %w", username, err)
	}
	defer rows.Close()

	actions := []Action{}
	for rows.Next() {
		var a Action
		var recordedAt string
		if err := rows.Scan(&a.ID, &a.Username, &a.Label, &a.Points, &recordedAt); err != nil {
			return nil, err
		}
		a.RecordedAt = parseTime(recordedAt)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// Leaderboard returns the top profiles by points
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 8
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT username, vehicle_type, points FROM profiles ORDER BY points DESC, username LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("loading leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		var vehicleType string
		if err := rows.Scan(&e.Username, &vehicleType, &e.Points); err != nil {
			return nil, err
		}
		e.VehicleType = engine.VehicleType(vehicleType)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Ensure Store implements ProfileRepository
var _ ProfileRepository = (*Store)(nil)
