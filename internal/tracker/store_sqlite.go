package tracker

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"watch-progress/internal/watch"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps sessions in a SQLite database so progress survives restarts.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path and ensures the schema exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure database: %w", err)
		}
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS watch_sessions (
		user_id          TEXT NOT NULL,
		media_id         TEXT NOT NULL,
		watch_segments   TEXT NOT NULL DEFAULT '[]',
		current_start    REAL,
		last_known_stop  REAL,
		current_position REAL NOT NULL DEFAULT 0,
		total_watch_time REAL NOT NULL DEFAULT 0,
		video_duration   REAL,
		percent_watched  INTEGER NOT NULL DEFAULT 0,
		ended            INTEGER NOT NULL DEFAULT 0,
		completed        INTEGER NOT NULL DEFAULT 0,
		started_at       INTEGER NOT NULL DEFAULT 0,
		updated_at       INTEGER NOT NULL DEFAULT 0,
		completed_at     INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, media_id)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetSession implements Store.GetSession.
func (s *SQLiteStore) GetSession(key Key) (*Session, bool, error) {
	row := s.db.QueryRow(`SELECT watch_segments, current_start, last_known_stop, current_position,
		total_watch_time, video_duration, percent_watched, ended, completed,
		started_at, updated_at, completed_at
		FROM watch_sessions WHERE user_id = ? AND media_id = ?`, string(key.UserID), string(key.MediaID))

	var (
		segments                            string
		currentStart, lastStop              sql.NullFloat64
		duration                            sql.NullFloat64
		ended, completed                    bool
		startedAt, updatedAt, completedAtMs int64
	)
	p := &watch.Progress{}
	err := row.Scan(&segments, &currentStart, &lastStop, &p.CurrentPosition,
		&p.TotalWatchTime, &duration, &p.PercentWatched, &ended, &completed,
		&startedAt, &updatedAt, &completedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load session: %w", err)
	}

	if err := json.Unmarshal([]byte(segments), &p.WatchSegments); err != nil {
		return nil, false, fmt.Errorf("decode watch segments: %w", err)
	}
	if currentStart.Valid {
		v := currentStart.Float64
		p.CurrentStart = &v
	}
	if lastStop.Valid {
		v := lastStop.Float64
		p.LastKnownStopPosition = &v
	}
	p.VideoDuration = math.Inf(1)
	if duration.Valid {
		p.VideoDuration = duration.Float64
	}

	sess := &Session{
		Key:       key,
		Progress:  p,
		Ended:     ended,
		Completed: completed,
		StartedAt: time.UnixMilli(startedAt).UTC(),
		UpdatedAt: time.UnixMilli(updatedAt).UTC(),
	}
	if completedAtMs > 0 {
		sess.CompletedAt = time.UnixMilli(completedAtMs).UTC()
	}
	return sess, true, nil
}

// SetSession implements Store.SetSession.
func (s *SQLiteStore) SetSession(sess *Session) error {
	p := sess.Progress
	segments := p.WatchSegments
	if segments == nil {
		segments = []watch.Segment{}
	}
	encoded, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("encode watch segments: %w", err)
	}

	var duration sql.NullFloat64
	if !math.IsInf(p.VideoDuration, 1) {
		duration = sql.NullFloat64{Float64: p.VideoDuration, Valid: true}
	}
	var completedAt int64
	if !sess.CompletedAt.IsZero() {
		completedAt = sess.CompletedAt.UnixMilli()
	}

	_, err = s.db.Exec(`INSERT INTO watch_sessions (user_id, media_id, watch_segments, current_start,
		last_known_stop, current_position, total_watch_time, video_duration, percent_watched,
		ended, completed, started_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, media_id) DO UPDATE SET
			watch_segments=excluded.watch_segments,
			current_start=excluded.current_start,
			last_known_stop=excluded.last_known_stop,
			current_position=excluded.current_position,
			total_watch_time=excluded.total_watch_time,
			video_duration=excluded.video_duration,
			percent_watched=excluded.percent_watched,
			ended=excluded.ended,
			completed=excluded.completed,
			started_at=excluded.started_at,
			updated_at=excluded.updated_at,
			completed_at=excluded.completed_at`,
		string(sess.Key.UserID), string(sess.Key.MediaID), string(encoded),
		nullable(p.CurrentStart), nullable(p.LastKnownStopPosition),
		p.CurrentPosition, p.TotalWatchTime, duration, p.PercentWatched,
		sess.Ended, sess.Completed,
		sess.StartedAt.UnixMilli(), sess.UpdatedAt.UnixMilli(), completedAt,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ListKeys implements Store.ListKeys.
func (s *SQLiteStore) ListKeys() ([]Key, error) {
	rows, err := s.db.Query(`SELECT user_id, media_id FROM watch_sessions`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var userID, mediaID string
		if err := rows.Scan(&userID, &mediaID); err != nil {
			return nil, fmt.Errorf("scan session key: %w", err)
		}
		keys = append(keys, Key{UserID: UserID(userID), MediaID: MediaID(mediaID)})
	}
	return keys, rows.Err()
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
