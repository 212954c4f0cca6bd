package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Archive mirrors the local audit log into Postgres. The JSON store stays
// authoritative and is capped; the archive keeps full history for offline
// review. Every write is best-effort: a down database never blocks or
// fails event handling.
type Archive struct {
	db  *sql.DB
	log *zap.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
    id SERIAL PRIMARY KEY,
    event_type TEXT NOT NULL,
    guild_id TEXT NOT NULL,
    subject_id TEXT,
    actor_id TEXT,
    details TEXT,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS alert_deliveries (
    id SERIAL PRIMARY KEY,
    priority TEXT NOT NULL,
    title TEXT NOT NULL,
    outcome TEXT NOT NULL,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(event_type);
CREATE INDEX IF NOT EXISTS idx_audit_events_subject ON audit_events(subject_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_time ON audit_events(created_at);
CREATE INDEX IF NOT EXISTS idx_alert_deliveries_time ON alert_deliveries(created_at);
`

func Open(dsn string, log *zap.Logger) (*Archive, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	log.Info("audit archive connected")
	return &Archive{db: db, log: log}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) Ping() error {
	return a.db.Ping()
}

// RecordEvent archives one audit entry. Errors are logged, not returned.
func (a *Archive) RecordEvent(eventType, guildID, subjectID, actorID, details string) {
	_, err := a.db.Exec(
		`INSERT INTO audit_events (event_type, guild_id, subject_id, actor_id, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		eventType, guildID, nullable(subjectID), nullable(actorID), details, time.Now().Unix(),
	)
	if err != nil {
		a.log.Warn("audit archive insert failed", zap.String("type", eventType), zap.Error(err))
	}
}

// RecordDelivery archives the outcome of one alert dispatch.
func (a *Archive) RecordDelivery(priority, title, outcome string) {
	_, err := a.db.Exec(
		`INSERT INTO alert_deliveries (priority, title, outcome, created_at) VALUES ($1, $2, $3, $4)`,
		priority, title, outcome, time.Now().Unix(),
	)
	if err != nil {
		a.log.Warn("delivery archive insert failed", zap.Error(err))
	}
}

// EventsForSubject returns the newest archived entries for one subject.
func (a *Archive) EventsForSubject(subjectID string, limit int) ([]ArchivedEvent, error) {
	rows, err := a.db.Query(
		`SELECT event_type, guild_id, COALESCE(subject_id, ''), COALESCE(actor_id, ''), details, created_at
		 FROM audit_events WHERE subject_id = $1 ORDER BY created_at DESC LIMIT $2`,
		subjectID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedEvent
	for rows.Next() {
		var e ArchivedEvent
		var ts int64
		if err := rows.Scan(&e.EventType, &e.GuildID, &e.SubjectID, &e.ActorID, &e.Details, &ts); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(ts, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

type ArchivedEvent struct {
	EventType string
	GuildID   string
	SubjectID string
	ActorID   string
	Details   string
	CreatedAt time.Time
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
