package sys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/mattn/go-sqlite3"

	"github.com/leeineian/tempo/notify"
)

// --- Database Connection & Lifecycle ---

var DB *sql.DB

func InitDatabase(ctx context.Context, dataSourceName string) error {
	db, err := OpenDatabase(ctx, dataSourceName)
	if err != nil {
		return err
	}
	DB = db
	LogDatabase(MsgDatabaseInitSuccess, dataSourceName)
	return nil
}

// OpenDatabase opens the sqlite file and creates missing tables.
func OpenDatabase(ctx context.Context, dataSourceName string) (*sql.DB, error) {
	// The driver registers itself via its init() function
	_ = sqlite3.SQLiteDriver{}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(5)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA cache_size=-2000;",
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, p := range pragmas {
		if _, err := db.ExecContext(initCtx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf(MsgDatabasePragmaError, p, err)
		}
	}

	tx, err := db.BeginTx(initCtx, nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	defer tx.Rollback()

	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS bot_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS guilds (
			guild_id TEXT PRIMARY KEY,
			volume INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS notify_me (
			message_id TEXT PRIMARY KEY,
			guild_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			notify_at DATETIME NOT NULL,
			note TEXT,
			attempts INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notify_me_user ON notify_me (user_id)`,
	}

	for _, q := range tableQueries {
		if _, err := tx.ExecContext(initCtx, q); err != nil {
			db.Close()
			return nil, fmt.Errorf(MsgDatabaseTableError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func CloseDatabase() {
	if DB != nil {
		DB.Close()
	}
}

// --- Infrastructure & Bot Persistence ---

// BotConfig helpers are used by the loader for mode tracking and state.
func GetBotConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := DB.QueryRowContext(ctx, "SELECT value FROM bot_config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func SetBotConfig(ctx context.Context, key, value string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO bot_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// --- Application Logic ---

// Store persists guild volumes and pending notifications.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GuildVolume(ctx context.Context, guildID snowflake.ID) (int, bool, error) {
	var v int
	err := s.db.QueryRowContext(ctx, "SELECT volume FROM guilds WHERE guild_id = ?", guildID.String()).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (s *Store) SaveGuildVolume(ctx context.Context, guildID snowflake.ID, volume int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guilds (guild_id, volume) VALUES (?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET volume = excluded.volume, updated_at = CURRENT_TIMESTAMP
	`, guildID.String(), volume)
	return err
}

func (s *Store) LoadNotifications(ctx context.Context) ([]notify.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, guild_id, channel_id, user_id, created_at, notify_at, note, attempts
		FROM notify_me ORDER BY notify_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notify.Notification
	for rows.Next() {
		var (
			n                  notify.Notification
			mid, gid, cid, uid string
			note               sql.NullString
		)
		if err := rows.Scan(&mid, &gid, &cid, &uid, &n.CreatedAt, &n.NotifyAt, &note, &n.Attempts); err != nil {
			return nil, err
		}
		if n.MessageID, err = snowflake.Parse(mid); err != nil {
			return nil, fmt.Errorf("failed to parse message ID '%s': %w", mid, err)
		}
		if n.GuildID, err = snowflake.Parse(gid); err != nil {
			return nil, fmt.Errorf("failed to parse guild ID '%s' for notification %s: %w", gid, mid, err)
		}
		if n.ChannelID, err = snowflake.Parse(cid); err != nil {
			return nil, fmt.Errorf("failed to parse channel ID '%s' for notification %s: %w", cid, mid, err)
		}
		if n.UserID, err = snowflake.Parse(uid); err != nil {
			return nil, fmt.Errorf("failed to parse user ID '%s' for notification %s: %w", uid, mid, err)
		}
		n.Note = note.String
		n.CreatedAt = n.CreatedAt.In(notify.SeasonalZone(n.CreatedAt))
		n.NotifyAt = n.NotifyAt.In(notify.SeasonalZone(n.NotifyAt))
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) SaveNotification(ctx context.Context, n notify.Notification) error {
	var note sql.NullString
	if n.Note != "" {
		note = sql.NullString{String: n.Note, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notify_me (message_id, guild_id, channel_id, user_id, created_at, notify_at, note, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET notify_at = excluded.notify_at, note = excluded.note, attempts = excluded.attempts
	`, n.MessageID.String(), n.GuildID.String(), n.ChannelID.String(), n.UserID.String(),
		n.CreatedAt.UTC(), n.NotifyAt.UTC(), note, n.Attempts)
	return err
}

func (s *Store) DeleteNotification(ctx context.Context, messageID snowflake.ID) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM notify_me WHERE message_id = ?", messageID.String())
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}
