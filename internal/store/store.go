package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/TripCu/chatvault/pkg/export"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by read queries that match no row.
var ErrNotFound = errors.New("store: not found")

// ConflictPolicy selects what a write does when its primary key already
// exists.
type ConflictPolicy int

const (
	// ConflictReplace drops the existing row and writes the new one wholesale.
	ConflictReplace ConflictPolicy = iota
	// ConflictMerge keeps the row and overwrites every non-key column with
	// the incoming values (last write wins).
	ConflictMerge
	// ConflictIgnore keeps the existing row untouched.
	ConflictIgnore
)

// Stats holds per-table row counts for one database.
type Stats struct {
	Guilds        int `json:"guilds"`
	Channels      int `json:"channels"`
	Participants  int `json:"participants"`
	Messages      int `json:"messages"`
	Attachments   int `json:"attachments"`
	Embeds        int `json:"embeds"`
	Stickers      int `json:"stickers"`
	InlineEmojis  int `json:"inline_emojis"`
	Reactions     int `json:"reactions"`
	Mentions      int `json:"mentions"`
	ReactionUsers int `json:"reaction_users"`
}

// MessageRecord is the read-side view of one message joined with its author.
type MessageRecord struct {
	ID          string  `db:"id" json:"id"`
	Content     string  `db:"content" json:"content"`
	AuthorID    *string `db:"author_id" json:"author_id"`
	Timestamp   *string `db:"timestamp" json:"timestamp"`
	DisplayName string  `db:"display_name" json:"display_name"`
	FullName    *string `db:"full_name" json:"full_name"`
}

// Writer is the set of row-write primitives one load transaction exposes.
type Writer interface {
	UpsertGuild(ctx context.Context, g *export.Guild) error
	UpsertChannel(ctx context.Context, c *export.Channel) error
	ReplaceExportInfo(ctx context.Context, exportedAt *string, messageCount *int64) error
	ReplaceDateRange(ctx context.Context, r *export.DateRange) error
	UpsertParticipant(ctx context.Context, p *export.Participant) error
	UpsertMessage(ctx context.Context, m *export.Message, authorID *string) error
	UpsertAttachment(ctx context.Context, messageID *string, a *export.Attachment) error
	UpsertSticker(ctx context.Context, messageID *string, st *export.Sticker) error
	InsertEmbed(ctx context.Context, messageID *string, rawJSON string) (int64, error)
	InsertInlineEmoji(ctx context.Context, messageID *string, e *export.Emoji) (int64, error)
	InsertReaction(ctx context.Context, messageID *string, r *export.Reaction) (int64, error)
	LinkMention(ctx context.Context, messageID *string, participantID string) error
	LinkReactionUser(ctx context.Context, reactionID int64, participantID string) error
}

// Store is the persistence interface.
type Store interface {
	WithTx(ctx context.Context, fn func(*Tx) error) error
	Stats(ctx context.Context) (*Stats, error)
	RandomEligibleMessage(ctx context.Context) (*MessageRecord, error)
	MessageByID(ctx context.Context, id string) (*MessageRecord, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database, enables foreign-key enforcement, and creates
// the schema if missing.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside one transaction. Any error from fn rolls the whole
// transaction back, so a partially walked document never reaches the store.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&Tx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Tx is one open load transaction. It implements Writer.
type Tx struct {
	tx *sqlx.Tx
}

// write is the shared row-write primitive: every table write goes through it
// with that table's declared conflict policy.
func (t *Tx) write(ctx context.Context, table string, cols, keys []string, policy ConflictPolicy, args ...any) error {
	if _, err := t.tx.ExecContext(ctx, writeSQL(table, cols, keys, policy), args...); err != nil {
		return fmt.Errorf("write %s: %w", table, err)
	}
	return nil
}

// append inserts a row into a surrogate-keyed table and returns the assigned
// rowid.
func (t *Tx) append(ctx context.Context, table string, cols []string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders(len(cols))),
		args...)
	if err != nil {
		return 0, fmt.Errorf("append %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append %s: last insert id: %w", table, err)
	}
	return id, nil
}

func writeSQL(table string, cols, keys []string, policy ConflictPolicy) string {
	base := fmt.Sprintf("INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders(len(cols)))
	switch policy {
	case ConflictIgnore:
		return "INSERT OR IGNORE " + base
	case ConflictMerge:
		var sets []string
		keySet := make(map[string]bool, len(keys))
		for _, k := range keys {
			keySet[k] = true
		}
		for _, c := range cols {
			if !keySet[c] {
				sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
			}
		}
		return fmt.Sprintf("INSERT %s ON CONFLICT(%s) DO UPDATE SET %s",
			base, strings.Join(keys, ", "), strings.Join(sets, ", "))
	default:
		return "INSERT OR REPLACE " + base
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// boolArg maps a tri-state boolean to a nullable integer column value.
func boolArg(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}

func (t *Tx) UpsertGuild(ctx context.Context, g *export.Guild) error {
	return t.write(ctx, "guild",
		[]string{"id", "name", "icon_url"}, []string{"id"}, ConflictReplace,
		g.ID, g.Name, g.IconURL)
}

func (t *Tx) UpsertChannel(ctx context.Context, c *export.Channel) error {
	return t.write(ctx, "channel",
		[]string{"id", "type", "category_id", "category", "name", "topic", "icon_url"},
		[]string{"id"}, ConflictReplace,
		c.ID, c.Type, c.CategoryID, c.Category, c.Name, c.Topic, c.IconURL)
}

func (t *Tx) ReplaceExportInfo(ctx context.Context, exportedAt *string, messageCount *int64) error {
	return t.write(ctx, "export_info",
		[]string{"id", "exported_at", "message_count"}, []string{"id"}, ConflictReplace,
		1, exportedAt, messageCount)
}

func (t *Tx) ReplaceDateRange(ctx context.Context, r *export.DateRange) error {
	return t.write(ctx, "date_range",
		[]string{"id", "after", "before"}, []string{"id"}, ConflictReplace,
		1, r.After, r.Before)
}

// UpsertParticipant merges on conflict instead of replacing: a participant
// shows up many times per document and the latest field values win without
// breaking rows that already reference the id.
func (t *Tx) UpsertParticipant(ctx context.Context, p *export.Participant) error {
	return t.write(ctx, "participants",
		[]string{"id", "name", "discriminator", "nickname", "color", "is_bot", "avatar_url"},
		[]string{"id"}, ConflictMerge,
		p.ID, p.Name, p.Discriminator, p.Nickname, p.Color, boolArg(p.IsBot), p.AvatarURL)
}

func (t *Tx) UpsertMessage(ctx context.Context, m *export.Message, authorID *string) error {
	return t.write(ctx, "messages",
		[]string{"id", "type", "timestamp", "timestamp_edited", "call_ended_timestamp", "is_pinned", "content", "author_id"},
		[]string{"id"}, ConflictReplace,
		m.ID, m.Type, m.Timestamp, m.TimestampEdited, m.CallEndedTimestamp, boolArg(m.IsPinned), m.Content, authorID)
}

func (t *Tx) UpsertAttachment(ctx context.Context, messageID *string, a *export.Attachment) error {
	return t.write(ctx, "attachments",
		[]string{"id", "message_id", "url", "file_name", "file_size_bytes"},
		[]string{"id"}, ConflictReplace,
		a.ID, messageID, a.URL, a.FileName, a.FileSizeBytes)
}

func (t *Tx) UpsertSticker(ctx context.Context, messageID *string, st *export.Sticker) error {
	return t.write(ctx, "stickers",
		[]string{"id", "message_id", "name", "format", "source_url"},
		[]string{"id"}, ConflictReplace,
		st.ID, messageID, st.Name, st.Format, st.SourceURL)
}

func (t *Tx) InsertEmbed(ctx context.Context, messageID *string, rawJSON string) (int64, error) {
	return t.append(ctx, "embeds",
		[]string{"message_id", "raw_json"},
		messageID, rawJSON)
}

func (t *Tx) InsertInlineEmoji(ctx context.Context, messageID *string, e *export.Emoji) (int64, error) {
	return t.append(ctx, "inline_emojis",
		[]string{"message_id", "emoji_id", "name", "code", "is_animated", "image_url"},
		messageID, e.ID, e.Name, e.Code, boolArg(e.IsAnimated), e.ImageURL)
}

func (t *Tx) InsertReaction(ctx context.Context, messageID *string, r *export.Reaction) (int64, error) {
	return t.append(ctx, "reactions",
		[]string{"message_id", "emoji_id", "name", "code", "is_animated", "image_url", "count"},
		messageID, r.Emoji.ID, r.Emoji.Name, r.Emoji.Code, boolArg(r.Emoji.IsAnimated), r.Emoji.ImageURL, r.Count)
}

func (t *Tx) LinkMention(ctx context.Context, messageID *string, participantID string) error {
	return t.write(ctx, "mentions",
		[]string{"message_id", "participant_id"},
		[]string{"message_id", "participant_id"}, ConflictIgnore,
		messageID, participantID)
}

func (t *Tx) LinkReactionUser(ctx context.Context, reactionID int64, participantID string) error {
	return t.write(ctx, "reaction_users",
		[]string{"reaction_id", "participant_id"},
		[]string{"reaction_id", "participant_id"}, ConflictIgnore,
		reactionID, participantID)
}

var statTables = []struct {
	table string
	dest  func(*Stats) *int
}{
	{"guild", func(s *Stats) *int { return &s.Guilds }},
	{"channel", func(s *Stats) *int { return &s.Channels }},
	{"participants", func(s *Stats) *int { return &s.Participants }},
	{"messages", func(s *Stats) *int { return &s.Messages }},
	{"attachments", func(s *Stats) *int { return &s.Attachments }},
	{"embeds", func(s *Stats) *int { return &s.Embeds }},
	{"stickers", func(s *Stats) *int { return &s.Stickers }},
	{"inline_emojis", func(s *Stats) *int { return &s.InlineEmojis }},
	{"reactions", func(s *Stats) *int { return &s.Reactions }},
	{"mentions", func(s *Stats) *int { return &s.Mentions }},
	{"reaction_users", func(s *Stats) *int { return &s.ReactionUsers }},
}

// Stats counts the rows in every table.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	for _, st := range statTables {
		if err := s.db.GetContext(ctx, st.dest(&stats), "SELECT COUNT(*) FROM "+st.table); err != nil {
			return nil, fmt.Errorf("count %s: %w", st.table, err)
		}
	}
	return &stats, nil
}

// Messages are eligible for the read API when they have an id, non-blank
// content, and an author that is not known to be a bot.
const eligibleMessageSQL = `
SELECT
    m.id,
    m.content,
    m.author_id,
    m.timestamp,
    COALESCE(NULLIF(TRIM(p.nickname), ''), NULLIF(TRIM(p.name), ''), 'Unknown') AS display_name,
    CASE
        WHEN p.name IS NOT NULL AND p.discriminator IS NOT NULL
        THEN p.name || '#' || p.discriminator
        ELSE p.name
    END AS full_name
FROM messages m
LEFT JOIN participants p ON p.id = m.author_id
WHERE m.id IS NOT NULL
  AND m.content IS NOT NULL
  AND TRIM(m.content) <> ''
  AND (p.is_bot IS NULL OR p.is_bot = 0)`

// RandomEligibleMessage returns one random eligible message, or ErrNotFound
// when the database holds none.
func (s *SQLiteStore) RandomEligibleMessage(ctx context.Context) (*MessageRecord, error) {
	var rec MessageRecord
	err := s.db.GetContext(ctx, &rec, eligibleMessageSQL+" ORDER BY RANDOM() LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("random message: %w", err)
	}
	return &rec, nil
}

// MessageByID returns one eligible message by id, or ErrNotFound.
func (s *SQLiteStore) MessageByID(ctx context.Context, id string) (*MessageRecord, error) {
	var rec MessageRecord
	err := s.db.GetContext(ctx, &rec, eligibleMessageSQL+" AND m.id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", id, err)
	}
	return &rec, nil
}
