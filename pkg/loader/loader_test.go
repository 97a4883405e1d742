package loader_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/TripCu/chatvault/internal/store"
	"github.com/TripCu/chatvault/pkg/export"
	"github.com/TripCu/chatvault/pkg/loader"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// testDB is a store plus a raw connection for verification queries.
type testDB struct {
	store *store.SQLiteStore
	raw   *sqlx.DB
}

func newTestDB(t *testing.T) *testDB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	s, err := store.New(path)
	require.NoError(t, err)
	raw, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() {
		raw.Close()
		s.Close()
	})
	return &testDB{store: s, raw: raw}
}

func (db *testDB) load(t *testing.T, doc *export.Document) *loader.Result {
	t.Helper()
	ctx := context.Background()
	var res *loader.Result
	err := db.store.WithTx(ctx, func(tx *store.Tx) error {
		var loadErr error
		res, loadErr = loader.Load(ctx, tx, doc)
		return loadErr
	})
	require.NoError(t, err)
	return res
}

func (db *testDB) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.raw.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

const endToEndExport = `{
	"guild": {"id": "g1", "name": "Guild"},
	"channel": {"id": "c1", "type": "GuildTextChat", "name": "general"},
	"exportedAt": "2024-03-01T12:00:00.000+00:00",
	"messageCount": 1,
	"dateRange": {"after": null, "before": null},
	"messages": [
		{
			"id": "m1",
			"type": "Default",
			"timestamp": "2024-02-20T10:00:00.000+00:00",
			"isPinned": false,
			"content": "hi @u1",
			"author": {"id": "u1", "name": "alice"},
			"mentions": [
				{"id": "u1", "name": "alice"},
				{"id": "u1", "name": "alice"}
			],
			"reactions": [
				{
					"emoji": {"name": "👍"},
					"count": 2,
					"users": [
						{"id": "u1", "name": "alice"},
						{"id": "u2", "name": "bob"}
					]
				}
			]
		}
	]
}`

func mustDecode(t *testing.T, raw string) *export.Document {
	t.Helper()
	doc, err := export.DecodeDocument([]byte(raw))
	require.NoError(t, err)
	return doc
}

func TestLoadEndToEnd(t *testing.T) {
	db := newTestDB(t)
	res := db.load(t, mustDecode(t, endToEndExport))

	assert.Equal(t, 1, res.Messages)
	assert.Equal(t, 2, res.Participants)

	assert.Equal(t, 2, db.count(t, "participants"))
	assert.Equal(t, 1, db.count(t, "messages"))
	assert.Equal(t, 1, db.count(t, "mentions"), "duplicate mention of the same participant collapses to one link")
	assert.Equal(t, 1, db.count(t, "reactions"))
	assert.Equal(t, 2, db.count(t, "reaction_users"))
	assert.Equal(t, 1, db.count(t, "guild"))
	assert.Equal(t, 1, db.count(t, "channel"))
	assert.Equal(t, 1, db.count(t, "export_info"))
	assert.Equal(t, 1, db.count(t, "date_range"))

	var count int64
	require.NoError(t, db.raw.Get(&count, "SELECT count FROM reactions"))
	assert.Equal(t, int64(2), count)
}

func TestLoadIdempotentForExternalIdentities(t *testing.T) {
	db := newTestDB(t)
	db.load(t, mustDecode(t, endToEndExport))
	db.load(t, mustDecode(t, endToEndExport))

	assert.Equal(t, 2, db.count(t, "participants"))
	assert.Equal(t, 1, db.count(t, "messages"))
	assert.Equal(t, 1, db.count(t, "guild"))
	assert.Equal(t, 1, db.count(t, "channel"))
	assert.Equal(t, 1, db.count(t, "mentions"))

	// Surrogate-keyed children have no identity to dedup against, so a
	// second load appends them again.
	assert.Equal(t, 2, db.count(t, "reactions"))
	assert.Equal(t, 4, db.count(t, "reaction_users"))
}

func TestLoadParticipantLastWriteWins(t *testing.T) {
	db := newTestDB(t)
	db.load(t, mustDecode(t, `{"messages": [
		{
			"id": "m1",
			"author": {"id": "u1", "name": "alice", "nickname": "Ali", "isBot": false}
		},
		{
			"id": "m2",
			"author": {"id": "u2", "name": "bob"},
			"mentions": [{"id": "u1", "name": "alice-renamed", "nickname": null}]
		}
	]}`))

	assert.Equal(t, 2, db.count(t, "participants"))

	var row struct {
		Name     *string `db:"name"`
		Nickname *string `db:"nickname"`
	}
	require.NoError(t, db.raw.Get(&row, "SELECT name, nickname FROM participants WHERE id = 'u1'"))
	require.NotNil(t, row.Name)
	assert.Equal(t, "alice-renamed", *row.Name, "latest sighting's fields win")
	assert.Nil(t, row.Nickname)
}

func TestLoadReferentialIntegrity(t *testing.T) {
	db := newTestDB(t)
	db.load(t, mustDecode(t, endToEndExport))

	var orphans int
	require.NoError(t, db.raw.Get(&orphans, `
		SELECT COUNT(*) FROM messages m
		WHERE m.author_id IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM participants p WHERE p.id = m.author_id)`))
	assert.Equal(t, 0, orphans)

	require.NoError(t, db.raw.Get(&orphans, `
		SELECT COUNT(*) FROM reaction_users ru
		WHERE NOT EXISTS (SELECT 1 FROM reactions r WHERE r.id = ru.reaction_id)
		   OR NOT EXISTS (SELECT 1 FROM participants p WHERE p.id = ru.participant_id)`))
	assert.Equal(t, 0, orphans)
}

func TestLoadSurrogateIDsMonotonic(t *testing.T) {
	db := newTestDB(t)
	db.load(t, mustDecode(t, `{"messages": [
		{
			"id": "m1",
			"embeds": [{"n": 1}, {"n": 2}],
			"inlineEmojis": [{"name": "🎉"}, {"name": "🎈"}],
			"reactions": [{"emoji": {"name": "👍"}, "count": 1}, {"emoji": {"name": "👎"}, "count": 1}]
		},
		{
			"id": "m2",
			"embeds": [{"n": 3}],
			"reactions": [{"emoji": {"name": "👍"}, "count": 1}]
		}
	]}`))

	for _, table := range []string{"embeds", "inline_emojis", "reactions"} {
		var ids []int64
		require.NoError(t, db.raw.Select(&ids, "SELECT id FROM "+table+" ORDER BY rowid"))
		require.NotEmpty(t, ids)
		for i := 1; i < len(ids); i++ {
			assert.Greater(t, ids[i], ids[i-1], "%s ids must strictly increase", table)
		}
	}
}

func TestLoadAuthorlessAndSparseEntities(t *testing.T) {
	db := newTestDB(t)
	res := db.load(t, mustDecode(t, `{"messages": [
		{
			"id": "m1",
			"content": "who wrote this",
			"reactions": [{"emoji": {}, "count": 1, "users": [{"name": "no-id"}]}]
		}
	]}`))

	assert.Equal(t, 1, res.Messages)
	assert.Equal(t, 0, res.Participants)

	var authorID *string
	require.NoError(t, db.raw.Get(&authorID, "SELECT author_id FROM messages WHERE id = 'm1'"))
	assert.Nil(t, authorID)

	// The sparse reaction row is still written, with null emoji fields and
	// no user links.
	assert.Equal(t, 1, db.count(t, "reactions"))
	assert.Equal(t, 0, db.count(t, "reaction_users"))
}

func TestLoadEmptyMessages(t *testing.T) {
	db := newTestDB(t)
	res := db.load(t, mustDecode(t, `{
		"guild": {"id": "g1"},
		"channel": {"id": "c1"},
		"exportedAt": "2024-03-01T12:00:00.000+00:00",
		"messageCount": 0,
		"messages": []
	}`))

	assert.Equal(t, 0, res.Messages)
	assert.Equal(t, 1, db.count(t, "guild"))
	assert.Equal(t, 1, db.count(t, "channel"))
	assert.Equal(t, 1, db.count(t, "export_info"))
	assert.Equal(t, 1, db.count(t, "date_range"))
	assert.Equal(t, 0, db.count(t, "messages"))
}

// failAfter wraps a Writer and fails the nth message write.
type failAfter struct {
	store.Writer
	remaining int
	err       error
}

func (f *failAfter) UpsertMessage(ctx context.Context, m *export.Message, authorID *string) error {
	if f.remaining == 0 {
		return f.err
	}
	f.remaining--
	return f.Writer.UpsertMessage(ctx, m, authorID)
}

func TestLoadFailurePartwayLeavesStoreUnchanged(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	boom := errors.New("disk full")

	doc := mustDecode(t, `{"messages": [
		{"id": "m1", "author": {"id": "u1", "name": "alice"}},
		{"id": "m2", "author": {"id": "u2", "name": "bob"}}
	]}`)

	err := db.store.WithTx(ctx, func(tx *store.Tx) error {
		_, loadErr := loader.Load(ctx, &failAfter{Writer: tx, remaining: 1, err: boom}, doc)
		return loadErr
	})
	require.ErrorIs(t, err, boom)

	for _, table := range []string{"guild", "channel", "participants", "messages"} {
		assert.Equal(t, 0, db.count(t, table), "table %s must be untouched after rollback", table)
	}
}
