package store

const schema = `
CREATE TABLE IF NOT EXISTS guild (
    id       TEXT PRIMARY KEY,
    name     TEXT,
    icon_url TEXT
);

CREATE TABLE IF NOT EXISTS channel (
    id          TEXT PRIMARY KEY,
    type        TEXT,
    category_id TEXT,
    category    TEXT,
    name        TEXT,
    topic       TEXT,
    icon_url    TEXT
);

CREATE TABLE IF NOT EXISTS export_info (
    id            INTEGER PRIMARY KEY CHECK(id = 1),
    exported_at   TEXT,
    message_count INTEGER
);

CREATE TABLE IF NOT EXISTS date_range (
    id     INTEGER PRIMARY KEY CHECK(id = 1),
    after  TEXT,
    before TEXT
);

CREATE TABLE IF NOT EXISTS participants (
    id            TEXT PRIMARY KEY,
    name          TEXT,
    discriminator TEXT,
    nickname      TEXT,
    color         TEXT,
    is_bot        INTEGER,
    avatar_url    TEXT
);

CREATE TABLE IF NOT EXISTS messages (
    id                   TEXT PRIMARY KEY,
    type                 TEXT,
    timestamp            TEXT,
    timestamp_edited     TEXT,
    call_ended_timestamp TEXT,
    is_pinned            INTEGER,
    content              TEXT,
    author_id            TEXT,
    FOREIGN KEY(author_id) REFERENCES participants(id)
);

CREATE TABLE IF NOT EXISTS mentions (
    message_id     TEXT,
    participant_id TEXT,
    PRIMARY KEY (message_id, participant_id),
    FOREIGN KEY(message_id) REFERENCES messages(id),
    FOREIGN KEY(participant_id) REFERENCES participants(id)
);

CREATE TABLE IF NOT EXISTS attachments (
    id              TEXT PRIMARY KEY,
    message_id      TEXT,
    url             TEXT,
    file_name       TEXT,
    file_size_bytes INTEGER,
    FOREIGN KEY(message_id) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS embeds (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id TEXT,
    raw_json   TEXT,
    FOREIGN KEY(message_id) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS stickers (
    id         TEXT PRIMARY KEY,
    message_id TEXT,
    name       TEXT,
    format     TEXT,
    source_url TEXT,
    FOREIGN KEY(message_id) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS inline_emojis (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id  TEXT,
    emoji_id    TEXT,
    name        TEXT,
    code        TEXT,
    is_animated INTEGER,
    image_url   TEXT,
    FOREIGN KEY(message_id) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS reactions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id  TEXT,
    emoji_id    TEXT,
    name        TEXT,
    code        TEXT,
    is_animated INTEGER,
    image_url   TEXT,
    count       INTEGER,
    FOREIGN KEY(message_id) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS reaction_users (
    reaction_id    INTEGER,
    participant_id TEXT,
    PRIMARY KEY (reaction_id, participant_id),
    FOREIGN KEY(reaction_id) REFERENCES reactions(id),
    FOREIGN KEY(participant_id) REFERENCES participants(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_author ON messages(author_id);
CREATE INDEX IF NOT EXISTS idx_attachments_message ON attachments(message_id);
CREATE INDEX IF NOT EXISTS idx_embeds_message ON embeds(message_id);
CREATE INDEX IF NOT EXISTS idx_stickers_message ON stickers(message_id);
CREATE INDEX IF NOT EXISTS idx_inline_emojis_message ON inline_emojis(message_id);
CREATE INDEX IF NOT EXISTS idx_reactions_message ON reactions(message_id);
`
