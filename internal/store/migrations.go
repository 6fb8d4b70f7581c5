package store

const schema = `
CREATE TABLE IF NOT EXISTS writeups (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    title        TEXT NOT NULL,
    link         TEXT NOT NULL UNIQUE,
    published_at DATETIME,
    added_at     DATETIME,
    bounty       TEXT,
    source       TEXT NOT NULL DEFAULT 'pentesterland',
    severity     TEXT NOT NULL DEFAULT 'none',
    summary      TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL,
    updated_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_writeups_source ON writeups(source);
CREATE INDEX IF NOT EXISTS idx_writeups_severity ON writeups(severity);
CREATE INDEX IF NOT EXISTS idx_writeups_published_at ON writeups(published_at);
CREATE INDEX IF NOT EXISTS idx_writeups_added_at ON writeups(added_at);

CREATE TABLE IF NOT EXISTS authors (
    id   INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS programs (
    id   INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS bugs (
    id   INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS writeup_authors (
    writeup_id INTEGER NOT NULL REFERENCES writeups(id),
    author_id  INTEGER NOT NULL REFERENCES authors(id),
    PRIMARY KEY (writeup_id, author_id)
);

CREATE TABLE IF NOT EXISTS writeup_programs (
    writeup_id INTEGER NOT NULL REFERENCES writeups(id),
    program_id INTEGER NOT NULL REFERENCES programs(id),
    PRIMARY KEY (writeup_id, program_id)
);

CREATE TABLE IF NOT EXISTS writeup_bugs (
    writeup_id INTEGER NOT NULL REFERENCES writeups(id),
    bug_id     INTEGER NOT NULL REFERENCES bugs(id),
    PRIMARY KEY (writeup_id, bug_id)
);

CREATE TABLE IF NOT EXISTS notes (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id    TEXT NOT NULL,
    writeup_id INTEGER NOT NULL REFERENCES writeups(id),
    note       TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    UNIQUE (user_id, writeup_id)
);

CREATE TABLE IF NOT EXISTS reads (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id    TEXT NOT NULL,
    writeup_id INTEGER NOT NULL REFERENCES writeups(id),
    read_at    DATETIME NOT NULL,
    UNIQUE (user_id, writeup_id)
);

CREATE INDEX IF NOT EXISTS idx_notes_user ON notes(user_id);
CREATE INDEX IF NOT EXISTS idx_reads_user ON reads(user_id);
`
