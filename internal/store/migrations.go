package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create calls and transcripts",
		SQL: `
			CREATE TABLE calls (
				id                 TEXT PRIMARY KEY,
				voice_call_id      TEXT,
				telephony_call_id  TEXT,
				phone              TEXT NOT NULL,
				direction          TEXT NOT NULL DEFAULT '',
				status             TEXT NOT NULL DEFAULT 'pending',
				duration_seconds   INTEGER NOT NULL DEFAULT 0,
				recording_url      TEXT NOT NULL DEFAULT '',
				language           TEXT NOT NULL DEFAULT '',
				started_at         TEXT NOT NULL,
				ended_at           TEXT,
				updated_at         TEXT NOT NULL DEFAULT (datetime('now'))
			);

			-- Each external correlation key may belong to at most one call.
			-- Partial indexes so NULL (key not yet known) stays repeatable.
			CREATE UNIQUE INDEX idx_calls_voice_id
				ON calls (voice_call_id) WHERE voice_call_id IS NOT NULL;
			CREATE UNIQUE INDEX idx_calls_telephony_id
				ON calls (telephony_call_id) WHERE telephony_call_id IS NOT NULL;
			CREATE INDEX idx_calls_phone ON calls (phone);

			CREATE TABLE call_transcripts (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				call_id     TEXT NOT NULL REFERENCES calls(id) ON DELETE CASCADE,
				text        TEXT NOT NULL,
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_transcripts_call ON call_transcripts (call_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "create pending confirmations",
		SQL: `
			CREATE TABLE pending_confirmations (
				order_id        TEXT PRIMARY KEY,
				customer_phone  TEXT NOT NULL,
				items_summary   TEXT NOT NULL DEFAULT '',
				total_amount    REAL NOT NULL DEFAULT 0,
				expires_at      TEXT NOT NULL,
				created_at      TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_confirmations_phone ON pending_confirmations (customer_phone);
		`,
	},
	{
		Version: 3,
		Name:    "create conversation archive",
		SQL: `
			CREATE TABLE turns (
				id                INTEGER PRIMARY KEY AUTOINCREMENT,
				conversation_key  TEXT NOT NULL,
				role              TEXT NOT NULL,
				content           TEXT NOT NULL,
				created_at        TEXT NOT NULL
			);

			CREATE INDEX idx_turns_conversation ON turns (conversation_key, id);
		`,
	},
}
