package db

type migration struct {
	name string
	sql  string
}

// Timestamps are stored as unix milliseconds (see Millis).
var migrations = []migration{
	{
		name: "create users table",
		sql: `
			CREATE TABLE IF NOT EXISTS users (
				user_id INTEGER PRIMARY KEY,
				display_name TEXT NOT NULL DEFAULT '',
				points INTEGER NOT NULL DEFAULT 100,
				level INTEGER NOT NULL DEFAULT 1,
				warnings INTEGER NOT NULL DEFAULT 0,
				is_banned BOOLEAN NOT NULL DEFAULT 0,
				total_games INTEGER NOT NULL DEFAULT 0,
				total_wins INTEGER NOT NULL DEFAULT 0,
				joined_at INTEGER NOT NULL,
				last_active_at INTEGER NOT NULL
			)
		`,
	},
	{
		name: "create credentials table",
		sql: `
			CREATE TABLE IF NOT EXISTS credentials (
				handle TEXT PRIMARY KEY COLLATE NOCASE,
				user_id INTEGER NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				created_at INTEGER NOT NULL
			)
		`,
	},
	{
		name: "create points history table",
		sql: `
			CREATE TABLE IF NOT EXISTS points_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE RESTRICT,
				delta INTEGER NOT NULL,
				reason TEXT NOT NULL,
				balance_after INTEGER NOT NULL,
				created_at INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_points_history_user ON points_history(user_id, id);
		`,
	},
	{
		name: "create moderation tables",
		sql: `
			CREATE TABLE IF NOT EXISTS admins (
				user_id INTEGER PRIMARY KEY,
				admin_level TEXT NOT NULL,
				added_by INTEGER NOT NULL,
				added_at INTEGER NOT NULL,
				permissions TEXT NOT NULL DEFAULT '[]'
			);
			CREATE TABLE IF NOT EXISTS bans (
				user_id INTEGER PRIMARY KEY,
				banned_by INTEGER NOT NULL,
				reason TEXT NOT NULL DEFAULT '',
				banned_at INTEGER NOT NULL,
				expires_at INTEGER
			);
			CREATE TABLE IF NOT EXISTS warnings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				warned_by INTEGER NOT NULL,
				reason TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_warnings_user ON warnings(user_id);
			CREATE TABLE IF NOT EXISTS banned_words (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				word TEXT UNIQUE NOT NULL,
				added_by INTEGER NOT NULL,
				added_at INTEGER NOT NULL
			);
		`,
	},
	{
		name: "create todos table",
		sql: `
			CREATE TABLE IF NOT EXISTS todos (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				task TEXT NOT NULL,
				completed BOOLEAN NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL,
				completed_at INTEGER
			);
			CREATE INDEX IF NOT EXISTS idx_todos_user ON todos(user_id, completed);
		`,
	},
	{
		name: "create reminders table",
		sql: `
			CREATE TABLE IF NOT EXISTS reminders (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				channel_id INTEGER NOT NULL,
				text TEXT NOT NULL,
				fire_at INTEGER NOT NULL,
				created_at INTEGER NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending'
			);
			CREATE INDEX IF NOT EXISTS idx_reminders_status ON reminders(status, fire_at);
		`,
	},
	{
		name: "create game stats table",
		sql: `
			CREATE TABLE IF NOT EXISTS game_stats (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				game_name TEXT NOT NULL,
				games_played INTEGER NOT NULL DEFAULT 0,
				games_won INTEGER NOT NULL DEFAULT 0,
				high_score INTEGER NOT NULL DEFAULT 0,
				UNIQUE(user_id, game_name)
			)
		`,
	},
	{
		name: "create arcade settings",
		sql: `
			CREATE TABLE IF NOT EXISTS arcade_settings (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				name TEXT NOT NULL,
				operator TEXT NOT NULL,
				max_nodes INTEGER NOT NULL
			);
			INSERT OR IGNORE INTO arcade_settings (id, name, operator, max_nodes)
			VALUES (1, 'Twilight Arcade', 'Operator', 50);
		`,
	},
	{
		name: "add arcade welcome message",
		sql: `
			ALTER TABLE arcade_settings ADD COLUMN welcome TEXT NOT NULL DEFAULT '';
		`,
	},
}
