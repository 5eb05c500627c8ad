package postgres

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id             BIGSERIAL PRIMARY KEY,
	username       TEXT NOT NULL,
	password_hash  BYTEA NOT NULL,
	password_salt  BYTEA NOT NULL,
	gender         TEXT NOT NULL DEFAULT '',
	date_of_birth  TIMESTAMPTZ NOT NULL,
	known_as       TEXT NOT NULL DEFAULT '',
	introduction   TEXT NOT NULL DEFAULT '',
	looking_for    TEXT NOT NULL DEFAULT '',
	interests      TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	country        TEXT NOT NULL DEFAULT '',
	created        TIMESTAMPTZ NOT NULL,
	last_active    TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS users_username_lower_idx ON users (lower(username));

CREATE TABLE IF NOT EXISTS user_roles (
	user_id    BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	role_name  TEXT NOT NULL,
	PRIMARY KEY (user_id, role_name)
);

CREATE TABLE IF NOT EXISTS photos (
	id           BIGSERIAL PRIMARY KEY,
	user_id      BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	url          TEXT NOT NULL,
	public_id    TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	date_added   TIMESTAMPTZ NOT NULL,
	is_main      BOOLEAN NOT NULL DEFAULT FALSE,
	is_approved  BOOLEAN NOT NULL DEFAULT FALSE,
	version      BIGINT NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS photos_user_idx ON photos (user_id);

CREATE TABLE IF NOT EXISTS likes (
	liker_id  BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	likee_id  BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	PRIMARY KEY (liker_id, likee_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id                 BIGSERIAL PRIMARY KEY,
	sender_id          BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	recipient_id       BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	content            TEXT NOT NULL,
	is_read            BOOLEAN NOT NULL DEFAULT FALSE,
	date_read          TIMESTAMPTZ,
	message_sent       TIMESTAMPTZ NOT NULL,
	sender_deleted     BOOLEAN NOT NULL DEFAULT FALSE,
	recipient_deleted  BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS messages_recipient_idx ON messages (recipient_id);
CREATE INDEX IF NOT EXISTS messages_sender_idx ON messages (sender_id);
`

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
