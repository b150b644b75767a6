package storage

var pgMigration = []string{
	`CREATE TYPE video_status AS ENUM ('processing', 'ready', 'failed')`,
	`CREATE TABLE video (
id uuid PRIMARY KEY,
youtube_id VARCHAR(20) NOT NULL UNIQUE,
title VARCHAR(500) NOT NULL DEFAULT '',
url VARCHAR(2048) NOT NULL,
summary JSONB,
status video_status NOT NULL DEFAULT 'processing',
provenance VARCHAR(32) NOT NULL DEFAULT '',
created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE transcript_chunk (
id uuid PRIMARY KEY,
video_id uuid NOT NULL REFERENCES video(id) ON DELETE CASCADE,
start_time DOUBLE PRECISION NOT NULL,
end_time DOUBLE PRECISION NOT NULL,
text TEXT NOT NULL,
CHECK (end_time >= start_time)
)`,
	`CREATE INDEX transcript_chunk_video_time ON transcript_chunk (video_id, start_time, end_time)`,
	`CREATE TABLE qa_history (
id uuid PRIMARY KEY,
user_id VARCHAR(255) NOT NULL,
video_id uuid NOT NULL REFERENCES video(id) ON DELETE CASCADE,
video_timestamp DOUBLE PRECISION NOT NULL CHECK (video_timestamp >= 0),
question TEXT NOT NULL,
answer TEXT NOT NULL,
created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX qa_history_user_video_time ON qa_history (user_id, video_id, video_timestamp)`,
}
