package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"ewintr.nl/tutorai/model"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

type PostgresInfo struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

type Postgres struct {
	db *sql.DB
}

func NewPostgres(pgInfo PostgresInfo) (*Postgres, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", pgInfo.Host, pgInfo.Port, pgInfo.User, pgInfo.Password, pgInfo.Database)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return &Postgres{}, err
	}
	if err := db.Ping(); err != nil {
		return &Postgres{}, err
	}

	p := &Postgres{db: db}
	if err := p.migrate(pgMigration); err != nil {
		return &Postgres{}, err
	}

	return p, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) migrate(wanted []string) error {
	query := `CREATE TABLE IF NOT EXISTS migration
("id" SERIAL PRIMARY KEY, "query" TEXT)`
	_, err := p.db.Exec(query)
	if err != nil {
		return err
	}

	// find existing
	rows, err := p.db.Query(`SELECT query FROM migration ORDER BY id`)
	if err != nil {
		return err
	}

	existing := []string{}
	for rows.Next() {
		var query string
		if err := rows.Scan(&query); err != nil {
			rows.Close()
			return err
		}
		existing = append(existing, query)
	}
	rows.Close()

	missing, err := compareMigrations(wanted, existing)
	if err != nil {
		return err
	}

	for _, query := range missing {
		if _, err := p.db.Exec(query); err != nil {
			return fmt.Errorf("migration %q: %w", query, err)
		}

		// register
		if _, err := p.db.Exec(`
INSERT INTO migration
(query) VALUES ($1)
`, query); err != nil {
			return err
		}
	}

	return nil
}

func compareMigrations(wanted, existing []string) ([]string, error) {
	needed := []string{}
	if len(wanted) < len(existing) {
		return []string{}, fmt.Errorf("not enough migrations")
	}

	for i, want := range wanted {
		switch {
		case i >= len(existing):
			needed = append(needed, want)
		case want == existing[i]:
			// do nothing
		case want != existing[i]:
			return []string{}, fmt.Errorf("incompatible migration: %v", want)
		}
	}

	return needed, nil
}

type PostgresVideoRepository struct {
	*Postgres
}

func NewPostgresVideoRepository(postgres *Postgres) *PostgresVideoRepository {
	return &PostgresVideoRepository{postgres}
}

const videoColumns = `id, youtube_id, title, url, summary, status, provenance, created_at`

func (p *PostgresVideoRepository) Create(ctx context.Context, video *model.Video) error {
	summary, err := marshalSummary(video.Summary)
	if err != nil {
		return err
	}
	query := `INSERT INTO video (` + videoColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = p.db.ExecContext(ctx, query, video.ID, video.YoutubeID, video.Title, video.URL, summary, video.Status, video.Provenance, video.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrAlreadyExists
	}

	return err
}

func (p *PostgresVideoRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM video WHERE id = $1`, id)
	return scanVideo(row)
}

func (p *PostgresVideoRepository) FindByYoutubeID(ctx context.Context, ytID model.YoutubeVideoID) (*model.Video, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM video WHERE youtube_id = $1`, ytID)
	return scanVideo(row)
}

func (p *PostgresVideoRepository) FindByStatus(ctx context.Context, statuses ...model.VideoStatus) ([]*model.Video, error) {
	strStatuses := make([]string, len(statuses))
	for i, s := range statuses {
		strStatuses[i] = string(s)
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+videoColumns+` FROM video WHERE status::text = ANY($1) ORDER BY created_at`, pq.Array(strStatuses))
	if err != nil {
		return []*model.Video{}, err
	}
	defer rows.Close()

	videos := []*model.Video{}
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return []*model.Video{}, err
		}
		videos = append(videos, video)
	}

	return videos, rows.Err()
}

func (p *PostgresVideoRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.VideoStatus) error {
	if err := checkTransition(from, to); err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE video SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return err
	}

	return p.expectOne(ctx, res, id)
}

func (p *PostgresVideoRepository) Complete(ctx context.Context, id uuid.UUID, summary model.Summary, provenance model.Provenance) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE video SET summary = $1, provenance = $2, status = $3 WHERE id = $4 AND status = $5`,
		body, provenance, model.StatusReady, id, model.StatusProcessing)
	if err != nil {
		return err
	}

	return p.expectOne(ctx, res, id)
}

// expectOne tells apart a missing video from one whose status moved on.
func (p *PostgresVideoRepository) expectOne(ctx context.Context, res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := p.FindByID(ctx, id); err != nil {
		return err
	}

	return ErrStatusConflict
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVideo(row scanner) (*model.Video, error) {
	var (
		video   model.Video
		summary []byte
	)
	err := row.Scan(&video.ID, &video.YoutubeID, &video.Title, &video.URL, &summary, &video.Status, &video.Provenance, &video.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(summary) > 0 {
		var s model.Summary
		if err := json.Unmarshal(summary, &s); err != nil {
			return nil, fmt.Errorf("could not unmarshal summary of video %s: %w", video.ID, err)
		}
		video.Summary = &s
	}

	return &video, nil
}

func marshalSummary(s *model.Summary) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

type PostgresChunkRepository struct {
	*Postgres
}

func NewPostgresChunkRepository(postgres *Postgres) *PostgresChunkRepository {
	return &PostgresChunkRepository{postgres}
}

// SaveBatch inserts all chunks of a video in a single COPY inside one
// transaction, so a failed run never leaves a partial transcript behind.
func (p *PostgresChunkRepository) SaveBatch(ctx context.Context, videoID uuid.UUID, chunks []model.Chunk) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := copyChunks(ctx, tx, videoID, chunks); err != nil {
		return err
	}

	return tx.Commit()
}

// ReplaceBatch swaps the stored transcript of a video for chunks in one
// transaction.
func (p *PostgresChunkRepository) ReplaceBatch(ctx context.Context, videoID uuid.UUID, chunks []model.Chunk) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_chunk WHERE video_id = $1`, videoID); err != nil {
		return err
	}
	if err := copyChunks(ctx, tx, videoID, chunks); err != nil {
		return err
	}

	return tx.Commit()
}

func copyChunks(ctx context.Context, tx *sql.Tx, videoID uuid.UUID, chunks []model.Chunk) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("transcript_chunk", "id", "video_id", "start_time", "end_time", "text"))
	if err != nil {
		return err
	}
	for _, c := range chunks {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if _, err := stmt.ExecContext(ctx, id, videoID, c.StartTime, c.EndTime, c.Text); err != nil {
			stmt.Close()
			return err
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return err
	}

	return stmt.Close()
}

func (p *PostgresChunkRepository) DeleteByVideo(ctx context.Context, videoID uuid.UUID) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM transcript_chunk WHERE video_id = $1`, videoID)
	return err
}

func (p *PostgresChunkRepository) FindByVideo(ctx context.Context, videoID uuid.UUID) ([]model.Chunk, error) {
	return p.queryChunks(ctx, `SELECT id, video_id, start_time, end_time, text FROM transcript_chunk
WHERE video_id = $1 ORDER BY start_time`, videoID)
}

func (p *PostgresChunkRepository) FindInWindow(ctx context.Context, videoID uuid.UUID, start, end float64) ([]model.Chunk, error) {
	return p.queryChunks(ctx, `SELECT id, video_id, start_time, end_time, text FROM transcript_chunk
WHERE video_id = $1 AND end_time >= $2 AND start_time <= $3 ORDER BY start_time`, videoID, start, end)
}

func (p *PostgresChunkRepository) queryChunks(ctx context.Context, query string, args ...any) ([]model.Chunk, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return []model.Chunk{}, err
	}
	defer rows.Close()

	chunks := []model.Chunk{}
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(&c.ID, &c.VideoID, &c.StartTime, &c.EndTime, &c.Text); err != nil {
			return []model.Chunk{}, err
		}
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

type PostgresQARepository struct {
	*Postgres
}

func NewPostgresQARepository(postgres *Postgres) *PostgresQARepository {
	return &PostgresQARepository{postgres}
}

func (p *PostgresQARepository) Append(ctx context.Context, entry *model.QAEntry) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO qa_history
(id, user_id, video_id, video_timestamp, question, answer, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.UserID, entry.VideoID, entry.VideoTimestamp, entry.Question, entry.Answer, entry.CreatedAt)

	return err
}

func (p *PostgresQARepository) FindByUserVideo(ctx context.Context, userID string, videoID uuid.UUID) ([]*model.QAEntry, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, user_id, video_id, video_timestamp, question, answer, created_at
FROM qa_history WHERE user_id = $1 AND video_id = $2 ORDER BY created_at`, userID, videoID)
	if err != nil {
		return []*model.QAEntry{}, err
	}
	defer rows.Close()

	entries := []*model.QAEntry{}
	for rows.Next() {
		var e model.QAEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.VideoID, &e.VideoTimestamp, &e.Question, &e.Answer, &e.CreatedAt); err != nil {
			return []*model.QAEntry{}, err
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
