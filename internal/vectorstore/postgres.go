package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// PostgresChunkStore persists chunk rows in PostgreSQL for the scan index.
// A BIGSERIAL position column records insertion order; ON CONFLICT updates
// keep the existing position so re-ingesting a knowledge base does not
// reshuffle similarity ties.
type PostgresChunkStore struct {
	pool *pgxpool.Pool
}

// NewPostgresChunkStore connects to PostgreSQL and creates the chunk table
// if it does not exist.
func NewPostgresChunkStore(ctx context.Context, connURL string) (*PostgresChunkStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	s := &PostgresChunkStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}

	log.Info().Msg("Postgres chunk store initialized")
	return s, nil
}

func (s *PostgresChunkStore) migrate(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS ab_chunks (
			position          BIGSERIAL,
			vector_id         TEXT NOT NULL,
			namespace         TEXT NOT NULL,
			knowledge_base_id TEXT NOT NULL DEFAULT '',
			chunk_index       INT NOT NULL DEFAULT 0,
			text              TEXT NOT NULL DEFAULT '',
			embedding         DOUBLE PRECISION[] NOT NULL,
			metadata          JSONB NOT NULL DEFAULT '{}',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (namespace, vector_id)
		);

		CREATE INDEX IF NOT EXISTS idx_ab_chunks_ns ON ab_chunks (namespace, position);
	`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

func (s *PostgresChunkStore) UpsertChunks(ctx context.Context, namespace string, chunks []models.VectorChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO ab_chunks (vector_id, namespace, knowledge_base_id, chunk_index, text, embedding, metadata)
		VALUES `)

	args := make([]any, 0, len(chunks)*7)
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i*7 + 1
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)", base, base+1, base+2, base+3, base+4, base+5, base+6))
		metadata := c.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		args = append(args, c.VectorID, namespace, c.KnowledgeBaseID, c.ChunkIndex, c.Text, c.Embedding, metadata)
	}

	sb.WriteString(` ON CONFLICT (namespace, vector_id) DO UPDATE SET
		knowledge_base_id = EXCLUDED.knowledge_base_id,
		chunk_index = EXCLUDED.chunk_index,
		text = EXCLUDED.text,
		embedding = EXCLUDED.embedding,
		metadata = EXCLUDED.metadata`)

	_, err := s.pool.Exec(ctx, sb.String(), args...)
	return err
}

func (s *PostgresChunkStore) ListChunks(ctx context.Context, namespace string) ([]models.VectorChunk, error) {
	query := `SELECT vector_id, knowledge_base_id, chunk_index, text, embedding, metadata, created_at
		FROM ab_chunks WHERE namespace = $1 ORDER BY position`

	rows, err := s.pool.Query(ctx, query, namespace)
	if err != nil {
		return nil, fmt.Errorf("postgres list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.VectorChunk
	for rows.Next() {
		var c models.VectorChunk
		if err := rows.Scan(&c.VectorID, &c.KnowledgeBaseID, &c.ChunkIndex, &c.Text, &c.Embedding, &c.Metadata, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *PostgresChunkStore) GetChunksByVectorID(ctx context.Context, namespace string, vectorIDs []string) ([]models.VectorChunk, error) {
	if len(vectorIDs) == 0 {
		return nil, nil
	}
	query := `SELECT vector_id, knowledge_base_id, chunk_index, text, embedding, metadata, created_at
		FROM ab_chunks WHERE namespace = $1 AND vector_id = ANY($2) ORDER BY position`

	rows, err := s.pool.Query(ctx, query, namespace, vectorIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres get chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.VectorChunk
	for rows.Next() {
		var c models.VectorChunk
		if err := rows.Scan(&c.VectorID, &c.KnowledgeBaseID, &c.ChunkIndex, &c.Text, &c.Embedding, &c.Metadata, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *PostgresChunkStore) DeleteChunksByVectorID(ctx context.Context, namespace string, vectorIDs []string) error {
	if len(vectorIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, "DELETE FROM ab_chunks WHERE namespace = $1 AND vector_id = ANY($2)", namespace, vectorIDs)
	return err
}

func (s *PostgresChunkStore) DeleteChunkNamespace(ctx context.Context, namespace string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM ab_chunks WHERE namespace = $1", namespace)
	return err
}

func (s *PostgresChunkStore) CountChunks(ctx context.Context, namespace string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ab_chunks WHERE namespace = $1", namespace).Scan(&count)
	return count, err
}

// Ping checks connectivity to PostgreSQL.
func (s *PostgresChunkStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresChunkStore) Close() {
	s.pool.Close()
}
