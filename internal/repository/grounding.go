package repository

import (
	"context"
	"time"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// GroundingChunk is one embedded slice of knowledge content persisted for
// vector similarity search.
type GroundingChunk struct {
	ID          string
	Topic       string
	Title       string
	Content     string
	Reliability float64
	SourceType  domain.SourceType
	Category    string
	ChunkIndex  int
	Embedding   []float32
	CreatedAt   time.Time
}

// GroundingRepository persists embedded knowledge chunks and serves the
// retriever's semantic search path.
type GroundingRepository struct {
	pool *pgxpool.Pool
}

func NewGroundingRepository(pool *pgxpool.Pool) *GroundingRepository {
	return &GroundingRepository{pool: pool}
}

// ReplaceChunks deletes existing chunks for a topic and inserts new ones.
func (r *GroundingRepository) ReplaceChunks(ctx context.Context, topic string, chunks []GroundingChunk) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM grounding_chunks WHERE topic = $1`, topic)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.pool.Exec(ctx,
			`INSERT INTO grounding_chunks
				(id, topic, title, content, reliability, source_type, category, chunk_index, embedding, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			c.ID,
			c.Topic,
			c.Title,
			c.Content,
			c.Reliability,
			string(c.SourceType),
			nullableString(c.Category),
			c.ChunkIndex,
			pgvector.NewVector(c.Embedding),
			createdAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SearchChunks returns the chunks closest to the query embedding as
// grounding sources, scored by cosine distance.
func (r *GroundingRepository) SearchChunks(ctx context.Context, embedding []float32, limit int) ([]domain.GroundingSource, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, title, content, reliability, source_type, category,
		        1.0 / (1.0 + (embedding <=> $1)) AS score
		 FROM grounding_chunks
		 WHERE embedding IS NOT NULL
		 ORDER BY score DESC
		 LIMIT $2`,
		pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []domain.GroundingSource
	for rows.Next() {
		var source domain.GroundingSource
		var sourceType string
		var category *string
		if err := rows.Scan(&source.ID, &source.Title, &source.Content, &source.Reliability, &sourceType, &category, &source.RelevanceScore); err != nil {
			return nil, err
		}
		source.SourceType = domain.SourceType(sourceType)
		if category != nil {
			source.Category = *category
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}
