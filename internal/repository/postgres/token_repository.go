package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	qErrors "github.com/vogiaan1904/tablequeue/internal/errors"
	"github.com/vogiaan1904/tablequeue/internal/models"
	"github.com/vogiaan1904/tablequeue/internal/repository"
	"github.com/vogiaan1904/tablequeue/pkg/logger"
)

const uniqueViolation = "23505"

const tokenColumns = `id::text, org_id, name, phone, people_count, token_number, status,
	to_char(service_date, 'YYYY-MM-DD'), service_tag, created_at`

type tokenRepository struct {
	pool *pgxpool.Pool
	l    logger.Logger
}

func NewTokenRepository(pool *pgxpool.Pool, l logger.Logger) repository.TokenRepository {
	return &tokenRepository{
		pool: pool,
		l:    l,
	}
}

func (r *tokenRepository) MaxTokenNumber(ctx context.Context, p models.Partition) (int64, error) {
	var max int64
	err := r.pool.QueryRow(ctx, `
		SELECT token_number FROM queue_tokens
		WHERE org_id = $1 AND service_date = $2::date AND service_tag = $3
		ORDER BY token_number DESC
		LIMIT 1
	`, p.OrgID, p.ServiceDate, string(p.ServicePeriod)).Scan(&max)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		r.l.Errorf(ctx, "postgres.tokenRepository.MaxTokenNumber: %v", err)
		return 0, err
	}
	return max, nil
}

func (r *tokenRepository) Insert(ctx context.Context, t models.NewToken) (models.QueueToken, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO queue_tokens (
			id, org_id, name, phone, people_count, token_number, status, service_date, service_tag
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8::date,$9)
		RETURNING `+tokenColumns,
		uuid.NewString(), t.OrgID, t.Name, t.Phone, t.PartySize, t.TokenNumber,
		string(models.StatusWaiting), t.ServiceDate, string(t.ServicePeriod))

	tok, err := scanToken(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			r.l.Warnf(ctx, "postgres.tokenRepository.Insert: token %d taken in %s", t.TokenNumber, t.Partition)
			return models.QueueToken{}, qErrors.ErrTokenNumberConflict
		}
		r.l.Errorf(ctx, "postgres.tokenRepository.Insert: %v", err)
		return models.QueueToken{}, err
	}
	return tok, nil
}

func (r *tokenRepository) ListWaitingNumbers(ctx context.Context, p models.Partition) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT token_number FROM queue_tokens
		WHERE org_id = $1 AND service_date = $2::date AND service_tag = $3 AND status = $4
		ORDER BY token_number ASC
	`, p.OrgID, p.ServiceDate, string(p.ServicePeriod), string(models.StatusWaiting))
	if err != nil {
		r.l.Errorf(ctx, "postgres.tokenRepository.ListWaitingNumbers: %v", err)
		return nil, err
	}

	numbers, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		r.l.Errorf(ctx, "postgres.tokenRepository.ListWaitingNumbers: %v", err)
		return nil, err
	}
	return numbers, nil
}

func (r *tokenRepository) Get(ctx context.Context, id string) (models.QueueToken, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM queue_tokens WHERE id::text = $1`, id)
	tok, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueToken{}, qErrors.ErrTokenNotFound
		}
		r.l.Errorf(ctx, "postgres.tokenRepository.Get: %v", err)
		return models.QueueToken{}, err
	}
	return tok, nil
}

func (r *tokenRepository) ListWaiting(ctx context.Context, p models.Partition) ([]models.QueueToken, error) {
	return r.ListByStatus(ctx, p, models.StatusWaiting)
}

func (r *tokenRepository) ListByStatus(ctx context.Context, p models.Partition, status models.Status) ([]models.QueueToken, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+tokenColumns+` FROM queue_tokens
		WHERE org_id = $1 AND service_date = $2::date AND service_tag = $3 AND status = $4
		ORDER BY token_number ASC
	`, p.OrgID, p.ServiceDate, string(p.ServicePeriod), string(status))
	if err != nil {
		r.l.Errorf(ctx, "postgres.tokenRepository.ListByStatus: %v", err)
		return nil, err
	}
	defer rows.Close()

	var tokens []models.QueueToken
	for rows.Next() {
		tok, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	if err := rows.Err(); err != nil {
		r.l.Errorf(ctx, "postgres.tokenRepository.ListByStatus: %v", err)
		return nil, err
	}
	return tokens, nil
}

func (r *tokenRepository) UpdateStatus(ctx context.Context, id string, status models.Status) (models.QueueToken, error) {
	if !status.Valid() {
		return models.QueueToken{}, fmt.Errorf("%w: %s", qErrors.ErrInvalidStatus, status)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE queue_tokens SET status = $2 WHERE id::text = $1
		RETURNING `+tokenColumns, id, string(status))
	tok, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueToken{}, qErrors.ErrTokenNotFound
		}
		r.l.Errorf(ctx, "postgres.tokenRepository.UpdateStatus: %v", err)
		return models.QueueToken{}, err
	}
	return tok, nil
}

func scanToken(row pgx.Row) (models.QueueToken, error) {
	var (
		tok            models.QueueToken
		status, period string
	)
	if err := row.Scan(
		&tok.ID, &tok.OrgID, &tok.Name, &tok.Phone, &tok.PartySize, &tok.TokenNumber,
		&status, &tok.ServiceDate, &period, &tok.CreatedAt,
	); err != nil {
		return models.QueueToken{}, err
	}
	tok.Status = models.Status(status)
	tok.ServicePeriod = models.ServicePeriod(period)
	return tok, nil
}
