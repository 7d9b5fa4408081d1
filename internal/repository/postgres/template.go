package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lalith-99/notifyhub/internal/models"
	"github.com/lalith-99/notifyhub/internal/repository"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

type TemplateStore struct {
	db DB
}

func NewTemplateStore(db DB) *TemplateStore {
	return &TemplateStore{db: db}
}

var _ repository.TemplateRepository = (*TemplateStore)(nil)

func (s *TemplateStore) ensureTable(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS templates (
			template_id serial PRIMARY KEY,
			template_name text UNIQUE NOT NULL,
			message_title text NOT NULL,
			message_content text NOT NULL,
			template_use_count integer NOT NULL DEFAULT 0,
			created_at timestamptz NOT NULL DEFAULT now(),
			modified_at timestamptz NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create templates table: %w", err)
	}
	return nil
}

func (s *TemplateStore) Create(ctx context.Context, name, title, content string) (*models.Template, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}

	var t models.Template
	err := s.db.QueryRow(ctx, `
		INSERT INTO templates (template_name, message_title, message_content)
		VALUES ($1, $2, $3)
		RETURNING template_id, template_name, message_title, message_content,
		          template_use_count, created_at, modified_at`,
		name, title, content).Scan(
		&t.ID,
		&t.Name,
		&t.MessageTitle,
		&t.MessageContent,
		&t.UseCount,
		&t.CreatedAt,
		&t.ModifiedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %q", repository.ErrDuplicateTemplate, name)
		}
		return nil, fmt.Errorf("insert template: %w", err)
	}
	return &t, nil
}

func (s *TemplateStore) List(ctx context.Context, limit int) ([]models.Template, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT template_id, template_name, message_title, message_content,
		       template_use_count, created_at, modified_at
		FROM templates
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	templates := make([]models.Template, 0)
	for rows.Next() {
		var t models.Template
		if err := rows.Scan(
			&t.ID,
			&t.Name,
			&t.MessageTitle,
			&t.MessageContent,
			&t.UseCount,
			&t.CreatedAt,
			&t.ModifiedAt,
		); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return templates, nil
}
