package repository

import (
	"context"

	"oxicrm_backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opTemplateCreate     = "email_template.create"
	opTemplateFindByID   = "email_template.find_by_id"
	opTemplateFindByName = "email_template.find_by_name"
)

const templateColumns = `id, workspace_id, name, subject, body_text, body_html, category, created_at, updated_at`

// TemplateRepo stores email templates in Postgres.
type TemplateRepo struct {
	pool *pgxpool.Pool
}

func NewTemplateRepo(pool *pgxpool.Pool) *TemplateRepo {
	return &TemplateRepo{pool: pool}
}

func (r *TemplateRepo) FindByID(ctx context.Context, id uuid.UUID) (domain.EmailTemplate, error) {
	if r == nil || r.pool == nil {
		return domain.EmailTemplate{}, notConfigured(opTemplateFindByID)
	}
	row := r.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM email_templates WHERE id = $1`, id)
	tpl, err := scanTemplate(row)
	return tpl, mapError(opTemplateFindByID, "email template", err)
}

func (r *TemplateRepo) FindByName(ctx context.Context, workspaceID uuid.UUID, name string) (domain.EmailTemplate, error) {
	if r == nil || r.pool == nil {
		return domain.EmailTemplate{}, notConfigured(opTemplateFindByName)
	}
	row := r.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM email_templates
		WHERE workspace_id = $1 AND name = $2`, workspaceID, name)
	tpl, err := scanTemplate(row)
	return tpl, mapError(opTemplateFindByName, "email template", err)
}

func (r *TemplateRepo) Create(ctx context.Context, tpl domain.EmailTemplate) error {
	if r == nil || r.pool == nil {
		return notConfigured(opTemplateCreate)
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO email_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tpl.ID, tpl.WorkspaceID, tpl.Name, tpl.Subject, tpl.BodyText, tpl.BodyHTML, tpl.Category, tpl.CreatedAt, tpl.UpdatedAt,
	)
	return mapError(opTemplateCreate, "email template", err)
}

func scanTemplate(row pgx.Row) (domain.EmailTemplate, error) {
	var tpl domain.EmailTemplate
	err := row.Scan(&tpl.ID, &tpl.WorkspaceID, &tpl.Name, &tpl.Subject, &tpl.BodyText, &tpl.BodyHTML, &tpl.Category, &tpl.CreatedAt, &tpl.UpdatedAt)
	return tpl, err
}
