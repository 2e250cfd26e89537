package repository

import (
	"context"
	"fmt"

	"oxicrm_backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opEmailCreate       = "email.create"
	opEmailUpdate       = "email.update"
	opEmailFindByID     = "email.find_by_id"
	opEmailFindByStatus = "email.find_by_status"
)

const emailColumns = `id, workspace_id, direction, status, from_email, to_email, cc_emails, bcc_emails,
	subject, body_text, body_html, sent_at, failed_at, error_message, email_template_id,
	timeline_activity_id, person_id, company_id, opportunity_id, task_id, workflow_id,
	workflow_run_id, metadata, created_at, updated_at`

// EmailRepo stores emails in Postgres.
type EmailRepo struct {
	pool *pgxpool.Pool
}

func NewEmailRepo(pool *pgxpool.Pool) *EmailRepo {
	return &EmailRepo{pool: pool}
}

func (r *EmailRepo) Create(ctx context.Context, e domain.Email) error {
	if r == nil || r.pool == nil {
		return notConfigured(opEmailCreate)
	}
	args, err := emailArgs(e)
	if err != nil {
		return mapError(opEmailCreate, "email", err)
	}

	_, err = r.pool.Exec(ctx, `INSERT INTO emails (`+emailColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		args...,
	)
	return mapError(opEmailCreate, "email", err)
}

func (r *EmailRepo) Update(ctx context.Context, e domain.Email) error {
	if r == nil || r.pool == nil {
		return notConfigured(opEmailUpdate)
	}
	args, err := emailArgs(e)
	if err != nil {
		return mapError(opEmailUpdate, "email", err)
	}

	tag, err := r.pool.Exec(ctx, `UPDATE emails SET
			workspace_id = $2, direction = $3, status = $4, from_email = $5, to_email = $6,
			cc_emails = $7, bcc_emails = $8, subject = $9, body_text = $10, body_html = $11,
			sent_at = $12, failed_at = $13, error_message = $14, email_template_id = $15,
			timeline_activity_id = $16, person_id = $17, company_id = $18, opportunity_id = $19,
			task_id = $20, workflow_id = $21, workflow_run_id = $22, metadata = $23,
			created_at = $24, updated_at = $25
		WHERE id = $1`,
		args...,
	)
	if err != nil {
		return mapError(opEmailUpdate, "email", err)
	}
	if tag.RowsAffected() == 0 {
		return mapError(opEmailUpdate, "email", pgx.ErrNoRows)
	}
	return nil
}

func (r *EmailRepo) FindByID(ctx context.Context, id uuid.UUID) (domain.Email, error) {
	if r == nil || r.pool == nil {
		return domain.Email{}, notConfigured(opEmailFindByID)
	}
	row := r.pool.QueryRow(ctx, `SELECT `+emailColumns+` FROM emails WHERE id = $1`, id)
	e, err := scanEmail(row)
	if err != nil {
		return domain.Email{}, mapError(opEmailFindByID, "email", err)
	}
	return e, nil
}

// FindPending returns every outbound email still waiting for a send attempt,
// oldest first.
func (r *EmailRepo) FindPending(ctx context.Context) ([]domain.Email, error) {
	return r.FindByStatus(ctx, domain.EmailStatusPending)
}

func (r *EmailRepo) FindByStatus(ctx context.Context, status domain.EmailStatus) ([]domain.Email, error) {
	if r == nil || r.pool == nil {
		return nil, notConfigured(opEmailFindByStatus)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+emailColumns+` FROM emails
		WHERE status = $1
		ORDER BY created_at ASC, id ASC`, string(status))
	if err != nil {
		return nil, mapError(opEmailFindByStatus, "email", err)
	}
	defer rows.Close()

	var out []domain.Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, mapError(opEmailFindByStatus, "email", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(opEmailFindByStatus, "email", err)
	}
	return out, nil
}

func emailArgs(e domain.Email) ([]any, error) {
	cc, err := encodeJSON(e.CcEmails, len(e.CcEmails) == 0)
	if err != nil {
		return nil, fmt.Errorf("encode cc_emails: %w", err)
	}
	bcc, err := encodeJSON(e.BccEmails, len(e.BccEmails) == 0)
	if err != nil {
		return nil, fmt.Errorf("encode bcc_emails: %w", err)
	}
	metadata, err := encodeJSON(e.Metadata, len(e.Metadata) == 0)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return []any{
		e.ID, e.WorkspaceID, string(e.Direction), string(e.Status), e.FromEmail, e.ToEmail,
		cc, bcc, e.Subject, e.BodyText, e.BodyHTML, e.SentAt, e.FailedAt, e.ErrorMessage,
		e.EmailTemplateID, e.TimelineActivityID, e.PersonID, e.CompanyID, e.OpportunityID,
		e.TaskID, e.WorkflowID, e.WorkflowRunID, metadata, e.CreatedAt, e.UpdatedAt,
	}, nil
}

func scanEmail(row pgx.Row) (domain.Email, error) {
	var (
		e                    domain.Email
		direction, status    string
		cc, bcc, metadataRaw []byte
	)
	err := row.Scan(
		&e.ID, &e.WorkspaceID, &direction, &status, &e.FromEmail, &e.ToEmail,
		&cc, &bcc, &e.Subject, &e.BodyText, &e.BodyHTML, &e.SentAt, &e.FailedAt, &e.ErrorMessage,
		&e.EmailTemplateID, &e.TimelineActivityID, &e.PersonID, &e.CompanyID, &e.OpportunityID,
		&e.TaskID, &e.WorkflowID, &e.WorkflowRunID, &metadataRaw, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return domain.Email{}, err
	}

	e.Direction = domain.ParseEmailDirection(direction)
	e.Status = domain.ParseEmailStatus(status)
	if e.CcEmails, err = decodeStrings(cc); err != nil {
		return domain.Email{}, fmt.Errorf("decode cc_emails: %w", err)
	}
	if e.BccEmails, err = decodeStrings(bcc); err != nil {
		return domain.Email{}, fmt.Errorf("decode bcc_emails: %w", err)
	}
	if e.Metadata, err = decodeMap(metadataRaw); err != nil {
		return domain.Email{}, fmt.Errorf("decode metadata: %w", err)
	}
	return e, nil
}
