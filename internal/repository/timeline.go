package repository

import (
	"context"

	"oxicrm_backend/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

const opTimelineCreate = "timeline_activity.create"

// TimelineRepo appends timeline activities.
type TimelineRepo struct {
	pool *pgxpool.Pool
}

func NewTimelineRepo(pool *pgxpool.Pool) *TimelineRepo {
	return &TimelineRepo{pool: pool}
}

func (r *TimelineRepo) Create(ctx context.Context, a domain.TimelineActivity) error {
	if r == nil || r.pool == nil {
		return notConfigured(opTimelineCreate)
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO timeline_activities (id, workspace_id, name, workspace_member_id, person_id, company_id,
			opportunity_id, task_id, note_id, calendar_event_id, workflow_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
		a.ID, a.WorkspaceID, a.Name, a.WorkspaceMemberID, a.PersonID, a.CompanyID,
		a.OpportunityID, a.TaskID, a.NoteID, a.CalendarEventID, a.WorkflowID, a.CreatedAt,
	)
	return mapError(opTimelineCreate, "timeline activity", err)
}
