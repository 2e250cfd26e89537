package subscribers

import (
	"context"
	"fmt"
	"strings"

	"oxicrm_backend/internal/events"
	"oxicrm_backend/internal/jobs"
	"oxicrm_backend/internal/mailing"
	"oxicrm_backend/platform/logger"
)

// EmailEventSubscriber sends notification emails for opportunity and task events.
type EmailEventSubscriber struct {
	bus      events.Bus
	sender   EmailSender
	settings Settings
	loop     *receiveLoop
}

func NewEmailEventSubscriber(bus events.Bus, sender EmailSender, settings Settings, log *logger.Logger) *EmailEventSubscriber {
	s := &EmailEventSubscriber{bus: bus, sender: sender, settings: settings}
	s.loop = newReceiveLoop("email_event_subscriber", "*", s.handle, log)
	return s
}

// Start subscribes to every topic and processes events in the background.
func (s *EmailEventSubscriber) Start(ctx context.Context) error {
	return s.loop.start(ctx, s.bus)
}

// Done is closed when the receive loop has exited.
func (s *EmailEventSubscriber) Done() <-chan struct{} { return s.loop.done }

// Stats returns the subscriber's counters.
func (s *EmailEventSubscriber) Stats() *jobs.LoopStats { return s.loop.stats }

func (s *EmailEventSubscriber) handle(ctx context.Context, event events.DomainEvent) error {
	switch event.Topic {
	case events.TopicOpportunityCreated:
		return s.opportunityCreated(ctx, event)
	case events.TopicTaskAssigned:
		return s.taskAssigned(ctx, event)
	case events.TopicOpportunityWon:
		return s.opportunityWon(ctx, event)
	default:
		return nil
	}
}

func (s *EmailEventSubscriber) opportunityCreated(ctx context.Context, event events.DomainEvent) error {
	var p events.OpportunityCreated
	if err := events.Decode(event, &p); err != nil {
		return err
	}
	opportunityID, err := parseID(p.ID, "opportunity")
	if err != nil {
		return err
	}
	personName := orDefault(p.PersonName, "Unknown")

	_, err = s.sender.SendEmail(ctx, mailing.SendEmailInput{
		FromEmail:     s.settings.SystemSender,
		ToEmail:       s.settings.SalesTeam,
		Subject:       "New Opportunity Created: " + personName,
		BodyText:      fmt.Sprintf("A new opportunity has been created.\n\nOpportunity ID: %s\nContact: %s\n", opportunityID, personName),
		OpportunityID: &opportunityID,
		WorkspaceID:   workspaceOrNil(p.WorkspaceID),
	})
	if err != nil {
		return fmt.Errorf("send opportunity notification: %w", err)
	}
	return nil
}

func (s *EmailEventSubscriber) taskAssigned(ctx context.Context, event events.DomainEvent) error {
	var p events.TaskAssigned
	if err := events.Decode(event, &p); err != nil {
		return err
	}
	taskID, err := parseID(p.ID, "task")
	if err != nil {
		return err
	}
	if strings.TrimSpace(p.AssigneeEmail) == "" {
		return fmt.Errorf("missing assignee email")
	}
	title := orDefault(p.Title, "Untitled Task")

	_, err = s.sender.SendEmail(ctx, mailing.SendEmailInput{
		FromEmail:   s.settings.SystemSender,
		ToEmail:     p.AssigneeEmail,
		Subject:     "Task Assigned: " + title,
		BodyText:    fmt.Sprintf("You have been assigned a new task.\n\nTask: %s\n\nPlease review and complete it.", title),
		TaskID:      &taskID,
		WorkspaceID: workspaceOrNil(p.WorkspaceID),
	})
	if err != nil {
		return fmt.Errorf("send task assignment: %w", err)
	}
	return nil
}

func (s *EmailEventSubscriber) opportunityWon(ctx context.Context, event events.DomainEvent) error {
	var p events.OpportunityWon
	if err := events.Decode(event, &p); err != nil {
		return err
	}
	opportunityID, err := parseID(p.ID, "opportunity")
	if err != nil {
		return err
	}
	if strings.TrimSpace(p.PersonEmail) == "" {
		return fmt.Errorf("missing person email")
	}
	personName := orDefault(p.PersonName, "Valued Customer")

	_, err = s.sender.SendEmail(ctx, mailing.SendEmailInput{
		FromEmail: s.settings.SystemSender,
		ToEmail:   p.PersonEmail,
		Subject:   "Congratulations! 🎉",
		BodyText: fmt.Sprintf("Dear %s,\n\nCongratulations on your successful partnership with us!\n\n"+
			"We're excited to work together.\n\nBest regards,\nThe Team", personName),
		OpportunityID: &opportunityID,
		WorkspaceID:   workspaceOrNil(p.WorkspaceID),
	})
	if err != nil {
		return fmt.Errorf("send congratulations: %w", err)
	}
	return nil
}
