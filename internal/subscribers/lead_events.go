package subscribers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/internal/events"
	"oxicrm_backend/internal/jobs"
	"oxicrm_backend/internal/mailing"
	"oxicrm_backend/internal/repository"
	"oxicrm_backend/platform/logger"
	"oxicrm_backend/platform/phone"

	"github.com/google/uuid"
)

// LeadEventSubscriber notifies the sales team about new leads and records
// how each lead was captured.
type LeadEventSubscriber struct {
	bus      events.Bus
	sender   EmailSender
	timeline repository.TimelineActivityRepository
	settings Settings
	loop     *receiveLoop
	now      func() time.Time
}

func NewLeadEventSubscriber(bus events.Bus, sender EmailSender, timeline repository.TimelineActivityRepository, settings Settings, log *logger.Logger) *LeadEventSubscriber {
	s := &LeadEventSubscriber{
		bus:      bus,
		sender:   sender,
		timeline: timeline,
		settings: settings,
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.loop = newReceiveLoop("lead_event_subscriber", "lead.*", s.handle, log)
	return s
}

// Start subscribes to lead topics and processes events in the background.
func (s *LeadEventSubscriber) Start(ctx context.Context) error {
	return s.loop.start(ctx, s.bus)
}

// Done is closed when the receive loop has exited.
func (s *LeadEventSubscriber) Done() <-chan struct{} { return s.loop.done }

// Stats returns the subscriber's counters.
func (s *LeadEventSubscriber) Stats() *jobs.LoopStats { return s.loop.stats }

func (s *LeadEventSubscriber) handle(ctx context.Context, event events.DomainEvent) error {
	if event.Topic != events.TopicLeadCreated {
		return nil
	}

	var lead events.LeadCreated
	if err := events.Decode(event, &lead); err != nil {
		return err
	}
	if err := lead.Validate(); err != nil {
		return fmt.Errorf("invalid lead payload: %w", err)
	}
	source := lead.Source.Label()

	_, err := s.sender.SendEmail(ctx, mailing.SendEmailInput{
		FromEmail:   s.settings.SystemSender,
		ToEmail:     s.settings.SalesTeam,
		Subject:     fmt.Sprintf("New Lead: %s %s (%s)", lead.FirstName, lead.LastName, source),
		BodyText:    s.leadBody(lead.Lead, source),
		WorkspaceID: lead.WorkspaceID,
	})
	if err != nil {
		return fmt.Errorf("send lead notification: %w", err)
	}

	activity := domain.TimelineActivity{
		ID:                uuid.New(),
		CreatedAt:         s.now(),
		Name:              "Lead captured via " + source,
		WorkspaceMemberID: lead.AssignedToID,
		WorkspaceID:       lead.WorkspaceID,
	}
	if err := s.timeline.Create(ctx, activity); err != nil {
		return fmt.Errorf("create lead timeline activity: %w", err)
	}
	return nil
}

func (s *LeadEventSubscriber) leadBody(lead domain.Lead, source string) string {
	phoneNumber := "N/A"
	if lead.Phone != nil && strings.TrimSpace(*lead.Phone) != "" {
		phoneNumber = phone.NormalizeE164(*lead.Phone, "")
	}

	var b strings.Builder
	b.WriteString("New lead captured!\n\n")
	fmt.Fprintf(&b, "Name: %s %s\n", lead.FirstName, lead.LastName)
	fmt.Fprintf(&b, "Email: %s\n", lead.Email)
	fmt.Fprintf(&b, "Company: %s\n", optional(lead.CompanyName))
	fmt.Fprintf(&b, "Phone: %s\n", phoneNumber)
	fmt.Fprintf(&b, "Job Title: %s\n", optional(lead.JobTitle))
	fmt.Fprintf(&b, "Source: %s\n", source)
	fmt.Fprintf(&b, "Score: %d\n\n", lead.Score)
	fmt.Fprintf(&b, "View in CRM: %s/leads/%s", s.settings.AppBaseURL, lead.ID)
	return b.String()
}

func optional(value *string) string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return "N/A"
	}
	return *value
}
