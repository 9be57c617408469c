package service

import (
	"context"
	"fmt"

	"github.com/garyjia/hei-liquidation/internal/application/dispatcher"
	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/domain/apperr"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
	"github.com/garyjia/hei-liquidation/internal/domain/event"
)

// Default and upper bound for inbox page sizes
const (
	DefaultInboxSize = 20
	MaxInboxSize     = 100
)

// NotificationHandlerName is the dispatcher registration name of the inbox writer
const NotificationHandlerName = "notification-inbox"

// MaxPushAttempts is how many failed Lark deliveries a notification gets
// before retries give up on it. The inbox entry stays.
const MaxPushAttempts = 5

// NotificationService turns liquidation events into per-user inbox entries
// and, when a Lark sender is configured, direct messages
type NotificationService interface {
	// Register subscribes the service to every liquidation event
	Register(d dispatcher.Dispatcher)
	HandleEvent(ctx context.Context, evt *event.Event) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*entity.Notification, error)
	MarkRead(ctx context.Context, userID string, notificationID int64) error

	// RetryPush re-sends up to limit notifications whose Lark delivery failed
	// earlier and reports how many went through
	RetryPush(ctx context.Context, limit int) (int, error)
}

type notificationServiceImpl struct {
	notificationRepo port.NotificationRepository
	userRepo         port.UserRepository
	references       port.ReferenceLookup
	messageSender    port.LarkMessageSender
	clock            port.Clock
	logger           Logger
}

// NewNotificationService creates a new NotificationService. messageSender may be nil.
func NewNotificationService(
	notificationRepo port.NotificationRepository,
	userRepo port.UserRepository,
	references port.ReferenceLookup,
	messageSender port.LarkMessageSender,
	clock port.Clock,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		references:       references,
		messageSender:    messageSender,
		clock:            clock,
		logger:           logger,
	}
}

// audience names who hears about an event
type audience struct {
	creator      bool
	heiUsers     bool
	coordinators bool
	accountants  bool
}

var audiences = map[event.Type]audience{
	event.TypeLiquidationCreated:     {heiUsers: true},
	event.TypeLiquidationSubmitted:   {coordinators: true},
	event.TypeLiquidationResubmitted: {coordinators: true},
	event.TypeEndorsedToAccounting:   {creator: true, accountants: true},
	event.TypeReturnedToHEI:          {creator: true, heiUsers: true},
	event.TypeEndorsedToCOA:          {creator: true, heiUsers: true, coordinators: true},
	event.TypeReturnedToRC:           {coordinators: true},
	event.TypeTransmittalRelocated:   {accountants: true},
}

// Register implements NotificationService
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	types := make([]event.Type, 0, len(audiences))
	for t := range audiences {
		types = append(types, t)
	}
	d.SubscribeAll(types, NotificationHandlerName, s.HandleEvent)
}

// HandleEvent writes one notification per recipient. The actor who caused
// the event is never notified. Lark delivery failures are logged only.
func (s *notificationServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	who, ok := audiences[evt.Type]
	if !ok {
		return nil
	}

	recipients, err := s.resolveRecipients(ctx, evt, who)
	if err != nil {
		s.logger.Error("Failed to resolve notification recipients",
			"event_type", evt.Type,
			"subject_id", evt.SubjectID,
			"error", err)
		return err
	}

	now := s.clock.Now().UTC()
	for _, user := range recipients {
		n := &entity.Notification{
			UserID:      user.ID,
			EventType:   evt.Type.String(),
			Description: evt.Description,
			Module:      evt.Module,
			SubjectType: entity.ActivityEntityLiquidation,
			SubjectID:   evt.SubjectID,
			CreatedAt:   now,
		}
		if err := s.notificationRepo.Create(ctx, n); err != nil {
			return fmt.Errorf("failed to create notification: %w", err)
		}

		s.push(ctx, user, n)
	}

	s.logger.Info("Notifications created",
		"event_type", evt.Type,
		"subject_id", evt.SubjectID,
		"recipients", len(recipients))

	return nil
}

// ListNotifications implements NotificationService
func (s *notificationServiceImpl) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*entity.Notification, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id", "a user is required")
	}
	if limit <= 0 {
		limit = DefaultInboxSize
	}
	if limit > MaxInboxSize {
		limit = MaxInboxSize
	}

	notifications, err := s.notificationRepo.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead implements NotificationService. Reading twice is a no-op.
func (s *notificationServiceImpl) MarkRead(ctx context.Context, userID string, notificationID int64) error {
	found, err := s.notificationRepo.MarkRead(ctx, notificationID, userID, s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if !found {
		return apperr.NotFound("notification", fmt.Sprint(notificationID))
	}
	return nil
}

// RetryPush implements NotificationService
func (s *notificationServiceImpl) RetryPush(ctx context.Context, limit int) (int, error) {
	if s.messageSender == nil {
		return 0, nil
	}

	pending, err := s.notificationRepo.ListUnpushed(ctx, MaxPushAttempts, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list unpushed notifications: %w", err)
	}

	pushed := 0
	for _, n := range pending {
		user, err := s.userRepo.GetByID(ctx, n.UserID)
		if err != nil {
			return pushed, fmt.Errorf("failed to load recipient: %w", err)
		}
		if user == nil {
			continue
		}
		if s.push(ctx, user, n) {
			pushed++
		}
	}
	return pushed, nil
}

func (s *notificationServiceImpl) resolveRecipients(ctx context.Context, evt *event.Event, who audience) ([]*entity.User, error) {
	heiID := evt.GetPayloadInt("hei_id")
	seen := map[string]bool{evt.ActorID: true}
	var out []*entity.User

	add := func(users []*entity.User) {
		for _, u := range users {
			if u == nil || seen[u.ID] {
				continue
			}
			seen[u.ID] = true
			out = append(out, u)
		}
	}

	if who.creator {
		if createdBy := evt.GetPayloadString("created_by"); createdBy != "" {
			user, err := s.userRepo.GetByID(ctx, createdBy)
			if err != nil {
				return nil, fmt.Errorf("failed to load creator: %w", err)
			}
			add([]*entity.User{user})
		}
	}

	if who.heiUsers && heiID != 0 {
		users, err := s.userRepo.ListByHEI(ctx, heiID)
		if err != nil {
			return nil, fmt.Errorf("failed to list HEI users: %w", err)
		}
		add(users)
	}

	if who.coordinators && heiID != 0 {
		hei, err := s.references.HEIByID(ctx, heiID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve HEI: %w", err)
		}
		if hei != nil {
			regionID := hei.RegionID
			users, err := s.userRepo.ListByRole(ctx, entity.RoleRegionalCoordinator, &regionID)
			if err != nil {
				return nil, fmt.Errorf("failed to list regional coordinators: %w", err)
			}
			add(users)
		}
	}

	if who.accountants {
		users, err := s.userRepo.ListByRole(ctx, entity.RoleAccountant, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list accountants: %w", err)
		}
		add(users)
	}

	return out, nil
}

// push reports whether the message was delivered
func (s *notificationServiceImpl) push(ctx context.Context, user *entity.User, n *entity.Notification) bool {
	if s.messageSender == nil || user.LarkOpenID == "" {
		return false
	}

	if err := s.messageSender.SendMessage(ctx, user.LarkOpenID, n.Description); err != nil {
		s.logger.Error("Failed to push notification to Lark",
			"notification_id", n.ID,
			"user_id", user.ID,
			"error", err)
		if err := s.notificationRepo.RecordPushFailure(ctx, n.ID); err != nil {
			s.logger.Error("Failed to record push failure",
				"notification_id", n.ID,
				"error", err)
		}
		return false
	}

	if err := s.notificationRepo.MarkPushed(ctx, n.ID, s.clock.Now().UTC()); err != nil {
		s.logger.Error("Failed to mark notification pushed",
			"notification_id", n.ID,
			"error", err)
	}
	return true
}
