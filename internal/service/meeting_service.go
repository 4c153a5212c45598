package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnsphere/class-service/internal/models"
	appErrors "github.com/learnsphere/class-service/pkg/errors"
)

// joinClaimSource marks tokens minted by this platform.
const joinClaimSource = "learnsphere"

type classDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ConditionalUpdateMeeting(ctx context.Context, classID string, expectedVersion int64, state models.MeetingState) (bool, error)
}

type eventBroadcaster interface {
	Publish(ctx context.Context, topic string, event models.MeetingEvent) error
}

type joinTokenIssuer interface {
	Issue(subject string, claims map[string]interface{}, ttl time.Duration) (string, error)
}

// MeetingConfig tunes the coordinator.
type MeetingConfig struct {
	JoinTokenTTL time.Duration
	WriteRetries int
	BaseURL      string
}

// MeetingService coordinates live sessions for classes. All mutations of the
// embedded meeting state go through the directory's conditional write, so two
// concurrent transitions for the same class are linearized by whichever
// commit lands first; the loser re-reads and re-evaluates.
type MeetingService struct {
	directory classDirectory
	events    eventBroadcaster
	tokens    joinTokenIssuer
	metrics   *MetricsService
	logger    *zap.Logger

	joinTokenTTL time.Duration
	writeRetries int
	baseURL      string

	newRoomID func() string
}

// NewMeetingService constructs the coordinator.
func NewMeetingService(directory classDirectory, events eventBroadcaster, tokens joinTokenIssuer, metrics *MetricsService, logger *zap.Logger, cfg MeetingConfig) *MeetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.JoinTokenTTL <= 0 {
		cfg.JoinTokenTTL = 60 * time.Second
	}
	if cfg.WriteRetries <= 0 {
		cfg.WriteRetries = 3
	}
	return &MeetingService{
		directory:    directory,
		events:       events,
		tokens:       tokens,
		metrics:      metrics,
		logger:       logger,
		joinTokenTTL: cfg.JoinTokenTTL,
		writeRetries: cfg.WriteRetries,
		baseURL:      cfg.BaseURL,
		newRoomID:    uuid.NewString,
	}
}

// Start transitions a class from idle to live. Only the owning teacher may
// start a meeting. Calling Start on an already live class is idempotent: the
// existing room is returned and no event is emitted. A lost conditional
// write is retried against fresh state up to the configured bound.
func (s *MeetingService) Start(ctx context.Context, classID, callerID string) (*models.StartMeetingResult, error) {
	for attempt := 0; attempt <= s.writeRetries; attempt++ {
		class, err := s.loadClass(ctx, classID)
		if err != nil {
			return nil, err
		}
		if class.TeacherID != callerID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the class teacher can start meetings")
		}

		if class.Live() {
			return &models.StartMeetingResult{
				RoomID:         *class.RoomID,
				StartedAt:      *class.StartedAt,
				JoinURL:        s.joinURL(*class.RoomID),
				AlreadyRunning: true,
			}, nil
		}

		roomID := s.newRoomID()
		startedAt := time.Now().UTC()
		state := models.LiveState(roomID, callerID, startedAt, class.Version+1)

		committed, err := s.directory.ConditionalUpdateMeeting(ctx, classID, class.Version, state)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start meeting")
		}
		if !committed {
			s.metrics.IncMeetingWriteConflict()
			continue
		}

		s.metrics.IncMeetingStarted()
		s.publish(ctx, classID, models.MeetingEvent{
			Type:      models.EventMeetingStarted,
			ClassID:   classID,
			RoomID:    roomID,
			StartedAt: &startedAt,
		})

		return &models.StartMeetingResult{RoomID: roomID, StartedAt: startedAt, JoinURL: s.joinURL(roomID)}, nil
	}

	return nil, appErrors.Clone(appErrors.ErrConflict, "meeting state changed concurrently, please retry")
}

// Stop transitions a class from live to idle. Stopping an already idle class
// succeeds without touching the stored version.
func (s *MeetingService) Stop(ctx context.Context, classID, callerID string) error {
	for attempt := 0; attempt <= s.writeRetries; attempt++ {
		class, err := s.loadClass(ctx, classID)
		if err != nil {
			return err
		}
		if class.TeacherID != callerID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the class teacher can stop meetings")
		}

		if !class.IsLive {
			return nil
		}

		committed, err := s.directory.ConditionalUpdateMeeting(ctx, classID, class.Version, models.IdleState(class.Version+1))
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stop meeting")
		}
		if !committed {
			s.metrics.IncMeetingWriteConflict()
			continue
		}

		s.metrics.IncMeetingStopped()
		s.publish(ctx, classID, models.MeetingEvent{Type: models.EventMeetingStopped, ClassID: classID})
		return nil
	}

	return appErrors.Clone(appErrors.ErrConflict, "meeting state changed concurrently, please retry")
}

// Status returns the current meeting state. No authorization beyond class
// existence.
func (s *MeetingService) Status(ctx context.Context, classID string) (*models.MeetingStatus, error) {
	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	status := &models.MeetingStatus{IsLive: class.Live()}
	if status.IsLive {
		status.RoomID = class.RoomID
		status.StartedAt = class.StartedAt
		status.StartedBy = class.StartedBy
	}
	return status, nil
}

// JoinToken mints a short-lived conferencing credential for the caller. The
// caller must be the teacher or an enrolled student and the class must be
// live. No state is mutated.
func (s *MeetingService) JoinToken(ctx context.Context, classID string, caller models.Identity) (*models.JoinTokenResult, error) {
	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	if class.TeacherID != caller.UserID && !class.HasStudent(caller.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized to join this class meeting")
	}
	if !class.Live() {
		return nil, appErrors.Clone(appErrors.ErrMeetingNotActive, "meeting is not active")
	}

	roomID := *class.RoomID
	claims := map[string]interface{}{
		"userId":   caller.UserID,
		"id":       caller.UserID,
		"roomId":   roomID,
		"classId":  classID,
		"source":   joinClaimSource,
		"username": caller.Username,
		"email":    caller.Email,
		"name":     caller.Name,
	}

	token, err := s.tokens.Issue(caller.Username, claims, s.joinTokenTTL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate join token")
	}

	s.metrics.IncJoinTokenIssued()
	return &models.JoinTokenResult{Token: token, RoomID: roomID, JoinURL: s.joinURL(roomID)}, nil
}

func (s *MeetingService) loadClass(ctx context.Context, classID string) (*models.Class, error) {
	class, err := s.directory.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// publish sends the state-change event. The transition is already committed;
// a failed broadcast is logged and counted, never surfaced to the caller.
func (s *MeetingService) publish(ctx context.Context, classID string, event models.MeetingEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, MeetingTopic(classID), event); err != nil {
		s.metrics.IncMeetingPublishFailure()
		s.logger.Warn("failed to publish meeting event",
			zap.String("class_id", classID),
			zap.String("event", event.Type),
			zap.Error(err))
	}
}

func (s *MeetingService) joinURL(roomID string) string {
	return fmt.Sprintf("%s/room/%s", s.baseURL, roomID)
}

// MeetingTopic derives the per-class broadcast channel name.
func MeetingTopic(classID string) string {
	return fmt.Sprintf("class:%s:meeting", classID)
}
