package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/learnsphere/class-service/internal/models"
	appErrors "github.com/learnsphere/class-service/pkg/errors"
)

type fakeDirectory struct {
	mu      sync.Mutex
	classes map[string]*models.Class

	beforeUpdate    func(f *fakeDirectory)
	bumpEveryUpdate bool
	updateErr       error
}

func (f *fakeDirectory) FindByID(ctx context.Context, id string) (*models.Class, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	class, ok := f.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *class
	return &copied, nil
}

func (f *fakeDirectory) ConditionalUpdateMeeting(ctx context.Context, classID string, expectedVersion int64, state models.MeetingState) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return false, f.updateErr
	}
	class, ok := f.classes[classID]
	if !ok {
		return false, nil
	}
	if f.bumpEveryUpdate {
		class.Version++
	}
	if hook := f.beforeUpdate; hook != nil {
		f.beforeUpdate = nil
		hook(f)
	}
	if class.Version != expectedVersion {
		return false, nil
	}
	class.MeetingState = state
	return true, nil
}

func (f *fakeDirectory) state(id string) models.MeetingState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.classes[id].MeetingState
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []models.MeetingEvent
	topics []string
	err    error
}

func (f *fakeBroadcaster) Publish(ctx context.Context, topic string, event models.MeetingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.events = append(f.events, event)
	return nil
}

func (f *fakeBroadcaster) published() []models.MeetingEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.MeetingEvent(nil), f.events...)
}

type fakeIssuer struct {
	subject string
	claims  map[string]interface{}
	ttl     time.Duration
	err     error
}

func (f *fakeIssuer) Issue(subject string, claims map[string]interface{}, ttl time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.subject = subject
	f.claims = claims
	f.ttl = ttl
	return "signed-token", nil
}

func idleClass(id, teacherID string, studentIDs ...string) *models.Class {
	return &models.Class{
		ID:           id,
		Name:         "Algebra",
		TeacherID:    teacherID,
		StudentIDs:   pq.StringArray(studentIDs),
		MeetingState: models.IdleState(1),
	}
}

func newMeetingService(dir *fakeDirectory, events *fakeBroadcaster, issuer *fakeIssuer) *MeetingService {
	return NewMeetingService(dir, events, issuer, nil, zap.NewNop(), MeetingConfig{
		JoinTokenTTL: 60 * time.Second,
		WriteRetries: 3,
		BaseURL:      "https://conf.local",
	})
}

func requireConsistent(t *testing.T, state models.MeetingState) {
	t.Helper()
	if state.IsLive {
		require.NotNil(t, state.RoomID)
		require.NotNil(t, state.StartedAt)
		require.NotNil(t, state.StartedBy)
	} else {
		require.Nil(t, state.RoomID)
		require.Nil(t, state.StartedAt)
		require.Nil(t, state.StartedBy)
	}
}

func TestMeetingServiceStart(t *testing.T) {
	dir := &fakeDirectory{classes: map[string]*models.Class{"c1": idleClass("c1", "t1", "s1")}}
	events := &fakeBroadcaster{}
	svc := newMeetingService(dir, events, &fakeIssuer{})

	result, err := svc.Start(context.Background(), "c1", "t1")
	require.NoError(t, err)
	require.NotEmpty(t, result.RoomID)
	assert.False(t, result.AlreadyRunning)
	assert.Equal(t, "https://conf.local/room/"+result.RoomID, result.JoinURL)

	state := dir.state("c1")
	requireConsistent(t, state)
	assert.True(t, state.IsLive)
	assert.Equal(t, result.RoomID, *state.RoomID)
	assert.Equal(t, "t1", *state.StartedBy)
	assert.Equal(t, int64(2), state.Version)

	published := events.published()
	require.Len(t, published, 1)
	assert.Equal(t, models.EventMeetingStarted, published[0].Type)
	assert.Equal(t, "c1", published[0].ClassID)
	assert.Equal(t, result.RoomID, published[0].RoomID)
	assert.Equal(t, MeetingTopic("c1"), events.topics[0])
}

func TestMeetingServiceStartIdempotent(t *testing.T) {
	dir := &fakeDirectory{classes: map[string]*models.Class{"c1": idleClass("c1", "t1")}}
	events := &fakeBroadcaster{}
	svc := newMeetingService(dir, events, &fakeIssuer{})

	first, err := svc.Start(context.Background(), "c1", "t1")
	require.NoError(t, err)

	second, err := svc.Start(context.Background(), "c1", "t1")
	require.NoError(t, err)
	assert.True(t, second.AlreadyRunning)
	assert.Equal(t, first.RoomID, second.RoomID)
	assert.Equal(t, first.StartedAt, second.StartedAt)

	assert.Equal(t, int64(2), dir.state("c1").Version)
	assert.Len(t, events.published(), 1)
}

func TestMeetingServiceStartAuthorization(t *testing.T) {
	dir := &fakeDirectory{classes: map[string]*models.Class{"c1": idleClass("c1", "t1", "s1")}}
	svc := newMeetingService(dir, &fakeBroadcaster{}, &fakeIssuer{})

	_, err := svc.Start(context.Background(), "c1", "s1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	_, err = svc.Start(context.Background(), "missing", "t1")
	appErr = appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)

	assert.False(t, dir.state("c1").IsLive)
}

func TestMeetingServiceStartLosesRaceToConcurrentStart(t *testing.T) {
	dir := &fakeDirectory{classes: map[string]*models.Class{"c1": idleClass("c1", "t1")}}
	// A competing start commits between this call's read and write.
	winnerAt := time.Now().UTC()
	dir.beforeUpdate = func(f *fakeDirectory) {
		f.classes["c1"].MeetingState = models.LiveState("winner-room", "t1", winnerAt, 2)
	}
	events := &fakeBroadcaster{}
	svc := newMeetingService(dir, events, &fakeIssuer{})

	result, err := svc.Start(context.Background(), "c1", "t1")
	require.NoError(t, err)
	assert.True(t, result.AlreadyRunning)
	assert.Equal(t, "winner-room", result.RoomID)

	// The loser adopts the winner's room and emits nothing.
	assert.Empty(t, events.published())
	assert.Equal(t, int64(2), dir.state("c1").Version)
}

func TestMeetingServiceStartRetriesExhausted(t *testing.T) {
	// Every write loses: the stored version keeps moving but stays idle.
	dir := &fakeDirectory{
		classes:         map[string]*models.Class{"c1": idleClass("c1", "t1")},
		bumpEveryUpdate: true,
	}
	svc := newMeetingService(dir, &fakeBroadcaster{}, &fakeIssuer{})

	_, err := svc.Start(context.Background(), "c1", "t1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestMeetingServiceConcurrentStartsSingleRoom(t *testing.T) {
	dir := &fakeDirectory{classes: map[string]*models.Class{"c1": idleClass("c1", "t1")}}
	events := &fakeBroadcaster{}
	svc := newMeetingService(dir, events, &fakeIssuer{})

	const callers = 8
	results := make([]*models.StartMeetingResult, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Start(context.Background(), "c1", "t1")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	roomID := results[0].RoomID
	for _, result := range results {
		assert.Equal(t, roomID, result.RoomID)
	}
	require.Len(t, events.published(), 1)
	requireConsistent(t, dir.state("c1"))
}

func TestMeetingServiceStop(t *testing.T) {
	dir := &fakeDirectory{classes: map[string]*models.Class{"c1": idleClass("c1", "t1")}}
	events := &fakeBroadcaster{}
	svc := newMeetingService(dir, events, &fakeIssuer{})

	_, err := svc.Start(context.Background(), "c1", "t1")
	require.NoError(t, err)

	require.NoError(t, svc.Stop(context.Background(), "c1", "t1"))

	state := dir.state("c1")
	requireConsistent(t, state)
	assert.False(t, state.IsLive)
	assert.Equal(t, int64(3), state.Version)

	published := events.published()
	require.Len(t, published, 2)
	assert.Equal(t, models.EventMeetingStopped, published[1].Type)
	assert.Equal(t, "c1", published[1].ClassID)
}

func TestMeetingServiceStopIdleIsNoop(t *testing.T) {
	dir := &fakeDirectory{classes: map[string]*models.Class{"c1": idleClass("c1", "t1")}}
	events := &fakeBroadcaster{}
	svc := newMeetingService(dir, events, &fakeIssuer{})

	require.NoError(t, svc.Stop(context.Background(), "c1", "t1"))

	assert.Equal(t, int64(1), dir.state("c1").Version)
	assert.Empty(t, events.published())
}

func TestMeetingServiceStopAuthorization(t *testing.T) {
	dir := &fakeDirectory{classes: map[string]*models.Class{"c1": idleClass("c1", "t1", "s2")}}
	svc := newMeetingService(dir, &fakeBroadcaster{}, &fakeIssuer{})

	_, err := svc.Start(context.Background(), "c1", "t1")
	require.NoError(t, err)

	err = svc.Stop(context.Background(), "c1", "s2")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.True(t, dir.state("c1").IsLive)
}

func TestMeetingServicePublishFailureDoesNotFailTransition(t *testing.T) {
	dir := &fakeDirectory{classes: map[string]*models.Class{"c1": idleClass("c1", "t1")}}
	events := &fakeBroadcaster{err: context.DeadlineExceeded}
	svc := newMeetingService(dir, events, &fakeIssuer{})

	result, err := svc.Start(context.Background(), "c1", "t1")
	require.NoError(t, err)

	// The commit is the source of truth; the missed broadcast shows up in Status.
	status, err := svc.Status(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, status.IsLive)
	assert.Equal(t, result.RoomID, *status.RoomID)
}

func TestMeetingServiceStatus(t *testing.T) {
	dir := &fakeDirectory{classes: map[string]*models.Class{"c1": idleClass("c1", "t1")}}
	svc := newMeetingService(dir, &fakeBroadcaster{}, &fakeIssuer{})

	status, err := svc.Status(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, status.IsLive)
	assert.Nil(t, status.RoomID)
	assert.Nil(t, status.StartedAt)
	assert.Nil(t, status.StartedBy)

	_, err = svc.Start(context.Background(), "c1", "t1")
	require.NoError(t, err)

	status, err = svc.Status(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, status.IsLive)
	require.NotNil(t, status.RoomID)
	assert.Equal(t, "t1", *status.StartedBy)

	_, err = svc.Status(context.Background(), "missing")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestMeetingServiceJoinToken(t *testing.T) {
	dir := &fakeDirectory{classes: map[string]*models.Class{"c1": idleClass("c1", "t1", "s1", "s2")}}
	issuer := &fakeIssuer{}
	svc := newMeetingService(dir, &fakeBroadcaster{}, issuer)

	start, err := svc.Start(context.Background(), "c1", "t1")
	require.NoError(t, err)

	caller := models.Identity{UserID: "s1", Username: "sam", Email: "sam@learnsphere.local", Name: "Sam"}
	result, err := svc.JoinToken(context.Background(), "c1", caller)
	require.NoError(t, err)
	assert.Equal(t, "signed-token", result.Token)
	assert.Equal(t, start.RoomID, result.RoomID)
	assert.Equal(t, "https://conf.local/room/"+start.RoomID, result.JoinURL)

	assert.Equal(t, "sam", issuer.subject)
	assert.Equal(t, 60*time.Second, issuer.ttl)
	assert.Equal(t, "s1", issuer.claims["userId"])
	assert.Equal(t, "s1", issuer.claims["id"])
	assert.Equal(t, start.RoomID, issuer.claims["roomId"])
	assert.Equal(t, "c1", issuer.claims["classId"])
	assert.Equal(t, "learnsphere", issuer.claims["source"])
	assert.Equal(t, "sam@learnsphere.local", issuer.claims["email"])
}

func TestMeetingServiceJoinTokenTeacherAllowed(t *testing.T) {
	dir := &fakeDirectory{classes: map[string]*models.Class{"c1": idleClass("c1", "t1", "s1")}}
	svc := newMeetingService(dir, &fakeBroadcaster{}, &fakeIssuer{})

	_, err := svc.Start(context.Background(), "c1", "t1")
	require.NoError(t, err)

	_, err = svc.JoinToken(context.Background(), "c1", models.Identity{UserID: "t1", Username: "teach"})
	require.NoError(t, err)
}

func TestMeetingServiceJoinTokenUnauthorized(t *testing.T) {
	dir := &fakeDirectory{classes: map[string]*models.Class{"c1": idleClass("c1", "t1", "s1")}}
	svc := newMeetingService(dir, &fakeBroadcaster{}, &fakeIssuer{})

	_, err := svc.Start(context.Background(), "c1", "t1")
	require.NoError(t, err)

	// Outsiders are rejected regardless of live state.
	_, err = svc.JoinToken(context.Background(), "c1", models.Identity{UserID: "intruder"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	require.NoError(t, svc.Stop(context.Background(), "c1", "t1"))
	_, err = svc.JoinToken(context.Background(), "c1", models.Identity{UserID: "intruder"})
	appErr = appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestMeetingServiceJoinTokenNotLive(t *testing.T) {
	dir := &fakeDirectory{classes: map[string]*models.Class{"c1": idleClass("c1", "t1", "s1")}}
	svc := newMeetingService(dir, &fakeBroadcaster{}, &fakeIssuer{})

	_, err := svc.JoinToken(context.Background(), "c1", models.Identity{UserID: "s1"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrMeetingNotActive.Code, appErr.Code)
}

func TestMeetingServiceJoinTokenIssuerFailure(t *testing.T) {
	dir := &fakeDirectory{classes: map[string]*models.Class{"c1": idleClass("c1", "t1", "s1")}}
	svc := newMeetingService(dir, &fakeBroadcaster{}, &fakeIssuer{err: context.DeadlineExceeded})

	_, err := svc.Start(context.Background(), "c1", "t1")
	require.NoError(t, err)

	_, err = svc.JoinToken(context.Background(), "c1", models.Identity{UserID: "s1"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
}

func TestMeetingServiceLifecycleScenario(t *testing.T) {
	dir := &fakeDirectory{classes: map[string]*models.Class{"c1": idleClass("c1", "t1", "s1", "s2")}}
	events := &fakeBroadcaster{}
	issuer := &fakeIssuer{}
	svc := newMeetingService(dir, events, issuer)
	ctx := context.Background()

	first, err := svc.Start(ctx, "c1", "t1")
	require.NoError(t, err)

	again, err := svc.Start(ctx, "c1", "t1")
	require.NoError(t, err)
	assert.Equal(t, first.RoomID, again.RoomID)
	assert.Len(t, events.published(), 1)

	token, err := svc.JoinToken(ctx, "c1", models.Identity{UserID: "s1", Username: "s1"})
	require.NoError(t, err)
	assert.Equal(t, first.RoomID, token.RoomID)
	assert.Equal(t, "c1", issuer.claims["classId"])
	assert.Equal(t, "s1", issuer.claims["userId"])

	err = svc.Stop(ctx, "c1", "s2")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Stop(ctx, "c1", "t1"))
	assert.False(t, dir.state("c1").IsLive)

	_, err = svc.JoinToken(ctx, "c1", models.Identity{UserID: "s1"})
	assert.Equal(t, appErrors.ErrMeetingNotActive.Code, appErrors.FromError(err).Code)
}
