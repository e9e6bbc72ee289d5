//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"helpdesk/internal/notification/models"
	"helpdesk/internal/notification/store"
	id "helpdesk/pkg/domain"
	"helpdesk/pkg/platform/sentinel"
	"helpdesk/pkg/testutil/containers"
)

type PostgresNotificationStoreSuite struct {
	suite.Suite

	pg        *containers.PostgresContainer
	store     *store.PostgresNotificationStore
	recipient id.UserID
	now       time.Time
}

func TestPostgresNotificationStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresNotificationStoreSuite))
}

func (s *PostgresNotificationStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgresNotificationStore(s.pg.DB)
	s.now = time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)
}

func (s *PostgresNotificationStoreSuite) SetupTest() {
	s.recipient = id.UserID(uuid.New())
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "notifications"))
}

func (s *PostgresNotificationStoreSuite) create(kind models.Kind, at time.Time) *models.Notification {
	n, err := models.NewNotification(s.recipient, "T260800001", kind, "Ticket T260800001 updated", "status changed", at)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), n))
	return n
}

func (s *PostgresNotificationStoreSuite) TestCreateAndFindRoundTrip() {
	ctx := context.Background()
	n := s.create(models.KindStatusChange, s.now)

	found, err := s.store.FindByID(ctx, n.ID)
	s.Require().NoError(err)
	s.Equal(n.ID, found.ID)
	s.Equal(s.recipient, found.RecipientID)
	s.Equal(models.KindStatusChange, found.Kind)
	s.False(found.Read)
	s.Nil(found.ReadAt)
	s.False(found.MessageDelivered)
}

func (s *PostgresNotificationStoreSuite) TestFindUnknownID() {
	_, err := s.store.FindByID(context.Background(), id.NewNotificationID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresNotificationStoreSuite) TestCreateDuplicateIDConflicts() {
	ctx := context.Background()
	n := s.create(models.KindStatusChange, s.now)
	s.ErrorIs(s.store.Create(ctx, n), sentinel.ErrConflict)
}

func (s *PostgresNotificationStoreSuite) TestUpdateFlipsFlagsIndependently() {
	ctx := context.Background()
	n := s.create(models.KindAssignment, s.now)

	n.ApplyRead(s.now.Add(time.Minute))
	s.Require().NoError(s.store.Update(ctx, n))

	found, err := s.store.FindByID(ctx, n.ID)
	s.Require().NoError(err)
	s.True(found.Read)
	s.Require().NotNil(found.ReadAt)
	s.False(found.MessageDelivered, "read flag does not imply delivery")

	found.ApplyMessageDelivered(s.now.Add(2 * time.Minute))
	s.Require().NoError(s.store.Update(ctx, found))

	again, err := s.store.FindByID(ctx, n.ID)
	s.Require().NoError(err)
	s.True(again.Read)
	s.True(again.MessageDelivered)
	s.Require().NotNil(again.MessageDeliveredAt)
}

func (s *PostgresNotificationStoreSuite) TestMarkMessageDeliveredLeavesReadAlone() {
	ctx := context.Background()
	n := s.create(models.KindStatusChange, s.now)

	// Read is committed first, as happens when the recipient beats the
	// delivery worker to the row.
	n.ApplyRead(s.now.Add(time.Minute))
	s.Require().NoError(s.store.Update(ctx, n))

	deliveredAt := s.now.Add(2 * time.Minute)
	s.Require().NoError(s.store.MarkMessageDelivered(ctx, n.ID, deliveredAt))

	found, err := s.store.FindByID(ctx, n.ID)
	s.Require().NoError(err)
	s.True(found.MessageDelivered)
	s.Require().NotNil(found.MessageDeliveredAt)
	s.True(found.Read, "delivery write is scoped to the delivery columns")
	s.Require().NotNil(found.ReadAt)
}

func (s *PostgresNotificationStoreSuite) TestMarkMessageDeliveredUnknownNotification() {
	err := s.store.MarkMessageDelivered(context.Background(), id.NewNotificationID(), s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresNotificationStoreSuite) TestUpdateUnknownNotification() {
	n := s.create(models.KindStatusChange, s.now)
	n.ID = id.NewNotificationID()
	s.ErrorIs(s.store.Update(context.Background(), n), sentinel.ErrNotFound)
}

func (s *PostgresNotificationStoreSuite) TestListByRecipientNewestFirstWithKindFilter() {
	ctx := context.Background()
	older := s.create(models.KindStatusChange, s.now)
	newer := s.create(models.KindAssignment, s.now.Add(time.Minute))

	// Another recipient's rows must not leak into the listing.
	foreign, err := models.NewNotification(id.UserID(uuid.New()), "T260800002", models.KindStatusChange, "title", "body", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, foreign))

	all, err := s.store.ListByRecipient(ctx, s.recipient, store.ListFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(newer.ID, all[0].ID)
	s.Equal(older.ID, all[1].ID)

	kind := models.KindAssignment
	assignments, err := s.store.ListByRecipient(ctx, s.recipient, store.ListFilter{Kind: &kind})
	s.Require().NoError(err)
	s.Require().Len(assignments, 1)
	s.Equal(newer.ID, assignments[0].ID)

	paged, err := s.store.ListByRecipient(ctx, s.recipient, store.ListFilter{Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Require().Len(paged, 1)
	s.Equal(older.ID, paged[0].ID)
}

func (s *PostgresNotificationStoreSuite) TestListByTicket() {
	ctx := context.Background()
	n := s.create(models.KindStatusChange, s.now)

	rows, err := s.store.ListByTicket(ctx, "T260800001")
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(n.ID, rows[0].ID)

	empty, err := s.store.ListByTicket(ctx, "T260800099")
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *PostgresNotificationStoreSuite) TestUnreadCountAndMarkAllRead() {
	ctx := context.Background()
	s.create(models.KindStatusChange, s.now)
	s.create(models.KindAssignment, s.now.Add(time.Minute))
	read := s.create(models.KindStatusChange, s.now.Add(2*time.Minute))
	read.ApplyRead(s.now.Add(3 * time.Minute))
	s.Require().NoError(s.store.Update(ctx, read))

	count, err := s.store.UnreadCount(ctx, s.recipient)
	s.Require().NoError(err)
	s.Equal(2, count)

	affected, err := s.store.MarkAllRead(ctx, s.recipient)
	s.Require().NoError(err)
	s.Equal(2, affected, "already-read rows are untouched")

	count, err = s.store.UnreadCount(ctx, s.recipient)
	s.Require().NoError(err)
	s.Zero(count)

	affected, err = s.store.MarkAllRead(ctx, s.recipient)
	s.Require().NoError(err)
	s.Zero(affected, "mark-all-read is idempotent")
}
