//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"linkage/internal/contact/models"
	"linkage/internal/contact/ports"
	"linkage/internal/contact/store"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/sentinel"
	"linkage/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB, 0)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "contacts"))
}

func (s *PostgresStoreSuite) create(contacts ...*models.Contact) {
	ctx := context.Background()
	s.Require().NoError(s.store.RunInTx(ctx, func(tx ports.ContactStore) error {
		for _, c := range contacts {
			if err := tx.Create(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}))
}

func newPrimary(email, phone string) *models.Contact {
	c, _ := models.NewPrimaryContact(email, phone, time.Now())
	return c
}

func (s *PostgresStoreSuite) TestCreateAssignsIdentity() {
	a, b := newPrimary("a@x.io", ""), newPrimary("", "100")
	s.create(a, b)

	s.Equal(models.ContactID(1), a.ID)
	s.Equal(models.ContactID(2), b.ID)
	s.False(a.CreatedAt.IsZero())
	s.False(b.CreatedAt.Before(a.CreatedAt), "clock_timestamp does not go back within one transaction")

	found, err := s.store.FindByID(context.Background(), b.ID)
	s.Require().NoError(err)
	s.Empty(found.Email, "absent email is stored as NULL and read back empty")
	s.Equal("100", found.PhoneNumber)
	s.Nil(found.LinkedID)
}

func (s *PostgresStoreSuite) TestQueries() {
	ctx := context.Background()
	p := newPrimary("p@x.io", "100")
	other := newPrimary("o@x.io", "200")
	s.create(p, other)
	child, _ := models.NewSecondaryContact("c@x.io", "100", p.ID, time.Now())
	s.create(child)

	s.Require().NoError(s.store.RunInTx(ctx, func(tx ports.ContactStore) error {
		byPhone, err := tx.FindByEmailOrPhone(ctx, "", "100")
		s.Require().NoError(err)
		s.Len(byPhone, 2)

		byEither, err := tx.FindByEmailOrPhone(ctx, "o@x.io", "100")
		s.Require().NoError(err)
		s.Len(byEither, 3)

		none, err := tx.FindByEmailOrPhone(ctx, "", "")
		s.Require().NoError(err)
		s.Empty(none)

		linkedToPrimary, err := tx.FindLinked(ctx, p.ID)
		s.Require().NoError(err)
		s.Require().Len(linkedToPrimary, 1)
		s.Equal(child.ID, linkedToPrimary[0].ID)

		upToPrimary, err := tx.FindLinked(ctx, child.ID)
		s.Require().NoError(err)
		s.Require().Len(upToPrimary, 1)
		s.Equal(p.ID, upToPrimary[0].ID)
		return nil
	}))
}

func (s *PostgresStoreSuite) TestSaveAndRollback() {
	ctx := context.Background()
	older, younger := newPrimary("a@x.io", "1"), newPrimary("b@x.io", "2")
	s.create(older, younger)

	boom := errors.New("boom")
	err := s.store.RunInTx(ctx, func(tx ports.ContactStore) error {
		s.Require().NoError(younger.LinkTo(older.ID, time.Now()))
		s.Require().NoError(tx.Save(ctx, younger))
		return boom
	})
	s.ErrorIs(err, boom)

	stored, err := s.store.FindByID(ctx, younger.ID)
	s.Require().NoError(err)
	s.True(stored.IsRoot(), "rolled back demotion is not visible")

	s.Require().NoError(s.store.RunInTx(ctx, func(tx ports.ContactStore) error {
		return tx.Save(ctx, younger)
	}))
	stored, err = s.store.FindByID(ctx, younger.ID)
	s.Require().NoError(err)
	s.True(stored.IsLinkedTo(older.ID))

	err = s.store.RunInTx(ctx, func(tx ports.ContactStore) error {
		return tx.Save(ctx, &models.Contact{ID: 999, LinkPrecedence: models.LinkPrecedencePrimary, UpdatedAt: time.Now()})
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSchemaRejectsBrokenLinks() {
	ctx := context.Background()
	err := s.store.RunInTx(ctx, func(tx ports.ContactStore) error {
		return tx.Create(ctx, &models.Contact{Email: "x@x.io", LinkPrecedence: models.LinkPrecedenceSecondary})
	})
	s.Error(err, "secondary without a link violates the check constraint")
}

func (s *PostgresStoreSuite) TestDeadlineMapsToTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.store.RunInTx(ctx, func(tx ports.ContactStore) error {
		<-ctx.Done()
		_, err := tx.FindByEmailOrPhone(ctx, "a@x.io", "")
		return err
	})
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout), "got %v", err)
}

func (s *PostgresStoreSuite) TestListAndFindByID() {
	ctx := context.Background()
	s.create(newPrimary("a@x.io", ""), newPrimary("b@x.io", ""))

	all, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(all, 2)

	_, err = s.store.FindByID(ctx, 404)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
