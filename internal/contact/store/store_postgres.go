package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"linkage/internal/contact/models"
	"linkage/internal/contact/ports"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/sentinel"
	"linkage/pkg/platform/tx"
)

const (
	// DefaultTxTimeout bounds an identify transaction whose context carries
	// no deadline.
	DefaultTxTimeout = 5 * time.Second

	// identifyLockKey is the advisory lock every identify transaction takes
	// before reading, so reconciliations run one at a time.
	identifyLockKey int64 = 0x6c696e6b616765
)

const contactColumns = "id, email, phone_number, linked_id, link_precedence, created_at, updated_at"

var _ ports.ContactStoreTx = (*PostgresStore)(nil)

var tracer = otel.Tracer("linkage/contact/store")

// PostgresStore persists contacts in PostgreSQL.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgres builds a store over db. A zero timeout uses DefaultTxTimeout.
func NewPostgres(db *sql.DB, timeout time.Duration) *PostgresStore {
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	return &PostgresStore{db: db, timeout: timeout}
}

// RunInTx runs fn inside one database transaction holding the identify
// advisory lock. The lock is released when the transaction ends.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(store ports.ContactStore) error) (err error) {
	ctx, span := tracer.Start(ctx, "contact.store.RunInTx")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "transaction failed")
		}
		span.End()
	}()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	txCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	sqlTx, err := s.db.BeginTx(txCtx, nil)
	if err != nil {
		return s.txError(txCtx, fmt.Errorf("begin transaction: %w: %w", sentinel.ErrUnavailable, err))
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if _, err := sqlTx.ExecContext(txCtx, "SELECT pg_advisory_xact_lock($1)", identifyLockKey); err != nil {
		return s.txError(txCtx, fmt.Errorf("acquire identify lock: %w", err))
	}

	if err := fn(&postgresTx{store: s, tx: sqlTx}); err != nil {
		return s.txError(txCtx, err)
	}

	if err := sqlTx.Commit(); err != nil {
		return s.txError(txCtx, fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func (s *PostgresStore) txError(txCtx context.Context, err error) error {
	if dErrors.HasCode(err, dErrors.CodeTimeout) {
		return err
	}
	if txCtx.Err() != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "identify transaction timed out")
	}
	return err
}

func (s *PostgresStore) execer(ctx context.Context) tx.Executor {
	return tx.ExecutorFrom(ctx, s.db)
}

// List returns every stored contact ordered by ID.
func (s *PostgresStore) List(ctx context.Context) ([]*models.Contact, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		"SELECT "+contactColumns+" FROM contacts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return scanContacts(rows)
}

// FindByID returns the contact with id or sentinel.ErrNotFound.
func (s *PostgresStore) FindByID(ctx context.Context, id models.ContactID) (*models.Contact, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE id = $1", int64(id))
	contact, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find contact %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find contact %s: %w", id, err)
	}
	return contact, nil
}

func (s *PostgresStore) findByEmailOrPhone(ctx context.Context, email, phoneNumber string) ([]*models.Contact, error) {
	if email == "" && phoneNumber == "" {
		return []*models.Contact{}, nil
	}
	rows, err := s.execer(ctx).QueryContext(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE email = $1 OR phone_number = $2 ORDER BY created_at, id",
		nullString(email), nullString(phoneNumber))
	if err != nil {
		return nil, fmt.Errorf("query contacts by email or phone: %w", err)
	}
	return scanContacts(rows)
}

func (s *PostgresStore) findLinked(ctx context.Context, id models.ContactID) ([]*models.Contact, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		"SELECT "+contactColumns+" FROM contacts "+
			"WHERE linked_id = $1 OR id = (SELECT linked_id FROM contacts WHERE id = $1) "+
			"ORDER BY created_at, id",
		int64(id))
	if err != nil {
		return nil, fmt.Errorf("query contacts linked to %s: %w", id, err)
	}
	return scanContacts(rows)
}

func (s *PostgresStore) create(ctx context.Context, contact *models.Contact) error {
	if contact == nil || !contact.ID.IsNil() {
		return fmt.Errorf("create contact: %w", sentinel.ErrInvalidState)
	}
	var id int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`INSERT INTO contacts (email, phone_number, linked_id, link_precedence)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		nullString(contact.Email), nullString(contact.PhoneNumber), nullID(contact.LinkedID), string(contact.LinkPrecedence),
	).Scan(&id, &contact.CreatedAt, &contact.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	contact.ID = models.ContactID(id)
	return nil
}

func (s *PostgresStore) save(ctx context.Context, contact *models.Contact) error {
	if contact == nil {
		return fmt.Errorf("save contact: %w", sentinel.ErrInvalidState)
	}
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE contacts SET link_precedence = $2, linked_id = $3, updated_at = $4 WHERE id = $1`,
		int64(contact.ID), string(contact.LinkPrecedence), nullID(contact.LinkedID), contact.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update contact %s: %w", contact.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update contact %s: %w", contact.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update contact %s: %w", contact.ID, sentinel.ErrNotFound)
	}
	return nil
}

// postgresTx binds store calls to one open transaction.
type postgresTx struct {
	store *PostgresStore
	tx    *sql.Tx
}

func (t *postgresTx) FindByEmailOrPhone(ctx context.Context, email, phoneNumber string) ([]*models.Contact, error) {
	return t.store.findByEmailOrPhone(tx.WithTx(ctx, t.tx), email, phoneNumber)
}

func (t *postgresTx) FindLinked(ctx context.Context, id models.ContactID) ([]*models.Contact, error) {
	return t.store.findLinked(tx.WithTx(ctx, t.tx), id)
}

func (t *postgresTx) Create(ctx context.Context, contact *models.Contact) error {
	return t.store.create(tx.WithTx(ctx, t.tx), contact)
}

func (t *postgresTx) Save(ctx context.Context, contact *models.Contact) error {
	return t.store.save(tx.WithTx(ctx, t.tx), contact)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var (
		c          models.Contact
		id         int64
		email      sql.NullString
		phone      sql.NullString
		linkedID   sql.NullInt64
		precedence string
	)
	if err := row.Scan(&id, &email, &phone, &linkedID, &precedence, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ID = models.ContactID(id)
	c.Email = email.String
	c.PhoneNumber = phone.String
	c.LinkPrecedence = models.LinkPrecedence(precedence)
	if linkedID.Valid {
		linked := models.ContactID(linkedID.Int64)
		c.LinkedID = &linked
	}
	return &c, nil
}

func scanContacts(rows *sql.Rows) ([]*models.Contact, error) {
	defer rows.Close()
	out := make([]*models.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullID(id *models.ContactID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}
