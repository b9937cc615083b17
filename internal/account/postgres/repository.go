// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements account.Repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/account"
)

// poolIface is the subset of pgxpool.Pool used by the repository.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectColumns = "id, email, password_hash, name, phone, address, is_active, " +
	"activation_code, activation_expires_at, reset_code, reset_expires_at, created_at, updated_at"

// Repository implements account.Repository using PostgreSQL.
type Repository struct {
	pool poolIface
	now  func() time.Time
}

var _ account.Repository = (*Repository)(nil)

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the clock used to stamp updated_at.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRepository creates a Repository over pool.
func NewRepository(pool poolIface, opts ...Option) *Repository {
	r := &Repository{pool: pool, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindByEmail implements account.Repository. Email comparison is exact.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM accounts WHERE email = $1`, email)
	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(account.CodeAccountNotFound).With("email", email).Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code(account.CodeStoreFailed).
			With("operation", "find account by email").
			With("email", email).
			Wrap(err)
	}
	return acct, nil
}

// FindByID implements account.Repository.
func (r *Repository) FindByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM accounts WHERE id = $1`, id.String())
	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(account.CodeAccountNotFound).With("id", id.String()).Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code(account.CodeStoreFailed).
			With("operation", "find account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return acct, nil
}

// ExistsByEmail implements account.Repository.
func (r *Repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, oops.Code(account.CodeStoreFailed).
			With("operation", "check email exists").
			With("email", email).
			Wrap(err)
	}
	return exists, nil
}

// Create implements account.Repository. The unique index on email turns a
// racing duplicate insert into DUPLICATE_EMAIL.
func (r *Repository) Create(ctx context.Context, acct *account.Account) error {
	actCode, actExp := slotColumns(acct.Activation)
	resetCode, resetExp := slotColumns(acct.Reset)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, email, password_hash, name, phone, address, is_active,
			activation_code, activation_expires_at, reset_code, reset_expires_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		acct.ID.String(),
		acct.Email,
		acct.PasswordHash,
		acct.Name,
		acct.Phone,
		acct.Address,
		acct.IsActive,
		actCode,
		actExp,
		resetCode,
		resetExp,
		acct.CreatedAt,
		acct.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code(account.CodeDuplicateEmail).With("email", acct.Email).Errorf("email already registered")
	}
	if err != nil {
		return oops.Code(account.CodeStoreFailed).
			With("operation", "insert account").
			With("email", acct.Email).
			Wrap(err)
	}
	return nil
}

// UpdateFields implements account.Repository. Only the columns named by the
// patch are written, so concurrent updates to disjoint fields do not clobber
// each other.
func (r *Repository) UpdateFields(ctx context.Context, id ulid.ULID, patch account.Patch) error {
	var b builder
	sets := make([]string, 0, 8)
	set := func(column string, v any) {
		sets = append(sets, column+" = "+b.arg(v))
	}

	if patch.Email != nil {
		set("email", *patch.Email)
	}
	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Phone != nil {
		set("phone", *patch.Phone)
	}
	if patch.Address != nil {
		set("address", *patch.Address)
	}
	if patch.PasswordHash != nil {
		set("password_hash", *patch.PasswordHash)
	}
	if patch.IsActive != nil {
		set("is_active", *patch.IsActive)
	}
	if u := patch.Activation; u != nil {
		code, exp := slotColumns(slotValue(u))
		set("activation_code", code)
		set("activation_expires_at", exp)
	}
	if u := patch.Reset; u != nil {
		code, exp := slotColumns(slotValue(u))
		set("reset_code", code)
		set("reset_expires_at", exp)
	}
	set("updated_at", r.now())

	sql := `UPDATE accounts SET ` + strings.Join(sets, ", ") + ` WHERE id = ` + b.arg(id.String())
	tag, err := r.pool.Exec(ctx, sql, b.args...)
	if isUniqueViolation(err) {
		return oops.Code(account.CodeDuplicateEmail).With("id", id.String()).Errorf("email already registered")
	}
	if err != nil {
		return oops.Code(account.CodeStoreFailed).
			With("operation", "update account").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code(account.CodeAccountNotFound).With("id", id.String()).Wrap(account.ErrNotFound)
	}
	return nil
}

// Delete implements account.Repository.
func (r *Repository) Delete(ctx context.Context, id ulid.ULID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code(account.CodeStoreFailed).
			With("operation", "delete account").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code(account.CodeAccountNotFound).With("id", id.String()).Wrap(account.ErrNotFound)
	}
	return nil
}

// List implements account.Repository. The query must already be validated;
// unknown fields are rejected rather than interpolated.
func (r *Repository) List(ctx context.Context, q account.Query) ([]*account.Account, int, error) {
	q = q.Normalized()

	var b builder
	where, err := b.where(q.Filters)
	if err != nil {
		return nil, 0, err
	}
	order, err := orderBy(q.Sort)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`+where, b.args...).Scan(&total); err != nil {
		return nil, 0, oops.Code(account.CodeStoreFailed).With("operation", "count accounts").Wrap(err)
	}

	sql := `SELECT ` + selectColumns + ` FROM accounts` + where + order +
		` LIMIT ` + b.arg(q.PageSize) + ` OFFSET ` + b.arg(q.Offset())
	rows, err := r.pool.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, 0, oops.Code(account.CodeStoreFailed).With("operation", "list accounts").Wrap(err)
	}
	defer rows.Close()

	accounts := make([]*account.Account, 0, q.PageSize)
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, 0, oops.Code(account.CodeStoreFailed).With("operation", "scan account").Wrap(err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, oops.Code(account.CodeStoreFailed).With("operation", "iterate accounts").Wrap(err)
	}
	return accounts, total, nil
}

var columns = map[account.Field]string{
	account.FieldEmail:     "email",
	account.FieldName:      "name",
	account.FieldIsActive:  "is_active",
	account.FieldCreatedAt: "created_at",
}

var operators = map[account.Op]string{
	account.OpEq: "=",
	account.OpNe: "<>",
	account.OpLt: "<",
	account.OpGt: ">",
}

// builder accumulates positional arguments.
type builder struct {
	args []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *builder) where(filters []account.Filter) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(filters))
	for i, f := range filters {
		column, ok := columns[f.Field]
		if !ok {
			return "", oops.Code(account.CodeInvalidQuery).With("filter_index", i).Errorf("unknown filter field %q", f.Field)
		}
		v, err := f.TypedValue()
		if err != nil {
			return "", oops.Code(account.CodeInvalidQuery).With("filter_index", i).Wrap(err)
		}
		if f.Op == account.OpContains {
			s, _ := v.(string)
			clauses = append(clauses, column+` ILIKE `+b.arg("%"+escapeLike(s)+"%")+` ESCAPE '\'`)
			continue
		}
		op, ok := operators[f.Op]
		if !ok {
			return "", oops.Code(account.CodeInvalidQuery).With("filter_index", i).Errorf("unknown operator %q", f.Op)
		}
		clauses = append(clauses, column+" "+op+" "+b.arg(v))
	}
	return " WHERE " + strings.Join(clauses, " AND "), nil
}

func orderBy(keys []account.SortKey) (string, error) {
	if len(keys) == 0 {
		return " ORDER BY created_at ASC, id ASC", nil
	}
	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		column, ok := columns[k.Field]
		if !ok {
			return "", oops.Code(account.CodeInvalidQuery).With("sort", string(k.Field)).Errorf("unknown sort field %q", k.Field)
		}
		dir := " ASC"
		if k.Desc {
			dir = " DESC"
		}
		parts = append(parts, column+dir)
	}
	parts = append(parts, "id ASC")
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func slotValue(u *account.SlotUpdate) *account.CodeSlot {
	if u.Clear {
		return nil
	}
	return u.Value
}

func slotColumns(slot *account.CodeSlot) (*string, *time.Time) {
	if slot == nil {
		return nil, nil
	}
	code, exp := slot.Code, slot.ExpiresAt
	return &code, &exp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		acct      account.Account
		idStr     string
		actCode   *string
		actExp    *time.Time
		resetCode *string
		resetExp  *time.Time
	)
	err := row.Scan(
		&idStr,
		&acct.Email,
		&acct.PasswordHash,
		&acct.Name,
		&acct.Phone,
		&acct.Address,
		&acct.IsActive,
		&actCode,
		&actExp,
		&resetCode,
		&resetExp,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	acct.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code(account.CodeStoreFailed).With("id", idStr).Wrapf(err, "corrupt account id")
	}
	acct.Activation = slotFrom(actCode, actExp)
	acct.Reset = slotFrom(resetCode, resetExp)
	return &acct, nil
}

func slotFrom(code *string, exp *time.Time) *account.CodeSlot {
	if code == nil || exp == nil {
		return nil
	}
	return &account.CodeSlot{Code: *code, ExpiresAt: exp.UTC()}
}
