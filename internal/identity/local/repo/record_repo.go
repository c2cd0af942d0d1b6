package repo

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sort"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/entity"
)

// mutableColumns lists, per exposed table, the columns an update may set.
var mutableColumns = map[string]map[string]bool{
	entity.ProfilesTable: {"full_name": true, "avatar_url": true},
}

// checkUpdate rejects tables and columns outside the whitelist with the
// same kind of message a hosted record API would give.
func checkUpdate(table string, fields map[string]any) error {
	cols, ok := mutableColumns[table]
	if !ok {
		return identity.Reject(http.StatusNotFound, "42P01", fmt.Sprintf("relation %q does not exist", table))
	}
	for col := range fields {
		if !cols[col] {
			return identity.Reject(http.StatusBadRequest, "PGRST204", fmt.Sprintf("Could not find the '%s' column of '%s'", col, table))
		}
	}
	return nil
}

// RecordRepo reads and updates rows keyed by id using sqlx and squirrel.
type RecordRepo struct {
	db *sqlx.DB
}

func NewRecordRepo(db *sqlx.DB) *RecordRepo { return &RecordRepo{db: db} }

func (r *RecordRepo) Get(ctx context.Context, table, key string, dest any) error {
	if _, ok := mutableColumns[table]; !ok {
		return checkUpdate(table, nil)
	}
	query, args, err := squirrel.
		Select("*").
		From(table).
		Where(squirrel.Eq{"id": key}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "build select")
	}
	if err := r.db.GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(identity.ErrNotFound, "%s %s", table, key)
		}
		return errors.Wrapf(err, "select %s", table)
	}
	return nil
}

// Update sets fields on the row and scans the stored row back into dest.
// updated_at is maintained here, never taken from fields.
func (r *RecordRepo) Update(ctx context.Context, table, key string, fields map[string]any, dest any) error {
	if err := checkUpdate(table, fields); err != nil {
		return err
	}
	builder := squirrel.Update(table)
	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		builder = builder.Set(col, fields[col])
	}
	query, args, err := builder.
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": key}).
		Suffix("RETURNING *").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "build update")
	}
	if err := r.db.QueryRowxContext(ctx, query, args...).StructScan(dest); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(identity.ErrNotFound, "%s %s", table, key)
		}
		return errors.Wrapf(err, "update %s", table)
	}
	return nil
}
