package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/brosis-admin-api/internal/models"
)

const userColumns = `id, username, email, full_name, phone, area, house, student_id, password_hash, role, is_admin, is_root, status, password_change_required, created_at, updated_at`

// userSelect reads legacy rows whose role was never set as an empty role.
const userSelect = `id, username, email, full_name, phone, area, house, student_id, password_hash, COALESCE(role, '') AS role, is_admin, is_root, status, password_change_required, created_at, updated_at`

const insertUserQuery = `INSERT INTO users (` + userColumns + `) VALUES (:id, :username, :email, :full_name, :phone, :area, :house, :student_id, :password_hash, :role, :is_admin, :is_root, :status, :password_change_required, :created_at, :updated_at)`

// BulkUserScope narrows the "all" population of a bulk user operation.
type BulkUserScope struct {
	ExcludeRoles []models.UserRole
}

// UserRepository provides database access for user management.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userSelect + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindByIdentifier returns a user by username or email, case-insensitively.
func (r *UserRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	query := `SELECT ` + userSelect + ` FROM users WHERE LOWER(username) = $1 OR LOWER(email) = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(strings.TrimSpace(identifier))); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by identifier: %w", err)
	}
	return &user, nil
}

// FindByIDs returns the users matching ids. Unknown IDs are silently absent.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + userSelect + ` FROM users WHERE id = ANY($1)`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find users by ids: %w", err)
	}
	return users, nil
}

var userSorts = map[string]string{
	"created_at": "created_at",
	"createdAt":  "created_at",
	"username":   "username",
	"full_name":  "full_name",
	"fullName":   "full_name",
	"role":       "role",
	"status":     "status",
	"area":       "area",
}

// List returns users matching filter ordered by creation time.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	baseQuery, args := userWhere(filter)
	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC", userSelect, baseQuery)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ListPage returns one page of users and the total match count.
func (r *UserRepository) ListPage(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery, args := userWhere(filter)
	page, size := models.PageWindow(filter.Page, filter.PageSize)

	sortColumn := "created_at"
	if column, ok := userSorts[filter.SortBy]; ok {
		sortColumn = column
	}
	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d", userSelect, baseQuery, sortColumn, sortOrder, size, (page-1)*size)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users page: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

func userWhere(filter models.UserFilter) (string, []interface{}) {
	baseQuery := `FROM users WHERE 1=1`
	var conditions []string
	var args []interface{}

	if len(filter.IDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.IDs))
	}
	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Area != "" {
		conditions = append(conditions, fmt.Sprintf("area = $%d", len(args)+1))
		args = append(args, filter.Area)
	}
	if filter.House != "" {
		conditions = append(conditions, fmt.Sprintf("house = $%d", len(args)+1))
		args = append(args, filter.House)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(username) LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(full_name) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.ExcludeProtected {
		conditions = append(conditions, fmt.Sprintf("COALESCE(role, '') <> $%d AND COALESCE(is_root, FALSE) = FALSE AND LOWER(TRIM(username)) <> ALL($%d)", len(args)+1, len(args)+2))
		args = append(args, models.RoleRoot, pq.Array(models.ReservedUsernames))
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}
	return baseQuery, args
}

// ListBulkCandidates returns every user a bulk sweep may touch. Root users,
// legacy root flags and reserved usernames are filtered out in SQL.
func (r *UserRepository) ListBulkCandidates(ctx context.Context, scope BulkUserScope) ([]models.User, error) {
	query := `SELECT ` + userSelect + ` FROM users WHERE COALESCE(role, '') <> $1 AND COALESCE(is_root, FALSE) = FALSE AND LOWER(TRIM(username)) <> ALL($2)`
	args := []interface{}{models.RoleRoot, pq.Array(models.ReservedUsernames)}
	if len(scope.ExcludeRoles) > 0 {
		roles := make([]string, len(scope.ExcludeRoles))
		for i, role := range scope.ExcludeRoles {
			roles[i] = string(role)
		}
		query += fmt.Sprintf(" AND COALESCE(role, '') <> ALL($%d)", len(args)+1)
		args = append(args, pq.Array(roles))
	}
	query += ` ORDER BY created_at ASC`

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list bulk candidates: %w", err)
	}
	return users, nil
}

// ListBroSis returns active BroSis accounts of an area and house.
func (r *UserRepository) ListBroSis(ctx context.Context, area, house string) ([]models.User, error) {
	query := `SELECT ` + userSelect + ` FROM users WHERE role = $1 AND status = $2 AND area = $3 AND house = $4 ORDER BY created_at ASC`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, models.RoleBroSis, models.StatusActive, area, house); err != nil {
		return nil, fmt.Errorf("list brosis: %w", err)
	}
	return users, nil
}

// ExistingUserKeys returns every stored username and email in one pass.
func (r *UserRepository) ExistingUserKeys(ctx context.Context) ([]string, []string, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT username, email FROM users`)
	if err != nil {
		return nil, nil, fmt.Errorf("load user keys: %w", err)
	}
	defer rows.Close()

	var usernames, emails []string
	for rows.Next() {
		var username, email string
		if err := rows.Scan(&username, &email); err != nil {
			return nil, nil, fmt.Errorf("scan user keys: %w", err)
		}
		usernames = append(usernames, username)
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate user keys: %w", err)
	}
	return usernames, emails, nil
}

// InsertBatch inserts users in one transaction. Either every row is stored or
// none is.
func (r *UserRepository) InsertBatch(ctx context.Context, users []models.User) (err error) {
	if len(users) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range users {
		prepareUser(&users[i], now)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert users: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.NamedExecContext(ctx, insertUserQuery, users); err != nil {
		return fmt.Errorf("insert users: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit insert users: %w", err)
	}
	return nil
}

// InsertOne inserts a single user outside of any batch.
func (r *UserRepository) InsertOne(ctx context.Context, user models.User) error {
	prepareUser(&user, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, insertUserQuery, user); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UpdateStatus sets the account status.
func (r *UserRepository) UpdateStatus(ctx context.Context, id, status string) error {
	const query = `UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return requireAffected(res)
}

// UpdatePassword stores a new password hash and the change-required flag.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, changeRequired bool) error {
	const query = `UPDATE users SET password_hash = $2, password_change_required = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, passwordHash, changeRequired, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a user. sql.ErrNoRows is returned when nothing was deleted.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireAffected(res)
}

func prepareUser(user *models.User, now time.Time) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
