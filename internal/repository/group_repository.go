package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/brosis-admin-api/internal/models"
)

const groupColumns = `id, name, description, mentor_id, area, house, leader_id, created_at, updated_at`

// GroupRepository persists mentor groups and their members.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// ListByMentor returns one page of a mentor's groups, newest first.
func (r *GroupRepository) ListByMentor(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error) {
	conditions := []string{"mentor_id = $1", "area = $2", "house = $3"}
	args := []interface{}{filter.MentorID, filter.Area, filter.House}
	if term := strings.TrimSpace(filter.Search); term != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(term)+"%")
	}
	where := " WHERE " + strings.Join(conditions, " AND ")
	page, size := models.PageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM mentor_groups%s ORDER BY created_at DESC LIMIT %d OFFSET %d", groupColumns, where, size, (page-1)*size)
	var groups []models.Group
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list groups: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM mentor_groups"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count groups: %w", err)
	}
	return groups, total, nil
}

// FindByID loads a group with its members. sql.ErrNoRows is returned as is.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	if err := r.db.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM mentor_groups WHERE id = $1`, id); err != nil {
		return nil, err
	}

	const members = `SELECT m.group_id, m.user_id, u.username, u.full_name, m.joined_at FROM mentor_group_members m JOIN users u ON u.id = m.user_id WHERE m.group_id = $1 ORDER BY m.joined_at ASC`
	if err := r.db.SelectContext(ctx, &group.Members, members, id); err != nil {
		return nil, fmt.Errorf("load group members: %w", err)
	}
	if group.Members == nil {
		group.Members = []models.GroupMember{}
	}
	return &group, nil
}

// Create stores a new group.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	now := time.Now().UTC()
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	group.CreatedAt, group.UpdatedAt = now, now
	const query = `INSERT INTO mentor_groups (` + groupColumns + `) VALUES (:id, :name, :description, :mentor_id, :area, :house, :leader_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// Update stores the name and description of a group.
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE mentor_groups SET name = :name, description = :description, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, group)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a group and its memberships.
func (r *GroupRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete group: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM mentor_group_members WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("delete group members: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM mentor_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if err = requireAffected(res); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete group: %w", err)
	}
	return nil
}

// AddMembers links users to a group in one transaction.
func (r *GroupRepository) AddMembers(ctx context.Context, groupID string, userIDs []string) (err error) {
	if len(userIDs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add members: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for _, userID := range userIDs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO mentor_group_members (group_id, user_id, joined_at) VALUES ($1, $2, $3)`, groupID, userID, now); err != nil {
			return fmt.Errorf("add group member: %w", err)
		}
	}
	if _, err = tx.ExecContext(ctx, `UPDATE mentor_groups SET updated_at = $2 WHERE id = $1`, groupID, now); err != nil {
		return fmt.Errorf("touch group: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit add members: %w", err)
	}
	return nil
}

// RemoveMember drops a membership and clears the leader when it was them.
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, userID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove member: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM mentor_group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	if err = requireAffected(res); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE mentor_groups SET leader_id = NULL, updated_at = $3 WHERE id = $1 AND leader_id = $2`, groupID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear group leader: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit remove member: %w", err)
	}
	return nil
}

// SetLeader stores the group leader. A nil leaderID clears it.
func (r *GroupRepository) SetLeader(ctx context.Context, groupID string, leaderID *string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE mentor_groups SET leader_id = $2, updated_at = $3 WHERE id = $1`, groupID, leaderID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set group leader: %w", err)
	}
	return requireAffected(res)
}
