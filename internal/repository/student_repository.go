package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/brosis-admin-api/internal/models"
)

const studentColumns = `id, student_id, full_name, email, phone, parent_phone, address, area, house, status, matched, user_id, notes, registration_date`

const insertStudentQuery = `INSERT INTO students (` + studentColumns + `) VALUES (:id, :student_id, :full_name, :email, :phone, :parent_phone, :address, :area, :house, :status, :matched, :user_id, :notes, :registration_date)`

// StudentRepository handles persistence for students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a new repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByIDs returns the students matching ids.
func (r *StudentRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = ANY($1)`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find students by ids: %w", err)
	}
	return students, nil
}

var studentSorts = map[string]string{
	"registration_date": "registration_date",
	"registrationDate":  "registration_date",
	"full_name":         "full_name",
	"fullName":          "full_name",
	"student_id":        "student_id",
	"studentId":         "student_id",
	"status":            "status",
	"area":              "area",
	"house":             "house",
}

// FindByID returns a single student.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByStudentID looks a student up by the external student ID, ignoring case.
func (r *StudentRepository) FindByStudentID(ctx context.Context, studentID string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE LOWER(student_id) = LOWER($1) LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, strings.TrimSpace(studentID)); err != nil {
		return nil, err
	}
	return &student, nil
}

// List returns every student matching filter, oldest registration first.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	where, args := studentWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM students %s ORDER BY registration_date ASC", studentColumns, where)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// ListPage returns one page of students together with the total match count.
func (r *StudentRepository) ListPage(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	where, args := studentWhere(filter)
	page, size := models.PageWindow(filter.Page, filter.PageSize)

	sortColumn := "registration_date"
	if column, ok := studentSorts[filter.SortBy]; ok {
		sortColumn = column
	}
	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	query := fmt.Sprintf("SELECT %s FROM students %s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d", studentColumns, where, sortColumn, sortOrder, size, (page-1)*size)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students page: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// Count returns how many students match filter.
func (r *StudentRepository) Count(ctx context.Context, filter models.StudentFilter) (int, error) {
	where, args := studentWhere(filter)
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students "+where, args...); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return total, nil
}

// ListIDs returns the row IDs of every student matching filter.
func (r *StudentRepository) ListIDs(ctx context.Context, filter models.StudentFilter) ([]string, error) {
	where, args := studentWhere(filter)
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, "SELECT id FROM students "+where+" ORDER BY registration_date ASC", args...); err != nil {
		return nil, fmt.Errorf("list student ids: %w", err)
	}
	return ids, nil
}

func studentWhere(filter models.StudentFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	next := func(value interface{}) int {
		args = append(args, value)
		return len(args)
	}

	if len(filter.IDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("id = ANY($%d)", next(pq.Array(filter.IDs))))
	}
	if filter.Area != "" {
		conditions = append(conditions, fmt.Sprintf("area = $%d", next(filter.Area)))
	}
	if filter.House != "" {
		conditions = append(conditions, fmt.Sprintf("house = $%d", next(filter.House)))
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", next(filter.Status)))
	}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", next(filter.UserID)))
	}
	if filter.Matched != nil {
		conditions = append(conditions, fmt.Sprintf("matched = $%d", next(*filter.Matched)))
	}
	if filter.HasHouse != nil {
		if *filter.HasHouse {
			conditions = append(conditions, "COALESCE(house, '') <> ''")
		} else {
			conditions = append(conditions, "COALESCE(house, '') = ''")
		}
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		n := next("%" + strings.ToLower(term) + "%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%[1]d OR LOWER(email) LIKE $%[1]d OR LOWER(student_id) LIKE $%[1]d OR user_id IN (SELECT id FROM users WHERE LOWER(full_name) LIKE $%[1]d))", n))
	}
	if name := strings.TrimSpace(filter.BroSisName); name != "" {
		n := next("%" + strings.ToLower(name) + "%")
		conditions = append(conditions, fmt.Sprintf("user_id IN (SELECT id FROM users WHERE LOWER(full_name) LIKE $%d)", n))
	}

	if len(conditions) == 0 {
		return "WHERE 1=1", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// ExistingStudentIDs returns every stored external student ID.
func (r *StudentRepository) ExistingStudentIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT student_id FROM students`); err != nil {
		return nil, fmt.Errorf("load student ids: %w", err)
	}
	return ids, nil
}

// CountStudentsByHouse returns the occupancy of every house of area that has
// at least one student.
func (r *StudentRepository) CountStudentsByHouse(ctx context.Context, area string) (map[string]int, error) {
	const query = `SELECT house, COUNT(*) AS total FROM students WHERE area = $1 AND house IS NOT NULL GROUP BY house`
	var rows []struct {
		House string `db:"house"`
		Total int    `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, area); err != nil {
		return nil, fmt.Errorf("count students by house: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.House] = row.Total
	}
	return counts, nil
}

// CountAssignedStudents returns how many students each user currently owns.
func (r *StudentRepository) CountAssignedStudents(ctx context.Context, userIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(userIDs))
	if len(userIDs) == 0 {
		return counts, nil
	}
	const query = `SELECT user_id, COUNT(*) AS total FROM students WHERE user_id = ANY($1) GROUP BY user_id`
	var rows []struct {
		UserID string `db:"user_id"`
		Total  int    `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("count assigned students: %w", err)
	}
	for _, row := range rows {
		counts[row.UserID] = row.Total
	}
	return counts, nil
}

// InsertBatch stores students in one transaction.
func (r *StudentRepository) InsertBatch(ctx context.Context, students []models.Student) (err error) {
	if len(students) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range students {
		prepareStudent(&students[i], now)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert students: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.NamedExecContext(ctx, insertStudentQuery, students); err != nil {
		return fmt.Errorf("insert students: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit insert students: %w", err)
	}
	return nil
}

// InsertOne stores a single student.
func (r *StudentRepository) InsertOne(ctx context.Context, student models.Student) error {
	prepareStudent(&student, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, insertStudentQuery, student); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// UpdateAssignment persists the BroSis link of a student.
func (r *StudentRepository) UpdateAssignment(ctx context.Context, student models.Student) error {
	const query = `UPDATE students SET user_id = :user_id, matched = :matched WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student assignment: %w", err)
	}
	return requireAffected(res)
}

// Update persists the editable fields of a student.
func (r *StudentRepository) Update(ctx context.Context, student models.Student) error {
	student.Matched = student.UserID != nil
	const query = `UPDATE students SET student_id = :student_id, full_name = :full_name, email = :email, phone = :phone, parent_phone = :parent_phone, address = :address, area = :area, house = :house, status = :status, matched = :matched, user_id = :user_id, notes = :notes WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return requireAffected(res)
}

// UpdateStatus sets the status of a student.
func (r *StudentRepository) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE students SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update student status: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a student. sql.ErrNoRows is returned when nothing was deleted.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return requireAffected(res)
}

func prepareStudent(student *models.Student, now time.Time) {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.RegistrationDate.IsZero() {
		student.RegistrationDate = now
	}
	student.Matched = student.UserID != nil
}
