package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
	"github.com/noah-isme/brosis-admin-api/internal/models"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
)

type studentRecordStub struct {
	rows       map[string]models.Student
	order      []string
	lastFilter models.StudentFilter
	counts     map[string]int
	updated    []models.Student
	statuses   map[string]string
}

func newStudentRecordStub(students ...models.Student) *studentRecordStub {
	stub := &studentRecordStub{rows: map[string]models.Student{}, statuses: map[string]string{}}
	for _, s := range students {
		stub.rows[s.ID] = s
		stub.order = append(stub.order, s.ID)
	}
	return stub
}

func (s *studentRecordStub) FindByID(_ context.Context, id string) (*models.Student, error) {
	student, ok := s.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &student, nil
}

func (s *studentRecordStub) FindByStudentID(_ context.Context, studentID string) (*models.Student, error) {
	for _, id := range s.order {
		if strings.EqualFold(s.rows[id].StudentID, studentID) {
			student := s.rows[id]
			return &student, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *studentRecordStub) matching(filter models.StudentFilter) []models.Student {
	s.lastFilter = filter
	var out []models.Student
	for _, id := range s.order {
		student := s.rows[id]
		if filter.Area != "" && student.AreaName() != filter.Area {
			continue
		}
		if filter.UserID != "" && (student.UserID == nil || *student.UserID != filter.UserID) {
			continue
		}
		if filter.Matched != nil && student.Matched != *filter.Matched {
			continue
		}
		out = append(out, student)
	}
	return out
}

func (s *studentRecordStub) List(_ context.Context, filter models.StudentFilter) ([]models.Student, error) {
	return s.matching(filter), nil
}

func (s *studentRecordStub) ListPage(_ context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	rows := s.matching(filter)
	return rows, len(rows), nil
}

func (s *studentRecordStub) ListIDs(_ context.Context, filter models.StudentFilter) ([]string, error) {
	var ids []string
	for _, student := range s.matching(filter) {
		ids = append(ids, student.ID)
	}
	return ids, nil
}

func (s *studentRecordStub) Count(_ context.Context, filter models.StudentFilter) (int, error) {
	return len(s.matching(filter)), nil
}

func (s *studentRecordStub) CountAssignedStudents(_ context.Context, userIDs []string) (map[string]int, error) {
	out := map[string]int{}
	for _, id := range userIDs {
		out[id] = s.counts[id]
	}
	return out, nil
}

func (s *studentRecordStub) InsertOne(_ context.Context, student models.Student) error {
	s.rows[student.ID] = student
	s.order = append(s.order, student.ID)
	return nil
}

func (s *studentRecordStub) Update(_ context.Context, student models.Student) error {
	if _, ok := s.rows[student.ID]; !ok {
		return sql.ErrNoRows
	}
	s.rows[student.ID] = student
	s.updated = append(s.updated, student)
	return nil
}

func (s *studentRecordStub) UpdateStatus(_ context.Context, id, status string) error {
	s.statuses[id] = status
	return nil
}

func (s *studentRecordStub) Delete(_ context.Context, id string) error {
	if _, ok := s.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.rows, id)
	return nil
}

type studentUserStub struct {
	*brosisDirectoryStub
	lastFilter models.UserFilter
}

func (u *studentUserStub) List(_ context.Context, filter models.UserFilter) ([]models.User, error) {
	u.lastFilter = filter
	var out []models.User
	for _, id := range []string{"b1", "b2", "b3", "b4", "b5", "m1"} {
		user, ok := u.users[id]
		if !ok {
			continue
		}
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		if filter.Status != "" && user.Status != filter.Status {
			continue
		}
		if filter.Area != "" && user.AreaName() != filter.Area {
			continue
		}
		out = append(out, user)
	}
	return out, nil
}

func matchedStudent(id, area, house, brosis string) models.Student {
	s := student(id, area, house)
	s.AssignTo(brosis)
	s.RegistrationDate = time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	return s
}

func newStudentFixture(students ...models.Student) (*StudentService, *studentRecordStub, *studentUserStub, *auditWriterStub) {
	repo := newStudentRecordStub(students...)
	users := &studentUserStub{brosisDirectoryStub: newDirectory()}
	writer := &auditWriterStub{}
	svc := NewStudentService(repo, users, newCatalogStub(), NewAuditService(writer, nil, nil, nil), nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC) }
	return svc, repo, users, writer
}

var hanoiAdmin = BulkActor{ID: "admin-1", Role: models.RoleAdmin, Area: "Hanoi"}

func validCreateStudent(id string) dto.CreateStudentRequest {
	return dto.CreateStudentRequest{
		StudentID:   id,
		FullName:    "Tran Thi Binh",
		Email:       "binh@example.com",
		Phone:       "0901",
		ParentPhone: "0902",
		Address:     "12 Hang Bac",
		House:       "phoenix",
	}
}

func TestStudentListScopesNonRootActor(t *testing.T) {
	svc, repo, _, _ := newStudentFixture(student("s1", "Hanoi", "Phoenix"), student("s2", "Da Nang", "Lotus"))

	rows, page, err := svc.List(context.Background(), models.StudentFilter{Area: "Da Nang", PageSize: 500}, hanoiAdmin)
	require.NoError(t, err)

	assert.Equal(t, "Hanoi", repo.lastFilter.Area)
	assert.Equal(t, 20, repo.lastFilter.PageSize)
	require.Len(t, rows, 1)
	assert.Equal(t, "s1", rows[0].ID)
	assert.Equal(t, 1, page.TotalCount)
	assert.False(t, page.HasNext)
}

func TestStudentListRootSeesEveryArea(t *testing.T) {
	svc, repo, _, _ := newStudentFixture(student("s1", "Hanoi", "Phoenix"), student("s2", "Da Nang", "Lotus"))

	ids, err := svc.IDs(context.Background(), models.StudentFilter{}, BulkActor{ID: "root", Role: models.RoleRoot, Area: "Hanoi"})
	require.NoError(t, err)

	assert.Empty(t, repo.lastFilter.Area)
	assert.Equal(t, []string{"s1", "s2"}, ids)
}

func TestStudentGetRefusesOtherArea(t *testing.T) {
	svc, _, _, _ := newStudentFixture(student("s2", "Da Nang", "Lotus"))

	_, err := svc.Get(context.Background(), "s2", hanoiAdmin)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), "missing", hanoiAdmin)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentCreateRegistersPendingInActorArea(t *testing.T) {
	svc, repo, _, writer := newStudentFixture()

	created, err := svc.Create(context.Background(), validCreateStudent("SE100"), hanoiAdmin)
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, "Hanoi", created.AreaName())
	assert.Equal(t, "Phoenix", created.HouseName())
	assert.False(t, created.Matched)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC), created.RegistrationDate)
	assert.Contains(t, repo.rows, created.ID)
	assert.Equal(t, []string{models.AuditActionCreateStudent}, writer.actions())
}

func TestStudentCreateRejectsDuplicateStudentID(t *testing.T) {
	svc, _, _, writer := newStudentFixture(student("s1", "Hanoi", "Phoenix"))

	_, err := svc.Create(context.Background(), validCreateStudent("s1"), hanoiAdmin)
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "Student with ID 's1' already exists", appErr.Message)
	assert.Empty(t, writer.actions())
}

func TestStudentCreateChecksPlacement(t *testing.T) {
	svc, _, _, _ := newStudentFixture()

	req := validCreateStudent("SE101")
	req.Area = "Da Nang"
	req.House = ""
	_, err := svc.Create(context.Background(), req, hanoiAdmin)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	req = validCreateStudent("SE102")
	req.House = "Lotus"
	_, err = svc.Create(context.Background(), req, hanoiAdmin)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req = validCreateStudent("SE103")
	req.Area = "Atlantis"
	_, err = svc.Create(context.Background(), req, BulkActor{ID: "root", Role: models.RoleRoot})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentUpdateMovingHouseDropsBroSis(t *testing.T) {
	svc, repo, _, writer := newStudentFixture(matchedStudent("s1", "Hanoi", "Phoenix", "b1"))

	house := "Dragon"
	updated, err := svc.Update(context.Background(), "s1", dto.UpdateStudentRequest{House: &house}, hanoiAdmin)
	require.NoError(t, err)

	assert.Equal(t, "Dragon", updated.HouseName())
	assert.False(t, updated.Matched)
	assert.Nil(t, updated.UserID)
	require.Len(t, repo.updated, 1)
	assert.False(t, repo.updated[0].Matched)
	assert.Equal(t, []string{models.AuditActionUpdateStudent}, writer.actions())
}

func TestStudentUpdateKeepsBroSisWhenPlacementUnchanged(t *testing.T) {
	svc, _, _, _ := newStudentFixture(matchedStudent("s1", "Hanoi", "Phoenix", "b1"))

	name := "  Renamed  "
	house := "PHOENIX"
	updated, err := svc.Update(context.Background(), "s1", dto.UpdateStudentRequest{FullName: &name, House: &house}, hanoiAdmin)
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.FullName)
	assert.Equal(t, "Phoenix", updated.HouseName())
	assert.True(t, updated.Matched)
	require.NotNil(t, updated.UserID)
	assert.Equal(t, "b1", *updated.UserID)
}

func TestStudentUpdateAreaChangeClearsHouse(t *testing.T) {
	svc, _, _, _ := newStudentFixture(matchedStudent("s1", "Hanoi", "Phoenix", "b1"))

	area := "Da Nang"
	updated, err := svc.Update(context.Background(), "s1", dto.UpdateStudentRequest{Area: &area}, BulkActor{ID: "root", Role: models.RoleRoot})
	require.NoError(t, err)

	assert.Equal(t, "Da Nang", updated.AreaName())
	assert.Empty(t, updated.HouseName())
	assert.False(t, updated.Matched)
}

func TestStudentUpdateRejectsTakenStudentID(t *testing.T) {
	svc, _, _, _ := newStudentFixture(student("s1", "Hanoi", "Phoenix"), student("s2", "Hanoi", "Dragon"))

	taken := "s2"
	_, err := svc.Update(context.Background(), "s1", dto.UpdateStudentRequest{StudentID: &taken}, hanoiAdmin)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentToggleStatus(t *testing.T) {
	active := student("s1", "Hanoi", "Phoenix")
	active.Status = models.StatusActive
	svc, repo, _, writer := newStudentFixture(active, student("s2", "Hanoi", "Dragon"))

	toggled, err := svc.ToggleStatus(context.Background(), "s1", hanoiAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, toggled.Status)

	toggled, err = svc.ToggleStatus(context.Background(), "s2", hanoiAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, toggled.Status)

	assert.Equal(t, map[string]string{"s1": models.StatusInactive, "s2": models.StatusActive}, repo.statuses)
	assert.Equal(t, 2, countActions(writer, models.AuditActionToggleStudentStatus))
}

func TestStudentDeleteRefusesOtherArea(t *testing.T) {
	svc, repo, _, writer := newStudentFixture(student("s1", "Hanoi", "Phoenix"), student("s2", "Da Nang", "Lotus"))

	err := svc.Delete(context.Background(), "s2", hanoiAdmin)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), "s1", hanoiAdmin))
	assert.NotContains(t, repo.rows, "s1")
	assert.Contains(t, repo.rows, "s2")
	assert.Equal(t, []string{models.AuditActionDeleteStudent}, writer.actions())
}

func TestStudentStatsDistribution(t *testing.T) {
	svc, repo, users, _ := newStudentFixture(
		matchedStudent("s1", "Hanoi", "Phoenix", "b1"),
		matchedStudent("s2", "Hanoi", "Phoenix", "b1"),
		matchedStudent("s3", "Hanoi", "Phoenix", "b2"),
		student("s4", "Hanoi", "Dragon"),
		student("s5", "Da Nang", "Lotus"),
	)
	homeless := brosisUser("b5", "Hanoi", "", models.StatusActive)
	homeless.House = nil
	homeless.FullName = "Le Van Cuong"
	users.users["b5"] = homeless
	repo.counts = map[string]int{"b1": 2, "b2": 1}

	stats, err := svc.Stats(context.Background(), hanoiAdmin)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalStudents)
	assert.Equal(t, 3, stats.AssignedStudents)
	assert.Equal(t, 3, stats.TotalBroSis)
	assert.InDelta(t, 1.0, stats.AvgStudentsPerBroSis, 0.0001)
	assert.Equal(t, map[string]map[string]map[string]int{
		"Hanoi": {
			"Phoenix":       {"bro-b1": 2, "bro-b2": 1},
			UnassignedHouse: {"Le Van Cuong": 0},
		},
	}, stats.Distribution)
	assert.Equal(t, "Hanoi", users.lastFilter.Area)
	assert.Equal(t, models.StatusActive, users.lastFilter.Status)
}

func TestStudentStatsWithoutBroSis(t *testing.T) {
	svc, _, _, _ := newStudentFixture(student("s1", "Can Tho", ""))

	stats, err := svc.Stats(context.Background(), BulkActor{ID: "admin-2", Role: models.RoleAdmin, Area: "Can Tho"})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TotalStudents)
	assert.Zero(t, stats.TotalBroSis)
	assert.Zero(t, stats.AvgStudentsPerBroSis)
	assert.Empty(t, stats.Distribution)
}

func TestExportBroSisStudentsRendersRoster(t *testing.T) {
	svc, _, _, writer := newStudentFixture(
		matchedStudent("s1", "Hanoi", "Phoenix", "b1"),
		matchedStudent("s2", "Hanoi", "Phoenix", "b2"),
	)

	file, err := svc.ExportBroSisStudents(context.Background(), "b1", "csv", hanoiAdmin)
	require.NoError(t, err)

	assert.Equal(t, "bro-b1_students_20240501_083000.csv", file.Filename)
	body := string(file.Content)
	assert.Contains(t, body, "Student ID")
	assert.Contains(t, body, "S1")
	assert.NotContains(t, body, "S2")
	assert.Contains(t, body, "2024-03-02")
	assert.Equal(t, []string{models.AuditActionExportBroSisRoster}, writer.actions())
}

func TestExportBroSisStudentsAcceptsExcelAlias(t *testing.T) {
	svc, _, _, _ := newStudentFixture(matchedStudent("s1", "Hanoi", "Phoenix", "b1"))

	file, err := svc.ExportBroSisStudents(context.Background(), "b1", "Excel", BulkActor{ID: "b1", Role: models.RoleBroSis, Area: "Hanoi"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(file.Filename, ".xlsx"))
}

func TestExportBroSisStudentsPermissions(t *testing.T) {
	svc, _, _, _ := newStudentFixture(
		matchedStudent("s1", "Hanoi", "Phoenix", "b1"),
		matchedStudent("s2", "Da Nang", "Lotus", "b4"),
	)
	ctx := context.Background()

	cases := []struct {
		name    string
		brosis  string
		actor   BulkActor
		expects string
	}{
		{"another brosis", "b1", BulkActor{ID: "b2", Role: models.RoleBroSis, Area: "Hanoi"}, appErrors.ErrForbidden.Code},
		{"admin of another area", "b4", hanoiAdmin, appErrors.ErrForbidden.Code},
		{"unknown user", "ghost", hanoiAdmin, appErrors.ErrNotFound.Code},
		{"not a brosis", "m1", BulkActor{ID: "root", Role: models.RoleRoot}, appErrors.ErrValidation.Code},
		{"no students", "b2", hanoiAdmin, appErrors.ErrNotFound.Code},
		{"missing id", "", hanoiAdmin, appErrors.ErrValidation.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ExportBroSisStudents(ctx, tc.brosis, "csv", tc.actor)
			require.Error(t, err)
			assert.Equal(t, tc.expects, appErrors.FromError(err).Code)
		})
	}

	_, err := svc.ExportBroSisStudents(ctx, "b4", "pdf", BulkActor{ID: "root", Role: models.RoleRoot})
	assert.NoError(t, err)
}

func TestExportBroSisStudentsRejectsUnknownFormat(t *testing.T) {
	svc, _, _, _ := newStudentFixture(matchedStudent("s1", "Hanoi", "Phoenix", "b1"))

	_, err := svc.ExportBroSisStudents(context.Background(), "b1", "docx", hanoiAdmin)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
