package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
	"github.com/noah-isme/brosis-admin-api/internal/models"
)

type studentStoreStub struct {
	students map[string]models.Student
	order    []string
	updates  int
}

func newStudentStoreStub(students ...models.Student) *studentStoreStub {
	stub := &studentStoreStub{students: map[string]models.Student{}}
	for _, s := range students {
		stub.students[s.ID] = s
		stub.order = append(stub.order, s.ID)
	}
	return stub
}

func (s *studentStoreStub) List(_ context.Context, filter models.StudentFilter) ([]models.Student, error) {
	var out []models.Student
	for _, id := range s.order {
		student, ok := s.students[id]
		if !ok {
			continue
		}
		if filter.Area != "" && student.AreaName() != filter.Area {
			continue
		}
		out = append(out, student)
	}
	return out, nil
}

func (s *studentStoreStub) FindByIDs(_ context.Context, ids []string) ([]models.Student, error) {
	var out []models.Student
	for _, id := range ids {
		if student, ok := s.students[id]; ok {
			out = append(out, student)
		}
	}
	return out, nil
}

func (s *studentStoreStub) Delete(_ context.Context, id string) error {
	if _, ok := s.students[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.students, id)
	return nil
}

func (s *studentStoreStub) UpdateAssignment(_ context.Context, student models.Student) error {
	s.updates++
	s.students[student.ID] = student
	return nil
}

func (s *studentStoreStub) CountAssignedStudents(_ context.Context, userIDs []string) (map[string]int, error) {
	counts := map[string]int{}
	for _, student := range s.students {
		if student.UserID == nil {
			continue
		}
		for _, id := range userIDs {
			if *student.UserID == id {
				counts[id]++
			}
		}
	}
	return counts, nil
}

type brosisDirectoryStub struct {
	users map[string]models.User
}

func (d *brosisDirectoryStub) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := d.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

func (d *brosisDirectoryStub) ListBroSis(_ context.Context, area, house string) ([]models.User, error) {
	var out []models.User
	for _, id := range []string{"b1", "b2", "b3", "b4"} {
		user, ok := d.users[id]
		if ok && user.Role == models.RoleBroSis && user.Status == models.StatusActive && user.AreaName() == area && user.HouseName() == house {
			out = append(out, user)
		}
	}
	return out, nil
}

func strPtr(v string) *string { return &v }

func student(id, area, house string) models.Student {
	s := models.Student{ID: id, StudentID: strings.ToUpper(id), FullName: "Student " + id, Status: models.StatusPending}
	if area != "" {
		s.Area = strPtr(area)
	}
	if house != "" {
		s.House = strPtr(house)
	}
	return s
}

func brosisUser(id, area, house, status string) models.User {
	return models.User{ID: id, Username: "bro-" + id, Role: models.RoleBroSis, Status: status, Area: strPtr(area), House: strPtr(house)}
}

func newDirectory() *brosisDirectoryStub {
	return &brosisDirectoryStub{users: map[string]models.User{
		"b1": brosisUser("b1", "Hanoi", "Phoenix", models.StatusActive),
		"b2": brosisUser("b2", "Hanoi", "Phoenix", models.StatusActive),
		"b3": brosisUser("b3", "Hanoi", "Phoenix", models.StatusInactive),
		"b4": brosisUser("b4", "Da Nang", "Lotus", models.StatusActive),
		"m1": {ID: "m1", Username: "mentor", Role: models.RoleMentor, Status: models.StatusActive},
	}}
}

func newAssignmentService(store *studentStoreStub, writer *auditWriterStub) *AssignmentService {
	svc := NewAssignmentService(store, newDirectory(), NewAuditService(writer, nil, nil, nil), nil, nil)
	svc.rng = fixedShuffler{}
	return svc
}

func TestAssignChecksAreaAndHouse(t *testing.T) {
	already := student("s4", "Hanoi", "Phoenix")
	already.AssignTo("b1")
	moved := student("s5", "Hanoi", "Phoenix")
	moved.AssignTo("b2")
	store := newStudentStoreStub(
		student("s1", "Hanoi", "Phoenix"),
		student("s2", "Da Nang", "Lotus"),
		student("s3", "Hanoi", "Dragon"),
		already,
		moved,
	)
	writer := &auditWriterStub{}
	svc := newAssignmentService(store, writer)

	req := dto.AssignToBroSisRequest{BroSisID: "b1", StudentIDs: []string{"s1", "s2", "s3", "s4", "s5", "ghost"}}
	result, err := svc.Assign(context.Background(), req, BulkActor{Role: models.RoleRoot})
	require.NoError(t, err)

	require.Len(t, result.Success, 2)
	assert.Equal(t, "s1", result.Success[0].ID)
	assert.Equal(t, "b2", result.Success[1].Previous)
	require.Len(t, result.Failed, 4)
	assert.Contains(t, result.Failed[0].Reason, "does not match BroSis area")
	assert.Contains(t, result.Failed[1].Reason, "does not match BroSis house")
	assert.Equal(t, "student is already assigned to this BroSis", result.Failed[2].Reason)
	assert.Equal(t, "student not found", result.Failed[3].Reason)

	assigned := store.students["s1"]
	assert.True(t, assigned.Matched)
	assert.Equal(t, "b1", *assigned.UserID)
	assert.Equal(t, []string{models.AuditActionAssignToBroSis}, writer.actions())
}

func TestAssignRejectsInvalidTargets(t *testing.T) {
	svc := newAssignmentService(newStudentStoreStub(student("s1", "Hanoi", "Phoenix")), &auditWriterStub{})
	ctx := context.Background()

	_, err := svc.Assign(ctx, dto.AssignToBroSisRequest{BroSisID: "nobody", StudentIDs: []string{"s1"}}, BulkActor{Role: models.RoleRoot})
	assert.Error(t, err)
	_, err = svc.Assign(ctx, dto.AssignToBroSisRequest{BroSisID: "m1", StudentIDs: []string{"s1"}}, BulkActor{Role: models.RoleRoot})
	assert.Error(t, err)
	_, err = svc.Assign(ctx, dto.AssignToBroSisRequest{BroSisID: "b3", StudentIDs: []string{"s1"}}, BulkActor{Role: models.RoleRoot})
	assert.Error(t, err)
	_, err = svc.Assign(ctx, dto.AssignToBroSisRequest{BroSisID: "b1", StudentIDs: []string{"s1"}}, BulkActor{Role: models.RoleAdmin, Area: "Da Nang"})
	assert.Error(t, err)
	_, err = svc.Assign(ctx, dto.AssignToBroSisRequest{BroSisID: "b1"}, BulkActor{Role: models.RoleRoot})
	assert.Error(t, err)
}

func TestUnassignKeepsAreaAndHouse(t *testing.T) {
	linked := student("s1", "Hanoi", "Phoenix")
	linked.AssignTo("b1")
	store := newStudentStoreStub(linked, student("s2", "Hanoi", "Phoenix"))
	svc := newAssignmentService(store, &auditWriterStub{})

	result, err := svc.Unassign(context.Background(), dto.StudentSelectionRequest{StudentIDs: []string{"s1", "s2"}}, BulkActor{Role: models.RoleAdmin, Area: "Hanoi"})
	require.NoError(t, err)

	require.Len(t, result.Success, 1)
	assert.Equal(t, "b1", result.Success[0].Previous)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "student is not assigned to any BroSis", result.Failed[0].Reason)

	cleared := store.students["s1"]
	assert.Nil(t, cleared.UserID)
	assert.False(t, cleared.Matched)
	assert.Equal(t, "Hanoi", cleared.AreaName())
	assert.Equal(t, "Phoenix", cleared.HouseName())
}

func TestDistributeBalancesBroSisLoad(t *testing.T) {
	loaded := student("s0", "Hanoi", "Phoenix")
	loaded.AssignTo("b1")
	preassigned := student("s9", "Hanoi", "Phoenix")
	preassigned.AssignTo("b1")
	store := newStudentStoreStub(
		loaded,
		preassigned,
		student("s1", "Hanoi", "Phoenix"),
		student("s2", "Hanoi", "Phoenix"),
		student("s3", "Hanoi", "Phoenix"),
		student("s4", "Hanoi", ""),
		student("s5", "Can Tho", "Nowhere"),
	)
	writer := &auditWriterStub{}
	svc := newAssignmentService(store, writer)

	req := dto.StudentSelectionRequest{StudentIDs: []string{"s1", "s2", "s3", "s4", "s5", "s9"}}
	result, err := svc.Distribute(context.Background(), req, BulkActor{Role: models.RoleRoot})
	require.NoError(t, err)

	assert.Len(t, result.Assignments, 3)
	assert.Equal(t, map[string]int{"bro-b2": 3}, result.Distribution, "b1 already carries two students")
	require.Len(t, result.Skipped, 3)
	reasons := map[string]string{}
	for _, skip := range result.Skipped {
		reasons[skip.ID] = skip.Reason
	}
	assert.Equal(t, "student has no area or house", reasons["s4"])
	assert.Equal(t, ReasonNoBuckets, reasons["s5"])
	assert.Equal(t, "student is already assigned to a BroSis", reasons["s9"])

	for _, id := range []string{"s1", "s2", "s3"} {
		assert.True(t, store.students[id].Matched, id)
	}
	assert.Equal(t, []string{models.AuditActionDistributeToBroSis}, writer.actions())
}

func TestBulkStudentDeleteStaysInActorArea(t *testing.T) {
	store := newStudentStoreStub(student("s1", "Hanoi", "Phoenix"), student("s2", "Da Nang", "Lotus"), student("s3", "Hanoi", ""))
	writer := &auditWriterStub{}
	svc := NewBulkStudentService(store, NewAuditService(writer, nil, nil, nil), nil, nil, nil)
	actor := BulkActor{ID: "admin-1", Role: models.RoleAdmin, Area: "Hanoi"}

	result, err := svc.Delete(context.Background(), dto.BulkRequest{Mode: dto.BulkModeSelected, IDs: []string{"s2", "s1"}}, actor)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, dto.DetailKindForbidden, result.Details[0].Kind)

	result, err = svc.Delete(context.Background(), dto.BulkRequest{Mode: dto.BulkModeAll}, actor)
	require.NoError(t, err)
	assert.Equal(t, []string{"s3"}, result.Succeeded)
	assert.Contains(t, store.students, "s2")
	assert.Equal(t, 2, countActions(writer, models.AuditActionDeleteStudentInBulk))
	assert.Equal(t, 2, countActions(writer, models.AuditActionBulkDeleteStudents))
}
