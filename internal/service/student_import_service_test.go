package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/brosis-admin-api/internal/models"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
	"github.com/noah-isme/brosis-admin-api/pkg/spreadsheet"
)

type catalogStub struct {
	areas  []models.Area
	houses []models.House
	err    error
}

func newCatalogStub() *catalogStub {
	return &catalogStub{
		areas: []models.Area{{ID: "a1", Name: "Hanoi"}, {ID: "a2", Name: "Da Nang"}, {ID: "a3", Name: "Can Tho"}},
		houses: []models.House{
			{ID: "h1", Name: "Phoenix", AreaID: "a1"},
			{ID: "h2", Name: "Dragon", AreaID: "a1"},
			{ID: "h3", Name: "Lotus", AreaID: "a2"},
		},
	}
}

func (c *catalogStub) ListAreas(context.Context) ([]models.Area, error) { return c.areas, c.err }

func (c *catalogStub) ListHouses(context.Context) ([]models.House, error) { return c.houses, c.err }

type studentImportRepoStub struct {
	existing    []string
	houseCounts map[string]map[string]int
	inserted    []models.Student
	batchErr    error
	oneErr      map[string]error
}

func (r *studentImportRepoStub) ExistingStudentIDs(context.Context) ([]string, error) {
	return r.existing, nil
}

func (r *studentImportRepoStub) CountStudentsByHouse(_ context.Context, area string) (map[string]int, error) {
	counts := map[string]int{}
	for house, n := range r.houseCounts[area] {
		counts[house] = n
	}
	return counts, nil
}

func (r *studentImportRepoStub) InsertBatch(_ context.Context, items []models.Student) error {
	if r.batchErr != nil {
		return r.batchErr
	}
	for _, item := range items {
		if err := r.oneErr[item.StudentID]; err != nil {
			return err
		}
	}
	r.inserted = append(r.inserted, items...)
	return nil
}

func (r *studentImportRepoStub) InsertOne(_ context.Context, item models.Student) error {
	if err := r.oneErr[item.StudentID]; err != nil {
		return err
	}
	r.inserted = append(r.inserted, item)
	return nil
}

func studentRow(line int, id, area, house string) spreadsheet.Row {
	values := map[string]string{
		"Student ID":   id,
		"Full Name":    "Student " + id,
		"Email":        strings.ToLower(id) + "@example.com",
		"Phone":        "0900000001",
		"Parent Phone": "0900000002",
		"Address":      "1 Le Loi",
	}
	if area != "" {
		values["Area"] = area
	}
	if house != "" {
		values["House"] = house
	}
	return spreadsheet.Row{Line: line, Values: values}
}

func newStudentImporter(repo *studentImportRepoStub, writer *auditWriterStub) *StudentImportService {
	svc := NewStudentImportService(repo, newCatalogStub(), NewAuditService(writer, nil, nil, nil), nil, 2, nil)
	svc.rng = fixedShuffler{}
	return svc
}

func housesByStudent(students []models.Student) map[string]string {
	out := make(map[string]string, len(students))
	for _, s := range students {
		out[s.StudentID] = s.HouseName()
	}
	return out
}

func TestStudentImportFillsEmptiestHouse(t *testing.T) {
	repo := &studentImportRepoStub{houseCounts: map[string]map[string]int{"Hanoi": {"Phoenix": 4, "Dragon": 1}}}
	writer := &auditWriterStub{}
	svc := newStudentImporter(repo, writer)

	rows := []spreadsheet.Row{
		studentRow(2, "SE001", "hanoi", ""),
		studentRow(3, "SE002", "Hanoi", ""),
		studentRow(4, "SE003", "HANOI", ""),
	}

	result, err := svc.Import(context.Background(), rows, BulkActor{ID: "root-1", Role: models.RoleRoot})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Summary.SuccessfulImports)
	assert.True(t, result.Summary.AutoHouseDistribution)
	assert.False(t, result.Summary.AreaInherited)
	for id, house := range housesByStudent(result.Imported) {
		assert.Equal(t, "Dragon", house, id)
	}
	for _, student := range result.Imported {
		assert.Equal(t, "Hanoi", student.AreaName())
		assert.Equal(t, models.StatusPending, student.Status)
		assert.False(t, student.Matched)
	}
	assert.Equal(t, []string{models.AuditActionBatchCreateStudents, models.AuditActionImportStudents}, writer.actions())
}

func TestStudentImportCountsExplicitHousesTowardOccupancy(t *testing.T) {
	repo := &studentImportRepoStub{}
	svc := newStudentImporter(repo, &auditWriterStub{})

	rows := []spreadsheet.Row{
		studentRow(2, "SE001", "Hanoi", "phoenix"),
		studentRow(3, "SE002", "Hanoi", "Phoenix"),
		studentRow(4, "SE003", "Hanoi", ""),
		studentRow(5, "SE004", "Hanoi", ""),
	}

	result, err := svc.Import(context.Background(), rows, BulkActor{Role: models.RoleRoot})
	require.NoError(t, err)

	houses := housesByStudent(result.Imported)
	assert.Equal(t, "Phoenix", houses["SE001"])
	assert.Equal(t, "Phoenix", houses["SE002"])
	assert.Equal(t, "Dragon", houses["SE003"])
	assert.Equal(t, "Dragon", houses["SE004"])
}

func TestStudentImportReportsRowErrorsAndContinues(t *testing.T) {
	repo := &studentImportRepoStub{existing: []string{"SE100"}}
	svc := newStudentImporter(repo, &auditWriterStub{})

	incomplete := studentRow(5, "SE004", "", "")
	delete(incomplete.Values, "Email")

	rows := []spreadsheet.Row{
		studentRow(2, "se100", "", ""),
		studentRow(3, "SE001", "", ""),
		studentRow(4, "SE001", "", ""),
		incomplete,
		studentRow(6, "SE005", "Saigon", ""),
		studentRow(7, "SE006", "", ""),
	}

	result, err := svc.Import(context.Background(), rows, BulkActor{Role: models.RoleRoot})
	require.NoError(t, err)

	assert.Equal(t, 6, result.Summary.TotalRows)
	assert.Equal(t, 2, result.Summary.SuccessfulImports)
	assert.Equal(t, 4, result.Summary.FailedImports)
	require.Len(t, result.Errors, 4)
	assert.Equal(t, ValidationAlreadyExists, result.Errors[0].Kind)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, ValidationDuplicateImport, result.Errors[1].Kind)
	assert.Equal(t, "Missing required fields: email", result.Errors[2].Reason)
	assert.Equal(t, ValidationInvalidArea, result.Errors[3].Kind)
	assert.Equal(t, 6, result.Errors[3].Row)
}

func TestStudentImportInheritsActorArea(t *testing.T) {
	repo := &studentImportRepoStub{}
	svc := newStudentImporter(repo, &auditWriterStub{})

	rows := []spreadsheet.Row{
		studentRow(2, "SE001", "Hanoi", ""),
		studentRow(3, "SE002", "", ""),
		studentRow(4, "SE003", "", "Phoenix"),
	}

	result, err := svc.Import(context.Background(), rows, BulkActor{ID: "admin-1", Role: models.RoleAdmin, Area: "Da Nang"})
	require.NoError(t, err)

	assert.True(t, result.Summary.AreaInherited)
	require.Len(t, result.Imported, 2)
	for _, student := range result.Imported {
		assert.Equal(t, "Da Nang", student.AreaName())
		assert.Equal(t, "Lotus", student.HouseName())
	}
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ValidationInvalidHouse, result.Errors[0].Kind)
}

func TestStudentImportKeepsStudentsOfHouselessAreas(t *testing.T) {
	repo := &studentImportRepoStub{}
	svc := newStudentImporter(repo, &auditWriterStub{})

	result, err := svc.Import(context.Background(), []spreadsheet.Row{studentRow(2, "SE001", "Can Tho", "")}, BulkActor{Role: models.RoleRoot})
	require.NoError(t, err)

	require.Len(t, result.Imported, 1)
	assert.Nil(t, result.Imported[0].House)
	require.Len(t, result.Unhoused, 1)
	assert.Equal(t, ReasonNoBuckets, result.Unhoused[0].Reason)
	assert.Empty(t, result.Errors)
	assert.False(t, result.Summary.AutoHouseDistribution)
}

func TestStudentImportFallsBackToSingleInserts(t *testing.T) {
	repo := &studentImportRepoStub{oneErr: map[string]error{"SE002": errors.New("duplicate key value violates unique constraint")}}
	svc := newStudentImporter(repo, &auditWriterStub{})

	rows := []spreadsheet.Row{
		studentRow(2, "SE001", "", ""),
		studentRow(3, "SE002", "", ""),
		studentRow(4, "SE003", "", ""),
	}

	result, err := svc.Import(context.Background(), rows, BulkActor{Role: models.RoleRoot})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Summary.SuccessfulImports)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ImportErrorPersistence, result.Errors[0].Kind)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Reason, "Error adding record to database")
}

func TestStudentImportAbortsWhenStoreIsGone(t *testing.T) {
	repo := &studentImportRepoStub{batchErr: driver.ErrBadConn}
	svc := newStudentImporter(repo, &auditWriterStub{})

	rows := []spreadsheet.Row{studentRow(2, "SE001", "", ""), studentRow(3, "SE002", "", "")}
	result, err := svc.Import(context.Background(), rows, BulkActor{Role: models.RoleRoot})
	require.Error(t, err)
	assert.ErrorIs(t, err, driver.ErrBadConn)
	require.NotNil(t, result)
	assert.Zero(t, result.Summary.SuccessfulImports)
	assert.Equal(t, 2, result.Summary.FailedImports)
	assert.Equal(t, result.Summary.TotalRows, result.Summary.SuccessfulImports+result.Summary.FailedImports)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, []int{2, 3}, []int{result.Errors[0].Row, result.Errors[1].Row})
	assert.Equal(t, NotCommittedReason, result.Errors[0].Reason)
}

func TestStudentImportRejectsEmptyFile(t *testing.T) {
	svc := newStudentImporter(&studentImportRepoStub{}, &auditWriterStub{})

	_, err := svc.Import(context.Background(), nil, BulkActor{})
	assert.ErrorIs(t, err, appErrors.ErrNoRows)
}
