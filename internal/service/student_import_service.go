package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
	"github.com/noah-isme/brosis-admin-api/internal/models"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
	"github.com/noah-isme/brosis-admin-api/pkg/spreadsheet"
)

var studentRequiredFields = []string{
	dto.FieldStudentID,
	dto.FieldFullName,
	dto.FieldEmail,
	dto.FieldPhone,
	dto.FieldParentPhone,
	dto.FieldAddress,
}

func studentIdentities(ledger *DuplicateLedger) []IdentityKey {
	return []IdentityKey{{
		Field:           dto.FieldStudentID,
		Ledger:          ledger,
		ExistsFormat:    "Student with ID '%s' already exists",
		DuplicateFormat: "Duplicate student ID '%s' in import data",
	}}
}

// CatalogReader loads the area and house catalog.
type CatalogReader interface {
	ListAreas(ctx context.Context) ([]models.Area, error)
	ListHouses(ctx context.Context) ([]models.House, error)
}

// StudentImportRepository is the persistence needed by student import.
type StudentImportRepository interface {
	BatchStore[models.Student]
	ExistingStudentIDs(ctx context.Context) ([]string, error)
	CountStudentsByHouse(ctx context.Context, area string) (map[string]int, error)
}

// StudentImportService turns spreadsheet rows into student records.
type StudentImportService struct {
	students  StudentImportRepository
	catalog   CatalogReader
	audit     *AuditService
	metrics   *MetricsService
	chunkSize int
	rng       Shuffler
	logger    *zap.Logger
}

// NewStudentImportService constructs the service.
func NewStudentImportService(students StudentImportRepository, catalog CatalogReader, audit *AuditService, metrics *MetricsService, chunkSize int, logger *zap.Logger) *StudentImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentImportService{
		students:  students,
		catalog:   catalog,
		audit:     audit,
		metrics:   metrics,
		chunkSize: chunkSize,
		rng:       globalShuffler{},
		logger:    logger,
	}
}

// Import validates rows, spreads area-only students over the houses of their
// area and commits them in chunks. Invalid rows are reported and skipped.
// When the store becomes unreachable the partial result is returned together
// with the error.
func (s *StudentImportService) Import(ctx context.Context, rows []spreadsheet.Row, actor BulkActor) (*dto.StudentImportResult, error) {
	if len(rows) == 0 {
		return nil, appErrors.ErrNoRows
	}
	started := time.Now()

	catalog, err := loadCatalog(ctx, s.catalog)
	if err != nil {
		return nil, err
	}
	existing, err := s.students.ExistingStudentIDs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing student IDs")
	}
	validator := NewRowValidator(catalog, studentRequiredFields, studentIdentities(NewDuplicateLedger(existing)))

	result := &dto.StudentImportResult{
		Imported: []models.Student{},
		Errors:   []dto.ImportRowError{},
	}
	inherited := !actor.IsRoot() && strings.TrimSpace(actor.Area) != ""
	result.Summary.AreaInherited = inherited

	var (
		staged    []Staged[models.Student]
		pending   = map[string][]dto.NormalizedRecord{}
		areaOrder []string
		explicit  = map[string]map[string]int{}
	)
	now := time.Now().UTC()

	for _, row := range rows {
		rec := dto.ParseImportRecord(row.Values)
		if inherited {
			rec.Area = actor.Area
		}
		normalized, verr := validator.Validate(rec, row.Line)
		if verr != nil {
			result.Errors = append(result.Errors, verr.RowError())
			continue
		}

		switch {
		case normalized.Area == "" || normalized.House != "":
			if normalized.House != "" {
				if explicit[normalized.Area] == nil {
					explicit[normalized.Area] = map[string]int{}
				}
				explicit[normalized.Area][normalized.House]++
			}
			staged = append(staged, stageStudent(normalized, now))
		default:
			if _, seen := pending[normalized.Area]; !seen {
				areaOrder = append(areaOrder, normalized.Area)
			}
			pending[normalized.Area] = append(pending[normalized.Area], normalized)
		}
	}

	for _, area := range areaOrder {
		records := pending[area]
		houses := catalog.Houses(area)
		if len(houses) == 0 {
			for _, rec := range records {
				staged = append(staged, stageStudent(rec, now))
				result.Unhoused = append(result.Unhoused, dto.UnhousedStudent{
					Row:       rec.Row,
					StudentID: rec.StudentID,
					Area:      area,
					Reason:    ReasonNoBuckets,
				})
			}
			continue
		}

		counts, err := s.students.CountStudentsByHouse(ctx, area)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load house occupancy")
		}
		buckets := make([]Bucket, 0, len(houses))
		for _, house := range houses {
			buckets = append(buckets, Bucket{
				ID:    house.Name,
				Label: house.Name,
				Count: counts[house.Name] + explicit[area][house.Name],
			})
		}

		allocation := Allocate(records, buckets, s.rng)
		for _, placement := range allocation.Placements {
			rec := placement.Item
			rec.House = placement.Bucket.ID
			staged = append(staged, stageStudent(rec, now))
		}
		for _, rec := range allocation.Unassigned {
			staged = append(staged, stageStudent(rec, now))
			result.Unhoused = append(result.Unhoused, dto.UnhousedStudent{Row: rec.Row, StudentID: rec.StudentID, Area: area, Reason: allocation.Reason})
		}
		if len(allocation.Placements) > 0 {
			result.Summary.AutoHouseDistribution = true
		}
		s.logger.Debug("distributed students over houses",
			zap.String("area", area),
			zap.Int("students", len(records)),
			zap.Any("added", allocation.Added()),
		)
	}

	sort.SliceStable(staged, func(i, j int) bool { return staged[i].Row < staged[j].Row })

	committer := NewBatchCommitter[models.Student](s.students, s.chunkSize, s.logger)
	inserted, failures, commitErr := committer.Commit(ctx, staged)
	result.Imported = append(result.Imported, inserted...)
	result.Errors = append(result.Errors, failures...)
	sort.SliceStable(result.Errors, func(i, j int) bool { return result.Errors[i].Row < result.Errors[j].Row })

	result.Summary.TotalRows = len(rows)
	result.Summary.SuccessfulImports = len(result.Imported)
	result.Summary.FailedImports = len(result.Errors)

	s.metrics.ObserveImport("student", result.Summary, time.Since(started))
	if len(inserted) > 0 {
		s.audit.Log(ctx, AuditEntry{
			Actor:    actor,
			Action:   models.AuditActionBatchCreateStudents,
			Resource: "student",
			Details:  map[string]int{"created": len(inserted)},
		})
	}
	s.audit.Log(ctx, AuditEntry{
		Actor:    actor,
		Action:   models.AuditActionImportStudents,
		Resource: "student",
		Details:  result.Summary,
	})

	s.logger.Info("student import finished",
		zap.String("actor_id", actor.ID),
		zap.Int("total", result.Summary.TotalRows),
		zap.Int("imported", result.Summary.SuccessfulImports),
		zap.Int("failed", result.Summary.FailedImports),
		zap.Int("unhoused", len(result.Unhoused)),
	)

	if commitErr != nil {
		return result, commitErr
	}
	return result, nil
}

func stageStudent(rec dto.NormalizedRecord, now time.Time) Staged[models.Student] {
	student := models.Student{
		ID:               uuid.NewString(),
		StudentID:        rec.StudentID,
		FullName:         rec.FullName,
		Email:            rec.Email,
		Phone:            rec.Phone,
		ParentPhone:      rec.ParentPhone,
		Address:          rec.Address,
		Area:             optionalString(rec.Area),
		House:            optionalString(rec.House),
		Notes:            optionalString(rec.Notes),
		Status:           models.StatusPending,
		RegistrationDate: now,
	}
	return Staged[models.Student]{Row: rec.Row, Key: rec.StudentID, Value: student}
}

func loadCatalog(ctx context.Context, reader CatalogReader) (*CatalogCache, error) {
	areas, err := reader.ListAreas(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load areas")
	}
	houses, err := reader.ListHouses(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load houses")
	}
	return BuildCatalogCache(areas, houses), nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	v := value
	return &v
}
