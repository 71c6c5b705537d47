package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
	"github.com/noah-isme/brosis-admin-api/internal/models"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
	"github.com/noah-isme/brosis-admin-api/pkg/spreadsheet"
)

var userRequiredFields = []string{dto.FieldEmail, dto.FieldFullName, dto.FieldUsername}

func userIdentities(usernames, emails *DuplicateLedger) []IdentityKey {
	return []IdentityKey{
		{
			Field:           dto.FieldUsername,
			Ledger:          usernames,
			ExistsFormat:    "Username '%s' already exists",
			DuplicateFormat: "Duplicate username '%s' in import data",
		},
		{
			Field:           dto.FieldEmail,
			Ledger:          emails,
			ExistsFormat:    "Email '%s' already exists",
			DuplicateFormat: "Duplicate email '%s' in import data",
		},
	}
}

func requireBroSisStudentID(rec dto.ImportRecord) *ValidationError {
	if models.UserRole(rec.Role) == models.RoleBroSis && strings.TrimSpace(rec.StudentID) == "" {
		return &ValidationError{Reason: "Student ID is required for BroSis users"}
	}
	return nil
}

// UserImportRepository is the persistence needed by user import.
type UserImportRepository interface {
	BatchStore[models.User]
	ExistingUserKeys(ctx context.Context) ([]string, []string, error)
}

// UserImportService creates admin, mentor and BroSis accounts from rows.
type UserImportService struct {
	users        UserImportRepository
	catalog      CatalogReader
	audit        *AuditService
	metrics      *MetricsService
	chunkSize    int
	passwordCost int
	logger       *zap.Logger
}

// NewUserImportService constructs the service.
func NewUserImportService(users UserImportRepository, catalog CatalogReader, audit *AuditService, metrics *MetricsService, chunkSize, passwordCost int, logger *zap.Logger) *UserImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if passwordCost < bcrypt.MinCost || passwordCost > bcrypt.MaxCost {
		passwordCost = bcrypt.DefaultCost
	}
	return &UserImportService{
		users:        users,
		catalog:      catalog,
		audit:        audit,
		metrics:      metrics,
		chunkSize:    chunkSize,
		passwordCost: passwordCost,
		logger:       logger,
	}
}

// GenerateUsername builds a login from a family-name-first full name: the
// given name, then the initials of the other parts, then the student ID.
func GenerateUsername(fullName, studentID string) string {
	parts := strings.Fields(strings.ToLower(fullName))
	studentID = strings.ToLower(strings.TrimSpace(studentID))
	if len(parts) == 0 || studentID == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(parts[len(parts)-1])
	for _, part := range parts[:len(parts)-1] {
		b.WriteRune([]rune(part)[0])
	}
	b.WriteString(studentID)
	return b.String()
}

// NormalizeImportRole maps free text onto an importable role. Root is never
// importable and unknown values become BroSis.
func NormalizeImportRole(raw string) models.UserRole {
	switch models.UserRole(strings.ToLower(strings.TrimSpace(raw))) {
	case models.RoleAdmin:
		return models.RoleAdmin
	case models.RoleMentor:
		return models.RoleMentor
	default:
		return models.RoleBroSis
	}
}

func normalizeImportStatus(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), models.StatusInactive) {
		return models.StatusInactive
	}
	return models.StatusActive
}

// Import validates user rows and commits the valid ones. The initial password
// of every account is its username and must be changed on first login.
func (s *UserImportService) Import(ctx context.Context, rows []spreadsheet.Row, opts dto.UserImportOptions, actor BulkActor) (*dto.UserImportResult, error) {
	if len(rows) == 0 {
		return nil, appErrors.ErrNoRows
	}
	started := time.Now()

	catalog, err := loadCatalog(ctx, s.catalog)
	if err != nil {
		return nil, err
	}
	usernames, emails, err := s.users.ExistingUserKeys(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing users")
	}
	validator := NewRowValidator(catalog, userRequiredFields,
		userIdentities(NewDuplicateLedger(usernames), NewDuplicateLedger(emails)),
		requireBroSisStudentID,
	)

	result := &dto.UserImportResult{Imported: []models.User{}, Errors: []dto.ImportRowError{}}
	var staged []Staged[models.User]
	now := time.Now().UTC()

	for _, row := range rows {
		rec := dto.ParseImportRecord(row.Values)
		if opts.Role != "" {
			rec.Role = string(opts.Role)
		}
		rec.Role = string(NormalizeImportRole(rec.Role))
		rec.Status = normalizeImportStatus(rec.Status)
		if rec.Username == "" && models.UserRole(rec.Role) == models.RoleBroSis && (opts.AutoGenerateUsername || opts.UsernameNotRequired) {
			rec.Username = GenerateUsername(rec.FullName, rec.StudentID)
			if rec.Username != "" {
				s.logger.Debug("generated username", zap.Int("row", row.Line), zap.String("username", rec.Username))
			}
		}

		normalized, verr := validator.Validate(rec, row.Line)
		if verr != nil {
			result.Errors = append(result.Errors, verr.RowError())
			continue
		}

		user, err := s.buildUser(normalized, now)
		if err != nil {
			result.Errors = append(result.Errors, dto.ImportRowError{
				Row:    row.Line,
				Key:    normalized.Username,
				Kind:   ValidationInvalidValue,
				Reason: fmt.Sprintf("Error creating user: %v", err),
			})
			continue
		}
		staged = append(staged, Staged[models.User]{Row: row.Line, Key: user.Username, Value: user})
	}

	committer := NewBatchCommitter[models.User](s.users, s.chunkSize, s.logger)
	inserted, failures, commitErr := committer.Commit(ctx, staged)
	result.Imported = append(result.Imported, inserted...)
	result.Errors = append(result.Errors, failures...)
	sort.SliceStable(result.Errors, func(i, j int) bool { return result.Errors[i].Row < result.Errors[j].Row })

	result.Summary.TotalRows = len(rows)
	result.Summary.SuccessfulImports = len(result.Imported)
	result.Summary.FailedImports = len(result.Errors)

	s.metrics.ObserveImport("user", result.Summary, time.Since(started))
	if len(inserted) > 0 {
		s.audit.Log(ctx, AuditEntry{
			Actor:    actor,
			Action:   models.AuditActionBatchCreateUsers,
			Resource: "user",
			Details:  map[string]int{"created": len(inserted)},
		})
	}
	s.audit.Log(ctx, AuditEntry{
		Actor:    actor,
		Action:   models.AuditActionImportUsers,
		Resource: "user",
		Details:  result.Summary,
	})

	s.logger.Info("user import finished",
		zap.String("actor_id", actor.ID),
		zap.Int("total", result.Summary.TotalRows),
		zap.Int("imported", result.Summary.SuccessfulImports),
		zap.Int("failed", result.Summary.FailedImports),
	)

	if commitErr != nil {
		return result, commitErr
	}
	return result, nil
}

func (s *UserImportService) buildUser(rec dto.NormalizedRecord, now time.Time) (models.User, error) {
	role := models.UserRole(rec.Role)
	hash, err := bcrypt.GenerateFromPassword([]byte(rec.Username), s.passwordCost)
	if err != nil {
		return models.User{}, err
	}

	house := rec.House
	if role == models.RoleAdmin && rec.Area != "" && house == "" {
		house = "FPT " + rec.Area
	}
	notRoot := false
	user := models.User{
		ID:                     uuid.NewString(),
		Username:               rec.Username,
		Email:                  rec.Email,
		FullName:               rec.FullName,
		Phone:                  optionalString(rec.Phone),
		Area:                   optionalString(rec.Area),
		House:                  optionalString(house),
		PasswordHash:           string(hash),
		Role:                   role,
		IsAdmin:                role == models.RoleAdmin,
		IsRoot:                 &notRoot,
		Status:                 rec.Status,
		PasswordChangeRequired: true,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if role == models.RoleBroSis {
		user.StudentID = optionalString(rec.StudentID)
	}
	return user, nil
}
