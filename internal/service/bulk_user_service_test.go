package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
	"github.com/noah-isme/brosis-admin-api/internal/models"
	"github.com/noah-isme/brosis-admin-api/internal/repository"
)

type bulkUserRepoStub struct {
	*userSourceStub
	lastScope repository.BulkUserScope
	passwords map[string]string
}

func newBulkUserRepoStub(users ...models.User) *bulkUserRepoStub {
	return &bulkUserRepoStub{userSourceStub: newUserSourceStub(users...), passwords: map[string]string{}}
}

func (r *bulkUserRepoStub) ListBulkCandidates(ctx context.Context, scope repository.BulkUserScope) ([]models.User, error) {
	r.lastScope = scope
	all, _ := r.Candidates(ctx, BulkActor{})
	var out []models.User
	for _, u := range all {
		excluded := false
		for _, role := range scope.ExcludeRoles {
			if u.Role == role {
				excluded = true
			}
		}
		if !excluded {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *bulkUserRepoStub) UpdateStatus(_ context.Context, id, status string) error {
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Status = status
	r.users[id] = u
	return nil
}

func (r *bulkUserRepoStub) UpdatePassword(_ context.Context, id, hash string, changeRequired bool) error {
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = hash
	u.PasswordChangeRequired = changeRequired
	r.users[id] = u
	return nil
}

func (r *bulkUserRepoStub) Delete(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.users, id)
	return nil
}

func newBulkUserService(repo *bulkUserRepoStub, writer *auditWriterStub) *BulkUserService {
	return NewBulkUserService(repo, NewAuditService(writer, nil, nil, nil), nil, nil, bcrypt.MinCost, nil)
}

func countActions(writer *auditWriterStub, action string) int {
	n := 0
	for _, a := range writer.actions() {
		if a == action {
			n++
		}
	}
	return n
}

func TestBulkUserDeleteByAdminSparesAdmins(t *testing.T) {
	population := append(bulkPopulation(), models.User{ID: "u-admin2", Username: "second", Role: models.RoleAdmin})
	repo := newBulkUserRepoStub(population...)
	writer := &auditWriterStub{}
	svc := newBulkUserService(repo, writer)
	actor := BulkActor{ID: "u-actor", Username: "operator", Role: models.RoleAdmin}

	result, err := svc.Delete(context.Background(), dto.BulkRequest{Mode: dto.BulkModeAll}, actor)
	require.NoError(t, err)

	assert.Equal(t, []models.UserRole{models.RoleAdmin}, repo.lastScope.ExcludeRoles)
	assert.Equal(t, 2, result.Success)
	assert.Contains(t, repo.users, "u-admin2")
	assert.Equal(t, 2, countActions(writer, models.AuditActionDeleteUserInBulk))
	assert.Equal(t, 1, countActions(writer, models.AuditActionBulkDeleteSummary))

	result, err = svc.Delete(context.Background(), dto.BulkRequest{Mode: dto.BulkModeSelected, IDs: []string{"u-admin2", "u-actor", "u-root"}}, actor)
	require.NoError(t, err)
	assert.Zero(t, result.Success)
	assert.Equal(t, 3, result.Skipped)
	kinds := []string{result.Details[0].Kind, result.Details[1].Kind, result.Details[2].Kind}
	assert.Equal(t, []string{dto.DetailKindForbidden, dto.DetailKindSelf, dto.DetailKindRootProtection}, kinds)
	assert.Equal(t, 1, countActions(writer, models.AuditActionRootProtection))
}

func TestBulkUserDeleteByRootReachesAdmins(t *testing.T) {
	population := append(bulkPopulation(), models.User{ID: "u-boss", Username: "boss", Role: models.RoleRoot})
	repo := newBulkUserRepoStub(population...)
	svc := newBulkUserService(repo, &auditWriterStub{})

	result, err := svc.Delete(context.Background(), dto.BulkRequest{Mode: dto.BulkModeAll}, BulkActor{ID: "u-boss", Role: models.RoleRoot})
	require.NoError(t, err)

	assert.Empty(t, repo.lastScope.ExcludeRoles)
	assert.ElementsMatch(t, []string{"u-actor", "u-1", "u-2"}, result.Succeeded)
	assert.Contains(t, repo.users, "u-root")
	assert.Contains(t, repo.users, "u-legacy")
}

func TestBulkUserSetStatusSkipsNoOps(t *testing.T) {
	repo := newBulkUserRepoStub(bulkPopulation()...)
	writer := &auditWriterStub{}
	svc := newBulkUserService(repo, writer)

	req := dto.BulkStatusRequest{BulkRequest: dto.BulkRequest{Mode: dto.BulkModeSelected, IDs: []string{"u-1", "u-2", "u-legacy"}}, Action: BulkActionDeactivate}
	result, err := svc.SetStatus(context.Background(), req, BulkActor{ID: "u-actor", Role: models.RoleAdmin})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, models.StatusInactive, repo.users["u-1"].Status)
	assert.Equal(t, models.StatusActive, repo.users["u-legacy"].Status)
	assert.Equal(t, dto.DetailKindNoOp, result.Details[0].Kind)
	assert.Equal(t, 1, countActions(writer, models.AuditActionStatusChangeInBulk))
	assert.Equal(t, 1, countActions(writer, models.AuditActionRootProtection))
}

func TestBulkUserSetStatusAllIncludesActor(t *testing.T) {
	repo := newBulkUserRepoStub(bulkPopulation()...)
	svc := newBulkUserService(repo, &auditWriterStub{})

	req := dto.BulkStatusRequest{BulkRequest: dto.BulkRequest{Mode: dto.BulkModeAll}, Action: BulkActionActivate}
	result, err := svc.SetStatus(context.Background(), req, BulkActor{ID: "u-actor", Role: models.RoleAdmin})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, models.StatusActive, repo.users["u-2"].Status)
}

func TestBulkUserResetPasswords(t *testing.T) {
	repo := newBulkUserRepoStub(bulkPopulation()...)
	writer := &auditWriterStub{}
	svc := newBulkUserService(repo, writer)

	result, err := svc.ResetPasswords(context.Background(), dto.BulkRequest{Mode: dto.BulkModeSelected, IDs: []string{"u-1", "u-root"}}, BulkActor{ID: "u-actor", Role: models.RoleAdmin})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 1, result.Skipped)
	updated := repo.users["u-1"]
	assert.True(t, updated.PasswordChangeRequired)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("brosis1")))
	assert.Empty(t, repo.users["u-root"].PasswordHash)
	assert.Equal(t, 1, countActions(writer, models.AuditActionBulkResetSummary))
}

func TestBulkUserRejectsInvalidPayload(t *testing.T) {
	svc := newBulkUserService(newBulkUserRepoStub(), &auditWriterStub{})

	_, err := svc.Delete(context.Background(), dto.BulkRequest{Mode: "some"}, BulkActor{})
	assert.Error(t, err)

	_, err = svc.Delete(context.Background(), dto.BulkRequest{Mode: dto.BulkModeSelected}, BulkActor{})
	assert.Error(t, err)

	_, err = svc.SetStatus(context.Background(), dto.BulkStatusRequest{BulkRequest: dto.BulkRequest{Mode: dto.BulkModeAll}, Action: "pause"}, BulkActor{})
	assert.Error(t, err)
}
