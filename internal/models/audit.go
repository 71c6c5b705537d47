package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin               = "login"
	AuditActionRootProtection      = "root_user_protection"
	AuditActionImportStudents      = "import_students"
	AuditActionBatchCreateStudents = "batch_create_students"
	AuditActionImportUsers         = "import_users"
	AuditActionBatchCreateUsers    = "batch_create_users"
	AuditActionDeleteUserInBulk    = "delete_user_in_bulk"
	AuditActionBulkDeleteSummary   = "bulk_delete_summary"
	AuditActionStatusChangeInBulk  = "change_user_status_in_bulk"
	AuditActionBulkStatusSummary   = "bulk_status_summary"
	AuditActionResetPasswordInBulk = "reset_password_in_bulk"
	AuditActionBulkResetSummary    = "bulk_reset_passwords_summary"
	AuditActionDeleteStudentInBulk = "delete_student_in_bulk"
	AuditActionBulkDeleteStudents  = "bulk_delete_students_summary"
	AuditActionAssignToBroSis      = "assign_students_to_brosis"
	AuditActionUnassignFromBroSis  = "unassign_students_from_brosis"
	AuditActionDistributeToBroSis  = "distribute_students_to_brosis"
	AuditActionCatalogAreaCreate   = "create_area"
	AuditActionCatalogHouseCreate  = "create_house"
	AuditActionExportUsers         = "export_users"
	AuditActionCreateStudent       = "create_student"
	AuditActionUpdateStudent       = "update_student"
	AuditActionDeleteStudent       = "delete_student"
	AuditActionToggleStudentStatus = "toggle_student_status"
	AuditActionExportBroSisRoster  = "export_brosis_students"
	AuditActionToggleUserStatus    = "toggle_user_status"
	AuditActionCreateGroup         = "create_group"
	AuditActionUpdateGroup         = "update_group"
	AuditActionDeleteGroup         = "delete_group"
	AuditActionAddGroupMembers     = "add_group_members"
	AuditActionRemoveGroupMember   = "remove_group_member"
	AuditActionAssignGroupLeader   = "assign_group_leader"
	AuditActionRemoveGroupLeader   = "remove_group_leader"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Details    string    `db:"details" json:"details"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	RequestID  string    `db:"request_id" json:"request_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// RequestMeta carries caller details recorded alongside audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
	RequestID string
}
