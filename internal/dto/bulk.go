package dto

// BulkMode selects between the whole population and an explicit ID list.
type BulkMode string

const (
	BulkModeAll      BulkMode = "all"
	BulkModeSelected BulkMode = "selected"
)

// BulkRequest is the payload shared by every bulk endpoint.
type BulkRequest struct {
	Mode BulkMode `json:"mode" validate:"required,oneof=all selected"`
	IDs  []string `json:"ids" validate:"required_if=Mode selected,dive,required"`
}

// BulkStatusRequest toggles account status in bulk.
type BulkStatusRequest struct {
	BulkRequest
	Action string `json:"action" validate:"required,oneof=activate deactivate"`
}

// Skip and failure kinds reported in OperationResult details.
const (
	DetailKindNotFound       = "not_found"
	DetailKindRootProtection = "root_protection"
	DetailKindNoOp           = "no_op"
	DetailKindSelf           = "self"
	DetailKindForbidden      = "forbidden"
	DetailKindFailed         = "failed"
)

// OperationDetail explains why one target was skipped or failed.
type OperationDetail struct {
	ID     string `json:"id,omitempty"`
	Row    int    `json:"row,omitempty"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// OperationResult aggregates one bulk pass. Counts only ever grow.
type OperationResult struct {
	Success   int               `json:"success"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	Succeeded []string          `json:"succeeded,omitempty"`
	Details   []OperationDetail `json:"details,omitempty"`
}

// RecordSuccess counts a mutated target.
func (r *OperationResult) RecordSuccess(id string) {
	r.Success++
	r.Succeeded = append(r.Succeeded, id)
}

// RecordSkip counts a target left untouched.
func (r *OperationResult) RecordSkip(id, kind, reason string) {
	r.Skipped++
	r.Details = append(r.Details, OperationDetail{ID: id, Kind: kind, Reason: reason})
}

// RecordFailure counts a target whose mutation could not be persisted.
func (r *OperationResult) RecordFailure(id, reason string) {
	r.Failed++
	r.Details = append(r.Details, OperationDetail{ID: id, Kind: DetailKindFailed, Reason: reason})
}

// Total returns the number of targets the pass looked at.
func (r OperationResult) Total() int {
	return r.Success + r.Failed + r.Skipped
}
