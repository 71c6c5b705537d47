package dto

// AssignToBroSisRequest links explicit students to one BroSis account.
type AssignToBroSisRequest struct {
	BroSisID   string   `json:"brosisId" validate:"required"`
	StudentIDs []string `json:"studentIds" validate:"required,min=1,dive,required"`
}

// StudentSelectionRequest carries a non-empty student ID list.
type StudentSelectionRequest struct {
	StudentIDs []string `json:"studentIds" validate:"required,min=1,dive,required"`
}

// AssignmentItem describes a student that changed hands.
type AssignmentItem struct {
	ID         string `json:"id"`
	StudentID  string `json:"studentId"`
	FullName   string `json:"fullName"`
	AssignedTo string `json:"assignedTo,omitempty"`
	Previous   string `json:"previousBroSis,omitempty"`
}

// AssignmentFailure describes a student that could not be processed.
type AssignmentFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// AssignmentResult is returned by assign and unassign operations.
type AssignmentResult struct {
	Success []AssignmentItem    `json:"success"`
	Failed  []AssignmentFailure `json:"failed"`
}

// DistributionResult is returned by distribute-to-brosis.
type DistributionResult struct {
	Assignments  []AssignmentItem    `json:"success"`
	Skipped      []AssignmentFailure `json:"skipped"`
	Failed       []AssignmentFailure `json:"failed"`
	Distribution map[string]int      `json:"distribution"`
}
