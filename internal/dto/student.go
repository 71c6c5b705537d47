package dto

// CreateStudentRequest registers a single student.
type CreateStudentRequest struct {
	StudentID   string  `json:"studentId" validate:"required,max=20"`
	FullName    string  `json:"fullName" validate:"required,max=100"`
	Email       string  `json:"email" validate:"required,email"`
	Phone       string  `json:"phone" validate:"required,max=20"`
	ParentPhone string  `json:"parentPhone" validate:"required,max=20"`
	Address     string  `json:"address" validate:"required"`
	Area        string  `json:"area"`
	House       string  `json:"house"`
	Notes       *string `json:"notes"`
}

// UpdateStudentRequest changes the provided fields only. An empty area or
// house clears it.
type UpdateStudentRequest struct {
	StudentID   *string `json:"studentId" validate:"omitempty,min=1,max=20"`
	FullName    *string `json:"fullName" validate:"omitempty,min=1,max=100"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Phone       *string `json:"phone" validate:"omitempty,max=20"`
	ParentPhone *string `json:"parentPhone" validate:"omitempty,max=20"`
	Address     *string `json:"address"`
	Area        *string `json:"area"`
	House       *string `json:"house"`
	Status      *string `json:"status" validate:"omitempty,oneof=active inactive pending"`
	Notes       *string `json:"notes"`
}

// StudentStats summarises matching progress.
//
// Distribution maps area, then house ("Unassigned" when empty), then BroSis
// name to the number of students that BroSis owns.
type StudentStats struct {
	TotalStudents        int                                  `json:"totalStudents"`
	TotalBroSis          int                                  `json:"totalBrosis"`
	AssignedStudents     int                                  `json:"assignedStudents"`
	AvgStudentsPerBroSis float64                              `json:"avgStudentsPerBrosis"`
	Distribution         map[string]map[string]map[string]int `json:"brosisDistribution"`
}
