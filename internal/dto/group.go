package dto

// CreateGroupRequest opens a mentor group.
type CreateGroupRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// UpdateGroupRequest edits a group. Nil fields are left as they are.
type UpdateGroupRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// AddMembersRequest lists the BroSis to add.
type AddMembersRequest struct {
	UserIDs []string `json:"userIds" validate:"required,min=1,dive,required"`
}

// AddMembersResult reports per-user outcomes of AddMembers.
type AddMembersResult struct {
	Added    int      `json:"added"`
	Errors   int      `json:"errors"`
	Messages []string `json:"messages"`
}
