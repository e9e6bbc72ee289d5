package models

import id "helpdesk/pkg/domain"

// CreateTicketRequest is the JSON body for ticket creation.
type CreateTicketRequest struct {
	CategoryID  int64  `json:"category_id"`
	ProjectID   int64  `json:"project_id"`
	Description string `json:"description"`
}

// TransitionRequest is the JSON body for a status change.
type TransitionRequest struct {
	StatusID id.StatusID `json:"status_id"`
	Comment  string      `json:"comment,omitempty"`
}

// AssignRequest is the JSON body for assigning a ticket.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// ListFilter narrows ticket listings.
type ListFilter struct {
	StatusID  *id.StatusID
	CreatorID *id.UserID
	Limit     int
	Offset    int
}
