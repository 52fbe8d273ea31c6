package handler

import (
	"time"

	"resolute/internal/audit"
	"resolute/internal/resolution/models"
	reviewmodels "resolute/internal/review/models"
	"resolute/internal/subject"
)

// TaskResponse is the HTTP shape of a review task.
type TaskResponse struct {
	ID              string     `json:"id"`
	Queue           string     `json:"queue"`
	SubjectID       string     `json:"subject_id,omitempty"`
	LinkID          string     `json:"link_id,omitempty"`
	Confidence      float64    `json:"confidence"`
	RequiredRole    string     `json:"required_role"`
	Status          string     `json:"status"`
	AssignedTo      string     `json:"assigned_to,omitempty"`
	Decision        string     `json:"decision,omitempty"`
	Rationale       string     `json:"rationale,omitempty"`
	RegulatoryBasis string     `json:"regulatory_basis,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// FromTask converts a review task to its HTTP shape.
func FromTask(task *reviewmodels.ReviewTask) TaskResponse {
	resp := TaskResponse{
		ID:              task.ID.String(),
		Queue:           string(task.Queue),
		Confidence:      task.Confidence,
		RequiredRole:    string(task.RequiredRole),
		Status:          string(task.Status),
		AssignedTo:      task.AssignedTo,
		Decision:        string(task.Decision),
		Rationale:       task.Rationale,
		RegulatoryBasis: task.RegulatoryBasis,
		CreatedAt:       task.CreatedAt,
		CompletedAt:     task.CompletedAt,
	}
	if !task.SubjectID.IsNil() {
		resp.SubjectID = task.SubjectID.String()
	}
	if !task.LinkID.IsNil() {
		resp.LinkID = task.LinkID.String()
	}
	return resp
}

// QueueResponse is the HTTP response for GET /review/queues/{queueType}.
type QueueResponse struct {
	Queue string         `json:"queue"`
	Tasks []TaskResponse `json:"tasks"`
}

// AddressResponse is the canonical postal address portion of a subject.
type AddressResponse struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

// SubjectResponse is the HTTP shape of a subject.
type SubjectResponse struct {
	ID                   string           `json:"id"`
	CanonicalName        string           `json:"canonical_name,omitempty"`
	CanonicalEmail       string           `json:"canonical_email,omitempty"`
	CanonicalPhone       string           `json:"canonical_phone,omitempty"`
	CanonicalAddress     *AddressResponse `json:"canonical_address,omitempty"`
	PIITypesFound        []string         `json:"pii_types_found"`
	SourceRecords        []string         `json:"source_records"`
	MergeConfidence      float64          `json:"merge_confidence"`
	NotificationRequired bool             `json:"notification_required"`
	FlaggedForReview     bool             `json:"flagged_for_review"`
	Status               string           `json:"status"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// FromSubject converts a subject to its HTTP shape.
func FromSubject(subj *subject.Subject) SubjectResponse {
	resp := SubjectResponse{
		ID:                   subj.ID.String(),
		CanonicalName:        subj.CanonicalName,
		CanonicalEmail:       subj.CanonicalEmail,
		CanonicalPhone:       subj.CanonicalPhone,
		CanonicalAddress:     fromAddress(subj.CanonicalAddress),
		PIITypesFound:        subj.PIITypesFound,
		SourceRecords:        make([]string, len(subj.SourceRecords)),
		MergeConfidence:      subj.MergeConfidence,
		NotificationRequired: subj.NotificationRequired,
		FlaggedForReview:     subj.FlaggedForReview,
		Status:               string(subj.Status),
		CreatedAt:            subj.CreatedAt,
		UpdatedAt:            subj.UpdatedAt,
	}
	for i, rid := range subj.SourceRecords {
		resp.SourceRecords[i] = string(rid)
	}
	return resp
}

func fromAddress(addr *models.PostalAddress) *AddressResponse {
	if addr == nil {
		return nil
	}
	return &AddressResponse{
		Street:  addr.Street,
		City:    addr.City,
		State:   addr.State,
		Zip:     addr.Zip,
		Country: addr.Country,
	}
}

// EventResponse is the HTTP shape of an audit event.
type EventResponse struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Actor           string    `json:"actor"`
	EntityID        string    `json:"entity_id,omitempty"`
	Decision        string    `json:"decision,omitempty"`
	Rationale       string    `json:"rationale,omitempty"`
	RegulatoryBasis string    `json:"regulatory_basis,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// FromEvent converts an audit event to its HTTP shape.
func FromEvent(event audit.Event) EventResponse {
	return EventResponse{
		ID:              event.ID.String(),
		Type:            string(event.Type),
		Actor:           event.Actor,
		EntityID:        event.EntityID,
		Decision:        event.Decision,
		Rationale:       event.Rationale,
		RegulatoryBasis: event.RegulatoryBasis,
		Timestamp:       event.Timestamp,
	}
}
