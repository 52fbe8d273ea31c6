// Package handler exposes batch resolution over HTTP for the extraction
// pipeline.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"resolute/internal/resolution"
	"resolute/internal/resolution/models"
	id "resolute/pkg/domain"
	dErrors "resolute/pkg/errors"
	"resolute/pkg/platform/httputil"
	"resolute/pkg/requestcontext"
)

// Resolver runs one batch of normalized records.
type Resolver interface {
	Resolve(ctx context.Context, records []models.NormalizedRecord) (*resolution.Result, error)
}

// Handler wires the resolution endpoint to the resolver.
type Handler struct {
	resolver Resolver
	logger   *slog.Logger
	now      func() time.Time
}

func New(resolver Resolver, logger *slog.Logger) *Handler {
	return &Handler{resolver: resolver, logger: logger, now: time.Now}
}

// Register mounts resolution endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/resolution/batches", h.HandleResolveBatch)
}

// AddressRequest is the wire shape of a canonical postal address.
type AddressRequest struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

// RecordRequest is the wire shape of one normalized record.
type RecordRequest struct {
	ID            string          `json:"id"`
	Name          string          `json:"name,omitempty"`
	Email         string          `json:"email,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Address       *AddressRequest `json:"address,omitempty"`
	DateOfBirth   string          `json:"date_of_birth,omitempty"`
	GovIDHash     string          `json:"gov_id_hash,omitempty"`
	EntityTypes   []string        `json:"entity_types,omitempty"`
	EvidenceRef   string          `json:"evidence_ref,omitempty"`
	LowConfidence bool            `json:"low_confidence,omitempty"`
}

// BatchRequest is the wire shape of POST /resolution/batches.
type BatchRequest struct {
	Records []RecordRequest `json:"records"`
}

func (r BatchRequest) Validate() error {
	if len(r.Records) == 0 {
		return dErrors.New(dErrors.CodeValidation, "records must not be empty")
	}
	return nil
}

// BatchResponse summarizes one resolved batch.
type BatchResponse struct {
	Subjects     int `json:"subjects"`
	PendingLinks int `json:"pending_links"`
	PairsScored  int `json:"pairs_scored"`
}

// HandleResolveBatch handles POST /resolution/batches requests.
func (h *Handler) HandleResolveBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	now := h.now().UTC()
	records := make([]models.NormalizedRecord, 0, len(req.Records))
	for _, rec := range req.Records {
		records = append(records, models.NormalizedRecord{
			ID:            id.RecordID(rec.ID),
			Name:          rec.Name,
			Email:         rec.Email,
			Phone:         rec.Phone,
			Address:       toAddress(rec.Address),
			DateOfBirth:   rec.DateOfBirth,
			GovIDHash:     rec.GovIDHash,
			EntityTypes:   rec.EntityTypes,
			EvidenceRef:   rec.EvidenceRef,
			LowConfidence: rec.LowConfidence,
			IngestedAt:    now,
		})
	}

	result, err := h.resolver.Resolve(ctx, records)
	if err != nil {
		h.logger.WarnContext(ctx, "batch resolution failed",
			"request_id", requestcontext.RequestID(ctx),
			"records", len(records),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "batch resolution accepted",
		"request_id", requestcontext.RequestID(ctx),
		"records", len(records),
		"subjects", len(result.Subjects),
		"pending_links", len(result.PendingLinks),
	)
	httputil.WriteJSON(w, http.StatusOK, BatchResponse{
		Subjects:     len(result.Subjects),
		PendingLinks: len(result.PendingLinks),
		PairsScored:  result.PairsScored,
	})
}

func toAddress(a *AddressRequest) *models.PostalAddress {
	if a == nil {
		return nil
	}
	return &models.PostalAddress{
		Street:  a.Street,
		City:    a.City,
		State:   a.State,
		Zip:     a.Zip,
		Country: a.Country,
	}
}
