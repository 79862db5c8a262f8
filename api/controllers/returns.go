package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ricardofaria/raffletrack-backend/api/responses"
	"github.com/ricardofaria/raffletrack-backend/api/validators"
	"github.com/ricardofaria/raffletrack-backend/internal/ledger"
	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
	"github.com/ricardofaria/raffletrack-backend/pkg/logger"
)

type returnCreateRequest struct {
	BlockID    string     `json:"block_id" validate:"required"`
	Quantity   int        `json:"quantity" validate:"required,min=1"`
	Reason     *string    `json:"reason"`
	ReturnedAt *time.Time `json:"returned_at"`
}

type returnResponse struct {
	ID         uuid.UUID `json:"id"`
	BlockID    uuid.UUID `json:"block_id"`
	ScoutID    uuid.UUID `json:"scout_id"`
	Quantity   int       `json:"quantity"`
	Reason     *string   `json:"reason,omitempty"`
	ReturnedAt time.Time `json:"returned_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func returnResponseFromModel(m *models.Return) returnResponse {
	return returnResponse{
		ID:         m.ID,
		BlockID:    m.BlockID,
		ScoutID:    m.ScoutID,
		Quantity:   m.Quantity,
		Reason:     m.Reason,
		ReturnedAt: m.ReturnedAt,
		CreatedAt:  m.CreatedAt,
	}
}

func ReturnCreate(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload returnCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		blockID, err := validators.ParseUUID(payload.BlockID, "block_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := ledger.RecordReturnInput{
			BlockID:  blockID,
			Quantity: payload.Quantity,
			Reason:   payload.Reason,
		}
		if payload.ReturnedAt != nil {
			input.ReturnedAt = *payload.ReturnedAt
		}

		created, err := svc.RecordReturn(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, returnResponseFromModel(created))
	}
}

func ReturnList(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		blockID, err := validators.ParseQueryUUID(r, "block_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if blockID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "block_id query parameter is required"))
			return
		}

		returns, err := svc.ListReturns(r.Context(), blockID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]returnResponse, 0, len(returns))
		for i := range returns {
			items = append(items, returnResponseFromModel(&returns[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

func ReturnDelete(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "returnId"), "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteReturn(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
