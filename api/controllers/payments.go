package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ricardofaria/raffletrack-backend/api/responses"
	"github.com/ricardofaria/raffletrack-backend/api/validators"
	"github.com/ricardofaria/raffletrack-backend/internal/ledger"
	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	"github.com/ricardofaria/raffletrack-backend/pkg/enums"
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
	"github.com/ricardofaria/raffletrack-backend/pkg/logger"
)

type paymentCreateRequest struct {
	BlockID        string     `json:"block_id" validate:"required"`
	Amount         string     `json:"amount" validate:"required"`
	TicketCount    int        `json:"ticket_count" validate:"min=0"`
	StubsDelivered int        `json:"stubs_delivered" validate:"min=0"`
	StubsExpected  int        `json:"stubs_expected" validate:"min=0"`
	Method         string     `json:"method" validate:"required"`
	Reference      *string    `json:"reference"`
	Notes          *string    `json:"notes"`
	StubNotes      *string    `json:"stub_notes"`
	PaidAt         *time.Time `json:"paid_at"`
}

type paymentUpdateRequest struct {
	Amount         *string    `json:"amount"`
	TicketCount    *int       `json:"ticket_count" validate:"omitempty,min=0"`
	StubsDelivered *int       `json:"stubs_delivered" validate:"omitempty,min=0"`
	StubsExpected  *int       `json:"stubs_expected" validate:"omitempty,min=0"`
	Method         *string    `json:"method"`
	Reference      *string    `json:"reference"`
	Notes          *string    `json:"notes"`
	StubNotes      *string    `json:"stub_notes"`
	PaidAt         *time.Time `json:"paid_at"`
}

type paymentResponse struct {
	ID               uuid.UUID           `json:"id"`
	BlockID          uuid.UUID           `json:"block_id"`
	Amount           decimal.Decimal     `json:"amount"`
	TicketCount      int                 `json:"ticket_count"`
	StubsDelivered   int                 `json:"stubs_delivered"`
	StubsExpected    int                 `json:"stubs_expected"`
	Method           enums.PaymentMethod `json:"method"`
	Reference        *string             `json:"reference,omitempty"`
	Notes            *string             `json:"notes,omitempty"`
	StubNotes        *string             `json:"stub_notes,omitempty"`
	PaidAt           time.Time           `json:"paid_at"`
	StubsDeliveredAt *time.Time          `json:"stubs_delivered_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

func paymentResponseFromModel(m *models.Payment) paymentResponse {
	return paymentResponse{
		ID:               m.ID,
		BlockID:          m.BlockID,
		Amount:           m.AmountPaid,
		TicketCount:      m.TicketCount,
		StubsDelivered:   m.StubsDelivered,
		StubsExpected:    m.StubsExpected,
		Method:           m.Method,
		Reference:        m.Reference,
		Notes:            m.Notes,
		StubNotes:        m.StubNotes,
		PaidAt:           m.PaidAt,
		StubsDeliveredAt: m.StubsDeliveredAt,
		CreatedAt:        m.CreatedAt,
	}
}

func parsePaymentMethod(raw string) (enums.PaymentMethod, error) {
	method, err := enums.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	return method, nil
}

func PaymentCreate(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload paymentCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		blockID, err := validators.ParseUUID(payload.BlockID, "block_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := parseMoney(payload.Amount, "amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := parsePaymentMethod(payload.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := ledger.RecordPaymentInput{
			BlockID:        blockID,
			Amount:         amount,
			TicketCount:    payload.TicketCount,
			StubsDelivered: payload.StubsDelivered,
			StubsExpected:  payload.StubsExpected,
			Method:         method,
			Reference:      payload.Reference,
			Notes:          payload.Notes,
			StubNotes:      payload.StubNotes,
		}
		if payload.PaidAt != nil {
			input.PaidAt = *payload.PaidAt
		}

		created, err := svc.RecordPayment(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, paymentResponseFromModel(created))
	}
}

func PaymentDetail(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "paymentId"), "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.GetPayment(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, paymentResponseFromModel(payment))
	}
}

// PaymentList returns a block's payments in paid order. The block filter is
// required: ledger rows are only ever read per block.
func PaymentList(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
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

		payments, err := svc.ListPayments(r.Context(), blockID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]paymentResponse, 0, len(payments))
		for i := range payments {
			items = append(items, paymentResponseFromModel(&payments[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

func PaymentUpdate(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "paymentId"), "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := ledger.UpdatePaymentInput{
			TicketCount:    payload.TicketCount,
			StubsDelivered: payload.StubsDelivered,
			StubsExpected:  payload.StubsExpected,
			Reference:      payload.Reference,
			Notes:          payload.Notes,
			StubNotes:      payload.StubNotes,
			PaidAt:         payload.PaidAt,
		}
		if payload.Amount != nil {
			amount, err := parseMoney(*payload.Amount, "amount")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Amount = &amount
		}
		if payload.Method != nil {
			method, err := parsePaymentMethod(*payload.Method)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Method = &method
		}

		updated, err := svc.UpdatePayment(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, paymentResponseFromModel(updated))
	}
}

func PaymentDelete(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "paymentId"), "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeletePayment(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
