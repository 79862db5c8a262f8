package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ricardofaria/raffletrack-backend/api/responses"
	"github.com/ricardofaria/raffletrack-backend/api/validators"
	"github.com/ricardofaria/raffletrack-backend/internal/blocks"
	"github.com/ricardofaria/raffletrack-backend/internal/reconcile"
	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	"github.com/ricardofaria/raffletrack-backend/pkg/enums"
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
	"github.com/ricardofaria/raffletrack-backend/pkg/logger"
	"github.com/ricardofaria/raffletrack-backend/pkg/pagination"
)

type blockCreateRequest struct {
	CampaignID  string  `json:"campaign_id" validate:"required"`
	Name        string  `json:"name"`
	StartNumber int     `json:"start_number" validate:"required,min=1"`
	EndNumber   int     `json:"end_number" validate:"required,min=1"`
	UnitPrice   string  `json:"unit_price" validate:"required"`
	BlockPrice  *string `json:"block_price"`
	Section     *string `json:"section"`
	Notes       *string `json:"notes"`
}

type blockUpdateRequest struct {
	Name       *string `json:"name"`
	UnitPrice  *string `json:"unit_price"`
	BlockPrice *string `json:"block_price"`
	Section    *string `json:"section"`
	Notes      *string `json:"notes"`
}

type blockBatchRequest struct {
	CampaignID   string              `json:"campaign_id" validate:"required"`
	UnitPrice    string              `json:"unit_price" validate:"required"`
	BlockPrice   *string             `json:"block_price"`
	Section      *string             `json:"section"`
	NamePrefix   string              `json:"name_prefix"`
	Ranges       []blockRangeRequest `json:"ranges" validate:"omitempty,dive"`
	TotalTickets int                 `json:"total_tickets" validate:"omitempty,min=1"`
	BlockSize    int                 `json:"block_size" validate:"omitempty,min=1"`
}

type blockRangeRequest struct {
	Start int `json:"start" validate:"required,min=1"`
	End   int `json:"end" validate:"required,min=1"`
}

type blockSplitRequest struct {
	ScoutIDs []string `json:"scout_ids" validate:"required,min=2"`
}

type blockAssignRequest struct {
	ScoutID string `json:"scout_id" validate:"required"`
}

type blockResponse struct {
	ID          uuid.UUID       `json:"id"`
	CampaignID  uuid.UUID       `json:"campaign_id"`
	Name        string          `json:"name"`
	StartNumber int             `json:"start_number"`
	EndNumber   int             `json:"end_number"`
	TicketCount int             `json:"ticket_count"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	BlockPrice  *decimal.Decimal `json:"block_price,omitempty"`
	ExpectedTotal decimal.Decimal `json:"expected_total"`
	Section     *enums.Section  `json:"section,omitempty"`
	ScoutID     *uuid.UUID      `json:"scout_id,omitempty"`
	AssignedAt  *time.Time      `json:"assigned_at,omitempty"`
	Notes       *string         `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type blockListResponse struct {
	Items  []blockResponse `json:"items"`
	Cursor string          `json:"cursor,omitempty"`
}

type blockSplitResponse struct {
	Original blockResponse   `json:"original"`
	Siblings []blockResponse `json:"siblings"`
}

func blockResponseFromModel(m *models.Block) blockResponse {
	return blockResponse{
		ID:            m.ID,
		CampaignID:    m.CampaignID,
		Name:          m.Name,
		StartNumber:   m.StartNumber,
		EndNumber:     m.EndNumber,
		TicketCount:   m.TicketCount(),
		UnitPrice:     m.UnitPrice,
		BlockPrice:    m.BlockPrice,
		ExpectedTotal: m.ExpectedTotal(),
		Section:       m.Section,
		ScoutID:       m.ScoutID,
		AssignedAt:    m.AssignedAt,
		Notes:         m.Notes,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func parseMoney(raw, field string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a decimal string").
			WithDetails(map[string]any{"field": field})
	}
	return value, nil
}

func parseOptionalMoney(raw *string, field string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	value, err := parseMoney(*raw, field)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func BlockCreate(svc blocks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload blockCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaignID, err := validators.ParseUUID(payload.CampaignID, "campaign_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unitPrice, err := parseMoney(payload.UnitPrice, "unit_price")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		blockPrice, err := parseOptionalMoney(payload.BlockPrice, "block_price")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		section, err := parseSectionParam(payload.Section)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateBlock(r.Context(), blocks.CreateBlockInput{
			CampaignID:  campaignID,
			Name:        payload.Name,
			StartNumber: payload.StartNumber,
			EndNumber:   payload.EndNumber,
			UnitPrice:   unitPrice,
			BlockPrice:  blockPrice,
			Section:     section,
			Notes:       payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, blockResponseFromModel(created))
	}
}

func BlockDetail(svc blocks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "blockId"), "blockId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		block, err := svc.GetBlock(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, blockResponseFromModel(block))
	}
}

func BlockList(svc blocks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		campaignID, err := validators.ParseQueryUUID(r, "campaign_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		scoutID, err := validators.ParseQueryUUID(r, "scout_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unassignedOnly, err := validators.ParseQueryBool(r, "unassigned_only")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListBlocks(r.Context(), blocks.ListParams{
			Limit:          limit,
			Cursor:         r.URL.Query().Get("cursor"),
			CampaignID:     campaignID,
			ScoutID:        scoutID,
			UnassignedOnly: unassignedOnly,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]blockResponse, 0, len(result.Items))
		for i := range result.Items {
			items = append(items, blockResponseFromModel(&result.Items[i]))
		}
		responses.WriteSuccess(w, blockListResponse{Items: items, Cursor: result.Cursor})
	}
}

func BlockUpdate(svc blocks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "blockId"), "blockId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload blockUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		unitPrice, err := parseOptionalMoney(payload.UnitPrice, "unit_price")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		blockPrice, err := parseOptionalMoney(payload.BlockPrice, "block_price")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		section, err := parseSectionParam(payload.Section)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateBlock(r.Context(), id, blocks.UpdateBlockInput{
			Name:       payload.Name,
			UnitPrice:  unitPrice,
			BlockPrice: blockPrice,
			Section:    section,
			Notes:      payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, blockResponseFromModel(updated))
	}
}

func BlockDelete(svc blocks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "blockId"), "blockId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteBlock(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func BlockBatch(svc blocks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload blockBatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaignID, err := validators.ParseUUID(payload.CampaignID, "campaign_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unitPrice, err := parseMoney(payload.UnitPrice, "unit_price")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		blockPrice, err := parseOptionalMoney(payload.BlockPrice, "block_price")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		section, err := parseSectionParam(payload.Section)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ranges := make([]blocks.Range, 0, len(payload.Ranges))
		for _, rng := range payload.Ranges {
			ranges = append(ranges, blocks.Range{Start: rng.Start, End: rng.End})
		}

		created, err := svc.GenerateBatch(r.Context(), blocks.BatchInput{
			CampaignID:   campaignID,
			UnitPrice:    unitPrice,
			BlockPrice:   blockPrice,
			Section:      section,
			NamePrefix:   payload.NamePrefix,
			Ranges:       ranges,
			TotalTickets: payload.TotalTickets,
			BlockSize:    payload.BlockSize,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]blockResponse, 0, len(created))
		for i := range created {
			items = append(items, blockResponseFromModel(&created[i]))
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, blockListResponse{Items: items})
	}
}

func BlockSplit(svc blocks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "blockId"), "blockId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload blockSplitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		scoutIDs := make([]uuid.UUID, 0, len(payload.ScoutIDs))
		for _, raw := range payload.ScoutIDs {
			scoutID, err := validators.ParseUUID(raw, "scout_ids")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			scoutIDs = append(scoutIDs, scoutID)
		}

		result, err := svc.SplitBlock(r.Context(), id, scoutIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		siblings := make([]blockResponse, 0, len(result.Siblings))
		for i := range result.Siblings {
			siblings = append(siblings, blockResponseFromModel(&result.Siblings[i]))
		}
		responses.WriteSuccess(w, blockSplitResponse{
			Original: blockResponseFromModel(result.Original),
			Siblings: siblings,
		})
	}
}

func BlockAssign(svc blocks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "blockId"), "blockId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload blockAssignRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		scoutID, err := validators.ParseUUID(payload.ScoutID, "scout_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		block, err := svc.AssignScout(r.Context(), id, scoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, blockResponseFromModel(block))
	}
}

func BlockUnassign(svc blocks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "blockId"), "blockId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		block, err := svc.UnassignScout(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, blockResponseFromModel(block))
	}
}

func BlockStatement(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "blockId"), "blockId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		statement, err := svc.Statement(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, statement)
	}
}
