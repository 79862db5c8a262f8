package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ricardofaria/raffletrack-backend/api/responses"
	"github.com/ricardofaria/raffletrack-backend/api/validators"
	"github.com/ricardofaria/raffletrack-backend/internal/reconcile"
	"github.com/ricardofaria/raffletrack-backend/internal/scouts"
	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	"github.com/ricardofaria/raffletrack-backend/pkg/enums"
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
	"github.com/ricardofaria/raffletrack-backend/pkg/logger"
	"github.com/ricardofaria/raffletrack-backend/pkg/pagination"
)

type scoutCreateRequest struct {
	Name    string  `json:"name" validate:"required,min=2,max=120"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone"`
	Section *string `json:"section"`
	Active  *bool   `json:"active"`
}

type scoutUpdateRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=2,max=120"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone"`
	Section *string `json:"section"`
	Active  *bool   `json:"active"`
}

type scoutResponse struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Email     *string        `json:"email,omitempty"`
	Phone     *string        `json:"phone,omitempty"`
	Section   *enums.Section `json:"section,omitempty"`
	Active    bool           `json:"active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type scoutListResponse struct {
	Items  []scoutResponse `json:"items"`
	Cursor string          `json:"cursor,omitempty"`
}

func scoutResponseFromModel(m *models.Scout) scoutResponse {
	return scoutResponse{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		Section:   m.Section,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func parseSectionParam(raw *string) (*enums.Section, error) {
	if raw == nil {
		return nil, nil
	}
	section, err := enums.ParseSection(strings.ToLower(strings.TrimSpace(*raw)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid section")
	}
	return &section, nil
}

func ScoutCreate(svc scouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload scoutCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		section, err := parseSectionParam(payload.Section)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateScout(r.Context(), scouts.CreateScoutInput{
			Name:    payload.Name,
			Email:   payload.Email,
			Phone:   payload.Phone,
			Section: section,
			Active:  payload.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, scoutResponseFromModel(created))
	}
}

func ScoutDetail(svc scouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "scoutId"), "scoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		scout, err := svc.GetScout(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, scoutResponseFromModel(scout))
	}
}

func ScoutList(svc scouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		activeOnly, err := validators.ParseQueryBool(r, "active_only")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListScouts(r.Context(), scouts.ListParams{
			Limit:      limit,
			Cursor:     r.URL.Query().Get("cursor"),
			ActiveOnly: activeOnly,
			Section:    strings.ToLower(strings.TrimSpace(r.URL.Query().Get("section"))),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]scoutResponse, 0, len(result.Items))
		for i := range result.Items {
			items = append(items, scoutResponseFromModel(&result.Items[i]))
		}
		responses.WriteSuccess(w, scoutListResponse{Items: items, Cursor: result.Cursor})
	}
}

func ScoutUpdate(svc scouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "scoutId"), "scoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload scoutUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		section, err := parseSectionParam(payload.Section)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateScout(r.Context(), id, scouts.UpdateScoutInput{
			Name:    payload.Name,
			Email:   payload.Email,
			Phone:   payload.Phone,
			Section: section,
			Active:  payload.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, scoutResponseFromModel(updated))
	}
}

func ScoutDelete(svc scouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "scoutId"), "scoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteScout(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func ScoutStatement(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "scoutId"), "scoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		statement, err := svc.ScoutStatement(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, statement)
	}
}
