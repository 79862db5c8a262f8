package controllers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/ricardofaria/raffletrack-backend/api/responses"
	"github.com/ricardofaria/raffletrack-backend/api/validators"
	"github.com/ricardofaria/raffletrack-backend/internal/importer"
	"github.com/ricardofaria/raffletrack-backend/pkg/config"
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
	"github.com/ricardofaria/raffletrack-backend/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ImportBlocks ingests a block workbook uploaded as multipart form data.
// campaign_id and unit_price travel as form fields next to the file part.
func ImportBlocks(svc importer.Service, cfg config.ImportConfig, logg *logger.Logger) http.HandlerFunc {
	maxBytes := int64(cfg.MaxUploadMB) << 20
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart upload"))
			return
		}

		campaignID, err := validators.ParseUUID(r.FormValue("campaign_id"), "campaign_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unitPrice, err := parseMoney(r.FormValue("unit_price"), "unit_price")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "file part is required"))
			return
		}
		defer file.Close()

		result, err := svc.ImportBlocks(r.Context(), importer.ImportInput{
			CampaignID: campaignID,
			UnitPrice:  unitPrice,
			Reader:     file,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// ExportBlocks streams the campaign's reconciliation workbook.
func ExportBlocks(svc importer.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID, err := validators.ParseQueryUUID(r, "campaign_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if campaignID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "campaign_id query parameter is required"))
			return
		}

		workbook, err := svc.ExportBlocks(r.Context(), campaignID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer workbook.Close()

		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="blocks-%s.xlsx"`, campaignID))
		if err := workbook.Write(w); err != nil {
			logg.Error(r.Context(), "export.write_failed", err)
		}
	}
}
