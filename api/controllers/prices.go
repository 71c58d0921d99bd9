package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mathias-bellec/MkulimaLink-sub002/api/responses"
	"github.com/mathias-bellec/MkulimaLink-sub002/api/validators"
	pricesvc "github.com/mathias-bellec/MkulimaLink-sub002/internal/prices"
	pkgerrors "github.com/mathias-bellec/MkulimaLink-sub002/pkg/errors"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/logger"
)

// RecordPrice publishes a market price observation.
func RecordPrice(svc pricesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "price service unavailable"))
			return
		}

		var payload recordPriceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toRecordInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := svc.Record(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, price)
	}
}

// LatestPrice serves the freshest observation for a crop in a region. Reads
// hit the cache first so farmers polling before market day stay cheap.
func LatestPrice(svc pricesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "price service unavailable"))
			return
		}

		crop := strings.TrimSpace(r.URL.Query().Get("crop"))
		region := strings.TrimSpace(r.URL.Query().Get("region"))
		if crop == "" || region == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "crop and region query parameters are required"))
			return
		}

		price, err := svc.Latest(r.Context(), crop, region)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, price)
	}
}

// ListRegionPrices returns recent observations across a region's markets.
func ListRegionPrices(svc pricesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "price service unavailable"))
			return
		}

		region := strings.TrimSpace(r.URL.Query().Get("region"))
		if region == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "region query parameter is required"))
			return
		}

		prices, err := svc.ListByRegion(r.Context(), region)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, prices)
	}
}

type recordPriceRequest struct {
	Crop       string `json:"crop" validate:"required"`
	Market     string `json:"market" validate:"required"`
	Region     string `json:"region" validate:"required"`
	Unit       string `json:"unit,omitempty"`
	Price      string `json:"price" validate:"required"`
	RecordedAt string `json:"recorded_at,omitempty"`
}

func (r recordPriceRequest) toRecordInput() (pricesvc.RecordInput, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(r.Price))
	if err != nil {
		return pricesvc.RecordInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price")
	}

	var recordedAt time.Time
	if raw := strings.TrimSpace(r.RecordedAt); raw != "" {
		recordedAt, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return pricesvc.RecordInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recorded_at")
		}
	}

	return pricesvc.RecordInput{
		Crop:       strings.TrimSpace(r.Crop),
		Market:     strings.TrimSpace(r.Market),
		Region:     strings.TrimSpace(r.Region),
		Unit:       strings.TrimSpace(r.Unit),
		Price:      price,
		RecordedAt: recordedAt,
	}, nil
}
