package http

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	apierrors "pipelinereview/internal/errors"
	"pipelinereview/internal/exporter"
	"pipelinereview/internal/middleware"
	"pipelinereview/internal/review"
	"pipelinereview/internal/services"
)

// FilterRequest is the body of PUT /api/filters and of websocket filter
// messages.
type FilterRequest struct {
	MarketCapMin     float64  `json:"mcap_min" validate:"gte=0"`
	MarketCapMax     float64  `json:"mcap_max" validate:"gte=0"`
	TherapeuticAreas []string `json:"therapeutic_areas" validate:"omitempty,dive,required,max=200"`
	Phases           []string `json:"phases" validate:"omitempty,dive,required,max=50"`
	MarketedDrug     string   `json:"marketed_drug" validate:"omitempty,marketed"`
}

// State converts the request into a filter state.
func (f FilterRequest) State() review.FilterState {
	return review.FilterState{
		MarketCapMin:     f.MarketCapMin,
		MarketCapMax:     f.MarketCapMax,
		TherapeuticAreas: f.TherapeuticAreas,
		Phases:           f.Phases,
		MarketedDrug:     review.MarketedDrug(f.MarketedDrug),
	}
}

// viewQuery holds the query parameters that override the session filters.
type viewQuery struct {
	MarketCapMin     *float64 `query:"mcap_min" validate:"omitempty,gte=0"`
	MarketCapMax     *float64 `query:"mcap_max" validate:"omitempty,gte=0"`
	TherapeuticAreas []string `query:"ta" validate:"omitempty,dive,required,max=200"`
	Phases           []string `query:"phase" validate:"omitempty,dive,required,max=50"`
	Marketed         string   `query:"marketed" validate:"omitempty,marketed"`
	Sort             string   `query:"sort" validate:"max=100"`
	Desc             bool     `query:"desc"`
}

// parseViewQuery reads the filter overrides from q. Numeric and boolean
// parameters that do not parse are reported as validation errors.
func parseViewQuery(q url.Values, v *middleware.Validator) (viewQuery, error) {
	var out viewQuery
	var invalid []apierrors.ValidationError

	parseFloat := func(name string) *float64 {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			return nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			invalid = append(invalid, apierrors.ValidationError{Field: name, Message: name + " must be a number"})
			return nil
		}
		return &f
	}

	out.MarketCapMin = parseFloat("mcap_min")
	out.MarketCapMax = parseFloat("mcap_max")
	out.TherapeuticAreas = q["ta"]
	out.Phases = q["phase"]
	out.Marketed = q.Get("marketed")
	out.Sort = q.Get("sort")
	if raw := q.Get("desc"); raw != "" {
		desc, err := strconv.ParseBool(raw)
		if err != nil {
			invalid = append(invalid, apierrors.ValidationError{Field: "desc", Message: "desc must be true or false"})
		}
		out.Desc = desc
	}

	if len(invalid) > 0 {
		return viewQuery{}, apierrors.NewValidationErrors(invalid)
	}
	if err := v.ValidateStruct(out); err != nil {
		return viewQuery{}, err
	}
	return out, nil
}

// apply overrides the fields of base that the query sets and normalizes the
// result the same way PUT /api/filters does.
func (q viewQuery) apply(base review.FilterState) (review.FilterState, error) {
	return services.NormalizeFilters(q.merge(base))
}

func (q viewQuery) merge(base review.FilterState) review.FilterState {
	state := base.Clone()
	if q.MarketCapMin != nil {
		state.MarketCapMin = *q.MarketCapMin
	}
	if q.MarketCapMax != nil {
		state.MarketCapMax = *q.MarketCapMax
	}
	if q.TherapeuticAreas != nil {
		state.TherapeuticAreas = q.TherapeuticAreas
	}
	if q.Phases != nil {
		state.Phases = q.Phases
	}
	if q.Marketed != "" {
		state.MarketedDrug = review.MarketedDrug(q.Marketed)
	}
	return state
}

func (q viewQuery) options() services.ViewOptions {
	return services.ViewOptions{Sort: q.Sort, Desc: q.Desc}
}

// toAPIError maps review service failures onto API errors. Errors it does not
// recognise are returned unchanged.
func toAPIError(err error) error {
	var unavailable *services.SummaryUnavailableError
	var mismatch *services.SchemaMismatchError

	switch {
	case errors.As(err, &unavailable):
		return apierrors.SummaryUnavailable(unavailable.File)
	case errors.As(err, &mismatch):
		return apierrors.SchemaMismatch(mismatch.Missing)
	case errors.Is(err, services.ErrInvalidFilter):
		return apierrors.ErrValidation("filters", strings.TrimPrefix(err.Error(), services.ErrInvalidFilter.Error()+": "))
	case errors.Is(err, services.ErrInvalidSort):
		return apierrors.ErrValidation("sort", err.Error())
	case errors.Is(err, services.ErrSessionNotFound):
		return apierrors.NotFoundError("session")
	case errors.Is(err, exporter.ErrUnsupportedFormat):
		return apierrors.UnsupportedFormat("", exporter.SupportedFormats)
	}
	return err
}
