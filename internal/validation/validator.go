// Package validation checks thematic screening requests before they are accepted.
//
// Field-level rules are declared as struct tags on domain.ScreenRequest and
// enforced with go-playground/validator. Cross-field rules (date ordering,
// fiscal year versus document type, frequency versus date span, universe shape)
// are checked here. Every violation is collected; validation never stops at the
// first failure.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/thematic-screener-service/internal/domain"
)

// Validator validates screening requests. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator that reports fields by their JSON names.
func New() *Validator {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: validate}
}

// Validate returns nil or a *domain.RequestValidationError listing every violated rule.
func (v *Validator) Validate(req *domain.ScreenRequest) error {
	if req == nil {
		return &domain.RequestValidationError{
			Violations: []domain.ValidationError{{Field: "request", Message: "request is required"}},
		}
	}

	var violations []domain.ValidationError
	violations = append(violations, v.structViolations(req)...)
	violations = append(violations, dateViolations(req)...)
	violations = append(violations, documentTypeViolations(req)...)
	violations = append(violations, universeViolations(req.Companies)...)

	if len(violations) == 0 {
		return nil
	}
	return &domain.RequestValidationError{Violations: violations}
}

// structViolations runs the tag-declared rules.
func (v *Validator) structViolations(req *domain.ScreenRequest) []domain.ValidationError {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []domain.ValidationError{{Field: "request", Message: err.Error()}}
	}

	out := make([]domain.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, domain.ValidationError{Field: fe.Field(), Message: tagMessage(fe)})
	}
	return out
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// dateViolations checks date format, ordering and the frequency span.
func dateViolations(req *domain.ScreenRequest) []domain.ValidationError {
	var out []domain.ValidationError

	start, end, err := req.DateRange()
	if err != nil {
		if _, startErr := parseDate(req.StartDate); startErr != nil {
			out = append(out, domain.ValidationError{
				Field:   "start_date",
				Message: fmt.Sprintf("start_date %q must use the YYYY-MM-DD format", req.StartDate),
			})
		}
		if _, endErr := parseDate(req.EndDate); endErr != nil {
			out = append(out, domain.ValidationError{
				Field:   "end_date",
				Message: fmt.Sprintf("end_date %q must use the YYYY-MM-DD format", req.EndDate),
			})
		}
		return out
	}

	if start.After(end) {
		out = append(out, domain.ValidationError{
			Field:   "start_date",
			Message: fmt.Sprintf("start_date (%s) must be on or before end_date (%s)", req.StartDate, req.EndDate),
		})
		return out
	}

	freq, ok := domain.ParseFrequency(req.Frequency)
	if !ok {
		out = append(out, domain.ValidationError{
			Field:   "frequency",
			Message: fmt.Sprintf("invalid frequency %q, possible values are: %s", req.Frequency, joinFrequencies()),
		})
		return out
	}

	span := domain.InclusiveSpanDays(start, end)
	if minimum := freq.MinimumDays(); span < minimum {
		out = append(out, domain.ValidationError{
			Field: "frequency",
			Message: fmt.Sprintf(
				"the range between start_date=%s and end_date=%s (%d days) is shorter than the minimum required for frequency '%s' (%d days)",
				req.StartDate, req.EndDate, span, freq, minimum,
			),
		})
	}
	return out
}

// documentTypeViolations checks the vocabulary and the fiscal year requirement.
func documentTypeViolations(req *domain.ScreenRequest) []domain.ValidationError {
	docType, ok := domain.ParseDocumentType(req.DocumentType)
	if !ok {
		return []domain.ValidationError{{
			Field:   "document_type",
			Message: fmt.Sprintf("invalid document_type %q, possible values are: %s", req.DocumentType, joinDocumentTypes()),
		}}
	}

	switch {
	case docType.RequiresFiscalYear() && len(req.FiscalYear) == 0:
		return []domain.ValidationError{{
			Field:   "fiscal_year",
			Message: fmt.Sprintf("fiscal_year must be specified when document_type is %s", docType),
		}}
	case !docType.RequiresFiscalYear() && req.FiscalYear != nil:
		return []domain.ValidationError{{
			Field:   "fiscal_year",
			Message: fmt.Sprintf("fiscal_year must not be specified when document_type is %s", docType),
		}}
	}
	return nil
}

// universeViolations checks that companies is a non-empty ID list or a watchlist ID.
func universeViolations(u domain.Universe) []domain.ValidationError {
	switch u.Kind() {
	case domain.UniverseEntities:
		if len(u.EntityIDs) == 0 {
			return []domain.ValidationError{{Field: "companies", Message: "companies must contain at least one entity ID"}}
		}
		for i, id := range u.EntityIDs {
			if strings.TrimSpace(id) == "" {
				return []domain.ValidationError{{Field: "companies", Message: fmt.Sprintf("companies[%d] must not be blank", i)}}
			}
		}
		return nil
	case domain.UniverseWatchlist:
		if strings.TrimSpace(u.WatchlistID) == "" {
			return []domain.ValidationError{{Field: "companies", Message: "watchlist ID must not be blank"}}
		}
		return nil
	default:
		return []domain.ValidationError{{
			Field:   "companies",
			Message: "companies must be a list of entity IDs or a watchlist ID",
		}}
	}
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(domain.DateLayout, s)
}

func joinDocumentTypes() string {
	types := domain.DocumentTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func joinFrequencies() string {
	freqs := domain.Frequencies()
	names := make([]string, len(freqs))
	for i, f := range freqs {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
