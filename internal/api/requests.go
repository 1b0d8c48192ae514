package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/neexbeast/travel-planner/internal/plan"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type createPlanRequest struct {
	CountryCode string `json:"countryCode" validate:"required,len=3"`
	Title       string `json:"title" validate:"required"`
	StartDate   string `json:"startDate" validate:"required"`
	EndDate     string `json:"endDate" validate:"required"`
	Notes       string `json:"notes"`
}

// decodeCreatePlan parses and shape-checks the request body. Semantic checks
// (date ordering, code letters, country existence) belong to the manager.
func decodeCreatePlan(w http.ResponseWriter, r *http.Request) (plan.CreateInput, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	var req createPlanRequest
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return plan.CreateInput{}, errors.New("request body is empty")
		}
		return plan.CreateInput{}, fmt.Errorf("invalid JSON body: %w", err)
	}

	req.CountryCode = strings.TrimSpace(req.CountryCode)
	req.Title = strings.TrimSpace(req.Title)
	req.StartDate = strings.TrimSpace(req.StartDate)
	req.EndDate = strings.TrimSpace(req.EndDate)

	if err := validate.Struct(req); err != nil {
		return plan.CreateInput{}, validationError(err)
	}

	return plan.CreateInput{
		CountryCode: req.CountryCode,
		Title:       req.Title,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Notes:       req.Notes,
	}, nil
}

// validationError flattens validator failures into one message naming every
// offending JSON field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating request: %w", err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			problems = append(problems, fe.Field()+" is required")
		case "len":
			problems = append(problems, fe.Field()+" must be exactly "+fe.Param()+" characters")
		default:
			problems = append(problems, fe.Field()+" failed "+fe.Tag())
		}
	}
	return errors.New(strings.Join(problems, "; "))
}
