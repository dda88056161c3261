package discount

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/zllovesuki/subtext/plan"
	resp "github.com/zllovesuki/subtext/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ServiceOptions contains the configuration for the Service router
type ServiceOptions struct {
	DiscountManager *Manager
	PlanManager     *plan.Manager
	Logger          *zap.Logger
}

// Service is the discount code API router
type Service struct {
	ServiceOptions
	validate *validator.Validate
}

// NewService will create an instance of the discount API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.DiscountManager == nil {
		return nil, fmt.Errorf("nil DiscountManager is invalid")
	}
	if option.PlanManager == nil {
		return nil, fmt.Errorf("nil PlanManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
		validate:       validator.New(),
	}, nil
}

// CreateCodeRequest contains the request to create a discount code
type CreateCodeRequest struct {
	Code              string `json:"code" validate:"required"`
	Kind              string `json:"kind" validate:"required,oneof=percent fixed"`
	Value             string `json:"value" validate:"required"`
	MaxUses           *int   `json:"maxUses"`
	ValidFrom         string `json:"validFrom"`
	ValidUntil        string `json:"validUntil"`
	ApplicablePlanIDs string `json:"applicablePlanIds"`
}

func parseWindowBound(value string) (*time.Time, error) {
	if len(value) == 0 {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	utc := t.UTC()
	return &utc, nil
}

func (s *Service) createCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("code, kind (percent|fixed) and value are required"))
		return
	}
	value, err := decimal.NewFromString(req.Value)
	if err != nil || value.IsNegative() {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("value must be a non-negative decimal"))
		return
	}
	if Kind(req.Kind) == KindPercent && value.GreaterThan(decimal.NewFromInt(100)) {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("percent value cannot exceed 100"))
		return
	}
	validFrom, err := parseWindowBound(req.ValidFrom)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid validFrom format"))
		return
	}
	validUntil, err := parseWindowBound(req.ValidUntil)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid validUntil format"))
		return
	}

	d := &DiscountCode{
		Code:              req.Code,
		Kind:              Kind(req.Kind),
		Value:             value,
		MaxUses:           req.MaxUses,
		ValidFrom:         validFrom,
		ValidUntil:        validUntil,
		IsActive:          true,
		ApplicablePlanIDs: req.ApplicablePlanIDs,
	}
	if err := s.DiscountManager.Create(ctx, d); err != nil {
		s.Logger.Error("Unable to create discount code",
			zap.String("Code", req.Code),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to create discount code"))
		return
	}

	resp.WriteResponse(w, r, d)
}

func (s *Service) listCodes(w http.ResponseWriter, r *http.Request) {
	results, err := s.DiscountManager.List(r.Context())
	if err != nil {
		s.Logger.Error("Unable to list discount codes",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to list discount codes"))
		return
	}
	resp.WriteResponse(w, r, results)
}

func (s *Service) deleteCode(w http.ResponseWriter, r *http.Request) {
	codeID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid discount code id"))
		return
	}
	switch err := s.DiscountManager.Delete(r.Context(), uint(codeID)); err {
	case nil:
		resp.WriteResponse(w, r, true)
	case ErrCodeNotFound:
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find discount code with specific ID"))
	default:
		s.Logger.Error("Unable to delete discount code",
			zap.Uint64("DiscountCodeID", codeID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to delete discount code"))
	}
}

// ValidateRequest contains the request to validate a code against a plan
type ValidateRequest struct {
	Code   string `json:"code" validate:"required"`
	PlanID *uint  `json:"planId"`
}

// ValidateResponse echoes the code plus a price quote when a plan was given
type ValidateResponse struct {
	Code  *DiscountCode `json:"code"`
	Quote *Quote        `json:"quote,omitempty"`
}

func (s *Service) validateCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("code is required"))
		return
	}

	code, err := s.DiscountManager.Validate(ctx, req.Code, req.PlanID)
	switch err {
	case nil:
	case ErrCodeNotFound:
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages(err.Error()))
		return
	case ErrCodeInactive, ErrCodeExhausted, ErrCodeNotYetValid, ErrCodeExpired, ErrCodeNotApplicable:
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
		return
	default:
		s.Logger.Error("Unable to validate discount code",
			zap.String("Code", req.Code),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to validate discount code"))
		return
	}

	result := ValidateResponse{
		Code: code,
	}
	if req.PlanID != nil {
		p, err := s.PlanManager.GetByID(ctx, *req.PlanID)
		if err != nil {
			s.Logger.Error("Unable to get plan for quote",
				zap.Uint("PlanID", *req.PlanID),
				zap.Error(err),
			)
			resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to quote discount"))
			return
		}
		if p == nil {
			resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find plan with specific ID"))
			return
		}
		quote := code.Apply(p.Price)
		result.Quote = &quote
	}

	resp.WriteResponse(w, r, result)
}

// Router returns the routes managed by this Service
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listCodes)
	r.Post("/", s.createCode)
	r.Post("/validate", s.validateCode)
	r.Delete("/{id}", s.deleteCode)

	return r
}
