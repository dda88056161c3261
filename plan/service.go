package plan

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	resp "github.com/zllovesuki/subtext/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ServiceOptions contains the configuration for the Service router
type ServiceOptions struct {
	PlanManager *Manager
	Logger      *zap.Logger
}

// Service is the plan API router
type Service struct {
	ServiceOptions
	validate *validator.Validate
}

// NewService will create an instance of the plan API router
func NewService(option ServiceOptions) (*Service, error) {
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

// CreatePlanRequest contains the request to create a plan
type CreatePlanRequest struct {
	Name         string `json:"name" validate:"required"`
	Description  string `json:"description"`
	Price        string `json:"price" validate:"required"`
	Currency     string `json:"currency"`
	HasTrial     bool   `json:"hasTrial"`
	TrialDays    int    `json:"trialDays"`
	DisplayOrder int    `json:"displayOrder"`
}

func (s *Service) createPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("name and price are required"))
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("price must be a non-negative decimal"))
		return
	}

	p := &Plan{
		Name:         req.Name,
		Description:  req.Description,
		Price:        price,
		HasTrial:     req.HasTrial,
		TrialDays:    req.TrialDays,
		DisplayOrder: req.DisplayOrder,
	}
	if len(req.Currency) > 0 {
		p.Currency = req.Currency
	}
	if err := s.PlanManager.Create(ctx, p); err != nil {
		s.Logger.Error("Unable to create plan",
			zap.String("Name", req.Name),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to create plan"))
		return
	}

	resp.WriteResponse(w, r, p)
}

func (s *Service) listPlans(w http.ResponseWriter, r *http.Request) {
	results, err := s.PlanManager.ListActive(r.Context())
	if err != nil {
		s.Logger.Error("Unable to list plans",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to list plans"))
		return
	}
	resp.WriteResponse(w, r, results)
}

func (s *Service) getPlan(w http.ResponseWriter, r *http.Request) {
	planID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid plan id"))
		return
	}
	p, err := s.PlanManager.GetByID(r.Context(), uint(planID))
	if err != nil {
		s.Logger.Error("Unable to get plan",
			zap.Uint64("PlanID", planID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to get plan"))
		return
	}
	if p == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find plan with specific ID"))
		return
	}
	resp.WriteResponse(w, r, p)
}

func (s *Service) deletePlan(w http.ResponseWriter, r *http.Request) {
	planID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid plan id"))
		return
	}
	err = s.PlanManager.Delete(r.Context(), uint(planID))
	switch err {
	case nil:
		resp.WriteResponse(w, r, true)
	case ErrNotFound:
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find plan with specific ID"))
	case ErrReferenced:
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Plan still has subscribers"))
	default:
		s.Logger.Error("Unable to delete plan",
			zap.Uint64("PlanID", planID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to delete plan"))
	}
}

// Router returns the routes managed by this Service
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listPlans)
	r.Post("/", s.createPlan)
	r.Get("/{id}", s.getPlan)
	r.Delete("/{id}", s.deletePlan)

	return r
}
