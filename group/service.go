package group

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	resp "github.com/zllovesuki/subtext/response"
	"github.com/zllovesuki/subtext/util"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ServiceOptions contains the configuration for the Service router
type ServiceOptions struct {
	GroupManager *Manager
	Logger       *zap.Logger
}

// Service is the service-group API router
type Service struct {
	ServiceOptions
	validate *validator.Validate
}

// NewService will create an instance of the group API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.GroupManager == nil {
		return nil, fmt.Errorf("nil GroupManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
		validate:       validator.New(),
	}, nil
}

// CreateGroupRequest contains the request to create a service group
type CreateGroupRequest struct {
	Name                    string            `json:"name" validate:"required"`
	Description             string            `json:"description"`
	StartMessage            string            `json:"startMessage"`
	SupportTelegramUsername string            `json:"supportTelegramUsername"`
	SupportEmail            string            `json:"supportEmail"`
	DefaultPlanID           *uint             `json:"defaultPlanId"`
	ScheduledTimes          map[string]string `json:"scheduledTimes"`
}

func validClocks(times map[string]string) bool {
	for _, clock := range times {
		if _, _, err := util.ParseClock(clock); err != nil {
			return false
		}
	}
	return true
}

func (s *Service) createGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("name is required"))
		return
	}
	if !validClocks(req.ScheduledTimes) {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("scheduledTimes values must be HH:MM"))
		return
	}

	g := &ServiceGroup{
		Name:                    req.Name,
		Description:             req.Description,
		StartMessage:            req.StartMessage,
		SupportTelegramUsername: req.SupportTelegramUsername,
		SupportEmail:            req.SupportEmail,
		IsActive:                true,
		DefaultPlanID:           req.DefaultPlanID,
	}
	if req.ScheduledTimes != nil {
		if err := g.SetScheduledTimes(req.ScheduledTimes); err != nil {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid scheduledTimes"))
			return
		}
	}
	if err := s.GroupManager.Create(ctx, g); err != nil {
		s.Logger.Error("Unable to create group",
			zap.String("Name", req.Name),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to create group"))
		return
	}

	resp.WriteResponse(w, r, g)
}

func (s *Service) listGroups(w http.ResponseWriter, r *http.Request) {
	results, err := s.GroupManager.ListActive(r.Context())
	if err != nil {
		s.Logger.Error("Unable to list groups",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to list groups"))
		return
	}
	resp.WriteResponse(w, r, results)
}

// GroupResponse includes the decoded recurrence configuration
type GroupResponse struct {
	*ServiceGroup
	ScheduledTimes map[string]string `json:"scheduledTimes"`
}

func (s *Service) getGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid group id"))
		return
	}
	g, err := s.GroupManager.GetByID(r.Context(), uint(groupID))
	if err != nil {
		s.Logger.Error("Unable to get group",
			zap.Uint64("GroupID", groupID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to get group"))
		return
	}
	if g == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find group with specific ID"))
		return
	}
	resp.WriteResponse(w, r, GroupResponse{
		ServiceGroup:   g,
		ScheduledTimes: g.ScheduledTimeMap(),
	})
}

// UpdateTimesRequest contains the replacement recurrence configuration
type UpdateTimesRequest struct {
	ScheduledTimes map[string]string `json:"scheduledTimes" validate:"required"`
}

func (s *Service) updateTimes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groupID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid group id"))
		return
	}

	var req UpdateTimesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("scheduledTimes is required"))
		return
	}
	if !validClocks(req.ScheduledTimes) {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("scheduledTimes values must be HH:MM"))
		return
	}

	g, err := s.GroupManager.GetByID(ctx, uint(groupID))
	if err != nil {
		s.Logger.Error("Unable to get group",
			zap.Uint64("GroupID", groupID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to get group"))
		return
	}
	if g == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find group with specific ID"))
		return
	}
	if err := g.SetScheduledTimes(req.ScheduledTimes); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid scheduledTimes"))
		return
	}
	if err := s.GroupManager.Update(ctx, g); err != nil {
		s.Logger.Error("Unable to update group",
			zap.Uint64("GroupID", groupID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update group"))
		return
	}

	resp.WriteResponse(w, r, GroupResponse{
		ServiceGroup:   g,
		ScheduledTimes: g.ScheduledTimeMap(),
	})
}

// Router returns the routes managed by this Service
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listGroups)
	r.Post("/", s.createGroup)
	r.Get("/{id}", s.getGroup)
	r.Put("/{id}/times", s.updateTimes)

	return r
}
