package schedule

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/zllovesuki/subtext/group"
	resp "github.com/zllovesuki/subtext/response"
	"github.com/zllovesuki/subtext/util"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// wallClockLayout accepts an instant without explicit zone information
const wallClockLayout = "2006-01-02T15:04:05"

// dateLayout accepts a bare date for recurrence expansion
const dateLayout = "2006-01-02"

// ServiceOptions contains the configuration for the Service router
type ServiceOptions struct {
	ScheduleManager *Manager
	Planner         *Planner
	Logger          *zap.Logger
}

// Service is the scheduling API router
type Service struct {
	ServiceOptions
	validate *validator.Validate
}

// NewService will create an instance of the scheduling API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.ScheduleManager == nil {
		return nil, fmt.Errorf("nil ScheduleManager is invalid")
	}
	if option.Planner == nil {
		return nil, fmt.Errorf("nil Planner is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
		validate:       validator.New(),
	}, nil
}

// ScheduleRequest contains the request to schedule a single message
type ScheduleRequest struct {
	Message       string `json:"message" validate:"required"`
	ScheduledTime string `json:"scheduledTime" validate:"required"`
}

// ScheduleResponse echoes the persisted message plus its local-time rendering
type ScheduleResponse struct {
	ScheduledMessage   *ScheduledMessage `json:"scheduledMessage"`
	ScheduledTimeLocal string            `json:"scheduledTimeLocal"`
	TimezoneDisplay    string            `json:"timezoneDisplay"`
}

// parseScheduledTime distinguishes an absolute instant (explicit zone/offset)
// from a bare wall-clock value
func parseScheduledTime(value string) (at time.Time, absolute bool, err error) {
	if at, err = time.Parse(time.RFC3339, value); err == nil {
		return at, true, nil
	}
	if at, err = time.ParseInLocation(wallClockLayout, value, time.UTC); err == nil {
		return at, false, nil
	}
	return time.Time{}, false, fmt.Errorf("time %q is neither RFC3339 nor %s", value, wallClockLayout)
}

func (s *Service) scheduleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subscriberID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid subscriber id"))
		return
	}

	logger := s.Logger.With(zap.Uint64("SubscriberID", subscriberID))

	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("message and scheduledTime are required"))
		return
	}

	at, absolute, err := parseScheduledTime(req.ScheduledTime)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid scheduledTime format"))
		return
	}

	msg, err := s.ScheduleManager.Schedule(ctx, ScheduleInput{
		SubscriberID: uint(subscriberID),
		Message:      req.Message,
		At:           at,
		AtIsAbsolute: absolute,
	})
	if err == ErrSubscriberNotFound {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find subscriber with specific ID"))
		return
	}
	if err != nil {
		logger.Error("Unable to schedule message",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to schedule message"))
		return
	}

	local := util.UTCToLocal(msg.ScheduledTime, msg.TimezoneOffsetMinutes)
	resp.WriteResponse(w, r, ScheduleResponse{
		ScheduledMessage:   msg,
		ScheduledTimeLocal: local.Format(wallClockLayout),
		TimezoneDisplay:    util.FormatOffsetWithLabel(msg.TimezoneOffsetMinutes, msg.TimezoneLabel),
	})
}

func (s *Service) listMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subscriberID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid subscriber id"))
		return
	}
	pendingOnly := r.URL.Query().Get("pending") != ""

	results, err := s.ScheduleManager.ListBySubscriber(ctx, uint(subscriberID), pendingOnly)
	if err != nil {
		s.Logger.Error("Unable to list scheduled messages",
			zap.Uint64("SubscriberID", subscriberID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to list scheduled messages"))
		return
	}

	resp.WriteResponse(w, r, results)
}

// ExpandRequest contains the request to expand one recurrence occurrence
type ExpandRequest struct {
	MessageType string `json:"messageType" validate:"required"`
	Text        string `json:"text"`
	Date        string `json:"date"`
}

func parseDate(value string) (time.Time, error) {
	if len(value) == 0 {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, value, time.UTC)
}

func (s *Service) expandGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groupID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid group id"))
		return
	}

	var req ExpandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("messageType is required"))
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid date format"))
		return
	}

	result, err := s.Planner.Expand(ctx, uint(groupID), req.MessageType, ExpandOption{
		Text: req.Text,
		Date: date,
	})
	if err == group.ErrNotFound {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find group with specific ID"))
		return
	}
	if err != nil {
		s.Logger.Error("Unable to expand group recurrence",
			zap.Uint64("GroupID", groupID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to expand group recurrence"))
		return
	}

	resp.WriteResponse(w, r, result)
}

// ExpandDailyRequest contains the optional date for a daily expansion
type ExpandDailyRequest struct {
	Date string `json:"date"`
}

func (s *Service) expandGroupDaily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groupID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid group id"))
		return
	}

	var req ExpandDailyRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			resp.WriteError(w, r, resp.ErrInvalidJson())
			return
		}
	}
	date, err := parseDate(req.Date)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid date format"))
		return
	}

	resp.WriteResponse(w, r, s.Planner.ExpandDaily(ctx, uint(groupID), date))
}

func (s *Service) expandGroupWeekly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groupID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid group id"))
		return
	}

	var req ExpandDailyRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			resp.WriteError(w, r, resp.ErrInvalidJson())
			return
		}
	}
	startDate, err := parseDate(req.Date)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid date format"))
		return
	}

	resp.WriteResponse(w, r, s.Planner.ExpandWeekly(ctx, uint(groupID), startDate))
}

// Router returns the routes managed by this Service
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/subscribers/{id}/messages", s.scheduleMessage)
	r.Get("/subscribers/{id}/messages", s.listMessages)
	r.Post("/groups/{id}/expand", s.expandGroup)
	r.Post("/groups/{id}/expand-daily", s.expandGroupDaily)
	r.Post("/groups/{id}/expand-weekly", s.expandGroupWeekly)

	return r
}
