package subscription

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/zllovesuki/subtext/auth"
	"github.com/zllovesuki/subtext/discount"
	"github.com/zllovesuki/subtext/gateway"
	"github.com/zllovesuki/subtext/plan"
	resp "github.com/zllovesuki/subtext/response"
	"github.com/zllovesuki/subtext/session"
	"github.com/zllovesuki/subtext/subscriber"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const stepCheckout = "checkout"

// ServiceOptions contains the configuration for the Service router
type ServiceOptions struct {
	Auth                *auth.Auth
	SessionStore        *session.Store
	SubscriberManager   *subscriber.Manager
	PlanManager         *plan.Manager
	DiscountManager     *discount.Manager
	SubscriptionManager *Manager
	Logger              *zap.Logger
}

// Service is the subscriber-facing API router: login, profile, and checkout
type Service struct {
	ServiceOptions
	validate *validator.Validate
}

// NewService will create an instance of the subscriber-facing API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.Auth == nil {
		return nil, fmt.Errorf("nil Auth is invalid")
	}
	if option.SessionStore == nil {
		return nil, fmt.Errorf("nil SessionStore is invalid")
	}
	if option.SubscriberManager == nil {
		return nil, fmt.Errorf("nil SubscriberManager is invalid")
	}
	if option.PlanManager == nil {
		return nil, fmt.Errorf("nil PlanManager is invalid")
	}
	if option.DiscountManager == nil {
		return nil, fmt.Errorf("nil DiscountManager is invalid")
	}
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
		validate:       validator.New(),
	}, nil
}

// LoginRequest is the model of a request for a login code over SMS
type LoginRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Carrier     string `json:"carrier" validate:"required"`
}

func (s *Service) requestLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("phoneNumber and carrier are required"))
		return
	}

	logger := s.Logger.With(zap.String("PhoneNumber", req.PhoneNumber))

	smsEmail, err := gateway.SMSAddress(req.PhoneNumber, req.Carrier)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
		return
	}

	if err := s.Auth.Request(r.Context(), req.PhoneNumber, smsEmail); err != nil {
		logger.Error("Unable to send login code",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to send login code"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TokenResponse carries the issued jwt pair
type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// VerifyRequest is the model of a login code exchange
type VerifyRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Code        string `json:"code" validate:"required"`
	Carrier     string `json:"carrier"`
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("phoneNumber and code are required"))
		return
	}

	logger := s.Logger.With(zap.String("PhoneNumber", req.PhoneNumber))

	valid, err := s.Auth.Verify(ctx, req.PhoneNumber, req.Code)
	if err != nil {
		logger.Error("Unable to verify login code",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to verify login code"))
		return
	}
	if !valid {
		resp.WriteError(w, r, resp.ErrUnauthorized().AddMessages("Login code is not valid"))
		return
	}

	// upsert a subscriber on first login
	sub, err := s.SubscriberManager.GetByPhoneNumber(ctx, req.PhoneNumber)
	if err != nil {
		logger.Error("Unable to look up subscriber",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to look up subscriber"))
		return
	}
	if sub == nil {
		sub = &subscriber.Subscriber{
			PhoneNumber: req.PhoneNumber,
			Carrier:     gateway.NormalizeCarrier(req.Carrier),
		}
		if smsEmail, err := gateway.SMSAddress(req.PhoneNumber, req.Carrier); err == nil {
			sub.SMSEmail = smsEmail
		}
		if err := s.SubscriberManager.Create(ctx, sub); err != nil {
			logger.Error("Unable to create subscriber",
				zap.Error(err),
			)
			resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to create subscriber"))
			return
		}
	}

	claims := auth.Claims{
		ID:          fmt.Sprintf("%d", sub.ID),
		PhoneNumber: sub.PhoneNumber,
	}
	token, err := s.Auth.CreateTokenFromClaims(claims)
	if err != nil {
		logger.Error("Unable to generate token",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to generate token"))
		return
	}
	refresh, err := s.Auth.CreateRefreshTokenFromClaims(claims)
	if err != nil {
		logger.Error("Unable to generate refresh token",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to generate token"))
		return
	}

	resp.WriteResponse(w, r, TokenResponse{
		Token:        token,
		RefreshToken: refresh,
	})
}

// RefreshRequest is the model of a refresh token exchange
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (s *Service) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("refreshToken is required"))
		return
	}

	claim, err := s.Auth.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		s.Logger.Error("Unable to verify refresh token",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to verify refresh token"))
		return
	}
	if claim == nil {
		resp.WriteError(w, r, resp.ErrUnauthorized().AddMessages("Refresh token is not valid"))
		return
	}

	id, err := strconv.ParseUint(claim.ID, 10, 32)
	if err != nil {
		resp.WriteError(w, r, resp.ErrUnauthorized().AddMessages("Refresh token is not valid"))
		return
	}
	sub, err := s.SubscriberManager.GetByID(ctx, uint(id))
	if err != nil {
		s.Logger.Error("Unable to look up subscriber",
			zap.Uint64("SubscriberID", id),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to look up subscriber"))
		return
	}
	if sub == nil {
		resp.WriteError(w, r, resp.ErrUnauthorized().AddMessages("Refresh token is not valid"))
		return
	}

	claims := auth.Claims{
		ID:          fmt.Sprintf("%d", sub.ID),
		PhoneNumber: sub.PhoneNumber,
	}
	token, err := s.Auth.CreateTokenFromClaims(claims)
	if err != nil {
		s.Logger.Error("Unable to generate token",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to generate token"))
		return
	}
	refresh, err := s.Auth.CreateRefreshTokenFromClaims(claims)
	if err != nil {
		s.Logger.Error("Unable to generate refresh token",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to generate token"))
		return
	}

	resp.WriteResponse(w, r, TokenResponse{
		Token:        token,
		RefreshToken: refresh,
	})
}

func (s *Service) subscriberFromClaims(w http.ResponseWriter, r *http.Request) *subscriber.Subscriber {
	claims, ok := r.Context().Value(auth.Context).(*auth.Claims)
	if !ok {
		resp.WriteError(w, r, resp.ErrUnexpected())
		return nil
	}
	id, err := strconv.ParseUint(claims.ID, 10, 32)
	if err != nil {
		resp.WriteError(w, r, resp.ErrUnexpected())
		return nil
	}
	sub, err := s.SubscriberManager.GetByID(r.Context(), uint(id))
	if err != nil {
		s.Logger.Error("Unable to look up subscriber",
			zap.Uint64("SubscriberID", id),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to look up subscriber"))
		return nil
	}
	if sub == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find subscriber"))
		return nil
	}
	return sub
}

func (s *Service) getProfile(w http.ResponseWriter, r *http.Request) {
	sub := s.subscriberFromClaims(w, r)
	if sub == nil {
		return
	}
	resp.WriteResponse(w, r, sub)
}

// UpdateProfileRequest contains the mutable delivery preferences
type UpdateProfileRequest struct {
	Name                      *string `json:"name"`
	Email                     *string `json:"email" validate:"omitempty,email"`
	TimezoneOffsetMinutes     *int    `json:"timezoneOffsetMinutes" validate:"omitempty,gte=-720,lte=840"`
	TimezoneLabel             *string `json:"timezoneLabel"`
	MessageDeliveryPreference *string `json:"messageDeliveryPreference" validate:"omitempty,oneof=on_demand scheduled scheduled_timezone"`
	UseTimezoneMatching       *bool   `json:"useTimezoneMatching"`
}

func (s *Service) updateProfile(w http.ResponseWriter, r *http.Request) {
	sub := s.subscriberFromClaims(w, r)
	if sub == nil {
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid profile fields"))
		return
	}

	if req.Name != nil {
		sub.Name = *req.Name
	}
	if req.Email != nil {
		sub.Email = *req.Email
	}
	if req.TimezoneOffsetMinutes != nil {
		sub.TimezoneOffsetMinutes = *req.TimezoneOffsetMinutes
	}
	if req.TimezoneLabel != nil {
		sub.TimezoneLabel = *req.TimezoneLabel
	}
	if req.MessageDeliveryPreference != nil {
		sub.MessageDeliveryPreference = subscriber.DeliveryPreference(*req.MessageDeliveryPreference)
	}
	if req.UseTimezoneMatching != nil {
		sub.UseTimezoneMatching = *req.UseTimezoneMatching
	}

	if err := s.SubscriberManager.Update(r.Context(), sub); err != nil {
		s.Logger.Error("Unable to update subscriber",
			zap.Uint("SubscriberID", sub.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update subscriber"))
		return
	}

	resp.WriteResponse(w, r, sub)
}

// CheckoutPreviewRequest contains the plan selection with an optional code
type CheckoutPreviewRequest struct {
	PlanID uint   `json:"planId" validate:"required"`
	Code   string `json:"code"`
}

// CheckoutPreviewResponse echoes the quote the confirm step will honor
type CheckoutPreviewResponse struct {
	Plan  *plan.Plan     `json:"plan"`
	Quote discount.Quote `json:"quote"`
}

func (s *Service) previewCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sub := s.subscriberFromClaims(w, r)
	if sub == nil {
		return
	}

	var req CheckoutPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("planId is required"))
		return
	}

	p, err := s.PlanManager.GetByID(ctx, req.PlanID)
	if err != nil {
		s.Logger.Error("Unable to get plan",
			zap.Uint("PlanID", req.PlanID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to get plan"))
		return
	}
	if p == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find plan with specific ID"))
		return
	}

	quote := discount.Quote{
		BasePrice:  p.Price,
		FinalPrice: p.Price,
		IsFree:     p.Price.IsZero(),
	}
	if len(req.Code) > 0 {
		code, err := s.DiscountManager.Validate(ctx, req.Code, &p.ID)
		if err != nil {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
			return
		}
		quote = code.Apply(p.Price)
	}

	state := &session.State{
		PhoneNumber:    sub.PhoneNumber,
		Step:           stepCheckout,
		SelectedPlanID: &p.ID,
		PendingCode:    discount.NormalizeCode(req.Code),
	}
	if err := s.SessionStore.Set(ctx, sub.PhoneNumber, state); err != nil {
		s.Logger.Error("Unable to store checkout session",
			zap.Uint("SubscriberID", sub.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to store checkout session"))
		return
	}

	resp.WriteResponse(w, r, CheckoutPreviewResponse{
		Plan:  p,
		Quote: quote,
	})
}

func (s *Service) confirmCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sub := s.subscriberFromClaims(w, r)
	if sub == nil {
		return
	}

	state, err := s.SessionStore.Get(ctx, sub.PhoneNumber)
	if err != nil {
		s.Logger.Error("Unable to load checkout session",
			zap.Uint("SubscriberID", sub.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to load checkout session"))
		return
	}
	if state == nil || state.Step != stepCheckout || state.SelectedPlanID == nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("No checkout in progress"))
		return
	}

	p, err := s.PlanManager.GetByID(ctx, *state.SelectedPlanID)
	if err != nil || p == nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Selected plan is no longer available"))
		return
	}

	var code *discount.DiscountCode
	if len(state.PendingCode) > 0 {
		// re-validate: the code may have exhausted between preview and confirm
		code, err = s.DiscountManager.Validate(ctx, state.PendingCode, &p.ID)
		if err != nil {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
			return
		}
	}

	result, err := s.SubscriptionManager.Checkout(ctx, sub, p, code)
	if err != nil {
		s.Logger.Error("Unable to check out subscription",
			zap.Uint("SubscriberID", sub.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to check out subscription"))
		return
	}

	if err := s.SessionStore.Delete(ctx, sub.PhoneNumber); err != nil {
		s.Logger.Error("Unable to clear checkout session",
			zap.Uint("SubscriberID", sub.ID),
			zap.Error(err),
		)
	}

	resp.WriteResponse(w, r, result)
}

// Router returns the routes managed by this Service
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/login", s.requestLogin)
	r.Post("/login/verify", s.handleLogin)
	r.Post("/login/refresh", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.Auth.Middleware())
		r.Use(s.Auth.ClaimCheck())
		r.Get("/profile", s.getProfile)
		r.Put("/profile", s.updateProfile)
		r.Post("/checkout/preview", s.previewCheckout)
		r.Post("/checkout/confirm", s.confirmCheckout)
	})

	return r
}
