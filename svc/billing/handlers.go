package billing

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/slotbook/billing/pkg/handler"
	"github.com/slotbook/billing/pkg/subscription"
)

type checkoutRequest struct {
	Plan         subscription.PlanType     `json:"plan"`
	Cycle        subscription.BillingCycle `json:"billing_cycle"`
	DiscountCode string                    `json:"discount_code,omitempty"`
	Email        string                    `json:"email,omitempty"`
	SuccessURL   string                    `json:"success_url,omitempty"`
	CancelURL    string                    `json:"cancel_url,omitempty"`
}

type planChangeRequest struct {
	Plan  subscription.PlanType     `json:"plan"`
	Cycle subscription.BillingCycle `json:"billing_cycle"`
}

type cancelRequest struct {
	AtPeriodEnd bool   `json:"at_period_end"`
	Reason      string `json:"reason,omitempty"`
}

type discountRequest struct {
	Code   string                `json:"code"`
	Plan   subscription.PlanType `json:"plan"`
	Amount int64                 `json:"amount"`
}

type webhookResponse struct {
	Outcome     subscription.Outcome `json:"outcome"`
	ReferenceID string               `json:"reference_id,omitempty"`
	Status      subscription.Status  `json:"status,omitempty"`
}

// Routes returns the lifecycle API and webhook endpoints.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/billing/{business}", func(r chi.Router) {
		r.Post("/checkout", s.checkout)
		r.Put("/subscription", s.updateSubscription)
		r.Post("/subscription/cancel", s.cancel)
		r.Post("/subscription/pause", s.lifecycle(s.gateway.PauseSubscription))
		r.Post("/subscription/resume", s.lifecycle(s.gateway.ResumeSubscription))
		r.Post("/subscription/reactivate", s.lifecycle(s.gateway.ReactivateSubscription))
		r.Get("/dashboard", s.dashboard)
		r.Get("/limits/{kind}", s.limit)
		r.Post("/discounts/apply", s.applyDiscount)
	})
	r.Post("/webhooks/{provider}", s.webhook)

	return r
}

func (s *Service) checkout(w http.ResponseWriter, r *http.Request) {
	id, err := businessID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req checkoutRequest
	if err := s.bindBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.gateway.CreateCheckoutSession(r.Context(), subscription.CheckoutRequest{
		BusinessID:   id,
		Plan:         req.Plan,
		Cycle:        req.Cycle,
		DiscountCode: req.DiscountCode,
		Email:        req.Email,
		SuccessURL:   req.SuccessURL,
		CancelURL:    req.CancelURL,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, handler.JSON(session, handler.WithJSONStatus(http.StatusCreated)))
}

func (s *Service) updateSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := businessID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req planChangeRequest
	if err := s.bindBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := s.gateway.UpdateSubscription(r.Context(), id, req.Plan, req.Cycle)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, handler.JSON(sub))
}

func (s *Service) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := businessID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req cancelRequest
	if err := s.bindBody(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := s.gateway.CancelSubscription(r.Context(), id, req.AtPeriodEnd, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, handler.JSON(sub))
}

// lifecycle adapts a single-argument gateway call (pause, resume, reactivate).
func (s *Service) lifecycle(call func(context.Context, uuid.UUID) (*subscription.SubscriptionInfo, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := businessID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		sub, err := call(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.render(w, r, handler.JSON(sub))
	}
}

func (s *Service) dashboard(w http.ResponseWriter, r *http.Request) {
	id, err := businessID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.gateway.GetDashboard(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, handler.JSON(d))
}

func (s *Service) limit(w http.ResponseWriter, r *http.Request) {
	p, err := limitRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	check, err := s.gateway.ValidatePlanLimit(r.Context(), p.Business, p.Kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, handler.JSON(check))
}

func (s *Service) applyDiscount(w http.ResponseWriter, r *http.Request) {
	id, err := businessID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req discountRequest
	if err := s.bindBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.gateway.ApplyDiscountCode(r.Context(), id, req.Code, req.Plan, req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, handler.JSON(res))
}

// webhook acknowledges with 200 unless the reconciler returns an error, whose
// status tells the processor whether to redeliver.
func (s *Service) webhook(w http.ResponseWriter, r *http.Request) {
	provider, err := webhookProvider(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	src, ok := s.sources[provider]
	if !ok {
		s.writeError(w, r, unknownProvider(provider))
		return
	}
	res, err := s.reconciler.Reconcile(r.Context(), src, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, handler.JSON(webhookResponse{
		Outcome:     res.Outcome,
		ReferenceID: res.ReferenceID,
		Status:      res.Status,
	}, handler.WithJSONMeta(map[string]any{"provider": string(provider)})))
}
