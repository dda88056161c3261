package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/zllovesuki/subtext/discount"
	"github.com/zllovesuki/subtext/plan"
	"github.com/zllovesuki/subtext/subscriber"

	extErrors "github.com/pkg/errors"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ManagerOptions contains the dependencies for the subscription Manager
type ManagerOptions struct {
	DB              *gorm.DB
	StripeClient    *client.API
	DiscountManager *discount.Manager
	Logger          *zap.Logger
}

// Manager handles subscription creation and activation
type Manager struct {
	ManagerOptions
}

// NewManager returns a new Manager for subscriptions
func NewManager(option ManagerOptions) (*Manager, error) {
	if option.DB == nil {
		return nil, fmt.Errorf("nil DB is invalid")
	}
	if option.StripeClient == nil {
		return nil, fmt.Errorf("nil StripeClient is invalid")
	}
	if option.DiscountManager == nil {
		return nil, fmt.Errorf("nil DiscountManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if err := option.DB.AutoMigrate(&Subscription{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize subscription.Manager")
	}
	return &Manager{
		ManagerOptions: option,
	}, nil
}

// CheckoutResult reports the outcome of a subscription creation
type CheckoutResult struct {
	Quote                discount.Quote    `json:"quote"`
	Status               subscriber.Status `json:"status"`
	StripeSubscriptionID string            `json:"-"`
}

// Checkout creates a subscription for the subscriber on the given plan,
// optionally with a validated discount code. A final price of zero skips the
// payment provider entirely and activates the subscription directly;
// otherwise a provider subscription is created and the subscriber stays
// pending until the provider's activation event arrives.
//
// The discount usage counter is incremented exactly once, only after the
// subscriber row is durably committed: the engine exposes no decrement, so
// this call site owns the exactly-once semantics.
func (m *Manager) Checkout(ctx context.Context, sub *subscriber.Subscriber, p *plan.Plan, code *discount.DiscountCode) (*CheckoutResult, error) {
	var quote discount.Quote
	if code != nil {
		quote = code.Apply(p.Price)
	} else {
		quote = discount.Quote{
			BasePrice:  p.Price,
			FinalPrice: p.Price,
			IsFree:     p.Price.IsZero(),
		}
	}

	result := &CheckoutResult{
		Quote: quote,
	}

	if quote.IsFree {
		result.Status = subscriber.StatusActive
	} else {
		result.Status = subscriber.StatusPending
	}

	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		sub.PlanID = &p.ID
		sub.SubscriptionStatus = result.Status
		final := quote.FinalPrice
		sub.FinalPrice = &final
		if code != nil {
			sub.DiscountCodeID = &code.ID
		}
		if p.HasTrial && p.TrialDays > 0 {
			trialEnd := now.AddDate(0, 0, p.TrialDays)
			sub.IsTrial = true
			sub.TrialStartDate = &now
			sub.TrialEndDate = &trialEnd
		}
		if saveRes := tx.Save(sub); saveRes.Error != nil {
			return saveRes.Error
		}
		record := &Subscription{
			SubscriberID:  sub.ID,
			PaymentMethod: sub.PaymentMethod,
			Status:        result.Status,
		}
		return tx.Create(record).Error
	})
	if err != nil {
		m.Logger.Error("Unable to persist subscription",
			zap.Uint("SubscriberID", sub.ID),
			zap.Error(err),
		)
		return nil, extErrors.Wrap(err, "Cannot create subscription")
	}

	// subscriber row is committed; redeem the code
	if code != nil {
		if err := m.DiscountManager.IncrementUsage(ctx, code.ID); err != nil {
			m.Logger.Error("Unable to increment discount code usage after commit",
				zap.Uint("DiscountCodeID", code.ID),
				zap.Error(err),
			)
		}
	}

	if quote.IsFree {
		return result, nil
	}

	stripeSub, err := m.createStripeSubscription(ctx, sub, p, result)
	if err != nil {
		return nil, err
	}
	result.StripeSubscriptionID = stripeSub.ID

	return result, nil
}

func (m *Manager) ensureStripeCustomer(ctx context.Context, sub *subscriber.Subscriber) (string, error) {
	if len(sub.StripeCustomerID) > 0 {
		return sub.StripeCustomerID, nil
	}
	params := &stripe.CustomerParams{
		Params: stripe.Params{
			Context: ctx,
			Metadata: map[string]string{
				"phone_number":  sub.PhoneNumber,
				"subscriber_id": fmt.Sprintf("%d", sub.ID),
			},
		},
		Email: stripe.String(sub.Email),
	}
	c, err := m.StripeClient.Customers.New(params)
	if err != nil {
		return "", extErrors.Wrap(err, "Cannot create customer on Stripe")
	}
	sub.StripeCustomerID = c.ID
	if saveRes := m.DB.WithContext(ctx).Model(sub).Update("stripe_customer_id", c.ID); saveRes.Error != nil {
		return "", extErrors.Wrap(saveRes.Error, "Cannot persist Stripe customer id")
	}
	return c.ID, nil
}

func (m *Manager) createStripeSubscription(ctx context.Context, sub *subscriber.Subscriber, p *plan.Plan, result *CheckoutResult) (*stripe.Subscription, error) {
	customerID, err := m.ensureStripeCustomer(ctx, sub)
	if err != nil {
		return nil, err
	}

	priceParams := &stripe.PriceParams{
		Params: stripe.Params{
			Context: ctx,
		},
		UnitAmount: stripe.Int64(result.Quote.FinalPrice.Shift(2).IntPart()),
		Currency:   stripe.String(p.Currency),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String("month"),
		},
		ProductData: &stripe.PriceProductDataParams{
			Name: stripe.String(fmt.Sprintf("%s Subscription", p.Name)),
		},
	}
	price, err := m.StripeClient.Prices.New(priceParams)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot create price on Stripe")
	}

	subscriptionParams := &stripe.SubscriptionParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{
				Price: stripe.String(price.ID),
			},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	if sub.IsTrial && p.TrialDays > 0 {
		subscriptionParams.TrialPeriodDays = stripe.Int64(int64(p.TrialDays))
	}
	stripeSub, err := m.StripeClient.Subscriptions.New(subscriptionParams)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot create subscription on Stripe")
	}

	var record Subscription
	lookup := m.DB.WithContext(ctx).
		Where("subscriber_id = ?", sub.ID).
		Order("id desc").
		First(&record)
	if lookup.Error != nil {
		return nil, extErrors.Wrap(lookup.Error, "Cannot find subscription record")
	}
	updateRes := m.DB.WithContext(ctx).Model(&record).
		Updates(map[string]interface{}{
			"stripe_subscription_id": stripeSub.ID,
			"stripe_customer_id":     customerID,
		})
	if updateRes.Error != nil {
		return nil, extErrors.Wrap(updateRes.Error, "Cannot persist Stripe subscription id")
	}

	return stripeSub, nil
}

// SubscriberIDForStripeSubscription resolves a provider subscription id back
// to our subscriber
func (m *Manager) SubscriberIDForStripeSubscription(ctx context.Context, stripeSubscriptionID string) (uint, error) {
	var record Subscription
	result := m.DB.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&record)
	if result.Error != nil {
		return 0, extErrors.Wrapf(result.Error, "Cannot find subscription record for %s", stripeSubscriptionID)
	}
	return record.SubscriberID, nil
}

// Activate applies a status change signaled by a payment collaborator. The
// subscriber row and the payment record flip in one transaction; queued
// pending messages become dispatch-eligible on the next poll cycle.
func (m *Manager) Activate(ctx context.Context, subscriberID uint, status subscriber.Status, provider, reference string) error {
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&subscriber.Subscriber{}).
			Where("id = ?", subscriberID).
			Update("subscription_status", status)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return subscriber.ErrNotFound
		}
		return tx.Model(&Subscription{}).
			Where("subscriber_id = ?", subscriberID).
			Updates(map[string]interface{}{
				"status":         status,
				"payment_method": provider,
			}).Error
	})
	if err != nil {
		m.Logger.Error("Unable to apply activation",
			zap.Uint("SubscriberID", subscriberID),
			zap.String("Provider", provider),
			zap.Error(err),
		)
		return extErrors.Wrap(err, "Cannot apply activation")
	}
	m.Logger.Info("Applied subscription status change",
		zap.Uint("SubscriberID", subscriberID),
		zap.String("Status", string(status)),
		zap.String("Provider", provider),
		zap.String("Reference", reference),
	)
	return nil
}
