// Package paymentprovider оборачивает API Stripe для операций,
// инициируемых пользователем: отложенная отмена, возобновление подписки
// и создание сессии биллинг-портала. Состояние записи подписки при этом
// не меняется — его обновит пришедший от Stripe webhook.
package paymentprovider

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// Client клиент API платёжного провайдера.
type Client struct {
	api *client.API
}

// NewClient создаёт новый клиент Stripe с секретным ключом.
func NewClient(secretKey string) *Client {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Client{api: api}
}

// ScheduleCancel помечает подписку на отмену в конце оплаченного периода.
func (c *Client) ScheduleCancel(ctx context.Context, subscriptionID string) error {
	const op = "paymentprovider.ScheduleCancel"
	_, err := c.api.Subscriptions.Update(subscriptionID, &stripe.SubscriptionParams{
		Params:            stripe.Params{Context: ctx},
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Reactivate снимает отложенную отмену с подписки.
func (c *Client) Reactivate(ctx context.Context, subscriptionID string) error {
	const op = "paymentprovider.Reactivate"
	_, err := c.api.Subscriptions.Update(subscriptionID, &stripe.SubscriptionParams{
		Params:            stripe.Params{Context: ctx},
		CancelAtPeriodEnd: stripe.Bool(false),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// PortalURL создаёт сессию биллинг-портала и возвращает её URL.
func (c *Client) PortalURL(ctx context.Context, customerID, returnURL string) (string, error) {
	const op = "paymentprovider.PortalURL"
	session, err := c.api.BillingPortalSessions.New(&stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return session.URL, nil
}
