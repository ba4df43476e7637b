// Package cashdesk is a client for the remote cashier API that moves money
// on player accounts. Every request is signed; transport failures and non-2xx
// answers come back as ErrUnavailable and are never retried for mutations.
package cashdesk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cashdesk-bot/internal/config"
	"cashdesk-bot/internal/metrics"
)

var (
	ErrUnavailable  = errors.New("cashdesk api unavailable")
	ErrUserNotFound = errors.New("player not found")
)

type Client struct {
	http       *resty.Client
	sign       signer
	cashdeskID string
	lang       string
	log        *zap.Logger
	now        func() time.Time
}

func NewClient(cfg config.CashdeskConfig, log *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(retryReads).
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			r.SetHeader("X-Request-Id", uuid.NewString())
			return nil
		})

	return &Client{
		http:       httpClient,
		sign:       signer{hash: cfg.Hash, cashierPass: cfg.CashierPass, cashdeskID: cfg.CashdeskID},
		cashdeskID: cfg.CashdeskID,
		lang:       cfg.Lang,
		log:        log.Named("cashdesk"),
		now:        time.Now,
	}
}

// retryReads retries idempotent lookups on transport errors and 5xx answers.
func retryReads(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}
	return err != nil || r.StatusCode() >= http.StatusInternalServerError
}

func (c *Client) do(ctx context.Context, method string, req *resty.Request, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	start := time.Now()
	resp, err := send(req.SetContext(ctx).ForceContentType("application/json"))
	metrics.GatewayDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.GatewayRequests.WithLabelValues(method, "error").Inc()
		c.log.Error("request failed", zap.String("method", method), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, method, err)
	}
	if resp.IsError() {
		metrics.GatewayRequests.WithLabelValues(method, strconv.Itoa(resp.StatusCode())).Inc()
		c.log.Error("api error",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode()),
			zap.ByteString("body", resp.Body()),
		)
		return resp, fmt.Errorf("%w: %s: http status %d", ErrUnavailable, method, resp.StatusCode())
	}
	metrics.GatewayRequests.WithLabelValues(method, "ok").Inc()
	return resp, nil
}

// GetBalance returns the cash desk balance and limit.
func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	dt := timestamp(c.now())
	var balance Balance
	req := c.http.R().
		SetHeader("sign", c.sign.balance(dt)).
		SetPathParam("cashdeskID", c.cashdeskID).
		SetQueryParams(map[string]string{
			"confirm": c.sign.confirm(c.cashdeskID),
			"dt":      dt,
		}).
		SetResult(&balance)

	if _, err := c.do(ctx, "balance", req, func(r *resty.Request) (*resty.Response, error) {
		return r.Get("Cashdesk/{cashdeskID}/Balance")
	}); err != nil {
		return nil, err
	}
	return &balance, nil
}

// FindUser looks a player up by id.
func (c *Client) FindUser(ctx context.Context, userID int64) (*Profile, error) {
	id := strconv.FormatInt(userID, 10)
	var profile Profile
	req := c.http.R().
		SetHeader("sign", c.sign.findUser(id)).
		SetPathParam("userID", id).
		SetQueryParams(map[string]string{
			"confirm":    c.sign.confirm(id),
			"cashdeskId": c.cashdeskID,
		}).
		SetResult(&profile)

	resp, err := c.do(ctx, "find_user", req, func(r *resty.Request) (*resty.Response, error) {
		return r.Get("Users/{userID}")
	})
	if err != nil {
		if resp != nil && resp.StatusCode() == http.StatusNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// DepositToUser credits amount to the player account. A refused operation is
// reported through OperationResult.Success, not as an error.
func (c *Client) DepositToUser(ctx context.Context, userID int64, amount decimal.Decimal) (*OperationResult, error) {
	cashdeskID, err := strconv.Atoi(c.cashdeskID)
	if err != nil {
		return nil, fmt.Errorf("invalid cashdesk id %q: %w", c.cashdeskID, err)
	}

	id := strconv.FormatInt(userID, 10)
	var result OperationResult
	req := c.http.R().
		SetHeader("sign", c.sign.deposit(id, c.lang, summa(amount))).
		SetPathParam("userID", id).
		SetBody(depositRequest{
			CashdeskID: cashdeskID,
			Lang:       c.lang,
			Summa:      amount.InexactFloat64(),
			Confirm:    c.sign.confirm(id),
		}).
		SetResult(&result)

	if _, err := c.do(ctx, "deposit", req, func(r *resty.Request) (*resty.Response, error) {
		return r.Post("Deposit/{userID}/Add")
	}); err != nil {
		return nil, err
	}
	if result.Message == "" && !result.Success {
		result.Message = "unknown error"
	}
	return &result, nil
}

// PayoutFromUser withdraws from the player account using the payout code
// the player obtained on the gaming platform.
func (c *Client) PayoutFromUser(ctx context.Context, userID int64, code string) (*OperationResult, error) {
	cashdeskID, err := strconv.Atoi(c.cashdeskID)
	if err != nil {
		return nil, fmt.Errorf("invalid cashdesk id %q: %w", c.cashdeskID, err)
	}

	id := strconv.FormatInt(userID, 10)
	var result OperationResult
	req := c.http.R().
		SetHeader("sign", c.sign.payout(id, c.lang, code)).
		SetPathParam("userID", id).
		SetBody(payoutRequest{
			CashdeskID: cashdeskID,
			Lang:       c.lang,
			Code:       code,
			Confirm:    c.sign.confirm(id),
		}).
		SetResult(&result)

	if _, err := c.do(ctx, "payout", req, func(r *resty.Request) (*resty.Response, error) {
		return r.Post("Deposit/{userID}/Payout")
	}); err != nil {
		return nil, err
	}
	return &result, nil
}
