package payment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/money"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WalletGateway pays through an online wallet: the buyer approves the
// payment on the wallet site and returns with a payer id that is then
// executed.
type WalletGateway struct {
	api    *apiClient
	logger *zap.Logger
}

// NewWalletGateway creates the wallet payments client.
func NewWalletGateway(cfg config.GatewayClientConfig, logger *zap.Logger) *WalletGateway {
	logger = logger.Named("wallet-gateway")
	return &WalletGateway{api: newAPIClient("wallet", cfg, logger), logger: logger}
}

type walletItem struct {
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
	Quantity int    `json:"quantity"`
}

type walletAmount struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
	Details  struct {
		Subtotal string `json:"subtotal"`
		Shipping string `json:"shipping"`
		Tax      string `json:"tax"`
	} `json:"details"`
}

type walletTransaction struct {
	ItemList struct {
		Items []walletItem `json:"items"`
	} `json:"item_list"`
	Amount      walletAmount `json:"amount"`
	Description string       `json:"description,omitempty"`
}

type walletPaymentRequest struct {
	Intent string `json:"intent"`
	Payer  struct {
		PaymentMethod string `json:"payment_method"`
	} `json:"payer"`
	RedirectURLs struct {
		ReturnURL string `json:"return_url"`
		CancelURL string `json:"cancel_url"`
	} `json:"redirect_urls"`
	Transactions []walletTransaction `json:"transactions"`
}

type walletLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type walletPayment struct {
	ID           string              `json:"id"`
	State        string              `json:"state"`
	Links        []walletLink        `json:"links"`
	Transactions []walletTransaction `json:"transactions"`
}

func (g *WalletGateway) Method() models.PaymentMethod { return models.PaymentWallet }

// Begin creates a wallet payment and returns its approval link.
func (g *WalletGateway) Begin(ctx context.Context, draft Draft) (*Redirect, error) {
	tx := walletTransaction{Description: "Storefront order"}
	for _, l := range draft.Lines {
		tx.ItemList.Items = append(tx.ItemList.Items, walletItem{
			Name:     l.Product.Name,
			SKU:      strconv.FormatUint(uint64(l.Product.ID), 10),
			Price:    money.Format(l.UnitPrice),
			Currency: draft.Currency,
			Quantity: l.Quantity,
		})
	}
	tx.Amount.Total = money.Format(draft.Totals.Total)
	tx.Amount.Currency = draft.Currency
	tx.Amount.Details.Subtotal = money.Format(draft.Totals.Subtotal)
	tx.Amount.Details.Shipping = money.Format(draft.Totals.Shipping)
	tx.Amount.Details.Tax = money.Format(draft.Totals.Tax)

	var req walletPaymentRequest
	req.Intent = "sale"
	req.Payer.PaymentMethod = "wallet"
	req.RedirectURLs.ReturnURL = draft.SuccessURL
	req.RedirectURLs.CancelURL = draft.CancelURL
	req.Transactions = []walletTransaction{tx}

	var created walletPayment
	if err := g.api.do(ctx, http.MethodPost, "/v1/payments/payment", req, &created); err != nil {
		return nil, err
	}

	for _, link := range created.Links {
		if link.Method == "REDIRECT" || link.Rel == "approval_url" {
			g.logger.Info("Wallet payment created", zap.String("payment_id", created.ID))
			return &Redirect{URL: link.Href, Reference: created.ID}, nil
		}
	}
	return nil, fmt.Errorf("%w: wallet payment %s has no approval link", ErrGatewayUnavailable, created.ID)
}

// Authorize executes the approved payment for the returning payer.
func (g *WalletGateway) Authorize(ctx context.Context, draft Draft, cb Callback) (Authorization, error) {
	if cb.PayerID == "" {
		return Authorization{Outcome: Declined, Reason: "missing payer id"}, nil
	}

	body := map[string]string{"payer_id": cb.PayerID}
	path := "/v1/payments/payment/" + url.PathEscape(cb.Reference) + "/execute"

	var executed walletPayment
	if err := g.api.do(ctx, http.MethodPost, path, body, &executed); err != nil {
		return Authorization{}, err
	}
	if executed.State != "approved" {
		return Authorization{Outcome: Declined, Reason: "payment state " + executed.State}, nil
	}

	// Execute has captured the funds, so a differing amount is only reported.
	if len(executed.Transactions) > 0 {
		paid, err := decimal.NewFromString(executed.Transactions[0].Amount.Total)
		if err != nil || !paid.Equal(draft.Totals.Total) {
			g.logger.Error("Executed amount does not match checkout total",
				zap.String("payment_id", executed.ID),
				zap.String("paid", executed.Transactions[0].Amount.Total),
				zap.String("expected", draft.Totals.Total.StringFixed(2)))
		}
	}
	return Authorization{Outcome: Authorized, Reference: executed.ID}, nil
}
