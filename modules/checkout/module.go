// Package checkout is a minimal cart made of fees that is paid through Stripe Checkout.
package checkout

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/TheLab-ms/formcheckout/engine"
	"github.com/TheLab-ms/formcheckout/engine/db"
	"github.com/TheLab-ms/formcheckout/internal/templates"
	"github.com/TheLab-ms/formcheckout/modules/session"
	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	stripesession "github.com/stripe/stripe-go/v78/checkout/session"
)

// PageName is the name the checkout page is rendered under.
const PageName = "checkout"

//go:embed templates/*.html
var templateFS embed.FS

var views = templates.MustParseFS(templateFS, "templates/*.html")

type Module struct {
	Fees *Fees

	lifecycle   *engine.Lifecycle
	self        *url.URL
	eventLogger *engine.EventLogger
	currency    string
	stripe      *stripesession.Client
}

// New creates the checkout module. Purchases are disabled when stripeKey is empty.
func New(d *sql.DB, lc *engine.Lifecycle, self *url.URL, eventLogger *engine.EventLogger, stripeKey, currency string) *Module {
	db.MustMigrate(d, feesMigration)
	if currency == "" {
		currency = "usd"
	}

	m := &Module{
		Fees:        &Fees{db: d},
		lifecycle:   lc,
		self:        self,
		eventLogger: eventLogger,
		currency:    strings.ToLower(currency),
	}
	if stripeKey != "" {
		m.stripe = &stripesession.Client{B: stripe.GetBackend(stripe.APIBackend), Key: stripeKey}
	}
	return m
}

func (m *Module) AttachRoutes(router *engine.Router) {
	router.Handle("GET", "/checkout", router.WithSession(m.renderCheckout))
	router.Handle("POST", "/checkout/purchase", router.WithSession(m.handlePurchase))
	router.Handle("GET", "/checkout/complete", router.WithSession(m.renderComplete))
}

// URL returns the path of the checkout page.
// It is relative so the browser stays on the host that holds its session cookie.
func (m *Module) URL() string { return "/checkout" }

// IsCheckout reports whether page is the checkout page.
func (m *Module) IsCheckout(page *engine.Page) bool { return page.Is(PageName) }

type cartView struct {
	Fees     []Fee
	Total    decimal.Decimal
	Currency string
	Enabled  bool
}

func (m *Module) renderCheckout(r *http.Request, ps httprouter.Params) engine.Response {
	view := &cartView{Currency: strings.ToUpper(m.currency), Enabled: m.stripe != nil}

	// Hooks run before the cart is loaded so fees they add are listed
	return m.lifecycle.Render(r, PageName, "Checkout", templates.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if sess := session.FromContext(ctx); sess != nil {
			fees, err := m.Fees.List(ctx, sess.ID)
			if err != nil {
				return err
			}
			view.Fees = fees
			view.Total = Total(fees)
		}
		return views.ExecuteTemplate(w, "cart.html", view)
	}))
}

func (m *Module) handlePurchase(r *http.Request, ps httprouter.Params) engine.Response {
	if m.stripe == nil {
		return engine.ClientErrorf(http.StatusServiceUnavailable, "Payments are not configured")
	}
	sess := session.FromContext(r.Context())
	if sess == nil {
		return engine.ClientErrorf(http.StatusBadRequest, "Your cart is empty")
	}

	fees, err := m.Fees.List(r.Context(), sess.ID)
	if err != nil {
		return engine.Error(err)
	}
	if len(fees) == 0 {
		return engine.ClientErrorf(http.StatusBadRequest, "Your cart is empty")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(m.self.JoinPath("checkout", "complete").String() + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(m.self.JoinPath("checkout").String()),
		ClientReferenceID: stripe.String(sess.ID),
	}
	params.Context = r.Context()
	for _, fee := range fees {
		if !fee.Amount.IsPositive() {
			return engine.ClientErrorf(http.StatusBadRequest, "Fee %q cannot be paid online", fee.Label)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(m.currency),
				UnitAmount: stripe.Int64(minorUnits(fee.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(feeName(fee)),
				},
			},
		})
		params.AddMetadata("fee:"+fee.ID, fee.Amount.StringFixed(2))
	}
	if email := strings.TrimSpace(r.PostFormValue("edd_email")); email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	s, err := m.stripe.New(params)
	if err != nil {
		m.eventLogger.LogEvent(r.Context(), "stripe", "APIError", sess.ID, false, "checkout.session.New: "+err.Error())
		return engine.Errorf("creating stripe checkout session: %s", err)
	}

	total := Total(fees).StringFixed(2)
	m.eventLogger.LogEvent(r.Context(), "stripe", "CheckoutCreated", s.ID, true, fmt.Sprintf("session=%s total=%s", sess.ID, total))
	slog.Info("created stripe checkout session", "sessionID", sess.ID, "checkoutSessionID", s.ID, "total", total)
	return engine.Redirect(s.URL, http.StatusSeeOther)
}

func (m *Module) renderComplete(r *http.Request, ps httprouter.Params) engine.Response {
	if sess := session.FromContext(r.Context()); sess != nil {
		if err := m.Fees.Clear(r.Context(), sess.ID); err != nil {
			return engine.Error(err)
		}
	}

	ref := r.URL.Query().Get("session_id")
	if ref != "" {
		m.eventLogger.LogEvent(r.Context(), "stripe", "CheckoutCompleted", ref, true, "returned from checkout")
	}
	return m.lifecycle.Render(r, "checkout-complete", "Thank you", templates.Execute(views, "complete.html", ref))
}

func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func feeName(fee Fee) string {
	if fee.Label != "" {
		return fee.Label
	}
	return fee.ID
}
