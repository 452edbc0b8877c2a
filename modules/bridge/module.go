// Package bridge hands priced form submissions over to the checkout.
//
// A qualifying submission leaves its total, fee label and billing details in the visitor's
// session. The next checkout render turns the total into a fee and the footer prefills the
// billing form. The session acts as a mailbox: the fee slots are consumed exactly once.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/TheLab-ms/formcheckout/engine"
	"github.com/TheLab-ms/formcheckout/engine/settings"
	"github.com/TheLab-ms/formcheckout/modules/checkout"
	"github.com/TheLab-ms/formcheckout/modules/forms"
	"github.com/TheLab-ms/formcheckout/modules/session"
	"github.com/shopspring/decimal"
)

// Session slots used to pass a submission to the checkout.
const (
	KeyTotal     = "ninja_forms_total"
	KeyFeeLabel  = "ninja_forms_fee_label"
	KeyFirstName = "ninja_forms_first_name"
	KeyEmail     = "ninja_forms_email_address"
)

// Form settings registered by this module.
const (
	SettingSendToCheckout = "ninja_forms_send_to_edd"
	SettingFeeLabel       = "ninja_forms_edd_fee_label"
)

// FeeID identifies the fee added for a captured form.
const FeeID = "ninja_forms_edd_fee"

// Mailbox is the per-visitor storage a submission is passed through.
type Mailbox interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Consume(ctx context.Context, keys ...string) (map[string]string, error)
}

// FeeRegistrar adds fees to a visitor's cart.
type FeeRegistrar interface {
	Add(ctx context.Context, sessionID string, fee checkout.Fee) error
}

// Checkout locates the checkout page.
type Checkout interface {
	URL() string
	IsCheckout(page *engine.Page) bool
}

type Module struct {
	forms       *forms.Module
	fees        FeeRegistrar
	checkout    Checkout
	eventLogger *engine.EventLogger
}

func New(f *forms.Module, fees FeeRegistrar, co Checkout, eventLogger *engine.EventLogger) *Module {
	return &Module{forms: f, fees: fees, checkout: co, eventLogger: eventLogger}
}

func (m *Module) AttachHooks(lc *engine.Lifecycle) {
	m.forms.OnSubmission.Add(engine.DefaultPriority, m.handleSubmission)
	lc.TemplateRedirect.Add(engine.DefaultPriority, m.addFee)
	lc.Footer.Add(engine.DefaultPriority, m.prefillCheckoutFields)
	lc.AdminInit.Add(100, m.registerFormSettings)
}

// handleSubmission captures forms that are configured to be sent to the checkout.
// Synchronous forms are then redirected to the checkout page and the submission halts.
func (m *Module) handleSubmission(ctx context.Context, sub *forms.Submission) error {
	if !settings.Truthy(sub.Setting(SettingSendToCheckout)) {
		return nil
	}

	if sess := session.FromContext(ctx); sess != nil {
		if err := m.captureForm(ctx, sess, sub); err != nil {
			return err
		}
	} else {
		slog.Warn("submission has no visitor session - nothing to capture", "formID", sub.FormID)
	}

	if sub.Ajax {
		sub.RedirectURL = m.checkout.URL()
		return nil
	}
	sub.Response = engine.Redirect(m.checkout.URL(), http.StatusSeeOther)
	return engine.ErrHalt
}

// captureForm writes the submission's total, fee label and billing details into the mailbox.
// Zero totals are not captured.
func (m *Module) captureForm(ctx context.Context, mb Mailbox, sub *forms.Submission) error {
	total := resolveTotal(sub.Total)
	if isZero(total) {
		slog.Info("skipping form capture for zero total", "formID", sub.FormID, "submissionID", sub.ID)
		return nil
	}

	label := sub.Setting(SettingFeeLabel)
	if label == "" {
		label = sub.FormTitle
	}

	for _, slot := range []struct{ key, value string }{
		{KeyTotal, total},
		{KeyFeeLabel, label},
		{KeyFirstName, sub.UserInfo["first_name"]},
		{KeyEmail, sub.UserInfo["email"]},
	} {
		if slot.value == "" {
			continue // existing values are kept
		}
		if err := mb.Set(ctx, slot.key, slot.value); err != nil {
			return fmt.Errorf("capturing %s: %w", slot.key, err)
		}
	}

	m.eventLogger.LogEvent(ctx, "forms", "FormCaptured", fmt.Sprint(sub.ID), true, fmt.Sprintf("form=%d total=%s", sub.FormID, total))
	slog.Info("captured form for checkout", "formID", sub.FormID, "submissionID", sub.ID, "total", total)
	return nil
}

// resolveTotal picks the purchase total out of a calculated form total.
// Breakdowns use their "total" entry, scalars are used as-is and default to 0.00.
func resolveTotal(total any) string {
	switch t := total.(type) {
	case map[string]any:
		v, ok := t["total"]
		if !ok || v == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(v))
	case string:
		if t == "" {
			return "0.00"
		}
		return t
	case nil:
		return "0.00"
	default:
		return fmt.Sprint(t)
	}
}

// isZero treats empty and non-numeric totals as zero.
func isZero(total string) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(total))
	return err != nil || d.IsZero()
}

// addFee turns a captured total into a checkout fee. The mailbox slots are cleared on every checkout render.
func (m *Module) addFee(ctx context.Context, page *engine.Page) error {
	if !m.checkout.IsCheckout(page) {
		return nil
	}
	sess := session.FromContext(ctx)
	if sess == nil {
		return nil
	}

	slots, err := sess.Consume(ctx, KeyTotal, KeyFeeLabel)
	if err != nil {
		return err
	}
	amount := slots[KeyTotal]
	if amount == "" {
		return nil
	}

	fee := checkout.Fee{ID: FeeID, Label: slots[KeyFeeLabel], Type: "item"}
	fee.Amount, err = decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		slog.Warn("dropping captured total that isn't a number", "session", sess.ID, "total", amount)
		return nil
	}

	if err := m.fees.Add(ctx, sess.ID, fee); err != nil {
		m.eventLogger.LogEvent(ctx, "checkout", "FeeAdded", sess.ID, false, err.Error())
		return err
	}
	m.eventLogger.LogEvent(ctx, "checkout", "FeeAdded", sess.ID, true, fmt.Sprintf("amount=%s label=%q", amount, fee.Label))
	return nil
}

// prefillCheckoutFields emits a script that copies the captured billing details into the checkout form.
func (m *Module) prefillCheckoutFields(ctx context.Context, f *engine.Footer) error {
	sess := session.FromContext(ctx)
	if sess == nil {
		return nil
	}
	return writePrefillScript(ctx, sess, f)
}

func writePrefillScript(ctx context.Context, mb Mailbox, f *engine.Footer) error {
	first, err := mb.Get(ctx, KeyFirstName)
	if err != nil {
		return err
	}
	email, err := mb.Get(ctx, KeyEmail)
	if err != nil {
		return err
	}
	if first == "" && email == "" {
		return nil
	}
	return prefillScript.Execute(f, &prefillData{FirstName: first, Email: email})
}

// registerFormSettings adds the checkout options to the form settings panel.
func (m *Module) registerFormSettings(ctx context.Context, reg *settings.Registry) error {
	if reg == nil {
		return nil
	}
	return reg.RegisterTabMetaboxOptions(settings.Metabox{
		Page: forms.SettingsPage,
		Tab:  forms.SettingsTab,
		Slug: "basic_settings",
		Settings: []settings.Field{
			{
				Name:     SettingSendToCheckout,
				Type:     settings.FieldTypeCheckbox,
				Label:    "Send To Easy Digital Downloads",
				Desc:     "Send form to EDD checkout?",
				HelpText: "This will send the form and it's total to EDD checkout",
			},
			{
				Name:  SettingFeeLabel,
				Type:  settings.FieldTypeText,
				Label: "Fee Label",
				Desc:  "Enter the fee label that will be shown at checkout. If nothing is entered it will show the form's title as the fee",
			},
		},
	})
}
