package service

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// folioWithRoomCharge opens a folio and posts one ROOM charge of 100.
func folioWithRoomCharge(t *testing.T, env *testEnv) *model.Folio {
	t.Helper()
	guest := seedGuest(t, env.db)
	folio := openTestFolio(t, env, guest.ID)
	_, err := env.folioSvc.PostCharge(context.Background(), folio.ID.String(), PostChargeRequest{
		Description: "Room night",
		Department:  model.DeptRoom,
		UnitAmount:  "100",
		Quantity:    1,
	}, uuid.NewString())
	require.NoError(t, err)
	return folio
}

func advanceInvoice(t *testing.T, env *testEnv, id string, statuses ...string) *model.Invoice {
	t.Helper()
	var invoice *model.Invoice
	var err error
	for _, status := range statuses {
		invoice, err = env.invoiceSvc.Transition(context.Background(), id, TransitionInvoiceRequest{Status: status}, uuid.NewString())
		require.NoError(t, err)
	}
	return invoice
}

func TestCreateFromFolio_ComputesTotals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedVAT(t, env.db, "10")
	folio := folioWithRoomCharge(t, env)

	invoice, err := env.invoiceSvc.CreateFromFolio(ctx, CreateInvoiceRequest{
		FolioID:     folio.ID.String(),
		InvoiceType: model.InvoiceTypeGuestFolio,
	}, uuid.NewString())
	require.NoError(t, err)

	assert.Equal(t, model.InvoiceStatusDraft, invoice.Status)
	assert.True(t, strings.HasPrefix(invoice.InvoiceNo, "INV-"))
	assert.Equal(t, "Ana Petrova", invoice.GuestName)
	assert.True(t, invoice.Subtotal.Equal(dec("100")))
	assert.True(t, invoice.TotalTax.Equal(dec("10")))
	assert.True(t, invoice.GrandTotal.Equal(dec("110")))
	assert.True(t, invoice.AmountDue.Equal(dec("110")))

	trail, err := env.invoiceSvc.GetAuditTrail(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, model.InvoiceActionCreated, trail[0].Action)
}

func TestCreateFromFolio_FiltersChargesByType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	folio := folioWithRoomCharge(t, env)
	actor := uuid.NewString()

	_, err := env.folioSvc.PostCharge(ctx, folio.ID.String(), PostChargeRequest{
		Description: "Dinner",
		Department:  model.DeptFNB,
		UnitAmount:  "50",
		Quantity:    1,
	}, actor)
	require.NoError(t, err)

	roomOnly, err := env.invoiceSvc.CreateFromFolio(ctx, CreateInvoiceRequest{
		FolioID:     folio.ID.String(),
		InvoiceType: model.InvoiceTypeRoomOnly,
	}, actor)
	require.NoError(t, err)
	assert.True(t, roomOnly.Subtotal.Equal(dec("100")))

	_, err = env.invoiceSvc.CreateFromFolio(ctx, CreateInvoiceRequest{
		FolioID:     folio.ID.String(),
		InvoiceType: model.InvoiceTypeExtrasOnly,
	}, actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no charges matching")
}

func TestCreateFromFolio_NumbersSequentially(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	folio := folioWithRoomCharge(t, env)
	actor := uuid.NewString()

	first, err := env.invoiceSvc.CreateFromFolio(ctx, CreateInvoiceRequest{
		FolioID:     folio.ID.String(),
		InvoiceType: model.InvoiceTypeGuestFolio,
	}, actor)
	require.NoError(t, err)

	second, err := env.invoiceSvc.CreateFromFolio(ctx, CreateInvoiceRequest{
		FolioID:     folio.ID.String(),
		InvoiceType: model.InvoiceTypeGuestFolio,
	}, actor)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(first.InvoiceNo, "00001"))
	assert.True(t, strings.HasSuffix(second.InvoiceNo, "00002"))
}

func TestCreateProforma_WithDiscount(t *testing.T) {
	env := newTestEnv(t)
	seedVAT(t, env.db, "10")

	invoice, err := env.invoiceSvc.CreateProforma(context.Background(), CreateProformaRequest{
		GuestName: "Walk-in quote",
		Lines: []InvoiceLineInput{
			{Description: "Conference room", Department: model.DeptMisc, Quantity: 1, UnitPrice: "200"},
		},
		Discounts: []InvoiceDiscountInput{
			{Description: "Corporate rate", Type: model.DiscountTypePercentage, Value: "10"},
		},
	}, uuid.NewString())
	require.NoError(t, err)

	assert.Equal(t, model.InvoiceTypeProforma, invoice.InvoiceType)
	assert.True(t, strings.HasPrefix(invoice.InvoiceNo, "PFM-"))
	assert.True(t, invoice.Subtotal.Equal(dec("200")))
	assert.True(t, invoice.TotalDiscount.Equal(dec("20")))
	assert.True(t, invoice.TotalTax.Equal(dec("20")))
	assert.True(t, invoice.GrandTotal.Equal(dec("200")))
}

func TestTransition_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	folio := folioWithRoomCharge(t, env)

	invoice, err := env.invoiceSvc.CreateFromFolio(ctx, CreateInvoiceRequest{
		FolioID:     folio.ID.String(),
		InvoiceType: model.InvoiceTypeGuestFolio,
	}, uuid.NewString())
	require.NoError(t, err)

	// Skipping INTERIM is not allowed.
	_, err = env.invoiceSvc.Transition(ctx, invoice.ID.String(), TransitionInvoiceRequest{Status: model.InvoiceStatusFinal}, uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transition")

	posted := advanceInvoice(t, env, invoice.ID.String(),
		model.InvoiceStatusInterim, model.InvoiceStatusFinal, model.InvoiceStatusPosted)
	assert.Equal(t, model.InvoiceStatusPosted, posted.Status)
	assert.NotNil(t, posted.PostedAt)
	assert.NotNil(t, posted.PostedBy)

	// A posted invoice is terminal for direct transitions.
	_, err = env.invoiceSvc.Transition(ctx, invoice.ID.String(), TransitionInvoiceRequest{Status: model.InvoiceStatusCancelled}, uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transition")
}

func TestTransition_CancelDraft(t *testing.T) {
	env := newTestEnv(t)
	folio := folioWithRoomCharge(t, env)

	invoice, err := env.invoiceSvc.CreateFromFolio(context.Background(), CreateInvoiceRequest{
		FolioID:     folio.ID.String(),
		InvoiceType: model.InvoiceTypeGuestFolio,
	}, uuid.NewString())
	require.NoError(t, err)

	cancelled := advanceInvoice(t, env, invoice.ID.String(), model.InvoiceStatusCancelled)
	assert.Equal(t, model.InvoiceStatusCancelled, cancelled.Status)
}

func TestTransition_ProformaCannotPost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	invoice, err := env.invoiceSvc.CreateProforma(ctx, CreateProformaRequest{
		GuestName: "Quote",
		Lines: []InvoiceLineInput{
			{Description: "Conference room", Department: model.DeptMisc, Quantity: 1, UnitPrice: "200"},
		},
	}, uuid.NewString())
	require.NoError(t, err)

	advanceInvoice(t, env, invoice.ID.String(), model.InvoiceStatusInterim, model.InvoiceStatusFinal)

	_, err = env.invoiceSvc.Transition(ctx, invoice.ID.String(), TransitionInvoiceRequest{Status: model.InvoiceStatusPosted}, uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proforma invoice cannot be posted")
}

func TestUpdateLines_RecomputesTotals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	folio := folioWithRoomCharge(t, env)
	actor := uuid.NewString()

	invoice, err := env.invoiceSvc.CreateFromFolio(ctx, CreateInvoiceRequest{
		FolioID:     folio.ID.String(),
		InvoiceType: model.InvoiceTypeGuestFolio,
	}, actor)
	require.NoError(t, err)

	updated, err := env.invoiceSvc.UpdateLines(ctx, invoice.ID.String(), UpdateInvoiceLinesRequest{
		Lines: []InvoiceLineInput{
			{Description: "Room night", Department: model.DeptRoom, Quantity: 2, UnitPrice: "120"},
		},
	}, actor)
	require.NoError(t, err)
	assert.True(t, updated.Subtotal.Equal(dec("240")))

	advanceInvoice(t, env, invoice.ID.String(),
		model.InvoiceStatusInterim, model.InvoiceStatusFinal, model.InvoiceStatusPosted)

	_, err = env.invoiceSvc.UpdateLines(ctx, invoice.ID.String(), UpdateInvoiceLinesRequest{
		Lines: []InvoiceLineInput{
			{Description: "Room night", Department: model.DeptRoom, Quantity: 1, UnitPrice: "1"},
		},
	}, actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot edit a POSTED invoice")
}

func TestAddPayment_OnlyOnFinalOrPosted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	folio := folioWithRoomCharge(t, env)
	actor := uuid.NewString()

	invoice, err := env.invoiceSvc.CreateFromFolio(ctx, CreateInvoiceRequest{
		FolioID:     folio.ID.String(),
		InvoiceType: model.InvoiceTypeGuestFolio,
	}, actor)
	require.NoError(t, err)

	_, err = env.invoiceSvc.AddPayment(ctx, invoice.ID.String(), AddInvoicePaymentRequest{
		Amount: "100",
		Method: model.PaymentMethodCash,
	}, actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot accept payment on a DRAFT invoice")

	advanceInvoice(t, env, invoice.ID.String(), model.InvoiceStatusInterim, model.InvoiceStatusFinal)

	paid, err := env.invoiceSvc.AddPayment(ctx, invoice.ID.String(), AddInvoicePaymentRequest{
		Amount: "100",
		Method: model.PaymentMethodCash,
	}, actor)
	require.NoError(t, err)
	assert.True(t, paid.TotalPaid.Equal(dec("100")))
	assert.True(t, paid.AmountDue.IsZero())
}

func TestReversePayment_FullRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	folio := folioWithRoomCharge(t, env)
	actor := uuid.NewString()

	invoice, err := env.invoiceSvc.CreateFromFolio(ctx, CreateInvoiceRequest{
		FolioID:     folio.ID.String(),
		InvoiceType: model.InvoiceTypeGuestFolio,
	}, actor)
	require.NoError(t, err)
	advanceInvoice(t, env, invoice.ID.String(),
		model.InvoiceStatusInterim, model.InvoiceStatusFinal, model.InvoiceStatusPosted)

	_, err = env.invoiceSvc.AddPayment(ctx, invoice.ID.String(), AddInvoicePaymentRequest{
		Amount: "100",
		Method: model.PaymentMethodCard,
	}, actor)
	require.NoError(t, err)

	var original model.InvoicePayment
	require.NoError(t, env.db.First(&original, "invoice_id = ?", invoice.ID).Error)

	refunded, err := env.invoiceSvc.ReversePayment(ctx, invoice.ID.String(), original.ID.String(), "guest dispute", actor)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusRefunded, refunded.Status)
	assert.True(t, refunded.TotalPaid.IsZero())
	assert.True(t, refunded.AmountDue.Equal(refunded.GrandTotal))

	// The original row is marked, never deleted; the reversal row negates it.
	var rows []model.InvoicePayment
	require.NoError(t, env.db.Find(&rows, "invoice_id = ?", invoice.ID).Error)
	require.Len(t, rows, 2)

	var reversal model.InvoicePayment
	require.NoError(t, env.db.First(&reversal, "invoice_id = ? AND is_reversal = ?", invoice.ID, true).Error)
	assert.True(t, reversal.Amount.Equal(original.Amount.Neg()))
	require.NotNil(t, reversal.ReversesPaymentID)
	assert.Equal(t, original.ID, *reversal.ReversesPaymentID)

	require.NoError(t, env.db.First(&original, "id = ?", original.ID).Error)
	assert.Equal(t, model.PaymentStatusReversed, original.Status)

	// Neither leg can be reversed again.
	_, err = env.invoiceSvc.ReversePayment(ctx, invoice.ID.String(), original.ID.String(), "again", actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already reversed")

	_, err = env.invoiceSvc.ReversePayment(ctx, invoice.ID.String(), reversal.ID.String(), "loop", actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot reverse a reversal")
}

func TestReversePayment_PartialRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	folio := folioWithRoomCharge(t, env)
	actor := uuid.NewString()

	invoice, err := env.invoiceSvc.CreateFromFolio(ctx, CreateInvoiceRequest{
		FolioID:     folio.ID.String(),
		InvoiceType: model.InvoiceTypeGuestFolio,
	}, actor)
	require.NoError(t, err)
	advanceInvoice(t, env, invoice.ID.String(),
		model.InvoiceStatusInterim, model.InvoiceStatusFinal, model.InvoiceStatusPosted)

	for _, amount := range []string{"60", "40"} {
		_, err = env.invoiceSvc.AddPayment(ctx, invoice.ID.String(), AddInvoicePaymentRequest{
			Amount: amount,
			Method: model.PaymentMethodCash,
		}, actor)
		require.NoError(t, err)
	}

	var rows []model.InvoicePayment
	require.NoError(t, env.db.Find(&rows, "invoice_id = ?", invoice.ID).Error)
	var target model.InvoicePayment
	for _, p := range rows {
		if p.Amount.Equal(dec("40")) {
			target = p
		}
	}
	require.NotEqual(t, uuid.Nil, target.ID)

	refunded, err := env.invoiceSvc.ReversePayment(ctx, invoice.ID.String(), target.ID.String(), "overcharged", actor)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPartiallyRefunded, refunded.Status)
	assert.True(t, refunded.TotalPaid.Equal(dec("60")))
}

func TestIssueNote_CreditNoteNegatesAmounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedVAT(t, env.db, "10")
	folio := folioWithRoomCharge(t, env)
	actor := uuid.NewString()

	invoice, err := env.invoiceSvc.CreateFromFolio(ctx, CreateInvoiceRequest{
		FolioID:     folio.ID.String(),
		InvoiceType: model.InvoiceTypeGuestFolio,
	}, actor)
	require.NoError(t, err)

	_, err = env.invoiceSvc.IssueNote(ctx, invoice.ID.String(), IssueNoteRequest{
		NoteType: model.InvoiceTypeCreditNote,
		Lines: []InvoiceLineInput{
			{Description: "Room night", Department: model.DeptRoom, Quantity: 1, UnitPrice: "100"},
		},
		Reason: "billing error",
	}, actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "posted invoice")

	advanceInvoice(t, env, invoice.ID.String(),
		model.InvoiceStatusInterim, model.InvoiceStatusFinal, model.InvoiceStatusPosted)

	note, err := env.invoiceSvc.IssueNote(ctx, invoice.ID.String(), IssueNoteRequest{
		NoteType: model.InvoiceTypeCreditNote,
		Lines: []InvoiceLineInput{
			{Description: "Room night", Department: model.DeptRoom, Quantity: 1, UnitPrice: "100"},
		},
		Reason: "billing error",
	}, actor)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(note.InvoiceNo, "CRN-"))
	require.NotNil(t, note.OriginalInvoiceID)
	assert.Equal(t, invoice.ID, *note.OriginalInvoiceID)
	assert.True(t, note.GrandTotal.Equal(dec("-110")))
	assert.True(t, note.IsNegative)

	// The original invoice's trail records the note.
	trail, err := env.invoiceSvc.GetAuditTrail(ctx, invoice.ID.String())
	require.NoError(t, err)
	var actions []string
	for _, e := range trail {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, model.InvoiceActionNoteIssued)
}

func TestCreateFromFolio_RejectsStaleDueDate(t *testing.T) {
	env := newTestEnv(t)
	folio := folioWithRoomCharge(t, env)

	_, err := env.invoiceSvc.CreateFromFolio(context.Background(), CreateInvoiceRequest{
		FolioID:     folio.ID.String(),
		InvoiceType: model.InvoiceTypeGuestFolio,
		DueDate:     "2001-01-01",
	}, uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "due_date must not be before the invoice date")
}

func TestTransition_PostBlockedByValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	folio := folioWithRoomCharge(t, env)

	invoice, err := env.invoiceSvc.CreateFromFolio(ctx, CreateInvoiceRequest{
		FolioID:     folio.ID.String(),
		InvoiceType: model.InvoiceTypeGuestFolio,
	}, uuid.NewString())
	require.NoError(t, err)
	advanceInvoice(t, env, invoice.ID.String(), model.InvoiceStatusInterim, model.InvoiceStatusFinal)

	// Corrupt the stored due date directly; the posting gate re-validates
	// the row it is about to post.
	stale := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, env.db.Model(&model.Invoice{}).Where("id = ?", invoice.ID).
		Update("due_date", stale).Error)

	result, err := env.invoiceSvc.Validate(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Problems, "due date is before the invoice date")

	_, err = env.invoiceSvc.Transition(ctx, invoice.ID.String(), TransitionInvoiceRequest{Status: model.InvoiceStatusPosted}, uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "due date is before the invoice date")

	reloaded, err := env.invoiceSvc.GetInvoice(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusFinal, reloaded.Status)
}

func TestCreateProforma_LineScopedDiscount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := uuid.NewString()

	invoice, err := env.invoiceSvc.CreateProforma(ctx, CreateProformaRequest{
		GuestName: "Group quote",
		Lines: []InvoiceLineInput{
			{Description: "Suite", Department: model.DeptRoom, Quantity: 1, UnitPrice: "400"},
			{Description: "Dinner", Department: model.DeptFNB, Quantity: 1, UnitPrice: "100"},
		},
		Discounts: []InvoiceDiscountInput{
			{Description: "Suite promo", Scope: model.DiscountScopeLine, Type: model.DiscountTypePercentage, Value: "50", LineIndex: intPtr(0)},
		},
	}, actor)
	require.NoError(t, err)

	assert.True(t, invoice.Subtotal.Equal(dec("500")))
	assert.True(t, invoice.TotalDiscount.Equal(dec("200")), "expected 50%% of the 400 line, got %s", invoice.TotalDiscount)

	// The persisted discount row carries the resolved line reference and
	// the derived amount.
	require.Len(t, invoice.Discounts, 1)
	require.NotNil(t, invoice.Discounts[0].LineItemID)
	assert.Equal(t, invoice.LineItems[0].ID, *invoice.Discounts[0].LineItemID)
	assert.True(t, invoice.Discounts[0].Amount.Equal(dec("200")))
}

func TestCreateProforma_RejectsUnresolvableLineDiscount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := uuid.NewString()

	lines := []InvoiceLineInput{
		{Description: "Suite", Department: model.DeptRoom, Quantity: 1, UnitPrice: "400"},
	}

	_, err := env.invoiceSvc.CreateProforma(ctx, CreateProformaRequest{
		GuestName: "Group quote",
		Lines:     lines,
		Discounts: []InvoiceDiscountInput{
			{Type: model.DiscountTypePercentage, Value: "50", Scope: model.DiscountScopeLine, LineIndex: intPtr(3)},
		},
	}, actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match any line item")

	_, err = env.invoiceSvc.CreateProforma(ctx, CreateProformaRequest{
		GuestName: "Group quote",
		Lines:     lines,
		Discounts: []InvoiceDiscountInput{
			{Type: model.DiscountTypePercentage, Value: "50", Scope: model.DiscountScopeLine},
		},
	}, actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a line_index")
}

func TestCreateProforma_LogsRuleGaps(t *testing.T) {
	env := newTestEnv(t)

	// VAT covering ROOM only; the FNB line stays untaxed and must be
	// reported.
	def := &model.TaxDefinition{
		Name:      "Room VAT",
		TaxType:   model.TaxTypeVAT,
		Rate:      dec("10"),
		IsActive:  true,
		AppliesTo: "ROOM",
	}
	require.NoError(t, env.db.Create(def).Error)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	_, err := env.invoiceSvc.CreateProforma(context.Background(), CreateProformaRequest{
		GuestName: "Walk-in",
		Lines: []InvoiceLineInput{
			{Description: "Dinner", Department: model.DeptFNB, Quantity: 1, UnitPrice: "50"},
		},
	}, uuid.NewString())
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "no active tax rule covers department FNB")
}

func TestValidate_DetectsTotalsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	folio := folioWithRoomCharge(t, env)

	invoice, err := env.invoiceSvc.CreateFromFolio(ctx, CreateInvoiceRequest{
		FolioID:     folio.ID.String(),
		InvoiceType: model.InvoiceTypeGuestFolio,
	}, uuid.NewString())
	require.NoError(t, err)

	result, err := env.invoiceSvc.Validate(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Problems)

	require.NoError(t, env.db.Model(&model.Invoice{}).Where("id = ?", invoice.ID).
		Update("grand_total", dec("9999")).Error)

	result, err = env.invoiceSvc.Validate(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Problems, "stored totals do not match recomputed totals")
}
