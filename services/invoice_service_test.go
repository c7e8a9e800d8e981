package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"backend_crm/models"
	"backend_crm/testutils"
)

func setupInvoiceTest(t *testing.T) (*gorm.DB, *InvoiceService, *models.User) {
	db := testutils.SetupTestDB(t)
	actor := testutils.CreateTestUser(t, db, "manager", models.RoleManager)
	return db, NewInvoiceService(db), actor
}

func testInvoice(actor *models.User, amount string) *models.Invoice {
	return &models.Invoice{
		Amount:      decimal.RequireFromString(amount),
		AmountPaid:  decimal.Zero,
		Status:      models.InvoiceStatusSent,
		IssueDate:   time.Now(),
		DueDate:     time.Now().AddDate(0, 0, 14),
		CreatedByID: actor.ID,
	}
}

func TestGenerateInvoiceNumber(t *testing.T) {
	db, is, actor := setupInvoiceTest(t)

	now := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Первый счет месяца получает суффикс 0001", func(t *testing.T) {
		number, err := is.GenerateInvoiceNumber(now)
		require.NoError(t, err)
		assert.Equal(t, "INV-202609-0001", number)
	})

	t.Run("Суффикс - максимум месяца плюс один", func(t *testing.T) {
		for _, n := range []string{"INV-202609-0003", "INV-202609-0007"} {
			invoice := testInvoice(actor, "100.00")
			invoice.Number = n
			require.NoError(t, db.Create(invoice).Error)
		}

		number, err := is.GenerateInvoiceNumber(now)
		require.NoError(t, err)
		assert.Equal(t, "INV-202609-0008", number)
	})

	t.Run("Новый месяц начинает нумерацию заново", func(t *testing.T) {
		october := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)
		number, err := is.GenerateInvoiceNumber(october)
		require.NoError(t, err)
		assert.Equal(t, "INV-202610-0001", number)
	})
}

func TestCreateInvoice_AssignsSequentialNumbers(t *testing.T) {
	db, is, actor := setupInvoiceTest(t)

	prefix := fmt.Sprintf("INV-%04d%02d-", time.Now().Year(), int(time.Now().Month()))

	first := testInvoice(actor, "500.00")
	require.NoError(t, is.CreateInvoice(first))
	assert.Equal(t, prefix+"0001", first.Number)

	second := testInvoice(actor, "700.00")
	require.NoError(t, is.CreateInvoice(second))
	assert.Equal(t, prefix+"0002", second.Number)

	var count int64
	db.Model(&models.Invoice{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestRecordPayment(t *testing.T) {
	t.Run("Частичная оплата меняет статус на partially_paid", func(t *testing.T) {
		db, is, actor := setupInvoiceTest(t)
		invoice := testInvoice(actor, "1000.00")
		require.NoError(t, is.CreateInvoice(invoice))

		require.NoError(t, is.RecordPayment(invoice, decimal.RequireFromString("400.00")))

		var stored models.Invoice
		require.NoError(t, db.First(&stored, invoice.ID).Error)
		assert.Equal(t, models.InvoiceStatusPartiallyPaid, stored.Status)
		assert.True(t, stored.AmountPaid.Equal(decimal.RequireFromString("400.00")))
		assert.Nil(t, stored.PaidAt)
	})

	t.Run("Полная оплата устанавливает paid и paid_at", func(t *testing.T) {
		db, is, actor := setupInvoiceTest(t)
		invoice := testInvoice(actor, "1000.00")
		require.NoError(t, is.CreateInvoice(invoice))

		require.NoError(t, is.RecordPayment(invoice, decimal.RequireFromString("600.00")))
		require.NoError(t, db.First(invoice, invoice.ID).Error)
		require.NoError(t, is.RecordPayment(invoice, decimal.RequireFromString("400.00")))

		var stored models.Invoice
		require.NoError(t, db.First(&stored, invoice.ID).Error)
		assert.Equal(t, models.InvoiceStatusPaid, stored.Status)
		assert.NotNil(t, stored.PaidAt)
		assert.True(t, stored.IsFullyPaid())
	})

	t.Run("Платеж сверх суммы счета отклоняется", func(t *testing.T) {
		_, is, actor := setupInvoiceTest(t)
		invoice := testInvoice(actor, "100.00")
		require.NoError(t, is.CreateInvoice(invoice))

		err := is.RecordPayment(invoice, decimal.RequireFromString("100.01"))
		assert.ErrorIs(t, err, ErrPaymentExceedsAmount)
	})

	t.Run("Оплаченный и отмененный счета не принимают платежи", func(t *testing.T) {
		_, is, actor := setupInvoiceTest(t)

		paid := testInvoice(actor, "100.00")
		paid.Status = models.InvoiceStatusPaid
		err := is.RecordPayment(paid, decimal.RequireFromString("10.00"))
		assert.ErrorIs(t, err, ErrInvoiceNotPayable)

		cancelled := testInvoice(actor, "100.00")
		cancelled.Status = models.InvoiceStatusCancelled
		err = is.RecordPayment(cancelled, decimal.RequireFromString("10.00"))
		assert.ErrorIs(t, err, ErrInvoiceNotPayable)
	})

	t.Run("Неположительный платеж отклоняется", func(t *testing.T) {
		_, is, actor := setupInvoiceTest(t)
		invoice := testInvoice(actor, "100.00")
		require.NoError(t, is.CreateInvoice(invoice))

		assert.Error(t, is.RecordPayment(invoice, decimal.Zero))
		assert.Error(t, is.RecordPayment(invoice, decimal.RequireFromString("-5.00")))
	})
}

func TestMarkOverdueInvoices(t *testing.T) {
	db, is, actor := setupInvoiceTest(t)

	overdue := testInvoice(actor, "100.00")
	overdue.DueDate = time.Now().AddDate(0, 0, -1)
	require.NoError(t, is.CreateInvoice(overdue))

	fresh := testInvoice(actor, "200.00")
	require.NoError(t, is.CreateInvoice(fresh))

	paid := testInvoice(actor, "300.00")
	paid.DueDate = time.Now().AddDate(0, 0, -5)
	require.NoError(t, is.CreateInvoice(paid))
	require.NoError(t, db.Model(paid).Update("status", models.InvoiceStatusPaid).Error)

	count, err := is.MarkOverdueInvoices()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	var stored models.Invoice
	require.NoError(t, db.First(&stored, overdue.ID).Error)
	assert.Equal(t, models.InvoiceStatusOverdue, stored.Status)

	// Оплаченный счет не трогаем даже с прошедшим сроком
	var storedPaid models.Invoice
	require.NoError(t, db.First(&storedPaid, paid.ID).Error)
	assert.Equal(t, models.InvoiceStatusPaid, storedPaid.Status)
}
