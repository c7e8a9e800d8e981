package services

import "errors"

// Доменные ошибки. Обрабатываются на границе запроса и превращаются
// в сообщения пользователю; повторных попыток не делается.
var (
	// ErrLeadAlreadyConverted лид уже сконвертирован в клиента
	ErrLeadAlreadyConverted = errors.New("лид уже сконвертирован в клиента")

	// ErrForbidden доступ запрещен политикой авторизации
	ErrForbidden = errors.New("доступ запрещен")

	// ErrDuplicateInvoiceNumber конфликт номера счета при конкурентном создании
	ErrDuplicateInvoiceNumber = errors.New("номер счета уже занят")

	// ErrPaymentExceedsAmount платеж превышает сумму счета
	ErrPaymentExceedsAmount = errors.New("сумма платежей превышает сумму счета")

	// ErrInvoiceNotPayable счет нельзя оплатить в текущем статусе
	ErrInvoiceNotPayable = errors.New("счет в текущем статусе не принимает платежи")

	// ErrClientEmailMissing у клиента не указан email для отправки счета
	ErrClientEmailMissing = errors.New("у клиента не указан email")
)
