package domain

import "fmt"

// Situation описывает жизненный цикл заказа.
type Situation string

const (
	// SituationProcess - начальное состояние, заказ можно редактировать.
	SituationProcess Situation = "process"
	// SituationDelivered - товар доставлен.
	SituationDelivered Situation = "delivered"
	// SituationPickedUp - товар забран, без движения склада.
	SituationPickedUp Situation = "picked_up"
	// SituationCanceled - заказ отменён.
	SituationCanceled Situation = "canceled"
)

// Valid проверяет, что статус относится к закрытому перечислению.
func (s Situation) Valid() bool {
	switch s {
	case SituationProcess, SituationDelivered, SituationPickedUp, SituationCanceled:
		return true
	default:
		return false
	}
}

// ParseSituation разбирает статус из запроса.
func ParseSituation(raw string) (Situation, error) {
	s := Situation(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSituation, raw)
	}
	return s, nil
}

// Transition описывает разрешённый переход и его побочные эффекты.
type Transition struct {
	Kind OrderKind
	From Situation
	To   Situation
	// StockReason непустой, если переход возвращает количество каждой позиции на склад.
	StockReason    StockReason
	SetDeliveredAt bool
	SetCanceledAt  bool
}

// MovesStock сообщает, пишет ли переход записи в журнал остатков.
func (t Transition) MovesStock() bool {
	return t.StockReason != ""
}

type transitionKey struct {
	kind OrderKind
	from Situation
	to   Situation
}

// Все конечные состояния терминальны: переходов из них нет.
var transitions = map[transitionKey]Transition{
	{OrderKindSupplier, SituationProcess, SituationDelivered}: {
		StockReason:    StockReasonSupplierDelivery,
		SetDeliveredAt: true,
	},
	{OrderKindSupplier, SituationProcess, SituationPickedUp}: {},
	{OrderKindSupplier, SituationProcess, SituationCanceled}: {
		SetCanceledAt: true,
	},

	{OrderKindCustomer, SituationProcess, SituationDelivered}: {
		SetDeliveredAt: true,
	},
	{OrderKindCustomer, SituationProcess, SituationPickedUp}: {},
	{OrderKindCustomer, SituationProcess, SituationCanceled}: {
		StockReason:   StockReasonCustomerOrderCancel,
		SetCanceledAt: true,
	},
}

// LookupTransition ищет переход в таблице. Неизвестный целевой статус - ошибка
// валидации, отсутствующий в таблице переход - конфликт.
func LookupTransition(kind OrderKind, from, to Situation) (Transition, error) {
	if !to.Valid() {
		return Transition{}, fmt.Errorf("%w: %q", ErrUnknownSituation, to)
	}

	t, ok := transitions[transitionKey{kind: kind, from: from, to: to}]
	if !ok {
		return Transition{}, fmt.Errorf("%w: %s order %s -> %s", ErrTransitionNotAllowed, kind, from, to)
	}
	t.Kind, t.From, t.To = kind, from, to
	return t, nil
}
