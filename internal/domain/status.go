package domain

type OrderStatus string

const (
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPaid:      {OrderStatusShipped: true},
	OrderStatusShipped:   {OrderStatusCompleted: true},
	OrderStatusCompleted: {},
}

func (s OrderStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}
