package model

// OrderTicket is the admission result handed from the gate to the
// consumer. It carries only identifiers; the consumer rebuilds the
// full order row when it writes.
type OrderTicket struct {
	OrderID   int64 `json:"order_id"`
	UserID    int64 `json:"user_id"`
	VoucherID int64 `json:"voucher_id"`
}

// ToOrder converts a ticket to an order row
func (t *OrderTicket) ToOrder() *VoucherOrder {
	return &VoucherOrder{
		ID:        t.OrderID,
		UserID:    t.UserID,
		VoucherID: t.VoucherID,
		Status:    OrderStatusUnpaid,
	}
}
