package domain

import "time"

type NotificationKind string

const NotificationError NotificationKind = "error"

const (
	MsgOutOfStock   = "out of stock quantity requested"
	MsgAddFailed    = "error adding product"
	MsgRemoveFailed = "error removing product"
	MsgUpdateFailed = "error updating product amount"
)

type Notification struct {
	ID        string           `json:"id"`
	Message   string           `json:"message"`
	Kind      NotificationKind `json:"kind"`
	CreatedAt time.Time        `json:"created_at"`
}
