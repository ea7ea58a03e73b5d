package model

// Subscriber is a registered browser push channel. TargetNotificationTime
// is the elapsed-working-seconds mark at which the next reminder is due;
// it always sits on a multiple of IntervalSeconds.
type Subscriber struct {
	ID                     int64  `json:"id"`
	Endpoint               string `json:"endpoint"`
	ExpirationTime         *int64 `json:"expirationTime,omitempty"`
	Auth                   string `json:"auth"`
	P256dh                 string `json:"p256dh"`
	IntervalSeconds        int64  `json:"interval"`
	TargetNotificationTime int64  `json:"targetNotificationTime"`
}
