package valueobjects

// QuotaType distinguishes the two provider-side quota counters. Data quotas
// are measured in bytes, SMS quotas in message count.
type QuotaType string

const (
	QuotaTypeData QuotaType = "data"
	QuotaTypeSMS  QuotaType = "sms"
)

func (q QuotaType) String() string {
	return string(q)
}

func (q QuotaType) IsValid() bool {
	return q == QuotaTypeData || q == QuotaTypeSMS
}

// Direction identifies the traffic direction of a usage record.
type Direction string

const (
	DirectionRx Direction = "rx"
	DirectionTx Direction = "tx"
)

func (d Direction) String() string {
	return string(d)
}

func (d Direction) IsValid() bool {
	return d == DirectionRx || d == DirectionTx
}
