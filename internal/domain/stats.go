package domain

// BookingStats counts bookings per workflow status.
type BookingStats struct {
	Total    int64
	ByStatus map[BookingStatus]int64
}

// CurrencyTotal is revenue in one currency.
type CurrencyTotal struct {
	Currency string
	Amount   float64
}

// RevenueStats summarises paid payments.
type RevenueStats struct {
	Payments   int64
	ByCurrency []CurrencyTotal
}

// ServiceDemand counts bookings for one service.
type ServiceDemand struct {
	ServiceID   string
	ServiceName string
	Bookings    int64
}

// DecoratorEarning is the share of completed, paid bookings attributed to a decorator.
type DecoratorEarning struct {
	DecoratorID    string
	DecoratorName  string
	DecoratorEmail string
	Bookings       int
	Earnings       float64
}

// DecoratorStats is the dashboard summary for a single decorator.
type DecoratorStats struct {
	Completed int
	Active    int
	Earnings  float64
}
