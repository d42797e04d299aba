package conceptual

// SessionID identifies one continuous tracking lifecycle, i.e. a trip.
// The server owns its meaning; we only carry it.
type SessionID string

func (s SessionID) String() string {
	return string(s)
}

func (s SessionID) Empty() bool {
	return s == ""
}

// BookingID identifies a rental booking for one-shot location shares.
type BookingID string

func (b BookingID) String() string {
	return string(b)
}

func (b BookingID) Empty() bool {
	return b == ""
}
