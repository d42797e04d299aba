package params

// ListenerConfig is where a daemon accepts connections.
type ListenerConfig struct {
	// Network is "tcp", "tcp4", "tcp6" or "unix".
	Network string
	// Address is host:port for tcp networks, a socket path for unix.
	// A zero port picks a free one.
	Address string
}

func (c ListenerConfig) String() string {
	return c.Network + "://" + c.Address
}
