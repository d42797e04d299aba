package params

type ObserveDaemonConfig struct {
	ListenerConfig

	// RecentOutcomes is how many dispatch outcomes the status report keeps.
	RecentOutcomes int
}

func DefaultObserveListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:3001",
	}
}

func DefaultObserveDaemonConfig() *ObserveDaemonConfig {
	return &ObserveDaemonConfig{
		ListenerConfig: DefaultObserveListenerConfig(),
		RecentOutcomes: 100,
	}
}
