package server

// Config is the StartupConfig the CLI bootstrap hands to the orchestrator.
type Config struct {
	Host string
	Port uint16

	// ReplicaOf selects Replica role when non-nil.
	ReplicaOf *ReplicaOf

	// MetricsAddr is the address the metrics/health HTTP surface binds to,
	// used as given (":16379" listens on all interfaces). An empty string
	// disables it entirely.
	MetricsAddr string
}

// ReplicaOf names the primary a replica connects to.
type ReplicaOf struct {
	Host string
	Port uint16
}

// DefaultConfig returns the reference defaults: primary role on the
// loopback interface, port 6379, metrics enabled on :16379.
func DefaultConfig() *Config {
	return &Config{
		Host:        "127.0.0.1",
		Port:        6379,
		MetricsAddr: ":16379",
	}
}
