package config

import "time"

const defaultPort = 8080

const defaultOperationTimeout = 3 * time.Second

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "myuser",
	Pass: "mypassword",
	Name: "delivery_db",
}

var defaultDelivery = Delivery{
	MaxGPSAccuracy:     50,
	EscalationSeverity: "high",
}

var defaultOutbox = Outbox{
	Schedule:    "@every 10s",
	BatchSize:   50,
	MaxAttempts: 8,
	BaseBackoff: 5 * time.Second,
	MaxBackoff:  10 * time.Minute,
}

var defaultKafka = Kafka{
	DispatchTopic: "delivery.dispatch",
	EventsTopic:   "delivery.events",
	GroupID:       "service-delivery-worker",
}

var defaultStorage = Storage{
	Backend:       "disk",
	Dir:           "./data/photos",
	PublicBaseURL: "/photos",
	Region:        "us-east-1",
	JPEGQuality:   80,
	MaxUploadSize: 15 << 20,
}

var defaultSMTP = SMTP{
	Port: 587,
	From: "noreply@delivery.local",
}

var defaultRateLimit = RateLimit{
	Enabled:    true,
	Rate:       5,
	Burst:      20,
	TTL:        10 * time.Minute,
	MaxBuckets: 10000,
}

// DefaultPort returns the default port.
func DefaultPort() int {
	return defaultPort
}

// DefaultOperationTimeout returns the default per-operation timeout.
func DefaultOperationTimeout() time.Duration {
	return defaultOperationTimeout
}

// DefaultDB returns the default database settings.
func DefaultDB() DB {
	return defaultDB
}

// DefaultDelivery returns the default delivery rules.
func DefaultDelivery() Delivery {
	return defaultDelivery
}

// DefaultOutbox returns the default outbox settings.
func DefaultOutbox() Outbox {
	return defaultOutbox
}

// DefaultKafka returns the default kafka settings; no brokers means disabled.
func DefaultKafka() Kafka {
	return defaultKafka
}

// DefaultStorage returns the default storage settings.
func DefaultStorage() Storage {
	return defaultStorage
}

// DefaultSMTP returns the default mail settings.
func DefaultSMTP() SMTP {
	return defaultSMTP
}

// DefaultRateLimit returns the default rate limit settings.
func DefaultRateLimit() RateLimit {
	return defaultRateLimit
}
