// Package messaging provides a broker-agnostic API for publishing and
// consuming messages.
//
// Business code depends on the Messaging interface only; the driver (Kafka,
// NATS, NSQ or the in-process memory broker) is picked from configuration.
package messaging
