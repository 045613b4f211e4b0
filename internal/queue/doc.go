// Package queue tracks work item counts per processing stage.
//
// A Tracker maintains pending, processing and failed counters for the
// inbound, outbound, ticket and lead queues. Counters never go negative;
// an underflow is clamped to zero and logged as an anomaly. The Redis
// implementation shares counts across replicas, the in-memory one backs
// single-node deployments and tests.
package queue
