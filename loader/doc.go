// Package loader reads plugin manifests, instantiates plugins through a
// factory registry, drives their lifecycle from dormant to active (or
// haunting, or banished), and installs the fan-out routing that connects
// every loaded plugin to the hub.
package loader
