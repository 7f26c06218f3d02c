// Package connectivity exposes whether the device is online and when it comes
// back online.
//
// Two implementations are provided:
//   - Switch: set by hand; used by tests, the scenario harness and --offline
//   - Prober: polls a TCP address; used by the long-running CLI
//
// Both implement Monitor and Notifier. Restore listeners fire once per
// offline->online transition, never for an online->online refresh.
package connectivity
