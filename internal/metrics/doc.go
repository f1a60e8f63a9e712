// Package metrics defines the Prometheus collectors of manhua-downloader.
//
// Collectors are package-level so any component can update them without
// plumbing. Call Register once before serving /metrics.
package metrics
