// Package prometheus renders tenantauth counters in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [tenantauth.Engine] and exposes an
// [http.Handler]. Counter names are prefixed tenantauth_*_total.
//
// The package never registers with a global Prometheus registry; callers
// mount the Handler themselves.
package prometheus
