// Package broker wires the session layer together: header admission,
// credential resolution, topology detection, session construction, caching,
// and OAuth freshening. External API wrappers call Broker.SessionFor and
// issue their REST calls against the returned session's HTTP client.
package broker
