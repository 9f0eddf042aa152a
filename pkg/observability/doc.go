/*
Package observability exports store activity as Prometheus metrics.

Observe attaches a listener to one store; ObserveStorage does the same for
every store of a model.Storage. Both count committed transitions per action
type and record how long actions took.
*/
package observability
