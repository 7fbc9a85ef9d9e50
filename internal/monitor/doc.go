// Package monitor runs the periodic liveness sweep.
//
// Every interval the Scheduler flattens the hierarchy into probe targets,
// probes them, and compares each result with the last status it broadcast
// for that node. Only differences are persisted and published. A node seen
// for the first time is always published once.
//
// At most one sweep runs at a time. A tick that fires while a sweep is in
// progress is skipped rather than queued. Errors from a single probe or a
// single status write never end the loop.
package monitor
