// Package broadcast holds the building blocks of one broadcast run: the
// queue lock, the subscriber scan, per-subscriber delivery scheduling and
// the batched queue writer. service.BroadcastService sequences them.
package broadcast
