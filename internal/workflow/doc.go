// Package workflow runs the daemon's background maintenance loops: the
// expired-claim reclaimer, the stale-claim safety sweep, and the overdue
// deadline scan. Loops tick independently and report progress through a
// shared status snapshot.
package workflow
