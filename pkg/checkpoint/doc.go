// Package checkpoint persists a run's seen-target set and counters so a
// later run can resume without repeating actions. Files are written
// atomically under the user data directory ($XDG_DATA_HOME/actionpacer on
// Linux).
package checkpoint
