// Package errors aggregates runtime errors reported by an application,
// keeps them in memory until they are cleared or expire, and drives a
// severity badge and debounced user notifications from them.
//
// # Overview
//
// A single Service is created at process start and shared by every
// collaborator:
//   - Report stores a record and refreshes the badge immediately
//   - The record is pushed to listening presentation surfaces through a Relay
//   - A user notification is shown once a burst of reports settles
//   - Records older than the retention window are swept on a schedule
//
// # Quick Start
//
//	svc := errors.NewService(errors.Config{
//	    Indicator: ind,
//	    Notifier:  notifier,
//	    Relay:     relay,
//	})
//	svc.Start()
//	defer svc.Stop()
//
//	svc.Report(err, errors.LevelWarning, "checkout")
//
// # Badge
//
// The badge text is the number of active records, empty when there are none.
// The color follows the highest active level:
//   - error: red (#FF0000)
//   - warning: orange (#FFA500)
//   - info: blue (#0000FF)
//
// # Notifications
//
// Reports arriving less than the debounce window apart (one second by
// default) produce a single notification for the last report of the burst.
// Delivery is best effort; failures are logged and never reach the reporter.
package errors
