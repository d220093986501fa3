// Package domain defines the value types shared by the SendGrid sink, the
// checkpoint store and the runner.
//
// Types in this package are pure value objects with no behavior beyond
// small pure helpers. They are the shared language between the sink,
// the state backends and the message reader.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON tags are allowed (they're metadata, not behavior)
package domain
