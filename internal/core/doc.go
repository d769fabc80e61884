// Package core provides the verification and reconciliation engine for
// matching tracked public figures to their social-media accounts.
//
// The package is independent of any transport or storage backend. It can be
// driven by web handlers, CLI tools, or tests without modification.
//
// # Architecture
//
//   - Reconciliation: [Build] turns a raw discovery payload into normalized
//     [PersonRecord] values, deduplicating and enriching candidate data.
//   - Verification: [Service.VerifyAccount], [Service.UnverifyAccount],
//     [Service.MarkNoAccount], and [Service.AddManualAccount] implement the
//     three-state verification machine, applied atomically per record
//     through the injected [RecordStore].
//   - Query: [Query] filters and stably sorts record snapshots.
//   - Export: [ExportCSV] serializes verified records; the output doubles
//     as a replayable snapshot via [ReadVerificationSnapshot].
//
// # Error Handling
//
// Failures surface as typed errors ([NotFoundError], [ValidationError],
// [StoreUnavailableError]) for transport-level status mapping, and
// [MapError] turns any error into a user-facing message with a support
// code.
package core
