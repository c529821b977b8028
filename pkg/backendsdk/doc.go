// Package backendsdk is the Go client for the hosted backend that owns
// persistence, authentication and realtime change notification for the
// Entrada ticketing platform.
//
// The backend exposes three surfaces, all consumed here as black boxes:
//
//   - an auth API (sign-up, password sign-in, sign-out, user updates,
//     refresh-token session resumption),
//   - a REST query API over named tables (events, venues, sections, seats,
//     orders, tickets, users, admin_users) with row-level security applied
//     to the caller's access token,
//   - a websocket change feed delivering INSERT/UPDATE/DELETE payloads per
//     table, at-least-once and unordered across tables.
//
// An Auth value holds at most one authenticated session and mirrors the
// backend's client libraries by emitting local auth state change events
// (signed in, signed out, token refreshed, user updated) to subscribed
// listeners. Listeners receive events in emission order.
package backendsdk
