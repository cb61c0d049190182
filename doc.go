// Package authclient implements the client-side authentication flow for CRM
// backend APIs: credential submission, access token persistence, session state,
// cross-instance sign-out propagation, and route guarding.
//
// Session lifecycle:
//   - SessionTokenStore keeps the access token in an instance-scoped scratch
//     directory, so the credential never outlives the running client. Expiry is
//     tracked both on the persisted record and on the raw JWT (parsed without
//     signature verification; the backend is the authority).
//   - SessionManager is the in-memory source of truth per client instance. It
//     hydrates from the token store at startup, exposes the mutators the UI
//     layer drives, and resets itself when another instance broadcasts a
//     sign-out.
//
// Cross-instance signaling:
//   - SignalBus publishes transient sentinel files into a shared state
//     directory and watches it for signals from sibling instances. The
//     publishing instance never observes its own signals, mirroring how
//     same-origin storage events behave between browser tabs.
//
// Operations and guarding:
//   - AuthFlow orchestrates login, logout, token refresh, and current-user
//     fetches against a CRMClient, translating API failures into the rich
//     error taxonomy and emitting ActivityEvents for analytics sinks.
//   - NavigationGuard is the deterministic gate the embedding application's
//     router consults before every transition: unauthenticated users are
//     pushed to the login route, authenticated ones away from it.
package authclient
