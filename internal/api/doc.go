// Package api defines the shared contract between the orchestrator core and
// the surfaces that drive it (HTTP server, CLI commands).
//
// It contains three things:
//
//   - the handler interfaces (InstanceManagerHandler, TemplateManagerHandler,
//     CredentialManagerHandler) implemented by adapters in the domain
//     packages,
//   - the typed errors (ConfigError, NotFoundError, ConnectError,
//     CrashError) used across all operations,
//   - a small service locator (RegisterX/GetX) so surfaces depend on this
//     package only, never on the concrete orchestrator.
//
// The locator is populated once during bootstrap in internal/app. Surfaces
// must tolerate a nil handler (not yet registered) and report it as an
// internal error.
package api
