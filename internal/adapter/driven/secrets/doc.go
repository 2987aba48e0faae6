// Package secrets provides secrets backends that hold the database credential payload.
//
// Three backends with different deployment tradeoffs:
//   - AWS: Secrets Manager, looked up over the network on every call
//   - Keyring: OS-native credential storage for developer workstations
//   - Env: a payload injected into the process environment by the orchestrator
//
// Every backend returns the raw JSON payload; parsing belongs to the resolver.
package secrets
