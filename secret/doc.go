// Package secret resolves configuration values that point at secrets, so
// API keys and signing keys never have to sit in a config file.
//
// Two forms are understood:
//   - ${VAR} expands strictly from the environment (see ExpandEnvStrict).
//   - secretref:<provider>:<ref> asks a Provider, either as the whole value
//     or inline, e.g. "Bearer secretref:file:jwt_secret".
//
// The built-in providers are "env" (ref is a variable name) and "file" (ref
// is a path, relative to a base directory such as /run/secrets).
package secret
