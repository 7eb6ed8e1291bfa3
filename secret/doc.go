// Package secret resolves credentials referenced from configuration.
//
// Values are first expanded against the environment (see ExpandEnvStrict),
// then any "secretref:<provider>:<ref>" reference is replaced with the
// value returned by the named Provider:
//   - Full value:  secretref:file:mongo/uri
//   - Inline use:  mongodb://probe:secretref:file:mongo/password@db:27017
//
// Two providers are built in. "file" reads mounted secret files, as
// delivered by Kubernetes or Docker secrets; "env" reads an environment
// variable by name.
package secret
