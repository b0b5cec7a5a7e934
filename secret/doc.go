// Package secret resolves credentials referenced from connops configuration.
//
// Configuration values pass through strict environment expansion first
// (see ExpandEnvStrict) and then through secret references of the form
//
//	secretref:<provider>:<ref>
//
// which a Resolver hands to the named Provider. A reference may make up the
// whole value or appear inline, for example inside a DSN:
//
//	app:secretref:file:mysql-password@tcp(db:3306)/inventory
//
// Two providers ship with the package: "env" reads an environment variable
// and "file" reads a file from a directory such as /run/secrets.
package secret
