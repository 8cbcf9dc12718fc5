// Package unsea extracts the resources embedded in Node.js single executable
// applications (SEA).
//
// A SEA is a node binary with a preparation blob injected by postject under
// the name NODE_SEA_BLOB: an ELF section or note, a PE section or resource
// directory entry, or a Mach-O section. The blob bundles the application
// script, an optional V8 code cache, and optional named assets.
//
// Extract runs the whole pipeline on an executable image:
//
//	exe, err := os.ReadFile("app")
//	...
//	blob, err := unsea.Extract(exe)
//	...
//	fmt.Println(blob.Source)
//
// The pieces are exported for callers that need them individually:
// DetectFormat sniffs the container format, Locate returns the byte range of
// the embedded resource, and package seablob decodes and encodes the blob
// layout itself. Package restore writes a decoded blob back to disk in the
// layout node's SEA tooling expects.
package unsea
