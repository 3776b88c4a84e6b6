package core

import "context"

// Delegate hook names recognized by the core. A named hook resolves one
// identifier to a dynamic backing-store locator; a nil/empty return is
// rendered as NotFound.
const (
	DelegateGetPathname      = "get_pathname"
	DelegateGetURL           = "get_url"
	DelegateGetS3ObjectKey   = "get_s3_object_key"
	DelegateGetAzureBlobKey  = "get_azure_blob_key"
	DelegateGetJDBCLookupSQL = "get_jdbc_lookup_sql"
	DelegateGetJDBCBlobSQL   = "get_jdbc_blob_sql"
	DelegateGetResolver      = "get_resolver"
)

// Delegate is the narrow callable interface the core depends on for dynamic
// resolution: "any scripting engine or a compiled policy object
// satisfies it". The delegate runtime is assumed single-threaded per
// call; the core never holds an internal lock across a Call.
type Delegate interface {
	// Call invokes the named hook with a single string argument and
	// returns its result, or ok=false if the delegate returned nil/empty.
	// Any error from the delegate itself (panic, script exception, I/O
	// failure inside the runtime) must be surfaced as InternalError by the
	// caller.
	Call(ctx context.Context, name string, arg string) (result string, ok bool, err error)
}

// NoDelegate is a Delegate that always reports ok=false; used when
// resolver.delegate is false.
type NoDelegate struct{}

func (NoDelegate) Call(_ context.Context, _ string, _ string) (string, bool, error) {
	return "", false, nil
}
