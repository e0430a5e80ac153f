// Package executor runs recon modules in a sandbox.
//
// # Overview
//
// A module is either Lua source, run on an embedded interpreter, or a WASI
// binary, run on wazero. Both see the same host functions: the HTTP and DNS
// capabilities of [hostfunc.Host] plus anything in the registry passed to
// [New]. A module has no other access to the filesystem or the network.
//
// # Basic Usage
//
//	exec, err := executor.New(hostfunc.NewRegistry())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	result := exec.Run(ctx, mod, "example.com",
//	    executor.WithTimeout(time.Minute),
//	    executor.WithAllowedHosts([]string{"crt.sh"}),
//	)
//	fmt.Println(result.Output, result.Value)
//
// # Module Contract
//
// Lua modules define run(arg). A table or nil return value is the result. A
// string return value reports failure and surfaces as [ErrModuleFailed].
//
// WASI modules receive arg as JSON in argv[1]. They call host functions by
// writing frames to stderr and reading one JSON reply line from stdin:
//
//	\x00SNOOP:{"fn":"http_mksession","args":{}}\x00
//	{"data":"3f9a..."}
//
// A \x00SNOOP_RESULT:<json>\x00 frame sets the run's result value.
//
// # Isolation
//
// Every run gets a fresh host context. Sessions and the error sentinel of one
// run are invisible to every other run, and all sessions are closed when the
// run returns.
package executor
