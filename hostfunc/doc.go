// Package hostfunc provides the host side of the guest bridge: host functions
// that sandboxed modules call to reach the network.
//
// Sandboxed code has no implicit access to system resources. Every capability
// is a [Func] bound into a [Registry], and guest values crossing the boundary
// are converted by explicit, validating functions.
//
// # Host Context
//
// A [Host] bundles the state of one script execution: a [SessionStore] of
// HTTP sessions, an [ErrorSlot] sentinel, and the request executors.
//
//	host := hostfunc.NewHost(hostfunc.HostConfig{})
//	defer host.Close()
//
//	registry := hostfunc.NewRegistry()
//	host.Register(registry)
//
// Guest functions bound by [Host.Register]:
//
//	http_mksession()                          -> session handle
//	http_request(session, method, url, opts)  -> request table
//	http_send(request)                        -> {status, text, headers, url}
//	http_close(session)                       -> bool
//	dns(name, opts)                           -> {rcode, answers}
//	last_err()                                -> message or nil
//	clear_err()
//
// # Error Sentinel
//
// Fallible host functions never raise into the guest. On failure they return
// nil and store the error in the execution's sentinel, which guest code polls
// with last_err():
//
//	local req = http_request(session, "GET", url, {timeout=250})
//	local resp = http_send(req)
//	if last_err() then return last_err() end
//
// # Options
//
// Request options recognize headers, query, json, form and timeout. Timeout
// is a number of milliseconds and bounds the whole call, body included.
// json and form are mutually exclusive.
package hostfunc
