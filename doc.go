// Package snoop runs untrusted reconnaissance modules inside a sandbox and
// bridges them to a small set of host capabilities.
//
// # Overview
//
// Modules are Lua scripts or WASI programs. They start with no access to the
// filesystem, network or process environment. Everything a module can do goes
// through host functions: HTTP sessions bound to an allowlist, DNS lookups and
// a per-run error sentinel.
//
// # Basic Usage
//
//	exec, _ := executor.New(hostfunc.NewRegistry())
//	defer exec.Close()
//
//	mod, _ := module.NewStore(dir).Get("alice/ctlogs")
//	result := exec.Run(ctx, mod, "example.com",
//	    executor.WithAllowedHosts([]string{"crt.sh"}))
//	fmt.Println(result.Output, result.Value)
//
// A module's run function receives the argument and returns a value. A
// returned string is treated as a failure message.
//
//	function run(domain)
//	  local s = http_mksession()
//	  local req = http_request(s, "GET", "https://crt.sh/", {query={q=domain}})
//	  local resp = http_send(req)
//	  if last_err() then return last_err() end
//	  return {status = resp.status}
//	end
//
// # Registry
//
// Modules are published to and installed from a registry speaking a
// success/error JSON envelope. See the [registry] package.
//
// See the [executor], [hostfunc], [module] and [registry] packages for
// detailed API documentation.
package snoop
