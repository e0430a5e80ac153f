//go:build wasip1

// Guest module for the WASI executor tests. The tests build it with:
//
//	GOOS=wasip1 GOARCH=wasm go build -o guest.wasm guest.go
//
// The argument selects the behaviour: "exit" exits with status 3, "fail"
// reports a failure message, anything else is fetched as a URL and the
// response status becomes the result.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

var stdin = bufio.NewScanner(os.Stdin)

func call(fn string, args map[string]any) (any, string) {
	data, _ := json.Marshal(map[string]any{"fn": fn, "args": args})
	fmt.Fprintf(os.Stderr, "\x00SNOOP:%s\x00", data)

	if !stdin.Scan() {
		return nil, "no reply"
	}
	var reply struct {
		Data  any    `json:"data"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(stdin.Bytes(), &reply); err != nil {
		return nil, err.Error()
	}
	return reply.Data, reply.Error
}

func result(v any) {
	data, _ := json.Marshal(v)
	fmt.Fprintf(os.Stderr, "\x00SNOOP_RESULT:%s\x00", data)
}

func main() {
	var arg string
	if len(os.Args) > 1 {
		json.Unmarshal([]byte(os.Args[1]), &arg)
	}

	switch arg {
	case "exit":
		fmt.Println("exiting")
		os.Exit(3)
	case "fail":
		result("no records")
		return
	}

	fmt.Println("fetching", arg)
	session, _ := call("http_mksession", nil)
	req, _ := call("http_request", map[string]any{"session": session, "method": "GET", "url": arg})
	resp, _ := call("http_send", map[string]any{"request": req})
	if resp == nil {
		msg, _ := call("last_err", nil)
		result(msg)
		return
	}
	result(resp.(map[string]any)["status"])
}
