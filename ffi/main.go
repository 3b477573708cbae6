// Package main builds as a C shared library (go build -buildmode=c-shared)
// exposing the three-symbol FFI surface: pforge_version,
// pforge_execute_handler, and pforge_free_result. All conversion logic
// lives in the bridge package; this file only crosses the C boundary.
package main

/*
#include <stdlib.h>
#include <string.h>
#include "pforge.h"
*/
import "C"

import (
	"encoding/json"
	"os"
	"unsafe"

	"github.com/termfx/pforge/ffi/bridge"
	"github.com/termfx/pforge/mcp"
)

// versionCStr is allocated once; callers must treat it as static.
var versionCStr = C.CString(bridge.Version())

// init wires a dispatcher from PFORGE_CONFIG when the host provides one.
// Embedding hosts may instead call bridge.SetDispatcher before the first
// execute.
func init() {
	path := os.Getenv("PFORGE_CONFIG")
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var cfg mcp.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return
	}
	_ = bridge.Configure(cfg)
}

//export pforge_version
func pforge_version() *C.char {
	return versionCStr
}

//export pforge_execute_handler
func pforge_execute_handler(name *C.char, input *C.uint8_t, inputLen C.size_t) *C.pforge_result {
	goName := ""
	if name != nil {
		goName = C.GoString(name)
	}
	var payload []byte
	if input != nil && inputLen > 0 {
		payload = C.GoBytes(unsafe.Pointer(input), C.int(inputLen))
	}

	res := bridge.Execute(goName, payload)

	out := (*C.pforge_result)(C.malloc(C.size_t(unsafe.Sizeof(C.pforge_result{}))))
	out.code = C.int32_t(res.Code)
	out.data = nil
	out.data_len = 0
	out.error = nil

	if len(res.Data) > 0 {
		out.data = (*C.uint8_t)(C.CBytes(res.Data))
		out.data_len = C.size_t(len(res.Data))
	}
	if res.Err != "" {
		out.error = C.CString(res.Err)
	}
	return out
}

//export pforge_free_result
func pforge_free_result(result *C.pforge_result) {
	if result == nil {
		return
	}
	if result.data != nil {
		C.free(unsafe.Pointer(result.data))
	}
	if result.error != nil {
		C.free(unsafe.Pointer(result.error))
	}
	C.free(unsafe.Pointer(result))
}

func main() {}
