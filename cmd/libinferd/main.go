// Command libinferd builds the shared-library form of the inference
// core:
//
//	go build -buildmode=c-shared -o libinferd.so ./cmd/libinferd
//
// Hosts talk to the same engine the daemon uses through a fixed C ABI,
// the contract internal/nativelib binds from the other side. All text
// crosses as null-terminated UTF-8. Generation and scan-report results
// are heap-allocated owned strings released only through
// inferd_free_string; pointers returned by inferd_last_error,
// inferd_get_backend_name and inferd_version are owned by the library
// and must not be freed. The host serializes calls; one process-wide
// session backs the table.
package main

/*
#include <stdlib.h>

// Per-token callback for streaming generation. The token pointer is only
// valid for the duration of the call; copy it before returning.
typedef void (*inferd_token_cb)(const char* token, void* user_data);

static void inferd_invoke_token_cb(inferd_token_cb cb, const char* token, void* user_data) {
	cb(token, user_data);
}

// Aggregate result of a filesystem scan, returned by value.
typedef struct {
	unsigned int scanned;
	unsigned int matched_or_deleted;
	unsigned int errors;
} inferd_scan_stats;
*/
import "C"

import (
	"context"
	"fmt"
	"io"
	"unsafe"

	json "github.com/goccy/go-json"

	"inferd/internal/backend"
	"inferd/internal/scan"
)

const version = "0.1.0"

// One session backs the whole export table. The C contract requires the
// host to serialize calls, so no locking is layered here beyond what
// Session itself provides.
var sess = backend.NewSession()

// Boundary-level last error. Mirrors the session's record so failures
// that never reach the session, panics included, are reported the same
// way.
var (
	lastCode C.int
	lastMsg  *C.char // library-owned; replaced on each failure
)

func setErr(err error) C.int {
	code := C.int(backend.CodeOf(err))
	if lastMsg != nil {
		C.free(unsafe.Pointer(lastMsg))
	}
	lastMsg = C.CString(err.Error())
	lastCode = code
	return code
}

func clearErr() C.int {
	if lastMsg != nil {
		C.free(unsafe.Pointer(lastMsg))
		lastMsg = nil
	}
	lastCode = 0
	return 0
}

func invalid(msg string) error {
	return &backend.StatusError{Code: backend.StatusInvalidInput, Message: msg}
}

// guard converts a panic below an export into an unknown-status error
// instead of unwinding into the host.
func guard(status *C.int) {
	if r := recover(); r != nil {
		*status = setErr(fmt.Errorf("panic in native core: %v", r))
	}
}

// guardPtr is guard for exports that return an owned pointer; the
// caller sees NULL and reads the error through inferd_last_error.
func guardPtr(out **C.char) {
	if r := recover(); r != nil {
		setErr(fmt.Errorf("panic in native core: %v", r))
		*out = nil
	}
}

//export inferd_init
func inferd_init(name *C.char) (status C.int) {
	defer guard(&status)
	n := C.GoString(name)
	if n == "" {
		n = "llamacpp"
	}
	if err := sess.Init(n); err != nil {
		return setErr(err)
	}
	return clearErr()
}

//export inferd_load_model
func inferd_load_model(path *C.char, gpuLayers C.int) (status C.int) {
	defer guard(&status)
	if path == nil {
		return setErr(invalid("model path is null"))
	}
	if err := sess.LoadModel(C.GoString(path), int(gpuLayers)); err != nil {
		return setErr(err)
	}
	return clearErr()
}

//export inferd_generate
func inferd_generate(prompt *C.char, maxTokens C.uint, temperature C.float) (out *C.char) {
	defer guardPtr(&out)
	if prompt == nil {
		setErr(invalid("prompt is null"))
		return nil
	}
	res, err := sess.Generate(context.Background(), backend.Request{
		Prompt: C.GoString(prompt),
		Params: backend.Params{MaxTokens: int(maxTokens), Temperature: float32(temperature)},
	})
	if err != nil {
		setErr(err)
		return nil
	}
	clearErr()
	return C.CString(res.Content)
}

//export inferd_generate_streaming
func inferd_generate_streaming(prompt *C.char, maxTokens C.uint, temperature C.float, cb C.inferd_token_cb, userData unsafe.Pointer) (status C.int) {
	defer guard(&status)
	if prompt == nil || cb == nil {
		return setErr(invalid("prompt and callback must be non-null"))
	}
	st, err := sess.GenerateStream(context.Background(), backend.Request{
		Prompt: C.GoString(prompt),
		Params: backend.Params{MaxTokens: int(maxTokens), Temperature: float32(temperature)},
	})
	if err != nil {
		return setErr(err)
	}
	defer st.Close()
	for {
		tok, err := st.Recv()
		if err == io.EOF {
			return clearErr()
		}
		if err != nil {
			return setErr(err)
		}
		ctok := C.CString(tok)
		C.inferd_invoke_token_cb(cb, ctok, userData)
		C.free(unsafe.Pointer(ctok))
	}
}

//export inferd_release_backend
func inferd_release_backend() (status C.int) {
	defer guard(&status)
	if err := sess.Release(); err != nil {
		return setErr(err)
	}
	return clearErr()
}

//export inferd_last_error
func inferd_last_error() *C.char {
	return lastMsg
}

//export inferd_last_error_code
func inferd_last_error_code() C.int {
	return lastCode
}

//export inferd_free_string
func inferd_free_string(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

//export inferd_is_initialized
func inferd_is_initialized() C.int {
	if sess.Initialized() {
		return 1
	}
	return 0
}

//export inferd_is_model_loaded
func inferd_is_model_loaded() C.int {
	if sess.ModelLoaded() {
		return 1
	}
	return 0
}

// backendName stays alive for the library-owned return of
// inferd_get_backend_name; replaced when the backend changes.
var backendName *C.char

//export inferd_get_backend_name
func inferd_get_backend_name() *C.char {
	if backendName != nil {
		C.free(unsafe.Pointer(backendName))
	}
	backendName = C.CString(sess.BackendName())
	return backendName
}

var versionStr = C.CString(version)

//export inferd_version
func inferd_version() *C.char {
	return versionStr
}

//export inferd_scan_reserved
func inferd_scan_reserved(root *C.char, workers C.int) C.inferd_scan_stats {
	var status C.int
	defer guard(&status)
	var out C.inferd_scan_stats
	if root == nil {
		setErr(invalid("scan root is null"))
		return out
	}
	s := scan.Scanner{Workers: int(workers)}
	stats, err := s.CleanReserved(C.GoString(root))
	if err != nil {
		setErr(invalid(err.Error()))
		return out
	}
	clearErr()
	out.scanned = C.uint(stats.Scanned)
	out.matched_or_deleted = C.uint(stats.Matched)
	out.errors = C.uint(stats.Errors)
	return out
}

//export inferd_scan_duplicates
func inferd_scan_duplicates(root *C.char, minSize C.longlong, workers C.int) (out *C.char) {
	defer guardPtr(&out)
	if root == nil {
		setErr(invalid("scan root is null"))
		return nil
	}
	s := scan.Scanner{Workers: int(workers)}
	report, err := s.FindDuplicates(C.GoString(root), int64(minSize))
	if err != nil {
		setErr(invalid(err.Error()))
		return nil
	}
	b, err := json.Marshal(report)
	if err != nil {
		setErr(err)
		return nil
	}
	clearErr()
	return C.CString(string(b))
}

func main() {}
