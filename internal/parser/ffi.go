// Package parser wraps a native HTML-parsing library reached over cgo.
// Four foreign entry points — find_meta, find_detail, update_tag and
// find_max_idx — take an HTML string and hand back either a
// heap-allocated C string or an integer; free_char releases memory the
// string-returning entries allocated.
//
// The corpus carries no shippable native .so/.a for this task, so the
// cgo preamble below *also defines* small reference C implementations of
// the five entry points, built from libc alone (malloc/snprintf/free), so
// this package is self-contained and the memory-ownership contract is
// exercised against a real callee. A production build swaps this
// preamble for declarations only, plus `#cgo LDFLAGS: -lyourparser`
// against the real native library — none of the Go code below changes.
package parser

/*
#include <stdlib.h>
#include <stdio.h>
#include <string.h>

static char* scrape_stub_dup(const char* html, const char* kind) {
	size_t len = html ? strlen(html) : 0;
	char* buf = (char*)malloc(96);
	if (buf == NULL) {
		return NULL;
	}
	snprintf(buf, 96, "{\"kind\":\"%s\",\"html_len\":%zu}", kind, len);
	return buf;
}

int find_meta(const char* html, char** out) {
	*out = scrape_stub_dup(html, "meta");
	return *out == NULL ? 1 : 0;
}

int find_detail(const char* html, char** out) {
	*out = scrape_stub_dup(html, "detail");
	return *out == NULL ? 1 : 0;
}

int update_tag(const char* html, char** out) {
	*out = scrape_stub_dup(html, "tag");
	return *out == NULL ? 1 : 0;
}

int find_max_idx(const char* html, int* out) {
	size_t len = html ? strlen(html) : 0;
	*out = (int)(len % 1000);
	return 0;
}

void free_char(char* ptr) {
	free(ptr);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unsafe"
)

// ErrNulByte is returned when the input HTML contains a NUL byte and
// cannot be represented as a C string.
var ErrNulByte = errors.New("parser: html contains a NUL byte")

// ErrNilResult is returned when the foreign function leaves the receive
// pointer null, whatever status code it reports.
var ErrNilResult = errors.New("parser: foreign function returned a null result")

// FFICallErr wraps a non-zero status code from a foreign entry point.
type FFICallErr struct {
	Code int
}

func (e *FFICallErr) Error() string {
	return fmt.Sprintf("parser: ffi call failed with code %d", e.Code)
}

// Func is a pluggable parser: HTML in, parsed payload (or error) out.
// The foreign entry point is erased behind this signature so the
// scraper and pipeline stages never know FFI is involved.
type Func func(html string) (string, error)

// stringEntryPoint is the C signature shared by find_meta, find_detail
// and update_tag: (html, &out) -> status.
type stringEntryPoint func(html *C.char, out **C.char) C.int

// newStringParser builds a Func around one of the string-returning
// foreign entry points: copy in, call, decode (lossy UTF-8 is
// acceptable), free on every non-null path regardless of status, then
// surface the status code.
func newStringParser(entry stringEntryPoint) Func {
	return func(html string) (string, error) {
		if strings.IndexByte(html, 0) >= 0 {
			return "", ErrNulByte
		}

		cHTML := C.CString(html)
		defer C.free(unsafe.Pointer(cHTML))

		var out *C.char
		status := entry(cHTML, &out)

		if out == nil {
			return "", ErrNilResult
		}
		// Decode before freeing: free_char invalidates the pointer.
		result := C.GoString(out)
		C.free_char(out)

		if status != 0 {
			return "", &FFICallErr{Code: int(status)}
		}
		return result, nil
	}
}

// FindMeta parses the "meta" view of an HTML document.
func FindMeta(html string) (string, error) {
	return newStringParser(func(h *C.char, out **C.char) C.int {
		return C.find_meta(h, out)
	})(html)
}

// FindDetail parses the "detail" view of an HTML document.
func FindDetail(html string) (string, error) {
	return newStringParser(func(h *C.char, out **C.char) C.int {
		return C.find_detail(h, out)
	})(html)
}

// UpdateTag extracts/refreshes tag data from an HTML document.
func UpdateTag(html string) (string, error) {
	return newStringParser(func(h *C.char, out **C.char) C.int {
		return C.update_tag(h, out)
	})(html)
}

// MaxIdxFinder parses the integer variant: same call discipline, but no
// allocation is freed, and success is formatted as a decimal string so
// it fits the same Func signature as the string-returning parsers.
func MaxIdxFinder(html string) (string, error) {
	if strings.IndexByte(html, 0) >= 0 {
		return "", ErrNulByte
	}

	cHTML := C.CString(html)
	defer C.free(unsafe.Pointer(cHTML))

	var idx C.int
	status := C.find_max_idx(cHTML, &idx)
	if status != 0 {
		return "", &FFICallErr{Code: int(status)}
	}
	return strconv.Itoa(int(idx)), nil
}
