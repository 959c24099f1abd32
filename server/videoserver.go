package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/lookatitude/avatar-gateway/assetstore"
	"github.com/lookatitude/avatar-gateway/o11y"
)

// stableCheckBudget bounds how long the video handler waits for
// confirm_stable before answering 503, per the 100ms budget.
const stableCheckBudget = 100 * time.Millisecond

// VideoServer serves GET /videos/{artifact_id} with Range support, backed
// by an assetstore.Store.
type VideoServer struct {
	Store *assetstore.Store
}

// ServeHTTP implements http.Handler. Artifacts are addressed by opaque IDs
// taken from the {artifact_id} route variable.
func (v *VideoServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := o11y.FromContext(r.Context())

	id := mux.Vars(r)["artifact_id"]
	art, ok := v.Store.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	checkCtx, cancel := context.WithTimeout(r.Context(), stableCheckBudget)
	defer cancel()
	if err := v.Store.ConfirmStable(checkCtx, art); err != nil {
		w.Header().Set("Retry-After", "0")
		http.Error(w, "artifact not ready", http.StatusServiceUnavailable)
		return
	}

	startByte, endByte, status, err := parseRange(r.Header.Get("Range"), art.ByteSize)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", art.ByteSize))
		http.Error(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
		return
	}

	rc, length, err := v.Store.OpenRange(r.Context(), id, startByte, endByte)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer rc.Close()

	h := w.Header()
	h.Set("Content-Type", "video/mp4")
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "no-store")
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	if status == http.StatusPartialContent {
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", startByte, endByte, art.ByteSize))
	}
	w.WriteHeader(status)

	ttfb := time.Since(start)
	written, copyErr := copyWithFlush(w, rc)
	total := time.Since(start)

	fields := []any{
		"artifact_id", id,
		"ttfb_ms", ttfb.Milliseconds(),
		"bytes_written", written,
		"throughput_bytes_per_s", throughput(written, total),
		"file_age_ms", time.Since(art.WrittenAt).Milliseconds(),
	}
	if copyErr != nil {
		logger.Warn(r.Context(), "video range write incomplete", append(fields, "error", copyErr)...)
		return
	}
	logger.Info(r.Context(), "video range served", fields...)
}

func throughput(bytes int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes) / elapsed.Seconds()
}

// parseRange parses a single-range "Range: bytes=a-b" header against size,
// returning the inclusive start/end and the response status to use. An
// absent header, or one not in the "bytes=" unit, is treated as a
// full-content request; a malformed or unsatisfiable "bytes=" range returns
// an error.
func parseRange(header string, size int64) (start, end int64, status int, err error) {
	if header == "" {
		return 0, size - 1, http.StatusOK, nil
	}
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, size - 1, http.StatusOK, nil
	}
	spec := strings.TrimPrefix(header, prefix)
	spec = strings.Split(spec, ",")[0] // only the first range of a set is honored

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, 0, fmt.Errorf("malformed range")
	}

	switch {
	case parts[0] == "" && parts[1] != "":
		// suffix range: last N bytes
		n, perr := strconv.ParseInt(parts[1], 10, 64)
		if perr != nil || n <= 0 {
			return 0, 0, 0, fmt.Errorf("malformed range")
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, http.StatusPartialContent, nil
	case parts[1] == "":
		s, perr := strconv.ParseInt(parts[0], 10, 64)
		if perr != nil || s < 0 || s >= size {
			return 0, 0, 0, fmt.Errorf("range start out of bounds")
		}
		return s, size - 1, http.StatusPartialContent, nil
	default:
		s, perr1 := strconv.ParseInt(parts[0], 10, 64)
		e, perr2 := strconv.ParseInt(parts[1], 10, 64)
		if perr1 != nil || perr2 != nil || s < 0 || e < s || s >= size {
			return 0, 0, 0, fmt.Errorf("malformed range")
		}
		if e >= size {
			e = size - 1
		}
		return s, e, http.StatusPartialContent, nil
	}
}

// copyWithFlush streams rc into w, flushing after each chunk when w
// supports it, so a client can start rendering before the full artifact is
// sent.
func copyWithFlush(w http.ResponseWriter, rc io.Reader) (int64, error) {
	flusher, canFlush := w.(http.Flusher)
	buf := make([]byte, 64*1024)
	var written int64
	for {
		n, readErr := rc.Read(buf)
		if n > 0 {
			nw, writeErr := w.Write(buf[:n])
			written += int64(nw)
			if canFlush {
				flusher.Flush()
			}
			if writeErr != nil {
				return written, writeErr
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return written, nil
			}
			return written, readErr
		}
	}
}
