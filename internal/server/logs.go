package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/kbatch-dev/kbatch-proxy/internal/logging"
)

// streamBufferSize is the chunk size for relaying a followed log.
const streamBufferSize = 32 * 1024

// serveLogs relays a pod's logs as plain text. Without ?stream=true the
// whole log is read and returned in one body; with it the kubelet's follow
// stream is forwarded chunk by chunk, flushing after each write, until the
// pod finishes or the client goes away.
func (s *Server) serveLogs(w http.ResponseWriter, r *http.Request, namespace, podName string) {
	stream := false
	if raw := r.URL.Query().Get("stream"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, r, httpErrorf(http.StatusBadRequest, "invalid stream parameter %q", raw))
			return
		}
		stream = parsed
	}

	if !stream {
		text, err := s.client.ReadPodLogs(r.Context(), namespace, podName)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, text)
		return
	}

	logs, err := s.client.StreamPodLogs(r.Context(), namespace, podName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer logs.Close()

	s.metrics.IncrementActiveLogStreams(r.Context())
	defer s.metrics.DecrementActiveLogStreams(r.Context())

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	// Headers are out; any failure from here on just ends the stream.
	buf := make([]byte, streamBufferSize)
	for {
		n, readErr := logs.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) && r.Context().Err() == nil {
				s.logger.Warn("log stream ended with error",
					logging.Namespace(namespace),
					logging.ResourceName(podName),
					logging.SanitizedErr(readErr),
				)
			}
			return
		}
	}
}
