package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"ledger/internal/core"
	"ledger/internal/csvsource"
	"ledger/internal/log"
	"ledger/internal/services"
)

const maxJSONBodyBytes = 1 << 20

// createTransactionRequest accepts value either as a JSON number or a string.
type createTransactionRequest struct {
	Title    string          `json:"title"`
	Value    json.RawMessage `json:"value"`
	Type     string          `json:"type"`
	Category string          `json:"category"`
}

func (req createTransactionRequest) input() services.CreateTransactionInput {
	value := strings.TrimSpace(string(req.Value))
	if value == "null" {
		value = ""
	}
	return services.CreateTransactionInput{
		Title:    req.Title,
		Value:    strings.Trim(value, `"`),
		Type:     req.Type,
		Category: req.Category,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady reports not_ready when the store does not answer a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if s.pinger == nil {
		checks["store"] = "not_checked"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	counters := []struct {
		name, help, kind string
		value            int64
	}{
		{"http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests},
		{"http_server_errors_total", "Responses with a 5xx status", "counter", traceMetrics.ServerErrors},
		{"transactions_created_total", "Transactions created one at a time", "counter", atomic.LoadInt64(&s.appMetrics.transactionsCreated)},
		{"transactions_imported_total", "Transactions created by imports", "counter", atomic.LoadInt64(&s.appMetrics.transactionsImported)},
		{"transactions_deleted_total", "Transactions deleted", "counter", atomic.LoadInt64(&s.appMetrics.transactionsDeleted)},
		{"rate_limit_rejected_total", "Requests rejected by the rate limiter", "counter", rateLimitMetrics.Rejected},
		{"active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount},
		{"suspicious_requests_total", "Suspicious requests detected", "counter", securityMetrics.SuspiciousRequests},
		{"uptime_seconds", "Application uptime in seconds", "gauge", int64(time.Since(s.appMetrics.uptime).Seconds())},
	}

	w.WriteHeader(http.StatusOK)
	for _, c := range counters {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n\n", c.name, c.help, c.name, c.kind, c.name, c.value)
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	overview, err := s.transactions.Overview(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}

	tx, err := s.transactions.Create(r.Context(), req.input())
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.transactionsCreated, 1)
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.transactions.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.transactionsDeleted, 1)
	writeJSON(w, http.StatusOK, messageBody{Message: "Transaction deleted"})
}

// handleImportTransactions stores the uploaded file under the upload dir and
// hands it to the importer, which removes it once the rows are read.
func (s *Server) handleImportTransactions(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge,
			errorBody{Error: fmt.Sprintf("upload exceeds %d bytes", s.maxUploadBytes)})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge,
				errorBody{Error: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "expected a multipart form with a file field"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing file field"})
		return
	}
	defer file.Close()

	path, err := s.saveUpload(file)
	if err != nil {
		s.writeError(w, r, log.OpImport, core.SourceReadError("store upload", err))
		return
	}
	src, err := csvsource.Open(path)
	if err != nil {
		_ = os.Remove(path)
		s.writeError(w, r, log.OpImport, core.SourceReadError("open upload", err))
		return
	}

	result, err := s.importer.Import(r.Context(), src)
	if err != nil {
		s.writeError(w, r, log.OpImport, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.transactionsImported, int64(len(result.Transactions)))

	logger := log.FromContext(r.Context()).WithComponent(log.ComponentImport)
	logger.InfoContext(r.Context(), "Import completed",
		log.NewFields().WithImport(len(result.Transactions), len(result.Skipped)).ToSlice()...)
	for _, sk := range result.Skipped {
		logger.DebugContext(r.Context(), "Import row skipped", "line", sk.Line, "reason", sk.Reason)
	}

	writeJSON(w, http.StatusCreated, result.Transactions)
}

func (s *Server) saveUpload(src io.Reader) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	f, err := os.CreateTemp(s.uploadDir, "import-*.csv")
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return f.Name(), nil
}
