package server

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/orchestrator"
	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/source"
)

// sessionCookie carries the conversation id between browser requests.
const sessionCookie = "ragchat_session"

// maxBodyBytes bounds request bodies. Inline PDFs arrive base64-encoded, so
// the cap leaves room for the encoding overhead.
const maxBodyBytes = 2 * source.MaxDocumentBytes

// handleAsk handles POST /api/ask.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		if c, err := r.Cookie(sessionCookie); err == nil {
			req.SessionID = c.Value
		}
	}

	ans, err := s.pipeline.Ask(r.Context(), orchestrator.AskRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    ans.SessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	resp := askResponse{
		Response:  ans.Response,
		SessionID: ans.SessionID,
		Sources:   make([]sourceRef, 0, len(ans.Sources)),
	}
	for _, src := range ans.Sources {
		resp.Sources = append(resp.Sources, sourceRef{Source: src.Source, Seq: src.Seq, Score: src.Score})
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleIngest handles POST /api/ingest. A partial failure answers 207 with
// both counts so the client can report what was indexed.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !s.decode(w, r, &req) {
		return
	}

	src, err := s.ingestSource(r, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.pipeline.Ingest(r.Context(), src)
	if err != nil && (res == nil || res.Written == 0 || !errors.Is(err, rag.ErrPartialIngest)) {
		s.writeError(w, r, err)
		return
	}

	resp := ingestResponse{Source: res.Source, ChunksWritten: res.Written, ChunksFailed: res.Failed}
	status := http.StatusOK
	if err != nil {
		resp.Error = rag.UserMessage(err)
		resp.Code = rag.CodeOf(err)
		status = http.StatusMultiStatus
	}
	writeJSON(w, r, status, resp)
}

// ingestSource builds the document named by req.
func (s *Server) ingestSource(r *http.Request, req ingestRequest) (source.Source, error) {
	rawURL := strings.TrimSpace(req.URL)
	switch {
	case rawURL != "" && req.Text != "":
		return nil, rag.E(rag.KindValidation, "server.ingest", "Provide either a url or text, not both.", nil)
	case rawURL != "":
		src, err := source.FetchURL(r.Context(), s.cfg.FetchClient, rawURL)
		if err != nil {
			return nil, rag.E(rag.KindValidation, "server.ingest", "The URL could not be fetched.", err)
		}
		return src, nil
	case strings.TrimSpace(req.Text) == "":
		return nil, rag.E(rag.KindValidation, "server.ingest", "Provide a url or some text to ingest.", nil)
	}

	kind, err := source.ParseKind(req.Kind)
	if err != nil {
		return nil, rag.E(rag.KindValidation, "server.ingest", "Unknown document kind.", err)
	}
	raw := []byte(req.Text)
	if kind == source.KindPDF {
		if raw, err = base64.StdEncoding.DecodeString(req.Text); err != nil {
			return nil, rag.E(rag.KindValidation, "server.ingest", "PDF text must be base64-encoded.", err)
		}
	}

	name := strings.TrimSpace(req.Source)
	if name == "" {
		sum := sha256.Sum256(raw)
		name = "text-" + hex.EncodeToString(sum[:6])
	}
	return source.New(kind, name, raw)
}

// handleReindex handles POST /api/reindex.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	res, err := s.pipeline.Reindex(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, reindexResponse{
		Collection:    res.Collection,
		Documents:     res.Documents,
		ChunksWritten: res.Written,
		ChunksFailed:  res.Failed,
	})
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.pipeline.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, statsResponse{
		ChunkCount:    st.ChunkCount,
		DocumentCount: st.DocumentCount,
		Collection:    st.Collection,
	})
}

// handleClearSession handles POST /api/session/clear. The session comes from
// the body or, failing that, the session cookie, which is expired.
func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	var req clearSessionRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		if c, err := r.Cookie(sessionCookie); err == nil {
			req.SessionID = c.Value
		}
	}

	if err := s.pipeline.ClearSession(r.Context(), req.SessionID); err != nil {
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "cleared"})
}

// decode reads a JSON body into v. It writes a 400 and returns false when the
// body is malformed or too large.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, r, rag.E(rag.KindValidation, "server.decode", "The request body is not valid JSON.", err))
		return false
	}
	return true
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind rag.Kind) int {
	switch kind {
	case rag.KindValidation:
		return http.StatusBadRequest
	case rag.KindConfigConflict:
		return http.StatusConflict
	case rag.KindPartialIngest:
		return http.StatusMultiStatus
	case rag.KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case rag.KindUpstreamTimeout, rag.KindGenerationTimeout:
		return http.StatusGatewayTimeout
	case rag.KindGenerationUpstream, rag.KindDimensionMismatch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the user-safe message and code of err. The cause
// is logged, never returned.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := rag.KindOf(err)
	status := statusFor(kind)

	log := logging.FromContextOr(r.Context(), s.log)
	if status >= http.StatusInternalServerError {
		log.Warn("request failed", slog.String("code", kind.Code()), slog.Any("error", err))
	} else {
		log.Debug("request rejected", slog.String("code", kind.Code()), slog.Any("error", err))
	}
	s.metrics.errorsTotal.WithLabelValues(kind.Code()).Inc()

	writeJSON(w, r, status, errorResponse{Error: rag.UserMessage(err), Code: kind.Code()})
}

// writeJSON encodes v as the response body with status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}
