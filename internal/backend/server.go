/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"missioneditor/internal/domain"
	applog "missioneditor/internal/log"
	"missioneditor/internal/schema"
	"missioneditor/internal/storage"
	"missioneditor/internal/version"
)

// Store is what the server needs from persistence. *storage.Store satisfies it.
type Store interface {
	Ping(ctx context.Context) error
	Missions(ctx context.Context) ([]domain.Mission, error)
	Mission(ctx context.Context, id string) (domain.Mission, error)
	SaveMission(ctx context.Context, m domain.Mission) error
	Groups(ctx context.Context) ([]domain.Group, error)
	GroupActions(ctx context.Context, groupID string) ([]domain.GroupAction, error)
	PointsByMap(ctx context.Context, mapIDs []string) (map[string][]domain.Point, error)
	MarkersByMap(ctx context.Context, mapIDs []string) (map[string][]domain.Marker, error)
}

// ServerOptions configure NewServer.
type ServerOptions struct {
	// Secret enables bearer auth on /api routes. Empty leaves them open.
	Secret string
	Logger *slog.Logger
}

// Server serves the mission API from a Store.
type Server struct {
	router chi.Router
	store  Store
	secret string
	log    *slog.Logger
}

// NewServer wires the routes.
func NewServer(store Store, opts ServerOptions) *Server {
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("server")
	}
	s := &Server{router: chi.NewRouter(), store: store, secret: opts.Secret, log: l}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			s.log.Info("request", slog.String("method", r.Method), slog.String("path", r.URL.Path),
				slog.Int("status", ww.status), slog.Duration("took", time.Since(start)))
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	s.router.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(version.String()))
	})

	s.router.Route("/api", func(r chi.Router) {
		if s.secret != "" {
			r.Post("/auth/token", s.handleToken)
		}
		r.Group(func(r chi.Router) {
			r.Use(s.withAuth)
			r.Get("/missions", s.handleMissions)
			r.Get("/missions/{id}", s.handleMission)
			r.Put("/missions/{id}", s.handlePutMission)
			r.Get("/groups", s.handleGroups)
			r.Get("/groups/{id}/actions", s.handleGroupActions)
			r.Post("/maps/points", s.handlePoints)
			r.Post("/maps/markers", s.handleMarkers)
		})
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	// Optional JSON body: { "subject": "name", "ttl_seconds": 3600 }
	var req struct {
		Subject    string `json:"subject"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	b, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = json.Unmarshal(b, &req)
	if req.Subject == "" {
		req.Subject = "dev"
	}
	if req.TTLSeconds <= 0 || req.TTLSeconds > 24*3600 {
		req.TTLSeconds = 3600
	}
	exp := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
	tok, err := SignToken(s.secret, req.Subject, exp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleMissions(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.Missions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []domain.Mission{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleMission(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.Mission(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, m)
	}
}

func (s *Server) handlePutMission(w http.ResponseWriter, r *http.Request) {
	var m domain.Mission
	if err := json.NewDecoder(io.LimitReader(r.Body, 8<<20)).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode mission: %w", err))
		return
	}
	id := chi.URLParam(r, "id")
	if m.ID == "" {
		m.ID = id
	}
	if m.ID != id {
		writeError(w, http.StatusBadRequest, fmt.Errorf("mission id %q does not match path %q", m.ID, id))
		return
	}
	if err := schema.ValidateMission(m); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err := s.store.SaveMission(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.Groups(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []domain.Group{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGroupActions(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.GroupActions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []domain.GroupAction{}
	}
	writeJSON(w, http.StatusOK, list)
}

func decodeMapIDs(r *http.Request) ([]string, error) {
	var req mapIDsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		return nil, fmt.Errorf("decode map ids: %w", err)
	}
	return req.MapIDs, nil
}

func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	ids, err := decodeMapIDs(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := s.store.PointsByMap(r.Context(), ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	ids, err := decodeMapIDs(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := s.store.MarkersByMap(r.Context(), ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type subjectKey struct{}

// Subject returns the authenticated token subject, if any.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.secret == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(strings.ToLower(auth), strings.ToLower(prefix)) {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		sub, err := VerifyToken(s.secret, strings.TrimSpace(auth[len(prefix):]))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, sub)))
	})
}

type tokenClaims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"` // unix seconds
}

// SignToken issues an HMAC-SHA256 signed "<payload>.<signature>" token.
func SignToken(secret, subject string, exp time.Time) (string, error) {
	b, err := json.Marshal(tokenClaims{Sub: subject, Exp: exp.Unix()})
	if err != nil {
		return "", err
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(b)
	return base64.RawURLEncoding.EncodeToString(b) + "." + base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

// VerifyToken checks signature and expiry and returns the subject.
func VerifyToken(secret, token string) (string, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok {
		return "", errors.New("invalid token format")
	}
	payloadB, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", errors.New("invalid token payload")
	}
	sigB, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", errors.New("invalid token signature")
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(payloadB)
	if !hmac.Equal(h.Sum(nil), sigB) {
		return "", errors.New("bad signature")
	}
	var claims tokenClaims
	if err := json.Unmarshal(payloadB, &claims); err != nil {
		return "", errors.New("bad claims")
	}
	if claims.Exp < time.Now().Unix() {
		return "", errors.New("token expired")
	}
	if claims.Sub == "" {
		claims.Sub = "dev"
	}
	return claims.Sub, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := domain.MarshalNoEscape(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
