/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package server exposes the mirror over HTTP: DID resolution backed by
// full-history validation, raw per-DID logs, and a jsonlines export
// stream compatible with the upstream directory.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/trustbloc/plc-go/mirror/store"
	"github.com/trustbloc/plc-go/operation"
	"github.com/trustbloc/plc-go/validator"
)

const (
	contentTypeDIDDoc    = "application/did+ld+json"
	contentTypeJSONLines = "application/jsonlines"

	// Export page cap, matching upstream.
	maxExportCount = 1000
)

// Server is the mirror's HTTP surface.
type Server struct {
	store  *store.Store
	logger *slog.Logger
	engine *gin.Engine
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New builds the HTTP surface over the given store.
func New(st *store.Store, opts ...Option) *Server {
	s := &Server{
		store:  st,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), corsMiddleware())

	engine.GET("/", s.handleLanding)
	engine.GET("/export", s.handleExport)
	engine.GET("/:did", s.handleResolve)
	engine.GET("/:did/log", s.handleLog)
	engine.GET("/:did/data", s.handleData)

	s.engine = engine

	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Every response is world-readable; the directory is public data.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)

			return
		}

		c.Next()
	}
}

// validatedLog loads and validates one DID's log. It writes the error
// response itself and returns nil when the caller should stop.
func (s *Server) validatedLog(c *gin.Context) *validator.LogResult {
	did := c.Param("did")

	if !operation.IsDID(did) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "not a did:plc identifier"})

		return nil
	}

	ops, err := s.store.OpsForDID(c.Request.Context(), did)
	if err != nil {
		s.internalError(c, err)

		return nil
	}

	if len(ops) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "DID not registered: " + did})

		return nil
	}

	res, err := validator.ValidateLogDetailed(did, ops)
	if err != nil {
		if validator.IsValidationError(err) {
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		} else {
			s.internalError(c, err)
		}

		return nil
	}

	return res
}

func (s *Server) handleResolve(c *gin.Context) {
	res := s.validatedLog(c)
	if res == nil {
		return
	}

	if res.Document == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "DID is tombstoned"})

		return
	}

	body, err := json.Marshal(RenderDIDDocument(res.Document))
	if err != nil {
		s.internalError(c, err)

		return
	}

	c.Data(http.StatusOK, contentTypeDIDDoc, body)
}

func (s *Server) handleData(c *gin.Context) {
	res := s.validatedLog(c)
	if res == nil {
		return
	}

	if res.Document == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "DID is tombstoned"})

		return
	}

	c.JSON(http.StatusOK, res.Document)
}

func (s *Server) handleLog(c *gin.Context) {
	did := c.Param("did")

	if !operation.IsDID(did) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "not a did:plc identifier"})

		return
	}

	ops, err := s.store.OpsForDID(c.Request.Context(), did)
	if err != nil {
		s.internalError(c, err)

		return
	}

	if len(ops) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "DID not registered: " + did})

		return
	}

	c.JSON(http.StatusOK, ops)
}

func (s *Server) handleExport(c *gin.Context) {
	after := c.Query("after")
	did := c.Query("did")

	count := maxExportCount
	all := false

	if raw := c.Query("count"); raw != "" {
		if raw == "all" {
			all = true
		} else {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"message": "invalid count"})

				return
			}

			if n < count {
				count = n
			}
		}
	}

	c.Header("Content-Type", contentTypeJSONLines)
	c.Status(http.StatusOK)

	enc := json.NewEncoder(c.Writer)

	for {
		entries, err := s.store.Export(c.Request.Context(), after, did, count)
		if err != nil {
			// Headers are already out; all we can do is stop the stream.
			s.logger.Error("export query failed", "err", err)

			return
		}

		for _, entry := range entries {
			if err := enc.Encode(entry); err != nil {
				return
			}
		}

		if !all || len(entries) < count {
			return
		}

		after = entries[len(entries)-1].CreatedAt
	}
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error("request failed", "path", c.Request.URL.Path, "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
}
