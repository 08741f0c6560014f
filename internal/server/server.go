// Package server exposes the fused-kernel walker over HTTP, so test harnesses
// written in other languages can post a program graph and get back its count,
// its structure report or a check verdict.
package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/pkg/errors"

	"github.com/gomlx/kernelscope/inspect"
	"github.com/gomlx/kernelscope/internal/logger"
	"github.com/gomlx/kernelscope/program"
)

// DefaultMaxBodyBytes bounds the size of a request body.
const DefaultMaxBodyBytes = 32 << 20

// Server holds the handlers of the inspection API.
type Server struct {
	log          logger.Logger
	dialect      program.Dialect
	maxBodyBytes int64
}

// Option configures a Server.
type Option func(*Server)

// WithDialect sets the dialect used for requests that name none. By default
// the dialect named in the program document is used, falling back to PIR.
func WithDialect(d program.Dialect) Option {
	return func(s *Server) { s.dialect = d }
}

// WithMaxBodyBytes sets the request body limit.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

// New creates a Server. A nil log uses logger.Default().
func New(log logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.Default()
	}
	s := &Server{log: log, maxBodyBytes: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds the API routes to e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/dialects", s.handleDialects)
	e.POST("/v1/count", s.handleCount)
	e.POST("/v1/structure", s.handleStructure)
	e.POST("/v1/check", s.handleCheck)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDialects(c *echo.Context) error {
	dialects := program.Dialects
	if !s.dialect.IsZero() {
		dialects = append([]program.Dialect{s.dialect}, dialects...)
	}
	out := make([]map[string]string, 0, len(dialects))
	for _, d := range dialects {
		out = append(out, map[string]string{
			"name":                d.Name,
			"fused_kernel_marker": d.FusedKernelMarker,
			"cond_op":             d.CondName,
			"while_op":            d.WhileName,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleCount(c *echo.Context) error {
	var req InspectRequest
	if err := s.decode(c, &req); err != nil {
		return writeBadRequest(c, err.Error())
	}
	p, err := s.program(req)
	if err != nil {
		return s.writeProgramError(c, err)
	}
	n, err := inspect.CountFusedKernels(p.GlobalBlock())
	if err != nil {
		return s.writeProgramError(c, err)
	}
	s.log.Debug("counted fused kernels", "program", p.Name, "id", p.ID, "count", n)
	return c.JSON(http.StatusOK, CountResponse{Program: p.Name, ID: p.ID, FusedKernelCount: n})
}

func (s *Server) handleStructure(c *echo.Context) error {
	var req InspectRequest
	if err := s.decode(c, &req); err != nil {
		return writeBadRequest(c, err.Error())
	}
	p, err := s.program(req)
	if err != nil {
		return s.writeProgramError(c, err)
	}
	report, err := inspect.DescribeStructure(p.GlobalBlock())
	if err != nil {
		return s.writeProgramError(c, err)
	}
	s.log.Debug("described structure", "program", p.Name, "id", p.ID, "total", report.Total())
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleCheck(c *echo.Context) error {
	var req CheckRequest
	if err := s.decode(c, &req); err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.ExpectedCount == nil && req.ExpectedStructure == nil {
		return writeBadRequest(c, "expected_count or expected_structure is required")
	}
	if req.ExpectedCount != nil && *req.ExpectedCount < 0 {
		return writeBadRequest(c, fmt.Sprintf("expected_count must not be negative, got %d", *req.ExpectedCount))
	}
	p, err := s.program(req.InspectRequest)
	if err != nil {
		return s.writeProgramError(c, err)
	}

	resp := CheckResponse{OK: true, Program: p.Name}
	var failures []error
	if req.ExpectedCount != nil {
		if err := inspect.CheckProgramFusedKernelCount(p, *req.ExpectedCount); err != nil {
			failures = append(failures, err)
			var countErr *inspect.CountMismatchError
			if errors.As(err, &countErr) {
				resp.Diff = append(resp.Diff, fmt.Sprintf("total fused kernels: got %d, want %d", countErr.Got, countErr.Want))
			}
		}
	}
	if req.ExpectedStructure != nil {
		if err := inspect.CheckProgramStructure(p, req.ExpectedStructure); err != nil {
			failures = append(failures, err)
			var structErr *inspect.StructureMismatchError
			if errors.As(err, &structErr) {
				resp.Diff = append(resp.Diff, structErr.Diffs...)
				resp.Structure = structErr.Got
			}
		}
	}
	if len(failures) == 0 {
		s.log.Debug("check passed", "program", p.Name, "id", p.ID)
		return c.JSON(http.StatusOK, resp)
	}

	for _, err := range failures {
		if !errors.Is(err, inspect.ErrMismatch) {
			return s.writeProgramError(c, err)
		}
	}
	resp.OK = false
	resp.Error = failures[0].Error()
	for _, err := range failures[1:] {
		resp.Error += "\n" + err.Error()
	}
	s.log.Info("check failed", "program", p.Name, "id", p.ID, "differences", len(resp.Diff))
	return c.JSON(http.StatusUnprocessableEntity, resp)
}

// program converts the request's document, resolving the dialect override.
func (s *Server) program(req InspectRequest) (*program.Program, error) {
	if req.Program == nil {
		return nil, errors.Wrap(program.ErrMalformed, "request has no program")
	}
	override := program.Dialect{}
	switch {
	case req.Dialect != "":
		if !s.dialect.IsZero() && req.Dialect == s.dialect.Name {
			override = s.dialect
			break
		}
		d, err := program.LookupDialect(req.Dialect)
		if err != nil {
			return nil, err
		}
		override = d
	case req.Program.Dialect == "" && !s.dialect.IsZero():
		override = s.dialect
	}
	return req.Program.Program(override)
}

func (s *Server) decode(c *echo.Context, v any) error {
	body := http.MaxBytesReader(c.Response(), c.Request().Body, s.maxBodyBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		return errors.Wrap(err, "read request body")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

func (s *Server) writeProgramError(c *echo.Context, err error) error {
	if errors.Is(err, program.ErrMalformed) || errors.Is(err, program.ErrUnknownDialect) {
		return writeError(c, http.StatusBadRequest, "invalid_program", err.Error())
	}
	s.log.Error("inspection failed", "error", err)
	return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, ErrorResponse{Error: ErrorDetail{Type: errType, Message: msg}})
}
