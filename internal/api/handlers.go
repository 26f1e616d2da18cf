package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cll-genie-server/internal/domain"
	"github.com/cll-genie-server/internal/middleware"
	"github.com/cll-genie-server/internal/service"
	"github.com/cll-genie-server/pkg/vquest"
)

type flagRequest struct {
	Value *bool `json:"value" binding:"required"`
}

type hiddenRequest struct {
	Hidden *bool `json:"hidden" binding:"required"`
}

type commentRequest struct {
	Text string `json:"text" binding:"required"`
}

type summaryRequest struct {
	Summary string `json:"summary"`
}

func (s *Server) handleRegisterSample(c *gin.Context) {
	var req service.RegisterSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	sample, err := s.services.Samples.Register(c.Request.Context(), &req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sample)
}

func (s *Server) handleListSamples(c *gin.Context) {
	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		s.badRequest(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.badRequest(c, err)
		return
	}
	samples, err := s.services.Samples.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"samples": samples, "limit": limit, "offset": offset})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func (s *Server) handleGetSample(c *gin.Context) {
	overview, err := s.services.Samples.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (s *Server) handleSetEligibility(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := s.services.Samples.SetEligibility(c.Request.Context(), c.Param("id"), *req.Value, middleware.User(c)); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSetReportStatus(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := s.services.Samples.SetReportStatus(c.Request.Context(), c.Param("id"), *req.Value, middleware.User(c)); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleRunAnalysis accepts either a JSON AnalysisRequest or the V-QUEST
// form fields posted by the sequence selection page.
func (s *Server) handleRunAnalysis(c *gin.Context) {
	req := &service.AnalysisRequest{}
	if c.ContentType() == gin.MIMEJSON {
		if err := c.ShouldBindJSON(req); err != nil {
			s.badRequest(c, err)
			return
		}
	} else {
		if err := c.Request.ParseForm(); err != nil {
			s.badRequest(c, err)
			return
		}
		req.Parameters = vquest.ProcessForm(c.Request.PostForm)
	}
	if req.Parameters == nil {
		req.Parameters = vquest.Parameters{}
	}
	req.SampleID = c.Param("id")
	req.Actor = middleware.User(c)

	result, err := s.services.Analysis.Submit(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) submission(c *gin.Context) (*domain.Submission, bool) {
	sub, err := s.services.Results.GetSubmission(c.Request.Context(), c.Param("id"), c.Param("sub"))
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	if sub == nil {
		s.respondError(c, fmt.Errorf("submission %s: %w", c.Param("sub"), domain.ErrNotFound))
		return nil, false
	}
	return sub, true
}

func (s *Server) handleGetSubmission(c *gin.Context) {
	sub, ok := s.submission(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *Server) handleDeleteSubmission(c *gin.Context) {
	if err := s.services.Results.DeleteSubmission(c.Request.Context(), c.Param("id"), c.Param("sub"), middleware.User(c)); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDownloadArtifact(c *gin.Context) {
	sub, ok := s.submission(c)
	if !ok {
		return
	}

	var path string
	switch c.Param("kind") {
	case "zip":
		path = sub.ResultsZipFile
	case "text":
		path = sub.DetailedTextFile
	default:
		s.badRequest(c, errors.New("artifact kind must be zip or text"))
		return
	}
	if path == "" {
		s.respondError(c, fmt.Errorf("artifact: %w", domain.ErrNotFound))
		return
	}
	if _, err := os.Stat(path); err != nil {
		s.respondError(c, fmt.Errorf("artifact %s: %w", filepath.Base(path), domain.ErrNotFound))
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

func (s *Server) handleSuggestSummary(c *gin.Context) {
	var (
		text string
		err  error
	)
	if c.Query("latest") == "true" {
		text, err = s.services.Reports.LatestSummary(c.Request.Context(), c.Param("id"), c.Param("sub"))
	} else {
		text, err = s.services.Reports.Suggest(c.Request.Context(), c.Param("id"), c.Param("sub"))
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": text})
}

func (s *Server) handleAddComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	comment, err := s.services.Results.AppendComment(c.Request.Context(), c.Param("id"), c.Param("sub"), req.Text, middleware.User(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (s *Server) handleHideComment(c *gin.Context) {
	var req hiddenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	err := s.services.Results.SetCommentHidden(c.Request.Context(), c.Param("id"), c.Param("sub"), c.Param("cid"), *req.Hidden, middleware.User(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleExportReport(c *gin.Context) {
	var req summaryRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, err)
			return
		}
	}
	rep, err := s.services.Reports.Export(c.Request.Context(), &service.ExportRequest{
		SampleID:     c.Param("id"),
		SubmissionID: c.Param("sub"),
		Summary:      req.Summary,
		Actor:        middleware.User(c),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rep)
}

func (s *Server) handleViewReport(c *gin.Context) {
	rep, err := s.services.Reports.Report(c.Request.Context(), c.Param("id"), c.Param("rid"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if rep.Path == "" {
		s.respondError(c, fmt.Errorf("report file %s: %w", rep.ID, domain.ErrNotFound))
		return
	}
	if _, err := os.Stat(rep.Path); err != nil {
		s.respondError(c, fmt.Errorf("report file %s: %w", filepath.Base(rep.Path), domain.ErrNotFound))
		return
	}
	c.File(rep.Path)
}

func (s *Server) handleDeleteReport(c *gin.Context) {
	if err := s.services.Reports.Delete(c.Request.Context(), c.Param("id"), c.Param("rid"), middleware.User(c)); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleHideReport(c *gin.Context) {
	var req hiddenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := s.services.Reports.SetHidden(c.Request.Context(), c.Param("id"), c.Param("rid"), *req.Hidden, middleware.User(c)); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCreateNegativeReport(c *gin.Context) {
	var req summaryRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, err)
			return
		}
	}
	rep, err := s.services.Reports.CreateNegativeReport(c.Request.Context(), c.Param("id"), req.Summary, middleware.User(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rep)
}

func (s *Server) handleDeleteNegativeReport(c *gin.Context) {
	if err := s.services.Reports.DeleteNegativeReport(c.Request.Context(), c.Param("id"), middleware.User(c)); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
