package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/cll-genie-server/internal/domain"
	"github.com/cll-genie-server/internal/service"
)

// ListSubmissionsParams defines parameters for the list_submissions tool
type ListSubmissionsParams struct {
	SampleID string `json:"sample_id"`
}

// ListSubmissionsResult defines the result structure for the list_submissions tool
type ListSubmissionsResult struct {
	SampleID     string         `json:"sample_id"`
	SampleName   string         `json:"sample_name"`
	Submissions  []string       `json:"submissions"`
	ReportCounts map[string]int `json:"report_counts"`
}

// SubmissionParams identifies one submission of a sample.
type SubmissionParams struct {
	SampleID     string `json:"sample_id"`
	SubmissionID string `json:"submission_id"`
}

// SummaryResult defines the result structure for the suggest_report_summary tool
type SummaryResult struct {
	SampleID     string `json:"sample_id"`
	SubmissionID string `json:"submission_id"`
	Summary      string `json:"summary"`
}

// handleListSubmissions handles the list_submissions tool invocation
func (s *Server) handleListSubmissions(ctx context.Context, req *mcp.CallToolRequest, params ListSubmissionsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "list_submissions").Info("Tool invoked")

	if strings.TrimSpace(params.SampleID) == "" {
		return s.createErrorResult("Missing required parameter", errors.New("sample_id is required")), nil, nil
	}

	overview, err := s.services.Samples.Get(ctx, params.SampleID)
	if err != nil {
		return s.toolError("list_submissions", err), nil, nil
	}

	result := ListSubmissionsResult{
		SampleID:     overview.Sample.ID,
		SampleName:   overview.Sample.Name,
		Submissions:  overview.Submissions,
		ReportCounts: overview.ReportCounts,
	}
	return s.jsonResult(result), nil, nil
}

// handleGetSubmission handles the get_submission tool invocation
func (s *Server) handleGetSubmission(ctx context.Context, req *mcp.CallToolRequest, params SubmissionParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "get_submission").Info("Tool invoked")

	if err := params.validate(); err != nil {
		return s.createErrorResult("Missing required parameter", err), nil, nil
	}

	sub, err := s.services.Results.GetSubmission(ctx, params.SampleID, params.SubmissionID)
	if err != nil {
		return s.toolError("get_submission", err), nil, nil
	}
	if sub == nil {
		return s.createErrorResult("Not found", fmt.Errorf("submission %s of sample %s", params.SubmissionID, params.SampleID)), nil, nil
	}
	return s.jsonResult(sub), nil, nil
}

// handleSuggestSummary handles the suggest_report_summary tool invocation
func (s *Server) handleSuggestSummary(ctx context.Context, req *mcp.CallToolRequest, params SubmissionParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "suggest_report_summary").Info("Tool invoked")

	if err := params.validate(); err != nil {
		return s.createErrorResult("Missing required parameter", err), nil, nil
	}

	text, err := s.services.Reports.Suggest(ctx, params.SampleID, params.SubmissionID)
	if err != nil {
		return s.toolError("suggest_report_summary", err), nil, nil
	}
	return s.jsonResult(SummaryResult{
		SampleID:     params.SampleID,
		SubmissionID: params.SubmissionID,
		Summary:      text,
	}), nil, nil
}

func (p SubmissionParams) validate() error {
	if strings.TrimSpace(p.SampleID) == "" {
		return errors.New("sample_id is required")
	}
	if strings.TrimSpace(p.SubmissionID) == "" {
		return errors.New("submission_id is required")
	}
	return nil
}

func (s *Server) jsonResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return s.createErrorResult("Encoding result", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}
}

func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return s.createErrorResult("Not found", err)
	case errors.Is(err, service.ErrSummaryUnavailable):
		return s.createErrorResult("Summary unavailable", err)
	}
	s.logger.WithFields(logrus.Fields{
		"tool":  tool,
		"error": err.Error(),
	}).Error("Tool failed")
	return s.createErrorResult("Internal error", nil)
}

// createErrorResult creates a standardized error result for tool calls
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
