package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rushteam/scorekit/audit"
	"github.com/rushteam/scorekit/core"
	"github.com/rushteam/scorekit/ingest"
	"github.com/rushteam/scorekit/service"
)

// internalErrorMessage 非客户端错误统一返回的消息，细节只写日志
const internalErrorMessage = "Internal server error"

// PredictFile 处理 multipart 上传的 CSV/XLS/XLSX 文件（字段名 file）
func (s *Server) PredictFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, core.NewInvalidInputError("file", "", fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit)))
			return
		}
		s.fail(c, core.NewInvalidInputError("file", "", "no file uploaded"))
		return
	}
	if !ingest.Supported(fh.Filename) {
		s.fail(c, core.NewUnsupportedFormatError(fh.Filename))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, core.NewInvalidInputError("file", fh.Filename, err.Error()))
		return
	}
	defer f.Close()

	table, err := ingest.ReadTable(fh.Filename, f)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.run(c, table, audit.SourceFile)
}

// Predict 处理单条 JSON 记录；multipart 请求转交 PredictFile
func (s *Server) Predict(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		s.PredictFile(c)
		return
	}

	var obj map[string]any
	if err := c.ShouldBindJSON(&obj); err != nil {
		s.fail(c, core.NewInvalidInputError("body", "", "request body must be a JSON object"))
		return
	}
	if obj == nil {
		s.fail(c, core.NewInvalidInputError("body", "", "request body must be a JSON object"))
		return
	}
	s.run(c, ingest.FromJSON(obj), audit.SourceJSON)
}

func (s *Server) run(c *gin.Context, table *core.Table, source audit.Source) {
	ctx := c.Request.Context()
	resp, err := s.pipeline.Run(ctx, table)
	if err != nil {
		s.fail(c, err)
		return
	}
	events := audit.Events(GetRequestID(c), source, s.pipeline.Predictor().Name(), resp, time.Now())
	if err := s.collector.Record(ctx, events); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", "request_id", GetRequestID(c), "error", err)
	}
	c.JSON(http.StatusOK, resp)
}

// fail 客户端错误返回 400 与错误消息，其他错误返回 500
func (s *Server) fail(c *gin.Context, err error) {
	if core.IsClientError(err) {
		s.logger.InfoContext(c.Request.Context(), "request rejected",
			"request_id", GetRequestID(c), "error", err)
		c.JSON(http.StatusBadRequest, core.ErrorResponse{Error: err.Error()})
		return
	}
	s.logger.ErrorContext(c.Request.Context(), "request failed",
		"request_id", GetRequestID(c), "error", err)
	c.JSON(http.StatusInternalServerError, core.ErrorResponse{Error: internalErrorMessage})
}

// HealthResponse /health 响应
type HealthResponse struct {
	Status    string `json:"status"`
	Model     string `json:"model"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// Health 返回服务与预测器状态，远程预测器不可达时返回 503
func (s *Server) Health(c *gin.Context) {
	p := s.pipeline.Predictor()
	resp := HealthResponse{
		Status:    "ok",
		Model:     p.Name(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.healthTimeout)
	defer cancel()
	if err := service.TestConnection(ctx, p); err != nil {
		resp.Status = "unavailable"
		resp.Error = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// FeaturesResponse /features 响应
type FeaturesResponse struct {
	Features  []string       `json:"features"`
	InputMode core.InputMode `json:"input_mode"`
	Model     string         `json:"model"`
	Lookup    LookupSummary  `json:"lookup"`
}

// LookupSummary 查找表概要
type LookupSummary struct {
	Version              string   `json:"version"`
	GlobalMean           float64  `json:"global_mean"`
	Regencies            int      `json:"regencies"`
	Provinces            int      `json:"provinces"`
	MaritalStatusClasses []string `json:"marital_status_classes"`
	GradeCategories      []string `json:"grade_categories"`
}

// Features 返回当前特征 schema 与查找表概要
func (s *Server) Features(c *gin.Context) {
	c.JSON(http.StatusOK, DescribeFeatures(s.pipeline))
}
