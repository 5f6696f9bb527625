package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"medassist/internal/chat"
	"medassist/internal/extract"
	"medassist/internal/report"
)

// MaxPromptLength caps chat prompts; anything longer is rejected before it
// reaches the model.
const MaxPromptLength = 500

// ReturnType is the common JSON envelope for responses.
type ReturnType struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Handler wires the HTTP surface to the chat service and report pipeline.
type Handler struct {
	Chat     *chat.Service
	Pipeline *report.Pipeline
	Reports  *report.Store
	log      zerolog.Logger
}

func New(chatService *chat.Service, pipeline *report.Pipeline, reports *report.Store, log zerolog.Logger) *Handler {
	return &Handler{Chat: chatService, Pipeline: pipeline, Reports: reports, log: log}
}

type chatRequestBody struct {
	Prompt string `json:"prompt"`
}

type chatResponseBody struct {
	Response string   `json:"response"`
	Contexts []string `json:"contexts"`
}

// PostChat answers a free-text medical question.
func (h *Handler) PostChat(c echo.Context) error {
	var body chatRequestBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ReturnType{Message: "Invalid request body. Error: " + err.Error()})
	}
	if len(body.Prompt) > MaxPromptLength {
		return c.JSON(http.StatusBadRequest, ReturnType{Message: "Max prompt length is 500 characters."})
	}

	answer, snippets, err := h.Chat.Answer(c.Request().Context(), body.Prompt)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyQuery) {
			return c.JSON(http.StatusBadRequest, ReturnType{Message: "Query cannot be empty."})
		}
		h.log.Error().Err(err).Msg("chat request failed")
		return c.JSON(http.StatusBadGateway, ReturnType{Message: "Error handling request. Error: " + err.Error()})
	}

	contexts := make([]string, len(snippets))
	for i, sn := range snippets {
		contexts[i] = sn.Text
	}
	return c.JSON(http.StatusOK, ReturnType{Data: chatResponseBody{Response: answer, Contexts: contexts}})
}

type simplifyRequestBody struct {
	Term string `json:"term"`
}

// PostSimplify rewrites a medical term in plain language.
func (h *Handler) PostSimplify(c echo.Context) error {
	var body simplifyRequestBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ReturnType{Message: "Invalid request body. Error: " + err.Error()})
	}
	if body.Term == "" {
		return c.JSON(http.StatusBadRequest, ReturnType{Message: "Term cannot be empty."})
	}

	simplified, err := h.Chat.Simplify(c.Request().Context(), body.Term)
	if err != nil {
		h.log.Error().Err(err).Msg("simplify request failed")
		return c.JSON(http.StatusBadGateway, ReturnType{Message: "Error handling request. Error: " + err.Error()})
	}
	return c.JSON(http.StatusOK, ReturnType{Data: simplified})
}

type analyzeResponseBody struct {
	ReportID string `json:"report_id,omitempty"`
	State    string `json:"state"`
	Analysis string `json:"analysis"`
}

// PostAnalyzeReport accepts an uploaded lab report (PDF or image) and
// returns the structured analysis.
func (h *Handler) PostAnalyzeReport(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ReturnType{Message: "Missing uploaded file. Error: " + err.Error()})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ReturnType{Message: "Cannot open uploaded file. Error: " + err.Error()})
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ReturnType{Message: "Cannot read uploaded file. Error: " + err.Error()})
	}

	doc := extract.Document{Data: data, Kind: extract.DetectKind(data)}
	res := h.Pipeline.Analyze(c.Request().Context(), doc)
	if !res.Ok() {
		// extraction and generation failures are user-facing messages,
		// not server errors
		return c.JSON(http.StatusUnprocessableEntity, ReturnType{Message: res.Message})
	}

	reportID, err := h.Reports.Save(fileHeader.Filename, res.Text)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to save report record")
	}
	return c.JSON(http.StatusOK, ReturnType{Data: analyzeResponseBody{
		ReportID: reportID,
		State:    res.State.String(),
		Analysis: res.Analysis,
	}})
}

// GetReports lists the saved upload records.
func (h *Handler) GetReports(c echo.Context) error {
	records, err := h.Reports.List()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list reports")
		return c.JSON(http.StatusInternalServerError, ReturnType{Message: "Error listing reports. Error: " + err.Error()})
	}
	if records == nil {
		records = []report.Record{}
	}
	return c.JSON(http.StatusOK, ReturnType{Data: records})
}

// GetHealth is a liveness probe.
func (h *Handler) GetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, ReturnType{Message: "ok"})
}
