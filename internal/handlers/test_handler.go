package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

type TestHandler struct {
	BaseHandler
	service services.TestService
}

func NewTestHandler(service services.TestService, logger utils.Logger) *TestHandler {
	return &TestHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// CreateTest creates a new test
// @Summary Create test
// @Description Creates a test; timeLimit is in seconds and passingScore in percent
// @Tags tests
// @Accept json
// @Produce json
// @Param test body services.CreateTestRequest true "Test data"
// @Success 201 {object} models.Response{data=models.Test}
// @Failure 400 {object} models.Response
// @Failure 403 {object} models.Response
// @Router /tests [post]
func (h *TestHandler) CreateTest(c *gin.Context) {
	h.LogRequest(c, "Creating test")

	var req services.CreateTestRequest
	if !h.bindJSON(c, &req) {
		return
	}

	test, err := h.service.CreateTest(c.Request.Context(), &req, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, test)
}

// GetTest
// @Summary Get test
// @Tags tests
// @Produce json
// @Param id path uint true "Test ID"
// @Success 200 {object} models.Response{data=models.Test}
// @Failure 404 {object} models.Response
// @Router /tests/{id} [get]
func (h *TestHandler) GetTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	test, err := h.service.GetTest(c.Request.Context(), id, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, test)
}

// ListTests lists tests with optional filters
// @Summary List tests
// @Tags tests
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Page size (default: 20, max: 100)"
// @Param q query string false "Search in title"
// @Param active query bool false "Filter by active flag"
// @Param creator query uint false "Filter by creator"
// @Success 200 {object} models.Response{data=models.Page[models.Test]}
// @Router /tests [get]
func (h *TestHandler) ListTests(c *gin.Context) {
	page, err := h.service.ListTests(c.Request.Context(), services.TestListParams{
		IsActive:  h.parseOptionalBoolQuery(c, "active"),
		CreatorID: h.parseOptionalUintQuery(c, "creator"),
		Search:    c.Query("q"),
		Page:      h.parseIntQuery(c, "page", 1),
		Limit:     h.parseIntQuery(c, "limit", 0),
	}, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, page)
}

// UpdateTest applies a partial update
// @Summary Update test
// @Tags tests
// @Accept json
// @Produce json
// @Param id path uint true "Test ID"
// @Param test body services.UpdateTestRequest true "Fields to change"
// @Success 200 {object} models.Response{data=models.Test}
// @Failure 400 {object} models.Response
// @Failure 404 {object} models.Response
// @Router /tests/{id} [put]
func (h *TestHandler) UpdateTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	h.LogRequest(c, "Updating test", "test_id", id)

	var req services.UpdateTestRequest
	if !h.bindJSON(c, &req) {
		return
	}

	test, err := h.service.UpdateTest(c.Request.Context(), id, &req, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, test)
}

// DeleteTest deactivates a test; its attempts stay readable
// @Summary Deactivate test
// @Tags tests
// @Produce json
// @Param id path uint true "Test ID"
// @Success 200 {object} models.Response
// @Failure 404 {object} models.Response
// @Router /tests/{id} [delete]
func (h *TestHandler) DeleteTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	h.LogRequest(c, "Deactivating test", "test_id", id)

	if err := h.service.DeactivateTest(c.Request.Context(), id, h.actor(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, gin.H{"message": "test deactivated"})
}

// ListQuestions lists a test's questions in display order
// @Summary List test questions
// @Description Option scores and answer keys are only returned to administrators
// @Tags questions
// @Produce json
// @Param id path uint true "Test ID"
// @Success 200 {object} models.Response{data=[]models.Question}
// @Router /tests/{id}/questions [get]
func (h *TestHandler) ListQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	questions, err := h.service.ListQuestions(c.Request.Context(), id, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, questions)
}

// AddQuestion adds a question, with its options, to a test
// @Summary Add question
// @Tags questions
// @Accept json
// @Produce json
// @Param id path uint true "Test ID"
// @Param question body services.CreateQuestionRequest true "Question data"
// @Success 201 {object} models.Response{data=models.Question}
// @Failure 400 {object} models.Response
// @Router /tests/{id}/questions [post]
func (h *TestHandler) AddQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	h.LogRequest(c, "Adding question", "test_id", id)

	var req services.CreateQuestionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	question, err := h.service.AddQuestion(c.Request.Context(), id, &req, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, question)
}

// ReorderQuestions
// @Summary Reorder questions
// @Tags questions
// @Accept json
// @Produce json
// @Param id path uint true "Test ID"
// @Param order body services.ReorderQuestionsRequest true "Question ids in the new order"
// @Success 200 {object} models.Response{data=[]models.Question}
// @Failure 422 {object} models.Response
// @Router /tests/{id}/questions/order [put]
func (h *TestHandler) ReorderQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.ReorderQuestionsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	questions, err := h.service.ReorderQuestions(c.Request.Context(), id, &req, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, questions)
}
