package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tuition/internal/service"
)

// StudentHandler handles HTTP requests for students.
type StudentHandler struct {
	studentService *service.StudentService
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(studentService *service.StudentService) *StudentHandler {
	return &StudentHandler{studentService: studentService}
}

// StudentResponse is the HTTP response for student data.
type StudentResponse struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	ParentIDs []int64         `json:"parent_ids"`
}

// GetAll handles GET /v1/students
func (h *StudentHandler) GetAll(c *gin.Context) {
	students, err := h.studentService.GetStudents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]StudentResponse, 0, len(students))
	for _, s := range students {
		parentIDs := s.ParentIDs
		if parentIDs == nil {
			parentIDs = []int64{}
		}
		response = append(response, StudentResponse{
			ID:        s.ID,
			Name:      s.Name,
			Balance:   s.Balance,
			ParentIDs: parentIDs,
		})
	}

	respondJSON(c, http.StatusOK, response)
}
