package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"campuscare/internal/api/dto"
	"campuscare/internal/api/models"
)

// MockNotificationService mocks the NotificationService interface
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Create(ctx context.Context, req dto.CreateNotificationRequest) (*models.Notification, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockNotificationService) List(ctx context.Context, userID string, page, limit int) ([]models.Notification, int64, error) {
	args := m.Called(userID, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Notification), args.Get(1).(int64), args.Error(2)
}

func (m *MockNotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) Stats(ctx context.Context, userID string) (*dto.NotificationStats, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.NotificationStats), args.Error(1)
}

func (m *MockNotificationService) MarkAsRead(ctx context.Context, userID, id string) error {
	args := m.Called(userID, id)
	return args.Error(0)
}

func (m *MockNotificationService) MarkManyAsRead(ctx context.Context, userID string, ids []string) error {
	args := m.Called(userID, ids)
	return args.Error(0)
}

func (m *MockNotificationService) Delete(ctx context.Context, userID, id string) error {
	args := m.Called(userID, id)
	return args.Error(0)
}

func setupNotificationRouter(svc *MockNotificationService, userID, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set("userID", userID)
			c.Set("role", role)
		}
	})
	NewNotificationHandler(svc).RegisterRoutes(router.Group("/notifications"))
	return router
}

func TestNotificationList_Success(t *testing.T) {
	svc := new(MockNotificationService)
	router := setupNotificationRouter(svc, "student-1", "student")

	svc.On("List", "student-1", 1, 20).Return([]models.Notification{
		{ID: "n1", Title: "Checkup reminder", Status: models.StatusUnread},
	}, int64(41), nil)

	req, _ := http.NewRequest("GET", "/notifications", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Logs       []models.Notification `json:"logs"`
		Page       int                   `json:"page"`
		TotalPages int                   `json:"totalPages"`
		Total      int64                 `json:"total"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Len(t, response.Logs, 1)
	assert.Equal(t, 1, response.Page)
	assert.Equal(t, 3, response.TotalPages)
	assert.Equal(t, int64(41), response.Total)

	svc.AssertExpectations(t)
}

func TestNotificationList_Unauthenticated(t *testing.T) {
	svc := new(MockNotificationService)
	router := setupNotificationRouter(svc, "", "")

	req, _ := http.NewRequest("GET", "/notifications", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNotificationCreate_RequiresGuidanceRole(t *testing.T) {
	svc := new(MockNotificationService)
	router := setupNotificationRouter(svc, "student-1", "student")

	body, _ := json.Marshal(dto.CreateNotificationRequest{
		UserID: "student-2", Title: "t", Message: "m", Type: "SYSTEM",
	})
	req, _ := http.NewRequest("POST", "/notifications", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	svc.AssertNotCalled(t, "Create")
}

func TestNotificationCreate_Success(t *testing.T) {
	svc := new(MockNotificationService)
	router := setupNotificationRouter(svc, "guidance-1", "guidance")

	reqBody := dto.CreateNotificationRequest{
		UserID: "student-1", Title: "Follow-up scheduled", Message: "See you Monday", Type: "APPOINTMENT",
	}
	svc.On("Create", reqBody).Return(&models.Notification{
		ID: "n1", UserID: "student-1", Title: "Follow-up scheduled", Status: models.StatusUnread,
	}, nil)

	body, _ := json.Marshal(reqBody)
	req, _ := http.NewRequest("POST", "/notifications", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestNotificationUnreadCount_Success(t *testing.T) {
	svc := new(MockNotificationService)
	router := setupNotificationRouter(svc, "student-1", "student")

	svc.On("UnreadCount", "student-1").Return(int64(5), nil)

	req, _ := http.NewRequest("GET", "/notifications/unread-count", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]int64
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, int64(5), response["count"])
}

func TestNotificationStats_Success(t *testing.T) {
	svc := new(MockNotificationService)
	router := setupNotificationRouter(svc, "student-1", "student")

	svc.On("Stats", "student-1").Return(&dto.NotificationStats{
		Total:      10,
		Unread:     3,
		BySeverity: map[string]int{"high": 1, "low": 2},
		ByType:     map[string]int{"SYSTEM": 3},
	}, nil)

	req, _ := http.NewRequest("GET", "/notifications/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.NotificationStats
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, 10, response.Total)
	assert.Equal(t, 3, response.Unread)
	assert.Equal(t, 1, response.BySeverity["high"])
}

func TestNotificationMarkAsRead_Success(t *testing.T) {
	svc := new(MockNotificationService)
	router := setupNotificationRouter(svc, "student-1", "student")

	svc.On("MarkAsRead", "student-1", "n1").Return(nil)

	req, _ := http.NewRequest("PUT", "/notifications/n1/read", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestNotificationMarkManyAsRead_Success(t *testing.T) {
	svc := new(MockNotificationService)
	router := setupNotificationRouter(svc, "student-1", "student")

	svc.On("MarkManyAsRead", "student-1", []string{"n1", "n2"}).Return(nil)

	body, _ := json.Marshal(dto.MarkManyReadRequest{IDs: []string{"n1", "n2"}})
	req, _ := http.NewRequest("PUT", "/notifications/read", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestNotificationMarkManyAsRead_InvalidJSON(t *testing.T) {
	svc := new(MockNotificationService)
	router := setupNotificationRouter(svc, "student-1", "student")

	req, _ := http.NewRequest("PUT", "/notifications/read", bytes.NewBuffer([]byte("invalid json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotificationDelete_NotFound(t *testing.T) {
	svc := new(MockNotificationService)
	router := setupNotificationRouter(svc, "student-1", "student")

	svc.On("Delete", "student-1", "missing").Return(gorm.ErrRecordNotFound)

	req, _ := http.NewRequest("DELETE", "/notifications/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	svc.AssertExpectations(t)
}

func TestNotificationDelete_Success(t *testing.T) {
	svc := new(MockNotificationService)
	router := setupNotificationRouter(svc, "student-1", "student")

	svc.On("Delete", "student-1", "n1").Return(nil)

	req, _ := http.NewRequest("DELETE", "/notifications/n1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}
