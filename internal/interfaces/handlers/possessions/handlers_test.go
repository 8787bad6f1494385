package possessions

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"estate-backend/internal/application/possessionreports"
	possvc "estate-backend/internal/application/possessions"
	"estate-backend/internal/constants"
	"estate-backend/internal/domain"
	"estate-backend/internal/infrastructure/codes"
	"estate-backend/internal/infrastructure/documents"
	"estate-backend/internal/infrastructure/persistence"
	"estate-backend/internal/middleware"
	"estate-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

type envelope struct {
	Status   string                 `json:"status"`
	Message  string                 `json:"message"`
	Data     json.RawMessage        `json:"data"`
	Metadata map[string]interface{} `json:"metadata"`
	Error    struct {
		Message    string                 `json:"message"`
		StatusCode int                    `json:"statusCode"`
		Details    map[string]interface{} `json:"details"`
	} `json:"error"`
}

type testEnv struct {
	app  *fiber.App
	db   *gorm.DB
	docs *documents.MemoryStore
	role string
}

func setupPossessionsTest(t *testing.T) *testEnv {
	db := testutil.OpenDB(t)
	now := func() time.Time { return testNow }
	store := &persistence.PossessionStore{DB: db}
	env := &testEnv{db: db, docs: documents.NewMemoryStore(), role: constants.Superadmin}
	h := &Handlers{
		Service: &possvc.Service{
			Store:     store,
			Codes:     &codes.Reserver{Allocator: &codes.GormAllocator{DB: db, Prefix: "POS", Now: now}},
			Plots:     &persistence.PlotReader{DB: db},
			Files:     &persistence.FileReader{DB: db},
			Officers:  &persistence.OfficerReader{DB: db},
			Documents: env.docs,
			Now:       now,
		},
		Reports: &possessionreports.Service{Store: store, Now: now},
	}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", &middleware.SessionUser{UserID: "officer-1", Role: env.role})
		return c.Next()
	})
	Register(app.Group("/api/v1/possessions"), h)
	env.app = app
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (e *testEnv) create(t *testing.T, plotID string) possvc.View {
	t.Helper()
	status, out := e.do(t, "POST", "/api/v1/possessions/create-possession", map[string]interface{}{
		"fileId": "F-" + plotID,
		"plotId": plotID,
	})
	require.Equal(t, 201, status, out.Error.Message)
	var v possvc.View
	require.NoError(t, json.Unmarshal(out.Data, &v))
	return v
}

func TestCreatePossession_AllocatesCode(t *testing.T) {
	env := setupPossessionsTest(t)
	v := env.create(t, "P1")
	assert.Equal(t, "POS-20250101-001", v.PossessionCode)
	assert.Equal(t, domain.StatusRequested, v.Status)
	assert.Equal(t, "officer-1", v.CreatedBy)
	assert.Equal(t, []domain.PossessionStatus{domain.StatusSurveyed, domain.StatusCancelled, domain.StatusOnHold}, v.AllowedTransitions)
}

func TestCreatePossession_DuplicateActive(t *testing.T) {
	env := setupPossessionsTest(t)
	env.create(t, "P1")

	status, out := env.do(t, "POST", "/api/v1/possessions/create-possession", map[string]interface{}{
		"fileId": "F-2",
		"plotId": "P1",
	})
	assert.Equal(t, 409, status)
	assert.Equal(t, "error", out.Status)
	assert.Equal(t, CodeDuplicateActivePossession, out.Error.Details["code"])
	assert.Equal(t, "POS-20250101-001", out.Error.Details["existingCode"])
}

func TestCreatePossession_ValidationListsFields(t *testing.T) {
	env := setupPossessionsTest(t)
	status, out := env.do(t, "POST", "/api/v1/possessions/create-possession", map[string]interface{}{
		"latitude": 95.0,
	})
	assert.Equal(t, 400, status)
	assert.Equal(t, CodeValidationFailed, out.Error.Details["code"])
	fields, _ := out.Error.Details["fields"].([]interface{})
	assert.Len(t, fields, 3) // fileId, plotId, location pairing
}

func TestCreatePossession_InvalidBody(t *testing.T) {
	env := setupPossessionsTest(t)
	req := httptest.NewRequest("POST", "/api/v1/possessions/create-possession", strings.NewReader("{"))
	status, out := env.send(t, req)
	assert.Equal(t, 400, status)
	assert.Equal(t, "Invalid request body", out.Error.Message)
}

func TestViewPossession(t *testing.T) {
	env := setupPossessionsTest(t)
	v := env.create(t, "P1")

	status, _ := env.do(t, "GET", "/api/v1/possessions/view-possession/"+v.ID.String(), nil)
	assert.Equal(t, 200, status)

	status, out := env.do(t, "GET", "/api/v1/possessions/view-possession/not-a-uuid", nil)
	assert.Equal(t, 400, status)
	assert.Equal(t, CodeValidationFailed, out.Error.Details["code"])

	status, out = env.do(t, "GET", "/api/v1/possessions/view-possession/3b241101-e2bb-4255-8caf-4136c566a962", nil)
	assert.Equal(t, 404, status)
	assert.Equal(t, CodeNotFound, out.Error.Details["code"])

	status, _ = env.do(t, "GET", "/api/v1/possessions/view-by-code/POS-20250101-001", nil)
	assert.Equal(t, 200, status)
}

func TestTransition_Lifecycle(t *testing.T) {
	env := setupPossessionsTest(t)
	v := env.create(t, "P1")
	path := "/api/v1/possessions/transition/" + v.ID.String()

	status, out := env.do(t, "PATCH", path, map[string]interface{}{"status": "SURVEYED", "surveyPerson": "A. Khan"})
	require.Equal(t, 200, status, out.Error.Message)
	var got possvc.View
	require.NoError(t, json.Unmarshal(out.Data, &got))
	require.NotNil(t, got.SurveyDate)

	status, out = env.do(t, "PATCH", path, map[string]interface{}{"status": "HANDED_OVER"})
	assert.Equal(t, 409, status)
	assert.Equal(t, CodeIllegalTransition, out.Error.Details["code"])
	assert.Equal(t, "SURVEYED", out.Error.Details["from"])

	status, _ = env.do(t, "PATCH", path, map[string]interface{}{"status": "READY"})
	require.Equal(t, 200, status)
	status, out = env.do(t, "PATCH", path, map[string]interface{}{"status": "HANDED_OVER"})
	require.Equal(t, 200, status)
	require.NoError(t, json.Unmarshal(out.Data, &got))
	assert.NotNil(t, got.HandoverDate)

	status, out = env.do(t, "GET", "/api/v1/possessions/allowed-transitions/"+v.ID.String(), nil)
	require.Equal(t, 200, status)
	var at possvc.AllowedTransitions
	require.NoError(t, json.Unmarshal(out.Data, &at))
	assert.Equal(t, domain.StatusHandedOver, at.Current)
	assert.Empty(t, at.Next)
}

func TestTransition_HandoverNeedsRole(t *testing.T) {
	env := setupPossessionsTest(t)
	v := env.create(t, "P1")
	env.role = constants.Manager

	status, _ := env.do(t, "PATCH", "/api/v1/possessions/transition/"+v.ID.String(), map[string]interface{}{"status": "handed_over"})
	assert.Equal(t, 403, status)
}

func TestTransition_CertificateRefNeedsHandoverRole(t *testing.T) {
	env := setupPossessionsTest(t)
	v := env.create(t, "P1")
	env.role = constants.Manager
	path := "/api/v1/possessions/transition/" + v.ID.String()

	status, _ := env.do(t, "PATCH", path, map[string]interface{}{
		"status":         "SURVEYED",
		"surveyPerson":   "A. Khan",
		"certificateRef": "memory://cert",
	})
	assert.Equal(t, 403, status)

	status, out := env.do(t, "PATCH", path, map[string]interface{}{
		"status":       "SURVEYED",
		"surveyPerson": "A. Khan",
		"photoRef":     "memory://photo",
	})
	require.Equal(t, 200, status, out.Error.Message)
	var got possvc.View
	require.NoError(t, json.Unmarshal(out.Data, &got))
	assert.Nil(t, got.CertificateRef)
	require.NotNil(t, got.PhotoRef)
}

func TestTransition_BadDate(t *testing.T) {
	env := setupPossessionsTest(t)
	v := env.create(t, "P1")
	status, out := env.do(t, "PATCH", "/api/v1/possessions/transition/"+v.ID.String(), map[string]interface{}{
		"status":     "SURVEYED",
		"surveyDate": "yesterday",
	})
	assert.Equal(t, 400, status)
	assert.Contains(t, out.Error.Message, "surveyDate")
}

func TestUpdateCollector(t *testing.T) {
	env := setupPossessionsTest(t)
	v := env.create(t, "P1")
	path := "/api/v1/possessions/collector/" + v.ID.String()

	status, out := env.do(t, "PATCH", path, map[string]interface{}{"letterCollected": true, "collectorName": "Ayesha Malik"})
	assert.Equal(t, 400, status)
	assert.Contains(t, out.Error.Message, "collectorNic")

	status, out = env.do(t, "PATCH", path, map[string]interface{}{
		"letterCollected": true,
		"collectorName":   "Ayesha Malik",
		"collectorNic":    "35202-1234567-1",
	})
	require.Equal(t, 200, status, out.Error.Message)
	var got possvc.View
	require.NoError(t, json.Unmarshal(out.Data, &got))
	assert.True(t, got.LetterCollected)
	assert.NotNil(t, got.CollectionDate)
}

func TestBulkTransition(t *testing.T) {
	env := setupPossessionsTest(t)
	a := env.create(t, "P1")
	b := env.create(t, "P2")

	status, out := env.do(t, "POST", "/api/v1/possessions/bulk-transition", map[string]interface{}{
		"ids":    []string{a.ID.String(), b.ID.String(), "3b241101-e2bb-4255-8caf-4136c566a962"},
		"status": "ON_HOLD",
	})
	require.Equal(t, 200, status, out.Error.Message)
	var res possvc.BulkResult
	require.NoError(t, json.Unmarshal(out.Data, &res))
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 2, res.Modified)
	assert.Len(t, res.Errors, 1)

	status, _ = env.do(t, "POST", "/api/v1/possessions/bulk-transition", map[string]interface{}{
		"ids":    []string{"nope"},
		"status": "ON_HOLD",
	})
	assert.Equal(t, 400, status)
}

func TestValidateHandover_UsesCollaboratorTables(t *testing.T) {
	env := setupPossessionsTest(t)
	require.NoError(t, env.db.Create(&domain.Plot{PlotID: "P1", PlotNumber: "12-A", PossessionReadiness: domain.PlotReadinessReady}).Error)
	require.NoError(t, env.db.Create(&domain.File{FileID: "F-P1", FileNumber: "F-100", OwnerName: "Sana Iqbal", PaymentStatus: "pending"}).Error)
	v := env.create(t, "P1")

	status, out := env.do(t, "GET", "/api/v1/possessions/validate-handover/"+v.ID.String(), nil)
	require.Equal(t, 200, status)
	var hv possvc.HandoverValidation
	require.NoError(t, json.Unmarshal(out.Data, &hv))
	assert.False(t, hv.IsValid)

	missing := map[string]bool{}
	for _, f := range hv.MissingFields {
		missing[f.Field] = true
	}
	assert.False(t, missing["plotReadiness"])
	assert.True(t, missing["filePayment"])
	assert.True(t, missing["surveyDate"])
}

func TestUploadAttachment(t *testing.T) {
	env := setupPossessionsTest(t)
	v := env.create(t, "P1")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("slot", "photo"))
	part, err := w.CreateFormFile("file", "site photo.jpg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/v1/possessions/attachments/"+v.ID.String(), &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	status, out := env.send(t, req)
	require.Equal(t, 201, status, out.Error.Message)

	var got possvc.View
	require.NoError(t, json.Unmarshal(out.Data, &got))
	require.NotNil(t, got.PhotoRef)
	assert.True(t, strings.HasPrefix(*got.PhotoRef, "memory://possessions/POS-20250101-001/photo/"))
}

func TestGenerateCertificate_RequiresHandedOver(t *testing.T) {
	env := setupPossessionsTest(t)
	v := env.create(t, "P1")

	status, out := env.do(t, "POST", "/api/v1/possessions/certificate/"+v.ID.String(), nil)
	assert.Equal(t, 400, status)
	assert.Equal(t, CodeValidationFailed, out.Error.Details["code"])
}

func TestRemovePossession(t *testing.T) {
	env := setupPossessionsTest(t)
	v := env.create(t, "P1")

	status, _ := env.do(t, "DELETE", "/api/v1/possessions/remove/"+v.ID.String(), nil)
	require.Equal(t, 200, status)
	status, _ = env.do(t, "GET", "/api/v1/possessions/view-possession/"+v.ID.String(), nil)
	assert.Equal(t, 404, status)
}

func TestListPossessions_Pagination(t *testing.T) {
	env := setupPossessionsTest(t)
	for _, p := range []string{"P1", "P2", "P3"} {
		env.create(t, p)
	}
	status, out := env.do(t, "GET", "/api/v1/possessions/list-possessions?limit=2&status=requested", nil)
	require.Equal(t, 200, status, out.Error.Message)
	var items []possvc.View
	require.NoError(t, json.Unmarshal(out.Data, &items))
	assert.Len(t, items, 2)
	assert.EqualValues(t, 3, out.Metadata["total"])
	assert.EqualValues(t, 2, out.Metadata["pages"])

	status, out = env.do(t, "GET", "/api/v1/possessions/list-possessions?status=DONE&page=x", nil)
	assert.Equal(t, 400, status)
	assert.Contains(t, out.Error.Message, "page")
}

func TestTimelineAndStatistics(t *testing.T) {
	env := setupPossessionsTest(t)
	v := env.create(t, "P1")

	status, out := env.do(t, "GET", "/api/v1/possessions/timeline/"+v.ID.String(), nil)
	require.Equal(t, 200, status)
	var events []possessionreports.Event
	require.NoError(t, json.Unmarshal(out.Data, &events))
	require.NotEmpty(t, events)
	assert.Equal(t, possessionreports.EventInitiated, events[0].Type)
	assert.Equal(t, possessionreports.EventCurrentStatus, events[len(events)-1].Type)

	status, out = env.do(t, "GET", "/api/v1/possessions/statistics", nil)
	require.Equal(t, 200, status)
	var stats possessionreports.Statistics
	require.NoError(t, json.Unmarshal(out.Data, &stats))
	assert.EqualValues(t, 1, stats.Total)
	assert.EqualValues(t, 1, stats.ByStatus[domain.StatusRequested])
}

func TestNearby_RequiresCoordinates(t *testing.T) {
	env := setupPossessionsTest(t)
	status, out := env.do(t, "GET", "/api/v1/possessions/nearby?lat=31.5", nil)
	assert.Equal(t, 400, status)
	assert.Contains(t, out.Error.Message, "lon")

	status, _ = env.do(t, "GET", "/api/v1/possessions/nearby?lat=31.5&lon=74.3&maxDistance=1000", nil)
	assert.Equal(t, 200, status)
}

func TestOverdue(t *testing.T) {
	env := setupPossessionsTest(t)
	status, out := env.do(t, "POST", "/api/v1/possessions/create-possession", map[string]interface{}{
		"fileId":   "F-1",
		"plotId":   "P1",
		"initDate": "2024-11-01",
	})
	require.Equal(t, 201, status, out.Error.Message)
	env.create(t, "P2")

	status, out = env.do(t, "GET", "/api/v1/possessions/overdue?days=30", nil)
	require.Equal(t, 200, status)
	var overdue []possessionreports.OverduePossession
	require.NoError(t, json.Unmarshal(out.Data, &overdue))
	require.Len(t, overdue, 1)
	assert.Equal(t, "P1", overdue[0].PlotID)
}

func TestReport_CSV(t *testing.T) {
	env := setupPossessionsTest(t)
	env.create(t, "P1")

	resp, err := env.app.Test(httptest.NewRequest("GET", "/api/v1/possessions/report?format=csv", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	body, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "POS-20250101-001")

	status, _ := env.do(t, "GET", "/api/v1/possessions/report?format=xml", nil)
	assert.Equal(t, 400, status)
}
