package possessions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"estate-backend/internal/application/possessionreports"
	possvc "estate-backend/internal/application/possessions"
	"estate-backend/internal/constants"
	"estate-backend/internal/domain"
	"estate-backend/internal/middleware"
	"estate-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// DefaultMaxUploadBytes caps attachment uploads when Handlers.MaxUploadBytes is unset.
const DefaultMaxUploadBytes = 10 << 20

type Handlers struct {
	Service        *possvc.Service
	Reports        *possessionreports.Service
	MaxUploadBytes int64
}

type createRequest struct {
	FileID            string   `json:"fileId"`
	PlotID            string   `json:"plotId"`
	HandoverOfficerID *string  `json:"handoverOfficerId"`
	InitDate          *string  `json:"initDate"`
	Remarks           *string  `json:"remarks"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
}

// POST /api/v1/possessions/create-possession
func (h *Handlers) CreatePossession(c *fiber.Ctx) error {
	var body createRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	var fields []possvc.FieldError
	initDate := parseTime(&fields, "initDate", body.InitDate)
	if len(fields) > 0 {
		return writeError(c, &possvc.ValidationError{Fields: fields})
	}

	p, err := h.Service.Create(c.UserContext(), possvc.CreateInput{
		FileID:            body.FileID,
		PlotID:            body.PlotID,
		HandoverOfficerID: body.HandoverOfficerID,
		InitDate:          initDate,
		Remarks:           body.Remarks,
		Latitude:          body.Latitude,
		Longitude:         body.Longitude,
	}, actorID(c))
	if err != nil {
		return writeError(c, err)
	}
	return response.SuccessCreated(c, "Possession created successfully", possvc.NewView(p, h.now()), nil)
}

// GET /api/v1/possessions/view-possession/:id
func (h *Handlers) ViewPossession(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err)
	}
	p, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Possession fetched successfully", possvc.NewView(p, h.now()), nil)
}

// GET /api/v1/possessions/view-by-code/:code
func (h *Handlers) ViewByCode(c *fiber.Ctx) error {
	code := strings.TrimSpace(c.Params("code"))
	if code == "" {
		return response.Error(c, "code is required", 400, nil)
	}
	p, err := h.Service.GetByCode(c.UserContext(), code)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Possession fetched successfully", possvc.NewView(p, h.now()), nil)
}

// GET /api/v1/possessions/list-possessions?status=REQUESTED,SURVEYED&plotId=&page=&limit=
func (h *Handlers) ListPossessions(c *fiber.Ctx) error {
	var fields []possvc.FieldError
	f := possvc.ListFilter{
		PlotID:          c.Query("plotId"),
		FileID:          c.Query("fileId"),
		Statuses:        parseStatuses(c.Query("status")),
		LetterCollected: parseBool(&fields, "letterCollected", c.Query("letterCollected")),
		CollectorName:   strings.TrimSpace(c.Query("collectorName")),
		InitFrom:        parseTime(&fields, "initFrom", optional(c.Query("initFrom"))),
		InitTo:          parseTime(&fields, "initTo", optional(c.Query("initTo"))),
		MinDurationDays: parseIntPtr(&fields, "minDurationDays", c.Query("minDurationDays")),
		MaxDurationDays: parseIntPtr(&fields, "maxDurationDays", c.Query("maxDurationDays")),
		Page:            parseInt(&fields, "page", c.Query("page")),
		Limit:           parseInt(&fields, "limit", c.Query("limit")),
	}
	if len(fields) > 0 {
		return writeError(c, &possvc.ValidationError{Fields: fields})
	}
	page, err := h.Service.List(c.UserContext(), f)
	if err != nil {
		return writeError(c, err)
	}
	return response.Paginated(c, "Possessions fetched successfully", page.Items, response.Pagination{
		Total: page.Total,
		Page:  page.Page,
		Limit: page.Limit,
		Pages: page.Pages,
	})
}

type transitionRequest struct {
	Status            string  `json:"status"`
	SurveyPerson      *string `json:"surveyPerson"`
	SurveyDate        *string `json:"surveyDate"`
	HandoverDate      *string `json:"handoverDate"`
	HandoverOfficerID *string `json:"handoverOfficerId"`
	Remarks           *string `json:"remarks"`
	SurveyRemarks     *string `json:"surveyRemarks"`
	HandoverRemarks   *string `json:"handoverRemarks"`
	CertificateRef    *string `json:"certificateRef"`
	PhotoRef          *string `json:"photoRef"`
	OtherRef          *string `json:"otherRef"`
}

// PATCH /api/v1/possessions/transition/:id
func (h *Handlers) Transition(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err)
	}
	var body transitionRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	var fields []possvc.FieldError
	in := possvc.TransitionInput{
		SurveyPerson:      body.SurveyPerson,
		SurveyDate:        parseTime(&fields, "surveyDate", body.SurveyDate),
		HandoverDate:      parseTime(&fields, "handoverDate", body.HandoverDate),
		HandoverOfficerID: body.HandoverOfficerID,
		Remarks:           body.Remarks,
		SurveyRemarks:     body.SurveyRemarks,
		HandoverRemarks:   body.HandoverRemarks,
		CertificateRef:    body.CertificateRef,
		PhotoRef:          body.PhotoRef,
		OtherRef:          body.OtherRef,
	}
	if len(fields) > 0 {
		return writeError(c, &possvc.ValidationError{Fields: fields})
	}
	to := domain.PossessionStatus(strings.ToUpper(strings.TrimSpace(body.Status)))
	// Certificate references carry the same restriction as certificate uploads.
	if (to == domain.StatusHandedOver || body.CertificateRef != nil) && !handoverAllowed(c) {
		return response.Error(c, "User is Forbidden from performing this action", 403, nil)
	}

	p, err := h.Service.Transition(c.UserContext(), id, to, in, actorID(c))
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Possession status updated successfully", possvc.NewView(p, h.now()), nil)
}

// GET /api/v1/possessions/allowed-transitions/:id
func (h *Handlers) AllowedTransitions(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err)
	}
	at, err := h.Service.AllowedTransitions(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Allowed transitions fetched successfully", at, nil)
}

type collectorRequest struct {
	CollectorName   *string `json:"collectorName"`
	CollectorNIC    *string `json:"collectorNic"`
	LetterCollected bool    `json:"letterCollected"`
	CollectionDate  *string `json:"collectionDate"`
}

// PATCH /api/v1/possessions/collector/:id
func (h *Handlers) UpdateCollector(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err)
	}
	var body collectorRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	var fields []possvc.FieldError
	date := parseTime(&fields, "collectionDate", body.CollectionDate)
	if len(fields) > 0 {
		return writeError(c, &possvc.ValidationError{Fields: fields})
	}
	p, err := h.Service.UpdateCollectorInfo(c.UserContext(), id, possvc.CollectorInput{
		CollectorName:  body.CollectorName,
		CollectorNIC:   body.CollectorNIC,
		Collected:      body.LetterCollected,
		CollectionDate: date,
	}, actorID(c))
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Collector information updated successfully", possvc.NewView(p, h.now()), nil)
}

type bulkRequest struct {
	IDs     []string `json:"ids"`
	Status  string   `json:"status"`
	Remarks *string  `json:"remarks"`
}

// POST /api/v1/possessions/bulk-transition
func (h *Handlers) BulkTransition(c *fiber.Ctx) error {
	var body bulkRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	ids := make([]uuid.UUID, 0, len(body.IDs))
	var fields []possvc.FieldError
	for _, raw := range body.IDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			fields = append(fields, possvc.FieldError{Field: "ids", Message: fmt.Sprintf("%q is not a valid id", raw)})
			continue
		}
		ids = append(ids, id)
	}
	if len(fields) > 0 {
		return writeError(c, &possvc.ValidationError{Fields: fields})
	}
	to := domain.PossessionStatus(strings.ToUpper(strings.TrimSpace(body.Status)))
	if to == domain.StatusHandedOver && !handoverAllowed(c) {
		return response.Error(c, "User is Forbidden from performing this action", 403, nil)
	}

	res, err := h.Service.BulkTransition(c.UserContext(), ids, to, body.Remarks, actorID(c))
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Bulk transition processed", res, nil)
}

// GET /api/v1/possessions/validate-handover/:id
func (h *Handlers) ValidateHandover(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err)
	}
	v, err := h.Service.ValidateHandover(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Handover validation completed", v, nil)
}

// POST /api/v1/possessions/attachments/:id (multipart: slot, file)
func (h *Handlers) UploadAttachment(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err)
	}
	slot := strings.ToLower(strings.TrimSpace(c.FormValue("slot")))
	fh, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, "file is required", 400, nil)
	}
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	if fh.Size > limit {
		return writeError(c, &possvc.ValidationError{Fields: []possvc.FieldError{{
			Field:   "file",
			Message: fmt.Sprintf("must be at most %d bytes", limit),
		}}})
	}
	if slot == domain.SlotCertificate && !handoverAllowed(c) {
		return response.Error(c, "User is Forbidden from performing this action", 403, nil)
	}
	f, err := fh.Open()
	if err != nil {
		return writeError(c, err)
	}
	defer f.Close()
	body, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return writeError(c, err)
	}

	p, err := h.Service.AttachDocument(c.UserContext(), id, possvc.AttachmentInput{
		Slot:        slot,
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        body,
	}, actorID(c))
	if err != nil {
		return writeError(c, err)
	}
	return response.SuccessCreated(c, "Attachment uploaded successfully", possvc.NewView(p, h.now()), nil)
}

type certificateRequest struct {
	DocumentRef *string `json:"documentRef"`
	Notes       *string `json:"notes"`
}

// POST /api/v1/possessions/certificate/:id
func (h *Handlers) GenerateCertificate(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err)
	}
	var body certificateRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return response.Error(c, "Invalid request body", 400, nil)
		}
	}
	cert, err := h.Service.GenerateHandoverCertificate(c.UserContext(), id, possvc.CertificateInput{
		DocumentRef: body.DocumentRef,
		Notes:       body.Notes,
	}, actorID(c))
	if err != nil {
		return writeError(c, err)
	}
	return response.SuccessCreated(c, "Handover certificate generated successfully", cert, nil)
}

// DELETE /api/v1/possessions/remove/:id
func (h *Handlers) RemovePossession(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.Service.Delete(c.UserContext(), id, actorID(c)); err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Possession removed successfully", fiber.Map{"id": id}, nil)
}

// GET /api/v1/possessions/timeline/:id
func (h *Handlers) Timeline(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err)
	}
	events, err := h.Reports.Timeline(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Possession timeline fetched successfully", slices.Collect(events), nil)
}

// GET /api/v1/possessions/statistics?from=&to=
func (h *Handlers) Statistics(c *fiber.Ctx) error {
	var fields []possvc.FieldError
	from := parseTime(&fields, "from", optional(c.Query("from")))
	to := parseTime(&fields, "to", optional(c.Query("to")))
	if len(fields) > 0 {
		return writeError(c, &possvc.ValidationError{Fields: fields})
	}
	stats, err := h.Reports.Statistics(c.UserContext(), from, to)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Possession statistics fetched successfully", stats, nil)
}

// GET /api/v1/possessions/nearby?lat=&lon=&maxDistance=
func (h *Handlers) Nearby(c *fiber.Ctx) error {
	var fields []possvc.FieldError
	lat := parseFloat(&fields, "lat", c.Query("lat"), true)
	lon := parseFloat(&fields, "lon", c.Query("lon"), true)
	maxDistance := 1000.0
	if c.Query("maxDistance") != "" {
		maxDistance = parseFloat(&fields, "maxDistance", c.Query("maxDistance"), true)
	}
	if len(fields) > 0 {
		return writeError(c, &possvc.ValidationError{Fields: fields})
	}
	nearby, err := h.Reports.ProximitySearch(c.UserContext(), lat, lon, maxDistance)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Nearby possessions fetched successfully", nearby, nil)
}

// GET /api/v1/possessions/overdue?days=
func (h *Handlers) Overdue(c *fiber.Ctx) error {
	var fields []possvc.FieldError
	days := parseInt(&fields, "days", c.Query("days"))
	if len(fields) > 0 {
		return writeError(c, &possvc.ValidationError{Fields: fields})
	}
	overdue, err := h.Reports.Overdue(c.UserContext(), days)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Overdue possessions fetched successfully", overdue, nil)
}

// GET /api/v1/possessions/report?format=csv
func (h *Handlers) Report(c *fiber.Ctx) error {
	var fields []possvc.FieldError
	f := possessionreports.ReportFilter{
		PlotID:          c.Query("plotId"),
		FileID:          c.Query("fileId"),
		Statuses:        parseStatuses(c.Query("status")),
		LetterCollected: parseBool(&fields, "letterCollected", c.Query("letterCollected")),
		InitFrom:        parseTime(&fields, "initFrom", optional(c.Query("initFrom"))),
		InitTo:          parseTime(&fields, "initTo", optional(c.Query("initTo"))),
	}
	format := strings.ToLower(c.Query("format", "json"))
	if format != "json" && format != "csv" {
		fields = append(fields, possvc.FieldError{Field: "format", Message: "must be json or csv"})
	}
	if len(fields) > 0 {
		return writeError(c, &possvc.ValidationError{Fields: fields})
	}
	rows, err := h.Reports.Report(c.UserContext(), f)
	if err != nil {
		return writeError(c, err)
	}
	if format == "json" {
		return response.Success(c, "Possession report generated successfully", rows, fiber.Map{"count": len(rows)})
	}

	var buf bytes.Buffer
	if err := possessionreports.WriteCSV(&buf, rows); err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="possessions-%s.csv"`, time.Now().UTC().Format("20060102")))
	return c.Send(buf.Bytes())
}

func (h *Handlers) now() time.Time {
	if h.Service != nil && h.Service.Now != nil {
		return h.Service.Now()
	}
	return time.Now()
}

func actorID(c *fiber.Ctx) string {
	if u := middleware.GetUser(c); u != nil {
		return u.UserID
	}
	return ""
}

// handoverAllowed reports whether the session role may complete handovers.
func handoverAllowed(c *fiber.Ctx) bool {
	u := middleware.GetUser(c)
	return u != nil && constants.AllowedRole(constants.HandoverPossessions, u.Role)
}

func pathID(c *fiber.Ctx) (uuid.UUID, error) {
	raw := c.Params("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &possvc.ValidationError{Fields: []possvc.FieldError{{Field: "id", Message: "must be a valid id"}}}
	}
	return id, nil
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// parseTime accepts RFC 3339 timestamps or plain dates (midnight UTC).
func parseTime(fields *[]possvc.FieldError, field string, raw *string) *time.Time {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	s := strings.TrimSpace(*raw)
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	*fields = append(*fields, possvc.FieldError{Field: field, Message: "must be a date (YYYY-MM-DD) or RFC 3339 timestamp"})
	return nil
}

func parseStatuses(raw string) []domain.PossessionStatus {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []domain.PossessionStatus
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, domain.PossessionStatus(strings.ToUpper(s)))
		}
	}
	return out
}

func parseBool(fields *[]possvc.FieldError, field, raw string) *bool {
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*fields = append(*fields, possvc.FieldError{Field: field, Message: "must be true or false"})
		return nil
	}
	return &b
}

func parseInt(fields *[]possvc.FieldError, field, raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*fields = append(*fields, possvc.FieldError{Field: field, Message: "must be a whole number"})
	}
	return n
}

func parseIntPtr(fields *[]possvc.FieldError, field, raw string) *int {
	if raw == "" {
		return nil
	}
	n := parseInt(fields, field, raw)
	return &n
}

func parseFloat(fields *[]possvc.FieldError, field, raw string, required bool) float64 {
	if raw == "" {
		if required {
			*fields = append(*fields, possvc.FieldError{Field: field, Message: "is required"})
		}
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*fields = append(*fields, possvc.FieldError{Field: field, Message: "must be a number"})
	}
	return f
}
