// Poll HTTP handlers.
//
// This file exposes REST endpoints for poll resources:
//   - POST   /polls                           (create)
//   - GET    /polls                           (owner dashboard, paginated, ETag support)
//   - GET    /polls/summary                   (owner results overview)
//   - GET    /polls/{shareableId}             (public view)
//   - POST   /polls/{shareableId}/vote        (public, guarded)
//   - PATCH  /polls/{shareableId}/deactivate  (owner)
//   - GET    /polls/{shareableId}/results     (owner analytics)
//   - GET    /polls/{shareableId}/export      (owner, CSV or JSON)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-poll-backend/internal/domain"
	"github.com/tbourn/go-poll-backend/internal/repo"
	"github.com/tbourn/go-poll-backend/internal/services"
	"github.com/tbourn/go-poll-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// PollService defines poll lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type PollService interface {
	// Create validates and persists a new poll owned by creatorID.
	Create(ctx context.Context, creatorID, creatorIP, question string, options []string, durationMinutes int) (*domain.Poll, error)
	// GetByShareableID returns the poll behind a public shareable id, with
	// lazy expiry enforced.
	GetByShareableID(ctx context.Context, shareableID string) (*domain.Poll, error)
	// Deactivate closes a poll manually on behalf of its owner.
	Deactivate(ctx context.Context, creatorID, shareableID string) (*domain.Poll, services.DeactivateOutcome, error)
	// Results computes the owner-only analytics view.
	Results(ctx context.Context, creatorID, shareableID string) (*services.Results, error)
	// Summary returns the compact multi-poll results overview.
	Summary(ctx context.Context, creatorID string, limit int, sortBy string) ([]services.PollSummary, error)
	// Export returns the poll plus its export envelope.
	Export(ctx context.Context, creatorID, shareableID string) (*domain.Poll, *services.ExportData, error)
	// ListPage returns a page of the creator's polls matching the filter.
	ListPage(ctx context.Context, creatorID string, f repo.PollFilter, page, pageSize int) ([]domain.Poll, int64, error)
	// Stats returns the creator's poll count and latest update timestamp,
	// the change-detection inputs for conditional list responses.
	Stats(ctx context.Context, creatorID string) (int64, *time.Time, error)
	// ShareableURL builds the public link for a poll.
	ShareableURL(shareableID string) string
}

// VoteService defines the vote pipeline consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type VoteService interface {
	// Vote casts one vote and returns the updated snapshot.
	Vote(ctx context.Context, shareableID string, optionIndex int, voterID string) (*domain.Snapshot, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for polls and votes. It depends on abstract
// service interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	pollSvc PollService
	voteSvc VoteService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(pollSvc PollService, voteSvc VoteService) *Handlers {
	return &Handlers{pollSvc: pollSvc, voteSvc: voteSvc}
}

// userID extracts the creator identity from Gin context (set by upstream
// middleware). If absent, it falls back to the "X-User-ID" header. An empty
// result means the request carries no principal; owner endpoints reject it.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

// requireUserID resolves the principal or aborts with 401.
func requireUserID(c *gin.Context) (string, bool) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "X-User-ID header required")
		return "", false
	}
	return uid, true
}

//
// DTOs
//

// CreatePollRequest is the JSON payload for creating a poll.
type CreatePollRequest struct {
	// Question is the poll question (1–500 chars).
	Question string `json:"question" example:"Tea or coffee?"`
	// Options are the answer choices (2–6, each 1–200 chars, unique).
	Options []string `json:"options" example:"Tea,Coffee"`
	// DurationMinutes is the voting window (1–43200).
	DurationMinutes int `json:"durationMinutes" example:"1440"`
}

// VoteRequest is the JSON payload for casting a vote.
type VoteRequest struct {
	// OptionIndex is the zero-based index of the chosen option.
	OptionIndex *int `json:"optionIndex" binding:"required" example:"0"`
}

// PollResponse is the public poll representation: the derived snapshot plus
// the shareable link.
type PollResponse struct {
	*domain.Snapshot
	ShareableURL string `json:"shareableUrl"`
}

// DeactivateResponse reports the outcome of a manual deactivation.
type DeactivateResponse struct {
	Message string        `json:"message"`
	Poll    *PollResponse `json:"poll"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListPollsResponse wraps a page of polls and pagination information.
type ListPollsResponse struct {
	Polls      []PollResponse `json:"polls"`
	Pagination Pagination     `json:"pagination"`
}

//
// Helpers
//

// pollResponse derives the public representation of a poll at the current time.
func (h *Handlers) pollResponse(p *domain.Poll) *PollResponse {
	return &PollResponse{
		Snapshot:     domain.BuildSnapshot(p, time.Now().UTC()),
		ShareableURL: h.pollSvc.ShareableURL(p.ShareableID),
	}
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 6
		maxPageSize     = 50
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// isValidationErr reports whether err is one of the creation-validation
// sentinels (all client-correctable 400s).
func isValidationErr(err error) bool {
	for _, v := range []error{
		services.ErrQuestionRequired,
		services.ErrQuestionTooLong,
		services.ErrOptionCount,
		services.ErrOptionEmpty,
		services.ErrOptionTooLong,
		services.ErrOptionDuplicate,
		services.ErrDurationRange,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// failService maps a service-layer error to its HTTP status and stable code.
func failService(c *gin.Context, err error) {
	switch {
	case isValidationErr(err):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrPollNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "poll not found")
	case errors.Is(err, services.ErrPollExpired), errors.Is(err, services.ErrPollInactive):
		fail(c, http.StatusBadRequest, ErrCodePollClosed, err.Error())
	case errors.Is(err, services.ErrInvalidOption):
		fail(c, http.StatusBadRequest, ErrCodeInvalidOption, err.Error())
	case errors.Is(err, services.ErrDuplicateVote):
		fail(c, http.StatusBadRequest, ErrCodeDuplicateVote, err.Error())
	case errors.Is(err, services.ErrStoreUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

//
// Handlers
//

// CreatePoll godoc
// @ID          createPoll
// @Summary     Create a new poll
// @Description Creates a poll for the current user and returns the poll with its shareable URL.
// @Tags        Polls
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true "User ID"  example(user123)
// @Param       body       body    handlers.CreatePollRequest  true  "Create poll payload"
//
// @Success     201  {object}  handlers.PollResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing principal"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /polls [post]
func (h *Handlers) CreatePoll(c *gin.Context) {
	uid, authorized := requireUserID(c)
	if !authorized {
		return
	}

	var req CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	p, err := h.pollSvc.Create(c.Request.Context(), uid, c.ClientIP(), req.Question, req.Options, req.DurationMinutes)
	if err != nil {
		if isValidationErr(err) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "could not create poll")
		return
	}
	ok(c, http.StatusCreated, h.pollResponse(p))
}

// GetPoll godoc
// @ID          getPoll
// @Summary     Get a poll by shareable id
// @Description Returns the public view of a poll, with expiry enforced.
// @Tags        Polls
// @Produce     json
//
// @Param       shareableId  path  string  true  "Shareable poll ID"  example(a1b2c3d4)
//
// @Success     200  {object}  handlers.PollResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Poll not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /polls/{shareableId} [get]
func (h *Handlers) GetPoll(c *gin.Context) {
	p, err := h.pollSvc.GetByShareableID(c.Request.Context(), c.Param("shareableId"))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, h.pollResponse(p))
}

// Vote godoc
// @ID          vote
// @Summary     Cast a vote
// @Description Casts one vote for an option of the poll. One vote per client identity per poll.
// @Tags        Polls
// @Accept      json
// @Produce     json
//
// @Param       shareableId  path  string                true  "Shareable poll ID"  example(a1b2c3d4)
// @Param       body         body  handlers.VoteRequest  true  "Vote payload"
//
// @Success     200  {object}  domain.Snapshot
// @Failure     400  {object}  handlers.ErrorResponse  "Validation, duplicate, or closed poll"
// @Failure     404  {object}  handlers.ErrorResponse  "Poll not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /polls/{shareableId}/vote [post]
func (h *Handlers) Vote(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OptionIndex == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "optionIndex is required")
		return
	}

	snap, err := h.voteSvc.Vote(c.Request.Context(), c.Param("shareableId"), *req.OptionIndex, c.ClientIP())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

// DeactivatePoll godoc
// @ID          deactivatePoll
// @Summary     Deactivate a poll
// @Description Closes a poll manually. Idempotent: repeating the call succeeds; a naturally expired poll reports 410.
// @Tags        Polls
// @Produce     json
//
// @Param       X-User-ID    header  string  true  "User ID"            example(user123)
// @Param       shareableId  path    string  true  "Shareable poll ID"  example(a1b2c3d4)
//
// @Success     200  {object}  handlers.DeactivateResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing principal"
// @Failure     404  {object}  handlers.ErrorResponse  "Poll not found"
// @Failure     410  {object}  handlers.ErrorResponse  "Poll already expired"
// @Router      /polls/{shareableId}/deactivate [patch]
func (h *Handlers) DeactivatePoll(c *gin.Context) {
	uid, authorized := requireUserID(c)
	if !authorized {
		return
	}

	p, outcome, err := h.pollSvc.Deactivate(c.Request.Context(), uid, c.Param("shareableId"))
	if err != nil {
		failService(c, err)
		return
	}

	switch outcome {
	case services.AlreadyExpired:
		fail(c, http.StatusGone, ErrCodePollClosed, "poll has already expired")
	case services.AlreadyDeactivated:
		ok(c, http.StatusOK, DeactivateResponse{
			Message: "poll was already deactivated",
			Poll:    h.pollResponse(p),
		})
	default:
		ok(c, http.StatusOK, DeactivateResponse{
			Message: "poll deactivated successfully",
			Poll:    h.pollResponse(p),
		})
	}
}

// PollResults godoc
// @ID          pollResults
// @Summary     Poll analytics (owner)
// @Description Returns the full analytics view for a poll owned by the current user.
// @Tags        Results
// @Produce     json
//
// @Param       X-User-ID    header  string  true  "User ID"            example(user123)
// @Param       shareableId  path    string  true  "Shareable poll ID"  example(a1b2c3d4)
//
// @Success     200  {object}  services.Results
// @Failure     401  {object}  handlers.ErrorResponse  "Missing principal"
// @Failure     404  {object}  handlers.ErrorResponse  "Poll not found"
// @Router      /polls/{shareableId}/results [get]
func (h *Handlers) PollResults(c *gin.Context) {
	uid, authorized := requireUserID(c)
	if !authorized {
		return
	}

	res, err := h.pollSvc.Results(c.Request.Context(), uid, c.Param("shareableId"))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// ListPolls godoc
// @ID          listPolls
// @Summary     List polls (owner dashboard)
// @Description Returns a page of the user's polls with status filter, search, and sorting. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Polls
// @Produce     json
//
// @Param       X-User-ID      header  string  true  "User ID"                     example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                 minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"              minimum(1) maximum(50) default(6)
// @Param       status         query   string  false "all|active|expired|inactive" default(all)
// @Param       search         query   string  false "Substring match on question or option text"
// @Param       sort           query   string  false "newest|oldest|most-votes|least-votes" default(newest)
//
// @Success     200  {object} handlers.ListPollsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Missing principal"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /polls [get]
func (h *Handlers) ListPolls(c *gin.Context) {
	uid, authorized := requireUserID(c)
	if !authorized {
		return
	}
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)
	f := repo.PollFilter{
		Status: c.DefaultQuery("status", "all"),
		Search: strings.TrimSpace(c.Query("search")),
		Sort:   c.DefaultQuery("sort", "newest"),
	}

	// ETag pre-check (best effort).
	if count, maxTS, err := h.pollSvc.Stats(ctx, uid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"polls:%s:%d:%d:%s:%s:%s:%d:%d"`,
			uid, count, ts, f.Status, f.Search, f.Sort, page, pageSize)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	// Fetch page.
	items, total, err := h.pollSvc.ListPage(ctx, uid, f, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list polls")
		return
	}

	polls := make([]PollResponse, len(items))
	for i := range items {
		polls[i] = *h.pollResponse(&items[i])
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListPollsResponse{
		Polls: polls,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// PollsSummary godoc
// @ID          pollsSummary
// @Summary     Results overview (owner)
// @Description Returns a compact results summary over the user's most recent polls.
// @Tags        Results
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"        example(user123)
// @Param       limit      query   int     false "Max polls"      minimum(1) maximum(50) default(10)
// @Param       sort       query   string  false "newest|oldest|most-votes|least-votes" default(newest)
//
// @Success     200  {array}   services.PollSummary
// @Failure     401  {object}  handlers.ErrorResponse  "Missing principal"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /polls/summary [get]
func (h *Handlers) PollsSummary(c *gin.Context) {
	uid, authorized := requireUserID(c)
	if !authorized {
		return
	}

	limit := utils.AtoiDefault(c.Query("limit"), 10)
	sum, err := h.pollSvc.Summary(c.Request.Context(), uid, limit, c.DefaultQuery("sort", "newest"))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not build summary")
		return
	}
	ok(c, http.StatusOK, sum)
}

// ExportPoll godoc
// @ID          exportPoll
// @Summary     Export poll results (owner)
// @Description Downloads a poll's results as CSV or JSON.
// @Tags        Results
// @Produce     json
// @Produce     text/csv
//
// @Param       X-User-ID    header  string  true  "User ID"            example(user123)
// @Param       shareableId  path    string  true  "Shareable poll ID"  example(a1b2c3d4)
// @Param       format       query   string  false "csv|json"           default(json)
//
// @Success     200  {object}  services.ExportData
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown format"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing principal"
// @Failure     404  {object}  handlers.ErrorResponse  "Poll not found"
// @Router      /polls/{shareableId}/export [get]
func (h *Handlers) ExportPoll(c *gin.Context) {
	uid, authorized := requireUserID(c)
	if !authorized {
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "json"))
	if format != "json" && format != "csv" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "format must be csv or json")
		return
	}

	p, data, err := h.pollSvc.Export(c.Request.Context(), uid, c.Param("shareableId"))
	if err != nil {
		failService(c, err)
		return
	}

	filename := "poll-" + p.ShareableID + "-results." + format
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)

	if format == "json" {
		ok(c, http.StatusOK, data)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"Option", "Votes", "Percentage"})
	for _, r := range data.Results {
		_ = w.Write([]string{r.Text, strconv.Itoa(r.Votes), strconv.Itoa(r.Percentage) + "%"})
	}
	w.Flush()
}
