// Mapping and poll endpoints:
//   - GET    /mappings          (list, paginated, ETag support)
//   - GET    /mappings/{domain} (newest row for a domain)
//   - DELETE /mappings/{domain} (remove every row for a domain)
//   - GET    /polls             (running background polls)
//   - DELETE /polls/{domain}    (cancel one poll)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/domainname"
	"github.com/tbourn/go-domain-mapper/internal/services"
)

// ListMappingsResponse wraps a page of mappings and pagination information.
type ListMappingsResponse struct {
	Mappings   []domain.DomainAgentMapping `json:"mappings"`
	Pagination Pagination                  `json:"pagination"`
}

// ListPollsResponse lists the polls still running.
type ListPollsResponse struct {
	Polls []services.PollInfo `json:"polls"`
}

// ListMappings godoc
// @ID          listMappings
// @Summary     List domain mappings (paginated)
// @Description Returns a page of mappings, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Mappings
// @Produce     json
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListMappingsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /mappings [get]
func (h *Handlers) ListMappings(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.svc.Mappings.Stats(ctx); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"mappings:%d:%d:%d:%d"`, count, ts, page, pageSize)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.svc.Mappings.ListPage(ctx, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.DomainAgentMapping{}
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListMappingsResponse{
		Mappings: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetMapping godoc
// @ID          getMapping
// @Summary     Get the mapping for a domain
// @Tags        Mappings
// @Produce     json
// @Param       domain  path  string  true  "Domain"  example(portal.example.com)
// @Success     200  {object}  domain.DomainAgentMapping
// @Failure     404  {object}  handlers.ErrorResponse  "Mapping not found"
// @Router      /mappings/{domain} [get]
func (h *Handlers) GetMapping(c *gin.Context) {
	m, err := h.svc.Mappings.Get(c.Request.Context(), c.Param("domain"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// DeleteMapping godoc
// @ID          deleteMapping
// @Summary     Delete every mapping row for a domain
// @Tags        Mappings
// @Param       domain  path  string  true  "Domain"
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Mapping not found"
// @Router      /mappings/{domain} [delete]
func (h *Handlers) DeleteMapping(c *gin.Context) {
	if _, err := h.svc.Mappings.Remove(c.Request.Context(), c.Param("domain")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// ListPolls godoc
// @ID          listPolls
// @Summary     List running SSL validation polls
// @Tags        Polls
// @Produce     json
// @Success     200  {object}  handlers.ListPollsResponse
// @Router      /polls [get]
func (h *Handlers) ListPolls(c *gin.Context) {
	polls := h.svc.Polls.Active()
	if polls == nil {
		polls = []services.PollInfo{}
	}
	ok(c, http.StatusOK, ListPollsResponse{Polls: polls})
}

// CancelPoll godoc
// @ID          cancelPoll
// @Summary     Cancel the poll for a domain
// @Description Cancelling stops polling only; the custom hostname stays and nothing is written.
// @Tags        Polls
// @Param       domain  path  string  true  "Domain"
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "No running poll"
// @Router      /polls/{domain} [delete]
func (h *Handlers) CancelPoll(c *gin.Context) {
	d := domainname.Normalize(c.Param("domain"))
	if !h.svc.Polls.Cancel(d) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no running poll for "+d)
		return
	}
	noContent(c)
}
