// Facade endpoints, one per onboarding step.
//
//   - GET /run/autocf        (create hostname, poll in the background)
//   - GET /run/status        (verification and SSL summary)
//   - GET /run/delete_cf     (remove www and bare hostnames)
//   - GET /run/alb           (ALB host-header rule)
//   - GET /run/auth0         (Auth0 application URL sets)
//   - GET /run/nginx         (nginx server_name)
//   - GET /run/cors          (CORS_ORIGINS env files)
//   - GET /run/dbkp          (domain to agent mapping)
//   - GET /run/validate_dns  (CNAME and TXT checks)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/services"
	"github.com/tbourn/go-domain-mapper/internal/utils"
)

// pollHeader reports whether /run/autocf started a poll or joined one.
const pollHeader = "X-Poll"

// respond writes a registrar result, or the classified error.
func respond(c *gin.Context, res domain.Result, err error) {
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// RunAutocf godoc
// @ID          runAutocf
// @Summary     Onboard a domain on Cloudflare
// @Description Creates the custom hostname (www for an apex domain), returns the pending envelope with DNS instructions immediately, and polls SSL validation in the background. A second request while the poll runs joins it.
// @Tags        Run
// @Produce     json
// @Param       domain  query  string  true  "Customer domain"  example(portal.example.com)
// @Success     200  {object}  domain.ValidationEnvelope
// @Header      200  {string}  X-Poll  "started or joined"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid domain"
// @Failure     409  {object}  handlers.ErrorResponse  "Duplicate hostname"
// @Failure     503  {object}  handlers.ErrorResponse  "Cloudflare not configured"
// @Router      /run/autocf [get]
func (h *Handlers) RunAutocf(c *gin.Context) {
	if h.svc.Onboarding == nil {
		notConfigured(c, "cloudflare")
		return
	}
	d, okDomain := requireDomain(c)
	if !okDomain {
		return
	}
	res, err := h.svc.Onboarding.Start(c.Request.Context(), d)
	if err != nil {
		failErr(c, err)
		return
	}
	if res.Joined {
		c.Header(pollHeader, "joined")
	} else {
		c.Header(pollHeader, "started")
	}
	ok(c, http.StatusOK, res.Envelope)
}

// RunStatus godoc
// @ID          runStatus
// @Summary     Check custom hostname progress
// @Tags        Run
// @Produce     json
// @Param       domain  query  string  true  "Customer domain"
// @Success     200  {object}  domain.Result  "type is success when verified and SSL active, pending otherwise"
// @Failure     404  {object}  handlers.ErrorResponse  "Hostname not found"
// @Router      /run/status [get]
func (h *Handlers) RunStatus(c *gin.Context) {
	if h.svc.Onboarding == nil {
		notConfigured(c, "cloudflare")
		return
	}
	d, okDomain := requireDomain(c)
	if !okDomain {
		return
	}
	res, err := h.svc.Onboarding.Status(c.Request.Context(), d)
	respond(c, res, err)
}

// RunDeleteCF godoc
// @ID          runDeleteCF
// @Summary     Delete custom hostnames
// @Description Deletes the www and bare variants. The result type is error when any variant failed; details list each variant.
// @Tags        Run
// @Produce     json
// @Param       domain  query  string  true  "Customer domain"
// @Success     200  {object}  domain.Result
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /run/delete_cf [get]
func (h *Handlers) RunDeleteCF(c *gin.Context) {
	if h.svc.Onboarding == nil {
		notConfigured(c, "cloudflare")
		return
	}
	d, okDomain := requireDomain(c)
	if !okDomain {
		return
	}
	res, err := h.svc.Onboarding.Delete(c.Request.Context(), d)
	if err == nil && res.Type == domain.ResultError {
		c.JSON(http.StatusBadGateway, res)
		return
	}
	respond(c, res, err)
}

// RunALB godoc
// @ID          runALB
// @Summary     Add the domain to the ALB host-header rule
// @Tags        Run
// @Produce     json
// @Param       domain    query  string  true   "Customer domain"
// @Param       wait_ssl  query  bool    false  "Verify the CNAME and wait for SSL before updating"
// @Success     200  {object}  domain.Result  "status no_changes when already present"
// @Failure     409  {object}  handlers.ErrorResponse  "CNAME mismatch"
// @Failure     504  {object}  handlers.ErrorResponse  "SSL wait timed out"
// @Router      /run/alb [get]
func (h *Handlers) RunALB(c *gin.Context) {
	d, okDomain := requireDomain(c)
	if !okDomain {
		return
	}
	res, err := h.svc.Registrars.AddALBHost(c.Request.Context(), d, utils.BoolDefault(c.Query("wait_ssl"), false))
	respond(c, res, err)
}

// RunAuth0 godoc
// @ID          runAuth0
// @Summary     Manage Auth0 application URLs
// @Description Actions: add, remove, list, canonicalize, populate, add-all, remove-all, set-origins. dry_run reports the change without saving it.
// @Tags        Run
// @Produce     json
// @Param       action     query  string  true   "Action"  Enums(add, remove, list, canonicalize, populate, add-all, remove-all, set-origins)
// @Param       domain     query  string  false  "Domain, or full URL for add-all/remove-all"
// @Param       client_id  query  string  false  "Application client id (defaults to AUTH0_APP_CLIENT_ID)"
// @Param       origins    query  string  false  "Comma separated web origins for set-origins"
// @Param       dry_run    query  bool    false  "Do not PATCH"
// @Success     200  {object}  domain.Result
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /run/auth0 [get]
func (h *Handlers) RunAuth0(c *gin.Context) {
	req := services.Auth0Request{
		Action:   strings.TrimSpace(c.Query("action")),
		Domain:   strings.TrimSpace(c.Query("domain")),
		ClientID: strings.TrimSpace(c.Query("client_id")),
		Origins:  utils.SplitList(c.QueryArray("origins")...),
		DryRun:   utils.BoolDefault(c.Query("dry_run"), false),
	}
	if req.Action == "" {
		fail(c, http.StatusBadRequest, ErrCodeUnknownAction, "action query parameter is required")
		return
	}
	res, err := h.svc.Registrars.Auth0Action(c.Request.Context(), req)
	respond(c, res, err)
}

// RunNginx godoc
// @ID          runNginx
// @Summary     Add the domain to the nginx server_name
// @Tags        Run
// @Produce     json
// @Param       domain  query  string  true  "Customer domain"
// @Success     200  {object}  domain.Result
// @Failure     502  {object}  handlers.ErrorResponse  "nginx -t or reload failed"
// @Router      /run/nginx [get]
func (h *Handlers) RunNginx(c *gin.Context) {
	d, okDomain := requireDomain(c)
	if !okDomain {
		return
	}
	res, err := h.svc.Registrars.AddNginxDomain(c.Request.Context(), d)
	respond(c, res, err)
}

// RunCORS godoc
// @ID          runCORS
// @Summary     Add the domain to CORS_ORIGINS
// @Tags        Run
// @Produce     json
// @Param       domain  query  string  true  "Customer domain"
// @Success     200  {object}  domain.Result
// @Failure     502  {object}  handlers.ErrorResponse  "Process restart failed"
// @Router      /run/cors [get]
func (h *Handlers) RunCORS(c *gin.Context) {
	d, okDomain := requireDomain(c)
	if !okDomain {
		return
	}
	res, err := h.svc.Registrars.AddCORSOrigin(c.Request.Context(), d)
	respond(c, res, err)
}

// RunDBKP godoc
// @ID          runDBKP
// @Summary     Map a domain to an agent
// @Tags        Run
// @Produce     json
// @Param       domain    query  string  true   "Customer domain"
// @Param       agent_id  query  string  true   "Agent id"
// @Param       replace   query  bool    false  "Delete existing rows for the domain first"
// @Success     200  {object}  domain.Result
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /run/dbkp [get]
func (h *Handlers) RunDBKP(c *gin.Context) {
	d, okDomain := requireDomain(c)
	if !okDomain {
		return
	}
	res, err := h.svc.Registrars.RegisterMapping(c.Request.Context(), d,
		strings.TrimSpace(c.Query("agent_id")), utils.BoolDefault(c.Query("replace"), false))
	respond(c, res, err)
}

// RunValidateDNS godoc
// @ID          runValidateDNS
// @Summary     Check the domain's DNS records
// @Tags        Run
// @Produce     json
// @Param       domain  query  string  true  "Customer domain"
// @Success     200  {object}  dnscheck.Report
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /run/validate_dns [get]
func (h *Handlers) RunValidateDNS(c *gin.Context) {
	d, okDomain := requireDomain(c)
	if !okDomain {
		return
	}
	rep, err := h.svc.Registrars.ValidateDNS(c.Request.Context(), d)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, rep)
}
