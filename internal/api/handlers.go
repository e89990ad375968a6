package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/roach88/claimledger/internal/claims"
	"github.com/roach88/claimledger/internal/store"
)

type createClaimRequest struct {
	Claimant     string   `json:"claimant"`
	PolicyNumber string   `json:"policy_number"`
	Documents    []string `json:"documents"`
}

type addDocumentRequest struct {
	DocumentRef string `json:"document_ref"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type createdResponse struct {
	ID claims.ID `json:"id"`
}

type listResponse struct {
	Claims []claims.Claim `json:"claims"`
	Next   claims.ID      `json:"next,omitempty"`
}

func (s *Server) healthz(c *gin.Context) {
	if s.pinger != nil {
		if err := s.pinger.Ping(c.Request.Context()); err != nil {
			abortWithError(c, http.StatusServiceUnavailable, string(claims.CodeStore), "store unreachable")
			return
		}
	}
	respondOK(c, http.StatusOK, gin.H{"healthy": true})
}

func (s *Server) claimID(c *gin.Context) (claims.ID, bool) {
	id, err := claims.ParseID(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return 0, false
	}
	return id, true
}

func badBody(c *gin.Context, err error) {
	abortWithError(c, http.StatusBadRequest, string(claims.CodeInvalidArgument), "malformed request body: "+err.Error())
}

func (s *Server) createClaim(c *gin.Context) {
	var req createClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	id, err := s.svc.CreateClaim(c.Request.Context(), caller(c), claims.Principal(req.Claimant), req.PolicyNumber, req.Documents)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Location", "/v1/claims/"+id.String())
	respondOK(c, http.StatusCreated, createdResponse{ID: id})
}

func (s *Server) getClaim(c *gin.Context) {
	id, ok := s.claimID(c)
	if !ok {
		return
	}
	claim, err := s.svc.GetClaim(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("ETag", strconv.Quote("v"+strconv.FormatUint(claim.Version, 10)))
	respondOK(c, http.StatusOK, claim)
}

func (s *Server) listClaims(c *gin.Context) {
	var after uint64
	if v := c.Query("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, string(claims.CodeInvalidArgument), "after must be a non-negative integer")
			return
		}
		after = n
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			abortWithError(c, http.StatusBadRequest, string(claims.CodeInvalidArgument), "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	list, err := s.svc.ListClaims(c.Request.Context(), claims.ID(after), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	resp := listResponse{Claims: list}
	if len(list) > 0 {
		resp.Next = list[len(list)-1].ID
	}
	respondOK(c, http.StatusOK, resp)
}

func (s *Server) addDocument(c *gin.Context) {
	id, ok := s.claimID(c)
	if !ok {
		return
	}
	var req addDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	if err := s.svc.AddDocument(c.Request.Context(), caller(c), id, req.DocumentRef); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) updateStatus(c *gin.Context) {
	id, ok := s.claimID(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	if err := s.svc.UpdateStatusByName(c.Request.Context(), caller(c), id, req.Status); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) claimNotifications(c *gin.Context) {
	if s.journal == nil {
		abortWithError(c, http.StatusNotImplemented, codeUnsupported, "the configured backend keeps no notification journal")
		return
	}
	id, ok := s.claimID(c)
	if !ok {
		return
	}
	if _, err := s.svc.GetClaim(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	entries, err := s.journal.ReadNotifications(c.Request.Context(), store.Filter{ClaimID: uint64(id)})
	if err != nil {
		s.logger.Error("read notifications", "claim_id", id, "error", err)
		abortWithError(c, http.StatusInternalServerError, string(claims.CodeStore), "store failure")
		return
	}
	respondOK(c, http.StatusOK, gin.H{"notifications": entries})
}
