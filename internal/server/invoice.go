package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	documentdomain "github.com/smallbiznis/invoicedoc/internal/document/domain"
	invoicedomain "github.com/smallbiznis/invoicedoc/internal/invoice/domain"
)

const maxUBLBytes = 10 << 20

type createInvoiceRequest struct {
	Name string `json:"name" binding:"max=255"`
}

type changeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.documentSvc.Create(c.Request.Context(), documentdomain.CreateRequest{
		Name: strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListInvoices(c *gin.Context) {
	pageSize, err := parseOptionalInt(c.Query("page_size"))
	if err != nil {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "invalid page_size"))
		return
	}

	resp, err := s.documentSvc.List(c.Request.Context(), documentdomain.ListRequest{
		PageToken: strings.TrimSpace(c.Query("page_token")),
		PageSize:  pageSize,
		Status:    strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetInvoice(c *gin.Context) {
	resp, err := s.documentSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListOperations(c *gin.Context) {
	ops, err := s.documentSvc.Operations(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ops})
}

func (s *Server) ApplyAction(c *gin.Context) {
	var raw invoicedomain.RawAction
	if err := c.ShouldBindJSON(&raw); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	c.Set("action_type", string(raw.Type))

	action, err := raw.Decode()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.documentSvc.Apply(c.Request.Context(), c.Param("id"), action)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ChangeStatus(c *gin.Context) {
	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("status", "required", "status is required"))
		return
	}
	c.Set("action_type", string(invoicedomain.ActionEditStatus))

	resp, err := s.documentSvc.ChangeStatus(c.Request.Context(), c.Param("id"), parseStatus(req.Status))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ValidateStatus(c *gin.Context) {
	target := strings.TrimSpace(c.Query("to"))
	if target == "" {
		AbortWithError(c, newValidationError("to", "required", "to is required"))
		return
	}

	report, err := s.documentSvc.ValidateTransition(c.Request.Context(), c.Param("id"), parseStatus(target))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (s *Server) ImportUBL(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxUBLBytes)
	resp, err := s.documentSvc.ImportUBL(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ExportUBL renders the document as UBL XML with the stored PDF attached.
func (s *Server) ExportUBL(c *gin.Context) {
	out, err := s.documentSvc.ExportUBL(c.Request.Context(), c.Param("id"), documentdomain.ExportRequest{})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(out))
}

func (s *Server) VerifyInvoice(c *gin.Context) {
	resp, err := s.documentSvc.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
