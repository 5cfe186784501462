// Package httpapi exposes the ledger, the notifier and the document store
// over HTTP.
package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/HgH7/installment-tracker-2.0/internal/export"
	interfaces "github.com/HgH7/installment-tracker-2.0/internal/interfaces"
	"github.com/HgH7/installment-tracker-2.0/internal/ledger"
	"github.com/HgH7/installment-tracker-2.0/internal/models"
	"github.com/HgH7/installment-tracker-2.0/internal/notifier"
	"github.com/HgH7/installment-tracker-2.0/internal/schedule"
)

type ServerConfig struct {
	StartTime   time.Time                  `validate:"required"`
	Ledger      *ledger.Ledger             `validate:"required"`
	Notifier    *notifier.Notifier         `validate:"required"`
	Attachments interfaces.AttachmentStore `validate:"required"`
	Logger      *log.Logger
}

type Server struct {
	Config ServerConfig
	logger *log.Logger
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if err := validator.New().Struct(cfg); err != nil {
		err = fmt.Errorf("bad config: %w", err)
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{Config: cfg, logger: logger}, nil
}

func (e *Server) GetRouterEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), e.RequestLogger(), e.ErrorHandler())

	r.GET("/health", e.HandleHealth())

	r.GET("/customers", e.HandleSearchCustomers())
	r.POST("/customers", e.HandleAddCustomer())
	r.GET("/customers/:key", e.HandleGetCustomer())
	r.PATCH("/customers/:key", e.HandleUpdateCustomer())
	r.PUT("/customers/:key", e.HandleEditCustomer())
	r.DELETE("/customers/:key", e.HandleDeleteCustomer())

	r.PUT("/customers/:key/installments/:date", e.HandleUpdateInstallment())
	r.POST("/customers/:key/installments/:date/paid", e.HandleMarkPaid())
	r.DELETE("/customers/:key/installments/:date/paid", e.HandleUnmarkPaid())
	r.POST("/customers/:key/installments/:date/remind", e.HandleRemind())

	r.GET("/customers/:key/attachments", e.HandleListAttachments())
	r.POST("/customers/:key/attachments", e.HandleUploadAttachments())
	r.GET("/customers/:key/attachments/:name", e.HandleDownloadAttachment())
	r.DELETE("/customers/:key/attachments/:name", e.HandleDeleteAttachment())

	r.GET("/backups", e.HandleListBackups())
	r.POST("/backups", e.HandleCreateBackup())
	r.POST("/backups/:id/restore", e.HandleRestoreBackup())

	r.GET("/notifications", e.HandleGetNotifications())
	r.PUT("/notifications", e.HandleSetNotifications())
	r.GET("/notifications/due", e.HandleDueInstallments())
	r.POST("/notifications/scan", e.HandleScan())

	r.GET("/export.xlsx", e.HandleExport())

	return r
}

func (e *Server) HandleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"result": true,
			"status": "ok",
			"uptime": time.Since(e.Config.StartTime).Round(time.Second).String(),
		})
	}
}

func (e *Server) HandleSearchCustomers() gin.HandlerFunc {
	return func(c *gin.Context) {
		customers, err := e.Config.Ledger.Search(c.Request.Context(), c.Query("q"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, e.buildJSONResponse(true, "customers", toCustomerViews(customers)))
	}
}

func (e *Server) HandleAddCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req customerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		customer, err := schedule.NewCustomer(schedule.NewCustomerInput{
			Name:         req.Name,
			Phone:        req.Phone,
			Amount:       req.Amount,
			Installments: req.Installments,
			StartDate:    req.StartDate,
		}, e.Config.Ledger.Policy())
		if err != nil {
			c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}

		saved, err := e.Config.Ledger.AppendCustomer(c.Request.Context(), customer)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, e.buildJSONResponse(true, "customer", toCustomerView(saved)))
	}
}

func (e *Server) HandleGetCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		customer, err := e.Config.Ledger.Get(c.Request.Context(), c.Param("key"))
		if err != nil {
			c.Error(err)
			return
		}
		today := e.Config.Ledger.Today()
		c.JSON(http.StatusOK, gin.H{
			"result":    true,
			"customer":  toCustomerView(customer),
			"summary":   schedule.Summarize(customer),
			"statement": schedule.Statement(customer, today),
		})
	}
}

func (e *Server) HandleUpdateCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req patchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		updated, err := e.Config.Ledger.UpdateCustomer(c.Request.Context(), c.Param("key"), ledger.Patch{
			Name:             req.Name,
			Phone:            req.Phone,
			Amount:           req.Amount,
			Installments:     req.Installments,
			InstallmentValue: req.InstallmentValue,
			StartDate:        req.StartDate,
			InstallmentDates: req.InstallmentDates,
		})
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, e.buildJSONResponse(true, "customer", toCustomerView(updated)))
	}
}

func (e *Server) HandleEditCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req customerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		updated, err := e.Config.Ledger.EditCustomer(c.Request.Context(), c.Param("key"), ledger.Edit{
			Name:         req.Name,
			Phone:        req.Phone,
			Amount:       req.Amount,
			Installments: req.Installments,
			StartDate:    req.StartDate,
		})
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, e.buildJSONResponse(true, "customer", toCustomerView(updated)))
	}
}

// HandleDeleteCustomer removes the customer and their documents. A failure to
// remove documents is logged and does not undo the delete.
func (e *Server) HandleDeleteCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		removed, err := e.Config.Ledger.DeleteCustomer(c.Request.Context(), c.Param("key"))
		if err != nil {
			c.Error(err)
			return
		}
		for _, customer := range removed {
			if err := e.Config.Attachments.DeleteAll(customer.ID); err != nil {
				e.logger.Warn("failed to delete attachments", "customer", customer.ID, "err", err)
			}
		}
		c.JSON(http.StatusOK, e.buildJSONResponse(true, "removed", toCustomerViews(removed)))
	}
}

func (e *Server) HandleUpdateInstallment() gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := e.dateParam(c)
		if !ok {
			return
		}
		var req installmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		newDate := date
		if req.NewDate != nil {
			newDate = *req.NewDate
		}
		if err := e.Config.Ledger.UpdateInstallment(c.Request.Context(), c.Param("key"), date, newDate, req.Value); err != nil {
			c.Error(err)
			return
		}
		e.respondCustomer(c)
	}
}

func (e *Server) HandleMarkPaid() gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := e.dateParam(c)
		if !ok {
			return
		}
		if err := e.Config.Ledger.MarkPaid(c.Request.Context(), c.Param("key"), date); err != nil {
			c.Error(err)
			return
		}
		e.respondCustomer(c)
	}
}

func (e *Server) HandleUnmarkPaid() gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := e.dateParam(c)
		if !ok {
			return
		}
		if err := e.Config.Ledger.UnmarkPaid(c.Request.Context(), c.Param("key"), date); err != nil {
			c.Error(err)
			return
		}
		e.respondCustomer(c)
	}
}

func (e *Server) HandleRemind() gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := e.dateParam(c)
		if !ok {
			return
		}
		var req remindRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.Error(err).SetType(gin.ErrorTypeBind)
				return
			}
		}
		if err := e.Config.Notifier.SendReminder(c.Request.Context(), c.Param("key"), date, req.Template); err != nil {
			c.Error(err)
			return
		}
		e.respondCustomer(c)
	}
}

func (e *Server) HandleListAttachments() gin.HandlerFunc {
	return func(c *gin.Context) {
		customer, err := e.Config.Ledger.Get(c.Request.Context(), c.Param("key"))
		if err != nil {
			c.Error(err)
			return
		}
		files, err := e.Config.Attachments.ListFiles(customer.ID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, e.buildJSONResponse(true, "files", files))
	}
}

func (e *Server) HandleUploadAttachments() gin.HandlerFunc {
	return func(c *gin.Context) {
		customer, err := e.Config.Ledger.Get(c.Request.Context(), c.Param("key"))
		if err != nil {
			c.Error(err)
			return
		}
		form, err := c.MultipartForm()
		if err != nil {
			c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		headers := form.File["files"]
		if len(headers) == 0 {
			c.Error(errors.New("no files in form field \"files\"")).SetType(gin.ErrorTypeBind)
			return
		}

		stored := make([]string, 0, len(headers))
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				c.Error(err)
				return
			}
			name, err := e.Config.Attachments.Put(customer.ID, fh.Filename, f)
			f.Close()
			if err != nil {
				c.Error(err)
				return
			}
			stored = append(stored, name)
		}
		c.JSON(http.StatusCreated, e.buildJSONResponse(true, "files", stored))
	}
}

func (e *Server) HandleDownloadAttachment() gin.HandlerFunc {
	return func(c *gin.Context) {
		customer, err := e.Config.Ledger.Get(c.Request.Context(), c.Param("key"))
		if err != nil {
			c.Error(err)
			return
		}
		name := c.Param("name")
		rc, err := e.Config.Attachments.Open(customer.ID, name)
		if err != nil {
			c.Error(err)
			return
		}
		defer rc.Close()
		c.DataFromReader(http.StatusOK, -1, "application/octet-stream", rc, map[string]string{
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
		})
	}
}

func (e *Server) HandleDeleteAttachment() gin.HandlerFunc {
	return func(c *gin.Context) {
		customer, err := e.Config.Ledger.Get(c.Request.Context(), c.Param("key"))
		if err != nil {
			c.Error(err)
			return
		}
		if err := e.Config.Attachments.DeleteFile(customer.ID, c.Param("name")); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": true})
	}
}

func (e *Server) HandleListBackups() gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := e.Config.Ledger.ListBackups(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, e.buildJSONResponse(true, "backups", ids))
	}
}

func (e *Server) HandleCreateBackup() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := e.Config.Ledger.CreateBackup(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, e.buildJSONResponse(true, "backup", id))
	}
}

func (e *Server) HandleRestoreBackup() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := e.Config.Ledger.RestoreBackup(c.Request.Context(), c.Param("id")); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, e.buildJSONResponse(true, "backup", c.Param("id")))
	}
}

func (e *Server) HandleGetNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, e.notificationSettings())
	}
}

func (e *Server) HandleSetNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req notificationSettings
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		if req.Template != nil {
			e.Config.Notifier.SetTemplate(*req.Template)
		}
		if req.Enabled != nil {
			e.Config.Notifier.SetEnabled(*req.Enabled)
		}
		c.JSON(http.StatusOK, e.notificationSettings())
	}
}

func (e *Server) notificationSettings() gin.H {
	return gin.H{
		"result":      true,
		"enabled":     e.Config.Notifier.Enabled(),
		"template":    e.Config.Notifier.Template(),
		"window_days": e.Config.Notifier.Window(),
	}
}

func (e *Server) HandleDueInstallments() gin.HandlerFunc {
	return func(c *gin.Context) {
		customers, err := e.Config.Ledger.ReadAll(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		due := notifier.DueInstallments(customers, e.Config.Ledger.Today(), e.Config.Notifier.Window())
		c.JSON(http.StatusOK, e.buildJSONResponse(true, "due", toDueViews(due)))
	}
}

func (e *Server) HandleScan() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := e.Config.Notifier.Scan(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, e.buildJSONResponse(true, "report", report))
	}
}

func (e *Server) HandleExport() gin.HandlerFunc {
	return func(c *gin.Context) {
		customers, err := e.Config.Ledger.ReadAll(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		today := e.Config.Ledger.Today()
		var buf bytes.Buffer
		if err := export.WriteWorkbook(&buf, customers, today); err != nil {
			c.Error(fmt.Errorf("write workbook: %w", err))
			return
		}
		c.Header("Content-Disposition", "attachment; filename="+export.FileName(today))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	}
}

// ***

func (e *Server) dateParam(c *gin.Context) (models.Date, bool) {
	date, err := models.ParseDate(c.Param("date"))
	if err != nil {
		c.Error(err).SetType(gin.ErrorTypeBind)
		return models.Date{}, false
	}
	return date, true
}

func (e *Server) respondCustomer(c *gin.Context) {
	customer, err := e.Config.Ledger.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":   true,
		"customer": toCustomerView(customer),
		"summary":  schedule.Summarize(customer),
	})
}

func (e *Server) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		e.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}

// ErrorHandler turns the first error recorded by a handler into a JSON
// response with a matching status code.
func (e *Server) ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}
		gerr := c.Errors[0]
		status := statusOf(gerr)
		body := gin.H{"result": false, "error": gerr.Err.Error()}

		var verr *ledger.ValidationError
		if errors.As(gerr.Err, &verr) {
			body["fields"] = verr.Fields
			body["reasons"] = verr.Reasons
		}
		if status >= http.StatusInternalServerError {
			e.logger.Error("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "err", gerr.Err)
		}
		c.JSON(status, body)
	}
}

func statusOf(gerr *gin.Error) int {
	err := gerr.Err
	switch {
	case gerr.IsType(gin.ErrorTypeBind), errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, ledger.ErrInstallmentNotFound),
		errors.Is(err, ledger.ErrSnapshotNotFound),
		errors.Is(err, interfaces.ErrAttachmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, notifier.ErrScanInProgress):
		return http.StatusConflict
	case errors.Is(err, notifier.ErrSendFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (e *Server) buildJSONResponse(result bool, key string, data interface{}) gin.H {
	return gin.H{"result": result, key: data}
}
