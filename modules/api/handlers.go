package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/example/asset-vault/modules/assets"
	"github.com/example/asset-vault/modules/blobstore"
	"github.com/gin-gonic/gin"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes() {
	m.router.GET("/health", m.healthHandler)

	// Raw blob endpoints, authorized by signed URL tokens rather than
	// bearer auth.
	m.router.PUT("/blob/upload", m.blobUpload)
	m.router.GET("/blob/download", m.blobDownload)

	api := m.router.Group("/api/v1")

	authRoutes := api.Group("/auth")
	authRoutes.POST("/register", m.register)
	authRoutes.POST("/login", m.login)
	authRoutes.POST("/refresh", m.refresh)

	assetRoutes := api.Group("/assets")
	assetRoutes.Use(authMiddleware(m.identitySvc))
	assetRoutes.GET("", m.listAssets)
	assetRoutes.POST("/tickets", ticketLimitMiddleware(m.limiter), m.issueTicket)
	assetRoutes.POST("/:id/finalize", m.finalize)
	assetRoutes.PATCH("/:id", m.rename)
	assetRoutes.POST("/:id/shares", m.grantShare)
	assetRoutes.DELETE("/:id/shares/:email", m.revokeShare)
	assetRoutes.GET("/:id/download", m.downloadLink)
	assetRoutes.DELETE("/:id", m.deleteAsset)
}

// statusForCode maps the closed error taxonomy to HTTP status codes.
func statusForCode(code assets.Code) int {
	switch code {
	case assets.CodeUnauthenticated:
		return http.StatusUnauthorized
	case assets.CodeForbidden:
		return http.StatusForbidden
	case assets.CodeBadRequest:
		return http.StatusBadRequest
	case assets.CodeVersionConflict:
		return http.StatusConflict
	case assets.CodeNotFound:
		return http.StatusNotFound
	case assets.CodeIntegrityError:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a coded error response. Uncoded errors surface as a
// generic 500 so storage internals never leak to clients.
func respondError(c *gin.Context, err error) {
	var coded *assets.Error
	if errors.As(err, &coded) {
		c.JSON(statusForCode(coded.Code), ErrorResponse{
			Code:    string(coded.Code),
			Message: coded.Message,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Code:    "INTERNAL",
		Message: "internal error",
	})
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module": "api",
			"port":   m.port,
		},
	})
}

// register handles POST /api/v1/auth/register.
func (m *APIModule) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return
	}

	user, err := m.identitySvc.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// login handles POST /api/v1/auth/login.
func (m *APIModule) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return
	}

	tokens, err := m.identitySvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: "UNAUTHENTICATED", Message: "invalid email or password"})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
		TokenType:    tokens.TokenType,
	})
}

// refresh handles POST /api/v1/auth/refresh.
func (m *APIModule) refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return
	}

	tokens, err := m.identitySvc.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: "UNAUTHENTICATED", Message: "invalid refresh token"})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
		TokenType:    tokens.TokenType,
	})
}

// listAssets handles GET /api/v1/assets.
func (m *APIModule) listAssets(c *gin.Context) {
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	cursor := c.Query("cursor")
	search := c.Query("q")

	page, err := m.assets.List(c.Request.Context(), principalFrom(c), cursor, pageSize, search)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Assets:     page.Assets,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

// issueTicket handles POST /api/v1/assets/tickets.
func (m *APIModule) issueTicket(c *gin.Context) {
	var req TicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return
	}

	ticket, err := m.assets.IssueUploadTicket(c.Request.Context(), principalFrom(c), req.Filename, req.MIME, req.Size)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ticket)
}

// finalize handles POST /api/v1/assets/:id/finalize.
func (m *APIModule) finalize(c *gin.Context) {
	var req FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return
	}

	asset, err := m.assets.Finalize(c.Request.Context(), principalFrom(c), c.Param("id"), req.SHA256, req.ExpectedVersion)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, asset)
}

// rename handles PATCH /api/v1/assets/:id.
func (m *APIModule) rename(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return
	}

	asset, err := m.assets.Rename(c.Request.Context(), principalFrom(c), c.Param("id"), req.Filename, req.ExpectedVersion)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, asset)
}

// grantShare handles POST /api/v1/assets/:id/shares.
func (m *APIModule) grantShare(c *gin.Context) {
	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return
	}

	asset, err := m.assets.GrantShare(c.Request.Context(), principalFrom(c), c.Param("id"), req.Email, req.CanDownload, req.ExpectedVersion)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, asset)
}

// revokeShare handles DELETE /api/v1/assets/:id/shares/:email.
func (m *APIModule) revokeShare(c *gin.Context) {
	expectedVersion, err := strconv.ParseInt(c.Query("expected_version"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: "expected_version query parameter is required"})
		return
	}

	asset, err := m.assets.RevokeShare(c.Request.Context(), principalFrom(c), c.Param("id"), c.Param("email"), expectedVersion)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, asset)
}

// downloadLink handles GET /api/v1/assets/:id/download.
func (m *APIModule) downloadLink(c *gin.Context) {
	link, err := m.assets.RequestDownloadLink(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, link)
}

// deleteAsset handles DELETE /api/v1/assets/:id.
func (m *APIModule) deleteAsset(c *gin.Context) {
	expectedVersion, err := strconv.ParseInt(c.Query("expected_version"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: "expected_version query parameter is required"})
		return
	}

	deleted, err := m.assets.Delete(c.Request.Context(), principalFrom(c), c.Param("id"), expectedVersion)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, DeleteResponse{Deleted: deleted, ID: c.Param("id")})
}

// blobUpload handles PUT /blob/upload. The token, not bearer auth, is the
// authorization; it was minted for exactly one storage path.
func (m *APIModule) blobUpload(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusForbidden, ErrorResponse{Code: "FORBIDDEN", Message: "missing storage token"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, m.maxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: "failed to read upload body"})
		return
	}
	if int64(len(data)) > m.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Code:    "BAD_REQUEST",
			Message: fmt.Sprintf("upload exceeds maximum of %d bytes", m.maxUploadSize),
		})
		return
	}

	contentType := c.GetHeader("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	storagePath, err := m.blobs.AcceptUpload(c.Request.Context(), token, data, contentType)
	if err != nil {
		if errors.Is(err, blobstore.ErrInvalidURLToken) || errors.Is(err, blobstore.ErrExpiredURLToken) {
			c.JSON(http.StatusForbidden, ErrorResponse{Code: "FORBIDDEN", Message: "invalid or expired storage token"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL", Message: "failed to store object"})
		return
	}

	c.JSON(http.StatusCreated, UploadAcceptedResponse{
		StoragePath: storagePath,
		Size:        int64(len(data)),
	})
}

// blobDownload handles GET /blob/download.
func (m *APIModule) blobDownload(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusForbidden, ErrorResponse{Code: "FORBIDDEN", Message: "missing storage token"})
		return
	}

	data, info, err := m.blobs.ServeDownload(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, blobstore.ErrInvalidURLToken), errors.Is(err, blobstore.ErrExpiredURLToken):
			c.JSON(http.StatusForbidden, ErrorResponse{Code: "FORBIDDEN", Message: "invalid or expired storage token"})
		case errors.Is(err, blobstore.ErrObjectNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: "object not found"})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL", Message: "failed to read object"})
		}
		return
	}

	filename := path.Base(info.Path)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(filename)))
	c.Header("Content-Length", strconv.FormatUint(info.Size, 10))
	c.Data(http.StatusOK, info.ContentType, data)
}
