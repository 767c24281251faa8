package handler

import (
	"context"

	"github.com/gamekeys/backend/internal/application/catalog"
	"github.com/gamekeys/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProductService is the catalog product API used by ProductHandler
type ProductService interface {
	Create(ctx context.Context, req catalog.CreateProductRequest) (*catalog.ProductResponse, error)
	Get(ctx context.Context, idOrSlug string, includeInactive bool) (*catalog.ProductResponse, error)
	List(ctx context.Context, filter catalog.ProductListFilter, includeInactive bool) ([]catalog.ProductResponse, int64, error)
	Update(ctx context.Context, productID uuid.UUID, req catalog.UpdateProductRequest) (*catalog.ProductResponse, error)
	Activate(ctx context.Context, productID uuid.UUID) (*catalog.ProductResponse, error)
	Deactivate(ctx context.Context, productID uuid.UUID) (*catalog.ProductResponse, error)
	Delete(ctx context.Context, productID uuid.UUID) error
	RequestCoverUpload(ctx context.Context, productID uuid.UUID, req catalog.CoverUploadRequest) (*catalog.CoverUploadResponse, error)
	ConfirmCover(ctx context.Context, productID uuid.UUID, req catalog.ConfirmCoverRequest) (*catalog.ProductResponse, error)
	RemoveCover(ctx context.Context, productID uuid.UUID) (*catalog.ProductResponse, error)
}

// CategoryService is the catalog category API used by CategoryHandler
type CategoryService interface {
	Create(ctx context.Context, req catalog.CreateCategoryRequest) (*catalog.CategoryResponse, error)
	List(ctx context.Context) ([]catalog.CategoryResponse, error)
	GetByID(ctx context.Context, categoryID uuid.UUID) (*catalog.CategoryResponse, error)
	Update(ctx context.Context, categoryID uuid.UUID, req catalog.UpdateCategoryRequest) (*catalog.CategoryResponse, error)
	Delete(ctx context.Context, categoryID uuid.UUID) error
}

// ProductHandler handles product catalog requests. Public reads hide inactive
// products unless the caller is an admin.
type ProductHandler struct {
	BaseHandler
	productService ProductService
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// List godoc
// @Summary      List products
// @Description  Paginated catalog with search, category, platform and price filters
// @Tags         catalog
// @Param        search      query  string  false  "Title search"
// @Param        category_id query  string  false  "Category ID"
// @Param        category    query  string  false  "Category slug"
// @Param        platform    query  string  false  "Platform"
// @Param        in_stock    query  bool    false  "Only products with available keys"
// @Router       /catalog/products [get]
func (h *ProductHandler) List(c *gin.Context) {
	var filter catalog.ProductListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	categoryID, ok := h.QueryUUID(c, "category_id")
	if !ok {
		return
	}
	filter.CategoryID = categoryID

	products, total, err := h.productService.List(c.Request.Context(), filter, middleware.IsAdmin(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, products, total, filter.Page, filter.PageSize)
}

// Get godoc
// @Summary      Get a product by ID or slug
// @Tags         catalog
// @Router       /catalog/products/{id} [get]
func (h *ProductHandler) Get(c *gin.Context) {
	product, err := h.productService.Get(c.Request.Context(), c.Param("id"), middleware.IsAdmin(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// Create godoc
// @Summary      Create a product
// @Tags         admin-catalog
// @Security     BearerAuth
// @Router       /admin/products [post]
func (h *ProductHandler) Create(c *gin.Context) {
	var req catalog.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	product, err := h.productService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, product)
}

func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req catalog.UpdateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	product, err := h.productService.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

func (h *ProductHandler) Activate(c *gin.Context) {
	h.withProduct(c, h.productService.Activate)
}

func (h *ProductHandler) Deactivate(c *gin.Context) {
	h.withProduct(c, h.productService.Deactivate)
}

// Delete removes a product that never sold a key
func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.productService.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RequestCoverUpload godoc
// @Summary      Presign a cover image upload
// @Description  Returns a PUT URL on object storage; confirm the upload afterwards
// @Tags         admin-catalog
// @Security     BearerAuth
// @Router       /admin/products/{id}/cover/upload-url [post]
func (h *ProductHandler) RequestCoverUpload(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req catalog.CoverUploadRequest
	if !h.BindJSON(c, &req) {
		return
	}

	upload, err := h.productService.RequestCoverUpload(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, upload)
}

func (h *ProductHandler) ConfirmCover(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req catalog.ConfirmCoverRequest
	if !h.BindJSON(c, &req) {
		return
	}

	product, err := h.productService.ConfirmCover(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

func (h *ProductHandler) RemoveCover(c *gin.Context) {
	h.withProduct(c, h.productService.RemoveCover)
}

func (h *ProductHandler) withProduct(c *gin.Context, action func(context.Context, uuid.UUID) (*catalog.ProductResponse, error)) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	product, err := action(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// CategoryHandler handles category requests
type CategoryHandler struct {
	BaseHandler
	categoryService CategoryService
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryService CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// List returns every category in display order
func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.categoryService.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, categories)
}

func (h *CategoryHandler) Get(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	category, err := h.categoryService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, category)
}

func (h *CategoryHandler) Create(c *gin.Context) {
	var req catalog.CreateCategoryRequest
	if !h.BindJSON(c, &req) {
		return
	}
	category, err := h.categoryService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, category)
}

func (h *CategoryHandler) Update(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req catalog.UpdateCategoryRequest
	if !h.BindJSON(c, &req) {
		return
	}
	category, err := h.categoryService.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, category)
}

// Delete removes an empty category. Categories still holding products answer 409.
func (h *CategoryHandler) Delete(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.categoryService.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
