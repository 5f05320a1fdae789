package dto

// UploadPhotoRequest holds the multipart form fields of POST /api/upload-photo.
type UploadPhotoRequest struct {
	FileName  string `form:"fileName"`
	Category  string `form:"category"  validate:"required,oneof=oculos cintos"`
	SKU       string `form:"sku"       validate:"required,max=64"`
	StoreID   string `form:"storeId"   validate:"required,max=64"`
	ProductID string `form:"productId"`
}

type UploadPhotoResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ImagePath string `json:"imagePath,omitempty"`
}
