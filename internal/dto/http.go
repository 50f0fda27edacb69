package dto

import "net/http"

// BaseResponse is the envelope of every API response.
type BaseResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func NewBaseResponse(code int, message string, data interface{}) *BaseResponse {
	return &BaseResponse{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

func NewSuccessResponse(message string, data interface{}) *BaseResponse {
	return NewBaseResponse(http.StatusOK, message, data)
}

func NewCreatedResponse(message string, data interface{}) *BaseResponse {
	return NewBaseResponse(http.StatusCreated, message, data)
}

func NewAcceptedResponse(message string, data interface{}) *BaseResponse {
	return NewBaseResponse(http.StatusAccepted, message, data)
}

func NewBadRequestResponse(message string) *BaseResponse {
	return NewBaseResponse(http.StatusBadRequest, message, nil)
}

func NewNotFoundResponse(message string) *BaseResponse {
	return NewBaseResponse(http.StatusNotFound, message, nil)
}

// NewErrorResponse carries the error text as the message.
func NewErrorResponse(code int, err error) *BaseResponse {
	return NewBaseResponse(code, err.Error(), nil)
}
