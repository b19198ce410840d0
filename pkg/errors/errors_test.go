package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodes(t *testing.T) {
	cases := map[ErrorCode]int{
		CodeBadRequest:          http.StatusBadRequest,
		CodeValidationFailed:    http.StatusUnprocessableEntity,
		CodeInvalidCredentials:  http.StatusUnauthorized,
		CodeEmailAlreadyExists:  http.StatusConflict,
		CodeModelContract:       http.StatusBadGateway,
		CodeProviderUnavailable: http.StatusServiceUnavailable,
		CodeAuthUnavailable:     http.StatusServiceUnavailable,
		CodePersistenceFailed:   http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, NewAppError(code, "m", "").StatusCode(), code)
	}
}

func TestToErrorResponse_HidesModelDetails(t *testing.T) {
	err := NewModelContractError("checkItemCompatibility", fmt.Errorf("missing riskLevel"))

	resp := ToErrorResponse(err, "req-1")

	assert.Equal(t, CodeModelContract, resp.Error.Code)
	assert.Equal(t, MessageGenericFailure, resp.Error.Message)
	assert.Empty(t, resp.Error.Details)
	assert.Nil(t, resp.Error.Metadata)
	assert.Equal(t, "req-1", resp.Error.RequestID)
}

func TestToErrorResponse_ProviderUsesRetryMessage(t *testing.T) {
	resp := ToErrorResponse(NewProviderUnavailableError("openai", fmt.Errorf("dial tcp")), "")
	assert.Equal(t, MessageRetryLater, resp.Error.Message)
}

func TestToErrorResponse_KeepsValidationDetails(t *testing.T) {
	resp := ToErrorResponse(NewValidationError("itemName is required"), "")
	assert.Equal(t, "itemName is required", resp.Error.Details)
}

func TestIsAndGetCode_SeeThroughWrapping(t *testing.T) {
	base := NewInvalidCredentialsError()
	wrapped := fmt.Errorf("login: %w", base)

	assert.True(t, Is(wrapped, CodeInvalidCredentials))
	assert.Equal(t, CodeInvalidCredentials, GetCode(wrapped))
	assert.Equal(t, CodeInternal, GetCode(stderrors.New("plain")))
	assert.Same(t, base, Wrap(wrapped, "ignored"))
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{{Field: "a", Message: "a is required"}, {Field: "b", Message: "b is too short"}}
	assert.Equal(t, "a is required; b is too short", errs.Error())
	assert.Equal(t, "validation failed", ValidationErrors{}.Error())
}
