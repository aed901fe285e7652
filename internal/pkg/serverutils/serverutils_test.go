package serverutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"review-rag-be/pkg/rag/ragerr"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ragerr.Errorf(ragerr.KindInvalidInput, "op", "empty"), 400},
		{ragerr.Errorf(ragerr.KindDataFormat, "op", "bad csv"), 400},
		{ragerr.Errorf(ragerr.KindTimeout, "op", "slow"), 504},
		{ragerr.Errorf(ragerr.KindConnection, "op", "down"), 502},
		{ragerr.Errorf(ragerr.KindRetrieval, "op", "down"), 502},
		{ragerr.Errorf(ragerr.KindGeneration, "op", "429"), 502},
		{ragerr.New(ragerr.KindIngestion, "op", &ragerr.IngestionError{Accepted: 0, Total: 3, Err: errors.New("x")}), 500},
		{ragerr.New(ragerr.KindIngestion, "op", &ragerr.IngestionError{Accepted: 2, Total: 3, Err: errors.New("x")}), 502},
		{ragerr.Errorf(ragerr.KindConfiguration, "op", "missing key"), 500},
		{fmt.Errorf("wrapped: %w", ragerr.Errorf(ragerr.KindTimeout, "op", "slow")), 504},
		{errors.New("plain"), 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

type askReq struct {
	SessionID string `json:"session_id" validate:"required"`
	Question  string `json:"question" validate:"required,max=10"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(askReq{SessionID: "s", Question: "ok"}))

	err := ValidateRequest(askReq{Question: "far too long question"})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "is required", ve.Fields["session_id"])
	assert.Equal(t, "must be at most 10 characters", ve.Fields["question"])
}

func TestErrorHandlerMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/timeout", func(c *fiber.Ctx) error {
		return ragerr.Errorf(ragerr.KindTimeout, "chain.Invoke", "deadline")
	})
	app.Get("/invalid", func(c *fiber.Ctx) error {
		return ValidateRequest(askReq{})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/timeout", nil))
	require.NoError(t, err)
	assert.Equal(t, 504, resp.StatusCode)
	var body ErrorBody
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "TIMEOUT", body.Kind)
	assert.False(t, body.Success)

	resp, err = app.Test(httptest.NewRequest("GET", "/invalid", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/nowhere", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestJwtMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/op", NewJwtMiddleware("s3cret"), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("operator").(string))
	})

	token, err := SignOperatorToken("s3cret", "ops")
	require.NoError(t, err)
	forged, err := SignOperatorToken("other", "ops")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", 401},
		{"wrong scheme", "Basic abc", 401},
		{"bad signature", "Bearer " + forged, 401},
		{"valid", "Bearer " + token, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/op", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
