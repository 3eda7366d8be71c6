package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.ApiService/implementation/readings"
	tncmodels "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Models"
	api_models "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Models/api"
)

// queryInt reads an optional integer query parameter. Nil when absent.
func queryInt(ctx *gin.Context, key string) (*int, error) {
	raw, ok := ctx.GetQuery(key)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q is not an integer", key, raw)
	}
	return &v, nil
}

// queryTime reads an optional timestamp query parameter. Nil when absent.
func queryTime(ctx *gin.Context, key string) (*time.Time, error) {
	raw, ok := ctx.GetQuery(key)
	if !ok || raw == "" {
		return nil, nil
	}
	t, err := tncmodels.ParseTime(restorePlusOffset(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &t, nil
}

// restorePlusOffset undoes query decoding of an unescaped "+HH:MM" offset,
// which arrives as " HH:MM".
func restorePlusOffset(raw string) string {
	i := len(raw) - 6
	if i < 1 || raw[i] != ' ' || raw[i+3] != ':' {
		return raw
	}
	for _, j := range []int{i + 1, i + 2, i + 4, i + 5} {
		if raw[j] < '0' || raw[j] > '9' {
			return raw
		}
	}
	return raw[:i] + "+" + raw[i+1:]
}

func badRequest(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, api_models.ErrorResponse{Error: err.Error()})
}

// respondError maps service errors onto HTTP statuses. Server-side failures are
// attached to the gin context so the request logger records them.
func respondError(ctx *gin.Context, err error) {
	var verr *readings.ValidationError
	if errors.As(err, &verr) {
		ctx.JSON(http.StatusUnprocessableEntity, api_models.ErrorResponse{Error: verr.Error(), Field: verr.Field})
		return
	}

	var serr *readings.StorageError
	if errors.As(err, &serr) {
		_ = ctx.Error(err)
		ctx.JSON(http.StatusInternalServerError, api_models.ErrorResponse{Error: "storage error"})
		return
	}

	_ = ctx.Error(err)
	ctx.JSON(http.StatusInternalServerError, api_models.ErrorResponse{Error: "internal error"})
}
