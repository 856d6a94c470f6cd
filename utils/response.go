package utils

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// ContextUploadPathKey stores the filesystem path of a file saved for the
// current request, so Fail can delete it when the request errors out.
const ContextUploadPathKey = "upload_path"

// OK writes a 200 response with the given payload.
func OK(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, data)
}

// Created writes a 201 response with the given payload.
func Created(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusCreated, data)
}

// Fail is the centralized error responder: it renders any propagated error
// as {message} with the error's status (500 for anything untyped) and
// best-effort deletes an upload recorded for the failed request.
func Fail(ctx *gin.Context, err error) {
	cleanupRequestUpload(ctx)

	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = &AppError{Status: http.StatusInternalServerError, Message: "An unknown error has occurred"}
	}
	ctx.AbortWithStatusJSON(appErr.Status, gin.H{"message": appErr.Message})
}

func cleanupRequestUpload(ctx *gin.Context) {
	path := ctx.GetString(ContextUploadPathKey)
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil {
		if Sugar != nil {
			Sugar.Warnf("failed to remove upload %s: %v", path, err)
		}
	}
}
