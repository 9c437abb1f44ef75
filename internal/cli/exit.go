package cli

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/G1P0/vkomment/internal/credential"
	"github.com/G1P0/vkomment/internal/poller"
	"github.com/G1P0/vkomment/internal/schedule"
	"github.com/G1P0/vkomment/internal/vk"
)

const (
	exitOK      = 0
	exitFailure = 1
)

// ExitCode: 0 при успехе или --always-success, иначе 1.
func ExitCode(err error, alwaysSuccess bool) int {
	if err == nil || alwaysSuccess {
		return exitOK
	}
	return exitFailure
}

// report пишет одну строку по виду ошибки.
func (a *app) report(err error) {
	log := a.log
	var apiErr *vk.APIError

	switch {
	case errors.Is(err, schedule.ErrInvalidTimeFormat):
		log.Error("invalid time format", zap.Error(err))
	case errors.Is(err, credential.ErrMissingCredential):
		log.Error("missing VK token: pass --token, set $VK_TOKEN or save one with `vkomment token set`", zap.Error(err))
	case errors.Is(err, vk.ErrGroupNotFound):
		log.Error("group not found", zap.Error(err))
	case errors.Is(err, poller.ErrPostNotFound):
		log.Error("new post not found", zap.Error(err))
	case errors.Is(err, context.Canceled):
		log.Error("interrupted", zap.Error(err))
	case errors.As(err, &apiErr):
		log.Error("VK API error", zap.Int("code", apiErr.Code), zap.String("msg", apiErr.Message), zap.Error(err))
	default:
		log.Error("failed", zap.Error(err))
	}
}
