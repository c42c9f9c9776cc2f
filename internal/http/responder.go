package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/meeting-lifecycle/internal/application"
)

var (
	errBadRequestBody  = errors.New("無効なリクエスト形式です。")
	errInvalidTime     = errors.New("日時は RFC 3339 形式で指定してください。")
	errInvalidStep     = errors.New("無効なステップ番号です。")
	errMissingActor    = errors.New("操作者を X-Actor-ID ヘッダーで指定してください。")
	errMissingTargetID = errors.New("target_id を指定してください。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application errors onto status codes through
// application.ErrorKind so logs and responses agree.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	kind := application.ErrorKind(err)
	status := statusForKind(kind)
	logger := r.loggerFor(ctx)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "status", status, "error_kind", kind, "error", err)
	} else {
		logger.InfoContext(ctx, "request rejected", "status", status, "error_kind", kind, "error", err)
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, status, errorResponse{
			ErrorCode: strings.ToUpper(kind),
			Message:   "入力内容に誤りがあります。",
			Errors:    localizeValidationErrors(vErr),
		})
		return
	}

	r.writeJSON(ctx, w, status, errorResponse{
		ErrorCode: strings.ToUpper(kind),
		Message:   messageForKind(kind),
	})
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusForKind(kind string) int {
	switch kind {
	case "validation", "invalid_input", "unbounded_generation":
		return http.StatusUnprocessableEntity
	case "conflict", "step_mismatch", "invalid_state":
		return http.StatusConflict
	case "not_authorized":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "cancelled":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func messageForKind(kind string) string {
	switch kind {
	case "invalid_input":
		return "入力内容に誤りがあります。"
	case "unbounded_generation":
		return "終了日または生成範囲の終了日を指定してください。"
	case "conflict":
		return "要求はリソースの現在の状態と競合しています。"
	case "step_mismatch":
		return "指定されたステップは現在のステップではありません。"
	case "invalid_state":
		return "ワークフローはすでに終了しています。"
	case "not_authorized":
		return "この操作を実行する権限がありません。"
	case "not_found":
		return "指定されたリソースが見つかりません。"
	case "cancelled":
		return "処理が中断されました。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "at least one participant is required":
		return "少なくとも 1 名の参加者を指定してください。"
	case "end must be after start":
		return "終了日時は開始日時より後である必要があります。"
	case "must be after start_time":
		return "終了時刻は開始時刻より後である必要があります。"
	case "must not be before start_date":
		return "終了日は開始日以降で指定してください。"
	case "must be YYYY-MM-DD":
		return "日付は YYYY-MM-DD 形式で指定してください。"
	case "must be a positive duration":
		return "正の期間を指定してください (例: 720h)。"
	case "must be HH:MM":
		return "時刻は HH:MM 形式で指定してください。"
	case "is out of range":
		return "値が範囲外です。"
	case "is not supported":
		return "サポートされていない値です。"
	case "is not a known time zone":
		return "不明なタイムゾーンです。"
	case "must be between 1 and 7":
		return "1 から 7 の範囲で指定してください。"
	case "must be between 1 and 31":
		return "1 から 31 の範囲で指定してください。"
	default:
		if strings.HasSuffix(message, "is required") {
			return "必須項目です。"
		}
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
