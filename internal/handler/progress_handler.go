package handler

import (
	"net/http"

	"github.com/hitoshi/newsmill/internal/progress"
)

// ProgressReader は進捗状態参照のインターフェース。
type ProgressReader interface {
	Snapshot() progress.Snapshot
}

// ProgressHandler は進捗参照のHTTPハンドラー。
type ProgressHandler struct {
	reader ProgressReader
}

// NewProgressHandler はProgressHandlerを生成する。
func NewProgressHandler(reader ProgressReader) *ProgressHandler {
	return &ProgressHandler{reader: reader}
}

// GetProgress は現在の進捗状態を返す。
// ラン非実行中でも200で返し、activeフィールドで区別する。
// GET /api/progress
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reader.Snapshot())
}
