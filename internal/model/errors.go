package model

import "errors"

// ErrRunActive は別のランが進行中のため新しいランを開始できないことを表す。
var ErrRunActive = errors.New("ランが既に進行中です")

// ErrRewriteNotConfigured はリライトコラボレーターの認証情報が
// 未設定であることを表す。ラン開始前に検出され、ラン全体を失敗させる。
var ErrRewriteNotConfigured = errors.New("リライトAPIの認証情報が設定されていません")
