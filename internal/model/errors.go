// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeRepoNameRequired    = "REPO_NAME_REQUIRED"
	ErrCodeRepoRequired        = "REPO_REQUIRED"
	ErrCodeFilesRequired       = "FILES_REQUIRED"
	ErrCodeFieldRequired       = "FIELD_REQUIRED"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeUpstreamRejected    = "UPSTREAM_REJECTED"
	ErrCodePartialBatch        = "PARTIAL_BATCH"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "GitHubで再度ログインしてください。",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストの解析に失敗しました: %s", reason),
		Category: "validation",
		Action:   "正しい形式でリクエストしてください。",
	}
}

// NewRepoNameRequiredError はリポジトリ名未指定エラーを生成する。
func NewRepoNameRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeRepoNameRequired,
		Message:  "リポジトリ名が指定されていません。",
		Category: "validation",
		Action:   "作成するリポジトリの名前を入力してください。",
	}
}

// NewRepoRequiredError は操作対象リポジトリ未指定エラーを生成する。
func NewRepoRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeRepoRequired,
		Message:  "操作対象のリポジトリが指定されていません。",
		Category: "validation",
		Action:   "repoパラメータを指定してください。",
	}
}

// NewFilesRequiredError はアップロードファイル未指定エラーを生成する。
func NewFilesRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeFilesRequired,
		Message:  "アップロードするファイルが指定されていません。",
		Category: "validation",
		Action:   "1つ以上のファイルを選択してください。",
	}
}

// NewFieldRequiredError は必須フィールド未指定エラーを生成する。
func NewFieldRequiredError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeFieldRequired,
		Message:  fmt.Sprintf("必須フィールドが指定されていません: %s", field),
		Category: "validation",
		Action:   fmt.Sprintf("%s を指定してください。", field),
	}
}

// NewUpstreamUnavailableError はGitHub APIへの到達失敗エラーを生成する。
func NewUpstreamUnavailableError(operation string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  fmt.Sprintf("GitHub APIへの接続に失敗しました: %s", operation),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewNotFoundError は対象未検出エラーを生成する。
func NewNotFoundError(target string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定された対象が見つかりません: %s", target),
		Category: "upstream",
		Action:   "リポジトリ名とパスを確認してください。",
	}
}

// NewConflictError はバージョン競合エラーを生成する。
// 一覧取得後に対象が変更された（shaが一致しない）場合に使用する。
func NewConflictError(path string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  fmt.Sprintf("対象が一覧取得時から変更されています: %s", path),
		Category: "upstream",
		Action:   "一覧を再取得してから再度お試しください。",
	}
}

// NewForbiddenError はGitHubによるアクセス拒否エラーを生成する。
func NewForbiddenError(operation string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("GitHubにアクセスを拒否されました: %s", operation),
		Category: "upstream",
		Action:   "トークンの権限スコープを確認してください。",
	}
}

// NewRateLimitedError はGitHub APIレート制限エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "GitHub APIのレート制限に達しました。",
		Category: "upstream",
		Action:   "制限が解除されるまで待ってから再度お試しください。",
	}
}

// NewUpstreamRejectedError はGitHub APIが非2xxを返した場合の汎用エラーを生成する。
// より具体的なエラー（NotFound, Conflict等）に分類できない場合のみ使用する。
func NewUpstreamRejectedError(operation string, statusCode int) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamRejected,
		Message:  fmt.Sprintf("GitHub APIがエラーを返しました: %s (status %d)", operation, statusCode),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPartialBatchError はバッチ操作の一部失敗エラーを生成する。
// アップロードや一括削除で成功と失敗が混在した場合に使用する。
func NewPartialBatchError(succeeded, failed int) *APIError {
	return &APIError{
		Code:     ErrCodePartialBatch,
		Message:  fmt.Sprintf("一部のファイル操作が失敗しました（成功: %d件、失敗: %d件）。", succeeded, failed),
		Category: "upstream",
		Action:   "各ファイルの結果を確認し、失敗したものだけ再度お試しください。",
	}
}
