package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/gitcloud/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	PrincipalResolver middleware.PrincipalResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証
	OAuthProvider OAuthProviderInterface
	AuthConfig    AuthHandlerConfig

	// GitHub操作
	UserService       UserServiceInterface
	RepositoryService RepositoryServiceInterface
	ContentService    ContentServiceInterface
	MutationService   MutationServiceInterface

	// 設定
	RepoConfig   RepoHandlerConfig
	UploadConfig UploadHandlerConfig

	// メトリクス
	BatchMetrics   BatchMetricsRecorder
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SecurityHeadersMiddleware → RecoveryMiddleware → LoggingMiddleware
//	→ AuthMiddleware → RateLimitMiddleware(GeneralMiddleware)  （/api/* のみ）
//
// 認証ルート（/auth/*）、/health、/metricsは認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェアを最上位に適用
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	authHandler := NewAuthHandler(deps.OAuthProvider, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	repoHandler := NewRepoHandler(deps.RepositoryService, deps.RepoConfig)
	contentHandler := NewContentHandler(deps.ContentService)
	uploadHandler := NewUploadHandler(deps.MutationService, deps.BatchMetrics, deps.UploadConfig)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler)

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/github", authHandler.Login)
		r.Get("/github/callback", authHandler.Callback)
		r.Get("/logout", authHandler.Logout)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	// 書き込み操作には専用レート制限を追加
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.PrincipalResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ユーザー情報
		r.Get("/user", userHandler.GetUser)

		// リポジトリ管理
		r.Get("/repos", repoHandler.ListRepositories)
		r.With(deps.RateLimiter.MutationMiddleware()).Post("/repos", repoHandler.CreateRepository)

		// コンテンツ閲覧
		r.Get("/contents", contentHandler.ListContents)
		r.Get("/file", contentHandler.GetFile)

		// ファイル操作（書き込み）
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.MutationMiddleware())

			r.Post("/upload", uploadHandler.Upload)
			r.Delete("/delete-file", uploadHandler.DeleteFile)
			r.Post("/delete-all", uploadHandler.DeleteAll)
		})
	})

	return r
}

// healthHandler はヘルスチェックエンドポイント。
// 外部依存を持たないため、プロセスが応答可能であれば常にokを返す。
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
