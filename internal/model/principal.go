package model

import "time"

// Principal は認証済みのGitHubユーザーを表す。
// OAuth交換の成功時にのみ生成され、常に両フィールドが揃っていることを保証する。
// アクセストークンは永続化せず、ログやレスポンスに含めてはならない。
type Principal struct {
	AccessToken string
	Login       string
}

// RepositoryRef は操作対象のリポジトリを一意に識別する。
// Ownerは常にPrincipal.Loginから構築する。
type RepositoryRef struct {
	Owner string
	Name  string
}

// RepositorySummary はGitHubのリポジトリ情報のうち、
// ファイルマネージャが必要とするフィールドのみを表す。
type RepositorySummary struct {
	Name          string
	FullName      string
	Description   string
	Private       bool
	DefaultBranch string
	HTMLURL       string
	UpdatedAt     time.Time
}

// UserProfile は認証済みユーザーのGitHubプロフィールを表す。
type UserProfile struct {
	Login       string
	Name        string
	AvatarURL   string
	HTMLURL     string
	PublicRepos int
}

// EntryType はコンテンツエントリの種別を表す。
type EntryType string

const (
	// EntryTypeFile はファイルエントリを示す。
	EntryTypeFile EntryType = "file"
	// EntryTypeDir はディレクトリエントリを示す。
	EntryTypeDir EntryType = "dir"
)

// ContentEntry はGitHubコンテンツAPIが報告する1つのファイルまたは
// ディレクトリを表す。GitHubが真実の源であり、このゲートウェイからは
// 読み取り専用として扱う。SHAは削除・更新時の楽観的バージョントークン。
type ContentEntry struct {
	Name        string
	Path        string // リポジトリルートからの相対パス（先頭スラッシュなし）
	Type        EntryType
	SHA         string
	Size        int64
	DownloadURL string
	Media       MediaKind // 拡張子による表示用分類
}

// FileContent は単一ファイルの内容を表す。
type FileContent struct {
	Name        string
	Path        string
	SHA         string
	Data        []byte
	DownloadURL string
}

// UploadFile はアップロード対象の1ファイルを表す。
// 1回のアップロード呼び出しの間だけ存在する一時的な値。
type UploadFile struct {
	Name string
	Data []byte
}

// FileResult はバッチ操作（複数アップロード・一括削除）における
// 1ファイルの結果を表す。Errがnilなら成功。
type FileResult struct {
	Name string
	Path string
	SHA  string
	Err  *APIError
}

// OK は操作が成功したかを返す。
func (r FileResult) OK() bool {
	return r.Err == nil
}

// CountResults は結果リストの成功数と失敗数を集計する。
func CountResults(results []FileResult) (succeeded, failed int) {
	for _, r := range results {
		if r.OK() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
