package model

import (
	"path"
	"strings"
)

// MediaKind はファイル名の拡張子による表示用分類を表す。
// ディレクトリ以外のエントリをimage/audio/video/otherに分類する。
type MediaKind string

const (
	// MediaKindImage は画像ファイルを示す。
	MediaKindImage MediaKind = "image"
	// MediaKindAudio は音声ファイルを示す。
	MediaKindAudio MediaKind = "audio"
	// MediaKindVideo は動画ファイルを示す。
	MediaKindVideo MediaKind = "video"
	// MediaKindOther は上記以外のファイルを示す。
	MediaKindOther MediaKind = "other"
)

// 拡張子と分類の対応。oggは音声として扱う。
var mediaKindByExt = map[string]MediaKind{
	".jpg":  MediaKindImage,
	".jpeg": MediaKindImage,
	".png":  MediaKindImage,
	".gif":  MediaKindImage,
	".mp3":  MediaKindAudio,
	".wav":  MediaKindAudio,
	".ogg":  MediaKindAudio,
	".m4a":  MediaKindAudio,
	".mp4":  MediaKindVideo,
	".webm": MediaKindVideo,
	".mov":  MediaKindVideo,
}

// ClassifyMedia はファイル名の拡張子からMediaKindを判定する。
// 拡張子の大文字小文字は区別しない。
func ClassifyMedia(name string) MediaKind {
	ext := strings.ToLower(path.Ext(name))
	if kind, ok := mediaKindByExt[ext]; ok {
		return kind
	}
	return MediaKindOther
}
