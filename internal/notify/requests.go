package notify

// LoginPrompt は401応答時に表示するログイン要求モーダルを生成する。
// HTTPインターセプタから発火される唯一の経路であり、右ボタンでログイン画面へ遷移する。
func LoginPrompt(onConfirm func()) Request {
	return Request{
		Kind:            KindModal,
		Open:            true,
		Message:         "ログインが必要なサービスです。",
		LeftButtonText:  "閉じる",
		RightButtonText: "ログイン",
		OnRight:         onConfirm,
	}
}

// ForbiddenPrompt は403応答時に表示するアクセス制限モーダルを生成する。
// 確認後に前のページへ戻る。
func ForbiddenPrompt(message string, onBack func()) Request {
	return Request{
		Kind:            KindModal,
		Open:            true,
		Message:         message,
		RightButtonText: "戻る",
		OnRight:         onBack,
	}
}

// ConfirmPrompt は破壊的操作（投稿削除等）の確認モーダルを生成する。
func ConfirmPrompt(message string, onConfirm func()) Request {
	return Request{
		Kind:            KindModal,
		Open:            true,
		Message:         message,
		LeftButtonText:  "キャンセル",
		RightButtonText: "確認",
		OnRight:         onConfirm,
	}
}
