package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandDemo はAPIサーバーに対するクライアントフローのデモを実行することを示す。
	CommandDemo Command = "demo"
	// CommandDevserver はローカル開発用スタブAPIサーバーモードで起動することを示す。
	CommandDevserver Command = "devserver"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandDemoを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandDemo
	}

	switch args[0] {
	case "demo":
		return CommandDemo
	case "devserver":
		return CommandDevserver
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandDemo
	}
}
